package phoenix

import (
	"github.com/c04ch1337/phoenix-orch-sub002/pkg/fragment"
	"github.com/c04ch1337/phoenix-orch-sub002/pkg/store"
	"github.com/c04ch1337/phoenix-orch-sub002/pkg/worldmodel"
)

// Type re-exports for caller convenience

// Identifier is re-exported from the fragment package
type Identifier = fragment.Identifier

// Fragment is re-exported from the fragment package
type Fragment = fragment.Fragment

// Retrieval is re-exported from the store package
type Retrieval = store.Retrieval

// StoreStats is re-exported from the store package
type StoreStats = store.Stats

// Entity is re-exported from the worldmodel package
type Entity = worldmodel.Entity

// Relationship is re-exported from the worldmodel package
type Relationship = worldmodel.Relationship

// Process is re-exported from the worldmodel package
type Process = worldmodel.Process

// Event is re-exported from the worldmodel package
type Event = worldmodel.Event

// Trajectory is re-exported from the worldmodel package
type Trajectory = worldmodel.Trajectory

// WorldState is re-exported from the worldmodel package
type WorldState = worldmodel.WorldState

// SelfModel is re-exported from the worldmodel package
type SelfModel = worldmodel.SelfModel

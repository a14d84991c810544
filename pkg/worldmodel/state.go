// Package worldmodel tracks a consistency-scored snapshot of the agent's
// world and self, synchronized from the memory store.
package worldmodel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/c04ch1337/phoenix-orch-sub002/pkg/fragment"
)

// Entity is one known thing in the world snapshot.
type Entity struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Relationship links two entities by id. Endpoints are expected to exist in
// the entity map; violations are reported by consistency checks, never
// auto-repaired.
type Relationship struct {
	SourceID   string            `json:"source_id"`
	TargetID   string            `json:"target_id"`
	Kind       string            `json:"kind"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Process is an ongoing activity referencing zero or more entities.
type Process struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	State     string   `json:"state"`
	EntityIDs []string `json:"entity_ids,omitempty"`
}

// WorldState is the mutable world snapshot. It is created once at model
// construction and mutated in place by update calls.
type WorldState struct {
	Entities      map[string]Entity `json:"entities"`
	Relationships []Relationship    `json:"relationships"`
	Processes     []Process         `json:"processes"`
	Timestamp     time.Time         `json:"timestamp"`
	StateHash     string            `json:"state_hash"`
}

// newWorldState creates an empty snapshot with no state hash.
func newWorldState() *WorldState {
	return &WorldState{
		Entities:      make(map[string]Entity),
		Relationships: nil,
		Processes:     nil,
		Timestamp:     time.Now().UTC(),
	}
}

// computeHash derives a deterministic digest of the snapshot's contents and
// timestamp. Entities are hashed in sorted key order so map iteration order
// does not leak into the hash.
func (w *WorldState) computeHash() string {
	type hashable struct {
		EntityIDs     []string       `json:"entity_ids"`
		Entities      []Entity       `json:"entities"`
		Relationships []Relationship `json:"relationships"`
		Processes     []Process      `json:"processes"`
		Timestamp     int64          `json:"timestamp"`
	}

	ids := make([]string, 0, len(w.Entities))
	for id := range w.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entities := make([]Entity, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, w.Entities[id])
	}

	data, err := json.Marshal(hashable{
		EntityIDs:     ids,
		Entities:      entities,
		Relationships: w.Relationships,
		Processes:     w.Processes,
		Timestamp:     w.Timestamp.UnixNano(),
	})
	if err != nil {
		// Marshal of these types cannot fail; treat as absent hash.
		return ""
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// clone copies the snapshot for trajectory forecasting.
func (w *WorldState) clone() WorldState {
	entities := make(map[string]Entity, len(w.Entities))
	for id, e := range w.Entities {
		entities[id] = e
	}
	relationships := make([]Relationship, len(w.Relationships))
	copy(relationships, w.Relationships)
	processes := make([]Process, len(w.Processes))
	copy(processes, w.Processes)

	return WorldState{
		Entities:      entities,
		Relationships: relationships,
		Processes:     processes,
		Timestamp:     w.Timestamp,
		StateHash:     w.StateHash,
	}
}

// SelfModel holds the agent's view of itself: numeric values that must stay
// finite, identifiers synced from the memory store, and forecast
// trajectories.
type SelfModel struct {
	Weights              []float64             `json:"weights"`
	Values               map[string]float64    `json:"values"`
	RememberedIDs        []fragment.Identifier `json:"remembered_ids"`
	Trajectories         []Trajectory          `json:"trajectories"`
	LastConsistencyCheck time.Time             `json:"last_consistency_check"`
}

func newSelfModel() *SelfModel {
	return &SelfModel{
		Values: make(map[string]float64),
	}
}

// Trajectory is a forecast: a start snapshot, an ordered sequence of future
// snapshots, a parallel confidence sequence, and the horizon it covers.
type Trajectory struct {
	Start      WorldState    `json:"start"`
	Future     []WorldState  `json:"future"`
	Confidence []float64     `json:"confidence"`
	Horizon    time.Duration `json:"horizon"`
}

// Event is one observed signal fed into the model.
type Event struct {
	Signal    []float64 `json:"signal"`
	Timestamp time.Time `json:"timestamp"`
}

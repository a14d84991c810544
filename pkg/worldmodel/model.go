package worldmodel

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/c04ch1337/phoenix-orch-sub002/pkg/fragment"
	"github.com/c04ch1337/phoenix-orch-sub002/pkg/metrics"
)

// latentSize is the dimensionality of the projection state events are folded
// into. The projection is internal bookkeeping; nothing downstream depends on
// its contents.
const latentSize = 16

// trajectorySteps and trajectoryStep define the synthetic forecast shape:
// ten cloned states at ten-minute simulated intervals.
const (
	trajectorySteps = 10
	trajectoryStep  = 10 * time.Minute
)

// statsCoherence is the static placeholder reported by GetStats. Callers
// needing the real score must call Coherence.
const statsCoherence = 0.8

// IdentifierSource is the read interface the sync bridge pulls from. The
// memory store satisfies it.
type IdentifierSource interface {
	RetrieveAllIDs(ctx context.Context) ([]fragment.Identifier, error)
}

// Stats summarizes the model's population counts. Coherence here is a
// static placeholder, not the computed score.
type Stats struct {
	EntityCount       int
	RelationshipCount int
	ProcessCount      int
	Coherence         float64
}

// WorldModel derives a coherence score from, and synchronizes with, the
// memory store.
//
// Four internal groups are guarded by independent locks acquired and
// released separately per operation: temporal statistics (with the observed
// context/environment maps), the projection state, the world state, and the
// self model. A reader interleaving with a writer can therefore observe a
// torn snapshot, e.g. a fresh WorldState next to a stale SelfModel. That is
// accepted for an eventually-consistent view; callers requiring atomic
// snapshots must serialize externally.
type WorldModel struct {
	temporalMu   sync.Mutex
	activityRate float64
	lastEventAt  time.Time
	contextTags  map[string]string
	environTags  map[string]string

	projectionMu sync.Mutex
	latent       [latentSize]float64

	stateMu sync.Mutex
	state   *WorldState

	selfMu sync.Mutex
	self   *SelfModel

	logger  *slog.Logger
	metrics metrics.Collector
}

// Option configures a WorldModel.
type Option func(*WorldModel)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *WorldModel) { m.logger = l }
}

// WithMetrics sets the metrics collector. Defaults to the no-op collector.
func WithMetrics(c metrics.Collector) Option {
	return func(m *WorldModel) { m.metrics = c }
}

// New creates a model with an empty world snapshot and self model.
func New(opts ...Option) *WorldModel {
	m := &WorldModel{
		contextTags: make(map[string]string),
		environTags: make(map[string]string),
		state:       newWorldState(),
		self:        newSelfModel(),
		logger:      slog.Default(),
		metrics:     metrics.NewNoopCollector(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update folds one event into the model: temporal activity statistics, the
// latent projection, the world snapshot's timestamp and hash, and the
// self-model update counter.
func (m *WorldModel) Update(event Event) {
	m.temporalMu.Lock()
	if !m.lastEventAt.IsZero() {
		gap := event.Timestamp.Sub(m.lastEventAt).Seconds()
		if gap > 0 {
			// Exponential moving average of events per second.
			m.activityRate = 0.9*m.activityRate + 0.1/gap
		}
	}
	m.lastEventAt = event.Timestamp
	m.temporalMu.Unlock()

	m.projectionMu.Lock()
	for i, v := range event.Signal {
		slot := i % latentSize
		m.latent[slot] = 0.9*m.latent[slot] + 0.1*v
	}
	m.projectionMu.Unlock()

	m.stateMu.Lock()
	m.state.Timestamp = event.Timestamp
	m.state.StateHash = m.state.computeHash()
	m.stateMu.Unlock()

	m.selfMu.Lock()
	m.self.Values["world_updates"]++
	m.self.Values["last_event_unix"] = float64(event.Timestamp.Unix())
	m.selfMu.Unlock()
}

// UpdateWorldState replaces the snapshot's population in place, advances its
// timestamp, and recomputes the state hash.
func (m *WorldModel) UpdateWorldState(entities []Entity, relationships []Relationship, processes []Process) {
	m.stateMu.Lock()
	for _, e := range entities {
		m.state.Entities[e.ID] = e
	}
	m.state.Relationships = append(m.state.Relationships, relationships...)
	m.state.Processes = append(m.state.Processes, processes...)
	m.state.Timestamp = time.Now().UTC()
	m.state.StateHash = m.state.computeHash()
	timestamp := m.state.Timestamp
	m.stateMu.Unlock()

	// A state update counts as a context observation, which is what arms
	// coherence computation. Plain Update(event) calls do not.
	m.temporalMu.Lock()
	m.contextTags["last_state_update"] = timestamp.Format(time.RFC3339Nano)
	m.temporalMu.Unlock()
}

// ObserveContext records one observed context tag. Coherence is only
// computed once at least one context or environment tag exists.
func (m *WorldModel) ObserveContext(key, value string) {
	m.temporalMu.Lock()
	defer m.temporalMu.Unlock()
	m.contextTags[key] = value
}

// ObserveEnvironment records one observed environment tag.
func (m *WorldModel) ObserveEnvironment(key, value string) {
	m.temporalMu.Lock()
	defer m.temporalMu.Unlock()
	m.environTags[key] = value
}

// Coherence returns a [0,1] blended consistency score.
//
// If both the observed context and environment maps are empty the score is
// 0.0 unconditionally, even with a populated world snapshot. That includes
// the window right after construction before any observation lands.
//
// When computed, the score is the unweighted mean of six factors (temporal
// freshness, hash agreement, relationship referential integrity, process
// referential integrity, consistency-check recency, self-value finiteness),
// and the last consistency check time is advanced as a side effect.
func (m *WorldModel) Coherence() float64 {
	m.temporalMu.Lock()
	observed := len(m.contextTags) > 0 || len(m.environTags) > 0
	m.temporalMu.Unlock()

	if !observed {
		return 0.0
	}

	now := time.Now().UTC()

	m.stateMu.Lock()
	timestamp := m.state.Timestamp
	storedHash := m.state.StateHash
	freshHash := m.state.computeHash()
	relationshipScore := relationshipIntegrity(m.state)
	processScore := processIntegrity(m.state)
	m.stateMu.Unlock()

	var freshness float64
	age := now.Sub(timestamp)
	switch {
	case age < 0:
		freshness = 0.3
	case age < time.Minute:
		freshness = 1.0
	case age < time.Hour:
		freshness = 0.8
	default:
		freshness = 0.5
	}

	var hashScore float64
	switch {
	case storedHash == "":
		hashScore = 0.5
	case storedHash == freshHash:
		hashScore = 1.0
	default:
		hashScore = 0.7
	}

	m.selfMu.Lock()
	var checkScore float64
	switch {
	case m.self.LastConsistencyCheck.IsZero():
		checkScore = 0.5
	case now.Sub(m.self.LastConsistencyCheck) < 5*time.Minute:
		checkScore = 1.0
	default:
		checkScore = 0.8
	}

	finiteScore := 1.0
	for _, v := range m.self.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			finiteScore = 0.2
			break
		}
	}
	m.self.LastConsistencyCheck = now
	m.selfMu.Unlock()

	return (freshness + hashScore + relationshipScore + processScore + checkScore + finiteScore) / 6.0
}

// relationshipIntegrity returns the fraction of relationships whose
// endpoints both exist, 1.0 when there are none. Caller holds stateMu.
func relationshipIntegrity(w *WorldState) float64 {
	if len(w.Relationships) == 0 {
		return 1.0
	}
	valid := 0
	for _, r := range w.Relationships {
		if _, ok := w.Entities[r.SourceID]; !ok {
			continue
		}
		if _, ok := w.Entities[r.TargetID]; !ok {
			continue
		}
		valid++
	}
	return float64(valid) / float64(len(w.Relationships))
}

// processIntegrity returns the fraction of process entity references that
// exist, 1.0 when there are none. Caller holds stateMu.
func processIntegrity(w *WorldState) float64 {
	total, valid := 0, 0
	for _, p := range w.Processes {
		for _, id := range p.EntityIDs {
			total++
			if _, ok := w.Entities[id]; ok {
				valid++
			}
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(valid) / float64(total)
}

// DetectContradictions reports, independently, every relationship with a
// missing endpoint, every non-finite self-model value, and a world snapshot
// timestamp that lies in the future (as a single contradiction). Nothing is
// auto-repaired.
func (m *WorldModel) DetectContradictions() []string {
	var contradictions []string
	now := time.Now().UTC()

	m.stateMu.Lock()
	for _, r := range m.state.Relationships {
		if _, ok := m.state.Entities[r.SourceID]; !ok {
			contradictions = append(contradictions,
				fmt.Sprintf("relationship %s -> %s (%s): missing source entity %s", r.SourceID, r.TargetID, r.Kind, r.SourceID))
		}
		if _, ok := m.state.Entities[r.TargetID]; !ok {
			contradictions = append(contradictions,
				fmt.Sprintf("relationship %s -> %s (%s): missing target entity %s", r.SourceID, r.TargetID, r.Kind, r.TargetID))
		}
	}
	if m.state.Timestamp.After(now) {
		contradictions = append(contradictions,
			fmt.Sprintf("world state timestamp %s lies in the future", m.state.Timestamp.Format(time.RFC3339)))
	}
	m.stateMu.Unlock()

	m.selfMu.Lock()
	for name, v := range m.self.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			contradictions = append(contradictions,
				fmt.Sprintf("self-model value %q is not finite", name))
		}
	}
	m.selfMu.Unlock()

	return contradictions
}

// PredictTrajectories returns exactly one synthetic trajectory: ten future
// states cloned from the current snapshot at ten-minute simulated steps,
// with confidence 0.9/(1+0.1*i) for step i. The confidence sequence is
// monotonically decreasing and is never derived from real uncertainty.
func (m *WorldModel) PredictTrajectories(horizon time.Duration) []Trajectory {
	m.stateMu.Lock()
	start := m.state.clone()
	m.stateMu.Unlock()

	future := make([]WorldState, 0, trajectorySteps)
	confidence := make([]float64, 0, trajectorySteps)
	for i := 0; i < trajectorySteps; i++ {
		step := start.clone()
		step.Timestamp = start.Timestamp.Add(time.Duration(i+1) * trajectoryStep)
		future = append(future, step)
		confidence = append(confidence, 0.9/(1.0+0.1*float64(i)))
	}

	trajectory := Trajectory{
		Start:      start,
		Future:     future,
		Confidence: confidence,
		Horizon:    horizon,
	}

	m.selfMu.Lock()
	m.self.Trajectories = []Trajectory{trajectory}
	m.selfMu.Unlock()

	return []Trajectory{trajectory}
}

// UpdateFromMemories pulls every stored identifier from the source, records
// the count and the id list into the self model, advances the consistency
// check time, and recomputes the world state hash.
//
// The return value is a pass/fail signal: 1 on any successful pass
// regardless of how many identifiers were synced. It is not a processed
// count; callers wanting volume should read the self model.
func (m *WorldModel) UpdateFromMemories(ctx context.Context, source IdentifierSource) (int, error) {
	start := time.Now()

	ids, err := source.RetrieveAllIDs(ctx)
	if err != nil {
		m.metrics.RecordError(ctx, "world_sync", "retrieval")
		return 0, fmt.Errorf("sync from memory store: %w", err)
	}

	m.selfMu.Lock()
	m.self.RememberedIDs = ids
	m.self.Values["remembered_fragments"] = float64(len(ids))
	m.self.LastConsistencyCheck = time.Now().UTC()
	m.selfMu.Unlock()

	m.stateMu.Lock()
	m.state.StateHash = m.state.computeHash()
	m.stateMu.Unlock()

	m.metrics.RecordOperation(ctx, "world_sync", "success", time.Since(start).Milliseconds())
	m.logger.Debug("synced identifiers from memory store", "count", len(ids))

	return 1, nil
}

// GetStats reports population counts and a static coherence placeholder.
// The placeholder is intentionally distinct from Coherence's computed score.
func (m *WorldModel) GetStats() Stats {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	return Stats{
		EntityCount:       len(m.state.Entities),
		RelationshipCount: len(m.state.Relationships),
		ProcessCount:      len(m.state.Processes),
		Coherence:         statsCoherence,
	}
}

// SetSelfValue records a named numeric self-model value. Values are checked
// for finiteness by Coherence and DetectContradictions, not rejected here.
func (m *WorldModel) SetSelfValue(name string, value float64) {
	m.selfMu.Lock()
	defer m.selfMu.Unlock()
	m.self.Values[name] = value
}

// SelfSnapshot copies the self model for inspection. The copy can be torn
// relative to the world snapshot; see the type comment.
func (m *WorldModel) SelfSnapshot() SelfModel {
	m.selfMu.Lock()
	defer m.selfMu.Unlock()

	values := make(map[string]float64, len(m.self.Values))
	for k, v := range m.self.Values {
		values[k] = v
	}
	ids := make([]fragment.Identifier, len(m.self.RememberedIDs))
	copy(ids, m.self.RememberedIDs)
	trajectories := make([]Trajectory, len(m.self.Trajectories))
	copy(trajectories, m.self.Trajectories)
	weights := make([]float64, len(m.self.Weights))
	copy(weights, m.self.Weights)

	return SelfModel{
		Weights:              weights,
		Values:               values,
		RememberedIDs:        ids,
		Trajectories:         trajectories,
		LastConsistencyCheck: m.self.LastConsistencyCheck,
	}
}

// WorldSnapshot copies the world state for inspection.
func (m *WorldModel) WorldSnapshot() WorldState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state.clone()
}

// SetTimestamp overrides the world snapshot's timestamp. Used by callers
// replaying observations; a future timestamp will be reported by
// DetectContradictions and degrade Coherence.
func (m *WorldModel) SetTimestamp(ts time.Time) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state.Timestamp = ts
	m.state.StateHash = m.state.computeHash()
}

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c04ch1337/phoenix-orch-sub002/pkg/fragment"
	"github.com/c04ch1337/phoenix-orch-sub002/pkg/trace"
)

// DefaultReconsolidationInterval is the wake interval for the background
// loop when the caller does not override it.
const DefaultReconsolidationInterval = time.Hour

// ReconsolidationScheduler runs the background self-healing loop for one
// store: each wake it re-verifies every fragment in the primary namespace
// and rebuilds the index root hash. Failures are recorded as metrics and
// logged, never propagated to foreground callers, and never abort the pass.
type ReconsolidationScheduler struct {
	store    *MemoryStore
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// StartReconsolidation launches the background loop for this store. One
// scheduler per store instance; call Stop to shut it down.
func (s *MemoryStore) StartReconsolidation(interval time.Duration) *ReconsolidationScheduler {
	if interval <= 0 {
		interval = DefaultReconsolidationInterval
	}
	r := &ReconsolidationScheduler{
		store:    s,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Stop shuts the loop down and waits for an in-flight pass to finish.
// Stopping twice, including concurrently, is safe.
func (r *ReconsolidationScheduler) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *ReconsolidationScheduler) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.reconsolidate(context.Background())
		}
	}
}

// reconsolidate performs one pass: verify every fragment, then rebuild the
// index root and flush. Per-record failures increment a metric and the pass
// continues; a pass never returns an error.
func (r *ReconsolidationScheduler) reconsolidate(ctx context.Context) {
	start := time.Now()
	s := r.store

	verified, failed := 0, 0

	// The length filter keeps an in-flight integrity probe row from being
	// counted as a verification failure.
	query := fmt.Sprintf("SELECT id, record FROM %s WHERE LENGTH(id) = %d", primaryTable, fragment.IdentifierSize)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.logger.Warn("reconsolidation scan failed", "error", err)
		s.metrics.RecordError(ctx, "reconsolidate", "storage")
		return
	}
	for rows.Next() {
		var rawID, record []byte
		if err := rows.Scan(&rawID, &record); err != nil {
			failed++
			s.metrics.RecordVerificationFailure(ctx, primaryTable)
			continue
		}
		if err := r.verifyRecord(rawID, record); err != nil {
			failed++
			s.metrics.RecordVerificationFailure(ctx, primaryTable)
			s.logger.Debug("fragment failed re-verification", "error", err)
			continue
		}
		verified++
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("reconsolidation iteration failed", "error", err)
		s.metrics.RecordError(ctx, "reconsolidate", "storage")
	}
	rows.Close()
	verifyMs := time.Since(start).Milliseconds()
	s.metrics.RecordStage(ctx, "reconsolidate", "verify", verifyMs)

	rebuildStart := time.Now()
	rootOK := true
	if _, err := s.index.RootHash(ctx); err != nil {
		rootOK = false
		s.logger.Warn("index root rebuild failed", "error", err)
		s.metrics.RecordError(ctx, "reconsolidate", "proof")
	}
	if err := s.Persist(ctx); err != nil {
		s.logger.Warn("reconsolidation flush failed", "error", err)
		s.metrics.RecordError(ctx, "reconsolidate", "storage")
	}
	rebuildMs := time.Since(rebuildStart).Milliseconds()
	s.metrics.RecordStage(ctx, "reconsolidate", "rebuild-index", rebuildMs)

	status := "success"
	if failed > 0 || !rootOK {
		status = "degraded"
	}
	s.metrics.RecordOperation(ctx, "reconsolidate", status, time.Since(start).Milliseconds())

	record := &trace.Record{
		Timestamp:   start,
		OperationID: uuid.NewString(),
		Operation:   "reconsolidate",
		DurationMs:  time.Since(start).Milliseconds(),
		Status:      status,
		Spans: []trace.Span{
			{Name: "verify", DurationMs: verifyMs, OK: failed == 0},
			{Name: "rebuild-index", DurationMs: rebuildMs, OK: rootOK},
		},
	}
	if err := s.tracer.Export(ctx, record); err != nil {
		s.logger.Warn("audit export failed", "error", err)
	}

	s.logger.Debug("reconsolidation pass complete",
		"verified", verified, "failed", failed, "duration_ms", time.Since(start).Milliseconds())
}

// verifyRecord checks one primary-table row: the key must be a well-formed
// identifier, the record must decode, the embedded id must match the key,
// and the digest must verify.
func (r *ReconsolidationScheduler) verifyRecord(rawID, record []byte) error {
	id, err := fragment.IdentifierFromBytes(rawID)
	if err != nil {
		return err
	}
	f, err := fragment.Decode(record)
	if err != nil {
		return err
	}
	if f.ID != id {
		return fmt.Errorf("record id %s does not match key %s", f.ID, id)
	}
	return r.store.verifier.Check(f)
}

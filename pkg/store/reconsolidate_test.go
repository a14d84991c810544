package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/c04ch1337/phoenix-orch-sub002/pkg/fragment"
)

// countingCollector records verification failures for assertions.
type countingCollector struct {
	mu       sync.Mutex
	failures map[string]int
}

func newCountingCollector() *countingCollector {
	return &countingCollector{failures: make(map[string]int)}
}

func (c *countingCollector) RecordOperation(ctx context.Context, operation, status string, durationMs int64) {
}
func (c *countingCollector) RecordStage(ctx context.Context, operation, stage string, durationMs int64) {
}
func (c *countingCollector) RecordError(ctx context.Context, operation, errorType string) {}
func (c *countingCollector) SetStorageCount(ctx context.Context, table string, count int64) {
}

func (c *countingCollector) RecordVerificationFailure(ctx context.Context, table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[table]++
}

func (c *countingCollector) failureCount(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures[table]
}

func TestReconsolidatePassVerifiesCleanStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Store(ctx, []byte{byte(i)}); err != nil {
			t.Fatalf("Store returned error: %v", err)
		}
	}

	r := &ReconsolidationScheduler{store: s}
	r.reconsolidate(ctx)

	// Foreground path is unaffected by the pass.
	ids, err := s.RetrieveAllIDs(ctx)
	if err != nil {
		t.Fatalf("RetrieveAllIDs returned error: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("expected 5 ids after pass, got %d", len(ids))
	}
}

func TestReconsolidateRecordsBadRecordAndContinues(t *testing.T) {
	collector := newCountingCollector()
	path := t.TempDir() + "/memory.db"
	s, err := New(path, nil, nil, WithMetrics(collector))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	goodID, err := s.Store(ctx, []byte("good"))
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	// Plant a record with a digest that will not verify.
	badID, err := fragment.NewIdentifier()
	if err != nil {
		t.Fatalf("NewIdentifier returned error: %v", err)
	}
	bad := &fragment.Fragment{ID: badID, Content: []byte("bad"), Digest: "tampered"}
	record, err := bad.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	insert := fmt.Sprintf("INSERT INTO %s (id, record) VALUES (?, ?)", primaryTable)
	if _, err := s.db.ExecContext(ctx, insert, badID.Bytes(), record); err != nil {
		t.Fatalf("planting bad record failed: %v", err)
	}

	r := &ReconsolidationScheduler{store: s}
	r.reconsolidate(ctx)

	// The bad record was counted, the pass finished, and the good fragment
	// is still retrievable.
	if got := collector.failureCount(primaryTable); got != 1 {
		t.Fatalf("verification failures: got %d, want 1", got)
	}
	if _, err := s.Retrieve(ctx, goodID); err != nil {
		t.Fatalf("Retrieve(good) after pass returned error: %v", err)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := newTestStore(t)

	r := s.StartReconsolidation(10 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	r.Stop()
	r.Stop() // stopping twice is safe
}

func TestSchedulerConcurrentStop(t *testing.T) {
	s := newTestStore(t)

	r := s.StartReconsolidation(10 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Stop()
		}()
	}
	wg.Wait()
}

func TestReconsolidateIgnoresInFlightProbeRow(t *testing.T) {
	collector := newCountingCollector()
	s, err := New(t.TempDir()+"/memory.db", nil, nil, WithMetrics(collector))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Store(ctx, []byte("real")); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	insert := fmt.Sprintf("INSERT OR REPLACE INTO %s (id, record) VALUES (?, ?)", primaryTable)
	if _, err := s.db.ExecContext(ctx, insert, probeKey, probeValue); err != nil {
		t.Fatalf("planting probe row failed: %v", err)
	}

	r := &ReconsolidationScheduler{store: s}
	r.reconsolidate(ctx)

	if got := collector.failureCount(primaryTable); got != 0 {
		t.Fatalf("probe row counted as verification failure: %d", got)
	}
}

func TestSchedulerDoesNotBlockForeground(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := s.StartReconsolidation(5 * time.Millisecond)
	defer r.Stop()

	for i := 0; i < 20; i++ {
		if _, err := s.Store(ctx, []byte{byte(i)}); err != nil {
			t.Fatalf("Store during reconsolidation returned error: %v", err)
		}
	}
}

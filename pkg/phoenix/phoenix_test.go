package phoenix

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/c04ch1337/phoenix-orch-sub002/pkg/metrics"
)

func newTestPhoenix(t *testing.T) *Phoenix {
	t.Helper()
	p, err := New(Config{
		StorePath:              filepath.Join(t.TempDir(), "memory.db"),
		SigningKey:             []byte("test-key"),
		DisableReconsolidation: true,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestNewRequiresStorePath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for missing store path")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	p := newTestPhoenix(t)

	if p.Store() == nil {
		t.Fatalf("Store returned nil")
	}
	if p.WorldModel() == nil {
		t.Fatalf("WorldModel returned nil")
	}
	if p.Metrics() == nil {
		t.Fatalf("Metrics returned nil")
	}
	if p.config.ReconsolidationInterval != time.Hour {
		t.Fatalf("ReconsolidationInterval default: got %v, want 1h", p.config.ReconsolidationInterval)
	}
}

func TestNewStartsAndStopsScheduler(t *testing.T) {
	p, err := New(Config{
		StorePath:               filepath.Join(t.TempDir(), "memory.db"),
		ReconsolidationInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if err := p.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestSyncWorldModel(t *testing.T) {
	p := newTestPhoenix(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := p.Store().Store(ctx, []byte{byte(i)}); err != nil {
			t.Fatalf("Store returned error: %v", err)
		}
	}

	got, err := p.SyncWorldModel(ctx)
	if err != nil {
		t.Fatalf("SyncWorldModel returned error: %v", err)
	}
	if got != 1 {
		t.Fatalf("SyncWorldModel: got %d, want 1", got)
	}

	self := p.WorldModel().SelfSnapshot()
	if len(self.RememberedIDs) != 3 {
		t.Fatalf("RememberedIDs: got %d, want 3", len(self.RememberedIDs))
	}
}

func TestEnableMetricsUsesPrometheusCollector(t *testing.T) {
	p, err := New(Config{
		StorePath:              filepath.Join(t.TempDir(), "memory.db"),
		EnableMetrics:          true,
		DisableReconsolidation: true,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer p.Close()

	collector, ok := p.Metrics().(*metrics.MetricsCollector)
	if !ok {
		t.Fatalf("Metrics type: got %T, want *metrics.MetricsCollector", p.Metrics())
	}
	if collector.Registry() == nil {
		t.Fatalf("Registry returned nil")
	}
	if _, err := p.Store().Store(context.Background(), []byte("counted")); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
}

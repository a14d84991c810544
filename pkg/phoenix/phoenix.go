// Package phoenix provides the durable memory substrate for the agent
// platform: a content-addressed fragment store with tamper-evidence and a
// consistency-tracked world model synchronized from it.
package phoenix

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c04ch1337/phoenix-orch-sub002/pkg/metrics"
	"github.com/c04ch1337/phoenix-orch-sub002/pkg/store"
	"github.com/c04ch1337/phoenix-orch-sub002/pkg/trace"
	"github.com/c04ch1337/phoenix-orch-sub002/pkg/worldmodel"
)

// Config holds configuration for the memory substrate.
type Config struct {
	// StorePath is the on-disk location of the fragment store.
	StorePath string

	// MirrorPaths lists future replication targets. Retained for
	// multi-backend durability; not replicated to yet.
	MirrorPaths []string

	// SigningKey is held by the integrity verifier for the planned keyed
	// digest scheme. The current scheme does not use it.
	SigningKey []byte

	// ReconsolidationInterval is the background re-verification wake
	// interval (default: 1h). Set DisableReconsolidation to skip the loop.
	ReconsolidationInterval time.Duration

	// DisableReconsolidation skips starting the background loop.
	DisableReconsolidation bool

	// AuditPath is the JSONL audit log location for metadata writes.
	// Only effective when built with -tags tracing.
	AuditPath string

	// EnableMetrics switches on the Prometheus collector. Disabled means
	// the no-op collector.
	EnableMetrics bool
}

// Phoenix is the main entry point for the memory substrate. Construct it
// explicitly and pass the handle around; there is no process-wide singleton.
type Phoenix struct {
	config    Config
	store     *store.MemoryStore
	model     *worldmodel.WorldModel
	scheduler *store.ReconsolidationScheduler
	collector metrics.Collector
	tracer    trace.Exporter
	logger    *slog.Logger
}

// New creates the substrate: opens the store, builds the world model, and
// starts the reconsolidation loop unless disabled.
func New(cfg Config) (*Phoenix, error) {
	if cfg.StorePath == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if cfg.ReconsolidationInterval == 0 {
		cfg.ReconsolidationInterval = store.DefaultReconsolidationInterval
	}
	if cfg.AuditPath == "" {
		cfg.AuditPath = cfg.StorePath + ".audit.jsonl"
	}

	var collector metrics.Collector = metrics.NewNoopCollector()
	if cfg.EnableMetrics {
		collector = metrics.NewCollector()
	}

	tracer, err := trace.NewFileExporter(cfg.AuditPath)
	if err != nil {
		return nil, fmt.Errorf("open audit exporter: %w", err)
	}

	logger := slog.Default()

	memStore, err := store.New(cfg.StorePath, cfg.MirrorPaths, cfg.SigningKey,
		store.WithMetrics(collector),
		store.WithTracer(tracer),
		store.WithLogger(logger),
	)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	model := worldmodel.New(
		worldmodel.WithMetrics(collector),
		worldmodel.WithLogger(logger),
	)

	p := &Phoenix{
		config:    cfg,
		store:     memStore,
		model:     model,
		collector: collector,
		tracer:    tracer,
		logger:    logger,
	}

	if !cfg.DisableReconsolidation {
		p.scheduler = memStore.StartReconsolidation(cfg.ReconsolidationInterval)
	}

	return p, nil
}

// WithLogger replaces the substrate's logger.
func (p *Phoenix) WithLogger(logger *slog.Logger) {
	p.logger = logger
}

// Store returns the fragment store.
func (p *Phoenix) Store() *store.MemoryStore {
	return p.store
}

// WorldModel returns the consistency-tracked world model.
func (p *Phoenix) WorldModel() *worldmodel.WorldModel {
	return p.model
}

// Metrics returns the active metrics collector.
func (p *Phoenix) Metrics() metrics.Collector {
	return p.collector
}

// SyncWorldModel runs one pull over the sync bridge: the world model
// ingests every identifier currently in the store. Returns the model's
// pass/fail signal (1 on success).
func (p *Phoenix) SyncWorldModel(ctx context.Context) (int, error) {
	return p.model.UpdateFromMemories(ctx, p.store)
}

// Close stops the reconsolidation loop, flushes the store, and closes the
// audit exporter. Safe to call once.
func (p *Phoenix) Close() error {
	if p.scheduler != nil {
		p.scheduler.Stop()
	}
	if err := p.tracer.Close(); err != nil {
		p.logger.Warn("closing audit exporter failed", "error", err)
	}
	return p.store.Close()
}

// Package store implements the durable, integrity-checked fragment store:
// a primary key-value namespace of serialized fragments, a mirrored index
// namespace used for tamper-evidence, and a background reconsolidation loop.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c04ch1337/phoenix-orch-sub002/pkg/fragment"
	"github.com/c04ch1337/phoenix-orch-sub002/pkg/integrity"
	"github.com/c04ch1337/phoenix-orch-sub002/pkg/metrics"
	"github.com/c04ch1337/phoenix-orch-sub002/pkg/trace"
)

// probeKey is the fixed key used by VerifyIntegrity's round-trip check. It
// is one byte longer than a serialized identifier so it can never collide
// with a real fragment key, and so the length-filtered scans never observe
// an in-flight probe.
var probeKey = append([]byte{0xff}, make([]byte, fragment.IdentifierSize)...)

var probeValue = []byte("phoenix-integrity-probe")

// Retrieval is the result of looking up a fragment: the decoded record, its
// inclusion proof (the raw mirrored bytes from the index namespace), and the
// index root hash current at read time.
type Retrieval struct {
	Fragment *fragment.Fragment
	Proof    []byte
	RootHash string
}

// Stats summarizes store contents. TotalSizeBytes is estimated from record
// lengths, not on-disk pages.
type Stats struct {
	FragmentCount  int64
	TotalSizeBytes int64
	IntegrityScore float64
}

// MemoryStore is the primary fragment table plus its tamper-evidence index.
//
// The two namespaces are each concurrency-safe at the engine level, but no
// application lock serializes cross-namespace updates: under concurrent
// callers an index mirror can lag its primary write. The index is advisory,
// not authoritative, so this is accepted.
type MemoryStore struct {
	db       *sql.DB
	verifier *integrity.Verifier
	index    *MerkleIndex

	// mirrorPaths is retained for future multi-backend durability;
	// replication is currently a best-effort no-op.
	mirrorPaths []string

	metrics metrics.Collector
	tracer  trace.Exporter
	logger  *slog.Logger
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithMetrics sets the metrics collector. Defaults to the no-op collector.
func WithMetrics(c metrics.Collector) Option {
	return func(s *MemoryStore) { s.metrics = c }
}

// WithTracer sets the audit exporter for metadata writes. Defaults to the
// no-op exporter.
func WithTracer(t trace.Exporter) Option {
	return func(s *MemoryStore) { s.tracer = t }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *MemoryStore) { s.logger = l }
}

// New opens (or creates) a store at path. mirrorPaths and signingKey are
// accepted for forward compatibility: mirrors are not replicated to yet and
// the signing key is not used by the current digest scheme.
func New(path string, mirrorPaths []string, signingKey []byte, opts ...Option) (*MemoryStore, error) {
	db, err := openEngine(path)
	if err != nil {
		return nil, err
	}

	s := &MemoryStore{
		db:          db,
		verifier:    integrity.New(signingKey),
		index:       newMerkleIndex(db),
		mirrorPaths: mirrorPaths,
		metrics:     metrics.NewNoopCollector(),
		tracer:      &trace.NoopExporter{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Store writes a new untagged fragment and returns its identifier. It fails
// only on identifier generation, serialization, or engine write failure.
func (s *MemoryStore) Store(ctx context.Context, content []byte) (fragment.Identifier, error) {
	return s.put(ctx, "store", content, nil)
}

// StoreWithMetadata writes a new fragment carrying a tag map serialized into
// the fragment's auxiliary blob, and emits an audit event recording the
// write (used downstream to audit e.g. ethical_score tags).
func (s *MemoryStore) StoreWithMetadata(ctx context.Context, content []byte, tags map[string]string) (fragment.Identifier, error) {
	start := time.Now()

	id, err := s.put(ctx, "store_with_metadata", content, tags)
	if err != nil {
		return fragment.Identifier{}, err
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	record := &trace.Record{
		Timestamp:   start,
		OperationID: uuid.NewString(),
		Operation:   "store_with_metadata",
		DurationMs:  time.Since(start).Milliseconds(),
		Status:      "success",
		FragmentID:  id.String(),
		TagKeys:     keys,
	}
	if err := s.tracer.Export(ctx, record); err != nil {
		// Audit export is best-effort.
		s.logger.Warn("audit export failed", "error", err)
	}
	s.logger.Debug("stored tagged fragment", "id", id.String(), "tag_count", len(tags))

	return id, nil
}

// put is the shared write path: generate id, derive digest, serialize,
// write to the primary namespace, mirror into the index in lockstep.
func (s *MemoryStore) put(ctx context.Context, operation string, content []byte, tags map[string]string) (fragment.Identifier, error) {
	start := time.Now()

	id, err := fragment.NewIdentifier()
	if err != nil {
		s.metrics.RecordError(ctx, operation, "crypto")
		return fragment.Identifier{}, fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	tagBlob, err := fragment.EncodeTags(tags)
	if err != nil {
		s.metrics.RecordError(ctx, operation, "storage")
		return fragment.Identifier{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	f := &fragment.Fragment{
		ID:        id,
		Content:   content,
		Tags:      tagBlob,
		CreatedAt: time.Now().UTC(),
		Digest:    s.verifier.DigestFor(id),
	}

	record, err := f.Encode()
	if err != nil {
		s.metrics.RecordError(ctx, operation, "storage")
		return fragment.Identifier{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	query := fmt.Sprintf("INSERT INTO %s (id, record) VALUES (?, ?)", primaryTable)
	if _, err := s.db.ExecContext(ctx, query, id.Bytes(), record); err != nil {
		s.metrics.RecordError(ctx, operation, "storage")
		return fragment.Identifier{}, fmt.Errorf("%w: write fragment %s: %v", ErrStorage, id, err)
	}

	if err := s.index.Put(ctx, id, record); err != nil {
		s.metrics.RecordError(ctx, operation, "storage")
		return fragment.Identifier{}, err
	}

	s.replicateToMirrors(id, record)

	s.metrics.RecordOperation(ctx, operation, "success", time.Since(start).Milliseconds())
	return id, nil
}

// Retrieve looks up a fragment, checks its integrity digest, and returns it
// together with its inclusion proof and the current index root hash.
func (s *MemoryStore) Retrieve(ctx context.Context, id fragment.Identifier) (*Retrieval, error) {
	query := fmt.Sprintf("SELECT record FROM %s WHERE id = ?", primaryTable)

	var record []byte
	err := s.db.QueryRowContext(ctx, query, id.Bytes()).Scan(&record)
	if err == sql.ErrNoRows {
		s.metrics.RecordError(ctx, "retrieve", "retrieval")
		return nil, fmt.Errorf("%w: fragment %s not found", ErrRetrieval, id)
	}
	if err != nil {
		s.metrics.RecordError(ctx, "retrieve", "retrieval")
		return nil, fmt.Errorf("%w: read fragment %s: %v", ErrRetrieval, id, err)
	}

	f, err := fragment.Decode(record)
	if err != nil {
		s.metrics.RecordError(ctx, "retrieve", "retrieval")
		return nil, fmt.Errorf("%w: fragment %s: %v", ErrRetrieval, id, err)
	}

	if err := s.verifier.Check(f); err != nil {
		s.metrics.RecordError(ctx, "retrieve", "integrity")
		return nil, fmt.Errorf("%w: fragment %s: %v", ErrIntegrity, id, err)
	}

	proof, err := s.index.Entry(ctx, id)
	if err != nil {
		s.metrics.RecordError(ctx, "retrieve", "proof")
		return nil, err
	}

	root, err := s.index.RootHash(ctx)
	if err != nil {
		s.metrics.RecordError(ctx, "retrieve", "proof")
		return nil, err
	}

	return &Retrieval{Fragment: f, Proof: proof, RootHash: root}, nil
}

// QueryByMetadata returns the identifiers of every fragment whose tag map
// carries key with exactly this value. Fragments without the key never
// match, even for an empty value. This is a linear scan over all fragments,
// deserializing each auxiliary blob: O(n) in store size by design, the
// documented trade-off for not maintaining a secondary tag index. Records
// that fail to decode are skipped; a bad record only fails its own lookup.
func (s *MemoryStore) QueryByMetadata(ctx context.Context, key, value string) ([]fragment.Identifier, error) {
	query := fmt.Sprintf("SELECT record FROM %s WHERE LENGTH(id) = %d", primaryTable, fragment.IdentifierSize)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: scan fragments: %v", ErrRetrieval, err)
	}
	defer rows.Close()

	var ids []fragment.Identifier
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("%w: scan fragment record: %v", ErrRetrieval, err)
		}

		f, err := fragment.Decode(record)
		if err != nil {
			s.metrics.RecordError(ctx, "query_by_metadata", "retrieval")
			s.logger.Warn("skipping undecodable fragment during metadata scan", "error", err)
			continue
		}

		tags, err := fragment.DecodeTags(f.Tags)
		if err != nil {
			s.metrics.RecordError(ctx, "query_by_metadata", "retrieval")
			s.logger.Warn("skipping fragment with undecodable tags", "id", f.ID.String(), "error", err)
			continue
		}

		if got, ok := tags[key]; ok && got == value {
			ids = append(ids, f.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate fragments: %v", ErrRetrieval, err)
	}

	return ids, nil
}

// RetrieveAllIDs returns every stored identifier. Used by the world model's
// sync bridge. The length filter keeps an in-flight integrity probe row out
// of the result.
func (s *MemoryStore) RetrieveAllIDs(ctx context.Context) ([]fragment.Identifier, error) {
	query := fmt.Sprintf("SELECT id FROM %s WHERE LENGTH(id) = %d", primaryTable, fragment.IdentifierSize)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: scan fragment ids: %v", ErrRetrieval, err)
	}
	defer rows.Close()

	var ids []fragment.Identifier
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scan fragment id: %v", ErrRetrieval, err)
		}
		id, err := fragment.IdentifierFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate fragment ids: %v", ErrRetrieval, err)
	}

	return ids, nil
}

// VerifyIntegrity performs a liveness round-trip check, not a full-corpus
// audit: it writes a fixed probe key/value, reads it back, deletes it, and
// returns 1.0 on an exact match or 0.0 on any mismatch or engine error.
func (s *MemoryStore) VerifyIntegrity(ctx context.Context) float64 {
	insert := fmt.Sprintf("INSERT OR REPLACE INTO %s (id, record) VALUES (?, ?)", primaryTable)
	if _, err := s.db.ExecContext(ctx, insert, probeKey, probeValue); err != nil {
		s.logger.Warn("integrity probe write failed", "error", err)
		return 0.0
	}

	var got []byte
	query := fmt.Sprintf("SELECT record FROM %s WHERE id = ?", primaryTable)
	err := s.db.QueryRowContext(ctx, query, probeKey).Scan(&got)

	del := fmt.Sprintf("DELETE FROM %s WHERE id = ?", primaryTable)
	if _, delErr := s.db.ExecContext(ctx, del, probeKey); delErr != nil {
		s.logger.Warn("integrity probe delete failed", "error", delErr)
	}

	if err != nil {
		s.logger.Warn("integrity probe read failed", "error", err)
		return 0.0
	}
	if string(got) != string(probeValue) {
		return 0.0
	}
	return 1.0
}

// Persist forces a durability flush of both namespaces.
func (s *MemoryStore) Persist(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(FULL)"); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrStorage, err)
	}
	return nil
}

// CleanupResources flushes and compacts engine state. Callers are expected
// to invoke this periodically under sustained write load to bound
// performance degradation.
func (s *MemoryStore) CleanupResources(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("%w: checkpoint: %v", ErrStorage, err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("%w: optimize: %v", ErrStorage, err)
	}
	return nil
}

// GetStats reports fragment count, estimated total size, and the current
// round-trip integrity score. Counts are also published as gauges.
func (s *MemoryStore) GetStats(ctx context.Context) (*Stats, error) {
	var count, size int64
	query := fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(LENGTH(record)), 0) FROM %s WHERE LENGTH(id) = %d",
		primaryTable, fragment.IdentifierSize)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count, &size); err != nil {
		return nil, fmt.Errorf("%w: collect stats: %v", ErrStorage, err)
	}

	s.metrics.SetStorageCount(ctx, primaryTable, count)
	if indexCount, err := s.index.Count(ctx); err == nil {
		s.metrics.SetStorageCount(ctx, indexTable, indexCount)
	}

	return &Stats{
		FragmentCount:  count,
		TotalSizeBytes: size,
		IntegrityScore: s.VerifyIntegrity(ctx),
	}, nil
}

// Index exposes the tamper-evidence index for callers that want the root
// hash without a retrieval.
func (s *MemoryStore) Index() *MerkleIndex {
	return s.index
}

// Close performs a best-effort flush of both namespaces and releases the
// engine handle. It is not a durability guarantee against process kill.
func (s *MemoryStore) Close() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(FULL)"); err != nil {
		s.logger.Warn("close-time flush failed", "error", err)
	}
	return s.db.Close()
}

// replicateToMirrors is a best-effort placeholder for multi-backend
// durability. It never propagates errors to the write path.
func (s *MemoryStore) replicateToMirrors(id fragment.Identifier, record []byte) {
	if len(s.mirrorPaths) == 0 {
		return
	}
	s.logger.Debug("mirror replication not implemented", "id", id.String(), "mirrors", len(s.mirrorPaths))
}

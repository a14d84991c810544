package trace

import (
	"context"
	"time"
)

// Exporter defines the interface for exporting operation audit records.
// Implementations must be safe for concurrent use.
type Exporter interface {
	// Export writes an audit record to the configured destination.
	Export(ctx context.Context, record *Record) error

	// Close flushes any buffered records and releases resources.
	// Should be called during graceful shutdown.
	Close() error
}

// Record is a sanitized operation audit entry ready for export. It carries
// identifiers and tag keys only, never fragment content or signing keys.
type Record struct {
	// Timestamp is the operation start time.
	Timestamp time.Time `json:"timestamp"`

	// OperationID uniquely identifies this operation for correlation.
	OperationID string `json:"operationId"`

	// Operation is the operation type: "store", "store_with_metadata",
	// "reconsolidate", "world_sync".
	Operation string `json:"operation"`

	// DurationMs is the total operation duration in milliseconds.
	DurationMs int64 `json:"durationMs"`

	// Status is "success" or "error".
	Status string `json:"status"`

	// Spans contains per-stage timing and status.
	Spans []Span `json:"spans,omitempty"`

	// ErrorType classifies the error when Status == "error".
	// Values: storage, retrieval, integrity, crypto, proof, unknown.
	ErrorType string `json:"errorType,omitempty"`

	// FragmentID is the hex identifier the operation touched, if any.
	FragmentID string `json:"fragmentId,omitempty"`

	// TagKeys lists the metadata keys written, without their values. This is
	// what downstream audit uses to find e.g. ethical_score writes.
	TagKeys []string `json:"tagKeys,omitempty"`
}

// Span represents a single timed stage within an operation.
// Stage names are stable: "write-primary", "write-index", "verify",
// "rebuild-index", "flush".
type Span struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"durationMs"`
	OK         bool   `json:"ok"`
	ErrorType  string `json:"errorType,omitempty"`
}

// FileExporterOption configures a FileExporter.
type FileExporterOption func(interface{})

// NoopExporter is a zero-overhead exporter that does nothing. It is the
// default when no audit destination is configured and the fallback when
// tracing is disabled at build time.
type NoopExporter struct{}

// Export does nothing.
func (n *NoopExporter) Export(ctx context.Context, record *Record) error {
	return nil
}

// Close does nothing.
func (n *NoopExporter) Close() error {
	return nil
}

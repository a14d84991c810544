package store

import "errors"

// Error taxonomy for store operations. All are returned to the immediate
// caller wrapped with context; none are retried internally. Best-effort
// paths (close-time flush, mirror replication, the reconsolidation loop)
// never propagate these.
var (
	// ErrStorage indicates an engine open, insert, or flush failure.
	ErrStorage = errors.New("storage failure")

	// ErrRetrieval indicates a missing key or an undeserializable record.
	ErrRetrieval = errors.New("retrieval failure")

	// ErrIntegrity indicates a digest mismatch on retrieve.
	ErrIntegrity = errors.New("integrity failure")

	// ErrCrypto indicates a failure while computing a digest or identifier.
	ErrCrypto = errors.New("crypto failure")

	// ErrProof indicates a failure reading the index entry for a fragment.
	ErrProof = errors.New("proof failure")
)

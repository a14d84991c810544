package phoenix

import (
	"errors"
	"strings"

	"github.com/c04ch1337/phoenix-orch-sub002/pkg/store"
)

// Error type constants for classification
const (
	ErrTypeStorage   = "storage"
	ErrTypeRetrieval = "retrieval"
	ErrTypeIntegrity = "integrity"
	ErrTypeCrypto    = "crypto"
	ErrTypeProof     = "proof"
	ErrTypeUnknown   = "unknown"
)

// ClassifyError inspects an error and returns its type classification.
// This enables grouping errors by category in metrics and audit records.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, store.ErrIntegrity):
		return ErrTypeIntegrity
	case errors.Is(err, store.ErrProof):
		return ErrTypeProof
	case errors.Is(err, store.ErrCrypto):
		return ErrTypeCrypto
	case errors.Is(err, store.ErrRetrieval):
		return ErrTypeRetrieval
	case errors.Is(err, store.ErrStorage):
		return ErrTypeStorage
	}

	// Fall back to string inspection for errors that crossed a boundary
	// without wrapping.
	errStrLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStrLower, "digest") || strings.Contains(errStrLower, "integrity"):
		return ErrTypeIntegrity
	case strings.Contains(errStrLower, "proof") || strings.Contains(errStrLower, "index entry"):
		return ErrTypeProof
	case strings.Contains(errStrLower, "not found") || strings.Contains(errStrLower, "decode"):
		return ErrTypeRetrieval
	case strings.Contains(errStrLower, "sql") ||
		strings.Contains(errStrLower, "database") ||
		strings.Contains(errStrLower, "flush") ||
		strings.Contains(errStrLower, "checkpoint"):
		return ErrTypeStorage
	}

	return ErrTypeUnknown
}

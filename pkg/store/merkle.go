package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/c04ch1337/phoenix-orch-sub002/pkg/fragment"
)

// MerkleIndex mirrors every fragment into a second table and publishes a
// root hash summarizing the mirror's contents for tamper-evidence.
//
// Despite the name this is not a hash tree: the root is recomputed by a full
// scan, hashing the concatenation of every mirrored value in key order, and
// the inclusion "proof" for a fragment is simply its raw mirrored bytes.
// TODO: replace with a real hash tree once proof consumers can handle the
// root format change.
type MerkleIndex struct {
	db *sql.DB
}

// newMerkleIndex wraps the index namespace on a shared engine handle.
// The connection is owned by the caller and must not be closed here.
func newMerkleIndex(db *sql.DB) *MerkleIndex {
	return &MerkleIndex{db: db}
}

// Put mirrors a serialized fragment record under its identifier, replacing
// any previous mirror for the same id.
func (m *MerkleIndex) Put(ctx context.Context, id fragment.Identifier, record []byte) error {
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (id, record) VALUES (?, ?)", indexTable)
	if _, err := m.db.ExecContext(ctx, query, id.Bytes(), record); err != nil {
		return fmt.Errorf("%w: mirror fragment %s: %v", ErrStorage, id, err)
	}
	return nil
}

// Entry returns the raw mirrored bytes for an identifier. This is the
// inclusion proof handed back by Retrieve.
func (m *MerkleIndex) Entry(ctx context.Context, id fragment.Identifier) ([]byte, error) {
	query := fmt.Sprintf("SELECT record FROM %s WHERE id = ?", indexTable)

	var record []byte
	err := m.db.QueryRowContext(ctx, query, id.Bytes()).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no index entry for fragment %s", ErrProof, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read index entry for fragment %s: %v", ErrProof, id, err)
	}
	return record, nil
}

// RootHash recomputes the published root by scanning every mirrored value in
// key order and hashing the concatenation. Cost is O(n) in index size on
// every call.
func (m *MerkleIndex) RootHash(ctx context.Context) (string, error) {
	query := fmt.Sprintf("SELECT record FROM %s ORDER BY id", indexTable)

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: scan index: %v", ErrProof, err)
	}
	defer rows.Close()

	h := sha256.New()
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return "", fmt.Errorf("%w: scan index record: %v", ErrProof, err)
		}
		h.Write(record)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("%w: iterate index: %v", ErrProof, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Count returns the number of mirrored entries.
func (m *MerkleIndex) Count(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", indexTable)
	if err := m.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count index entries: %v", ErrProof, err)
	}
	return count, nil
}

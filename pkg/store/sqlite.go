package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// Table names for the two key-value namespaces. Keys are serialized
// identifiers, values are serialized fragment records.
const (
	primaryTable = "fragments"
	indexTable   = "merkle_index"
)

// openEngine opens (or creates) the embedded database holding both
// namespaces and ensures the schema exists.
func openEngine(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store directory: %v", ErrStorage, err)
	}

	db, err := sql.Open(driverName, engineDSN(path))
	if err != nil {
		return nil, fmt.Errorf("%w: open engine: %v", ErrStorage, err)
	}

	// Writes from concurrent callers are serialized at the pool; readers
	// still benefit from WAL snapshots.
	db.SetMaxOpenConns(1)

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id BLOB PRIMARY KEY,
		record BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS %s (
		id BLOB PRIMARY KEY,
		record BLOB NOT NULL
	);
	`, primaryTable, indexTable)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %v", ErrStorage, err)
	}

	return db, nil
}

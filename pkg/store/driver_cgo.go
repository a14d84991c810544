//go:build sqlite_cgo

package store

import (
	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver
)

// driverName selects the registered database/sql driver. Build with
// -tags sqlite_cgo to use the cgo driver where its performance is needed.
const driverName = "sqlite3"

// engineDSN builds the connection string with the engine tuned for this
// workload: WAL journaling, a generous busy timeout, and a 64MB page cache
// serving as the read cache for both namespaces.
func engineDSN(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=-65536"
}

//go:build !sqlite_cgo

package store

import (
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// driverName selects the registered database/sql driver. The default build
// uses the pure-Go modernc driver so the library works without cgo.
const driverName = "sqlite"

// engineDSN builds the connection string with the engine tuned for this
// workload: WAL journaling, a generous busy timeout, and a 64MB page cache
// serving as the read cache for both namespaces.
func engineDSN(path string) string {
	return path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=synchronous(normal)&_pragma=cache_size(-65536)"
}

// package repositories provides the persistence layer for short-lived
// session state.
//
// Parsed uploads and OAuth state tokens both live in SQLite with a TTL,
// so the HTTP server stays stateless across restarts and multiple
// browser tabs. Each repository purges its own expired rows lazily on
// read and exposes an explicit purge for periodic sweeps.
package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// purgeExpired deletes rows from the given table whose expiry has passed.
func purgeExpired(db *sql.DB, table string, now time.Time) (int64, error) {
	res, err := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE expires_at <= ?", table), now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s: %w", table, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return rows, nil
}

package storage

import (
	"database/sql"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// busyRetryMaxElapsed bounds how long a write waits for another flowmod
// process to release the database.
const busyRetryMaxElapsed = 2 * time.Second

func newBusyBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxElapsedTime = busyRetryMaxElapsed
	return bo
}

// isBusyError reports whether err is SQLite lock contention.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

// withRetry runs op, retrying while it fails with lock contention.
// Other errors are returned immediately.
func withRetry(op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isBusyError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, newBusyBackoff())
}

// execWithRetry wraps db.Exec with lock contention retries.
func execWithRetry(db *sql.DB, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := withRetry(func() error {
		var execErr error
		result, execErr = db.Exec(query, args...)
		return execErr
	})
	return result, err
}

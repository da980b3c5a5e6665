// Package loginsdb is the storage adapter, reconciler wiring, plan
// executor, and public sync driver described in §4.3–§4.6: a typed,
// chunked-IN-list interface over the two-table (loginsL/loginsM) SQLite
// schema, plus apply_incoming/sync_finished built on top of it.
package loginsdb

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mozilla/logins-sync/internal/loginsdb/migrations"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// MaxVariableNumber is the host engine's ceiling on bound parameters per
// statement (§4.3). Every GUID-set operation chunks its input against it.
const MaxVariableNumber = 999

// Options configures a new Store.
type Options struct {
	// Path is the database file path, or "" / ":memory:" for an in-memory
	// database (tests and throwaway stores).
	Path string
	// BusyTimeout bounds how long a write waits for the database's single
	// connection to free up before failing; zero means the driver default.
	BusyTimeout time.Duration
}

// Store wraps one SQLite connection and the login tables' schema. Per §5,
// the caller must serialize all access to a Store — it assumes exclusive
// use of its connection and does no internal locking of its own beyond
// what's needed to keep the prepared-statement cache consistent.
type Store struct {
	db *sql.DB

	stmtMu sync.Mutex
	stmts  map[string]*sql.Stmt
}

// Open opens (creating if necessary) a login store at opts.Path and brings
// its schema up to date.
func Open(opts Options) (*Store, error) {
	dsn := opts.Path
	if dsn == "" {
		dsn = ":memory:"
	}
	if opts.BusyTimeout > 0 {
		dsn = fmt.Sprintf("%s?_pragma=busy_timeout(%d)", dsn, opts.BusyTimeout.Milliseconds())
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open login store: %w", err)
	}
	// A single SQLite connection is the whole concurrency model (§5).
	db.SetMaxOpenConns(1)

	s := &Store{db: db, stmts: make(map[string]*sql.Stmt)}
	if err := migrations.NewManager(db).Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate login store: %w", err)
	}
	return s, nil
}

// OpenInMemory is a convenience for Open(Options{}).
func OpenInMemory() (*Store, error) {
	return Open(Options{Path: ":memory:"})
}

// Close releases the prepared-statement cache and the underlying connection.
func (s *Store) Close() error {
	s.stmtMu.Lock()
	for _, stmt := range s.stmts {
		stmt.Close()
	}
	s.stmts = nil
	s.stmtMu.Unlock()
	return s.db.Close()
}

// Vacuum reclaims free pages in the underlying database file.
func (s *Store) Vacuum() error {
	_, err := s.db.Exec("VACUUM")
	if err != nil {
		logrus.WithError(err).Warn("login store vacuum failed")
	}
	return err
}

// prepared returns a cached *sql.Stmt for query, preparing it on first use.
func (s *Store) prepared(query string) (*sql.Stmt, error) {
	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()

	if stmt, ok := s.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := s.db.Prepare(query)
	if err != nil {
		logrus.WithError(err).WithField("sql", query).Warn("failed to prepare login store statement")
		return nil, err
	}
	s.stmts[query] = stmt
	return stmt, nil
}

// sqlVars returns a bound-parameter list of arity n, e.g. sqlVars(3) == "?,?,?".
func sqlVars(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// chunkStrings splits items into slices no larger than MaxVariableNumber,
// so an IN (...) built from one chunk never exceeds the host engine's bound
// parameter ceiling (§4.3).
func chunkStrings(items []string) [][]string {
	if len(items) == 0 {
		return nil
	}
	var chunks [][]string
	for len(items) > 0 {
		n := len(items)
		if n > MaxVariableNumber {
			n = MaxVariableNumber
		}
		chunks = append(chunks, items[:n])
		items = items[n:]
	}
	return chunks
}

// millisToTime converts an epoch-millisecond column value into a time.Time.
func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// stringsToArgs converts a []string into []any for variadic exec/query calls.
func stringsToArgs(items []string) []any {
	args := make([]any, len(items))
	for i, it := range items {
		args[i] = it
	}
	return args
}

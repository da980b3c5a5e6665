// Package migrations runs versioned schema upgrades against the login
// store's SQLite database, tracked through the engine's user_version
// pragma rather than a separate bookkeeping table — there is exactly one
// schema here, so there is nothing else worth versioning against.
package migrations

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Migration is a single numbered schema step.
type Migration struct {
	Version     int64
	Description string
	Up          func(tx *sql.Tx) error
}

// Manager runs the registered migrations against a database, using
// PRAGMA user_version as the applied-version marker (§6.1).
type Manager struct {
	db         *sql.DB
	migrations []Migration
}

// NewManager builds a Manager carrying the full set of known migrations.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db, migrations: getAllMigrations()}
}

// CurrentVersion reads PRAGMA user_version.
func (m *Manager) CurrentVersion() (int64, error) {
	var v int64
	if err := m.db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// TargetVersion is the highest version this binary knows how to reach.
func (m *Manager) TargetVersion() int64 {
	var max int64
	for _, mg := range m.migrations {
		if mg.Version > max {
			max = mg.Version
		}
	}
	return max
}

// Migrate brings the database from its current version up to TargetVersion,
// running each pending migration in its own transaction and advancing
// user_version as it goes. A version higher than TargetVersion is a fatal
// init error (§7): this binary is older than the database it's opening.
func (m *Manager) Migrate() error {
	current, err := m.CurrentVersion()
	if err != nil {
		return err
	}
	target := m.TargetVersion()

	if current == target {
		return nil
	}
	if current > target {
		return fmt.Errorf("database schema version (%d) is newer than this binary supports (%d)", current, target)
	}

	sorted := append([]Migration(nil), m.migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, mg := range sorted {
		if mg.Version <= current {
			continue
		}
		if err := m.run(mg); err != nil {
			return fmt.Errorf("migration %d (%s): %w", mg.Version, mg.Description, err)
		}
		logrus.WithFields(logrus.Fields{"version": mg.Version, "description": mg.Description}).Debug("applied login store migration")
	}
	return nil
}

func (m *Manager) run(mg Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := mg.Up(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", mg.Version)); err != nil {
		return err
	}
	return tx.Commit()
}

package migrations

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateFromScratchReachesTargetVersion(t *testing.T) {
	db := openMemDB(t)
	mgr := NewManager(db)

	require.NoError(t, mgr.Migrate())

	v, err := mgr.CurrentVersion()
	require.NoError(t, err)
	require.Equal(t, mgr.TargetVersion(), v)
	require.EqualValues(t, 3, v)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openMemDB(t)
	mgr := NewManager(db)
	require.NoError(t, mgr.Migrate())
	require.NoError(t, mgr.Migrate())
}

func TestMigrateCreatesExpectedTablesAndIndexes(t *testing.T) {
	db := openMemDB(t)
	mgr := NewManager(db)
	require.NoError(t, mgr.Migrate())

	for _, name := range []string{LocalTable, MirrorTable} {
		var got string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&got)
		require.NoError(t, err, "table %s should exist", name)
	}

	for _, idx := range []string{"idx_loginsM_is_overridden_hostname", "idx_loginsL_is_deleted_hostname"} {
		var got string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&got)
		require.NoError(t, err, "index %s should exist", idx)
	}
}

func TestMigrateRejectsNewerDatabase(t *testing.T) {
	db := openMemDB(t)
	_, err := db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)

	mgr := NewManager(db)
	err = mgr.Migrate()
	require.Error(t, err)
}

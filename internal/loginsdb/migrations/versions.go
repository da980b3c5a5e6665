package migrations

import "database/sql"

// Table names (§6.1). Exported so the rest of internal/loginsdb can build
// its queries against the same constants the migrations create.
const (
	LocalTable  = "loginsL"
	MirrorTable = "loginsM"
)

// CommonColumns lists the columns every row — local or mirror — carries,
// in the order the schema declares them.
var CommonColumns = []string{
	"id", "hostname", "httpRealm", "formSubmitURL", "usernameField",
	"passwordField", "timesUsed", "timeCreated", "timeLastUsed",
	"timePasswordChanged", "username", "password", "guid",
}

const commonColumnsSQL = `
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	hostname            TEXT NOT NULL,
	httpRealm           TEXT,
	formSubmitURL       TEXT,
	usernameField       TEXT,
	passwordField       TEXT,
	timesUsed           INTEGER DEFAULT 0,
	timeCreated         INTEGER NOT NULL,
	timeLastUsed        INTEGER,
	timePasswordChanged INTEGER NOT NULL,
	username            TEXT,
	password            TEXT NOT NULL,
	guid                TEXT NOT NULL UNIQUE
`

func getAllMigrations() []Migration {
	return []Migration{
		migration1CreateTables(),
		// Version 2 is a historical no-op in the source this was
		// ported from (the index creation below was, per its own comment,
		// "added in version 3 apparently" with no record of what version 2
		// changed) — so this jumps straight from 1 to 3, matching the
		// original's actual observable behavior rather than inventing a
		// version 2 step with nothing to do.
		migration3AddIndexes(),
	}
}

// migration1CreateTables creates loginsL and loginsM with the common
// columns plus their role-specific columns (§6.1).
func migration1CreateTables() Migration {
	return Migration{
		Version:     1,
		Description: "create loginsL and loginsM",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS ` + LocalTable + ` (
				` + commonColumnsSQL + `,
				local_modified INTEGER,
				is_deleted     TINYINT NOT NULL DEFAULT 0,
				sync_status    TINYINT NOT NULL DEFAULT 0
			)`); err != nil {
				return err
			}
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS ` + MirrorTable + ` (
				` + commonColumnsSQL + `,
				server_modified INTEGER NOT NULL,
				is_overridden   TINYINT NOT NULL DEFAULT 0
			)`)
			return err
		},
	}
}

// migration3AddIndexes adds the two lookup indexes named in §6.1. Unlike
// the source this was ported from — which defines both index-creation
// statements against MIRROR_TABLE_NAME, so the "local" index silently
// indexes the mirror table twice — this creates the deleted/hostname index
// on the *local* table, which is what the index name and its use
// (filtering pending tombstones by hostname) both require.
func migration3AddIndexes() Migration {
	return Migration{
		Version:     3,
		Description: "add is_overridden/hostname and is_deleted/hostname indexes",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_loginsM_is_overridden_hostname ON ` + MirrorTable + ` (is_overridden, hostname)`); err != nil {
				return err
			}
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_loginsL_is_deleted_hostname ON ` + LocalTable + ` (is_deleted, hostname)`)
			return err
		},
	}
}

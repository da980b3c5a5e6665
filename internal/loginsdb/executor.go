package loginsdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mozilla/logins-sync/internal/logins"
	"github.com/mozilla/logins-sync/internal/reconcile"
)

// ExecutePlan runs plan against tx in §4.5's fixed stage order: deletes,
// then mirror updates, then mirror inserts, then local updates. The
// caller commits (or rolls back) tx; ExecutePlan never does either itself,
// so it composes inside a larger transaction such as ApplyIncoming's.
func ExecutePlan(ctx context.Context, tx *sql.Tx, plan reconcile.UpdatePlan, now time.Time) error {
	if err := performDeletes(ctx, tx, plan); err != nil {
		return err
	}
	if err := performMirrorUpdates(ctx, tx, plan.MirrorUpdates); err != nil {
		return err
	}
	if err := performMirrorInserts(ctx, tx, plan.MirrorInserts); err != nil {
		return err
	}
	if err := performLocalUpdates(ctx, tx, plan.LocalUpdates, now); err != nil {
		return err
	}
	return nil
}

// performDeletes removes rows from local then mirror, in chunks, so that a
// later insert or update in the same transaction never collides with a row
// of the same table that the plan removes.
func performDeletes(ctx context.Context, tx *sql.Tx, plan reconcile.UpdatePlan) error {
	for _, chunk := range chunkStrings(plan.DeleteLocal) {
		query := fmt.Sprintf(`DELETE FROM %s WHERE guid IN (%s)`, localTable, sqlVars(len(chunk)))
		if _, err := tx.ExecContext(ctx, query, stringsToArgs(chunk)...); err != nil {
			return logins.WrapError(logins.KindStorage, "perform_deletes local", err)
		}
	}
	for _, chunk := range chunkStrings(plan.DeleteMirror) {
		query := fmt.Sprintf(`DELETE FROM %s WHERE guid IN (%s)`, mirrorTable, sqlVars(len(chunk)))
		if _, err := tx.ExecContext(ctx, query, stringsToArgs(chunk)...); err != nil {
			return logins.WrapError(logins.KindStorage, "perform_deletes mirror", err)
		}
	}
	return nil
}

// performMirrorUpdates rewrites every column of the matched mirror row.
// Per Part E's resolved Open Question #1, this uses the same column set
// as performMirrorInserts — the source's own update statement is missing
// a comma in its column list and has evidently never run.
func performMirrorUpdates(ctx context.Context, tx *sql.Tx, updates []reconcile.MirrorUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`UPDATE %s SET
			hostname = ?, httpRealm = ?, formSubmitURL = ?,
			username = ?, password = ?, usernameField = ?, passwordField = ?,
			timeCreated = ?, timeLastUsed = ?, timePasswordChanged = ?, timesUsed = ?,
			server_modified = ?, is_overridden = 0
		WHERE guid = ?`, mirrorTable))
	if err != nil {
		return logins.WrapError(logins.KindStorage, "perform_mirror_updates prepare", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		l := u.Login
		var timeLastUsed, timesUsed any
		if l.HasTimeLastUsed {
			timeLastUsed = l.TimeLastUsed
		}
		if l.HasTimesUsed {
			timesUsed = l.TimesUsed
		}
		_, err := stmt.ExecContext(ctx,
			l.Hostname, nullableString(l.HTTPRealm), nullableString(l.FormSubmitURL),
			l.Username, l.Password, nullableString(l.UsernameField), nullableString(l.PasswordField),
			l.TimeCreated, timeLastUsed, l.TimePasswordChanged, timesUsed,
			u.ServerModified.Millis(), l.ID,
		)
		if err != nil {
			return logins.WrapError(logins.KindStorage, "perform_mirror_updates exec", err)
		}
	}
	return nil
}

// performMirrorInserts adds new mirror rows, ignoring any GUID a prior
// stage already placed there — making this stage idempotent with respect
// to performMirrorUpdates.
func performMirrorInserts(ctx context.Context, tx *sql.Tx, inserts []reconcile.MirrorInsert) error {
	if len(inserts) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR IGNORE INTO %s (
			%s, server_modified, is_overridden
		) VALUES (%s, ?, ?)`, mirrorTable, commonInsertColumns, sqlVars(12)))
	if err != nil {
		return logins.WrapError(logins.KindStorage, "perform_mirror_inserts prepare", err)
	}
	defer stmt.Close()

	for _, ins := range inserts {
		args := append(loginInsertArgs(ins.Login), ins.ServerModified.Millis(), ins.IsOverridden)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return logins.WrapError(logins.KindStorage, "perform_mirror_inserts exec", err)
		}
	}
	return nil
}

// performLocalUpdates writes merged rows back to local, stamping
// local_modified = now and sync_status = Changed so they re-upload.
func performLocalUpdates(ctx context.Context, tx *sql.Tx, updates []reconcile.LocalUpdate, now time.Time) error {
	if len(updates) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (
			%s, local_modified, is_deleted, sync_status
		) VALUES (%s, ?, 0, ?)
		ON CONFLICT(guid) DO UPDATE SET
			hostname = excluded.hostname, httpRealm = excluded.httpRealm,
			formSubmitURL = excluded.formSubmitURL, username = excluded.username,
			password = excluded.password, usernameField = excluded.usernameField,
			passwordField = excluded.passwordField, timeCreated = excluded.timeCreated,
			timeLastUsed = excluded.timeLastUsed, timePasswordChanged = excluded.timePasswordChanged,
			timesUsed = excluded.timesUsed, local_modified = excluded.local_modified,
			is_deleted = 0, sync_status = excluded.sync_status`,
		localTable, commonInsertColumns, sqlVars(12)))
	if err != nil {
		return logins.WrapError(logins.KindStorage, "perform_local_updates prepare", err)
	}
	defer stmt.Close()

	nowMillis := now.UnixMilli()
	for _, u := range updates {
		login := u.Login
		login.ID = u.GUID
		args := append(loginInsertArgs(login), nowMillis, int(logins.StatusChanged))
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return logins.WrapError(logins.KindStorage, "perform_local_updates exec", err)
		}
	}
	return nil
}

package loginsdb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/mozilla/logins-sync/internal/logins"
	"github.com/mozilla/logins-sync/internal/reconcile"
)

// HaveSyncedLogins reports whether the store has ever completed a sync:
// either the mirror is non-empty, or some local row has a sync status other
// than New (§4.3).
func (s *Store) HaveSyncedLogins() (bool, error) {
	stmt, err := s.prepared(fmt.Sprintf(
		`SELECT EXISTS(
			SELECT 1 FROM %s
			UNION ALL
			SELECT 1 FROM %s WHERE sync_status IS NOT ?
		)`, mirrorTable, localTable))
	if err != nil {
		return false, logins.WrapError(logins.KindStorage, "have_synced_logins", err)
	}
	var exists int
	if err := stmt.QueryRow(int(logins.StatusNew)).Scan(&exists); err != nil {
		return false, logins.WrapError(logins.KindStorage, "have_synced_logins", err)
	}
	return exists == 1, nil
}

// fetchRowsPerChunk caps how many (idx, guid) pairs go into one VALUES
// table per query: 2 bound parameters per row, so this stays under
// MaxVariableNumber.
const fetchRowsPerChunk = MaxVariableNumber / 2

// FetchLoginData implements §4.3's fetch_login_data: for a batch of
// incoming records, returns one SyncLoginData per input record (in input
// order), each carrying whatever mirror/local row matched its GUID. A
// repeated GUID in records is a hard error.
func (s *Store) FetchLoginData(ctx context.Context, records []logins.IncomingRecord) ([]reconcile.SyncLoginData, error) {
	out := make([]reconcile.SyncLoginData, len(records))
	seen := make(map[string]bool, len(records))

	for i, rec := range records {
		guid := rec.Payload.ID
		if seen[guid] {
			return nil, logins.DuplicateGuidError(guid)
		}
		seen[guid] = true
		out[i] = reconcile.SyncLoginData{GUID: guid, Inbound: rec.Payload, ServerTS: rec.ServerTS}
	}

	idxs := make([]int, 0, len(records))
	guids := make([]string, 0, len(records))
	for i, rec := range records {
		idxs = append(idxs, i)
		guids = append(guids, rec.Payload.ID)
	}

	for start := 0; start < len(idxs); start += fetchRowsPerChunk {
		end := start + fetchRowsPerChunk
		if end > len(idxs) {
			end = len(idxs)
		}
		if err := s.fetchLoginDataChunk(ctx, idxs[start:end], guids[start:end], out); err != nil {
			return nil, err
		}
	}

	// find_dupe only applies to records with neither a mirror nor a local
	// match — exactly §4.4's "both absent" row.
	for i := range out {
		if out[i].Inbound.IsTombstone() || out[i].Mirror != nil || out[i].Local != nil {
			continue
		}
		dupeGUID, dupe, err := s.findDupe(out[i].Inbound.ToLogin())
		if err != nil {
			return nil, err
		}
		if dupe != nil {
			out[i].Dupe = dupe
			out[i].DupeGUID = dupeGUID
		}
	}

	return out, nil
}

func (s *Store) fetchLoginDataChunk(ctx context.Context, idxs []int, guids []string, out []reconcile.SyncLoginData) error {
	n := len(guids)
	if n == 0 {
		return nil
	}

	values := make([]string, n)
	args := make([]any, 0, n*2)
	for i := 0; i < n; i++ {
		values[i] = "(?,?)"
		args = append(args, idxs[i], guids[i])
	}

	query := fmt.Sprintf(`
		WITH want(idx, guid) AS (VALUES %s)
		SELECT want.idx, 'L', %s, l.local_modified, l.is_deleted, l.sync_status, NULL, NULL
		FROM want JOIN %s l ON l.guid = want.guid
		UNION ALL
		SELECT want.idx, 'M', %s, NULL, NULL, NULL, m.server_modified, m.is_overridden
		FROM want JOIN %s m ON m.guid = want.guid
	`, strings.Join(values, ","), prefixColumns("l", commonSelectColumns), localTable, prefixColumns("m", commonSelectColumns), mirrorTable)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return logins.WrapError(logins.KindStorage, "fetch_login_data", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx                                   int
			source                                string
			localModified, isDeleted, syncStatus  sql.NullInt64
			serverModified, isOverridden           sql.NullInt64
			login                                  logins.Login
			httpRealm, formSubmitURL               sql.NullString
			usernameField, passwordField           sql.NullString
			timeLastUsed, timesUsed                sql.NullInt64
		)
		if err := rows.Scan(
			&idx, &source,
			&login.ID, &login.Hostname, &httpRealm, &formSubmitURL,
			&login.Username, &login.Password, &usernameField, &passwordField,
			&login.TimeCreated, &timeLastUsed, &login.TimePasswordChanged, &timesUsed,
			&localModified, &isDeleted, &syncStatus,
			&serverModified, &isOverridden,
		); err != nil {
			return logins.WrapError(logins.KindStorage, "fetch_login_data scan", err)
		}
		login.HTTPRealm = httpRealm.String
		login.FormSubmitURL = formSubmitURL.String
		login.UsernameField = usernameField.String
		login.PasswordField = passwordField.String
		if timeLastUsed.Valid {
			login.TimeLastUsed = timeLastUsed.Int64
			login.HasTimeLastUsed = true
		}
		if timesUsed.Valid {
			login.TimesUsed = timesUsed.Int64
			login.HasTimesUsed = true
		}

		if idx < 0 || idx >= len(out) {
			continue
		}

		switch source {
		case "L":
			status, err := logins.SyncStatusFromByte(uint8(syncStatus.Int64))
			if err != nil {
				return err
			}
			ll := logins.LocalLogin{
				Login:         login,
				SyncStatus:    status,
				IsDeleted:     isDeleted.Int64 != 0,
				LocalModified: millisToTime(localModified.Int64),
			}
			out[idx].Local = &ll
		case "M":
			ml := logins.MirrorLogin{
				Login:          login,
				IsOverridden:   isOverridden.Int64 != 0,
				ServerModified: logins.ServerTimestampFromMillis(serverModified.Int64),
			}
			out[idx].Mirror = &ml
		}
	}
	return rows.Err()
}

// findDupe implements §4.3's find_dupe: a local (non-deleted) record with
// the same (hostname, username) pair as l, and either a matching http_realm
// or a form_submit_url that shares l's host:port.
func (s *Store) findDupe(l logins.Login) (string, *logins.LocalLogin, error) {
	stmt, err := s.prepared(fmt.Sprintf(
		`SELECT %s, local_modified, is_deleted, sync_status
		 FROM %s
		 WHERE hostname = ? AND username = ? AND is_deleted = 0`,
		commonSelectColumns, localTable))
	if err != nil {
		return "", nil, logins.WrapError(logins.KindStorage, "find_dupe", err)
	}

	rows, err := stmt.Query(l.Hostname, l.Username)
	if err != nil {
		return "", nil, logins.WrapError(logins.KindStorage, "find_dupe", err)
	}
	defer rows.Close()

	wantPort := hostPort(l.FormSubmitURL)

	for rows.Next() {
		var localModified, isDeleted, syncStatusRaw int64
		login, err := scanLogin(rows, &localModified, &isDeleted, &syncStatusRaw)
		if err != nil {
			return "", nil, logins.WrapError(logins.KindStorage, "find_dupe scan", err)
		}

		matches := (login.HasHTTPRealm() && l.HasHTTPRealm() && login.HTTPRealm == l.HTTPRealm) ||
			(login.HasFormSubmitURL() && l.HasFormSubmitURL() && wantPort != "" && hostPort(login.FormSubmitURL) == wantPort)
		if !matches {
			continue
		}

		status, err := logins.SyncStatusFromByte(uint8(syncStatusRaw))
		if err != nil {
			return "", nil, err
		}
		dupe := &logins.LocalLogin{
			Login:         login,
			SyncStatus:    status,
			IsDeleted:     isDeleted != 0,
			LocalModified: millisToTime(localModified),
		}
		return login.ID, dupe, nil
	}
	return "", nil, rows.Err()
}

// MarkAsSynchronized implements §4.3/§6.2's mark_as_synchronized: once the
// host has durably recorded that guids were uploaded as of newTS, each
// guid's local row becomes the new mirror row (stamped with newTS,
// is_overridden=0) and stops being pending.
//
// The source this was ported from runs this as delete-from-mirror,
// insert-local-into-mirror, delete-from-<local_table> — except its third
// step's format argument is schema::MIRROR_TABLE_NAME again, a copy/paste
// slip that leaves the just-synced rows permanently stuck in loginsL. Part
// E's resolved Open Question #2 keeps the first two steps as written and
// fixes only the third to target loginsL, which is what "no longer
// pending" requires and what the local variable in that call was named for.
func (s *Store) MarkAsSynchronized(ctx context.Context, guids []string, newTS logins.ServerTimestamp) error {
	if len(guids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return logins.WrapError(logins.KindStorage, "mark_as_synchronized", err)
	}
	defer tx.Rollback()

	for _, chunk := range chunkStrings(guids) {
		vars := sqlVars(len(chunk))
		args := stringsToArgs(chunk)

		deleteMirror := fmt.Sprintf(`DELETE FROM %s WHERE guid IN (%s)`, mirrorTable, vars)
		if _, err := tx.ExecContext(ctx, deleteMirror, args...); err != nil {
			return logins.WrapError(logins.KindStorage, "mark_as_synchronized delete mirror", err)
		}

		insertFromLocal := fmt.Sprintf(`
			INSERT OR IGNORE INTO %s (
				is_overridden, server_modified,
				httpRealm, formSubmitURL, usernameField,
				passwordField, timesUsed, timeLastUsed, timePasswordChanged, timeCreated,
				password, hostname, username, guid
			)
			SELECT
				0, ?,
				httpRealm, formSubmitURL, usernameField,
				passwordField, timesUsed, timeLastUsed, timePasswordChanged, timeCreated,
				password, hostname, username, guid
			FROM %s
			WHERE guid IN (%s)`, mirrorTable, localTable, vars)
		insertArgs := append([]any{newTS.Millis()}, args...)
		if _, err := tx.ExecContext(ctx, insertFromLocal, insertArgs...); err != nil {
			return logins.WrapError(logins.KindStorage, "mark_as_synchronized insert", err)
		}

		deleteLocal := fmt.Sprintf(`DELETE FROM %s WHERE guid IN (%s)`, localTable, vars)
		if _, err := tx.ExecContext(ctx, deleteLocal, args...); err != nil {
			return logins.WrapError(logins.KindStorage, "mark_as_synchronized delete local", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return logins.WrapError(logins.KindStorage, "mark_as_synchronized commit", err)
	}
	return nil
}

// FetchOutgoing implements §4.3's fetch_outgoing: every local row not
// already marked Synced becomes either a tombstone payload or a full
// payload, depending on is_deleted.
func (s *Store) FetchOutgoing(ctx context.Context, baseTS logins.ServerTimestamp) (logins.OutgoingChangeset, error) {
	out := logins.NewOutgoingChangeset(baseTS)

	query := fmt.Sprintf(`SELECT %s, is_deleted FROM %s WHERE sync_status != ?`, commonSelectColumns, localTable)
	rows, err := s.db.QueryContext(ctx, query, int(logins.StatusSynced))
	if err != nil {
		return out, logins.WrapError(logins.KindStorage, "fetch_outgoing", err)
	}
	defer rows.Close()

	for rows.Next() {
		var isDeleted int64
		l, err := scanLogin(rows, &isDeleted)
		if err != nil {
			return out, logins.WrapError(logins.KindStorage, "fetch_outgoing scan", err)
		}

		if isDeleted != 0 {
			out.Changes = append(out.Changes, logins.TombstonePayload(l.ID))
			continue
		}
		out.Changes = append(out.Changes, logins.PayloadFromLogin(l))
	}
	if err := rows.Err(); err != nil {
		return out, logins.WrapError(logins.KindStorage, "fetch_outgoing", err)
	}
	return out, nil
}

// GetLocalLogin looks up a single local row by guid.
func (s *Store) GetLocalLogin(guid string) (*logins.LocalLogin, error) {
	stmt, err := s.prepared(fmt.Sprintf(
		`SELECT %s, local_modified, is_deleted, sync_status FROM %s WHERE guid = ?`,
		commonSelectColumns, localTable))
	if err != nil {
		return nil, logins.WrapError(logins.KindStorage, "get_local_login", err)
	}
	row := stmt.QueryRow(guid)
	var localModified, isDeleted, syncStatusRaw int64
	l, err := scanLogin(row, &localModified, &isDeleted, &syncStatusRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, logins.WrapError(logins.KindStorage, "get_local_login scan", err)
	}
	status, err := logins.SyncStatusFromByte(uint8(syncStatusRaw))
	if err != nil {
		return nil, err
	}
	return &logins.LocalLogin{
		Login:         l,
		SyncStatus:    status,
		IsDeleted:     isDeleted != 0,
		LocalModified: millisToTime(localModified),
	}, nil
}

// GetMirrorLogin looks up a single mirror row by guid.
func (s *Store) GetMirrorLogin(guid string) (*logins.MirrorLogin, error) {
	stmt, err := s.prepared(fmt.Sprintf(
		`SELECT %s, is_overridden, server_modified FROM %s WHERE guid = ?`,
		commonSelectColumns, mirrorTable))
	if err != nil {
		return nil, logins.WrapError(logins.KindStorage, "get_mirror_login", err)
	}
	row := stmt.QueryRow(guid)
	var isOverridden, serverModified int64
	l, err := scanLogin(row, &isOverridden, &serverModified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, logins.WrapError(logins.KindStorage, "get_mirror_login scan", err)
	}
	return &logins.MirrorLogin{
		Login:          l,
		IsOverridden:   isOverridden != 0,
		ServerModified: logins.ServerTimestampFromMillis(serverModified),
	}, nil
}

// GetLoginsWithGUID returns both the local and mirror rows for guid, if
// present.
func (s *Store) GetLoginsWithGUID(guid string) (*logins.LocalLogin, *logins.MirrorLogin, error) {
	local, err := s.GetLocalLogin(guid)
	if err != nil {
		return nil, nil, err
	}
	mirror, err := s.GetMirrorLogin(guid)
	if err != nil {
		return nil, nil, err
	}
	return local, mirror, nil
}

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

func hostPort(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

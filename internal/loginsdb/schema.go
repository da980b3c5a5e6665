package loginsdb

import (
	"database/sql"

	"github.com/mozilla/logins-sync/internal/logins"
	"github.com/mozilla/logins-sync/internal/loginsdb/migrations"
)

const (
	localTable  = migrations.LocalTable
	mirrorTable = migrations.MirrorTable
)

// commonSelectColumns is the fixed column order every Login-shaped SELECT
// in this package uses, so there is exactly one place that ties a SQL
// column list to scanLogin's argument order.
const commonSelectColumns = "guid, hostname, httpRealm, formSubmitURL, username, password, usernameField, passwordField, timeCreated, timeLastUsed, timePasswordChanged, timesUsed"

const commonInsertColumns = "guid, hostname, httpRealm, formSubmitURL, username, password, usernameField, passwordField, timeCreated, timeLastUsed, timePasswordChanged, timesUsed"

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanLogin reads one row in commonSelectColumns order into a Login. Any
// extra arguments are appended to the Scan call as-is, for callers whose
// query selects trailing columns beyond commonSelectColumns (local_modified,
// is_deleted, sync_status, server_modified, is_overridden, ...).
func scanLogin(s scanner, extra ...any) (logins.Login, error) {
	var (
		l                     logins.Login
		httpRealm             sql.NullString
		formSubmitURL         sql.NullString
		usernameField         sql.NullString
		passwordField         sql.NullString
		timeLastUsed          sql.NullInt64
		timesUsed             sql.NullInt64
	)
	dest := []any{
		&l.ID, &l.Hostname, &httpRealm, &formSubmitURL,
		&l.Username, &l.Password, &usernameField, &passwordField,
		&l.TimeCreated, &timeLastUsed, &l.TimePasswordChanged, &timesUsed,
	}
	dest = append(dest, extra...)
	if err := s.Scan(dest...); err != nil {
		return logins.Login{}, err
	}
	l.HTTPRealm = httpRealm.String
	l.FormSubmitURL = formSubmitURL.String
	l.UsernameField = usernameField.String
	l.PasswordField = passwordField.String
	if timeLastUsed.Valid {
		l.TimeLastUsed = timeLastUsed.Int64
		l.HasTimeLastUsed = true
	}
	if timesUsed.Valid {
		l.TimesUsed = timesUsed.Int64
		l.HasTimesUsed = true
	}
	return l, nil
}

// loginInsertArgs returns the values for commonInsertColumns, in order.
func loginInsertArgs(l logins.Login) []any {
	var timeLastUsed, timesUsed any
	if l.HasTimeLastUsed {
		timeLastUsed = l.TimeLastUsed
	}
	if l.HasTimesUsed {
		timesUsed = l.TimesUsed
	}
	return []any{
		l.ID, l.Hostname, nullableString(l.HTTPRealm), nullableString(l.FormSubmitURL),
		l.Username, l.Password, nullableString(l.UsernameField), nullableString(l.PasswordField),
		l.TimeCreated, timeLastUsed, l.TimePasswordChanged, timesUsed,
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

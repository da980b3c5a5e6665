package logins

import (
	"time"

	"github.com/google/uuid"
)

// NewGUID returns a fresh opaque identifier suitable for a new Login.
func NewGUID() string {
	return uuid.NewString()
}

// Login is a single credential record. Fields mirror the wire schema in
// §6.2: hostname/password are required, and exactly one of
// FormSubmitURL/HTTPRealm must be set.
type Login struct {
	ID       string
	Hostname string

	// FormSubmitURL and HTTPRealm are mutually exclusive.
	FormSubmitURL string
	HTTPRealm     string

	Username string
	Password string

	UsernameField string
	PasswordField string

	TimeCreated         int64
	TimePasswordChanged int64
	TimeLastUsed        int64
	TimesUsed           int64

	// HasTimeLastUsed / HasTimesUsed track presence, since both are
	// optional on the wire and zero is a legitimate value for TimesUsed.
	HasTimeLastUsed bool
	HasTimesUsed    bool
}

// HasFormSubmitURL reports whether FormSubmitURL is set.
func (l Login) HasFormSubmitURL() bool { return l.FormSubmitURL != "" }

// HasHTTPRealm reports whether HTTPRealm is set.
func (l Login) HasHTTPRealm() bool { return l.HTTPRealm != "" }

// CheckValid enforces §3.1's validity invariant: non-empty hostname,
// non-empty password, and exactly one of FormSubmitURL/HTTPRealm.
func (l Login) CheckValid() error {
	if l.Hostname == "" {
		return InvalidLoginError("can't add a login with an empty hostname")
	}
	if l.Password == "" {
		return InvalidLoginError("can't add a login with an empty password")
	}
	if l.HasFormSubmitURL() && l.HasHTTPRealm() {
		return InvalidLoginError("can't add a login with both a httpRealm and formSubmitURL")
	}
	if !l.HasFormSubmitURL() && !l.HasHTTPRealm() {
		return InvalidLoginError("can't add a login without a httpRealm or formSubmitURL")
	}
	return nil
}

// SyncStatus labels why a *local* row is outgoing.
type SyncStatus uint8

const (
	// StatusSynced means the row matches what the server last confirmed.
	StatusSynced SyncStatus = 0
	// StatusChanged means a synced row has since been edited locally.
	StatusChanged SyncStatus = 1
	// StatusNew means the row was created locally and never synced.
	StatusNew SyncStatus = 2
)

func (s SyncStatus) String() string {
	switch s {
	case StatusSynced:
		return "synced"
	case StatusChanged:
		return "changed"
	case StatusNew:
		return "new"
	default:
		return "invalid"
	}
}

// SyncStatusFromByte validates a raw column value against the three known
// statuses, returning BadSyncStatusError for anything else.
func SyncStatusFromByte(v uint8) (SyncStatus, error) {
	switch v {
	case uint8(StatusSynced), uint8(StatusChanged), uint8(StatusNew):
		return SyncStatus(v), nil
	default:
		return 0, BadSyncStatusError(int(v))
	}
}

// ServerTimestamp is a point in server time, stored internally at
// millisecond resolution (matching the server_modified schema column) so it
// can never be silently confused with a local wall-clock time.Time.
type ServerTimestamp int64

// ServerTimestampFromMillis builds a ServerTimestamp from a raw epoch-ms value.
func ServerTimestampFromMillis(ms int64) ServerTimestamp { return ServerTimestamp(ms) }

// Millis returns the timestamp as epoch milliseconds.
func (t ServerTimestamp) Millis() int64 { return int64(t) }

// Seconds returns the timestamp as a fractional epoch-seconds value, matching
// the original Rust `ServerTimestamp(f64)` representation.
func (t ServerTimestamp) Seconds() float64 { return float64(t) / 1000.0 }

// LocalLogin is a row in the *local* (pending outgoing change) table.
type LocalLogin struct {
	Login         Login
	SyncStatus    SyncStatus
	IsDeleted     bool
	LocalModified time.Time
}

// NewLocalLogin wraps a Login with the local-table defaults from §4.1:
// sync_status=New, is_deleted=false, local_modified=epoch.
func NewLocalLogin(l Login) LocalLogin {
	return LocalLogin{Login: l, SyncStatus: StatusNew, IsDeleted: false, LocalModified: time.Unix(0, 0).UTC()}
}

// LocalModifiedMillis returns LocalModified as epoch milliseconds, the
// column's on-disk representation.
func (l LocalLogin) LocalModifiedMillis() int64 {
	return l.LocalModified.UnixMilli()
}

// MirrorLogin is a row in the *mirror* (last-synced baseline) table.
type MirrorLogin struct {
	Login          Login
	IsOverridden   bool
	ServerModified ServerTimestamp
}

// NewMirrorLogin wraps a Login with the mirror-table defaults from §4.1:
// is_overridden=false, server_modified=0.
func NewMirrorLogin(l Login) MirrorLogin {
	return MirrorLogin{Login: l, IsOverridden: false, ServerModified: 0}
}

// Apply returns a copy of m.Login with delta applied, i.e. shared.apply(merged)
// from §4.4.1 step 7.
func (m MirrorLogin) Apply(delta Delta) Login {
	l := m.Login
	Apply(&l, delta)
	return l
}

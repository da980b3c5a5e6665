// Package logins defines the Login record model: the value type, its
// validity predicate, the local/mirror role wrappers, and the field-level
// delta algebra used by the reconciler.
package logins

import "fmt"

// Kind tags the category of error the store can raise. There is no
// inheritance between kinds; callers branch on Kind or use errors.Is/As.
type Kind int

const (
	// KindStorage wraps a failure from the underlying SQL engine.
	KindStorage Kind = iota
	// KindTransport wraps a failure reported by the sync transport.
	KindTransport
	// KindInvalidLogin means a Login failed its validity predicate.
	KindInvalidLogin
	// KindParseColumn means a database row column couldn't be decoded.
	KindParseColumn
	// KindBadSyncStatus means a sync_status column held an out-of-range value.
	KindBadSyncStatus
	// KindDuplicateGuid means an incoming batch named the same GUID twice.
	KindDuplicateGuid
)

func (k Kind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindTransport:
		return "transport"
	case KindInvalidLogin:
		return "invalid login"
	case KindParseColumn:
		return "parse column"
	case KindBadSyncStatus:
		return "bad sync status"
	case KindDuplicateGuid:
		return "duplicate guid"
	default:
		return "unknown"
	}
}

// Error is the tagged error type exported by this module. It carries a Kind
// plus an optional wrapped cause, and formats the way the kind dictates.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an Error of the given kind with no wrapped cause.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds an Error of the given kind wrapping cause.
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// InvalidLoginError is a convenience constructor for the four fixed reasons
// check_valid can report.
func InvalidLoginError(reason string) *Error {
	return NewError(KindInvalidLogin, reason)
}

// ParseColumnError reports a column that couldn't be decoded into its Go type.
func ParseColumnError(column string) *Error {
	return NewError(KindParseColumn, fmt.Sprintf("can't parse column %q", column))
}

// BadSyncStatusError reports an out-of-range sync_status value read from the database.
func BadSyncStatusError(v int) *Error {
	return NewError(KindBadSyncStatus, fmt.Sprintf("illegal sync status in database: %d", v))
}

// DuplicateGuidError reports a GUID that appeared twice in one incoming batch.
func DuplicateGuidError(guid string) *Error {
	return NewError(KindDuplicateGuid, fmt.Sprintf("duplicate guid in incoming batch: %s", guid))
}

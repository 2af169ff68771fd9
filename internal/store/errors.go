package store

import "errors"

// Kind classifies a store failure so callers can branch without string
// matching. Every operation fails with exactly one kind.
type Kind int

const (
	// KindStoreFailure covers underlying database or driver errors.
	KindStoreFailure Kind = iota
	// KindNotFound means the referenced report does not exist.
	KindNotFound
	// KindUnauthorized means the supplied password did not match.
	KindUnauthorized
	// KindInvalidState means the operation is not valid for the report's
	// current lifecycle state (already closed, discussion expired).
	KindInvalidState
	// KindConflict marks a detected lost update: the guarded write matched
	// zero rows because a concurrent request changed the row first.
	KindConflict
)

// Error is the typed failure returned by every ReportStore operation. Message
// is safe to surface to clients as-is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error chain. Anything that is not
// a *store.Error is treated as a store failure.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStoreFailure
}

func failure(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func storeFailure(err error) *Error {
	return &Error{Kind: KindStoreFailure, Message: err.Error(), Err: err}
}

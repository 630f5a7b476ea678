package auth

import "fmt"

// Kind classifies account errors so callers can react without string
// matching
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork – the provider could not be reached or misbehaved
	KindNetwork
	// KindKeyring – secure storage is unavailable or failed.
	// Logins still work for the session, but nothing is persisted.
	KindKeyring
	// KindValidation – the input was rejected locally, no network involved
	KindValidation
	// KindUnsupported – the provider does not implement this operation
	KindUnsupported
	// KindReauthRequired – the stored refresh secret was rejected,
	// the user has to log in interactively again
	KindReauthRequired
	// KindNotFound – no such account or stored credential
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindKeyring:
		return "keyring"
	case KindValidation:
		return "validation"
	case KindUnsupported:
		return "unsupported operation"
	case KindReauthRequired:
		return "reauthentication required"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error is the account error type. Detail never contains secrets.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so
// errors.Is(err, auth.ErrReauthRequired) works for enriched errors too
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// bare sentinels for errors.Is checks
var (
	ErrUnsupportedOperation = &Error{Kind: KindUnsupported}
	ErrReauthRequired       = &Error{Kind: KindReauthRequired}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrKeyring              = &Error{Kind: KindKeyring}
)

// NetworkError wraps a transport level failure
func NetworkError(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

// KeyringError wraps a secure storage failure
func KeyringError(err error) *Error {
	return &Error{Kind: KindKeyring, Err: err}
}

// ValidationError reports locally rejected input
func ValidationError(detail string) *Error {
	return &Error{Kind: KindValidation, Detail: detail}
}

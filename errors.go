package secretpage

import "errors"

var (
	// ErrDuplicateIdentifier is returned when registering an identifier that
	// is already bound to an account.
	ErrDuplicateIdentifier = errors.New("identifier already registered")

	// ErrInvalidCredentials covers both an unknown identifier and a wrong
	// password so callers cannot tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExternalAuth wraps provider errors, exchange timeouts and malformed
	// profiles from an external sign in.
	ErrExternalAuth = errors.New("external authentication failed")

	// ErrStoreUnavailable marks failures of the credential or session store.
	// It is the only class surfaced to clients as a server error.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAccountNotFound is returned by id lookups that match no account.
	ErrAccountNotFound = errors.New("account not found")

	// Registration input errors.
	ErrMissingIdentifier = errors.New("username is required")
	ErrMissingPassword   = errors.New("password is required")
	ErrPasswordTooLong   = errors.New("password is longer than 72 bytes")

	// ErrUnverifiedAccount is returned when a session is requested for an
	// account that did not come out of a store.
	ErrUnverifiedAccount = errors.New("account is not verified")
)

// IsAuthFailure reports whether err should be turned into a redirect back to
// a form rather than a server error.
func IsAuthFailure(err error) bool {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return false
	}
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrDuplicateIdentifier) ||
		errors.Is(err, ErrExternalAuth) ||
		errors.Is(err, ErrMissingIdentifier) ||
		errors.Is(err, ErrMissingPassword) ||
		errors.Is(err, ErrPasswordTooLong)
}

package secretpage

import (
	"fmt"
	"log/slog"
	"net/http"
)

// Strategy authenticates an incoming request and returns the fully resolved
// account it proves. Implementations never return caller-constructed accounts.
type Strategy interface {
	// Name identifies the strategy in logs, metrics and the session.
	Name() string
	Authenticate(r *http.Request) (*Account, error)
}

// LocalStrategy allows username/password based authentication against a
// CredentialStore.
type LocalStrategy struct {
	Store CredentialStore

	// Form field names
	UsernameField string
	PasswordField string
}

func NewLocalStrategy(store CredentialStore) *LocalStrategy {
	return &LocalStrategy{Store: store}
}

func (l *LocalStrategy) Name() string { return "local" }

// Authenticate verifies the submitted credentials once. Parse and validation
// failures are reported as ErrInvalidCredentials like any other mismatch.
func (l *LocalStrategy) Authenticate(r *http.Request) (*Account, error) {
	creds, err := l.credentials(r)
	if err != nil {
		slog.Info("rejecting login", "reason", err)
		return nil, ErrInvalidCredentials
	}
	return l.Store.Verify(r.Context(), creds.Username, creds.Password)
}

// Register creates a local account from the submitted credentials.
func (l *LocalStrategy) Register(r *http.Request) (*Account, error) {
	creds, err := l.credentials(r)
	if err != nil {
		return nil, err
	}
	return l.Store.Create(r.Context(), creds.Username, creds.Password)
}

func (l *LocalStrategy) credentials(r *http.Request) (*Credentials, error) {
	creds, err := ParseCredentials(r, l.UsernameField, l.PasswordField)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingIdentifier, err)
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

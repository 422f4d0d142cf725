package secretpage

import (
	"context"
	"errors"
	"time"
)

// Account is a single user identity: local credentials, an external provider
// binding, or both.
type Account struct {
	ID           string    `json:"id"`
	Identifier   string    `json:"identifier,omitempty"` // username or email, unique when set
	PasswordHash string    `json:"-"`                    // bcrypt, local accounts only
	Provider     string    `json:"provider,omitempty"`   // "google"
	ExternalID   string    `json:"external_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsLocal reports whether the account can log in with a password.
func (a *Account) IsLocal() bool {
	return a.PasswordHash != ""
}

// IsExternal reports whether the account is bound to an external provider.
func (a *Account) IsExternal() bool {
	return a.ExternalID != ""
}

// Validate checks the invariants every persisted account must hold.
func (a *Account) Validate() error {
	if a.PasswordHash == "" && a.ExternalID == "" {
		return errors.New("account needs a password hash or an external id")
	}
	if a.ExternalID != "" && a.Provider == "" {
		return errors.New("external id without a provider")
	}
	return nil
}

// CredentialStore persists accounts. Uniqueness of Identifier and of
// (Provider, ExternalID) must be enforced by the backing store itself.
type CredentialStore interface {
	// Create hashes password and inserts a local account.
	// Returns ErrDuplicateIdentifier if identifier is taken.
	Create(ctx context.Context, identifier, password string) (*Account, error)

	// Verify checks identifier and password. Every mismatch, including an
	// unknown identifier, returns ErrInvalidCredentials.
	Verify(ctx context.Context, identifier, password string) (*Account, error)

	// FindOrCreateByExternalID returns the account bound to the provider's
	// subject id, creating it on first sight. Concurrent callers with the same
	// id converge on one account.
	FindOrCreateByExternalID(ctx context.Context, provider, externalID string) (*Account, error)

	// GetAccountByID returns ErrAccountNotFound if no account has the id.
	GetAccountByID(ctx context.Context, id string) (*Account, error)
}

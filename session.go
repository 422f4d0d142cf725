package secretpage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

const (
	DefaultSessionCookieName = "secretpage_session"
	DefaultSessionLifetime   = 24 * time.Hour

	sessionAccountKey = "accountID"
	sessionAuthAtKey  = "authenticatedAt"
	sessionMethodKey  = "authMethod"
	sessionFlashKey   = "flash"
)

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	// Store holds session payloads. Defaults to the scs in-memory store,
	// which does not survive restarts.
	Store scs.Store

	// Absolute lifetime of a session. Defaults to DefaultSessionLifetime.
	Lifetime time.Duration

	// Sessions unused for this long expire early. Zero disables it.
	IdleTimeout time.Duration

	CookieName   string
	CookieSecure bool
}

// SessionManager maps opaque session tokens to account ids. Only the account
// id is kept in the session; the account itself is re-read from the
// CredentialStore on every resolve.
type SessionManager struct {
	scs      *scs.SessionManager
	accounts CredentialStore
}

func NewSessionManager(accounts CredentialStore, cfg SessionConfig) *SessionManager {
	sm := scs.New()
	if cfg.Store != nil {
		sm.Store = cfg.Store
	}
	sm.Lifetime = DefaultSessionLifetime
	if cfg.Lifetime > 0 {
		sm.Lifetime = cfg.Lifetime
	}
	sm.IdleTimeout = cfg.IdleTimeout
	sm.Cookie.Name = DefaultSessionCookieName
	if cfg.CookieName != "" {
		sm.Cookie.Name = cfg.CookieName
	}
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = cfg.CookieSecure
	sm.ErrorFunc = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("session store failure", "path", r.URL.Path, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
	return &SessionManager{scs: sm, accounts: accounts}
}

// LoadAndSave loads the session named by the request cookie into the request
// context and writes the cookie back when the session changes.
func (m *SessionManager) LoadAndSave(next http.Handler) http.Handler {
	return m.scs.LoadAndSave(next)
}

// Load attaches the session for token to ctx. An empty or unknown token
// yields a fresh, empty session.
func (m *SessionManager) Load(ctx context.Context, token string) (context.Context, error) {
	sctx, err := m.scs.Load(ctx, token)
	if err != nil {
		return nil, storeError(err)
	}
	return sctx, nil
}

// Establish binds the session carried by ctx to account and returns the new
// token. The token is always rotated so a session id planted before login is
// never promoted. The session is committed before returning so a follow-up
// request with the token observes it.
func (m *SessionManager) Establish(ctx context.Context, account *Account) (string, error) {
	if account == nil || account.ID == "" {
		return "", ErrUnverifiedAccount
	}
	stored, err := m.accounts.GetAccountByID(ctx, account.ID)
	if errors.Is(err, ErrAccountNotFound) {
		return "", ErrUnverifiedAccount
	} else if err != nil {
		return "", storeError(err)
	}

	if err := m.scs.RenewToken(ctx); err != nil {
		return "", storeError(err)
	}
	m.scs.Put(ctx, sessionAccountKey, stored.ID)
	m.scs.Put(ctx, sessionAuthAtKey, time.Now().UTC().Unix())
	m.scs.Put(ctx, sessionMethodKey, authMethod(stored))
	token, _, err := m.scs.Commit(ctx)
	if err != nil {
		return "", storeError(err)
	}
	return token, nil
}

// Resolve returns the account bound to token, or nil if the token is absent,
// expired, or refers to an account that no longer exists. Only store failures
// produce an error. ctx must not already carry a loaded session.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, nil
	}
	sctx, err := m.Load(ctx, token)
	if err != nil {
		return nil, err
	}
	return m.account(sctx)
}

// Current resolves the session already loaded on r by LoadAndSave.
func (m *SessionManager) Current(r *http.Request) (*Account, error) {
	return m.account(r.Context())
}

// Destroy removes the session for token. Destroying an unknown token is a
// no-op.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sctx, err := m.Load(ctx, token)
	if err != nil {
		return err
	}
	return m.DestroyCurrent(sctx)
}

// DestroyCurrent removes the session carried by ctx, if any.
func (m *SessionManager) DestroyCurrent(ctx context.Context) error {
	if err := m.scs.Destroy(ctx); err != nil {
		return storeError(err)
	}
	return nil
}

// PutFlash stores a one-shot message shown on the next rendered form.
func (m *SessionManager) PutFlash(ctx context.Context, msg string) {
	m.scs.Put(ctx, sessionFlashKey, msg)
}

// PopFlash returns and clears the pending flash message.
func (m *SessionManager) PopFlash(ctx context.Context) string {
	return m.scs.PopString(ctx, sessionFlashKey)
}

func (m *SessionManager) account(ctx context.Context) (*Account, error) {
	id := m.scs.GetString(ctx, sessionAccountKey)
	if id == "" {
		return nil, nil
	}
	account, err := m.accounts.GetAccountByID(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		slog.Info("session refers to a missing account", "account", id)
		return nil, nil
	} else if err != nil {
		return nil, storeError(err)
	}
	return account, nil
}

// authMethod names how account signs in: its provider, or "local".
func authMethod(account *Account) string {
	if account.IsExternal() {
		return account.Provider
	}
	return "local"
}

func storeError(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

package secretpage

import (
	"context"
	"log/slog"
	"net/http"
)

type accountContextKey struct{}

// Middleware gates handlers on the session resolved by a SessionManager.
// The wrapped handlers must run inside SessionManager.LoadAndSave.
type Middleware struct {
	Sessions *SessionManager

	// Where unauthenticated requests are sent. Defaults to "/login".
	LoginURL string

	// Called when a protected route sees an unauthenticated request.
	OnDenied func(r *http.Request)
}

// AccountFromContext returns the account stored by ExtractAccount or
// EnsureAccount, or nil.
func AccountFromContext(ctx context.Context) *Account {
	account, _ := ctx.Value(accountContextKey{}).(*Account)
	return account
}

func withAccount(r *http.Request, account *Account) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), accountContextKey{}, account))
}

/**
 * Resolves the logged in account (if any) and makes it available to
 * downstream handlers.
 *
 * Note this does not perform any redirects if no account is logged in.
 * To also enforce a login, use EnsureAccount.
 */
func (m *Middleware) ExtractAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, err := m.Sessions.Current(r)
		if err != nil {
			m.storeFailure(w, r, err)
			return
		}
		if account != nil {
			r = withAccount(r, account)
		}
		next.ServeHTTP(w, r)
	})
}

// EnsureAccount serves next only for requests with a resolvable session and
// redirects everything else to the login page.
func (m *Middleware) EnsureAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, err := m.Sessions.Current(r)
		if err != nil {
			m.storeFailure(w, r, err)
			return
		}
		if account == nil {
			if m.OnDenied != nil {
				m.OnDenied(r)
			}
			http.Redirect(w, r, m.loginURL(), http.StatusFound)
			return
		}
		next.ServeHTTP(w, withAccount(r, account))
	})
}

func (m *Middleware) loginURL() string {
	if m.LoginURL == "" {
		return "/login"
	}
	return m.LoginURL
}

func (m *Middleware) storeFailure(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("could not resolve session", "path", r.URL.Path, "err", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

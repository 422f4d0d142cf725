package secretpage

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// Flash messages shown after a failed attempt. They never carry the
// underlying error.
const (
	loginFailedMessage        = "Login failed."
	registrationFailedMessage = "Registration failed."
	externalDisabledMessage   = "Google sign in is not configured."
)

// ExternalStrategy is a Strategy driven by a redirect to a third party and a
// callback back to us.
type ExternalStrategy interface {
	Strategy

	// Initiate redirects the user agent to the provider.
	Initiate(w http.ResponseWriter, r *http.Request)

	// Finish clears whatever Initiate left in the user agent. It is called
	// on every callback, before Authenticate.
	Finish(w http.ResponseWriter)
}

// App is the application context: it owns the stores, strategies and
// session manager and builds the HTTP routes over them. Construct one at
// startup and serve App.Handler().
type App struct {
	Accounts   CredentialStore
	Sessions   *SessionManager
	Local      *LocalStrategy
	External   ExternalStrategy // optional
	Metrics    *Metrics
	Middleware Middleware

	router *mux.Router
}

func New(accounts CredentialStore, sessions *SessionManager, external ExternalStrategy) *App {
	a := &App{
		Accounts: accounts,
		Sessions: sessions,
		Local:    NewLocalStrategy(accounts),
		External: external,
		Metrics:  NewMetrics(),
	}
	a.Middleware = Middleware{
		Sessions: sessions,
		LoginURL: "/login",
		OnDenied: a.Metrics.AccessDenied,
	}
	return a
}

// Handler returns the routes wrapped in session loading.
func (a *App) Handler() http.Handler {
	return a.Sessions.LoadAndSave(a.setupRoutes().router)
}

func (a *App) setupRoutes() *App {
	if a.router != nil {
		return a
	}
	r := mux.NewRouter()
	r.Handle("/", a.Middleware.ExtractAccount(http.HandlerFunc(a.onHome))).Methods(http.MethodGet)

	r.HandleFunc("/auth/google", a.onExternalInitiate).Methods(http.MethodGet)
	r.HandleFunc("/auth/google/secrets", a.onExternalCallback).Methods(http.MethodGet)

	r.HandleFunc("/login", a.onLoginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", a.onLogin).Methods(http.MethodPost)
	r.HandleFunc("/register", a.onRegisterForm).Methods(http.MethodGet)
	r.HandleFunc("/register", a.onRegister).Methods(http.MethodPost)
	r.HandleFunc("/logout", a.onLogout).Methods(http.MethodGet)

	r.Handle("/secrets", a.Middleware.EnsureAccount(http.HandlerFunc(a.onSecrets))).Methods(http.MethodGet)

	r.Handle("/metrics", a.Metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	a.router = r
	return a
}

func (a *App) onHome(w http.ResponseWriter, r *http.Request) {
	render(w, "home", PageData{Account: AccountFromContext(r.Context())})
}

func (a *App) onLoginForm(w http.ResponseWriter, r *http.Request) {
	render(w, "login", PageData{Flash: a.Sessions.PopFlash(r.Context())})
}

func (a *App) onRegisterForm(w http.ResponseWriter, r *http.Request) {
	render(w, "register", PageData{Flash: a.Sessions.PopFlash(r.Context())})
}

func (a *App) onSecrets(w http.ResponseWriter, r *http.Request) {
	render(w, "secrets", PageData{Account: AccountFromContext(r.Context())})
}

func (a *App) onLogin(w http.ResponseWriter, r *http.Request) {
	account, err := a.Local.Authenticate(r)
	a.completeAuth(w, r, a.Local.Name(), account, err, "/login", loginFailedMessage)
}

func (a *App) onRegister(w http.ResponseWriter, r *http.Request) {
	account, err := a.Local.Register(r)
	a.completeAuth(w, r, a.Local.Name(), account, err, "/register", registrationFailedMessage)
}

func (a *App) onExternalInitiate(w http.ResponseWriter, r *http.Request) {
	if a.External == nil {
		a.Sessions.PutFlash(r.Context(), externalDisabledMessage)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	a.External.Initiate(w, r)
}

func (a *App) onExternalCallback(w http.ResponseWriter, r *http.Request) {
	if a.External == nil {
		a.Sessions.PutFlash(r.Context(), externalDisabledMessage)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	a.External.Finish(w)
	account, err := a.External.Authenticate(r)
	a.completeAuth(w, r, a.External.Name(), account, err, "/login", loginFailedMessage)
}

// completeAuth turns a strategy result into a response: a session and a
// redirect to /secrets on success, a redirect back to failURL on any
// authentication failure, and a 500 for anything else (a store outage).
func (a *App) completeAuth(w http.ResponseWriter, r *http.Request, strategy string, account *Account, err error, failURL, flash string) {
	if err != nil {
		if !IsAuthFailure(err) {
			a.Metrics.AuthAttempt(strategy, OutcomeError)
			a.serverError(w, r, err)
			return
		}
		a.Metrics.AuthAttempt(strategy, OutcomeFailure)
		slog.Info("authentication failed", "strategy", strategy, "err", err)
		a.Sessions.PutFlash(r.Context(), flash)
		http.Redirect(w, r, failURL, http.StatusFound)
		return
	}

	if _, err := a.Sessions.Establish(r.Context(), account); err != nil {
		a.Metrics.AuthAttempt(strategy, OutcomeError)
		a.serverError(w, r, err)
		return
	}
	a.Metrics.AuthAttempt(strategy, OutcomeSuccess)
	a.Metrics.SessionEstablished(strategy)
	slog.Info("session established", "strategy", strategy, "account", account.ID)
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (a *App) onLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.DestroyCurrent(r.Context()); err != nil {
		a.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) serverError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed", "path", r.URL.Path, "err", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

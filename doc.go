// Package secretpage is a small web authentication server: users register
// and log in with a username and password, or sign in with Google, and a
// single page (/secrets) is served only to logged in users.
//
// # Architecture
//
// Account: a user identity with local credentials (bcrypt hash), an
// external provider binding (provider + subject id), or both.
//
// CredentialStore: persists accounts. Identifier and (provider, external id)
// uniqueness live in the store's unique indexes, never in check-then-act
// application code. See the stores/gorm package.
//
// Strategy: turns a request into a verified Account. LocalStrategy checks a
// username and password; the oauth2 package provides GoogleStrategy for the
// authorization-code flow.
//
// SessionManager: maps an opaque session token (an HttpOnly cookie) to an
// account id. The account is re-read on every request, so a deleted account
// stops resolving immediately. The token is rotated on every login.
//
// App: the application context and router. Construct it once at startup:
//
//	db, _ := gorm.Open("file:secrets.db")
//	gorm.AutoMigrate(db)
//	accounts := gorm.NewAccountStore(db)
//	sessionStore, _ := gorm.NewSessionStore(db, 5*time.Minute)
//	sessions := secretpage.NewSessionManager(accounts, secretpage.SessionConfig{Store: sessionStore})
//	google := oauth2.NewGoogleStrategy(accounts, clientID, clientSecret, callbackURL, stateSecret)
//	app := secretpage.New(accounts, sessions, google)
//	http.ListenAndServe(":3000", app.Handler())
//
// # Errors
//
// Authentication failures (ErrInvalidCredentials, ErrDuplicateIdentifier,
// ErrExternalAuth) become redirects back to the relevant form with a generic
// message. Only ErrStoreUnavailable produces a 500.
package secretpage

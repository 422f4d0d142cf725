package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/panyam/secretpage"
	"golang.org/x/oauth2"
)

const (
	stateCookieName        = "oauthstate"
	DefaultExchangeTimeout = 10 * time.Second
)

// BaseOAuth2 holds what every authorization-code provider needs: client
// credentials, the callback URL, state handling and the exchange timeout.
type BaseOAuth2 struct {
	ClientId        string
	ClientSecret    string
	CallbackURL     string
	ExchangeTimeout time.Duration

	oauthConfig oauth2.Config
	state       *StateSigner
	httpClient  *http.Client
}

func NewBaseOAuth2(clientId string, clientSecret string, callbackUrl string, stateSecret []byte) *BaseOAuth2 {
	return &BaseOAuth2{
		ClientId:        clientId,
		ClientSecret:    clientSecret,
		CallbackURL:     callbackUrl,
		ExchangeTimeout: DefaultExchangeTimeout,
		state:           NewStateSigner(stateSecret),
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
}

// SetHTTPClient sets the client used for the token exchange and profile
// calls. Mostly useful in tests.
func (b *BaseOAuth2) SetHTTPClient(client *http.Client) {
	b.httpClient = client
}

// SetOAuthEndpoint overrides the provider's authorization and token URLs.
func (b *BaseOAuth2) SetOAuthEndpoint(endpoint oauth2.Endpoint) {
	b.oauthConfig.Endpoint = endpoint
}

// Initiate redirects the user agent to the provider's consent page. Only the
// state cookie is written; no account or session changes here.
func (b *BaseOAuth2) Initiate(w http.ResponseWriter, r *http.Request) {
	state, err := generateStateOauthCookie(w, b.state)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, b.oauthConfig.AuthCodeURL(state), http.StatusFound)
}

// Finish expires the state cookie so a state cannot be replayed from the
// same browser.
func (b *BaseOAuth2) Finish(w http.ResponseWriter) {
	clearStateCookie(w)
}

// exchangeContext bounds the provider round trips by ExchangeTimeout. It is
// detached from client cancellation so an aborted request does not cut the
// callback off halfway.
func (b *BaseOAuth2) exchangeContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := b.ExchangeTimeout
	if timeout <= 0 {
		timeout = DefaultExchangeTimeout
	}
	ctx := context.WithoutCancel(r.Context())
	if b.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	}
	return context.WithTimeout(ctx, timeout)
}

// exchange validates the callback request and trades its code for a token.
func (b *BaseOAuth2) exchange(ctx context.Context, r *http.Request) (*oauth2.Token, error) {
	if errParam := r.FormValue("error"); errParam != "" {
		return nil, fmt.Errorf("%w: provider returned %q", secretpage.ErrExternalAuth, errParam)
	}

	oauthState, _ := r.Cookie(stateCookieName)
	if oauthState == nil || oauthState.Value == "" {
		return nil, fmt.Errorf("%w: missing state cookie", secretpage.ErrExternalAuth)
	}
	if err := b.state.Verify(r.FormValue("state"), oauthState.Value); err != nil {
		return nil, fmt.Errorf("%w: %v", secretpage.ErrExternalAuth, err)
	}

	code := r.FormValue("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", secretpage.ErrExternalAuth)
	}
	token, err := b.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", secretpage.ErrExternalAuth, err)
	}
	return token, nil
}

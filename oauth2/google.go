package oauth2

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/panyam/secretpage"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const GoogleProvider = "google"

// GoogleStrategy signs users in with Google and maps the Google subject id to
// an account, creating one on first sight.
type GoogleStrategy struct {
	*BaseOAuth2
	Store secretpage.CredentialStore

	// UserInfoEndpoint overrides the Google API base URL for the profile
	// call. Empty means Google's.
	UserInfoEndpoint string
}

func NewGoogleStrategy(store secretpage.CredentialStore, clientId string, clientSecret string, callbackUrl string, stateSecret []byte) *GoogleStrategy {
	out := GoogleStrategy{
		BaseOAuth2: NewBaseOAuth2(clientId, clientSecret, callbackUrl, stateSecret),
		Store:      store,
	}
	out.BaseOAuth2.oauthConfig.Endpoint = google.Endpoint
	out.BaseOAuth2.oauthConfig.Scopes = []string{
		googleoauth2.UserinfoProfileScope,
		googleoauth2.UserinfoEmailScope,
	}
	return &out
}

func (g *GoogleStrategy) Name() string { return GoogleProvider }

// Authenticate completes the callback leg: state check, code exchange,
// profile fetch and find-or-create. Store failures keep their
// ErrStoreUnavailable classification; everything else is ErrExternalAuth.
func (g *GoogleStrategy) Authenticate(r *http.Request) (*secretpage.Account, error) {
	ctx, cancel := g.exchangeContext(r)
	defer cancel()

	token, err := g.exchange(ctx, r)
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithHTTPClient(g.oauthConfig.Client(ctx, token))}
	if g.UserInfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(g.UserInfoEndpoint))
	}
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo client: %v", secretpage.ErrExternalAuth, err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: failed getting user info: %v", secretpage.ErrExternalAuth, err)
	}
	if info.Id == "" {
		return nil, fmt.Errorf("%w: profile has no subject id", secretpage.ErrExternalAuth)
	}

	account, err := g.Store.FindOrCreateByExternalID(ctx, GoogleProvider, info.Id)
	if err != nil {
		if !errors.Is(err, secretpage.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", secretpage.ErrExternalAuth, err)
		}
		return nil, err
	}
	slog.Info("google sign in", "account", account.ID)
	return account, nil
}

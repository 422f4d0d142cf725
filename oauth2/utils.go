package oauth2

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	stateIssuer     = "secretpage-oauth-state"
	DefaultStateTTL = 10 * time.Minute
)

// StateSigner issues and checks the OAuth state parameter. The state is a
// signed, short-lived JWT carrying a nonce; the same nonce is kept in a
// cookie so a state only validates in the browser that started the flow.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type stateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// NewStateSigner signs with secret. An empty secret gets a random one, which
// only works while a single process serves both legs of the flow.
func NewStateSigner(secret []byte) *StateSigner {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic(fmt.Sprintf("failed to generate state secret: %v", err))
		}
		slog.Warn("no OAuth state secret configured, using a per-process random secret")
	}
	return &StateSigner{secret: secret, ttl: DefaultStateTTL, now: time.Now}
}

// Issue returns a signed state value and the nonce it embeds.
func (s *StateSigner) Issue() (state string, nonce string, err error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce = base64.RawURLEncoding.EncodeToString(b)

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	state, err = token.SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign state: %w", err)
	}
	return state, nonce, nil
}

// Verify checks the signature and expiry of state and that it carries nonce.
func (s *StateSigner) Verify(state, nonce string) error {
	if state == "" {
		return errors.New("missing state")
	}
	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("invalid state: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(nonce)) != 1 {
		return errors.New("state does not match this browser")
	}
	return nil
}

func generateStateOauthCookie(w http.ResponseWriter, signer *StateSigner) (string, error) {
	state, nonce, err := signer.Issue()
	if err != nil {
		slog.Error("error generating oauth state", "err", err)
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    nonce,
		Path:     "/",
		MaxAge:   int(signer.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

package secretpage

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Credentials is a submitted username and password pair.
type Credentials struct {
	Username string
	Password string
}

// Validate checks that both fields are present. Surrounding whitespace in the
// username is not significant.
func (c *Credentials) Validate() error {
	c.Username = strings.TrimSpace(c.Username)
	if c.Username == "" {
		return ErrMissingIdentifier
	}
	if c.Password == "" {
		return ErrMissingPassword
	}
	return nil
}

// ParseCredentials reads the username and password fields from a urlencoded
// (or multipart) form, or from a JSON object body.
func ParseCredentials(r *http.Request, usernameField, passwordField string) (*Credentials, error) {
	if usernameField == "" {
		usernameField = "username"
	}
	if passwordField == "" {
		passwordField = "password"
	}

	creds := &Credentials{}
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return nil, fmt.Errorf("invalid post body")
		}
		creds.Username, _ = data[usernameField].(string)
		creds.Password, _ = data[passwordField].(string)
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("error parsing form")
		}
		creds.Username = r.FormValue(usernameField)
		creds.Password = r.FormValue(passwordField)
	}
	return creds, nil
}

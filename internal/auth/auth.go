package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/infralens/infralens/internal/backend"
)

const (
	MethodPassword = "password"
	MethodOIDC     = "oidc"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Principal is the signed-in user as held in the session. Token is the
// bearer token issued by the backend.
type Principal struct {
	Username    string
	DisplayName string
	Email       string
	Roles       []string
	Method      string
	Token       string
	ExpiresAt   time.Time
}

func (p Principal) Name() string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	return p.Username
}

// Expired reports whether the token is past its expiry. A zero expiry never
// expires locally; the backend still rejects stale tokens with a 401.
func (p Principal) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

func (p Principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, r := range p.Roles {
		if strings.ToLower(strings.TrimSpace(r)) == role {
			return true
		}
	}
	return false
}

func PrincipalFromLogin(res backend.LoginResult, method string, now time.Time) Principal {
	p := Principal{
		Username:    strings.TrimSpace(res.User.Username),
		DisplayName: strings.TrimSpace(res.User.DisplayName),
		Email:       strings.TrimSpace(res.User.Email),
		Roles:       append([]string(nil), res.User.Roles...),
		Method:      method,
		Token:       strings.TrimSpace(res.AccessToken),
	}
	if res.ExpiresIn > 0 {
		p.ExpiresAt = now.Add(time.Duration(res.ExpiresIn) * time.Second)
	}
	return p
}

// Config is the set of sign-in methods the backend has enabled.
type Config struct {
	LocalAuthEnabled bool
	OIDCEnabled      bool
	OIDCLoginURL     string
}

func ConfigFromBackend(cfg backend.AuthConfig) Config {
	return Config{
		LocalAuthEnabled: cfg.LocalAuthEnabled,
		OIDCEnabled:      cfg.OIDCEnabled,
		OIDCLoginURL:     strings.TrimSpace(cfg.OIDCLoginURL),
	}
}

// AuthRequired is false when no sign-in method is configured, in which case
// every route is open.
func (c Config) AuthRequired() bool {
	return c.LocalAuthEnabled || c.OIDCEnabled
}

package authn

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/infralens/infralens/internal/auth"
	"github.com/infralens/infralens/internal/backend"
	"github.com/labstack/echo/v5"
)

const (
	ContextKeyPrincipal  = "auth_principal"
	ContextKeyAuthConfig = "auth_config"

	SessionKeyToken       = "auth_token"
	SessionKeyUsername    = "auth_username"
	SessionKeyDisplayName = "auth_display_name"
	SessionKeyEmail       = "auth_email"
	SessionKeyRoles       = "auth_roles"
	SessionKeyMethod      = "auth_method"
	SessionKeyExpiresAt   = "auth_expires_at"

	configTimeout = 3 * time.Second
)

// ConfigSource resolves which sign-in methods are enabled.
type ConfigSource interface {
	AuthConfig(ctx context.Context) (auth.Config, error)
}

func PrincipalFromContext(c *echo.Context) (auth.Principal, bool) {
	p, ok := c.Get(ContextKeyPrincipal).(auth.Principal)
	return p, ok
}

func ConfigFromContext(c *echo.Context) (auth.Config, bool) {
	cfg, ok := c.Get(ContextKeyAuthConfig).(auth.Config)
	return cfg, ok
}

// LoadPrincipal reads the signed-in user from the session. Sessions whose
// token has expired are destroyed.
func LoadPrincipal(ctx context.Context, sessions *scs.SessionManager, now time.Time) (auth.Principal, bool) {
	if sessions == nil {
		return auth.Principal{}, false
	}
	token := sessions.GetString(ctx, SessionKeyToken)
	if token == "" {
		return auth.Principal{}, false
	}

	p := auth.Principal{
		Username:    sessions.GetString(ctx, SessionKeyUsername),
		DisplayName: sessions.GetString(ctx, SessionKeyDisplayName),
		Email:       sessions.GetString(ctx, SessionKeyEmail),
		Method:      sessions.GetString(ctx, SessionKeyMethod),
		Token:       token,
	}
	if roles := sessions.GetString(ctx, SessionKeyRoles); roles != "" {
		p.Roles = strings.Split(roles, ",")
	}
	if exp := sessions.GetInt64(ctx, SessionKeyExpiresAt); exp > 0 {
		p.ExpiresAt = time.Unix(exp, 0)
	}
	if p.Expired(now) {
		_ = sessions.Destroy(ctx)
		return auth.Principal{}, false
	}
	return p, true
}

// StorePrincipal renews the session token and records p in the session.
func StorePrincipal(ctx context.Context, sessions *scs.SessionManager, p auth.Principal) error {
	if err := sessions.RenewToken(ctx); err != nil {
		return err
	}
	sessions.Put(ctx, SessionKeyToken, p.Token)
	sessions.Put(ctx, SessionKeyUsername, p.Username)
	sessions.Put(ctx, SessionKeyDisplayName, p.DisplayName)
	sessions.Put(ctx, SessionKeyEmail, p.Email)
	sessions.Put(ctx, SessionKeyMethod, p.Method)
	sessions.Put(ctx, SessionKeyRoles, strings.Join(p.Roles, ","))
	if !p.ExpiresAt.IsZero() {
		sessions.Put(ctx, SessionKeyExpiresAt, p.ExpiresAt.Unix())
	}
	return nil
}

// RequireAuth guards every route behind it. While the sign-in configuration
// cannot be resolved, only the loading page is rendered.
func RequireAuth(sessions *scs.SessionManager, configs ConfigSource, loading echo.HandlerFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			cfgCtx, cancel := context.WithTimeout(ctx, configTimeout)
			cfg, err := configs.AuthConfig(cfgCtx)
			cancel()
			if err != nil {
				c.Logger().Warn("auth config unavailable", "error", err)
			}

			principal, authenticated := LoadPrincipal(ctx, sessions, time.Now())
			decision := auth.Decide(auth.GuardInput{
				Loading:       err != nil,
				Config:        cfg,
				Authenticated: authenticated,
				RequestURI:    requestLocation(c),
			})

			switch decision.Action {
			case auth.ActionSpinner:
				if isAPIRequest(c) {
					c.Response().Header().Set("Retry-After", "2")
					return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "authentication is loading"})
				}
				return loading(c)
			case auth.ActionRedirect:
				return handleUnauth(c, decision)
			}

			c.Set(ContextKeyAuthConfig, cfg)
			if authenticated {
				c.Set(ContextKeyPrincipal, principal)
				c.SetRequest(req.WithContext(backend.WithToken(ctx, principal.Token)))
			}
			return next(c)
		}
	}
}

// ExpireSession handles a backend 401: the stored token is dropped and the
// user is sent to the login page with the current location preserved.
func ExpireSession(c *echo.Context, sessions *scs.SessionManager) error {
	if sessions != nil {
		_ = sessions.Destroy(c.Request().Context())
	}
	return handleUnauth(c, auth.Decide(auth.GuardInput{
		Config:     auth.Config{LocalAuthEnabled: true},
		RequestURI: requestLocation(c),
	}))
}

func isAPIRequest(c *echo.Context) bool {
	return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Request().URL.Path, "/api/")
}

func isHX(c *echo.Context) bool {
	return strings.EqualFold(strings.TrimSpace(c.Request().Header.Get("HX-Request")), "true")
}

// requestLocation is the page the user is on. For htmx requests that is the
// browser URL rather than the fragment endpoint.
func requestLocation(c *echo.Context) string {
	req := c.Request()
	if isHX(c) {
		if current := strings.TrimSpace(req.Header.Get("HX-Current-URL")); current != "" {
			if u, err := url.Parse(current); err == nil {
				return u.RequestURI()
			}
		}
	}
	if req.Method != http.MethodGet {
		return ""
	}
	return req.URL.RequestURI()
}

func handleUnauth(c *echo.Context, decision auth.GuardDecision) error {
	if isAPIRequest(c) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	c.Response().Header().Add(echo.HeaderVary, "HX-Request")
	if isHX(c) {
		c.Response().Header().Set("HX-Redirect", decision.Location)
		return c.NoContent(http.StatusOK)
	}
	// 303 makes the browser fetch the login page with GET and replace the
	// protected URL in the redirect chain.
	return c.Redirect(http.StatusSeeOther, decision.Location)
}

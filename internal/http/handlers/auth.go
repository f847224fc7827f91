package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/infralens/infralens/internal/auth"
	"github.com/infralens/infralens/internal/http/authn"
	"github.com/infralens/infralens/internal/http/viewmodels"
	"github.com/infralens/infralens/internal/http/views"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

const authLoadingRetrySeconds = 2

const invalidCredentialsMessage = "Invalid username or password."

func (h *Handlers) loginView(c *echo.Context, cfg auth.Config, next string) viewmodels.LoginViewData {
	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	data := viewmodels.LoginViewData{
		CSRFToken:        csrfToken,
		Next:             next,
		LocalAuthEnabled: cfg.LocalAuthEnabled,
		OIDCEnabled:      cfg.OIDCEnabled,
		OIDCLoginURL:     oidcLoginURL(cfg.OIDCLoginURL, next),
	}
	return data
}

// oidcLoginURL forwards next to the identity provider so it comes back on the
// callback.
func oidcLoginURL(base, next string) string {
	if base == "" || next == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("next", next)
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *Handlers) HandleLoginGet(c *echo.Context) error {
	if h.Sessions == nil {
		return errors.New("auth sessions not configured")
	}

	ctx := c.Request().Context()
	next := auth.SanitizeNext(c.QueryParam("next"))

	cfg, err := h.AuthConfig(ctx)
	if err != nil {
		logBackendError(c, ResourceAuthConfig, err)
		return h.HandleAuthLoading(c)
	}
	if !cfg.AuthRequired() {
		return redirect(c, nextOrRoot(next))
	}
	if _, ok := authn.LoadPrincipal(ctx, h.Sessions, h.now()); ok {
		return redirect(c, nextOrRoot(next))
	}

	data := h.loginView(c, cfg, next)
	data.Toast = popFlashToast(c)
	return h.RenderComponent(c, views.LoginPage(data))
}

func (h *Handlers) HandleLoginPost(c *echo.Context) error {
	if h.Sessions == nil {
		return errors.New("auth sessions not configured")
	}

	ctx := c.Request().Context()
	username := strings.TrimSpace(c.FormValue("username"))
	password := c.FormValue("password")
	next := auth.SanitizeNext(c.FormValue("next"))

	cfg, err := h.AuthConfig(ctx)
	if err != nil {
		logBackendError(c, ResourceAuthConfig, err)
		return h.HandleAuthLoading(c)
	}

	data := h.loginView(c, cfg, next)
	data.Username = username

	if !cfg.LocalAuthEnabled || h.Passwords == nil {
		data.ErrorMessage = "Username and password sign-in is disabled."
		c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
		c.Response().WriteHeader(http.StatusForbidden)
		return views.LoginPage(data).Render(ctx, c.Response())
	}
	if username == "" || strings.TrimSpace(password) == "" {
		data.ErrorMessage = invalidCredentialsMessage
		return h.RenderComponent(c, views.LoginPage(data))
	}

	principal, err := h.Passwords.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			data.ErrorMessage = invalidCredentialsMessage
			return h.RenderComponent(c, views.LoginPage(data))
		}
		logBackendError(c, "login", err)
		data.ErrorMessage = "Sign-in is unavailable right now. Try again shortly."
		return h.RenderComponent(c, views.LoginPage(data))
	}

	if err := authn.StorePrincipal(ctx, h.Sessions, principal); err != nil {
		return err
	}
	c.Logger().Info("signed in", "username", principal.Username, "method", principal.Method)
	return c.Redirect(http.StatusSeeOther, nextOrRoot(next))
}

// HandleAuthCallback accepts the token handed back by the external OIDC
// provider, confirms it with the backend and starts a session.
func (h *Handlers) HandleAuthCallback(c *echo.Context) error {
	if h.Sessions == nil {
		return errors.New("auth sessions not configured")
	}

	ctx := c.Request().Context()
	next := auth.SanitizeNext(c.QueryParam("next"))
	token := c.QueryParam("token")
	if token == "" {
		token = c.QueryParam("access_token")
	}
	expiresIn, _ := strconv.Atoi(c.QueryParam("expires_in"))

	if h.Tokens == nil {
		return errors.New("token provider not configured")
	}
	principal, err := h.Tokens.Verify(ctx, token, expiresIn)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			logBackendError(c, "auth-callback", err)
		}
		setFlashToast(c, viewmodels.ToastViewData{
			Category:    "error",
			Title:       "Sign-in failed",
			Description: "The identity provider did not return a usable session.",
		})
		return c.Redirect(http.StatusSeeOther, loginHref(next))
	}

	if err := authn.StorePrincipal(ctx, h.Sessions, principal); err != nil {
		return err
	}
	c.Logger().Info("signed in", "username", principal.Username, "method", principal.Method)
	return c.Redirect(http.StatusSeeOther, nextOrRoot(next))
}

func (h *Handlers) HandleLogoutPost(c *echo.Context) error {
	if h.Sessions == nil {
		return errors.New("auth sessions not configured")
	}

	if err := h.Sessions.Destroy(c.Request().Context()); err != nil {
		return err
	}
	setFlashToast(c, viewmodels.ToastViewData{
		Category: "success",
		Title:    "Signed out",
	})
	return redirect(c, auth.LoginPath)
}

// HandleAuthLoading renders only the spinner. The page polls the location it
// was requested for until the sign-in settings resolve.
func (h *Handlers) HandleAuthLoading(c *echo.Context) error {
	retry := "/"
	if req := c.Request(); req != nil && req.Method == http.MethodGet && req.URL != nil {
		retry = req.URL.RequestURI()
	}
	c.Response().Header().Set("Retry-After", strconv.Itoa(authLoadingRetrySeconds))
	return h.RenderComponent(c, views.AuthLoadingPage(viewmodels.AuthLoadingViewData{
		RetryHref:    retry,
		RetrySeconds: authLoadingRetrySeconds,
	}))
}

func nextOrRoot(next string) string {
	if next == "" {
		return "/"
	}
	return next
}

func loginHref(next string) string {
	if next == "" {
		return auth.LoginPath
	}
	return auth.LoginPath + "?next=" + url.QueryEscape(next)
}

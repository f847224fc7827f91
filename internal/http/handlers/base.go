// Package handlers contains HTTP handler logic split by view.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/alexedwards/scs/v2"
	"github.com/infralens/infralens/internal/auth"
	"github.com/infralens/infralens/internal/auth/providers"
	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/config"
	"github.com/infralens/infralens/internal/freshness"
	"github.com/infralens/infralens/internal/http/authn"
	"github.com/infralens/infralens/internal/http/viewmodels"
	"github.com/infralens/infralens/internal/http/views"
	"github.com/infralens/infralens/internal/querycache"
	"github.com/infralens/infralens/internal/refresh"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

const (
	// ContextKeyRequestID stores the request id (X-Request-ID) for logging and client error references.
	ContextKeyRequestID = "request_id"

	// InternalErrorCode is a stable error code safe to return to clients.
	InternalErrorCode = "INTERNAL_ERROR"

	// Shared cache resources; their keys carry no user scope.
	ResourceStatus     = "status"
	ResourceAuthConfig = "auth-config"

	defaultFreshnessTick = 30 * time.Second
)

// Refresher is the manual refresh workflow.
type Refresher interface {
	Refresh(ctx context.Context) (refresh.Result, error)
}

// Handlers groups all HTTP handlers and shared dependencies.
type Handlers struct {
	Cfg       config.Config
	Backend   *backend.Client
	Cache     *querycache.Cache
	Refresher Refresher
	Sessions  *scs.SessionManager
	Passwords providers.Provider
	Tokens    *providers.TokenProvider
	Now       func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// StatusKey is the cache key the status poller keeps warm.
func StatusKey() querycache.Key {
	return querycache.Key{Resource: ResourceStatus}
}

// FetchStatus loads the status summary. The endpoint is public, so the
// result is shared by every session.
func (h *Handlers) FetchStatus(ctx context.Context) (any, error) {
	return h.Backend.Status(ctx)
}

// AuthConfig resolves the enabled sign-in methods through the shared cache.
func (h *Handlers) AuthConfig(ctx context.Context) (auth.Config, error) {
	fetch := func(ctx context.Context) (backend.AuthConfig, error) {
		return h.Backend.AuthConfig(ctx)
	}
	var (
		cfg backend.AuthConfig
		err error
	)
	if h.Cache == nil {
		cfg, err = fetch(ctx)
	} else {
		cfg, err = querycache.Fetch(ctx, h.Cache, querycache.Key{Resource: ResourceAuthConfig}, fetch)
	}
	if err != nil {
		return auth.Config{}, err
	}
	return auth.ConfigFromBackend(cfg), nil
}

func (h *Handlers) status(c *echo.Context) (backend.StatusSummary, error) {
	ctx := c.Request().Context()
	if h.Cache == nil {
		return h.Backend.Status(ctx)
	}
	return querycache.Fetch(ctx, h.Cache, StatusKey(), func(ctx context.Context) (backend.StatusSummary, error) {
		return h.Backend.Status(ctx)
	})
}

// scope partitions cached queries per signed-in user, since the backend
// answers with that user's visibility.
func scope(c *echo.Context) string {
	if p, ok := authn.PrincipalFromContext(c); ok {
		return p.Username
	}
	return ""
}

// cached reads resource through the query cache. The fetch keeps the
// caller's bearer token so a later refetch runs as the same user.
func cached[T any](h *Handlers, c *echo.Context, resource, params string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx := c.Request().Context()
	token := backend.TokenFromContext(ctx)
	fetch := func(ctx context.Context) (T, error) {
		return fn(backend.WithToken(ctx, token))
	}
	if h.Cache == nil {
		return fetch(ctx)
	}
	key := querycache.Key{Scope: scope(c), Resource: resource, Params: params}
	return querycache.Fetch(ctx, h.Cache, key, fetch)
}

// sessionExpired reports whether err means the stored token is no longer
// accepted. It only applies while sign-in is required.
func sessionExpired(c *echo.Context, err error) bool {
	if !errors.Is(err, backend.ErrUnauthorized) {
		return false
	}
	cfg, ok := authn.ConfigFromContext(c)
	return ok && cfg.AuthRequired()
}

func logBackendError(c *echo.Context, what string, err error) {
	requestID, _ := c.Get(ContextKeyRequestID).(string)
	c.Logger().Warn("backend read failed",
		"request_id", requestID,
		"resource", what,
		"error", err,
	)
}

// LayoutData builds the common layout data for page rendering.
func (h *Handlers) LayoutData(c *echo.Context, title string) viewmodels.LayoutData {
	principal, ok := authn.PrincipalFromContext(c)
	cfg, _ := authn.ConfigFromContext(c)
	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	activePath := c.Request().URL.Path

	layout := viewmodels.LayoutData{
		Title:       title,
		CSRFToken:   csrfToken,
		AuthEnabled: ok && cfg.AuthRequired(),
		Toast:       popFlashToast(c),
		ActivePath:  activePath,
		Nav:         navigation(activePath),
		Freshness:   h.freshnessView(c),
	}
	if ok {
		layout.UserName = principal.Name()
		layout.UserRoles = principal.Roles
	}
	return layout
}

func (h *Handlers) freshnessView(c *echo.Context) viewmodels.FreshnessViewData {
	tick := h.Cfg.FreshnessTick
	if tick <= 0 {
		tick = defaultFreshnessTick
	}
	view := viewmodels.FreshnessViewData{TickSeconds: int(tick / time.Second)}

	summary, err := h.status(c)
	if err != nil {
		logBackendError(c, ResourceStatus, err)
		view.Unavailable = true
		return view
	}
	res := freshness.Evaluate(h.now(), summary.LastRefreshedAt)
	view.Label = res.Label
	view.Tier = string(res.Tier)
	view.BadgeClass = res.Tier.BadgeClass()
	view.RefreshInProgress = summary.RefreshInProgress
	return view
}

func navigation(activePath string) []viewmodels.NavSection {
	item := func(label, href string) viewmodels.NavItem {
		return viewmodels.NavItem{Label: label, Href: href, Active: views.IsActivePath(activePath, href)}
	}

	overview := viewmodels.NavSection{Label: "Overview", Items: []viewmodels.NavItem{
		item("Dashboard", "/"),
		item("Access mapping", "/access-mapping"),
		item("Topology", "/topology"),
		item("Terraform", "/terraform"),
	}}
	sections := []viewmodels.NavSection{overview}
	for _, section := range []string{sectionAWS, sectionCyberArk} {
		s := viewmodels.NavSection{Label: section}
		for _, k := range resourceKinds {
			if k.section == section {
				s.Items = append(s.Items, item(k.title, k.basePath()))
			}
		}
		sections = append(sections, s)
	}
	return sections
}

// RenderComponent renders a templ component as the response.
func (h *Handlers) RenderComponent(c *echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(c.Request().Context(), c.Response()); err != nil {
		return h.RenderError(c, err)
	}
	return nil
}

// RenderError returns a plain text error response.
func (h *Handlers) RenderError(c *echo.Context, err error) error {
	requestID, _ := c.Get(ContextKeyRequestID).(string)
	path := ""
	method := ""
	if req := c.Request(); req != nil {
		method = req.Method
		if req.URL != nil {
			path = req.URL.Path
		}
	}
	c.Logger().Error("http error",
		"request_id", requestID,
		"method", method,
		"path", path,
		"ip", c.RealIP(),
		"error", err,
	)

	msg := "Internal server error."
	if requestID != "" {
		msg = fmt.Sprintf("%s Reference: %s.", msg, requestID)
	}
	msg = fmt.Sprintf("%s Code: %s.", msg, InternalErrorCode)
	return c.String(http.StatusInternalServerError, msg)
}

// RenderNotFound returns a 404 response.
func RenderNotFound(c *echo.Context) error {
	return c.String(http.StatusNotFound, "404 page not found")
}

func (h *Handlers) HandleHealthz(c *echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

package httpapp

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/infralens/infralens/internal/http/authn"
	"github.com/infralens/infralens/internal/http/handlers"
	"github.com/infralens/infralens/web"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

const (
	readHeaderTimeout = 10 * time.Second
	maxRequestIDLen   = 128
)

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h   *handlers.Handlers
	e   *echo.Echo
	srv *http.Server
}

// NewEchoServer wires the routes around h. Sessions are loaded and saved
// around the whole router so every handler sees them.
func NewEchoServer(h *handlers.Handlers, logger *slog.Logger) (*EchoServer, error) {
	if h == nil || h.Backend == nil {
		return nil, errors.New("handlers need a backend client")
	}
	if h.Sessions == nil {
		return nil, errors.New("handlers need a session manager")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.Logger = logger
	es := &EchoServer{h: h, e: e}
	e.HTTPErrorHandler = es.httpErrorHandler
	es.registerRoutes()
	es.srv = &http.Server{
		Handler:           es.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return es, nil
}

func (es *EchoServer) registerRoutes() {
	es.e.Use(requestID)
	es.e.Use(middleware.Recover())
	es.e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			requestID, _ := c.Get(handlers.ContextKeyRequestID).(string)
			c.Logger().Info("request",
				"request_id", requestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))

	es.e.GET("/healthz", es.h.HandleHealthz)
	es.e.StaticFS("/static", es.staticFS())

	csrf := middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:" + echo.HeaderXCSRFToken + ",form:csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   es.h.Cfg.AuthCookieSecure,
		CookieSameSite: http.SameSiteLaxMode,
	})

	public := es.e.Group("", csrf)
	public.GET("/login", es.h.HandleLoginGet)
	public.POST("/login", es.h.HandleLoginPost)
	public.GET("/auth/callback", es.h.HandleAuthCallback)
	public.POST("/logout", es.h.HandleLogoutPost)

	authed := es.e.Group("", csrf, authn.RequireAuth(es.h.Sessions, es.h, es.h.HandleAuthLoading))
	authed.GET("/", es.h.HandleDashboard)
	authed.GET("/status/freshness", es.h.HandleFreshness)
	authed.POST("/refresh", es.h.HandleRefreshPost)
	authed.GET("/access-mapping", es.h.HandleAccessMapping)
	authed.GET("/api/access-graph", es.h.HandleAccessGraphJSON)
	authed.GET("/topology", es.h.HandleTopology)
	authed.GET("/terraform", es.h.HandleTerraform)
	for _, kind := range handlers.ResourceKinds() {
		base := "/" + string(kind)
		authed.GET(base, es.h.HandleResourceList(kind))
		authed.GET(base+"/*", es.h.HandleResourceDetail(kind))
	}
}

// staticFS serves STATIC_DIR when set and the embedded assets otherwise.
func (es *EchoServer) staticFS() fs.FS {
	if dir := strings.TrimSpace(es.h.Cfg.StaticDir); dir != "" {
		return os.DirFS(dir)
	}
	return web.Static()
}

// Handler is the full middleware chain, sessions outermost.
func (es *EchoServer) Handler() http.Handler {
	return es.h.Sessions.LoadAndSave(es.e)
}

// Start listens on addr until Shutdown is called. It returns nil once the
// server has been shut down, including when Shutdown ran first.
func (es *EchoServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if err := es.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (es *EchoServer) Shutdown(ctx context.Context) error {
	return es.srv.Shutdown(ctx)
}

// requestID reuses a sane inbound X-Request-ID or mints one.
func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := strings.TrimSpace(c.Request().Header.Get(echo.HeaderXRequestID))
		if id == "" || len(id) > maxRequestIDLen || strings.ContainsAny(id, "\r\n") {
			id = uuid.NewString()
		}
		c.Set(handlers.ContextKeyRequestID, id)
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		return next(c)
	}
}

func (es *EchoServer) httpErrorHandler(c *echo.Context, err error) {
	if err == nil {
		return
	}

	status := httpStatusFromError(err)
	switch {
	case status == http.StatusNotFound:
		_ = handlers.RenderNotFound(c)
	case status >= http.StatusInternalServerError:
		_ = es.h.RenderError(c, err)
	default:
		_ = c.String(status, http.StatusText(status))
	}
}

func httpStatusFromError(err error) int {
	var coder interface{ StatusCode() int }
	if errors.As(err, &coder) {
		if status := coder.StatusCode(); status >= 400 && status <= 599 {
			return status
		}
	}
	return http.StatusInternalServerError
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/infralens/infralens/internal/auth"
	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/http/authn"
	"github.com/infralens/infralens/internal/http/viewmodels"
	"github.com/infralens/infralens/internal/querycache"
	"github.com/labstack/echo/v5"
)

var testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

// fakeBackend records how often each path was requested.
type fakeBackend struct {
	mux   *http.ServeMux
	calls map[string]*atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{mux: http.NewServeMux(), calls: map[string]*atomic.Int32{}}
}

func (f *fakeBackend) handle(pattern string, fn http.HandlerFunc) {
	counter := &atomic.Int32{}
	f.calls[pattern] = counter
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		counter.Add(1)
		fn(w, r)
	})
}

func (f *fakeBackend) json(pattern string, status int, body any) {
	f.handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

func (f *fakeBackend) count(pattern string) int {
	if c, ok := f.calls[pattern]; ok {
		return int(c.Load())
	}
	return 0
}

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func newTestHandlers(t *testing.T, fb *fakeBackend) *Handlers {
	t.Helper()
	srv := httptest.NewServer(fb.mux)
	t.Cleanup(srv.Close)

	client, err := backend.New(backend.Options{BaseURL: srv.URL, Timeout: 5 * time.Second, RetryMax: -1})
	if err != nil {
		t.Fatalf("backend.New() error = %v", err)
	}
	return &Handlers{
		Backend:  client,
		Cache:    querycache.New(querycache.Options{StaleTime: time.Minute, GCTime: 10 * time.Minute}),
		Sessions: scs.New(),
		Now:      func() time.Time { return testNow },
	}
}

// signIn attaches a loaded session and a signed-in principal to c, the way
// RequireAuth would.
func signIn(t *testing.T, h *Handlers, c *echo.Context, username string) {
	t.Helper()
	ctx, err := h.Sessions.Load(c.Request().Context(), "")
	if err != nil {
		t.Fatalf("sessions.Load() error = %v", err)
	}
	p := auth.Principal{Username: username, Token: "tok-" + username, Method: auth.MethodPassword}
	if err := authn.StorePrincipal(ctx, h.Sessions, p); err != nil {
		t.Fatalf("StorePrincipal() error = %v", err)
	}
	ctx = backend.WithToken(ctx, p.Token)
	c.SetRequest(c.Request().WithContext(ctx))
	c.Set(authn.ContextKeyAuthConfig, auth.Config{LocalAuthEnabled: true})
	c.Set(authn.ContextKeyPrincipal, p)
}

func newHXContext(method, target, hxTarget string) (*echo.Context, *httptest.ResponseRecorder) {
	c, rec := newTestContext(method, target)
	c.Request().Header.Set("HX-Request", "true")
	if hxTarget != "" {
		c.Request().Header.Set("HX-Target", hxTarget)
	}
	return c, rec
}

func newFormContext(target string, form url.Values) (*echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// flashToast decodes the toast cookie set on rec, if any.
func flashToast(t *testing.T, rec *httptest.ResponseRecorder) *viewmodels.ToastViewData {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name != flashToastCookieName || cookie.Value == "" {
			continue
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)
		c := echo.New().NewContext(req, httptest.NewRecorder())
		return popFlashToast(c)
	}
	return nil
}

func assertBodyContains(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Fatalf("body missing %q:\n%s", w, body)
		}
	}
}

func assertBodyNotContains(t *testing.T, body string, unwanted ...string) {
	t.Helper()
	for _, w := range unwanted {
		if strings.Contains(body, w) {
			t.Fatalf("body unexpectedly contains %q:\n%s", w, body)
		}
	}
}

func statusSummary() backend.StatusSummary {
	refreshed := testNow.Add(-3 * time.Minute)
	return backend.StatusSummary{
		LastRefreshedAt: &refreshed,
		Sources: []backend.SourceStatus{
			{Name: "cyberark", Healthy: false, Message: "token expired"},
			{Name: "aws", Healthy: true, LastSyncAt: &refreshed},
		},
		Counts: map[string]int{"ec2-instances": 12, "cyberark-safes": 4},
	}
}

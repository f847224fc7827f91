package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/infralens/infralens/internal/auth/providers"
	"github.com/infralens/infralens/internal/http/authn"
	"github.com/labstack/echo/v5"
)

func loadSession(t *testing.T, h *Handlers, c *echo.Context) {
	t.Helper()
	ctx, err := h.Sessions.Load(c.Request().Context(), "")
	if err != nil {
		t.Fatalf("sessions.Load() error = %v", err)
	}
	c.SetRequest(c.Request().WithContext(ctx))
}

func newAuthBackend(cfg map[string]any) *fakeBackend {
	fb := newFakeBackend()
	fb.json("GET /api/auth/config", http.StatusOK, cfg)
	fb.handle("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		_ = jsonDecode(r, &body)
		switch {
		case body.Password == "down":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"db down"}`))
		case body.Password != "s3cret":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"bad credentials"}`))
		default:
			_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":3600,"user":{"username":"alice","display_name":"Alice","roles":["admin"]}}`))
		}
	})
	fb.handle("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer oidc-tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"username":"carol","email":"carol@example.com"}`))
	})
	return fb
}

func TestHandleLogoutPostRedirectsNormallyForNonHTMX(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, newFakeBackend())
	c, rec := newTestContext(http.MethodPost, "http://example.com/logout")
	signIn(t, h, c, "alice")

	if err := h.HandleLogoutPost(c); err != nil {
		t.Fatalf("HandleLogoutPost() error = %v", err)
	}

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != "/login" {
		t.Fatalf("Location = %q, want %q", got, "/login")
	}
	vary := parseVaryHeader(rec.Header().Get("Vary"))
	if vary["hx-request"] != 1 {
		t.Fatalf("Vary header missing hx-request: %v", vary)
	}
	if token := h.Sessions.GetString(c.Request().Context(), authn.SessionKeyToken); token != "" {
		t.Fatalf("session token = %q after logout", token)
	}
}

func TestHandleLogoutPostUsesHXRedirectForHTMX(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, newFakeBackend())
	c, rec := newHXContext(http.MethodPost, "http://example.com/logout", "")
	signIn(t, h, c, "alice")

	if err := h.HandleLogoutPost(c); err != nil {
		t.Fatalf("HandleLogoutPost() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/login" {
		t.Fatalf("HX-Redirect = %q, want %q", got, "/login")
	}
	if got := rec.Header().Get("Location"); got != "" {
		t.Fatalf("Location = %q, want empty", got)
	}
}

func TestHandleLoginGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		cfg          map[string]any
		signedIn     bool
		target       string
		wantStatus   int
		wantLocation string
		want         []string
		unwanted     []string
	}{
		{
			name:       "local and sso",
			cfg:        map[string]any{"local_auth_enabled": true, "oidc_enabled": true, "oidc_login_url": "https://idp.example.com/start"},
			target:     "/login?next=%2Fvpcs",
			wantStatus: http.StatusOK,
			want: []string{
				`action="/login"`,
				`name="next" value="/vpcs"`,
				`href="https://idp.example.com/start?next=%2Fvpcs"`,
			},
		},
		{
			name:       "sso only",
			cfg:        map[string]any{"oidc_enabled": true, "oidc_login_url": "https://idp.example.com/start"},
			target:     "/login",
			wantStatus: http.StatusOK,
			want:       []string{"Sign in with SSO"},
			unwanted:   []string{`name="password"`},
		},
		{
			name:         "already signed in",
			cfg:          map[string]any{"local_auth_enabled": true},
			signedIn:     true,
			target:       "/login?next=%2Fterraform",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/terraform",
		},
		{
			name:         "no method configured",
			cfg:          map[string]any{},
			target:       "/login",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/",
		},
		{
			name:       "foreign next dropped",
			cfg:        map[string]any{"local_auth_enabled": true},
			target:     "/login?next=https%3A%2F%2Fevil.example.com",
			wantStatus: http.StatusOK,
			want:       []string{`name="next" value=""`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHandlers(t, newAuthBackend(tt.cfg))
			c, rec := newTestContext(http.MethodGet, tt.target)
			if tt.signedIn {
				signIn(t, h, c, "alice")
			} else {
				loadSession(t, h, c)
			}

			if err := h.HandleLoginGet(c); err != nil {
				t.Fatalf("HandleLoginGet() error = %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantLocation != "" {
				if got := rec.Header().Get("Location"); got != tt.wantLocation {
					t.Fatalf("Location = %q, want %q", got, tt.wantLocation)
				}
			}
			assertBodyContains(t, rec.Body.String(), tt.want...)
			assertBodyNotContains(t, rec.Body.String(), tt.unwanted...)
		})
	}
}

func TestHandleLoginGetShowsSpinnerWhileConfigUnavailable(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	fb.json("GET /api/auth/config", http.StatusInternalServerError, map[string]string{"error": "starting"})
	h := newTestHandlers(t, fb)

	c, rec := newTestContext(http.MethodGet, "/login")
	loadSession(t, h, c)
	if err := h.HandleLoginGet(c); err != nil {
		t.Fatalf("HandleLoginGet() error = %v", err)
	}
	assertBodyContains(t, rec.Body.String(), `class="spinner"`, `hx-get="/login"`)
	assertBodyNotContains(t, rec.Body.String(), `name="password"`)
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}
}

func TestHandleLoginPost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		password     string
		wantStatus   int
		wantLocation string
		wantMessage  string
		wantToken    string
	}{
		{name: "success", password: "s3cret", wantStatus: http.StatusSeeOther, wantLocation: "/vpcs?status=active", wantToken: "tok-1"},
		{name: "invalid", password: "nope", wantStatus: http.StatusOK, wantMessage: "Invalid username or password."},
		{name: "backend error", password: "down", wantStatus: http.StatusOK, wantMessage: "Sign-in is unavailable right now."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHandlers(t, newAuthBackend(map[string]any{"local_auth_enabled": true}))
			h.Passwords = providers.NewPasswordProvider(h.Backend)

			c, rec := newFormContext("/login", url.Values{
				"username": {"alice"},
				"password": {tt.password},
				"next":     {"/vpcs?status=active"},
			})
			loadSession(t, h, c)
			if err := h.HandleLoginPost(c); err != nil {
				t.Fatalf("HandleLoginPost() error = %v", err)
			}

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantLocation != "" {
				if got := rec.Header().Get("Location"); got != tt.wantLocation {
					t.Fatalf("Location = %q, want %q", got, tt.wantLocation)
				}
			}
			if tt.wantMessage != "" {
				assertBodyContains(t, rec.Body.String(), tt.wantMessage, `value="alice"`)
			}
			ctx := c.Request().Context()
			if got := h.Sessions.GetString(ctx, authn.SessionKeyToken); got != tt.wantToken {
				t.Fatalf("session token = %q, want %q", got, tt.wantToken)
			}
			if tt.wantToken != "" {
				if got := h.Sessions.GetString(ctx, authn.SessionKeyDisplayName); got != "Alice" {
					t.Fatalf("display name = %q", got)
				}
			}
		})
	}
}

func TestHandleLoginPostRejectedWhenLocalAuthDisabled(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, newAuthBackend(map[string]any{"oidc_enabled": true, "oidc_login_url": "https://idp.example.com"}))
	h.Passwords = providers.NewPasswordProvider(h.Backend)

	c, rec := newFormContext("/login", url.Values{"username": {"alice"}, "password": {"s3cret"}})
	loadSession(t, h, c)
	if err := h.HandleLoginPost(c); err != nil {
		t.Fatalf("HandleLoginPost() error = %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if got := h.Sessions.GetString(c.Request().Context(), authn.SessionKeyToken); got != "" {
		t.Fatalf("session token = %q, want none", got)
	}
}

func TestHandleAuthCallback(t *testing.T) {
	t.Parallel()

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()

		h := newTestHandlers(t, newAuthBackend(map[string]any{"oidc_enabled": true}))
		h.Tokens = providers.NewTokenProvider(h.Backend)

		c, rec := newTestContext(http.MethodGet, "/auth/callback?token=oidc-tok&expires_in=600&next=%2Faccess-mapping")
		loadSession(t, h, c)
		if err := h.HandleAuthCallback(c); err != nil {
			t.Fatalf("HandleAuthCallback() error = %v", err)
		}
		if got := rec.Header().Get("Location"); got != "/access-mapping" {
			t.Fatalf("Location = %q", got)
		}
		ctx := c.Request().Context()
		if got := h.Sessions.GetString(ctx, authn.SessionKeyUsername); got != "carol" {
			t.Fatalf("username = %q", got)
		}
		if got := h.Sessions.GetString(ctx, authn.SessionKeyToken); got != "oidc-tok" {
			t.Fatalf("token = %q", got)
		}
	})

	t.Run("rejected token", func(t *testing.T) {
		t.Parallel()

		h := newTestHandlers(t, newAuthBackend(map[string]any{"oidc_enabled": true}))
		h.Tokens = providers.NewTokenProvider(h.Backend)

		c, rec := newTestContext(http.MethodGet, "/auth/callback?token=forged&next=%2Fvpcs")
		loadSession(t, h, c)
		if err := h.HandleAuthCallback(c); err != nil {
			t.Fatalf("HandleAuthCallback() error = %v", err)
		}
		if got := rec.Header().Get("Location"); got != "/login?next=%2Fvpcs" {
			t.Fatalf("Location = %q", got)
		}
		if toast := flashToast(t, rec); toast == nil || toast.Category != "error" {
			t.Fatalf("toast = %+v, want error", toast)
		}
	})
}

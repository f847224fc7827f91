package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/infralens/infralens/internal/filters"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "ftp://example.com", "::nope"} {
		if _, err := New(Options{BaseURL: raw}); err == nil {
			t.Fatalf("New(%q) expected error", raw)
		}
	}
}

func TestListEC2InstancesSendsFilterAndBearerToken(t *testing.T) {
	t.Parallel()

	var gotQuery, gotAuth, gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		writeJSON(t, w, http.StatusOK, map[string]any{
			"items": []map[string]any{{
				"id":            "i-0abc",
				"name":          "web-1",
				"status":        "active",
				"instance_type": "t3.micro",
				"tf_managed":    true,
			}},
			"total":     1,
			"page":      1,
			"page_size": 50,
		})
	}))

	managed := true
	params := ListParams{
		Filter: filters.ListFilter{}.WithStatus("active").WithSearch("web").WithTFManaged(&managed),
		Page:   2,
	}
	ctx := WithToken(context.Background(), "tok-123")
	page, err := c.ListEC2Instances(ctx, params)
	if err != nil {
		t.Fatalf("ListEC2Instances() error = %v", err)
	}

	if gotPath != "/api/aws/ec2/instances" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotQuery != "page=2&search=web&status=active&tf_managed=true" {
		t.Fatalf("query = %q", gotQuery)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "i-0abc" || !page.Items[0].TFManaged {
		t.Fatalf("items = %+v", page.Items)
	}
	if page.Items[0].InstanceType != "t3.micro" {
		t.Fatalf("instance type = %q", page.Items[0].InstanceType)
	}
}

func TestNoTokenNoAuthorizationHeader(t *testing.T) {
	t.Parallel()

	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(t, w, http.StatusOK, map[string]any{"local_auth_enabled": true})
	}))

	cfg, err := c.AuthConfig(context.Background())
	if err != nil {
		t.Fatalf("AuthConfig() error = %v", err)
	}
	if !cfg.LocalAuthEnabled || cfg.OIDCEnabled {
		t.Fatalf("cfg = %+v", cfg)
	}
	if gotAuth != "" {
		t.Fatalf("Authorization = %q, want empty", gotAuth)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, check: func(err error) bool { return errors.Is(err, ErrUnauthorized) }},
		{name: "not_found", status: http.StatusNotFound, check: func(err error) bool { return errors.Is(err, ErrNotFound) }},
		{name: "conflict", status: http.StatusConflict, body: `{"detail":"refresh already running"}`, check: func(err error) bool {
			var he *HTTPError
			return errors.As(err, &he) && he.StatusCode == http.StatusConflict && he.Message == "refresh already running"
		}},
		{name: "server_error", status: http.StatusInternalServerError, body: "boom", check: func(err error) bool {
			return IsStatus(err, http.StatusInternalServerError)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			_, err := c.GetVPC(context.Background(), "vpc-1")
			if err == nil || !tt.check(err) {
				t.Fatalf("GetVPC() error = %v", err)
			}
		})
	}
}

func TestGetEscapesID(t *testing.T) {
	t.Parallel()

	var gotRaw string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRaw = r.URL.EscapedPath()
		writeJSON(t, w, http.StatusOK, map[string]any{"id": "Prod Safe/1", "status": "active"})
	}))

	safe, err := c.GetSafe(context.Background(), "Prod Safe/1")
	if err != nil {
		t.Fatalf("GetSafe() error = %v", err)
	}
	if gotRaw != "/api/cyberark/safes/Prod%20Safe%2F1" {
		t.Fatalf("escaped path = %q", gotRaw)
	}
	if safe.ID != "Prod Safe/1" {
		t.Fatalf("safe id = %q", safe.ID)
	}
}

func TestGetEmptyIDIsNotFound(t *testing.T) {
	t.Parallel()

	c, err := New(Options{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.GetRDSInstance(context.Background(), "  "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRDSInstance(blank) error = %v, want ErrNotFound", err)
	}
}

func TestReadsRetryOnceOnGatewayErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"refresh_in_progress": false})
	}))

	if _, err := c.Status(context.Background()); err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestReadsGiveUpAfterSingleRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.Status(context.Background())
	if !IsStatus(err, http.StatusBadGateway) {
		t.Fatalf("Status() error = %v, want 502", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestWritesAreNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	if _, err := c.TriggerRefresh(context.Background()); !IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("TriggerRefresh() error = %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestLoginPostsCredentials(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["username"] != "alice" || body["password"] != "s3cret" {
			t.Errorf("body = %v", body)
		}
		writeJSON(t, w, http.StatusOK, map[string]any{
			"access_token": "jwt",
			"user":         map[string]any{"username": "alice"},
		})
	}))

	res, err := c.Login(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.AccessToken != "jwt" || res.User.Username != "alice" {
		t.Fatalf("res = %+v", res)
	}
}

func TestAccessQueryValues(t *testing.T) {
	t.Parallel()

	q := AccessQuery{User: " alice ", TargetType: "EC2", AccessType: "bogus"}
	if got := q.Values().Encode(); got != "target_type=ec2&user=alice" {
		t.Fatalf("Values() = %q", got)
	}
}

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]Status{
		"running":    StatusActive,
		"available":  StatusActive,
		"STOPPED":    StatusInactive,
		"pending":    StatusTransitioning,
		"backing-up": StatusTransitioning,
		"failed":     StatusError,
		"":           StatusUnknown,
		"weird":      StatusUnknown,
	}
	for raw, want := range tests {
		if got := NormalizeStatus(raw); got != want {
			t.Fatalf("NormalizeStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestListParamsValuesOmitsDefaults(t *testing.T) {
	t.Parallel()

	p := ListParams{Page: 1, PageSize: DefaultPageSize}
	if got := p.Encode(); got != "" {
		t.Fatalf("Encode() = %q, want empty", got)
	}
	p = ListParams{Page: 3, PageSize: 25}
	if got := p.Encode(); got != "page=3&page_size=25" {
		t.Fatalf("Encode() = %q", got)
	}
}

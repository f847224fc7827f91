package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"
)

func newTestContext(method, target string) (*echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

// parseVaryHeader counts lowercased Vary tokens.
func parseVaryHeader(value string) map[string]int {
	out := map[string]int{}
	for _, part := range strings.Split(value, ",") {
		if token := strings.ToLower(strings.TrimSpace(part)); token != "" {
			out[token]++
		}
	}
	return out
}

func TestAddVary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing []string
		add      []string
		want     string
	}{
		{name: "empty", add: []string{"hx-request"}, want: "Hx-Request"},
		{name: "merges and dedups", existing: []string{"Accept-Encoding"}, add: []string{"HX-Request", "hx-target", "accept-encoding"}, want: "Accept-Encoding, Hx-Request, Hx-Target"},
		{name: "splits existing lines", existing: []string{"Accept-Encoding, Cookie", "Cookie"}, add: []string{"HX-Request"}, want: "Accept-Encoding, Cookie, Hx-Request"},
		{name: "keeps wildcard", existing: []string{"*"}, add: []string{"HX-Request"}, want: "*"},
		{name: "wildcard added", existing: []string{"Cookie"}, add: []string{"*"}, want: "*"},
		{name: "blank names ignored", add: []string{" ", ""}, want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, _ := newTestContext(http.MethodGet, "/")
			for _, v := range tc.existing {
				c.Response().Header().Add(echo.HeaderVary, v)
			}
			addVary(c, tc.add...)
			if got := c.Response().Header().Get(echo.HeaderVary); got != tc.want {
				t.Fatalf("Vary = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWantsFragment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hx       string
		target   string
		fragment string
		want     bool
	}{
		{name: "plain request", fragment: "vpcs-results", want: false},
		{name: "htmx without target", hx: "true", fragment: "vpcs-results", want: false},
		{name: "htmx other target", hx: "true", target: "toast", fragment: "vpcs-results", want: false},
		{name: "htmx matching target", hx: "true", target: "vpcs-results", fragment: "vpcs-results", want: true},
		{name: "hash prefixed target", hx: "TRUE", target: "#vpcs-results", fragment: "vpcs-results", want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, rec := newTestContext(http.MethodGet, "/vpcs")
			if tc.hx != "" {
				c.Request().Header.Set("HX-Request", tc.hx)
			}
			if tc.target != "" {
				c.Request().Header.Set("HX-Target", tc.target)
			}
			if got := wantsFragment(c, tc.fragment); got != tc.want {
				t.Fatalf("wantsFragment() = %v, want %v", got, tc.want)
			}
			if got := rec.Header().Get(echo.HeaderVary); got != "Hx-Request, Hx-Target" {
				t.Fatalf("Vary = %q", got)
			}
		})
	}
}

func TestRedirect(t *testing.T) {
	t.Parallel()

	c, rec := newTestContext(http.MethodPost, "/refresh")
	if err := redirect(c, "/vpcs?region=eu-west-1"); err != nil {
		t.Fatalf("redirect() error = %v", err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/vpcs?region=eu-west-1" {
		t.Fatalf("got %d Location=%q", rec.Code, rec.Header().Get("Location"))
	}

	c, rec = newHXContext(http.MethodPost, "/refresh", "")
	if err := redirect(c, "/vpcs"); err != nil {
		t.Fatalf("redirect() error = %v", err)
	}
	if rec.Code != http.StatusOK || rec.Header().Get("HX-Redirect") != "/vpcs" {
		t.Fatalf("got %d HX-Redirect=%q", rec.Code, rec.Header().Get("HX-Redirect"))
	}
	if rec.Header().Get("Location") != "" {
		t.Fatal("htmx redirect should not set Location")
	}
}

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStartServer_DisabledAddresses(t *testing.T) {
	t.Parallel()

	for _, addr := range []string{"", "  ", "off", "Disabled", "false"} {
		srv, errCh := StartServer(context.Background(), addr)
		if srv != nil || errCh != nil {
			t.Fatalf("StartServer(%q) should be disabled", addr)
		}
	}
}

func TestHandlerExposesDashboardMetrics(t *testing.T) {
	t.Parallel()

	LoginAttemptsTotal.WithLabelValues("password", "metrics-test").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `infralens_login_attempts_total{method="password",outcome="metrics-test"} 1`) {
		t.Fatalf("metrics output missing login counter:\n%s", body)
	}

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

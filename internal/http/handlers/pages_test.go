package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/infralens/infralens/internal/config"
)

func TestHandleDashboardRendersCountsAndSources(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	fb.json("GET /api/status", http.StatusOK, statusSummary())
	h := newTestHandlers(t, fb)

	c, rec := newTestContext(http.MethodGet, "/")
	signIn(t, h, c, "alice")
	if err := h.HandleDashboard(c); err != nil {
		t.Fatalf("HandleDashboard() error = %v", err)
	}

	body := rec.Body.String()
	assertBodyContains(t, body,
		`href="/ec2-instances"`,
		">12<",
		"Unhealthy",
		"token expired",
		`data-tier="fresh"`,
		"Last refreshed 3 minutes ago",
	)
	if strings.Index(body, ">aws<") > strings.Index(body, ">cyberark<") {
		t.Fatal("sources should be sorted by name")
	}
	if got := fb.count("GET /api/status"); got != 1 {
		t.Fatalf("status calls = %d, want 1 shared by dashboard and freshness", got)
	}
}

func TestHandleDashboardStatusUnavailable(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	fb.json("GET /api/status", http.StatusInternalServerError, map[string]string{"error": "down"})
	h := newTestHandlers(t, fb)

	c, rec := newTestContext(http.MethodGet, "/")
	signIn(t, h, c, "alice")
	if err := h.HandleDashboard(c); err != nil {
		t.Fatalf("HandleDashboard() error = %v", err)
	}
	assertBodyContains(t, rec.Body.String(), "Error loading status summary", "Status unavailable")
}

func TestHandleFreshnessRendersFragment(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	summary := statusSummary()
	summary.RefreshInProgress = true
	fb.json("GET /api/status", http.StatusOK, summary)
	h := newTestHandlers(t, fb)

	c, rec := newHXContext(http.MethodGet, "/status/freshness", "freshness")
	signIn(t, h, c, "alice")
	if err := h.HandleFreshness(c); err != nil {
		t.Fatalf("HandleFreshness() error = %v", err)
	}

	body := strings.TrimSpace(rec.Body.String())
	if !strings.HasPrefix(body, `<div id="freshness"`) {
		t.Fatalf("expected freshness fragment, got:\n%s", body)
	}
	assertBodyContains(t, body, `hx-trigger="every 30s"`, "Refreshing…")
	assertBodyNotContains(t, body, "<main")
}

func TestHandleTopologyRendersTree(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	var gotRegion string
	fb.handle("GET /api/topology", func(w http.ResponseWriter, r *http.Request) {
		gotRegion = r.URL.Query().Get("region")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"region":"us-east-1","vpcs":[{"id":"vpc-1","name":"core","cidr_block":"10.0.0.0/16","status":"active",
			"gateways":[{"id":"igw-1","type":"internet"}],
			"subnets":[{"id":"subnet-1","cidr_block":"10.0.1.0/24","availability_zone":"us-east-1a","public":true,
				"instances":[{"id":"i-1","name":"web-1","kind":"ec2","status":"active"},{"id":"orders","kind":"rds","status":"error"}]}]}]}`))
	})
	h := newTestHandlers(t, fb)
	h.Cfg = config.Config{Regions: []string{"us-east-1", "eu-west-1"}}

	c, rec := newTestContext(http.MethodGet, "/topology?region=us-east-1")
	signIn(t, h, c, "alice")
	if err := h.HandleTopology(c); err != nil {
		t.Fatalf("HandleTopology() error = %v", err)
	}

	if gotRegion != "us-east-1" {
		t.Fatalf("region = %q", gotRegion)
	}
	assertBodyContains(t, rec.Body.String(),
		`<option value="us-east-1" selected>`,
		"└── [V] ",
		`<a href="/vpcs/vpc-1">core</a>`,
		`<a href="/rds-instances/orders">orders</a>`,
		"[G] ",
		"EC2 instances",
	)
}

func TestHandleTopologyEmptyAndError(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	fb.handle("GET /api/topology", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("region") == "broken-1" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"vpcs":[]}`))
	})
	h := newTestHandlers(t, fb)

	for target, want := range map[string]string{
		"/topology":                 "No VPCs found.",
		"/topology?region=broken-1": "Error loading topology",
	} {
		c, rec := newTestContext(http.MethodGet, target)
		signIn(t, h, c, "alice")
		if err := h.HandleTopology(c); err != nil {
			t.Fatalf("HandleTopology(%s) error = %v", target, err)
		}
		assertBodyContains(t, rec.Body.String(), want)
	}
}

func TestHandleTerraformRendersStatesAndDrift(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	fb.json("GET /api/terraform/states", http.StatusOK, []map[string]any{
		{"source": "s3://tf/prod.tfstate", "backend": "s3", "serial": 42, "resource_count": 17},
	})
	var gotQuery string
	fb.handle("GET /api/terraform/drift", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"address":"aws_instance.web","resource_type":"aws_instance","resource_id":"i-1","drift_type":"modified","details":"instance_type changed"},
			{"address":"aws_s3_bucket.logs","resource_type":"aws_s3_bucket","drift_type":"deleted"}]}`))
	})
	h := newTestHandlers(t, fb)

	c, rec := newTestContext(http.MethodGet, "/terraform?region=us-east-1")
	signIn(t, h, c, "alice")
	if err := h.HandleTerraform(c); err != nil {
		t.Fatalf("HandleTerraform() error = %v", err)
	}

	if gotQuery != "region=us-east-1" {
		t.Fatalf("drift query = %q", gotQuery)
	}
	assertBodyContains(t, rec.Body.String(),
		"s3://tf/prod.tfstate",
		"<td>42</td>",
		"aws_instance.web",
		"instance_type changed",
		"aws_s3_bucket.logs",
	)
}

func TestHandleTerraformErrorsAreIndependent(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	fb.json("GET /api/terraform/states", http.StatusInternalServerError, map[string]string{"error": "boom"})
	fb.json("GET /api/terraform/drift", http.StatusOK, map[string]any{"items": []any{}})
	h := newTestHandlers(t, fb)

	c, rec := newTestContext(http.MethodGet, "/terraform")
	signIn(t, h, c, "alice")
	if err := h.HandleTerraform(c); err != nil {
		t.Fatalf("HandleTerraform() error = %v", err)
	}
	assertBodyContains(t, rec.Body.String(), "Error loading Terraform state files", "No drift detected.")
}

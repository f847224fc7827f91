package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/infralens/infralens/internal/filters"
	"github.com/infralens/infralens/internal/http/viewmodels"
	"golang.org/x/net/html"
)

const debouncedSearchTrigger = "input changed delay:400ms from:input[name='search'], search from:input[name='search'], change from:select"

func renderViewComponent(t *testing.T, component templ.Component) string {
	t.Helper()

	var buf bytes.Buffer
	if err := component.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render component: %v", err)
	}
	return buf.String()
}

func TestResourceListPageUsesDebouncedHTMXFilters(t *testing.T) {
	t.Parallel()

	kinds := []struct {
		basePath  string
		resultsID string
	}{
		{basePath: "/ec2-instances", resultsID: "ec2-instances-results"},
		{basePath: "/cyberark-safes", resultsID: "cyberark-safes-results"},
	}
	for _, k := range kinds {
		t.Run(k.basePath, func(t *testing.T) {
			t.Parallel()
			html := renderViewComponent(t, ResourceListPage(viewmodels.ResourceListViewData{
				Title:     "Things",
				BasePath:  k.basePath,
				ResultsID: k.resultsID,
			}))
			assertContains(t, html, `hx-get="`+k.basePath+`"`)
			assertContains(t, html, `hx-target="#`+k.resultsID+`"`)
			assertContains(t, html, `hx-swap="outerHTML"`)
			assertContains(t, html, `hx-push-url="true"`)
			assertContains(t, html, `hx-trigger="`+debouncedSearchTrigger+`"`)
			assertContains(t, html, `id="`+k.resultsID+`"`)
		})
	}
}

func TestResourceListResultsFragmentHasNoFilterForm(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, ResourceListResults(viewmodels.ResourceListViewData{
		BasePath:     "/vpcs",
		ResultsID:    "vpcs-results",
		EmptyMessage: "No VPCs match these filters.",
	}))
	assertContains(t, html, `<div id="vpcs-results"`)
	assertContains(t, html, "No VPCs match these filters.")
	assertNotContains(t, html, "<form")
	assertNotContains(t, html, "<html")
}

func TestResourceListResultsRendersRowsAndPaging(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, ResourceListResults(viewmodels.ResourceListViewData{
		BasePath:    "/ec2-instances",
		ResultsID:   "ec2-instances-results",
		Columns:     []string{"Type"},
		Rows:        []viewmodels.ResourceRow{{ID: "i-1", Name: "web-1", Status: "active", StatusClass: StatusBadgeClass("active"), Cells: []string{"t3.micro"}, TFManaged: true, DetailHref: "/ec2-instances/i-1", PanelHref: "/ec2-instances/i-1/panel"}},
		Page:        1,
		TotalPages:  2,
		Total:       60,
		ShowingFrom: 1,
		ShowingTo:   50,
		NextHref:    "/ec2-instances?page=2",
	}))
	assertContains(t, html, `data-id="i-1"`)
	assertContains(t, html, "t3.micro")
	assertContains(t, html, `href="/ec2-instances/i-1" hx-get="/ec2-instances/i-1/panel"`)
	assertContains(t, html, `>TF</span>`)
	assertContains(t, html, "Showing 1–50 of 60")
	assertContains(t, html, `href="/ec2-instances?page=2"`)
	assertNotContains(t, html, "Previous")
}

func TestResourceListEscapesSearchValue(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, ResourceListPage(viewmodels.ResourceListViewData{
		BasePath:  "/vpcs",
		ResultsID: "vpcs-results",
		Filter:    viewmodels.ResourceFilterView{Search: `"><script>alert(1)</script>`},
	}))
	assertNotContains(t, html, "<script>alert(1)</script>")
}

func TestResourcePanelStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data viewmodels.ResourcePanelViewData
		want string
	}{
		{
			name: "error",
			data: viewmodels.ResourcePanelViewData{Singular: "EC2 instance", ErrorMessage: "Error loading EC2 instance"},
			want: "Error loading EC2 instance",
		},
		{
			name: "not_found",
			data: viewmodels.ResourcePanelViewData{Singular: "RDS instance", NotFound: true},
			want: "RDS instance not found",
		},
		{
			name: "fields",
			data: viewmodels.ResourcePanelViewData{
				Singular: "VPC",
				Name:     "main",
				Status:   "active",
				Fields:   []viewmodels.Field{{Label: "CIDR", Value: "10.0.0.0/16"}, {Label: "Region", Value: ""}},
			},
			want: "<dd>10.0.0.0/16</dd>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assertContains(t, renderViewComponent(t, ResourcePanel(tt.data)), tt.want)
		})
	}
}

func TestLayoutEnablesGlobalHTMXBoost(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, Layout(viewmodels.LayoutData{
		Title:     "Overview",
		CSRFToken: "csrf-token-123",
	}))

	assertContains(t, html, `hx-boost="true"`)
	assertContains(t, html, `X-CSRF-Token`)
	assertContains(t, html, `csrf-token-123`)
}

func TestLayoutLogoutFormOptsOutOfHTMXBoost(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, Layout(viewmodels.LayoutData{
		Title:       "Overview",
		CSRFToken:   "csrf-token-123",
		UserName:    "alice",
		AuthEnabled: true,
	}))

	assertContains(t, html, `form method="post" action="/logout" hx-boost="false"`)
	assertContains(t, html, "alice")
}

func TestLayoutHidesUserMenuWithoutAuth(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, Layout(viewmodels.LayoutData{Title: "Overview"}))
	assertNotContains(t, html, `action="/logout"`)
}

func TestLayoutRendersChildrenAndActiveNav(t *testing.T) {
	t.Parallel()

	out := renderViewComponent(t, DashboardPage(viewmodels.DashboardViewData{
		Layout: viewmodels.LayoutData{
			Title:      "Overview",
			ActivePath: "/vpcs",
			Nav: []viewmodels.NavSection{{
				Label: "AWS",
				Items: []viewmodels.NavItem{{Label: "VPCs", Href: "/vpcs", Active: true}, {Label: "Subnets", Href: "/subnets"}},
			}},
		},
		Cards: []viewmodels.DashboardCard{{Label: "VPCs", Count: 3, Href: "/vpcs"}},
	}))

	assertContains(t, out, `<a href="/vpcs" class="active" aria-current="page">VPCs</a>`)
	assertContains(t, out, `<a href="/subnets">Subnets</a>`)
	assertContains(t, out, `<span class="card-count">3</span>`)

	doc, err := html.Parse(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if findByID(doc, "content") == nil {
		t.Fatal("missing #content")
	}
}

func TestFreshnessIndicatorPollsOnTick(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, FreshnessIndicator(viewmodels.FreshnessViewData{
		Label:       "12 minutes ago",
		Tier:        "stale",
		TickSeconds: 30,
	}))
	assertContains(t, html, `id="freshness"`)
	assertContains(t, html, `hx-get="/status/freshness"`)
	assertContains(t, html, `hx-trigger="every 30s"`)
	assertContains(t, html, `data-tier="stale"`)
	assertContains(t, html, "Last refreshed 12 minutes ago")
}

func TestAccessMappingUsesDebouncedUserFilter(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, AccessMappingPage(viewmodels.AccessMappingViewData{
		Graph: viewmodels.AccessGraphViewData{EmptyMessage: "No access paths found."},
	}))
	assertContains(t, html, `hx-target="#access-graph"`)
	assertContains(t, html, `delay:400ms from:input[name='user']`)
	assertContains(t, html, `id="access-graph"`)
	assertContains(t, html, "No access paths found.")
}

func TestAccessGraphNodeToggle(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, AccessGraph(viewmodels.AccessGraphViewData{
		Columns: []viewmodels.AccessColumn{{
			Title: "Roles",
			Nodes: []viewmodels.AccessNodeItem{{
				ID:          "role:admin",
				DOMID:       SafeID("node-", "role:admin"),
				Kind:        "role",
				Label:       "admin",
				Collapsible: true,
				Collapsed:   true,
				ToggleHref:  "/access-mapping",
				Badges:      []viewmodels.AccessBadge{{Kind: "targets", Label: "targets", Count: 2}},
			}},
		}},
	}))
	assertContains(t, html, `id="node-role-admin"`)
	assertContains(t, html, `aria-expanded="false"`)
	assertContains(t, html, `data-badge="targets">2 targets</span>`)
}

func TestAccessGraphBindsCollapsedIDsToFilterForm(t *testing.T) {
	t.Parallel()

	page := renderViewComponent(t, AccessMappingPage(viewmodels.AccessMappingViewData{
		Graph: viewmodels.AccessGraphViewData{
			Collapsed: []string{"role:admin", "user:alice"},
			Columns:   []viewmodels.AccessColumn{{Title: "Users", Nodes: []viewmodels.AccessNodeItem{{ID: "user:alice", DOMID: "node-user-alice", Kind: "user", Label: "alice"}}}},
			Edges:     []viewmodels.AccessEdgeItem{{From: "user:alice", To: "role:admin", AccessType: "standing", Paths: 2, Users: []string{"alice", "bob"}}},
		},
	}))
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if form := findByID(doc, AccessFilterFormID); form == nil || form.Data != "form" {
		t.Fatalf("missing form #%s", AccessFilterFormID)
	}
	graph := findByID(doc, "access-graph")
	if graph == nil {
		t.Fatal("missing #access-graph")
	}
	var got []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" && attrValue(n, "name") == "collapsed" {
			if form := attrValue(n, "form"); form != AccessFilterFormID {
				t.Fatalf("collapsed input form=%q want %q", form, AccessFilterFormID)
			}
			got = append(got, attrValue(n, "value"))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(graph)
	if strings.Join(got, ",") != "role:admin,user:alice" {
		t.Fatalf("collapsed inputs = %v", got)
	}
	assertContains(t, page, "<td>alice, bob</td>")
}

func TestTopologyRendersTree(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, TopologyPage(viewmodels.TopologyViewData{
		Lines: []viewmodels.TopologyLine{
			{Prefix: "└── ", Indicator: "[V]", Label: "main"},
			{Prefix: "    └── ", Indicator: "[S]", Label: "public-a", Detail: "10.0.1.0/24"},
		},
	}))
	assertContains(t, html, "└── [V] main")
	assertContains(t, html, "    └── [S] public-a")
}

func TestLoginPageShowsEnabledMethods(t *testing.T) {
	t.Parallel()

	local := renderViewComponent(t, LoginPage(viewmodels.LoginViewData{LocalAuthEnabled: true, CSRFToken: "tok", Next: "/vpcs"}))
	assertContains(t, local, `action="/login"`)
	assertContains(t, local, `name="next" value="/vpcs"`)
	assertNotContains(t, local, "Sign in with SSO")

	sso := renderViewComponent(t, LoginPage(viewmodels.LoginViewData{OIDCEnabled: true, OIDCLoginURL: "https://idp.example/authorize"}))
	assertContains(t, sso, `href="https://idp.example/authorize"`)
	assertNotContains(t, sso, `action="/login"`)
}

func TestAuthLoadingPageRendersOnlySpinner(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, AuthLoadingPage(viewmodels.AuthLoadingViewData{RetryHref: "/vpcs", RetrySeconds: 2}))
	assertContains(t, html, `class="spinner"`)
	assertContains(t, html, `hx-trigger="every 2s"`)
	assertNotContains(t, html, "<nav")
}

func TestResourceListURL(t *testing.T) {
	t.Parallel()

	f := filters.ListFilter{}.WithStatus("active").WithSearch("web")
	if got, want := ResourceListURL("/ec2-instances", f, 2), "/ec2-instances?page=2&search=web&status=active"; got != want {
		t.Fatalf("ResourceListURL()=%q want %q", got, want)
	}
	if got := ResourceListURL("/ec2-instances", f.Clear(), 1); got != "/ec2-instances" {
		t.Fatalf("ResourceListURL(cleared)=%q", got)
	}
	if got, want := ResourcePanelURL("/cyberark-safes", "Prod Safe/1"), "/cyberark-safes/Prod%20Safe%2F1/panel"; got != want {
		t.Fatalf("ResourcePanelURL()=%q want %q", got, want)
	}
	if got, want := ResourceDetailURL("/cyberark-safes", " "), "/cyberark-safes"; got != want {
		t.Fatalf("ResourceDetailURL(blank)=%q want %q", got, want)
	}
}

func TestIsActivePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		active, target string
		want           bool
	}{
		{active: "/", target: "/", want: true},
		{active: "/vpcs", target: "/", want: false},
		{active: "/vpcs/vpc-1", target: "/vpcs", want: true},
		{active: "/vpcs-other", target: "/vpcs", want: false},
	}
	for _, tt := range tests {
		if got := IsActivePath(tt.active, tt.target); got != tt.want {
			t.Fatalf("IsActivePath(%q,%q)=%v want %v", tt.active, tt.target, got, tt.want)
		}
	}
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func assertContains(t *testing.T, content, want string) {
	t.Helper()
	if !strings.Contains(content, want) {
		t.Fatalf("expected rendered HTML to contain %q", want)
	}
}

func assertNotContains(t *testing.T, content, disallowed string) {
	t.Helper()
	if strings.Contains(content, disallowed) {
		t.Fatalf("expected rendered HTML to not contain %q", disallowed)
	}
}

func TestBadgeAndLabelHelpers(t *testing.T) {
	t.Parallel()

	if got := StatusBadgeClass(" Active "); !strings.Contains(got, "bg-emerald-100") {
		t.Fatalf("StatusBadgeClass(active) = %q", got)
	}
	if got := StatusBadgeClass("pending-reboot"); got != "badge-outline" {
		t.Fatalf("StatusBadgeClass(unknown) = %q", got)
	}
	if got := DriftBadgeClass("missing_in_state"); !strings.Contains(got, "text-sky-800") {
		t.Fatalf("DriftBadgeClass(missing_in_state) = %q", got)
	}
	if got := HealthBadgeClass(false); !strings.Contains(got, "bg-rose-100") {
		t.Fatalf("HealthBadgeClass(false) = %q", got)
	}

	humanize := map[string]string{
		"missing_in_aws": "Missing In Aws",
		"jit-policy":     "Jit Policy",
		"  ":             "—",
	}
	for in, want := range humanize {
		if got := HumanizeStatus(in); got != want {
			t.Fatalf("HumanizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
	if got := SafeID("node-", "role:arn:aws:iam::1:role/x"); got != "node-role-arn-aws-iam--1-role-x" {
		t.Fatalf("SafeID() = %q", got)
	}
}

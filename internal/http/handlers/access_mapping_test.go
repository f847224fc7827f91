package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/infralens/infralens/internal/accessgraph"
	"golang.org/x/net/html"
)

const accessMappingJSON = `{"users":[
 {"user_name":"alice","targets":[{"target_type":"ec2","target_id":"i-0abc","target_name":"web-1","paths":[
  {"access_type":"standing","steps":[
   {"entity_type":"user","entity_id":"alice"},
   {"entity_type":"role","entity_id":"r-admin","entity_name":"Admins"},
   {"entity_type":"safe","entity_id":"s-prod","entity_name":"Prod Safe"},
   {"entity_type":"ec2","entity_id":"i-0abc","entity_name":"web-1"}]},
  {"access_type":"jit","steps":[{"entity_type":"policy","entity_id":"p-jit","entity_name":"Break glass"}]}]}]},
 {"user_name":"bob","targets":[{"target_type":"rds","target_id":"orders-db","paths":[
  {"access_type":"standing","steps":[{"entity_type":"role","entity_id":"r-admin","entity_name":"Admins"}]}]}]}
]}`

func newAccessBackend() *fakeBackend {
	fb := newFakeBackend()
	fb.handle("GET /api/access-mapping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(accessMappingJSON))
	})
	return fb
}

func getAccessGraphFragment(t *testing.T, h *Handlers, target string) string {
	t.Helper()
	c, rec := newHXContext(http.MethodGet, target, "access-graph")
	signIn(t, h, c, "alice")
	if err := h.HandleAccessMapping(c); err != nil {
		t.Fatalf("HandleAccessMapping(%s) error = %v", target, err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	return rec.Body.String()
}

// toggleHref returns the toggle link of the node with the given id.
func toggleHref(t *testing.T, body, nodeID string) string {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("html.Parse() error = %v", err)
	}
	var href string
	var walk func(n *html.Node, inNode bool)
	walk = func(n *html.Node, inNode bool) {
		if n.Type == html.ElementNode {
			if n.Data == "li" && attr(n, "data-node-id") == nodeID {
				inNode = true
			}
			if inNode && n.Data == "a" && strings.Contains(attr(n, "class"), "node-toggle") {
				href = attr(n, "href")
				return
			}
		}
		for child := n.FirstChild; child != nil && href == ""; child = child.NextSibling {
			walk(child, inNode)
		}
	}
	walk(doc, false)
	if href == "" {
		t.Fatalf("no toggle link for %s in:\n%s", nodeID, body)
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func TestHandleAccessMappingCollapseThenExpandIsIdentical(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, newAccessBackend())
	roleID := accessgraph.NodeID(accessgraph.KindRole, "r-admin")

	expanded := getAccessGraphFragment(t, h, "/access-mapping")
	assertBodyContains(t, expanded, `data-node-id="safe:s-prod"`, `aria-expanded="true"`)

	collapseHref := toggleHref(t, expanded, roleID)
	collapsed := getAccessGraphFragment(t, h, collapseHref)
	assertBodyContains(t, collapsed,
		`data-node-id="`+roleID+`"`,
		`aria-expanded="false"`,
		`data-badge="targets">2 targets</span>`,
		`data-badge="safes">1 safe</span>`,
	)
	assertBodyNotContains(t, collapsed, `data-node-id="safe:s-prod"`)

	expandHref := toggleHref(t, collapsed, roleID)
	again := getAccessGraphFragment(t, h, expandHref)
	if diff := cmp.Diff(expanded, again); diff != "" {
		t.Fatalf("expand after collapse changed output (-want +got):\n%s", diff)
	}
}

func TestHandleAccessMappingFiltersByUserAndTargetType(t *testing.T) {
	t.Parallel()

	fb := newAccessBackend()
	h := newTestHandlers(t, fb)

	body := getAccessGraphFragment(t, h, "/access-mapping?user=ALI")
	assertBodyContains(t, body, `data-node-id="user:alice"`, "Clear filters")
	assertBodyNotContains(t, body, `data-node-id="user:bob"`)

	body = getAccessGraphFragment(t, h, "/access-mapping?user=nobody")
	assertBodyContains(t, body, "No access paths match this user.")

	body = getAccessGraphFragment(t, h, "/access-mapping?target_type=rds")
	assertBodyNotContains(t, body, `data-node-id="user:alice"`)
}

// formQuery collects the name/value pairs the form with the given id submits,
// including inputs outside it that name it in their form attribute.
func formQuery(t *testing.T, body, formID string) url.Values {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("html.Parse() error = %v", err)
	}
	values := url.Values{}
	found := false
	var walk func(n *html.Node, inForm bool)
	walk = func(n *html.Node, inForm bool) {
		if n.Type == html.ElementNode {
			if n.Data == "form" && attr(n, "id") == formID {
				found = true
				inForm = true
			}
			owned := inForm || attr(n, "form") == formID
			if n.Data == "input" && owned && attr(n, "name") != "" {
				values.Add(attr(n, "name"), attr(n, "value"))
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, inForm)
		}
	}
	walk(doc, false)
	if !found {
		t.Fatalf("no form #%s in:\n%s", formID, body)
	}
	return values
}

func TestHandleAccessMappingFilterKeepsCollapsedNodes(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, newAccessBackend())
	roleID := accessgraph.NodeID(accessgraph.KindRole, "r-admin")

	c, rec := newTestContext(http.MethodGet, "/access-mapping?collapsed="+url.QueryEscape(roleID)+"&user=ali")
	signIn(t, h, c, "alice")
	if err := h.HandleAccessMapping(c); err != nil {
		t.Fatalf("HandleAccessMapping() error = %v", err)
	}
	page := rec.Body.String()
	assertBodyContains(t, page,
		`<form id="access-filters"`,
		`<input type="hidden" name="collapsed" value="`+roleID+`" form="access-filters">`,
	)

	// Editing the filter submits the form, hidden inputs included.
	query := formQuery(t, page, "access-filters")
	if got := query[accessgraph.ParamCollapsed]; !cmp.Equal(got, []string{roleID}) {
		t.Fatalf("form collapsed = %v, want [%s]", got, roleID)
	}
	query.Set("access_type", "standing")
	fragment := getAccessGraphFragment(t, h, "/access-mapping?"+query.Encode())
	assertBodyContains(t, fragment,
		`data-node-id="`+roleID+`"`,
		`aria-expanded="false"`,
		`value="`+roleID+`" form="access-filters"`,
	)
	assertBodyNotContains(t, fragment, `data-node-id="safe:s-prod"`)

	// Expanding drops the hidden input again.
	expanded := getAccessGraphFragment(t, h, toggleHref(t, fragment, roleID))
	assertBodyContains(t, expanded, `data-node-id="safe:s-prod"`)
	assertBodyNotContains(t, expanded, `name="collapsed"`)
}

func TestHandleAccessMappingFullPageAndError(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend()
	fb.json("GET /api/access-mapping", http.StatusInternalServerError, map[string]string{"error": "boom"})
	h := newTestHandlers(t, fb)

	c, rec := newTestContext(http.MethodGet, "/access-mapping")
	signIn(t, h, c, "alice")
	if err := h.HandleAccessMapping(c); err != nil {
		t.Fatalf("HandleAccessMapping() error = %v", err)
	}
	assertBodyContains(t, rec.Body.String(), "<main", `hx-target="#access-graph"`, "Error loading access mapping")
}

func TestHandleAccessGraphJSON(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, newAccessBackend())
	c, rec := newTestContext(http.MethodGet, "/api/access-graph?collapsed=user:bob")
	signIn(t, h, c, "alice")
	if err := h.HandleAccessGraphJSON(c); err != nil {
		t.Fatalf("HandleAccessGraphJSON() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var view accessgraph.View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := accessgraph.Legend{TotalUsers: 2, TotalTargets: 2, TotalStandingPaths: 2, TotalJITPaths: 1}
	if diff := cmp.Diff(want, view.Legend); diff != "" {
		t.Fatalf("legend mismatch (-want +got):\n%s", diff)
	}
	var bob *accessgraph.ViewNode
	for _, n := range view.Nodes() {
		if n.ID == "user:bob" {
			bob = &n
		}
	}
	if bob == nil || !bob.Collapsed {
		t.Fatalf("bob = %+v, want collapsed", bob)
	}
}

func TestHandleAccessMapping_FilterOptions(t *testing.T) {
	t.Parallel()

	fb := newAccessBackend()
	fb.json("GET /api/access-mapping/users", http.StatusOK, []map[string]any{
		{"user_name": "bob", "target_count": 1},
		{"user_name": "alice", "target_count": 1},
		{"user_name": "alice", "target_count": 1},
	})
	fb.json("GET /api/access-mapping/targets", http.StatusOK, []map[string]any{
		{"target_type": "ec2", "target_id": "i-0abc", "user_count": 1},
		{"target_type": "ec2-instance", "target_id": "i-0def", "user_count": 1},
		{"target_type": "rds", "target_id": "orders-db", "user_count": 1},
		{"target_type": "safe", "target_id": "s-prod", "user_count": 1},
	})
	h := newTestHandlers(t, fb)

	c, rec := newTestContext(http.MethodGet, "/access-mapping")
	signIn(t, h, c, "alice")
	if err := h.HandleAccessMapping(c); err != nil {
		t.Fatalf("HandleAccessMapping() error = %v", err)
	}
	body := rec.Body.String()
	assertBodyContains(t, body,
		`list="access-user-suggestions"`,
		`<datalist id="access-user-suggestions"><option value="alice"></option><option value="bob"></option></datalist>`,
		`EC2 (2)</option>`,
		`RDS (1)</option>`,
	)

	// The fragment never needs the options.
	c, _ = newHXContext(http.MethodGet, "/access-mapping", "access-graph")
	signIn(t, h, c, "alice")
	if err := h.HandleAccessMapping(c); err != nil {
		t.Fatalf("HandleAccessMapping() fragment error = %v", err)
	}
	if got := fb.count("GET /api/access-mapping/users"); got != 1 {
		t.Fatalf("users calls = %d, want 1", got)
	}
}

func TestHandleAccessMapping_FilterOptionsUnavailable(t *testing.T) {
	t.Parallel()

	fb := newAccessBackend()
	fb.json("GET /api/access-mapping/users", http.StatusInternalServerError, map[string]string{"error": "down"})
	fb.json("GET /api/access-mapping/targets", http.StatusInternalServerError, map[string]string{"error": "down"})
	h := newTestHandlers(t, fb)

	c, rec := newTestContext(http.MethodGet, "/access-mapping")
	signIn(t, h, c, "alice")
	if err := h.HandleAccessMapping(c); err != nil {
		t.Fatalf("HandleAccessMapping() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	assertBodyContains(t, body, `data-node-id=`, `>EC2</option>`)
	assertBodyNotContains(t, body, "datalist")
}

package handlers

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/infralens/infralens/internal/accessgraph"
	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/http/authn"
	"github.com/infralens/infralens/internal/http/viewmodels"
	"github.com/infralens/infralens/internal/http/views"
	"github.com/labstack/echo/v5"
)

const (
	accessMappingPath     = "/access-mapping"
	accessGraphAPI        = "/api/access-graph"
	accessGraphID         = "access-graph"
	resourceAccess        = "access-mapping"
	resourceAccessUsers   = "access-users"
	resourceAccessTargets = "access-targets"
)

var accessColumnTitles = map[int]string{
	accessgraph.KindUser.Column():      "Users",
	accessgraph.KindRole.Column():      "Roles",
	accessgraph.KindPolicy.Column():    "Policies",
	accessgraph.KindSafe.Column():      "Safes",
	accessgraph.KindAccount.Column():   "Accounts",
	accessgraph.KindEC2Target.Column(): "Targets",
}

var badgeLabels = map[string][2]string{
	accessgraph.BadgeTargets:  {"target", "targets"},
	accessgraph.BadgeRoles:    {"role", "roles"},
	accessgraph.BadgeSafes:    {"safe", "safes"},
	accessgraph.BadgePolicies: {"policy", "policies"},
	accessgraph.BadgeAccounts: {"account", "accounts"},
}

// accessGraph fetches the mapping and projects it under the collapse state in
// the query.
func (h *Handlers) accessGraph(c *echo.Context) (accessgraph.Filter, accessgraph.CollapseState, *accessgraph.Graph, error) {
	query := c.Request().URL.Query()
	filter := accessgraph.FilterFromQuery(query)
	state := accessgraph.CollapseStateFromQuery(query)

	q := filter.Query()
	mapping, err := cached(h, c, resourceAccess, q.Values().Encode(), func(ctx context.Context) (backend.AccessMapping, error) {
		return h.Backend.AccessMapping(ctx, q)
	})
	if err != nil {
		return filter, state, nil, err
	}
	return filter, state, accessgraph.Build(filter.Apply(mapping)), nil
}

// HandleAccessMapping renders the layered access graph. Toggle links carry the
// next collapse state in the URL, and the fragment carries the current state
// as hidden inputs bound to the filter form.
func (h *Handlers) HandleAccessMapping(c *echo.Context) error {
	filter, state, graph, err := h.accessGraph(c)

	data := viewmodels.AccessGraphViewData{
		Filter:       accessFilterView(filter),
		HasFilters:   !filter.IsZero(),
		ClearHref:    accessMappingPath,
		EmptyMessage: accessEmptyMessage(filter),
		Collapsed:    state.IDs(),
	}
	if err != nil {
		if sessionExpired(c, err) {
			return authn.ExpireSession(c, h.Sessions)
		}
		logBackendError(c, resourceAccess, err)
		data.ErrorMessage = "Error loading access mapping"
	} else {
		fillAccessGraph(&data, filter, state, graph)
	}

	if wantsFragment(c, accessGraphID) {
		return h.RenderComponent(c, views.AccessGraph(data))
	}
	page := viewmodels.AccessMappingViewData{
		Layout: h.LayoutData(c, "Access mapping"),
		Graph:  data,
	}
	h.fillAccessFilterOptions(c, &page)
	return h.RenderComponent(c, views.AccessMappingPage(page))
}

// fillAccessFilterOptions adds user suggestions and per-type target counts to
// the filter form. Both are optional, so failures are only logged.
func (h *Handlers) fillAccessFilterOptions(c *echo.Context, page *viewmodels.AccessMappingViewData) {
	users, err := cached(h, c, resourceAccessUsers, "", h.Backend.AccessUsers)
	if err != nil {
		logBackendError(c, resourceAccessUsers, err)
	}
	for _, u := range users {
		if name := strings.TrimSpace(u.UserName); name != "" {
			page.UserSuggestions = append(page.UserSuggestions, name)
		}
	}
	sort.Strings(page.UserSuggestions)
	page.UserSuggestions = slices.Compact(page.UserSuggestions)

	targets, err := cached(h, c, resourceAccessTargets, "", h.Backend.AccessTargets)
	if err != nil {
		logBackendError(c, resourceAccessTargets, err)
		return
	}
	for _, t := range targets {
		kind, ok := accessgraph.ParseNodeKind(t.TargetType)
		if !ok || !kind.IsTarget() {
			continue
		}
		if page.TargetCounts == nil {
			page.TargetCounts = map[string]int{}
		}
		page.TargetCounts[accessFilterTargetValue(kind)]++
	}
}

// HandleAccessGraphJSON returns the same projection as the page.
func (h *Handlers) HandleAccessGraphJSON(c *echo.Context) error {
	_, state, graph, err := h.accessGraph(c)
	if err != nil {
		if sessionExpired(c, err) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		logBackendError(c, resourceAccess, err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "error loading access mapping"})
	}
	return c.JSON(http.StatusOK, graph.View(state))
}

func fillAccessGraph(data *viewmodels.AccessGraphViewData, filter accessgraph.Filter, state accessgraph.CollapseState, graph *accessgraph.Graph) {
	values := filter.Values()
	view := graph.View(state)

	for _, col := range view.Columns {
		if len(col) == 0 {
			continue
		}
		column := viewmodels.AccessColumn{Title: accessColumnTitles[col[0].Column]}
		for _, n := range col {
			column.Nodes = append(column.Nodes, accessNodeItem(n, state, values))
		}
		data.Columns = append(data.Columns, column)
	}
	for _, e := range view.Edges {
		data.Edges = append(data.Edges, viewmodels.AccessEdgeItem{
			From:       e.From,
			To:         e.To,
			AccessType: e.AccessType,
			Paths:      e.Paths,
			Users:      e.Users,
		})
	}
	data.Legend = viewmodels.AccessLegend{
		TotalUsers:         view.Legend.TotalUsers,
		TotalTargets:       view.Legend.TotalTargets,
		TotalStandingPaths: view.Legend.TotalStandingPaths,
		TotalJITPaths:      view.Legend.TotalJITPaths,
	}

	data.ExpandAllHref = accessHref(accessMappingPath, accessgraph.NewCollapseState().Apply(values))
	data.CollapseAllHref = accessHref(accessMappingPath, graph.CollapseAll(accessgraph.KindUser).Apply(values))
	data.JSONHref = accessHref(accessGraphAPI, state.Apply(values))
	if data.HasFilters {
		data.ClearHref = accessHref(accessMappingPath, state.Apply(url.Values{}))
	}
}

func accessNodeItem(n accessgraph.ViewNode, state accessgraph.CollapseState, values url.Values) viewmodels.AccessNodeItem {
	item := viewmodels.AccessNodeItem{
		ID:          n.ID,
		DOMID:       views.SafeID("node-", n.ID),
		Kind:        string(n.Kind),
		Label:       n.Label,
		Context:     n.Context,
		Collapsible: n.Collapsible,
		Collapsed:   n.Collapsed,
		Href:        accessgraph.ResourceHref(n.Node),
		ConsoleHref: accessgraph.ConsoleHref(n.Kind, n.EntityID, ""),
	}
	if n.Collapsible {
		item.ToggleHref = accessHref(accessMappingPath, state.Toggle(n.ID).Apply(values))
	}
	for _, b := range n.Badges {
		label := badgeLabels[b.Kind]
		text := label[1]
		if b.Count == 1 {
			text = label[0]
		}
		item.Badges = append(item.Badges, viewmodels.AccessBadge{Kind: b.Kind, Label: text, Count: b.Count})
	}
	return item
}

func accessHref(path string, values url.Values) string {
	if encoded := values.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

func accessFilterView(f accessgraph.Filter) viewmodels.AccessFilterView {
	return viewmodels.AccessFilterView{
		User:       f.User,
		AccessType: f.AccessType,
		TargetType: accessFilterTargetValue(accessgraph.NodeKind(f.TargetType)),
	}
}

// accessFilterTargetValue is the target_type form value for kind.
func accessFilterTargetValue(kind accessgraph.NodeKind) string {
	switch kind {
	case accessgraph.KindEC2Target:
		return "ec2"
	case accessgraph.KindRDSTarget:
		return "rds"
	}
	return ""
}

func accessEmptyMessage(f accessgraph.Filter) string {
	if f.IsZero() {
		return "No access paths found."
	}
	if strings.TrimSpace(f.User) != "" {
		return "No access paths match this user."
	}
	return "No access paths match these filters."
}

package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/filters"
	"github.com/infralens/infralens/internal/http/authn"
	"github.com/infralens/infralens/internal/http/viewmodels"
	"github.com/infralens/infralens/internal/http/views"
	"github.com/labstack/echo/v5"
)

const panelSuffix = "/panel"

// ResourceKinds lists the list routes in navigation order.
func ResourceKinds() []backend.Kind {
	out := make([]backend.Kind, 0, len(resourceKinds))
	for _, k := range resourceKinds {
		out = append(out, k.kind)
	}
	return out
}

// HandleResourceList serves /<kind>: the full page, or only the results
// fragment for htmx requests targeting it.
func (h *Handlers) HandleResourceList(kind backend.Kind) echo.HandlerFunc {
	return func(c *echo.Context) error {
		k, ok := lookupResourceKind(kind)
		if !ok {
			return RenderNotFound(c)
		}
		return h.renderResourceList(c, k)
	}
}

func (h *Handlers) renderResourceList(c *echo.Context, k resourceKind) error {
	filter := filters.FromQuery(c.QueryParams())
	params := backend.ListParams{
		Filter:   filter,
		Page:     parsePageParam(c),
		PageSize: backend.DefaultPageSize,
	}

	data := viewmodels.ResourceListViewData{
		Kind:      string(k.kind),
		Title:     k.title,
		Singular:  k.singular,
		BasePath:  k.basePath(),
		ResultsID: k.resultsID(),
		Filter: viewmodels.ResourceFilterView{
			Search:    filter.Search,
			Status:    filter.Status,
			Region:    filter.Region,
			TFManaged: filter.TFManagedValue(),
		},
		Statuses:   statusOptions(filter.Status),
		HasFilters: !filter.IsZero(),
		ClearHref:  views.ResourceListURL(k.basePath(), filter.Clear(), 1),
		Columns:    k.columns,
	}

	page, err := k.list(h, c, k.kind, params)
	if err != nil {
		if sessionExpired(c, err) {
			return authn.ExpireSession(c, h.Sessions)
		}
		logBackendError(c, string(k.kind), err)
		data.ErrorMessage = "Error loading " + lowerFirst(k.title)
	} else {
		for i := range page.Rows {
			page.Rows[i].DetailHref = views.ResourceDetailURL(k.basePath(), page.Rows[i].ID)
			page.Rows[i].PanelHref = views.ResourcePanelURL(k.basePath(), page.Rows[i].ID)
		}
		info := paginate(page.Total, params.Page, params.PageSize, len(page.Rows))
		data.Rows = page.Rows
		data.Total = page.Total
		data.Page = params.Page
		data.TotalPages = info.TotalPages
		data.ShowingFrom = info.ShowingFrom
		data.ShowingTo = info.ShowingTo
		if params.Page > 1 {
			data.PrevHref = views.ResourceListURL(k.basePath(), filter, params.Page-1)
		}
		if params.Page < info.TotalPages {
			data.NextHref = views.ResourceListURL(k.basePath(), filter, params.Page+1)
		}
		data.EmptyMessage = emptyMessage(k, filter)
	}

	if wantsFragment(c, data.ResultsID) {
		return h.RenderComponent(c, views.ResourceListResults(data))
	}
	data.Layout = h.LayoutData(c, k.title)
	return h.RenderComponent(c, views.ResourceListPage(data))
}

func emptyMessage(k resourceKind, f filters.ListFilter) string {
	if f.IsZero() {
		return "No " + lowerFirst(k.title) + " found."
	}
	return "No " + lowerFirst(k.title) + " match these filters."
}

// lowerFirst lowercases a leading capital unless it starts an acronym, so
// "Safes" reads "safes" and "EC2 instances" is unchanged.
func lowerFirst(s string) string {
	if len(s) < 2 || s[0] < 'A' || s[0] > 'Z' || (s[1] >= 'A' && s[1] <= 'Z') || (s[1] >= '0' && s[1] <= '9') {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func statusOptions(selected string) []viewmodels.StatusOption {
	out := make([]viewmodels.StatusOption, 0, len(filters.Statuses))
	for _, s := range filters.Statuses {
		out = append(out, viewmodels.StatusOption{
			Value:    s,
			Label:    views.HumanizeStatus(s),
			Selected: s == selected,
		})
	}
	return out
}

// HandleResourceDetail serves /<kind>/<id> as a page and /<kind>/<id>/panel as
// the side-panel fragment. Ids are path-escaped and may contain slashes.
func (h *Handlers) HandleResourceDetail(kind backend.Kind) echo.HandlerFunc {
	return func(c *echo.Context) error {
		k, ok := lookupResourceKind(kind)
		if !ok {
			return RenderNotFound(c)
		}

		raw := c.Param("*")
		fragment := strings.HasSuffix(raw, panelSuffix)
		raw = strings.TrimSuffix(raw, panelSuffix)
		id, err := url.PathUnescape(raw)
		if err != nil {
			id = raw
		}
		id = strings.TrimSpace(id)

		panel := viewmodels.ResourcePanelViewData{
			Kind:     string(k.kind),
			Singular: k.singular,
			ID:       id,
			ListHref: k.basePath(),
		}
		loaded, err := k.get(h, c, k.kind, id)
		switch {
		case err == nil:
			loaded.Kind = panel.Kind
			loaded.Singular = panel.Singular
			loaded.ListHref = panel.ListHref
			panel = loaded
		case errors.Is(err, backend.ErrNotFound):
			panel.NotFound = true
		case sessionExpired(c, err):
			return authn.ExpireSession(c, h.Sessions)
		default:
			logBackendError(c, string(k.kind), err)
			panel.ErrorMessage = "Error loading " + lowerFirst(k.singular)
		}

		if fragment || wantsFragment(c, "resource-panel") {
			panel.ListHref = ""
			return h.RenderComponent(c, views.ResourcePanel(panel))
		}
		title := panel.Name
		if title == "" {
			title = k.singular
		}
		if panel.NotFound {
			c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
			c.Response().WriteHeader(http.StatusNotFound)
		}
		return h.RenderComponent(c, views.ResourceDetailPage(viewmodels.ResourceDetailViewData{
			Layout: h.LayoutData(c, title),
			Panel:  panel,
		}))
	}
}

package handlers

import (
	"sort"

	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/http/authn"
	"github.com/infralens/infralens/internal/http/viewmodels"
	"github.com/infralens/infralens/internal/http/views"
	"github.com/labstack/echo/v5"
)

// HandleDashboard shows the status summary. The summary is the same cached
// entry the background poller keeps warm.
func (h *Handlers) HandleDashboard(c *echo.Context) error {
	data := viewmodels.DashboardViewData{}

	summary, err := h.status(c)
	if err != nil {
		if sessionExpired(c, err) {
			return authn.ExpireSession(c, h.Sessions)
		}
		logBackendError(c, ResourceStatus, err)
		data.ErrorMessage = "Error loading status summary"
	} else {
		for _, k := range resourceKinds {
			data.Cards = append(data.Cards, viewmodels.DashboardCard{
				Label: k.title,
				Count: summary.Counts[string(k.kind)],
				Href:  k.basePath(),
			})
		}
		data.Sources = sourceItems(summary.Sources)
	}

	data.Layout = h.LayoutData(c, "Overview")
	return h.RenderComponent(c, views.DashboardPage(data))
}

func sourceItems(sources []backend.SourceStatus) []viewmodels.SourceStatusItem {
	out := make([]viewmodels.SourceStatusItem, 0, len(sources))
	for _, s := range sources {
		out = append(out, viewmodels.SourceStatusItem{
			Name:       s.Name,
			Healthy:    s.Healthy,
			Message:    s.Message,
			LastSync:   timeLabel(s.LastSyncAt),
			BadgeClass: views.HealthBadgeClass(s.Healthy),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HandleFreshness renders the freshness indicator alone for its polling swap.
func (h *Handlers) HandleFreshness(c *echo.Context) error {
	return h.RenderComponent(c, views.FreshnessIndicator(h.freshnessView(c)))
}

package handlers

import (
	"context"
	"sort"

	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/filters"
	"github.com/infralens/infralens/internal/http/authn"
	"github.com/infralens/infralens/internal/http/viewmodels"
	"github.com/infralens/infralens/internal/http/views"
	"github.com/labstack/echo/v5"
)

const (
	resourceTerraformStates = "terraform-states"
	resourceTerraformDrift  = "terraform-drift"
)

// HandleTerraform lists the state files and the drift report. The drift
// report honours the common list filter.
func (h *Handlers) HandleTerraform(c *echo.Context) error {
	data := viewmodels.TerraformViewData{}

	states, err := cached(h, c, resourceTerraformStates, "", func(ctx context.Context) ([]backend.TerraformState, error) {
		return h.Backend.TerraformStates(ctx)
	})
	if err != nil {
		if sessionExpired(c, err) {
			return authn.ExpireSession(c, h.Sessions)
		}
		logBackendError(c, resourceTerraformStates, err)
		data.StatesError = "Error loading Terraform state files"
	}
	for _, s := range states {
		data.States = append(data.States, viewmodels.TerraformStateItem{
			Source:        s.Source,
			Backend:       s.Backend,
			Serial:        s.Serial,
			Version:       s.TerraformVersion,
			ResourceCount: s.ResourceCount,
			LastModified:  timeLabel(s.LastModified),
		})
	}

	params := backend.ListParams{Filter: filters.FromQuery(c.Request().URL.Query())}
	report, err := cached(h, c, resourceTerraformDrift, params.Encode(), func(ctx context.Context) (backend.DriftReport, error) {
		return h.Backend.TerraformDrift(ctx, params)
	})
	if err != nil {
		if sessionExpired(c, err) {
			return authn.ExpireSession(c, h.Sessions)
		}
		logBackendError(c, resourceTerraformDrift, err)
		data.DriftError = "Error loading drift report"
	} else {
		data.GeneratedAt = timeLabel(report.GeneratedAt)
		data.Drift = driftItems(report.Items)
		data.DriftCounts = driftCounts(report)
	}

	data.Layout = h.LayoutData(c, "Terraform")
	return h.RenderComponent(c, views.TerraformPage(data))
}

func driftItems(items []backend.DriftItem) []viewmodels.DriftItemView {
	out := make([]viewmodels.DriftItemView, 0, len(items))
	for _, it := range items {
		out = append(out, viewmodels.DriftItemView{
			Address:      it.Address,
			ResourceType: it.ResourceType,
			ResourceID:   it.ResourceID,
			DriftType:    it.DriftType,
			BadgeClass:   views.DriftBadgeClass(it.DriftType),
			StateSource:  it.StateSource,
			Region:       it.Region,
			Details:      it.Details,
			DetectedAt:   timeLabel(it.DetectedAt),
		})
	}
	return out
}

// driftCounts prefers the backend summary and counts the items otherwise.
func driftCounts(report backend.DriftReport) []viewmodels.DriftCount {
	counts := report.Summary
	if len(counts) == 0 {
		counts = map[string]int{}
		for _, it := range report.Items {
			counts[it.DriftType]++
		}
	}
	out := make([]viewmodels.DriftCount, 0, len(counts))
	for kind, n := range counts {
		if n > 0 {
			out = append(out, viewmodels.DriftCount{DriftType: kind, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriftType < out[j].DriftType })
	return out
}

package handlers

import (
	"context"
	"strings"

	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/http/authn"
	"github.com/infralens/infralens/internal/http/viewmodels"
	"github.com/infralens/infralens/internal/http/views"
	"github.com/infralens/infralens/internal/topology"
	"github.com/labstack/echo/v5"
)

const resourceTopology = "topology"

var topologyCountLabels = []struct {
	kind  topology.Kind
	label string
}{
	{topology.KindVPC, "VPCs"},
	{topology.KindSubnet, "Subnets"},
	{topology.KindGateway, "Gateways"},
	{topology.KindEC2, "EC2 instances"},
	{topology.KindRDS, "RDS instances"},
}

func (h *Handlers) HandleTopology(c *echo.Context) error {
	region := strings.TrimSpace(c.QueryParam("region"))
	data := viewmodels.TopologyViewData{
		Region:       region,
		Regions:      h.Cfg.Regions,
		EmptyMessage: "No VPCs found.",
	}
	if region != "" {
		data.EmptyMessage = "No VPCs found in " + region + "."
	}

	t, err := cached(h, c, resourceTopology, "region="+region, func(ctx context.Context) (backend.Topology, error) {
		return h.Backend.Topology(ctx, region)
	})
	if err != nil {
		if sessionExpired(c, err) {
			return authn.ExpireSession(c, h.Sessions)
		}
		logBackendError(c, resourceTopology, err)
		data.ErrorMessage = "Error loading topology"
	} else {
		graph := topology.Build(t)
		counts := graph.Counts()
		for _, cl := range topologyCountLabels {
			if n := counts[cl.kind]; n > 0 {
				data.Counts = append(data.Counts, viewmodels.TopologyCount{Label: cl.label, Count: n})
			}
		}
		for _, line := range graph.Lines() {
			data.Lines = append(data.Lines, topologyLine(line))
		}
	}

	data.Layout = h.LayoutData(c, "Topology")
	return h.RenderComponent(c, views.TopologyPage(data))
}

func topologyLine(l topology.Line) viewmodels.TopologyLine {
	line := viewmodels.TopologyLine{
		Prefix:    l.Prefix,
		Indicator: l.Node.Kind.Indicator(),
		Label:     l.Node.Label,
		Detail:    l.Node.Detail,
	}
	if l.Node.Status != "" {
		line.Status = string(l.Node.Status)
		line.StatusClass = views.StatusBadgeClass(line.Status)
	}
	switch l.Node.Kind {
	case topology.KindVPC:
		line.Href = views.ResourceDetailURL("/vpcs", l.Node.ID)
	case topology.KindSubnet:
		line.Href = views.ResourceDetailURL("/subnets", l.Node.ID)
	case topology.KindGateway:
		line.Href = views.ResourceDetailURL("/gateways", l.Node.ID)
	case topology.KindEC2:
		line.Href = views.ResourceDetailURL("/ec2-instances", l.Node.ID)
	case topology.KindRDS:
		line.Href = views.ResourceDetailURL("/rds-instances", l.Node.ID)
	}
	return line
}

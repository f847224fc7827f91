package handlers

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/hako/durafmt"
	"github.com/infralens/infralens/internal/accessgraph"
	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/freshness"
	"github.com/infralens/infralens/internal/http/viewmodels"
	"github.com/infralens/infralens/internal/http/views"
	"github.com/labstack/echo/v5"
)

const (
	sectionAWS      = "AWS"
	sectionCyberArk = "CyberArk"
)

type resourcePage struct {
	Rows  []viewmodels.ResourceRow
	Total int
}

type listFunc func(h *Handlers, c *echo.Context, kind backend.Kind, p backend.ListParams) (resourcePage, error)

type getFunc func(h *Handlers, c *echo.Context, kind backend.Kind, id string) (viewmodels.ResourcePanelViewData, error)

// rowFunc and panelFunc receive the request time so ages are computed per
// render, never frozen into the cache.
type rowFunc[T any] func(item T, now time.Time) viewmodels.ResourceRow

type panelFunc[T any] func(item T, now time.Time) viewmodels.ResourcePanelViewData

type resourceKind struct {
	kind     backend.Kind
	section  string
	title    string
	singular string
	columns  []string
	list     listFunc
	get      getFunc
}

func (k resourceKind) basePath() string {
	return "/" + string(k.kind)
}

func (k resourceKind) resultsID() string {
	return string(k.kind) + "-results"
}

var resourceKinds = []resourceKind{
	{
		kind: backend.KindEC2Instances, section: sectionAWS, title: "EC2 instances", singular: "EC2 instance",
		columns: []string{"Type", "Private IP", "Public IP", "Zone"},
		list:    lister((*backend.Client).ListEC2Instances, ec2Row),
		get:     getter((*backend.Client).GetEC2Instance, ec2Panel),
	},
	{
		kind: backend.KindRDSInstances, section: sectionAWS, title: "RDS instances", singular: "RDS instance",
		columns: []string{"Engine", "Class", "Endpoint", "Multi-AZ"},
		list:    lister((*backend.Client).ListRDSInstances, rdsRow),
		get:     getter((*backend.Client).GetRDSInstance, rdsPanel),
	},
	{
		kind: backend.KindVPCs, section: sectionAWS, title: "VPCs", singular: "VPC",
		columns: []string{"CIDR", "Default", "Subnets"},
		list:    lister((*backend.Client).ListVPCs, vpcRow),
		get:     getter((*backend.Client).GetVPC, vpcPanel),
	},
	{
		kind: backend.KindSubnets, section: sectionAWS, title: "Subnets", singular: "Subnet",
		columns: []string{"VPC", "CIDR", "Zone", "Free IPs", "Public"},
		list:    lister((*backend.Client).ListSubnets, subnetRow),
		get:     getter((*backend.Client).GetSubnet, subnetPanel),
	},
	{
		kind: backend.KindGateways, section: sectionAWS, title: "Gateways", singular: "Gateway",
		columns: []string{"Type", "VPC", "Public IP"},
		list:    lister((*backend.Client).ListGateways, gatewayRow),
		get:     getter((*backend.Client).GetGateway, gatewayPanel),
	},
	{
		kind: backend.KindElasticIPs, section: sectionAWS, title: "Elastic IPs", singular: "Elastic IP",
		columns: []string{"Public IP", "Instance", "Association"},
		list:    lister((*backend.Client).ListElasticIPs, elasticIPRow),
		get:     getter((*backend.Client).GetElasticIP, elasticIPPanel),
	},
	{
		kind: backend.KindECSClusters, section: sectionAWS, title: "ECS clusters", singular: "ECS cluster",
		columns: []string{"Services", "Running tasks", "Pending tasks"},
		list:    lister((*backend.Client).ListECSClusters, ecsRow),
		get:     getter((*backend.Client).GetECSCluster, ecsPanel),
	},
	{
		kind: backend.KindSafes, section: sectionCyberArk, title: "Safes", singular: "Safe",
		columns: []string{"Description", "Members", "Accounts", "CPM"},
		list:    lister((*backend.Client).ListSafes, safeRow),
		get:     getter((*backend.Client).GetSafe, safePanel),
	},
	{
		kind: backend.KindRoles, section: sectionCyberArk, title: "Roles", singular: "Role",
		columns: []string{"Account", "Safe", "Policies"},
		list:    lister((*backend.Client).ListRoles, roleRow),
		get:     getter((*backend.Client).GetRole, rolePanel),
	},
	{
		kind: backend.KindPolicies, section: sectionCyberArk, title: "Policies", singular: "Policy",
		columns: []string{"Access", "Principals", "Targets", "Max session"},
		list:    lister((*backend.Client).ListPolicies, policyRow),
		get:     getter((*backend.Client).GetPolicy, policyPanel),
	},
	{
		kind: backend.KindCyberArkUsers, section: sectionCyberArk, title: "Users", singular: "User",
		columns: []string{"Username", "Email", "Source", "Last login"},
		list:    lister((*backend.Client).ListCyberArkUsers, cyberArkUserRow),
		get:     getter((*backend.Client).GetCyberArkUser, cyberArkUserPanel),
	},
}

func lookupResourceKind(kind backend.Kind) (resourceKind, bool) {
	for _, k := range resourceKinds {
		if k.kind == kind {
			return k, true
		}
	}
	return resourceKind{}, false
}

func lister[T any](list func(*backend.Client, context.Context, backend.ListParams) (backend.Page[T], error), row rowFunc[T]) listFunc {
	return func(h *Handlers, c *echo.Context, kind backend.Kind, p backend.ListParams) (resourcePage, error) {
		page, err := cached(h, c, string(kind), p.Encode(), func(ctx context.Context) (backend.Page[T], error) {
			return list(h.Backend, ctx, p)
		})
		if err != nil {
			return resourcePage{}, err
		}
		now := h.now()
		out := resourcePage{Rows: make([]viewmodels.ResourceRow, 0, len(page.Items)), Total: page.Total}
		for _, item := range page.Items {
			out.Rows = append(out.Rows, row(item, now))
		}
		if out.Total < len(out.Rows) {
			out.Total = len(out.Rows)
		}
		return out, nil
	}
}

func getter[T any](get func(*backend.Client, context.Context, string) (T, error), panel panelFunc[T]) getFunc {
	return func(h *Handlers, c *echo.Context, kind backend.Kind, id string) (viewmodels.ResourcePanelViewData, error) {
		item, err := cached(h, c, string(kind), "id="+id, func(ctx context.Context) (T, error) {
			return get(h.Backend, ctx, id)
		})
		if err != nil {
			return viewmodels.ResourcePanelViewData{}, err
		}
		return panel(item, h.now()), nil
	}
}

func metaRow(m backend.Meta, now time.Time, cells ...string) viewmodels.ResourceRow {
	status := string(backend.NormalizeStatus(string(m.Status)))
	row := viewmodels.ResourceRow{
		ID:          m.ID,
		Name:        m.DisplayName(),
		Status:      status,
		StatusClass: views.StatusBadgeClass(status),
		Cells:       cells,
		TFManaged:   m.TFManaged,
		TFSource:    m.TFStateSource,
		TFAddress:   m.TFResourceAddress,
		Updated:     ageLabel(m.UpdatedAt, now),
	}
	return row
}

func metaPanel(m backend.Meta, now time.Time, fields ...viewmodels.Field) viewmodels.ResourcePanelViewData {
	status := string(backend.NormalizeStatus(string(m.Status)))
	out := viewmodels.ResourcePanelViewData{
		ID:          m.ID,
		Name:        m.DisplayName(),
		Status:      status,
		StatusClass: views.StatusBadgeClass(status),
	}
	out.Fields = append(out.Fields, viewmodels.Field{Label: "ID", Value: m.ID})
	out.Fields = append(out.Fields, fields...)
	out.Fields = append(out.Fields, viewmodels.Field{Label: "Region", Value: m.Region})
	if m.TFManaged {
		out.Fields = append(out.Fields,
			viewmodels.Field{Label: "Terraform state", Value: m.TFStateSource},
			viewmodels.Field{Label: "Terraform address", Value: m.TFResourceAddress},
		)
	} else {
		out.Fields = append(out.Fields, viewmodels.Field{Label: "Terraform", Value: "Not managed"})
	}
	out.Fields = append(out.Fields, viewmodels.Field{Label: "Last updated", Value: ageLabel(m.UpdatedAt, now)})
	return out
}

func ageLabel(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return freshness.Evaluate(now, t).Label
}

func timeLabel(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

func tagFields(tags map[string]string) []viewmodels.Field {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]viewmodels.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, viewmodels.Field{Label: k, Value: tags[k]})
	}
	return out
}

func ec2Row(i backend.EC2Instance, now time.Time) viewmodels.ResourceRow {
	row := metaRow(i.Meta, now, i.InstanceType, i.PrivateIP, i.PublicIP, i.AvailabilityZone)
	row.ConsoleHref = accessgraph.ConsoleHref(accessgraph.KindEC2Target, i.ID, i.Region)
	return row
}

func ec2Panel(i backend.EC2Instance, now time.Time) viewmodels.ResourcePanelViewData {
	p := metaPanel(i.Meta, now,
		viewmodels.Field{Label: "Instance type", Value: i.InstanceType},
		viewmodels.Field{Label: "Private IP", Value: i.PrivateIP},
		viewmodels.Field{Label: "Public IP", Value: i.PublicIP},
		viewmodels.Field{Label: "VPC", Value: i.VPCID, Href: views.ResourceDetailURL("/"+string(backend.KindVPCs), i.VPCID)},
		viewmodels.Field{Label: "Subnet", Value: i.SubnetID, Href: views.ResourceDetailURL("/"+string(backend.KindSubnets), i.SubnetID)},
		viewmodels.Field{Label: "Availability zone", Value: i.AvailabilityZone},
		viewmodels.Field{Label: "Platform", Value: i.Platform},
		viewmodels.Field{Label: "Launched", Value: timeLabel(i.LaunchTime)},
	)
	p.Tags = tagFields(i.Tags)
	p.ConsoleHref = accessgraph.ConsoleHref(accessgraph.KindEC2Target, i.ID, i.Region)
	return p
}

func rdsRow(i backend.RDSInstance, now time.Time) viewmodels.ResourceRow {
	row := metaRow(i.Meta, now, i.Engine, i.InstanceClass, i.Endpoint, yesNo(i.MultiAZ))
	row.ConsoleHref = rdsConsoleHref(i)
	return row
}

func rdsPanel(i backend.RDSInstance, now time.Time) viewmodels.ResourcePanelViewData {
	endpoint := i.Endpoint
	if endpoint != "" && i.Port > 0 {
		endpoint += ":" + itoa(i.Port)
	}
	p := metaPanel(i.Meta, now,
		viewmodels.Field{Label: "Engine", Value: joinNonEmpty(" ", i.Engine, i.EngineVersion)},
		viewmodels.Field{Label: "Instance class", Value: i.InstanceClass},
		viewmodels.Field{Label: "Endpoint", Value: endpoint},
		viewmodels.Field{Label: "Multi-AZ", Value: yesNo(i.MultiAZ)},
		viewmodels.Field{Label: "Storage", Value: storageLabel(i.StorageGB)},
		viewmodels.Field{Label: "VPC", Value: i.VPCID, Href: views.ResourceDetailURL("/"+string(backend.KindVPCs), i.VPCID)},
		viewmodels.Field{Label: "ARN", Value: i.ARN},
	)
	p.ConsoleHref = rdsConsoleHref(i)
	return p
}

func rdsConsoleHref(i backend.RDSInstance) string {
	if i.ARN != "" {
		return accessgraph.ConsoleHref(accessgraph.KindRDSTarget, i.ARN, i.Region)
	}
	return accessgraph.ConsoleHref(accessgraph.KindRDSTarget, i.ID, i.Region)
}

func storageLabel(gb int) string {
	if gb <= 0 {
		return ""
	}
	return itoa(gb) + " GiB"
}

func vpcRow(v backend.VPC, now time.Time) viewmodels.ResourceRow {
	return metaRow(v.Meta, now, v.CIDRBlock, yesNo(v.IsDefault), itoa(v.SubnetCount))
}

func vpcPanel(v backend.VPC, now time.Time) viewmodels.ResourcePanelViewData {
	return metaPanel(v.Meta, now,
		viewmodels.Field{Label: "CIDR", Value: v.CIDRBlock},
		viewmodels.Field{Label: "Default VPC", Value: yesNo(v.IsDefault)},
		viewmodels.Field{Label: "Subnets", Value: itoa(v.SubnetCount), Href: searchHref(backend.KindSubnets, v.ID)},
	)
}

func subnetRow(s backend.Subnet, now time.Time) viewmodels.ResourceRow {
	return metaRow(s.Meta, now, s.VPCID, s.CIDRBlock, s.AvailabilityZone, itoa(s.AvailableIPs), yesNo(s.Public))
}

func subnetPanel(s backend.Subnet, now time.Time) viewmodels.ResourcePanelViewData {
	return metaPanel(s.Meta, now,
		viewmodels.Field{Label: "VPC", Value: s.VPCID, Href: views.ResourceDetailURL("/"+string(backend.KindVPCs), s.VPCID)},
		viewmodels.Field{Label: "CIDR", Value: s.CIDRBlock},
		viewmodels.Field{Label: "Availability zone", Value: s.AvailabilityZone},
		viewmodels.Field{Label: "Available IPs", Value: itoa(s.AvailableIPs)},
		viewmodels.Field{Label: "Public IP on launch", Value: yesNo(s.Public)},
	)
}

func gatewayRow(g backend.Gateway, now time.Time) viewmodels.ResourceRow {
	return metaRow(g.Meta, now, g.Type, g.VPCID, g.PublicIP)
}

func gatewayPanel(g backend.Gateway, now time.Time) viewmodels.ResourcePanelViewData {
	return metaPanel(g.Meta, now,
		viewmodels.Field{Label: "Type", Value: g.Type},
		viewmodels.Field{Label: "VPC", Value: g.VPCID, Href: views.ResourceDetailURL("/"+string(backend.KindVPCs), g.VPCID)},
		viewmodels.Field{Label: "Subnet", Value: g.SubnetID, Href: views.ResourceDetailURL("/"+string(backend.KindSubnets), g.SubnetID)},
		viewmodels.Field{Label: "Public IP", Value: g.PublicIP},
	)
}

func elasticIPRow(e backend.ElasticIP, now time.Time) viewmodels.ResourceRow {
	return metaRow(e.Meta, now, e.PublicIP, e.InstanceID, e.AssociationID)
}

func elasticIPPanel(e backend.ElasticIP, now time.Time) viewmodels.ResourcePanelViewData {
	return metaPanel(e.Meta, now,
		viewmodels.Field{Label: "Public IP", Value: e.PublicIP},
		viewmodels.Field{Label: "Allocation", Value: e.AllocationID},
		viewmodels.Field{Label: "Association", Value: e.AssociationID},
		viewmodels.Field{Label: "Instance", Value: e.InstanceID, Href: views.ResourceDetailURL("/"+string(backend.KindEC2Instances), e.InstanceID)},
		viewmodels.Field{Label: "Network interface", Value: e.NetworkInterfaceID},
	)
}

func ecsRow(e backend.ECSCluster, now time.Time) viewmodels.ResourceRow {
	return metaRow(e.Meta, now, itoa(e.ActiveServices), itoa(e.RunningTasks), itoa(e.PendingTasks))
}

func ecsPanel(e backend.ECSCluster, now time.Time) viewmodels.ResourcePanelViewData {
	return metaPanel(e.Meta, now,
		viewmodels.Field{Label: "Active services", Value: itoa(e.ActiveServices)},
		viewmodels.Field{Label: "Running tasks", Value: itoa(e.RunningTasks)},
		viewmodels.Field{Label: "Pending tasks", Value: itoa(e.PendingTasks)},
		viewmodels.Field{Label: "Capacity providers", Value: e.CapacityInfo},
		viewmodels.Field{Label: "ARN", Value: e.ARN},
	)
}

func safeRow(s backend.Safe, now time.Time) viewmodels.ResourceRow {
	return metaRow(s.Meta, now, s.Description, itoa(s.MemberCount), itoa(s.AccountCount), s.ManagingCPM)
}

func safePanel(s backend.Safe, now time.Time) viewmodels.ResourcePanelViewData {
	retention := ""
	if s.RetentionDays > 0 {
		retention = itoa(s.RetentionDays) + " days"
	}
	return metaPanel(s.Meta, now,
		viewmodels.Field{Label: "Description", Value: s.Description},
		viewmodels.Field{Label: "Managing CPM", Value: s.ManagingCPM},
		viewmodels.Field{Label: "Members", Value: itoa(s.MemberCount)},
		viewmodels.Field{Label: "Accounts", Value: itoa(s.AccountCount)},
		viewmodels.Field{Label: "Retention", Value: retention},
		viewmodels.Field{Label: "Object-level access control", Value: yesNo(s.OLACEnabled)},
		viewmodels.Field{Label: "Created by", Value: s.CreatorUsername},
	)
}

func roleRow(r backend.Role, now time.Time) viewmodels.ResourceRow {
	row := metaRow(r.Meta, now, r.AccountID, r.SafeName, itoa(r.PolicyCount))
	row.ConsoleHref = roleConsoleHref(r)
	return row
}

func rolePanel(r backend.Role, now time.Time) viewmodels.ResourcePanelViewData {
	p := metaPanel(r.Meta, now,
		viewmodels.Field{Label: "ARN", Value: r.ARN},
		viewmodels.Field{Label: "Account", Value: r.AccountID, Href: accessgraph.ConsoleHref(accessgraph.KindAccount, r.AccountID, "")},
		viewmodels.Field{Label: "Description", Value: r.Description},
		viewmodels.Field{Label: "Safe", Value: r.SafeName, Href: searchHref(backend.KindSafes, r.SafeName)},
		viewmodels.Field{Label: "Policies", Value: itoa(r.PolicyCount)},
	)
	p.ConsoleHref = roleConsoleHref(r)
	return p
}

func roleConsoleHref(r backend.Role) string {
	if r.ARN == "" {
		return ""
	}
	return accessgraph.ConsoleHref(accessgraph.KindRole, r.ARN, r.Region)
}

func policyRow(p backend.Policy, now time.Time) viewmodels.ResourceRow {
	return metaRow(p.Meta, now, accessgraph.NormalizeAccessType(p.AccessType), itoa(p.PrincipalCount), itoa(p.TargetCount), sessionLabel(p.MaxSessionMins))
}

func policyPanel(p backend.Policy, now time.Time) viewmodels.ResourcePanelViewData {
	return metaPanel(p.Meta, now,
		viewmodels.Field{Label: "Description", Value: p.Description},
		viewmodels.Field{Label: "Access type", Value: accessgraph.NormalizeAccessType(p.AccessType)},
		viewmodels.Field{Label: "Principals", Value: itoa(p.PrincipalCount)},
		viewmodels.Field{Label: "Targets", Value: itoa(p.TargetCount)},
		viewmodels.Field{Label: "Max session", Value: sessionLabel(p.MaxSessionMins)},
	)
}

func sessionLabel(mins int) string {
	if mins <= 0 {
		return ""
	}
	return durafmt.Parse(time.Duration(mins) * time.Minute).String()
}

func searchHref(kind backend.Kind, search string) string {
	if search == "" {
		return ""
	}
	return "/" + string(kind) + "?search=" + url.QueryEscape(search)
}

func cyberArkUserRow(u backend.CyberArkUser, now time.Time) viewmodels.ResourceRow {
	return metaRow(u.Meta, now, u.Username, u.Email, u.Source, ageLabel(u.LastLogin, now))
}

func cyberArkUserPanel(u backend.CyberArkUser, now time.Time) viewmodels.ResourcePanelViewData {
	return metaPanel(u.Meta, now,
		viewmodels.Field{Label: "Username", Value: u.Username},
		viewmodels.Field{Label: "Email", Value: u.Email},
		viewmodels.Field{Label: "Source", Value: u.Source},
		viewmodels.Field{Label: "Suspended", Value: yesNo(u.Suspended)},
		viewmodels.Field{Label: "Last login", Value: timeLabel(u.LastLogin)},
		viewmodels.Field{Label: "Access", Value: "View access paths", Href: "/access-mapping?user=" + url.QueryEscape(u.Username)},
	)
}

func joinNonEmpty(sep string, values ...string) string {
	out := ""
	for _, v := range values {
		if v == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += v
	}
	return out
}

package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/infralens/infralens/internal/filters"
)

// Kind is the resource type key used for routing and cache keys.
type Kind string

const (
	KindEC2Instances  Kind = "ec2-instances"
	KindRDSInstances  Kind = "rds-instances"
	KindVPCs          Kind = "vpcs"
	KindSubnets       Kind = "subnets"
	KindGateways      Kind = "gateways"
	KindElasticIPs    Kind = "elastic-ips"
	KindECSClusters   Kind = "ecs-clusters"
	KindSafes         Kind = "cyberark-safes"
	KindRoles         Kind = "cyberark-roles"
	KindPolicies      Kind = "cyberark-policies"
	KindCyberArkUsers Kind = "cyberark-users"
)

var kindPaths = map[Kind]string{
	KindEC2Instances:  "/api/aws/ec2/instances",
	KindRDSInstances:  "/api/aws/rds/instances",
	KindVPCs:          "/api/aws/vpcs",
	KindSubnets:       "/api/aws/subnets",
	KindGateways:      "/api/aws/gateways",
	KindElasticIPs:    "/api/aws/elastic-ips",
	KindECSClusters:   "/api/aws/ecs/clusters",
	KindSafes:         "/api/cyberark/safes",
	KindRoles:         "/api/cyberark/roles",
	KindPolicies:      "/api/cyberark/policies",
	KindCyberArkUsers: "/api/cyberark/users",
}

// Kinds returns every list kind in navigation order.
func Kinds() []Kind {
	return []Kind{
		KindEC2Instances, KindRDSInstances, KindVPCs, KindSubnets, KindGateways, KindElasticIPs,
		KindECSClusters, KindSafes, KindRoles, KindPolicies, KindCyberArkUsers,
	}
}

func (k Kind) Path() string {
	return kindPaths[k]
}

func (k Kind) Valid() bool {
	_, ok := kindPaths[k]
	return ok
}

const DefaultPageSize = 50

// ListParams is the filter plus paging of a list request.
type ListParams struct {
	Filter   filters.ListFilter
	Page     int
	PageSize int
}

func (p ListParams) Values() url.Values {
	values := p.Filter.Values()
	if p.Page > 1 {
		values.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 && p.PageSize != DefaultPageSize {
		values.Set("page_size", strconv.Itoa(p.PageSize))
	}
	return values
}

// Encode is the stable cache key form of the params.
func (p ListParams) Encode() string {
	return p.Values().Encode()
}

func listPage[T any](ctx context.Context, c *Client, kind Kind, params ListParams) (Page[T], error) {
	var page Page[T]
	err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: string(kind) + ".list",
		path:     kind.Path(),
		query:    params.Values(),
	}, &page)
	if page.Items == nil {
		page.Items = []T{}
	}
	return page, err
}

func getOne[T any](ctx context.Context, c *Client, kind Kind, id string) (T, error) {
	var out T
	id = strings.TrimSpace(id)
	if id == "" {
		return out, ErrNotFound
	}
	err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: string(kind) + ".get",
		path:     kind.Path() + "/" + url.PathEscape(id),
	}, &out)
	return out, err
}

func (c *Client) ListEC2Instances(ctx context.Context, p ListParams) (Page[EC2Instance], error) {
	return listPage[EC2Instance](ctx, c, KindEC2Instances, p)
}

func (c *Client) GetEC2Instance(ctx context.Context, id string) (EC2Instance, error) {
	return getOne[EC2Instance](ctx, c, KindEC2Instances, id)
}

func (c *Client) ListRDSInstances(ctx context.Context, p ListParams) (Page[RDSInstance], error) {
	return listPage[RDSInstance](ctx, c, KindRDSInstances, p)
}

func (c *Client) GetRDSInstance(ctx context.Context, id string) (RDSInstance, error) {
	return getOne[RDSInstance](ctx, c, KindRDSInstances, id)
}

func (c *Client) ListVPCs(ctx context.Context, p ListParams) (Page[VPC], error) {
	return listPage[VPC](ctx, c, KindVPCs, p)
}

func (c *Client) GetVPC(ctx context.Context, id string) (VPC, error) {
	return getOne[VPC](ctx, c, KindVPCs, id)
}

func (c *Client) ListSubnets(ctx context.Context, p ListParams) (Page[Subnet], error) {
	return listPage[Subnet](ctx, c, KindSubnets, p)
}

func (c *Client) GetSubnet(ctx context.Context, id string) (Subnet, error) {
	return getOne[Subnet](ctx, c, KindSubnets, id)
}

func (c *Client) ListGateways(ctx context.Context, p ListParams) (Page[Gateway], error) {
	return listPage[Gateway](ctx, c, KindGateways, p)
}

func (c *Client) GetGateway(ctx context.Context, id string) (Gateway, error) {
	return getOne[Gateway](ctx, c, KindGateways, id)
}

func (c *Client) ListElasticIPs(ctx context.Context, p ListParams) (Page[ElasticIP], error) {
	return listPage[ElasticIP](ctx, c, KindElasticIPs, p)
}

func (c *Client) GetElasticIP(ctx context.Context, id string) (ElasticIP, error) {
	return getOne[ElasticIP](ctx, c, KindElasticIPs, id)
}

func (c *Client) ListECSClusters(ctx context.Context, p ListParams) (Page[ECSCluster], error) {
	return listPage[ECSCluster](ctx, c, KindECSClusters, p)
}

func (c *Client) GetECSCluster(ctx context.Context, id string) (ECSCluster, error) {
	return getOne[ECSCluster](ctx, c, KindECSClusters, id)
}

func (c *Client) ListSafes(ctx context.Context, p ListParams) (Page[Safe], error) {
	return listPage[Safe](ctx, c, KindSafes, p)
}

func (c *Client) GetSafe(ctx context.Context, id string) (Safe, error) {
	return getOne[Safe](ctx, c, KindSafes, id)
}

func (c *Client) ListRoles(ctx context.Context, p ListParams) (Page[Role], error) {
	return listPage[Role](ctx, c, KindRoles, p)
}

func (c *Client) GetRole(ctx context.Context, id string) (Role, error) {
	return getOne[Role](ctx, c, KindRoles, id)
}

func (c *Client) ListPolicies(ctx context.Context, p ListParams) (Page[Policy], error) {
	return listPage[Policy](ctx, c, KindPolicies, p)
}

func (c *Client) GetPolicy(ctx context.Context, id string) (Policy, error) {
	return getOne[Policy](ctx, c, KindPolicies, id)
}

func (c *Client) ListCyberArkUsers(ctx context.Context, p ListParams) (Page[CyberArkUser], error) {
	return listPage[CyberArkUser](ctx, c, KindCyberArkUsers, p)
}

func (c *Client) GetCyberArkUser(ctx context.Context, id string) (CyberArkUser, error) {
	return getOne[CyberArkUser](ctx, c, KindCyberArkUsers, id)
}

func (c *Client) Status(ctx context.Context) (StatusSummary, error) {
	var out StatusSummary
	err := c.do(ctx, request{method: http.MethodGet, endpoint: "status", path: "/api/status"}, &out)
	return out, err
}

func (c *Client) AuthConfig(ctx context.Context) (AuthConfig, error) {
	var out AuthConfig
	err := c.do(ctx, request{method: http.MethodGet, endpoint: "auth.config", path: "/api/auth/config"}, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "auth.login",
		path:     "/api/auth/login",
		body: map[string]string{
			"username": username,
			"password": password,
		},
	}, &out)
	return out, err
}

// Me resolves the user behind the token in ctx.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out User
	err := c.do(ctx, request{method: http.MethodGet, endpoint: "auth.me", path: "/api/auth/me"}, &out)
	return out, err
}

// TriggerRefresh asks the backend to re-run its data collection.
func (c *Client) TriggerRefresh(ctx context.Context) (RefreshResult, error) {
	var out RefreshResult
	err := c.do(ctx, request{method: http.MethodPost, endpoint: "refresh", path: "/api/refresh"}, &out)
	return out, err
}

func (c *Client) TerraformStates(ctx context.Context) ([]TerraformState, error) {
	var out []TerraformState
	err := c.do(ctx, request{method: http.MethodGet, endpoint: "terraform.states", path: "/api/terraform/states"}, &out)
	return out, err
}

func (c *Client) TerraformDrift(ctx context.Context, p ListParams) (DriftReport, error) {
	var out DriftReport
	err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: "terraform.drift",
		path:     "/api/terraform/drift",
		query:    p.Values(),
	}, &out)
	return out, err
}

func (c *Client) Topology(ctx context.Context, region string) (Topology, error) {
	var out Topology
	query := url.Values{}
	if region = strings.TrimSpace(region); region != "" {
		query.Set("region", region)
	}
	err := c.do(ctx, request{method: http.MethodGet, endpoint: "topology", path: "/api/topology", query: query}, &out)
	return out, err
}

// AccessQuery narrows the access-mapping dataset server-side.
type AccessQuery struct {
	User       string
	TargetType string
	AccessType string
}

func (q AccessQuery) Values() url.Values {
	values := url.Values{}
	if v := strings.TrimSpace(q.User); v != "" {
		values.Set("user", v)
	}
	if v := strings.ToLower(strings.TrimSpace(q.TargetType)); v != "" {
		values.Set("target_type", v)
	}
	if v := strings.ToLower(strings.TrimSpace(q.AccessType)); v == AccessStanding || v == AccessJIT {
		values.Set("access_type", v)
	}
	return values
}

func (c *Client) AccessMapping(ctx context.Context, q AccessQuery) (AccessMapping, error) {
	var out AccessMapping
	err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: "access.mapping",
		path:     "/api/access-mapping",
		query:    q.Values(),
	}, &out)
	return out, err
}

func (c *Client) AccessUsers(ctx context.Context) ([]AccessUserSummary, error) {
	var out []AccessUserSummary
	err := c.do(ctx, request{method: http.MethodGet, endpoint: "access.users", path: "/api/access-mapping/users"}, &out)
	return out, err
}

func (c *Client) AccessTargets(ctx context.Context) ([]AccessTargetSummary, error) {
	var out []AccessTargetSummary
	err := c.do(ctx, request{method: http.MethodGet, endpoint: "access.targets", path: "/api/access-mapping/targets"}, &out)
	return out, err
}

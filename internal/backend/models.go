package backend

import (
	"strings"
	"time"
)

// Status is the display status shared by every resource record.
type Status string

const (
	StatusActive        Status = "active"
	StatusInactive      Status = "inactive"
	StatusTransitioning Status = "transitioning"
	StatusError         Status = "error"
	StatusUnknown       Status = "unknown"
)

// NormalizeStatus folds backend and raw provider states into the display enum.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "running", "available", "in-use", "associated", "attached", "enabled":
		return StatusActive
	case "inactive", "stopped", "disabled", "suspended", "detached", "unassociated":
		return StatusInactive
	case "transitioning", "pending", "starting", "stopping", "creating", "modifying", "deleting",
		"rebooting", "backing-up", "shutting-down", "provisioning", "attaching", "detaching":
		return StatusTransitioning
	case "error", "failed", "terminated", "incompatible-parameters", "incompatible-network",
		"storage-full", "inaccessible-encryption-credentials":
		return StatusError
	default:
		return StatusUnknown
	}
}

// Meta carries the fields every resource record has.
type Meta struct {
	ID                string     `json:"id"`
	Name              string     `json:"name,omitempty"`
	Status            Status     `json:"status"`
	Region            string     `json:"region,omitempty"`
	TFManaged         bool       `json:"tf_managed"`
	TFStateSource     string     `json:"tf_state_source,omitempty"`
	TFResourceAddress string     `json:"tf_resource_address,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// DisplayName falls back to the provider id when the record is unnamed.
func (m Meta) DisplayName() string {
	if name := strings.TrimSpace(m.Name); name != "" {
		return name
	}
	return m.ID
}

type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

type EC2Instance struct {
	Meta
	InstanceType     string            `json:"instance_type"`
	PrivateIP        string            `json:"private_ip,omitempty"`
	PublicIP         string            `json:"public_ip,omitempty"`
	VPCID            string            `json:"vpc_id,omitempty"`
	SubnetID         string            `json:"subnet_id,omitempty"`
	AvailabilityZone string            `json:"availability_zone,omitempty"`
	Platform         string            `json:"platform,omitempty"`
	LaunchTime       *time.Time        `json:"launch_time,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
}

type RDSInstance struct {
	Meta
	Engine        string `json:"engine"`
	EngineVersion string `json:"engine_version,omitempty"`
	InstanceClass string `json:"instance_class"`
	Endpoint      string `json:"endpoint,omitempty"`
	Port          int    `json:"port,omitempty"`
	MultiAZ       bool   `json:"multi_az"`
	StorageGB     int    `json:"allocated_storage,omitempty"`
	VPCID         string `json:"vpc_id,omitempty"`
	ARN           string `json:"arn,omitempty"`
}

type VPC struct {
	Meta
	CIDRBlock   string `json:"cidr_block"`
	IsDefault   bool   `json:"is_default"`
	SubnetCount int    `json:"subnet_count"`
}

type Subnet struct {
	Meta
	VPCID            string `json:"vpc_id"`
	CIDRBlock        string `json:"cidr_block"`
	AvailabilityZone string `json:"availability_zone"`
	AvailableIPs     int    `json:"available_ip_count"`
	Public           bool   `json:"map_public_ip_on_launch"`
}

type Gateway struct {
	Meta
	Type     string `json:"type"`
	VPCID    string `json:"vpc_id,omitempty"`
	SubnetID string `json:"subnet_id,omitempty"`
	PublicIP string `json:"public_ip,omitempty"`
}

type ElasticIP struct {
	Meta
	PublicIP           string `json:"public_ip"`
	AllocationID       string `json:"allocation_id,omitempty"`
	AssociationID      string `json:"association_id,omitempty"`
	InstanceID         string `json:"instance_id,omitempty"`
	NetworkInterfaceID string `json:"network_interface_id,omitempty"`
}

type ECSCluster struct {
	Meta
	ARN            string `json:"arn,omitempty"`
	ActiveServices int    `json:"active_services_count"`
	RunningTasks   int    `json:"running_tasks_count"`
	PendingTasks   int    `json:"pending_tasks_count"`
	CapacityInfo   string `json:"capacity_providers,omitempty"`
}

type Safe struct {
	Meta
	Description     string `json:"description,omitempty"`
	ManagingCPM     string `json:"managing_cpm,omitempty"`
	MemberCount     int    `json:"member_count"`
	AccountCount    int    `json:"account_count"`
	RetentionDays   int    `json:"retention_days,omitempty"`
	OLACEnabled     bool   `json:"olac_enabled"`
	CreatorUsername string `json:"creator,omitempty"`
}

type Role struct {
	Meta
	ARN         string `json:"arn,omitempty"`
	AccountID   string `json:"account_id,omitempty"`
	Description string `json:"description,omitempty"`
	SafeName    string `json:"safe_name,omitempty"`
	PolicyCount int    `json:"policy_count"`
}

type Policy struct {
	Meta
	Description    string `json:"description,omitempty"`
	AccessType     string `json:"access_type"`
	PrincipalCount int    `json:"principal_count"`
	TargetCount    int    `json:"target_count"`
	MaxSessionMins int    `json:"max_session_duration_minutes,omitempty"`
}

type CyberArkUser struct {
	Meta
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	Source    string     `json:"source,omitempty"`
	Suspended bool       `json:"suspended"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

type SourceStatus struct {
	Name       string     `json:"name"`
	Healthy    bool       `json:"healthy"`
	Message    string     `json:"message,omitempty"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

type StatusSummary struct {
	LastRefreshedAt   *time.Time     `json:"last_refreshed_at,omitempty"`
	RefreshInProgress bool           `json:"refresh_in_progress"`
	Sources           []SourceStatus `json:"sources"`
	Counts            map[string]int `json:"counts"`
}

type AuthConfig struct {
	LocalAuthEnabled bool   `json:"local_auth_enabled"`
	OIDCEnabled      bool   `json:"oidc_enabled"`
	OIDCLoginURL     string `json:"oidc_login_url,omitempty"`
}

type User struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
	User        User   `json:"user"`
}

type RefreshResult struct {
	Status    string     `json:"status"`
	JobID     string     `json:"job_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

type TerraformState struct {
	Source           string     `json:"source"`
	Backend          string     `json:"backend,omitempty"`
	Serial           int64      `json:"serial"`
	TerraformVersion string     `json:"terraform_version,omitempty"`
	ResourceCount    int        `json:"resource_count"`
	LastModified     *time.Time `json:"last_modified,omitempty"`
}

type DriftItem struct {
	Address      string     `json:"address"`
	ResourceType string     `json:"resource_type"`
	ResourceID   string     `json:"resource_id,omitempty"`
	DriftType    string     `json:"drift_type"`
	StateSource  string     `json:"state_source,omitempty"`
	Region       string     `json:"region,omitempty"`
	Details      string     `json:"details,omitempty"`
	DetectedAt   *time.Time `json:"detected_at,omitempty"`
}

type DriftReport struct {
	GeneratedAt *time.Time     `json:"generated_at,omitempty"`
	Items       []DriftItem    `json:"items"`
	Summary     map[string]int `json:"summary,omitempty"`
}

type Topology struct {
	Region string        `json:"region,omitempty"`
	VPCs   []TopologyVPC `json:"vpcs"`
}

type TopologyVPC struct {
	ID        string            `json:"id"`
	Name      string            `json:"name,omitempty"`
	CIDRBlock string            `json:"cidr_block,omitempty"`
	Status    Status            `json:"status,omitempty"`
	Subnets   []TopologySubnet  `json:"subnets"`
	Gateways  []TopologyGateway `json:"gateways,omitempty"`
}

type TopologySubnet struct {
	ID               string             `json:"id"`
	Name             string             `json:"name,omitempty"`
	CIDRBlock        string             `json:"cidr_block,omitempty"`
	AvailabilityZone string             `json:"availability_zone,omitempty"`
	Public           bool               `json:"public"`
	Instances        []TopologyInstance `json:"instances"`
}

type TopologyInstance struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Kind   string `json:"kind"`
	Status Status `json:"status,omitempty"`
}

type TopologyGateway struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

// Access types of a path.
const (
	AccessStanding = "standing"
	AccessJIT      = "jit"
)

type AccessMapping struct {
	Users []UserAccess `json:"users"`
}

type UserAccess struct {
	UserName string         `json:"user_name"`
	Targets  []TargetAccess `json:"targets"`
}

type TargetAccess struct {
	TargetType string       `json:"target_type"`
	TargetID   string       `json:"target_id"`
	TargetName string       `json:"target_name,omitempty"`
	Paths      []AccessPath `json:"paths"`
}

type AccessPath struct {
	AccessType string     `json:"access_type"`
	Steps      []PathStep `json:"steps"`
}

type PathStep struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name,omitempty"`
	Context    string `json:"context,omitempty"`
}

type AccessUserSummary struct {
	UserName      string `json:"user_name"`
	TargetCount   int    `json:"target_count"`
	StandingPaths int    `json:"standing_paths"`
	JITPaths      int    `json:"jit_paths"`
}

type AccessTargetSummary struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name,omitempty"`
	UserCount  int    `json:"user_count"`
}

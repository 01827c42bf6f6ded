// Package fleet implements the Fleet Orchestrator: CRUD, scale, rolling
// restart, and health probing for validator fleets, backed by Helm releases
// on a remote Kubernetes cluster.
package fleet

import "time"

// Network is a validator network identifier, mapping to the Helm chart's
// `network` value.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkDevnet  Network = "devnet"
)

// NetworkConfig is read-only reference data for a network, matching the
// chart's per-network constants.
type NetworkConfig struct {
	NetworkID   int
	ChainID     int
	HTTPPort    int
	StakingPort int
	Namespace   string
}

// NetworkConfigs is the authoritative network constant table.
var NetworkConfigs = map[Network]NetworkConfig{
	NetworkMainnet: {NetworkID: 1, ChainID: 96369, HTTPPort: 9630, StakingPort: 9631, Namespace: "lux-mainnet"},
	NetworkTestnet: {NetworkID: 2, ChainID: 96368, HTTPPort: 9640, StakingPort: 9641, Namespace: "lux-testnet"},
	NetworkDevnet:  {NetworkID: 3, ChainID: 96370, HTTPPort: 9650, StakingPort: 9651, Namespace: "lux-devnet"},
}

// networkValuesFiles names the network-specific values file present for
// mainnet and testnet only; devnet has none.
var networkValuesFiles = map[Network]string{
	NetworkMainnet: "values-mainnet.yaml",
	NetworkTestnet: "values-testnet.yaml",
}

// Status is the observed lifecycle state of a fleet (Helm release),
// transitions are derived on read rather than written.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDeploying  Status = "deploying"
	StatusRunning    Status = "running"
	StatusDegraded   Status = "degraded"
	StatusUpdating   Status = "updating"
	StatusError      Status = "error"
	StatusDestroying Status = "destroying"
	StatusDestroyed  Status = "destroyed"
)

// NodeStatus is the status of an individual validator pod within a fleet.
type NodeStatus string

const (
	NodeStatusPending       NodeStatus = "pending"
	NodeStatusInit          NodeStatus = "init"
	NodeStatusStarting      NodeStatus = "starting"
	NodeStatusBootstrapping NodeStatus = "bootstrapping"
	NodeStatusHealthy       NodeStatus = "healthy"
	NodeStatusUnhealthy     NodeStatus = "unhealthy"
	NodeStatusTerminated    NodeStatus = "terminated"
)

// Image is a container image reference, matching values.image.
type Image struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
	PullPolicy string `json:"pull_policy"`
}

func defaultImage() Image {
	return Image{Repository: "registry.digitalocean.com/hanzo/bootnode", Tag: "luxd-v1.23.11", PullPolicy: "Always"}
}

// RLPImport maps to values.bootstrap.rlpImport: C-chain block import settings.
type RLPImport struct {
	Enabled      bool     `json:"enabled"`
	BaseURL      string   `json:"base_url,omitempty"`
	RLPFilename  string   `json:"rlp_filename,omitempty"`
	MultiPart    bool     `json:"multi_part,omitempty"`
	Parts        []string `json:"parts,omitempty"`
	MinHeight    int      `json:"min_height,omitempty"`
	Timeout      int      `json:"timeout,omitempty"`
}

// Bootstrap maps to values.bootstrap.
type Bootstrap struct {
	NodeIDs      []string  `json:"node_ids,omitempty"`
	UseHostnames bool      `json:"use_hostnames"`
	ExternalIPs  []string  `json:"external_ips,omitempty"`
	RLPImport    RLPImport `json:"rlp_import"`
}

// Consensus maps to values.consensus.
type Consensus struct {
	SampleSize                 int  `json:"sample_size"`
	QuorumSize                 int  `json:"quorum_size"`
	SybilProtectionEnabled     bool `json:"sybil_protection_enabled"`
	RequireValidatorToConnect  bool `json:"require_validator_to_connect"`
	AllowPrivateIPs            bool `json:"allow_private_ips"`
}

// ChainTracking maps to values.chainTracking.
type ChainTracking struct {
	TrackAllChains bool     `json:"track_all_chains"`
	TrackedChains  []string `json:"tracked_chains,omitempty"`
	Aliases        []string `json:"aliases,omitempty"`
}

// ResourceSpec is a K8s resource request/limit pair.
type ResourceSpec struct {
	Memory string `json:"memory"`
	CPU    string `json:"cpu"`
}

// Resources maps to values.resources.
type Resources struct {
	Requests ResourceSpec `json:"requests"`
	Limits   ResourceSpec `json:"limits"`
}

// Storage maps to values.storage.
type Storage struct {
	Size         string `json:"size"`
	StorageClass string `json:"storage_class"`
}

// NodeServices maps to values.nodeServices.
type NodeServices struct {
	Enabled bool   `json:"enabled"`
	Type    string `json:"type"`
}

// APIConfig maps to values.api.
type APIConfig struct {
	AdminEnabled      bool   `json:"admin_enabled"`
	MetricsEnabled    bool   `json:"metrics_enabled"`
	IndexEnabled      bool   `json:"index_enabled"`
	HTTPAllowedHosts  string `json:"http_allowed_hosts"`
}

// CreateRequest is the request body for creating a new fleet.
type CreateRequest struct {
	Name          string         `json:"name" validate:"required,max=63,dns_label_alpha"`
	ClusterID     string         `json:"cluster_id" validate:"required"`
	Network       Network        `json:"network" validate:"required,oneof=mainnet testnet devnet"`
	Replicas      int            `json:"replicas" validate:"required,min=1,max=20"`
	Image         *Image         `json:"image,omitempty"`
	Bootstrap     *Bootstrap     `json:"bootstrap,omitempty"`
	Consensus     *Consensus     `json:"consensus,omitempty"`
	ChainTracking *ChainTracking `json:"chain_tracking,omitempty"`
	Resources     *Resources     `json:"resources,omitempty"`
	Storage       *Storage       `json:"storage,omitempty"`
	NodeServices  *NodeServices  `json:"node_services,omitempty"`
	API           *APIConfig     `json:"api,omitempty"`
	LogLevel      string         `json:"log_level"`
	DBType        string         `json:"db_type"`
}

// UpdateRequest is the request body for updating an existing fleet; only
// non-nil fields are applied as overrides.
type UpdateRequest struct {
	Replicas      *int           `json:"replicas,omitempty" validate:"omitempty,min=1,max=20"`
	Image         *Image         `json:"image,omitempty"`
	Consensus     *Consensus     `json:"consensus,omitempty"`
	ChainTracking *ChainTracking `json:"chain_tracking,omitempty"`
	Resources     *Resources     `json:"resources,omitempty"`
	LogLevel      *string        `json:"log_level,omitempty"`
}

// NodeInfo is the status of a single validator pod within a fleet.
type NodeInfo struct {
	PodName        string     `json:"pod_name"`
	PodIndex       int        `json:"pod_index"`
	Status         NodeStatus `json:"status"`
	HTTPPort       int        `json:"http_port"`
	StakingPort    int        `json:"staking_port"`
	IsBootstrapped *bool      `json:"is_bootstrapped,omitempty"`
	CChainHeight   *int64     `json:"c_chain_height,omitempty"`
}

// Response is the full fleet state returned by Create/Update/GetStatus.
type Response struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	ClusterID       string     `json:"cluster_id"`
	Network         Network    `json:"network"`
	Status          Status     `json:"status"`
	Replicas        int        `json:"replicas"`
	ReadyReplicas   int        `json:"ready_replicas"`
	Image           Image      `json:"image"`
	Namespace       string     `json:"namespace"`
	HelmRevision    int        `json:"helm_revision,omitempty"`
	RPCEndpoint     string     `json:"rpc_endpoint,omitempty"`
	StakingEndpoint string     `json:"staking_endpoint,omitempty"`
	Nodes           []NodeInfo `json:"nodes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Summary is the lightweight fleet view returned by List.
type Summary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Network       Network   `json:"network"`
	Status        Status    `json:"status"`
	Replicas      int       `json:"replicas"`
	ReadyReplicas int       `json:"ready_replicas"`
	ClusterID     string    `json:"cluster_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Stats is the aggregate fleet read-model backing GET /fleets/stats.
type Stats struct {
	TotalFleets     int            `json:"total_fleets"`
	TotalNodes      int            `json:"total_nodes"`
	HealthyNodes    int            `json:"healthy_nodes"`
	FleetsByNetwork map[Network]int `json:"fleets_by_network"`
	FleetsByStatus  map[Status]int  `json:"fleets_by_status"`
}

// ProbeResult is the result of probing one validator pod's health and chain
// height; either field may be absent if its probe failed.
type ProbeResult struct {
	Healthy      *bool  `json:"healthy,omitempty"`
	CChainHeight *int64 `json:"c_chain_height,omitempty"`
}

// ReleaseName returns the Helm release name for a fleet, "luxd-{network}".
func ReleaseName(network Network) string {
	return "luxd-" + string(network)
}

// FleetID returns the cross-cluster fleet identifier, "{name}-{network}".
func FleetID(name string, network Network) string {
	return name + "-" + string(network)
}

func imageOrDefault(img *Image) Image {
	if img != nil {
		return *img
	}
	return defaultImage()
}

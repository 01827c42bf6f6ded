package fleet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hanzoai/bootnode/pkg/deploy"
)

// restartPollInterval and restartPollAttempts implement the 5s x 60 (5 min)
// readiness wait per restarted pod.
const (
	restartPollInterval = 5 * time.Second
	restartPollAttempts = 60
)

// Orchestrator is the Fleet Orchestrator service: CRUD, scale, rolling
// restart, and health probing for validator fleets backed by Helm releases.
//
// Kubeconfig acquisition is simplified relative to a full multi-cluster
// control plane: every fleet is deployed through a single statically
// configured Deployer rather than a per-operation cloud-provider kubeconfig
// fetch, since this service has no cluster registry of its own.
type Orchestrator struct {
	deployer *deploy.Deployer
	registry *Registry
	timeout  time.Duration
}

// NewOrchestrator creates an Orchestrator using deployer for every fleet
// operation, with timeout applied to non-wait Helm/kubectl calls.
func NewOrchestrator(deployer *deploy.Deployer, registry *Registry, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Orchestrator{deployer: deployer, registry: registry, timeout: timeout}
}

// Create installs a new fleet's Helm release. Rejects a fleet_id already in
// the registry. On wrapper failure the returned Response carries
// status=error rather than a Go error, so callers with a known fleet
// identity can poll for recovery; registry add failure is the one case
// returned as a Go error, since there is no fleet to report status for yet.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (Response, error) {
	fleetID := FleetID(req.Name, req.Network)
	if err := o.registry.Add(fleetID, req.ClusterID, req.Name, req.Network); err != nil {
		return Response{}, err
	}

	now := time.Now().UTC()
	resp := Response{
		ID:        fleetID,
		Name:      req.Name,
		ClusterID: req.ClusterID,
		Network:   req.Network,
		Replicas:  req.Replicas,
		Image:     imageOrDefault(req.Image),
		Namespace: NetworkConfigs[req.Network].Namespace,
		CreatedAt: now,
	}

	values := CreateToValues(req)
	valuesFiles := valuesFilesFor(o.deployer.ChartPath, req.Network)
	release, err := o.deployer.Install(ctx, ReleaseName(req.Network), resp.Namespace, values, valuesFiles, false, o.timeout)
	if err != nil {
		resp.Status = StatusError
		resp.Error = err.Error()
		return resp, nil
	}

	resp.Status = StatusDeploying
	resp.HelmRevision = release.Revision
	return resp, nil
}

// Update translates a strict partial override and invokes upgrade with
// reuse-values so unset fields keep their existing release value.
func (o *Orchestrator) Update(ctx context.Context, fleetID string, req UpdateRequest) (Response, error) {
	clusterID, name, network, err := o.registry.Lookup(fleetID)
	if err != nil {
		return Response{}, err
	}

	namespace := NetworkConfigs[network].Namespace
	values := UpdateToValues(req)
	release, err := o.deployer.Upgrade(ctx, ReleaseName(network), namespace, values, nil, true, false, o.timeout)
	resp := Response{
		ID:        fleetID,
		Name:      name,
		ClusterID: clusterID,
		Network:   network,
		Namespace: namespace,
		UpdatedAt: time.Now().UTC(),
	}
	if err != nil {
		resp.Status = StatusError
		resp.Error = err.Error()
		return resp, nil
	}
	resp.Status = StatusUpdating
	resp.HelmRevision = release.Revision

	pods, perr := o.deployer.GetPods(ctx, namespace, "", o.timeout)
	if perr == nil {
		resp.Replicas = len(pods)
		resp.ReadyReplicas = countReady(pods)
	}
	return resp, nil
}

// Scale is Update with only replicas set.
func (o *Orchestrator) Scale(ctx context.Context, fleetID string, replicas int) (Response, error) {
	return o.Update(ctx, fleetID, UpdateRequest{Replicas: &replicas})
}

// Destroy uninstalls the fleet's Helm release and removes it from the registry.
func (o *Orchestrator) Destroy(ctx context.Context, fleetID string) error {
	_, _, network, err := o.registry.Lookup(fleetID)
	if err != nil {
		return err
	}
	namespace := NetworkConfigs[network].Namespace
	if err := o.deployer.Uninstall(ctx, ReleaseName(network), namespace, o.timeout); err != nil {
		return err
	}
	o.registry.Remove(fleetID)
	return nil
}

// GetStatus reads Helm status (best-effort; absence is tolerated), the pod
// list, and the service list, and aggregates fleet status from pod readiness.
func (o *Orchestrator) GetStatus(ctx context.Context, fleetID string) (Response, error) {
	clusterID, name, network, err := o.registry.Lookup(fleetID)
	if err != nil {
		return Response{}, err
	}

	cfg := NetworkConfigs[network]
	namespace := cfg.Namespace
	resp := Response{ID: fleetID, Name: name, ClusterID: clusterID, Network: network, Namespace: namespace}

	if release, rerr := o.deployer.Status(ctx, ReleaseName(network), namespace, o.timeout); rerr == nil {
		resp.HelmRevision = release.Revision
	}

	pods, perr := o.deployer.GetPods(ctx, namespace, "", o.timeout)
	if perr != nil {
		resp.Status = StatusError
		resp.Error = perr.Error()
		return resp, nil
	}
	resp.Replicas = len(pods)
	resp.ReadyReplicas = countReady(pods)
	resp.Status = aggregateStatus(resp.ReadyReplicas, resp.Replicas)
	resp.Nodes = nodeInfosFromPods(pods, cfg)

	services, serr := o.deployer.GetServices(ctx, namespace, o.timeout)
	if serr == nil {
		for _, svc := range services {
			for _, ip := range svc.ExternalIPs {
				resp.RPCEndpoint = fmt.Sprintf("http://%s:%d", ip, cfg.HTTPPort)
				resp.StakingEndpoint = fmt.Sprintf("%s:%d", ip, cfg.StakingPort)
			}
		}
	}

	return resp, nil
}

// aggregateStatus derives fleet-level status from ready/total pod counts.
func aggregateStatus(ready, total int) Status {
	switch {
	case total == 0:
		return StatusDeploying
	case ready == total:
		return StatusRunning
	case ready == 0:
		return StatusError
	default:
		return StatusDegraded
	}
}

func countReady(pods []deploy.Pod) int {
	n := 0
	for _, p := range pods {
		if p.Ready {
			n++
		}
	}
	return n
}

func nodeInfosFromPods(pods []deploy.Pod, cfg NetworkConfig) []NodeInfo {
	nodes := make([]NodeInfo, 0, len(pods))
	for i, p := range pods {
		status := NodeStatusUnhealthy
		switch {
		case p.Status == "Pending":
			status = NodeStatusPending
		case p.Status == "Init" || strings.HasPrefix(p.Status, "Init:"):
			status = NodeStatusInit
		case p.Ready:
			status = NodeStatusHealthy
		}
		nodes = append(nodes, NodeInfo{
			PodName:     p.Name,
			PodIndex:    i,
			Status:      status,
			HTTPPort:    cfg.HTTPPort,
			StakingPort: cfg.StakingPort,
		})
	}
	return nodes
}

// List discovers fleets from the Helm releases named "luxd-*" in all
// namespaces, read through the single configured Deployer. It runs no
// StatefulSet discovery pass and queries no other cluster, so a fleet
// without such a release is not listed.
func (o *Orchestrator) List(ctx context.Context) ([]Summary, error) {
	releases, err := o.deployer.ListReleases(ctx, "", true, o.timeout)
	if err != nil {
		return nil, err
	}

	var summaries []Summary
	for _, rel := range releases {
		if !strings.HasPrefix(rel.Name, "luxd-") {
			continue
		}
		network := Network(strings.TrimPrefix(rel.Name, "luxd-"))
		pods, perr := o.deployer.GetPods(ctx, rel.Namespace, "", o.timeout)
		ready, total := 0, 0
		if perr == nil {
			total = len(pods)
			ready = countReady(pods)
		}
		fleetID, name, clusterID := rel.Name, rel.Name, ""
		if cID, n, _, lerr := o.registry.Lookup(fleetID); lerr == nil {
			clusterID, name = cID, n
		}
		summaries = append(summaries, Summary{
			ID:            fleetID,
			Name:          name,
			Network:       network,
			Status:        aggregateStatus(ready, total),
			Replicas:      total,
			ReadyReplicas: ready,
			ClusterID:     clusterID,
		})
	}
	return summaries, nil
}

// Stats aggregates fleet/node counts across every fleet List discovers.
func (o *Orchestrator) Stats(ctx context.Context) (Stats, error) {
	summaries, err := o.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		FleetsByNetwork: make(map[Network]int),
		FleetsByStatus:  make(map[Status]int),
	}
	for _, s := range summaries {
		stats.TotalFleets++
		stats.TotalNodes += s.Replicas
		stats.HealthyNodes += s.ReadyReplicas
		stats.FleetsByNetwork[s.Network]++
		stats.FleetsByStatus[s.Status]++
	}
	return stats, nil
}

// GetPodLogs returns the tail of a pod's log output.
func (o *Orchestrator) GetPodLogs(ctx context.Context, fleetID, podName string, tail int) (string, error) {
	_, _, network, err := o.registry.Lookup(fleetID)
	if err != nil {
		return "", err
	}
	namespace := NetworkConfigs[network].Namespace
	return o.deployer.GetPodLogs(ctx, podName, namespace, "", tail)
}

// RollingRestart deletes each pod in lexicographic name order, polling for
// its ready replacement before moving to the next, and returns the ordered
// list of deleted pod names. Relies on the StatefulSet's OnDelete update
// policy keeping exactly one pod in flight at a time.
func (o *Orchestrator) RollingRestart(ctx context.Context, fleetID string) ([]string, error) {
	_, _, network, err := o.registry.Lookup(fleetID)
	if err != nil {
		return nil, err
	}
	namespace := NetworkConfigs[network].Namespace

	pods, err := o.deployer.GetPods(ctx, namespace, "", o.timeout)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(pods))
	for i, p := range pods {
		names[i] = p.Name
	}
	sort.Strings(names)

	var restarted []string
	for _, podName := range names {
		if err := o.deployer.DeletePod(ctx, podName, namespace); err != nil {
			return restarted, fmt.Errorf("deleting pod %s: %w", podName, err)
		}
		restarted = append(restarted, podName)
		o.waitForReady(ctx, namespace, podName)
	}
	return restarted, nil
}

func (o *Orchestrator) waitForReady(ctx context.Context, namespace, podName string) {
	for i := 0; i < restartPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartPollInterval):
		}
		pods, err := o.deployer.GetPods(ctx, namespace, "", o.timeout)
		if err != nil {
			continue
		}
		for _, p := range pods {
			if p.Name == podName && p.Ready {
				return
			}
		}
	}
}

// ProbeNodeHealth runs the two in-pod probes (health endpoint, JSON-RPC
// eth_blockNumber) and returns whatever succeeded; either field may be nil
// if its own probe failed, independent of the other's outcome.
func (o *Orchestrator) ProbeNodeHealth(ctx context.Context, fleetID, podName string) ProbeResult {
	_, _, network, err := o.registry.Lookup(fleetID)
	if err != nil {
		return ProbeResult{}
	}
	cfg := NetworkConfigs[network]
	namespace := cfg.Namespace

	var result ProbeResult

	healthOut, herr := o.deployer.ExecPod(ctx, podName, namespace, "",
		[]string{"wget", "-qO-", fmt.Sprintf("http://localhost:%d/ext/health", cfg.HTTPPort)}, 10*time.Second)
	if herr == nil {
		var parsed struct {
			Healthy bool `json:"healthy"`
		}
		if jerr := json.Unmarshal([]byte(healthOut), &parsed); jerr == nil {
			healthy := parsed.Healthy
			result.Healthy = &healthy
		}
	}

	rpcBody := `{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber","params":[]}`
	rpcOut, rerr := o.deployer.ExecPod(ctx, podName, namespace, "", []string{
		"wget", "-qO-",
		"--header=Content-Type: application/json",
		"--post-data=" + rpcBody,
		fmt.Sprintf("http://localhost:%d/ext/bc/C/rpc", cfg.HTTPPort),
	}, 10*time.Second)
	if rerr == nil {
		var parsed struct {
			Result string `json:"result"`
		}
		if jerr := json.Unmarshal([]byte(rpcOut), &parsed); jerr == nil {
			if height, perr := parseHexQuantity(parsed.Result); perr == nil {
				result.CChainHeight = &height
			}
		}
	}

	return result
}

func parseHexQuantity(s string) (int64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	if _, err := hex.DecodeString(padEven(s)); err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 16, 64)
}

func padEven(s string) string {
	if len(s)%2 == 1 {
		return "0" + s
	}
	return s
}

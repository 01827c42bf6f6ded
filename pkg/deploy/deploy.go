// Package deploy wraps the helm and kubectl CLIs via os/exec for deploying
// Helm releases and applying raw manifests to remote Kubernetes clusters.
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// NameRE is the RFC 1123 DNS label pattern every release name, namespace, and
// pod name passed to a subprocess must match.
var NameRE = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ReleaseStatus mirrors the `status.info.status` field of `helm status -o json`.
type ReleaseStatus string

const (
	StatusDeployed        ReleaseStatus = "deployed"
	StatusFailed          ReleaseStatus = "failed"
	StatusPendingInstall  ReleaseStatus = "pending-install"
	StatusPendingUpgrade  ReleaseStatus = "pending-upgrade"
	StatusPendingRollback ReleaseStatus = "pending-rollback"
	StatusSuperseded      ReleaseStatus = "superseded"
	StatusUninstalled     ReleaseStatus = "uninstalled"
	StatusUninstalling    ReleaseStatus = "uninstalling"
	StatusUnknown         ReleaseStatus = "unknown"
)

// Error is returned when a helm/kubectl invocation fails.
type Error struct {
	Message    string
	Stderr     string
	ReturnCode int
}

func (e *Error) Error() string { return e.Message }

// Release is a Helm release as reported by `helm status`/`helm list`.
type Release struct {
	Name       string
	Namespace  string
	Revision   int
	Status     ReleaseStatus
	Chart      string
	AppVersion string
	Updated    string
}

// Pod is a condensed view of a pod returned by `kubectl get pods -o json`.
type Pod struct {
	Name     string
	Ready    bool
	Status   string
	Restarts int
	Node     string
	IP       string
}

// Service is a condensed view of a service returned by `kubectl get services -o json`.
type Service struct {
	Name        string
	Type        string
	ClusterIP   string
	ExternalIPs []string
	Ports       []ServicePort
}

// ServicePort is one port entry of a Service.
type ServicePort struct {
	Name       string
	Port       int32
	TargetPort string
}

// Deployer drives helm and kubectl against one specific cluster (one
// kubeconfig/context pair). Create one per cluster the caller targets.
type Deployer struct {
	ChartPath      string
	KubeconfigPath string
	KubeContext    string
	HelmBinary     string
	KubectlBinary  string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Deployer bound to chartPath for the cluster identified by
// kubeconfigPath/kubeContext (either may be empty to use the ambient
// kubeconfig). helmBinary/kubectlBinary default to "helm"/"kubectl" if empty.
func New(chartPath, kubeconfigPath, kubeContext, helmBinary, kubectlBinary string) *Deployer {
	if helmBinary == "" {
		helmBinary = "helm"
	}
	if kubectlBinary == "" {
		kubectlBinary = "kubectl"
	}
	return &Deployer{
		ChartPath:      chartPath,
		KubeconfigPath: kubeconfigPath,
		KubeContext:    kubeContext,
		HelmBinary:     helmBinary,
		KubectlBinary:  kubectlBinary,
		locks:          make(map[string]*sync.Mutex),
	}
}

// releaseLock returns the per-release mutex, totally ordering every
// install/upgrade/uninstall/rollback against the same release name.
func (d *Deployer) releaseLock(releaseName string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[releaseName]
	if !ok {
		l = &sync.Mutex{}
		d.locks[releaseName] = l
	}
	return l
}

func (d *Deployer) baseHelmArgs() []string {
	args := []string{d.HelmBinary}
	if d.KubeconfigPath != "" {
		args = append(args, "--kubeconfig", d.KubeconfigPath)
	}
	if d.KubeContext != "" {
		args = append(args, "--kube-context", d.KubeContext)
	}
	return args
}

func (d *Deployer) baseKubectlArgs() []string {
	args := []string{d.KubectlBinary}
	if d.KubeconfigPath != "" {
		args = append(args, "--kubeconfig", d.KubeconfigPath)
	}
	if d.KubeContext != "" {
		args = append(args, "--context", d.KubeContext)
	}
	return args
}

// run executes args, killing the process if ctx is cancelled or the timeout
// elapses first, and returns trimmed stdout.
func (d *Deployer) run(ctx context.Context, args []string, timeout time.Duration) (string, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := bytesTrimSpace(stdout.Bytes())
	errOut := bytesTrimSpace(stderr.Bytes())

	if runCtx.Err() == context.DeadlineExceeded {
		return "", &Error{Message: fmt.Sprintf("command timed out after %s: %v", timeout, args[:min(3, len(args))])}
	}
	if err != nil {
		msg := errOut
		if msg == "" {
			msg = out
		}
		return "", &Error{
			Message:    fmt.Sprintf("command failed: %s", msg),
			Stderr:     errOut,
			ReturnCode: cmd.ProcessState.ExitCode(),
		}
	}
	return string(out), nil
}

func bytesTrimSpace(b []byte) []byte {
	return bytes.TrimSpace(b)
}

// writeValuesFile marshals values to a temp YAML file for `helm -f`. The
// caller must remove the returned path once the helm invocation completes.
func writeValuesFile(values map[string]any) (string, error) {
	f, err := os.CreateTemp("", "bootnode-values-*.yaml")
	if err != nil {
		return "", fmt.Errorf("creating values temp file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	if err := enc.Encode(values); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("encoding values: %w", err)
	}
	if err := enc.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("flushing values file: %w", err)
	}
	return f.Name(), nil
}

func parseReleaseJSON(out, releaseName, namespace string) Release {
	var data struct {
		Version int `json:"version"`
		Info    struct {
			Status       string `json:"status"`
			LastDeployed string `json:"last_deployed"`
		} `json:"info"`
		Chart struct {
			Metadata struct {
				Name       string `json:"name"`
				AppVersion string `json:"appVersion"`
			} `json:"metadata"`
		} `json:"chart"`
	}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return Release{Name: releaseName, Namespace: namespace, Revision: 1, Status: StatusDeployed}
	}
	status := ReleaseStatus(data.Info.Status)
	if status == "" {
		status = StatusUnknown
	}
	return Release{
		Name:       releaseName,
		Namespace:  namespace,
		Revision:   data.Version,
		Status:     status,
		Chart:      data.Chart.Metadata.Name,
		AppVersion: data.Chart.Metadata.AppVersion,
		Updated:    data.Info.LastDeployed,
	}
}

// Install runs `helm upgrade --install` for releaseName, writing values (if
// non-nil) to a temp values file. Network-specific valuesFiles are applied
// first (lower priority); the computed values override always wins.
func (d *Deployer) Install(ctx context.Context, releaseName, namespace string, values map[string]any, valuesFiles []string, wait bool, timeout time.Duration) (Release, error) {
	lock := d.releaseLock(releaseName)
	lock.Lock()
	defer lock.Unlock()

	args := append(d.baseHelmArgs(),
		"upgrade", "--install", releaseName, d.ChartPath,
		"--namespace", namespace,
		"--create-namespace",
		"--output", "json",
	)
	if wait {
		args = append(args, "--wait", "--timeout", timeout.String())
	}
	for _, vf := range valuesFiles {
		args = append(args, "-f", vf)
	}
	if values != nil {
		vf, err := writeValuesFile(values)
		if err != nil {
			return Release{}, err
		}
		defer os.Remove(vf)
		args = append(args, "-f", vf)
	}

	out, err := d.run(ctx, args, timeout+30*time.Second)
	if err != nil {
		return Release{}, err
	}
	return parseReleaseJSON(out, releaseName, namespace), nil
}

// Upgrade runs `helm upgrade` against an existing release, reusing prior
// values unless an explicit override is given.
func (d *Deployer) Upgrade(ctx context.Context, releaseName, namespace string, values map[string]any, valuesFiles []string, reuseValues, wait bool, timeout time.Duration) (Release, error) {
	lock := d.releaseLock(releaseName)
	lock.Lock()
	defer lock.Unlock()

	args := append(d.baseHelmArgs(),
		"upgrade", releaseName, d.ChartPath,
		"--namespace", namespace,
		"--output", "json",
	)
	if reuseValues {
		args = append(args, "--reuse-values")
	}
	if wait {
		args = append(args, "--wait", "--timeout", timeout.String())
	}
	for _, vf := range valuesFiles {
		args = append(args, "-f", vf)
	}
	if values != nil {
		vf, err := writeValuesFile(values)
		if err != nil {
			return Release{}, err
		}
		defer os.Remove(vf)
		args = append(args, "-f", vf)
	}

	out, err := d.run(ctx, args, timeout+30*time.Second)
	if err != nil {
		return Release{}, err
	}
	return parseReleaseJSON(out, releaseName, namespace), nil
}

// Uninstall runs `helm uninstall`, treating "release not found" as success.
func (d *Deployer) Uninstall(ctx context.Context, releaseName, namespace string, timeout time.Duration) error {
	lock := d.releaseLock(releaseName)
	lock.Lock()
	defer lock.Unlock()

	args := append(d.baseHelmArgs(), "uninstall", releaseName, "--namespace", namespace)
	_, err := d.run(ctx, args, timeout)
	if err != nil {
		if derr, ok := err.(*Error); ok && strings.Contains(strings.ToLower(derr.Stderr), "not found") {
			return nil
		}
		return err
	}
	return nil
}

// Rollback runs `helm rollback` (revision 0 means the previous revision),
// then returns the resulting release status.
func (d *Deployer) Rollback(ctx context.Context, releaseName, namespace string, revision int, timeout time.Duration) (Release, error) {
	lock := d.releaseLock(releaseName)
	lock.Lock()
	defer lock.Unlock()

	args := append(d.baseHelmArgs(), "rollback", releaseName, fmt.Sprint(revision), "--namespace", namespace)
	if _, err := d.run(ctx, args, timeout); err != nil {
		return Release{}, err
	}
	return d.statusLocked(ctx, releaseName, namespace, timeout)
}

// Status runs `helm status`.
func (d *Deployer) Status(ctx context.Context, releaseName, namespace string, timeout time.Duration) (Release, error) {
	return d.statusLocked(ctx, releaseName, namespace, timeout)
}

func (d *Deployer) statusLocked(ctx context.Context, releaseName, namespace string, timeout time.Duration) (Release, error) {
	args := append(d.baseHelmArgs(), "status", releaseName, "--namespace", namespace, "--output", "json")
	out, err := d.run(ctx, args, timeout)
	if err != nil {
		return Release{}, err
	}
	return parseReleaseJSON(out, releaseName, namespace), nil
}

// ListReleases runs `helm list`.
func (d *Deployer) ListReleases(ctx context.Context, namespace string, allNamespaces bool, timeout time.Duration) ([]Release, error) {
	args := append(d.baseHelmArgs(), "list", "--output", "json")
	if allNamespaces {
		args = append(args, "--all-namespaces")
	} else if namespace != "" {
		args = append(args, "--namespace", namespace)
	}

	out, err := d.run(ctx, args, timeout)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Name       string `json:"name"`
		Namespace  string `json:"namespace"`
		Revision   string `json:"revision"`
		Status     string `json:"status"`
		Chart      string `json:"chart"`
		AppVersion string `json:"app_version"`
		Updated    string `json:"updated"`
	}
	if out != "" {
		if err := json.Unmarshal([]byte(out), &raw); err != nil {
			return nil, fmt.Errorf("decoding helm list output: %w", err)
		}
	}
	releases := make([]Release, 0, len(raw))
	for _, r := range raw {
		releases = append(releases, Release{
			Name:       r.Name,
			Namespace:  r.Namespace,
			Status:     ReleaseStatus(r.Status),
			Chart:      r.Chart,
			AppVersion: r.AppVersion,
			Updated:    r.Updated,
		})
	}
	return releases, nil
}

// GetPods runs `kubectl get pods -o json`, optionally filtered by label selector.
func (d *Deployer) GetPods(ctx context.Context, namespace, labelSelector string, timeout time.Duration) ([]Pod, error) {
	args := append(d.baseKubectlArgs(), "get", "pods", "--namespace", namespace, "--output", "json")
	if labelSelector != "" {
		args = append(args, "-l", labelSelector)
	}
	out, err := d.run(ctx, args, timeout)
	if err != nil {
		return nil, err
	}

	var data struct {
		Items []struct {
			Metadata struct {
				Name string `json:"name"`
			} `json:"metadata"`
			Spec struct {
				NodeName string `json:"nodeName"`
			} `json:"spec"`
			Status struct {
				Phase      string `json:"phase"`
				PodIP      string `json:"podIP"`
				Conditions []struct {
					Type   string `json:"type"`
					Status string `json:"status"`
				} `json:"conditions"`
				ContainerStatuses []struct {
					RestartCount int `json:"restartCount"`
				} `json:"containerStatuses"`
			} `json:"status"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return nil, fmt.Errorf("decoding pod list: %w", err)
	}

	pods := make([]Pod, 0, len(data.Items))
	for _, item := range data.Items {
		ready := false
		for _, c := range item.Status.Conditions {
			if c.Type == "Ready" && c.Status == "True" {
				ready = true
			}
		}
		restarts := 0
		for _, cs := range item.Status.ContainerStatuses {
			restarts += cs.RestartCount
		}
		pods = append(pods, Pod{
			Name:     item.Metadata.Name,
			Ready:    ready,
			Status:   item.Status.Phase,
			Restarts: restarts,
			Node:     item.Spec.NodeName,
			IP:       item.Status.PodIP,
		})
	}
	return pods, nil
}

// GetServices runs `kubectl get services -o json`; external IPs come from
// each service's loadBalancer ingress ip or hostname.
func (d *Deployer) GetServices(ctx context.Context, namespace string, timeout time.Duration) ([]Service, error) {
	args := append(d.baseKubectlArgs(), "get", "services", "--namespace", namespace, "--output", "json")
	out, err := d.run(ctx, args, timeout)
	if err != nil {
		return nil, err
	}

	var data struct {
		Items []struct {
			Metadata struct {
				Name string `json:"name"`
			} `json:"metadata"`
			Spec struct {
				Type  string `json:"type"`
				Ports []struct {
					Name       string `json:"name"`
					Port       int32  `json:"port"`
					TargetPort any    `json:"targetPort"`
				} `json:"ports"`
				ClusterIP string `json:"clusterIP"`
			} `json:"spec"`
			Status struct {
				LoadBalancer struct {
					Ingress []struct {
						IP       string `json:"ip"`
						Hostname string `json:"hostname"`
					} `json:"ingress"`
				} `json:"loadBalancer"`
			} `json:"status"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		return nil, fmt.Errorf("decoding service list: %w", err)
	}

	services := make([]Service, 0, len(data.Items))
	for _, item := range data.Items {
		var externalIPs []string
		for _, ing := range item.Status.LoadBalancer.Ingress {
			if ing.IP != "" {
				externalIPs = append(externalIPs, ing.IP)
			} else if ing.Hostname != "" {
				externalIPs = append(externalIPs, ing.Hostname)
			}
		}
		ports := make([]ServicePort, 0, len(item.Spec.Ports))
		for _, p := range item.Spec.Ports {
			ports = append(ports, ServicePort{Name: p.Name, Port: p.Port, TargetPort: fmt.Sprint(p.TargetPort)})
		}
		services = append(services, Service{
			Name:        item.Metadata.Name,
			Type:        item.Spec.Type,
			ClusterIP:   item.Spec.ClusterIP,
			ExternalIPs: externalIPs,
			Ports:       ports,
		})
	}
	return services, nil
}

// GetPodLogs runs `kubectl logs`.
func (d *Deployer) GetPodLogs(ctx context.Context, podName, namespace, container string, tail int) (string, error) {
	if !NameRE.MatchString(podName) || !NameRE.MatchString(namespace) {
		return "", fmt.Errorf("invalid pod or namespace name")
	}
	args := append(d.baseKubectlArgs(), "logs", podName, "--namespace", namespace, fmt.Sprintf("--tail=%d", tail))
	if container != "" {
		args = append(args, "-c", container)
	}
	return d.run(ctx, args, 30*time.Second)
}

// DeletePod runs `kubectl delete pod`, used for OnDelete rolling restarts.
func (d *Deployer) DeletePod(ctx context.Context, podName, namespace string) error {
	if !NameRE.MatchString(podName) || !NameRE.MatchString(namespace) {
		return fmt.Errorf("invalid pod or namespace name")
	}
	args := append(d.baseKubectlArgs(), "delete", "pod", podName, "--namespace", namespace)
	_, err := d.run(ctx, args, 30*time.Second)
	return err
}

// ApplyManifest runs `kubectl apply -f -`, feeding manifestYAML on stdin.
// Used by the network launcher, which applies raw manifests rather than a
// Helm chart.
func (d *Deployer) ApplyManifest(ctx context.Context, namespace, manifestYAML string, timeout time.Duration) error {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := append(d.baseKubectlArgs(), "apply", "--namespace", namespace, "-f", "-")
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Stdin = bytes.NewBufferString(manifestYAML)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errOut := bytesTrimSpace(stderr.Bytes())
		msg := string(errOut)
		if msg == "" {
			msg = string(bytesTrimSpace(stdout.Bytes()))
		}
		return &Error{Message: fmt.Sprintf("kubectl apply failed: %s", msg), Stderr: string(errOut)}
	}
	return nil
}

// DeleteResources runs `kubectl delete <kind> <name> --ignore-not-found` for
// each resource, sweeping every named resource even if one is already gone.
func (d *Deployer) DeleteResources(ctx context.Context, namespace string, resources []Resource, timeout time.Duration) error {
	for _, res := range resources {
		args := append(d.baseKubectlArgs(), "delete", res.Kind, res.Name, "--namespace", namespace, "--ignore-not-found")
		if _, err := d.run(ctx, args, timeout); err != nil {
			return fmt.Errorf("deleting %s/%s: %w", res.Kind, res.Name, err)
		}
	}
	return nil
}

// Resource names one Kubernetes object for DeleteResources.
type Resource struct {
	Kind string
	Name string
}

// ExecPod runs `kubectl exec` on podName and returns combined stdout, used
// for in-pod health probes (wget against a health endpoint, curl'd JSON-RPC
// calls) where no separate container port is reachable from the caller.
func (d *Deployer) ExecPod(ctx context.Context, podName, namespace, container string, command []string, timeout time.Duration) (string, error) {
	if !NameRE.MatchString(podName) || !NameRE.MatchString(namespace) {
		return "", fmt.Errorf("invalid pod or namespace name")
	}
	args := append(d.baseKubectlArgs(), "exec", podName, "--namespace", namespace)
	if container != "" {
		args = append(args, "-c", container)
	}
	args = append(args, "--")
	args = append(args, command...)
	return d.run(ctx, args, timeout)
}

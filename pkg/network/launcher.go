package network

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hanzoai/bootnode/pkg/deploy"
)

// Launcher provisions and tears down branded tenant stacks: renders
// manifests, applies/deletes them via kubectl, and keeps the Postgres
// registry in sync.
type Launcher struct {
	store         *Store
	deployer      *deploy.Deployer
	logger        *slog.Logger
	clusterIssuer string
	applyTimeout  time.Duration
}

// NewLauncher creates a Launcher.
func NewLauncher(store *Store, deployer *deploy.Deployer, logger *slog.Logger, clusterIssuer string, applyTimeout time.Duration) *Launcher {
	return &Launcher{store: store, deployer: deployer, logger: logger, clusterIssuer: clusterIssuer, applyTimeout: applyTimeout}
}

// LaunchParams are the fields supplied to Launch.
type LaunchParams struct {
	Slug           string
	Name           string
	ChainID        int64
	GenesisURL     string
	ClusterID      string
	Namespace      string
	Domain         string
	Brand          string
	WebImage       string
	APIServiceName string
	APIServicePort int
	IAMClientID    string
	APIURL         string
	WSURL          string
	Tier           Tier
	WithValidators bool
	CloudDomains   []string
}

// Launch renders the Deployment/Service/Ingress set for a new tenant, applies
// it, and records the registry row. If rendering or the apply fails, the network's
// status becomes error with the stderr message; no rollback is attempted,
// since the manifests are idempotent on re-apply.
func (l *Launcher) Launch(ctx context.Context, p LaunchParams) (Network, error) {
	rc := ReplicasForTier(p.Tier, p.WithValidators)

	n, err := l.store.Create(ctx, CreateParams{
		Slug:           p.Slug,
		Name:           p.Name,
		ChainID:        p.ChainID,
		GenesisURL:     p.GenesisURL,
		ClusterID:      p.ClusterID,
		Namespace:      p.Namespace,
		Domain:         p.Domain,
		WebReplicas:    rc.Web,
		APIReplicas:    rc.API,
		ValidatorCount: rc.Validator,
	})
	if err != nil {
		return Network{}, fmt.Errorf("creating network record: %w", err)
	}

	manifest, err := Render(RenderParams{
		Slug:           p.Slug,
		Domain:         p.Domain,
		Brand:          p.Brand,
		WebImage:       p.WebImage,
		WebReplicas:    rc.Web,
		APIServiceName: p.APIServiceName,
		APIServicePort: p.APIServicePort,
		IAMClientID:    p.IAMClientID,
		APIURL:         p.APIURL,
		WSURL:          p.WSURL,
		ClusterIssuer:  l.clusterIssuer,
		CloudDomains:   append(append([]string{}, p.CloudDomains...), p.Domain),
	})
	if err != nil {
		n.Status = StatusError
		n.StatusDetail = err.Error()
		return n, nil
	}

	if err := l.deployer.ApplyManifest(ctx, p.Namespace, manifest, l.applyTimeout); err != nil {
		l.logger.Error("applying network manifest", "slug", p.Slug, "error", err)
		n.Status = StatusError
		n.StatusDetail = err.Error()
		return n, nil
	}

	n.Status = StatusActive
	l.logger.Info("network launched", "slug", p.Slug, "namespace", p.Namespace, "domain", p.Domain)
	return n, nil
}

// List returns a page of registered networks with their live status, plus
// the total row count across all pages.
func (l *Launcher) List(ctx context.Context, limit, offset int) ([]Network, int, error) {
	networks, total, err := l.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i := range networks {
		networks[i].Status, networks[i].StatusDetail = l.deriveStatus(ctx, networks[i])
	}
	return networks, total, nil
}

// Get returns one network's registry row with its live status.
func (l *Launcher) Get(ctx context.Context, slug string) (Network, error) {
	n, err := l.store.GetBySlug(ctx, slug)
	if err != nil {
		return Network{}, err
	}
	n.Status, n.StatusDetail = l.deriveStatus(ctx, n)
	return n, nil
}

// deriveStatus surfaces the web Deployment's ready-replica count the same
// way Fleet status is derived: the registry row is a cache, the cluster is
// authoritative.
func (l *Launcher) deriveStatus(ctx context.Context, n Network) (Status, string) {
	pods, err := l.deployer.GetPods(ctx, n.Namespace, fmt.Sprintf("app=%s", resourceName(n.Slug, "web")), 10*time.Second)
	if err != nil {
		return StatusError, err.Error()
	}
	ready := 0
	for _, p := range pods {
		if p.Ready {
			ready++
		}
	}
	if ready == 0 {
		return StatusLaunching, fmt.Sprintf("0/%d web replicas ready", n.WebReplicas)
	}
	return StatusActive, fmt.Sprintf("%d/%d web replicas ready", ready, n.WebReplicas)
}

// Scale changes only the web Deployment's replica count — matching the
// original launcher, api_replicas/validator_count on the request are
// accepted but silently ignored.
func (l *Launcher) Scale(ctx context.Context, slug string, webReplicas int) (Network, error) {
	n, err := l.store.GetBySlug(ctx, slug)
	if err != nil {
		return Network{}, err
	}

	if err := l.scaleDeployment(ctx, n.Namespace, resourceName(slug, "web"), webReplicas); err != nil {
		return Network{}, fmt.Errorf("scaling web deployment: %w", err)
	}

	return l.store.UpdateWebReplicas(ctx, slug, webReplicas)
}

func (l *Launcher) scaleDeployment(ctx context.Context, namespace, deploymentName string, replicas int) error {
	return l.deployer.ApplyManifest(ctx, namespace, fmt.Sprintf(`apiVersion: apps/v1
kind: Deployment
metadata:
  name: %s
spec:
  replicas: %d
`, deploymentName, replicas), l.applyTimeout)
}

// Delete sweeps the four named resources with --ignore-not-found and removes
// the registry row.
func (l *Launcher) Delete(ctx context.Context, slug string) error {
	n, err := l.store.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}

	if err := l.deployer.DeleteResources(ctx, n.Namespace, ResourcesFor(slug), l.applyTimeout); err != nil {
		return fmt.Errorf("deleting network resources: %w", err)
	}

	if err := l.store.Delete(ctx, slug); err != nil {
		return fmt.Errorf("deleting network record: %w", err)
	}

	l.logger.Info("network destroyed", "slug", slug)
	return nil
}

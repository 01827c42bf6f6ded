// Package network implements the Network Launcher: one-shot provisioning of
// a branded tenant frontend + API stack onto a Kubernetes cluster, and a
// registry of launched networks.
package network

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the observed state of a launched network, derived on read from
// the rendered resources rather than stored directly — mutations happen
// through kubectl, not through the registry row.
type Status string

const (
	StatusLaunching Status = "launching"
	StatusActive    Status = "active"
	StatusError     Status = "error"
	StatusDestroyed Status = "destroyed"
)

// Tier selects the replica counts applied at launch time.
type Tier string

const (
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ReplicaCounts is the {web, api, val} triple the tier catalog maps to.
type ReplicaCounts struct {
	Web       int
	API       int
	Validator int
}

var tierReplicas = map[Tier]ReplicaCounts{
	TierStarter:    {Web: 2, API: 0, Validator: 0},
	TierPro:        {Web: 2, API: 3, Validator: 3},
	TierEnterprise: {Web: 3, API: 5, Validator: 5},
}

// ReplicasForTier returns the {web, api, val} replica counts for a tier,
// zeroing the validator count unless withValidators is set.
func ReplicasForTier(tier Tier, withValidators bool) ReplicaCounts {
	rc, ok := tierReplicas[tier]
	if !ok {
		rc = tierReplicas[TierStarter]
	}
	if !withValidators {
		rc.Validator = 0
	}
	return rc
}

// Network is a registry row: one launched tenant stack.
type Network struct {
	ID             uuid.UUID
	Slug           string
	Name           string
	ChainID        int64
	GenesisURL     string
	ClusterID      string
	Namespace      string
	Domain         string
	WebReplicas    int
	APIReplicas    int
	ValidatorCount int
	Status         Status
	StatusDetail   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ClientID returns the OAuth client_id derived for this network's tenant,
// "{slug}-cloud".
func (n Network) ClientID() string {
	return ClientIDForSlug(n.Slug)
}

// ClientIDForSlug derives the OAuth client_id for a tenant slug.
func ClientIDForSlug(slug string) string {
	return fmt.Sprintf("%s-cloud", slug)
}

// resourceName returns the "{slug}-cloud-{suffix}" name used for every
// resource this launcher produces (Deployment, Service, both Ingresses).
func resourceName(slug, suffix string) string {
	return fmt.Sprintf("%s-cloud-%s", slug, suffix)
}

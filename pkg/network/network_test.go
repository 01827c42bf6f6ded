package network

import "testing"

func TestReplicasForTier(t *testing.T) {
	tests := []struct {
		name           string
		tier           Tier
		withValidators bool
		want           ReplicaCounts
	}{
		{"starter", TierStarter, false, ReplicaCounts{Web: 2, API: 0, Validator: 0}},
		{"pro without validators", TierPro, false, ReplicaCounts{Web: 2, API: 3, Validator: 0}},
		{"pro with validators", TierPro, true, ReplicaCounts{Web: 2, API: 3, Validator: 3}},
		{"enterprise with validators", TierEnterprise, true, ReplicaCounts{Web: 3, API: 5, Validator: 5}},
		{"unknown tier falls back to starter", Tier("bogus"), true, ReplicaCounts{Web: 2, API: 0, Validator: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReplicasForTier(tt.tier, tt.withValidators); got != tt.want {
				t.Errorf("ReplicasForTier(%v, %v) = %+v, want %+v", tt.tier, tt.withValidators, got, tt.want)
			}
		})
	}
}

func TestClientIDForSlug(t *testing.T) {
	if got := ClientIDForSlug("acme"); got != "acme-cloud" {
		t.Errorf("ClientIDForSlug = %q, want %q", got, "acme-cloud")
	}
}

func TestResourceName(t *testing.T) {
	tests := []struct {
		slug, suffix, want string
	}{
		{"acme", "web", "acme-cloud-web"},
		{"acme", "ingress", "acme-cloud-ingress"},
		{"acme", "api-ingress", "acme-cloud-api-ingress"},
	}
	for _, tt := range tests {
		if got := resourceName(tt.slug, tt.suffix); got != tt.want {
			t.Errorf("resourceName(%q, %q) = %q, want %q", tt.slug, tt.suffix, got, tt.want)
		}
	}
}

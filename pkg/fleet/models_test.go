package fleet

import "testing"

func TestReleaseName(t *testing.T) {
	tests := []struct {
		network Network
		want    string
	}{
		{NetworkMainnet, "luxd-mainnet"},
		{NetworkTestnet, "luxd-testnet"},
		{NetworkDevnet, "luxd-devnet"},
	}
	for _, tt := range tests {
		if got := ReleaseName(tt.network); got != tt.want {
			t.Errorf("ReleaseName(%v) = %q, want %q", tt.network, got, tt.want)
		}
	}
}

func TestFleetID(t *testing.T) {
	if got := FleetID("acme", NetworkTestnet); got != "acme-testnet" {
		t.Errorf("FleetID = %q, want %q", got, "acme-testnet")
	}
}

func TestNetworkConfigs(t *testing.T) {
	tests := []struct {
		network Network
		want    NetworkConfig
	}{
		{NetworkMainnet, NetworkConfig{NetworkID: 1, ChainID: 96369, HTTPPort: 9630, StakingPort: 9631, Namespace: "lux-mainnet"}},
		{NetworkTestnet, NetworkConfig{NetworkID: 2, ChainID: 96368, HTTPPort: 9640, StakingPort: 9641, Namespace: "lux-testnet"}},
		{NetworkDevnet, NetworkConfig{NetworkID: 3, ChainID: 96370, HTTPPort: 9650, StakingPort: 9651, Namespace: "lux-devnet"}},
	}
	for _, tt := range tests {
		if got := NetworkConfigs[tt.network]; got != tt.want {
			t.Errorf("NetworkConfigs[%v] = %+v, want %+v", tt.network, got, tt.want)
		}
	}
}

func TestImageOrDefault(t *testing.T) {
	if got := imageOrDefault(nil); got != defaultImage() {
		t.Errorf("imageOrDefault(nil) = %+v, want default %+v", got, defaultImage())
	}
	custom := &Image{Repository: "custom/repo", Tag: "v1", PullPolicy: "IfNotPresent"}
	if got := imageOrDefault(custom); got != *custom {
		t.Errorf("imageOrDefault(custom) = %+v, want %+v", got, *custom)
	}
}

package fleet

import (
	"testing"

	"github.com/hanzoai/bootnode/pkg/deploy"
)

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name        string
		ready, total int
		want        Status
	}{
		{"no pods yet", 0, 0, StatusDeploying},
		{"all ready", 3, 3, StatusRunning},
		{"partial ready", 1, 3, StatusDegraded},
		{"none ready", 0, 3, StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := aggregateStatus(tt.ready, tt.total); got != tt.want {
				t.Errorf("aggregateStatus(%d, %d) = %v, want %v", tt.ready, tt.total, got, tt.want)
			}
		})
	}
}

func TestCountReady(t *testing.T) {
	pods := []deploy.Pod{{Ready: true}, {Ready: false}, {Ready: true}}
	if got := countReady(pods); got != 2 {
		t.Errorf("countReady = %d, want 2", got)
	}
}

func TestNodeInfosFromPods(t *testing.T) {
	cfg := NetworkConfigs[NetworkTestnet]
	pods := []deploy.Pod{
		{Name: "luxd-0", Status: "Pending"},
		{Name: "luxd-1", Status: "Running", Ready: false},
		{Name: "luxd-2", Status: "Running", Ready: true},
	}
	nodes := nodeInfosFromPods(pods, cfg)
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	if nodes[0].Status != NodeStatusPending {
		t.Errorf("node 0 status = %v, want pending", nodes[0].Status)
	}
	if nodes[1].Status != NodeStatusUnhealthy {
		t.Errorf("node 1 status = %v, want unhealthy", nodes[1].Status)
	}
	if nodes[2].Status != NodeStatusHealthy {
		t.Errorf("node 2 status = %v, want healthy", nodes[2].Status)
	}
	if nodes[0].HTTPPort != cfg.HTTPPort {
		t.Errorf("HTTPPort = %d, want %d", nodes[0].HTTPPort, cfg.HTTPPort)
	}
}

func TestParseHexQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0x1b4", 436, false},
		{"0x0", 0, false},
		{"1b4", 436, false},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseHexQuantity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseHexQuantity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseHexQuantity(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

package deploy

import (
	"os"
	"testing"
)

func TestNameRE(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple", "mainnet", true},
		{"with dashes", "my-tenant-1", true},
		{"single char", "a", true},
		{"uppercase rejected", "MyTenant", false},
		{"leading dash rejected", "-tenant", false},
		{"trailing dash rejected", "tenant-", false},
		{"underscore rejected", "my_tenant", false},
		{"empty rejected", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NameRE.MatchString(tt.input); got != tt.want {
				t.Errorf("NameRE.MatchString(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseReleaseJSON(t *testing.T) {
	tests := []struct {
		name       string
		out        string
		wantStatus ReleaseStatus
		wantRev    int
	}{
		{
			name:       "deployed",
			out:        `{"version":3,"info":{"status":"deployed","last_deployed":"2026-01-01T00:00:00Z"},"chart":{"metadata":{"name":"bootnode-fleet","appVersion":"1.2.3"}}}`,
			wantStatus: StatusDeployed,
			wantRev:    3,
		},
		{
			name:       "failed",
			out:        `{"version":1,"info":{"status":"failed"}}`,
			wantStatus: StatusFailed,
			wantRev:    1,
		},
		{
			name:       "unparsable falls back to deployed rev 1",
			out:        `not json`,
			wantStatus: StatusDeployed,
			wantRev:    1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseReleaseJSON(tt.out, "rel", "ns")
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", got.Status, tt.wantStatus)
			}
			if got.Revision != tt.wantRev {
				t.Errorf("Revision = %v, want %v", got.Revision, tt.wantRev)
			}
		})
	}
}

func TestWriteValuesFile(t *testing.T) {
	path, err := writeValuesFile(map[string]any{"replicas": 3, "network": "testnet"})
	if err != nil {
		t.Fatalf("writeValuesFile: %v", err)
	}
	defer func() { _ = os.Remove(path) }()

	if path == "" {
		t.Fatal("expected non-empty path")
	}
}

package usage

import "testing"

func TestComputeUnitsFor(t *testing.T) {
	tests := []struct {
		method string
		want   int64
	}{
		{"eth_getBalance", 5},
		{"eth_getLogs", 75},
		{"eth_sendRawTransaction", 250},
		{"eth_chainId", 0},
		{"some_unknown_method", DefaultComputeUnits},
		{"", DefaultComputeUnits},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			if got := computeUnitsFor(tt.method); got != tt.want {
				t.Errorf("computeUnitsFor(%q) = %d, want %d", tt.method, got, tt.want)
			}
		})
	}
}

func TestBulkComputeUnits(t *testing.T) {
	tests := []struct {
		name    string
		methods []string
		want    int64
	}{
		{"empty", nil, 0},
		{"single known", []string{"eth_getBalance"}, 5},
		{"mixed known and unknown", []string{"eth_getBalance", "totally_unknown"}, 5 + DefaultComputeUnits},
		{"repeated method sums per call", []string{"eth_getBalance", "eth_getBalance"}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BulkComputeUnits(tt.methods); got != tt.want {
				t.Errorf("BulkComputeUnits(%v) = %d, want %d", tt.methods, got, tt.want)
			}
		})
	}
}

package tiers

import "testing"

func TestValid(t *testing.T) {
	tests := []struct {
		tier Tier
		want bool
	}{
		{Free, true},
		{PayAsYouGo, true},
		{Growth, true},
		{Enterprise, true},
		{Tier("bogus"), false},
		{Tier(""), false},
	}
	for _, tt := range tests {
		if got := tt.tier.Valid(); got != tt.want {
			t.Errorf("Tier(%q).Valid() = %v, want %v", tt.tier, got, tt.want)
		}
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name string
		tier Tier
		want int64
	}{
		{"free", Free, 30_000_000},
		{"payg has no monthly cap", PayAsYouGo, 0},
		{"growth", Growth, 100_000_000},
		{"enterprise is custom", Enterprise, 0},
		{"unknown tier falls back to free", Tier("bogus"), 30_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Get(tt.tier).MonthlyCU; got != tt.want {
				t.Errorf("Get(%q).MonthlyCU = %d, want %d", tt.tier, got, tt.want)
			}
		})
	}
}

func TestMonthlyCostCents(t *testing.T) {
	tests := []struct {
		name   string
		tier   Tier
		cuUsed int64
		want   int64
	}{
		{"free never bills", Free, 500_000_000, 0},
		{"enterprise never bills here", Enterprise, 500_000_000, 0},
		{"payg bills every unit", PayAsYouGo, 1_000_000, 40},
		{"payg below a million rounds down", PayAsYouGo, 500_000, 0},
		{"growth within included CU bills nothing", Growth, 50_000_000, 0},
		{"growth overage bills only the excess", Growth, 101_000_000, 35},
		{"growth exactly at the cap bills nothing", Growth, 100_000_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthlyCostCents(tt.tier, tt.cuUsed); got != tt.want {
				t.Errorf("MonthlyCostCents(%q, %d) = %d, want %d", tt.tier, tt.cuUsed, got, tt.want)
			}
		})
	}
}

// Package tiers holds the static pricing-tier catalog for compute-unit
// billing. The catalog itself never changes at runtime; it is the source of
// truth consulted by the usage tracker and the Commerce webhook handler.
package tiers

// Tier identifies a pricing plan.
type Tier string

const (
	Free       Tier = "free"
	PayAsYouGo Tier = "payg"
	Growth     Tier = "growth"
	Enterprise Tier = "enterprise"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case Free, PayAsYouGo, Growth, Enterprise:
		return true
	default:
		return false
	}
}

// Limits describes the quota and pricing for a tier.
type Limits struct {
	MonthlyCU              int64 // 0 = unlimited
	RateLimitPerSecond     int
	MaxApps                int // 0 = unlimited
	MaxWebhooks            int
	PricePerMillionCU      int // cents, 0 = free or custom pricing
	OveragePricePerMillion int // cents, PAYG/Growth overage rate
	SupportLevel           string
	Features               []string
}

// catalog mirrors the Alchemy-style pricing ladder this system was modeled
// after: Free is capped, PAYG is metered with no cap, Growth bundles CU with
// overage, Enterprise is custom (limits of 0 mean "negotiated separately").
var catalog = map[Tier]Limits{
	Free: {
		MonthlyCU:          30_000_000,
		RateLimitPerSecond: 25,
		MaxApps:            5,
		MaxWebhooks:        5,
		PricePerMillionCU:  0,
		SupportLevel:       "community",
		Features: []string{
			"30M compute units/month",
			"25 requests/second",
			"5 apps",
			"5 webhooks",
			"Standard APIs",
			"Community support",
		},
	},
	PayAsYouGo: {
		MonthlyCU:              0,
		RateLimitPerSecond:     300,
		MaxApps:                30,
		MaxWebhooks:            100,
		PricePerMillionCU:      40,
		OveragePricePerMillion: 40,
		SupportLevel:           "email",
		Features: []string{
			"Pay as you go",
			"300 requests/second",
			"30 apps",
			"100 webhooks",
			"Enhanced APIs",
			"Email support",
			"Usage analytics",
		},
	},
	Growth: {
		MonthlyCU:              100_000_000,
		RateLimitPerSecond:     500,
		MaxApps:                50,
		MaxWebhooks:            250,
		PricePerMillionCU:      35,
		OveragePricePerMillion: 35,
		SupportLevel:           "priority",
		Features: []string{
			"100M compute units included",
			"500 requests/second",
			"50 apps",
			"250 webhooks",
			"All Enhanced APIs",
			"Priority support",
			"Advanced analytics",
			"Custom webhooks",
		},
	},
	Enterprise: {
		MonthlyCU:          0,
		RateLimitPerSecond: 1000,
		MaxApps:            0,
		MaxWebhooks:        500,
		PricePerMillionCU:  0,
		SupportLevel:       "dedicated",
		Features: []string{
			"Custom compute units",
			"Custom rate limits",
			"Unlimited apps",
			"500+ webhooks",
			"All APIs + custom",
			"Dedicated support",
			"SLA guarantee",
			"Private endpoints",
			"Custom integrations",
		},
	},
}

// Get returns the Limits for a tier, falling back to Free for unknown tiers.
func Get(t Tier) Limits {
	if l, ok := catalog[t]; ok {
		return l
	}
	return catalog[Free]
}

// MonthlyCostCents computes the monthly bill in cents for a tier given the
// compute units consumed this period. Free and Enterprise always bill 0 here
// — Enterprise pricing is negotiated and invoiced outside this path. PAYG
// bills whole millions only (rounded down); Growth bills its overage
// pro rata.
func MonthlyCostCents(t Tier, cuUsed int64) int64 {
	limits := Get(t)

	if t == Free || t == Enterprise {
		return 0
	}

	billable := cuUsed - limits.MonthlyCU
	if billable < 0 {
		billable = 0
	}

	if t == PayAsYouGo {
		return (billable / 1_000_000) * int64(limits.PricePerMillionCU)
	}

	millions := float64(billable) / 1_000_000
	return int64(millions * float64(limits.PricePerMillionCU))
}

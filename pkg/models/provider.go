package models

// ProviderSnapshot is a point-in-time view of a provider's health and cost
// profile, refreshed out-of-band by the health monitor. The router treats a
// snapshot slice as an immutable input.
type ProviderSnapshot struct {
	Name         string  `json:"name"`
	Healthy      bool    `json:"healthy"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	CostPer1K    float64 `json:"cost_per_1k"`
}

// Package router picks a provider from a metrics snapshot. Selection is a
// pure function: no I/O, no shared state, deterministic for a given input.
package router

import (
	"errors"

	"github.com/praghav/modelgate/pkg/models"
)

// Scoring weights: latency dominates cost.
const (
	latencyWeight = 0.6
	costWeight    = 0.4
)

// ErrNoSelection is returned when neither a usable preference nor auto mode
// was requested.
var ErrNoSelection = errors.New("must specify a provider or auto mode")

// ErrNoHealthyProvider is returned when no healthy candidate exists.
var ErrNoHealthyProvider = errors.New("no healthy providers available")

// Select picks a provider name from the snapshot slice.
//
// A healthy preferred provider always wins over scoring. Otherwise auto mode
// scores every healthy candidate with min-max-normalized latency and cost
// (lower combined score wins). Latency and cost are normalized across the
// current healthy set only, never against absolute scales, so ranking is
// invariant under rescaling; a zero range normalizes to 0 for every
// candidate. Ties break by snapshot order, which callers keep equal to
// registration order, making selection reproducible for a given snapshot.
func Select(snapshots []models.ProviderSnapshot, preferred string, auto bool) (string, error) {
	if preferred != "" {
		for _, s := range snapshots {
			if s.Name == preferred && s.Healthy {
				return preferred, nil
			}
		}
	}

	if !auto {
		return "", ErrNoSelection
	}

	var candidates []models.ProviderSnapshot
	for _, s := range snapshots {
		if s.Healthy {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return "", ErrNoHealthyProvider
	}

	minLatency, maxLatency := minMax(candidates, func(s models.ProviderSnapshot) float64 { return s.AvgLatencyMs })
	minCost, maxCost := minMax(candidates, func(s models.ProviderSnapshot) float64 { return s.CostPer1K })

	best := candidates[0].Name
	bestScore := score(candidates[0], minLatency, maxLatency, minCost, maxCost)
	for _, c := range candidates[1:] {
		if s := score(c, minLatency, maxLatency, minCost, maxCost); s < bestScore {
			best, bestScore = c.Name, s
		}
	}
	return best, nil
}

func score(s models.ProviderSnapshot, minLatency, maxLatency, minCost, maxCost float64) float64 {
	return normalize(s.AvgLatencyMs, minLatency, maxLatency)*latencyWeight +
		normalize(s.CostPer1K, minCost, maxCost)*costWeight
}

func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

func minMax(snaps []models.ProviderSnapshot, field func(models.ProviderSnapshot) float64) (float64, float64) {
	min, max := field(snaps[0]), field(snaps[0])
	for _, s := range snaps[1:] {
		v := field(s)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

package offer

import (
	"math"
	"time"

	"dispatch/internal/core/domain/model/kernel"
)

// Reveal-delay policy constants. The delay models a fairness window so that
// closer couriers are not systematically out-raced by notification latency:
// nearby couriers see an offer almost immediately, distant ones progressively
// later, and couriers whose distance is unknown last of all.
const (
	// NearbyThresholdKm is the distance under which an offer is revealed
	// almost immediately.
	NearbyThresholdKm = 0.1
	// CloseThresholdKm is the distance under which the short fixed delay applies.
	CloseThresholdKm = 1.0

	// NearbyRevealDelay applies at or below NearbyThresholdKm.
	NearbyRevealDelay = 1 * time.Second
	// CloseRevealDelay applies at or below CloseThresholdKm.
	CloseRevealDelay = 10 * time.Second
	// UnknownDistanceRevealDelay applies when no distance could be computed.
	UnknownDistanceRevealDelay = 60 * time.Second
)

// RevealDelay computes the wait before an offer at the given distance becomes
// visible to a courier:
//
//	d ≤ 0.1 km        → 1 s
//	d ≤ 1 km          → 10 s
//	d > 1 km          → 10 s + ceil((d−1)·10) s
//	unknown distance  → 60 s
//
// The result is monotonically non-decreasing in d.
func RevealDelay(distanceKm float64) time.Duration {
	if kernel.IsUnknownDistance(distanceKm) {
		return UnknownDistanceRevealDelay
	}

	switch {
	case distanceKm <= NearbyThresholdKm:
		return NearbyRevealDelay
	case distanceKm <= CloseThresholdKm:
		return CloseRevealDelay
	default:
		extra := time.Duration(math.Ceil((distanceKm-CloseThresholdKm)*10)) * time.Second
		return CloseRevealDelay + extra
	}
}

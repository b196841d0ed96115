package retrieval

import (
	"math"
	"time"
)

// DefaultHalfLifeDays is the temporal-decay half-life spec.md §4.4 step 5
// defaults to: a memory untouched for 90 days has its fused score halved.
const DefaultHalfLifeDays = 90.0

// DecayFactor returns exp(-λ·ageDays) where λ = ln(2)/halfLifeDays.
func DecayFactor(ageDays, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	lambda := math.Ln2 / halfLifeDays
	return math.Exp(-lambda * ageDays)
}

// ApplyDecay scales score by DecayFactor based on the id's last access
// time, then applies the importance floor: final = max(score·decay,
// score·importance). A highly important memory never decays below its
// importance fraction of its fused score, per spec.md §4.4 step 5.
func ApplyDecay(score, importance float64, lastAccessedAt, now time.Time, halfLifeDays float64) float64 {
	ageDays := now.Sub(lastAccessedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	decayed := score * DecayFactor(ageDays, halfLifeDays)
	floor := score * importance
	return math.Max(decayed, floor)
}

package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecayFactor_ZeroAge_ReturnsOne(t *testing.T) {
	assert.InDelta(t, 1.0, DecayFactor(0, DefaultHalfLifeDays), 0.0001)
}

func TestDecayFactor_AtHalfLife_ReturnsOneHalf(t *testing.T) {
	assert.InDelta(t, 0.5, DecayFactor(DefaultHalfLifeDays, DefaultHalfLifeDays), 0.0001)
}

func TestDecayFactor_NonPositiveHalfLife_UsesDefault(t *testing.T) {
	assert.InDelta(t, DecayFactor(90, DefaultHalfLifeDays), DecayFactor(90, 0), 0.0001)
}

func TestApplyDecay_RecentAccess_BarelyDecayed(t *testing.T) {
	now := time.Now()
	got := ApplyDecay(1.0, 0, now, now, DefaultHalfLifeDays)
	assert.InDelta(t, 1.0, got, 0.001)
}

func TestApplyDecay_StaleButImportant_FloorsAtImportance(t *testing.T) {
	now := time.Now()
	ancient := now.AddDate(-5, 0, 0)
	got := ApplyDecay(1.0, 0.9, ancient, now, DefaultHalfLifeDays)
	assert.InDelta(t, 0.9, got, 0.001)
}

func TestApplyDecay_StaleAndUnimportant_DecaysBelowFloor(t *testing.T) {
	now := time.Now()
	stale := now.AddDate(0, 0, -90)
	got := ApplyDecay(1.0, 0.1, stale, now, DefaultHalfLifeDays)
	assert.InDelta(t, 0.5, got, 0.01)
}

func TestApplyDecay_FutureLastAccessed_ClampsAgeToZero(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	got := ApplyDecay(1.0, 0, future, now, DefaultHalfLifeDays)
	assert.InDelta(t, 1.0, got, 0.001)
}

package retrieval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSigmoid_Zero_IsOneHalf(t *testing.T) {
	assert.InDelta(t, 0.5, sigmoid(0), 0.0001)
}

func TestSigmoid_LargePositive_ApproachesOne(t *testing.T) {
	assert.InDelta(t, 1.0, sigmoid(20), 0.0001)
}

func TestSigmoid_LargeNegative_ApproachesZero(t *testing.T) {
	assert.InDelta(t, 0.0, sigmoid(-20), 0.0001)
}

func TestSigmoid_IsMonotonicallyIncreasing(t *testing.T) {
	prev := math.Inf(-1)
	for _, x := range []float64{-5, -1, 0, 1, 5} {
		cur := sigmoid(x)
		assert.Greater(t, cur, prev)
		prev = cur
	}
}

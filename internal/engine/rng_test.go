package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraw_Deterministic(t *testing.T) {
	for _, label := range []string{"clarify", "tangent", "hesitation"} {
		for turn := 1; turn <= 20; turn++ {
			a := Draw(12345, turn, label)
			b := Draw(12345, turn, label)
			require.Equal(t, a, b, "turn %d label %s", turn, label)
		}
	}
}

func TestDraw_Range(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		for turn := 0; turn < 50; turn++ {
			v := Draw(seed, turn, "clarify")
			require.GreaterOrEqual(t, v, 0.0)
			require.Less(t, v, 1.0)
		}
	}
}

func TestDraw_LabelIndependence(t *testing.T) {
	// Distinct labels at the same (seed, turn) should land at different
	// positions; a collision across all 20 turns would mean the label is
	// being ignored.
	var same int
	for turn := 1; turn <= 20; turn++ {
		if Draw(12345, turn, "clarify") == Draw(12345, turn, "tangent") {
			same++
		}
	}
	assert.Zero(t, same)
}

func TestDraw_SeedSensitivity(t *testing.T) {
	// Changing only the seed should change at least one draw across a
	// multi-turn run, for the overwhelming majority of seed pairs.
	differingSeeds := 0
	for seed := int64(1); seed <= 100; seed++ {
		for turn := 1; turn <= 8; turn++ {
			if Draw(seed, turn, "clarify") != Draw(seed+1, turn, "clarify") {
				differingSeeds++
				break
			}
		}
	}
	assert.Equal(t, 100, differingSeeds)
}

func TestDraw_RoughlyUniform(t *testing.T) {
	// Sanity check only: mean of many draws should sit near 0.5.
	const n = 10000
	var sum float64
	for i := 0; i < n; i++ {
		sum += Draw(int64(i), i%32, "uniformity")
	}
	mean := sum / n
	assert.InDelta(t, 0.5, mean, 0.02)
}

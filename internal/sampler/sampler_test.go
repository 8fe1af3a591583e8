package sampler

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/rng"
)

// planarDataset builds a one-record-per-site planar dataset from site
// coordinates.
func planarDataset(coords [][2]float64) *model.Dataset {
	occs := make([]model.Occurrence, 0, len(coords))
	for i, c := range coords {
		occs = append(occs, model.Occurrence{
			TaxonID: "tax" + string(rune('a'+i%26)),
			SiteID:  siteID(i),
			X:       c[0],
			Y:       c[1],
		})
	}
	return model.NewDataset(model.CRSPlanar, occs)
}

func siteID(i int) string {
	// Zero-padded so lexicographic order matches numeric order.
	return "s" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}

func TestWeighterMass(t *testing.T) {
	w := Weighter{HalfDistance: 5}
	assert.Equal(t, 1.0, w.Mass(0))
	assert.Equal(t, 0.5, w.Mass(5))
	// Monotone non-increasing, strictly positive.
	prev := 2.0
	for d := 0.0; d <= 100; d += 2.5 {
		m := w.Mass(d)
		assert.LessOrEqual(t, m, prev)
		assert.Greater(t, m, 0.0)
		prev = m
	}

	// Disabled weighting: equal mass everywhere.
	off := Weighter{}
	assert.Equal(t, off.Mass(0), off.Mass(1e6))
}

func TestDrawUniform(t *testing.T) {
	s := rng.Split(7, 0)
	picked, err := drawUniform(s, 10, 4)
	require.NoError(t, err)
	require.Len(t, picked, 4)

	seen := make(map[int]bool)
	for _, i := range picked {
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, 10)
		assert.False(t, seen[i], "repeated index")
		seen[i] = true
	}

	_, err = drawUniform(s, 3, 4)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInsufficientPool))
}

func TestDrawUniform_Deterministic(t *testing.T) {
	a, err := drawUniform(rng.Split(42, 3), 20, 5)
	require.NoError(t, err)
	b, err := drawUniform(rng.Split(42, 3), 20, 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDrawWeighted(t *testing.T) {
	masses := []float64{1, 1, 1, 1000}
	counts := make([]int, 4)
	for i := 0; i < 500; i++ {
		picked, err := drawWeighted(rng.Split(uint64(i), 0), masses, 1)
		require.NoError(t, err)
		counts[picked[0]]++
	}
	// Index 3 carries ~99.7% of the mass.
	assert.Greater(t, counts[3], 450)

	_, err := drawWeighted(rng.Split(1, 0), masses, 5)
	require.Error(t, err)
}

func TestDrawWeighted_NoRepeats(t *testing.T) {
	masses := []float64{5, 1, 3, 2, 4, 1}
	picked, err := drawWeighted(rng.Split(9, 2), masses, 6)
	require.NoError(t, err)
	require.Len(t, picked, 6)
	seen := make(map[int]bool)
	for _, i := range picked {
		assert.False(t, seen[i])
		seen[i] = true
	}
}

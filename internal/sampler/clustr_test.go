package sampler

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geosample/internal/geom"
	"github.com/sells-group/geosample/internal/model"
)

func TestClustr_Validation(t *testing.T) {
	ds := planarDataset([][2]float64{{0, 0}, {1, 1}})
	ctx := context.Background()

	cases := []ClustrParams{
		{MaxDiameter: 0, MinSites: 1, Iterations: 1},
		{MaxDiameter: 5, MinSites: 0, Iterations: 1},
		{MaxDiameter: 5, MinSites: 1, Iterations: 0},
		{MaxDiameter: 5, SiteQuota: -1, MinSites: 1, Iterations: 1},
	}
	for _, p := range cases {
		_, err := Clustr(ctx, ds, p, 1)
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrInvalidConfiguration))
	}
}

func TestClustr_FullClusterDeterministic(t *testing.T) {
	// 16 collinear sites spaced 1 apart: the spanning tree total is 15, so
	// a cap of 20 always admits all 16 regardless of seed choice.
	coords := make([][2]float64, 16)
	for i := range coords {
		coords[i] = [2]float64{float64(i), 0}
	}
	ds := planarDataset(coords)

	coll, err := Clustr(context.Background(), ds, ClustrParams{
		MaxDiameter: 20,
		MinSites:    1,
		Iterations:  10,
		Output:      model.OutputLocations,
	}, 5)
	require.NoError(t, err)

	for _, sub := range coll.Subsamples() {
		require.Len(t, sub.Sites, 16)
		assert.Len(t, sub.SiteIDSet(), 16)

		total, err := geom.MSTTotal(model.CRSPlanar, sub.Sites)
		require.NoError(t, err)
		assert.LessOrEqual(t, total, 20.0)
		assert.InDelta(t, 15.0, total, 1e-9)
	}
	assert.Equal(t, 0, coll.Omitted())
}

func TestClustr_MSTWithinCap(t *testing.T) {
	// Irregular scatter; the cap stops growth early. The realized
	// cluster's MST total never exceeds the cap because the attachment
	// tree bounds it from above.
	coords := [][2]float64{
		{0, 0}, {1, 0.5}, {2, 0}, {3, 1}, {4, 0.5},
		{10, 10}, {11, 10.5}, {12, 10}, {30, 30}, {31, 30},
	}
	ds := planarDataset(coords)

	coll, err := Clustr(context.Background(), ds, ClustrParams{
		MaxDiameter: 6,
		MinSites:    2,
		Iterations:  30,
		Output:      model.OutputLocations,
	}, 17)
	require.NoError(t, err)

	for _, sub := range coll.Subsamples() {
		require.GreaterOrEqual(t, len(sub.Sites), 2)
		total, err := geom.MSTTotal(model.CRSPlanar, sub.Sites)
		require.NoError(t, err)
		assert.LessOrEqual(t, total, 6.0)
	}
}

func TestClustr_MinSitesOmission(t *testing.T) {
	// Two clumps of 5, far apart; a cap of 10 confines growth to the
	// seed's clump, so min sites 6 can never be met.
	coords := [][2]float64{
		{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0},
		{100, 0}, {101, 0}, {102, 0}, {103, 0}, {104, 0},
	}
	ds := planarDataset(coords)

	coll, err := Clustr(context.Background(), ds, ClustrParams{
		MaxDiameter: 10,
		MinSites:    6,
		Iterations:  8,
		Output:      model.OutputLocations,
	}, 23)
	require.NoError(t, err)

	assert.Equal(t, 8, coll.Omitted())
	for _, d := range coll.Draws {
		assert.Equal(t, model.OmitSmallCluster, d.Omitted)
	}
}

func TestClustr_QuotaRarefaction(t *testing.T) {
	coords := make([][2]float64, 12)
	for i := range coords {
		coords[i] = [2]float64{float64(i), 0}
	}
	ds := planarDataset(coords)

	coll, err := Clustr(context.Background(), ds, ClustrParams{
		MaxDiameter: 50,
		SiteQuota:   4,
		MinSites:    1,
		Iterations:  15,
		Output:      model.OutputLocations,
	}, 31)
	require.NoError(t, err)

	for _, sub := range coll.Subsamples() {
		require.Len(t, sub.Sites, 4)
		assert.Len(t, sub.SiteIDSet(), 4)
	}
	assert.Equal(t, 0, coll.Omitted())
}

func TestClustr_QuotaAboveClusterOmits(t *testing.T) {
	ds := planarDataset([][2]float64{{0, 0}, {1, 0}, {2, 0}})

	coll, err := Clustr(context.Background(), ds, ClustrParams{
		MaxDiameter: 50,
		SiteQuota:   5,
		MinSites:    1,
		Iterations:  4,
		Output:      model.OutputLocations,
	}, 41)
	require.NoError(t, err)
	assert.Equal(t, 4, coll.Omitted())
}

func TestClustr_DeterministicAcrossWorkerCounts(t *testing.T) {
	coords := [][2]float64{
		{0, 0}, {1, 1}, {2, 0.5}, {5, 5}, {6, 5.5}, {3, 2}, {8, 1}, {9, 0},
	}
	ds := planarDataset(coords)
	p := ClustrParams{MaxDiameter: 7, MinSites: 2, Iterations: 20, Output: model.OutputLocations}

	p.Workers = 1
	seq, err := Clustr(context.Background(), ds, p, 1234)
	require.NoError(t, err)

	p.Workers = 6
	par, err := Clustr(context.Background(), ds, p, 1234)
	require.NoError(t, err)

	assert.Equal(t, seq, par)
}

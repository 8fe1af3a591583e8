package summary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/rarefaction"
)

func recordSubsample() *model.Subsample {
	return &model.Subsample{
		Sites: []model.Site{
			{ID: "s1", X: 0, Y: 0},
			{ID: "s2", X: 3, Y: 4},
			{ID: "s3", X: 6, Y: 8},
		},
		Occurrences: []model.Occurrence{
			{TaxonID: "ta", SiteID: "s1", X: 0, Y: 0},
			{TaxonID: "ta", SiteID: "s2", X: 3, Y: 4},
			{TaxonID: "ta", SiteID: "s3", X: 6, Y: 8},
			{TaxonID: "tb", SiteID: "s1", X: 0, Y: 0},
			{TaxonID: "tb", SiteID: "s2", X: 3, Y: 4},
			{TaxonID: "tc", SiteID: "s3", X: 6, Y: 8},
		},
	}
}

func TestSummarize_SpatialMetrics(t *testing.T) {
	sz := New(nil)
	row, err := sz.Summarize(model.CRSPlanar, recordSubsample(), Params{})
	require.NoError(t, err)

	assert.Equal(t, 3, row.NSites)
	assert.InDelta(t, 3.0, row.CentroidX, 1e-9)
	assert.InDelta(t, 4.0, row.CentroidY, 1e-9)
	assert.InDelta(t, 8.0, row.LatRange, 1e-9)
	// Collinear sites: diameter 10, MST 5+5.
	assert.InDelta(t, 10.0, row.Diameter, 1e-9)
	assert.InDelta(t, 10.0, row.TotalMST, 1e-9)

	assert.Equal(t, 3, row.NTaxa)
	assert.Equal(t, 6, row.NOccurrences)
	assert.Empty(t, row.Flagged)
}

func TestSummarize_MSTInvariantToRecordOrder(t *testing.T) {
	sz := New(nil)
	sub := recordSubsample()
	a, err := sz.Summarize(model.CRSPlanar, sub, Params{})
	require.NoError(t, err)

	rev := &model.Subsample{
		Sites:       []model.Site{sub.Sites[2], sub.Sites[0], sub.Sites[1]},
		Occurrences: sub.Occurrences,
	}
	b, err := sz.Summarize(model.CRSPlanar, rev, Params{})
	require.NoError(t, err)

	assert.InDelta(t, a.TotalMST, b.TotalMST, 1e-9)
	assert.Equal(t, a.NSites, b.NSites)
}

func TestSummarize_SingleSite(t *testing.T) {
	sz := New(nil)
	sub := &model.Subsample{Sites: []model.Site{{ID: "s1", X: 7, Y: 9}}}
	row, err := sz.Summarize(model.CRSPlanar, sub, Params{})
	require.NoError(t, err)

	assert.Equal(t, 1, row.NSites)
	assert.Equal(t, 7.0, row.CentroidX)
	assert.Equal(t, 9.0, row.CentroidY)
	assert.Equal(t, 0.0, row.TotalMST)
	assert.Equal(t, 0.0, row.Diameter)
	assert.Equal(t, 0.0, row.LatRange)
}

func TestSummarize_SitesDerivedFromRecords(t *testing.T) {
	sz := New(nil)
	sub := &model.Subsample{Occurrences: []model.Occurrence{
		{TaxonID: "ta", SiteID: "s1", X: 0, Y: 0},
		{TaxonID: "tb", SiteID: "s1", X: 0, Y: 0},
		{TaxonID: "ta", SiteID: "s2", X: 3, Y: 4},
	}}
	row, err := sz.Summarize(model.CRSPlanar, sub, Params{})
	require.NoError(t, err)
	assert.Equal(t, 2, row.NSites)
	assert.Equal(t, 3, row.NOccurrences)
}

func TestSummarize_ClassicalRarefaction(t *testing.T) {
	sz := New(nil)
	row, err := sz.Summarize(model.CRSPlanar, recordSubsample(), Params{ClassicalQuota: 4})
	require.NoError(t, err)

	require.NotNil(t, row.ClassicalRichness)
	assert.Greater(t, row.ClassicalRichness.Estimate, 1.0)
	assert.LessOrEqual(t, row.ClassicalRichness.Estimate, 3.0)
	assert.LessOrEqual(t, row.ClassicalRichness.LowerCI, row.ClassicalRichness.Estimate)
	assert.GreaterOrEqual(t, row.ClassicalRichness.UpperCI, row.ClassicalRichness.Estimate)
	assert.Greater(t, row.Evenness, 0.0)
}

func TestSummarize_InfeasibleQuotaFlagsRow(t *testing.T) {
	sz := New(nil)
	row, err := sz.Summarize(model.CRSPlanar, recordSubsample(), Params{
		ClassicalQuota: 100,
		CoverageQuota:  0.9999,
	})
	require.NoError(t, err, "infeasible quotas flag the row, they do not fail it")

	assert.Nil(t, row.ClassicalRichness)
	assert.Nil(t, row.CoverageRichness)
	assert.Contains(t, row.Flagged, "classical quota infeasible")
	assert.Contains(t, row.Flagged, "coverage quota infeasible")
	// Spatial metrics remain valid on a flagged row.
	assert.Equal(t, 3, row.NSites)
}

func TestSummarize_OmitMostCommon(t *testing.T) {
	sz := New(nil)
	// "ta" dominates with 3 of 6 occurrences; omitting it leaves [2,1].
	with, err := sz.Summarize(model.CRSPlanar, recordSubsample(), Params{ClassicalQuota: 3})
	require.NoError(t, err)
	without, err := sz.Summarize(model.CRSPlanar, recordSubsample(), Params{ClassicalQuota: 3, OmitMostCommon: true})
	require.NoError(t, err)

	require.NotNil(t, with.ClassicalRichness)
	require.NotNil(t, without.ClassicalRichness)
	// Raw counts are unaffected by the dominance control.
	assert.Equal(t, with.NTaxa, without.NTaxa)
	assert.Equal(t, with.NOccurrences, without.NOccurrences)
	// The rarefied estimate now ranges over two taxa at most.
	assert.LessOrEqual(t, without.ClassicalRichness.Estimate, 2.0)
}

func TestSummarizeCollection_OrderAndOmissions(t *testing.T) {
	sz := New(nil)
	sub := recordSubsample()
	coll := model.Collection{Draws: []model.Draw{
		{Index: 0, Subsample: sub},
		{Index: 1, Omitted: model.OmitSmallPool},
		{Index: 2, Subsample: sub},
	}}

	rows, err := sz.SummarizeCollection(context.Background(), model.CRSPlanar, coll, Params{Workers: 2})
	require.NoError(t, err)
	// One row per valid subsample, omitted draws skipped.
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0], rows[1])
}

func TestSummarizeCollection_Cancelled(t *testing.T) {
	sz := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	coll := model.Collection{Draws: []model.Draw{{Index: 0, Subsample: recordSubsample()}}}
	_, err := sz.SummarizeCollection(ctx, model.CRSPlanar, coll, Params{Workers: 1})
	require.Error(t, err)
}

type stubEstimator struct{ calls int }

func (s *stubEstimator) EstimateRichness(counts []int, q rarefaction.Quota) (rarefaction.Result, error) {
	s.calls++
	return rarefaction.Result{Estimate: 42}, nil
}

func TestSummarize_UsesInjectedEstimator(t *testing.T) {
	stub := &stubEstimator{}
	sz := New(stub)
	row, err := sz.Summarize(model.CRSPlanar, recordSubsample(), Params{ClassicalQuota: 2, CoverageQuota: 0.5})
	require.NoError(t, err)

	assert.Equal(t, 2, stub.calls)
	assert.Equal(t, 42.0, row.ClassicalRichness.Estimate)
	assert.Equal(t, 42.0, row.CoverageRichness.Estimate)
}

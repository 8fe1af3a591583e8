package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geosample/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testDataset() *model.Dataset {
	return model.NewDataset(model.CRSPlanar, []model.Occurrence{
		{TaxonID: "ta", SiteID: "s1", X: 0, Y: 0, CollectionID: "c1", ReferenceID: "r1"},
		{TaxonID: "tb", SiteID: "s1", X: 0, Y: 0},
		{TaxonID: "ta", SiteID: "s2", X: 3, Y: 4},
	})
}

func TestSQLiteDatasetRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	info, err := s.CreateDataset(ctx, "owls", testDataset())
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "owls", info.Name)
	assert.Equal(t, 3, info.NRecords)
	assert.Equal(t, 2, info.NSites)

	got, ds, err := s.GetDataset(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.ID, got.ID)
	assert.Equal(t, model.CRSPlanar, ds.CRS)
	require.Len(t, ds.Occurrences, 3)
	// Input order survives the round trip, so derived site pools match.
	assert.Equal(t, "ta", ds.Occurrences[0].TaxonID)
	assert.Equal(t, "c1", ds.Occurrences[0].CollectionID)
	assert.Equal(t, "s1", ds.SitePool()[0].ID)
	assert.Equal(t, "s2", ds.SitePool()[1].ID)
}

func TestSQLiteGetDataset_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, _, err := s.GetDataset(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteListDatasets(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.CreateDataset(ctx, "first", testDataset())
	require.NoError(t, err)
	_, err = s.CreateDataset(ctx, "second", testDataset())
	require.NoError(t, err)

	infos, err := s.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestSQLiteRunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	info, err := s.CreateDataset(ctx, "owls", testDataset())
	require.NoError(t, err)

	run, err := s.CreateRun(ctx, info.ID, model.SamplerCookies, `{"radius":10}`, 42)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.Equal(t, uint64(42), run.Seed)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusSampling))
	require.NoError(t, s.CompleteRun(ctx, run.ID, 95, 5))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 95, got.Draws)
	assert.Equal(t, 5, got.Omissions)
	assert.Equal(t, model.SamplerCookies, got.Sampler)
	assert.Equal(t, `{"radius":10}`, got.Params)
	assert.Equal(t, uint64(42), got.Seed)
}

func TestSQLiteRun_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "nonexistent")
	require.Error(t, err)

	err = s.UpdateRunStatus(ctx, "nonexistent", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = s.CompleteRun(ctx, "nonexistent", 0, 0)
	require.Error(t, err)
}

func TestSQLiteListRuns_Filter(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, err := s.CreateDataset(ctx, "a", testDataset())
	require.NoError(t, err)
	b, err := s.CreateDataset(ctx, "b", testDataset())
	require.NoError(t, err)

	r1, err := s.CreateRun(ctx, a.ID, model.SamplerCookies, `{}`, 1)
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, a.ID, model.SamplerClustr, `{}`, 2)
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, b.ID, model.SamplerBandit, `{}`, 3)
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, r1.ID, 10, 0))

	runs, err := s.ListRuns(ctx, RunFilter{DatasetID: a.ID})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, r1.ID, runs[0].ID)

	runs, err = s.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLiteSummariesRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	info, err := s.CreateDataset(ctx, "owls", testDataset())
	require.NoError(t, err)
	run, err := s.CreateRun(ctx, info.ID, model.SamplerCookies, `{}`, 1)
	require.NoError(t, err)

	rows := []model.DiversitySummary{
		{NSites: 3, TotalMST: 10, NTaxa: 2, Evenness: 0.8,
			ClassicalRichness: &model.RarefiedRichness{Estimate: 1.9, LowerCI: 1.5, UpperCI: 2.0, Coverage: 0.9}},
		{NSites: 2, Flagged: "classical quota infeasible"},
	}
	require.NoError(t, s.SaveSummaries(ctx, run.ID, rows))

	got, err := s.ListSummaries(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rows[0], got[0])
	assert.Equal(t, rows[1], got[1])

	// Saving again replaces, not appends.
	require.NoError(t, s.SaveSummaries(ctx, run.ID, rows[:1]))
	got, err = s.ListSummaries(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

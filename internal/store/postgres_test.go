package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geosample/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, dataset_id, sampler, params, seed, status, draws, omissions, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "ds-1", "cookies", `{"radius":10}`, int64(42), "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "ds-1", model.SamplerCookies, `{"radius":10}`, 42)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.Equal(t, uint64(42), run.Seed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing-run", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, draws = \$2, omissions = \$3`).
		WithArgs("complete", 95, 5, pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", 95, 5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateDataset_CopiesOccurrences(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO datasets`).
		WithArgs(pgxmock.AnyArg(), "owls", "planar", 3, 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"occurrences"},
		[]string{"dataset_id", "idx", "taxon_id", "site_id", "x", "y", "collection_id", "reference_id"}).
		WillReturnResult(3)

	info, err := s.CreateDataset(context.Background(), "owls", testDataset())
	require.NoError(t, err)
	assert.Equal(t, 3, info.NRecords)
	assert.Equal(t, 2, info.NSites)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDataset_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, crs, n_records, n_sites, created_at FROM datasets`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, _, err := s.GetDataset(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSummaries(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM summaries WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"summaries"}, []string{"run_id", "idx", "row"}).
		WillReturnResult(1)

	err := s.SaveSummaries(context.Background(), "run-1", []model.DiversitySummary{{NSites: 3}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cols := []string{"id", "dataset_id", "sampler", "params", "seed", "status", "draws", "omissions", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT .* FROM runs WHERE 1=1 AND status = \$1`).
		WithArgs("complete", 100).
		WillReturnRows(pgxmock.NewRows(cols))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Package store persists datasets, sampling runs, and diversity summaries
// behind a backend-neutral interface with SQLite and Postgres
// implementations.
package store

import (
	"context"

	"github.com/sells-group/geosample/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	DatasetID string          `json:"dataset_id,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for datasets, runs, and
// summaries.
type Store interface {
	// Datasets
	CreateDataset(ctx context.Context, name string, ds *model.Dataset) (*model.DatasetInfo, error)
	GetDataset(ctx context.Context, id string) (*model.DatasetInfo, *model.Dataset, error)
	ListDatasets(ctx context.Context) ([]model.DatasetInfo, error)

	// Runs
	CreateRun(ctx context.Context, datasetID string, sampler model.SamplerKind, params string, seed uint64) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, draws, omissions int) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Summaries
	SaveSummaries(ctx context.Context, runID string, rows []model.DiversitySummary) error
	ListSummaries(ctx context.Context, runID string) ([]model.DiversitySummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geosample/internal/db"
	"github.com/sells-group/geosample/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, dataset_id, sampler, params, seed, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_run":      `UPDATE runs SET status = $1, draws = $2, omissions = $3, updated_at = $4 WHERE id = $5`,
	"get_run":           `SELECT id, dataset_id, sampler, params, seed, status, draws, omissions, created_at, updated_at FROM runs WHERE id = $1`,
	"get_dataset":       `SELECT id, name, crs, n_records, n_sites, created_at FROM datasets WHERE id = $1`,
	"insert_summary":    `INSERT INTO summaries (run_id, idx, row) VALUES ($1, $2, $3)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	crs        TEXT NOT NULL,
	n_records  INTEGER NOT NULL,
	n_sites    INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS occurrences (
	dataset_id    TEXT NOT NULL REFERENCES datasets(id),
	idx           INTEGER NOT NULL,
	taxon_id      TEXT NOT NULL,
	site_id       TEXT NOT NULL,
	x             DOUBLE PRECISION NOT NULL,
	y             DOUBLE PRECISION NOT NULL,
	collection_id TEXT,
	reference_id  TEXT,
	PRIMARY KEY (dataset_id, idx)
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	dataset_id TEXT NOT NULL REFERENCES datasets(id),
	sampler    TEXT NOT NULL,
	params     JSONB NOT NULL,
	seed       BIGINT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	draws      INTEGER NOT NULL DEFAULT 0,
	omissions  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS summaries (
	run_id TEXT NOT NULL REFERENCES runs(id),
	idx    INTEGER NOT NULL,
	row    JSONB NOT NULL,
	PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_occurrences_dataset ON occurrences(dataset_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateDataset(ctx context.Context, name string, ds *model.Dataset) (*model.DatasetInfo, error) {
	if ds == nil {
		return nil, eris.New("postgres: nil dataset")
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO datasets (id, name, crs, n_records, n_sites, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, name, string(ds.CRS), len(ds.Occurrences), ds.NSites(), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert dataset")
	}

	rows := make([][]any, len(ds.Occurrences))
	for i, occ := range ds.Occurrences {
		rows[i] = []any{id, i, occ.TaxonID, occ.SiteID, occ.X, occ.Y, occ.CollectionID, occ.ReferenceID}
	}
	if _, err := db.CopyFrom(ctx, s.pool, "occurrences",
		[]string{"dataset_id", "idx", "taxon_id", "site_id", "x", "y", "collection_id", "reference_id"},
		rows,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: copy occurrences")
	}

	return &model.DatasetInfo{
		ID:        id,
		Name:      name,
		CRS:       ds.CRS,
		NRecords:  len(ds.Occurrences),
		NSites:    ds.NSites(),
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) GetDataset(ctx context.Context, id string) (*model.DatasetInfo, *model.Dataset, error) {
	var info model.DatasetInfo
	var crs string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, crs, n_records, n_sites, created_at FROM datasets WHERE id = $1`, id,
	).Scan(&info.ID, &info.Name, &crs, &info.NRecords, &info.NSites, &info.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, eris.Errorf("postgres: dataset not found: %s", id)
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "postgres: get dataset")
	}
	info.CRS = model.CRS(crs)

	rows, err := s.pool.Query(ctx,
		`SELECT taxon_id, site_id, x, y, collection_id, reference_id
		 FROM occurrences WHERE dataset_id = $1 ORDER BY idx`, id,
	)
	if err != nil {
		return nil, nil, eris.Wrap(err, "postgres: get occurrences")
	}
	defer rows.Close()

	occs := make([]model.Occurrence, 0, info.NRecords)
	for rows.Next() {
		var occ model.Occurrence
		var coll, ref *string
		if err := rows.Scan(&occ.TaxonID, &occ.SiteID, &occ.X, &occ.Y, &coll, &ref); err != nil {
			return nil, nil, eris.Wrap(err, "postgres: scan occurrence")
		}
		if coll != nil {
			occ.CollectionID = *coll
		}
		if ref != nil {
			occ.ReferenceID = *ref
		}
		occs = append(occs, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "postgres: iterate occurrences")
	}

	return &info, model.NewDataset(info.CRS, occs), nil
}

func (s *PostgresStore) ListDatasets(ctx context.Context) ([]model.DatasetInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, crs, n_records, n_sites, created_at FROM datasets ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list datasets")
	}
	defer rows.Close()

	var infos []model.DatasetInfo
	for rows.Next() {
		var info model.DatasetInfo
		var crs string
		if err := rows.Scan(&info.ID, &info.Name, &crs, &info.NRecords, &info.NSites, &info.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dataset")
		}
		info.CRS = model.CRS(crs)
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "postgres: list datasets iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, datasetID string, sampler model.SamplerKind, params string, seed uint64) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, dataset_id, sampler, params, seed, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, datasetID, string(sampler), params, int64(seed), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		DatasetID: datasetID,
		Sampler:   sampler,
		Params:    params,
		Seed:      seed,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, draws, omissions int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, draws = $2, omissions = $3, updated_at = $4 WHERE id = $5`,
		string(model.RunStatusComplete), draws, omissions, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var seed int64
	err := s.pool.QueryRow(ctx,
		`SELECT id, dataset_id, sampler, params, seed, status, draws, omissions, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.DatasetID, &r.Sampler, &r.Params, &seed, &r.Status, &r.Draws, &r.Omissions, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: get run: not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	r.Seed = uint64(seed)
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, dataset_id, sampler, params, seed, status, draws, omissions, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.DatasetID != "" {
		args = append(args, filter.DatasetID)
		query += ` AND dataset_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var seed int64
		if err := rows.Scan(&r.ID, &r.DatasetID, &r.Sampler, &r.Params, &seed, &r.Status, &r.Draws, &r.Omissions, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Seed = uint64(seed)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveSummaries(ctx context.Context, runID string, summaries []model.DiversitySummary) error {
	// Saving is idempotent per run.
	if _, err := s.pool.Exec(ctx, `DELETE FROM summaries WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear summaries for run %s", runID)
	}

	rows := make([][]any, len(summaries))
	for i, row := range summaries {
		rowJSON, err := json.Marshal(row)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal summary %d", i)
		}
		rows[i] = []any{runID, i, string(rowJSON)}
	}
	if _, err := db.CopyFrom(ctx, s.pool, "summaries", []string{"run_id", "idx", "row"}, rows); err != nil {
		return eris.Wrap(err, "postgres: copy summaries")
	}
	return nil
}

func (s *PostgresStore) ListSummaries(ctx context.Context, runID string) ([]model.DiversitySummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT row FROM summaries WHERE run_id = $1 ORDER BY idx`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list summaries")
	}
	defer rows.Close()

	var out []model.DiversitySummary
	for rows.Next() {
		var rowJSON []byte
		if err := rows.Scan(&rowJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan summary")
		}
		var row model.DiversitySummary
		if err := json.Unmarshal(rowJSON, &row); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list summaries iterate")
}

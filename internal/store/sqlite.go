package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/geosample/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	crs        TEXT NOT NULL,
	n_records  INTEGER NOT NULL,
	n_sites    INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS occurrences (
	dataset_id   TEXT NOT NULL REFERENCES datasets(id),
	idx          INTEGER NOT NULL,
	taxon_id     TEXT NOT NULL,
	site_id      TEXT NOT NULL,
	x            REAL NOT NULL,
	y            REAL NOT NULL,
	collection_id TEXT,
	reference_id  TEXT,
	PRIMARY KEY (dataset_id, idx)
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	dataset_id TEXT NOT NULL REFERENCES datasets(id),
	sampler    TEXT NOT NULL,
	params     TEXT NOT NULL,
	seed       INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	draws      INTEGER NOT NULL DEFAULT 0,
	omissions  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS summaries (
	run_id TEXT NOT NULL REFERENCES runs(id),
	idx    INTEGER NOT NULL,
	row    TEXT NOT NULL,
	PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_occurrences_dataset ON occurrences(dataset_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDataset(ctx context.Context, name string, ds *model.Dataset) (*model.DatasetInfo, error) {
	if ds == nil {
		return nil, eris.New("sqlite: nil dataset")
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO datasets (id, name, crs, n_records, n_sites, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, string(ds.CRS), len(ds.Occurrences), ds.NSites(), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert dataset")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO occurrences (dataset_id, idx, taxon_id, site_id, x, y, collection_id, reference_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare occurrence insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, occ := range ds.Occurrences {
		if _, err := stmt.ExecContext(ctx, id, i, occ.TaxonID, occ.SiteID, occ.X, occ.Y, occ.CollectionID, occ.ReferenceID); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert occurrence %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit dataset")
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

func (s *SQLiteStore) GetDataset(ctx context.Context, id string) (*model.DatasetInfo, *model.Dataset, error) {
	var info model.DatasetInfo
	var crs string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, crs, n_records, n_sites, created_at FROM datasets WHERE id = ?`, id,
	).Scan(&info.ID, &info.Name, &crs, &info.NRecords, &info.NSites, &info.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, eris.Errorf("sqlite: dataset not found: %s", id)
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: get dataset")
	}
	info.CRS = model.CRS(crs)

	rows, err := s.db.QueryContext(ctx,
		`SELECT taxon_id, site_id, x, y, collection_id, reference_id
		 FROM occurrences WHERE dataset_id = ? ORDER BY idx`, id,
	)
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: get occurrences")
	}
	defer rows.Close()

	occs := make([]model.Occurrence, 0, info.NRecords)
	for rows.Next() {
		var occ model.Occurrence
		var coll, ref sql.NullString
		if err := rows.Scan(&occ.TaxonID, &occ.SiteID, &occ.X, &occ.Y, &coll, &ref); err != nil {
			return nil, nil, eris.Wrap(err, "sqlite: scan occurrence")
		}
		occ.CollectionID = coll.String
		occ.ReferenceID = ref.String
		occs = append(occs, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: iterate occurrences")
	}

	return &info, model.NewDataset(info.CRS, occs), nil
}

func (s *SQLiteStore) ListDatasets(ctx context.Context) ([]model.DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, crs, n_records, n_sites, created_at FROM datasets ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list datasets")
	}
	defer rows.Close()

	var infos []model.DatasetInfo
	for rows.Next() {
		var info model.DatasetInfo
		var crs string
		if err := rows.Scan(&info.ID, &info.Name, &crs, &info.NRecords, &info.NSites, &info.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dataset")
		}
		info.CRS = model.CRS(crs)
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "sqlite: list datasets iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, datasetID string, sampler model.SamplerKind, params string, seed uint64) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, dataset_id, sampler, params, seed, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, datasetID, string(sampler), params, int64(seed), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, draws, omissions int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, draws = ?, omissions = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), draws, omissions, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset_id, sampler, params, seed, status, draws, omissions, created_at, updated_at
		 FROM runs WHERE id = ?`, runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, dataset_id, sampler, params, seed, status, draws, omissions, created_at, updated_at
	 FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.DatasetID != "" {
		query += ` AND dataset_id = ?`
		args = append(args, filter.DatasetID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveSummaries(ctx context.Context, runID string, summaries []model.DiversitySummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	// Saving is idempotent per run.
	if _, err := tx.ExecContext(ctx, `DELETE FROM summaries WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: clear summaries for run %s", runID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO summaries (run_id, idx, row) VALUES (?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare summary insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, row := range summaries {
		rowJSON, err := json.Marshal(row)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal summary %d", i)
		}
		if _, err := stmt.ExecContext(ctx, runID, i, string(rowJSON)); err != nil {
			return eris.Wrapf(err, "sqlite: insert summary %d", i)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit summaries")
}

func (s *SQLiteStore) ListSummaries(ctx context.Context, runID string) ([]model.DiversitySummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row FROM summaries WHERE run_id = ? ORDER BY idx`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list summaries")
	}
	defer rows.Close()

	var out []model.DiversitySummary
	for rows.Next() {
		var rowJSON string
		if err := rows.Scan(&rowJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan summary")
		}
		var row model.DiversitySummary
		if err := json.Unmarshal([]byte(rowJSON), &row); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list summaries iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var seed int64

	err := row.Scan(&r.ID, &r.DatasetID, &r.Sampler, &r.Params, &seed, &r.Status, &r.Draws, &r.Omissions, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan run")
	}
	r.Seed = uint64(seed)
	return &r, nil
}

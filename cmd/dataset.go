package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geosample/internal/loader"
	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/store"
)

// datasetFlags is the shared dataset-source flag set: either a stored
// dataset ID or a file with column mappings.
type datasetFlags struct {
	datasetID string
	file      string
	crs       string
	taxonCol  string
	siteCol   string
	xCol      string
	yCol      string
	collCol   string
	refCol    string
	sheet     string
}

func (f *datasetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.datasetID, "dataset", "", "stored dataset ID")
	f.registerFile(cmd)
}

// registerFile registers the file-source flags only, for commands that
// always read from disk.
func (f *datasetFlags) registerFile(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", "", "occurrence file (.csv, .shp, or .xlsx)")
	cmd.Flags().StringVar(&f.crs, "crs", "geographic", "coordinate reference system: geographic or planar")
	cmd.Flags().StringVar(&f.taxonCol, "taxon-col", "taxon", "taxon ID column")
	cmd.Flags().StringVar(&f.siteCol, "site-col", "", "site ID column (default: derived from coordinates)")
	cmd.Flags().StringVar(&f.xCol, "x-col", "x", "x / longitude column")
	cmd.Flags().StringVar(&f.yCol, "y-col", "y", "y / latitude column")
	cmd.Flags().StringVar(&f.collCol, "collection-col", "", "collection ID column")
	cmd.Flags().StringVar(&f.refCol, "reference-col", "", "reference ID column")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
}

func (f *datasetFlags) mapping() loader.Mapping {
	return loader.Mapping{
		Taxon:      f.taxonCol,
		Site:       f.siteCol,
		X:          f.xCol,
		Y:          f.yCol,
		Collection: f.collCol,
		Reference:  f.refCol,
	}
}

// loadFile reads the occurrence file, dispatching on its extension.
func (f *datasetFlags) loadFile(ctx context.Context) (*model.Dataset, error) {
	crs := model.CRS(f.crs)
	if crs != model.CRSGeographic && crs != model.CRSPlanar {
		return nil, eris.Errorf("unknown crs %q", f.crs)
	}

	switch strings.ToLower(filepath.Ext(f.file)) {
	case ".csv":
		r, err := os.Open(f.file)
		if err != nil {
			return nil, eris.Wrapf(err, "open %s", f.file)
		}
		defer r.Close() //nolint:errcheck
		return loader.CSV(ctx, r, f.mapping(), crs, loader.CSVOptions{})
	case ".shp":
		return loader.Shapefile(f.file, loader.ShpMapping{
			Taxon:      f.taxonCol,
			Site:       f.siteCol,
			Collection: f.collCol,
			Reference:  f.refCol,
		}, crs)
	case ".xlsx":
		return loader.XLSX(f.file, f.mapping(), crs, loader.XLSXOptions{SheetName: f.sheet})
	default:
		return nil, eris.Errorf("unsupported file type %q (want .csv, .shp, or .xlsx)", filepath.Ext(f.file))
	}
}

// resolve returns the dataset from the store or from a file, plus the
// stored dataset ID when one was used.
func (f *datasetFlags) resolve(ctx context.Context) (*model.Dataset, string, error) {
	switch {
	case f.datasetID != "" && f.file != "":
		return nil, "", eris.New("--dataset and --file are mutually exclusive")
	case f.datasetID != "":
		st, err := initStore(ctx)
		if err != nil {
			return nil, "", err
		}
		defer st.Close() //nolint:errcheck
		_, ds, err := st.GetDataset(ctx, f.datasetID)
		return ds, f.datasetID, err
	case f.file != "":
		ds, err := f.loadFile(ctx)
		return ds, "", err
	default:
		return nil, "", eris.New("--dataset or --file is required")
	}
}

// initStore opens the configured backend and applies migrations, which
// are idempotent.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "geosample.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// writeOutput writes v as indented JSON to path, or stdout when path is
// empty.
func writeOutput(path string, v any) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geosample/internal/export"
	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/store"
)

// sampleFlags extends the dataset flags with the knobs shared by every
// sampler subcommand.
type sampleFlags struct {
	datasetFlags
	iterations int
	workers    int
	seed       uint64
	out        string
	geojson    string
	records    bool
}

func (f *sampleFlags) register(cmd *cobra.Command) {
	f.datasetFlags.register(cmd)
	cmd.Flags().IntVar(&f.iterations, "iterations", 0, "replicate draws (default from config)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "worker pool size (default: NumCPU)")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "RNG seed (default from config)")
	cmd.Flags().StringVar(&f.out, "out", "", "write the collection JSON here instead of stdout")
	cmd.Flags().StringVar(&f.geojson, "geojson", "", "also write per-draw GeoJSON FeatureCollections here")
	cmd.Flags().BoolVar(&f.records, "records", false, "emit occurrence records instead of site locations")
}

func (f *sampleFlags) resolveDefaults(cmd *cobra.Command) error {
	if err := cfg.Validate("sample"); err != nil {
		return err
	}
	if f.iterations == 0 {
		f.iterations = cfg.Sampling.Iterations
	}
	if f.workers == 0 {
		f.workers = cfg.Sampling.Workers
	}
	if !cmd.Flags().Changed("seed") {
		f.seed = uint64(cfg.Sampling.Seed)
	}
	return nil
}

func (f *sampleFlags) outputMode() model.OutputMode {
	if f.records {
		return model.OutputRecords
	}
	return model.OutputLocations
}

// openSampleData resolves the dataset and, for stored datasets, hands back
// the open store so the caller can record the run. The caller closes st
// when it is non-nil.
func (f *sampleFlags) openSampleData(ctx context.Context) (ds *model.Dataset, st store.Store, datasetID string, err error) {
	if f.datasetID == "" {
		ds, err = f.loadFile(ctx)
		return ds, nil, "", err
	}
	st, err = initStore(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	_, ds, err = st.GetDataset(ctx, f.datasetID)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, "", err
	}
	return ds, st, f.datasetID, nil
}

// recordRun persists run bookkeeping for stored datasets. Failures are
// logged, not fatal: the sampling output already exists.
func recordRun(ctx context.Context, st store.Store, datasetID string, kind model.SamplerKind, params any, seed uint64, draws, omissions int) string {
	if st == nil || datasetID == "" {
		return ""
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		zap.L().Warn("marshal run params", zap.Error(err))
		return ""
	}
	run, err := st.CreateRun(ctx, datasetID, kind, string(paramsJSON), seed)
	if err != nil {
		zap.L().Warn("record run", zap.Error(err))
		return ""
	}
	if err := st.CompleteRun(ctx, run.ID, draws, omissions); err != nil {
		zap.L().Warn("complete run", zap.Error(err))
	}
	return run.ID
}

// collectionResult is the JSON document the sampler subcommands emit.
type collectionResult struct {
	RunID     string       `json:"run_id,omitempty"`
	Seed      uint64       `json:"seed"`
	Draws     []model.Draw `json:"draws"`
	Omissions int          `json:"omissions"`
}

// emitCollection writes the result document and, when requested, the
// GeoJSON rendering of each draw.
func (f *sampleFlags) emitCollection(res any, colls ...model.Collection) error {
	if f.geojson != "" {
		features := make(map[int]json.RawMessage)
		base := 0
		for _, coll := range colls {
			fc, err := collectionFeatures(coll, base)
			if err != nil {
				return err
			}
			for i, raw := range fc {
				features[i] = raw
			}
			base += len(coll.Draws)
		}
		if err := writeOutput(f.geojson, features); err != nil {
			return err
		}
	}
	return writeOutput(f.out, res)
}

// collectionFeatures renders each populated draw as a GeoJSON
// FeatureCollection, keyed by draw index offset into the emitted document.
func collectionFeatures(coll model.Collection, base int) (map[int]json.RawMessage, error) {
	out := make(map[int]json.RawMessage, len(coll.Draws))
	for _, d := range coll.Draws {
		if d.Subsample == nil {
			continue
		}
		raw, err := export.SubsampleGeoJSON(d.Subsample)
		if err != nil {
			return nil, err
		}
		out[base+d.Index] = raw
	}
	return out, nil
}

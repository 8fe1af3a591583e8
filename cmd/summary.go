package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/summary"
)

var summaryFlags = struct {
	in             string
	crs            string
	classicalQuota int
	coverageQuota  float64
	omitMostCommon bool
	workers        int
	runID          string
	out            string
}{}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize a drawn collection's diversity",
	Long:  "Reads a collection JSON document (the output of cookies, clustr, or bandit) and computes one spatial and taxonomic summary row per subsample.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(summaryFlags.in)
		if err != nil {
			return eris.Wrapf(err, "read %s", summaryFlags.in)
		}
		coll, err := decodeCollection(raw)
		if err != nil {
			return err
		}
		if len(coll.Draws) == 0 {
			return eris.Errorf("no draws in %s", summaryFlags.in)
		}

		params := summary.Params{
			ClassicalQuota: summaryFlags.classicalQuota,
			CoverageQuota:  summaryFlags.coverageQuota,
			OmitMostCommon: summaryFlags.omitMostCommon,
			Workers:        summaryFlags.workers,
		}
		if params.ClassicalQuota == 0 {
			params.ClassicalQuota = cfg.Summary.ClassicalQuota
		}
		if params.CoverageQuota == 0 {
			params.CoverageQuota = cfg.Summary.CoverageQuota
		}
		if params.Workers == 0 {
			params.Workers = cfg.Summary.Workers
		}

		sz := summary.New(nil)
		rows, err := sz.SummarizeCollection(ctx, model.CRS(summaryFlags.crs), coll, params)
		if err != nil {
			return err
		}

		if summaryFlags.runID != "" {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.SaveSummaries(ctx, summaryFlags.runID, rows); err != nil {
				return err
			}
		}
		return writeOutput(summaryFlags.out, map[string]any{"rows": rows})
	},
}

// decodeCollection accepts either a bare collection document or the
// band-keyed document bandit emits, flattening the latter.
func decodeCollection(raw []byte) (model.Collection, error) {
	var doc struct {
		Draws []model.Draw            `json:"draws"`
		Bands map[string][]model.Draw `json:"bands"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Collection{}, eris.Wrap(err, "decode collection")
	}
	coll := model.Collection{Draws: doc.Draws}
	for _, draws := range doc.Bands {
		coll.Draws = append(coll.Draws, draws...)
	}
	return coll, nil
}

func init() {
	summaryCmd.Flags().StringVar(&summaryFlags.in, "in", "", "collection JSON file")
	summaryCmd.Flags().StringVar(&summaryFlags.crs, "crs", "geographic", "coordinate reference system of the collection")
	summaryCmd.Flags().IntVar(&summaryFlags.classicalQuota, "classical-quota", 0, "count-based rarefaction quota")
	summaryCmd.Flags().Float64Var(&summaryFlags.coverageQuota, "coverage-quota", 0, "coverage-based rarefaction quota in (0,1)")
	summaryCmd.Flags().BoolVar(&summaryFlags.omitMostCommon, "omit-most-common", false, "drop the most frequent taxon before rarefaction")
	summaryCmd.Flags().IntVar(&summaryFlags.workers, "workers", 0, "worker pool size (default: NumCPU)")
	summaryCmd.Flags().StringVar(&summaryFlags.runID, "run", "", "persist the rows against this stored run ID")
	summaryCmd.Flags().StringVar(&summaryFlags.out, "out", "", "write the summary JSON here instead of stdout")
	summaryCmd.MarkFlagRequired("in") //nolint:errcheck
	rootCmd.AddCommand(summaryCmd)
}

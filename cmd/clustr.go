package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/sampler"
)

var clustrFlags = struct {
	sampleFlags
	maxDiameter float64
	siteQuota   int
	minSites    int
}{}

var clustrCmd = &cobra.Command{
	Use:   "clustr",
	Short: "Draw nearest-neighbor cluster subsamples",
	Long:  "Grows a nearest-neighbor cluster from a random seed site until the spanning diameter cap is reached, omitting clusters below the minimum size.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := clustrFlags.resolveDefaults(cmd); err != nil {
			return err
		}

		ds, st, datasetID, err := clustrFlags.openSampleData(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		params := sampler.ClustrParams{
			MaxDiameter: clustrFlags.maxDiameter,
			SiteQuota:   clustrFlags.siteQuota,
			MinSites:    clustrFlags.minSites,
			Iterations:  clustrFlags.iterations,
			Workers:     clustrFlags.workers,
			Output:      clustrFlags.outputMode(),
		}
		coll, err := sampler.Clustr(ctx, ds, params, clustrFlags.seed)
		if err != nil {
			return err
		}

		runID := recordRun(ctx, st, datasetID, model.SamplerClustr, params, clustrFlags.seed, len(coll.Draws), coll.Omitted())
		return clustrFlags.emitCollection(collectionResult{
			RunID:     runID,
			Seed:      clustrFlags.seed,
			Draws:     coll.Draws,
			Omissions: coll.Omitted(),
		}, coll)
	},
}

func init() {
	clustrFlags.register(clustrCmd)
	clustrCmd.Flags().Float64Var(&clustrFlags.maxDiameter, "max-diameter", 0, "spanning-tree span cap, in dataset distance units")
	clustrCmd.Flags().IntVar(&clustrFlags.siteQuota, "site-quota", 0, "rarefy each cluster to this many sites (0 keeps all)")
	clustrCmd.Flags().IntVar(&clustrFlags.minSites, "min-sites", 2, "omit clusters smaller than this")
	clustrCmd.MarkFlagRequired("max-diameter") //nolint:errcheck
	rootCmd.AddCommand(clustrCmd)
}

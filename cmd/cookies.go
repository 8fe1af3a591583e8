package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/sampler"
)

var cookiesFlags = struct {
	sampleFlags
	radius    float64
	siteQuota int
	weighted  bool
}{}

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Draw fixed-radius circular subsamples",
	Long:  "Repeatedly picks a random seed site and draws a site quota from the disc of the given radius around it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cookiesFlags.resolveDefaults(cmd); err != nil {
			return err
		}

		ds, st, datasetID, err := cookiesFlags.openSampleData(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		params := sampler.CookiesParams{
			Radius:     cookiesFlags.radius,
			SiteQuota:  cookiesFlags.siteQuota,
			Iterations: cookiesFlags.iterations,
			Weighted:   cookiesFlags.weighted,
			Workers:    cookiesFlags.workers,
			Output:     cookiesFlags.outputMode(),
		}
		coll, err := sampler.Cookies(ctx, ds, params, cookiesFlags.seed)
		if err != nil {
			return err
		}

		runID := recordRun(ctx, st, datasetID, model.SamplerCookies, params, cookiesFlags.seed, len(coll.Draws), coll.Omitted())
		return cookiesFlags.emitCollection(collectionResult{
			RunID:     runID,
			Seed:      cookiesFlags.seed,
			Draws:     coll.Draws,
			Omissions: coll.Omitted(),
		}, coll)
	},
}

func init() {
	cookiesFlags.register(cookiesCmd)
	cookiesCmd.Flags().Float64Var(&cookiesFlags.radius, "radius", 0, "disc radius (km for geographic data)")
	cookiesCmd.Flags().IntVar(&cookiesFlags.siteQuota, "site-quota", 0, "sites per subsample, seed included")
	cookiesCmd.Flags().BoolVar(&cookiesFlags.weighted, "weighted", false, "distance-decay companion selection")
	cookiesCmd.MarkFlagRequired("radius")     //nolint:errcheck
	cookiesCmd.MarkFlagRequired("site-quota") //nolint:errcheck
	rootCmd.AddCommand(cookiesCmd)
}

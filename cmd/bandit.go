package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/sampler"
)

var banditFlags = struct {
	sampleFlags
	bandWidth   float64
	siteQuota   int
	absoluteLat bool
}{}

// banditResult groups collections by latitude band label.
type banditResult struct {
	RunID     string                  `json:"run_id,omitempty"`
	Seed      uint64                  `json:"seed"`
	Bands     map[string][]model.Draw `json:"bands"`
	Omissions int                     `json:"omissions"`
}

var banditCmd = &cobra.Command{
	Use:   "bandit",
	Short: "Draw latitude-band subsamples",
	Long:  "Partitions a geographic dataset into fixed-width latitude bands and draws a site quota independently within each qualifying band.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := banditFlags.resolveDefaults(cmd); err != nil {
			return err
		}

		ds, st, datasetID, err := banditFlags.openSampleData(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		params := sampler.BanditParams{
			BandWidth:        banditFlags.bandWidth,
			SiteQuota:        banditFlags.siteQuota,
			Iterations:       banditFlags.iterations,
			AbsoluteLatitude: banditFlags.absoluteLat,
			Workers:          banditFlags.workers,
			Output:           banditFlags.outputMode(),
		}
		bands, err := sampler.Bandit(ctx, ds, params, banditFlags.seed)
		if err != nil {
			return err
		}

		res := banditResult{Seed: banditFlags.seed, Bands: make(map[string][]model.Draw, len(bands))}
		draws := 0
		colls := make([]model.Collection, 0, len(bands))
		for label, coll := range bands {
			res.Bands[label] = coll.Draws
			res.Omissions += coll.Omitted()
			draws += len(coll.Draws)
			colls = append(colls, coll)
		}
		res.RunID = recordRun(ctx, st, datasetID, model.SamplerBandit, params, banditFlags.seed, draws, res.Omissions)
		return banditFlags.emitCollection(res, colls...)
	},
}

func init() {
	banditFlags.register(banditCmd)
	banditCmd.Flags().Float64Var(&banditFlags.bandWidth, "band-width", 0, "band height in degrees of latitude")
	banditCmd.Flags().IntVar(&banditFlags.siteQuota, "site-quota", 0, "sites per subsample")
	banditCmd.Flags().BoolVar(&banditFlags.absoluteLat, "absolute-latitude", false, "fold the southern hemisphere onto the northern one")
	banditCmd.MarkFlagRequired("band-width") //nolint:errcheck
	banditCmd.MarkFlagRequired("site-quota") //nolint:errcheck
	rootCmd.AddCommand(banditCmd)
}

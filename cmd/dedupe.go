package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/geosample/internal/dedupe"
	"github.com/sells-group/geosample/internal/model"
)

var dedupeFlags = struct {
	datasetFlags
	bySite bool
	out    string
}{}

// dedupeResult reports the collapse alongside the surviving records.
type dedupeResult struct {
	CRS     model.CRS          `json:"crs"`
	Before  int                `json:"before"`
	After   int                `json:"after"`
	Records []model.Occurrence `json:"records"`
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Collapse duplicate taxon-at-location records",
	Long:  "Keeps the first occurrence of each (taxon, x, y) pair, or of each (taxon, site) pair with --by-site, and emits the surviving records as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, _, err := dedupeFlags.resolve(cmd.Context())
		if err != nil {
			return err
		}

		before := len(ds.Occurrences)
		if dedupeFlags.bySite {
			ds = dedupe.UniqifyBySite(ds)
		} else {
			ds = dedupe.Uniqify(ds)
		}
		return writeOutput(dedupeFlags.out, dedupeResult{
			CRS:     ds.CRS,
			Before:  before,
			After:   len(ds.Occurrences),
			Records: ds.Occurrences,
		})
	},
}

func init() {
	dedupeFlags.register(dedupeCmd)
	dedupeCmd.Flags().BoolVar(&dedupeFlags.bySite, "by-site", false, "key duplicates on (taxon, site) instead of (taxon, x, y)")
	dedupeCmd.Flags().StringVar(&dedupeFlags.out, "out", "", "write the result JSON here instead of stdout")
	rootCmd.AddCommand(dedupeCmd)
}

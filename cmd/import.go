package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geosample/internal/dedupe"
)

var importFlags = struct {
	datasetFlags
	name    string
	uniqify bool
}{}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an occurrence file into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ds, err := importFlags.loadFile(ctx)
		if err != nil {
			return err
		}
		if importFlags.uniqify {
			before := len(ds.Occurrences)
			ds = dedupe.Uniqify(ds)
			zap.L().Info("collapsed duplicate records",
				zap.Int("before", before),
				zap.Int("after", len(ds.Occurrences)),
			)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		info, err := st.CreateDataset(ctx, importFlags.name, ds)
		if err != nil {
			return err
		}
		return writeOutput("", info)
	},
}

func init() {
	importFlags.registerFile(importCmd)
	importCmd.Flags().StringVar(&importFlags.name, "name", "", "dataset name")
	importCmd.Flags().BoolVar(&importFlags.uniqify, "uniqify", false, "collapse duplicate (taxon, x, y) records before storing")
	importCmd.MarkFlagRequired("file") //nolint:errcheck
	importCmd.MarkFlagRequired("name") //nolint:errcheck
	rootCmd.AddCommand(importCmd)
}

package main

import (
	"github.com/spf13/cobra"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets [dataset-id]",
	Short: "List stored datasets, or show one dataset's metadata",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if len(args) == 1 {
			info, _, err := st.GetDataset(ctx, args[0])
			if err != nil {
				return err
			}
			return writeOutput("", info)
		}

		infos, err := st.ListDatasets(ctx)
		if err != nil {
			return err
		}
		return writeOutput("", map[string]any{"datasets": infos})
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}

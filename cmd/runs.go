package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/store"
)

var runsFlags = struct {
	datasetID string
	status    string
	limit     int
	summaries bool
}{}

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List stored runs, or show one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if len(args) == 1 {
			run, err := st.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			if !runsFlags.summaries {
				return writeOutput("", run)
			}
			rows, err := st.ListSummaries(ctx, run.ID)
			if err != nil {
				return err
			}
			return writeOutput("", map[string]any{"run": run, "rows": rows})
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:    model.RunStatus(runsFlags.status),
			DatasetID: runsFlags.datasetID,
			Limit:     runsFlags.limit,
		})
		if err != nil {
			return err
		}
		return writeOutput("", map[string]any{"runs": runs})
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsFlags.datasetID, "dataset", "", "filter by dataset ID")
	runsCmd.Flags().StringVar(&runsFlags.status, "status", "", "filter by run status")
	runsCmd.Flags().IntVar(&runsFlags.limit, "limit", 0, "cap the number of runs returned")
	runsCmd.Flags().BoolVar(&runsFlags.summaries, "summaries", false, "include the run's stored summary rows")
	rootCmd.AddCommand(runsCmd)
}

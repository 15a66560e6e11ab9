package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/dersize/config"
	"github.com/kilianp07/dersize/core/search/logging"
	"github.com/kilianp07/dersize/pkg/export"
)

var resultsQuery struct {
	runID       string
	strategy    string
	successOnly bool
	asJSON      bool
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Print evaluations recorded in the result log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		store, err := logging.NewLogStore(cfg.Logging.Store())
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("result log is disabled (logging.backend: none)")
		}
		defer store.Close()

		recs, err := store.Query(cmd.Context(), logging.LogQuery{
			RunID:       resultsQuery.runID,
			Strategy:    resultsQuery.strategy,
			SuccessOnly: resultsQuery.successOnly,
		})
		if err != nil {
			return fmt.Errorf("query results: %w", err)
		}
		if resultsQuery.asJSON {
			return export.WriteJSON(cmd.OutOrStdout(), recs)
		}
		return export.WriteRecordsCSV(cmd.OutOrStdout(), recs)
	},
}

func init() {
	f := resultsCmd.Flags()
	f.StringVar(&resultsQuery.runID, "run-id", "", "only records of this run")
	f.StringVar(&resultsQuery.strategy, "strategy", "", "traversal, climb or single")
	f.BoolVar(&resultsQuery.successOnly, "success", false, "only successful candidates")
	f.BoolVar(&resultsQuery.asJSON, "json", false, "print JSON instead of CSV")
	rootCmd.AddCommand(resultsCmd)
}

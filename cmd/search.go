package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/dersize/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate the single_run candidate and export its time series",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			_, err := svc.Single(ctx)
			return err
		})
	},
}

var traverseCmd = &cobra.Command{
	Use:   "traverse",
	Short: "Evaluate every PV and battery size of the traversal grid",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			_, err := svc.Traverse(ctx)
			return err
		})
	},
}

var climbCmd = &cobra.Command{
	Use:   "climb",
	Short: "Hill-climb towards the largest feasible PV size",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			_, err := svc.Climb(ctx)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd, traverseCmd, climbCmd)
}

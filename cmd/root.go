package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/dersize/app"
	"github.com/kilianp07/dersize/config"
	"github.com/kilianp07/dersize/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "dersize",
	Short: "PV and battery sizing on a distribution feeder",
	Long: `dersize simulates a feeder over a daily horizon with candidate PV and
battery sizes connected, and searches for the largest PV with the smallest
battery that keeps every bus voltage and element loading within limits.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// withService loads the configuration, starts the service consumers and runs
// job until it returns or the process is interrupted.
func withService(job func(ctx context.Context, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	stopConsumers := svc.Start(ctx)
	defer stopConsumers()
	return job(ctx, svc)
}

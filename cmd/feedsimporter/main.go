package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"FeedsImporter/internal/app"
	"FeedsImporter/internal/config"
	"FeedsImporter/internal/domain"
	"FeedsImporter/internal/logging"
	"FeedsImporter/internal/usecase"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "feedsimporter",
	Short: "Import listing items into records and clear them again",
	Long: `feedsimporter maps items parsed from an HTML listing onto records,
creating new ones and updating changed ones, and can delete everything an
origin produced in batches.

Examples:
  feedsimporter import --origin cs.AI --file listing.html
  feedsimporter import --origin cs.AI --url https://export.arxiv.org/list/cs.AI/pastweek
  feedsimporter clear --origin cs.AI
  feedsimporter targets`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config (defaults to $FEEDS_IMPORTER_CONFIG)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(targetsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		stop()
		os.Exit(1)
	}
}

// withApp loads the config, builds the application and closes it after fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		return err
	}

	runErr := fn(ctx, application)
	if err := application.Close(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func printResult(cmd *cobra.Command, state *domain.RunState, result usecase.StepResult) {
	out := cmd.OutOrStdout()
	for _, msg := range result.Messages {
		fmt.Fprintln(out, msg)
	}
	if state != nil && !result.Done {
		fmt.Fprintf(out, "Stopped at %.0f%%.\n", result.Progress*100)
	}
}

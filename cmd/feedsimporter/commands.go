package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"FeedsImporter/internal/app"
)

var (
	importOrigin string
	importFile   string
	importURL    string
	clearOrigin  string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the items of a listing page",
	Long: `Parse a listing page, read from --file or fetched from --url (the configured
source url when neither is given), and create or update one record per item.`,
	RunE: runImport,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every record imported for an origin",
	RunE:  runClear,
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the fields mapping rules can target",
	RunE:  runTargets,
}

func init() {
	importCmd.Flags().StringVarP(&importOrigin, "origin", "o", "default", "Origin the items belong to")
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Read the listing from a file")
	importCmd.Flags().StringVarP(&importURL, "url", "u", "", "Fetch the listing from a URL")
	importCmd.MarkFlagsMutuallyExclusive("file", "url")

	clearCmd.Flags().StringVarP(&clearOrigin, "origin", "o", "default", "Origin whose records are deleted")
}

func runImport(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.Application) error {
		if importFile != "" {
			f, err := os.Open(importFile)
			if err != nil {
				return fmt.Errorf("open listing: %w", err)
			}
			defer f.Close()

			state, result, err := a.ImportReader(ctx, importOrigin, f)
			printResult(cmd, state, result)
			return err
		}

		state, result, err := a.ImportURL(ctx, importOrigin, importURL)
		printResult(cmd, state, result)
		return err
	})
}

func runClear(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.Application) error {
		state, result, err := a.Clear(ctx, clearOrigin)
		printResult(cmd, state, result)
		return err
	})
}

func runTargets(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(_ context.Context, a *app.Application) error {
		built, err := a.Targets()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tUNIQUE")
		for _, id := range built.IDs() {
			desc := built[id]
			unique := ""
			if desc.UniqueEligible {
				unique = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", desc.ID, desc.Name, unique)
		}
		return w.Flush()
	})
}

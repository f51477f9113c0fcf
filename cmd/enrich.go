package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Resolve coordinates for records that lack them",
	Long:  "Looks up each unresolved record's address in the geocode cache and queries the geocoder on a miss. Every new cache entry and updated record is saved immediately.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := newEnricher(env).Enrich(ctx)
		if err != nil {
			return err
		}

		report, _ := cmd.Flags().GetString("report")
		return finishSummary(summary, report)
	},
}

func init() {
	enrichCmd.Flags().String("report", "", "write the run summary as YAML to this path")
	rootCmd.AddCommand(enrichCmd)
}

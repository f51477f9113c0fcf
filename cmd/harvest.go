package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Collect venue records from the listing",
	Long:  "Reveals every entry on the listing, fetches each detail page and appends a record per entry. Progress is saved after every record, so an interrupted harvest keeps what it collected.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyHarvestFlags(cmd)

		env, err := initEnv(ctx, "harvest")
		if err != nil {
			return err
		}
		defer env.Close()

		h, err := newHarvester(env)
		if err != nil {
			return err
		}

		summary, err := h.Harvest(ctx, cfg.Harvest.ListingURL)
		if err != nil {
			return err
		}

		report, _ := cmd.Flags().GetString("report")
		return finishSummary(summary, report)
	},
}

// applyHarvestFlags lets command-line flags override harvest config.
func applyHarvestFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("listing-url") {
		cfg.Harvest.ListingURL, _ = flags.GetString("listing-url")
	}
	if flags.Changed("backend") {
		cfg.Harvest.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("merge") {
		cfg.Harvest.Merge, _ = flags.GetString("merge")
	}
	if flags.Changed("max-reveals") {
		cfg.Harvest.MaxReveals, _ = flags.GetInt("max-reveals")
	}
}

func addHarvestFlags(cmd *cobra.Command) {
	cmd.Flags().String("listing-url", "", "listing URL (default from config)")
	cmd.Flags().String("backend", "", "listing backend: browser or http (default from config)")
	cmd.Flags().String("merge", "", "merge policy: append or skip_existing (default from config)")
	cmd.Flags().Int("max-reveals", 0, "stop after this many reveals, 0 for no cap (default from config)")
}

func init() {
	addHarvestFlags(harvestCmd)
	harvestCmd.Flags().String("report", "", "write the run summary as YAML to this path")
	rootCmd.AddCommand(harvestCmd)
}

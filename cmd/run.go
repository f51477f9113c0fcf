package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/venuemap/venue-cli/internal/pipeline"
	"github.com/venuemap/venue-cli/internal/render"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Harvest, enrich and render in one pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyHarvestFlags(cmd)
		if output, _ := cmd.Flags().GetString("output"); output != "" {
			cfg.Render.Output = output
		}

		env, err := initEnv(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		skipHarvest, _ := cmd.Flags().GetBool("skip-harvest")
		skipEnrich, _ := cmd.Flags().GetBool("skip-enrich")

		deps := pipeline.Deps{
			Enricher: newEnricher(env),
			Records:  env.Records,
			Renderer: render.GeoJSON{Name: cfg.Render.Name},
		}
		if !skipHarvest {
			h, err := newHarvester(env)
			if err != nil {
				return err
			}
			deps.Harvester = h
		}

		summary, runErr := pipeline.New(deps).Run(ctx, pipeline.Options{
			ListingURL:  cfg.Harvest.ListingURL,
			SkipHarvest: skipHarvest,
			SkipEnrich:  skipEnrich,
			Output:      cfg.Render.Output,
		})

		report, _ := cmd.Flags().GetString("report")
		if err := finishSummary(summary, report); err != nil && runErr == nil {
			return err
		}
		return runErr
	},
}

func init() {
	addHarvestFlags(runCmd)
	runCmd.Flags().Bool("skip-harvest", false, "reuse the stored records without harvesting")
	runCmd.Flags().Bool("skip-enrich", false, "skip geocoding")
	runCmd.Flags().String("output", "", "map output path (default from config)")
	runCmd.Flags().String("report", "", "write the run summary as YAML to this path")
	rootCmd.AddCommand(runCmd)
}

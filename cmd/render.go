package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/venuemap/venue-cli/internal/pipeline"
	"github.com/venuemap/venue-cli/internal/render"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Write resolved records as a GeoJSON map layer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			cfg.Render.Output = output
		}

		env, err := initEnv(ctx, "render")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := pipeline.RenderFile(ctx, env.Records, render.GeoJSON{Name: cfg.Render.Name}, cfg.Render.Output)
		if err != nil {
			return err
		}
		zap.L().Info("render complete", zap.Int("markers", n), zap.String("output", cfg.Render.Output))
		return nil
	},
}

func init() {
	renderCmd.Flags().String("output", "", "output path (default from config)")
	rootCmd.AddCommand(renderCmd)
}

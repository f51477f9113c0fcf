package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/venuemap/venue-cli/internal/model"
	"github.com/venuemap/venue-cli/internal/pipeline"
	"github.com/venuemap/venue-cli/internal/render"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all records as CSV and/or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		csvPath, _ := cmd.Flags().GetString("csv")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")
		if csvPath == "" && xlsxPath == "" {
			return eris.New("export: at least one of --csv or --xlsx is required")
		}

		env, err := initEnv(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := env.Records.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "export: load records")
		}

		targets := map[string]render.Exporter{}
		if csvPath != "" {
			targets[csvPath] = render.CSV{}
		}
		if xlsxPath != "" {
			targets[xlsxPath] = render.XLSX{}
		}
		return exportAll(ctx, records, targets)
	},
}

// exportAll writes every target concurrently. The records are read-only.
func exportAll(ctx context.Context, records []model.Record, targets map[string]render.Exporter) error {
	g, gctx := errgroup.WithContext(ctx)
	for path, exp := range targets {
		g.Go(func() error {
			err := pipeline.WriteFileAtomic(path, func(f *os.File) error {
				return exp.Export(gctx, f, records)
			})
			if err != nil {
				return eris.Wrapf(err, "export: %s", path)
			}
			zap.L().Info("export written",
				zap.String("component", "export"),
				zap.String("path", path),
				zap.Int("records", len(records)),
			)
			return nil
		})
	}
	return g.Wait()
}

func init() {
	exportCmd.Flags().String("csv", "", "write a CSV file to this path")
	exportCmd.Flags().String("xlsx", "", "write an XLSX workbook to this path")
	rootCmd.AddCommand(exportCmd)
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/venuemap/venue-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored record and cache counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := env.Records.Load(ctx)
		if err != nil {
			return err
		}
		cache, err := env.Cache.Load(ctx)
		if err != nil {
			return err
		}

		formatStatus(os.Stdout, records, cache)
		return nil
	},
}

type storeStatus struct {
	Records     int
	Resolved    int
	NoAddress   int
	Pending     int
	CacheFound  int
	CacheMissed int
}

func computeStatus(records []model.Record, cache model.GeocodeCache) storeStatus {
	var s storeStatus
	s.Records = len(records)
	for i := range records {
		r := &records[i]
		switch {
		case r.HasCoordinates():
			s.Resolved++
		case r.Address == "":
			s.NoAddress++
		default:
			if e, ok := cache.Lookup(r.Address); !ok || e.IsFound() {
				s.Pending++
			}
		}
	}
	s.CacheFound, s.CacheMissed = cache.Stats()
	return s
}

// formatStatus prints a two-column summary of the stored state. Records
// whose address is cached as not found are neither resolved nor pending.
func formatStatus(w io.Writer, records []model.Record, cache model.GeocodeCache) {
	s := computeStatus(records, cache)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RECORDS\t%d\n", s.Records)
	fmt.Fprintf(tw, "RESOLVED\t%d\n", s.Resolved)
	fmt.Fprintf(tw, "PENDING\t%d\n", s.Pending)
	fmt.Fprintf(tw, "UNRESOLVABLE\t%d\n", s.Records-s.Resolved-s.Pending-s.NoAddress)
	fmt.Fprintf(tw, "NO ADDRESS\t%d\n", s.NoAddress)
	fmt.Fprintf(tw, "CACHE FOUND\t%d\n", s.CacheFound)
	fmt.Fprintf(tw, "CACHE NOT FOUND\t%d\n", s.CacheMissed)
	_ = tw.Flush()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

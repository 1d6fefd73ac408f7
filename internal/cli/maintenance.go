package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"flight_replay/internal/callsign"
	"flight_replay/internal/ingest"

	"github.com/spf13/cobra"
)

func newAirlinesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "airlines",
		Short: "Maintain airline reference data",
	}
	cmd.AddCommand(newAirlinesSeedCmd(a), newAirlinesRelinkCmd(a))
	return cmd
}

func newAirlinesSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the built-in operator callsign table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := a.importer(db).SeedAirlines(cmd.Context(), callsign.Default())
			if err != nil {
				return err
			}
			slog.Info("Airline seed finished", "upserted", stats.Upserted)
			return nil
		},
	}
}

func newAirlinesRelinkCmd(a *app) *cobra.Command {
	var opts ingest.RelinkOptions

	cmd := &cobra.Command{
		Use:   "relink",
		Short: "Link stored observations to airlines by flight prefix",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := a.importer(db).RelinkAirlines(cmd.Context(), opts)
			if err != nil {
				return err
			}
			slog.Info("Airline relink finished", "batches", stats.Batches, "scanned", stats.Scanned, "linked", stats.Linked)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 1000, "Rows per transaction")
	cmd.Flags().IntVar(&opts.MaxBatches, "max-batches", 0, "Stop after this many batches (0 = no limit)")
	cmd.Flags().IntVar(&opts.MaxRows, "max-rows", 0, "Stop after scanning this many rows (0 = no limit)")
	return cmd
}

func newAircraftCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aircraft",
		Short: "Maintain aircraft master records",
	}

	var dryRun bool
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete aircraft with neither registration nor model, and their observations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := a.importer(db).CleanupAircraft(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			if dryRun {
				slog.Info("Dry run only, no changes made", "aircraft", res.Aircraft, "observations", res.Observations)
				return nil
			}
			slog.Info("Aircraft cleanup finished", "aircraft", res.Aircraft, "observations", res.Observations)
			return nil
		},
	}
	cleanup.Flags().BoolVar(&dryRun, "dry-run", false, "Count matching rows without deleting")

	cmd.AddCommand(cleanup)
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export data from the database",
	}

	var out string
	flights := &cobra.Command{
		Use:   "flights",
		Short: "Write one CSV row per distinct flight to a file and stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				out = fmt.Sprintf("unique_flights_%s.csv", time.Now().UTC().Format("20060102T150405"))
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			defer f.Close()

			n, err := a.importer(db).ExportFlights(cmd.Context(), io.MultiWriter(f, a.stdout))
			if err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			slog.Info("Wrote unique flights", "rows", n, "file", out)
			return nil
		},
	}
	flights.Flags().StringVar(&out, "out", "", "Output file (default unique_flights_<timestamp>.csv)")

	cmd.AddCommand(flights)
	return cmd
}

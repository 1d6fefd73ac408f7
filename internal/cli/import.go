package cli

import (
	"fmt"
	"log/slog"
	"time"

	"flight_replay/internal/ingest"
	"flight_replay/internal/timefmt"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load capture files and reference data into the database",
	}
	cmd.AddCommand(
		newImportSnapshotsCmd(a),
		newImportAirlinesCmd(a),
		newImportAircraftCmd(a),
	)
	return cmd
}

func newImportSnapshotsCmd(a *app) *cobra.Command {
	var (
		opts     ingest.SnapshotOptions
		from, to string
	)

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Import adsb_*.json capture files",
		Example: `  flight_replay import snapshots --dir adsb_snapshots --limit 50
  flight_replay import snapshots --file adsb_snapshots/adsb_20251008T173000Z.json
  flight_replay import snapshots --resume`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if opts.From, err = parseBound(from); err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			if opts.To, err = parseBound(to); err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
			if opts.Dir == "" {
				opts.Dir = a.cfg.Feed.OutDir
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := a.importer(db).ImportSnapshots(cmd.Context(), opts)
			if err != nil {
				return err
			}
			slog.Info("Snapshot import finished",
				"files", stats.Files,
				"imported", stats.Imported,
				"skipped", stats.Skipped,
				"failed", stats.Failed,
				"observations", stats.Observations,
				"dry_run", opts.DryRun,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "Directory of capture files (defaults to feed.out_dir)")
	cmd.Flags().StringVar(&opts.File, "file", "", "Import a single capture file")
	cmd.Flags().StringVar(&from, "from", "", "Skip captures named before this time")
	cmd.Flags().StringVar(&to, "to", "", "Skip captures named after this time")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Import at most this many files")
	cmd.Flags().BoolVar(&opts.Resume, "resume", false, "Start after the newest stored snapshot")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report what would be imported without writing")
	cmd.MarkFlagsMutuallyExclusive("dir", "file")
	return cmd
}

func parseBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return timefmt.ParseFlexible(s)
}

func newImportAirlinesCmd(a *app) *cobra.Command {
	var (
		file   string
		limit  int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "airlines",
		Short: "Import airlines from the first sheet of an Excel workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := a.importer(db).ImportAirlines(cmd.Context(), file, limit, dryRun)
			if err != nil {
				return err
			}
			slog.Info("Airline import finished",
				"rows", stats.Rows,
				"upserted", stats.Upserted,
				"skipped", stats.Skipped,
				"dry_run", dryRun,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "flight_airline_callsign.xlsx", "Workbook path")
	cmd.Flags().IntVar(&limit, "limit", 0, "Process at most this many rows")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count rows without writing")
	return cmd
}

func newImportAircraftCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aircraft FILE...",
		Short: "Import aircraft master records from OpenSky aircraft database CSV parts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := a.importer(db).ImportAircraft(cmd.Context(), args)
			if err != nil {
				return err
			}
			slog.Info("Aircraft import finished", "rows", stats.Rows, "upserted", stats.Upserted, "skipped", stats.Skipped)
			return nil
		},
	}
	return cmd
}

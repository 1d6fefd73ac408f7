package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flight_replay/internal/config"
	"flight_replay/internal/daemon"
	"flight_replay/internal/feed"
	"flight_replay/internal/timefmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

// feedFlags override the feed section of the config for one invocation.
type feedFlags struct {
	lat, lon float64
	radius   float64
	point    bool
}

func (f *feedFlags) register(fs *pflag.FlagSet) {
	fs.Float64Var(&f.lat, "lat", 0, "Center latitude (overrides feed.center.lat)")
	fs.Float64Var(&f.lon, "lon", 0, "Center longitude (overrides feed.center.lon)")
	fs.Float64Var(&f.radius, "radius", 0, "Radius in nautical miles, at most 250 (overrides feed.radius_nm)")
	fs.BoolVar(&f.point, "point-endpoint", false, "Use /v2/point/{lat}/{lon}/{radius}")
}

func (f *feedFlags) apply(fs *pflag.FlagSet, cfg *config.FeedConfig) {
	if fs.Changed("lat") {
		cfg.Center.Lat = f.lat
	}
	if fs.Changed("lon") {
		cfg.Center.Lon = f.lon
	}
	if fs.Changed("radius") {
		cfg.RadiusNM = f.radius
	}
	if f.point {
		cfg.Endpoint = feed.EndpointPoint
	}
}

func newFeedClient(cfg config.FeedConfig) *feed.Client {
	return feed.NewClient(cfg.BaseURL, cfg.Timeout, rate.NewLimiter(rate.Limit(cfg.RateLimit), 1))
}

func newRecordCmd(a *app) *cobra.Command {
	var (
		ff       feedFlags
		start    string
		outDir   string
		interval time.Duration
		duration time.Duration
		ingest   bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Poll the feed on an interval and write capture files",
		Example: `  flight_replay record --start 2025-10-08T17:30:00Z --duration 30m
  flight_replay record --point-endpoint --radius 40 --ingest`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Feed
			ff.apply(cmd.Flags(), &cfg)
			if cmd.Flags().Changed("out-dir") {
				cfg.OutDir = outDir
			}
			if cmd.Flags().Changed("interval") {
				cfg.Interval = interval
			}
			if cmd.Flags().Changed("duration") {
				cfg.Duration = duration
			}
			if cmd.Flags().Changed("ingest") {
				cfg.Ingest = ingest
			}
			if cfg.RadiusNM <= 0 || cfg.RadiusNM > feed.MaxRadiusNM {
				return feed.ErrInvalidRadius
			}

			var startAt time.Time
			if start != "" {
				t, err := timefmt.ParseFlexible(start)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				startAt = t
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dcfg := daemon.Config{
				Feed:    cfg,
				StartAt: startAt,
				Fetcher: newFeedClient(cfg),
			}
			if cfg.Ingest {
				db, err := a.openDB()
				if err != nil {
					return err
				}
				defer db.Close()
				dcfg.Ingester = a.importer(db)
			}

			d, err := daemon.New(ctx, dcfg)
			if err != nil {
				return err
			}
			if err := d.Start(); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				slog.Info("Received interrupt signal, shutting down...")
			case <-d.Done():
			}
			return d.Stop()
		},
	}

	ff.register(cmd.Flags())
	cmd.Flags().StringVar(&start, "start", "", "UTC start time; recording waits until then (RFC 3339, compact or epoch seconds)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Capture directory (overrides feed.out_dir)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Sampling interval (overrides feed.interval)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Recording window; 0 records until interrupted (overrides feed.duration)")
	cmd.Flags().BoolVar(&ingest, "ingest", false, "Also store each capture in the database (overrides feed.ingest)")
	return cmd
}

func newFetchCmd(a *app) *cobra.Command {
	var ff feedFlags

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the aircraft around the center once and print the response",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Feed
			ff.apply(cmd.Flags(), &cfg)

			capture, err := newFeedClient(cfg).Area(cmd.Context(), cfg.Center, cfg.RadiusNM, cfg.Endpoint)
			if err != nil {
				return err
			}
			body, err := capture.Encode()
			if err != nil {
				return err
			}

			var out bytes.Buffer
			if err := json.Indent(&out, body, "", "  "); err != nil {
				return err
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(a.stdout)
			return err
		},
	}

	ff.register(cmd.Flags())
	return cmd
}

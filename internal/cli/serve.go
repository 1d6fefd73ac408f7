package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"flight_replay/internal/api"
	"flight_replay/internal/daemon"
	"flight_replay/internal/tracking"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr   string
		record bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the snapshot, route and search API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			svc := tracking.NewService(db.Snapshots(), db.Observations(), tracking.Options{
				RouteWindow:         a.cfg.Query.RouteWindow,
				RouteMaxPoints:      a.cfg.Query.RouteMaxPoints,
				SearchLimit:         a.cfg.Query.SearchLimit,
				ContextMaxSnapshots: a.cfg.Query.ContextMaxSnapshots,
				RouteFilterFirst:    a.cfg.Query.RouteFilterFirst,
				UnscopedToCurrent:   a.cfg.Query.UnscopedBucket == "current",
				Ground:              a.cfg.Ground.Fence(),
			})
			srv := api.NewServer(a.cfg.Server, api.NewRouter(api.NewHandler(svc, db)))

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				slog.Info("Starting HTTP server", "addr", srv.Addr, "driver", db.Driver())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})

			g.Go(func() error {
				<-gctx.Done()
				slog.Info("Shutting down HTTP server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if record {
				// Captures recorded next to the API are always ingested and
				// recording lasts as long as the server.
				feedCfg := a.cfg.Feed
				feedCfg.Duration = 0
				d, err := daemon.New(gctx, daemon.Config{
					Feed:     feedCfg,
					Fetcher:  newFeedClient(feedCfg),
					Ingester: a.importer(db),
				})
				if err != nil {
					return err
				}
				g.Go(func() error {
					if err := d.Start(); err != nil {
						return err
					}
					select {
					case <-gctx.Done():
					case <-d.Done():
					}
					return d.Stop()
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&record, "record", false, "Also run the feed recorder and ingest its captures")
	return cmd
}

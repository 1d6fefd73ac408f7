package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"flight_replay/internal/config"
	"flight_replay/internal/feed"
	"flight_replay/internal/geo"
	"flight_replay/internal/ingest"
	"flight_replay/internal/models"
	"flight_replay/internal/timefmt"
)

// Fetcher returns the current area report from the feed.
type Fetcher interface {
	Area(ctx context.Context, center geo.Point, radiusNM float64, endpoint string) (*feed.Capture, error)
}

// Ingester stores a capture right after it is written to disk.
type Ingester interface {
	IngestReport(ctx context.Context, report *models.FeedReport) (*ingest.CaptureResult, error)
}

// Recorder polls the feed on a fixed interval and writes each response, with a
// _meta block describing the request, to out_dir/adsb_YYYYMMDDTHHMMSSZ.json.
type Recorder struct {
	fetcher  Fetcher
	ingester Ingester // optional
	cfg      config.FeedConfig
	now      func() time.Time
}

// NewRecorder creates a recorder task. ingester may be nil.
func NewRecorder(fetcher Fetcher, ingester Ingester, cfg config.FeedConfig) *Recorder {
	return &Recorder{
		fetcher:  fetcher,
		ingester: ingester,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (r *Recorder) Name() string {
	return "feed_recorder"
}

func (r *Recorder) Interval() time.Duration {
	return r.cfg.Interval
}

// Run captures one report. The capture time is taken before the request so
// file names follow the schedule rather than the feed's latency.
func (r *Recorder) Run(ctx context.Context) error {
	capturedAt := r.now().UTC()

	capture, err := r.fetcher.Area(ctx, r.cfg.Center, r.cfg.RadiusNM, r.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to fetch area report: %w", err)
	}

	path, err := r.write(capture, capturedAt)
	if err != nil {
		return err
	}
	slog.Debug("Wrote capture", "file", filepath.Base(path), "aircraft", len(capture.Report.Aircraft))

	if r.ingester == nil {
		return nil
	}
	res, err := r.ingester.IngestReport(ctx, capture.Report)
	if err != nil {
		return fmt.Errorf("failed to ingest capture %s: %w", filepath.Base(path), err)
	}
	if !res.Skipped {
		slog.Info("Ingested capture", "snapshot_id", res.SnapshotID, "observations", res.Observations)
	}
	return nil
}

func (r *Recorder) write(capture *feed.Capture, capturedAt time.Time) (string, error) {
	lat, lon := r.cfg.Center.Lat, r.cfg.Center.Lon
	radius := r.cfg.RadiusNM
	endpoint := r.cfg.Endpoint
	if endpoint == "" {
		endpoint = feed.EndpointLatLon
	}

	if err := capture.WithMeta(models.FeedMeta{
		CapturedAt: capturedAt.Format(time.RFC3339Nano),
		Center:     &models.FeedPoint{Lat: &lat, Lon: &lon},
		RadiusNM:   &radius,
		Endpoint:   &endpoint,
	}); err != nil {
		return "", fmt.Errorf("failed to encode capture metadata: %w", err)
	}

	body, err := capture.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode capture: %w", err)
	}

	if err := os.MkdirAll(r.cfg.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(r.cfg.OutDir, "adsb_"+capturedAt.Format(timefmt.Compact)+".json")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write capture: %w", err)
	}
	return path, nil
}

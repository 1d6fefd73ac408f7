package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"flight_replay/internal/callsign"
	"flight_replay/internal/database"
	"flight_replay/internal/feed"
	"flight_replay/internal/metrics"
	"flight_replay/internal/models"
	"flight_replay/internal/timefmt"
)

var captureFileName = regexp.MustCompile(`adsb_(\d{8}T\d{6}Z)\.json$`)

// SnapshotOptions selects which capture files to import.
type SnapshotOptions struct {
	Dir    string
	File   string // a single file; Dir and the filters are ignored
	From   time.Time
	To     time.Time
	Limit  int
	Resume bool // start just after the newest stored snapshot when From is unset
	DryRun bool
}

// SnapshotStats summarizes one import run.
type SnapshotStats struct {
	Files        int
	Imported     int
	Skipped      int
	Failed       int
	Observations int64
}

// CaptureResult describes the outcome for one capture.
type CaptureResult struct {
	SnapshotID   int64
	CapturedAt   time.Time
	Aircraft     int
	Observations int64
	Skipped      bool // a snapshot with the same capture time already exists
}

// ImportSnapshots imports capture files from opts.File or opts.Dir.
// In directory mode a file that fails is logged and skipped.
func (im *Importer) ImportSnapshots(ctx context.Context, opts SnapshotOptions) (SnapshotStats, error) {
	var stats SnapshotStats

	codes, err := im.airlineCodes(ctx)
	if err != nil {
		return stats, err
	}

	if opts.File != "" {
		stats.Files = 1
		res, err := im.importFile(ctx, opts.File, codes, opts.DryRun)
		if err != nil {
			metrics.SnapshotsImportedTotal.WithLabelValues("failed").Inc()
			return stats, err
		}
		stats.record(res)
		return stats, nil
	}

	if opts.Resume && opts.From.IsZero() {
		latest, err := im.store.Snapshots().Latest(ctx)
		switch {
		case errors.Is(err, database.ErrNotFound):
		case err != nil:
			return stats, fmt.Errorf("failed to find latest snapshot: %w", err)
		default:
			opts.From = latest.CapturedAt.Add(time.Millisecond)
			slog.Info("Resuming after latest snapshot", "captured_at", timefmt.Format(latest.CapturedAt))
		}
	}

	files, err := CaptureFiles(opts.Dir, opts.From, opts.To)
	if err != nil {
		return stats, err
	}
	if opts.Limit > 0 && len(files) > opts.Limit {
		files = files[:opts.Limit]
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Files++
		res, err := im.importFile(ctx, path, codes, opts.DryRun)
		if err != nil {
			stats.Failed++
			metrics.SnapshotsImportedTotal.WithLabelValues("failed").Inc()
			slog.Warn("Skipping file due to error", "file", filepath.Base(path), "error", err)
			continue
		}
		stats.record(res)
	}

	return stats, nil
}

func (s *SnapshotStats) record(res *CaptureResult) {
	if res.Skipped {
		s.Skipped++
		return
	}
	s.Imported++
	s.Observations += res.Observations
}

// CaptureFiles lists the .json files in dir in name order. Files whose name
// carries a capture time outside [from, to] are left out; zero bounds are open.
func CaptureFiles(dir string, from, to time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if ts, ok := captureTimeFromName(e.Name()); ok {
			if !from.IsZero() && ts.Before(from) {
				continue
			}
			if !to.IsZero() && ts.After(to) {
				continue
			}
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func captureTimeFromName(name string) (time.Time, bool) {
	m := captureFileName.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(timefmt.Compact, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (im *Importer) importFile(ctx context.Context, path string, codes map[string]int64, dryRun bool) (*CaptureResult, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	capture, err := feed.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", filepath.Base(path), err)
	}

	res, err := im.importReport(ctx, capture.Report, codes, dryRun)
	if err != nil {
		return nil, err
	}

	switch {
	case res.Skipped:
		slog.Info("Skip existing snapshot", "captured_at", timefmt.Format(res.CapturedAt), "file", filepath.Base(path))
	case dryRun:
		slog.Info("Dry run snapshot", "captured_at", timefmt.Format(res.CapturedAt), "aircraft", res.Aircraft)
	default:
		slog.Info("Imported snapshot",
			"id", res.SnapshotID,
			"captured_at", timefmt.Format(res.CapturedAt),
			"observations", res.Observations,
		)
	}
	return res, nil
}

// IngestReport stores one freshly fetched report. The recorder calls it after
// writing the capture file.
func (im *Importer) IngestReport(ctx context.Context, report *models.FeedReport) (*CaptureResult, error) {
	codes, err := im.airlineCodes(ctx)
	if err != nil {
		return nil, err
	}
	return im.importReport(ctx, report, codes, false)
}

func (im *Importer) importReport(ctx context.Context, report *models.FeedReport, codes map[string]int64, dryRun bool) (*CaptureResult, error) {
	snap := snapshotFromReport(report, time.Now())
	res := &CaptureResult{CapturedAt: snap.CapturedAt}

	exists, err := im.store.Snapshots().ExistsAt(ctx, snap.CapturedAt)
	if err != nil {
		return nil, err
	}
	if exists {
		res.Skipped = true
		metrics.SnapshotsImportedTotal.WithLabelValues("skipped").Inc()
		return res, nil
	}

	aircraft := aircraftFromReport(report)
	res.Aircraft = len(aircraft)
	if dryRun {
		return res, nil
	}

	// The snapshot row and its observations commit together or not at all.
	err = im.store.Transaction(ctx, func(tx database.Repositories) error {
		id, err := tx.Snapshots().Create(ctx, snap)
		if err != nil {
			return err
		}

		for _, batch := range chunk(aircraft, im.batchSize) {
			if err := tx.Aircraft().UpsertBatch(ctx, batch); err != nil {
				return err
			}
		}

		rows := make([]*models.Observation, 0, len(report.Aircraft))
		for i := range report.Aircraft {
			if o := observationFromFeed(&report.Aircraft[i], id, codes); o != nil {
				rows = append(rows, o)
			}
		}

		var written int64
		for _, batch := range chunk(rows, im.batchSize) {
			n, err := tx.Observations().InsertBatch(ctx, batch)
			if err != nil {
				return err
			}
			written += n
		}

		res.SnapshotID, res.Observations = id, written
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SnapshotsImportedTotal.WithLabelValues("imported").Inc()
	metrics.ObservationsImportedTotal.Add(float64(res.Observations))
	return res, nil
}

func snapshotFromReport(r *models.FeedReport, now time.Time) *models.Snapshot {
	s := &models.Snapshot{
		CapturedAt: r.CapturedAt(now),
		Total:      truncInt(r.Total),
	}
	if r.Now != nil {
		ms := int64(*r.Now)
		s.ProviderNowMs = &ms
	}
	if m := r.Meta; m != nil {
		if m.Center != nil {
			s.CenterLat, s.CenterLon = m.Center.Lat, m.Center.Lon
		}
		s.RadiusNM = m.RadiusNM
		s.Endpoint = m.Endpoint
	}
	return s
}

// aircraftFromReport returns one master record per hex, from its first appearance.
func aircraftFromReport(r *models.FeedReport) []*models.Aircraft {
	seen := make(map[string]bool, len(r.Aircraft))
	out := make([]*models.Aircraft, 0, len(r.Aircraft))
	for _, ac := range r.Aircraft {
		hex := strings.TrimSpace(ac.Hex)
		if hex == "" || seen[hex] {
			continue
		}
		seen[hex] = true
		out = append(out, &models.Aircraft{Hex: hex, Registration: ac.Registration, Model: ac.Model})
	}
	return out
}

func observationFromFeed(ac *models.FeedAircraft, snapshotID int64, codes map[string]int64) *models.Observation {
	hex := strings.TrimSpace(ac.Hex)
	if hex == "" {
		return nil
	}

	o := &models.Observation{
		SnapshotID:     snapshotID,
		Hex:            hex,
		Type:           ac.Type,
		Flight:         ac.Flight,
		Registration:   ac.Registration,
		Model:          ac.Model,
		AltBaroRaw:     ac.AltBaro.Raw,
		AltBaroFt:      ac.AltBaro.Feet,
		AltGeomFt:      truncInt(ac.AltGeom),
		GroundSpeedKts: ac.GroundSpeed,
		TrackDeg:       ac.Track,
		TrueHeadingDeg: ac.TrueHeading,
		BaroRateFpm:    truncInt(ac.BaroRate),
		GeomRateFpm:    truncInt(ac.GeomRate),
		Squawk:         ac.Squawk,
		Emergency:      ac.Emergency,
		Category:       ac.Category,
		Lat:            ac.Lat,
		Lon:            ac.Lon,
		NIC:            truncInt(ac.NIC),
		RC:             truncInt(ac.RC),
		Version:        truncInt(ac.Version),
		NACp:           truncInt(ac.NACp),
		NACv:           truncInt(ac.NACv),
		SIL:            truncInt(ac.SIL),
		SILType:        ac.SILType,
		GVA:            truncInt(ac.GVA),
		SDA:            truncInt(ac.SDA),
		Alert:          flag(ac.Alert),
		SPI:            flag(ac.SPI),
		Messages:       truncInt(ac.Messages),
		SeenSeconds:    ac.Seen,
		RSSI:           ac.RSSI,
		DstNM:          ac.Dst,
		DirDeg:         ac.Dir,
		NavQNHhPa:      ac.NavQNH,
		NavAltitudeMCP: truncInt(ac.NavAltitudeMCP),
		NavHeadingDeg:  ac.NavHeading,
		NavModes:       navModes(ac.NavModes),
		MLAT:           jsonArray(ac.MLAT),
		TISB:           jsonArray(ac.TISB),
	}

	if ac.Flight != nil {
		if id, ok := codes[callsign.ICAOFromFlight(*ac.Flight)]; ok {
			o.AirlineID = &id
		}
	}
	return o
}

func truncInt(f *float64) *int64 {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return nil
	}
	n := int64(math.Trunc(*f))
	return &n
}

func flag(f *float64) *bool {
	if f == nil {
		return nil
	}
	b := *f != 0
	return &b
}

func navModes(modes []string) *string {
	if modes == nil {
		modes = []string{}
	}
	b, err := json.Marshal(modes)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

// jsonArray keeps raw only when it is a JSON array.
func jsonArray(raw json.RawMessage) *string {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return nil
	}
	return &trimmed
}

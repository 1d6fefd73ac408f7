package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"flight_replay/internal/callsign"
	"flight_replay/internal/models"

	"github.com/xuri/excelize/v2"
)

// Header aliases accepted in the airline workbook, in order of preference.
var airlineColumns = map[string][]string{
	"icao":     {"ICAO Code", "ICAO", "ICAOCode"},
	"callsign": {"Callsign"},
	"name":     {"Airline Name", "Airline"},
	"iata":     {"IATA Code", "IATA"},
}

// AirlineStats summarizes an airline import or seed.
type AirlineStats struct {
	Rows     int
	Upserted int
	Skipped  int // rows without an ICAO code
}

// ImportAirlines reads the first sheet of an Excel workbook and upserts one
// airline per row keyed by ICAO code. Blank cells never overwrite stored values.
func (im *Importer) ImportAirlines(ctx context.Context, path string, limit int, dryRun bool) (AirlineStats, error) {
	var stats AirlineStats

	f, err := excelize.OpenFile(path)
	if err != nil {
		return stats, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return stats, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return stats, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return stats, nil
	}

	headerMap := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		headerMap[strings.TrimSpace(h)] = i
	}

	batch := make([]*models.Airline, 0, im.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.store.Airlines().UpsertBatch(ctx, batch); err != nil {
			return err
		}
		stats.Upserted += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, record := range rows[1:] {
		if limit > 0 && stats.Rows >= limit {
			break
		}
		stats.Rows++

		icao := cell(record, headerMap, airlineColumns["icao"])
		if icao == nil {
			stats.Skipped++
			continue
		}
		if dryRun {
			continue
		}

		batch = append(batch, &models.Airline{
			ICAOCode: *icao,
			Callsign: cell(record, headerMap, airlineColumns["callsign"]),
			Name:     cell(record, headerMap, airlineColumns["name"]),
			IATACode: cell(record, headerMap, airlineColumns["iata"]),
		})
		if len(batch) >= im.batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	return stats, nil
}

// cell returns the first non-blank value among the aliased columns.
func cell(record []string, headerMap map[string]int, aliases []string) *string {
	for _, name := range aliases {
		if v := getField(record, headerMap, name); v != "" {
			return &v
		}
	}
	return nil
}

// SeedAirlines upserts the built-in operator table.
func (im *Importer) SeedAirlines(ctx context.Context, table *callsign.Table) (AirlineStats, error) {
	var stats AirlineStats

	codes := table.Codes()
	airlines := make([]*models.Airline, 0, len(codes))
	for _, code := range codes {
		e, _ := table.Lookup(code)
		a := &models.Airline{ICAOCode: code}
		if e.Callsign != "" {
			a.Callsign = &e.Callsign
		}
		if e.Name != "" {
			a.Name = &e.Name
		}
		airlines = append(airlines, a)
	}
	stats.Rows = len(airlines)

	for _, batch := range chunk(airlines, im.batchSize) {
		if err := im.store.Airlines().UpsertBatch(ctx, batch); err != nil {
			return stats, err
		}
		stats.Upserted += len(batch)
	}
	return stats, nil
}

// RelinkOptions bounds an airline relink run. Zero limits mean unbounded.
type RelinkOptions struct {
	BatchSize  int
	MaxBatches int
	MaxRows    int
}

// RelinkStats summarizes a relink run.
type RelinkStats struct {
	Batches int
	Scanned int
	Linked  int
}

// RelinkAirlines backfills the airline link on observations that have a flight
// but no airline, walking them in id order. Each batch commits on its own.
func (im *Importer) RelinkAirlines(ctx context.Context, opts RelinkOptions) (RelinkStats, error) {
	var stats RelinkStats

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	codes, err := im.airlineCodes(ctx)
	if err != nil {
		return stats, err
	}

	var lastID int64
	for {
		rows, err := im.store.Observations().UnlinkedBatch(ctx, lastID, batchSize)
		if err != nil {
			return stats, err
		}
		if len(rows) == 0 {
			break
		}

		links := make(map[int64]int64)
		for _, r := range rows {
			if id, ok := codes[callsign.ICAOFromFlight(r.Flight)]; ok {
				links[r.ID] = id
			}
		}
		if err := im.store.Observations().SetAirlines(ctx, links); err != nil {
			return stats, err
		}

		stats.Batches++
		stats.Scanned += len(rows)
		stats.Linked += len(links)
		slog.Info("Relinked batch", "linked", len(links), "batch_rows", len(rows), "scanned", stats.Scanned)

		lastID = rows[len(rows)-1].ID
		if len(rows) < batchSize {
			break
		}
		if opts.MaxBatches > 0 && stats.Batches >= opts.MaxBatches {
			break
		}
		if opts.MaxRows > 0 && stats.Scanned >= opts.MaxRows {
			break
		}
	}

	return stats, nil
}

package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"flight_replay/internal/database"
	"flight_replay/internal/models"
)

// AircraftStats summarizes an aircraft master import.
type AircraftStats struct {
	Rows     int
	Upserted int
	Skipped  int // short rows or rows without icao24
}

// ImportAircraft loads aircraft master records from one or more CSV files in
// the OpenSky aircraft database layout (icao24, registration, typecode, model).
// A database split into parts shares the header of the first file.
func (im *Importer) ImportAircraft(ctx context.Context, csvPaths []string) (AircraftStats, error) {
	var stats AircraftStats
	var headerMap map[string]int
	var expectedFields int
	batch := make([]*models.Aircraft, 0, im.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.store.Aircraft().UpsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert batch: %w", err)
		}
		stats.Upserted += len(batch)
		batch = batch[:0]
		return nil
	}

	for fileIdx, csvPath := range csvPaths {
		err := func() error {
			file, err := os.Open(csvPath)
			if err != nil {
				return fmt.Errorf("failed to open CSV file %s: %w", csvPath, err)
			}
			defer file.Close()

			reader := csv.NewReader(file)
			reader.LazyQuotes = true
			reader.FieldsPerRecord = -1

			header, err := reader.Read()
			if err != nil {
				return fmt.Errorf("failed to read CSV header from %s: %w", csvPath, err)
			}
			if fileIdx == 0 {
				expectedFields = len(header)
				headerMap = make(map[string]int, len(header))
				for i, h := range header {
					headerMap[strings.Trim(strings.TrimSpace(h), "'\"")] = i
				}
			}

			for {
				record, err := reader.Read()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("failed to read CSV record from %s: %w", csvPath, err)
				}
				stats.Rows++

				if len(record) != expectedFields {
					stats.Skipped++
					continue
				}
				ac := aircraftFromRecord(record, headerMap)
				if ac == nil {
					stats.Skipped++
					continue
				}

				batch = append(batch, ac)
				if len(batch) >= im.batchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
		}()
		if err != nil {
			return stats, err
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

// aircraftFromRecord maps one CSV row. The ICAO type designator (typecode) is
// preferred for the model column since that is what the live feed reports.
func aircraftFromRecord(record []string, headerMap map[string]int) *models.Aircraft {
	hex := strings.ToLower(getField(record, headerMap, "icao24"))
	if hex == "" {
		return nil
	}
	ac := &models.Aircraft{Hex: hex}
	if reg := getField(record, headerMap, "registration"); reg != "" {
		ac.Registration = &reg
	}
	model := getField(record, headerMap, "typecode")
	if model == "" {
		model = getField(record, headerMap, "model")
	}
	if model != "" {
		ac.Model = &model
	}
	return ac
}

// getField safely retrieves a field from a record by header name
func getField(record []string, headerMap map[string]int, fieldName string) string {
	if idx, ok := headerMap[fieldName]; ok && idx < len(record) {
		return strings.Trim(strings.TrimSpace(record[idx]), "'\"")
	}
	return ""
}

// CleanupAircraft removes aircraft with neither registration nor model, and
// their observations. With dryRun set nothing is deleted.
func (im *Importer) CleanupAircraft(ctx context.Context, dryRun bool) (database.CleanupResult, error) {
	return im.store.Aircraft().DeleteBare(ctx, dryRun)
}

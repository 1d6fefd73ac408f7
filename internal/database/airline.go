package database

import (
	"context"
	"fmt"
	"time"

	"flight_replay/internal/metrics"
	"flight_replay/internal/models"
)

type AirlineRepository interface {
	// UpsertBatch inserts or updates airlines keyed by ICAO code. Nil fields keep the stored value.
	UpsertBatch(ctx context.Context, airlines []*models.Airline) error
	// CodeToID maps every known upper-case ICAO code to its airline id.
	CodeToID(ctx context.Context) (map[string]int64, error)
	Count(ctx context.Context) (int64, error)
}

type airlineRepository struct {
	db Executor
}

func NewAirlineRepository(db Executor) AirlineRepository {
	return &airlineRepository{db: db}
}

func (r *airlineRepository) UpsertBatch(ctx context.Context, airlines []*models.Airline) error {
	if len(airlines) == 0 {
		return nil
	}
	defer metrics.ObserveQuery("airlines_upsert_batch", time.Now())

	return inTx(ctx, r.db, func(q Executor) error {
		stmt, err := q.PrepareNamedContext(ctx, `INSERT INTO airlines (icao_code, callsign, name, iata_code)
			VALUES (:icao_code, :callsign, :name, :iata_code)
			ON CONFLICT (icao_code) DO UPDATE SET
				callsign = COALESCE(excluded.callsign, airlines.callsign),
				name = COALESCE(excluded.name, airlines.name),
				iata_code = COALESCE(excluded.iata_code, airlines.iata_code)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, a := range airlines {
			if _, err := stmt.ExecContext(ctx, a); err != nil {
				return fmt.Errorf("failed to upsert airline %s: %w", a.ICAOCode, err)
			}
		}
		return nil
	})
}

func (r *airlineRepository) CodeToID(ctx context.Context) (map[string]int64, error) {
	defer metrics.ObserveQuery("airlines_code_to_id", time.Now())

	var rows []models.Airline
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, icao_code FROM airlines`); err != nil {
		return nil, fmt.Errorf("failed to query airlines: %w", err)
	}

	codes := make(map[string]int64, len(rows))
	for _, a := range rows {
		codes[a.ICAOCode] = a.ID
	}
	return codes, nil
}

func (r *airlineRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM airlines`); err != nil {
		return 0, fmt.Errorf("failed to count airlines: %w", err)
	}
	return n, nil
}

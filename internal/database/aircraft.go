package database

import (
	"context"
	"fmt"
	"time"

	"flight_replay/internal/metrics"
	"flight_replay/internal/models"
)

type AircraftRepository interface {
	UpsertBatch(ctx context.Context, aircraft []*models.Aircraft) error
	Get(ctx context.Context, hex string) (*models.Aircraft, error)
	// DeleteBare removes aircraft without registration and model together with
	// their observations. With dryRun set it only counts them.
	DeleteBare(ctx context.Context, dryRun bool) (CleanupResult, error)
}

// CleanupResult counts the rows touched (or that would be touched) by DeleteBare.
type CleanupResult struct {
	Aircraft     int64
	Observations int64
}

type aircraftRepository struct {
	db Executor
}

func NewAircraftRepository(db Executor) AircraftRepository {
	return &aircraftRepository{db: db}
}

// UpsertBatch inserts or updates aircraft records in one transaction, or in the
// caller's when the repository is transaction-scoped.
// A null registration or model never replaces a stored value.
func (r *aircraftRepository) UpsertBatch(ctx context.Context, aircraft []*models.Aircraft) error {
	if len(aircraft) == 0 {
		return nil
	}
	defer metrics.ObserveQuery("aircraft_upsert_batch", time.Now())

	return inTx(ctx, r.db, func(q Executor) error {
		stmt, err := q.PrepareNamedContext(ctx, `INSERT INTO aircraft (id, registration, model)
			VALUES (:id, :registration, :model)
			ON CONFLICT (id) DO UPDATE SET
				registration = COALESCE(excluded.registration, aircraft.registration),
				model = COALESCE(excluded.model, aircraft.model)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, ac := range aircraft {
			if _, err := stmt.ExecContext(ctx, ac); err != nil {
				return fmt.Errorf("failed to upsert aircraft %s: %w", ac.Hex, err)
			}
		}
		return nil
	})
}

func (r *aircraftRepository) Get(ctx context.Context, hex string) (*models.Aircraft, error) {
	var ac models.Aircraft
	err := r.db.GetContext(ctx, &ac, r.db.Rebind(`SELECT id, registration, model FROM aircraft WHERE id = ?`), hex)
	if err != nil {
		return nil, notFound(err, "aircraft")
	}
	return &ac, nil
}

const bareAircraft = `(registration IS NULL OR registration = '') AND (model IS NULL OR model = '')`

func (r *aircraftRepository) DeleteBare(ctx context.Context, dryRun bool) (CleanupResult, error) {
	defer metrics.ObserveQuery("aircraft_delete_bare", time.Now())

	var res CleanupResult
	err := inTx(ctx, r.db, func(q Executor) error {
		if err := q.GetContext(ctx, &res.Aircraft, `SELECT COUNT(*) FROM aircraft WHERE `+bareAircraft); err != nil {
			return fmt.Errorf("failed to count aircraft: %w", err)
		}
		if err := q.GetContext(ctx, &res.Observations, `SELECT COUNT(*) FROM snapshot_aircraft
			WHERE aircraft_id IN (SELECT id FROM aircraft WHERE `+bareAircraft+`)`); err != nil {
			return fmt.Errorf("failed to count observations: %w", err)
		}

		if dryRun || res.Aircraft == 0 {
			return nil
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM snapshot_aircraft
			WHERE aircraft_id IN (SELECT id FROM aircraft WHERE `+bareAircraft+`)`); err != nil {
			return fmt.Errorf("failed to delete observations: %w", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM aircraft WHERE `+bareAircraft); err != nil {
			return fmt.Errorf("failed to delete aircraft: %w", err)
		}
		return nil
	})
	return res, err
}

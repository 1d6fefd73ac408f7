package database

import (
	"context"
	"fmt"
	"time"

	"flight_replay/internal/metrics"
	"flight_replay/internal/models"
)

type ObservationRepository interface {
	// ForSnapshot returns every observation in the snapshot, in insertion order.
	ForSnapshot(ctx context.Context, snapshotID int64) ([]models.ObservationView, error)
	// Route returns up to q.Limit positions of one aircraft, newest first.
	Route(ctx context.Context, q models.RouteQuery) ([]models.RoutePoint, error)
	// Search returns up to limit observations matching q on any searchable field, newest first.
	Search(ctx context.Context, q string, limit int) ([]models.ObservationView, error)
	// InsertBatch writes observations in one transaction, ignoring (snapshot, aircraft)
	// pairs that already exist, and returns the number of rows written.
	InsertBatch(ctx context.Context, obs []*models.Observation) (int64, error)
	UnlinkedBatch(ctx context.Context, afterID int64, limit int) ([]models.UnlinkedFlight, error)
	// SetAirlines applies observation id -> airline id links in one transaction.
	SetAirlines(ctx context.Context, links map[int64]int64) error
	DistinctFlights(ctx context.Context) ([]models.FlightRecord, error)
}

type observationRepository struct {
	db Executor
}

func NewObservationRepository(db Executor) ObservationRepository {
	return &observationRepository{db: db}
}

const viewColumns = `sa.id, sa.snapshot_id, s.captured_at, sa.aircraft_id, sa.flight, sa.model,
	sa.lat, sa.lon, sa.gs_kts, sa.track_deg, sa.true_heading_deg, sa.nav_heading_deg,
	sa.alt_baro_raw, sa.alt_baro_ft,
	al.icao_code AS airline_icao_code, al.callsign AS airline_callsign, al.name AS airline_name`

const viewFrom = `FROM snapshot_aircraft sa
	JOIN snapshots s ON s.id = sa.snapshot_id
	LEFT JOIN airlines al ON al.id = sa.airline_id`

func (r *observationRepository) ForSnapshot(ctx context.Context, snapshotID int64) ([]models.ObservationView, error) {
	defer metrics.ObserveQuery("observations_for_snapshot", time.Now())

	var rows []models.ObservationView
	query := `SELECT ` + viewColumns + ` ` + viewFrom + ` WHERE sa.snapshot_id = ? ORDER BY sa.id`
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), snapshotID); err != nil {
		return nil, fmt.Errorf("failed to query snapshot observations: %w", err)
	}
	return normalizeViews(rows), nil
}

func (r *observationRepository) Route(ctx context.Context, q models.RouteQuery) ([]models.RoutePoint, error) {
	defer metrics.ObserveQuery("observations_route", time.Now())

	query := `SELECT s.captured_at, sa.lat, sa.lon, sa.track_deg, sa.gs_kts, sa.true_heading_deg
		FROM snapshot_aircraft sa
		JOIN snapshots s ON s.id = sa.snapshot_id
		WHERE sa.aircraft_id = ? AND s.captured_at >= ? AND s.captured_at <= ?`
	if q.PlottableOnly {
		query += ` AND sa.lat IS NOT NULL AND sa.lon IS NOT NULL`
	}
	query += ` ORDER BY s.captured_at DESC LIMIT ?`

	var rows []models.RoutePoint
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query),
		q.Hex, q.Since.UTC(), q.Until.UTC(), q.Limit); err != nil {
		return nil, fmt.Errorf("failed to query route: %w", err)
	}
	for i := range rows {
		rows[i].CapturedAt = rows[i].CapturedAt.UTC()
	}
	return rows, nil
}

func (r *observationRepository) Search(ctx context.Context, q string, limit int) ([]models.ObservationView, error) {
	defer metrics.ObserveQuery("observations_search", time.Now())

	query := `SELECT ` + viewColumns + ` ` + viewFrom + `
		WHERE LOWER(sa.flight) LIKE ? ESCAPE '\'
			OR LOWER(sa.aircraft_id) LIKE ? ESCAPE '\'
			OR LOWER(sa.registration) LIKE ? ESCAPE '\'
			OR LOWER(al.icao_code) LIKE ? ESCAPE '\'
			OR LOWER(al.callsign) LIKE ? ESCAPE '\'
			OR LOWER(al.name) LIKE ? ESCAPE '\'
		ORDER BY s.captured_at DESC, sa.id
		LIMIT ?`

	p := likePattern(q)
	var rows []models.ObservationView
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), p, p, p, p, p, p, limit); err != nil {
		return nil, fmt.Errorf("failed to search observations: %w", err)
	}
	return normalizeViews(rows), nil
}

// InsertBatch inserts observations in one transaction, or in the caller's when
// the repository is transaction-scoped.
// Callers chunk large captures; one capture is usually a few hundred rows.
func (r *observationRepository) InsertBatch(ctx context.Context, obs []*models.Observation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	defer metrics.ObserveQuery("observations_insert_batch", time.Now())

	var written int64
	err := inTx(ctx, r.db, func(q Executor) error {
		stmt, err := q.PrepareNamedContext(ctx, `INSERT INTO snapshot_aircraft (
			snapshot_id, aircraft_id, airline_id, type, flight, registration, model,
			alt_baro_raw, alt_baro_ft, alt_geom_ft, gs_kts, track_deg, true_heading_deg,
			baro_rate_fpm, geom_rate_fpm, squawk, emergency, category, lat, lon,
			nic, rc, version, nac_p, nac_v, sil, sil_type, gva, sda, alert, spi,
			messages, seen_seconds, rssi, dst_nm, dir_deg, nav_qnh_hpa,
			nav_altitude_mcp, nav_heading_deg, nav_modes, mlat, tisb
		) VALUES (
			:snapshot_id, :aircraft_id, :airline_id, :type, :flight, :registration, :model,
			:alt_baro_raw, :alt_baro_ft, :alt_geom_ft, :gs_kts, :track_deg, :true_heading_deg,
			:baro_rate_fpm, :geom_rate_fpm, :squawk, :emergency, :category, :lat, :lon,
			:nic, :rc, :version, :nac_p, :nac_v, :sil, :sil_type, :gva, :sda, :alert, :spi,
			:messages, :seen_seconds, :rssi, :dst_nm, :dir_deg, :nav_qnh_hpa,
			:nav_altitude_mcp, :nav_heading_deg, :nav_modes, :mlat, :tisb
		) ON CONFLICT (snapshot_id, aircraft_id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, o := range obs {
			res, err := stmt.ExecContext(ctx, o)
			if err != nil {
				return fmt.Errorf("failed to insert observation %s: %w", o.Hex, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				written += n
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (r *observationRepository) UnlinkedBatch(ctx context.Context, afterID int64, limit int) ([]models.UnlinkedFlight, error) {
	defer metrics.ObserveQuery("observations_unlinked", time.Now())

	var rows []models.UnlinkedFlight
	query := `SELECT id, flight FROM snapshot_aircraft
		WHERE id > ? AND airline_id IS NULL AND flight IS NOT NULL
		ORDER BY id LIMIT ?`
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), afterID, limit); err != nil {
		return nil, fmt.Errorf("failed to query unlinked observations: %w", err)
	}
	return rows, nil
}

func (r *observationRepository) SetAirlines(ctx context.Context, links map[int64]int64) error {
	if len(links) == 0 {
		return nil
	}
	defer metrics.ObserveQuery("observations_set_airlines", time.Now())

	return inTx(ctx, r.db, func(q Executor) error {
		stmt, err := q.PreparexContext(ctx, q.Rebind(`UPDATE snapshot_aircraft SET airline_id = ? WHERE id = ?`))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for id, airlineID := range links {
			if _, err := stmt.ExecContext(ctx, airlineID, id); err != nil {
				return fmt.Errorf("failed to link observation %d: %w", id, err)
			}
		}
		return nil
	})
}

// DistinctFlights returns one row per flight string, preferring the observation's
// registration and model and falling back to the aircraft master record.
func (r *observationRepository) DistinctFlights(ctx context.Context) ([]models.FlightRecord, error) {
	defer metrics.ObserveQuery("observations_distinct_flights", time.Now())

	var rows []models.FlightRecord
	query := `SELECT sa.flight,
			COALESCE(sa.registration, a.registration) AS registration,
			COALESCE(sa.model, a.model) AS model
		FROM snapshot_aircraft sa
		JOIN (
			SELECT MIN(id) AS id FROM snapshot_aircraft
			WHERE flight IS NOT NULL GROUP BY flight
		) f ON f.id = sa.id
		LEFT JOIN aircraft a ON a.id = sa.aircraft_id
		ORDER BY sa.flight`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query distinct flights: %w", err)
	}
	return rows, nil
}

func normalizeViews(rows []models.ObservationView) []models.ObservationView {
	for i := range rows {
		rows[i].CapturedAt = rows[i].CapturedAt.UTC()
	}
	return rows
}

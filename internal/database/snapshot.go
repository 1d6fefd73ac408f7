package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flight_replay/internal/metrics"
	"flight_replay/internal/models"
)

type SnapshotRepository interface {
	// AtOrBefore returns the latest snapshot captured at or before t.
	AtOrBefore(ctx context.Context, t time.Time) (*models.SnapshotSummary, error)
	// AtOrAfter returns the earliest snapshot captured at or after t.
	AtOrAfter(ctx context.Context, t time.Time) (*models.SnapshotSummary, error)
	Latest(ctx context.Context) (*models.SnapshotSummary, error)
	// Between returns up to limit snapshots captured in [from, to], oldest first.
	Between(ctx context.Context, from, to time.Time, limit int) ([]models.SnapshotSummary, error)
	Create(ctx context.Context, s *models.Snapshot) (int64, error)
	ExistsAt(ctx context.Context, t time.Time) (bool, error)
}

type snapshotRepository struct {
	db Executor
}

func NewSnapshotRepository(db Executor) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) AtOrBefore(ctx context.Context, t time.Time) (*models.SnapshotSummary, error) {
	defer metrics.ObserveQuery("snapshot_at_or_before", time.Now())
	return r.one(ctx, `SELECT id, captured_at FROM snapshots
		WHERE captured_at <= ? ORDER BY captured_at DESC LIMIT 1`, t.UTC())
}

func (r *snapshotRepository) AtOrAfter(ctx context.Context, t time.Time) (*models.SnapshotSummary, error) {
	defer metrics.ObserveQuery("snapshot_at_or_after", time.Now())
	return r.one(ctx, `SELECT id, captured_at FROM snapshots
		WHERE captured_at >= ? ORDER BY captured_at ASC LIMIT 1`, t.UTC())
}

func (r *snapshotRepository) Latest(ctx context.Context) (*models.SnapshotSummary, error) {
	defer metrics.ObserveQuery("snapshot_latest", time.Now())
	return r.one(ctx, `SELECT id, captured_at FROM snapshots ORDER BY captured_at DESC LIMIT 1`)
}

func (r *snapshotRepository) Between(ctx context.Context, from, to time.Time, limit int) ([]models.SnapshotSummary, error) {
	defer metrics.ObserveQuery("snapshot_between", time.Now())

	var rows []models.SnapshotSummary
	query := `SELECT id, captured_at FROM snapshots
		WHERE captured_at >= ? AND captured_at <= ?
		ORDER BY captured_at ASC LIMIT ?`
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), from.UTC(), to.UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to query snapshot window: %w", err)
	}
	for i := range rows {
		rows[i].CapturedAt = rows[i].CapturedAt.UTC()
	}
	return rows, nil
}

func (r *snapshotRepository) one(ctx context.Context, query string, args ...any) (*models.SnapshotSummary, error) {
	var s models.SnapshotSummary
	if err := r.db.GetContext(ctx, &s, r.db.Rebind(query), args...); err != nil {
		return nil, notFound(err, "snapshot")
	}
	s.CapturedAt = s.CapturedAt.UTC()
	return &s, nil
}

// Create inserts the snapshot header and returns its id.
func (r *snapshotRepository) Create(ctx context.Context, s *models.Snapshot) (int64, error) {
	defer metrics.ObserveQuery("snapshot_create", time.Now())
	s.CapturedAt = s.CapturedAt.UTC()

	query, args, err := r.db.BindNamed(`INSERT INTO snapshots (
		captured_at, center_lat, center_lon, radius_nm, endpoint, total, provider_now_ms
	) VALUES (
		:captured_at, :center_lat, :center_lon, :radius_nm, :endpoint, :total, :provider_now_ms
	) RETURNING id`, s)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		return 0, notFound(err, "snapshot insert")
	}
	s.ID = id
	return id, nil
}

func (r *snapshotRepository) ExistsAt(ctx context.Context, t time.Time) (bool, error) {
	_, err := r.one(ctx, `SELECT id, captured_at FROM snapshots WHERE captured_at = ? LIMIT 1`, t.UTC())
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Package tracking answers the replay questions: which aircraft were on the map
// at an instant, where one aircraft has been recently, which aircraft match a
// free-text query, and what the traffic looked like around a moment. It is
// read-only and keeps no state between calls.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flight_replay/internal/callsign"
	"flight_replay/internal/database"
	"flight_replay/internal/geo"
	"flight_replay/internal/models"
)

// ErrMissingHex is returned by Route when the aircraft identifier is blank.
var ErrMissingHex = errors.New("missing hex")

const (
	DefaultRouteWindow    = 15 * time.Minute
	DefaultRouteMaxPoints = 200
	DefaultSearchLimit    = 500

	DefaultContextSpan         = 20 * time.Second
	DefaultContextMaxSnapshots = 100
)

// SnapshotStore finds snapshot headers by capture time.
type SnapshotStore interface {
	AtOrBefore(ctx context.Context, t time.Time) (*models.SnapshotSummary, error)
	AtOrAfter(ctx context.Context, t time.Time) (*models.SnapshotSummary, error)
	Latest(ctx context.Context) (*models.SnapshotSummary, error)
	Between(ctx context.Context, from, to time.Time, limit int) ([]models.SnapshotSummary, error)
}

// ObservationStore reads observation rows.
type ObservationStore interface {
	ForSnapshot(ctx context.Context, snapshotID int64) ([]models.ObservationView, error)
	Route(ctx context.Context, q models.RouteQuery) ([]models.RoutePoint, error)
	Search(ctx context.Context, q string, limit int) ([]models.ObservationView, error)
}

// Options tunes the query policies. Zero values fall back to the defaults.
type Options struct {
	RouteWindow    time.Duration
	RouteMaxPoints int
	SearchLimit    int
	// ContextMaxSnapshots caps the window returned by Context.
	ContextMaxSnapshots int
	// RouteFilterFirst makes only plottable points count toward the route limit.
	// When false the newest points are taken first and unplottable ones dropped after.
	RouteFilterFirst bool
	// UnscopedToCurrent puts search results in Current instead of Additional
	// when no current snapshot id is given.
	UnscopedToCurrent bool
	// Ground is the fence applied when a snapshot query asks to hide outside ground traffic.
	Ground geo.GroundFence
	// Callsigns renders pronunciations; nil uses the built-in table.
	Callsigns *callsign.Table
}

type Service struct {
	snapshots    SnapshotStore
	observations ObservationStore
	opts         Options
	now          func() time.Time
}

func NewService(snapshots SnapshotStore, observations ObservationStore, opts Options) *Service {
	if opts.RouteWindow <= 0 {
		opts.RouteWindow = DefaultRouteWindow
	}
	if opts.RouteMaxPoints <= 0 {
		opts.RouteMaxPoints = DefaultRouteMaxPoints
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.ContextMaxSnapshots <= 0 {
		opts.ContextMaxSnapshots = DefaultContextMaxSnapshots
	}
	if opts.Callsigns == nil {
		opts.Callsigns = callsign.Default()
	}
	return &Service{
		snapshots:    snapshots,
		observations: observations,
		opts:         opts,
		now:          time.Now,
	}
}

// Aircraft is one aircraft as shown on the map or in search results.
type Aircraft struct {
	Hex           string             `json:"hex"`
	Lat           *float64           `json:"lat"`
	Lon           *float64           `json:"lon"`
	GroundSpeed   *float64           `json:"gs"`
	Track         *float64           `json:"track"`
	TrueHeading   *float64           `json:"true_heading"`
	NavHeading    *float64           `json:"nav_heading"`
	Model         *string            `json:"t"`
	Flight        *string            `json:"flight"`
	AltBaro       models.Altitude    `json:"alt_baro"`
	Airline       *models.AirlineRef `json:"airline"`
	Pronunciation string             `json:"pronunciation"`
}

func (s *Service) aircraft(o *models.ObservationView) Aircraft {
	airline := o.Airline()
	var flight string
	if o.Flight != nil {
		flight = *o.Flight
	}
	return Aircraft{
		Hex:           o.Hex,
		Lat:           o.Lat,
		Lon:           o.Lon,
		GroundSpeed:   o.GroundSpeedKts,
		Track:         o.TrackDeg,
		TrueHeading:   o.TrueHeadingDeg,
		NavHeading:    o.NavHeadingDeg,
		Model:         o.Model,
		Flight:        o.Flight,
		AltBaro:       o.Altitude(),
		Airline:       airline,
		Pronunciation: s.opts.Callsigns.Pronounce(flight, airline),
	}
}

// Frame is a resolved snapshot and its plottable aircraft.
// Snapshot is nil when the store holds no snapshots at all.
type Frame struct {
	Snapshot *models.SnapshotSummary
	Aircraft []Aircraft
}

// SnapshotQuery selects the frame to show.
type SnapshotQuery struct {
	At                *time.Time // nil means the latest snapshot
	HideOutsideGround bool
}

// Resolve picks the latest snapshot at or before q.At, else the earliest after it,
// else the latest overall, and returns its aircraft that have a position.
func (s *Service) Resolve(ctx context.Context, q SnapshotQuery) (*Frame, error) {
	snap, err := s.pickSnapshot(ctx, q.At)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return &Frame{Aircraft: []Aircraft{}}, nil
	}
	return s.frame(ctx, snap, q.HideOutsideGround)
}

func (s *Service) frame(ctx context.Context, snap *models.SnapshotSummary, hideOutsideGround bool) (*Frame, error) {
	rows, err := s.observations.ForSnapshot(ctx, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %d: %w", snap.ID, err)
	}

	frame := &Frame{Snapshot: snap, Aircraft: []Aircraft{}}
	for i := range rows {
		o := &rows[i]
		if !o.Plottable() {
			continue
		}
		if hideOutsideGround && s.opts.Ground.Excludes(o.Altitude().IsGround(), *o.Lat, *o.Lon) {
			continue
		}
		frame.Aircraft = append(frame.Aircraft, s.aircraft(o))
	}
	return frame, nil
}

func (s *Service) pickSnapshot(ctx context.Context, at *time.Time) (*models.SnapshotSummary, error) {
	if at != nil {
		snap, err := s.snapshots.AtOrBefore(ctx, *at)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to resolve snapshot: %w", err)
		}

		snap, err = s.snapshots.AtOrAfter(ctx, *at)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to resolve snapshot: %w", err)
		}
	}

	snap, err := s.snapshots.Latest(ctx)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve latest snapshot: %w", err)
	}
	return snap, nil
}

// ContextQuery asks for the traffic around At: the closest snapshot and every
// snapshot in [At-Past, At+Future]. Negative spans count as zero.
type ContextQuery struct {
	At     time.Time
	Past   time.Duration
	Future time.Duration
}

// ContextResult holds the closest frame (nil when the store is empty) and the
// window frames, oldest first.
type ContextResult struct {
	Current *Frame
	Window  []Frame
}

// Context returns the frame closest to q.At and the frames around it. Ties
// between an earlier and a later snapshot go to the earlier one.
func (s *Service) Context(ctx context.Context, q ContextQuery) (*ContextResult, error) {
	at := q.At.UTC()
	res := &ContextResult{Window: []Frame{}}

	closest, err := s.closestSnapshot(ctx, at)
	if err != nil {
		return nil, err
	}
	if closest != nil {
		if res.Current, err = s.frame(ctx, closest, false); err != nil {
			return nil, err
		}
	}

	snaps, err := s.snapshots.Between(ctx, at.Add(-max(q.Past, 0)), at.Add(max(q.Future, 0)), s.opts.ContextMaxSnapshots)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot window: %w", err)
	}
	for i := range snaps {
		if res.Current != nil && snaps[i].ID == res.Current.Snapshot.ID {
			res.Window = append(res.Window, *res.Current)
			continue
		}
		f, err := s.frame(ctx, &snaps[i], false)
		if err != nil {
			return nil, err
		}
		res.Window = append(res.Window, *f)
	}
	return res, nil
}

func (s *Service) closestSnapshot(ctx context.Context, at time.Time) (*models.SnapshotSummary, error) {
	before, err := s.snapshots.AtOrBefore(ctx, at)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve snapshot: %w", err)
	}
	after, err := s.snapshots.AtOrAfter(ctx, at)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve snapshot: %w", err)
	}

	switch {
	case before == nil:
		return after, nil
	case after == nil:
		return before, nil
	case after.CapturedAt.Sub(at) < at.Sub(before.CapturedAt):
		return after, nil
	default:
		return before, nil
	}
}

// RoutePoint is one position on an aircraft's trail.
type RoutePoint struct {
	Lat         float64
	Lon         float64
	Time        time.Time
	Track       *float64
	GroundSpeed *float64
	TrueHeading *float64
}

// RouteQuery asks for the trail of Hex over Window ending at Anchor.
// A nil Anchor means now; a non-positive Window or MaxPoints uses the configured default.
type RouteQuery struct {
	Hex       string
	Anchor    *time.Time
	Window    time.Duration
	MaxPoints int
}

// Route returns up to MaxPoints of the most recent positions of one aircraft
// inside [anchor-window, anchor], oldest first.
func (s *Service) Route(ctx context.Context, q RouteQuery) (string, []RoutePoint, error) {
	hex := strings.TrimSpace(q.Hex)
	if hex == "" {
		return "", nil, ErrMissingHex
	}

	window := q.Window
	if window <= 0 {
		window = s.opts.RouteWindow
	}
	limit := q.MaxPoints
	if limit <= 0 {
		limit = s.opts.RouteMaxPoints
	}
	anchor := s.now().UTC()
	if q.Anchor != nil {
		anchor = q.Anchor.UTC()
	}

	rows, err := s.observations.Route(ctx, models.RouteQuery{
		Hex:           hex,
		Since:         anchor.Add(-window),
		Until:         anchor,
		Limit:         limit,
		PlottableOnly: s.opts.RouteFilterFirst,
	})
	if err != nil {
		return hex, nil, fmt.Errorf("failed to load route for %s: %w", hex, err)
	}

	points := make([]RoutePoint, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := &rows[i]
		if !r.Plottable() {
			continue
		}
		points = append(points, RoutePoint{
			Lat:         *r.Lat,
			Lon:         *r.Lon,
			Time:        r.CapturedAt.UTC(),
			Track:       r.TrackDeg,
			GroundSpeed: r.GroundSpeedKts,
			TrueHeading: r.TrueHeadingDeg,
		})
	}
	return hex, points, nil
}

// SearchResult splits matches by whether they were seen in the snapshot on screen.
type SearchResult struct {
	Current    []Aircraft
	Additional []Aircraft
}

// Search matches q case-insensitively against flight, hex, registration and the
// linked airline's code, callsign and name. Each aircraft appears once, as its
// most recent matching observation.
func (s *Service) Search(ctx context.Context, q string, currentSnapshotID *int64) (*SearchResult, error) {
	res := &SearchResult{Current: []Aircraft{}, Additional: []Aircraft{}}

	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return res, nil
	}

	rows, err := s.observations.Search(ctx, q, s.opts.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", q, err)
	}

	seen := make(map[string]struct{}, len(rows))
	for i := range rows {
		o := &rows[i]
		if _, dup := seen[o.Hex]; dup {
			continue
		}
		seen[o.Hex] = struct{}{}

		a := s.aircraft(o)
		switch {
		case currentSnapshotID == nil && s.opts.UnscopedToCurrent:
			res.Current = append(res.Current, a)
		case currentSnapshotID != nil && o.SnapshotID == *currentSnapshotID:
			res.Current = append(res.Current, a)
		default:
			res.Additional = append(res.Additional, a)
		}
	}
	return res, nil
}

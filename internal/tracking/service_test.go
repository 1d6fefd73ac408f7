package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"flight_replay/internal/database"
	"flight_replay/internal/geo"
	"flight_replay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func f64Ptr(f float64) *float64 { return &f }
func at(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func atPtr(sec int64) *time.Time {
	t := at(sec)
	return &t
}

// fakeStore is an in-memory SnapshotStore and ObservationStore.
type fakeStore struct {
	snapshots []models.SnapshotSummary
	views     []models.ObservationView
	err       error
}

func (f *fakeStore) pick(keep func(time.Time) bool, newest bool) (*models.SnapshotSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	var best *models.SnapshotSummary
	for i := range f.snapshots {
		s := &f.snapshots[i]
		if !keep(s.CapturedAt) {
			continue
		}
		if best == nil || (newest && s.CapturedAt.After(best.CapturedAt)) || (!newest && s.CapturedAt.Before(best.CapturedAt)) {
			best = s
		}
	}
	if best == nil {
		return nil, database.ErrNotFound
	}
	return best, nil
}

func (f *fakeStore) AtOrBefore(_ context.Context, t time.Time) (*models.SnapshotSummary, error) {
	return f.pick(func(c time.Time) bool { return !c.After(t) }, true)
}

func (f *fakeStore) AtOrAfter(_ context.Context, t time.Time) (*models.SnapshotSummary, error) {
	return f.pick(func(c time.Time) bool { return !c.Before(t) }, false)
}

func (f *fakeStore) Latest(_ context.Context) (*models.SnapshotSummary, error) {
	return f.pick(func(time.Time) bool { return true }, true)
}

func (f *fakeStore) Between(_ context.Context, from, to time.Time, limit int) ([]models.SnapshotSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.SnapshotSummary
	for _, s := range f.snapshots {
		if !s.CapturedAt.Before(from) && !s.CapturedAt.After(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ForSnapshot(_ context.Context, id int64) ([]models.ObservationView, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.ObservationView
	for _, v := range f.views {
		if v.SnapshotID == id {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) Route(_ context.Context, q models.RouteQuery) ([]models.RoutePoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.RoutePoint
	for _, v := range f.views {
		if v.Hex != q.Hex || v.CapturedAt.Before(q.Since) || v.CapturedAt.After(q.Until) {
			continue
		}
		if q.PlottableOnly && !v.Plottable() {
			continue
		}
		out = append(out, models.RoutePoint{CapturedAt: v.CapturedAt, Lat: v.Lat, Lon: v.Lon, TrackDeg: v.TrackDeg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeStore) Search(_ context.Context, q string, limit int) ([]models.ObservationView, error) {
	if f.err != nil {
		return nil, f.err
	}
	contains := func(s *string) bool { return s != nil && strings.Contains(strings.ToLower(*s), q) }
	var out []models.ObservationView
	for _, v := range f.views {
		if contains(v.Flight) || contains(&v.Hex) || contains(v.AirlineICAO) || contains(v.AirlineCallsign) || contains(v.AirlineName) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func view(snapID, sec int64, hex string, lat, lon *float64) models.ObservationView {
	return models.ObservationView{SnapshotID: snapID, CapturedAt: at(sec), Hex: hex, Lat: lat, Lon: lon}
}

func newTestService(store *fakeStore, opts Options) *Service {
	svc := NewService(store, store, opts)
	svc.now = func() time.Time { return at(1000) }
	return svc
}

func TestResolve_PicksSnapshot(t *testing.T) {
	store := &fakeStore{snapshots: []models.SnapshotSummary{
		{ID: 1, CapturedAt: at(100)},
		{ID: 2, CapturedAt: at(200)},
	}}
	svc := newTestService(store, Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		at   *time.Time
		want int64
	}{
		{"between", atPtr(150), 1},
		{"before all", atPtr(50), 1},
		{"after all", atPtr(250), 2},
		{"exact", atPtr(200), 2},
		{"omitted", nil, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := svc.Resolve(ctx, SnapshotQuery{At: tt.at})
			require.NoError(t, err)
			require.NotNil(t, frame.Snapshot)
			assert.Equal(t, tt.want, frame.Snapshot.ID)
		})
	}
}

func TestResolve_EmptyStore(t *testing.T) {
	svc := newTestService(&fakeStore{}, Options{})

	frame, err := svc.Resolve(context.Background(), SnapshotQuery{At: atPtr(100)})
	require.NoError(t, err)
	assert.Nil(t, frame.Snapshot)
	assert.NotNil(t, frame.Aircraft)
	assert.Empty(t, frame.Aircraft)
}

func TestResolve_StoreFailure(t *testing.T) {
	svc := newTestService(&fakeStore{err: errors.New("connection refused")}, Options{})

	_, err := svc.Resolve(context.Background(), SnapshotQuery{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, database.ErrNotFound)
}

func TestResolve_DropsUnplottableAndNormalizesAltitude(t *testing.T) {
	ground := view(1, 100, "aaa111", f64Ptr(40.69), f64Ptr(-74.17))
	ground.AltBaroRaw = strPtr("ground")
	ground.AltBaroFt = nil

	numeric := view(1, 100, "bbb222", f64Ptr(40.8), f64Ptr(-74.0))
	ft := int64(3500)
	numeric.AltBaroFt = &ft
	numeric.Flight = strPtr("UAL123")
	numeric.AirlineICAO = strPtr("UAL")

	store := &fakeStore{
		snapshots: []models.SnapshotSummary{{ID: 1, CapturedAt: at(100)}},
		views: []models.ObservationView{
			ground,
			view(1, 100, "ccc333", nil, f64Ptr(-74.0)),
			view(1, 100, "ddd444", f64Ptr(40.0), nil),
			numeric,
		},
	}
	svc := newTestService(store, Options{})

	frame, err := svc.Resolve(context.Background(), SnapshotQuery{})
	require.NoError(t, err)
	require.Len(t, frame.Aircraft, 2)

	for _, a := range frame.Aircraft {
		assert.NotNil(t, a.Lat)
		assert.NotNil(t, a.Lon)
	}

	body, err := json.Marshal(frame.Aircraft)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"alt_baro":"ground"`)
	assert.Contains(t, string(body), `"alt_baro":3500`)
	assert.Contains(t, string(body), `"airline":null`)
	assert.Contains(t, string(body), `"pronunciation":"UNITED one two three"`)
}

func TestResolve_HideOutsideGround(t *testing.T) {
	onField := view(1, 100, "aaa111", f64Ptr(40.6900), f64Ptr(-74.1750))
	onField.AltBaroRaw = strPtr("ground")
	elsewhere := view(1, 100, "bbb222", f64Ptr(40.6413), f64Ptr(-73.7781))
	elsewhere.AltBaroRaw = strPtr("ground")
	airborne := view(1, 100, "ccc333", f64Ptr(40.6413), f64Ptr(-73.7781))
	airborne.AltBaroRaw = strPtr("2500")

	store := &fakeStore{
		snapshots: []models.SnapshotSummary{{ID: 1, CapturedAt: at(100)}},
		views:     []models.ObservationView{onField, elsewhere, airborne},
	}
	svc := newTestService(store, Options{Ground: geo.GroundFence{
		Center:  geo.Point{Lat: 40.6895, Lon: -74.1745},
		RadiusM: 3218.68,
	}})

	frame, err := svc.Resolve(context.Background(), SnapshotQuery{})
	require.NoError(t, err)
	assert.Len(t, frame.Aircraft, 3)

	frame, err = svc.Resolve(context.Background(), SnapshotQuery{HideOutsideGround: true})
	require.NoError(t, err)
	require.Len(t, frame.Aircraft, 2)
	assert.Equal(t, "aaa111", frame.Aircraft[0].Hex)
	assert.Equal(t, "ccc333", frame.Aircraft[1].Hex)
}

func routeStore() *fakeStore {
	store := &fakeStore{}
	for _, sec := range []int64{0, 60, 120, 180} {
		store.views = append(store.views, view(sec, sec, "ABC123", f64Ptr(40), f64Ptr(-74)))
	}
	return store
}

func routeTimes(points []RoutePoint) []int64 {
	out := make([]int64, 0, len(points))
	for _, p := range points {
		out = append(out, p.Time.Unix())
	}
	return out
}

func contextStore() *fakeStore {
	return &fakeStore{
		snapshots: []models.SnapshotSummary{
			{ID: 1, CapturedAt: at(100)},
			{ID: 2, CapturedAt: at(110)},
			{ID: 3, CapturedAt: at(120)},
			{ID: 4, CapturedAt: at(200)},
		},
		views: []models.ObservationView{
			view(2, 110, "aaa111", f64Ptr(40.7), f64Ptr(-74.1)),
			view(2, 110, "bbb222", nil, nil),
			view(3, 120, "aaa111", f64Ptr(40.8), f64Ptr(-74.0)),
		},
	}
}

func TestContext_ClosestAndWindow(t *testing.T) {
	svc := newTestService(contextStore(), Options{})

	res, err := svc.Context(context.Background(), ContextQuery{At: at(113), Past: 5 * time.Second, Future: 10 * time.Second})
	require.NoError(t, err)

	require.NotNil(t, res.Current)
	assert.Equal(t, int64(2), res.Current.Snapshot.ID)
	require.Len(t, res.Current.Aircraft, 1, "unplottable aircraft are dropped")
	assert.Equal(t, "aaa111", res.Current.Aircraft[0].Hex)

	require.Len(t, res.Window, 2)
	assert.Equal(t, int64(2), res.Window[0].Snapshot.ID)
	assert.Equal(t, int64(3), res.Window[1].Snapshot.ID)
	assert.InDelta(t, 40.8, *res.Window[1].Aircraft[0].Lat, 1e-9)
}

func TestContext_ClosestPrefersEarlierOnTie(t *testing.T) {
	svc := newTestService(contextStore(), Options{})
	ctx := context.Background()

	res, err := svc.Context(ctx, ContextQuery{At: at(115)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Current.Snapshot.ID)
	assert.Empty(t, res.Window)

	res, err = svc.Context(ctx, ContextQuery{At: at(117)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Current.Snapshot.ID)

	res, err = svc.Context(ctx, ContextQuery{At: at(500)})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Current.Snapshot.ID)

	res, err = svc.Context(ctx, ContextQuery{At: at(10)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Current.Snapshot.ID)
}

func TestContext_NegativeSpansAndCap(t *testing.T) {
	svc := newTestService(contextStore(), Options{ContextMaxSnapshots: 2})

	res, err := svc.Context(context.Background(), ContextQuery{At: at(110), Past: -time.Minute, Future: time.Hour})
	require.NoError(t, err)
	require.Len(t, res.Window, 2)
	assert.Equal(t, int64(2), res.Window[0].Snapshot.ID)
	assert.Equal(t, int64(3), res.Window[1].Snapshot.ID)
}

func TestContext_EmptyStoreAndFailure(t *testing.T) {
	res, err := newTestService(&fakeStore{}, Options{}).Context(context.Background(), ContextQuery{At: at(100)})
	require.NoError(t, err)
	assert.Nil(t, res.Current)
	assert.NotNil(t, res.Window)
	assert.Empty(t, res.Window)

	_, err = newTestService(&fakeStore{err: errors.New("connection refused")}, Options{}).
		Context(context.Background(), ContextQuery{At: at(100)})
	assert.Error(t, err)
}

func TestRoute_MostRecentOldestFirst(t *testing.T) {
	svc := newTestService(routeStore(), Options{})

	hex, points, err := svc.Route(context.Background(), RouteQuery{
		Hex:       " ABC123 ",
		Anchor:    atPtr(180),
		Window:    200 * time.Second,
		MaxPoints: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "ABC123", hex)
	assert.Equal(t, []int64{120, 180}, routeTimes(points))
}

func TestRoute_WindowIsInclusive(t *testing.T) {
	svc := newTestService(routeStore(), Options{})

	_, points, err := svc.Route(context.Background(), RouteQuery{
		Hex:    "ABC123",
		Anchor: atPtr(180),
		Window: 120 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{60, 120, 180}, routeTimes(points))
}

func TestRoute_MissingHex(t *testing.T) {
	svc := newTestService(routeStore(), Options{})

	_, _, err := svc.Route(context.Background(), RouteQuery{Hex: "   "})
	assert.ErrorIs(t, err, ErrMissingHex)
}

func TestRoute_DefaultsAndNowAnchor(t *testing.T) {
	store := &fakeStore{views: []models.ObservationView{
		view(1, 1000-16*60, "abc", f64Ptr(1), f64Ptr(1)),
		view(2, 1000-15*60, "abc", f64Ptr(1), f64Ptr(1)),
		view(3, 1000, "abc", f64Ptr(1), f64Ptr(1)),
		view(4, 1001, "abc", f64Ptr(1), f64Ptr(1)),
	}}
	svc := newTestService(store, Options{})

	_, points, err := svc.Route(context.Background(), RouteQuery{Hex: "abc", Window: -1, MaxPoints: 0})
	require.NoError(t, err)
	assert.Equal(t, []int64{1000 - 15*60, 1000}, routeTimes(points))
}

func TestRoute_TruncateThenFilter(t *testing.T) {
	store := routeStore()
	// newest sample has no position
	store.views[3].Lat = nil

	ctx := context.Background()
	q := RouteQuery{Hex: "ABC123", Anchor: atPtr(180), Window: time.Hour, MaxPoints: 2}

	_, points, err := newTestService(store, Options{}).Route(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []int64{120}, routeTimes(points), "limit applied before dropping unplottable points")

	_, points, err = newTestService(store, Options{RouteFilterFirst: true}).Route(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []int64{60, 120}, routeTimes(points), "only plottable points count toward the limit")
}

func searchStore() *fakeStore {
	ual := view(2, 200, "aaa111", f64Ptr(40), f64Ptr(-74))
	ual.Flight = strPtr("UAL123")
	ual.AirlineICAO = strPtr("UAL")
	ual.AirlineCallsign = strPtr("UNITED")
	ual.AirlineName = strPtr("United Airlines")

	olderUAL := ual
	olderUAL.SnapshotID, olderUAL.CapturedAt = 1, at(100)

	dal := view(1, 100, "bbb222", nil, nil)
	dal.Flight = strPtr("DAL9")

	return &fakeStore{views: []models.ObservationView{olderUAL, dal, ual}}
}

func TestSearch_EmptyQuery(t *testing.T) {
	store := searchStore()
	store.err = errors.New("must not be called")
	svc := newTestService(store, Options{})

	for _, q := range []string{"", "   \t"} {
		res, err := svc.Search(context.Background(), q, nil)
		require.NoError(t, err)
		assert.Empty(t, res.Current)
		assert.Empty(t, res.Additional)
		assert.NotNil(t, res.Current)
		assert.NotNil(t, res.Additional)
	}
}

func TestSearch_MatchesAirlineNameAndDedupes(t *testing.T) {
	svc := newTestService(searchStore(), Options{})

	res, err := svc.Search(context.Background(), "  United ", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Current)
	require.Len(t, res.Additional, 1)
	assert.Equal(t, "aaa111", res.Additional[0].Hex)
	assert.Equal(t, "UAL", res.Additional[0].Airline.ICAOCode)
}

func TestSearch_PartitionByCurrentSnapshot(t *testing.T) {
	svc := newTestService(searchStore(), Options{})
	current := int64(1)

	res, err := svc.Search(context.Background(), "a", &current)
	require.NoError(t, err)

	// aaa111's most recent match is in snapshot 2, so it is not current
	require.Len(t, res.Current, 1)
	assert.Equal(t, "bbb222", res.Current[0].Hex)
	require.Len(t, res.Additional, 1)
	assert.Equal(t, "aaa111", res.Additional[0].Hex)

	seen := map[string]bool{}
	for _, a := range append(res.Current, res.Additional...) {
		assert.False(t, seen[a.Hex], "duplicate hex %s", a.Hex)
		seen[a.Hex] = true
	}
}

func TestSearch_UnscopedBucket(t *testing.T) {
	ctx := context.Background()

	res, err := newTestService(searchStore(), Options{}).Search(ctx, "a", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Current)
	assert.Len(t, res.Additional, 2)

	res, err = newTestService(searchStore(), Options{UnscopedToCurrent: true}).Search(ctx, "a", nil)
	require.NoError(t, err)
	assert.Len(t, res.Current, 2)
	assert.Empty(t, res.Additional)
}

func TestSearch_StoreFailure(t *testing.T) {
	store := searchStore()
	store.err = errors.New("boom")

	_, err := newTestService(store, Options{}).Search(context.Background(), "ual", nil)
	assert.Error(t, err)
}

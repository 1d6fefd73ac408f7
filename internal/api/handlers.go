package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flight_replay/internal/timefmt"
	"flight_replay/internal/tracking"
)

// Tracker is the query core behind the HTTP endpoints.
type Tracker interface {
	Resolve(ctx context.Context, q tracking.SnapshotQuery) (*tracking.Frame, error)
	Route(ctx context.Context, q tracking.RouteQuery) (string, []tracking.RoutePoint, error)
	Search(ctx context.Context, q string, currentSnapshotID *int64) (*tracking.SearchResult, error)
	Context(ctx context.Context, q tracking.ContextQuery) (*tracking.ContextResult, error)
}

// Pinger reports store reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	codeMissingHex       = "missing_hex"
	codeInvalidTimestamp = "invalid_timestamp"
	codeInternalError    = "internal_error"
)

type Handler struct {
	tracker Tracker
	store   Pinger
}

func NewHandler(tracker Tracker, store Pinger) *Handler {
	return &Handler{tracker: tracker, store: store}
}

type errorResponse struct {
	Error string `json:"error"`
}

type snapshotJSON struct {
	ID         int64  `json:"id"`
	CapturedAt string `json:"capturedAt"`
}

type snapshotResponse struct {
	Snapshot *snapshotJSON       `json:"snapshot"`
	Aircraft []tracking.Aircraft `json:"aircraft"`
}

type routePointJSON struct {
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	T           string   `json:"t"`
	Track       *float64 `json:"track"`
	GroundSpeed *float64 `json:"gs"`
	TrueHeading *float64 `json:"true_heading"`
}

type routeResponse struct {
	Hex    string           `json:"hex"`
	Points []routePointJSON `json:"points"`
}

type contextResponse struct {
	Timestamp string             `json:"timestamp"`
	Current   *snapshotResponse  `json:"current"`
	Window    []snapshotResponse `json:"window"`
}

type searchResponse struct {
	Error      string              `json:"error,omitempty"`
	Aircraft   []tracking.Aircraft `json:"aircraft"`
	Additional []tracking.Aircraft `json:"additional"`
}

// Snapshot serves GET /api/snapshot?ts=<epoch seconds>|at=<instant>[&outside_ground=0].
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	frame, err := h.tracker.Resolve(r.Context(), tracking.SnapshotQuery{
		At:                parseAt(query.Get("ts"), query.Get("at")),
		HideOutsideGround: query.Get("outside_ground") == "0",
	})
	if err != nil {
		h.internalError(w, r, "snapshot lookup failed", err, errorResponse{Error: codeInternalError})
		return
	}

	writeJSON(w, http.StatusOK, frameResponse(frame))
}

func frameResponse(frame *tracking.Frame) snapshotResponse {
	resp := snapshotResponse{Aircraft: frame.Aircraft}
	if frame.Snapshot != nil {
		resp.Snapshot = &snapshotJSON{
			ID:         frame.Snapshot.ID,
			CapturedAt: timefmt.Format(frame.Snapshot.CapturedAt),
		}
	}
	return resp
}

// Route serves GET /api/aircraft/route?hex=&minutes=&max=&ts=.
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	q := tracking.RouteQuery{Hex: query.Get("hex")}
	if m, err := strconv.ParseFloat(query.Get("minutes"), 64); err == nil && m > 0 && !math.IsInf(m, 0) {
		q.Window = scaledDuration(m, time.Minute)
	}
	if n, err := strconv.Atoi(query.Get("max")); err == nil && n > 0 {
		q.MaxPoints = n
	}
	if ts := query.Get("ts"); ts != "" {
		if t, err := timefmt.ParseEpochSeconds(ts); err == nil {
			q.Anchor = &t
		}
	}

	hex, points, err := h.tracker.Route(r.Context(), q)
	if errors.Is(err, tracking.ErrMissingHex) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: codeMissingHex})
		return
	}
	if err != nil {
		h.internalError(w, r, "route lookup failed", err, errorResponse{Error: codeInternalError})
		return
	}

	resp := routeResponse{Hex: hex, Points: make([]routePointJSON, 0, len(points))}
	for _, p := range points {
		resp.Points = append(resp.Points, routePointJSON{
			Lat:         p.Lat,
			Lon:         p.Lon,
			T:           timefmt.Format(p.Time),
			Track:       p.Track,
			GroundSpeed: p.GroundSpeed,
			TrueHeading: p.TrueHeading,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Search serves GET /api/aircraft/search?q=&currentSnapshotId=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var current *int64
	if id, err := strconv.ParseInt(strings.TrimSpace(query.Get("currentSnapshotId")), 10, 64); err == nil && id != 0 {
		current = &id
	}

	res, err := h.tracker.Search(r.Context(), query.Get("q"), current)
	if err != nil {
		h.internalError(w, r, "search failed", err, searchResponse{
			Error:      codeInternalError,
			Aircraft:   []tracking.Aircraft{},
			Additional: []tracking.Aircraft{},
		})
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Aircraft: res.Current, Additional: res.Additional})
}

// Context serves GET /api/context?timestamp=<epoch s|epoch ms|instant>&adsb_past_s=&adsb_future_s=.
func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	at, err := timefmt.ParseFlexible(query.Get("timestamp"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: codeInvalidTimestamp})
		return
	}

	res, err := h.tracker.Context(r.Context(), tracking.ContextQuery{
		At:     at,
		Past:   spanSeconds(query.Get("adsb_past_s")),
		Future: spanSeconds(query.Get("adsb_future_s")),
	})
	if err != nil {
		h.internalError(w, r, "context lookup failed", err, errorResponse{Error: codeInternalError})
		return
	}

	resp := contextResponse{
		Timestamp: timefmt.Format(at),
		Window:    make([]snapshotResponse, 0, len(res.Window)),
	}
	if res.Current != nil {
		cur := frameResponse(res.Current)
		resp.Current = &cur
	}
	for i := range res.Window {
		resp.Window = append(resp.Window, frameResponse(&res.Window[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// spanSeconds reads a non-negative number of seconds. Anything else means the default span.
func spanSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return tracking.DefaultContextSpan
	}
	return scaledDuration(f, time.Second)
}

// scaledDuration converts v units to a Duration, saturating at the largest
// representable value instead of overflowing.
func scaledDuration(v float64, unit time.Duration) time.Duration {
	if v >= float64(math.MaxInt64)/float64(unit) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(v * float64(unit))
}

// Healthz reports whether the store answers a ping.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Warn("health check failed", "request_id", RequestIDFrom(r.Context()), "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// internalError logs err with the request id and sends only the generic body.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error, body any) {
	slog.Error(msg, "request_id", RequestIDFrom(r.Context()), "error", err)
	writeJSON(w, http.StatusInternalServerError, body)
}

// parseAt reads ts (epoch seconds) first, then at (an instant). Unparseable values count as absent.
func parseAt(ts, at string) *time.Time {
	if ts != "" {
		if t, err := timefmt.ParseEpochSeconds(ts); err == nil {
			return &t
		}
	}
	if at != "" {
		if t, err := timefmt.ParseInstant(at); err == nil {
			return &t
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

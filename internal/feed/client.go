// Package feed fetches area reports from the adsb.lol v2 API.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"flight_replay/internal/geo"
	"flight_replay/internal/metrics"
	"flight_replay/internal/models"

	"golang.org/x/time/rate"
)

const (
	EndpointLatLon = "latlon"
	EndpointPoint  = "point"

	// MaxRadiusNM is the largest radius the API accepts.
	MaxRadiusNM = 250
)

// ErrInvalidRadius is returned for a radius outside (0, MaxRadiusNM].
var ErrInvalidRadius = errors.New("radius_nm must be in (0, 250]")

// Client calls the feed API, pacing requests through a token bucket and
// retrying transient failures with exponential backoff.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	retryBackoff time.Duration
}

// NewClient creates a client. A nil limiter means no pacing.
func NewClient(baseURL string, timeout time.Duration, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      limiter,
		maxRetries:   3,
		retryBackoff: 1 * time.Second,
	}
}

// Capture is one API response: the decoded report plus the raw top-level
// fields so the recorder can write the response back out unchanged.
type Capture struct {
	Report *models.FeedReport
	Fields map[string]json.RawMessage
}

// Area returns every aircraft within radiusNM of center using the chosen endpoint.
func (c *Client) Area(ctx context.Context, center geo.Point, radiusNM float64, endpoint string) (*Capture, error) {
	if radiusNM <= 0 || radiusNM > MaxRadiusNM {
		return nil, ErrInvalidRadius
	}

	lat := strconv.FormatFloat(center.Lat, 'f', -1, 64)
	lon := strconv.FormatFloat(center.Lon, 'f', -1, 64)
	dist := strconv.FormatFloat(radiusNM, 'f', -1, 64)

	var url string
	switch endpoint {
	case EndpointLatLon, "":
		url = fmt.Sprintf("%s/v2/lat/%s/lon/%s/dist/%s", c.baseURL, lat, lon, dist)
	case EndpointPoint:
		url = fmt.Sprintf("%s/v2/point/%s/%s/%s", c.baseURL, lat, lon, dist)
	default:
		return nil, fmt.Errorf("unknown feed endpoint %q", endpoint)
	}

	body, err := c.getWithRetry(ctx, url)
	if err != nil {
		metrics.FeedRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.FeedRequestsTotal.WithLabelValues("ok").Inc()

	return Decode(body)
}

// Decode parses a feed response or a recorded capture file.
func Decode(body []byte) (*Capture, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}
	var report models.FeedReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}
	return &Capture{Report: &report, Fields: fields}, nil
}

// WithMeta sets the _meta block on both views of the capture.
func (c *Capture) WithMeta(meta models.FeedMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if c.Fields == nil {
		c.Fields = make(map[string]json.RawMessage)
	}
	c.Fields["_meta"] = raw
	c.Report.Meta = &meta
	return nil
}

// Encode renders the capture as compact JSON.
func (c *Capture) Encode() ([]byte, error) {
	return json.Marshal(c.Fields)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("feed returned status %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func (c *Client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	backoff := c.retryBackoff

	for attempt := 0; ; attempt++ {
		body, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		slog.Warn("Feed request failed, retrying", "url", url, "retry", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		// 1s, 2s, 4s... capped at 30s
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "flight_replay/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(truncate(body, 200)))}
	}
	return body, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

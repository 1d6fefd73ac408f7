package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FLIGHT_REPLAY_CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.DB.Driver)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Minute, cfg.Query.RouteWindow)
	assert.Equal(t, 200, cfg.Query.RouteMaxPoints)
	assert.Equal(t, 500, cfg.Query.SearchLimit)
	assert.Equal(t, 100, cfg.Query.ContextMaxSnapshots)
	assert.False(t, cfg.Query.RouteFilterFirst)
	assert.Equal(t, "additional", cfg.Query.UnscopedBucket)
	assert.Equal(t, "https://api.adsb.lol", cfg.Feed.BaseURL)
	assert.Equal(t, 20.0, cfg.Feed.RadiusNM)
	assert.Equal(t, 2*time.Second, cfg.Feed.Interval)
	assert.Equal(t, "latlon", cfg.Feed.Endpoint)
	assert.Equal(t, 1.0, cfg.Feed.RateLimit)
	assert.InDelta(t, 3218.68, cfg.Ground.RadiusM, 1e-9)
	assert.Equal(t, 40.6895, cfg.Ground.Center.Lat)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
db:
  driver: postgres
  dsn: postgres://replay@localhost/replay?sslmode=disable
query:
  route_filter_before_limit: true
  search_unscoped_bucket: current
feed:
  base_url: http://localhost:9000/
  radius_nm: 40
  endpoint: point
log:
  level: debug
  format: json
`)
	t.Setenv("FLIGHT_REPLAY_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("FLIGHT_REPLAY_QUERY_ROUTE_MAX_POINTS", "50")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.True(t, cfg.Query.RouteFilterFirst)
	assert.Equal(t, "current", cfg.Query.UnscopedBucket)
	assert.Equal(t, "http://localhost:9000", cfg.Feed.BaseURL)
	assert.Equal(t, 40.0, cfg.Feed.RadiusNM)
	assert.Equal(t, "point", cfg.Feed.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Query.RouteMaxPoints)
}

func TestLoad_EnvConfigPath(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":7070\"\n")
	t.Setenv("FLIGHT_REPLAY_CONFIG_PATH", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"driver", "db:\n  driver: mysql\n"},
		{"radius too large", "feed:\n  radius_nm: 251\n"},
		{"radius zero", "feed:\n  radius_nm: 0\n"},
		{"bucket", "query:\n  search_unscoped_bucket: both\n"},
		{"context cap", "query:\n  context_max_snapshots: 0\n"},
		{"endpoint", "feed:\n  endpoint: box\n"},
		{"rate limit", "feed:\n  rate_limit: 0\n"},
		{"log level", "log:\n  level: verbose\n"},
		{"log format", "log:\n  format: xml\n"},
		{"batch size", "import:\n  batch_size: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGroundFence(t *testing.T) {
	g := GroundConfig{RadiusM: 100}
	g.Center.Lat, g.Center.Lon = 1, 2
	fence := g.Fence()
	assert.Equal(t, 100.0, fence.RadiusM)
	assert.Equal(t, 1.0, fence.Center.Lat)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"flight_replay/internal/geo"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "FLIGHT_REPLAY"

// Config holds all configuration for the replay service and its tools
type Config struct {
	DB     DBConfig
	Server ServerConfig
	Log    LogConfig
	Query  QueryConfig
	Feed   FeedConfig
	Ground GroundConfig
	Import ImportConfig
}

type DBConfig struct {
	Driver string // sqlite3 or postgres
	DSN    string
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	File   string // optional rotating file sink
}

type QueryConfig struct {
	RouteWindow         time.Duration
	RouteMaxPoints      int
	SearchLimit         int
	RouteFilterFirst    bool   // count only plottable points toward the route limit
	UnscopedBucket      string // "additional" or "current"
	ContextMaxSnapshots int
}

type FeedConfig struct {
	BaseURL   string
	Center    geo.Point
	RadiusNM  float64
	Endpoint  string // "latlon" or "point"
	Interval  time.Duration
	Duration  time.Duration // 0 records until stopped
	Timeout   time.Duration
	RateLimit float64 // requests per second, retries included
	OutDir    string
	Ingest    bool // write each capture straight into the store as well
}

type GroundConfig struct {
	Center  geo.Point
	RadiusM float64
}

type ImportConfig struct {
	BatchSize int
}

// Fence returns the ground traffic filter described by the config.
func (g GroundConfig) Fence() geo.GroundFence {
	return geo.GroundFence{Center: g.Center, RadiusM: g.RadiusM}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", "flight_replay.db")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("query.route_window", 15*time.Minute)
	v.SetDefault("query.route_max_points", 200)
	v.SetDefault("query.search_limit", 500)
	v.SetDefault("query.route_filter_before_limit", false)
	v.SetDefault("query.search_unscoped_bucket", "additional")
	v.SetDefault("query.context_max_snapshots", 100)

	v.SetDefault("feed.base_url", "https://api.adsb.lol")
	v.SetDefault("feed.center.lat", 40.6895)
	v.SetDefault("feed.center.lon", -74.1745)
	v.SetDefault("feed.radius_nm", 20.0)
	v.SetDefault("feed.endpoint", "latlon")
	v.SetDefault("feed.interval", 2*time.Second)
	v.SetDefault("feed.duration", 30*time.Minute)
	v.SetDefault("feed.timeout", 15*time.Second)
	v.SetDefault("feed.rate_limit", 1.0)
	v.SetDefault("feed.out_dir", "adsb_snapshots")
	v.SetDefault("feed.ingest", false)

	v.SetDefault("ground.center.lat", 40.6895)
	v.SetDefault("ground.center.lon", -74.1745)
	v.SetDefault("ground.radius_m", 3218.68)

	v.SetDefault("import.batch_size", 500)
}

// Load reads configuration from defaults, an optional YAML file, a .env file
// and FLIGHT_REPLAY_* environment variables. An explicit path wins over
// FLIGHT_REPLAY_CONFIG_PATH and the search paths.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables take precedence over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/flight_replay")
	v.AddConfigPath(".")

	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults + env vars
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		DB: DBConfig{
			Driver: v.GetString("db.driver"),
			DSN:    v.GetString("db.dsn"),
		},
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			File:   v.GetString("log.file"),
		},
		Query: QueryConfig{
			RouteWindow:         v.GetDuration("query.route_window"),
			RouteMaxPoints:      v.GetInt("query.route_max_points"),
			SearchLimit:         v.GetInt("query.search_limit"),
			RouteFilterFirst:    v.GetBool("query.route_filter_before_limit"),
			UnscopedBucket:      strings.ToLower(v.GetString("query.search_unscoped_bucket")),
			ContextMaxSnapshots: v.GetInt("query.context_max_snapshots"),
		},
		Feed: FeedConfig{
			BaseURL:   strings.TrimRight(v.GetString("feed.base_url"), "/"),
			Center:    geo.Point{Lat: v.GetFloat64("feed.center.lat"), Lon: v.GetFloat64("feed.center.lon")},
			RadiusNM:  v.GetFloat64("feed.radius_nm"),
			Endpoint:  strings.ToLower(v.GetString("feed.endpoint")),
			Interval:  v.GetDuration("feed.interval"),
			Duration:  v.GetDuration("feed.duration"),
			Timeout:   v.GetDuration("feed.timeout"),
			RateLimit: v.GetFloat64("feed.rate_limit"),
			OutDir:    v.GetString("feed.out_dir"),
			Ingest:    v.GetBool("feed.ingest"),
		},
		Ground: GroundConfig{
			Center:  geo.Point{Lat: v.GetFloat64("ground.center.lat"), Lon: v.GetFloat64("ground.center.lon")},
			RadiusM: v.GetFloat64("ground.radius_m"),
		},
		Import: ImportConfig{
			BatchSize: v.GetInt("import.batch_size"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate validates the configuration values
func validate(cfg *Config) error {
	switch cfg.DB.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("invalid db driver: %s (must be sqlite3 or postgres)", cfg.DB.Driver)
	}
	if cfg.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}

	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if cfg.Query.RouteWindow <= 0 {
		return fmt.Errorf("query.route_window must be greater than 0")
	}
	if cfg.Query.RouteMaxPoints <= 0 {
		return fmt.Errorf("query.route_max_points must be greater than 0")
	}
	if cfg.Query.SearchLimit <= 0 {
		return fmt.Errorf("query.search_limit must be greater than 0")
	}
	if cfg.Query.ContextMaxSnapshots <= 0 {
		return fmt.Errorf("query.context_max_snapshots must be greater than 0")
	}
	if cfg.Query.UnscopedBucket != "additional" && cfg.Query.UnscopedBucket != "current" {
		return fmt.Errorf("invalid query.search_unscoped_bucket: %s (must be additional or current)", cfg.Query.UnscopedBucket)
	}

	if cfg.Feed.RadiusNM <= 0 || cfg.Feed.RadiusNM > 250 {
		return fmt.Errorf("feed.radius_nm must be in (0, 250], got %g", cfg.Feed.RadiusNM)
	}
	if cfg.Feed.Endpoint != "latlon" && cfg.Feed.Endpoint != "point" {
		return fmt.Errorf("invalid feed.endpoint: %s (must be latlon or point)", cfg.Feed.Endpoint)
	}
	if cfg.Feed.Interval <= 0 {
		return fmt.Errorf("feed.interval must be greater than 0")
	}
	if cfg.Feed.RateLimit <= 0 {
		return fmt.Errorf("feed.rate_limit must be greater than 0")
	}
	if cfg.Feed.Duration < 0 {
		return fmt.Errorf("feed.duration must not be negative")
	}

	if cfg.Ground.RadiusM <= 0 {
		return fmt.Errorf("ground.radius_m must be greater than 0")
	}

	if cfg.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batch_size must be greater than 0")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[strings.ToLower(cfg.Log.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", cfg.Log.Format)
	}

	return nil
}

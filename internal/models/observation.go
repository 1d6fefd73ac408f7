package models

import "time"

// Observation is one sighting of one aircraft inside one snapshot (a snapshot_aircraft row).
// Every telemetry column is optional; the feed omits whatever the receiver did not decode.
type Observation struct {
	ID             int64    `db:"id"`
	SnapshotID     int64    `db:"snapshot_id"`
	Hex            string   `db:"aircraft_id"`
	AirlineID      *int64   `db:"airline_id"`
	Type           *string  `db:"type"`
	Flight         *string  `db:"flight"`
	Registration   *string  `db:"registration"`
	Model          *string  `db:"model"`
	AltBaroRaw     *string  `db:"alt_baro_raw"`
	AltBaroFt      *int64   `db:"alt_baro_ft"`
	AltGeomFt      *int64   `db:"alt_geom_ft"`
	GroundSpeedKts *float64 `db:"gs_kts"`
	TrackDeg       *float64 `db:"track_deg"`
	TrueHeadingDeg *float64 `db:"true_heading_deg"`
	BaroRateFpm    *int64   `db:"baro_rate_fpm"`
	GeomRateFpm    *int64   `db:"geom_rate_fpm"`
	Squawk         *string  `db:"squawk"`
	Emergency      *string  `db:"emergency"`
	Category       *string  `db:"category"`
	Lat            *float64 `db:"lat"`
	Lon            *float64 `db:"lon"`
	NIC            *int64   `db:"nic"`
	RC             *int64   `db:"rc"`
	Version        *int64   `db:"version"`
	NACp           *int64   `db:"nac_p"`
	NACv           *int64   `db:"nac_v"`
	SIL            *int64   `db:"sil"`
	SILType        *string  `db:"sil_type"`
	GVA            *int64   `db:"gva"`
	SDA            *int64   `db:"sda"`
	Alert          *bool    `db:"alert"`
	SPI            *bool    `db:"spi"`
	Messages       *int64   `db:"messages"`
	SeenSeconds    *float64 `db:"seen_seconds"`
	RSSI           *float64 `db:"rssi"`
	DstNM          *float64 `db:"dst_nm"`
	DirDeg         *float64 `db:"dir_deg"`
	NavQNHhPa      *float64 `db:"nav_qnh_hpa"`
	NavAltitudeMCP *int64   `db:"nav_altitude_mcp"`
	NavHeadingDeg  *float64 `db:"nav_heading_deg"`
	NavModes       *string  `db:"nav_modes"` // JSON array text
	MLAT           *string  `db:"mlat"`      // JSON array text
	TISB           *string  `db:"tisb"`      // JSON array text
}

// ObservationView is the read projection shared by snapshot lookup and search:
// an observation joined with its snapshot time and optional airline.
type ObservationView struct {
	ID              int64     `db:"id"`
	SnapshotID      int64     `db:"snapshot_id"`
	CapturedAt      time.Time `db:"captured_at"`
	Hex             string    `db:"aircraft_id"`
	Flight          *string   `db:"flight"`
	Model           *string   `db:"model"`
	Lat             *float64  `db:"lat"`
	Lon             *float64  `db:"lon"`
	GroundSpeedKts  *float64  `db:"gs_kts"`
	TrackDeg        *float64  `db:"track_deg"`
	TrueHeadingDeg  *float64  `db:"true_heading_deg"`
	NavHeadingDeg   *float64  `db:"nav_heading_deg"`
	AltBaroRaw      *string   `db:"alt_baro_raw"`
	AltBaroFt       *int64    `db:"alt_baro_ft"`
	AirlineICAO     *string   `db:"airline_icao_code"`
	AirlineCallsign *string   `db:"airline_callsign"`
	AirlineName     *string   `db:"airline_name"`
}

// Plottable reports whether both coordinates are present.
func (o *ObservationView) Plottable() bool {
	return o.Lat != nil && o.Lon != nil
}

// Altitude folds the dual altitude columns into a single value.
func (o *ObservationView) Altitude() Altitude {
	return Altitude{Raw: o.AltBaroRaw, Feet: o.AltBaroFt}
}

// Airline returns the joined airline, or nil when the observation is unlinked.
func (o *ObservationView) Airline() *AirlineRef {
	if o.AirlineICAO == nil {
		return nil
	}
	return &AirlineRef{
		ICAOCode: *o.AirlineICAO,
		Callsign: o.AirlineCallsign,
		Name:     o.AirlineName,
	}
}

// RoutePoint is one historical position of an aircraft, stamped with its snapshot time.
type RoutePoint struct {
	CapturedAt     time.Time `db:"captured_at"`
	Lat            *float64  `db:"lat"`
	Lon            *float64  `db:"lon"`
	TrackDeg       *float64  `db:"track_deg"`
	GroundSpeedKts *float64  `db:"gs_kts"`
	TrueHeadingDeg *float64  `db:"true_heading_deg"`
}

// Plottable reports whether both coordinates are present.
func (p *RoutePoint) Plottable() bool {
	return p.Lat != nil && p.Lon != nil
}

// RouteQuery selects the positions of one aircraft between Since and Until inclusive.
type RouteQuery struct {
	Hex   string
	Since time.Time
	Until time.Time
	Limit int
	// PlottableOnly restricts the selection to rows with both coordinates
	// before Limit is applied.
	PlottableOnly bool
}

// UnlinkedFlight is an observation that has a flight string but no airline link yet.
type UnlinkedFlight struct {
	ID     int64  `db:"id"`
	Flight string `db:"flight"`
}

// FlightRecord is one row of the unique-flight export.
type FlightRecord struct {
	Flight       string  `db:"flight"`
	Registration *string `db:"registration"`
	Model        *string `db:"model"`
}

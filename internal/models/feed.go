package models

import (
	"encoding/json"
	"time"
)

// FeedReport is an adsb.lol v2 response, optionally carrying the recorder's _meta block.
type FeedReport struct {
	Now      *float64       `json:"now"` // provider clock, milliseconds since epoch
	Total    *float64       `json:"total"`
	Message  *string        `json:"msg"`
	Aircraft []FeedAircraft `json:"ac"`
	Meta     *FeedMeta      `json:"_meta,omitempty"`
}

// FeedMeta is written by the recorder next to each response.
type FeedMeta struct {
	CapturedAt string     `json:"captured_at"`
	Center     *FeedPoint `json:"center,omitempty"`
	RadiusNM   *float64   `json:"radius_nm,omitempty"`
	Endpoint   *string    `json:"endpoint,omitempty"`
}

// FeedPoint is a latitude/longitude pair.
type FeedPoint struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// FeedAircraft is one entry of the "ac" array. Field names follow readsb's aircraft.json.
type FeedAircraft struct {
	Hex            string          `json:"hex"`
	Type           *string         `json:"type"`
	Flight         *string         `json:"flight"`
	Registration   *string         `json:"r"`
	Model          *string         `json:"t"`
	AltBaro        Altitude        `json:"alt_baro"`
	AltGeom        *float64        `json:"alt_geom"`
	GroundSpeed    *float64        `json:"gs"`
	Track          *float64        `json:"track"`
	TrueHeading    *float64        `json:"true_heading"`
	BaroRate       *float64        `json:"baro_rate"`
	GeomRate       *float64        `json:"geom_rate"`
	Squawk         *string         `json:"squawk"`
	Emergency      *string         `json:"emergency"`
	Category       *string         `json:"category"`
	NavQNH         *float64        `json:"nav_qnh"`
	NavAltitudeMCP *float64        `json:"nav_altitude_mcp"`
	NavHeading     *float64        `json:"nav_heading"`
	NavModes       []string        `json:"nav_modes"`
	Lat            *float64        `json:"lat"`
	Lon            *float64        `json:"lon"`
	NIC            *float64        `json:"nic"`
	RC             *float64        `json:"rc"`
	Version        *float64        `json:"version"`
	NACp           *float64        `json:"nac_p"`
	NACv           *float64        `json:"nac_v"`
	SIL            *float64        `json:"sil"`
	SILType        *string         `json:"sil_type"`
	GVA            *float64        `json:"gva"`
	SDA            *float64        `json:"sda"`
	Alert          *float64        `json:"alert"`
	SPI            *float64        `json:"spi"`
	MLAT           json.RawMessage `json:"mlat"`
	TISB           json.RawMessage `json:"tisb"`
	Messages       *float64        `json:"messages"`
	Seen           *float64        `json:"seen"`
	RSSI           *float64        `json:"rssi"`
	Dst            *float64        `json:"dst"`
	Dir            *float64        `json:"dir"`
}

// CapturedAt returns the capture instant: _meta.captured_at, then the provider
// clock, then fallback.
func (r *FeedReport) CapturedAt(fallback time.Time) time.Time {
	if r.Meta != nil && r.Meta.CapturedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, r.Meta.CapturedAt); err == nil {
			return t.UTC()
		}
	}
	if r.Now != nil {
		return time.UnixMilli(int64(*r.Now)).UTC()
	}
	return fallback.UTC()
}

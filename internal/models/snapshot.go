package models

import "time"

// Snapshot is one capture of every aircraft the feed reported at a moment.
// Rows are written once per imported capture file and never modified.
type Snapshot struct {
	ID            int64     `db:"id"`
	CapturedAt    time.Time `db:"captured_at"`
	CenterLat     *float64  `db:"center_lat"`
	CenterLon     *float64  `db:"center_lon"`
	RadiusNM      *float64  `db:"radius_nm"`
	Endpoint      *string   `db:"endpoint"`
	Total         *int64    `db:"total"`
	ProviderNowMs *int64    `db:"provider_now_ms"`
}

// SnapshotSummary is the part of a snapshot returned to map clients.
type SnapshotSummary struct {
	ID         int64     `db:"id"`
	CapturedAt time.Time `db:"captured_at"`
}

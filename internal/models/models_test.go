package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAltitude_Unmarshal(t *testing.T) {
	tests := []struct {
		in     string
		raw    *string
		feet   *int64
		ground bool
	}{
		{in: `"ground"`, raw: ptr("ground"), ground: true},
		{in: `3500.9`, raw: ptr("3500.9"), feet: ptr(int64(3500))},
		{in: `-75`, raw: ptr("-75"), feet: ptr(int64(-75))},
		{in: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var a Altitude
			require.NoError(t, json.Unmarshal([]byte(tt.in), &a))
			assert.Equal(t, tt.raw, a.Raw)
			assert.Equal(t, tt.feet, a.Feet)
			assert.Equal(t, tt.ground, a.IsGround())
		})
	}

	var a Altitude
	assert.Error(t, json.Unmarshal([]byte(`true`), &a))
}

func TestAltitude_Marshal(t *testing.T) {
	tests := []struct {
		name string
		alt  Altitude
		want string
	}{
		{"ground", Altitude{Raw: ptr("ground")}, `"ground"`},
		{"numeric raw", Altitude{Raw: ptr("3500"), Feet: ptr(int64(9))}, `3500`},
		{"feet only", Altitude{Feet: ptr(int64(1200))}, `1200`},
		{"absent", Altitude{}, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.alt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(b))
		})
	}
}

func TestFeedReport_CapturedAt(t *testing.T) {
	fallback := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	now := 1759944600000.0

	r := &FeedReport{Meta: &FeedMeta{CapturedAt: "2025-10-08T13:30:00.5-04:00"}, Now: &now}
	assert.Equal(t, time.Date(2025, 10, 8, 17, 30, 0, 5e8, time.UTC), r.CapturedAt(fallback))

	r = &FeedReport{Meta: &FeedMeta{CapturedAt: "garbage"}, Now: &now}
	assert.Equal(t, time.UnixMilli(1759944600000).UTC(), r.CapturedAt(fallback))

	assert.Equal(t, fallback, (&FeedReport{}).CapturedAt(fallback))
}

func TestObservationView_Airline(t *testing.T) {
	v := &ObservationView{}
	assert.Nil(t, v.Airline())
	assert.False(t, v.Plottable())

	v.AirlineICAO = ptr("UAL")
	v.AirlineCallsign = ptr("UNITED")
	v.Lat, v.Lon = ptr(1.0), ptr(2.0)
	assert.Equal(t, &AirlineRef{ICAOCode: "UAL", Callsign: ptr("UNITED")}, v.Airline())
	assert.True(t, v.Plottable())
}

func ptr[T any](v T) *T { return &v }

package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var ewr = Point{Lat: 40.6895, Lon: -74.1745}

func TestHaversine(t *testing.T) {
	assert.Zero(t, Haversine(ewr.Lat, ewr.Lon, ewr.Lat, ewr.Lon))

	// EWR to JFK is roughly 34 km
	jfk := Point{Lat: 40.6413, Lon: -73.7781}
	assert.InDelta(t, 33900, ewr.Distance(jfk), 500)
}

func TestGroundFence(t *testing.T) {
	fence := GroundFence{Center: ewr, RadiusM: 3218.68}

	assert.False(t, fence.Excludes(true, 40.6900, -74.1750), "on field")
	assert.True(t, fence.Excludes(true, 40.6413, -73.7781), "ground at another airport")
	assert.False(t, fence.Excludes(false, 40.6413, -73.7781), "airborne is never excluded")
}

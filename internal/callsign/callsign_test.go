package callsign

import (
	"testing"

	"flight_replay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDefaultTable(t *testing.T) {
	table := Default()
	require.NotNil(t, table)

	e, ok := table.Lookup("ual")
	require.True(t, ok)
	assert.Equal(t, "UNITED", e.Callsign)
	assert.Equal(t, "United Airlines", e.Name)

	_, ok = table.Lookup("ZZZ")
	assert.False(t, ok)

	codes := table.Codes()
	assert.Contains(t, codes, "BAW")
	assert.IsIncreasing(t, codes)
}

func TestICAOFromFlight(t *testing.T) {
	tests := []struct {
		flight string
		want   string
	}{
		{"UAL123", "UAL"},
		{"  dal45  ", "DAL"},
		{"BA2490", "BA"},
		{"N12345", ""},
		{"ABCD12", ""},
		{"UAL", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.flight, func(t *testing.T) {
			assert.Equal(t, tt.want, ICAOFromFlight(tt.flight))
		})
	}
}

func TestPronounce(t *testing.T) {
	table := Default()

	tests := []struct {
		name    string
		flight  string
		airline *models.AirlineRef
		want    string
	}{
		{name: "empty", flight: "  ", want: "Unknown"},
		{name: "mapped operator", flight: "UAL123", want: "UNITED one two three"},
		{name: "tail number", flight: "N12AB", want: "November 1 2 Alpha Bravo"},
		{name: "operator starting with N", flight: "NKS704", want: "SPIRIT seven zero four"},
		{
			name:    "airline callsign from store",
			flight:  "QQQ9",
			airline: &models.AirlineRef{ICAOCode: "QQQ", Callsign: strPtr("QUEUE")},
			want:    "QUEUE nine",
		},
		{name: "unknown operator spelled", flight: "QQ10", want: "Quebec Quebec one zero"},
		{name: "free text", flight: "GROUND1A", want: "GROUND1A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Pronounce(tt.flight, tt.airline))
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load([]byte("airlines: [unterminated"))
	assert.Error(t, err)
}

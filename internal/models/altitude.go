package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AltitudeGround is the sentinel the feed reports instead of a barometric altitude
// for aircraft on the surface.
const AltitudeGround = "ground"

// Altitude holds the raw barometric altitude (as text) and the derived feet value.
// The raw form wins when both are present.
type Altitude struct {
	Raw  *string
	Feet *int64
}

// IsGround reports whether the raw altitude is the surface sentinel.
func (a Altitude) IsGround() bool {
	return a.Raw != nil && *a.Raw == AltitudeGround
}

// MarshalJSON emits the raw value (a JSON number when it is numeric text,
// otherwise a string), then the feet value, then null.
func (a Altitude) MarshalJSON() ([]byte, error) {
	if a.Raw != nil {
		raw := strings.TrimSpace(*a.Raw)
		if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
		}
		return json.Marshal(*a.Raw)
	}
	if a.Feet != nil {
		return []byte(strconv.FormatInt(*a.Feet, 10)), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts the feed's alt_baro value: a number, a string such as
// "ground", or null.
func (a *Altitude) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Altitude{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("alt_baro: %w", err)
		}
		*a = Altitude{Raw: &s}
		return nil
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("alt_baro: unsupported value %s", data)
	}
	raw := strconv.FormatFloat(f, 'f', -1, 64)
	ft := int64(math.Trunc(f))
	*a = Altitude{Raw: &raw, Feet: &ft}
	return nil
}

package models

// Airline is reference data keyed by the three-letter ICAO operator code.
type Airline struct {
	ID       int64   `db:"id"`
	ICAOCode string  `db:"icao_code"`
	Callsign *string `db:"callsign"`  // Radiotelephony designator (e.g., SPEEDBIRD)
	Name     *string `db:"name"`      // Display name (e.g., British Airways)
	IATACode *string `db:"iata_code"` // Two-character IATA code
}

// AirlineRef is the airline block attached to an aircraft in API responses.
type AirlineRef struct {
	ICAOCode string  `json:"icaoCode"`
	Callsign *string `json:"callsign"`
	Name     *string `json:"name"`
}

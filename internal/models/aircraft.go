package models

// Aircraft is the airframe master record, keyed by the 24-bit ICAO hex address.
// Registration and model carry the most recent non-null values seen by an import.
type Aircraft struct {
	Hex          string  `db:"id"`           // Primary key - 6 hex digit ICAO address
	Registration *string `db:"registration"` // Aircraft registration (e.g., N12345)
	Model        *string `db:"model"`        // ICAO type designator (e.g., B738)
}

package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
)

// ExportFlights writes a flight,registration,model CSV with one row per
// distinct flight, sorted by flight. It returns the number of data rows.
func (im *Importer) ExportFlights(ctx context.Context, w io.Writer) (int, error) {
	records, err := im.store.Observations().DistinctFlights(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"flight", "registration", "model"}); err != nil {
		return 0, err
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Flight, deref(r.Registration), deref(r.Model)}); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to write export: %w", err)
	}
	return len(records), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the date format accepted in query parameters, request
// bodies and CLI flags.
const DateLayout = "2006-01-02"

// DateRange is an inclusive date filter. Zero fields are open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange reads optional YYYY-MM-DD start and end dates. The end
// date covers its whole day.
func ParseDateRange(start, end string) (DateRange, error) {
	var dr DateRange
	if v := strings.TrimSpace(start); v != "" {
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: start date %q is not YYYY-MM-DD", ErrInvalidDateRange, v)
		}
		dr.Start = t
	}
	if v := strings.TrimSpace(end); v != "" {
		t, err := time.Parse(DateLayout, v)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: end date %q is not YYYY-MM-DD", ErrInvalidDateRange, v)
		}
		dr.End = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !dr.Start.IsZero() && !dr.End.IsZero() && dr.End.Before(dr.Start) {
		return DateRange{}, fmt.Errorf("%w: start date after end date", ErrInvalidDateRange)
	}
	return dr, nil
}

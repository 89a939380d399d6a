package timeseries

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the default date format.
const DateLayout = "2006-01-02"

// DateRange is an inclusive date interval; a zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses "start,end" where either side may be empty.
// A value without a comma is a start date.
func ParseDateRange(s string) (DateRange, error) {
	start, end, _ := strings.Cut(s, ",")
	var r DateRange
	var err error
	if start = strings.TrimSpace(start); start != "" {
		if r.Start, err = time.Parse(DateLayout, start); err != nil {
			return DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
		}
	}
	if end = strings.TrimSpace(end); end != "" {
		if r.End, err = time.Parse(DateLayout, end); err != nil {
			return DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
		}
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("date range end %s is before start %s", end, start)
	}
	return r, nil
}

// IsZero reports whether the range is unbounded on both sides.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether d is within the range.
func (r DateRange) Contains(d time.Time) bool {
	if !r.Start.IsZero() && d.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && d.After(r.End) {
		return false
	}
	return true
}

func (r DateRange) String() string {
	var start, end string
	if !r.Start.IsZero() {
		start = r.Start.Format(DateLayout)
	}
	if !r.End.IsZero() {
		end = r.End.Format(DateLayout)
	}
	return start + "," + end
}

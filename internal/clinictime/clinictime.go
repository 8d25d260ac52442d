// Package clinictime converts between patient-facing local times and the
// absolute instants stored on bookings. The clinic operates in one fixed
// IANA zone; every local-day computation goes through it so that slot
// comparisons never drift across UTC date boundaries.
package clinictime

import (
	"fmt"
	"regexp"
	"time"
)

const dateLayout = "2006-01-02"

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Zone wraps the clinic's fixed time zone.
type Zone struct {
	loc *time.Location
}

// LoadZone resolves an IANA zone name, e.g. "Europe/Warsaw".
func LoadZone(name string) (*Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("clinictime: load zone %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

// MustZone is LoadZone that panics; intended for tests and fixed defaults.
func MustZone(name string) *Zone {
	z, err := LoadZone(name)
	if err != nil {
		panic(err)
	}
	return z
}

// DayWindow returns the absolute [start, end) window covering the local
// calendar day. The end bound is local midnight of the next day, so DST
// transition days yield 23- or 25-hour windows rather than a fixed 24h span.
func (z *Zone) DayWindow(date string) (time.Time, time.Time, error) {
	if !dateRe.MatchString(date) {
		return time.Time{}, time.Time{}, fmt.Errorf("clinictime: invalid date %q", date)
	}
	start, err := time.ParseInLocation(dateLayout, date, z.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("clinictime: parse date %q: %w", date, err)
	}
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}

// ClockTime formats an absolute instant as the local "HH:MM" slot label.
func (z *Zone) ClockTime(t time.Time) string {
	return t.In(z.loc).Format("15:04")
}

// LocalDate formats an absolute instant as the local YYYY-MM-DD day.
func (z *Zone) LocalDate(t time.Time) string {
	return t.In(z.loc).Format(dateLayout)
}

// SameLocalDay reports whether the instant falls on the given local day.
func (z *Zone) SameLocalDay(t time.Time, date string) bool {
	return z.LocalDate(t) == date
}

// Location exposes the underlying *time.Location for display formatting.
func (z *Zone) Location() *time.Location {
	return z.loc
}

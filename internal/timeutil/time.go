package timeutil

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	SheetLayout = "2006-01-02 15:04:05"

	day = 24 * time.Hour
)

var dateTimeLayouts = []string{
	SheetLayout,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
}

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
	"3PM",
}

var dateLayouts = []string{
	DateLayout,
	"1/2/2006",
	"2006/01/02",
	"Jan 2, 2006",
}

func FromMS(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// NightID is the local calendar date of ms.
func NightID(ms int64, loc *time.Location) string {
	return FromMS(ms).In(loc).Format(DateLayout)
}

func FormatLocal(ms int64, loc *time.Location) string {
	return FromMS(ms).In(loc).Format(SheetLayout)
}

// ParseLocal parses a date-time written in loc's wall clock. Offsets embedded
// in the text (RFC 3339) win over loc.
func ParseLocal(txt string, loc *time.Location) (int64, error) {
	txt = strings.TrimSpace(txt)
	if txt == "" {
		return 0, fmt.Errorf("empty time")
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, txt, loc); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized date-time %q", txt)
}

// ParseDate normalizes a date (or date-time) to YYYY-MM-DD.
func ParseDate(txt string, loc *time.Location) (string, error) {
	txt = strings.TrimSpace(txt)
	if txt == "" {
		return "", fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, txt, loc); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	if ms, err := ParseLocal(txt, loc); err == nil {
		return NightID(ms, loc), nil
	}
	return "", fmt.Errorf("unrecognized date %q", txt)
}

// ResolveAfter converts txt to epoch ms relative to refMS. A full date-time
// is taken as is. A bare clock time is placed on refMS's local date and moved
// forward in 12 hour steps until it is on or after refMS, so "8:50" entered
// for an evening raid resolves to 20:50. Results more than a day after refMS
// are rejected.
func ResolveAfter(txt string, refMS int64, loc *time.Location) (int64, error) {
	txt = strings.TrimSpace(txt)
	if txt == "" {
		return 0, fmt.Errorf("empty time")
	}

	var t time.Time
	if ms, err := ParseLocal(txt, loc); err == nil {
		t = FromMS(ms)
	} else {
		clock, err := parseClock(txt)
		if err != nil {
			return 0, err
		}
		ref := FromMS(refMS).In(loc)
		t = time.Date(ref.Year(), ref.Month(), ref.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
	}

	ref := FromMS(refMS)
	for t.Before(ref) {
		t = t.Add(12 * time.Hour)
		if t.Sub(ref) > day {
			return 0, fmt.Errorf("time %q is more than a day after reference", txt)
		}
	}
	if t.Sub(ref) > day {
		return 0, fmt.Errorf("time %q is more than a day after reference", txt)
	}
	return t.UnixMilli(), nil
}

func parseClock(txt string) (time.Time, error) {
	upper := strings.ToUpper(txt)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, upper); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", txt)
}

// ClockOffset parses "HH:MM" into an offset from local midnight.
func ClockOffset(txt string) (time.Duration, error) {
	t, err := parseClock(strings.TrimSpace(txt))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
}

// AtClock returns the epoch ms of the wall clock time offset past local
// midnight on date (YYYY-MM-DD).
func AtClock(date string, offset time.Duration, loc *time.Location) (int64, error) {
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", date, err)
	}
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	s := int((offset % time.Minute) / time.Second)
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, s, 0, loc).UnixMilli(), nil
}

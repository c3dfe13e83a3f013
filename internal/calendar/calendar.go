// Package calendar holds the civil date and wall-clock types used for
// doctor availability and appointment slots.
package calendar

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	ErrInvalidDate      = errors.New("date must be formatted as YYYY-MM-DD")
	ErrInvalidTime      = errors.New("time must be formatted as HH:MM")
	ErrInvalidRange     = errors.New("time range start must be before end")
	ErrInvalidWeekday   = errors.New("unknown weekday")
	ErrOverlappingRange = errors.New("time ranges overlap")
)

const dateLayout = "2006-01-02"

// Date is a calendar day without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

// At returns the instant at which tod occurs on d in loc.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, tod.Hour(), tod.Minute(), 0, 0, loc)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time with minute precision, stored as minutes
// after midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, ErrInvalidTime
	}
	return TimeOfDay(hour*60 + minute), nil
}

// ParseTimeOfDay accepts HH:MM and HH:MM:SS (seconds must be zero).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	var h, m, sec int
	switch len(s) {
	case 5:
		if _, err := fmt.Sscanf(s, "%02d:%02d", &h, &m); err != nil {
			return 0, ErrInvalidTime
		}
	case 8:
		if _, err := fmt.Sscanf(s, "%02d:%02d:%02d", &h, &m, &sec); err != nil || sec != 0 {
			return 0, ErrInvalidTime
		}
	default:
		return 0, ErrInvalidTime
	}
	return NewTimeOfDay(h, m)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeRange is a half-open interval [Start, End) within a day.
type TimeRange struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// ParseTimeRange parses "09:00-12:30".
func ParseTimeRange(s string) (TimeRange, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return TimeRange{}, fmt.Errorf("%q: %w", s, ErrInvalidTime)
	}
	start, err := ParseTimeOfDay(parts[0])
	if err != nil {
		return TimeRange{}, err
	}
	end, err := ParseTimeOfDay(parts[1])
	if err != nil {
		return TimeRange{}, err
	}
	r := TimeRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return TimeRange{}, err
	}
	return r, nil
}

func (r TimeRange) Validate() error {
	if r.Start >= r.End {
		return ErrInvalidRange
	}
	return nil
}

func (r TimeRange) Contains(t TimeOfDay) bool {
	return t >= r.Start && t < r.End
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// NormalizeRanges validates each range, sorts them by start and rejects overlaps.
func NormalizeRanges(in []TimeRange) ([]TimeRange, error) {
	out := make([]TimeRange, len(in))
	copy(out, in)
	for _, r := range out {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", r, err)
		}
	}
	slices.SortFunc(out, func(a, b TimeRange) int { return cmp.Compare(a.Start, b.Start) })
	for i := 1; i < len(out); i++ {
		if out[i].Start < out[i-1].End {
			return nil, fmt.Errorf("%s and %s: %w", out[i-1], out[i], ErrOverlappingRange)
		}
	}
	return out, nil
}

// ParseWeekday accepts full or three letter English names, case-insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if key == name || key == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidWeekday)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

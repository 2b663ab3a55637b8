package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const MinutesPerDay = 24 * 60

// HHMM is a time of day in minutes since midnight.
type HHMM int

// Off is the "00:00" value used for both ends of a disabled timeslot.
const Off HHMM = 0

func ParseHHMM(s string) (HHMM, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return HHMM(h*60 + m), nil
}

func MustParseHHMM(s string) HHMM {
	t, err := ParseHHMM(s)
	if err != nil {
		panic(err)
	}
	return t
}

func HHMMOf(t time.Time) HHMM {
	return HHMM(t.Hour()*60 + t.Minute())
}

func (t HHMM) normalize() HHMM {
	m := int(t) % MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return HHMM(m)
}

func (t HHMM) Hour() int {
	return int(t.normalize()) / 60
}

func (t HHMM) Minute() int {
	return int(t.normalize()) % 60
}

func (t HHMM) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Add shifts the time by a signed number of minutes, wrapping at midnight.
func (t HHMM) Add(minutes int) HHMM {
	return (t + HHMM(minutes)).normalize()
}

// DiffTo returns the minutes from t forward to other, wrapping across
// midnight when other is earlier in the day.
func (t HHMM) DiffTo(other HHMM) int {
	d := int(other.normalize()) - int(t.normalize())
	if d < 0 {
		d += MinutesPerDay
	}
	return d
}

// TimeAdjust adds signed minutes to the time of day of t, wrapping at 24h.
// Seconds and nanoseconds are kept.
func TimeAdjust(t time.Time, minutes int) time.Time {
	adjusted := HHMMOf(t).Add(minutes)
	return time.Date(t.Year(), t.Month(), t.Day(), adjusted.Hour(), adjusted.Minute(),
		t.Second(), t.Nanosecond(), t.Location())
}

// TimeDiff returns the non negative minutes from t1 to t2 within a day.
func TimeDiff(t1, t2 time.Time) int {
	return HHMMOf(t1).DiffTo(HHMMOf(t2))
}

// IncrementHHMM adds minutes to an "HH:MM" string.
func IncrementHHMM(hhmm string, minutes int) (string, error) {
	t, err := ParseHHMM(hhmm)
	if err != nil {
		return "", err
	}
	if minutes == 0 {
		return t.String(), nil
	}
	return t.Add(minutes).String(), nil
}

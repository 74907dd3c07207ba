package availability

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/doctor-booking/internal/slot"
)

type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays is ordered the way schedules are presented, monday first.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var (
	ErrUnknownWeekday  = errors.New("unknown weekday")
	ErrInvalidSchedule = errors.New("invalid weekly availability")
)

var byTimeWeekday = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

func WeekdayOf(t time.Time) Weekday {
	return byTimeWeekday[t.Weekday()]
}

func ParseWeekday(s string) (Weekday, error) {
	wd := Weekday(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Weekdays {
		if wd == known {
			return wd, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWeekday, s)
}

// Window is a doctor-declared span of a weekday, bounds in 12-hour clock form.
type Window struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// bounds converts the window into minute offsets. An end of 12:00 AM closes the day.
func (w Window) bounds() (start, end int) {
	start = slot.Offset(w.StartTime)
	end = slot.Offset(w.EndTime)
	if end == 0 {
		end = slot.DayMinutes
	}
	return start, end
}

func (w Window) contains(offset int) bool {
	start, end := w.bounds()
	return offset >= start && offset < end
}

type DaySchedule struct {
	Available bool     `json:"available"`
	TimeSlots []Window `json:"timeSlots"`
}

// Covers reports whether a slot starting at offset lies inside any window.
func (d DaySchedule) Covers(offset int) bool {
	if !d.Available {
		return false
	}
	for _, w := range d.TimeSlots {
		if w.contains(offset) {
			return true
		}
	}
	return false
}

func (d DaySchedule) open() bool {
	return d.Available && len(d.TimeSlots) > 0
}

// WeeklyAvailability is embedded in a doctor record.
type WeeklyAvailability map[Weekday]DaySchedule

func (w *WeeklyAvailability) UnmarshalJSON(data []byte) error {
	var raw map[string]DaySchedule
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(WeeklyAvailability, len(raw))
	for key, day := range raw {
		wd, err := ParseWeekday(key)
		if err != nil {
			return err
		}
		out[wd] = day
	}
	*w = out
	return nil
}

// Decode reads a stored weekly schedule and validates it, so malformed bounds are
// reported rather than read leniently. Empty input is an empty schedule.
func Decode(raw []byte) (WeeklyAvailability, error) {
	week := WeeklyAvailability{}
	if len(raw) == 0 {
		return week, nil
	}
	if err := json.Unmarshal(raw, &week); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if err := week.Validate(); err != nil {
		return nil, err
	}
	return week, nil
}

// Validate rejects windows on closed days and windows whose bounds do not parse or are inverted.
func (w WeeklyAvailability) Validate() error {
	for wd, day := range w {
		if _, err := ParseWeekday(string(wd)); err != nil {
			return err
		}
		if !day.Available && len(day.TimeSlots) > 0 {
			return fmt.Errorf("%w: %s is unavailable but declares %d windows", ErrInvalidSchedule, wd, len(day.TimeSlots))
		}
		for i, win := range day.TimeSlots {
			if _, err := slot.ParseClock(win.StartTime); err != nil {
				return fmt.Errorf("%w: %s window %d start: %v", ErrInvalidSchedule, wd, i, err)
			}
			if _, err := slot.ParseClock(win.EndTime); err != nil {
				return fmt.Errorf("%w: %s window %d end: %v", ErrInvalidSchedule, wd, i, err)
			}
			if start, end := win.bounds(); end <= start {
				return fmt.Errorf("%w: %s window %d ends before it starts", ErrInvalidSchedule, wd, i)
			}
		}
	}
	return nil
}

// Day returns the schedule declared for the weekday of date.
func (w WeeklyAvailability) Day(date time.Time) (DaySchedule, bool) {
	day, ok := w[WeekdayOf(date)]
	return day, ok
}

// Slot is one quantized entry of a resolved day; never persisted.
type Slot struct {
	Time               string `json:"time"`
	StartOffsetMinutes int    `json:"startOffsetMinutes"`
	Available          bool   `json:"available"`
	Booked             bool   `json:"booked"`
}

// Interval is a half-open occupied range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// At returns the wall-clock instant offset minutes into date's day.
func At(date time.Time, offset int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, offset, 0, 0, date.Location())
}

// OffsetOf is the wall-clock minute offset of t within its own day.
func OffsetOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

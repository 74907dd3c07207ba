package availability

import (
	"time"

	"github.com/hackgods/doctor-booking/internal/slot"
)

// Resolve quantizes date into 15-minute slots against the doctor's weekly schedule.
//
// A closed or undeclared weekday resolves to an empty sequence. Otherwise every slot of
// the day is returned so callers can render out-of-hours and taken slots alike; a slot
// touched by an occupied interval is flagged booked and is never available.
func Resolve(week WeeklyAvailability, date time.Time, occupied []Interval) []Slot {
	day, ok := week.Day(date)
	if !ok || !day.open() {
		return []Slot{}
	}

	labels := slot.EnumerateDaySlots(slot.Step)
	slots := make([]Slot, 0, len(labels))
	for i, label := range labels {
		offset := i * slot.Step
		s := Slot{
			Time:               label,
			StartOffsetMinutes: offset,
			Available:          day.Covers(offset),
		}

		at := At(date, offset)
		for _, iv := range occupied {
			if iv.Contains(at) {
				s.Booked = true
				s.Available = false
				break
			}
		}
		slots = append(slots, s)
	}
	return slots
}

// AnyAvailable reports whether at least one resolved slot can still be booked.
func AnyAvailable(slots []Slot) bool {
	for _, s := range slots {
		if s.Available {
			return true
		}
	}
	return false
}

// CoversRange reports whether every slot in [start, end) falls inside a declared
// window of start's weekday. The range may end at the following midnight but not later.
func CoversRange(week WeeklyAvailability, start, end time.Time) bool {
	if !end.After(start) {
		return false
	}

	day, ok := week.Day(start)
	if !ok || !day.open() {
		return false
	}

	endOffset := OffsetOf(end)
	if !Midnight(end).Equal(Midnight(start)) {
		if !Midnight(end).Equal(Midnight(start).AddDate(0, 0, 1)) || endOffset != 0 {
			return false
		}
		endOffset = slot.DayMinutes
	}

	for offset := OffsetOf(start); offset < endOffset; offset += slot.Step {
		if !day.Covers(offset) {
			return false
		}
	}
	return true
}

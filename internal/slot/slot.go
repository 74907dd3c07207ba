package slot

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	// Step is the width of one bookable slot in minutes.
	Step = 15

	// DayMinutes is the number of minutes covered by a calendar day.
	DayMinutes = 24 * 60

	defaultClock = "09:00"
)

var ErrMalformedClock = errors.New("malformed 12-hour clock value")

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])$`)

// ParseClock converts an "h:mm AM/PM" string into minutes after midnight.
func ParseClock(clock12 string) (int, error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(clock12))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedClock, clock12)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedClock, clock12)
	}

	// 12 is midnight/noon and has to be zeroed before the PM shift.
	if hour == 12 {
		hour = 0
	}
	if strings.EqualFold(m[3], "PM") {
		hour += 12
	}

	return hour*60 + minute, nil
}

// To24Hour renders a 12-hour clock string as "HH:MM". Malformed input yields 09:00.
func To24Hour(clock12 string) string {
	offset, err := ParseClock(clock12)
	if err != nil {
		return defaultClock
	}
	return fmt.Sprintf("%02d:%02d", offset/60, offset%60)
}

// Offset returns the minute offset of To24Hour's result.
func Offset(clock12 string) int {
	hhmm := To24Hour(clock12)
	hour, _ := strconv.Atoi(hhmm[:2])
	minute, _ := strconv.Atoi(hhmm[3:])
	return hour*60 + minute
}

// Format renders a minute offset as a 12-hour label, e.g. 810 -> "01:30 PM".
func Format(offset int) string {
	offset = ((offset % DayMinutes) + DayMinutes) % DayMinutes

	hour, minute := offset/60, offset%60
	meridiem := "AM"
	if hour >= 12 {
		meridiem = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%02d:%02d %s", hour, minute, meridiem)
}

// EnumerateDaySlots lists the labels of every slot of a day, starting at midnight.
// A step that does not evenly divide the day falls back to Step.
func EnumerateDaySlots(step int) []string {
	if step <= 0 || DayMinutes%step != 0 {
		step = Step
	}

	labels := make([]string, 0, DayMinutes/step)
	for offset := 0; offset < DayMinutes; offset += step {
		labels = append(labels, Format(offset))
	}
	return labels
}

// Contiguous reports whether the offsets form one unbroken run, exactly step minutes apart.
// Order of the input does not matter; duplicates break the run.
func Contiguous(offsets []int, step int) bool {
	if len(offsets) == 0 || step <= 0 {
		return false
	}

	sorted := slices.Clone(offsets)
	slices.Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i]-sorted[i-1] != step {
			return false
		}
	}
	return true
}

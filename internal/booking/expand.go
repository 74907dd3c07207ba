package booking

import (
	"fmt"
	"time"

	"github.com/hackgods/doctor-booking/internal/availability"
	"github.com/hackgods/doctor-booking/internal/slot"
)

// MinHomeVisitBlocks is the shortest home visit a doctor may accept (30 minutes).
const MinHomeVisitBlocks = 2

// Range is the authoritative [Start, End) written on acceptance.
type Range struct {
	Start time.Time
	End   time.Time
}

// AcceptInput carries the doctor's chosen range. Either Slots, or Start and Blocks, may be
// set; with none of them the originally requested slot is accepted as is.
type AcceptInput struct {
	// Start is an RFC 3339 instant or a 12-hour clock time on the booking's date.
	Start  string
	Blocks int
	// Slots are 12-hour labels picked in the planner; they must form one contiguous run.
	Slots []string
}

// Expand widens b into blocks consecutive slots from start. A nil start keeps the
// requested slot start and zero blocks means one slot.
func Expand(b *Booking, start *time.Time, blocks int) (Range, error) {
	if blocks < 0 {
		return Range{}, fmt.Errorf("%w: acceptBlocks must be positive", ErrValidation)
	}
	if blocks == 0 {
		blocks = 1
	}
	if b.BookingType == BookingHomeVisit && blocks < MinHomeVisitBlocks {
		return Range{}, ErrHomeVisitTooShort
	}

	from := b.SlotStart
	if start != nil {
		from = *start
	}
	if from.Second() != 0 || from.Nanosecond() != 0 || availability.OffsetOf(from)%slot.Step != 0 {
		return Range{}, fmt.Errorf("%w: acceptStart must fall on a %d-minute boundary", ErrValidation, slot.Step)
	}

	end := from.Add(time.Duration(slot.Step*blocks) * time.Minute)
	if end.After(availability.Midnight(from).AddDate(0, 0, 1)) {
		return Range{}, fmt.Errorf("%w: accepted range must end on the day it starts", ErrValidation)
	}

	return Range{Start: from, End: end}, nil
}

// ExpandSlots accepts an explicit run of slot labels on the booking's date.
func ExpandSlots(b *Booking, labels []string) (Range, error) {
	offsets := make([]int, 0, len(labels))
	for _, label := range labels {
		offset, err := slot.ParseClock(label)
		if err != nil {
			return Range{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		offsets = append(offsets, offset)
	}
	if !slot.Contiguous(offsets, slot.Step) {
		return Range{}, fmt.Errorf("%w: selected slots must be contiguous %d-minute blocks", ErrValidation, slot.Step)
	}

	first := offsets[0]
	for _, o := range offsets[1:] {
		first = min(first, o)
	}
	start := availability.At(b.SlotStart, first)
	return Expand(b, &start, len(offsets))
}

// resolve turns the request into a range, parsing Start relative to the booking.
func (in AcceptInput) resolve(b *Booking) (Range, error) {
	if len(in.Slots) > 0 {
		if in.Start != "" || in.Blocks != 0 {
			return Range{}, fmt.Errorf("%w: acceptSlots cannot be combined with acceptStart or acceptBlocks", ErrValidation)
		}
		return ExpandSlots(b, in.Slots)
	}

	if in.Start == "" {
		return Expand(b, nil, in.Blocks)
	}

	var start time.Time
	if t, err := time.Parse(time.RFC3339, in.Start); err == nil {
		start = t.In(b.SlotStart.Location())
		if !availability.Midnight(start).Equal(availability.Midnight(b.SlotStart)) {
			return Range{}, fmt.Errorf("%w: acceptStart must fall on the booking's date", ErrValidation)
		}
	} else {
		offset, err := slot.ParseClock(in.Start)
		if err != nil {
			return Range{}, fmt.Errorf("%w: acceptStart must be RFC 3339 or h:mm AM/PM", ErrValidation)
		}
		start = availability.At(b.SlotStart, offset)
	}
	return Expand(b, &start, in.Blocks)
}

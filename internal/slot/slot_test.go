package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTo24Hour(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12:00 AM", "00:00"},
		{"12:00 PM", "12:00"},
		{"01:30 PM", "13:30"},
		{"1:30 pm", "13:30"},
		{"9:45 AM", "09:45"},
		{"11:45 PM", "23:45"},
		{"12:15 AM", "00:15"},
		{" 10:00AM ", "10:00"},
		{"", "09:00"},
		{"25:00 PM", "09:00"},
		{"10:61 AM", "09:00"},
		{"13:00", "09:00"},
		{"noon", "09:00"},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, To24Hour(tc.in))
			assert.Equal(t, To24Hour(tc.in), To24Hour(tc.in), "must be deterministic")
		})
	}
}

func TestParseClockRejectsMalformed(t *testing.T) {
	_, err := ParseClock("0:30 AM")
	require.ErrorIs(t, err, ErrMalformedClock)

	_, err = ParseClock("10:00")
	require.ErrorIs(t, err, ErrMalformedClock)

	offset, err := ParseClock("12:30 PM")
	require.NoError(t, err)
	assert.Equal(t, 750, offset)
}

func TestOffsetAndFormatRoundTrip(t *testing.T) {
	for offset := 0; offset < DayMinutes; offset += Step {
		label := Format(offset)
		assert.Equal(t, offset, Offset(label), label)
	}
	assert.Equal(t, 9*60, Offset("garbage"))
}

func TestEnumerateDaySlots(t *testing.T) {
	labels := EnumerateDaySlots(Step)
	require.Len(t, labels, 96)
	assert.Equal(t, "12:00 AM", labels[0])
	assert.Equal(t, "12:15 AM", labels[1])
	assert.Equal(t, "12:00 PM", labels[48])
	assert.Equal(t, "11:45 PM", labels[95])

	assert.Equal(t, labels, EnumerateDaySlots(Step), "enumeration must be restartable")
	assert.Len(t, EnumerateDaySlots(30), 48)
	assert.Len(t, EnumerateDaySlots(7), 96, "non-divisor step falls back to 15 minutes")
	assert.Len(t, EnumerateDaySlots(0), 96)
}

func TestContiguous(t *testing.T) {
	assert.True(t, Contiguous([]int{600}, Step))
	assert.True(t, Contiguous([]int{600, 615, 630}, Step))
	assert.True(t, Contiguous([]int{630, 600, 615}, Step), "order does not matter")
	assert.False(t, Contiguous([]int{600, 630}, Step), "gap")
	assert.False(t, Contiguous([]int{600, 600}, Step), "duplicate")
	assert.False(t, Contiguous(nil, Step))
	assert.False(t, Contiguous([]int{600}, 0))
}

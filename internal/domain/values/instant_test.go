package values

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstant(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected time.Time
		wantOK   bool
	}{
		{
			name:     "RFC3339",
			raw:      "2025-11-20T13:31:01Z",
			expected: time.Date(2025, 11, 20, 13, 31, 1, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "12-hour with AM/PM",
			raw:      "11/20/2025 1:31:01 PM",
			expected: time.Date(2025, 11, 20, 13, 31, 1, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "partial ISO without offset",
			raw:      "2025-11-20T13:31:01",
			expected: time.Date(2025, 11, 20, 13, 31, 1, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "partial ISO with trailing fraction uses prefix",
			raw:      "2025-11-20T13:31:01.9413",
			expected: time.Date(2025, 11, 20, 13, 31, 1, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "bare date",
			raw:      "2025-11-20",
			expected: time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "US slash date",
			raw:      "11/20/2025",
			expected: time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:   "empty",
			raw:    "",
			wantOK: false,
		},
		{
			name:   "garbage",
			raw:    "not a date",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInstant(tt.raw)
			if !tt.wantOK {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestCalendarDayDiff(t *testing.T) {
	late := time.Date(2025, 11, 20, 23, 59, 0, 0, time.UTC)
	early := time.Date(2025, 11, 21, 0, 1, 0, 0, time.UTC)

	// two minutes apart across midnight still counts as one calendar day
	assert.Equal(t, 1, CalendarDayDiff(late, early))
	assert.Equal(t, 1, CalendarDayDiff(early, late))
	assert.Equal(t, 0, CalendarDayDiff(late, late))
	assert.Equal(t, 2, CalendarDayDiff(late, time.Date(2025, 11, 22, 1, 0, 0, 0, time.UTC)))
}

func TestTruncateToMinute(t *testing.T) {
	ts := time.Date(2025, 11, 20, 13, 36, 50, 123, time.UTC)
	assert.Equal(t, time.Date(2025, 11, 20, 13, 36, 0, 0, time.UTC), TruncateToMinute(ts))
}

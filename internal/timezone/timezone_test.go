package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		date  string
		clock string
		ok    bool
	}{
		{"MissingDate", "", "10:00", false},
		{"MissingTime", "2024-01-01", "", false},
		{"BlankBoth", "  ", " ", false},
		{"ISO", "2024-01-01", "10:00", true},
		{"WithSeconds", "2024-01-01", "10:00:00", true},
		{"DottedDate", "01.01.2024", "10:00", true},
		{"Meridiem", "2024-01-01", "10:00 AM", true},
		{"MeridiemCompact", "2024-01-01", "10:00AM", true},
		{"GarbageDate", "tomorrow", "10:00", false},
		{"GarbageTime", "2024-01-01", "25:99", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.date, tt.clock)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, want.Equal(got), "got %s", got)
				assert.Equal(t, time.UTC, got.Location())
			} else {
				assert.True(t, got.IsZero())
			}
		})
	}
}

func TestNormalizeIgnoresLocalClock(t *testing.T) {
	prev := time.Local
	t.Cleanup(func() { time.Local = prev })

	time.Local = time.FixedZone("UTC+5", 5*3600)
	a, ok := Normalize("2024-01-01", "10:00")
	require.True(t, ok)

	time.Local = time.FixedZone("UTC-8", -8*3600)
	b, ok := Normalize("2024-01-01", "10:00")
	require.True(t, ok)

	assert.True(t, a.Equal(b))
	assert.Equal(t, "2024-01-01T10:00:00Z", Format(a))
}

func TestFormatParse(t *testing.T) {
	in := time.Date(2024, 6, 1, 13, 30, 0, 0, time.FixedZone("UTC+3", 3*3600))
	s := Format(in)
	assert.Equal(t, "2024-06-01T10:30:00Z", s)

	out, err := Parse(s)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))

	_, err = Parse("01/06/2024")
	assert.Error(t, err)
}

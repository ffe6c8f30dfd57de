package day

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestKey_TableTests(t *testing.T) {
	kolkata := mustLoad(t, "Asia/Kolkata")

	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{
			name: "midnight",
			in:   time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			want: "2024-03-10",
		},
		{
			name: "last millisecond of the day",
			in:   time.Date(2024, 3, 10, 23, 59, 59, 999_000_000, time.UTC),
			want: "2024-03-10",
		},
		{
			name: "zero padded month and day",
			in:   time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
			want: "2024-01-05",
		},
		{
			name: "local zone decides the day",
			in:   time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC).In(kolkata),
			want: "2024-03-11",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.in))
		})
	}
}

func TestBounds(t *testing.T) {
	loc := mustLoad(t, "Asia/Kolkata")
	in := time.Date(2024, 6, 1, 10, 30, 0, 0, loc)

	start, end := Bounds(in)

	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, loc), start)
	assert.True(t, end.Before(time.Date(2024, 6, 2, 0, 0, 0, 0, loc)))
	assert.False(t, end.Before(time.Date(2024, 6, 1, 23, 59, 59, 999_000_000, loc)))
	assert.Equal(t, "2024-06-01", Key(end))
}

func TestBounds_AgreesWithKey(t *testing.T) {
	loc := time.UTC
	target := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)
	start, end := Bounds(target)

	tests := []struct {
		name   string
		ts     time.Time
		inside bool
	}{
		{"start of day", time.Date(2024, 3, 10, 0, 0, 0, 0, loc), true},
		{"end of day", time.Date(2024, 3, 10, 23, 59, 59, 999_000_000, loc), true},
		{"last nanosecond", time.Date(2024, 3, 10, 23, 59, 59, 999_999_999, loc), true},
		{"previous day", time.Date(2024, 3, 9, 23, 59, 59, 999_000_000, loc), false},
		{"next day", time.Date(2024, 3, 11, 0, 0, 0, 0, loc), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inRange := !tt.ts.Before(start) && !tt.ts.After(end)
			assert.Equal(t, tt.inside, inRange)
			assert.Equal(t, tt.inside, Key(tt.ts) == Key(target))
		})
	}
}

func TestAddDays_AcrossDST(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	// 2024-03-10 в Нью-Йорке длится 23 часа.
	before := time.Date(2024, 3, 9, 0, 0, 0, 0, ny)

	got := AddDays(before, 3)

	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, ny), got)
	assert.Equal(t, "2024-03-12", Key(got))
}

func TestAddDays_MonthRollover(t *testing.T) {
	got := AddDays(time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC), 3)
	assert.Equal(t, "2024-03-02", Key(got))
}

func TestStart(t *testing.T) {
	in := time.Date(2024, 6, 1, 17, 45, 12, 5, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Start(in))
}

func TestParseKey(t *testing.T) {
	loc := mustLoad(t, "Asia/Kolkata")

	got, err := ParseKey("2024-06-01", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, loc), got)

	_, err = ParseKey("01-06-2024", loc)
	assert.Error(t, err)
}

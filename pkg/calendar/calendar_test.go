package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/vetsynth/pkg/randx"
)

func newJO(t *testing.T) *Calendar {
	t.Helper()
	c, err := New("jo", []time.Weekday{time.Friday}, []time.Time{Date(2023, 4, 21)})
	require.NoError(t, err)
	return c
}

func TestUnsupportedCountry(t *testing.T) {
	_, err := New("XX", nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedCountry)
}

func TestEveryDayOff(t *testing.T) {
	week := []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	_, err := New("FR", week, nil)
	assert.ErrorIs(t, err, ErrNoWorkingDays)

	_, err = New("FR", week[1:], nil)
	assert.NoError(t, err)
}

func TestWorkingDay(t *testing.T) {
	c := newJO(t)
	assert.False(t, c.IsWorkingDay(Date(2023, 5, 25)), "independence day")
	assert.False(t, c.IsWorkingDay(Date(2023, 1, 6)), "friday")
	assert.False(t, c.IsWorkingDay(Date(2023, 4, 21)), "extra holiday")
	assert.True(t, c.IsWorkingDay(Date(2023, 1, 7)), "saturday")
}

func TestUSHolidays(t *testing.T) {
	c, err := New("US", []time.Weekday{time.Sunday}, nil)
	require.NoError(t, err)
	assert.True(t, c.IsHoliday(Date(2024, 7, 4)))
	assert.False(t, c.IsHoliday(Date(2024, 7, 5)))
}

func TestShiftMovesToFollowingWeek(t *testing.T) {
	c := newJO(t)
	r := randx.New(1)
	friday := Date(2023, 1, 6)
	for range 50 {
		d := c.Shift(r, friday)
		assert.True(t, c.IsWorkingDay(d))
		assert.False(t, d.Before(Date(2023, 1, 9)))
		assert.False(t, d.After(Date(2023, 1, 15)))
	}
	monday := Date(2023, 1, 9)
	assert.Equal(t, monday, c.Shift(r, monday))
}

func TestPreviousWorkingDay(t *testing.T) {
	c := newJO(t)
	assert.Equal(t, Date(2023, 1, 5), c.PreviousWorkingDay(Date(2023, 1, 6)))
}

func TestMonthHelpers(t *testing.T) {
	d := Date(2024, 2, 14)
	assert.Equal(t, Date(2024, 2, 1), MonthStart(d))
	assert.Equal(t, Date(2024, 2, 29), MonthEnd(d))
	months := MonthsBetween(Date(2023, 11, 20), Date(2024, 2, 3))
	assert.Equal(t, []time.Time{Date(2023, 11, 1), Date(2023, 12, 1), Date(2024, 1, 1), Date(2024, 2, 1)}, months)
}

func TestWeekNumber(t *testing.T) {
	// 2023-01-04 is a Wednesday; the preceding Saturday is 2022-12-31.
	anchor := WeekAnchor(Date(2023, 1, 4), time.Saturday)
	assert.Equal(t, Date(2022, 12, 31), anchor)
	assert.Equal(t, 1, WeekNumber(anchor, Date(2023, 1, 6)))
	assert.Equal(t, 2, WeekNumber(anchor, Date(2023, 1, 7)))
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("friday")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, d)
	_, err = ParseWeekday("funday")
	assert.Error(t, err)
}

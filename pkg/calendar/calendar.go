// Package calendar answers working-day questions for the clinic: weekly
// days off, public holidays by country, month and week arithmetic.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/us"

	"github.com/TFMV/vetsynth/pkg/randx"
)

// ErrUnsupportedCountry is returned for a country code without a holiday table.
var ErrUnsupportedCountry = errors.New("calendar: unsupported country")

// ErrNoWorkingDays is returned when every weekday is a day off.
var ErrNoWorkingDays = errors.New("calendar: no working weekday")

// Jordan has no package in rickar/cal; only its fixed-date public holidays
// are listed. Lunar holidays are supplied through extra dates.
var joHolidays = []*cal.Holiday{
	{Name: "New Year's Day", Type: cal.ObservancePublic, Month: time.January, Day: 1, Func: cal.CalcDayOfMonth},
	{Name: "Labour Day", Type: cal.ObservancePublic, Month: time.May, Day: 1, Func: cal.CalcDayOfMonth},
	{Name: "Independence Day", Type: cal.ObservancePublic, Month: time.May, Day: 25, Func: cal.CalcDayOfMonth},
	{Name: "Christmas Day", Type: cal.ObservancePublic, Month: time.December, Day: 25, Func: cal.CalcDayOfMonth},
}

var countries = map[string][]*cal.Holiday{
	"JO": joHolidays,
	"US": us.Holidays,
	"GB": gb.Holidays,
	"FR": fr.Holidays,
	"DE": de.Holidays,
}

// Date builds a UTC midnight date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the time of day from t.
func Truncate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// Days returns the number of whole days from a to b.
func Days(a, b time.Time) int {
	return int(Truncate(b).Sub(Truncate(a)).Hours() / 24)
}

// Calendar is the clinic's working calendar.
type Calendar struct {
	bc      *cal.BusinessCalendar
	daysOff map[time.Weekday]bool
	extra   map[time.Time]bool
}

// New builds a calendar for country with the given weekly days off and
// additional holiday dates.
func New(country string, daysOff []time.Weekday, extra []time.Time) (*Calendar, error) {
	hs, ok := countries[strings.ToUpper(country)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCountry, country)
	}
	bc := cal.NewBusinessCalendar()
	bc.AddHoliday(hs...)

	c := &Calendar{bc: bc, daysOff: map[time.Weekday]bool{}, extra: map[time.Time]bool{}}
	for _, d := range daysOff {
		c.daysOff[d] = true
	}
	if len(c.daysOff) >= 7 {
		return nil, ErrNoWorkingDays
	}
	for _, d := range extra {
		c.extra[Truncate(d)] = true
	}
	return c, nil
}

// ParseWeekday maps an English weekday name to time.Weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("calendar: unknown weekday %q", name)
}

// IsHoliday reports whether d is a public or extra holiday.
func (c *Calendar) IsHoliday(d time.Time) bool {
	if c.extra[Truncate(d)] {
		return true
	}
	actual, observed, _ := c.bc.IsHoliday(d)
	return actual || observed
}

// IsDayOff reports whether d falls on a weekly day off.
func (c *Calendar) IsDayOff(d time.Time) bool {
	return c.daysOff[d.Weekday()]
}

// IsWorkingDay reports whether the clinic is open on d.
func (c *Calendar) IsWorkingDay(d time.Time) bool {
	return !c.IsDayOff(d) && !c.IsHoliday(d)
}

// WorkingDays lists the working days in [from, to].
func (c *Calendar) WorkingDays(from, to time.Time) []time.Time {
	var out []time.Time
	for d := Truncate(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		if c.IsWorkingDay(d) {
			out = append(out, d)
		}
	}
	return out
}

// Shift returns d unchanged when it is a working day. Otherwise it moves to
// the following week (Monday to Sunday) and picks one of its working days
// uniformly, repeating until a working day is found.
func (c *Calendar) Shift(r *randx.Rand, d time.Time) time.Time {
	d = Truncate(d)
	for !c.IsWorkingDay(d) {
		monday := d.AddDate(0, 0, daysToNextMonday(d))
		days := c.WorkingDays(monday, monday.AddDate(0, 0, 6))
		if len(days) == 0 {
			d = monday
			continue
		}
		d = randx.Choice(r, days)
	}
	return d
}

// PreviousWorkingDay returns the latest working day on or before d.
func (c *Calendar) PreviousWorkingDay(d time.Time) time.Time {
	d = Truncate(d)
	for !c.IsWorkingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func daysToNextMonday(d time.Time) int {
	n := (8 - int(d.Weekday())) % 7
	if n == 0 {
		n = 7
	}
	return n
}

// MonthStart returns the first day of d's month.
func MonthStart(d time.Time) time.Time {
	return Date(d.Year(), d.Month(), 1)
}

// MonthEnd returns the last day of d's month.
func MonthEnd(d time.Time) time.Time {
	return MonthStart(d).AddDate(0, 1, -1)
}

// MonthsBetween lists the month starts from from's month to to's month.
func MonthsBetween(from, to time.Time) []time.Time {
	var out []time.Time
	for m := MonthStart(from); !m.After(to); m = m.AddDate(0, 1, 0) {
		out = append(out, m)
	}
	return out
}

// WeekAnchor moves d back to the closest weekStart on or before it.
func WeekAnchor(d time.Time, weekStart time.Weekday) time.Time {
	back := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return Truncate(d).AddDate(0, 0, -back)
}

// WeekNumber returns the 1-based week index of d counted from anchor.
func WeekNumber(anchor, d time.Time) int {
	return Days(anchor, d)/7 + 1
}

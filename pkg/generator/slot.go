package generator

import (
	"cmp"
	"context"
	"slices"

	"github.com/TFMV/vetsynth/pkg/calendar"
	"github.com/TFMV/vetsynth/pkg/idalloc"
	"github.com/TFMV/vetsynth/pkg/model"
)

// slots expands each contract month into hourly slots on working days.
// The first max_monthly_hours slots of the month that fit under the daily
// cap are regular; the rest are overtime.
func (g *Generator) slots(_ context.Context, b *Build) error {
	doctors := make(map[int]model.Doctor, len(b.Clean.Doctors))
	for _, d := range b.Clean.Doctors {
		doctors[d.ID] = d
	}
	sc := g.cfg.Slots
	dailyMax := g.cfg.Staffing.DailyMaxWorkedHours

	var out []model.Slot
	for _, h := range b.Clean.DoctorHistory {
		d := doctors[h.DoctorID]
		from := maxDate(h.PeriodStartDate, d.StartDate)
		to := minDate(h.PeriodEndDate, g.last)
		if d.EndDate != nil {
			to = minDate(to, *d.EndDate)
		}
		budget := h.MaxMonthlyHours
		for _, day := range g.cal.WorkingDays(from, to) {
			worked := 0
			for hour := sc.StartHour; hour < sc.EndHour; hour++ {
				kind := model.SlotOvertime
				if budget > 0 && worked < dailyMax {
					kind = model.SlotRegular
					budget--
					worked++
				}
				out = append(out, model.Slot{DoctorID: d.ID, Date: day, Hour: hour, Type: kind})
			}
		}
	}

	slices.SortFunc(out, func(x, y model.Slot) int {
		return cmp.Or(x.Date.Compare(y.Date), cmp.Compare(x.Hour, y.Hour), cmp.Compare(x.DoctorID, y.DoctorID))
	})
	if len(out) > 0 {
		anchor := calendar.WeekAnchor(out[0].Date, g.weekStart)
		for i := range out {
			out[i].Week = calendar.WeekNumber(anchor, out[i].Date)
		}
	}
	b.Clean.Slots = out
	return idalloc.Assign(b.Clean.Slots, g.offset(model.RelSlot), func(s *model.Slot, id int) { s.ID = id })
}

package generator

import (
	"cmp"
	"context"
	"math"
	"slices"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/TFMV/vetsynth/pkg/calendar"
	"github.com/TFMV/vetsynth/pkg/idalloc"
	"github.com/TFMV/vetsynth/pkg/model"
	"github.com/TFMV/vetsynth/pkg/randx"
)

// Demand categories. Surgeries are staffed by surgeons, everything else by
// generalists.
const (
	categorySurgery = "surgery"
	categoryOther   = "other"
)

var categorySpecialty = map[string]string{
	categorySurgery: model.SpecialtySurgeon,
	categoryOther:   model.SpecialtyGeneralist,
}

// monthlyCapacity is the hours one doctor works in an average month.
func (g *Generator) monthlyCapacity() float64 {
	s := g.cfg.Staffing
	return float64(s.DailyMaxWorkedHours*s.WeeklyWorkingDays*(52-s.HolidayWeeks)) / 12
}

// computeDemand sums appointment hours per month and category between the
// first and last appointment.
func (g *Generator) computeDemand(b *Build) {
	appts := b.Clean.Appointments
	b.months = calendar.MonthsBetween(appts[0].Date, appts[len(appts)-1].Date)
	b.demand = map[string][]int{
		categorySurgery: make([]int, len(b.months)),
		categoryOther:   make([]int, len(b.months)),
	}
	first := b.months[0]
	for _, a := range appts {
		m := (a.Date.Year()-first.Year())*12 + int(a.Date.Month()-first.Month())
		if a.Reason == model.ReasonSurgery {
			b.demand[categorySurgery][m] += g.cfg.Staffing.SurgeryDuration
		} else {
			b.demand[categoryOther][m] += g.cfg.Staffing.RegularDuration
		}
	}
}

// headcount sizes a team from its monthly demand. total covers the peak
// month plus turnover over the activity window; baseline covers the given
// percentile month and is the number of doctors always employed.
func headcount(hours []int, capacity, monthlyTurnover, percentile float64) (total, baseline int) {
	if len(hours) == 0 || lo.Max(hours) == 0 {
		return 0, 0
	}
	peak := int(math.Ceil(float64(lo.Max(hours)) / capacity))
	total = peak + int(math.Ceil(float64(peak)*float64(len(hours))*monthlyTurnover))

	sorted := lo.Map(hours, func(h int, _ int) float64 { return float64(h) })
	slices.Sort(sorted)
	q := stat.Quantile(percentile/100, stat.LinInterp, sorted, nil)
	baseline = max(1, int(math.Ceil(q/capacity)))
	return max(total, baseline), baseline
}

type doctorRow struct {
	model.Doctor
	tmp int
}

// doctors sizes each team, draws profiles and working periods, and keys
// doctors by start date.
func (g *Generator) doctors(_ context.Context, b *Build) error {
	r := g.rand("doctors")
	faker := gofakeit.New(r.Uint64())
	g.computeDemand(b)

	s := g.cfg.Staffing
	first := b.Clean.Appointments[0].Date
	var rows []doctorRow
	for _, cat := range []string{categorySurgery, categoryOther} {
		total, baseline := headcount(b.demand[cat], g.monthlyCapacity(), s.YearlyTurnover/12, s.BaselinePercentile)
		g.log.Sugar().Infow("Team sized", "specialty", categorySpecialty[cat], "total", total, "baseline", baseline)

		starts := g.startDates(r, total, baseline, first)
		ends := g.endDates(r, starts, baseline)
		for i := range total {
			rows = append(rows, doctorRow{
				tmp: len(rows),
				Doctor: model.Doctor{
					FirstName:     faker.FirstName(),
					LastName:      faker.LastName(),
					Specialty:     categorySpecialty[cat],
					LicenseNumber: r.AlphaNum(10),
					StartDate:     starts[i],
					EndDate:       ends[i],
				},
			})
		}
	}

	slices.SortFunc(rows, func(x, y doctorRow) int {
		return cmp.Or(x.StartDate.Compare(y.StartDate), cmp.Compare(x.Specialty, y.Specialty), cmp.Compare(x.tmp, y.tmp))
	})
	b.Clean.Doctors = lo.Map(rows, func(d doctorRow, _ int) model.Doctor { return d.Doctor })
	return idalloc.Assign(b.Clean.Doctors, g.offset(model.RelDoctor), func(d *model.Doctor, id int) { d.ID = id })
}

// startDates gives the first baseline doctors the opening day and spreads
// the others, sorted, from one contract length after it to the last date.
func (g *Generator) startDates(r *randx.Rand, total, baseline int, first time.Time) []time.Time {
	starts := make([]time.Time, total)
	from := first.AddDate(0, 0, g.cfg.Staffing.MinContractDays)
	if from.After(g.last) {
		from = first
	}
	for i := range starts {
		if i < baseline {
			starts[i] = first
		} else {
			starts[i] = r.DateBetween(from, g.last)
		}
	}
	slices.SortFunc(starts, func(x, y time.Time) int { return x.Compare(y) })
	return starts
}

// endDates ends doctor i shortly after doctor i+baseline starts, so the
// team never falls under baseline, then makes sure exactly baseline doctors
// are still employed.
func (g *Generator) endDates(r *randx.Rand, starts []time.Time, baseline int) []*time.Time {
	ends := make([]*time.Time, len(starts))
	overlap := g.cfg.Staffing.MaxOverlapDays
	for i := range starts {
		j := i + baseline
		if j >= len(starts) {
			continue
		}
		end := r.DateBetween(starts[j], minDate(starts[j].AddDate(0, 0, overlap), g.last))
		ends[i] = &end
	}

	open := lo.Filter(lo.Range(len(starts)), func(i int, _ int) bool { return ends[i] == nil })
	for len(open) > baseline {
		i := open[0]
		end := r.DateBetween(minDate(starts[i].AddDate(0, 0, g.cfg.Staffing.MinContractDays), g.last), g.last)
		ends[i] = &end
		open = open[1:]
	}
	return ends
}

// doctorHistorization splits each month's demand between the doctors
// employed that month, recording any hours nobody could take.
func (g *Generator) doctorHistorization(_ context.Context, b *Build) error {
	r := g.rand("doctor_historization")
	s := g.cfg.Staffing

	var rows []model.DoctorHistorization
	for _, cat := range []string{categorySurgery, categoryOther} {
		team := lo.Filter(b.Clean.Doctors, func(d model.Doctor, _ int) bool {
			return d.Specialty == categorySpecialty[cat]
		})
		for mi, month := range b.months {
			demand := b.demand[cat][mi]
			end := calendar.MonthEnd(month)
			avail := lo.Filter(team, func(d model.Doctor, _ int) bool {
				return !d.StartDate.After(end) && (d.EndDate == nil || !d.EndDate.Before(month))
			})

			hours, unmet := allocateHours(r, demand, len(avail), s.CapacityTiers, s.MaxMonthlyHours)
			if unmet > 0 {
				b.Clean.Unmet = append(b.Clean.Unmet, model.UnmetHours{Month: month, Category: cat, Hours: unmet})
			}
			for i, d := range avail {
				if hours[i] == 0 {
					continue
				}
				rows = append(rows, model.DoctorHistorization{
					DoctorID:        d.ID,
					FirstName:       d.FirstName,
					LastName:        d.LastName,
					Specialty:       d.Specialty,
					LicenseNumber:   d.LicenseNumber,
					PeriodStartDate: month,
					PeriodEndDate:   end,
					MaxMonthlyHours: hours[i],
				})
			}
		}
	}

	slices.SortFunc(rows, func(x, y model.DoctorHistorization) int {
		return cmp.Or(x.PeriodStartDate.Compare(y.PeriodStartDate), cmp.Compare(x.DoctorID, y.DoctorID))
	})
	if err := idalloc.Assign(rows, g.offset(model.RelDoctorHistorization), func(h *model.DoctorHistorization, id int) { h.ID = id }); err != nil {
		return err
	}
	b.Clean.DoctorHistory = rows

	if len(rows) == 0 {
		return nil
	}
	latest := rows[len(rows)-1].PeriodStartDate
	byID := make(map[int]int, len(b.Clean.Doctors))
	for i, d := range b.Clean.Doctors {
		byID[d.ID] = i
	}
	for _, h := range rows {
		if !h.PeriodStartDate.Equal(latest) {
			continue
		}
		d := &b.Clean.Doctors[byID[h.DoctorID]]
		start, end, hours := h.PeriodStartDate, h.PeriodEndDate, h.MaxMonthlyHours
		d.PeriodStartDate, d.PeriodEndDate, d.MaxMonthlyHours = &start, &end, &hours
	}
	return nil
}

// allocateHours gives n doctors a random capacity tier each and shares
// demand in proportion to capacity. Doctors with the fewest hours are then
// raised toward maxHours until demand is covered. It returns the hours per
// doctor and the demand left uncovered.
func allocateHours(r *randx.Rand, demand, n int, tiers []int, maxHours int) ([]int, int) {
	hours := make([]int, n)
	if n == 0 {
		return hours, demand
	}
	caps := make([]int, n)
	for i := range caps {
		caps[i] = randx.Choice(r, tiers)
	}
	totalCap := lo.Sum(caps)

	remaining := demand
	for i := range hours {
		if remaining <= 0 {
			break
		}
		hours[i] = min(caps[i], int(float64(caps[i])/float64(totalCap)*float64(demand)), remaining)
		remaining -= hours[i]
	}

	order := lo.Range(n)
	slices.SortStableFunc(order, func(x, y int) int { return cmp.Compare(hours[x], hours[y]) })
	for _, i := range order {
		if remaining <= 0 {
			break
		}
		add := min(remaining, maxHours-hours[i])
		hours[i] += add
		remaining -= add
	}
	return hours, max(remaining, 0)
}

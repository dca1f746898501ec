package generator

import (
	"cmp"
	"context"
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/TFMV/vetsynth/pkg/calendar"
	"github.com/TFMV/vetsynth/pkg/idalloc"
	"github.com/TFMV/vetsynth/pkg/model"
	"github.com/TFMV/vetsynth/pkg/randx"
)

// appointments schedules every animal's visits, then assigns the final keys
// of animals, microchips and appointments, all ordered by visit dates.
func (g *Generator) appointments(_ context.Context, b *Build) error {
	r := g.rand("appointments")

	counts := g.appointmentCounts(r, b)
	g.firstAppointments(r, b, counts)
	g.followingAppointments(r, b, counts)

	return g.assignVisitOrderedIDs(b)
}

// appointmentCounts draws a visit budget per animal from the years it can
// be seen at the clinic: randrange(2*years), at least one.
func (g *Generator) appointmentCounts(r *randx.Rand, b *Build) []int {
	counts := make([]int, len(b.animals))
	for i, a := range b.animals {
		start := maxDate(a.dob, g.opening)
		end := minDate(a.dob.AddDate(g.cfg.LifeExpectancyYears, 0, 0), g.last)
		years := float64(calendar.Days(start, end)) / 365.25
		n := 1
		if span := int(2 * years); span > 0 {
			n = r.Below(span)
		}
		counts[i] = max(n, 1)
	}
	return counts
}

func (g *Generator) firstAppointments(r *randx.Rand, b *Build, counts []int) {
	var before, after []int
	for i, c := range b.chips {
		if c.implant.Before(g.opening) {
			before = append(before, i)
		} else {
			after = append(after, i)
		}
	}

	b.byAnimal = make([][]int, len(b.animals))
	b.appts = make([]apptRow, 0, lo.Sum(counts))

	assign := func(animals []int, dist map[string]float64) {
		reasons, weights := randx.Weights(dist)
		drawn := randx.AssignExact(r, reasons, weights, len(animals))
		for k, i := range animals {
			implant := b.chips[i].implant
			var date time.Time
			if drawn[k] == model.ReasonInitialVisit {
				date = implant
			} else {
				from := maxDate(implant, g.opening)
				step := max(1, calendar.Days(from, g.last)/counts[i])
				date = from.AddDate(0, 0, r.Below(step))
			}
			date = g.cal.Shift(r, date)
			if date.After(g.last) {
				date = g.lastWorking
			}
			b.byAnimal[i] = append(b.byAnimal[i], len(b.appts))
			b.appts = append(b.appts, apptRow{animal: i, reason: drawn[k], date: date})
		}
	}
	assign(before, g.cfg.FirstReasonBeforeOpening)
	assign(after, g.cfg.FirstReasonAfterOpening)
}

// followingAppointments adds visits rank by rank across all animals, so the
// follow-up share and the reason mix apply to each rank as a whole. A visit
// that would land after the last date ends the animal's history.
func (g *Generator) followingAppointments(r *randx.Rand, b *Build, counts []int) {
	reasons, weights := randx.Weights(g.cfg.NonFollowUpReasons)
	done := make([]bool, len(b.animals))

	for rank := 1; ; rank++ {
		var afterSurgery, afterIllness, other []int
		for i, c := range counts {
			if done[i] || c <= rank {
				continue
			}
			switch b.appts[lastOf(b, i)].reason {
			case model.ReasonSurgery:
				afterSurgery = append(afterSurgery, i)
			case model.ReasonSickPet, model.ReasonInjuredPet:
				afterIllness = append(afterIllness, i)
			default:
				other = append(other, i)
			}
		}
		if len(afterSurgery)+len(afterIllness)+len(other) == 0 {
			return
		}

		nFollow := int(math.RoundToEven(g.cfg.PercFollowUp * float64(len(afterIllness))))
		followUp := randx.SampleDistinct(r, afterIllness, nFollow)
		other = append(other, lo.Without(afterIllness, followUp...)...)
		slices.Sort(other)
		drawn := randx.AssignExact(r, reasons, weights, len(other))

		add := func(i int, reason string, date time.Time) {
			date = g.cal.Shift(r, date)
			if date.After(g.last) {
				done[i] = true
				return
			}
			b.byAnimal[i] = append(b.byAnimal[i], len(b.appts))
			b.appts = append(b.appts, apptRow{animal: i, reason: reason, date: date})
		}

		for _, i := range afterSurgery {
			prev := b.appts[lastOf(b, i)].date
			window := min(15, calendar.Days(prev, g.last))
			add(i, model.ReasonFollowUpSurgery, prev.AddDate(0, 0, 3+r.Below(max(1, window-3))))
		}
		for _, i := range followUp {
			prev := b.appts[lastOf(b, i)].date
			add(i, model.ReasonFollowUp, prev.AddDate(0, 0, r.Between(7, 28)))
		}
		for k, i := range other {
			prev := b.appts[lastOf(b, i)].date
			remaining := counts[i] - rank
			step := max(1, calendar.Days(prev, g.last)/max(remaining, 1))
			add(i, drawn[k], prev.AddDate(0, 0, 1+r.Below(step)))
		}
	}
}

func lastOf(b *Build, animal int) int {
	visits := b.byAnimal[animal]
	return visits[len(visits)-1]
}

// assignVisitOrderedIDs keys appointments by (date, creation order) and
// animals and microchips by (first visit date, creation order).
func (g *Generator) assignVisitOrderedIDs(b *Build) error {
	order := make([]int, len(b.appts))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		return b.appts[x].date.Compare(b.appts[y].date)
	})
	ids, err := idalloc.Sequence(len(order), g.offset(model.RelAppointment))
	if err != nil {
		return err
	}
	for k, i := range order {
		b.appts[i].id = ids[k]
	}

	animals := make([]int, len(b.animals))
	for i := range animals {
		animals[i] = i
	}
	firstVisit := func(i int) time.Time { return b.appts[b.byAnimal[i][0]].date }
	slices.SortStableFunc(animals, func(x, y int) int {
		return cmp.Or(firstVisit(x).Compare(firstVisit(y)), cmp.Compare(x, y))
	})
	animalIDs, err := idalloc.Sequence(len(animals), g.offset(model.RelAnimal))
	if err != nil {
		return err
	}
	chipIDs, err := idalloc.Sequence(len(animals), g.offset(model.RelMicrochip))
	if err != nil {
		return err
	}
	for k, i := range animals {
		b.animals[i].id = animalIDs[k]
		b.chips[i].id = chipIDs[k]
	}
	b.animalOrder = animals

	b.Clean.Animals = make([]model.Animal, len(animals))
	b.Clean.Microchips = make([]model.Microchip, len(animals))
	for k, i := range animals {
		a, c := b.animals[i], b.chips[i]
		b.Clean.Animals[k] = model.Animal{
			ID:          a.id,
			Species:     a.profile.Species,
			Breed:       a.profile.Breed,
			Name:        a.profile.Name,
			MicrochipID: c.id,
			Gender:      a.profile.Gender,
			DOB:         a.dob,
			HashID:      a.hash,
		}
		b.Clean.Microchips[k] = model.Microchip{
			ID:          c.id,
			CodeID:      c.codeID,
			Number:      c.number,
			ImplantDate: c.implant,
			Location:    c.location,
		}
	}

	b.apptIndex = make(map[int]int, len(b.appts))
	b.Clean.Appointments = make([]model.Appointment, len(order))
	for k, i := range order {
		a := b.appts[i]
		b.apptIndex[a.id] = i
		b.Clean.Appointments[k] = model.Appointment{
			ID:       a.id,
			AnimalID: b.animals[a.animal].id,
			Reason:   a.reason,
			Date:     a.date,
		}
	}
	return nil
}

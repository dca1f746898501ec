package generator

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/TFMV/vetsynth/pkg/calendar"
	"github.com/TFMV/vetsynth/pkg/idalloc"
	"github.com/TFMV/vetsynth/pkg/model"
)

// slotQueue hands out free slots in preference order. Slots only ever
// become used, so the cursor never moves back.
type slotQueue struct {
	slots  []int
	cursor int
}

func (q *slotQueue) next(used []bool) (int, bool) {
	for q.cursor < len(q.slots) && used[q.slots[q.cursor]] {
		q.cursor++
	}
	if q.cursor == len(q.slots) {
		return 0, false
	}
	return q.slots[q.cursor], true
}

// week is the bookable inventory of one calendar week.
type week struct {
	triples  [][3]int
	surgeons slotQueue
	anyone   slotQueue
}

type pendingAppt struct {
	idx      int // index into Clean.Appointments
	deferred int
}

// appointmentSlots books every appointment into slots of its week.
// Surgeries go first and take three consecutive hours of one surgeon, then
// surgery follow-ups take a surgeon slot, then the rest take any slot.
// Unplaceable appointments roll to the following week a bounded number of
// times before being reported as unscheduled.
func (g *Generator) appointmentSlots(_ context.Context, b *Build) error {
	slots := b.Clean.Slots
	if len(slots) == 0 {
		b.Clean.Unscheduled = lo.Map(b.Clean.Appointments, func(a model.Appointment, _ int) int { return a.ID })
		g.log.Warn("No slots generated, every appointment is unscheduled")
		return nil
	}
	weeks := g.weekInventory(b)
	lastWeek := len(weeks) - 1
	anchor := calendar.WeekAnchor(slots[0].Date, g.weekStart)

	pending := make([][]pendingAppt, lastWeek+2)
	var unscheduled []int
	for i, a := range b.Clean.Appointments {
		w := max(1, calendar.WeekNumber(anchor, a.Date))
		if w > lastWeek {
			unscheduled = append(unscheduled, a.ID)
			continue
		}
		pending[w] = append(pending[w], pendingAppt{idx: i})
	}

	used := make([]bool, len(slots))
	var rows []model.AppointmentSlot
	book := func(appt int, slot ...int) {
		for _, s := range slot {
			used[s] = true
			rows = append(rows, model.AppointmentSlot{
				AppointmentID: b.Clean.Appointments[appt].ID,
				SlotID:        slots[s].ID,
			})
		}
	}

	for w := 1; w <= lastWeek; w++ {
		items := pending[w]
		slices.SortFunc(items, func(x, y pendingAppt) int { return cmp.Compare(x.idx, y.idx) })
		inv := weeks[w]
		var deferred []pendingAppt

		for _, phase := range []int{1, 2, 3} {
			for _, it := range items {
				reason := b.Clean.Appointments[it.idx].Reason
				if appointmentPhase(reason) != phase {
					continue
				}
				placed := false
				switch phase {
				case 1:
					for _, t := range inv.triples {
						if !used[t[0]] && !used[t[1]] && !used[t[2]] {
							book(it.idx, t[:]...)
							placed = true
							break
						}
					}
				case 2:
					if s, ok := inv.surgeons.next(used); ok {
						book(it.idx, s)
						placed = true
					}
				default:
					if s, ok := inv.anyone.next(used); ok {
						book(it.idx, s)
						placed = true
					}
				}
				if !placed {
					deferred = append(deferred, it)
				}
			}
		}

		for _, it := range deferred {
			it.deferred++
			if it.deferred > g.cfg.Slots.MaxDeferrals || w+1 > lastWeek {
				unscheduled = append(unscheduled, b.Clean.Appointments[it.idx].ID)
				continue
			}
			pending[w+1] = append(pending[w+1], it)
		}
	}

	slices.Sort(unscheduled)
	b.Clean.Unscheduled = unscheduled
	if len(unscheduled) > 0 {
		g.log.Sugar().Warnw("Appointments left unscheduled", "count", len(unscheduled))
	}

	slices.SortFunc(rows, func(x, y model.AppointmentSlot) int {
		return cmp.Or(cmp.Compare(x.SlotID, y.SlotID), cmp.Compare(x.AppointmentID, y.AppointmentID))
	})
	b.Clean.AppointmentSlots = rows
	return idalloc.Assign(b.Clean.AppointmentSlots, g.offset(model.RelAppointmentSlot),
		func(s *model.AppointmentSlot, id int) { s.ID = id })
}

func appointmentPhase(reason string) int {
	switch reason {
	case model.ReasonSurgery:
		return 1
	case model.ReasonFollowUpSurgery:
		return 2
	default:
		return 3
	}
}

// weekInventory indexes slots by week number. Regular slots come before
// overtime in every queue, and slot id order within each type.
func (g *Generator) weekInventory(b *Build) []week {
	slots := b.Clean.Slots
	surgeon := make(map[int]bool)
	for _, d := range b.Clean.Doctors {
		if d.Specialty == model.SpecialtySurgeon {
			surgeon[d.ID] = true
		}
	}

	lastWeek := slots[len(slots)-1].Week
	weeks := make([]week, lastWeek+1)
	type dayKey struct {
		doctor int
		date   time.Time
	}
	days := make(map[dayKey][]int)
	var dayOrder []dayKey

	for i, s := range slots {
		w := &weeks[s.Week]
		w.anyone.slots = append(w.anyone.slots, i)
		if surgeon[s.DoctorID] {
			w.surgeons.slots = append(w.surgeons.slots, i)
			k := dayKey{s.DoctorID, s.Date}
			if _, ok := days[k]; !ok {
				dayOrder = append(dayOrder, k)
			}
			days[k] = append(days[k], i)
		}
	}

	regularFirst := func(x, y int) int {
		return cmp.Or(cmp.Compare(typeRank(slots[x].Type), typeRank(slots[y].Type)), cmp.Compare(x, y))
	}
	for w := range weeks {
		slices.SortFunc(weeks[w].anyone.slots, regularFirst)
		slices.SortFunc(weeks[w].surgeons.slots, regularFirst)
	}

	// Triples partition each surgeon-day into consecutive hours.
	for _, k := range dayOrder {
		idx := days[k]
		slices.SortFunc(idx, func(x, y int) int { return cmp.Compare(slots[x].Hour, slots[y].Hour) })
		for i := 0; i+2 < len(idx); {
			a, m, z := idx[i], idx[i+1], idx[i+2]
			if slots[m].Hour == slots[a].Hour+1 && slots[z].Hour == slots[a].Hour+2 {
				w := slots[a].Week
				weeks[w].triples = append(weeks[w].triples, [3]int{a, m, z})
				i += 3
				continue
			}
			i++
		}
	}
	for w := range weeks {
		slices.SortFunc(weeks[w].triples, func(x, y [3]int) int {
			return cmp.Or(cmp.Compare(tripleRank(slots, x), tripleRank(slots, y)), cmp.Compare(x[0], y[0]))
		})
	}
	return weeks
}

func typeRank(t string) int {
	if t == model.SlotRegular {
		return 0
	}
	return 1
}

// tripleRank is 0 for an all-regular triple and 1 otherwise.
func tripleRank(slots []model.Slot, t [3]int) int {
	for _, i := range t {
		if slots[i].Type != model.SlotRegular {
			return 1
		}
	}
	return 0
}

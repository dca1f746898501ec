package generator

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/vetsynth/config"
	"github.com/TFMV/vetsynth/pkg/calendar"
	"github.com/TFMV/vetsynth/pkg/model"
	"github.com/TFMV/vetsynth/pkg/randx"
	"github.com/TFMV/vetsynth/pkg/refdata"
)

func testConfig(t *testing.T) (config.GenerationConfig, *refdata.Data) {
	t.Helper()
	ref, err := refdata.Embedded()
	require.NoError(t, err)
	cfg := config.Default().Generation
	cfg.NbAnimals = 300
	cfg.ClinicStartYear = 2015
	cfg.LastOperationDate = "2021-06-30"
	return cfg, ref
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.GenerationConfig, *refdata.Data)
		want   error
	}{
		{"empty base", func(_ *config.GenerationConfig, d *refdata.Data) { d.Animals = nil }, ErrEmptyBase},
		{"small population", func(c *config.GenerationConfig, _ *refdata.Data) { c.NbAnimals = 99 }, ErrPopulationTooSmall},
		{"early start", func(c *config.GenerationConfig, _ *refdata.Data) { c.ClinicStartYear = 1999 }, ErrInvalidStartYear},
		{"short window", func(c *config.GenerationConfig, _ *refdata.Data) { c.ClinicStartYear = 2018 }, ErrOperatingWindowTooShort},
		{"too many born before", func(c *config.GenerationConfig, _ *refdata.Data) { c.PropBornBeforeOpening = 0.5 }, ErrTooManyBornBefore},
		{"no working day", func(c *config.GenerationConfig, _ *refdata.Data) {
			c.Calendar.WeeklyDaysOff = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
		}, calendar.ErrNoWorkingDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, ref := testConfig(t)
			tt.modify(&cfg, ref)
			_, err := New(cfg, ref, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDatesOfBirth(t *testing.T) {
	cfg, ref := testConfig(t)
	cfg.NbAnimals = 100
	cfg.LastOperationDate = "2020-01-01"
	g, err := New(cfg, ref, nil)
	require.NoError(t, err)

	b := &Build{}
	require.NoError(t, g.animals(context.Background(), b))
	require.Len(t, b.animals, 100)

	opening := calendar.Date(2015, time.January, 1)
	before := lo.CountBy(b.animals, func(a animalRow) bool { return a.dob.Before(opening) })
	assert.Equal(t, 30, before)
	for _, a := range b.animals {
		assert.False(t, a.dob.Before(calendar.Date(2005, time.January, 1)), a.dob)
		assert.False(t, a.dob.After(calendar.Date(2020, time.January, 1)), a.dob)
		assert.NotEmpty(t, a.hash)
	}
}

func TestDatesOfBirthReachLastWorkingDay(t *testing.T) {
	cfg, ref := testConfig(t)
	cfg.LastOperationDate = "2020-01-01"
	g, err := New(cfg, ref, nil)
	require.NoError(t, err)

	dobs := g.datesOfBirth(randx.New(3), 5000)
	window := g.last.AddDate(0, 0, -2*cfg.DobMicrochipGapDays)
	late := lo.CountBy(dobs, func(d time.Time) bool { return d.After(window) })
	assert.Greater(t, late, 250, "births in the final %d days", 2*cfg.DobMicrochipGapDays)
	assert.False(t, lo.MaxBy(dobs, func(a, b time.Time) bool { return a.After(b) }).After(g.lastWorking))
}

func TestOwnerCounts(t *testing.T) {
	dist := map[int]float64{1: 0.6, 2: 0.25, 3: 0.1, 4: 0.05}
	households, owners := ownerCounts(dist, 0.3, 1000)
	assert.Equal(t, 600+125+33+12, households)
	assert.Equal(t, 1001, owners)
}

func TestHouseholds(t *testing.T) {
	dist := map[int]float64{1: 0.6, 2: 0.25, 3: 0.1, 4: 0.05}
	pool := lo.Range(1000)
	randx.Shuffle(randx.New(5), pool)

	groups := households(pool, dist, 2000)
	sizes := lo.CountValuesBy(groups, func(g []int) int { return len(g) })
	assert.Equal(t, map[int]int{1: 600, 2: 125, 3: 33, 4: 12}, sizes)

	members := lo.Flatten(groups)
	assert.Len(t, members, 997)
	assert.Len(t, lo.Uniq(members), 997, "an animal sits in two households")

	assert.Len(t, households(pool, dist, 10), 10)
}

func TestOwnersGiveEachAnimalOneHousehold(t *testing.T) {
	cfg, ref := testConfig(t)
	cfg.NbAnimals = 1000
	g, err := New(cfg, ref, nil)
	require.NoError(t, err)

	b := &Build{}
	require.NoError(t, g.RunStages(context.Background(), b, g.Stages()))

	groups, _ := ownerCounts(cfg.Owners.HouseholdDistribution, cfg.Owners.PropHouseholdSeveralOwner, 1000)
	require.Equal(t, 770, groups)

	primary := make([]int, 1000)
	for _, l := range b.links {
		if l.owner < groups {
			primary[l.animal]++
		}
	}
	for a, c := range primary {
		assert.Equal(t, 1, c, "animal %d", a)
	}
}

func TestHeadcount(t *testing.T) {
	hours := make([]int, 12)
	for i := range hours {
		hours[i] = 188
	}
	total, baseline := headcount(hours, 188, 0.125/12, 95)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, baseline)

	total, baseline = headcount(make([]int, 12), 188, 0.125/12, 95)
	assert.Zero(t, total)
	assert.Zero(t, baseline)
}

func TestAllocateHours(t *testing.T) {
	r := randx.New(1)
	tiers := []int{200, 175, 150}

	hours, unmet := allocateHours(r, 300, 3, tiers, 200)
	assert.Equal(t, 300, lo.Sum(hours))
	assert.Zero(t, unmet)

	hours, unmet = allocateHours(r, 1000, 3, tiers, 200)
	assert.Equal(t, []int{200, 200, 200}, hours)
	assert.Equal(t, 400, unmet)

	hours, unmet = allocateHours(r, 50, 0, tiers, 200)
	assert.Empty(t, hours)
	assert.Equal(t, 50, unmet)
}

func runClean(t *testing.T) (*model.Clean, *Generator) {
	t.Helper()
	cfg, ref := testConfig(t)
	g, err := New(cfg, ref, nil)
	require.NoError(t, err)
	clean, err := g.Run(context.Background())
	require.NoError(t, err)
	return clean, g
}

func TestRunIsDeterministic(t *testing.T) {
	a, _ := runClean(t)
	b, _ := runClean(t)
	assert.Equal(t, a, b)
}

func TestRunKeysAreContiguous(t *testing.T) {
	clean, _ := runClean(t)
	check := func(name string, ids []int, start int) {
		for i, id := range ids {
			if !assert.Equal(t, start+i, id, name) {
				return
			}
		}
	}
	check("animal", lo.Map(clean.Animals, func(a model.Animal, _ int) int { return a.ID }), 47)
	check("microchip", lo.Map(clean.Microchips, func(m model.Microchip, _ int) int { return m.ID }), 34)
	check("appointment", lo.Map(clean.Appointments, func(a model.Appointment, _ int) int { return a.ID }), 23)
	check("owner", lo.Map(clean.Owners, func(o model.Owner, _ int) int { return o.ID }), 85)
	check("appointment_slot", lo.Map(clean.AppointmentSlots, func(s model.AppointmentSlot, _ int) int { return s.ID }), 17)
	check("slot", lo.Map(clean.Slots, func(s model.Slot, _ int) int { return s.ID }), 1)
	check("doctor", lo.Map(clean.Doctors, func(d model.Doctor, _ int) int { return d.ID }), 1)
}

func TestRunForeignKeysResolve(t *testing.T) {
	clean, _ := runClean(t)
	ids := func(n int, id func(int) int) map[int]bool {
		m := make(map[int]bool, n)
		for i := range n {
			m[id(i)] = true
		}
		return m
	}
	animals := ids(len(clean.Animals), func(i int) int { return clean.Animals[i].ID })
	chips := ids(len(clean.Microchips), func(i int) int { return clean.Microchips[i].ID })
	codes := ids(len(clean.MicrochipCodes), func(i int) int { return clean.MicrochipCodes[i].ID })
	owners := ids(len(clean.Owners), func(i int) int { return clean.Owners[i].ID })
	appts := ids(len(clean.Appointments), func(i int) int { return clean.Appointments[i].ID })
	services := ids(len(clean.Services), func(i int) int { return clean.Services[i].ID })
	doctors := ids(len(clean.Doctors), func(i int) int { return clean.Doctors[i].ID })
	slots := ids(len(clean.Slots), func(i int) int { return clean.Slots[i].ID })

	for _, a := range clean.Animals {
		assert.True(t, chips[a.MicrochipID])
	}
	for _, m := range clean.Microchips {
		assert.True(t, codes[m.CodeID])
	}
	for _, a := range clean.Appointments {
		assert.True(t, animals[a.AnimalID])
		assert.True(t, owners[a.OwnerID])
	}
	for _, ao := range clean.AnimalOwners {
		assert.True(t, chips[ao.MicrochipID])
		assert.True(t, owners[ao.OwnerID])
	}
	for _, w := range clean.AnimalWeights {
		assert.True(t, animals[w.AnimalID])
		assert.True(t, appts[w.AppointmentID])
	}
	for _, s := range clean.AppointmentServices {
		assert.True(t, appts[s.AppointmentID])
		assert.True(t, services[s.ServiceID])
	}
	for _, h := range clean.DoctorHistory {
		assert.True(t, doctors[h.DoctorID])
	}
	for _, s := range clean.Slots {
		assert.True(t, doctors[s.DoctorID])
	}
	for _, as := range clean.AppointmentSlots {
		assert.True(t, appts[as.AppointmentID])
		assert.True(t, slots[as.SlotID])
	}
}

func TestRunAppointmentDates(t *testing.T) {
	clean, g := runClean(t)
	implant := make(map[int]time.Time)
	for _, m := range clean.Microchips {
		implant[m.ID] = m.ImplantDate
	}
	chipOf := make(map[int]int)
	for _, a := range clean.Animals {
		chipOf[a.ID] = a.MicrochipID
	}
	last := calendar.Date(2021, time.June, 30)
	for _, a := range clean.Appointments {
		assert.False(t, a.Date.After(last), a.Date)
		assert.False(t, a.Date.Before(implant[chipOf[a.AnimalID]]), a.Date)
		assert.True(t, g.Calendar().IsWorkingDay(a.Date), a.Date)
	}
}

func TestMicrochipCodeOnMarket(t *testing.T) {
	clean, _ := runClean(t)
	codes := lo.KeyBy(clean.MicrochipCodes, func(c model.MicrochipCode) int { return c.ID })
	for _, m := range clean.Microchips {
		c := codes[m.CodeID]
		if c.MarketYear != nil {
			assert.LessOrEqual(t, *c.MarketYear, m.ImplantDate.Year())
		}
	}
}

func TestFirstWeightWithinBreedRange(t *testing.T) {
	clean, g := runClean(t)
	animals := lo.KeyBy(clean.Animals, func(a model.Animal) int { return a.ID })
	seen := make(map[int]bool)
	for _, w := range clean.AnimalWeights {
		if seen[w.AnimalID] {
			continue
		}
		seen[w.AnimalID] = true
		a := animals[w.AnimalID]
		rng := g.ref.BreedWeights[a.Breed]
		low, high := rng.FemaleMin, rng.FemaleMax
		if a.Gender == model.GenderMale {
			low, high = rng.MaleMin, rng.MaleMax
		}
		assert.GreaterOrEqual(t, w.Weight, low-0.01, a.Breed)
		assert.LessOrEqual(t, w.Weight, high+0.01, a.Breed)
	}
	assert.Len(t, seen, len(clean.Animals))
}

func TestSlotsNeverDoubleBooked(t *testing.T) {
	clean, _ := runClean(t)
	used := make(map[int]bool)
	for _, as := range clean.AppointmentSlots {
		assert.False(t, used[as.SlotID], "slot %d booked twice", as.SlotID)
		used[as.SlotID] = true
	}
}

func TestSurgeriesTakeThreeConsecutiveSurgeonHours(t *testing.T) {
	clean, _ := runClean(t)
	slots := lo.KeyBy(clean.Slots, func(s model.Slot) int { return s.ID })
	doctors := lo.KeyBy(clean.Doctors, func(d model.Doctor) int { return d.ID })
	byAppt := lo.GroupBy(clean.AppointmentSlots, func(as model.AppointmentSlot) int { return as.AppointmentID })
	unscheduled := lo.SliceToMap(clean.Unscheduled, func(id int) (int, bool) { return id, true })

	for _, a := range clean.Appointments {
		booked := byAppt[a.ID]
		if unscheduled[a.ID] {
			assert.Empty(t, booked)
			continue
		}
		if a.Reason != model.ReasonSurgery {
			assert.Len(t, booked, 1, "appointment %d", a.ID)
			continue
		}
		require.Len(t, booked, 3, "surgery %d", a.ID)
		hours := make([]int, 0, 3)
		first := slots[booked[0].SlotID]
		for _, as := range booked {
			s := slots[as.SlotID]
			assert.Equal(t, first.DoctorID, s.DoctorID)
			assert.True(t, first.Date.Equal(s.Date))
			assert.Equal(t, model.SpecialtySurgeon, doctors[s.DoctorID].Specialty)
			hours = append(hours, s.Hour)
		}
		start := lo.Min(hours)
		assert.ElementsMatch(t, []int{start, start + 1, start + 2}, hours)
	}
}

func TestEveryAnimalHasAnOwner(t *testing.T) {
	clean, _ := runClean(t)
	owned := lo.SliceToMap(clean.AnimalOwners, func(ao model.AnimalOwner) (int, bool) { return ao.MicrochipID, true })
	for _, a := range clean.Animals {
		assert.True(t, owned[a.MicrochipID], "animal %d", a.ID)
	}
	linked := make(map[[2]int]bool)
	for _, ao := range clean.AnimalOwners {
		key := [2]int{ao.MicrochipID, ao.OwnerID}
		assert.False(t, linked[key], "duplicate pair %v", key)
		linked[key] = true
	}
}

package au

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/vetsynth/config"
	"github.com/TFMV/vetsynth/pkg/generator"
	"github.com/TFMV/vetsynth/pkg/model"
	"github.com/TFMV/vetsynth/pkg/refdata"
)

func cleanSnapshot(t *testing.T) (*model.Clean, *config.Config) {
	t.Helper()
	ref, err := refdata.Embedded()
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Generation.NbAnimals = 200
	cfg.Generation.LastOperationDate = "2021-03-31"
	g, err := generator.New(cfg.Generation, ref, nil)
	require.NoError(t, err)
	clean, err := g.Run(context.Background())
	require.NoError(t, err)
	return clean, cfg
}

func transform(t *testing.T) (*model.Clean, *model.AU) {
	t.Helper()
	clean, cfg := cleanSnapshot(t)
	polluted, err := New(cfg.AU, cfg.Generation.Seed, nil).Transform(context.Background(), clean)
	require.NoError(t, err)
	return clean, polluted
}

func TestTransformRejectsEmptySnapshot(t *testing.T) {
	_, err := New(config.Default().AU, 1, nil).Transform(context.Background(), &model.Clean{})
	assert.ErrorIs(t, err, ErrIncompleteSnapshot)
}

func TestDuplicatedLookupTables(t *testing.T) {
	clean, polluted := transform(t)

	n := len(clean.MicrochipCodes)
	assert.Len(t, polluted.MicrochipCodes, n+int(float64(n)*0.5))
	codes := lo.KeyBy(clean.MicrochipCodes, func(c model.MicrochipCode) int { return c.ID })
	for i, c := range polluted.MicrochipCodes {
		assert.Equal(t, 3+i, c.ID)
		orig := codes[c.CodeV1]
		assert.Equal(t, orig.Code, c.Code)
		assert.Equal(t, orig.Brand, c.Brand)
	}

	n = len(clean.Services)
	assert.Len(t, polluted.Services, n+int(float64(n)*0.5))
}

func TestEveryAnimalKeepsItsFirstRegistration(t *testing.T) {
	clean, polluted := transform(t)
	hashes := lo.SliceToMap(clean.Animals, func(a model.Animal) (int, string) { return a.ID, a.HashID })

	rows := lo.GroupBy(polluted.Animals, func(a model.AnimalAU) int { return a.AnimalV1 })
	assert.Len(t, rows, len(clean.Animals))
	for id, regs := range rows {
		kept := lo.CountBy(regs, func(a model.AnimalAU) bool { return a.HashID == hashes[id] })
		assert.Equal(t, 1, kept, "animal %d", id)
		first := lo.MinBy(regs, func(a, b model.AnimalAU) bool { return a.AppointmentV1 < b.AppointmentV1 })
		assert.Equal(t, hashes[id], first.HashID)
	}

	all := lo.Map(polluted.Animals, func(a model.AnimalAU, _ int) string { return a.HashID })
	assert.Len(t, lo.Uniq(all), len(all))
}

func TestPollutedForeignKeysResolve(t *testing.T) {
	_, polluted := transform(t)
	has := func(ids []int) map[int]bool {
		return lo.SliceToMap(ids, func(id int) (int, bool) { return id, true })
	}
	animals := has(lo.Map(polluted.Animals, func(a model.AnimalAU, _ int) int { return a.ID }))
	chips := has(lo.Map(polluted.Microchips, func(m model.MicrochipAU, _ int) int { return m.ID }))
	codes := has(lo.Map(polluted.MicrochipCodes, func(c model.MicrochipCodeAU, _ int) int { return c.ID }))
	owners := has(lo.Map(polluted.Owners, func(o model.OwnerAU, _ int) int { return o.ID }))
	services := has(lo.Map(polluted.Services, func(s model.ServiceAU, _ int) int { return s.ID }))
	appts := has(lo.Map(polluted.Appointments, func(a model.AppointmentAU, _ int) int { return a.ID }))
	slots := has(lo.Map(polluted.Slots, func(s model.SlotAU, _ int) int { return s.ID }))
	doctors := has(lo.Map(polluted.Doctors, func(d model.DoctorAU, _ int) int { return d.ID }))

	for _, a := range polluted.Animals {
		assert.True(t, chips[a.MicrochipID])
		assert.True(t, owners[a.OwnerID], "animal %d", a.ID)
	}
	for _, m := range polluted.Microchips {
		assert.True(t, codes[m.CodeID])
		assert.True(t, owners[m.OwnerID])
	}
	for _, o := range polluted.Owners {
		assert.True(t, animals[o.AnimalID])
	}
	for _, a := range polluted.Appointments {
		assert.True(t, animals[a.AnimalID])
		assert.True(t, services[a.ServiceID])
		assert.True(t, owners[a.OwnerID], "appointment %d", a.ID)
	}
	for _, as := range polluted.AppointmentSlots {
		assert.True(t, appts[as.AppointmentID])
		assert.True(t, slots[as.SlotID])
	}
	for _, s := range polluted.Slots {
		assert.True(t, doctors[s.DoctorID])
	}
}

func TestAppointmentsNeverLookForward(t *testing.T) {
	_, polluted := transform(t)
	animals := lo.KeyBy(polluted.Animals, func(a model.AnimalAU) int { return a.ID })
	for _, a := range polluted.Appointments {
		reg := animals[a.AnimalID]
		assert.Equal(t, a.AnimalV1, reg.AnimalV1)
		assert.LessOrEqual(t, reg.AppointmentV1, a.AppointmentV1)
	}
}

func TestSlotsPointAtCoveringContract(t *testing.T) {
	_, polluted := transform(t)
	doctors := lo.KeyBy(polluted.Doctors, func(d model.DoctorAU) int { return d.ID })
	for _, s := range polluted.Slots {
		d := doctors[s.DoctorID]
		assert.Equal(t, s.DoctorV1, d.DoctorV1)
		assert.False(t, s.Date.Before(d.PeriodStartDate))
		assert.False(t, s.Date.After(d.PeriodEndDate))
	}
}

// Package au turns a clean snapshot into one suffering from artificial
// unicity: the same real-world entity is registered under several
// surrogate keys, and the original key survives in a *_v1 column.
package au

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/config"
	"github.com/TFMV/vetsynth/pkg/calendar"
	"github.com/TFMV/vetsynth/pkg/idalloc"
	"github.com/TFMV/vetsynth/pkg/model"
	"github.com/TFMV/vetsynth/pkg/randx"
)

var (
	ErrMissingOwner       = errors.New("no owner registration for animal")
	ErrNoEarlierAnimal    = errors.New("no earlier animal registration for appointment")
	ErrUnknownReference   = errors.New("reference to unknown row")
	ErrIncompleteSnapshot = errors.New("clean snapshot is incomplete")
)

// Transformer pollutes clean snapshots with artificial unicity.
type Transformer struct {
	cfg  config.AUConfig
	seed uint64
	log  *zap.Logger
}

// New returns a transformer drawing from seed.
func New(cfg config.AUConfig, seed uint64, log *zap.Logger) *Transformer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transformer{cfg: cfg, seed: seed, log: log}
}

// state carries the clean input, the polluted output and the lookups
// built along the way.
type state struct {
	clean *model.Clean
	out   model.AU

	codeDups    map[int][]int // clean code id -> au code ids
	serviceDups map[int][]int
	// animalRows lists the animal-au rows of each clean animal, ordered by
	// appointment.
	animalRows map[int][]int
	apptAnimal map[int]int // clean appointment id -> animal-au id
	ownerOf    map[int]int // animal-au id -> owner-au id
}

// Transform runs every step on clean and returns the polluted snapshot.
// clean is not modified.
func (t *Transformer) Transform(ctx context.Context, clean *model.Clean) (*model.AU, error) {
	if len(clean.Animals) == 0 || len(clean.Appointments) == 0 {
		return nil, ErrIncompleteSnapshot
	}
	s := &state{clean: clean}
	steps := []struct {
		name string
		run  func(*state) error
	}{
		{"microchip_code", t.microchipCodes},
		{"service", t.services},
		{"animal", t.animals},
		{"microchip", t.microchips},
		{"appointment", t.appointments},
		{"appointment_slot", t.appointmentSlots},
		{"doctor", t.doctors},
		{"slot", t.slots},
		{"owner", t.owners},
		{"foreign_keys", t.updateForeignKeys},
	}
	for _, step := range steps {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := step.run(s); err != nil {
			return nil, fmt.Errorf("au %s: %w", step.name, err)
		}
		t.log.Debug("AU step complete", zap.String("step", step.name))
	}
	t.log.Info("Artificial unicity applied",
		zap.Int("animals", len(s.out.Animals)),
		zap.Int("owners", len(s.out.Owners)),
		zap.Int("appointments", len(s.out.Appointments)))
	return &s.out, nil
}

func (t *Transformer) rand(step string) *randx.Rand {
	return randx.Derive(t.seed, "au/"+step)
}

func (t *Transformer) offset(relation string) int {
	return config.Offset(t.cfg.IDOffsets, relation)
}

// duplicate appends int(len(ids) * rate) ids drawn with replacement.
func duplicate(r *randx.Rand, ids []int, rate float64) []int {
	extra := randx.Sample(r, ids, int(float64(len(ids))*rate))
	return append(slices.Clone(ids), extra...)
}

func groupDuplicates(v1 []int, start int) map[int][]int {
	dups := make(map[int][]int)
	for i, id := range v1 {
		dups[id] = append(dups[id], start+i)
	}
	return dups
}

func (t *Transformer) microchipCodes(s *state) error {
	byID := lo.KeyBy(s.clean.MicrochipCodes, func(c model.MicrochipCode) int { return c.ID })
	ids := lo.Map(s.clean.MicrochipCodes, func(c model.MicrochipCode, _ int) int { return c.ID })
	v1 := duplicate(t.rand("microchip_code"), ids, t.cfg.Rates[model.RelMicrochipCode])

	start := t.offset(model.RelMicrochipCode)
	s.out.MicrochipCodes = make([]model.MicrochipCodeAU, len(v1))
	for i, id := range v1 {
		c := byID[id]
		c.ID = start + i
		s.out.MicrochipCodes[i] = model.MicrochipCodeAU{MicrochipCode: c, CodeV1: id}
	}
	s.codeDups = groupDuplicates(v1, start)
	return nil
}

func (t *Transformer) services(s *state) error {
	byID := lo.KeyBy(s.clean.Services, func(c model.Service) int { return c.ID })
	ids := lo.Map(s.clean.Services, func(c model.Service, _ int) int { return c.ID })
	v1 := duplicate(t.rand("service"), ids, t.cfg.Rates[model.RelService])

	start := t.offset(model.RelService)
	s.out.Services = make([]model.ServiceAU, len(v1))
	for i, id := range v1 {
		c := byID[id]
		c.ID = start + i
		s.out.Services[i] = model.ServiceAU{Service: c, ServiceV1: id}
	}
	s.serviceDups = groupDuplicates(v1, start)
	return nil
}

// animals registers an animal once per kept weight observation. The
// registration at the first appointment is always kept.
func (t *Transformer) animals(s *state) error {
	r := t.rand("animal")
	animals := lo.KeyBy(s.clean.Animals, func(a model.Animal) int { return a.ID })

	firstAppt := make(map[int]int)
	for _, w := range s.clean.AnimalWeights {
		if cur, ok := firstAppt[w.AnimalID]; !ok || w.AppointmentID < cur {
			firstAppt[w.AnimalID] = w.AppointmentID
		}
	}
	initial, additional := lo.FilterReject(s.clean.AnimalWeights, func(w model.AnimalWeight, _ int) bool {
		return firstAppt[w.AnimalID] == w.AppointmentID
	})
	kept := append(initial, randx.SampleDistinct(r, additional, int(float64(len(additional))*t.cfg.Rates[model.RelAnimal]))...)
	slices.SortStableFunc(kept, func(x, y model.AnimalWeight) int { return cmp.Compare(x.AppointmentID, y.AppointmentID) })

	s.out.Animals = make([]model.AnimalAU, len(kept))
	s.animalRows = make(map[int][]int)
	s.apptAnimal = make(map[int]int, len(kept))
	for i, w := range kept {
		a, ok := animals[w.AnimalID]
		if !ok {
			return fmt.Errorf("%w: animal %d", ErrUnknownReference, w.AnimalID)
		}
		s.out.Animals[i] = model.AnimalAU{
			Species:       a.Species,
			Breed:         a.Breed,
			Name:          a.Name,
			MicrochipID:   a.MicrochipID,
			Gender:        a.Gender,
			DOB:           a.DOB,
			Weight:        w.Weight,
			HashID:        a.HashID,
			AnimalV1:      a.ID,
			AppointmentV1: w.AppointmentID,
		}
	}
	if err := idalloc.Assign(s.out.Animals, t.offset(model.RelAnimal), func(a *model.AnimalAU, id int) { a.ID = id }); err != nil {
		return err
	}
	for _, a := range s.out.Animals {
		s.animalRows[a.AnimalV1] = append(s.animalRows[a.AnimalV1], a.ID)
		s.apptAnimal[a.AppointmentV1] = a.ID
	}
	return nil
}

// microchips gives every animal registration its own microchip row, each
// pointing at a random duplicate of the original code.
func (t *Transformer) microchips(s *state) error {
	r := t.rand("microchip")
	chips := lo.KeyBy(s.clean.Microchips, func(m model.Microchip) int { return m.ID })

	s.out.Microchips = make([]model.MicrochipAU, len(s.out.Animals))
	for i, a := range s.out.Animals {
		m, ok := chips[a.MicrochipID]
		if !ok {
			return fmt.Errorf("%w: microchip %d", ErrUnknownReference, a.MicrochipID)
		}
		codes := s.codeDups[m.CodeID]
		if len(codes) == 0 {
			return fmt.Errorf("%w: microchip code %d", ErrUnknownReference, m.CodeID)
		}
		s.out.Microchips[i] = model.MicrochipAU{
			CodeID:      randx.Choice(r, codes),
			Number:      m.Number,
			ImplantDate: m.ImplantDate,
			Location:    m.Location,
			MicrochipV1: m.ID,
			CodeV1:      m.CodeID,
		}
	}
	return idalloc.Assign(s.out.Microchips, t.offset(model.RelMicrochip), func(m *model.MicrochipAU, id int) { m.ID = id })
}

// appointments denormalizes appointments to one row per performed service,
// keyed by the appointment-service id. Each row points at the animal
// registration of its appointment or, failing that, the latest earlier one.
func (t *Transformer) appointments(s *state) error {
	r := t.rand("appointment")
	appts := lo.KeyBy(s.clean.Appointments, func(a model.Appointment) int { return a.ID })
	animalAppt := lo.SliceToMap(s.out.Animals, func(a model.AnimalAU) (int, int) { return a.ID, a.AppointmentV1 })

	s.out.Appointments = make([]model.AppointmentAU, 0, len(s.clean.AppointmentServices))
	for _, as := range s.clean.AppointmentServices {
		a, ok := appts[as.AppointmentID]
		if !ok {
			return fmt.Errorf("%w: appointment %d", ErrUnknownReference, as.AppointmentID)
		}
		animal, ok := s.apptAnimal[a.ID]
		if !ok {
			rows := s.animalRows[a.AnimalID]
			earlier := lo.Filter(rows, func(id int, _ int) bool { return animalAppt[id] < a.ID })
			if len(earlier) == 0 {
				return fmt.Errorf("%w: appointment %d", ErrNoEarlierAnimal, a.ID)
			}
			animal = lo.Max(earlier)
		}
		services := s.serviceDups[as.ServiceID]
		if len(services) == 0 {
			return fmt.Errorf("%w: service %d", ErrUnknownReference, as.ServiceID)
		}
		s.out.Appointments = append(s.out.Appointments, model.AppointmentAU{
			ID:            as.ID,
			AnimalID:      animal,
			Reason:        a.Reason,
			Date:          a.Date,
			ServiceID:     randx.Choice(r, services),
			AppointmentV1: a.ID,
			AnimalV1:      a.AnimalID,
			OwnerV1:       a.OwnerID,
		})
	}
	slices.SortFunc(s.out.Appointments, func(x, y model.AppointmentAU) int { return cmp.Compare(x.ID, y.ID) })
	return nil
}

// appointmentSlots books each slot for every service row of its appointment.
func (t *Transformer) appointmentSlots(s *state) error {
	rows := lo.GroupBy(s.out.Appointments, func(a model.AppointmentAU) int { return a.AppointmentV1 })
	var out []model.AppointmentSlot
	for _, as := range s.clean.AppointmentSlots {
		for _, a := range rows[as.AppointmentID] {
			out = append(out, model.AppointmentSlot{AppointmentID: a.ID, SlotID: as.SlotID})
		}
	}
	slices.SortFunc(out, func(x, y model.AppointmentSlot) int {
		return cmp.Or(cmp.Compare(x.SlotID, y.SlotID), cmp.Compare(x.AppointmentID, y.AppointmentID))
	})
	s.out.AppointmentSlots = out
	return idalloc.Assign(s.out.AppointmentSlots, t.offset(model.RelAppointmentSlot),
		func(a *model.AppointmentSlot, id int) { a.ID = id })
}

// doctors replaces each doctor by its monthly contract rows.
func (t *Transformer) doctors(s *state) error {
	doctors := lo.KeyBy(s.clean.Doctors, func(d model.Doctor) int { return d.ID })
	s.out.Doctors = make([]model.DoctorAU, len(s.clean.DoctorHistory))
	for i, h := range s.clean.DoctorHistory {
		d, ok := doctors[h.DoctorID]
		if !ok {
			return fmt.Errorf("%w: doctor %d", ErrUnknownReference, h.DoctorID)
		}
		s.out.Doctors[i] = model.DoctorAU{
			ID:              h.ID,
			FirstName:       h.FirstName,
			LastName:        h.LastName,
			Specialty:       h.Specialty,
			LicenseNumber:   h.LicenseNumber,
			StartDate:       d.StartDate,
			EndDate:         d.EndDate,
			PeriodStartDate: h.PeriodStartDate,
			PeriodEndDate:   h.PeriodEndDate,
			MaxMonthlyHours: h.MaxMonthlyHours,
			DoctorV1:        d.ID,
		}
	}
	return nil
}

// slots points every slot at the contract row covering its date.
func (t *Transformer) slots(s *state) error {
	type key struct {
		doctor int
		month  time.Time
	}
	covering := make(map[key]int, len(s.out.Doctors))
	for _, d := range s.out.Doctors {
		covering[key{d.DoctorV1, d.PeriodStartDate}] = d.ID
	}
	s.out.Slots = make([]model.SlotAU, len(s.clean.Slots))
	for i, sl := range s.clean.Slots {
		month := calendar.MonthStart(sl.Date)
		histo, ok := covering[key{sl.DoctorID, month}]
		if !ok {
			return fmt.Errorf("%w: no contract for slot %d", ErrUnknownReference, sl.ID)
		}
		s.out.Slots[i] = model.SlotAU{
			ID:       sl.ID,
			DoctorID: histo,
			Date:     sl.Date,
			Hour:     sl.Hour,
			Type:     sl.Type,
			DoctorV1: sl.DoctorID,
		}
	}
	return nil
}

// owners registers an owner once per animal registration they brought in.
// Owners never seen with a kept registration disappear.
func (t *Transformer) owners(s *state) error {
	owners := lo.KeyBy(s.clean.Owners, func(o model.Owner) int { return o.ID })
	type pair struct{ owner, animal int }
	seen := make(map[pair]bool)
	var pairs []pair
	for _, a := range s.out.Appointments {
		animal, ok := s.apptAnimal[a.AppointmentV1]
		if !ok {
			continue
		}
		p := pair{a.OwnerV1, animal}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	slices.SortFunc(pairs, func(x, y pair) int { return cmp.Or(cmp.Compare(x.animal, y.animal), cmp.Compare(x.owner, y.owner)) })

	s.out.Owners = make([]model.OwnerAU, len(pairs))
	for i, p := range pairs {
		o, ok := owners[p.owner]
		if !ok {
			return fmt.Errorf("%w: owner %d", ErrUnknownReference, p.owner)
		}
		s.out.Owners[i] = model.OwnerAU{
			FirstName:   o.FirstName,
			LastName:    o.LastName,
			Address:     o.Address,
			City:        o.City,
			PostalCode:  o.PostalCode,
			PhoneNumber: o.PhoneNumber,
			AnimalID:    p.animal,
			OwnerV1:     o.ID,
		}
	}
	if err := idalloc.Assign(s.out.Owners, t.offset(model.RelOwner), func(o *model.OwnerAU, id int) { o.ID = id }); err != nil {
		return err
	}
	s.ownerOf = make(map[int]int, len(s.out.Owners))
	for _, o := range s.out.Owners {
		if _, ok := s.ownerOf[o.AnimalID]; !ok {
			s.ownerOf[o.AnimalID] = o.ID
		}
	}
	return nil
}

// updateForeignKeys resolves the polluted references, in order: animal to
// microchip and owner, missing owners from the clean animal-owner links,
// microchip to owner, fresh hash ids, then appointment to owner.
func (t *Transformer) updateForeignKeys(s *state) error {
	r := t.rand("foreign_keys")
	for i := range s.out.Animals {
		a := &s.out.Animals[i]
		a.MicrochipID = s.out.Microchips[i].ID
		a.OwnerID = s.ownerOf[a.ID]
	}
	if err := t.backfillOwners(r, s); err != nil {
		return err
	}
	for i := range s.out.Microchips {
		s.out.Microchips[i].OwnerID = s.out.Animals[i].OwnerID
	}
	t.rehash(r, s)
	for i := range s.out.Appointments {
		a := &s.out.Appointments[i]
		a.OwnerID = s.ownerOf[a.AnimalID]
	}
	return nil
}

// backfillOwners gives animal registrations without an owner a registration
// of one of the animal's clean owners.
func (t *Transformer) backfillOwners(r *randx.Rand, s *state) error {
	chipOwners := make(map[int][]int)
	for _, ao := range s.clean.AnimalOwners {
		chipOwners[ao.MicrochipID] = append(chipOwners[ao.MicrochipID], ao.OwnerID)
	}
	registrations := make(map[int][]int)
	for _, o := range s.out.Owners {
		registrations[o.OwnerV1] = append(registrations[o.OwnerV1], o.ID)
	}
	chipV1 := lo.SliceToMap(s.out.Microchips, func(m model.MicrochipAU) (int, int) { return m.ID, m.MicrochipV1 })

	missing := 0
	for i := range s.out.Animals {
		a := &s.out.Animals[i]
		if a.OwnerID != 0 {
			continue
		}
		missing++
		candidates := lo.Filter(chipOwners[chipV1[a.MicrochipID]], func(o int, _ int) bool {
			return len(registrations[o]) > 0
		})
		if len(candidates) == 0 {
			return fmt.Errorf("%w %d", ErrMissingOwner, a.ID)
		}
		a.OwnerID = randx.Choice(r, registrations[randx.Choice(r, candidates)])
		s.ownerOf[a.ID] = a.OwnerID
	}
	if missing > 0 {
		t.log.Info("Backfilled animal owners", zap.Int("count", missing))
	}
	return nil
}

// rehash keeps the clean hash id only on each animal's first registration.
func (t *Transformer) rehash(r *randx.Rand, s *state) {
	first := make(map[int]int)
	for _, a := range s.out.Animals {
		if cur, ok := first[a.AnimalV1]; !ok || a.AppointmentV1 < cur {
			first[a.AnimalV1] = a.AppointmentV1
		}
	}
	for i := range s.out.Animals {
		a := &s.out.Animals[i]
		if a.AppointmentV1 != first[a.AnimalV1] {
			a.HashID = r.UUID()
		}
	}
}

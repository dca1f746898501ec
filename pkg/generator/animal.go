package generator

import (
	"context"
	"slices"
	"time"

	"github.com/TFMV/vetsynth/pkg/calendar"
	"github.com/TFMV/vetsynth/pkg/randx"
	"github.com/TFMV/vetsynth/pkg/refdata"
)

// animals draws the population from the base profiles and gives every
// animal a date of birth and a hash id.
func (g *Generator) animals(_ context.Context, b *Build) error {
	r := g.rand("animals")
	n := g.cfg.NbAnimals
	base := g.ref.Animals

	var pop []refdata.AnimalProfile
	if n > len(base) {
		pop = append(slices.Clone(base), randx.Sample(r, base, n-len(base))...)
	} else {
		pop = randx.Sample(r, base, n)
	}

	dobs := g.datesOfBirth(r, n)
	b.animals = make([]animalRow, n)
	for i := range b.animals {
		b.animals[i] = animalRow{profile: pop[i], dob: dobs[i], hash: r.UUID()}
	}
	return nil
}

// datesOfBirth returns n shuffled birth dates. int(n*prop) of them fall in
// the max_animal_age_at_opening years before opening, weighted toward
// recent years; the rest are uniform from opening until the last working
// day, so the implant can never precede the birth.
func (g *Generator) datesOfBirth(r *randx.Rand, n int) []time.Time {
	nBefore := int(float64(n) * g.cfg.PropBornBeforeOpening)
	start := g.cfg.ClinicStartYear
	span := g.cfg.MaxAnimalAgeAtOpening

	dobs := make([]time.Time, 0, n)
	if nBefore > 0 && span > 0 {
		weights := make([]float64, span)
		total := float64(span * (span + 1) / 2)
		for k := range weights {
			weights[k] = float64(k+1) / total
		}
		for k, c := range randx.ExactCounts(weights, nBefore) {
			year := start - span + k
			jan1 := calendar.Date(year, time.January, 1)
			dec31 := calendar.Date(year, time.December, 31)
			for range c {
				dobs = append(dobs, r.DateBetween(jan1, dec31))
			}
		}
	}
	for len(dobs) < n {
		dobs = append(dobs, r.DateBetween(g.opening, g.lastWorking))
	}
	randx.Shuffle(r, dobs)
	return dobs
}

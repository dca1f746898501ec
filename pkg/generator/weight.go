package generator

import (
	"context"
	"fmt"
	"slices"

	"github.com/TFMV/vetsynth/pkg/idalloc"
	"github.com/TFMV/vetsynth/pkg/model"
	"github.com/TFMV/vetsynth/pkg/randx"
)

// weightDrift bounds the relative weight change between two visits.
const weightDrift = 0.1

// animalWeights records one weight per appointment: a breed and gender
// conditioned draw at the first visit, then a cumulative drift.
func (g *Generator) animalWeights(_ context.Context, b *Build) error {
	r := g.rand("animal_weights")

	var rows []model.AnimalWeight
	for k, a := range b.Clean.Animals {
		initial, err := g.initialWeight(r, a.Breed, a.Gender)
		if err != nil {
			return err
		}
		visits := b.byAnimal[b.animalOrder[k]]
		factor := 1.0
		for j, i := range visits {
			if j > 0 {
				factor *= 1 + r.Uniform(-weightDrift, weightDrift)
			}
			rows = append(rows, model.AnimalWeight{
				AnimalID:      a.ID,
				AppointmentID: b.appts[i].id,
				Weight:        randx.Round(initial*factor, 2),
			})
		}
	}

	slices.SortStableFunc(rows, func(x, y model.AnimalWeight) int { return x.AppointmentID - y.AppointmentID })
	if err := idalloc.Assign(rows, g.offset(model.RelAnimalWeight), func(w *model.AnimalWeight, id int) { w.ID = id }); err != nil {
		return err
	}
	b.Clean.AnimalWeights = rows
	return nil
}

func (g *Generator) initialWeight(r *randx.Rand, breed, gender string) (float64, error) {
	rng, ok := g.ref.BreedWeights[breed]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBreed, breed)
	}
	switch gender {
	case model.GenderMale:
		return randx.Round(r.Uniform(rng.MaleMin, rng.MaleMax), 2), nil
	case model.GenderFemale:
		return randx.Round(r.Uniform(rng.FemaleMin, rng.FemaleMax), 2), nil
	default:
		return 0, fmt.Errorf("%w: %q for breed %q", ErrUnknownGender, gender, breed)
	}
}

package generator

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/TFMV/vetsynth/pkg/model"
	"github.com/TFMV/vetsynth/pkg/randx"
)

func (g *Generator) microchipCodes(_ context.Context, b *Build) error {
	start := g.offset(model.RelMicrochipCode)
	b.Clean.MicrochipCodes = make([]model.MicrochipCode, len(g.ref.Codes))
	for i, c := range g.ref.Codes {
		b.Clean.MicrochipCodes[i] = model.MicrochipCode{
			ID:         start + i,
			Code:       c.Code,
			Brand:      c.Brand,
			Provider:   c.Provider,
			Country:    c.Country,
			MarketYear: c.MarketYear,
		}
	}
	return nil
}

// microchips implants one chip per animal, shortly after birth, with a code
// that was on the market in the implant year.
func (g *Generator) microchips(_ context.Context, b *Build) error {
	r := g.rand("microchips")
	gap := g.cfg.DobMicrochipGapDays

	locations, weights := randx.Weights(g.cfg.ImplantLocations)
	assigned := randx.AssignExact(r, locations, weights, len(b.animals))

	b.chips = make([]chipRow, len(b.animals))
	for i, a := range b.animals {
		implant := a.dob.AddDate(0, 0, 2*gap-r.Below(gap))
		implant = minDate(implant, g.lastWorking)

		codes := g.availableCodes(b.Clean.MicrochipCodes, implant.Year())
		if len(codes) == 0 {
			return fmt.Errorf("%w in %d", ErrNoMicrochipCode, implant.Year())
		}
		b.chips[i] = chipRow{
			codeID:   randx.Choice(r, codes),
			number:   100_000_000_000 + r.Int64N(900_000_000_000),
			implant:  implant,
			location: assigned[i],
		}
	}
	return nil
}

// availableCodes returns ids of codes with no market year or one no later
// than year.
func (g *Generator) availableCodes(codes []model.MicrochipCode, year int) []int {
	return lo.FilterMap(codes, func(c model.MicrochipCode, _ int) (int, bool) {
		return c.ID, c.MarketYear == nil || *c.MarketYear <= year
	})
}

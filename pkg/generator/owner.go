package generator

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/samber/lo"

	"github.com/TFMV/vetsynth/pkg/idalloc"
	"github.com/TFMV/vetsynth/pkg/model"
	"github.com/TFMV/vetsynth/pkg/randx"
)

// ownerCounts returns the number of households and of owners for n animals.
func ownerCounts(dist map[int]float64, prop float64, n int) (households, owners int) {
	sizes, probs := randx.Weights(dist)
	total := 0.0
	for i, k := range sizes {
		total += math.RoundToEven(probs[i] * float64(n) / float64(k))
	}
	households = int(total)
	return households, int(math.RoundToEven(float64(households) * (1 + prop)))
}

// households cuts pool into consecutive groups, int(p*n)/k groups of each
// size k, smallest sizes first. Group i belongs to owner i, so at most
// maxOwners groups are made. Animals past the last group are left over.
func households(pool []int, dist map[int]float64, maxOwners int) [][]int {
	n := len(pool)
	sizes, probs := randx.Weights(dist)

	var groups [][]int
	pos := 0
	for i, k := range sizes {
		for range int(probs[i]*float64(n)) / k {
			if pos+k > n || len(groups) == maxOwners {
				return groups
			}
			groups = append(groups, pool[pos:pos+k])
			pos += k
		}
	}
	return groups
}

type city struct {
	name    string
	zip     string
	streets []string
}

// ownerProfiles draws owners living in a small synthetic geography.
func (g *Generator) ownerProfiles(r *randx.Rand, n int) []model.Owner {
	oc := g.cfg.Owners
	faker := gofakeit.New(r.Uint64())

	var streets []string
	seen := make(map[string]bool)
	for range oc.NbCities * oc.RatioCityStreets * 4 {
		if len(streets) == oc.NbCities*oc.RatioCityStreets {
			break
		}
		s := faker.StreetName() + " " + faker.StreetSuffix()
		if !seen[s] {
			seen[s] = true
			streets = append(streets, s)
		}
	}

	cities := make([]city, oc.NbCities)
	for i := range cities {
		k := min(len(streets), r.Between(5, 50))
		cities[i] = city{name: faker.City(), zip: faker.Zip(), streets: randx.SampleDistinct(r, streets, k)}
	}

	owners := make([]model.Owner, n)
	for i := range owners {
		c := randx.Choice(r, cities)
		owners[i] = model.Owner{
			FirstName:   faker.FirstName(),
			LastName:    faker.LastName(),
			Address:     fmt.Sprintf("%d %s", r.Between(1, 150), randx.Choice(r, c.streets)),
			City:        c.name,
			PostalCode:  c.zip,
			PhoneNumber: faker.Phone(),
		}
	}
	return owners
}

// owners groups animals into households, attaches co-owners to busy
// households, picks the owner present at each appointment and keys owners
// by their first visit.
func (g *Generator) owners(_ context.Context, b *Build) error {
	r := g.rand("owners")
	oc := g.cfg.Owners
	n := len(b.animals)

	nbHouseholds, nbOwners := ownerCounts(oc.HouseholdDistribution, oc.PropHouseholdSeveralOwner, n)
	b.ownerProfiles = g.ownerProfiles(r, nbOwners)
	if len(b.ownerProfiles) == 0 {
		return ErrNoOwners
	}
	g.log.Sugar().Infow("Owners sized", "households", nbHouseholds, "owners", nbOwners)

	pool := lo.Range(n)
	randx.Shuffle(r, pool)

	groups := households(pool, oc.HouseholdDistribution, len(b.ownerProfiles))
	pos, next := 0, len(groups)
	for owner, group := range groups {
		for _, a := range group {
			b.links = append(b.links, link{animal: a, owner: owner})
		}
		pos += len(group)
	}

	busy := lo.Filter(groups, func(group []int, _ int) bool {
		return lo.SomeBy(group, func(a int) bool { return len(b.byAnimal[a]) > oc.MinNbAppt })
	})
	for owner := next; owner < len(b.ownerProfiles) && len(busy) > 0; owner++ {
		group := randx.Choice(r, busy)
		picked := group
		if len(group) > 1 {
			picked = lo.Uniq(randx.Sample(r, group, r.Between(1, len(group)-1)))
		}
		for _, a := range picked {
			b.links = append(b.links, link{animal: a, owner: owner})
		}
	}

	if leftovers := n - pos; leftovers > 0 {
		if float64(leftovers) > 0.01*float64(n) {
			g.log.Sugar().Warnw("Many animals assigned to random owners", "count", leftovers)
		}
		upper := next
		if upper == 0 {
			upper = len(b.ownerProfiles)
		}
		for _, a := range pool[pos:] {
			b.links = append(b.links, link{animal: a, owner: r.Below(upper)})
		}
	}
	b.links = lo.Uniq(b.links)

	g.appointmentOwners(r, b)
	return g.assignOwnerIDs(b)
}

// appointmentOwners picks, for each visit, an owner of the animal who has
// not yet brought it in, falling back to any of its owners.
func (g *Generator) appointmentOwners(r *randx.Rand, b *Build) {
	byAnimal := make(map[int][]int)
	for _, l := range b.links {
		byAnimal[l.animal] = append(byAnimal[l.animal], l.owner)
	}
	for _, owners := range byAnimal {
		slices.Sort(owners)
	}
	seen := make(map[link]bool)
	for _, appt := range b.Clean.Appointments {
		i := b.apptIndex[appt.ID]
		a := b.appts[i].animal
		owners := byAnimal[a]
		fresh := lo.Filter(owners, func(o int, _ int) bool { return !seen[link{a, o}] })
		if len(fresh) > 0 {
			b.appts[i].owner = randx.Choice(r, fresh)
		} else {
			b.appts[i].owner = randx.Choice(r, owners)
		}
		seen[link{a, b.appts[i].owner}] = true
	}
}

// assignOwnerIDs numbers owners by first appointment date, owners never
// seen at the clinic last, then resolves the owner foreign keys.
func (g *Generator) assignOwnerIDs(b *Build) error {
	first := make(map[int]time.Time)
	for _, a := range b.appts {
		if d, ok := first[a.owner]; !ok || a.date.Before(d) {
			first[a.owner] = a.date
		}
	}
	order := lo.Range(len(b.ownerProfiles))
	slices.SortStableFunc(order, func(x, y int) int {
		dx, okx := first[x]
		dy, oky := first[y]
		switch {
		case okx && !oky:
			return -1
		case !okx && oky:
			return 1
		case okx && oky:
			return cmp.Or(dx.Compare(dy), cmp.Compare(x, y))
		}
		return cmp.Compare(x, y)
	})
	ids, err := idalloc.Sequence(len(order), g.offset(model.RelOwner))
	if err != nil {
		return err
	}
	ownerID := make([]int, len(order))
	b.Clean.Owners = make([]model.Owner, len(order))
	for k, i := range order {
		ownerID[i] = ids[k]
		o := b.ownerProfiles[i]
		o.ID = ids[k]
		b.Clean.Owners[k] = o
	}

	for k := range b.Clean.Appointments {
		a := &b.Clean.Appointments[k]
		a.OwnerID = ownerID[b.appts[b.apptIndex[a.ID]].owner]
	}

	rows := lo.Map(b.links, func(l link, _ int) model.AnimalOwner {
		return model.AnimalOwner{MicrochipID: b.chips[l.animal].id, OwnerID: ownerID[l.owner]}
	})
	slices.SortFunc(rows, func(x, y model.AnimalOwner) int {
		return cmp.Or(cmp.Compare(x.MicrochipID, y.MicrochipID), cmp.Compare(x.OwnerID, y.OwnerID))
	})
	b.Clean.AnimalOwners = rows
	return idalloc.Assign(b.Clean.AnimalOwners, g.offset(model.RelAnimalOwner),
		func(o *model.AnimalOwner, id int) { o.ID = id })
}

package dirty

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/TFMV/vetsynth/pkg/randx"
	"github.com/TFMV/vetsynth/pkg/tables"
)

var (
	ErrInvalidFraction = errors.New("fraction must be in (0, 1]")
	ErrUnknownColumn   = errors.New("unknown column")
)

func checkFraction(fraction float64) error {
	if !(fraction > 0 && fraction <= 1) {
		return fmt.Errorf("%w: got %g", ErrInvalidFraction, fraction)
	}
	return nil
}

func column(f *tables.StringFrame, name string) (int, error) {
	j := f.Index(name)
	if j < 0 {
		return 0, fmt.Errorf("%w %q", ErrUnknownColumn, name)
	}
	return j, nil
}

// pick draws floor(fraction * rows) distinct row indices.
func pick(f *tables.StringFrame, fraction float64, r *randx.Rand) []int {
	k := int(math.Floor(fraction * float64(len(f.Rows))))
	return randx.SampleDistinct(r, lo.Range(len(f.Rows)), k)
}

// ApplyToFraction runs c over a random fraction of the column's rows and
// returns how many cells changed. Null cells are left alone.
func ApplyToFraction(f *tables.StringFrame, col string, fraction float64, c Corruptor, r *randx.Rand) (int, error) {
	if err := checkFraction(fraction); err != nil {
		return 0, err
	}
	j, err := column(f, col)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, i := range pick(f, fraction, r) {
		cell := f.Rows[i][j]
		if cell == nil {
			continue
		}
		if v, ok := c.Apply(*cell, r); ok && v != *cell {
			f.Rows[i][j] = &v
			changed++
		}
	}
	return changed, nil
}

// NullFraction blanks a random fraction of the column.
func NullFraction(f *tables.StringFrame, col string, fraction float64, r *randx.Rand) (int, error) {
	if err := checkFraction(fraction); err != nil {
		return 0, err
	}
	j, err := column(f, col)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, i := range pick(f, fraction, r) {
		if f.Rows[i][j] != nil {
			changed++
		}
		f.Rows[i][j] = nil
	}
	return changed, nil
}

// PermuteFraction shuffles the column values among a random fraction of
// rows. The column keeps the same multiset of values.
func PermuteFraction(f *tables.StringFrame, col string, fraction float64, r *randx.Rand) (int, error) {
	if err := checkFraction(fraction); err != nil {
		return 0, err
	}
	j, err := column(f, col)
	if err != nil {
		return 0, err
	}
	rows := pick(f, fraction, r)
	values := lo.Map(rows, func(i int, _ int) *string { return f.Rows[i][j] })
	randx.Shuffle(r, values)
	changed := 0
	for k, i := range rows {
		if !equalCells(f.Rows[i][j], values[k]) {
			changed++
		}
		f.Rows[i][j] = values[k]
	}
	return changed, nil
}

// ReplaceFromPosition simulates a change of name: for each old value, a
// random matching row is chosen and it and every later match (compared
// case-insensitively) take the new value.
func ReplaceFromPosition(f *tables.StringFrame, col string, names map[string]string, r *randx.Rand) (int, error) {
	j, err := column(f, col)
	if err != nil {
		return 0, err
	}
	olds := lo.Keys(names)
	slices.Sort(olds)

	changed := 0
	for _, old := range olds {
		var matches []int
		for i, row := range f.Rows {
			if row[j] != nil && strings.EqualFold(*row[j], old) {
				matches = append(matches, i)
			}
		}
		if len(matches) == 0 {
			continue
		}
		from := randx.Choice(r, matches)
		for _, i := range matches {
			if i >= from {
				v := names[old]
				f.Rows[i][j] = &v
				changed++
			}
		}
	}
	return changed, nil
}

func equalCells(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

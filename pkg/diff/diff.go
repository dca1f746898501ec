// Package diff computes cell-level differences between two versions of a
// relation matched on key columns.
package diff

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/tables"
)

var (
	ErrMissingKey   = errors.New("key column not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// Options configures a comparison.
type Options struct {
	// KeyColumns match rows across versions. Defaults to the first column.
	KeyColumns    []string
	IgnoreColumns []string
	// Tolerance is the relative tolerance for numeric cells.
	Tolerance float64
	Workers   int
}

// Summary counts the differences of one relation.
type Summary struct {
	Relation    string
	TotalSource int64
	TotalTarget int64
	Added       int64
	Deleted     int64
	Modified    int64
	// Columns holds the modified cells per column.
	Columns map[string]int64
}

// pair is a matched source/target row.
type pair struct{ src, dst int }

// Frames compares two text renderings of a relation.
func Frames(ctx context.Context, name string, source, target *tables.StringFrame, opts Options) (Summary, error) {
	keys := opts.KeyColumns
	if len(keys) == 0 && len(source.Columns) > 0 {
		keys = source.Columns[:1]
	}
	srcIndex, err := keyIndex(source, keys)
	if err != nil {
		return Summary{}, fmt.Errorf("%s source: %w", name, err)
	}
	dstIndex, err := keyIndex(target, keys)
	if err != nil {
		return Summary{}, fmt.Errorf("%s target: %w", name, err)
	}

	sum := Summary{
		Relation:    name,
		TotalSource: int64(len(source.Rows)),
		TotalTarget: int64(len(target.Rows)),
		Columns:     make(map[string]int64),
	}
	var pairs []pair
	for k, i := range srcIndex {
		if j, ok := dstIndex[k]; ok {
			pairs = append(pairs, pair{i, j})
		} else {
			sum.Deleted++
		}
	}
	for k := range dstIndex {
		if _, ok := srcIndex[k]; !ok {
			sum.Added++
		}
	}

	compare := make([]string, 0, len(source.Columns))
	for _, c := range source.Columns {
		if !slices.Contains(keys, c) && !slices.Contains(opts.IgnoreColumns, c) {
			compare = append(compare, c)
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	chunk := (len(pairs) + workers - 1) / workers
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(pairs); start += chunk {
		part := pairs[start:min(start+chunk, len(pairs))]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cols, modified := compareRows(source, target, part, compare, opts.Tolerance)
			mu.Lock()
			defer mu.Unlock()
			sum.Modified += modified
			for c, n := range cols {
				sum.Columns[c] += n
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// Relations diffs every source relation against the target relation of the
// same name. keys gives the key columns per relation; relations without
// keys or without a counterpart are skipped.
func Relations(ctx context.Context, source, target []core.Relation, keys map[string][]string, opts Options) ([]Summary, error) {
	byName := make(map[string]core.Relation, len(target))
	for _, r := range target {
		byName[r.Name] = r
	}
	var out []Summary
	for _, src := range source {
		dst, ok := byName[src.Name]
		key, hasKey := keys[src.Name]
		if !ok || !hasKey {
			continue
		}
		o := opts
		o.KeyColumns = key
		sum, err := Frames(ctx, src.Name, tables.FromRecord(src.Record), tables.FromRecord(dst.Record), o)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func keyIndex(f *tables.StringFrame, keys []string) (map[string]int, error) {
	pos := make([]int, len(keys))
	for i, k := range keys {
		if pos[i] = f.Index(k); pos[i] < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingKey, k)
		}
	}
	index := make(map[string]int, len(f.Rows))
	parts := make([]string, len(keys))
	for i, row := range f.Rows {
		for p, j := range pos {
			parts[p] = "\x00"
			if row[j] != nil {
				parts[p] = *row[j]
			}
		}
		k := strings.Join(parts, "\x1f")
		if _, dup := index[k]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, strings.Join(parts, ","))
		}
		index[k] = i
	}
	return index, nil
}

func compareRows(source, target *tables.StringFrame, pairs []pair, columns []string, tolerance float64) (map[string]int64, int64) {
	counts := make(map[string]int64)
	var modified int64
	for _, p := range pairs {
		changed := false
		for _, c := range columns {
			si, ti := source.Index(c), target.Index(c)
			// A column dropped from the target counts as changed.
			if ti < 0 || !cellEqual(source.Rows[p.src][si], target.Rows[p.dst][ti], tolerance) {
				counts[c]++
				changed = true
			}
		}
		if changed {
			modified++
		}
	}
	return counts, modified
}

func cellEqual(a, b *string, tolerance float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if *a == *b {
		return true
	}
	if tolerance <= 0 {
		return false
	}
	x, errA := strconv.ParseFloat(*a, 64)
	y, errB := strconv.ParseFloat(*b, 64)
	return errA == nil && errB == nil && floatEqual(x, y, tolerance)
}

// floatEqual compares two floats with a relative tolerance.
func floatEqual(a, b, tolerance float64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}
	diff := math.Abs(a - b)
	if a == 0 || b == 0 {
		return diff < tolerance
	}
	return diff/math.Max(math.Abs(a), math.Abs(b)) < tolerance
}

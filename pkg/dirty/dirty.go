// Package dirty corrupts cells of a polluted snapshot the way manual data
// entry does: inconsistent case, typos, separators, placeholder values,
// shuffled attributes, nulls and malformed dates.
package dirty

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/config"
	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/randx"
	"github.com/TFMV/vetsynth/pkg/tables"
)

var (
	ErrUnknownRelation = errors.New("unknown relation")
	ErrUnknownOp       = errors.New("unknown corruption")
	ErrBadParam        = errors.New("invalid corruption parameter")
)

// Frame-level operations. Any other op name applies a Corruptor.
const (
	OpNull                = "null"
	OpPermute             = "permute"
	OpReplaceFromPosition = "replace_from_position"
)

// Step is one corruption of one column.
type Step struct {
	Relation string
	Column   string
	// Op names the corruption, e.g. "lower" or "permute".
	Op       string
	Fraction float64
	// Corruptor is set for cell corruptions.
	Corruptor Corruptor
	// Names maps old to new values for replace_from_position.
	Names map[string]string
}

func (s Step) apply(f *tables.StringFrame, r *randx.Rand) (int, error) {
	switch s.Op {
	case OpNull:
		return NullFraction(f, s.Column, s.Fraction, r)
	case OpPermute:
		return PermuteFraction(f, s.Column, s.Fraction, r)
	case OpReplaceFromPosition:
		return ReplaceFromPosition(f, s.Column, s.Names, r)
	}
	if s.Corruptor == nil {
		return 0, fmt.Errorf("%w %q", ErrUnknownOp, s.Op)
	}
	return ApplyToFraction(f, s.Column, s.Fraction, s.Corruptor, r)
}

// Result reports how many cells one step changed.
type Result struct {
	Relation string `json:"relation"`
	Column   string `json:"column"`
	Op       string `json:"op"`
	Changed  int    `json:"changed"`
}

// Pass applies a recipe of steps in order.
type Pass struct {
	steps []Step
	seed  uint64
	log   *zap.Logger
}

// New returns a pass over steps drawing from seed.
func New(steps []Step, seed uint64, log *zap.Logger) *Pass {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pass{steps: steps, seed: seed, log: log}
}

// Run corrupts frames in place, keyed by relation name.
func (p *Pass) Run(ctx context.Context, frames map[string]*tables.StringFrame) ([]Result, error) {
	results := make([]Result, 0, len(p.steps))
	for i, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, ok := frames[s.Relation]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownRelation, s.Relation)
		}
		r := randx.Derive(p.seed, fmt.Sprintf("dirty/%d/%s/%s", i, s.Relation, s.Column))
		n, err := s.apply(f, r)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s.%s %s): %w", i, s.Relation, s.Column, s.Op, err)
		}
		p.log.Debug("Corruption applied",
			zap.String("relation", s.Relation),
			zap.String("column", s.Column),
			zap.String("op", s.Op),
			zap.Int("changed", n))
		results = append(results, Result{Relation: s.Relation, Column: s.Column, Op: s.Op, Changed: n})
	}
	return results, nil
}

// Relations renders the given relations as text, corrupts them and returns
// them as the dirty stage. The inputs are not modified.
func (p *Pass) Relations(ctx context.Context, rels []core.Relation, mem memory.Allocator) ([]core.Relation, []Result, error) {
	frames := make(map[string]*tables.StringFrame, len(rels))
	for _, rel := range rels {
		frames[rel.Name] = tables.FromRecord(rel.Record)
	}
	results, err := p.Run(ctx, frames)
	if err != nil {
		return nil, nil, err
	}
	out := make([]core.Relation, len(rels))
	for i, rel := range rels {
		out[i] = core.Relation{Name: rel.Name, Stage: core.StageDirty, Record: frames[rel.Name].Record(mem)}
	}
	return out, results, nil
}

// FromConfig builds steps from their configuration form.
func FromConfig(steps []config.DirtyStep) ([]Step, error) {
	out := make([]Step, len(steps))
	for i, ds := range steps {
		s := Step{Relation: ds.Relation, Column: ds.Column, Op: ds.Op, Fraction: ds.Fraction}
		switch ds.Op {
		case OpNull, OpPermute:
		case OpReplaceFromPosition:
			s.Names = ds.Params
		default:
			c, err := NewCorruptor(ds.Op, ds.Params)
			if err != nil {
				return nil, fmt.Errorf("dirty step %d: %w", i, err)
			}
			s.Corruptor = c
		}
		out[i] = s
	}
	return out, nil
}

// NewCorruptor builds a named corruptor. List parameters are separated by
// "|" so that commas and spaces stay usable as values.
func NewCorruptor(op string, params map[string]string) (Corruptor, error) {
	intParam := func(key string, def int) (int, error) {
		v, ok := params[key]
		if !ok {
			return def, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w %s=%q", ErrBadParam, key, v)
		}
		return n, nil
	}
	boolParam := func(key string) (bool, error) {
		v, ok := params[key]
		if !ok {
			return false, nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%w %s=%q", ErrBadParam, key, v)
		}
		return b, nil
	}
	list := func(key string) []string {
		if params[key] == "" {
			return nil
		}
		return strings.Split(params[key], "|")
	}

	switch op {
	case "lower":
		return Lower{}, nil
	case "upper":
		return Upper{}, nil
	case "insert_every":
		n, err := intParam("n", 1)
		if err != nil {
			return nil, err
		}
		return InsertEvery{N: n, Char: params["char"]}, nil
	case "append":
		n, err := intParam("times", 1)
		if err != nil {
			return nil, err
		}
		return Append{Char: params["char"], Times: n}, nil
	case "move_leading_digits":
		b, err := boolParam("add_str")
		if err != nil {
			return nil, err
		}
		return MoveLeadingDigits{AddStr: b}, nil
	case "replace":
		b, err := boolParam("end_only")
		if err != nil {
			return nil, err
		}
		return Replace{Old: params["old"], New: params["new"], EndOnly: b}, nil
	case "double_letter":
		return DoubleLetter{Letters: list("letters")}, nil
	case "insert_alpha":
		return InsertAlpha{}, nil
	case "swap_adjacent":
		return SwapAdjacent{}, nil
	case "replace_with":
		l := list("list")
		if len(l) == 0 {
			return nil, fmt.Errorf("%w: replace_with needs a non-empty list", ErrBadParam)
		}
		return ReplaceWith{List: l}, nil
	case "day_to_first":
		d, err := time.Parse(dateLayout, params["before"])
		if err != nil {
			return nil, fmt.Errorf("%w before=%q", ErrBadParam, params["before"])
		}
		return DayToFirst{Before: d}, nil
	case "swap_day_month":
		return SwapDayMonth{}, nil
	case "replace_year":
		from, err := intParam("from", 0)
		if err != nil {
			return nil, err
		}
		to, err := intParam("to", 0)
		if err != nil {
			return nil, err
		}
		if to < from {
			return nil, fmt.Errorf("%w: year range %d..%d", ErrBadParam, from, to)
		}
		return ReplaceYear{From: from, To: to}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownOp, op)
}

package dirty

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/TFMV/vetsynth/pkg/randx"
)

// Corruptor rewrites one cell. It reports false when the value does not
// qualify and was returned unchanged.
type Corruptor interface {
	Apply(value string, r *randx.Rand) (string, bool)
}

// CorruptorFunc adapts a function to Corruptor.
type CorruptorFunc func(value string, r *randx.Rand) (string, bool)

func (f CorruptorFunc) Apply(value string, r *randx.Rand) (string, bool) { return f(value, r) }

const dateLayout = "2006-01-02"

const alphaNum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// minWordLength is the shortest word the typo corruptors touch.
const minWordLength = 4

type Lower struct{}

func (Lower) Apply(v string, _ *randx.Rand) (string, bool) { return strings.ToLower(v), true }

type Upper struct{}

func (Upper) Apply(v string, _ *randx.Rand) (string, bool) { return strings.ToUpper(v), true }

// InsertEvery joins chunks of N characters with Char: "111" becomes "1_1_1"
// for N=1 and Char="_".
type InsertEvery struct {
	N    int
	Char string
}

func (c InsertEvery) Apply(v string, _ *randx.Rand) (string, bool) {
	if c.N <= 0 || v == "" {
		return v, false
	}
	runes := []rune(v)
	var parts []string
	for i := 0; i < len(runes); i += c.N {
		parts = append(parts, string(runes[i:min(i+c.N, len(runes))]))
	}
	return strings.Join(parts, c.Char), true
}

// Append adds Char Times times at the end.
type Append struct {
	Char  string
	Times int
}

func (c Append) Apply(v string, _ *randx.Rand) (string, bool) {
	return v + strings.Repeat(c.Char, max(c.Times, 1)), true
}

var leadingDigits = regexp.MustCompile(`^(\d+)(.*)$`)

// MoveLeadingDigits turns "22 Main St" into "Main St 22", or
// "Main St str. 22" with AddStr.
type MoveLeadingDigits struct {
	AddStr bool
}

func (c MoveLeadingDigits) Apply(v string, _ *randx.Rand) (string, bool) {
	m := leadingDigits.FindStringSubmatch(v)
	if m == nil {
		return v, false
	}
	rest := strings.TrimSpace(m[2])
	if c.AddStr {
		return rest + " str. " + m[1], true
	}
	return rest + " " + m[1], true
}

// Replace substitutes Old with New everywhere, or only as a suffix.
type Replace struct {
	Old     string
	New     string
	EndOnly bool
}

func (c Replace) Apply(v string, _ *randx.Rand) (string, bool) {
	if c.Old == "" {
		return v, false
	}
	if c.EndOnly {
		if !strings.HasSuffix(v, c.Old) {
			return v, false
		}
		return strings.TrimSuffix(v, c.Old) + c.New, true
	}
	if !strings.Contains(v, c.Old) {
		return v, false
	}
	return strings.ReplaceAll(v, c.Old, c.New), true
}

// DoubleLetter doubles one occurrence of a letter from Letters that is
// present and not already doubled.
type DoubleLetter struct {
	Letters []string
}

func (c DoubleLetter) Apply(v string, r *randx.Rand) (string, bool) {
	var eligible []string
	for _, l := range c.Letters {
		if l != "" && strings.Contains(v, l) && !strings.Contains(v, l+l) {
			eligible = append(eligible, l)
		}
	}
	if len(eligible) == 0 {
		return v, false
	}
	letter := randx.Choice(r, eligible)
	var at []int
	for i := 0; ; {
		k := strings.Index(v[i:], letter)
		if k < 0 {
			break
		}
		at = append(at, i+k)
		i += k + len(letter)
	}
	i := randx.Choice(r, at) + len(letter)
	return v[:i] + letter + v[i:], true
}

// spans returns the [start, end) rune spans of the runs of v whose runes
// satisfy in.
func spans(v []rune, in func(rune) bool) [][2]int {
	var out [][2]int
	start := -1
	for i, c := range v {
		if in(c) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, [2]int{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, [2]int{start, len(v)})
	}
	return out
}

// typoWord picks a run long enough to carry a typo.
func typoWord(v []rune, in func(rune) bool, r *randx.Rand) ([2]int, bool) {
	var long [][2]int
	for _, w := range spans(v, in) {
		if w[1]-w[0] >= minWordLength {
			long = append(long, w)
		}
	}
	if len(long) == 0 {
		return [2]int{}, false
	}
	return randx.Choice(r, long), true
}

// InsertAlpha inserts one random alphanumeric character inside a word.
type InsertAlpha struct{}

func (InsertAlpha) Apply(v string, r *randx.Rand) (string, bool) {
	runes := []rune(v)
	w, ok := typoWord(runes, unicode.IsLetter, r)
	if !ok {
		return v, false
	}
	at := r.Between(w[0], w[1])
	c := rune(alphaNum[r.IntN(len(alphaNum))])
	out := append(append(append([]rune{}, runes[:at]...), c), runes[at:]...)
	return string(out), true
}

// SwapAdjacent swaps two neighbouring characters inside a word.
type SwapAdjacent struct{}

func (SwapAdjacent) Apply(v string, r *randx.Rand) (string, bool) {
	runes := []rune(v)
	w, ok := typoWord(runes, func(c rune) bool { return !unicode.IsSpace(c) }, r)
	if !ok {
		return v, false
	}
	i := r.Between(w[0], w[1]-2)
	runes[i], runes[i+1] = runes[i+1], runes[i]
	return string(runes), true
}

// ReplaceWith swaps the whole value for one drawn from List.
type ReplaceWith struct {
	List []string
}

func (c ReplaceWith) Apply(v string, r *randx.Rand) (string, bool) {
	if len(c.List) == 0 {
		return v, false
	}
	return randx.Choice(r, c.List), true
}

// DayToFirst moves dates earlier than Before to the first of their month.
type DayToFirst struct {
	Before time.Time
}

func (c DayToFirst) Apply(v string, _ *randx.Rand) (string, bool) {
	d, err := time.Parse(dateLayout, v)
	if err != nil || !d.Before(c.Before) {
		return v, false
	}
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).Format(dateLayout), true
}

// SwapDayMonth exchanges day and month when the day can be a month.
type SwapDayMonth struct{}

func (SwapDayMonth) Apply(v string, _ *randx.Rand) (string, bool) {
	d, err := time.Parse(dateLayout, v)
	if err != nil || d.Day() > 12 {
		return v, false
	}
	return time.Date(d.Year(), time.Month(d.Day()), int(d.Month()), 0, 0, 0, 0, time.UTC).Format(dateLayout), true
}

// ReplaceYear moves a date to a random year in [From, To]. February 29
// becomes February 28 when the new year is not a leap year.
type ReplaceYear struct {
	From int
	To   int
}

func (c ReplaceYear) Apply(v string, r *randx.Rand) (string, bool) {
	d, err := time.Parse(dateLayout, v)
	if err != nil || c.To < c.From {
		return v, false
	}
	year := r.Between(c.From, c.To)
	day := d.Day()
	if d.Month() == time.February && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, d.Month(), day, 0, 0, 0, 0, time.UTC).Format(dateLayout), true
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

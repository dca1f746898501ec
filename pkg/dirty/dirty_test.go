package dirty

import (
	"context"
	"slices"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/vetsynth/config"
	"github.com/TFMV/vetsynth/pkg/calendar"
	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/model"
	"github.com/TFMV/vetsynth/pkg/randx"
	"github.com/TFMV/vetsynth/pkg/tables"
)

func str(s string) *string { return &s }

func frame(col string, values ...string) *tables.StringFrame {
	f := &tables.StringFrame{Columns: []string{"id", col}}
	for i, v := range values {
		f.Rows = append(f.Rows, []*string{str(string(rune('a' + i))), str(v)})
	}
	return f
}

func TestCorruptors(t *testing.T) {
	r := randx.New(7)
	tests := []struct {
		name string
		c    Corruptor
		in   string
		want string
		ok   bool
	}{
		{"lower", Lower{}, "Rex", "rex", true},
		{"upper", Upper{}, "Rex", "REX", true},
		{"insert every", InsertEvery{N: 1, Char: "_"}, "111", "1_1_1", true},
		{"insert every three", InsertEvery{N: 3, Char: "-"}, "1234567", "123-456-7", true},
		{"append", Append{Char: "_", Times: 2}, "111", "111__", true},
		{"move digits", MoveLeadingDigits{}, "22 Main St", "Main St 22", true},
		{"move digits str", MoveLeadingDigits{AddStr: true}, "22 Main St", "Main St str. 22", true},
		{"move digits none", MoveLeadingDigits{}, "Main St", "Main St", false},
		{"replace end", Replace{Old: "na", New: "bo", EndOnly: true}, "banana", "banabo", true},
		{"replace all", Replace{Old: "na", New: "bo"}, "banana", "babobo", true},
		{"replace miss", Replace{Old: "y", New: "ie", EndOnly: true}, "Rex", "Rex", false},
		{"double letter", DoubleLetter{Letters: []string{"a"}}, "cat", "caat", true},
		{"already doubled", DoubleLetter{Letters: []string{"l"}}, "bella", "bella", false},
		{"day to first", DayToFirst{Before: calendar.Date(2019, 1, 1)}, "2018-05-19", "2018-05-01", true},
		{"day to first later", DayToFirst{Before: calendar.Date(2019, 1, 1)}, "2020-05-19", "2020-05-19", false},
		{"swap day month", SwapDayMonth{}, "2020-05-09", "2020-09-05", true},
		{"swap day month late day", SwapDayMonth{}, "2020-05-19", "2020-05-19", false},
		{"replace year fixed", ReplaceYear{From: 2019, To: 2019}, "2020-02-29", "2019-02-28", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.c.Apply(tt.in, r)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestTypoCorruptorsKeepLength(t *testing.T) {
	r := randx.New(3)
	got, ok := InsertAlpha{}.Apply("Fluffy", r)
	require.True(t, ok)
	assert.Len(t, got, len("Fluffy")+1)

	got, ok = SwapAdjacent{}.Apply("123456", r)
	require.True(t, ok)
	assert.ElementsMatch(t, []rune("123456"), []rune(got))

	_, ok = InsertAlpha{}.Apply("42", r)
	assert.False(t, ok)
}

func TestReplaceWithPicksFromList(t *testing.T) {
	got, ok := ReplaceWith{List: placeholders}.Apply("Paris", randx.New(1))
	assert.True(t, ok)
	assert.Contains(t, placeholders, got)
}

func TestFrameOperationsRejectBadFractions(t *testing.T) {
	f := frame("name", "Rex", "Tom")
	r := randx.New(1)
	for _, fraction := range []float64{0, -0.1, 1.5} {
		_, err := ApplyToFraction(f, "name", fraction, Lower{}, r)
		assert.ErrorIs(t, err, ErrInvalidFraction)
		_, err = NullFraction(f, "name", fraction, r)
		assert.ErrorIs(t, err, ErrInvalidFraction)
		_, err = PermuteFraction(f, "name", fraction, r)
		assert.ErrorIs(t, err, ErrInvalidFraction)
	}
	_, err := NullFraction(f, "missing", 0.5, r)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestApplyToFractionTouchesFloorOfRows(t *testing.T) {
	f := frame("name", "A", "B", "C", "D", "E", "F", "G", "H", "I", "J")
	changed, err := ApplyToFraction(f, "name", 0.35, Lower{}, randx.New(9))
	require.NoError(t, err)
	assert.Equal(t, 3, changed)
}

func TestNullFraction(t *testing.T) {
	f := frame("name", "A", "B", "C", "D")
	n, err := NullFraction(f, "name", 0.5, randx.New(2))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	nulls := 0
	for _, row := range f.Rows {
		if row[1] == nil {
			nulls++
		}
	}
	assert.Equal(t, 2, nulls)
}

func TestPermuteFractionKeepsValues(t *testing.T) {
	f := frame("breed", "a", "b", "c", "d", "e", "f")
	_, err := PermuteFraction(f, "breed", 1, randx.New(4))
	require.NoError(t, err)
	var got []string
	for _, row := range f.Rows {
		got = append(got, *row[1])
	}
	slices.Sort(got)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, got)
}

func TestReplaceFromPosition(t *testing.T) {
	f := frame("last_name", "Smith", "Jones", "smith", "Smith")
	n, err := ReplaceFromPosition(f, "last_name", map[string]string{"Smith": "Levesques"}, randx.New(5))
	require.NoError(t, err)
	require.Positive(t, n)

	replaced := false
	for _, row := range f.Rows {
		v := *row[1]
		if v == "Levesques" {
			replaced = true
			continue
		}
		assert.False(t, replaced && v != "Jones", "match after the change point kept its old name: %s", v)
	}
	assert.Equal(t, "Levesques", *f.Rows[3][1])
}

func TestFromConfig(t *testing.T) {
	steps, err := FromConfig([]config.DirtyStep{
		{Relation: "owner", Column: "city", Op: "upper", Fraction: 0.5},
		{Relation: "owner", Column: "address", Op: "replace_with", Fraction: 0.1, Params: map[string]string{"list": "/|//| "}},
		{Relation: "doctor", Column: "last_name", Op: "replace_from_position", Params: map[string]string{"Smith": "Assaf"}},
		{Relation: "animal", Column: "dob", Op: "replace_year", Fraction: 0.1, Params: map[string]string{"from": "2005", "to": "2025"}},
		{Relation: "animal", Column: "weight", Op: "null", Fraction: 0.1},
	})
	require.NoError(t, err)
	require.Len(t, steps, 5)
	assert.Equal(t, Upper{}, steps[0].Corruptor)
	assert.Equal(t, ReplaceWith{List: []string{"/", "//", " "}}, steps[1].Corruptor)
	assert.Equal(t, map[string]string{"Smith": "Assaf"}, steps[2].Names)
	assert.Equal(t, ReplaceYear{From: 2005, To: 2025}, steps[3].Corruptor)
	assert.Nil(t, steps[4].Corruptor)

	_, err = FromConfig([]config.DirtyStep{{Relation: "owner", Column: "city", Op: "shout", Fraction: 0.5}})
	assert.ErrorIs(t, err, ErrUnknownOp)
	_, err = FromConfig([]config.DirtyStep{{Relation: "owner", Column: "city", Op: "append", Fraction: 0.5, Params: map[string]string{"times": "x"}}})
	assert.ErrorIs(t, err, ErrBadParam)
}

func TestDefaultRecipeCoversPollutedRelations(t *testing.T) {
	relations := make(map[string]bool)
	for _, s := range DefaultRecipe() {
		relations[s.Relation] = true
		if s.Op != OpReplaceFromPosition {
			assert.Greater(t, s.Fraction, 0.0)
			assert.LessOrEqual(t, s.Fraction, 1.0)
		}
	}
	for _, rel := range []string{model.RelAnimal, model.RelMicrochipCode, model.RelOwner, model.RelMicrochip, model.RelDoctor, model.RelService} {
		assert.True(t, relations[rel], rel)
	}
}

func TestPassRelations(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	services := &model.AU{Services: []model.ServiceAU{
		{Service: model.Service{ID: 1, Name: "Vaccination"}, ServiceV1: 1},
		{Service: model.Service{ID: 2, Name: "Dental cleaning"}, ServiceV1: 2},
	}}
	var rels []core.Relation
	for _, rel := range services.Relations(mem) {
		if rel.Name == model.RelService {
			rels = append(rels, rel)
		} else {
			rel.Release()
		}
	}
	defer func() {
		for _, rel := range rels {
			rel.Release()
		}
	}()

	pass := New([]Step{cell(model.RelService, "service_name", 1, Upper{})}, 1, nil)
	out, results, err := pass.Relations(context.Background(), rels, mem)
	require.NoError(t, err)
	defer func() {
		for _, rel := range out {
			rel.Release()
		}
	}()
	require.Len(t, out, 1)
	assert.Equal(t, core.StageDirty, out[0].Stage)
	assert.Equal(t, []Result{{Relation: "service", Column: "service_name", Op: "upper", Changed: 2}}, results)

	f := tables.FromRecord(out[0].Record)
	j := f.Index("service_name")
	assert.Equal(t, "VACCINATION", *f.Rows[0][j])
	assert.Equal(t, "DENTAL CLEANING", *f.Rows[1][j])

	_, err = New([]Step{cell("nope", "x", 1, Upper{})}, 1, nil).Run(context.Background(), map[string]*tables.StringFrame{})
	assert.ErrorIs(t, err, ErrUnknownRelation)
}

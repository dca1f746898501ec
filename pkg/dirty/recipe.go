package dirty

import (
	"github.com/TFMV/vetsynth/pkg/calendar"
	"github.com/TFMV/vetsynth/pkg/model"
)

// placeholders are the junk values clerks type when a field is unknown.
var placeholders = []string{"/", "//", "///", "*", "**", "***", "-", "--", "---", "##", " ", "   ", ".", "..", "..."}

// renamedDoctors simulates doctors changing their last name part way
// through the history.
var renamedDoctors = map[string]string{
	"Smith":    "Levesques",
	"Odonnell": "Assaf",
}

func cell(rel, col string, fraction float64, c Corruptor) Step {
	return Step{Relation: rel, Column: col, Op: opName(c), Fraction: fraction, Corruptor: c}
}

func nulls(rel, col string, fraction float64) Step {
	return Step{Relation: rel, Column: col, Op: OpNull, Fraction: fraction}
}

func permute(rel, col string, fraction float64) Step {
	return Step{Relation: rel, Column: col, Op: OpPermute, Fraction: fraction}
}

func opName(c Corruptor) string {
	switch c.(type) {
	case Lower:
		return "lower"
	case Upper:
		return "upper"
	case InsertEvery:
		return "insert_every"
	case Append:
		return "append"
	case MoveLeadingDigits:
		return "move_leading_digits"
	case Replace:
		return "replace"
	case DoubleLetter:
		return "double_letter"
	case InsertAlpha:
		return "insert_alpha"
	case SwapAdjacent:
		return "swap_adjacent"
	case ReplaceWith:
		return "replace_with"
	case DayToFirst:
		return "day_to_first"
	case SwapDayMonth:
		return "swap_day_month"
	case ReplaceYear:
		return "replace_year"
	}
	return "custom"
}

// dateSteps degrade a date column: early dates lose their day, some swap
// day and month, some get a wrong year.
func dateSteps(rel, col string, nullFraction float64) []Step {
	return []Step{
		cell(rel, col, 0.78, DayToFirst{Before: calendar.Date(2019, 1, 1)}),
		cell(rel, col, 0.1, SwapDayMonth{}),
		cell(rel, col, 0.1, ReplaceYear{From: 2005, To: 2025}),
		nulls(rel, col, nullFraction),
	}
}

// DefaultRecipe is the standard corruption of the polluted snapshot.
func DefaultRecipe() []Step {
	var steps []Step
	add := func(s ...Step) { steps = append(steps, s...) }
	nameTypos := []string{"l", "n", "b"}
	streetTypos := []string{"l", "n", "b", "s"}

	// animal
	a := model.RelAnimal
	add(
		cell(a, "name", 0.4, Lower{}),
		cell(a, "name", 0.1, DoubleLetter{Letters: nameTypos}),
		cell(a, "name", 0.2, Replace{Old: "y", New: "ie", EndOnly: true}),
		cell(a, "name", 0.1, Replace{Old: "oo", New: "ou"}),
		cell(a, "name", 0.05, InsertAlpha{}),
		cell(a, "name", 0.02, Upper{}),
		cell(a, "name", 0.05, SwapAdjacent{}),
		permute(a, "species", 0.005),
		permute(a, "breed", 0.05),
		permute(a, "gender", 0.01),
		nulls(a, "weight", 0.1),
	)
	add(dateSteps(a, "dob", 0.2)...)

	// microchip_code
	c := model.RelMicrochipCode
	add(
		cell(c, "code", 0.1, InsertEvery{N: 1, Char: "."}),
		cell(c, "code", 0.05, InsertEvery{N: 1, Char: "/"}),
		cell(c, "code", 0.05, InsertEvery{N: 1, Char: "-"}),
		cell(c, "code", 0.05, Append{Char: "-", Times: 1}),
		cell(c, "code", 0.05, Append{Char: "/", Times: 1}),
		cell(c, "code", 0.05, Append{Char: " ", Times: 1}),
		cell(c, "brand", 0.6, Lower{}),
		cell(c, "brand", 0.1, SwapAdjacent{}),
		cell(c, "brand", 0.1, Replace{Old: "-", New: ""}),
		cell(c, "brand", 0.1, Replace{Old: " ", New: ""}),
		cell(c, "brand", 0.4, Replace{Old: "-", New: "_"}),
		cell(c, "provider", 0.1, SwapAdjacent{}),
		cell(c, "provider", 0.6, Lower{}),
		cell(c, "provider", 0.1, InsertAlpha{}),
		nulls(c, "provider", 0.1),
		cell(c, "country", 0.5, Replace{Old: "United Kingdom", New: "UK"}),
		cell(c, "country", 0.5, Replace{Old: "USA", New: "U.S.A"}),
		cell(c, "country", 0.5, Lower{}),
		cell(c, "country", 0.1, SwapAdjacent{}),
		nulls(c, "country", 0.1),
	)

	// owner
	o := model.RelOwner
	for _, col := range []string{"first_name", "last_name"} {
		upper := 0.05
		if col == "last_name" {
			upper = 0.2
		}
		add(
			cell(o, col, 0.4, Lower{}),
			cell(o, col, 0.1, DoubleLetter{Letters: nameTypos}),
			cell(o, col, 0.2, Replace{Old: "y", New: "ie", EndOnly: true}),
			cell(o, col, 0.2, Replace{Old: "ie", New: "y", EndOnly: true}),
			cell(o, col, 0.05, InsertAlpha{}),
			cell(o, col, upper, Upper{}),
			cell(o, col, 0.15, SwapAdjacent{}),
		)
	}
	add(
		cell(o, "last_name", 0.12, ReplaceWith{List: placeholders}),
		cell(o, "address", 0.05, Append{Char: "*", Times: 1}),
		cell(o, "address", 0.01, Append{Char: "-", Times: 1}),
		cell(o, "address", 0.6, Lower{}),
		cell(o, "address", 0.05, Upper{}),
		cell(o, "address", 0.1, DoubleLetter{Letters: streetTypos}),
		cell(o, "address", 0.35, MoveLeadingDigits{AddStr: true}),
		cell(o, "address", 0.2, MoveLeadingDigits{}),
		cell(o, "address", 0.05, InsertAlpha{}),
		cell(o, "address", 0.05, SwapAdjacent{}),
		cell(o, "address", 0.17, ReplaceWith{List: placeholders}),
		nulls(o, "address", 0.07),
		cell(o, "city", 0.02, Append{Char: "*", Times: 1}),
		cell(o, "city", 0.6, Lower{}),
		cell(o, "city", 0.25, Upper{}),
		cell(o, "city", 0.1, DoubleLetter{Letters: streetTypos}),
		cell(o, "city", 0.05, InsertAlpha{}),
		cell(o, "city", 0.05, SwapAdjacent{}),
		cell(o, "city", 0.2, Replace{Old: " ", New: "-", EndOnly: true}),
		cell(o, "postal_code", 0.05, InsertEvery{N: 2, Char: "-"}),
		cell(o, "postal_code", 0.05, SwapAdjacent{}),
		cell(o, "postal_code", 0.02, InsertAlpha{}),
		cell(o, "postal_code", 0.06, ReplaceWith{List: placeholders}),
		nulls(o, "postal_code", 0.21),
		cell(o, "phone_number", 0.01, ReplaceWith{List: placeholders}),
		nulls(o, "phone_number", 0.02),
	)

	// microchip
	m := model.RelMicrochip
	add(
		cell(m, "number", 0.18, InsertEvery{N: 3, Char: "-"}),
		cell(m, "number", 0.07, InsertEvery{N: 3, Char: "."}),
		cell(m, "number", 0.03, InsertEvery{N: 3, Char: "/"}),
		cell(m, "number", 0.11, InsertEvery{N: 3, Char: " "}),
		cell(m, "number", 0.02, Append{Char: "*", Times: 1}),
		cell(m, "number", 0.05, SwapAdjacent{}),
		cell(m, "number", 0.02, ReplaceWith{List: placeholders}),
	)
	add(dateSteps(m, "implant_date", 0.01)...)
	add(permute(m, "location", 0.5))

	// doctor
	d := model.RelDoctor
	add(
		cell(d, "license_number", 0.08, InsertEvery{N: 3, Char: "-"}),
		cell(d, "license_number", 0.02, InsertEvery{N: 3, Char: "."}),
		cell(d, "license_number", 0.02, InsertEvery{N: 3, Char: " "}),
		cell(d, "license_number", 0.15, SwapAdjacent{}),
		cell(d, "license_number", 0.02, ReplaceWith{List: placeholders}),
		cell(d, "first_name", 0.25, Lower{}),
		cell(d, "first_name", 0.05, Upper{}),
		cell(d, "first_name", 0.05, SwapAdjacent{}),
		Step{Relation: d, Column: "last_name", Op: OpReplaceFromPosition, Names: renamedDoctors},
		cell(d, "last_name", 0.1, Lower{}),
		cell(d, "last_name", 0.25, Upper{}),
		cell(d, "last_name", 0.1, SwapAdjacent{}),
		cell(d, "last_name", 0.02, ReplaceWith{List: placeholders}),
	)

	// service
	s := model.RelService
	add(
		cell(s, "service_name", 0.5, Lower{}),
		cell(s, "service_name", 0.2, Upper{}),
		cell(s, "service_name", 0.3, SwapAdjacent{}),
	)
	return steps
}

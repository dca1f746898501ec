// Package schema checks exported relation schemas against their expected
// arrow schemas.
package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// ValidationLevel defines how strict the validation should be.
type ValidationLevel int

const (
	// ValidationLevelStrict requires the same fields in the same order with
	// identical types.
	ValidationLevelStrict ValidationLevel = iota

	// ValidationLevelCompatible requires every expected field with a type of
	// the same family (integer, floating point, temporal, text). Extra fields
	// are warnings.
	ValidationLevelCompatible

	// ValidationLevelRelaxed only requires the expected field names. Used for
	// CSV exports whose types are inferred on read.
	ValidationLevelRelaxed
)

func (l ValidationLevel) String() string {
	switch l {
	case ValidationLevelStrict:
		return "strict"
	case ValidationLevelCompatible:
		return "compatible"
	case ValidationLevelRelaxed:
		return "relaxed"
	}
	return fmt.Sprintf("ValidationLevel(%d)", int(l))
}

// ValidationRule defines an interface for schema validation rules.
type ValidationRule interface {
	// Validate checks if the schema meets the rule's criteria.
	Validate(schema *arrow.Schema) (bool, error)

	// Name returns the human-readable name of the rule.
	Name() string
}

// ValidationResult represents the result of a schema validation.
type ValidationResult struct {
	Valid bool
	// Errors and Warnings are grouped by rule name.
	Errors   map[string][]string
	Warnings map[string][]string
}

// Messages flattens the errors as "rule: message", sorted.
func (r ValidationResult) Messages() []string {
	var out []string
	for rule, msgs := range r.Errors {
		for _, m := range msgs {
			out = append(out, rule+": "+m)
		}
	}
	slices.Sort(out)
	return out
}

// RequiredFieldsRule checks that every named field exists.
type RequiredFieldsRule struct {
	RequiredFields []string
}

func (r *RequiredFieldsRule) Validate(schema *arrow.Schema) (bool, error) {
	var missing []string
	for _, name := range r.RequiredFields {
		if len(schema.FieldIndices(name)) == 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return false, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return true, nil
}

func (r *RequiredFieldsRule) Name() string { return "RequiredFieldsRule" }

// FieldTypeRule checks field types. With Families set, a type only needs
// to share the family of an allowed type.
type FieldTypeRule struct {
	AllowedTypes map[string][]arrow.DataType
	Families     bool
}

func (r *FieldTypeRule) Validate(schema *arrow.Schema) (bool, error) {
	names := make([]string, 0, len(r.AllowedTypes))
	for name := range r.AllowedTypes {
		names = append(names, name)
	}
	slices.Sort(names)

	var errs []string
	for _, name := range names {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			continue
		}
		got := schema.Field(idx[0]).Type
		allowed := r.AllowedTypes[name]
		if !slices.ContainsFunc(allowed, func(want arrow.DataType) bool { return r.matches(got, want) }) {
			errs = append(errs, fmt.Sprintf("field '%s' has type '%s', expected %s", name, got, typeNames(allowed)))
		}
	}
	if len(errs) > 0 {
		return false, fmt.Errorf("field type validation failed: %s", strings.Join(errs, "; "))
	}
	return true, nil
}

func (r *FieldTypeRule) matches(got, want arrow.DataType) bool {
	if arrow.TypeEqual(got, want) {
		return true
	}
	return r.Families && family(got) != "" && family(got) == family(want)
}

func (r *FieldTypeRule) Name() string { return "FieldTypeRule" }

// FieldOrderRule checks the exact field sequence.
type FieldOrderRule struct {
	Fields []string
}

func (r *FieldOrderRule) Validate(schema *arrow.Schema) (bool, error) {
	got := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		got[i] = f.Name
	}
	if !slices.Equal(got, r.Fields) {
		return false, fmt.Errorf("fields [%s], expected [%s]", strings.Join(got, ", "), strings.Join(r.Fields, ", "))
	}
	return true, nil
}

func (r *FieldOrderRule) Name() string { return "FieldOrderRule" }

func family(t arrow.DataType) string {
	switch t.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return "integer"
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return "float"
	case arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP:
		return "temporal"
	case arrow.STRING, arrow.LARGE_STRING, arrow.STRING_VIEW:
		return "text"
	}
	return ""
}

func typeNames(types []arrow.DataType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, " or ")
}

package schema

import (
	"fmt"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
)

// ArrowSchemaValidator applies a set of rules to a schema.
type ArrowSchemaValidator struct {
	rules           []ValidationRule
	validationLevel ValidationLevel
}

// NewArrowSchemaValidator creates a validator with no rules at the
// compatible level.
func NewArrowSchemaValidator() *ArrowSchemaValidator {
	return &ArrowSchemaValidator{validationLevel: ValidationLevelCompatible}
}

// AddRule adds a validation rule to the validator.
func (v *ArrowSchemaValidator) AddRule(rule ValidationRule) {
	v.rules = append(v.rules, rule)
}

// SetValidationLevel sets the level used by ValidateAgainstTarget.
func (v *ArrowSchemaValidator) SetValidationLevel(level ValidationLevel) {
	v.validationLevel = level
}

// ValidateSchema checks schema against every rule added so far.
func (v *ArrowSchemaValidator) ValidateSchema(schema *arrow.Schema) ValidationResult {
	return run(v.rules, schema)
}

// ValidateAgainstTarget checks schema against the expected target at the
// validator's level, on top of the added rules.
func (v *ArrowSchemaValidator) ValidateAgainstTarget(schema, target *arrow.Schema) ValidationResult {
	rules := append(slices.Clone(v.rules), RulesFor(target, v.validationLevel)...)
	res := run(rules, schema)
	if v.validationLevel != ValidationLevelStrict {
		for _, f := range schema.Fields() {
			if len(target.FieldIndices(f.Name)) == 0 {
				res.Warnings["ExtraFields"] = append(res.Warnings["ExtraFields"], fmt.Sprintf("unexpected field '%s'", f.Name))
			}
		}
	}
	return res
}

// RulesFor derives the rules that check a schema against target at level.
func RulesFor(target *arrow.Schema, level ValidationLevel) []ValidationRule {
	names := make([]string, target.NumFields())
	types := make(map[string][]arrow.DataType, target.NumFields())
	for i, f := range target.Fields() {
		names[i] = f.Name
		types[f.Name] = []arrow.DataType{f.Type}
	}
	switch level {
	case ValidationLevelStrict:
		return []ValidationRule{&FieldOrderRule{Fields: names}, &FieldTypeRule{AllowedTypes: types}}
	case ValidationLevelCompatible:
		return []ValidationRule{&RequiredFieldsRule{RequiredFields: names}, &FieldTypeRule{AllowedTypes: types, Families: true}}
	default:
		return []ValidationRule{&RequiredFieldsRule{RequiredFields: names}}
	}
}

func run(rules []ValidationRule, schema *arrow.Schema) ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Errors:   make(map[string][]string),
		Warnings: make(map[string][]string),
	}
	for _, rule := range rules {
		valid, err := rule.Validate(schema)
		if valid {
			continue
		}
		res.Valid = false
		if err != nil {
			res.Errors[rule.Name()] = append(res.Errors[rule.Name()], err.Error())
		}
	}
	return res
}

package schema

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expected() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id_animal", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "dob", Type: arrow.FixedWidthTypes.Date32},
		{Name: "weight", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
}

func TestRequiredFieldsRule(t *testing.T) {
	rule := &RequiredFieldsRule{RequiredFields: []string{"id_animal", "name"}}
	valid, err := rule.Validate(expected())
	assert.True(t, valid)
	assert.NoError(t, err)

	rule.RequiredFields = append(rule.RequiredFields, "age")
	valid, err = rule.Validate(expected())
	assert.False(t, valid)
	assert.ErrorContains(t, err, "age")
}

func TestFieldTypeRule(t *testing.T) {
	rule := &FieldTypeRule{AllowedTypes: map[string][]arrow.DataType{
		"id_animal": {arrow.PrimitiveTypes.Int32},
		"weight":    {arrow.PrimitiveTypes.Float32, arrow.PrimitiveTypes.Float64},
	}}
	valid, err := rule.Validate(expected())
	assert.False(t, valid)
	assert.ErrorContains(t, err, "field 'id_animal'")

	rule.Families = true
	valid, err = rule.Validate(expected())
	assert.True(t, valid)
	assert.NoError(t, err)
}

func TestFieldOrderRule(t *testing.T) {
	rule := &FieldOrderRule{Fields: []string{"id_animal", "dob", "name", "weight"}}
	valid, err := rule.Validate(expected())
	assert.False(t, valid)
	assert.ErrorContains(t, err, "expected [id_animal, dob, name, weight]")
}

func TestValidateAgainstTarget(t *testing.T) {
	// CSV inference widens dates to timestamps and adds no index column.
	inferred := arrow.NewSchema([]arrow.Field{
		{Name: "id_animal", Type: arrow.PrimitiveTypes.Int64},
		{Name: "weight", Type: arrow.PrimitiveTypes.Float64},
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "dob", Type: &arrow.TimestampType{Unit: arrow.Second}},
		{Name: "extra", Type: arrow.BinaryTypes.String},
	}, nil)

	tests := []struct {
		level    ValidationLevel
		valid    bool
		failing  string
		warnings int
	}{
		{ValidationLevelStrict, false, "FieldOrderRule", 0},
		{ValidationLevelCompatible, true, "", 1},
		{ValidationLevelRelaxed, true, "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			v := NewArrowSchemaValidator()
			v.SetValidationLevel(tt.level)
			res := v.ValidateAgainstTarget(inferred, expected())
			assert.Equal(t, tt.valid, res.Valid)
			if tt.failing != "" {
				assert.Contains(t, res.Errors, tt.failing)
			}
			assert.Len(t, res.Warnings["ExtraFields"], tt.warnings)
		})
	}
}

func TestCompatibleRejectsOtherFamily(t *testing.T) {
	text := arrow.NewSchema([]arrow.Field{
		{Name: "id_animal", Type: arrow.BinaryTypes.String},
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "dob", Type: arrow.BinaryTypes.String},
		{Name: "weight", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
	v := NewArrowSchemaValidator()
	res := v.ValidateAgainstTarget(text, expected())
	require.False(t, res.Valid)
	msgs := res.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "field 'dob'")
	assert.Contains(t, msgs[0], "field 'id_animal'")
}

func TestValidateSchemaWithAddedRules(t *testing.T) {
	v := NewArrowSchemaValidator()
	assert.True(t, v.ValidateSchema(expected()).Valid)
	v.AddRule(&RequiredFieldsRule{RequiredFields: []string{"hash_id"}})
	res := v.ValidateSchema(expected())
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"RequiredFieldsRule: missing required fields: hash_id"}, res.Messages())
}

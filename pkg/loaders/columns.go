package loaders

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// dialect maps arrow types to column types of one database.
type dialect struct {
	quote    func(string) string
	types    map[arrow.Type]string
	fallback string
}

func (d dialect) createTable(table string, schema *arrow.Schema) string {
	cols := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		typ, ok := d.types[f.Type.ID()]
		if !ok {
			typ = d.fallback
		}
		cols[i] = d.quote(f.Name) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))
}

// rowValues converts row i of rec to driver values. Dates become time.Time,
// nulls become nil.
func rowValues(rec arrow.Record, i int) ([]any, error) {
	vals := make([]any, rec.NumCols())
	for j, col := range rec.Columns() {
		if col.IsNull(i) {
			continue
		}
		switch c := col.(type) {
		case *array.Int64:
			vals[j] = c.Value(i)
		case *array.Float64:
			vals[j] = c.Value(i)
		case *array.String:
			vals[j] = c.Value(i)
		case *array.Date32:
			vals[j] = c.Value(i).ToTime()
		case *array.Boolean:
			vals[j] = c.Value(i)
		default:
			return nil, fmt.Errorf("unsupported column type %s for %s", col.DataType(), rec.ColumnName(j))
		}
	}
	return vals, nil
}

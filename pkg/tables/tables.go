// Package tables turns typed row slices into Arrow records.
package tables

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Column describes one output column of a relation with rows of type T.
type Column[T any] struct {
	field  arrow.Field
	append func(b array.Builder, row T)
}

// Name returns the column name.
func (c Column[T]) Name() string { return c.field.Name }

// Int is a non-null int64 column.
func Int[T any](name string, get func(T) int) Column[T] {
	return Column[T]{
		field: arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64},
		append: func(b array.Builder, row T) {
			b.(*array.Int64Builder).Append(int64(get(row)))
		},
	}
}

// OptInt is a nullable int64 column; a nil pointer is null.
func OptInt[T any](name string, get func(T) *int) Column[T] {
	return Column[T]{
		field: arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		append: func(b array.Builder, row T) {
			if v := get(row); v != nil {
				b.(*array.Int64Builder).Append(int64(*v))
			} else {
				b.AppendNull()
			}
		},
	}
}

// Float is a non-null float64 column.
func Float[T any](name string, get func(T) float64) Column[T] {
	return Column[T]{
		field: arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64},
		append: func(b array.Builder, row T) {
			b.(*array.Float64Builder).Append(get(row))
		},
	}
}

// String is a non-null utf8 column.
func String[T any](name string, get func(T) string) Column[T] {
	return Column[T]{
		field: arrow.Field{Name: name, Type: arrow.BinaryTypes.String},
		append: func(b array.Builder, row T) {
			b.(*array.StringBuilder).Append(get(row))
		},
	}
}

// OptString is a nullable utf8 column; a nil pointer is null.
func OptString[T any](name string, get func(T) *string) Column[T] {
	return Column[T]{
		field: arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true},
		append: func(b array.Builder, row T) {
			if v := get(row); v != nil {
				b.(*array.StringBuilder).Append(*v)
			} else {
				b.AppendNull()
			}
		},
	}
}

// Date is a non-null date32 column.
func Date[T any](name string, get func(T) time.Time) Column[T] {
	return Column[T]{
		field: arrow.Field{Name: name, Type: arrow.FixedWidthTypes.Date32},
		append: func(b array.Builder, row T) {
			b.(*array.Date32Builder).Append(arrow.Date32FromTime(get(row)))
		},
	}
}

// OptDate is a nullable date32 column; a nil pointer is null.
func OptDate[T any](name string, get func(T) *time.Time) Column[T] {
	return Column[T]{
		field: arrow.Field{Name: name, Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		append: func(b array.Builder, row T) {
			if v := get(row); v != nil {
				b.(*array.Date32Builder).Append(arrow.Date32FromTime(*v))
			} else {
				b.AppendNull()
			}
		},
	}
}

// Schema returns the arrow schema of cols.
func Schema[T any](cols []Column[T]) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = c.field
	}
	return arrow.NewSchema(fields, nil)
}

// Record builds a single record holding rows. The caller owns the result.
func Record[T any](mem memory.Allocator, cols []Column[T], rows []T) arrow.Record {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewRecordBuilder(mem, Schema(cols))
	defer b.Release()
	for i := range cols {
		b.Field(i).Reserve(len(rows))
	}
	for _, row := range rows {
		for i, c := range cols {
			c.append(b.Field(i), row)
		}
	}
	return b.NewRecord()
}

// Adapt reuses cols for rows of type U by projecting each U to a T.
func Adapt[T, U any](cols []Column[T], project func(U) T) []Column[U] {
	out := make([]Column[U], len(cols))
	for i, c := range cols {
		appendT := c.append
		out[i] = Column[U]{
			field: c.field,
			append: func(b array.Builder, row U) {
				appendT(b, project(row))
			},
		}
	}
	return out
}

package tables

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// StringFrame is a relation held as nullable text cells, the shape the
// dirty-data pass works on.
type StringFrame struct {
	Columns []string
	// Rows[i][j] is the cell of row i, column j; nil is null.
	Rows [][]*string
}

// FromRecord renders every cell of rec as text. Date32 cells render as
// YYYY-MM-DD.
func FromRecord(rec arrow.Record) *StringFrame {
	f := &StringFrame{Columns: make([]string, rec.NumCols())}
	for j, fld := range rec.Schema().Fields() {
		f.Columns[j] = fld.Name
	}
	n := int(rec.NumRows())
	f.Rows = make([][]*string, n)
	for i := range n {
		f.Rows[i] = make([]*string, len(f.Columns))
	}
	for j := range f.Columns {
		col := rec.Column(j)
		for i := range n {
			if col.IsNull(i) {
				continue
			}
			s := cellString(col, i)
			f.Rows[i][j] = &s
		}
	}
	return f
}

func cellString(col arrow.Array, i int) string {
	if d, ok := col.(*array.Date32); ok {
		return d.Value(i).ToTime().Format("2006-01-02")
	}
	return col.ValueStr(i)
}

// Index returns the position of column name, or -1.
func (f *StringFrame) Index(name string) int {
	for j, c := range f.Columns {
		if c == name {
			return j
		}
	}
	return -1
}

// Record builds an all-utf8 nullable record from the frame.
func (f *StringFrame) Record(mem memory.Allocator) arrow.Record {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	fields := make([]arrow.Field, len(f.Columns))
	for j, c := range f.Columns {
		fields[j] = arrow.Field{Name: c, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	b := array.NewRecordBuilder(mem, arrow.NewSchema(fields, nil))
	defer b.Release()
	for _, row := range f.Rows {
		for j, v := range row {
			sb := b.Field(j).(*array.StringBuilder)
			if v == nil {
				sb.AppendNull()
			} else {
				sb.Append(*v)
			}
		}
	}
	return b.NewRecord()
}

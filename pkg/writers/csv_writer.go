package writers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/vetsynth/pkg/core"
)

// indexField is the unnamed leading row-number column of CSV exports.
var indexField = arrow.Field{Name: "", Type: arrow.PrimitiveTypes.Int64}

// CSVWriter implements a writer for CSV files with a header row. Nulls are
// written as empty cells.
type CSVWriter struct {
	writer *csv.Writer
	file   *os.File
	index  bool
	rows   int64
	mem    memory.Allocator
}

// NewCSVWriter creates a new CSV writer.
func NewCSVWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for CSV writer")
	}

	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}

	// The csv writer needs the schema, so it is created on the first record
	return &CSVWriter{
		file:  file,
		index: config.IndexColumn,
		mem:   memory.NewGoAllocator(),
	}, nil
}

// Write writes a record to the file.
func (w *CSVWriter) Write(ctx context.Context, record arrow.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if w.index {
		record = w.withIndex(record)
		defer record.Release()
	}

	if w.writer == nil {
		w.writer = csv.NewWriter(w.file, record.Schema(),
			csv.WithHeader(true),
			csv.WithNullWriter(""),
		)
	}

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// withIndex prepends the running row number to record.
func (w *CSVWriter) withIndex(record arrow.Record) arrow.Record {
	b := array.NewInt64Builder(w.mem)
	defer b.Release()
	for i := range record.NumRows() {
		b.Append(w.rows + i)
	}
	w.rows += record.NumRows()
	idx := b.NewArray()
	defer idx.Release()

	fields := append([]arrow.Field{indexField}, record.Schema().Fields()...)
	cols := append([]arrow.Array{idx}, record.Columns()...)
	return array.NewRecord(arrow.NewSchema(fields, nil), cols, record.NumRows())
}

// Close flushes pending rows and closes the file.
func (w *CSVWriter) Close() error {
	var err error

	if w.writer != nil {
		err = w.writer.Flush()
	}

	if w.file != nil {
		if closeErr := w.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	return err
}

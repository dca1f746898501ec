package writers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/TFMV/vetsynth/pkg/core"
)

// JSONWriter writes a relation as a JSON array of objects whose keys keep
// the column order. Dates render as YYYY-MM-DD and nulls as null.
type JSONWriter struct {
	file     *os.File
	buf      *bufio.Writer
	firstRow bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for JSON writer")
	}

	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON file: %w", err)
	}

	buf := bufio.NewWriter(file)
	if _, err := buf.WriteString("["); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write opening bracket: %w", err)
	}

	return &JSONWriter{file: file, buf: buf, firstRow: true}, nil
}

// Write writes a record to the file.
func (w *JSONWriter) Write(ctx context.Context, record arrow.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fields := record.Schema().Fields()
	keys := make([][]byte, len(fields))
	for j, f := range fields {
		k, err := json.Marshal(f.Name)
		if err != nil {
			return err
		}
		keys[j] = k
	}

	for i := range int(record.NumRows()) {
		sep := ",\n  {"
		if w.firstRow {
			sep = "\n  {"
			w.firstRow = false
		}
		w.buf.WriteString(sep)
		for j := range fields {
			if j > 0 {
				w.buf.WriteString(", ")
			}
			w.buf.Write(keys[j])
			w.buf.WriteString(": ")
			v, err := json.Marshal(cellValue(record.Column(j), i))
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", fields[j].Name, err)
			}
			w.buf.Write(v)
		}
		if _, err := w.buf.WriteString("}"); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// cellValue returns the JSON-encodable value of row i.
func cellValue(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch col := col.(type) {
	case *array.Int64:
		return col.Value(i)
	case *array.Int32:
		return col.Value(i)
	case *array.Float64:
		return col.Value(i)
	case *array.Boolean:
		return col.Value(i)
	case *array.String:
		return col.Value(i)
	case *array.Date32:
		return col.Value(i).ToTime().Format("2006-01-02")
	default:
		return col.ValueStr(i)
	}
}

// Close closes the array and the file.
func (w *JSONWriter) Close() error {
	var err error

	if _, writeErr := w.buf.WriteString("\n]\n"); writeErr != nil {
		err = writeErr
	}
	if flushErr := w.buf.Flush(); flushErr != nil && err == nil {
		err = flushErr
	}

	if closeErr := w.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}

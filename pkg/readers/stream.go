package readers

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// defaultBatchSize is used when the config leaves BatchSize at zero.
const defaultBatchSize = 64 * 1024

// streamReader adapts an array.RecordReader to core.DatasetReader. The
// format readers only open the file and build the record stream.
type streamReader struct {
	src     array.RecordReader
	closers []io.Closer
	project func(arrow.Record) arrow.Record
	schema  *arrow.Schema
	alloc   memory.Allocator
}

func newStreamReader(src array.RecordReader, alloc memory.Allocator, closers ...io.Closer) *streamReader {
	schema := src.Schema()
	if schema == nil {
		schema = arrow.NewSchema(nil, nil)
	}
	return &streamReader{
		src:     src,
		closers: closers,
		schema:  schema,
		alloc:   alloc,
	}
}

// Read returns the next batch. The caller owns the returned record.
func (r *streamReader) Read(ctx context.Context) (arrow.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !r.src.Next() {
		if err := r.src.Err(); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		return nil, io.EOF
	}

	rec := r.src.Record()
	if r.project != nil {
		return r.project(rec), nil
	}
	rec.Retain()
	return rec, nil
}

// ReadAll drains the stream into a single record.
func (r *streamReader) ReadAll(ctx context.Context) (arrow.Record, error) {
	var batches []arrow.Record
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()

	for {
		rec, err := r.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		batches = append(batches, rec)
	}

	if len(batches) == 0 {
		return r.empty(), nil
	}
	if len(batches) == 1 {
		batches[0].Retain()
		return batches[0], nil
	}

	table := array.NewTableFromRecords(r.schema, batches)
	defer table.Release()

	tr := array.NewTableReader(table, table.NumRows())
	defer tr.Release()

	if !tr.Next() {
		return nil, fmt.Errorf("failed to combine %d batches", len(batches))
	}
	rec := tr.Record()
	rec.Retain()
	return rec, nil
}

// empty builds a zero-row record with the reader schema.
func (r *streamReader) empty() arrow.Record {
	b := array.NewRecordBuilder(r.alloc, r.schema)
	defer b.Release()
	return b.NewRecord()
}

// Schema returns the schema of the dataset.
func (r *streamReader) Schema() *arrow.Schema {
	return r.schema
}

// Close releases the stream and closes the underlying file.
func (r *streamReader) Close() error {
	if r.src != nil {
		r.src.Release()
		r.src = nil
	}

	var err error
	for _, c := range r.closers {
		if closeErr := c.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	r.closers = nil
	return err
}

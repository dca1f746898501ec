package readers

import (
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/vetsynth/pkg/core"
)

// NewCSVReader opens a CSV export with a header row. Column types are
// inferred from the first batch and empty cells read as null. A leading
// unnamed index column, as written by the CSV writer, is dropped.
func NewCSVReader(config core.ReaderConfig) (core.DatasetReader, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for CSV reader")
	}

	file, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}

	batch := config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	alloc := memory.NewGoAllocator()
	src := csv.NewInferringReader(file,
		csv.WithAllocator(alloc),
		csv.WithChunk(int(batch)),
		csv.WithHeader(true),
		csv.WithNullReader(true, ""),
	)

	// The inferring reader only knows its schema after the first batch.
	if !src.Next() && src.Err() != nil {
		src.Release()
		file.Close()
		return nil, fmt.Errorf("failed to read CSV header: %w", src.Err())
	}

	r := newStreamReader(&primed{RecordReader: src}, alloc, file)
	if s := r.schema; s != nil && s.NumFields() > 0 && s.Field(0).Name == "" {
		r.schema = arrow.NewSchema(s.Fields()[1:], nil)
		r.project = dropFirst(r.schema)
	}
	return r, nil
}

// primed replays the batch consumed while opening the reader.
type primed struct {
	array.RecordReader
	replayed bool
}

func (p *primed) Next() bool {
	if !p.replayed {
		p.replayed = true
		return p.RecordReader.Record() != nil
	}
	return p.RecordReader.Next()
}

// dropFirst returns a projection that strips the leading column.
func dropFirst(schema *arrow.Schema) func(arrow.Record) arrow.Record {
	return func(rec arrow.Record) arrow.Record {
		return array.NewRecord(schema, rec.Columns()[1:], rec.NumRows())
	}
}

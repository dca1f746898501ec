package writers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/TFMV/vetsynth/pkg/core"
)

// ArrowWriter writes one relation to an Arrow IPC file. The file schema
// carries the relation and stage, so `vetsynth inspect` and re-reads can
// tell which relation a file holds without relying on its name.
type ArrowWriter struct {
	writer   *ipc.FileWriter
	file     *os.File
	metadata arrow.Metadata
}

// NewArrowWriter creates an Arrow IPC writer for config.Path.
func NewArrowWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Arrow writer")
	}

	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow file: %w", err)
	}

	return &ArrowWriter{
		file:     file,
		metadata: core.RelationMetadata(config.Relation, config.Stage),
	}, nil
}

// Write appends a batch. Every batch must share the first batch's fields.
func (w *ArrowWriter) Write(ctx context.Context, record arrow.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	tagged := withMetadata(record, w.metadata)
	defer tagged.Release()

	if w.writer == nil {
		writer, err := ipc.NewFileWriter(w.file, ipc.WithSchema(tagged.Schema()))
		if err != nil {
			return fmt.Errorf("failed to create Arrow writer: %w", err)
		}
		w.writer = writer
	}

	if err := w.writer.Write(tagged); err != nil {
		return fmt.Errorf("failed to write %s batch: %w", relationName(w.metadata), err)
	}
	return nil
}

// Close writes the file footer and closes the file.
func (w *ArrowWriter) Close() error {
	var err error
	if w.writer != nil {
		err = w.writer.Close()
	}
	if w.file != nil {
		if closeErr := w.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// withMetadata returns record with md merged into its schema metadata,
// replacing keys both define. The caller releases the result.
func withMetadata(record arrow.Record, md arrow.Metadata) arrow.Record {
	if md.Len() == 0 {
		record.Retain()
		return record
	}

	existing := record.Schema().Metadata()
	keys := make([]string, 0, existing.Len()+md.Len())
	values := make([]string, 0, existing.Len()+md.Len())
	for i, k := range existing.Keys() {
		if md.FindKey(k) < 0 {
			keys = append(keys, k)
			values = append(values, existing.Values()[i])
		}
	}
	keys = append(keys, md.Keys()...)
	values = append(values, md.Values()...)

	merged := arrow.NewMetadata(keys, values)
	schema := arrow.NewSchema(record.Schema().Fields(), &merged)
	return array.NewRecord(schema, record.Columns(), record.NumRows())
}

func relationName(md arrow.Metadata) string {
	if i := md.FindKey(core.MetadataRelation); i >= 0 {
		return md.Values()[i]
	}
	return "record"
}

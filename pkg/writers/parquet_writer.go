package writers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/TFMV/vetsynth/pkg/core"
)

// ParquetWriter implements a writer for Parquet files.
type ParquetWriter struct {
	writer     *pqarrow.FileWriter
	file       *os.File
	properties pqarrow.ArrowWriterProperties
	metadata   arrow.Metadata
}

// NewParquetWriter creates a new Parquet writer.
func NewParquetWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Parquet writer")
	}

	file, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet file: %w", err)
	}

	// Storing the arrow schema keeps date32 columns as dates on re-read
	return &ParquetWriter{
		file:       file,
		properties: pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()),
		metadata:   core.RelationMetadata(config.Relation, config.Stage),
	}, nil
}

// Write writes a record to the file.
func (w *ParquetWriter) Write(ctx context.Context, record arrow.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	tagged := withMetadata(record, w.metadata)
	defer tagged.Release()

	// The file writer needs the schema, so it is created on the first record
	if w.writer == nil {
		writeProps := parquet.NewWriterProperties(
			parquet.WithCompression(compress.Codecs.Snappy),
			parquet.WithDictionaryDefault(true),
		)
		writer, err := pqarrow.NewFileWriter(tagged.Schema(), w.file, writeProps, w.properties)
		if err != nil {
			return fmt.Errorf("failed to create Parquet writer: %w", err)
		}
		w.writer = writer
	}

	if err := w.writer.Write(tagged); err != nil {
		return fmt.Errorf("failed to write %s batch: %w", relationName(w.metadata), err)
	}
	return nil
}

// Close closes the writer and flushes any pending data. The file writer
// may already have closed the file.
func (w *ParquetWriter) Close() error {
	var err error

	if w.writer != nil {
		err = w.writer.Close()
	}

	if w.file != nil {
		if closeErr := w.file.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && err == nil {
			err = closeErr
		}
	}

	return err
}

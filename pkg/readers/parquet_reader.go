package readers

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/TFMV/vetsynth/pkg/core"
)

// NewParquetReader opens a Parquet export. The stored Arrow schema is
// restored, so date32 columns come back as dates. The relation recorded in
// the file's key-value metadata is put back on the schema.
func NewParquetReader(config core.ReaderConfig) (core.DatasetReader, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for Parquet reader")
	}

	batch := config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	pf, err := file.OpenParquetFile(config.Path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}

	alloc := memory.NewGoAllocator()
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{
		Parallel:  true,
		BatchSize: batch,
	}, alloc)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}

	rr, err := fr.GetRecordReader(context.Background(), nil, nil)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("failed to create record reader: %w", err)
	}

	sr := newStreamReader(rr, alloc, pf)
	kv := pf.MetaData().KeyValueMetadata()
	if rel := kv.FindValue(core.MetadataRelation); rel != nil {
		stage := ""
		if v := kv.FindValue(core.MetadataStage); v != nil {
			stage = *v
		}
		md := core.RelationMetadata(*rel, core.Stage(stage))
		sr.schema = arrow.NewSchema(sr.schema.Fields(), &md)
	}
	return sr, nil
}

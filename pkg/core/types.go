// Package core provides the shared types and interfaces for exporting,
// re-reading and loading vetsynth relations.
package core

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// Stage identifies which version of the database a relation belongs to.
type Stage string

const (
	// StageClean is the generated ground truth.
	StageClean Stage = "rel"
	// StageAU is the artificial-unicity polluted snapshot.
	StageAU Stage = "au"
	// StageDirty is the AU snapshot with cell-level corruption.
	StageDirty Stage = "dirty"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageClean, StageAU, StageDirty}

// Relation is one named table of a snapshot.
type Relation struct {
	// Name is the relation name, e.g. "animal".
	Name string

	// Stage is the snapshot the relation belongs to.
	Stage Stage

	// Record holds the rows. The Relation owns one reference.
	Record arrow.Record
}

// FileName returns the export file name for the relation with extension ext.
func (r Relation) FileName(ext string) string {
	return r.Name + "_" + string(r.Stage) + "." + ext
}

// Schema metadata keys naming the relation an exported file holds.
const (
	MetadataRelation = "vetsynth.relation"
	MetadataStage    = "vetsynth.stage"
)

// RelationMetadata returns the schema metadata naming relation and stage.
// Empty values are left out.
func RelationMetadata(relation string, stage Stage) arrow.Metadata {
	var keys, values []string
	if relation != "" {
		keys, values = append(keys, MetadataRelation), append(values, relation)
	}
	if stage != "" {
		keys, values = append(keys, MetadataStage), append(values, string(stage))
	}
	return arrow.NewMetadata(keys, values)
}

// RelationFromSchema reads back the relation and stage recorded by
// RelationMetadata. ok is false when the schema names no relation.
func RelationFromSchema(schema *arrow.Schema) (relation string, stage Stage, ok bool) {
	md := schema.Metadata()
	i := md.FindKey(MetadataRelation)
	if i < 0 {
		return "", "", false
	}
	if j := md.FindKey(MetadataStage); j >= 0 {
		stage = Stage(md.Values()[j])
	}
	return md.Values()[i], stage, true
}

// Release drops the record reference.
func (r Relation) Release() {
	if r.Record != nil {
		r.Record.Release()
	}
}

// DatasetReader defines an interface for reading data from various sources.
type DatasetReader interface {
	// Read returns a record batch and an error if any.
	// Returns io.EOF when there are no more batches.
	Read(ctx context.Context) (arrow.Record, error)

	// ReadAll returns the whole dataset as a single record.
	ReadAll(ctx context.Context) (arrow.Record, error)

	// Schema returns the schema of the dataset.
	Schema() *arrow.Schema

	// Close closes the reader and releases resources.
	Close() error
}

// DatasetWriter defines an interface for writing data to various destinations.
type DatasetWriter interface {
	// Write writes a record to the destination.
	Write(ctx context.Context, record arrow.Record) error

	// Close closes the writer and flushes any pending data.
	Close() error
}

// Loader bulk-loads relations into a database.
type Loader interface {
	// Load replaces the contents of schema.relation with the record.
	Load(ctx context.Context, schema string, rel Relation) error

	// Close releases the connection.
	Close() error
}

// ReaderConfig provides configuration for creating a reader.
type ReaderConfig struct {
	// Type is the type of the reader.
	Type string

	// Path is the path to the file.
	Path string

	// BatchSize is the size of batches to read.
	BatchSize int64
}

// WriterConfig provides configuration for creating a writer.
type WriterConfig struct {
	// Type is the type of the writer.
	Type string

	// Path is the path to the file.
	Path string

	// IndexColumn prepends an unnamed 0-based row index column (CSV only).
	IndexColumn bool

	// Relation and Stage are stored in the schema metadata of the arrow
	// and parquet formats. Both are optional.
	Relation string
	Stage    Stage
}

// LoaderConfig provides configuration for creating a loader.
type LoaderConfig struct {
	// Driver selects the backend: postgres, sqlite or adbc.
	Driver string

	// DSN is the connection string.
	DSN string

	// DriverPath is the shared library for the adbc backend.
	DriverPath string
}

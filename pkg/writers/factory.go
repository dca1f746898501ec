// Package writers provides implementations of relation writers for the
// export formats.
package writers

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/TFMV/vetsynth/pkg/core"
)

// ErrUnsupportedFormat is returned for a writer type nobody registered.
var ErrUnsupportedFormat = errors.New("unsupported writer type")

// Factory creates a writer based on the given configuration.
type Factory struct {
	// registered writers by type
	writers map[string]Creator
}

// Creator is a function that creates a writer from a configuration.
type Creator func(config core.WriterConfig) (core.DatasetWriter, error)

// NewFactory creates a new writer factory.
func NewFactory() *Factory {
	return &Factory{
		writers: make(map[string]Creator),
	}
}

// Register registers a creator for a writer type.
func (f *Factory) Register(typ string, creator Creator) {
	f.writers[typ] = creator
}

// Create creates a writer based on the given configuration.
func (f *Factory) Create(config core.WriterConfig) (core.DatasetWriter, error) {
	creator, ok := f.writers[config.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, config.Type)
	}
	return creator(config)
}

// Types lists the registered writer types in sorted order.
func (f *Factory) Types() []string {
	types := lo.Keys(f.writers)
	slices.Sort(types)
	return types
}

// DefaultFactory is the default writer factory with built-in writer types.
var DefaultFactory = NewFactory()

// init registers built-in writer types.
func init() {
	DefaultFactory.Register("csv", NewCSVWriter)
	DefaultFactory.Register("parquet", NewParquetWriter)
	DefaultFactory.Register("arrow", NewArrowWriter)
	DefaultFactory.Register("json", NewJSONWriter)
}

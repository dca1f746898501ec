// Package loaders bulk-loads exported relations into a database, one
// schema per snapshot stage.
package loaders

import (
	"errors"
	"fmt"

	"github.com/TFMV/vetsynth/pkg/core"
)

// ErrUnsupportedDriver is returned for a driver nobody registered.
var ErrUnsupportedDriver = errors.New("unsupported loader driver")

// Creator opens a loader from a configuration.
type Creator func(config core.LoaderConfig) (core.Loader, error)

// Factory creates loaders by driver name.
type Factory struct {
	loaders map[string]Creator
}

// NewFactory creates a new loader factory.
func NewFactory() *Factory {
	return &Factory{loaders: make(map[string]Creator)}
}

// Register registers a creator for a driver.
func (f *Factory) Register(driver string, creator Creator) {
	f.loaders[driver] = creator
}

// Create opens a loader for config.Driver.
func (f *Factory) Create(config core.LoaderConfig) (core.Loader, error) {
	creator, ok := f.loaders[config.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, config.Driver)
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("dsn is required for the %s loader", config.Driver)
	}
	return creator(config)
}

// DefaultFactory is the default loader factory with built-in drivers.
var DefaultFactory = NewFactory()

func init() {
	DefaultFactory.Register("postgres", NewPostgresLoader)
	DefaultFactory.Register("sqlite", NewSQLiteLoader)
	DefaultFactory.Register("adbc", NewADBCLoader)
}

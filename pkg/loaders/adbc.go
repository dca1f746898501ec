package loaders

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/apache/arrow-adbc/go/adbc"
	"github.com/apache/arrow-adbc/go/adbc/drivermgr"

	"github.com/TFMV/vetsynth/pkg/core"
)

// ingestTargetSchema selects the schema of the ingest target table.
const ingestTargetSchema = "adbc.ingest.target_db_schema"

// ADBCLoader loads relations through an ADBC driver loaded with the driver
// manager, using bulk ingest in replace mode.
type ADBCLoader struct {
	db   adbc.Database
	conn adbc.Connection
}

// defaultDriverPath guesses where the PostgreSQL ADBC driver is installed.
func defaultDriverPath() string {
	switch runtime.GOOS {
	case "darwin":
		return "/usr/local/lib/libadbc_driver_postgresql.dylib"
	case "windows":
		if home, err := os.UserHomeDir(); err == nil {
			return home + "/Downloads/postgresql-windows-amd64/postgresql.dll"
		}
	}
	return "/usr/local/lib/libadbc_driver_postgresql.so"
}

// NewADBCLoader opens a database through the driver at config.DriverPath.
func NewADBCLoader(config core.LoaderConfig) (core.Loader, error) {
	path := config.DriverPath
	if path == "" {
		path = defaultDriverPath()
	}

	var drv drivermgr.Driver
	db, err := drv.NewDatabase(map[string]string{
		"driver":          path,
		adbc.OptionKeyURI: config.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating ADBC database: %w", err)
	}

	conn, err := db.Open(context.Background())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	return &ADBCLoader{db: db, conn: conn}, nil
}

// Load replaces schema.relation with the record.
func (l *ADBCLoader) Load(ctx context.Context, schema string, rel core.Relation) error {
	stmt, err := l.conn.NewStatement()
	if err != nil {
		return fmt.Errorf("failed to create statement: %w", err)
	}
	defer stmt.Close()

	opts := map[string]string{
		adbc.OptionKeyIngestTargetTable: rel.Name,
		adbc.OptionKeyIngestMode:        adbc.OptionValueIngestModeReplace,
		ingestTargetSchema:              schema,
	}
	for k, v := range opts {
		if err := stmt.SetOption(k, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", k, err)
		}
	}

	if err := stmt.Bind(ctx, rel.Record); err != nil {
		return fmt.Errorf("failed to bind %s: %w", rel.Name, err)
	}
	if _, err := stmt.ExecuteUpdate(ctx); err != nil {
		return fmt.Errorf("failed to ingest %s.%s: %w", schema, rel.Name, err)
	}
	return nil
}

// Close closes the connection and the database.
func (l *ADBCLoader) Close() error {
	err := l.conn.Close()
	if dbErr := l.db.Close(); dbErr != nil && err == nil {
		err = dbErr
	}
	return err
}

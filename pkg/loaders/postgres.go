package loaders

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/jackc/pgx/v5"

	"github.com/TFMV/vetsynth/pkg/core"
)

var postgresDialect = dialect{
	quote: func(s string) string { return pgx.Identifier{s}.Sanitize() },
	types: map[arrow.Type]string{
		arrow.INT64:   "BIGINT",
		arrow.FLOAT64: "DOUBLE PRECISION",
		arrow.STRING:  "TEXT",
		arrow.DATE32:  "DATE",
		arrow.BOOL:    "BOOLEAN",
	},
	fallback: "TEXT",
}

// PostgresLoader loads relations with COPY through pgx.
type PostgresLoader struct {
	conn *pgx.Conn
}

// NewPostgresLoader connects to the database at config.DSN.
func NewPostgresLoader(config core.LoaderConfig) (core.Loader, error) {
	conn, err := pgx.Connect(context.Background(), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresLoader{conn: conn}, nil
}

// Load creates schema.relation if absent, truncates it and copies the rows
// in, all in one transaction.
func (l *PostgresLoader) Load(ctx context.Context, schema string, rel core.Relation) error {
	table := pgx.Identifier{schema, rel.Name}

	tx, err := l.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmts := []string{
		"CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{schema}.Sanitize(),
		postgresDialect.createTable(table.Sanitize(), rel.Record.Schema()),
		"TRUNCATE TABLE " + table.Sanitize(),
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare %s: %w", table.Sanitize(), err)
		}
	}

	cols := make([]string, rel.Record.NumCols())
	for i, f := range rel.Record.Schema().Fields() {
		cols[i] = f.Name
	}
	n, err := tx.CopyFrom(ctx, table, cols, &recordSource{rec: rel.Record, row: -1})
	if err != nil {
		return fmt.Errorf("failed to copy into %s: %w", table.Sanitize(), err)
	}
	if n != rel.Record.NumRows() {
		return fmt.Errorf("copied %d of %d rows into %s", n, rel.Record.NumRows(), table.Sanitize())
	}
	return tx.Commit(ctx)
}

// Close closes the connection.
func (l *PostgresLoader) Close() error {
	return l.conn.Close(context.Background())
}

// recordSource feeds an arrow record to pgx.CopyFrom row by row.
type recordSource struct {
	rec  arrow.Record
	row  int
	vals []any
	err  error
}

func (s *recordSource) Next() bool {
	s.row++
	if s.err != nil || int64(s.row) >= s.rec.NumRows() {
		return false
	}
	s.vals, s.err = rowValues(s.rec, s.row)
	return s.err == nil
}

func (s *recordSource) Values() ([]any, error) { return s.vals, s.err }

func (s *recordSource) Err() error { return s.err }

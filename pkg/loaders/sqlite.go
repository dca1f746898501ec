package loaders

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	_ "modernc.org/sqlite"

	"github.com/TFMV/vetsynth/pkg/core"
)

func sqliteQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

var sqliteDialect = dialect{
	quote: sqliteQuote,
	types: map[arrow.Type]string{
		arrow.INT64:   "INTEGER",
		arrow.FLOAT64: "REAL",
		arrow.STRING:  "TEXT",
		arrow.DATE32:  "DATE",
		arrow.BOOL:    "INTEGER",
	},
	fallback: "TEXT",
}

// SQLiteLoader loads relations into SQLite. The DSN is the main database
// file; each schema is a database file attached next to it.
type SQLiteLoader struct {
	db       *sql.DB
	dir      string
	attached map[string]bool
}

// NewSQLiteLoader opens the database file at config.DSN.
func NewSQLiteLoader(config core.LoaderConfig) (core.Loader, error) {
	db, err := sql.Open("sqlite", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Attachments are per connection.
	db.SetMaxOpenConns(1)
	return &SQLiteLoader{
		db:       db,
		dir:      filepath.Dir(config.DSN),
		attached: make(map[string]bool),
	}, nil
}

func (l *SQLiteLoader) attach(ctx context.Context, schema string) error {
	if l.attached[schema] {
		return nil
	}
	path := filepath.Join(l.dir, schema+".db")
	if _, err := l.db.ExecContext(ctx, "ATTACH DATABASE ? AS "+sqliteQuote(schema), path); err != nil {
		return fmt.Errorf("attach %s: %w", path, err)
	}
	l.attached[schema] = true
	return nil
}

// Load creates schema.relation if absent, empties it and inserts the rows
// in one transaction.
func (l *SQLiteLoader) Load(ctx context.Context, schema string, rel core.Relation) error {
	if err := l.attach(ctx, schema); err != nil {
		return err
	}
	table := sqliteQuote(schema) + "." + sqliteQuote(rel.Name)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqliteDialect.createTable(table, rel.Record.Schema())); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}

	cols := make([]string, rel.Record.NumCols())
	marks := make([]string, rel.Record.NumCols())
	for i, f := range rel.Record.Schema().Fields() {
		cols[i] = sqliteQuote(f.Name)
		marks[i] = "?"
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", table, err)
	}
	defer stmt.Close()

	for i := range int(rel.Record.NumRows()) {
		vals, err := rowValues(rel.Record, i)
		if err != nil {
			return err
		}
		for j, v := range vals {
			if t, ok := v.(time.Time); ok {
				vals[j] = t.Format(time.DateOnly)
			}
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", table, i, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (l *SQLiteLoader) Close() error {
	return l.db.Close()
}

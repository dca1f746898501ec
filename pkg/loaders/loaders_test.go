package loaders

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/tables"
)

type weight struct {
	ID     int
	Animal int
	Weight float64
	Date   time.Time
	Note   *string
}

var weightColumns = []tables.Column[weight]{
	tables.Int("id_weight", func(w weight) int { return w.ID }),
	tables.Int("id_animal", func(w weight) int { return w.Animal }),
	tables.Float("weight", func(w weight) float64 { return w.Weight }),
	tables.Date("appt_date", func(w weight) time.Time { return w.Date }),
	tables.OptString("note", func(w weight) *string { return w.Note }),
}

func weightRelation(stage core.Stage, n int) core.Relation {
	note := "fasting"
	rows := make([]weight, n)
	for i := range rows {
		rows[i] = weight{ID: i + 1, Animal: 47 + i, Weight: 3.5 + float64(i), Date: time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC)}
		if i%2 == 0 {
			rows[i].Note = &note
		}
	}
	return core.Relation{Name: "animal_weight", Stage: stage, Record: tables.Record(memory.NewGoAllocator(), weightColumns, rows)}
}

func TestFactoryRejects(t *testing.T) {
	_, err := DefaultFactory.Create(core.LoaderConfig{Driver: "oracle", DSN: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)

	_, err = DefaultFactory.Create(core.LoaderConfig{Driver: "postgres"})
	assert.Error(t, err)
}

func TestSQLiteLoadReplacesRows(t *testing.T) {
	dir := t.TempDir()
	l, err := DefaultFactory.Create(core.LoaderConfig{Driver: "sqlite", DSN: filepath.Join(dir, "main.db")})
	require.NoError(t, err)
	defer l.Close()

	schemas := map[string]string{"rel": "clean_db", "au": "polluted_au_db"}
	ctx := context.Background()

	first := weightRelation(core.StageClean, 5)
	defer first.Release()
	require.NoError(t, LoadAll(ctx, l, schemas, []core.Relation{first}, zap.NewNop()))

	second := weightRelation(core.StageClean, 3)
	defer second.Release()
	require.NoError(t, LoadAll(ctx, l, schemas, []core.Relation{second}, zap.NewNop()))

	db, err := sql.Open("sqlite", filepath.Join(dir, "clean_db.db"))
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM animal_weight`).Scan(&count))
	assert.Equal(t, 3, count)

	var (
		date  string
		notes int
	)
	require.NoError(t, db.QueryRow(`SELECT CAST(appt_date AS TEXT) FROM animal_weight WHERE id_weight = 2`).Scan(&date))
	assert.Equal(t, "2020-02-29", date)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM animal_weight WHERE note IS NULL`).Scan(&notes))
	assert.Equal(t, 1, notes)
}

func TestLoadAllUnknownStage(t *testing.T) {
	l, err := DefaultFactory.Create(core.LoaderConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "main.db")})
	require.NoError(t, err)
	defer l.Close()

	rel := weightRelation(core.StageDirty, 1)
	defer rel.Release()
	assert.Error(t, LoadAll(context.Background(), l, map[string]string{"rel": "clean_db"}, []core.Relation{rel}, zap.NewNop()))
}

func TestRecordSource(t *testing.T) {
	rel := weightRelation(core.StageClean, 2)
	defer rel.Release()

	src := &recordSource{rec: rel.Record, row: -1}
	var rows [][]any
	for src.Next() {
		v, err := src.Values()
		require.NoError(t, err)
		rows = append(rows, v)
	}
	require.NoError(t, src.Err())
	require.Len(t, rows, 2)
	assert.Equal(t, int64(48), rows[1][1])
	assert.Nil(t, rows[1][4])
	assert.Equal(t, time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC), rows[0][3])
}

func TestCreateTableStatement(t *testing.T) {
	rel := weightRelation(core.StageClean, 1)
	defer rel.Release()
	stmt := postgresDialect.createTable(`"clean_db"."animal_weight"`, rel.Record.Schema())
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "clean_db"."animal_weight" ("id_weight" BIGINT, "id_animal" BIGINT, "weight" DOUBLE PRECISION, "appt_date" DATE, "note" TEXT)`,
		stmt)
}

package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/tables"
)

type service struct {
	ID   int
	Name string
}

var serviceColumns = []tables.Column[service]{
	tables.Int("id_service", func(s service) int { return s.ID }),
	tables.String("service_name", func(s service) string { return s.Name }),
}

func relations(stage core.Stage) []core.Relation {
	mem := memory.NewGoAllocator()
	services := []service{{1, "vaccine"}, {2, "surgery"}, {3, "deworming"}}
	return []core.Relation{
		{Name: "service", Stage: stage, Record: tables.Record(mem, serviceColumns, services)},
		{Name: "appointment_service", Stage: stage, Record: tables.Record(mem, serviceColumns, services[:2])},
	}
}

func TestExportWritesEveryFormat(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	rels := relations(core.StageAU)
	defer func() {
		for _, r := range rels {
			r.Release()
		}
	}()

	files, err := New(dir, []string{"csv", "parquet"}, 2, zap.NewNop()).Export(context.Background(), rels)
	require.NoError(t, err)
	require.Len(t, files, 4)

	for _, f := range files {
		_, err := os.Stat(f.Path)
		assert.NoError(t, err, f.Path)
	}
	assert.FileExists(t, filepath.Join(dir, "appointment_service_au.parquet"))
	assert.FileExists(t, filepath.Join(dir, "service_au.csv"))
}

func TestDiscoverAndLoad(t *testing.T) {
	dir := t.TempDir()
	clean := relations(core.StageClean)
	au := relations(core.StageAU)
	defer func() {
		for _, r := range append(clean, au...) {
			r.Release()
		}
	}()

	e := New(dir, []string{"parquet"}, 0, zap.NewNop())
	_, err := e.Export(context.Background(), clean)
	require.NoError(t, err)
	_, err = e.Export(context.Background(), au)
	require.NoError(t, err)

	found, err := Discover(dir, core.StageClean, "parquet")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "appointment_service", found[0].Relation)
	assert.Equal(t, "service", found[1].Relation)

	loaded, err := Load(context.Background(), dir, core.StageClean, "parquet")
	require.NoError(t, err)
	defer func() {
		for _, r := range loaded {
			r.Release()
		}
	}()
	require.Len(t, loaded, 2)
	assert.EqualValues(t, 2, loaded[0].Record.NumRows())
	assert.EqualValues(t, 3, loaded[1].Record.NumRows())
	assert.Equal(t, core.StageClean, loaded[1].Stage)
}

func TestLoadRejectsRenamedFile(t *testing.T) {
	dir := t.TempDir()
	rels := relations(core.StageClean)
	defer func() {
		for _, r := range rels {
			r.Release()
		}
	}()

	_, err := New(dir, []string{"arrow"}, 0, zap.NewNop()).Export(context.Background(), rels)
	require.NoError(t, err)
	require.NoError(t, os.Rename(filepath.Join(dir, "service_rel.arrow"), filepath.Join(dir, "owner_rel.arrow")))

	_, err = Load(context.Background(), dir, core.StageClean, "arrow")
	assert.ErrorIs(t, err, ErrRelationMismatch)
}

func TestExportUnknownFormat(t *testing.T) {
	rels := relations(core.StageClean)
	defer func() {
		for _, r := range rels {
			r.Release()
		}
	}()

	_, err := New(t.TempDir(), []string{"xlsx"}, 1, zap.NewNop()).Export(context.Background(), rels)
	assert.Error(t, err)
}

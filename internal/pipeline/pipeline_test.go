package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/config"
	"github.com/TFMV/vetsynth/pkg/core"
	"github.com/TFMV/vetsynth/pkg/export"
	"github.com/TFMV/vetsynth/report"
)

func smallConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Generation.NbAnimals = 120
	cfg.Generation.LastOperationDate = "2020-12-31"
	cfg.Output.Dir = filepath.Join(t.TempDir(), "working_data")
	cfg.Output.Formats = []string{"csv", "parquet"}
	cfg.Output.Workers = 2
	return cfg
}

func TestRunWritesEveryStage(t *testing.T) {
	cfg := smallConfig(t)
	var seen []string
	p := New(cfg, zap.NewNop())
	p.OnStage(func(s string) { seen = append(seen, s) })

	run, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, run.Passed())
	assert.Equal(t, []string{"reference", "generate", "au", "dirty", "export", "validate"}, seen)

	// 13 clean, 9 au and 9 dirty relations, each in two formats.
	assert.Len(t, run.Relations, 31)
	assert.Len(t, run.Files, 62)
	assert.NotEmpty(t, run.Corruptions)
	assert.Len(t, run.Metadata.Stages, 6)
	assert.Len(t, run.Schemas, 31)

	// Every drifted column was the target of a corruption step.
	require.NotEmpty(t, run.Drift)
	touched := map[string]int{}
	for _, c := range run.Corruptions {
		touched[c.Relation+"."+c.Column] += c.Changed
	}
	for _, d := range run.Drift {
		changed, ok := touched[d.Relation+"."+d.Column]
		assert.True(t, ok, "%s.%s", d.Relation, d.Column)
		assert.LessOrEqual(t, d.Cells, int64(changed))
	}

	for _, st := range core.Stages {
		files, err := export.Discover(cfg.Output.Dir, st, "csv")
		require.NoError(t, err)
		assert.NotEmpty(t, files, st)
	}

	loaded, err := report.ReportFromFilePath(filepath.Join(cfg.Output.Dir, report.JSONFile))
	require.NoError(t, err)
	assert.Equal(t, run.Metadata.Seed, loaded.Metadata.Seed)
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, report.HTMLFile))
}

func TestRunIsDeterministic(t *testing.T) {
	a, err := New(smallConfig(t), nil).Run(context.Background())
	require.NoError(t, err)
	b, err := New(smallConfig(t), nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.Relations, b.Relations)
	assert.Equal(t, a.Unscheduled, b.Unscheduled)
	assert.Equal(t, a.Corruptions, b.Corruptions)
	assert.Equal(t, a.Drift, b.Drift)
}

func TestRunWithoutDirtyPass(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Dirty.Enabled = false
	cfg.Output.Formats = []string{"parquet"}

	run, err := New(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, run.Relations, 22)
	assert.Empty(t, run.Corruptions)
	assert.Empty(t, run.Drift)
	assert.True(t, run.Metadata.DirtyDisabled)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(smallConfig(t), nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsIntegrityFailure(err))
}

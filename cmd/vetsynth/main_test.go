package main

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/TFMV/vetsynth/pkg/core"
)

func executeCommand(rootCmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// generateRun writes a small run into a temp dir and returns it.
func generateRun(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	out, err := executeCommand(newRootCommand(),
		"generate",
		"--log-file", filepath.Join(dir, "vetsynth.log"),
		"--animals", "120",
		"--last-date", "2020-12-31",
		"--seed", "7",
		"--format", "csv,parquet",
		"--output", dir,
		"--no-progress",
		"--no-publish",
	)
	require.NoError(t, err, out)
	return dir
}

func TestCLI_Help(t *testing.T) {
	output, err := executeCommand(newRootCommand(), "--help")
	require.NoError(t, err)
	assert.Contains(t, output, "Usage:")
	for _, sub := range []string{"generate", "load", "validate", "serve", "inspect", "version"} {
		assert.Contains(t, output, sub)
	}
}

func TestCLI_Version(t *testing.T) {
	output, err := executeCommand(newRootCommand(), "version", "--log-file", filepath.Join(t.TempDir(), "v.log"))
	require.NoError(t, err)
	assert.Contains(t, output, "vetsynth")
}

func TestCLI_GenerateThenValidate(t *testing.T) {
	dir := generateRun(t)

	assert.FileExists(t, filepath.Join(dir, "report.json"))
	assert.FileExists(t, filepath.Join(dir, "animal_rel.csv"))
	assert.FileExists(t, filepath.Join(dir, "animal_au.parquet"))
	assert.FileExists(t, filepath.Join(dir, "animal_dirty.csv"))

	output, err := executeCommand(newRootCommand(),
		"validate", "--log-file", filepath.Join(dir, "vetsynth.log"),
		"--input", dir, "--format", "parquet", "--stage", "rel,au")
	require.NoError(t, err, output)
	assert.Contains(t, output, "stage rel:")
	assert.Contains(t, output, "stage au:")
	assert.NotContains(t, output, "FAIL")
}

func TestCLI_ValidateRejectsInput(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "vetsynth.log")

	_, err := executeCommand(newRootCommand(), "validate", "--log-file", logFile, "--input", dir, "--stage", "nope")
	assert.ErrorContains(t, err, "unknown stage")

	_, err = executeCommand(newRootCommand(), "validate", "--log-file", logFile, "--input", dir, "--format", "json")
	assert.ErrorContains(t, err, "cannot be read back")

	_, err = executeCommand(newRootCommand(), "validate", "--log-file", logFile, "--input", dir)
	assert.ErrorContains(t, err, "no csv relations")
}

func TestCLI_LoadSQLite(t *testing.T) {
	dir := generateRun(t)
	dbDir := t.TempDir()
	dsn := filepath.Join(dbDir, "main.db")

	output, err := executeCommand(newRootCommand(),
		"load", "--log-file", filepath.Join(dir, "vetsynth.log"),
		"--input", dir, "--format", "parquet",
		"--driver", "sqlite", "--dsn", dsn, "--stage", "rel")
	require.NoError(t, err, output)
	assert.Contains(t, output, "loaded 13 relations with sqlite")

	db, err := sql.Open("sqlite", filepath.Join(dbDir, "clean_db.db"))
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM animal`).Scan(&n))
	assert.Equal(t, 120, n)
}

func TestCLI_Inspect(t *testing.T) {
	dir := generateRun(t)
	logFile := filepath.Join(dir, "vetsynth.log")

	output, err := executeCommand(newRootCommand(), "inspect", "--log-file", logFile, "--rows", "2",
		filepath.Join(dir, "animal_rel.parquet"))
	require.NoError(t, err, output)
	assert.Contains(t, output, "Number of row groups:")
	assert.Contains(t, output, "Field 0: id_animal (int64)")
	assert.Contains(t, output, "Row 1: [")
	assert.NotContains(t, output, "Row 2: [")
	assert.Contains(t, output, "Number of rows: 120")

	output, err = executeCommand(newRootCommand(), "inspect", "--log-file", logFile,
		filepath.Join(dir, "animal_dirty.csv"))
	require.NoError(t, err, output)
	assert.Contains(t, output, "Row 4: [")
	assert.Contains(t, output, "Number of rows: 120")

	_, err = executeCommand(newRootCommand(), "inspect", "--log-file", logFile, filepath.Join(dir, "report.json"))
	assert.Error(t, err)
}

func TestParseStages(t *testing.T) {
	all, err := parseStages(nil)
	require.NoError(t, err)
	assert.Equal(t, core.Stages, all)

	got, err := parseStages([]string{"dirty"})
	require.NoError(t, err)
	assert.Equal(t, []core.Stage{core.StageDirty}, got)
}

func TestCLI_Serve(t *testing.T) {
	dir := t.TempDir()
	rootCmd := newRootCommand()
	rootCmd.SetArgs([]string{"serve", "--log-file", filepath.Join(dir, "vetsynth.log"), "--port", "3091", "--dir", dir})

	errCh := make(chan error, 1)
	go func() { errCh <- rootCmd.Execute() }()

	// Give the server time to start.
	time.Sleep(200 * time.Millisecond)

	process, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, process.Signal(os.Interrupt))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server shutdown")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 47, Offset(cfg.Generation.IDOffsets, "animal"))
	assert.Equal(t, 1, Offset(cfg.Generation.IDOffsets, "slot"))
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vetsynth.yaml")
	yaml := `
generation:
  seed: 7
  nb_animals: 500
  last_operation_date: "2024-06-30"
  implant_locations:
    between_shoulders: 1.0
  owners:
    household_distribution:
      "1": 0.5
      "2": 0.5
output:
  dir: out
  formats: [csv, parquet]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.EqualValues(t, 7, cfg.Generation.Seed)
	assert.Equal(t, 500, cfg.Generation.NbAnimals)
	assert.Equal(t, map[string]float64{"between_shoulders": 1.0}, cfg.Generation.ImplantLocations)
	assert.Equal(t, map[int]float64{1: 0.5, 2: 0.5}, cfg.Generation.Owners.HouseholdDistribution)
	assert.Equal(t, []string{"csv", "parquet"}, cfg.Output.Formats)
	// untouched sections keep their defaults
	assert.Equal(t, 2015, cfg.Generation.ClinicStartYear)
	assert.Equal(t, "JO", cfg.Generation.Calendar.CountryCode)

	last, err := cfg.Generation.LastDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), last)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("VETSYNTH_LOAD_DSN", "postgres://vet@localhost/clinic")
	t.Setenv("VETSYNTH_GENERATION_SEED", "99")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://vet@localhost/clinic", cfg.Load.DSN)
	assert.EqualValues(t, 99, cfg.Generation.Seed)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"distribution sum", func(c *Config) { c.Generation.ImplantLocations["between_shoulders"] = 0.5 }},
		{"unknown country", func(c *Config) { c.Generation.Calendar.CountryCode = "ZZ" }},
		{"bad weekday", func(c *Config) { c.Generation.Calendar.WeeklyDaysOff = []string{"someday"} }},
		{"every day off", func(c *Config) {
			c.Generation.Calendar.WeeklyDaysOff = []string{
				"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
			}
		}},
		{"tier above max", func(c *Config) { c.Generation.Staffing.CapacityTiers = []int{250} }},
		{"slot hours", func(c *Config) { c.Generation.Slots.EndHour = 6 }},
		{"offset", func(c *Config) { c.Generation.IDOffsets["animal"] = 0 }},
		{"au rate", func(c *Config) { c.AU.Rates["animal"] = 1.5 }},
		{"format", func(c *Config) { c.Output.Formats = []string{"xlsx"} }},
		{"dirty fraction", func(c *Config) {
			c.Dirty.Steps = []DirtyStep{{Relation: "animal", Column: "name", Op: "lower", Fraction: 0}}
		}},
		{"last date", func(c *Config) { c.Generation.LastOperationDate = "31/12/2024" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatabaseConfigValidate(t *testing.T) {
	d := DatabaseConfig{Driver: "adbc", DSN: "postgres://localhost/vet"}
	assert.NoError(t, d.Validate())
	d.Driver = "duckdb"
	assert.Error(t, d.Validate())
	d = DatabaseConfig{Driver: "sqlite"}
	assert.Error(t, d.Validate())
}

func TestCalendarFromConfig(t *testing.T) {
	c := Default().Generation.Calendar
	c.ExtraHolidays = []string{"2024-04-10"}
	cal, err := c.Calendar()
	require.NoError(t, err)
	assert.True(t, cal.IsHoliday(time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)))

	c.ExtraHolidays = []string{"April 10"}
	_, err = c.Calendar()
	assert.Error(t, err)
}

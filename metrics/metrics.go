// Package metrics holds the run report of a vetsynth pipeline run and the
// stores and collectors it is published through.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// -----------------------------
// Run Metadata
// -----------------------------

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// RunMetadata captures high-level context for a pipeline run.
type RunMetadata struct {
	Version       string        `json:"version"`
	Seed          uint64        `json:"seed"`
	NbAnimals     int           `json:"nb_animals"`
	ClinicStart   int           `json:"clinic_start_year"`
	LastDate      string        `json:"last_operation_date"`
	Country       string        `json:"country_code"`
	OutputDir     string        `json:"output_dir"`
	Formats       []string      `json:"formats"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`
	Stages        []StageTiming `json:"stages"`
	DirtyDisabled bool          `json:"dirty_disabled,omitempty"`
}

// -----------------------------
// Result Types
// -----------------------------

// RelationCount is the size of one exported relation.
type RelationCount struct {
	Relation string `json:"relation"`
	Stage    string `json:"stage"`
	Rows     int64  `json:"rows"`
	Columns  int    `json:"columns"`
}

// UnmetHours is monthly doctor demand that staffing could not absorb.
type UnmetHours struct {
	Month    string `json:"month"`
	Category string `json:"category"`
	Hours    int    `json:"hours"`
}

// ForeignKeyResult is the outcome of one referential check.
type ForeignKeyResult struct {
	Stage       string   `json:"stage"`
	Relation    string   `json:"relation"`
	Column      string   `json:"column"`
	RefRelation string   `json:"ref_relation"`
	RefColumn   string   `json:"ref_column"`
	Checked     int64    `json:"checked"`
	Nulls       int64    `json:"nulls"`
	Violations  int64    `json:"violations"`
	Sample      []string `json:"sample,omitempty"`
	Status      bool     `json:"status"`
}

// SchemaResult is the outcome of comparing a relation with its expected
// schema.
type SchemaResult struct {
	Stage    string   `json:"stage"`
	Relation string   `json:"relation"`
	Level    string   `json:"level"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Valid    bool     `json:"valid"`
}

// PrimaryKeyResult is the outcome of a key uniqueness and contiguity check.
type PrimaryKeyResult struct {
	Stage      string `json:"stage"`
	Relation   string `json:"relation"`
	Column     string `json:"column"`
	Offset     int    `json:"offset"`
	Rows       int64  `json:"rows"`
	Duplicates int64  `json:"duplicates"`
	Contiguous bool   `json:"contiguous"`
	Status     bool   `json:"status"`
}

// CorruptionResult counts the cells one dirty-data step changed.
type CorruptionResult struct {
	Relation string `json:"relation"`
	Column   string `json:"column"`
	Op       string `json:"op"`
	Changed  int    `json:"changed"`
}

// CellDrift counts the cells of a column that differ between the
// artificial-unicity snapshot and its dirty copy.
type CellDrift struct {
	Relation string `json:"relation"`
	Column   string `json:"column"`
	Cells    int64  `json:"cells"`
}

// FileResult is one written export file.
type FileResult struct {
	Relation string `json:"relation"`
	Stage    string `json:"stage"`
	Format   string `json:"format"`
	Path     string `json:"path"`
	Rows     int64  `json:"rows"`
}

// RunReport aggregates everything a run produced.
type RunReport struct {
	Metadata    RunMetadata        `json:"metadata"`
	Relations   []RelationCount    `json:"relations"`
	Unmet       []UnmetHours       `json:"unmet_hours"`
	Unscheduled []int              `json:"unscheduled_appointments"`
	Schemas     []SchemaResult     `json:"schemas"`
	ForeignKeys []ForeignKeyResult `json:"foreign_keys"`
	PrimaryKeys []PrimaryKeyResult `json:"primary_keys"`
	Corruptions []CorruptionResult `json:"corruptions"`
	Drift       []CellDrift        `json:"drift,omitempty"`
	Files       []FileResult       `json:"files"`
	Published   []string           `json:"published,omitempty"`
}

// Passed reports whether every integrity check succeeded.
func (r RunReport) Passed() bool {
	for _, sc := range r.Schemas {
		if !sc.Valid {
			return false
		}
	}
	for _, fk := range r.ForeignKeys {
		if !fk.Status {
			return false
		}
	}
	for _, pk := range r.PrimaryKeys {
		if !pk.Status {
			return false
		}
	}
	return true
}

// TotalUnmetHours sums unmet demand over every month and category.
func (r RunReport) TotalUnmetHours() int {
	total := 0
	for _, u := range r.Unmet {
		total += u.Hours
	}
	return total
}

// Violations sums foreign-key violations over every check.
func (r RunReport) Violations() int64 {
	var total int64
	for _, fk := range r.ForeignKeys {
		total += fk.Violations
	}
	return total
}

// -----------------------------
// Metrics Storage
// -----------------------------

// MetricsStore abstracts run report storage.
type MetricsStore interface {
	Save(run RunReport) error
	SaveWithContext(ctx context.Context, run RunReport) error
}

// JSONMetricsStore stores reports as JSON. An empty FilePath prints to stdout.
type JSONMetricsStore struct {
	FilePath string
}

func (j *JSONMetricsStore) Save(run RunReport) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	if j.FilePath != "" {
		return os.WriteFile(j.FilePath, data, 0644)
	}
	fmt.Println(string(data))
	return nil
}

func (j *JSONMetricsStore) SaveWithContext(ctx context.Context, run RunReport) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return j.Save(run)
	}
}

// Load reads a report previously saved to FilePath.
func (j *JSONMetricsStore) Load() (RunReport, error) {
	data, err := os.ReadFile(j.FilePath)
	if err != nil {
		return RunReport{}, err
	}
	var run RunReport
	if err := json.Unmarshal(data, &run); err != nil {
		return RunReport{}, fmt.Errorf("failed to decode report %s: %w", j.FilePath, err)
	}
	return run, nil
}

// -----------------------------
// Error Handling
// -----------------------------

// Error codes carried by ValidationError.
const (
	CodeSchema     = "SCHEMA_MISMATCH"
	CodeForeignKey = "FK_VIOLATION"
	CodePrimaryKey = "PK_VIOLATION"
)

// ValidationError reports failed integrity checks.
type ValidationError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Validation Error [%s]: %s", e.Code, e.Message)
}

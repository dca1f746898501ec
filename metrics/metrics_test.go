package metrics

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() RunReport {
	return RunReport{
		Metadata: RunMetadata{
			Version:  "0.1.0",
			Seed:     56,
			Duration: 3 * time.Second,
			Stages: []StageTiming{
				{Stage: "generate", Duration: 2 * time.Second},
				{Stage: "au", Duration: time.Second},
			},
		},
		Relations: []RelationCount{
			{Relation: "animal", Stage: "rel", Rows: 250},
			{Relation: "animal", Stage: "au", Rows: 410},
		},
		Unmet: []UnmetHours{
			{Month: "2016-01", Category: "surgery", Hours: 12},
			{Month: "2016-02", Category: "surgery", Hours: 3},
		},
		Unscheduled: []int{23, 40},
		ForeignKeys: []ForeignKeyResult{
			{Stage: "au", Relation: "microchip", Column: "id_owner", RefRelation: "owner", RefColumn: "id_owner", Checked: 410, Violations: 2, Status: false},
			{Stage: "rel", Relation: "microchip", Column: "id_owner", RefRelation: "owner", RefColumn: "id_owner", Checked: 250, Status: true},
		},
		Corruptions: []CorruptionResult{{Relation: "owner", Column: "city", Op: "lower", Changed: 40}},
	}
}

func TestRunReportSummaries(t *testing.T) {
	run := sampleReport()
	assert.False(t, run.Passed())
	assert.Equal(t, 15, run.TotalUnmetHours())
	assert.EqualValues(t, 2, run.Violations())

	run.ForeignKeys[0].Status = true
	assert.True(t, run.Passed())
}

func TestJSONMetricsStore(t *testing.T) {
	store := &JSONMetricsStore{FilePath: filepath.Join(t.TempDir(), "report.json")}
	run := sampleReport()
	require.NoError(t, store.SaveWithContext(context.Background(), run))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, run.Metadata.Seed, loaded.Metadata.Seed)
	assert.Equal(t, run.Unscheduled, loaded.Unscheduled)
	assert.Equal(t, run.ForeignKeys, loaded.ForeignKeys)
}

func TestJSONMetricsStoreCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := &JSONMetricsStore{FilePath: filepath.Join(t.TempDir(), "report.json")}
	assert.ErrorIs(t, store.SaveWithContext(ctx, sampleReport()), context.Canceled)
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Code: CodeForeignKey, Message: "2 dangling keys"}
	assert.Equal(t, "Validation Error [FK_VIOLATION]: 2 dangling keys", err.Error())
}

func TestPrometheusCollectorObserve(t *testing.T) {
	p := NewPrometheusMetricsCollector()
	p.Observe(sampleReport())

	assert.Equal(t, 410.0, testutil.ToFloat64(p.rows.WithLabelValues("animal", "au")))
	assert.Equal(t, 15.0, testutil.ToFloat64(p.unmet.WithLabelValues("surgery")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.unscheduled))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.violations.WithLabelValues("au", "microchip", "id_owner")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.stages.WithLabelValues("generate")))

	expected := `
# HELP vetsynth_unscheduled_appointments Appointments left without a slot.
# TYPE vetsynth_unscheduled_appointments gauge
vetsynth_unscheduled_appointments 2
`
	require.NoError(t, testutil.GatherAndCompare(p.Registry(), strings.NewReader(expected), "vetsynth_unscheduled_appointments"))

	// A second report replaces rather than accumulates.
	p.Observe(sampleReport())
	assert.Equal(t, 15.0, testutil.ToFloat64(p.unmet.WithLabelValues("surgery")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.runs))
}

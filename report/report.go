// Package report renders a run report as JSON or as an HTML summary.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/TFMV/vetsynth/metrics"
)

// File names of the reports inside a run directory.
const (
	JSONFile = "report.json"
	HTMLFile = "report.html"
)

// -----------------------------
// Report Generator Interfaces
// -----------------------------

// ReportGenerator defines the methods for generating reports.
type ReportGenerator interface {
	GenerateRunReport(run metrics.RunReport) ([]byte, error)
	GenerateAlertNotification(run metrics.RunReport) ([]byte, error)
	SaveReportToFile(run metrics.RunReport, filePath string) error
}

// -----------------------------
// JSON Report Generator
// -----------------------------

// JSONReportGenerator generates JSON reports.
type JSONReportGenerator struct{}

// GenerateRunReport serializes the RunReport to JSON.
func (j *JSONReportGenerator) GenerateRunReport(run metrics.RunReport) ([]byte, error) {
	return json.MarshalIndent(run, "", "  ")
}

// GenerateAlertNotification summarizes failed integrity checks in JSON.
func (j *JSONReportGenerator) GenerateAlertNotification(run metrics.RunReport) ([]byte, error) {
	alert := map[string]interface{}{
		"alert":       "Integrity check failed",
		"seed":        run.Metadata.Seed,
		"violations":  run.Violations(),
		"unmet_hours": run.TotalUnmetHours(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	return json.MarshalIndent(alert, "", "  ")
}

// SaveReportToFile saves the JSON report to a file.
func (j *JSONReportGenerator) SaveReportToFile(run metrics.RunReport, filePath string) error {
	data, err := j.GenerateRunReport(run)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// -----------------------------
// HTML Report Generator
// -----------------------------

// HTMLReportGenerator generates HTML reports.
type HTMLReportGenerator struct{}

const htmlTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>vetsynth run {{.Metadata.Seed}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        table { width: 100%; border-collapse: collapse; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f4f4f4; }
        .status-pass { color: green; }
        .status-fail { color: red; }
    </style>
</head>
<body>
    <h1>Synthetic Clinic Run</h1>
    <p><strong>Version:</strong> {{.Metadata.Version}}</p>
    <p><strong>Seed:</strong> {{.Metadata.Seed}}</p>
    <p><strong>Animals:</strong> {{.Metadata.NbAnimals}}, opened {{.Metadata.ClinicStart}}, last day {{.Metadata.LastDate}} ({{.Metadata.Country}})</p>
    <p><strong>Started:</strong> {{.Metadata.StartTime}} <strong>Duration:</strong> {{.Metadata.Duration}}</p>

    <h2>Stages</h2>
    <table>
        <tr><th>Stage</th><th>Duration</th></tr>
        {{range .Metadata.Stages}}<tr><td>{{.Stage}}</td><td>{{.Duration}}</td></tr>{{end}}
    </table>

    <h2>Relations</h2>
    <table>
        <tr><th>Relation</th><th>Stage</th><th>Rows</th><th>Columns</th></tr>
        {{range .Relations}}<tr><td>{{.Relation}}</td><td>{{.Stage}}</td><td>{{.Rows}}</td><td>{{.Columns}}</td></tr>{{end}}
    </table>

    <h2>Schemas</h2>
    <table>
        <tr><th>Stage</th><th>Relation</th><th>Level</th><th>Errors</th><th>Status</th></tr>
        {{range .Schemas}}
        <tr>
            <td>{{.Stage}}</td>
            <td>{{.Relation}}</td>
            <td>{{.Level}}</td>
            <td>{{join .Errors}}</td>
            <td class="{{if .Valid}}status-pass{{else}}status-fail{{end}}">{{if .Valid}}PASS{{else}}FAIL{{end}}</td>
        </tr>
        {{end}}
    </table>

    <h2>Foreign Keys</h2>
    <table>
        <tr><th>Stage</th><th>Column</th><th>References</th><th>Checked</th><th>Nulls</th><th>Violations</th><th>Status</th></tr>
        {{range .ForeignKeys}}
        <tr>
            <td>{{.Stage}}</td>
            <td>{{.Relation}}.{{.Column}}</td>
            <td>{{.RefRelation}}.{{.RefColumn}}</td>
            <td>{{.Checked}}</td>
            <td>{{.Nulls}}</td>
            <td>{{.Violations}}{{if .Sample}} ({{join .Sample}}){{end}}</td>
            <td class="{{if .Status}}status-pass{{else}}status-fail{{end}}">{{if .Status}}PASS{{else}}FAIL{{end}}</td>
        </tr>
        {{end}}
    </table>

    <h2>Primary Keys</h2>
    <table>
        <tr><th>Stage</th><th>Column</th><th>Offset</th><th>Rows</th><th>Duplicates</th><th>Status</th></tr>
        {{range .PrimaryKeys}}
        <tr>
            <td>{{.Stage}}</td>
            <td>{{.Relation}}.{{.Column}}</td>
            <td>{{.Offset}}</td>
            <td>{{.Rows}}</td>
            <td>{{.Duplicates}}</td>
            <td class="{{if .Status}}status-pass{{else}}status-fail{{end}}">{{if .Status}}PASS{{else}}FAIL{{end}}</td>
        </tr>
        {{end}}
    </table>

    <h2>Staffing</h2>
    <p><strong>Unmet hours:</strong> {{.TotalUnmetHours}}</p>
    <p><strong>Unscheduled appointments:</strong> {{len .Unscheduled}}</p>
    <table>
        <tr><th>Month</th><th>Category</th><th>Hours</th></tr>
        {{range .Unmet}}<tr><td>{{.Month}}</td><td>{{.Category}}</td><td>{{.Hours}}</td></tr>{{else}}<tr><td colspan="3">None</td></tr>{{end}}
    </table>

    <h2>Dirty Data</h2>
    <table>
        <tr><th>Relation</th><th>Column</th><th>Operation</th><th>Cells</th></tr>
        {{range .Corruptions}}<tr><td>{{.Relation}}</td><td>{{.Column}}</td><td>{{.Op}}</td><td>{{.Changed}}</td></tr>{{else}}<tr><td colspan="4">None</td></tr>{{end}}
    </table>
    {{if .Drift}}
    <h3>Cells differing from the artificial-unicity snapshot</h3>
    <table>
        <tr><th>Relation</th><th>Column</th><th>Cells</th></tr>
        {{range .Drift}}<tr><td>{{.Relation}}</td><td>{{.Column}}</td><td>{{.Cells}}</td></tr>{{end}}
    </table>
    {{end}}

    <footer>
        <p>Generated on {{.Metadata.EndTime}}</p>
    </footer>
</body>
</html>
`

var funcs = template.FuncMap{
	"join": func(values []string) string { return strings.Join(values, ", ") },
}

var tmpl = template.Must(template.New("report").Funcs(funcs).Parse(htmlTemplate))

// GenerateRunReport renders the HTML summary of a run.
func (h *HTMLReportGenerator) GenerateRunReport(run metrics.RunReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, run); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateAlertNotification generates an HTML alert.
func (h *HTMLReportGenerator) GenerateAlertNotification(run metrics.RunReport) ([]byte, error) {
	alertHTML := fmt.Sprintf(
		`<html><body><h3>Integrity check failed</h3><p>%d foreign key values do not resolve in run %d.</p></body></html>`,
		run.Violations(), run.Metadata.Seed,
	)
	return []byte(alertHTML), nil
}

// SaveReportToFile saves the HTML report to a file.
func (h *HTMLReportGenerator) SaveReportToFile(run metrics.RunReport, filePath string) error {
	data, err := h.GenerateRunReport(run)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// SaveReports saves both JSON and HTML reports.
func SaveReports(run metrics.RunReport, jsonPath, htmlPath string) error {
	jsonGen := JSONReportGenerator{}
	htmlGen := HTMLReportGenerator{}

	if err := jsonGen.SaveReportToFile(run, jsonPath); err != nil {
		return err
	}
	return htmlGen.SaveReportToFile(run, htmlPath)
}

// ReportFromFilePath loads a JSON report.
func ReportFromFilePath(filePath string) (metrics.RunReport, error) {
	store := metrics.JSONMetricsStore{FilePath: filePath}
	return store.Load()
}

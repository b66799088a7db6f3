package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *schema.MaintenanceReport {
	return &schema.MaintenanceReport{
		Cursor:         60,
		RecordsScanned: 60,
		CorruptRecords: 1,
		TestsToRemove: []schema.MaintenanceItem{
			{TestID: "test_legacy", Reason: schema.ReasonObsoleteCandidate, Executions: 60, Detail: "no defects in 60 executions"},
		},
		TestsToAdd: []schema.CoverageGap{
			{ComponentID: "db", DefectDensity: 0.5, Criticality: schema.HighCriticality, RecommendedType: schema.IntegrationTest},
		},
		PriorityAdjustments: []schema.PriorityAdjustment{
			{TestID: "test_legacy", Delta: -0.05, Reasons: []schema.MaintenanceReason{schema.ReasonObsoleteCandidate}},
		},
		Warnings: []schema.Warning{
			{Code: schema.WarnCorruptRecord, Message: "1 execution record was skipped"},
		},
	}
}

func TestWriteMaintenanceText(t *testing.T) {
	cfg := &contract.Config{Precision: 2, HistoryBackend: schema.SQLiteBackend}
	fmtFloat, intFmt := createFormatters(cfg.Precision)

	var buf bytes.Buffer
	require.NoError(t, writeMaintenanceText(&buf, sampleReport(), cfg, fmtFloat, intFmt, 2*time.Second))

	out := buf.String()
	assert.Contains(t, out, "🧹 Tests to remove (1)")
	assert.Contains(t, out, "test_legacy")
	assert.Contains(t, out, "🔧 Tests to update (0)\n   none\n")
	assert.Contains(t, out, "➕ Tests to add (1)")
	assert.Contains(t, out, "-0.05")
	assert.Contains(t, out, "⚠️  corrupt_execution_record: 1 execution record was skipped")
	assert.Contains(t, out, "Scanned 60 records (1 corrupt) up to cursor 60")
	assert.Contains(t, out, "Maintenance completed in 2s. History backend: sqlite")
}

func TestWriteMaintenanceCSV(t *testing.T) {
	fmtFloat, intFmt := createFormatters(2)

	var buf bytes.Buffer
	require.NoError(t, writeMaintenanceCSV(&buf, sampleReport(), fmtFloat, intFmt))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"remove", "test_legacy", "obsolete_candidate", "60", "0", "0.00", "", "no defects in 60 executions"}, records[1])
	assert.Equal(t, []string{"add", "db", "integration", "", "", "", "", "defect_density=0.50 criticality=high"}, records[2])
	assert.Equal(t, []string{"adjust", "test_legacy", "obsolete_candidate", "", "", "", "-0.05", ""}, records[3])
}

func TestPrintMaintenanceReportJSON(t *testing.T) {
	cfg := &contract.Config{Output: schema.JSONOut, Precision: 2}
	cfg.OutputFile = filepath.Join(t.TempDir(), "report.json")

	require.NoError(t, PrintMaintenanceReport(sampleReport(), cfg, time.Second))

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	var decoded schema.MaintenanceReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]float64{"test_legacy": -0.05}, decoded.AdjustmentMap())
	assert.Len(t, decoded.TestsToAdd, 1)
}

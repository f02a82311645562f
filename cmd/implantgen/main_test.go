package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periospot/implantgen/generator"
	"github.com/periospot/implantgen/internal/sink"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	a := newApp()
	a.newRunID = func() string { return "run-test" }
	cmd := newRootCmd(a)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestGenerateAll(t *testing.T) {
	dir := t.TempDir()
	stdout, _, err := execute(t, "generate", "all", "--out", dir, "--cases", "120", "--preview-rows", "10", "--success-preview-rows", "10")
	require.NoError(t, err)

	for _, name := range []string{
		generator.BoneLossTable,
		generator.BoneLossPreviewTable,
		generator.SuccessTable,
		generator.SuccessTrainingTable,
		generator.SuccessPreviewTable,
	} {
		assert.Contains(t, stdout, name+".csv")
		raw, err := os.ReadFile(filepath.Join(dir, name+".csv"))
		require.NoError(t, err, name)
		lines := strings.Count(string(raw), "\n")
		if strings.HasSuffix(name, "_toy") {
			assert.Equal(t, 11, lines, name)
		} else {
			assert.Equal(t, 121, lines, name)
		}
	}

	raw, err := os.ReadFile(filepath.Join(dir, sink.ManifestKey))
	require.NoError(t, err)
	var manifest struct {
		Metadata map[string]string `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, "run-test", manifest.Metadata[sink.MetaRunID])
	assert.Equal(t, "42", manifest.Metadata[sink.MetaSeed])
}

func TestGenerateAllDefaultPreviews(t *testing.T) {
	dir := t.TempDir()
	stdout, _, err := execute(t, "generate", "all", "--out", dir, "--cases", "80")
	require.NoError(t, err)

	tests := []struct {
		name   string
		exists bool
		lines  int
	}{
		{generator.BoneLossPreviewTable, true, 51},
		{generator.SuccessPreviewTable, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := os.ReadFile(filepath.Join(dir, tt.name+".csv"))
			if !tt.exists {
				assert.True(t, os.IsNotExist(err))
				assert.NotContains(t, stdout, tt.name+".csv")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lines, strings.Count(string(raw), "\n"))
		})
	}
}

func TestGenerateIsReproducible(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	_, _, err := execute(t, "generate", "bone-loss", "--out", a, "--seed", "7", "--cases", "50")
	require.NoError(t, err)
	_, _, err = execute(t, "generate", "bone-loss", "--out", b, "--seed", "7", "--cases", "50")
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(a, generator.BoneLossTable+".csv"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(b, generator.BoneLossTable+".csv"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAnalyzeSuccess(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, "analyze", "success", "--out", dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, SuccessReportKey))
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, "run-test", report["run_id"])
	assert.Contains(t, report, "odds_ratios")
}

func TestAnalyzeBoneLoss(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, "analyze", "bone-loss", "--out", dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, BoneLossReportKey))
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, "run-test", report["run_id"])
}

func TestExportSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "implants.db")
	stdout, _, err := execute(t, "export", "sqlite", "--sqlite-path", path, "--cases", "80")
	require.NoError(t, err)
	assert.Contains(t, stdout, generator.SuccessTrainingTable)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+generator.SuccessTable+`"`).Scan(&n))
	assert.Equal(t, 80, n)
}

func TestMetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	metrics := filepath.Join(dir, "implantgen.prom")
	_, _, err := execute(t, "generate", "success", "--out", dir, "--metrics-textfile", metrics)
	require.NoError(t, err)

	raw, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `implantgen_cases_generated_total{dataset="implant_success_data"} 500`)
	assert.Contains(t, string(raw), `implantgen_last_run_timestamp_seconds{run_id="run-test",seed="42"}`)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "implantgen.yaml")
	out := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(cfgPath, []byte("sink:\n  dir: "+out+"\nbone_loss:\n  cases: 30\n"), 0o600))

	_, _, err := execute(t, "generate", "bone-loss", "--config", cfgPath)
	require.NoError(t, err)
	raw, err := os.ReadFile(filepath.Join(out, generator.BoneLossTable+".csv"))
	require.NoError(t, err)
	assert.Equal(t, 31, strings.Count(string(raw), "\n"))
}

func TestInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"log level", []string{"generate", "success", "--out", "x", "--log-level", "verbose"}},
		{"cases", []string{"generate", "success", "--out", "x", "--cases", "0"}},
		{"sink", []string{"generate", "success", "--sink", "ftp"}},
		{"missing config", []string{"generate", "success", "--config", "/nonexistent/implantgen.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

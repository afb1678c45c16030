package reporting

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/decision"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/evaluation"
)

func sampleReport() *evaluation.Report {
	return &evaluation.Report{
		SessionID:     "sess-0011",
		CheckpointID:  "ckpt-2233",
		GeneratedAtMs: 1704067200000, // 2024-01-01T00:00:00Z
		WindowStartMs: 1703980800000,
		WindowEndMs:   1704063600000,

		Events:  200,
		Skips:   120,
		Entries: 80,
		Greens:  52,
		Reds:    28,
		Gated:   15,

		WinRate:   0.65,
		EntryRate: 0.4,

		TotalStaked:   130,
		NetProfit:     12.5,
		ROI:           0.0961,
		FinalBankroll: 112.5,

		MaxDrawdown:          6,
		MaxConsecutiveLosses: 3,

		ProfitMean:   0.156,
		ProfitMedian: 0.9,
		ProfitP10:    -2,
		ProfitP90:    1.8,
		ProfitStddev: 1.42,

		ConfidenceBuckets: []evaluation.ConfidenceBucket{
			{Label: "speculative", Low: 0, High: 0.55, Entries: 10, Greens: 4, WinRate: 0.4},
			{Label: "moderate", Low: 0.55, High: 0.8, Entries: 40, Greens: 26, WinRate: 0.65},
			{Label: "confident", Low: 0.8, High: 1, Entries: 30, Greens: 22, WinRate: 22.0 / 30.0},
		},
		Actions: []evaluation.ActionLine{
			{Action: "SKIP", Decisions: 120},
			{Action: "STAKE_1", Decisions: 30, Greens: 20, Reds: 10, Staked: 30, Profit: 4},
			{Action: "STAKE_2", Decisions: 35, Greens: 23, Reds: 12, Staked: 70, Profit: 6.5},
			{Action: "STAKE_3", Decisions: 15, Greens: 9, Reds: 6, Staked: 30, Profit: 2},
		},
	}
}

func sampleVerdict(t *testing.T) *decision.DecisionResult {
	t.Helper()
	verdict := decision.NewEvaluator(decision.DefaultThresholds()).Evaluate(sampleReport())
	if verdict.Decision != decision.DecisionGO {
		t.Fatalf("fixture report should clear the gate, got %s", verdict.Decision)
	}
	return verdict
}

func TestRenderMarkdown_Sections(t *testing.T) {
	md := RenderMarkdown(sampleReport())

	required := []string{
		"# Evaluation Report",
		"Generated: 2024-01-01T00:00:00Z",
		"Session: `sess-0011`",
		"Checkpoint: `ckpt-2233`",
		"Window: 2023-12-31T00:00:00Z to 2023-12-31T23:00:00Z",
		"## Decisions",
		"## Money Flow",
		"## Risk",
		"## Profit Distribution",
		"## Confidence Buckets",
		"## Actions",
	}
	for _, section := range required {
		if !strings.Contains(md, section) {
			t.Errorf("markdown missing %q", section)
		}
	}
}

func TestRenderMarkdown_Values(t *testing.T) {
	md := RenderMarkdown(sampleReport())

	rows := []string{
		"| Win rate | 0.6500 |",
		"| Gate overrides | 15 |",
		"| Net profit | 12.5000 |",
		"| Max consecutive losses | 3 |",
		"| 0.1560 | 0.9000 | -2.0000 | 1.8000 | 1.4200 |",
		"| moderate | [0.55, 0.80) | 40 | 26 | 0.6500 |",
		"| STAKE_2 | 35 | 23 | 12 | 70.0000 | 6.5000 |",
	}
	for _, row := range rows {
		if !strings.Contains(md, row) {
			t.Errorf("markdown missing row %q", row)
		}
	}
}

func TestRenderSummaryCSV(t *testing.T) {
	csv := RenderSummaryCSV(sampleReport())
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")

	if len(lines) != 2 {
		t.Fatalf("expected header + one row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "session_id,checkpoint_id,window_start_ms") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	want := "sess-0011,ckpt-2233,1703980800000,1704063600000," +
		"200,120,80,52,28,15,0.650000,0.400000," +
		"130.000000,12.500000,0.096100,112.500000,6.000000,3," +
		"0.156000,0.900000,-2.000000,1.800000,1.420000"
	if lines[1] != want {
		t.Errorf("unexpected row:\n got %s\nwant %s", lines[1], want)
	}
}

func TestRenderActionsCSV(t *testing.T) {
	csv := RenderActionsCSV(sampleReport().Actions)
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")

	if len(lines) != 5 {
		t.Fatalf("expected header + 4 rows, got %d lines", len(lines))
	}
	if lines[0] != "action,decisions,greens,reds,staked,profit" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if lines[1] != "SKIP,120,0,0,0.000000,0.000000" {
		t.Errorf("unexpected SKIP row: %s", lines[1])
	}
	if lines[3] != "STAKE_2,35,23,12,70.000000,6.500000" {
		t.Errorf("unexpected STAKE_2 row: %s", lines[3])
	}
}

func TestRenderBucketsCSV(t *testing.T) {
	csv := RenderBucketsCSV(sampleReport().ConfidenceBuckets)
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")

	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "bucket,low,high,entries,greens,win_rate" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if lines[1] != "speculative,0.0000,0.5500,10,4,0.400000" {
		t.Errorf("unexpected speculative row: %s", lines[1])
	}
}

func TestWriteBundle(t *testing.T) {
	dir := t.TempDir()
	fixedTime := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	gen := NewGenerator(dir).WithClock(func() time.Time { return fixedTime })

	manifest, err := gen.Write(sampleReport(), sampleVerdict(t))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if manifest.WrittenAtMs != fixedTime.UnixMilli() {
		t.Errorf("WrittenAtMs = %d, want %d", manifest.WrittenAtMs, fixedTime.UnixMilli())
	}
	if manifest.SessionID != "sess-0011" || manifest.CheckpointID != "ckpt-2233" {
		t.Errorf("manifest ids = %s/%s", manifest.SessionID, manifest.CheckpointID)
	}
	if manifest.Decision != string(decision.DecisionGO) {
		t.Errorf("manifest decision = %q, want GO", manifest.Decision)
	}

	wantFiles := []string{
		FileReportMarkdown, FileReportJSON, FileSummaryCSV,
		FileActionsCSV, FileBucketsCSV, FileGateMarkdown, FileGateJSON,
	}
	if len(manifest.Files) != len(wantFiles) {
		t.Fatalf("manifest lists %d files, want %d: %v", len(manifest.Files), len(wantFiles), manifest.Files)
	}
	for i, name := range wantFiles {
		if manifest.Files[i] != name {
			t.Errorf("manifest.Files[%d] = %s, want %s", i, manifest.Files[i], name)
		}
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("artifact %s not written: %v", name, err)
		}
	}

	md, err := os.ReadFile(filepath.Join(dir, FileGateMarkdown))
	if err != nil {
		t.Fatalf("read gate markdown: %v", err)
	}
	if !strings.Contains(string(md), "## Decision: GO") {
		t.Error("gate markdown missing verdict line")
	}

	raw, err := os.ReadFile(filepath.Join(dir, FileManifest))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var stored Manifest
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if stored.WrittenAtMs != manifest.WrittenAtMs || stored.Decision != manifest.Decision {
		t.Errorf("stored manifest differs: %+v vs %+v", stored, manifest)
	}
}

func TestWriteWithoutVerdict(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(dir)

	manifest, err := gen.Write(sampleReport(), nil)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if manifest.Decision != "" {
		t.Errorf("decision should be empty without a verdict, got %q", manifest.Decision)
	}
	if len(manifest.Files) != 5 {
		t.Errorf("expected 5 artifacts, got %d: %v", len(manifest.Files), manifest.Files)
	}
	if _, err := os.Stat(filepath.Join(dir, FileGateMarkdown)); !os.IsNotExist(err) {
		t.Errorf("gate markdown should not exist, stat err = %v", err)
	}
}

func TestWriteRequiresReport(t *testing.T) {
	gen := NewGenerator(t.TempDir())
	if _, err := gen.Write(nil, nil); err == nil {
		t.Fatal("expected error for nil report")
	}
}

func TestWriteCreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports", "holdout")
	gen := NewGenerator(dir)

	if _, err := gen.Write(sampleReport(), nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileReportMarkdown)); err != nil {
		t.Errorf("report not written into nested dir: %v", err)
	}
}

func TestWriteDeterministic(t *testing.T) {
	fixedTime := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixedTime }

	dirA := t.TempDir()
	dirB := t.TempDir()

	manifestA, err := NewGenerator(dirA).WithClock(clock).Write(sampleReport(), sampleVerdict(t))
	if err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if _, err := NewGenerator(dirB).WithClock(clock).Write(sampleReport(), sampleVerdict(t)); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	names := append(append([]string(nil), manifestA.Files...), FileManifest)
	for _, name := range names {
		a, err := os.ReadFile(filepath.Join(dirA, name))
		if err != nil {
			t.Fatalf("read %s from first dir: %v", name, err)
		}
		b, err := os.ReadFile(filepath.Join(dirB, name))
		if err != nil {
			t.Fatalf("read %s from second dir: %v", name, err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("artifact %s differs between runs", name)
		}
	}
}

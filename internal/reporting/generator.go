// Package reporting renders evaluation reports and deployment verdicts
// into files: markdown for humans, CSV and JSON for tooling.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/decision"
	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/evaluation"
)

// Artifact names inside the output directory.
const (
	FileReportMarkdown = "evaluation_report.md"
	FileReportJSON     = "evaluation_report.json"
	FileSummaryCSV     = "evaluation_summary.csv"
	FileActionsCSV     = "action_breakdown.csv"
	FileBucketsCSV     = "confidence_buckets.csv"
	FileGateMarkdown   = "deployment_gate.md"
	FileGateJSON       = "deployment_gate.json"
	FileManifest       = "manifest.json"
)

// Manifest records what a Write call produced, so tooling can pick up
// the bundle without parsing the markdown.
type Manifest struct {
	WrittenAtMs  int64    `json:"written_at_ms"`
	SessionID    string   `json:"session_id"`
	CheckpointID string   `json:"checkpoint_id"`
	Decision     string   `json:"decision,omitempty"`
	Files        []string `json:"files"`
}

// Generator writes an evaluation bundle into a directory.
type Generator struct {
	dir string
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a generator that writes into dir. The directory
// is created on the first Write.
func NewGenerator(dir string) *Generator {
	return &Generator{
		dir: dir,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Write renders the report, and the verdict when not nil, into the
// output directory. The returned manifest is also written as
// manifest.json; it lists every artifact file except itself.
func (g *Generator) Write(report *evaluation.Report, verdict *decision.DecisionResult) (*Manifest, error) {
	if report == nil {
		return nil, fmt.Errorf("reporting: report is required")
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	manifest := &Manifest{
		WrittenAtMs:  g.now().UnixMilli(),
		SessionID:    report.SessionID,
		CheckpointID: report.CheckpointID,
	}

	if err := g.writeFile(FileReportMarkdown, []byte(RenderMarkdown(report)), manifest); err != nil {
		return nil, err
	}
	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := g.writeFile(FileReportJSON, reportJSON, manifest); err != nil {
		return nil, err
	}
	if err := g.writeFile(FileSummaryCSV, []byte(RenderSummaryCSV(report)), manifest); err != nil {
		return nil, err
	}
	if err := g.writeFile(FileActionsCSV, []byte(RenderActionsCSV(report.Actions)), manifest); err != nil {
		return nil, err
	}
	if err := g.writeFile(FileBucketsCSV, []byte(RenderBucketsCSV(report.ConfidenceBuckets)), manifest); err != nil {
		return nil, err
	}

	if verdict != nil {
		manifest.Decision = string(verdict.Decision)
		if err := g.writeFile(FileGateMarkdown, []byte(decision.RenderMarkdown(verdict)), manifest); err != nil {
			return nil, err
		}
		gateJSON, err := json.MarshalIndent(verdict, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode verdict: %w", err)
		}
		if err := g.writeFile(FileGateJSON, gateJSON, manifest); err != nil {
			return nil, err
		}
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(g.dir, FileManifest), manifestJSON, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", FileManifest, err)
	}

	return manifest, nil
}

func (g *Generator) writeFile(name string, data []byte, manifest *Manifest) error {
	if err := os.WriteFile(filepath.Join(g.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	manifest.Files = append(manifest.Files, name)
	return nil
}

package audit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
)

// Log file suffixes (logs/YYYY-MM-DD_{suffix})
const (
	SuffixQAReport  = "qa_report.json"
	SuffixSummary   = "validation_summary.txt"
	SuffixErrorLog  = "error_log.txt"
	SuffixDataSnap  = "data_snapshot.json"
	ProcessedQAFile = "qa_report"
)

// Summary counts findings by severity
type Summary struct {
	TotalChecks int `json:"total_checks"`
	Blocks      int `json:"blocks"`
	Flags       int `json:"flags"`
	Warnings    int `json:"warnings"`
	Info        int `json:"info"`
}

// Report is qa_report.json
type Report struct {
	Engine     string              `json:"engine"`
	Date       string              `json:"date"`
	Timestamp  string              `json:"timestamp"`
	Status     string              `json:"status"`
	Summary    Summary             `json:"summary"`
	CanPublish bool                `json:"can_publish"`
	Findings   []contracts.Finding `json:"findings"`
	Confidence int                 `json:"confidence"`
}

// NewReport wraps a verdict
func NewReport(date, timestamp string, v contracts.Verdict) Report {
	return Report{
		Engine:    EngineName,
		Date:      date,
		Timestamp: timestamp,
		Status:    v.Status,
		Summary: Summary{
			TotalChecks: len(v.Findings),
			Blocks:      v.Count(contracts.SeverityBlock),
			Flags:       v.Count(contracts.SeverityFlag),
			Warnings:    v.Count(contracts.SeverityWarn),
			Info:        v.Count(contracts.SeverityInfo),
		},
		CanPublish: v.CanPublish,
		Findings:   v.Findings,
		Confidence: v.Confidence,
	}
}

// Verdict returns the manifest view of the report
func (r Report) Verdict() contracts.VerdictSummary {
	return contracts.VerdictSummary{Status: r.Status, Confidence: r.Confidence, CanPublish: r.CanPublish}
}

// Errors returns BLOCK and FLAG findings
func (r Report) Errors() []contracts.Finding {
	var out []contracts.Finding
	for _, f := range r.Findings {
		if f.Severity == contracts.SeverityBlock || f.Severity == contracts.SeverityFlag {
			out = append(out, f)
		}
	}
	return out
}

// SummaryText is the human-readable validation summary
func (r Report) SummaryText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "AgriMacro QA Summary - %s\n", r.Date)
	fmt.Fprintf(&b, "Status: %s\n", r.Status)
	fmt.Fprintf(&b, "Confiança: %d%%\n", r.Confidence)
	fmt.Fprintf(&b, "Can Publish: %t\n", r.CanPublish)
	fmt.Fprintf(&b, "BLOCK: %d | FLAG: %d | WARN: %d | INFO: %d\n\n",
		r.Summary.Blocks, r.Summary.Flags, r.Summary.Warnings, r.Summary.Info)
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "[%s] %s: %s\n", f.Severity, f.Code, f.Message)
	}
	return b.String()
}

// ErrorLogText lists BLOCK and FLAG findings with their details
func (r Report) ErrorLogText() string {
	var b strings.Builder
	for _, f := range r.Errors() {
		fmt.Fprintf(&b, "[%s] %s\n  %s\n", f.Severity, f.Code, f.Message)
		if len(f.Details) > 0 {
			if raw, err := json.Marshal(f.Details); err == nil {
				fmt.Fprintf(&b, "  Details: %s\n", raw)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// DataSnapshot is the condensed view of the data the gate saw
type DataSnapshot struct {
	Date      string             `json:"date"`
	Timestamp string             `json:"timestamp"`
	Prices    map[string]float64 `json:"prices"`
	Adapters  map[string]string  `json:"adapters"`
}

func dataSnapshot(r Report, in *Inputs) DataSnapshot {
	snap := DataSnapshot{
		Date:      r.Date,
		Timestamp: r.Timestamp,
		Prices:    in.History.LastCloses(),
		Adapters:  make(map[string]string, len(in.Snapshots)),
	}
	for name, s := range in.Snapshots {
		snap.Adapters[name] = string(s.Status)
	}
	return snap
}

// Write stores the gate outputs in logs/ and mirrors the report to processed/
func Write(p paths.Paths, r Report, in *Inputs) error {
	if err := store.WriteJSON(p.LogFile(r.Date, SuffixQAReport), r); err != nil {
		return fmt.Errorf("failed to write qa report: %w", err)
	}
	if err := store.WriteFile(p.LogFile(r.Date, SuffixSummary), []byte(r.SummaryText())); err != nil {
		return fmt.Errorf("failed to write validation summary: %w", err)
	}
	if len(r.Errors()) > 0 {
		if err := store.WriteFile(p.LogFile(r.Date, SuffixErrorLog), []byte(r.ErrorLogText())); err != nil {
			return fmt.Errorf("failed to write error log: %w", err)
		}
	}
	if err := store.WriteJSON(p.LogFile(r.Date, SuffixDataSnap), dataSnapshot(r, in)); err != nil {
		return fmt.Errorf("failed to write data snapshot: %w", err)
	}
	if err := store.WriteJSON(p.ProcessedFile(ProcessedQAFile), r); err != nil {
		return fmt.Errorf("failed to mirror qa report: %w", err)
	}
	return nil
}

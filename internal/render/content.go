package render

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/agrimacro/agrimacro/internal/bundle"
	"github.com/agrimacro/agrimacro/internal/contracts"
)

// Schemas a ContentGenerator can produce
const (
	SchemaReportDaily = "report_daily"
	SchemaVideoScript = "video_script"
)

// Disclaimer closes every script and report
const Disclaimer = "Conteúdo informativo. Não constitui recomendação de investimento."

// ContentGenerator turns a bundle into prose or a script.
// 유일한 계약: (bundle, schema) → JSON. 엔진과 무관하게 교체 가능
type ContentGenerator interface {
	Name() string
	Generate(ctx context.Context, b *bundle.Bundle, schema string) ([]byte, error)
}

// ============================================================================
// bundle views shared by the generators and the PDF
// ============================================================================

// Mover is one symbol's daily move
type Mover struct {
	Symbol    string
	Close     contracts.Scalar
	ChangePct float64
}

// TopMovers returns the n largest |daily change| symbols
func TopMovers(b *bundle.Bundle, n int) []Mover {
	out := make([]Mover, 0, len(b.Prices.DailyChangePct))
	for sym, chg := range b.Prices.DailyChangePct {
		out = append(out, Mover{Symbol: sym, Close: b.Prices.Latest[sym], ChangePct: chg})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].ChangePct), math.Abs(out[j].ChangePct)
		if ai != aj {
			return ai > aj
		}
		return out[i].Symbol < out[j].Symbol
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// OutOfNormal returns spreads whose regime is not NORMAL, sorted by name
func OutOfNormal(b *bundle.Bundle) []contracts.ProcessedIndicator {
	var out []contracts.ProcessedIndicator
	for _, name := range sortedKeys(b.Spreads.Spreads) {
		sp := b.Spreads.Spreads[name]
		if sp.Statistics.Regime != contracts.RegimeNormal {
			out = append(out, sp)
		}
	}
	return out
}

// Reading decodes the bundle's daily reading
func Reading(b *bundle.Bundle) (contracts.DailyReading, bool) {
	var r contracts.DailyReading
	if err := json.Unmarshal(b.DailyReading, &r); err != nil || r.Date == "" {
		return r, false
	}
	return r, true
}

// Bilateral decodes the bundle's bilateral indicators
func Bilateral(b *bundle.Bundle) (contracts.BilateralIndicators, bool) {
	var bi contracts.BilateralIndicators
	if err := json.Unmarshal(b.Bilateral, &bi); err != nil || bi.Date == "" {
		return bi, false
	}
	return bi, true
}

// QAStatus reads status and confidence from the bundle's qa_report
func QAStatus(b *bundle.Bundle) (string, int, bool) {
	var qa struct {
		Status     string `json:"status"`
		Confidence int    `json:"confidence"`
	}
	if err := json.Unmarshal(b.QAReport, &qa); err != nil || qa.Status == "" {
		return "", 0, false
	}
	return qa.Status, qa.Confidence, true
}

// DecodeReport decodes and completes generated report_daily JSON.
// 단위·출처가 빠진 scalar 는 번들 값으로 채움
func DecodeReport(raw []byte, b *bundle.Bundle) (contracts.ReportDaily, error) {
	var r contracts.ReportDaily
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("invalid report_daily: %w", err)
	}
	if r.Headline == "" || len(r.Sections) == 0 {
		return r, fmt.Errorf("invalid report_daily: headline and sections are required")
	}
	r.Date = b.Date
	if r.Scalars == nil {
		r.Scalars = make(map[string]contracts.Scalar)
	}
	for sym, s := range r.Scalars {
		ref, ok := b.Prices.Latest[sym]
		if !ok {
			continue
		}
		if s.Unit == "" {
			s.Unit = ref.Unit
		}
		if s.Source == "" {
			s.Source = ref.Source
		}
		if s.AsOf == "" {
			s.AsOf = ref.AsOf
		}
		r.Scalars[sym] = s
	}
	return r, nil
}

// DecodeScript decodes generated video_script JSON
func DecodeScript(raw []byte, b *bundle.Bundle) (contracts.VideoScript, error) {
	var s contracts.VideoScript
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("invalid video_script: %w", err)
	}
	if len(s.Scenes) == 0 {
		return s, fmt.Errorf("invalid video_script: no scenes")
	}
	s.Date = b.Date
	for i := range s.Scenes {
		s.Scenes[i].Index = i + 1
		if s.Scenes[i].DurationS <= 0 {
			s.Scenes[i].DurationS = sceneDuration(s.Scenes[i].Narration)
		}
	}
	if s.Disclaimer == "" {
		s.Disclaimer = Disclaimer
	}
	return s, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

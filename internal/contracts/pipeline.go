package contracts

// 파이프라인 흐름 (SSOT):
//   adapters → seasonality → spreads → stocks → arbitrage → bilateral
//   → daily_reading → report_daily → bundle → audit_gate → pdf, video_script
// 모든 로그, manifest, DB row 에서 이 상수를 사용해야 함

// StepKind groups steps by role
type StepKind string

const (
	// KindAdapter 외부 데이터 수집 (어댑터 1개 = step 1개)
	KindAdapter StepKind = "adapter"

	// KindLoad --skip-collect 시 어댑터 대신 디스크의 latest 스냅샷을 읽음
	KindLoad StepKind = "load"

	// KindIndicator 순수 계산 (seasonality, spreads, stocks, arbitrage, bilateral)
	KindIndicator StepKind = "indicator"

	// KindContent 데일리 리딩, 리포트 내러티브, 번들
	KindContent StepKind = "content"

	// KindGate 감사 게이트. verdict 를 결정
	KindGate StepKind = "gate"

	// KindRenderer PDF, 비디오 스크립트. verdict != BLOCK 또는 --force 일 때만
	KindRenderer StepKind = "renderer"
)

// Step names
const (
	StepSeasonality  = "seasonality"
	StepSpreads      = "spreads"
	StepStocks       = "stocks_watch"
	StepArbitrage    = "arbitrage"
	StepBilateral    = "bilateral"
	StepDailyReading = "daily_reading"
	StepReportDaily  = "report_daily"
	StepBundle       = "report_bundle"
	StepAuditGate    = "audit_gate"
	StepPDF          = "pdf"
	StepVideoScript  = "video_script"
)

// StepStatus is the manifest classification of a step
type StepStatus string

const (
	StepOK    StepStatus = "OK"
	StepWarn  StepStatus = "WARN"
	StepError StepStatus = "ERROR"
)

// StepResult is one entry of the manifest results map
type StepResult struct {
	Status     StepStatus `json:"status"`
	Kind       StepKind   `json:"kind"`
	Error      string     `json:"error,omitempty"`
	CacheNote  string     `json:"cache_note,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}

// VerdictSummary is the verdict as recorded in the manifest
type VerdictSummary struct {
	Status     string `json:"status"`
	Confidence int    `json:"confidence"`
	CanPublish bool   `json:"can_publish"`
}

// RunManifest is last_run.json
// ⭐ SSOT: len(results) == total_steps == ok + warnings + errors
type RunManifest struct {
	RunID          string                `json:"run_id"`
	Date           string                `json:"date"`
	Timestamp      string                `json:"timestamp"`
	ElapsedSeconds float64               `json:"elapsed_seconds"`
	TotalSteps     int                   `json:"total_steps"`
	OK             int                   `json:"ok"`
	Warnings       int                   `json:"warnings"`
	Errors         int                   `json:"errors"`
	Order          []string              `json:"order"`
	Results        map[string]StepResult `json:"results"`
	Forced         bool                  `json:"forced,omitempty"`
	ForceNote      string                `json:"force_note,omitempty"`
	Verdict        *VerdictSummary       `json:"verdict,omitempty"`
	RegistryHash   string                `json:"registry_hash,omitempty"`
}

// NewRunManifest creates an empty manifest
func NewRunManifest(runID, date string) *RunManifest {
	return &RunManifest{
		RunID:   runID,
		Date:    date,
		Order:   []string{},
		Results: make(map[string]StepResult),
	}
}

// Record stores a step result and keeps the counters consistent.
// 같은 step 을 두 번 기록하면 이전 결과를 대체
func (m *RunManifest) Record(name string, r StepResult) {
	if prev, ok := m.Results[name]; ok {
		m.count(prev.Status, -1)
	} else {
		m.Order = append(m.Order, name)
	}
	m.Results[name] = r
	m.count(r.Status, 1)
	m.TotalSteps = len(m.Results)
}

func (m *RunManifest) count(s StepStatus, delta int) {
	switch s {
	case StepOK:
		m.OK += delta
	case StepWarn:
		m.Warnings += delta
	default:
		m.Errors += delta
	}
}

// Consistent checks the manifest counting invariant
func (m *RunManifest) Consistent() bool {
	return len(m.Results) == m.TotalSteps && m.TotalSteps == m.OK+m.Warnings+m.Errors
}

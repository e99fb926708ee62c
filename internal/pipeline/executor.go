package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agrimacro/agrimacro/internal/audit"
	"github.com/agrimacro/agrimacro/internal/bundle"
	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/indicators"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/registry"
	"github.com/agrimacro/agrimacro/internal/render"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/logger"
	"github.com/agrimacro/agrimacro/pkg/metrics"
)

// HistoryYears is how many full calendar years before asOf are collected
const HistoryYears = indicators.SeasonalYears

// ErrCancelled marks a run stopped by its context
var ErrCancelled = errors.New("cancelled")

// RunOptions are the CLI switches of one run
type RunOptions struct {
	Force       bool // BLOCK 이어도 PDF, 비디오 스크립트 생성
	SkipCollect bool // 어댑터 대신 디스크의 latest 스냅샷 사용
	QAOnly      bool // 감사 게이트만 실행
}

// Result is the outcome of a run
type Result struct {
	Manifest *contracts.RunManifest
	QA       *audit.Report
	PDFPath  string
	ExitCode int
}

// StepEvent is published after each step
type StepEvent struct {
	RunID  string               `json:"run_id"`
	Step   string               `json:"step"`
	Index  int                  `json:"index"`
	Total  int                  `json:"total"`
	Result contracts.StepResult `json:"result"`
}

// Observer receives run progress (the API websocket hub)
type Observer interface {
	StepFinished(ev StepEvent)
	RunFinished(m *contracts.RunManifest)
}

// Executor runs the daily pipeline and writes last_run.json
// ⭐ SSOT: step 순서, 분류, exit code 는 여기서만 결정
type Executor struct {
	paths     paths.Paths
	reg       *registry.Registry
	regHash   string
	runner    *collector.Runner
	adapters  []collector.Adapter
	generator render.ContentGenerator
	archive   audit.Archive
	metrics   *metrics.Recorder
	observer  Observer
	logger    *logger.Logger
	now       func() time.Time
	workers   int
	window    int // days; 0 = HistoryYears 전체 연도
}

// NewExecutor creates an Executor
func NewExecutor(p paths.Paths, reg *registry.Registry, runner *collector.Runner, adapters []collector.Adapter, gen render.ContentGenerator, log *logger.Logger) *Executor {
	return &Executor{
		paths:     p,
		reg:       reg,
		runner:    runner,
		adapters:  adapters,
		generator: gen,
		logger:    log.WithField("module", "pipeline"),
		now:       time.Now,
		workers:   1,
	}
}

// WithArchive stores finished runs (nil disables)
func (e *Executor) WithArchive(a audit.Archive) *Executor {
	e.archive = a
	return e
}

// WithMetrics records run metrics and writes logs/metrics.prom
func (e *Executor) WithMetrics(m *metrics.Recorder) *Executor {
	e.metrics = m
	return e
}

// WithObserver publishes run progress
func (e *Executor) WithObserver(o Observer) *Executor {
	e.observer = o
	return e
}

// WithClock overrides the wall clock (tests)
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// WithWorkers sets the adapter fan-out (1 = sequential)
func (e *Executor) WithWorkers(n int) *Executor {
	if n < 1 {
		n = 1
	}
	e.workers = n
	return e
}

// WithWindowDays replaces the calendar-year history window with a fixed
// number of days (0 restores the default)
func (e *Executor) WithWindowDays(days int) *Executor {
	e.window = days
	return e
}

// collectWindow is the range every adapter is asked to cover
func (e *Executor) collectWindow(asOf time.Time) collector.Window {
	if e.window > 0 {
		return collector.NewWindow(asOf, e.window)
	}
	return collector.NewHistoryWindow(asOf, HistoryYears)
}

// WithRegistryHash records the registry hash in the manifest
func (e *Executor) WithRegistryHash(h string) *Executor {
	e.regHash = h
	return e
}

// run holds the state shared by the steps of one execution
type run struct {
	asOf      time.Time
	opts      RunOptions
	engine    *indicators.Engine
	assembler *bundle.Assembler
	report    contracts.ReportDaily
	qa        *audit.Report
	pdfPath   string
	log       *logger.Logger

	collectOnce sync.Once
	collected   map[string]collector.Result
}

// Run executes one pipeline run. The returned error is an executor-level
// fatality (layout, ordering, manifest write, cancellation); step failures
// are recorded in the manifest only.
func (e *Executor) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	start := e.now()
	asOf := start
	date := asOf.Format(contracts.DateLayout)
	runID := asOf.UTC().Format("20060102T150405Z")

	if err := e.paths.Ensure(); err != nil {
		return &Result{ExitCode: 1}, fmt.Errorf("failed to create data layout: %w", err)
	}

	log := e.logger.WithField("run_id", runID)
	state := &run{
		asOf:      asOf,
		opts:      opts,
		engine:    indicators.NewEngine(e.paths, e.reg, asOf, log),
		assembler: bundle.NewAssembler(e.paths, e.reg, log),
		log:       log,
	}

	m := contracts.NewRunManifest(runID, date)
	m.RegistryHash = e.regHash
	if opts.Force {
		m.Forced = true
		m.ForceNote = "renderers run regardless of the audit verdict (--force)"
	}

	steps, err := Order(e.plan(state))
	if err != nil {
		return &Result{Manifest: m, ExitCode: 1}, fmt.Errorf("invalid step graph: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"date":         date,
		"steps":        len(steps),
		"force":        opts.Force,
		"skip_collect": opts.SkipCollect,
		"qa_only":      opts.QAOnly,
		"workers":      e.workers,
	}).Info("Starting pipeline run")

	cancelled := false
	for i, s := range steps {
		if ctx.Err() != nil {
			cancelled = true
			for _, rest := range steps[i:] {
				m.Record(rest.Name, contracts.StepResult{
					Status: contracts.StepError,
					Kind:   rest.Kind,
					Error:  ErrCancelled.Error(),
				})
			}
			log.WithField("remaining", len(steps)-i).Warn("run cancelled")
			break
		}

		// 렌더러는 verdict 가 BLOCK 이 아니거나 --force 일 때만
		if s.Kind == contracts.KindRenderer && !state.publishable() {
			log.WithField("step", s.Name).Warn("renderer skipped: audit verdict blocks publication")
			continue
		}

		res := e.runStep(ctx, s)
		m.Record(s.Name, res)
		if s.Name == contracts.StepAuditGate && state.qa != nil {
			v := state.qa.Verdict()
			m.Verdict = &v
		}

		if e.metrics != nil {
			e.metrics.RecordStep(s.Name, string(res.Status), float64(res.DurationMs)/1000)
		}
		if e.observer != nil {
			e.observer.StepFinished(StepEvent{RunID: runID, Step: s.Name, Index: i + 1, Total: len(steps), Result: res})
		}
	}

	end := e.now()
	m.Timestamp = end.UTC().Format(time.RFC3339)
	m.ElapsedSeconds = end.Sub(start).Seconds()

	result := &Result{Manifest: m, QA: state.qa, PDFPath: state.pdfPath}

	if err := store.WriteJSON(e.paths.Manifest(), m); err != nil {
		result.ExitCode = 1
		return result, fmt.Errorf("failed to write run manifest: %w", err)
	}

	e.finish(m, state)

	log.WithFields(map[string]interface{}{
		"ok":       m.OK,
		"warnings": m.Warnings,
		"errors":   m.Errors,
		"elapsed":  fmt.Sprintf("%.1fs", m.ElapsedSeconds),
		"verdict":  verdictStatus(state.qa),
	}).Info("Pipeline run finished")

	if cancelled {
		result.ExitCode = 1
		return result, fmt.Errorf("run %s: %w", runID, ErrCancelled)
	}
	result.ExitCode = ExitCode(state.qa, opts.Force)
	return result, nil
}

// runStep executes one step and converts its outcome into a manifest entry
func (e *Executor) runStep(ctx context.Context, s Step) (res contracts.StepResult) {
	start := e.now()
	log := e.logger.WithField("step", s.Name)

	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", fmt.Sprint(rec)).Error("step panicked")
			res = contracts.StepResult{Status: contracts.StepError, Kind: s.Kind, Error: fmt.Sprintf("panic: %v", rec)}
		}
		res.DurationMs = e.now().Sub(start).Milliseconds()
	}()

	out := s.Run(ctx)
	res = contracts.StepResult{Status: out.Status, Kind: s.Kind, CacheNote: out.CacheNote}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}

	switch out.Status {
	case contracts.StepOK:
		log.Debug("step ok")
	case contracts.StepWarn:
		log.WithError(out.Err).Warn("step degraded")
	default:
		log.WithError(out.Err).Error("step failed")
	}
	return res
}

// finish archives the run, writes metrics and notifies the observer.
// 여기서의 실패는 run 결과를 바꾸지 않음
func (e *Executor) finish(m *contracts.RunManifest, state *run) {
	if e.archive != nil {
		rec, err := audit.NewRunRecord(m, state.qa)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err = e.archive.SaveRun(ctx, rec)
			cancel()
		}
		if err != nil {
			e.logger.WithError(err).Warn("failed to archive run")
		}
	}

	if e.metrics != nil {
		if state.qa != nil {
			for _, f := range state.qa.Findings {
				e.metrics.RecordFinding(string(f.Severity), f.Code)
			}
			e.metrics.RecordVerdict(float64(state.qa.Confidence), e.now().Unix())
		}
		if err := e.metrics.WriteTextfile(e.paths.Metrics()); err != nil {
			e.logger.WithError(err).Warn("failed to write metrics")
		}
	}

	if e.observer != nil {
		e.observer.RunFinished(m)
	}
}

// ExitCode maps the verdict to the process exit status
func ExitCode(qa *audit.Report, force bool) int {
	if qa != nil && qa.Status == contracts.VerdictBlock && !force {
		return 1
	}
	return 0
}

func verdictStatus(qa *audit.Report) string {
	if qa == nil {
		return "NONE"
	}
	return qa.Status
}

// publishable reports whether renderers may run
func (r *run) publishable() bool {
	if r.opts.Force {
		return true
	}
	return r.qa != nil && r.qa.Status != contracts.VerdictBlock
}

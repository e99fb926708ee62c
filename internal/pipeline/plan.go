package pipeline

import (
	"context"
	"fmt"

	"github.com/agrimacro/agrimacro/internal/audit"
	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/reading"
	"github.com/agrimacro/agrimacro/internal/registry"
	"github.com/agrimacro/agrimacro/internal/render"
	"github.com/agrimacro/agrimacro/pkg/metrics"
)

// =============================================================================
// Step graph
// adapters → seasonality → spreads → stocks → arbitrage → bilateral
// → daily_reading → report_daily → report_bundle → audit_gate → pdf, video_script
// =============================================================================

// plan declares the steps of a run for the given options
func (e *Executor) plan(state *run) []Step {
	gate := Step{
		Name: contracts.StepAuditGate,
		Kind: contracts.KindGate,
		Run:  func(ctx context.Context) Outcome { return e.runGate(state) },
	}
	if state.opts.QAOnly {
		return []Step{gate}
	}

	var steps []Step
	var sources []string
	for _, a := range e.adapters {
		a := a
		s := Step{Name: a.Name()}
		if state.opts.SkipCollect {
			s.Kind = contracts.KindLoad
			s.Run = func(ctx context.Context) Outcome { return e.load(state, a.Name()) }
		} else {
			s.Kind = contracts.KindAdapter
			s.Run = func(ctx context.Context) Outcome { return e.collect(ctx, state, a) }
		}
		steps = append(steps, s)
		sources = append(sources, s.Name)
	}

	prev := sources
	for _, is := range state.engine.Steps() {
		is := is
		steps = append(steps, Step{
			Name: is.Name,
			Kind: contracts.KindIndicator,
			Deps: prev,
			Run: func(ctx context.Context) Outcome {
				if err := is.Run(); err != nil {
					return Failed(err)
				}
				return OK()
			},
		})
		prev = []string{is.Name}
	}

	steps = append(steps,
		Step{
			Name: contracts.StepDailyReading,
			Kind: contracts.KindContent,
			Deps: prev,
			Run: func(ctx context.Context) Outcome {
				if _, err := reading.Write(e.paths, state.asOf, state.log); err != nil {
					return Failed(err)
				}
				return OK()
			},
		},
		Step{
			Name: contracts.StepReportDaily,
			Kind: contracts.KindContent,
			Deps: []string{contracts.StepDailyReading},
			Run:  func(ctx context.Context) Outcome { return e.runReport(ctx, state) },
		},
		Step{
			Name: contracts.StepBundle,
			Kind: contracts.KindContent,
			Deps: []string{contracts.StepReportDaily},
			Run: func(ctx context.Context) Outcome {
				if _, err := state.assembler.Write(state.asOf); err != nil {
					return Failed(err)
				}
				return OK()
			},
		},
	)

	gate.Deps = []string{contracts.StepBundle}
	steps = append(steps, gate,
		Step{
			Name: contracts.StepPDF,
			Kind: contracts.KindRenderer,
			Deps: []string{contracts.StepAuditGate},
			Run:  func(ctx context.Context) Outcome { return e.runPDF(state) },
		},
		Step{
			Name: contracts.StepVideoScript,
			Kind: contracts.KindRenderer,
			Deps: []string{contracts.StepAuditGate},
			Run:  func(ctx context.Context) Outcome { return e.runVideo(ctx, state) },
		},
	)
	return steps
}

// =============================================================================
// Adapter steps
// =============================================================================

// collect runs one adapter (or reads its share of the fan-out) and publishes it
func (e *Executor) collect(ctx context.Context, state *run, a collector.Adapter) Outcome {
	w := e.collectWindow(state.asOf)
	opts := collector.Options{AsOf: state.asOf}

	var res collector.Result
	if e.workers > 1 {
		// 첫 어댑터 step 에서 전체를 병렬 수집, 이후 step 은 결과만 기록
		state.collectOnce.Do(func() {
			state.collected = e.runner.CollectAll(ctx, e.adapters, w, opts, e.workers)
		})
		res = state.collected[a.Name()]
		if res.Adapter == "" {
			res = e.runner.Collect(ctx, a, w, opts)
		}
	} else {
		res = e.runner.Collect(ctx, a, w, opts)
	}
	return e.publish(state, res)
}

// load reads the latest snapshot from disk (--skip-collect)
func (e *Executor) load(state *run, name string) Outcome {
	return e.publish(state, e.runner.LoadLatest(name))
}

// publish classifies a collection result and mirrors the snapshot into processed/
func (e *Executor) publish(state *run, res collector.Result) Outcome {
	out := Classify(e.reg.Level(res.Adapter), res)
	e.recordAdapter(res)

	if res.Snapshot.Usable() {
		if err := state.engine.Publish(res.Adapter, res.Snapshot); err != nil {
			if e.reg.Level(res.Adapter) == registry.LevelCritical {
				return Failed(err)
			}
			return Warned(err)
		}
	}
	return out
}

// Classify maps an adapter result to a step outcome:
// ok → OK, cached → OK + cache_note, error → ERROR (critical) or WARN
func Classify(level registry.Level, res collector.Result) Outcome {
	switch res.Status() {
	case contracts.SnapshotOK:
		return OK()
	case contracts.SnapshotCached:
		return Outcome{Status: contracts.StepOK, CacheNote: res.Snapshot.CacheNote}
	}

	err := res.Err
	if err == nil {
		err = fmt.Errorf("%s returned no usable snapshot", res.Adapter)
	}
	if level == registry.LevelCritical {
		return Failed(err)
	}
	return Warned(err)
}

func (e *Executor) recordAdapter(res collector.Result) {
	if e.metrics == nil {
		return
	}
	status := metrics.AdapterError
	switch res.Status() {
	case contracts.SnapshotOK:
		status = metrics.AdapterOK
	case contracts.SnapshotCached:
		status = metrics.AdapterCached
	}
	e.metrics.RecordAdapter(res.Adapter, status)
}

// =============================================================================
// Content, gate, renderers
// =============================================================================

func (e *Executor) runReport(ctx context.Context, state *run) Outcome {
	b := state.assembler.Assemble(state.asOf)
	r, err := render.WriteReportDaily(ctx, e.generator, b, e.paths, state.log)
	if err != nil {
		return Failed(err)
	}
	state.report = r
	return OK()
}

func (e *Executor) runGate(state *run) Outcome {
	in := audit.LoadInputs(e.paths, e.reg.Adapters(), state.asOf, e.now())
	rep := audit.NewGate(e.reg, state.log).Run(in)
	state.qa = &rep

	if err := audit.Write(e.paths, rep, in); err != nil {
		return Failed(err)
	}
	if err := state.assembler.AttachQA(rep); err != nil {
		// --qa-only 에서는 번들이 없을 수 있음
		state.log.WithError(err).Warn("qa report not attached to bundle")
	}
	return OK()
}

func (e *Executor) runPDF(state *run) Outcome {
	// QA 결과가 반영된 번들로 렌더링
	b := state.assembler.Assemble(state.asOf)
	if len(state.report.Sections) == 0 {
		r, err := render.WriteReportDaily(context.Background(), render.NewTemplateGenerator(), b, e.paths, state.log)
		if err != nil {
			return Failed(err)
		}
		state.report = r
	}

	path, err := render.NewPDFRenderer(e.paths, state.log).Render(b, state.report)
	if err != nil {
		return Failed(err)
	}
	state.pdfPath = path
	return OK()
}

func (e *Executor) runVideo(ctx context.Context, state *run) Outcome {
	b := state.assembler.Assemble(state.asOf)
	if _, err := render.NewVideoScriptRenderer(e.generator, e.paths, state.log).Render(ctx, b); err != nil {
		return Failed(err)
	}
	return OK()
}

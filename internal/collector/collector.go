package collector

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agrimacro/agrimacro/internal/cache"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/config"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Window is the date range an adapter is asked to cover
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow returns the window ending at asOf and spanning days back
func NewWindow(asOf time.Time, days int) Window {
	return Window{From: asOf.AddDate(0, 0, -days), To: asOf}
}

// NewHistoryWindow starts on Jan 1 of asOf.Year()-years so the oldest
// calendar year is fully covered
func NewHistoryWindow(asOf time.Time, years int) Window {
	return Window{From: time.Date(asOf.Year()-years, time.January, 1, 0, 0, 0, 0, asOf.Location()), To: asOf}
}

// Period converts the window for the snapshot envelope
func (w Window) Period() contracts.Period {
	return contracts.Period{From: w.From.Format(contracts.DateLayout), To: w.To.Format(contracts.DateLayout)}
}

// Options carries per-run settings for adapters
type Options struct {
	AsOf time.Time // 실행 기준일 (calendar, export race 등)
}

// Adapter is the uniform contract of every upstream source.
// Fetch 는 typed payload 를 반환. 재시도, 캐시, 파일 기록은 Runner 가 담당
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, w Window, opts Options) (interface{}, error)
}

// Result is the outcome of one collection
type Result struct {
	Adapter  string
	Snapshot *contracts.RawSnapshot
	Attempts int
	Err      error
	Duration time.Duration
}

// Status returns the snapshot status (error when no snapshot)
func (r Result) Status() contracts.SnapshotStatus {
	if r.Snapshot == nil {
		return contracts.SnapshotError
	}
	return r.Snapshot.Status
}

// Runner executes adapters with retry, cache fallback and snapshot writes
// ⭐ SSOT: 어댑터 실행 규칙은 여기서만. 어댑터는 executor 에 에러를 던지지 않음
type Runner struct {
	paths       paths.Paths
	cache       *cache.Store
	logger      *logger.Logger
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a Runner
func NewRunner(p paths.Paths, c *cache.Store, cfg config.CollectConfig, log *logger.Logger) *Runner {
	return &Runner{
		paths:       p,
		cache:       c,
		logger:      log.WithField("module", "collector"),
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// WithClock overrides the wall clock (tests)
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// WithSleeper overrides the backoff sleeper (tests)
func (r *Runner) WithSleeper(fn func(ctx context.Context, d time.Duration) error) *Runner {
	r.sleep = fn
	return r
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Collect runs one adapter. It never panics and never returns an error:
// failures are reported in the snapshot status.
func (r *Runner) Collect(ctx context.Context, a Adapter, w Window, opts Options) (res Result) {
	name := a.Name()
	start := r.now()
	log := r.logger.WithField("adapter", name)

	res = Result{Adapter: name}
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			log.WithField("stack", string(debug.Stack())).Error("adapter panicked")
			res.Err = err
			res.Snapshot = r.fallback(ctx, name, w, err)
		}
		res.Duration = r.now().Sub(start)
	}()

	data, attempts, err := r.fetchWithRetry(ctx, a, w, opts)
	res.Attempts = attempts

	if err == nil {
		snap, serr := r.persist(ctx, name, w, data)
		if serr == nil {
			log.WithField("attempts", attempts).Info("adapter collected")
			res.Snapshot = snap
			return res
		}
		err = serr
	}

	log.WithError(err).WithFields(map[string]interface{}{
		"attempts": attempts,
		"kind":     contracts.ErrorKind(err),
	}).Warn("adapter failed, trying cache")

	res.Err = err
	res.Snapshot = r.fallback(ctx, name, w, err)
	return res
}

// fetchWithRetry retries temporary transport errors with linear backoff
func (r *Runner) fetchWithRetry(ctx context.Context, a Adapter, w Window, opts Options) (interface{}, int, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}

		data, err := a.Fetch(ctx, w, opts)
		if err == nil {
			return data, attempt, nil
		}
		lastErr = err

		if !contracts.IsRetryable(err) || attempt == r.maxAttempts {
			return nil, attempt, err
		}

		delay := httputil.Backoff(r.retryDelay, attempt, 0)
		r.logger.WithFields(map[string]interface{}{
			"adapter": a.Name(),
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("retrying adapter")

		if err := r.sleep(ctx, delay); err != nil {
			return nil, attempt, err
		}
	}
	return nil, r.maxAttempts, lastErr
}

// persist writes the timestamped snapshot, the latest pointer and the cache
func (r *Runner) persist(ctx context.Context, name string, w Window, data interface{}) (*contracts.RawSnapshot, error) {
	at := r.now()
	snap, err := contracts.NewSnapshot(name, at, w.Period(), data)
	if err != nil {
		return nil, &contracts.ParseError{Source: name, Err: err}
	}

	if err := store.WriteJSON(r.paths.Snapshot(name, at), snap); err != nil {
		return nil, err
	}
	if err := store.WriteJSON(r.paths.Latest(name), snap); err != nil {
		return nil, err
	}
	if err := r.cache.Save(ctx, name, snap); err != nil {
		r.logger.WithError(err).WithField("adapter", name).Warn("cache update failed")
	}
	return snap, nil
}

// fallback serves the last-good snapshot or an error snapshot
func (r *Runner) fallback(ctx context.Context, name string, w Window, cause error) *contracts.RawSnapshot {
	var snap *contracts.RawSnapshot
	cached, err := r.cache.Load(ctx, name)
	if err == nil {
		snap = cached
		snap.Status = contracts.SnapshotCached
		snap.CacheNote = fmt.Sprintf("served last-good snapshot from %s after %s error: %v",
			snap.CollectionTimestamp, contracts.ErrorKind(cause), cause)
		snap.Errors = map[string]string{"fetch": cause.Error()}
	} else {
		snap = &contracts.RawSnapshot{
			Source:              name,
			CollectionTimestamp: r.now().UTC().Format(time.RFC3339),
			Status:              contracts.SnapshotError,
			Period:              w.Period(),
			Errors: map[string]string{
				"kind":    contracts.ErrorKind(cause),
				"message": cause.Error(),
				"cache":   "miss",
			},
		}
	}

	if werr := store.WriteJSON(r.paths.Latest(name), snap); werr != nil {
		r.logger.WithError(werr).WithField("adapter", name).Error("failed to write latest snapshot")
	}
	return snap
}

// CollectAll runs adapters with at most workers in flight.
// workers=1 이면 선언 순서대로 순차 실행
func (r *Runner) CollectAll(ctx context.Context, adapters []Adapter, w Window, opts Options, workers int) map[string]Result {
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	results := make(map[string]Result, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, a := range adapters {
		a := a
		g.Go(func() error {
			res := r.Collect(gctx, a, w, opts)
			mu.Lock()
			results[res.Adapter] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// LoadLatest reads {adapter}_latest.json without fetching (--skip-collect)
func (r *Runner) LoadLatest(name string) Result {
	var snap contracts.RawSnapshot
	if err := store.ReadJSON(r.paths.Latest(name), &snap); err != nil {
		return Result{
			Adapter: name,
			Err:     fmt.Errorf("no latest snapshot for %s: %w", name, err),
			Snapshot: &contracts.RawSnapshot{
				Source: name,
				Status: contracts.SnapshotError,
				Errors: map[string]string{"kind": "load", "message": err.Error()},
			},
		}
	}
	return Result{Adapter: name, Snapshot: &snap}
}

// Names returns adapter names sorted (for logs)
func Names(adapters []Adapter) []string {
	out := make([]string, len(adapters))
	for i, a := range adapters {
		out[i] = a.Name()
	}
	sort.Strings(out)
	return out
}

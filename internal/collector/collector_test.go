package collector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/internal/cache"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/config"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

type fakeAdapter struct {
	name  string
	calls int32
	fn    func(call int) (interface{}, error)
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(_ context.Context, _ Window, _ Options) (interface{}, error) {
	n := atomic.AddInt32(&f.calls, 1)
	return f.fn(int(n))
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func newRunner(t *testing.T) (*Runner, paths.Paths, *sleepRecorder) {
	t.Helper()
	p := paths.New(t.TempDir())
	cfg := config.CollectConfig{Workers: 2, MaxAttempts: 3, RetryDelay: 2 * time.Second}
	rec := &sleepRecorder{}
	r := NewRunner(p, cache.New(p, nil, logger.Nop()), cfg, logger.Nop()).
		WithClock(func() time.Time { return fixedNow }).
		WithSleeper(rec.sleep)
	return r, p, rec
}

func window() Window {
	return NewWindow(fixedNow, 30)
}

func TestCollect_Success(t *testing.T) {
	r, p, _ := newRunner(t)
	a := &fakeAdapter{name: "bcb", fn: func(int) (interface{}, error) {
		return map[string]float64{"ptax": 5.41}, nil
	}}

	res := r.Collect(context.Background(), a, window(), Options{AsOf: fixedNow})

	require.NoError(t, res.Err)
	assert.Equal(t, contracts.SnapshotOK, res.Status())
	assert.Equal(t, 1, res.Attempts)
	assert.True(t, store.Exists(p.Snapshot("bcb", fixedNow)))
	assert.True(t, store.Exists(p.Latest("bcb")))
	assert.True(t, store.Exists(p.Cache("bcb")))

	var latest contracts.RawSnapshot
	require.NoError(t, store.ReadJSON(p.Latest("bcb"), &latest))
	assert.Equal(t, "2026-01-31", latest.Period.From)
	assert.Equal(t, "2026-03-02", latest.Period.To)
}

func TestCollect_RetriesTemporaryTransportErrors(t *testing.T) {
	r, _, rec := newRunner(t)
	a := &fakeAdapter{name: "eia", fn: func(call int) (interface{}, error) {
		if call < 3 {
			return nil, &contracts.TransportError{Source: "eia", Op: "get", StatusCode: 503, Err: errors.New("unavailable")}
		}
		return map[string]int{"ok": 1}, nil
	}}

	res := r.Collect(context.Background(), a, window(), Options{})

	assert.Equal(t, contracts.SnapshotOK, res.Status())
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestCollect_NoRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"parse error", &contracts.ParseError{Source: "cot", Err: errors.New("missing column")}},
		{"client error", &contracts.TransportError{Source: "cot", Op: "get", StatusCode: 404, Err: errors.New("not found")}},
		{"plain error", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, rec := newRunner(t)
			a := &fakeAdapter{name: "cot", fn: func(int) (interface{}, error) { return nil, tt.err }}

			res := r.Collect(context.Background(), a, window(), Options{})

			assert.Equal(t, 1, res.Attempts)
			assert.Empty(t, rec.delays)
			assert.Equal(t, contracts.SnapshotError, res.Status())
			assert.ErrorIs(t, res.Err, tt.err)
		})
	}
}

func TestCollect_GivesUpAfterMaxAttempts(t *testing.T) {
	r, _, rec := newRunner(t)
	a := &fakeAdapter{name: "weather", fn: func(int) (interface{}, error) {
		return nil, &contracts.TransportError{Source: "weather", Op: "get", Err: errors.New("timeout")}
	}}

	res := r.Collect(context.Background(), a, window(), Options{})

	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, rec.delays, 2)
	assert.Equal(t, contracts.SnapshotError, res.Status())
	assert.Equal(t, "transport", res.Snapshot.Errors["kind"])
	assert.Equal(t, "miss", res.Snapshot.Errors["cache"])
}

func TestCollect_FallsBackToCache(t *testing.T) {
	r, p, _ := newRunner(t)
	fail := false
	a := &fakeAdapter{name: "cot", fn: func(int) (interface{}, error) {
		if fail {
			return nil, &contracts.ParseError{Source: "cot", Err: errors.New("layout changed")}
		}
		return map[string]string{"market": "corn"}, nil
	}}

	first := r.Collect(context.Background(), a, window(), Options{})
	require.Equal(t, contracts.SnapshotOK, first.Status())

	fail = true
	second := r.Collect(context.Background(), a, window(), Options{})

	assert.Equal(t, contracts.SnapshotCached, second.Status())
	assert.Contains(t, second.Snapshot.CacheNote, "parse")
	assert.JSONEq(t, `{"market":"corn"}`, string(second.Snapshot.Data))

	var latest contracts.RawSnapshot
	require.NoError(t, store.ReadJSON(p.Latest("cot"), &latest))
	assert.Equal(t, contracts.SnapshotCached, latest.Status)
	assert.Equal(t, first.Snapshot.CollectionTimestamp, latest.CollectionTimestamp)
}

func TestCollect_RecoversPanic(t *testing.T) {
	r, _, _ := newRunner(t)
	a := &fakeAdapter{name: "news", fn: func(int) (interface{}, error) {
		panic("nil map")
	}}

	res := r.Collect(context.Background(), a, window(), Options{})

	assert.Equal(t, contracts.SnapshotError, res.Status())
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "nil map")
}

func TestCollect_CancelledContext(t *testing.T) {
	r, _, _ := newRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &fakeAdapter{name: "prices", fn: func(int) (interface{}, error) { return 1, nil }}
	res := r.Collect(ctx, a, window(), Options{})

	assert.Equal(t, int32(0), atomic.LoadInt32(&a.calls))
	assert.Equal(t, contracts.SnapshotError, res.Status())
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestCollectAll(t *testing.T) {
	r, _, _ := newRunner(t)

	var inFlight, peak int32
	adapters := make([]Adapter, 0, 6)
	for i := 0; i < 6; i++ {
		i := i
		adapters = append(adapters, &fakeAdapter{name: fmt.Sprintf("a%d", i), fn: func(int) (interface{}, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			if i == 3 {
				return nil, errors.New("down")
			}
			return i, nil
		}})
	}

	results := r.CollectAll(context.Background(), adapters, window(), Options{}, 2)

	require.Len(t, results, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, contracts.SnapshotError, results["a3"].Status())
	assert.Equal(t, contracts.SnapshotOK, results["a0"].Status())
}

func TestLoadLatest(t *testing.T) {
	r, _, _ := newRunner(t)

	missing := r.LoadLatest("ibge")
	assert.Error(t, missing.Err)
	assert.Equal(t, contracts.SnapshotError, missing.Status())

	a := &fakeAdapter{name: "ibge", fn: func(int) (interface{}, error) { return []int{1}, nil }}
	r.Collect(context.Background(), a, window(), Options{})

	got := r.LoadLatest("ibge")
	require.NoError(t, got.Err)
	assert.Equal(t, contracts.SnapshotOK, got.Status())
}

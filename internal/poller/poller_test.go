package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gwi.com/notebook-console/internal/backend"
)

// ========== fakes ==========

type fakeTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
	created int
}

func (fc *fakeClock) NewTicker(time.Duration) Ticker {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	t := &fakeTicker{c: make(chan time.Time, 1)}
	fc.tickers = append(fc.tickers, t)
	fc.created++
	return t
}

// Active counts tickers that were created and not stopped.
func (fc *fakeClock) Active() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	n := 0
	for _, t := range fc.tickers {
		if !t.stopped.Load() {
			n++
		}
	}
	return n
}

func (fc *fakeClock) Tick() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for _, t := range fc.tickers {
		if t.stopped.Load() {
			continue
		}
		select {
		case t.c <- time.Now():
		default:
		}
	}
}

// scriptedFetcher returns responses in order, repeating the last one.
type scriptedFetcher struct {
	mu        sync.Mutex
	responses [][]backend.NotebookSource
	errs      []error
	calls     int
	notebooks []string
}

func (f *scriptedFetcher) ListNotebookSources(_ context.Context, _ string, notebookID string) ([]backend.NotebookSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	f.calls++
	f.notebooks = append(f.notebooks, notebookID)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.responses[i], err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func entries(statuses ...backend.SourceStatus) []backend.NotebookSource {
	out := make([]backend.NotebookSource, len(statuses))
	for i, st := range statuses {
		out[i] = backend.NotebookSource{
			SourceID: string(rune('a' + i)),
			Position: i,
			Source:   &backend.Source{ID: string(rune('a' + i)), Status: st},
		}
	}
	return out
}

func next(t *testing.T, sub *Subscription) Update {
	t.Helper()
	select {
	case u, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription channel closed")
		}
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

// ========== tests ==========

func TestHasProcessingSources(t *testing.T) {
	if HasProcessingSources(nil) {
		t.Error("empty list has nothing processing")
	}
	if HasProcessingSources([]backend.Source{{Status: backend.StatusIndexed}, {Status: backend.StatusFailed}}) {
		t.Error("terminal-only list reported processing")
	}
	if !HasProcessingSources([]backend.Source{{Status: backend.StatusIndexed}, {Status: backend.StatusPending}}) {
		t.Error("pending source not detected")
	}
	if !HasProcessingSources([]backend.Source{{Status: backend.StatusProcessing}}) {
		t.Error("processing source not detected")
	}
}

func TestPolling_OneIntervalWhilePendingZeroAfter(t *testing.T) {
	clock := &fakeClock{}
	f := &scriptedFetcher{responses: [][]backend.NotebookSource{
		entries(backend.StatusPending, backend.StatusIndexed),
		entries(backend.StatusProcessing, backend.StatusIndexed),
		entries(backend.StatusIndexed, backend.StatusIndexed),
	}}
	svc := NewService(f, time.Second, WithTicker(clock.NewTicker))
	defer svc.Close()

	sub := svc.Subscribe("tok", "nb1")
	defer sub.Close()

	u := next(t, sub)
	if !u.Processing {
		t.Fatal("first update should report processing")
	}
	if got := clock.Active(); got != 1 {
		t.Fatalf("active intervals = %d, want 1 while pending", got)
	}

	clock.Tick()
	u = next(t, sub)
	if !u.Processing {
		t.Fatal("second update should still report processing")
	}
	if got := clock.Active(); got != 1 {
		t.Fatalf("active intervals = %d, want still exactly 1", got)
	}
	if clock.created != 1 {
		t.Errorf("tickers created = %d, want the same ticker reused", clock.created)
	}

	clock.Tick()
	u = next(t, sub)
	if u.Processing {
		t.Fatal("third update should be terminal")
	}
	if got := clock.Active(); got != 0 {
		t.Errorf("active intervals = %d, want 0 once every source is terminal", got)
	}
}

func TestPolling_NoIntervalWhenAllTerminal(t *testing.T) {
	clock := &fakeClock{}
	f := &scriptedFetcher{responses: [][]backend.NotebookSource{
		entries(backend.StatusIndexed, backend.StatusFailed),
	}}
	svc := NewService(f, time.Second, WithTicker(clock.NewTicker))
	defer svc.Close()

	sub := svc.Subscribe("tok", "nb1")
	defer sub.Close()
	next(t, sub)

	if got := clock.Active(); got != 0 {
		t.Errorf("active intervals = %d, want 0", got)
	}
}

func TestRefresh_RestartsPolling(t *testing.T) {
	clock := &fakeClock{}
	f := &scriptedFetcher{responses: [][]backend.NotebookSource{
		entries(backend.StatusIndexed),
		entries(backend.StatusIndexed, backend.StatusPending),
	}}
	svc := NewService(f, time.Second, WithTicker(clock.NewTicker))
	defer svc.Close()

	sub := svc.Subscribe("tok", "nb1")
	defer sub.Close()
	next(t, sub)
	if clock.Active() != 0 {
		t.Fatal("no interval expected before refresh")
	}

	svc.Refresh("tok", "nb1")
	u := next(t, sub)
	if !u.Processing || len(u.Sources) != 2 {
		t.Fatalf("update after refresh = %+v", u)
	}
	if got := clock.Active(); got != 1 {
		t.Errorf("active intervals = %d, want 1 after a new pending source", got)
	}
}

func TestSubscribe_SharesOneLoopPerNotebook(t *testing.T) {
	clock := &fakeClock{}
	f := &scriptedFetcher{responses: [][]backend.NotebookSource{entries(backend.StatusIndexed)}}
	svc := NewService(f, time.Second, WithTicker(clock.NewTicker))
	defer svc.Close()

	a := svc.Subscribe("tok", "nb1")
	next(t, a)
	b := svc.Subscribe("tok", "nb1")
	next(t, b) // late subscriber gets the cached update

	if got := svc.ActiveLoops(); got != 1 {
		t.Errorf("loops = %d, want 1", got)
	}
	if got := f.Calls(); got != 1 {
		t.Errorf("fetches = %d, want 1 (no duplicate network calls)", got)
	}

	a.Close()
	if got := svc.ActiveLoops(); got != 1 {
		t.Errorf("loops after first close = %d, want 1", got)
	}
	b.Close()
	if got := svc.ActiveLoops(); got != 0 {
		t.Errorf("loops after last close = %d, want 0", got)
	}
	if _, ok := <-b.C; ok {
		t.Error("closed subscription channel should be closed")
	}
}

func TestUnsubscribe_StopsTicker(t *testing.T) {
	clock := &fakeClock{}
	f := &scriptedFetcher{responses: [][]backend.NotebookSource{entries(backend.StatusPending)}}
	svc := NewService(f, time.Second, WithTicker(clock.NewTicker))
	defer svc.Close()

	sub := svc.Subscribe("tok", "nb1")
	next(t, sub)
	if clock.Active() != 1 {
		t.Fatal("expected an interval while pending")
	}
	sub.Close()
	if got := clock.Active(); got != 0 {
		t.Errorf("active intervals after unmount = %d, want 0", got)
	}
}

func TestSeparateNotebooksSeparateLoops(t *testing.T) {
	clock := &fakeClock{}
	f := &scriptedFetcher{responses: [][]backend.NotebookSource{entries(backend.StatusIndexed)}}
	svc := NewService(f, time.Second, WithTicker(clock.NewTicker))
	defer svc.Close()

	a := svc.Subscribe("tok", "nb1")
	defer a.Close()
	b := svc.Subscribe("tok", "nb2")
	defer b.Close()

	if u := next(t, a); u.NotebookID != "nb1" {
		t.Errorf("nb1 subscriber got update for %s", u.NotebookID)
	}
	if u := next(t, b); u.NotebookID != "nb2" {
		t.Errorf("nb2 subscriber got update for %s", u.NotebookID)
	}
}

func TestFetchError_KeepsTickerState(t *testing.T) {
	clock := &fakeClock{}
	f := &scriptedFetcher{
		responses: [][]backend.NotebookSource{entries(backend.StatusPending), nil},
		errs:      []error{nil, errors.New("backend down")},
	}
	svc := NewService(f, time.Second, WithTicker(clock.NewTicker))
	defer svc.Close()

	sub := svc.Subscribe("tok", "nb1")
	defer sub.Close()
	next(t, sub)

	clock.Tick()
	u := next(t, sub)
	if u.Err == nil {
		t.Fatal("expected fetch error to be delivered")
	}
	if got := clock.Active(); got != 1 {
		t.Errorf("active intervals = %d, want polling to continue after an error", got)
	}
}

func TestFetchError_BeforeFirstSuccessKeepsPolling(t *testing.T) {
	clock := &fakeClock{}
	f := &scriptedFetcher{
		responses: [][]backend.NotebookSource{nil, entries(backend.StatusPending), entries(backend.StatusIndexed)},
		errs:      []error{errors.New("transient")},
	}
	svc := NewService(f, time.Second, WithTicker(clock.NewTicker))
	defer svc.Close()

	sub := svc.Subscribe("tok", "nb1")
	defer sub.Close()

	u := next(t, sub)
	if u.Err == nil {
		t.Fatal("expected the first fetch error to be delivered")
	}
	if got := clock.Active(); got != 1 {
		t.Fatalf("active intervals = %d, want 1 after a failed first fetch", got)
	}

	clock.Tick()
	u = next(t, sub)
	if u.Err != nil || !u.Processing {
		t.Fatalf("second update = %+v, want a processing snapshot", u)
	}

	clock.Tick()
	u = next(t, sub)
	if u.Processing {
		t.Fatal("third update should be terminal")
	}
	if got := clock.Active(); got != 0 {
		t.Errorf("active intervals = %d, want 0", got)
	}
	if got := f.Calls(); got != 3 {
		t.Errorf("fetch calls = %d, want 3", got)
	}
}

func TestFetch_OrdersByPosition(t *testing.T) {
	f := &scriptedFetcher{responses: [][]backend.NotebookSource{{
		{SourceID: "late", Position: 2, Source: &backend.Source{ID: "late", Status: backend.StatusIndexed}},
		{SourceID: "early", Position: 0, Source: &backend.Source{ID: "early", Status: backend.StatusIndexed}},
		{SourceID: "orphan", Position: 1},
	}}}
	u := fetch(context.Background(), f, key{token: "t", notebookID: "nb"})
	if len(u.Sources) != 2 || u.Sources[0].ID != "early" {
		t.Errorf("sources = %+v", u.Sources)
	}
}

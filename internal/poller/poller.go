// Package poller watches the processing status of a notebook's sources.
//
// One loop runs per (token, notebook) no matter how many consumers watch
// it. After every fetch the loop re-evaluates whether any source is still
// pending or processing: if so it keeps a ticker running, otherwise it stops
// the ticker and waits for a Refresh. There is no backoff and no upper bound
// on how long a non-terminal source keeps the loop ticking.
package poller

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"gwi.com/notebook-console/internal/backend"
)

const DefaultInterval = 3 * time.Second

// Fetcher lists the sources linked to a notebook.
type Fetcher interface {
	ListNotebookSources(ctx context.Context, token, notebookID string) ([]backend.NotebookSource, error)
}

// Ticker is the subset of *time.Ticker the loop uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

// HasProcessingSources reports whether any source is pending or processing.
func HasProcessingSources(sources []backend.Source) bool {
	for _, s := range sources {
		if s.Status == backend.StatusPending || s.Status == backend.StatusProcessing {
			return true
		}
	}
	return false
}

// Update is the result of one fetch.
type Update struct {
	NotebookID string
	Sources    []backend.Source
	Processing bool
	FetchedAt  time.Time
	Err        error
}

type Option func(*Service)

// WithTicker replaces the ticker factory, mainly for tests.
func WithTicker(fn TickerFunc) Option {
	return func(s *Service) { s.newTicker = fn }
}

type key struct {
	token      string
	notebookID string
}

// Service is safe for concurrent use.
type Service struct {
	fetcher   Fetcher
	interval  time.Duration
	newTicker TickerFunc

	mu    sync.Mutex
	loops map[key]*loop
}

func NewService(f Fetcher, interval time.Duration, opts ...Option) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Service{
		fetcher:   f,
		interval:  interval,
		newTicker: newRealTicker,
		loops:     make(map[key]*loop),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscription delivers updates for one notebook. Only the latest update is
// buffered; a slow reader skips intermediate ones.
type Subscription struct {
	C <-chan Update

	ch    chan Update
	once  sync.Once
	svc   *Service
	k     key
	owner *loop
}

// Close detaches the subscription. The last Close for a notebook stops its
// loop and waits for it to exit.
func (sub *Subscription) Close() {
	sub.once.Do(func() { sub.svc.release(sub) })
}

// Subscribe attaches to the loop for (token, notebookID), starting it if
// this is the first subscriber. A late subscriber gets the last update
// immediately.
func (s *Service) Subscribe(token, notebookID string) *Subscription {
	k := key{token: token, notebookID: notebookID}
	ch := make(chan Update, 1)
	sub := &Subscription{C: ch, ch: ch, svc: s, k: k}

	s.mu.Lock()
	l, ok := s.loops[k]
	if !ok {
		l = s.startLoop(k)
		s.loops[k] = l
	}
	sub.owner = l
	l.add(sub)
	s.mu.Unlock()
	return sub
}

// Refresh asks the loop for (token, notebookID) to fetch now, e.g. right
// after a source was added. It is a no-op when nobody is watching.
func (s *Service) Refresh(token, notebookID string) {
	s.mu.Lock()
	l := s.loops[key{token: token, notebookID: notebookID}]
	s.mu.Unlock()
	if l == nil {
		return
	}
	select {
	case l.refresh <- struct{}{}:
	default:
	}
}

// ActiveLoops returns how many notebooks are being watched.
func (s *Service) ActiveLoops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loops)
}

// Close stops every loop.
func (s *Service) Close() {
	s.mu.Lock()
	loops := s.loops
	s.loops = make(map[key]*loop)
	s.mu.Unlock()

	for _, l := range loops {
		l.cancel()
		<-l.done
		l.closeAll()
	}
}

func (s *Service) release(sub *Subscription) {
	l := sub.owner
	s.mu.Lock()
	last := l.remove(sub)
	if last && s.loops[sub.k] == l {
		delete(s.loops, sub.k)
	}
	s.mu.Unlock()

	if last {
		l.cancel()
		<-l.done
	}
}

func (s *Service) startLoop(k key) *loop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{
		k:       k,
		cancel:  cancel,
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
		subs:    make(map[*Subscription]struct{}),
	}
	go l.run(ctx, s)
	return l
}

type loop struct {
	k       key
	cancel  context.CancelFunc
	refresh chan struct{}
	done    chan struct{}

	mu   sync.Mutex
	subs map[*Subscription]struct{}
	last *Update
}

func (l *loop) add(sub *Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs[sub] = struct{}{}
	if l.last != nil {
		sub.ch <- *l.last
	}
}

// remove reports whether sub was the last subscriber.
func (l *loop) remove(sub *Subscription) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[sub]; ok {
		delete(l.subs, sub)
		close(sub.ch)
	}
	return len(l.subs) == 0
}

func (l *loop) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for sub := range l.subs {
		close(sub.ch)
		delete(l.subs, sub)
	}
}

func (l *loop) broadcast(u Update) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = &u
	for sub := range l.subs {
		select {
		case <-sub.ch: // drop the stale update nobody read
		default:
		}
		sub.ch <- u
	}
}

func (l *loop) run(ctx context.Context, s *Service) {
	defer close(l.done)

	var ticker Ticker
	var tick <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()
	startTicker := func() {
		if ticker == nil {
			ticker = s.newTicker(s.interval)
			tick = ticker.C()
		}
	}

	// Until one fetch succeeds the status is unknown, so errors keep the
	// loop ticking. After that an error leaves the ticker as it was.
	fetched := false
	poll := func() {
		u := fetch(ctx, s.fetcher, l.k)
		if ctx.Err() != nil {
			return
		}
		switch {
		case u.Err != nil:
			log.Printf("Polling sources of notebook %s failed: %v", l.k.notebookID, u.Err)
			if !fetched {
				startTicker()
			}
		case u.Processing:
			fetched = true
			startTicker()
		default:
			fetched = true
			stopTicker()
		}
		l.broadcast(u)
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			poll()
		case <-l.refresh:
			poll()
		}
	}
}

func fetch(ctx context.Context, f Fetcher, k key) Update {
	entries, err := f.ListNotebookSources(ctx, k.token, k.notebookID)
	u := Update{NotebookID: k.notebookID, FetchedAt: time.Now(), Err: err}
	if err != nil {
		return u
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	u.Sources = make([]backend.Source, 0, len(entries))
	for _, e := range entries {
		if e.Source != nil {
			u.Sources = append(u.Sources, *e.Source)
		}
	}
	u.Processing = HasProcessingSources(u.Sources)
	return u
}

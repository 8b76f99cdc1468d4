// Package scheduler runs named background jobs: fixed-interval tickers and
// one-shot delays. The session sweep is its main tenant.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks. ctx is cancelled when
// the scheduler stops.
type TaskFn func(ctx context.Context)

// Kind distinguishes repeating from one-shot tasks.
type Kind string

const (
	KindTicker Kind = "ticker"
	KindDelay  Kind = "delay"
)

// TaskInfo is a snapshot of one registered task.
type TaskInfo struct {
	Name     string        `json:"name"`
	Kind     Kind          `json:"kind"`
	Interval time.Duration `json:"interval_ns"`
	Runs     int64         `json:"runs"`
	Panics   int64         `json:"panics"`
	LastRun  *time.Time    `json:"last_run,omitempty"`
}

// Scheduler manages periodic and delayed tasks.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	timers  map[string]*timerEntry
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type stats struct {
	runs    int64
	panics  int64
	lastRun time.Time
}

type tickerEntry struct {
	ticker   *time.Ticker
	interval time.Duration
	stopCh   chan struct{}
	stats    stats
}

type timerEntry struct {
	timer *time.Timer
	delay time.Duration
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tickers: make(map[string]*tickerEntry),
		timers:  make(map[string]*timerEntry),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// run calls fn, converting a panic into a log line. It reports whether fn
// completed normally.
func (s *Scheduler) run(name string, fn TaskFn) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
			ok = false
		}
	}()
	fn(s.ctx)
	return true
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tickers[name]; ok {
		close(old.stopCh)
		delete(s.tickers, name)
	}

	entry := &tickerEntry{
		ticker:   time.NewTicker(interval),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	s.tickers[name] = entry

	go func() {
		defer entry.ticker.Stop()
		for {
			select {
			case <-entry.ticker.C:
				ok := s.run(name, fn)
				s.mu.Lock()
				entry.stats.runs++
				if !ok {
					entry.stats.panics++
				}
				entry.stats.lastRun = time.Now()
				s.mu.Unlock()
			case <-entry.stopCh:
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after the given delay.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[name]; ok {
		old.timer.Stop()
	}
	entry := &timerEntry{delay: delay}
	entry.timer = time.AfterFunc(delay, func() {
		if s.ctx.Err() == nil {
			s.run(name, fn)
		}
		s.mu.Lock()
		if s.timers[name] == entry {
			delete(s.timers, name)
		}
		s.mu.Unlock()
	})
	s.timers[name] = entry
}

// Remove stops and removes a ticker or delay task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.tickers[name]; ok {
		close(entry.stopCh)
		delete(s.tickers, name)
	}
	if t, ok := s.timers[name]; ok {
		t.timer.Stop()
		delete(s.timers, name)
	}
}

// Stop stops all tasks and cancels the context of running ones. Safe to call
// more than once.
func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.timer.Stop()
	}
}

// ListTickers returns the names of all registered ticker tasks, sorted.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers))
	for name := range s.tickers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tasks returns a snapshot of every registered task, sorted by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tickers)+len(s.timers))
	for name, e := range s.tickers {
		info := TaskInfo{
			Name:     name,
			Kind:     KindTicker,
			Interval: e.interval,
			Runs:     e.stats.runs,
			Panics:   e.stats.panics,
		}
		if !e.stats.lastRun.IsZero() {
			last := e.stats.lastRun
			info.LastRun = &last
		}
		out = append(out, info)
	}
	for name, e := range s.timers {
		out = append(out, TaskInfo{Name: name, Kind: KindDelay, Interval: e.delay})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

package looker

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// frameInterval approximates one animation frame.
const frameInterval = 16 * time.Millisecond

// Scheduler serializes renderer state updates and coalesces redraws.
// Updates are applied in call order as they arrive; draws happen once per
// tick, so any burst of updates within one tick produces at most one draw
// per renderer. Draw order across renderers within a tick follows
// first-dirtied order; renderers must not depend on it.
type Scheduler struct {
	mu     sync.Mutex
	tasks  chan schedTask
	done   chan struct{}
	closed bool
	logger *slog.Logger

	interval time.Duration
}

type schedTask struct {
	r     *Renderer
	apply func()
}

// NewScheduler starts the scheduling loop at the default frame interval.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return NewSchedulerWithInterval(logger, frameInterval)
}

// NewSchedulerWithInterval starts the loop with an explicit tick interval.
func NewSchedulerWithInterval(logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = frameInterval
	}
	s := &Scheduler{
		tasks:    make(chan schedTask, 256),
		done:     make(chan struct{}),
		logger:   logger,
		interval: interval,
	}
	go func() {
		defer func() {
			if r := recover(); r != nil && logger != nil {
				logger.Error("scheduler panic", "error", r, "stack", string(debug.Stack()))
			}
		}()
		s.loop()
	}()
	return s
}

func (s *Scheduler) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var dirty []*Renderer
	seen := make(map[*Renderer]struct{})
	flush := func() {
		for _, r := range dirty {
			r.draw()
		}
		dirty = dirty[:0]
		clear(seen)
	}

	for {
		select {
		case t, ok := <-s.tasks:
			if !ok {
				flush()
				return
			}
			t.apply()
			if t.r != nil {
				if _, dup := seen[t.r]; !dup {
					seen[t.r] = struct{}{}
					dirty = append(dirty, t.r)
				}
			}
		case <-ticker.C:
			flush()
		}
	}
}

// post enqueues one update for the renderer. Returns false once closed.
func (s *Scheduler) post(r *Renderer, apply func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.tasks <- schedTask{r: r, apply: apply}
	s.mu.Unlock()
	return true
}

// Close drains pending updates, flushes one final draw pass and stops the
// loop.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.tasks)
	s.mu.Unlock()
	<-s.done
}

package autosave

import (
	"context"
	"sync"
	"time"

	"scenedeck/internal/deck"
)

// Urgency selects how a trigger is scheduled.
type Urgency int

const (
	// Debounced waits for inactivity, bounded by the pipeline's max wait.
	Debounced Urgency = iota
	// Immediate starts a run now, or right after the one in flight.
	Immediate
)

func (u Urgency) String() string {
	if u == Immediate {
		return "immediate"
	}
	return "debounced"
}

// RunFunc performs one save. In-flight runs are never cancelled, so the
// context carries no deadline from the scheduler.
type RunFunc func(ctx context.Context) error

// Timing is the debounce policy of a pipeline.
type Timing struct {
	Debounce time.Duration
	MaxWait  time.Duration
}

type pipelineState int

const (
	stateIdle pipelineState = iota
	stateScheduled
	stateRunning
)

func (s pipelineState) String() string {
	switch s {
	case stateScheduled:
		return "scheduled"
	case stateRunning:
		return "running"
	default:
		return "idle"
	}
}

// pipeline runs one RunFunc with debouncing and at most one execution in
// flight. Triggers that arrive while running set pending, which produces
// exactly one follow-up run.
type pipeline struct {
	name    string
	timing  Timing
	run     RunFunc
	onError func(error)
	clock   deck.Clock
	timers  deck.TimerFactory
	logger  deck.Logger

	mu      sync.Mutex
	state   pipelineState
	pending bool
	stopped bool
	timer   deck.Timer
	gen     uint64    // invalidates callbacks of replaced timers
	firstAt time.Time // first trigger of the current unsaved batch
	done    chan struct{}
	lastErr error
	runs    int
}

func newPipeline(name string, timing Timing, run RunFunc, onError func(error), clock deck.Clock, timers deck.TimerFactory, logger deck.Logger) *pipeline {
	return &pipeline{
		name:    name,
		timing:  timing,
		run:     run,
		onError: onError,
		clock:   clock,
		timers:  timers,
		logger:  logger,
	}
}

func (p *pipeline) schedule(u Urgency) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	switch p.state {
	case stateRunning:
		p.pending = true
		return
	case stateIdle:
		p.firstAt = p.clock.Now()
	}

	if u == Immediate {
		p.cancelTimerLocked()
		p.startLocked()
		return
	}

	delay := p.timing.Debounce
	if p.timing.MaxWait > 0 {
		remaining := p.firstAt.Add(p.timing.MaxWait).Sub(p.clock.Now())
		if remaining < delay {
			delay = remaining
		}
	}
	if delay < 0 {
		delay = 0
	}

	p.cancelTimerLocked()
	p.gen++
	gen := p.gen
	p.timer = p.timers.AfterFunc(delay, func() { p.fire(gen) })
	p.state = stateScheduled
}

func (p *pipeline) fire(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || p.state != stateScheduled || p.stopped {
		return
	}
	p.timer = nil
	p.startLocked()
}

// flush cancels any pending timer and forces a complete run, then waits for
// it. If a run is in flight, a follow-up run is queued and awaited instead.
func (p *pipeline) flush(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	if p.state == stateRunning {
		p.pending = true
	} else {
		p.cancelTimerLocked()
		p.startLocked()
	}
	done := p.done
	p.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// wait blocks until the run in flight, and its follow-up if any, finishes.
// It returns immediately when nothing is running.
func (p *pipeline) wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeline) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.pending = false
	p.cancelTimerLocked()
	if p.state == stateScheduled {
		p.state = stateIdle
	}
}

func (p *pipeline) cancelTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
}

func (p *pipeline) startLocked() {
	p.state = stateRunning
	p.pending = false
	if p.done == nil {
		p.done = make(chan struct{})
	}
	go p.exec()
}

func (p *pipeline) exec() {
	for {
		start := p.clock.Now()
		err := p.run(context.Background())
		if err != nil {
			p.onError(err)
		} else {
			p.logger.Debug("autosave run complete", "pipeline", p.name, "elapsed", p.clock.Now().Sub(start))
		}

		p.mu.Lock()
		p.runs++
		p.lastErr = err
		if p.pending && !p.stopped {
			p.pending = false
			p.mu.Unlock()
			continue
		}
		p.pending = false
		p.state = stateIdle
		p.firstAt = time.Time{}
		done := p.done
		p.done = nil
		p.mu.Unlock()

		close(done)
		return
	}
}

func (p *pipeline) snapshot() (pipelineState, bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.pending, p.runs
}

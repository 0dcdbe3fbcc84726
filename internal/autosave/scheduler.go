package autosave

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"scenedeck/internal/deck"
	"scenedeck/internal/errors"
	"scenedeck/internal/model"
)

// ErrorNoticeID groups autosave failure notices so hosts replace rather
// than stack them.
const ErrorNoticeID = "autosave-error"

const errorNoticeDuration = 5 * time.Second

// Config holds the timing of both pipelines.
type Config struct {
	Fast           Timing
	Slow           Timing
	NoticeCooldown time.Duration
}

// DefaultConfig returns the stock autosave timing.
func DefaultConfig() Config {
	return Config{
		Fast:           Timing{Debounce: 800 * time.Millisecond, MaxWait: 5 * time.Second},
		Slow:           Timing{Debounce: 2500 * time.Millisecond, MaxWait: 20 * time.Second},
		NoticeCooldown: 15 * time.Second,
	}
}

// Scheduler coordinates the fast pipeline (project file) and the slow
// pipeline (asset index sync). The two run independently and may overlap.
type Scheduler struct {
	fast     *pipeline
	slow     *pipeline
	notifier deck.Notifier
	clock    deck.Clock
	logger   deck.Logger
	cooldown time.Duration

	mu         sync.Mutex
	lastNotice time.Time
	noticed    bool
	observed   bool
	last       signature
}

// NewScheduler creates a Scheduler running save on the fast pipeline and
// sync on the slow one.
func NewScheduler(cfg Config, save, sync RunFunc, clock deck.Clock, timers deck.TimerFactory, notifier deck.Notifier, logger deck.Logger) *Scheduler {
	s := &Scheduler{
		notifier: notifier,
		clock:    clock,
		logger:   logger,
		cooldown: cfg.NoticeCooldown,
	}
	s.fast = newPipeline("fast", cfg.Fast, save, s.fastFailed, clock, timers, logger)
	s.slow = newPipeline("slow", cfg.Slow, sync, s.slowFailed, clock, timers, logger)
	return s
}

// ScheduleFastSave triggers the project save pipeline.
func (s *Scheduler) ScheduleFastSave(u Urgency) {
	s.fast.schedule(u)
}

// ScheduleSlowSync triggers the asset index sync pipeline.
func (s *Scheduler) ScheduleSlowSync(u Urgency) {
	s.slow.schedule(u)
}

// Observe compares state with the previously observed state and schedules
// debounced saves for what changed. Without an earlier observation or
// Baseline, state is compared with an empty project, so a first state that
// carries content is saved. Scene, name and vault changes trigger both
// pipelines; a source panel change alone triggers only the fast one.
func (s *Scheduler) Observe(state model.ProjectState) {
	sig := signatureOf(state)

	s.mu.Lock()
	prev := s.last
	if !s.observed {
		prev = signatureOf(model.ProjectState{})
	}
	s.last, s.observed = sig, true
	s.mu.Unlock()

	switch {
	case sig.scenes != prev.scenes || sig.name != prev.name || sig.vault != prev.vault:
		s.ScheduleFastSave(Debounced)
		s.ScheduleSlowSync(Debounced)
	case sig.panel != prev.panel:
		s.ScheduleFastSave(Debounced)
	}
}

// Baseline records state as already saved without scheduling anything.
// Hosts call it with the state of a project they just loaded.
func (s *Scheduler) Baseline(state model.ProjectState) {
	sig := signatureOf(state)
	s.mu.Lock()
	s.last, s.observed = sig, true
	s.mu.Unlock()
}

// Flush cancels pending timers and forces a full run of both pipelines. It
// returns once both have completed, with the errors of their final runs.
func (s *Scheduler) Flush(ctx context.Context) error {
	var wg sync.WaitGroup
	var fastErr, slowErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		fastErr = s.fast.flush(ctx)
	}()
	go func() {
		defer wg.Done()
		slowErr = s.slow.flush(ctx)
	}()
	wg.Wait()
	return stderrors.Join(fastErr, slowErr)
}

// Wait blocks until runs currently in flight on either pipeline finish.
func (s *Scheduler) Wait(ctx context.Context) error {
	if err := s.fast.wait(ctx); err != nil {
		return err
	}
	return s.slow.wait(ctx)
}

// Stop clears pending timers and ignores later triggers. Runs in flight
// finish; their pending follow-ups are dropped.
func (s *Scheduler) Stop() {
	s.fast.stop()
	s.slow.stop()
}

// Runs returns how many runs each pipeline has completed.
func (s *Scheduler) Runs() (fast, slow int) {
	_, _, fast = s.fast.snapshot()
	_, _, slow = s.slow.snapshot()
	return fast, slow
}

func (s *Scheduler) fastFailed(err error) {
	s.logger.Error("autosave failed", "pipeline", "fast", "error", err)

	now := s.clock.Now()
	s.mu.Lock()
	if s.noticed && now.Sub(s.lastNotice) < s.cooldown {
		s.mu.Unlock()
		return
	}
	s.noticed = true
	s.lastNotice = now
	s.mu.Unlock()

	s.notifier.Notify(deck.Notice{
		ID:       ErrorNoticeID,
		Severity: deck.SeverityError,
		Message:  "Autosave failed: " + errors.Message(err),
		Duration: errorNoticeDuration,
	})
}

func (s *Scheduler) slowFailed(err error) {
	s.logger.Warn("asset index sync failed", "pipeline", "slow", "error", err)
}

// signature fingerprints the parts of the project state that drive saves.
type signature struct {
	scenes string
	name   string
	vault  string
	panel  string
}

func signatureOf(state model.ProjectState) signature {
	scenes := state.Scenes
	if len(scenes) == 0 {
		scenes = nil
	}
	return signature{
		scenes: digestJSON(scenes),
		name:   state.Name,
		vault:  state.VaultPath,
		panel:  digestJSON(state.SourcePanel),
	}
}

func digestJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return deck.SHA256Hasher{}.Sum(data)
}

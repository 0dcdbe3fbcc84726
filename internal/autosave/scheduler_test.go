package autosave

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"scenedeck/internal/deck"
	"scenedeck/internal/model"
	"scenedeck/internal/testutil"
)

// recorder is a RunFunc that counts calls. When gate is set, the first run
// blocks until gate is closed.
type recorder struct {
	clock *testutil.StubClock

	mu      sync.Mutex
	calls   int
	at      []time.Time
	err     error
	gate    chan struct{}
	started chan struct{}
}

func newRecorder(clock *testutil.StubClock) *recorder {
	return &recorder{clock: clock, started: make(chan struct{}, 16)}
}

func (r *recorder) run(context.Context) error {
	r.mu.Lock()
	r.calls++
	first := r.calls == 1
	r.at = append(r.at, r.clock.Now())
	gate, err := r.gate, r.err
	r.mu.Unlock()

	r.started <- struct{}{}
	if first && gate != nil {
		<-gate
	}
	return err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *recorder) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

type harness struct {
	sched    *Scheduler
	clock    *testutil.StubClock
	timers   *testutil.FakeTimers
	notifier *testutil.RecordingNotifier
	fast     *recorder
	slow     *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := testutil.FixedClock()
	h := &harness{
		clock:    clock,
		timers:   testutil.NewFakeTimers(clock),
		notifier: &testutil.RecordingNotifier{},
		fast:     newRecorder(clock),
		slow:     newRecorder(clock),
	}
	h.sched = NewScheduler(DefaultConfig(), h.fast.run, h.slow.run, clock, h.timers, h.notifier, deck.NewNopLogger())
	t.Cleanup(h.sched.Stop)
	return h
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.sched.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func (h *harness) counts() (int, int) {
	return h.fast.count(), h.slow.count()
}

func TestFastSave_RapidChangesRunOnce(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 5; i++ {
		h.sched.ScheduleFastSave(Debounced)
		h.timers.Advance(100 * time.Millisecond)
	}
	if n := h.fast.count(); n != 0 {
		t.Fatalf("ran %d times inside the debounce window, want 0", n)
	}

	h.timers.Advance(800 * time.Millisecond)
	h.wait(t)

	if n := h.fast.count(); n != 1 {
		t.Errorf("fast runs = %d, want 1", n)
	}
	if h.timers.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", h.timers.Pending())
	}
}

func TestFastSave_MaxWaitBoundsDebounce(t *testing.T) {
	h := newHarness(t)
	start := h.clock.Now()

	// A trigger every 500ms keeps resetting the 800ms debounce; the 5s max
	// wait still forces a run.
	for i := 0; i < 10; i++ {
		h.sched.ScheduleFastSave(Debounced)
		h.timers.Advance(500 * time.Millisecond)
	}
	h.wait(t)

	if n := h.fast.count(); n != 1 {
		t.Fatalf("fast runs = %d, want 1", n)
	}
	if got := h.fast.at[0].Sub(start); got != 5*time.Second {
		t.Errorf("run after %v, want 5s", got)
	}
}

func TestFastSave_ChangeDuringRunCoalescesToOneFollowUp(t *testing.T) {
	h := newHarness(t)
	h.fast.gate = make(chan struct{})

	h.sched.ScheduleFastSave(Immediate)
	<-h.fast.started

	for i := 0; i < 5; i++ {
		h.sched.ScheduleFastSave(Debounced)
		h.sched.ScheduleFastSave(Immediate)
		h.timers.Advance(time.Second)
	}
	close(h.fast.gate)
	h.wait(t)

	if n := h.fast.count(); n != 2 {
		t.Errorf("fast runs = %d, want 2", n)
	}

	h.timers.Advance(time.Minute)
	h.wait(t)
	if n := h.fast.count(); n != 2 {
		t.Errorf("fast runs after idle = %d, want 2", n)
	}
}

func TestSlowSync_UsesItsOwnTiming(t *testing.T) {
	h := newHarness(t)

	h.sched.ScheduleFastSave(Debounced)
	h.sched.ScheduleSlowSync(Debounced)
	h.timers.Advance(time.Second)
	h.wait(t)

	if fast, slow := h.counts(); fast != 1 || slow != 0 {
		t.Fatalf("after 1s runs = %d/%d, want 1/0", fast, slow)
	}

	h.timers.Advance(2 * time.Second)
	h.wait(t)
	if fast, slow := h.counts(); fast != 1 || slow != 1 {
		t.Errorf("after 3s runs = %d/%d, want 1/1", fast, slow)
	}
}

func TestFlush_RunsBothPipelines(t *testing.T) {
	h := newHarness(t)

	h.sched.ScheduleFastSave(Debounced)
	h.sched.ScheduleSlowSync(Debounced)
	h.timers.Advance(time.Second)
	h.wait(t)

	// Slow is mid-debounce here.
	if err := h.sched.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if fast, slow := h.counts(); fast != 2 || slow != 1 {
		t.Errorf("runs after flush = %d/%d, want 2/1", fast, slow)
	}
	if h.timers.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", h.timers.Pending())
	}

	h.timers.Advance(time.Minute)
	h.wait(t)
	if fast, slow := h.counts(); fast != 2 || slow != 1 {
		t.Errorf("runs after flush and idle = %d/%d, want 2/1", fast, slow)
	}
}

func TestFlush_WaitsForInFlightRunAndFollowUp(t *testing.T) {
	h := newHarness(t)
	h.slow.gate = make(chan struct{})

	h.sched.ScheduleSlowSync(Immediate)
	<-h.slow.started

	errc := make(chan error, 1)
	go func() { errc <- h.sched.Flush(context.Background()) }()

	select {
	case err := <-errc:
		t.Fatalf("Flush() returned %v while a slow run was in flight", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(h.slow.gate)
	if err := <-errc; err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if fast, slow := h.counts(); fast != 1 || slow != 2 {
		t.Errorf("runs = %d/%d, want 1/2", fast, slow)
	}
}

func TestFlush_ReportsFailure(t *testing.T) {
	h := newHarness(t)
	h.fast.setErr(fmt.Errorf("disk full"))

	err := h.sched.Flush(context.Background())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Flush() error = %v, want disk full", err)
	}
}

func TestFlush_ContextCanceled(t *testing.T) {
	h := newHarness(t)
	h.fast.gate = make(chan struct{})
	defer close(h.fast.gate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.sched.Flush(ctx); !stderrors.Is(err, context.Canceled) {
		t.Errorf("Flush() error = %v, want context.Canceled", err)
	}
}

func TestObserve(t *testing.T) {
	h := newHarness(t)
	state := model.ProjectState{
		Name:      "Pilot",
		VaultPath: "/vault",
		Scenes:    []model.Scene{{ID: "s1", Order: 1, Cuts: []model.Cut{{ID: "c1", AssetID: "a", Order: 1}}}},
	}

	step := func(name string, next model.ProjectState, wantFast, wantSlow int) {
		t.Helper()
		h.sched.Observe(next)
		h.timers.Advance(30 * time.Second)
		h.wait(t)
		if fast, slow := h.counts(); fast != wantFast || slow != wantSlow {
			t.Errorf("%s: runs = %d/%d, want %d/%d", name, fast, slow, wantFast, wantSlow)
		}
	}

	h.sched.Baseline(state)

	same := state
	same.Scenes = []model.Scene{{ID: "s1", Order: 1, Cuts: []model.Cut{{ID: "c1", AssetID: "a", Order: 1}}}}
	step("equal content", same, 0, 0)

	panel := same
	panel.SourcePanel = &model.SourcePanelState{Folders: []string{"/footage"}, ViewMode: "grid"}
	step("source panel only", panel, 1, 0)

	renamed := panel
	renamed.Name = "Pilot v2"
	step("name", renamed, 2, 1)

	moved := renamed
	moved.VaultPath = "/other"
	step("vault path", moved, 3, 2)

	edited := moved
	edited.Scenes = []model.Scene{{ID: "s1", Order: 1, Cuts: []model.Cut{{ID: "c1", AssetID: "b", Order: 1}}}}
	step("scenes", edited, 4, 3)
}

func TestObserve_FirstState(t *testing.T) {
	tests := []struct {
		name     string
		state    model.ProjectState
		wantFast int
		wantSlow int
	}{
		{"empty project", model.ProjectState{Scenes: []model.Scene{}}, 0, 0},
		{"unsaved content", model.ProjectState{Name: "Pilot", VaultPath: "/vault"}, 1, 1},
		{"source panel only", model.ProjectState{SourcePanel: &model.SourcePanelState{ViewMode: "list"}}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.sched.Observe(tt.state)
			h.timers.Advance(30 * time.Second)
			h.wait(t)
			if fast, slow := h.counts(); fast != tt.wantFast || slow != tt.wantSlow {
				t.Errorf("runs = %d/%d, want %d/%d", fast, slow, tt.wantFast, tt.wantSlow)
			}
		})
	}
}

func TestBaseline_SuppressesFirstSave(t *testing.T) {
	h := newHarness(t)
	state := model.ProjectState{Name: "Loaded", VaultPath: "/vault"}

	h.sched.Baseline(state)
	h.sched.Observe(state)
	h.timers.Advance(30 * time.Second)
	h.wait(t)
	if fast, slow := h.counts(); fast != 0 || slow != 0 {
		t.Errorf("runs = %d/%d, want 0/0", fast, slow)
	}
}

func TestFastFailure_RateLimitedNotice(t *testing.T) {
	h := newHarness(t)
	h.fast.setErr(fmt.Errorf("disk full"))

	trigger := func() {
		h.sched.ScheduleFastSave(Immediate)
		h.wait(t)
	}

	trigger()
	h.clock.Advance(5 * time.Second)
	trigger()
	h.clock.Advance(11 * time.Second)
	trigger()

	notices := h.notifier.Notices()
	if len(notices) != 2 {
		t.Fatalf("notices = %d, want 2", len(notices))
	}
	n := notices[0]
	if n.ID != ErrorNoticeID || n.Severity != deck.SeverityError {
		t.Errorf("notice = %+v", n)
	}
	if !strings.Contains(n.Message, "disk full") {
		t.Errorf("Message = %q", n.Message)
	}
	if h.fast.count() != 3 {
		t.Errorf("fast runs = %d, want 3", h.fast.count())
	}
}

func TestSlowFailure_IsSilentAndRetries(t *testing.T) {
	h := newHarness(t)
	h.slow.setErr(fmt.Errorf("index locked"))

	h.sched.ScheduleSlowSync(Immediate)
	h.wait(t)
	if len(h.notifier.Notices()) != 0 {
		t.Errorf("slow failure produced a notice")
	}

	h.slow.setErr(nil)
	h.sched.ScheduleSlowSync(Debounced)
	h.timers.Advance(3 * time.Second)
	h.wait(t)
	if n := h.slow.count(); n != 2 {
		t.Errorf("slow runs = %d, want 2", n)
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t)

	h.sched.ScheduleFastSave(Debounced)
	h.sched.ScheduleSlowSync(Debounced)
	h.sched.Stop()

	if h.timers.Pending() != 0 {
		t.Errorf("pending timers after Stop = %d, want 0", h.timers.Pending())
	}

	h.sched.ScheduleFastSave(Immediate)
	h.sched.Observe(model.ProjectState{Name: "a"})
	h.sched.Observe(model.ProjectState{Name: "b"})
	h.timers.Advance(time.Minute)
	h.wait(t)

	if err := h.sched.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() after Stop error = %v", err)
	}
	if fast, slow := h.counts(); fast != 0 || slow != 0 {
		t.Errorf("runs after Stop = %d/%d, want 0/0", fast, slow)
	}
}

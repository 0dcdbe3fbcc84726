package testutil

import (
	"sync"

	"scenedeck/internal/deck"
)

// RecordingNotifier keeps every notice it receives.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []deck.Notice
}

func (n *RecordingNotifier) Notify(notice deck.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

// Notices returns a copy of the received notices.
func (n *RecordingNotifier) Notices() []deck.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]deck.Notice(nil), n.notices...)
}

// StaticChooser answers every dialog with the same result.
type StaticChooser struct {
	Result deck.DialogResult
	Err    error

	mu    sync.Mutex
	calls int
}

func (c *StaticChooser) ChooseSave(string) (deck.DialogResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Result, c.Err
}

func (c *StaticChooser) ChooseOpen() (deck.DialogResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Result, c.Err
}

// Calls returns how many times a dialog was shown.
func (c *StaticChooser) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

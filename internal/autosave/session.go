package autosave

import (
	"context"
	"fmt"
	"sync"

	"scenedeck/internal/deck"
	"scenedeck/internal/model"
)

// Session autosaves one open project. The fast pipeline writes the project
// file through the project store; the slow pipeline syncs the vault's asset
// index with the current scenes.
type Session struct {
	scheduler *Scheduler
	projects  deck.ProjectStore
	indexer   deck.AssetIndexer
	clock     deck.Clock
	logger    deck.Logger

	mu          sync.Mutex
	state       model.ProjectState
	projectPath string
}

// NewSession creates a Session. An empty projectPath saves to the vault's
// default project file.
func NewSession(cfg Config, projects deck.ProjectStore, indexer deck.AssetIndexer, clock deck.Clock, timers deck.TimerFactory, notifier deck.Notifier, logger deck.Logger, projectPath string) *Session {
	s := &Session{
		projects:    projects,
		indexer:     indexer,
		clock:       clock,
		logger:      logger,
		projectPath: projectPath,
	}
	s.scheduler = NewScheduler(cfg, s.saveProject, s.syncIndex, clock, timers, notifier, logger)
	return s
}

// Scheduler returns the underlying scheduler.
func (s *Session) Scheduler() *Scheduler {
	return s.scheduler
}

// Update records the latest project state and schedules saves for what
// changed since the previous update.
func (s *Session) Update(state model.ProjectState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.scheduler.Observe(state)
}

// Seed records state as the saved content of the open project, so only
// later changes are autosaved.
func (s *Session) Seed(state model.ProjectState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.scheduler.Baseline(state)
}

// State returns the latest recorded project state.
func (s *Session) State() model.ProjectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ProjectPath returns where the fast pipeline writes the project file.
func (s *Session) ProjectPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolvePathLocked()
}

// Flush forces both pipelines to complete a save of the latest state.
func (s *Session) Flush(ctx context.Context) error {
	return s.scheduler.Flush(ctx)
}

// Close flushes and stops the scheduler.
func (s *Session) Close(ctx context.Context) error {
	err := s.scheduler.Flush(ctx)
	s.scheduler.Stop()
	return err
}

func (s *Session) resolvePathLocked() string {
	if s.projectPath != "" {
		return s.projectPath
	}
	if s.state.VaultPath == "" {
		return ""
	}
	return deck.ProjectPath(s.state.VaultPath)
}

func (s *Session) saveProject(context.Context) error {
	s.mu.Lock()
	payload := model.BuildProjectSavePayload(s.state, s.clock.Now())
	path := s.resolvePathLocked()
	s.mu.Unlock()

	if path == "" {
		return fmt.Errorf("project has no vault path")
	}
	data, err := model.SerializeProjectSavePayload(payload)
	if err != nil {
		return fmt.Errorf("serializing project: %w", err)
	}
	if _, err := s.projects.Save(path, data); err != nil {
		return err
	}
	return nil
}

func (s *Session) syncIndex(context.Context) error {
	s.mu.Lock()
	vaultPath := s.state.VaultPath
	scenes := s.state.Scenes
	s.mu.Unlock()

	if vaultPath == "" {
		return nil
	}
	changed, err := s.indexer.Sync(vaultPath, scenes)
	if err != nil {
		return fmt.Errorf("syncing asset index: %w", err)
	}
	if changed {
		s.logger.Info("asset index reordered", "vault", vaultPath)
	}
	return nil
}

package project

import (
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"strings"

	"scenedeck/internal/deck"
	"scenedeck/internal/errors"
	"scenedeck/internal/model"
)

// Store writes and reads project files, asking a FileChooser when no path
// is given. Successful saves are recorded in the recent projects list.
type Store struct {
	fs      deck.FileSystem
	chooser deck.FileChooser
	recent  deck.RecentProjects
	clock   deck.Clock
	logger  deck.Logger
}

// NewStore creates a Store. recent may be nil.
func NewStore(fsys deck.FileSystem, chooser deck.FileChooser, recent deck.RecentProjects, clock deck.Clock, logger deck.Logger) *Store {
	return &Store{
		fs:      fsys,
		chooser: chooser,
		recent:  recent,
		clock:   clock,
		logger:  logger,
	}
}

// Save writes contents to path and returns the path written. An empty path
// asks the chooser; a dismissed chooser yields a CANCELED error.
func (s *Store) Save(path string, contents []byte) (string, error) {
	if path == "" {
		chosen, err := s.choose(func() (deck.DialogResult, error) {
			return s.chooser.ChooseSave(deck.ProjectFileName)
		})
		if err != nil {
			return "", err
		}
		path = chosen
	}

	if err := s.fs.MkdirAll(filepath.Dir(path)); err != nil {
		return "", errors.NewIO("creating project directory", err)
	}
	if err := s.fs.WriteFile(path, contents); err != nil {
		return "", errors.NewIO("writing project", err)
	}

	if s.recent != nil {
		if err := s.recent.TouchRecentProject(path, projectName(path, contents), s.clock.Now()); err != nil {
			s.logger.Warn("recording recent project failed", "path", path, "error", err)
		}
	}

	s.logger.Debug("project saved", "path", path, "bytes", len(contents))
	return path, nil
}

// Load reads and parses a project file. An empty path asks the chooser.
func (s *Store) Load(path string) (*model.ProjectSavePayload, error) {
	if path == "" {
		chosen, err := s.choose(s.chooser.ChooseOpen)
		if err != nil {
			return nil, err
		}
		path = chosen
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewIO("reading project", err)
	}

	payload, err := model.ParseProjectSavePayload(data)
	if err != nil {
		if errors.Is(err, errors.ErrUnsupportedVersion) {
			return nil, err
		}
		return nil, errors.NewMalformed(path, err)
	}
	return payload, nil
}

// Recent returns up to limit recently saved projects, newest first.
func (s *Store) Recent(limit int) ([]*deck.RecentProject, error) {
	if s.recent == nil {
		return []*deck.RecentProject{}, nil
	}
	return s.recent.ListRecentProjects(limit)
}

func (s *Store) choose(show func() (deck.DialogResult, error)) (string, error) {
	if s.chooser == nil {
		return "", errors.NewCanceled()
	}
	res, err := show()
	if err != nil {
		return "", err
	}
	if res.Canceled || res.FilePath == "" {
		return "", errors.NewCanceled()
	}
	return res.FilePath, nil
}

// projectName is the project's own name when contents parse, else the file
// name without extension.
func projectName(path string, contents []byte) string {
	if p, err := model.ParseProjectSavePayload(contents); err == nil && p.Name != "" {
		return p.Name
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var _ deck.ProjectStore = (*Store)(nil)

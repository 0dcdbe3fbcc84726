package model

import (
	"encoding/json"
	"fmt"
	"time"

	"scenedeck/internal/errors"
)

// ProjectVersion is the project file schema version written by this binary.
const ProjectVersion = 1

// Cut is one shot in a scene. It references an imported asset by id.
type Cut struct {
	ID          string   `json:"id"`
	AssetID     string   `json:"assetId,omitempty"`
	Order       int      `json:"order"`
	DisplayTime float64  `json:"displayTime"`
	InPoint     *float64 `json:"inPoint,omitempty"`
	OutPoint    *float64 `json:"outPoint,omitempty"`
}

// Scene is an ordered group of cuts.
type Scene struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
	Cuts  []Cut  `json:"cuts"`
	Notes string `json:"notes,omitempty"`
}

// SourcePanelState is the persisted view state of the source browser.
type SourcePanelState struct {
	Folders       []string `json:"folders"`
	ExpandedPaths []string `json:"expandedPaths"`
	ViewMode      string   `json:"viewMode,omitempty"`
}

// ProjectState is the in-memory project as held by the editor.
type ProjectState struct {
	Name        string            `json:"name"`
	VaultPath   string            `json:"vaultPath"`
	Scenes      []Scene           `json:"scenes"`
	SourcePanel *SourcePanelState `json:"sourcePanel,omitempty"`
}

// ProjectSavePayload is the persisted content of the project file.
type ProjectSavePayload struct {
	Version     int               `json:"version"`
	Name        string            `json:"name"`
	VaultPath   string            `json:"vaultPath"`
	Scenes      []Scene           `json:"scenes"`
	SourcePanel *SourcePanelState `json:"sourcePanel,omitempty"`
	SavedAt     string            `json:"savedAt"`
}

// BuildProjectSavePayload snapshots state into a payload stamped with savedAt.
// Slices are copied so later edits to state do not leak into the payload.
func BuildProjectSavePayload(state ProjectState, savedAt time.Time) *ProjectSavePayload {
	p := &ProjectSavePayload{
		Version:     ProjectVersion,
		Name:        state.Name,
		VaultPath:   state.VaultPath,
		Scenes:      cloneScenes(state.Scenes),
		SourcePanel: cloneSourcePanel(state.SourcePanel),
		SavedAt:     FormatTime(savedAt),
	}
	return p
}

// SerializeProjectSavePayload renders the payload as pretty-printed JSON.
func SerializeProjectSavePayload(p *ProjectSavePayload) ([]byte, error) {
	return marshalPretty(p)
}

// ParseProjectSavePayload decodes and normalizes a project file.
func ParseProjectSavePayload(data []byte) (*ProjectSavePayload, error) {
	var p ProjectSavePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding project: %w", err)
	}
	if p.Version > ProjectVersion {
		return nil, errors.NewUnsupportedVersion("project", p.Version, ProjectVersion)
	}
	if p.Version <= 0 {
		p.Version = ProjectVersion
	}
	p.Scenes = normalizeScenes(p.Scenes)
	if p.SourcePanel != nil {
		normalizeSourcePanel(p.SourcePanel)
	}
	return &p, nil
}

// State converts a loaded payload back into editor state.
func (p *ProjectSavePayload) State() ProjectState {
	return ProjectState{
		Name:        p.Name,
		VaultPath:   p.VaultPath,
		Scenes:      cloneScenes(p.Scenes),
		SourcePanel: cloneSourcePanel(p.SourcePanel),
	}
}

func cloneScenes(scenes []Scene) []Scene {
	out := make([]Scene, len(scenes))
	for i, s := range scenes {
		s.Cuts = append([]Cut{}, s.Cuts...)
		for j := range s.Cuts {
			s.Cuts[j].InPoint = cloneFloat(s.Cuts[j].InPoint)
			s.Cuts[j].OutPoint = cloneFloat(s.Cuts[j].OutPoint)
		}
		out[i] = s
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneSourcePanel(sp *SourcePanelState) *SourcePanelState {
	if sp == nil {
		return nil
	}
	c := &SourcePanelState{
		Folders:       append([]string{}, sp.Folders...),
		ExpandedPaths: append([]string{}, sp.ExpandedPaths...),
		ViewMode:      sp.ViewMode,
	}
	return c
}

func normalizeScenes(scenes []Scene) []Scene {
	if scenes == nil {
		return []Scene{}
	}
	for i := range scenes {
		if scenes[i].Cuts == nil {
			scenes[i].Cuts = []Cut{}
		}
	}
	return scenes
}

func normalizeSourcePanel(sp *SourcePanelState) {
	if sp.Folders == nil {
		sp.Folders = []string{}
	}
	if sp.ExpandedPaths == nil {
		sp.ExpandedPaths = []string{}
	}
}

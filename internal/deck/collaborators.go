package deck

import (
	"time"

	"scenedeck/internal/model"
)

// Severity of a user-visible notice.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notice is a toast-style message for the user. Hosts deduplicate notices
// that share an ID while one is still visible.
type Notice struct {
	ID       string
	Severity Severity
	Message  string
	Duration time.Duration
}

// Notifier surfaces notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// DialogResult is the outcome of an interactive file chooser.
type DialogResult struct {
	Canceled bool
	FilePath string
}

// FileChooser asks the user for a file path.
type FileChooser interface {
	// ChooseSave asks for a destination, suggesting defaultPath.
	ChooseSave(defaultPath string) (DialogResult, error)

	// ChooseOpen asks for an existing project file.
	ChooseOpen() (DialogResult, error)
}

// ImportOutcome describes a successful import into the asset store.
type ImportOutcome struct {
	AbsPath      string // absolute path of the stored file
	RelativePath string // vault-relative, slash separated
	Hash         string
	IsDuplicate  bool
	Entry        model.AssetIndexEntry
}

// AssetStore imports media into a vault's hash-addressed asset directory.
type AssetStore interface {
	// Import copies sourcePath into the vault (unless identical bytes are
	// already stored) and records it in the asset index under assetID.
	Import(sourcePath, vaultPath, assetID string) (*ImportOutcome, error)

	// ImportDataURL decodes a base64 image data URL and imports it.
	ImportDataURL(dataURL, vaultPath, assetID string) (*ImportOutcome, error)
}

// VerifyReport lists inconsistencies between the asset index and disk.
type VerifyReport struct {
	Missing  []string `json:"missing"`  // indexed but absent from disk
	Orphaned []string `json:"orphaned"` // on disk but absent from the index
}

// AssetIndexer maintains a vault's asset index.
type AssetIndexer interface {
	Load(vaultPath string) (*model.AssetIndex, error)
	Save(vaultPath string, idx *model.AssetIndex) error
	Verify(vaultPath string) (*VerifyReport, error)

	// Sync refreshes usage refs from scenes and reorders the index into
	// storyline order. It reports whether the file was rewritten.
	Sync(vaultPath string, scenes []model.Scene) (bool, error)
}

// TrashMeta is caller context recorded with a trashed file.
type TrashMeta struct {
	AssetID    string
	Reason     string
	OriginRefs []model.UsageRef
}

// TrashBin quarantines vault files with retention-bounded purge.
type TrashBin interface {
	MoveToTrash(filePath, trashPath string, meta TrashMeta) (string, error)
	List(vaultPath string) ([]model.TrashEntry, error)
	Purge(vaultPath string) (int, error)
	Restore(vaultPath, entryID string) (string, error)
}

// RecentProject is an entry of the recently saved projects list.
type RecentProject struct {
	Path    string
	Name    string
	SavedAt time.Time
}

// RecentProjects persists the recently saved projects list.
type RecentProjects interface {
	TouchRecentProject(path, name string, savedAt time.Time) error
	ListRecentProjects(limit int) ([]*RecentProject, error)
}

// ProjectStore saves and loads project files.
type ProjectStore interface {
	// Save writes contents to path, asking the FileChooser when path is
	// empty. It returns the resolved path.
	Save(path string, contents []byte) (string, error)

	// Load reads and parses a project file, asking the FileChooser when
	// path is empty.
	Load(path string) (*model.ProjectSavePayload, error)

	Recent(limit int) ([]*RecentProject, error)
}

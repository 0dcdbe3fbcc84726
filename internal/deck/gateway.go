package deck

import (
	stderrors "errors"

	"scenedeck/internal/errors"
	"scenedeck/internal/model"
)

// ImportResult is the boundary form of an import, serialized for IPC hosts.
type ImportResult struct {
	Success      bool   `json:"success"`
	VaultPath    string `json:"vaultPath,omitempty"` // absolute path of the stored file
	RelativePath string `json:"relativePath,omitempty"`
	Hash         string `json:"hash,omitempty"`
	IsDuplicate  bool   `json:"isDuplicate,omitempty"`
	Error        string `json:"error,omitempty"`
	Code         string `json:"code,omitempty"`
}

// Gateway exposes the vault components to a host. Every operation returns a
// plain result value; failures are logged here and reported through the
// result, never as a panic or error return.
type Gateway struct {
	store    AssetStore
	indexer  AssetIndexer
	trash    TrashBin
	projects ProjectStore
	logger   Logger
}

// NewGateway creates a Gateway over the given components.
func NewGateway(store AssetStore, indexer AssetIndexer, trash TrashBin, projects ProjectStore, logger Logger) *Gateway {
	return &Gateway{
		store:    store,
		indexer:  indexer,
		trash:    trash,
		projects: projects,
		logger:   logger,
	}
}

// ImportAsset copies sourcePath into the vault under assetID.
func (g *Gateway) ImportAsset(sourcePath, vaultPath, assetID string) ImportResult {
	out, err := g.store.Import(sourcePath, vaultPath, assetID)
	if err != nil {
		g.logger.Error("import failed", "source", sourcePath, "vault", vaultPath, "asset", assetID, "error", err)
		return failedImport(err)
	}
	return importResult(out)
}

// ImportDataURLAsset imports a pasted base64 image.
func (g *Gateway) ImportDataURLAsset(dataURL, vaultPath, assetID string) ImportResult {
	out, err := g.store.ImportDataURL(dataURL, vaultPath, assetID)
	if err != nil {
		g.logger.Error("data URL import failed", "vault", vaultPath, "asset", assetID, "error", err)
		return failedImport(err)
	}
	return importResult(out)
}

// SaveAssetIndex overwrites the vault's asset index.
func (g *Gateway) SaveAssetIndex(vaultPath string, idx *model.AssetIndex) bool {
	if idx == nil {
		g.logger.Error("saving asset index failed", "vault", vaultPath, "error", "nil index")
		return false
	}
	if err := g.indexer.Save(vaultPath, idx); err != nil {
		g.logger.Error("saving asset index failed", "vault", vaultPath, "error", err)
		return false
	}
	return true
}

// LoadAssetIndex reads the vault's asset index. Failures yield nil.
func (g *Gateway) LoadAssetIndex(vaultPath string) *model.AssetIndex {
	idx, err := g.indexer.Load(vaultPath)
	if err != nil {
		g.logger.Error("loading asset index failed", "vault", vaultPath, "error", err)
		return nil
	}
	return idx
}

// VerifyAssets cross-checks the index against disk. Failures yield nil.
func (g *Gateway) VerifyAssets(vaultPath string) *VerifyReport {
	report, err := g.indexer.Verify(vaultPath)
	if err != nil {
		g.logger.Error("verifying assets failed", "vault", vaultPath, "error", err)
		return nil
	}
	return report
}

// MoveToTrash quarantines filePath in trashPath and returns its new path,
// or "" on failure.
func (g *Gateway) MoveToTrash(filePath, trashPath string, meta TrashMeta) string {
	dest, err := g.trash.MoveToTrash(filePath, trashPath, meta)
	if err != nil {
		g.logger.Error("move to trash failed", "path", filePath, "trash", trashPath, "error", err)
		return ""
	}
	return dest
}

// ListTrash returns the vault's trash entries; failures yield an empty list.
func (g *Gateway) ListTrash(vaultPath string) []model.TrashEntry {
	items, err := g.trash.List(vaultPath)
	if err != nil {
		g.logger.Error("listing trash failed", "vault", vaultPath, "error", err)
		return []model.TrashEntry{}
	}
	return items
}

// PurgeTrash deletes expired trash entries and returns how many were
// removed.
func (g *Gateway) PurgeTrash(vaultPath string) int {
	n, err := g.trash.Purge(vaultPath)
	if err != nil {
		g.logger.Error("purging trash failed", "vault", vaultPath, "error", err)
		return 0
	}
	return n
}

// RestoreFromTrash moves a trashed file back and returns its restored path,
// or "" on failure.
func (g *Gateway) RestoreFromTrash(vaultPath, entryID string) string {
	dest, err := g.trash.Restore(vaultPath, entryID)
	if err != nil {
		g.logger.Error("restore from trash failed", "vault", vaultPath, "entry", entryID, "error", err)
		return ""
	}
	return dest
}

// SaveProject writes contents to path, asking the host for a path when it
// is empty. It returns the resolved path, or "" when canceled or failed.
func (g *Gateway) SaveProject(path string, contents []byte) string {
	saved, err := g.projects.Save(path, contents)
	if err != nil {
		if errors.Is(err, errors.ErrCanceled) {
			g.logger.Debug("project save canceled")
		} else {
			g.logger.Error("saving project failed", "path", path, "error", err)
		}
		return ""
	}
	return saved
}

// LoadProject reads a project file, asking the host for a path when it is
// empty. Canceled, missing and malformed files yield nil.
func (g *Gateway) LoadProject(path string) *model.ProjectSavePayload {
	payload, err := g.projects.Load(path)
	if err != nil {
		if errors.Is(err, errors.ErrCanceled) {
			g.logger.Debug("project load canceled")
		} else {
			g.logger.Error("loading project failed", "path", path, "error", err)
		}
		return nil
	}
	return payload
}

// RecentProjects returns up to limit recently saved projects.
func (g *Gateway) RecentProjects(limit int) []*RecentProject {
	recent, err := g.projects.Recent(limit)
	if err != nil {
		g.logger.Error("listing recent projects failed", "error", err)
		return []*RecentProject{}
	}
	return recent
}

func importResult(out *ImportOutcome) ImportResult {
	return ImportResult{
		Success:      true,
		VaultPath:    out.AbsPath,
		RelativePath: out.RelativePath,
		Hash:         out.Hash,
		IsDuplicate:  out.IsDuplicate,
	}
}

func failedImport(err error) ImportResult {
	var dErr *errors.DeckError
	if !stderrors.As(err, &dErr) {
		return ImportResult{Error: err.Error(), Code: string(errors.ErrInternal)}
	}
	msg := dErr.Message
	if dErr.Code == errors.ErrIO && dErr.Err != nil {
		msg += ": " + dErr.Err.Error()
	}
	return ImportResult{Error: msg, Code: string(dErr.Code)}
}

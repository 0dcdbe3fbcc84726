package trash

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"scenedeck/internal/deck"
	"scenedeck/internal/errors"
	"scenedeck/internal/model"
)

// MaxNameProbe bounds the search for a free _<n> suffixed name.
const MaxNameProbe = 1000

// Trash moves vault files into <vault>/.trash and keeps .trash/.trash.json.
type Trash struct {
	fs            deck.FileSystem
	indexer       deck.AssetIndexer
	clock         deck.Clock
	idgen         deck.IDGenerator
	logger        deck.Logger
	retentionDays int
}

// NewTrash creates a Trash. A positive retentionDays overrides the value
// stored in existing trash indexes; zero keeps it.
func NewTrash(fsys deck.FileSystem, indexer deck.AssetIndexer, clock deck.Clock, idgen deck.IDGenerator, logger deck.Logger, retentionDays int) *Trash {
	return &Trash{
		fs:            fsys,
		indexer:       indexer,
		clock:         clock,
		idgen:         idgen,
		logger:        logger,
		retentionDays: retentionDays,
	}
}

// MoveToTrash quarantines filePath inside trashPath and returns its new
// location. Only a failure to create the trash directory or to move the
// file is returned; later bookkeeping failures are logged because the file
// has already moved.
func (t *Trash) MoveToTrash(filePath, trashPath string, meta deck.TrashMeta) (string, error) {
	trashPath = filepath.Clean(trashPath)
	if err := t.fs.MkdirAll(trashPath); err != nil {
		return "", errors.NewIO("creating trash directory", err)
	}

	name := filepath.Base(filePath)
	dest, err := t.freePath(trashPath, name)
	if err != nil {
		return "", err
	}
	if err := t.move(filePath, dest); err != nil {
		return "", err
	}

	vaultPath := filepath.Dir(trashPath)

	var retired *model.AssetIndexEntry
	if meta.AssetID != "" {
		retired, err = t.retireIndexEntry(vaultPath, meta.AssetID, name)
		if err != nil {
			t.logger.Error("retiring asset index entry failed", "asset_id", meta.AssetID, "error", err)
		}
	}

	idx, err := t.loadIndex(trashPath)
	if err != nil {
		t.logger.Error("loading trash index failed, entry not recorded", "path", dest, "error", err)
		return dest, nil
	}
	t.purgeExpired(trashPath, idx)

	idx.Items = append(idx.Items, model.TrashEntry{
		ID:                t.idgen.New(),
		DeletedAt:         model.FormatTime(t.clock.Now()),
		AssetID:           meta.AssetID,
		OriginalPath:      deck.VaultRelative(vaultPath, filePath),
		TrashRelativePath: filepath.ToSlash(filepath.Base(dest)),
		Filename:          name,
		Reason:            meta.Reason,
		OriginRefs:        meta.OriginRefs,
		IndexEntry:        retired,
	})
	if err := t.saveIndex(trashPath, idx); err != nil {
		t.logger.Error("saving trash index failed", "path", dest, "error", err)
		return dest, nil
	}

	t.logger.Info("moved to trash", "file", filePath, "dest", dest, "asset_id", meta.AssetID)
	return dest, nil
}

// List returns the entries currently tracked in the vault's trash.
func (t *Trash) List(vaultPath string) ([]model.TrashEntry, error) {
	idx, err := t.loadIndex(deck.TrashDir(vaultPath))
	if err != nil {
		return nil, err
	}
	return idx.Items, nil
}

// Purge deletes expired trash entries and their files and returns how many
// entries were dropped.
func (t *Trash) Purge(vaultPath string) (int, error) {
	trashPath := deck.TrashDir(vaultPath)
	idx, err := t.loadIndex(trashPath)
	if err != nil {
		return 0, err
	}
	purged := t.purgeExpired(trashPath, idx)
	if purged == 0 {
		return 0, nil
	}
	if err := t.saveIndex(trashPath, idx); err != nil {
		return 0, err
	}
	return purged, nil
}

// Restore moves a trashed file back to its original location inside the
// vault, re-inserts its asset index snapshot if it had one and drops the
// trash entry. The restored path is suffixed if the original is taken.
func (t *Trash) Restore(vaultPath, entryID string) (string, error) {
	trashPath := deck.TrashDir(vaultPath)
	idx, err := t.loadIndex(trashPath)
	if err != nil {
		return "", err
	}
	i := idx.Find(entryID)
	if i < 0 {
		return "", errors.NewNotFound(entryID)
	}
	entry := idx.Items[i]

	if !filepath.IsLocal(filepath.FromSlash(entry.TrashRelativePath)) {
		return "", fmt.Errorf("trash entry %s has invalid path %q", entryID, entry.TrashRelativePath)
	}
	src := filepath.Join(trashPath, filepath.FromSlash(entry.TrashRelativePath))

	target := restoreTarget(vaultPath, entry)
	if err := t.fs.MkdirAll(filepath.Dir(target)); err != nil {
		return "", errors.NewIO("creating restore directory", err)
	}
	dest, err := t.freePath(filepath.Dir(target), filepath.Base(target))
	if err != nil {
		return "", err
	}
	if err := t.move(src, dest); err != nil {
		return "", err
	}

	if entry.IndexEntry != nil {
		if filepath.Dir(dest) == filepath.Clean(deck.AssetsDir(vaultPath)) {
			restored := *entry.IndexEntry
			restored.Filename = filepath.Base(dest)
			if err := t.upsertIndexEntry(vaultPath, restored); err != nil {
				t.logger.Error("re-indexing restored asset failed", "asset_id", restored.ID, "error", err)
			}
		} else {
			t.logger.Warn("restored outside assets directory, index not updated", "dest", dest)
		}
	}

	idx.Items = append(idx.Items[:i], idx.Items[i+1:]...)
	if err := t.saveIndex(trashPath, idx); err != nil {
		t.logger.Error("saving trash index failed", "error", err)
	}

	t.logger.Info("restored from trash", "entry_id", entryID, "dest", dest)
	return dest, nil
}

// restoreTarget is where a trashed file goes back to: its recorded original
// path, or the assets directory when none was recorded.
func restoreTarget(vaultPath string, entry model.TrashEntry) string {
	orig := filepath.FromSlash(entry.OriginalPath)
	switch {
	case orig == "":
		return filepath.Join(deck.AssetsDir(vaultPath), entry.Filename)
	case filepath.IsAbs(orig):
		return orig
	case filepath.IsLocal(orig):
		return filepath.Join(vaultPath, orig)
	default:
		return filepath.Join(deck.AssetsDir(vaultPath), entry.Filename)
	}
}

// move renames src to dst, falling back to copy and remove. On failure the
// source is left in place and any partial copy is removed.
func (t *Trash) move(src, dst string) error {
	renameErr := t.fs.Rename(src, dst)
	if renameErr == nil {
		return nil
	}
	t.logger.Warn("rename failed, copying instead", "src", src, "dst", dst, "error", renameErr)

	if err := t.fs.CopyFile(src, dst); err != nil {
		t.removeQuietly(dst)
		return errors.NewIO("moving file", fmt.Errorf("rename: %v; copy: %w", renameErr, err))
	}
	if err := t.fs.Remove(src); err != nil {
		t.removeQuietly(dst)
		return errors.NewIO("moving file", fmt.Errorf("removing source after copy: %w", err))
	}
	return nil
}

func (t *Trash) removeQuietly(path string) {
	if err := t.fs.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		t.logger.Warn("removing partial copy failed", "path", path, "error", err)
	}
}

// freePath returns dir/name, or dir/<stem>_<n><ext> for the first n that
// does not exist.
func (t *Trash) freePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}

	for n := 0; n <= MaxNameProbe; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
		}
		path := filepath.Join(dir, candidate)
		_, err := t.fs.Stat(path)
		if stderrors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", errors.NewIO("checking destination", err)
		}
	}
	return "", errors.NewLimitExceeded("free name probe", MaxNameProbe)
}

// retireIndexEntry removes the asset index entry for assetID when its
// filename is exactly filename. It returns the removed entry, or nil.
func (t *Trash) retireIndexEntry(vaultPath, assetID, filename string) (*model.AssetIndexEntry, error) {
	idx, err := t.indexer.Load(vaultPath)
	if err != nil {
		return nil, err
	}
	removed := idx.Remove(func(e *model.AssetIndexEntry) bool {
		return e.ID == assetID && e.Filename == filename
	})
	if len(removed) == 0 {
		return nil, nil
	}
	if err := t.indexer.Save(vaultPath, idx); err != nil {
		return nil, err
	}
	return &removed[0], nil
}

func (t *Trash) upsertIndexEntry(vaultPath string, entry model.AssetIndexEntry) error {
	idx, err := t.indexer.Load(vaultPath)
	if err != nil {
		return err
	}
	idx.Upsert(entry)
	return t.indexer.Save(vaultPath, idx)
}

// purgeExpired drops entries older than the index's retention and deletes
// their files. Unparsable timestamps and files that cannot be deleted keep
// their entries. It returns the number of entries dropped.
func (t *Trash) purgeExpired(trashPath string, idx *model.TrashIndex) int {
	now := t.clock.Now()
	retention := time.Duration(idx.RetentionDays) * 24 * time.Hour

	kept := idx.Items[:0]
	purged := 0
	for _, item := range idx.Items {
		deletedAt, err := model.ParseTime(item.DeletedAt)
		if err != nil {
			t.logger.Warn("trash entry has unparsable timestamp, keeping", "id", item.ID, "deleted_at", item.DeletedAt)
			kept = append(kept, item)
			continue
		}
		if now.Sub(deletedAt) <= retention {
			kept = append(kept, item)
			continue
		}

		if err := t.deleteTrashed(trashPath, item); err != nil {
			t.logger.Warn("deleting expired trash file failed, keeping entry", "id", item.ID, "error", err)
			kept = append(kept, item)
			continue
		}
		purged++
	}
	idx.Items = kept

	if purged > 0 {
		t.logger.Info("purged expired trash", "count", purged)
	}
	return purged
}

func (t *Trash) deleteTrashed(trashPath string, item model.TrashEntry) error {
	rel := filepath.FromSlash(item.TrashRelativePath)
	if !filepath.IsLocal(rel) {
		t.logger.Warn("trash entry path outside trash, dropping without delete", "id", item.ID, "path", item.TrashRelativePath)
		return nil
	}
	err := t.fs.Remove(filepath.Join(trashPath, rel))
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// loadIndex reads the trash index. A missing or malformed file yields an
// empty index; a newer schema version is an error.
func (t *Trash) loadIndex(trashPath string) (*model.TrashIndex, error) {
	path := deck.TrashIndexPath(trashPath)
	data, err := t.fs.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return model.NewTrashIndex(t.retentionDays), nil
		}
		return nil, errors.NewIO("reading trash index", err)
	}

	idx, err := model.DecodeTrashIndex(data)
	if err != nil {
		if errors.Is(err, errors.ErrUnsupportedVersion) {
			return nil, err
		}
		t.logger.Warn("trash index is malformed, starting empty", "path", path, "error", err)
		return model.NewTrashIndex(t.retentionDays), nil
	}
	if t.retentionDays > 0 {
		idx.RetentionDays = t.retentionDays
	}
	return idx, nil
}

func (t *Trash) saveIndex(trashPath string, idx *model.TrashIndex) error {
	if err := t.fs.MkdirAll(trashPath); err != nil {
		return errors.NewIO("creating trash directory", err)
	}
	data, err := model.EncodeTrashIndex(idx)
	if err != nil {
		return fmt.Errorf("encoding trash index: %w", err)
	}
	if err := t.fs.WriteFile(deck.TrashIndexPath(trashPath), data); err != nil {
		return errors.NewIO("writing trash index", err)
	}
	return nil
}

var _ deck.TrashBin = (*Trash)(nil)

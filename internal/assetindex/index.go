package assetindex

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io/fs"
	"sort"

	"scenedeck/internal/deck"
	"scenedeck/internal/errors"
	osfs "scenedeck/internal/fs"
	"scenedeck/internal/model"
)

// Indexer reads and writes <vault>/assets/.index.json.
// Read-modify-write sequences are not locked; the vault has a single writer.
type Indexer struct {
	fs             deck.FileSystem
	logger         deck.Logger
	ignorePatterns []string
}

// NewIndexer creates an Indexer. ignorePatterns are extra names skipped by
// Verify in addition to the defaults and the vault's .deckignore.
func NewIndexer(fsys deck.FileSystem, logger deck.Logger, ignorePatterns []string) *Indexer {
	return &Indexer{
		fs:             fsys,
		logger:         logger,
		ignorePatterns: ignorePatterns,
	}
}

// Load returns the vault's asset index. A missing or malformed file yields
// an empty index. A file written by a newer schema version, or one that
// cannot be read at all, is an error so callers never overwrite it.
func (x *Indexer) Load(vaultPath string) (*model.AssetIndex, error) {
	path := deck.AssetIndexPath(vaultPath)
	data, err := x.fs.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return model.NewAssetIndex(), nil
		}
		return nil, errors.NewIO("reading asset index", err)
	}

	idx, err := model.DecodeAssetIndex(data)
	if err != nil {
		if errors.Is(err, errors.ErrUnsupportedVersion) {
			return nil, err
		}
		x.logger.Warn("asset index is malformed, starting empty", "path", path, "error", err)
		return model.NewAssetIndex(), nil
	}
	return idx, nil
}

// Save writes the whole index, creating the assets directory if needed.
func (x *Indexer) Save(vaultPath string, idx *model.AssetIndex) error {
	if err := x.fs.MkdirAll(deck.AssetsDir(vaultPath)); err != nil {
		return errors.NewIO("creating assets directory", err)
	}
	data, err := model.EncodeAssetIndex(idx)
	if err != nil {
		return fmt.Errorf("encoding asset index: %w", err)
	}
	if err := x.fs.WriteFile(deck.AssetIndexPath(vaultPath), data); err != nil {
		return errors.NewIO("writing asset index", err)
	}
	return nil
}

// Upsert loads the index, replaces or appends entry and saves it.
func (x *Indexer) Upsert(vaultPath string, entry model.AssetIndexEntry) error {
	idx, err := x.Load(vaultPath)
	if err != nil {
		return err
	}
	idx.Upsert(entry)
	return x.Save(vaultPath, idx)
}

// Verify compares the index against the files in the assets directory.
// It reports only; repair is left to the caller.
func (x *Indexer) Verify(vaultPath string) (*deck.VerifyReport, error) {
	idx, err := x.Load(vaultPath)
	if err != nil {
		return nil, err
	}

	assetsDir := deck.AssetsDir(vaultPath)
	matcher, err := osfs.NewAssetIgnoreMatcher(assetsDir, x.ignorePatterns)
	if err != nil {
		return nil, err
	}

	onDisk := make(map[string]bool)
	entries, err := x.fs.ReadDir(assetsDir)
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.NewIO("listing assets directory", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || matcher.Match(e.Name()) {
			continue
		}
		onDisk[e.Name()] = true
	}

	indexed := make(map[string]bool)
	for _, a := range idx.Assets {
		indexed[a.Filename] = true
	}

	report := &deck.VerifyReport{Missing: []string{}, Orphaned: []string{}}
	for name := range indexed {
		if !onDisk[name] {
			report.Missing = append(report.Missing, name)
		}
	}
	for name := range onDisk {
		if !indexed[name] {
			report.Orphaned = append(report.Orphaned, name)
		}
	}
	sort.Strings(report.Missing)
	sort.Strings(report.Orphaned)

	if len(report.Missing) > 0 || len(report.Orphaned) > 0 {
		x.logger.Warn("asset index out of sync",
			"vault", vaultPath, "missing", len(report.Missing), "orphaned", len(report.Orphaned))
	}
	return report, nil
}

// Sync refreshes every entry's usage refs from scenes and reorders the index
// into storyline order. The file is rewritten only when its content changes.
func (x *Indexer) Sync(vaultPath string, scenes []model.Scene) (bool, error) {
	idx, err := x.Load(vaultPath)
	if err != nil {
		return false, err
	}

	before, err := model.EncodeAssetIndex(idx)
	if err != nil {
		return false, fmt.Errorf("encoding asset index: %w", err)
	}

	Reorder(idx, UsageRefs(scenes))

	after, err := model.EncodeAssetIndex(idx)
	if err != nil {
		return false, fmt.Errorf("encoding asset index: %w", err)
	}
	if bytes.Equal(before, after) {
		return false, nil
	}

	if err := x.Save(vaultPath, idx); err != nil {
		return false, err
	}
	x.logger.Debug("asset index synced", "vault", vaultPath, "assets", len(idx.Assets))
	return true, nil
}

var _ deck.AssetIndexer = (*Indexer)(nil)

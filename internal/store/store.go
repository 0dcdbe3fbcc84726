package store

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"scenedeck/internal/deck"
	"scenedeck/internal/errors"
	"scenedeck/internal/model"
)

// MaxCollisionProbe bounds the search for a free suffixed filename when the
// truncated hash of different content collides. Reaching it means the assets
// directory is corrupt, not that a real collision chain exists.
const MaxCollisionProbe = 1000

// hashPrefixLen is the number of hex digits of the digest used in filenames.
const hashPrefixLen = 12

var mediaExtensions = map[string]model.MediaType{
	".png":  model.MediaImage,
	".jpg":  model.MediaImage,
	".jpeg": model.MediaImage,
	".gif":  model.MediaImage,
	".webp": model.MediaImage,
	".bmp":  model.MediaImage,
	".mp4":  model.MediaVideo,
	".webm": model.MediaVideo,
	".mov":  model.MediaVideo,
	".m4v":  model.MediaVideo,
	".avi":  model.MediaVideo,
	".mkv":  model.MediaVideo,
	".mp3":  model.MediaAudio,
	".wav":  model.MediaAudio,
	".ogg":  model.MediaAudio,
	".m4a":  model.MediaAudio,
	".aac":  model.MediaAudio,
	".flac": model.MediaAudio,
}

var filenamePrefixes = map[model.MediaType]string{
	model.MediaImage: "img",
	model.MediaVideo: "vid",
	model.MediaAudio: "aud",
}

// Classify returns the media type for a file extension (case-insensitive).
func Classify(ext string) (model.MediaType, bool) {
	t, ok := mediaExtensions[strings.ToLower(ext)]
	return t, ok
}

// CanonicalFilename derives the stored name for content with the given
// digest. n > 0 selects the n-th collision suffix.
func CanonicalFilename(mediaType model.MediaType, hash, ext string, n int) string {
	short := hash
	if len(short) > hashPrefixLen {
		short = short[:hashPrefixLen]
	}
	base := filenamePrefixes[mediaType] + "_" + short
	if n > 0 {
		base = fmt.Sprintf("%s_%d", base, n)
	}
	return base + strings.ToLower(ext)
}

// Store imports media into the hash-addressed assets directory of a vault.
type Store struct {
	fs      deck.FileSystem
	hasher  deck.Hasher
	indexer deck.AssetIndexer
	clock   deck.Clock
	logger  deck.Logger
	tempDir string
}

// NewStore creates a Store. Decoded data URLs are staged under tempDir;
// an empty tempDir uses the OS default.
func NewStore(fsys deck.FileSystem, hasher deck.Hasher, indexer deck.AssetIndexer, clock deck.Clock, logger deck.Logger, tempDir string) *Store {
	return &Store{
		fs:      fsys,
		hasher:  hasher,
		indexer: indexer,
		clock:   clock,
		logger:  logger,
		tempDir: tempDir,
	}
}

// Import copies sourcePath into <vault>/assets under its content-derived
// name and records it in the asset index as assetID. Identical bytes that
// are already stored are not copied again.
func (s *Store) Import(sourcePath, vaultPath, assetID string) (*deck.ImportOutcome, error) {
	return s.importFile(sourcePath, vaultPath, assetID,
		filepath.Base(sourcePath), deck.VaultRelative(vaultPath, sourcePath))
}

func (s *Store) importFile(sourcePath, vaultPath, assetID, originalName, originalPath string) (*deck.ImportOutcome, error) {
	ext := filepath.Ext(sourcePath)
	mediaType, ok := Classify(ext)
	if !ok {
		return nil, errors.NewUnsupportedType(ext)
	}

	data, err := s.fs.ReadFile(sourcePath)
	if err != nil {
		return nil, errors.NewIO("reading source file", err)
	}
	hash := s.hasher.Sum(data)

	// Load before touching the assets directory so an unreadable index
	// fails the import without side effects.
	idx, err := s.indexer.Load(vaultPath)
	if err != nil {
		return nil, err
	}

	assetsDir := deck.AssetsDir(vaultPath)
	if err := s.fs.MkdirAll(assetsDir); err != nil {
		return nil, errors.NewIO("creating assets directory", err)
	}

	filename, duplicate, err := s.resolveFilename(assetsDir, mediaType, hash, ext)
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(assetsDir, filename)

	if !duplicate {
		if err := s.fs.WriteFile(dest, data); err != nil {
			return nil, errors.NewIO("writing asset", err)
		}
	}

	entry := model.AssetIndexEntry{
		ID:           assetID,
		Hash:         hash,
		Filename:     filename,
		OriginalName: originalName,
		OriginalPath: originalPath,
		UsageRefs:    []model.UsageRef{},
		Type:         mediaType,
		FileSize:     int64(len(data)),
		ImportedAt:   model.FormatTime(s.clock.Now()),
	}
	if i := idx.Find(assetID); i >= 0 {
		entry.UsageRefs = idx.Assets[i].UsageRefs
	}
	idx.Upsert(entry)

	if err := s.indexer.Save(vaultPath, idx); err != nil {
		if !duplicate {
			if rmErr := s.fs.Remove(dest); rmErr != nil {
				s.logger.Warn("removing unindexed asset failed", "path", dest, "error", rmErr)
			}
		}
		return nil, err
	}

	absPath, err := filepath.Abs(dest)
	if err != nil {
		absPath = dest
	}

	s.logger.Info("asset imported",
		"asset_id", assetID, "filename", filename, "duplicate", duplicate, "size", len(data))

	return &deck.ImportOutcome{
		AbsPath:      absPath,
		RelativePath: deck.AssetsDirName + "/" + filename,
		Hash:         hash,
		IsDuplicate:  duplicate,
		Entry:        entry,
	}, nil
}

// resolveFilename finds where content with the given digest lives or should
// be written. It returns the name and whether identical bytes already exist
// there. The canonical name is tried first, then _1, _2, ... up to
// MaxCollisionProbe.
func (s *Store) resolveFilename(assetsDir string, mediaType model.MediaType, hash, ext string) (string, bool, error) {
	for n := 0; n <= MaxCollisionProbe; n++ {
		name := CanonicalFilename(mediaType, hash, ext, n)
		existing, err := s.fs.ReadFile(filepath.Join(assetsDir, name))
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				return name, false, nil
			}
			return "", false, errors.NewIO("reading existing asset", err)
		}
		if s.hasher.Sum(existing) == hash {
			return name, true, nil
		}
		s.logger.Warn("truncated hash collision", "filename", name, "hash", hash)
	}
	return "", false, errors.NewLimitExceeded("collision probe", MaxCollisionProbe)
}

var _ deck.AssetStore = (*Store)(nil)

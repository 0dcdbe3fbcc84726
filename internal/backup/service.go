// Package backup copies vault snapshots to offsite storage and back.
//
// Asset content is stored once per digest under assets/<sha256>, or
// sealed/<sha256> when encrypted, so repeated pushes upload only new media.
// Each push also writes the vault's metadata files and a manifest under
// snapshots/<id>/.
package backup

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	"scenedeck/internal/deck"
	"scenedeck/internal/errors"
	"scenedeck/internal/model"
)

// ManifestVersion is the snapshot manifest schema written by this binary.
const ManifestVersion = 1

// Operation names recorded in the backup log.
const (
	OperationPush    = "push"
	OperationRestore = "restore"
)

// LatestSnapshot selects the newest successful push in Restore.
const LatestSnapshot = "latest"

// ManifestFile is one file captured in a snapshot.
type ManifestFile struct {
	Path string `json:"path"` // vault-relative, slash separated
	Key  string `json:"key"`  // object key in the target
	Hash string `json:"hash"` // SHA-256 of the plaintext
	Size int64  `json:"size"`
}

// Manifest describes a snapshot.
type Manifest struct {
	Version    int            `json:"version"`
	SnapshotID string         `json:"snapshotId"`
	CreatedAt  string         `json:"createdAt"`
	VaultName  string         `json:"vaultName"`
	Encrypted  bool           `json:"encrypted"`
	Files      []ManifestFile `json:"files"`
}

// PushResult summarizes a push.
type PushResult struct {
	Manifest *Manifest
	Uploaded int      // asset objects written
	Reused   int      // asset objects already present
	Missing  []string // indexed assets absent from disk
}

// Service pushes and restores vault snapshots.
type Service struct {
	fs        deck.FileSystem
	target    deck.BackupTarget
	encryptor deck.Encryptor
	log       deck.BackupLog
	hasher    deck.Hasher
	clock     deck.Clock
	idgen     deck.IDGenerator
	logger    deck.Logger
}

// NewService creates a Service. A nil encryptor stores plaintext objects; a
// nil log skips operation history.
func NewService(fsys deck.FileSystem, target deck.BackupTarget, encryptor deck.Encryptor, log deck.BackupLog, hasher deck.Hasher, clock deck.Clock, idgen deck.IDGenerator, logger deck.Logger) *Service {
	return &Service{
		fs:        fsys,
		target:    target,
		encryptor: encryptor,
		log:       log,
		hasher:    hasher,
		clock:     clock,
		idgen:     idgen,
		logger:    logger,
	}
}

// metadataFiles are captured in every snapshot when present.
var metadataFiles = []string{
	path.Join(deck.AssetsDirName, deck.AssetIndexFileName),
	path.Join(deck.TrashDirName, deck.TrashIndexFileName),
	deck.ProjectFileName,
}

// Push uploads a snapshot of the vault at vaultPath.
func (s *Service) Push(vaultPath string) (*PushResult, error) {
	op := s.begin(OperationPush, vaultPath)
	result, err := s.push(vaultPath)
	snapshotID := ""
	if result != nil {
		snapshotID = result.Manifest.SnapshotID
	}
	s.finish(op, err, snapshotID)
	return result, err
}

func (s *Service) push(vaultPath string) (*PushResult, error) {
	if err := s.target.ValidateSetup(); err != nil {
		return nil, fmt.Errorf("backup target not ready: %w", err)
	}
	if s.encryptor != nil && !s.encryptor.IsConfigured() {
		return nil, fmt.Errorf("encryption keys not configured")
	}

	indexData, err := s.fs.ReadFile(deck.AssetIndexPath(vaultPath))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFound(deck.AssetIndexPath(vaultPath))
		}
		return nil, errors.NewIO("reading asset index", err)
	}
	idx, err := model.DecodeAssetIndex(indexData)
	if err != nil {
		return nil, err
	}

	id := s.idgen.New()
	manifest := &Manifest{
		Version:    ManifestVersion,
		SnapshotID: id,
		CreatedAt:  model.FormatTime(s.clock.Now()),
		VaultName:  filepath.Base(vaultPath),
		Encrypted:  s.encryptor != nil,
		Files:      []ManifestFile{},
	}
	result := &PushResult{Manifest: manifest, Missing: []string{}}

	seen := make(map[string]bool)
	for _, entry := range idx.Assets {
		rel := path.Join(deck.AssetsDirName, entry.Filename)
		if seen[rel] {
			continue
		}
		seen[rel] = true

		data, err := s.fs.ReadFile(filepath.Join(vaultPath, filepath.FromSlash(rel)))
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("indexed asset missing, not backed up", "vault", vaultPath, "filename", entry.Filename)
				result.Missing = append(result.Missing, entry.Filename)
				continue
			}
			return nil, errors.NewIO("reading asset", err)
		}

		hash := s.hasher.Sum(data)
		key := s.assetKey(hash)
		exists, err := s.target.Exists(key)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Reused++
		} else {
			if err := s.put(key, data); err != nil {
				return nil, err
			}
			result.Uploaded++
		}
		manifest.Files = append(manifest.Files, ManifestFile{Path: rel, Key: key, Hash: hash, Size: int64(len(data))})
	}

	for _, rel := range metadataFiles {
		data, err := s.fs.ReadFile(filepath.Join(vaultPath, filepath.FromSlash(rel)))
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, errors.NewIO("reading "+rel, err)
		}
		key := path.Join("snapshots", id, rel)
		if err := s.put(key, data); err != nil {
			return nil, err
		}
		manifest.Files = append(manifest.Files, ManifestFile{Path: rel, Key: key, Hash: s.hasher.Sum(data), Size: int64(len(data))})
	}

	// Written last, in plaintext. A snapshot without a manifest is never
	// restored.
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := s.target.Put(manifestKey(id), bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, err
	}

	s.logger.Info("snapshot pushed", "vault", vaultPath, "snapshot", id,
		"files", len(manifest.Files), "uploaded", result.Uploaded, "reused", result.Reused)
	return result, nil
}

// Restore writes the files of a snapshot into destVault, which must not
// already hold an asset index. snapshotID may be LatestSnapshot. dec is
// required for encrypted snapshots.
func (s *Service) Restore(snapshotID, destVault string, dec deck.DecryptionContext) (*Manifest, error) {
	op := s.begin(OperationRestore, destVault)
	manifest, err := s.restore(snapshotID, destVault, dec)
	restored := ""
	if manifest != nil {
		restored = manifest.SnapshotID
	}
	s.finish(op, err, restored)
	return manifest, err
}

func (s *Service) restore(snapshotID, destVault string, dec deck.DecryptionContext) (*Manifest, error) {
	if snapshotID == "" || snapshotID == LatestSnapshot {
		if s.log == nil {
			return nil, fmt.Errorf("no backup history to resolve the latest snapshot")
		}
		latest, err := s.log.LastSnapshotID()
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return nil, errors.NewNotFound("latest snapshot")
		}
		snapshotID = latest
	}

	if _, err := s.fs.Stat(deck.AssetIndexPath(destVault)); err == nil {
		return nil, fmt.Errorf("destination %s already holds a vault", destVault)
	}

	manifest, err := s.Manifest(snapshotID)
	if err != nil {
		return nil, err
	}
	if manifest.Encrypted && dec == nil {
		return nil, fmt.Errorf("snapshot %s is encrypted; unlock the private key to restore it", snapshotID)
	}

	for _, f := range manifest.Files {
		rel := filepath.FromSlash(f.Path)
		if !filepath.IsLocal(rel) {
			return nil, errors.NewMalformed(manifestKey(snapshotID), fmt.Errorf("unsafe path %q", f.Path))
		}
		data, err := s.get(f.Key, manifest.Encrypted, dec)
		if err != nil {
			return nil, err
		}
		if got := s.hasher.Sum(data); got != f.Hash {
			return nil, fmt.Errorf("checksum mismatch for %s: got %s, want %s", f.Path, got, f.Hash)
		}
		dest := filepath.Join(destVault, rel)
		if err := s.fs.MkdirAll(filepath.Dir(dest)); err != nil {
			return nil, errors.NewIO("creating directory", err)
		}
		if err := s.fs.WriteFile(dest, data); err != nil {
			return nil, errors.NewIO("writing "+f.Path, err)
		}
	}

	s.logger.Info("snapshot restored", "snapshot", snapshotID, "vault", destVault, "files", len(manifest.Files))
	return manifest, nil
}

// Manifest reads the manifest of a snapshot.
func (s *Service) Manifest(snapshotID string) (*Manifest, error) {
	var buf bytes.Buffer
	if err := s.target.Get(manifestKey(snapshotID), &buf); err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		return nil, errors.NewMalformed(manifestKey(snapshotID), err)
	}
	if m.Version > ManifestVersion {
		return nil, errors.NewUnsupportedVersion("snapshot manifest", m.Version, ManifestVersion)
	}
	return &m, nil
}

// History returns up to limit recorded backup operations, newest first.
func (s *Service) History(limit int) ([]*deck.BackupOperation, error) {
	if s.log == nil {
		return []*deck.BackupOperation{}, nil
	}
	return s.log.ListBackupOperations(limit)
}

func (s *Service) put(key string, data []byte) error {
	if s.encryptor != nil {
		var sealed bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(data), &sealed); err != nil {
			return fmt.Errorf("encrypting %s: %w", key, err)
		}
		data = sealed.Bytes()
	}
	return s.target.Put(key, bytes.NewReader(data), int64(len(data)))
}

func (s *Service) get(key string, encrypted bool, dec deck.DecryptionContext) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.target.Get(key, &buf); err != nil {
		return nil, err
	}
	if !encrypted {
		return buf.Bytes(), nil
	}
	var plain bytes.Buffer
	if err := dec.Decrypt(&buf, &plain); err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", key, err)
	}
	return plain.Bytes(), nil
}

func (s *Service) begin(operation, vaultPath string) *deck.BackupOperation {
	if s.log == nil {
		return nil
	}
	params, _ := json.Marshal(map[string]string{"vault": vaultPath})
	op, err := s.log.CreateBackupOperation(operation, string(params))
	if err != nil {
		s.logger.Warn("recording backup operation failed", "operation", operation, "error", err)
		return nil
	}
	return op
}

func (s *Service) finish(op *deck.BackupOperation, err error, snapshotID string) {
	if op == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	if ferr := s.log.FinishBackupOperation(op.ID, status, snapshotID); ferr != nil {
		s.logger.Warn("finishing backup operation failed", "id", op.ID, "error", ferr)
	}
}

func (s *Service) assetKey(hash string) string {
	if s.encryptor != nil {
		return path.Join("sealed", hash)
	}
	return path.Join("assets", hash)
}

func manifestKey(snapshotID string) string {
	return path.Join("snapshots", snapshotID, "manifest.json")
}

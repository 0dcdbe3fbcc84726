package model

import (
	"encoding/json"
	"fmt"

	"scenedeck/internal/errors"
)

// AssetIndexVersion is the asset index schema version written by this binary.
const AssetIndexVersion = 1

// MediaType classifies an imported asset.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// UsageRef records one place in the project graph that references an asset.
type UsageRef struct {
	SceneID    string `json:"sceneId"`
	SceneName  string `json:"sceneName"`
	SceneOrder int    `json:"sceneOrder"`
	CutID      string `json:"cutId"`
	CutOrder   int    `json:"cutOrder"`
	CutIndex   int    `json:"cutIndex"` // 1-based position of the cut within its scene
}

// AssetIndexEntry maps a logical asset id to its stored file.
type AssetIndexEntry struct {
	ID           string     `json:"id"`
	Hash         string     `json:"hash"`
	Filename     string     `json:"filename"`
	OriginalName string     `json:"originalName"`
	OriginalPath string     `json:"originalPath"` // vault-relative when the source was inside the vault
	UsageRefs    []UsageRef `json:"usageRefs"`
	Type         MediaType  `json:"type"`
	FileSize     int64      `json:"fileSize"`
	ImportedAt   string     `json:"importedAt"`
}

// AssetIndex is the persisted content of assets/.index.json.
type AssetIndex struct {
	Version int               `json:"version"`
	Assets  []AssetIndexEntry `json:"assets"`
}

// NewAssetIndex returns an empty index at the current version.
func NewAssetIndex() *AssetIndex {
	return &AssetIndex{Version: AssetIndexVersion, Assets: []AssetIndexEntry{}}
}

// Find returns the position of the entry with the given id, or -1.
func (idx *AssetIndex) Find(id string) int {
	for i := range idx.Assets {
		if idx.Assets[i].ID == id {
			return i
		}
	}
	return -1
}

// Upsert replaces the entry with a matching id, or appends it.
func (idx *AssetIndex) Upsert(entry AssetIndexEntry) {
	if i := idx.Find(entry.ID); i >= 0 {
		idx.Assets[i] = entry
		return
	}
	idx.Assets = append(idx.Assets, entry)
}

// Remove drops every entry for which match returns true and returns the
// removed entries in their original order.
func (idx *AssetIndex) Remove(match func(*AssetIndexEntry) bool) []AssetIndexEntry {
	var removed []AssetIndexEntry
	kept := idx.Assets[:0]
	for i := range idx.Assets {
		if match(&idx.Assets[i]) {
			removed = append(removed, idx.Assets[i])
			continue
		}
		kept = append(kept, idx.Assets[i])
	}
	idx.Assets = kept
	return removed
}

// DecodeAssetIndex parses and normalizes an asset index.
// Unversioned files are read as version 1. Newer versions are rejected.
func DecodeAssetIndex(data []byte) (*AssetIndex, error) {
	var idx AssetIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decoding asset index: %w", err)
	}
	if idx.Version > AssetIndexVersion {
		return nil, errors.NewUnsupportedVersion("asset index", idx.Version, AssetIndexVersion)
	}
	if idx.Version <= 0 {
		idx.Version = AssetIndexVersion
	}
	if idx.Assets == nil {
		idx.Assets = []AssetIndexEntry{}
	}
	for i := range idx.Assets {
		if idx.Assets[i].UsageRefs == nil {
			idx.Assets[i].UsageRefs = []UsageRef{}
		}
	}
	return &idx, nil
}

// EncodeAssetIndex renders the index as pretty-printed JSON.
func EncodeAssetIndex(idx *AssetIndex) ([]byte, error) {
	return marshalPretty(idx)
}

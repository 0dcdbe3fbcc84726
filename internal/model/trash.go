package model

import (
	"encoding/json"
	"fmt"

	"scenedeck/internal/errors"
)

// TrashIndexVersion is the trash index schema version written by this binary.
const TrashIndexVersion = 1

// DefaultRetentionDays is how long trashed files are kept before purge.
const DefaultRetentionDays = 30

// TrashEntry describes one quarantined file. Entries are never mutated;
// they are removed only by purge or restore.
type TrashEntry struct {
	ID                string           `json:"id"`
	DeletedAt         string           `json:"deletedAt"`
	AssetID           string           `json:"assetId,omitempty"`
	OriginalPath      string           `json:"originalPath,omitempty"`
	TrashRelativePath string           `json:"trashRelativePath"`
	Filename          string           `json:"filename"`
	Reason            string           `json:"reason,omitempty"`
	OriginRefs        []UsageRef       `json:"originRefs,omitempty"`
	IndexEntry        *AssetIndexEntry `json:"indexEntry,omitempty"`
}

// TrashIndex is the persisted content of .trash/.trash.json.
type TrashIndex struct {
	Version       int          `json:"version"`
	RetentionDays int          `json:"retentionDays"`
	Items         []TrashEntry `json:"items"`
}

// NewTrashIndex returns an empty trash index with the given retention.
// A non-positive retention falls back to DefaultRetentionDays.
func NewTrashIndex(retentionDays int) *TrashIndex {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &TrashIndex{
		Version:       TrashIndexVersion,
		RetentionDays: retentionDays,
		Items:         []TrashEntry{},
	}
}

// Find returns the position of the entry with the given id, or -1.
func (t *TrashIndex) Find(id string) int {
	for i := range t.Items {
		if t.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// DecodeTrashIndex parses and normalizes a trash index.
func DecodeTrashIndex(data []byte) (*TrashIndex, error) {
	var t TrashIndex
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding trash index: %w", err)
	}
	if t.Version > TrashIndexVersion {
		return nil, errors.NewUnsupportedVersion("trash index", t.Version, TrashIndexVersion)
	}
	if t.Version <= 0 {
		t.Version = TrashIndexVersion
	}
	if t.RetentionDays <= 0 {
		t.RetentionDays = DefaultRetentionDays
	}
	if t.Items == nil {
		t.Items = []TrashEntry{}
	}
	return &t, nil
}

// EncodeTrashIndex renders the trash index as pretty-printed JSON.
func EncodeTrashIndex(t *TrashIndex) ([]byte, error) {
	return marshalPretty(t)
}

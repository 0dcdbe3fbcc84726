package store

import (
	"encoding/base64"
	"path/filepath"
	"strings"

	"scenedeck/internal/deck"
	"scenedeck/internal/errors"
)

// dataURLExtensions maps the accepted image subtypes to stored extensions.
var dataURLExtensions = map[string]string{
	"png":  ".png",
	"jpeg": ".jpg",
	"webp": ".webp",
}

// DecodeDataURL parses a base64 image data URL and returns the decoded bytes
// and the file extension for its subtype.
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(dataURL), "data:image/")
	if !ok {
		return nil, "", errors.NewInvalidDataURL("not an image data URL")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.NewInvalidDataURL("missing payload")
	}
	subtype, encoding, ok := strings.Cut(header, ";")
	if !ok || encoding != "base64" {
		return nil, "", errors.NewInvalidDataURL("payload is not base64")
	}
	ext, ok := dataURLExtensions[strings.ToLower(subtype)]
	if !ok {
		return nil, "", errors.NewInvalidDataURL("unsupported image type " + subtype)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", errors.NewInvalidDataURL("bad base64 payload")
	}
	if len(data) == 0 {
		return nil, "", errors.NewInvalidDataURL("empty payload")
	}
	return data, ext, nil
}

// ImportDataURL decodes a png, jpeg or webp data URL into a temporary file
// and imports it. The temporary directory is removed on every path.
func (s *Store) ImportDataURL(dataURL, vaultPath, assetID string) (*deck.ImportOutcome, error) {
	data, ext, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}

	tmpDir, err := s.fs.MkdirTemp(s.tempDir, "deck-paste-*")
	if err != nil {
		return nil, errors.NewIO("creating temp directory", err)
	}
	defer func() {
		if err := s.fs.RemoveAll(tmpDir); err != nil {
			s.logger.Warn("removing temp directory failed", "path", tmpDir, "error", err)
		}
	}()

	name := "pasted" + ext
	tmpPath := filepath.Join(tmpDir, name)
	if err := s.fs.WriteFile(tmpPath, data); err != nil {
		return nil, errors.NewIO("writing temp file", err)
	}

	return s.importFile(tmpPath, vaultPath, assetID, name, "")
}

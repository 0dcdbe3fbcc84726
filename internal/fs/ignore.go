package fs

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the optional per-vault ignore file in the assets directory.
const IgnoreFileName = ".deckignore"

// DefaultAssetIgnorePatterns are skipped when comparing the asset directory
// against the index: dotfiles (the index itself, temp files from atomic
// writes, the ignore file) and OS thumbnail caches.
var DefaultAssetIgnorePatterns = []string{".*", "Thumbs.db", "desktop.ini"}

type ignoreRule struct {
	glob   string // lower case
	negate bool
}

// IgnoreMatcher decides which asset directory entries are not media.
// Rules are globs matched case-insensitively against the entry's base name.
// A rule prefixed with '!' re-includes names matched by an earlier rule;
// the last matching rule wins.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher parses patterns. Blank lines, comments ('#') and globs
// that filepath.Match would reject are dropped.
func NewIgnoreMatcher(patterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		rule := ignoreRule{}
		if strings.HasPrefix(raw, "!") {
			rule.negate = true
			raw = raw[1:]
		}
		rule.glob = strings.ToLower(strings.TrimPrefix(raw, "/"))
		if _, err := path.Match(rule.glob, ""); err != nil || rule.glob == "" {
			continue
		}
		m.rules = append(m.rules, rule)
	}
	return m
}

// NewAssetIgnoreMatcher combines DefaultAssetIgnorePatterns, the configured
// patterns and the patterns of <assetsDir>/.deckignore if present, in that
// order.
func NewAssetIgnoreMatcher(assetsDir string, configured []string) (*IgnoreMatcher, error) {
	fromFile, err := ParseIgnoreFile(filepath.Join(assetsDir, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	all := make([]string, 0, len(DefaultAssetIgnorePatterns)+len(configured)+len(fromFile))
	all = append(all, DefaultAssetIgnorePatterns...)
	all = append(all, configured...)
	all = append(all, fromFile...)
	return NewIgnoreMatcher(all), nil
}

// Match reports whether the entry called name is ignored.
func (m *IgnoreMatcher) Match(name string) bool {
	if name == "" {
		return false
	}
	base := strings.ToLower(name)
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	ignored := false
	for _, r := range m.rules {
		if ok, _ := path.Match(r.glob, base); ok {
			ignored = !r.negate
		}
	}
	return ignored
}

// Len returns the number of usable rules.
func (m *IgnoreMatcher) Len() int {
	return len(m.rules)
}

// ParseIgnoreFile returns the lines of an ignore file, or nil if it does
// not exist.
func ParseIgnoreFile(filename string) ([]string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"), nil
}

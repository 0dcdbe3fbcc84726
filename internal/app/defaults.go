package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that relocate deck's files.
const (
	EnvConfigPath = "DECK_CONFIG_PATH"
	EnvHome       = "DECK_HOME"
)

// Paths locates deck's own files on this machine. Projects and vaults live
// wherever the user keeps them; Paths only covers the config file and the
// data directory holding logs, the recent-projects database and backup keys.
type Paths struct {
	ConfigPath string // deck.toml
	BaseDir    string
	LogDir     string // <BaseDir>/log
	DBDir      string // <BaseDir>/db
	KeysDir    string // <BaseDir>/keys
}

// DefaultPaths resolves Paths from DECK_CONFIG_PATH and DECK_HOME, falling
// back to ~/.config/deck.toml and ~/.local/share/deck.
func DefaultPaths() (Paths, error) {
	return resolvePaths(os.Getenv, os.UserHomeDir)
}

func resolvePaths(getenv func(string) string, homeDir func() (string, error)) (Paths, error) {
	var home string
	underHome := func(elem ...string) (string, error) {
		if home == "" {
			dir, err := homeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			home = dir
		}
		return filepath.Join(append([]string{home}, elem...)...), nil
	}

	p := Paths{ConfigPath: getenv(EnvConfigPath), BaseDir: getenv(EnvHome)}
	var err error
	if p.ConfigPath == "" {
		if p.ConfigPath, err = underHome(".config", "deck.toml"); err != nil {
			return Paths{}, err
		}
	}
	if p.BaseDir == "" {
		if p.BaseDir, err = underHome(".local", "share", "deck"); err != nil {
			return Paths{}, err
		}
	}
	p.LogDir = filepath.Join(p.BaseDir, "log")
	p.DBDir = filepath.Join(p.BaseDir, "db")
	p.KeysDir = filepath.Join(p.BaseDir, "keys")
	return p, nil
}

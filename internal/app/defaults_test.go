package app

import (
	"fmt"
	"path/filepath"
	"testing"
)

func TestResolvePaths(t *testing.T) {
	home := filepath.Join("/home", "editor")

	tests := []struct {
		name       string
		env        map[string]string
		wantConfig string
		wantBase   string
	}{
		{
			name:       "defaults under home",
			wantConfig: filepath.Join(home, ".config", "deck.toml"),
			wantBase:   filepath.Join(home, ".local", "share", "deck"),
		},
		{
			name:       "config path override",
			env:        map[string]string{EnvConfigPath: "/etc/deck/studio.toml"},
			wantConfig: "/etc/deck/studio.toml",
			wantBase:   filepath.Join(home, ".local", "share", "deck"),
		},
		{
			name:       "home override",
			env:        map[string]string{EnvHome: "/srv/deck"},
			wantConfig: filepath.Join(home, ".config", "deck.toml"),
			wantBase:   "/srv/deck",
		},
		{
			name:       "both overridden",
			env:        map[string]string{EnvConfigPath: "/tmp/deck.toml", EnvHome: "/tmp/deck"},
			wantConfig: "/tmp/deck.toml",
			wantBase:   "/tmp/deck",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(key string) string { return tt.env[key] }
			homeDir := func() (string, error) { return home, nil }

			p, err := resolvePaths(getenv, homeDir)
			if err != nil {
				t.Fatalf("resolvePaths() error = %v", err)
			}
			if p.ConfigPath != tt.wantConfig {
				t.Errorf("ConfigPath = %q, want %q", p.ConfigPath, tt.wantConfig)
			}
			if p.BaseDir != tt.wantBase {
				t.Errorf("BaseDir = %q, want %q", p.BaseDir, tt.wantBase)
			}
			for name, got := range map[string]string{"log": p.LogDir, "db": p.DBDir, "keys": p.KeysDir} {
				if want := filepath.Join(tt.wantBase, name); got != want {
					t.Errorf("%s dir = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestResolvePaths_NoHome(t *testing.T) {
	noHome := func() (string, error) { return "", fmt.Errorf("$HOME is not defined") }

	if _, err := resolvePaths(func(string) string { return "" }, noHome); err == nil {
		t.Error("resolvePaths() error = nil, want home directory error")
	}

	// Both locations overridden: the home directory is never consulted.
	env := map[string]string{EnvConfigPath: "/c/deck.toml", EnvHome: "/d"}
	p, err := resolvePaths(func(k string) string { return env[k] }, noHome)
	if err != nil {
		t.Fatalf("resolvePaths() error = %v", err)
	}
	if p.ConfigPath != "/c/deck.toml" || p.BaseDir != "/d" {
		t.Errorf("paths = %+v", p)
	}
}

func TestDefaultPaths_ReadsEnvironment(t *testing.T) {
	base := t.TempDir()
	t.Setenv(EnvConfigPath, filepath.Join(base, "deck.toml"))
	t.Setenv(EnvHome, base)

	p, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}
	if p.ConfigPath != filepath.Join(base, "deck.toml") || p.LogDir != filepath.Join(base, "log") {
		t.Errorf("DefaultPaths() = %+v", p)
	}
}

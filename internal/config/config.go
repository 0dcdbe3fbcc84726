package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for deck.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	TempDir    string           `toml:"temp_dir,omitempty"` // scratch space for pasted images; empty uses the OS default
	Autosave   AutosaveConfig   `toml:"autosave"`
	Trash      TrashConfig      `toml:"trash"`
	Assets     AssetsConfig     `toml:"assets"`
	Database   DatabaseConfig   `toml:"database"`
	Backup     BackupConfig     `toml:"backup"`
	Encryption EncryptionConfig `toml:"encryption"`
	MCP        MCPConfig        `toml:"mcp"`
}

// Duration is a time.Duration written as a string such as "800ms".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// AutosaveConfig holds the timing of the two autosave pipelines.
type AutosaveConfig struct {
	FastDebounce   Duration `toml:"fast_debounce"`
	FastMaxWait    Duration `toml:"fast_max_wait"`
	SlowDebounce   Duration `toml:"slow_debounce"`
	SlowMaxWait    Duration `toml:"slow_max_wait"`
	NoticeCooldown Duration `toml:"notice_cooldown"`
}

// TrashConfig holds trash retention settings.
type TrashConfig struct {
	// RetentionDays overrides the retention recorded in each vault's trash
	// index when positive.
	RetentionDays int `toml:"retention_days"`
}

// AssetsConfig holds asset directory settings.
type AssetsConfig struct {
	// Ignore lists glob patterns skipped when verifying asset directories.
	Ignore []string `toml:"ignore"`
}

// DatabaseConfig represents configuration for the state database.
// The Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// BackupConfig represents the offsite backup target.
// The Type field determines which other fields are relevant.
type BackupConfig struct {
	Type    string `toml:"type"` // "filesystem", "s3", "memory" or "" for none
	Encrypt bool   `toml:"encrypt"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible services; forces path-style addressing

	// Static credentials. When empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for backups.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// MCPConfig controls the tools exposed by "deck mcp".
type MCPConfig struct {
	DisabledTools []string `toml:"disabled_tools,omitempty"`
}

// NewConfig creates a Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	cfg := &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Assets: AssetsConfig{
			Ignore: []string{"*.tmp", "*.part"},
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "deck.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "deck.key"),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued settings.
func (c *Config) ApplyDefaults() {
	setDuration(&c.Autosave.FastDebounce, 800*time.Millisecond)
	setDuration(&c.Autosave.FastMaxWait, 5*time.Second)
	setDuration(&c.Autosave.SlowDebounce, 2500*time.Millisecond)
	setDuration(&c.Autosave.SlowMaxWait, 20*time.Second)
	setDuration(&c.Autosave.NoticeCooldown, 15*time.Second)
	if c.LogDir == "" && c.BaseDir != "" {
		c.LogDir = filepath.Join(c.BaseDir, "log")
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.DataDir == "" && c.BaseDir != "" {
		c.Database.DataDir = filepath.Join(c.BaseDir, "db")
	}
	if c.Encryption.Type == "" {
		c.Encryption.Type = "age"
	}
}

func setDuration(d *Duration, v time.Duration) {
	if d.Duration <= 0 {
		d.Duration = v
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if c.Trash.RetentionDays < 0 {
		return fmt.Errorf("trash.retention_days must not be negative, got %d", c.Trash.RetentionDays)
	}
	if c.Autosave.FastMaxWait.Duration < c.Autosave.FastDebounce.Duration {
		return fmt.Errorf("autosave.fast_max_wait (%s) is shorter than fast_debounce (%s)",
			c.Autosave.FastMaxWait, c.Autosave.FastDebounce)
	}
	if c.Autosave.SlowMaxWait.Duration < c.Autosave.SlowDebounce.Duration {
		return fmt.Errorf("autosave.slow_max_wait (%s) is shorter than slow_debounce (%s)",
			c.Autosave.SlowMaxWait, c.Autosave.SlowDebounce)
	}
	switch c.Backup.Type {
	case "", "memory":
	case "filesystem":
		if c.Backup.Root == "" {
			return fmt.Errorf("backup.root required for filesystem backup")
		}
	case "s3":
		if c.Backup.S3Bucket == "" {
			return fmt.Errorf("backup.s3_bucket required for s3 backup")
		}
	default:
		return fmt.Errorf("unknown backup type: %s", c.Backup.Type)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r and fills defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Write encodes a Config to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := (&Manager{}).Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := (&Manager{}).Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for worktrack.
type Config struct {
	HostID              string           `toml:"host_id"`
	BaseDir             string           `toml:"base_dir"`
	LogDir              string           `toml:"log_dir"`
	Timezone            string           `toml:"timezone"`              // IANA name; reporting day boundaries use it
	StoreTimeoutSeconds int              `toml:"store_timeout_seconds"` // bound on each store call; defaults to 5
	DefaultUserID       int64            `toml:"default_user_id"`       // user the CLI acts for when --user is not given
	Database            DatabaseConfig   `toml:"database"`
	Categories          CategoriesConfig `toml:"categories"`
	Scheduler           SchedulerConfig  `toml:"scheduler"`
	Archive             ArchiveConfig    `toml:"archive"`
}

// DatabaseConfig represents configuration for the session store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// CategoriesConfig points at the category list file.
type CategoriesConfig struct {
	Path                 string `toml:"path"`
	CheckIntervalSeconds int    `toml:"check_interval_seconds"` // how often serve checks the file; defaults to 300
}

// SchedulerConfig configures the reminder scheduler.
type SchedulerConfig struct {
	TickSeconds int `toml:"tick_seconds"` // defaults to 60
}

// ArchiveConfig configures encrypted store archives.
type ArchiveConfig struct {
	Encryption     string      `toml:"encryption"` // "age" (default) or "test"
	PublicKeyPath  string      `toml:"public_key_path"`
	PrivateKeyPath string      `toml:"private_key_path"`
	Vault          VaultConfig `toml:"vault"`
}

// VaultConfig represents configuration for an archive vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
	// S3Endpoint overrides the AWS endpoint for S3-compatible stores.
	S3Endpoint string `toml:"s3_endpoint,omitempty"`
	// Static credentials; the default AWS credential chain is used when empty.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:              hostID,
		BaseDir:             baseDir,
		LogDir:              filepath.Join(baseDir, "log"),
		Timezone:            "UTC",
		StoreTimeoutSeconds: 5,
		DefaultUserID:       1,
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Categories: CategoriesConfig{
			Path:                 filepath.Join(baseDir, "categories.toml"),
			CheckIntervalSeconds: 300,
		},
		Scheduler: SchedulerConfig{TickSeconds: 60},
		Archive: ArchiveConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "worktrack.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "worktrack.key"),
			Vault: VaultConfig{
				Type:        "filesystem",
				Name:        "local",
				FSVaultRoot: filepath.Join(baseDir, "archives"),
			},
		},
	}
}

// Location resolves Timezone, defaulting to UTC when it is empty.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// StoreTimeout returns the per-call store timeout, or zero to use the tracker default.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

// TickInterval returns the scheduler tick, or zero to use the scheduler default.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Scheduler.TickSeconds) * time.Second
}

// CategoryCheckInterval returns how often the category file is re-read.
func (c *Config) CategoryCheckInterval() time.Duration {
	if c.Categories.CheckIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Categories.CheckIntervalSeconds) * time.Second
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		HostID:              "test-host-abc",
		BaseDir:             "/home/user/.local/share/worktrack",
		LogDir:              "/home/user/.local/share/worktrack/log",
		Timezone:            "Europe/Berlin",
		StoreTimeoutSeconds: 3,
		DefaultUserID:       42,
		Database:            DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/worktrack/db"},
		Categories:          CategoriesConfig{Path: "/etc/worktrack/categories.toml", CheckIntervalSeconds: 120},
		Scheduler:           SchedulerConfig{TickSeconds: 30},
		Archive: ArchiveConfig{
			PublicKeyPath:  "/home/user/.local/share/worktrack/keys/worktrack.pub",
			PrivateKeyPath: "/home/user/.local/share/worktrack/keys/worktrack.key",
			Vault:          VaultConfig{Type: "s3", Name: "offsite", S3Bucket: "archives", S3Region: "eu-central-1"},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.HostID != original.HostID {
		t.Errorf("HostID = %q, want %q", got.HostID, original.HostID)
	}
	if got.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q, want %q", got.Timezone, "Europe/Berlin")
	}
	if got.StoreTimeoutSeconds != 3 {
		t.Errorf("StoreTimeoutSeconds = %d, want 3", got.StoreTimeoutSeconds)
	}
	if got.DefaultUserID != 42 {
		t.Errorf("DefaultUserID = %d, want 42", got.DefaultUserID)
	}
	if got.Database.DataDir != original.Database.DataDir {
		t.Errorf("Database.DataDir = %q, want %q", got.Database.DataDir, original.Database.DataDir)
	}
	if got.Categories.Path != original.Categories.Path {
		t.Errorf("Categories.Path = %q, want %q", got.Categories.Path, original.Categories.Path)
	}
	if got.Categories.CheckIntervalSeconds != 120 {
		t.Errorf("Categories.CheckIntervalSeconds = %d, want 120", got.Categories.CheckIntervalSeconds)
	}
	if got.Scheduler.TickSeconds != 30 {
		t.Errorf("Scheduler.TickSeconds = %d, want 30", got.Scheduler.TickSeconds)
	}
	if got.Archive.Vault.Type != "s3" {
		t.Errorf("Archive.Vault.Type = %q, want %q", got.Archive.Vault.Type, "s3")
	}
	if got.Archive.Vault.S3Bucket != "archives" {
		t.Errorf("Archive.Vault.S3Bucket = %q, want %q", got.Archive.Vault.S3Bucket, "archives")
	}
	if got.Archive.PrivateKeyPath != original.Archive.PrivateKeyPath {
		t.Errorf("Archive.PrivateKeyPath = %q, want %q", got.Archive.PrivateKeyPath, original.Archive.PrivateKeyPath)
	}
}

func TestManager_Read_Malformed(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("host_id = ")); err == nil {
		t.Fatal("Read() expected error for malformed TOML")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("host-1", "/data/wt")

	if cfg.HostID != "host-1" {
		t.Errorf("HostID = %q, want %q", cfg.HostID, "host-1")
	}
	if cfg.LogDir != "/data/wt/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/wt/log")
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/data/wt/data" {
		t.Errorf("Database = %+v, want sqlite in /data/wt/data", cfg.Database)
	}
	if cfg.Categories.Path != "/data/wt/categories.toml" {
		t.Errorf("Categories.Path = %q, want %q", cfg.Categories.Path, "/data/wt/categories.toml")
	}
	if cfg.Archive.PublicKeyPath != "/data/wt/keys/worktrack.pub" {
		t.Errorf("Archive.PublicKeyPath = %q, want %q", cfg.Archive.PublicKeyPath, "/data/wt/keys/worktrack.pub")
	}
	if cfg.Archive.Vault.FSVaultRoot != "/data/wt/archives" {
		t.Errorf("Archive.Vault.FSVaultRoot = %q, want %q", cfg.Archive.Vault.FSVaultRoot, "/data/wt/archives")
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := NewConfig("h", "/tmp/wt")

	if got := cfg.StoreTimeout(); got != 5*time.Second {
		t.Errorf("StoreTimeout() = %v, want 5s", got)
	}
	if got := cfg.TickInterval(); got != time.Minute {
		t.Errorf("TickInterval() = %v, want 1m", got)
	}
	if got := cfg.CategoryCheckInterval(); got != 5*time.Minute {
		t.Errorf("CategoryCheckInterval() = %v, want 5m", got)
	}

	cfg.Categories.CheckIntervalSeconds = 0
	if got := cfg.CategoryCheckInterval(); got != 5*time.Minute {
		t.Errorf("CategoryCheckInterval() with zero = %v, want 5m", got)
	}
}

func TestConfig_Location(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		want     string
		wantErr  bool
	}{
		{name: "empty defaults to UTC", timezone: "", want: "UTC"},
		{name: "named zone", timezone: "America/New_York", want: "America/New_York"},
		{name: "unknown zone", timezone: "Not/AZone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Timezone: tt.timezone}
			loc, err := cfg.Location()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Location() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Location() error = %v", err)
			}
			if loc.String() != tt.want {
				t.Errorf("Location() = %q, want %q", loc.String(), tt.want)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "worktrack.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "worktrack.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "worktrack.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.HostID != "read-test" {
			t.Errorf("HostID = %q, want %q", got.HostID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/worktrack.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}

package category

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"worktrack/internal/testutil"
	"worktrack/internal/tracker"
)

// writeAt writes content to path and pins its mtime so reloads see a change
// regardless of filesystem timestamp resolution.
func writeAt(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
}

func TestFileSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.toml")
	writeAt(t, path, `categories = ["Development", " Review ", "", "Development"]`, time.Unix(1000, 0))
	clock := testutil.FixedClock()

	src, err := NewFileSource(path, clock)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}
	want := []string{"Development", "Review"}
	if got := src.Categories(); !slices.Equal(got, want) {
		t.Errorf("Categories() = %v, want %v", got, want)
	}
	if !src.LastLoadTime().Equal(clock.Now()) {
		t.Errorf("LastLoadTime() = %v, want %v", src.LastLoadTime(), clock.Now())
	}
}

func TestFileSource_MissingFileUsesDefaults(t *testing.T) {
	src, err := NewFileSource(filepath.Join(t.TempDir(), "absent.toml"), testutil.FixedClock())
	if err == nil {
		t.Fatal("NewFileSource() expected error for missing file")
	}
	if got := src.Categories(); !slices.Equal(got, DefaultCategories) {
		t.Errorf("Categories() = %v, want defaults", got)
	}
	if !src.LastLoadTime().IsZero() {
		t.Errorf("LastLoadTime() = %v, want zero", src.LastLoadTime())
	}

	res, _ := src.Reload()
	if !res.UsedDefaults || res.Count != len(DefaultCategories) {
		t.Errorf("Reload() = %+v, want defaults", res)
	}
}

func TestFileSource_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.toml")
	writeAt(t, path, `categories = ["A", "B"]`, time.Unix(1000, 0))
	clock := testutil.FixedClock()

	src, err := NewFileSource(path, clock)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}
	firstLoad := src.LastLoadTime()

	t.Run("unchanged mtime skips read", func(t *testing.T) {
		clock.Advance(time.Minute)
		res, err := src.Reload()
		if err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
		if res.Changed || res.Count != 2 {
			t.Errorf("Reload() = %+v, want unchanged with 2", res)
		}
		if !src.LastLoadTime().Equal(firstLoad) {
			t.Error("LastLoadTime() moved without a read")
		}
	})

	t.Run("new content", func(t *testing.T) {
		writeAt(t, path, `categories = ["A", "B", "C"]`, time.Unix(2000, 0))
		res, err := src.Reload()
		if err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
		if !res.Changed || res.Count != 3 {
			t.Errorf("Reload() = %+v, want changed with 3", res)
		}
		if !src.LastLoadTime().Equal(clock.Now()) {
			t.Errorf("LastLoadTime() = %v, want %v", src.LastLoadTime(), clock.Now())
		}
	})

	t.Run("touched but same list", func(t *testing.T) {
		writeAt(t, path, `categories = ["A", "B", "C"]`, time.Unix(3000, 0))
		res, err := src.Reload()
		if err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
		if res.Changed {
			t.Errorf("Reload() = %+v, want unchanged list", res)
		}
	})

	for _, tc := range []struct {
		name    string
		content string
	}{
		{name: "malformed", content: `categories = [`},
		{name: "missing key", content: `other = ["X"]`},
		{name: "empty list", content: `categories = []`},
	} {
		t.Run(tc.name+" keeps last good list", func(t *testing.T) {
			writeAt(t, path, tc.content, time.Unix(4000, 0))
			res, err := src.Reload()
			if err == nil {
				t.Fatal("Reload() expected error")
			}
			if res.UsedDefaults {
				t.Error("Reload() fell back to defaults after a good load")
			}
			if got := src.Categories(); !slices.Equal(got, []string{"A", "B", "C"}) {
				t.Errorf("Categories() = %v, want last good list", got)
			}
		})
	}

	t.Run("deleted file keeps last good list", func(t *testing.T) {
		if err := os.Remove(path); err != nil {
			t.Fatal(err)
		}
		if _, err := src.Reload(); err == nil {
			t.Fatal("Reload() expected error")
		}
		if got := src.Categories(); len(got) != 3 {
			t.Errorf("Categories() = %v, want last good list", got)
		}
	})
}

func TestFileSource_CategoriesReturnsCopy(t *testing.T) {
	src, _ := NewFileSource(filepath.Join(t.TempDir(), "absent.toml"), testutil.FixedClock())
	got := src.Categories()
	got[0] = "mutated"
	if src.Categories()[0] == "mutated" {
		t.Error("Categories() exposes internal slice")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.toml")
	want := []string{"Development", "Support"}
	if err := WriteFile(path, want); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	src, err := NewFileSource(path, testutil.FixedClock())
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}
	if got := src.Categories(); !slices.Equal(got, want) {
		t.Errorf("Categories() = %v, want %v", got, want)
	}
}

type countingSource struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSource) Categories() []string    { return nil }
func (s *countingSource) LastLoadTime() time.Time { return time.Time{} }
func (s *countingSource) Reload() (ReloadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return ReloadResult{}, nil
}

func (s *countingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestMonitor(t *testing.T) {
	src := &countingSource{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Monitor(ctx, src, 5*time.Millisecond, tracker.NewNopLogger()) }()

	deadline := time.Now().Add(2 * time.Second)
	for src.Calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Monitor() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor() did not stop after cancel")
	}
	if src.Calls() < 2 {
		t.Errorf("Reload called %d times, want at least 2", src.Calls())
	}
}

func TestMonitor_InvalidInterval(t *testing.T) {
	if err := Monitor(context.Background(), &countingSource{}, 0, tracker.NewNopLogger()); err == nil {
		t.Error("Monitor() expected error for zero interval")
	}
}

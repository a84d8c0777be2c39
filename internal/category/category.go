// Package category provides the list of work categories offered to users.
// The list lives in a TOML file that can be edited while the service runs.
package category

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"worktrack/internal/tracker"
)

// DefaultCategories is used when no category file is readable.
var DefaultCategories = []string{
	"Development",
	"Meetings",
	"Documentation",
	"Learning",
	"Other",
}

// Source supplies the current category list.
type Source interface {
	Categories() []string
	Reload() (ReloadResult, error)
	LastLoadTime() time.Time
}

// ReloadResult describes the outcome of a Reload call.
type ReloadResult struct {
	Changed      bool
	Count        int
	UsedDefaults bool
}

// FileSource reads categories from a TOML file of the form
//
//	categories = ["Development", "Meetings"]
//
// A missing or malformed file never leaves the source empty: the last good
// list is kept, or DefaultCategories if nothing was ever loaded.
type FileSource struct {
	path  string
	clock tracker.Clock

	mu         sync.RWMutex
	categories []string
	modTime    time.Time
	loadedAt   time.Time
	loaded     bool
}

// NewFileSource creates a source for path and performs the initial load.
// A load failure is returned alongside a usable source holding defaults.
func NewFileSource(path string, clock tracker.Clock) (*FileSource, error) {
	s := &FileSource{
		path:       path,
		clock:      clock,
		categories: slices.Clone(DefaultCategories),
	}
	_, err := s.Reload()
	return s, err
}

func (s *FileSource) Path() string { return s.path }

// Categories returns a copy of the current list.
func (s *FileSource) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories)
}

// LastLoadTime reports when the file was last read successfully.
// The zero time means defaults are in use.
func (s *FileSource) LastLoadTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Reload re-reads the file if its modification time changed since the last
// successful load.
func (s *FileSource) Reload() (ReloadResult, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.fallback(fmt.Errorf("category file %s not found: %w", s.path, err))
		}
		return s.fallback(fmt.Errorf("checking category file %s: %w", s.path, err))
	}

	s.mu.RLock()
	unchanged := s.loaded && info.ModTime().Equal(s.modTime)
	count := len(s.categories)
	s.mu.RUnlock()
	if unchanged {
		return ReloadResult{Count: count}, nil
	}

	categories, err := readFile(s.path)
	if err != nil {
		return s.fallback(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !slices.Equal(s.categories, categories)
	s.categories = categories
	s.modTime = info.ModTime()
	s.loadedAt = s.clock.Now()
	s.loaded = true
	return ReloadResult{Changed: changed, Count: len(categories)}, nil
}

// fallback keeps the current list. It only reports UsedDefaults when no file
// has ever been loaded.
func (s *FileSource) fallback(cause error) (ReloadResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ReloadResult{Count: len(s.categories), UsedDefaults: !s.loaded}, cause
}

func readFile(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading category file %s: %w", path, err)
	}
	if !v.IsSet("categories") {
		return nil, fmt.Errorf("category file %s has no categories key", path)
	}

	var out []string
	for _, c := range v.GetStringSlice("categories") {
		c = strings.TrimSpace(c)
		if c == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("category file %s lists no categories", path)
	}
	return out, nil
}

// WriteFile writes categories to path in the format FileSource reads.
func WriteFile(path string, categories []string) error {
	v := viper.New()
	v.SetConfigType("toml")
	v.Set("categories", categories)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing category file %s: %w", path, err)
	}
	return nil
}

// Monitor calls Reload every interval until ctx is cancelled.
func Monitor(ctx context.Context, src Source, interval time.Duration, logger tracker.Logger) error {
	if interval <= 0 {
		return fmt.Errorf("category check interval must be positive, got %v", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			res, err := src.Reload()
			if err != nil {
				logger.Warn("category reload failed, keeping current list", "count", res.Count, "defaults", res.UsedDefaults, "error", err)
				continue
			}
			if res.Changed {
				logger.Info("categories reloaded", "count", res.Count)
			}
		}
	}
}

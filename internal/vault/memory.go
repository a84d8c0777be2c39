package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"worktrack/internal/archive"
)

type memoryBlob struct {
	data    []byte
	modTime time.Time
}

// MemoryVault is an in-memory implementation of archive.Vault, useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name  string
	blobs map[string]memoryBlob
	mu    sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:  name,
		blobs: make(map[string]memoryBlob),
	}
}

func (m *MemoryVault) Name() string {
	return m.name
}

// Put stores a blob under key, replacing any previous one.
func (m *MemoryVault) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[key] = memoryBlob{data: data, modTime: time.Now()}
	return nil
}

// Get writes the blob stored under key to w.
func (m *MemoryVault) Get(ctx context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.blobs[key]
	if !ok {
		return fmt.Errorf("archive not found: %s", key)
	}

	if _, err := io.Copy(w, bytes.NewReader(blob.data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}

	return nil
}

// List returns the entries under prefix, sorted by key.
func (m *MemoryVault) List(ctx context.Context, prefix string) ([]archive.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []archive.Entry
	for key, blob := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			entries = append(entries, archive.Entry{Key: key, Size: int64(len(blob.data)), ModTime: blob.modTime})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(ctx context.Context) error {
	return nil
}

// validateKey rejects keys that could escape a vault root.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid archive key: %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid archive key: %q", key)
		}
	}
	return nil
}

// Compile-time check that MemoryVault implements archive.Vault interface
var _ archive.Vault = (*MemoryVault)(nil)

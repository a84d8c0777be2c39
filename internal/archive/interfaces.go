package archive

import (
	"context"
	"io"
	"time"
)

// Encryptor seals store snapshots. Encryption uses the public key only;
// decryption needs the passphrase that protects the private key.
type Encryptor interface {
	// Setup generates a key pair, stores the public key in plaintext and
	// encrypts the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a DecryptionContext.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// Entry describes one stored archive.
type Entry struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Vault stores archive blobs under slash-separated keys.
type Vault interface {
	Name() string

	// Put stores size bytes read from r under key, replacing any previous blob.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the blob stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// List returns the entries whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// ValidateSetup verifies that the vault is accessible.
	ValidateSetup(ctx context.Context) error
}

// Snapshotter writes a consistent copy of the store to a local file.
type Snapshotter interface {
	BackupTo(ctx context.Context, destPath string) error
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Logger is the structured logger used by the archiver.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Suffix is the file extension of an encrypted store snapshot.
const Suffix = ".db.age"

// keyTimeLayout sorts lexically in time order.
const keyTimeLayout = "20060102T150405Z"

// ErrNoArchives is returned when a host has nothing stored in the vault.
var ErrNoArchives = errors.New("no archives found")

// Archiver snapshots the store, encrypts the snapshot and keeps it in a vault
// under <host>/<timestamp>.db.age.
type Archiver struct {
	hostID    string
	snapshots Snapshotter
	encryptor Encryptor
	vault     Vault
	clock     Clock
	logger    Logger
}

// NewArchiver creates an Archiver. Work files go to the system temp dir.
func NewArchiver(hostID string, snapshots Snapshotter, encryptor Encryptor, vault Vault, clock Clock, logger Logger) *Archiver {
	return &Archiver{
		hostID:    hostID,
		snapshots: snapshots,
		encryptor: encryptor,
		vault:     vault,
		clock:     clock,
		logger:    logger,
	}
}

// Key returns the vault key of the archive for hostID taken at the given time.
func (a *Archiver) Key(at string) string {
	return path.Join(a.hostID, at+Suffix)
}

// Create snapshots the store and uploads the encrypted snapshot.
func (a *Archiver) Create(ctx context.Context) (Entry, error) {
	if !a.encryptor.IsConfigured() {
		return Entry{}, fmt.Errorf("encryption keys are not configured")
	}

	work, err := os.MkdirTemp("", "worktrack-archive-")
	if err != nil {
		return Entry{}, fmt.Errorf("creating work directory: %w", err)
	}
	defer os.RemoveAll(work)

	snapPath := filepath.Join(work, "snapshot.db")
	if err := a.snapshots.BackupTo(ctx, snapPath); err != nil {
		return Entry{}, fmt.Errorf("snapshotting store: %w", err)
	}

	encPath := filepath.Join(work, "snapshot"+Suffix)
	if err := a.encryptFile(snapPath, encPath); err != nil {
		return Entry{}, err
	}

	info, err := os.Stat(encPath)
	if err != nil {
		return Entry{}, fmt.Errorf("reading encrypted snapshot: %w", err)
	}

	f, err := os.Open(encPath)
	if err != nil {
		return Entry{}, fmt.Errorf("opening encrypted snapshot: %w", err)
	}
	defer f.Close()

	now := a.clock.Now().UTC()
	key := a.Key(now.Format(keyTimeLayout))
	if err := a.vault.Put(ctx, key, f, info.Size()); err != nil {
		return Entry{}, fmt.Errorf("uploading archive to %s: %w", a.vault.Name(), err)
	}

	a.logger.Info("archive created", "vault", a.vault.Name(), "key", key, "size", info.Size())
	return Entry{Key: key, Size: info.Size(), ModTime: now}, nil
}

func (a *Archiver) encryptFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating encrypted snapshot: %w", err)
	}

	if err := a.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing encrypted snapshot: %w", err)
	}
	return nil
}

// List returns this host's archives, oldest first.
func (a *Archiver) List(ctx context.Context) ([]Entry, error) {
	entries, err := a.vault.List(ctx, a.hostID+"/")
	if err != nil {
		return nil, fmt.Errorf("listing archives in %s: %w", a.vault.Name(), err)
	}

	var archives []Entry
	for _, e := range entries {
		if strings.HasSuffix(e.Key, Suffix) {
			archives = append(archives, e)
		}
	}
	return archives, nil
}

// Latest returns the newest archive of this host.
func (a *Archiver) Latest(ctx context.Context) (Entry, error) {
	archives, err := a.List(ctx)
	if err != nil {
		return Entry{}, err
	}
	if len(archives) == 0 {
		return Entry{}, fmt.Errorf("%w for host %s", ErrNoArchives, a.hostID)
	}
	return archives[len(archives)-1], nil
}

// Restore decrypts the archive stored under key into destPath, which must
// not exist. An empty key restores the latest archive.
func (a *Archiver) Restore(ctx context.Context, key, passphrase, destPath string) (Entry, error) {
	var entry Entry
	if key == "" {
		latest, err := a.Latest(ctx)
		if err != nil {
			return Entry{}, err
		}
		entry = latest
	} else {
		entry = Entry{Key: key}
	}

	if _, err := os.Stat(destPath); err == nil {
		return Entry{}, fmt.Errorf("restore target already exists: %s", destPath)
	}

	dec, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return Entry{}, fmt.Errorf("unlocking private key: %w", err)
	}

	work, err := os.MkdirTemp("", "worktrack-restore-")
	if err != nil {
		return Entry{}, fmt.Errorf("creating work directory: %w", err)
	}
	defer os.RemoveAll(work)

	encPath := filepath.Join(work, "archive"+Suffix)
	if err := a.download(ctx, entry.Key, encPath); err != nil {
		return Entry{}, err
	}

	plainPath := filepath.Join(work, "archive.db")
	if err := decryptFile(dec, encPath, plainPath); err != nil {
		return Entry{}, err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0700); err != nil {
		return Entry{}, fmt.Errorf("creating restore directory: %w", err)
	}
	if err := moveFile(plainPath, destPath); err != nil {
		return Entry{}, err
	}

	a.logger.Info("archive restored", "vault", a.vault.Name(), "key", entry.Key, "dest", destPath)
	return entry, nil
}

func (a *Archiver) download(ctx context.Context, key, dst string) error {
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}
	if err := a.vault.Get(ctx, key, f); err != nil {
		f.Close()
		return fmt.Errorf("downloading %s from %s: %w", key, a.vault.Name(), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing download file: %w", err)
	}
	return nil
}

func decryptFile(dec DecryptionContext, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating decrypted file: %w", err)
	}
	if err := dec.Decrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("decrypting archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing decrypted file: %w", err)
	}
	return nil
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading restored file: %w", err)
	}
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return fmt.Errorf("writing restored file: %w", err)
	}
	return nil
}

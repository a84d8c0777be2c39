package encryption

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"worktrack/internal/archive"
)

// snapshotMagic opens every archive sealed by TestEncryptor. It differs from
// the SQLite file header so a sealed archive is never mistaken for a database.
var snapshotMagic = []byte("WTSNAP\x01\n")

// trailerLen is the size of the big-endian payload length closing an archive.
const trailerLen = 8

// TestEncryptor is a keyless encryptor for the "test" archive type. It wraps
// a snapshot as magic + payload + length trailer, so archive tests can tell
// sealed from plain snapshots and catch truncated uploads without age keys.
// Once Setup has run, Unlock only accepts the same passphrase.
type TestEncryptor struct {
	passphrase *string
}

var _ archive.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	if e.passphrase != nil {
		return errors.New("test archive keys already set up")
	}
	e.passphrase = &passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(snapshotMagic); err != nil {
		return fmt.Errorf("writing archive header: %w", err)
	}
	n, err := io.Copy(w, r)
	if err != nil {
		return fmt.Errorf("copying snapshot: %w", err)
	}
	var trailer [trailerLen]byte
	binary.BigEndian.PutUint64(trailer[:], uint64(n))
	if _, err := w.Write(trailer[:]); err != nil {
		return fmt.Errorf("writing archive trailer: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (archive.DecryptionContext, error) {
	if e.passphrase != nil && *e.passphrase != passphrase {
		return nil, errors.New("wrong archive passphrase")
	}
	return &TestDecryptionContext{}, nil
}

// IsConfigured is always true so archives can be created without Setup.
func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext unwraps archives written by TestEncryptor.
type TestDecryptionContext struct{}

var _ archive.DecryptionContext = (*TestDecryptionContext)(nil)

// Decrypt validates the whole archive before writing anything to w.
func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}
	if !bytes.HasPrefix(data, snapshotMagic) {
		return errors.New("not a worktrack test archive")
	}
	body := data[len(snapshotMagic):]
	if len(body) < trailerLen {
		return errors.New("archive truncated before trailer")
	}
	payload, trailer := body[:len(body)-trailerLen], body[len(body)-trailerLen:]
	if want := binary.BigEndian.Uint64(trailer); want != uint64(len(payload)) {
		return fmt.Errorf("archive truncated: %d of %d snapshot bytes", len(payload), want)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

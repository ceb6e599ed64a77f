package lockedmem

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/ladzaretti/strongbox/guardedbuf"
	"github.com/ladzaretti/strongbox/vaultcrypto"
)

// filePerm restricts a locked-memory file to the owning process identity.
const filePerm = 0o600

// File holds a secret in a file restricted to the owning process identity,
// optionally encrypted with a per-handle key. On [File.Destroy] the file is
// overwritten with zeros and deleted.
type File struct {
	mu        sync.Mutex
	path      string
	aead      *vaultcrypto.XChaCha20Poly1305
	destroyed bool
}

// NewFile creates a file-locked handle under dir holding plaintext. If key
// is non-nil it must be 32 bytes; the secret is sealed with
// XChaCha20-Poly1305 under key before being written to disk.
func NewFile(dir string, plaintext []byte, key []byte) (*File, error) {
	m := &File{path: filepath.Join(dir, "."+uuid.NewString()+".lockedmem")}

	if key != nil {
		aead, err := vaultcrypto.NewXChaCha20Poly1305(key)
		if err != nil {
			return nil, fmt.Errorf("lockedmem: file: %w", err)
		}

		m.aead = aead
	}

	if err := m.seal(plaintext); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *File) seal(plaintext []byte) error {
	data := plaintext

	if m.aead != nil {
		nonce, err := vaultcrypto.RandBytes(vaultcrypto.NonceSizeXChaCha)
		if err != nil {
			return fmt.Errorf("lockedmem: file: nonce: %w", err)
		}

		ct, err := m.aead.Seal(nonce, plaintext, nil)
		if err != nil {
			return fmt.Errorf("lockedmem: file: seal: %w", err)
		}

		data = append(nonce, ct...)
	}

	if err := atomic.WriteFile(m.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("lockedmem: file: write: %w", err)
	}

	if err := os.Chmod(m.path, filePerm); err != nil {
		return fmt.Errorf("lockedmem: file: chmod: %w", err)
	}

	return nil
}

// Unlock implements [Memory].
func (m *File) Unlock() (*guardedbuf.Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return nil, ErrDestroyed
	}

	raw, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("lockedmem: file: unlock: read: %w", err)
	}

	defer func() {
		for i := range raw {
			raw[i] = 0
		}
	}()

	if m.aead == nil {
		return guardedbuf.FromBytes(raw)
	}

	nonce, ct := raw[:vaultcrypto.NonceSizeXChaCha], raw[vaultcrypto.NonceSizeXChaCha:]

	pt, err := m.aead.Open(nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("lockedmem: file: unlock: open: %w", err)
	}

	defer func() {
		for i := range pt {
			pt[i] = 0
		}
	}()

	return guardedbuf.FromBytes(pt)
}

// Update implements [Memory].
func (m *File) Update(buf *guardedbuf.Buffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return ErrDestroyed
	}

	return buf.WithReadAccess(func(p []byte) error {
		return m.seal(p)
	})
}

// Destroy implements [Memory].
func (m *File) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return nil
	}

	m.destroyed = true

	info, err := os.Stat(m.path)
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("lockedmem: file: destroy: stat: %w", err)
	}

	zeros := make([]byte, info.Size())
	if err := os.WriteFile(m.path, zeros, filePerm); err != nil {
		return fmt.Errorf("lockedmem: file: destroy: zero: %w", err)
	}

	if err := os.Remove(m.path); err != nil {
		return fmt.Errorf("lockedmem: file: destroy: remove: %w", err)
	}

	return nil
}

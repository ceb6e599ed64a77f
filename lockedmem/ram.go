package lockedmem

import (
	"fmt"
	"sync"

	"github.com/ladzaretti/strongbox/guardedbuf"
	"github.com/ladzaretti/strongbox/vaultcrypto"
)

// RAM holds a secret inside a [guardedbuf.Buffer] kept in no-access mode
// between operations, optionally pre-encrypted under a per-handle key.
// [RAM.Unlock] produces a fresh decrypted guarded buffer each call.
type RAM struct {
	mu        sync.Mutex
	aead      *vaultcrypto.XChaCha20Poly1305 // nil: stored in the clear, inside the guarded buffer
	store     *guardedbuf.Buffer
	destroyed bool
}

// NewRAM constructs a RAM-locked handle holding plaintext. If key is
// non-nil it must be 32 bytes; the secret is then sealed with
// XChaCha20-Poly1305 under key before being placed in the guarded buffer.
func NewRAM(plaintext []byte, key []byte) (*RAM, error) {
	m := &RAM{}

	if key != nil {
		aead, err := vaultcrypto.NewXChaCha20Poly1305(key)
		if err != nil {
			return nil, fmt.Errorf("lockedmem: ram: %w", err)
		}

		m.aead = aead
	}

	if err := m.seal(plaintext); err != nil {
		return nil, err
	}

	return m, nil
}

// seal encrypts (if configured) plaintext under a fresh nonce and replaces
// the handle's backing guarded buffer, releasing the previous one.
func (m *RAM) seal(plaintext []byte) error {
	data := plaintext

	if m.aead != nil {
		nonce, err := vaultcrypto.RandBytes(vaultcrypto.NonceSizeXChaCha)
		if err != nil {
			return fmt.Errorf("lockedmem: ram: nonce: %w", err)
		}

		ct, err := m.aead.Seal(nonce, plaintext, nil)
		if err != nil {
			return fmt.Errorf("lockedmem: ram: seal: %w", err)
		}

		data = append(nonce, ct...)
	}

	buf, err := guardedbuf.FromBytes(data)
	if err != nil {
		return fmt.Errorf("lockedmem: ram: %w", err)
	}

	if m.store != nil {
		_ = m.store.Release()
	}

	m.store = buf

	return nil
}

// Unlock implements [Memory].
func (m *RAM) Unlock() (*guardedbuf.Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return nil, ErrDestroyed
	}

	var (
		out *guardedbuf.Buffer
		err error
	)

	accessErr := m.store.WithReadAccess(func(p []byte) error {
		if m.aead == nil {
			out, err = guardedbuf.FromBytes(p)
			return err
		}

		nonce, ct := p[:vaultcrypto.NonceSizeXChaCha], p[vaultcrypto.NonceSizeXChaCha:]

		pt, openErr := m.aead.Open(nonce, ct, nil)
		if openErr != nil {
			return openErr
		}

		out, err = guardedbuf.FromBytes(pt)

		for i := range pt {
			pt[i] = 0
		}

		return err
	})
	if accessErr != nil {
		return nil, fmt.Errorf("lockedmem: ram: unlock: %w", accessErr)
	}

	return out, nil
}

// Update implements [Memory].
func (m *RAM) Update(buf *guardedbuf.Buffer) error {
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
func (m *RAM) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return nil
	}

	m.destroyed = true

	if m.store == nil {
		return nil
	}

	return m.store.Release()
}

// Package lockedmem implements the long-lived, at-rest-in-memory (or
// at-rest-on-disk) storage strategies that back a vault record's
// ciphertext and a vault's own key: RAM-locked, file-locked, and
// non-contiguous (two-shard) memory. All three satisfy the [Memory]
// contract and zeroize their backing storage on [Memory.Destroy].
//
// Unlocking a handle always yields a fresh [guardedbuf.Buffer]; the caller
// is responsible for releasing it. Concurrent Unlock calls on a single
// handle are forbidden by contract — callers serialize access, typically
// by holding the owning vault's lock.
package lockedmem

import (
	"errors"

	"github.com/ladzaretti/strongbox/guardedbuf"
)

// ErrDestroyed indicates an operation was attempted on a destroyed handle.
var ErrDestroyed = errors.New("lockedmem: handle already destroyed")

// Memory is the common capability set for every locked-memory strategy.
type Memory interface {
	// Unlock decrypts (if applicable) and returns the secret in a fresh
	// guarded buffer. The caller owns the returned buffer and must release it.
	Unlock() (*guardedbuf.Buffer, error)

	// Update replaces the secret with the contents of buf, which must be
	// currently accessible to the caller (the implementation reads it
	// under its own read scope).
	Update(buf *guardedbuf.Buffer) error

	// Destroy zeroizes and releases all backing storage. Safe to call more than once.
	Destroy() error
}

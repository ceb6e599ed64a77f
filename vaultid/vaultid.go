// Package vaultid defines the fixed-width identifier types shared across
// the vault engine, client state, and snapshot codec.
package vaultid

import (
	"encoding/hex"
)

// ClientId identifies a client within a process. It is never secret.
type ClientId [32]byte

// VaultId identifies a vault within a client. It is never secret.
type VaultId [32]byte

// RecordId identifies a record within a vault. It is never secret and,
// per the vault's invariants, is never reused within the lifetime of a vault.
type RecordId [24]byte

// Hint is an opaque, caller-chosen label surfaced by listing APIs. Callers
// must not place secret content in a Hint: it is stored and returned in the
// clear alongside a record's ciphertext.
type Hint [24]byte

func (id ClientId) String() string { return hex.EncodeToString(id[:]) }
func (id VaultId) String() string  { return hex.EncodeToString(id[:]) }
func (id RecordId) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether id is the zero value.
func (id ClientId) IsZero() bool { return id == ClientId{} }

// IsZero reports whether id is the zero value.
func (id VaultId) IsZero() bool { return id == VaultId{} }

// IsZero reports whether id is the zero value.
func (id RecordId) IsZero() bool { return id == RecordId{} }

// HintFromString truncates or zero-pads s into a Hint.
func HintFromString(s string) Hint {
	var h Hint

	copy(h[:], s)

	return h
}

// String returns the hint's content with trailing zero bytes removed.
func (h Hint) String() string {
	n := len(h)
	for n > 0 && h[n-1] == 0 {
		n--
	}

	return string(h[:n])
}

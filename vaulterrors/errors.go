// Package vaulterrors collects the sentinel errors shared by every package
// in this module, mirroring how the teacher codebase centralizes its vault
// errors in one reused package instead of redeclaring them per-caller.
package vaulterrors

import "errors"

var (
	// ErrIo indicates a filesystem or I/O failure unrelated to authentication
	// or data integrity.
	ErrIo = errors.New("i/o error")

	// ErrBadMagic indicates a snapshot file does not begin with the expected magic bytes.
	ErrBadMagic = errors.New("bad snapshot magic")

	// ErrBadVersion indicates a snapshot file declares an unsupported version.
	ErrBadVersion = errors.New("unsupported snapshot version")

	// ErrAuthFailure indicates password verification or AEAD tag verification
	// failed. No plaintext is ever returned alongside this error.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrCorrupt indicates a snapshot's structure could not be parsed.
	ErrCorrupt = errors.New("corrupt snapshot")

	// ErrNoVault indicates the referenced vault does not exist.
	ErrNoVault = errors.New("no such vault")

	// ErrVaultExists indicates a vault already exists under the given id.
	ErrVaultExists = errors.New("vault already exists")

	// ErrNoRecord indicates the referenced record does not exist or is revoked.
	ErrNoRecord = errors.New("no such record")

	// ErrCorruptRecord indicates a record's ciphertext failed to decrypt or
	// authenticate under its owning vault's key.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrCrypto indicates a cryptographic operation (encrypt, decrypt, sign)
	// failed for a reason other than an authentication mismatch.
	ErrCrypto = errors.New("cryptographic operation failed")

	// ErrSerialize indicates client state could not be encoded or decoded.
	ErrSerialize = errors.New("serialization error")

	// ErrExists indicates a resource that must be created fresh already exists.
	ErrExists = errors.New("already exists")

	// ErrPolicy indicates a caller violated an API usage contract (e.g.
	// double-unlock, reading a guarded buffer outside of a scope).
	ErrPolicy = errors.New("policy violation")

	// ErrFatalIntegrity indicates an internal integrity check (canary mismatch,
	// double free, vault-key corruption) failed; any guarded buffers touched
	// by the failing operation have been zeroized before this error surfaces.
	ErrFatalIntegrity = errors.New("fatal integrity violation")
)

package vaultcrypto

import (
	"golang.org/x/crypto/argon2"
)

const DefaultArgon2idVersion = 19

// SaltSize is the length, in bytes, of a freshly generated Argon2id salt.
const SaltSize = 16

// Argon2Params represents the parameters for the Argon2id KDF.
type Argon2Params struct {
	Memory      uint32 // Memory cost in KiB
	Time        uint32 // Time cost (iterations)
	Parallelism uint8  // Parallelism factor (number of threads)
}

type Argon2idKDF struct {
	phc    Argon2idPHC
	keyLen uint32 // keyLen is the length of the derived key in bytes
}

// DefaultArgon2idParams are tuned for a >=100ms derivation on commodity
// hardware, as required by the snapshot codec's key schedule.
var DefaultArgon2idParams = Argon2Params{
	Memory:      64 * 1024, // 64 MiB
	Time:        1,
	Parallelism: 4,
}

type Argon2idKDFOpt func(*Argon2idKDF)

// NewArgon2idKDF creates a new [Argon2idKDF] instance with the provided options.
// It uses the following default values:
//   - Memory: 64 MiB (64 * 1024)
//   - Time: 1 iteration
//   - Parallelism: 4 threads
//   - Key length: 32 bytes
//
// A salt must be supplied via [WithSalt] or [WithPHC] before [Argon2idKDF.Derive]
// is called; these defaults can otherwise be overridden by the available
// [Argon2idKDFOpt] funcs.
func NewArgon2idKDF(opts ...Argon2idKDFOpt) *Argon2idKDF {
	kdf := &Argon2idKDF{
		phc: Argon2idPHC{
			Argon2Params: DefaultArgon2idParams,
			Version:      DefaultArgon2idVersion,
		},
		keyLen: 32,
	}

	for _, opt := range opts {
		opt(kdf)
	}

	return kdf
}

// WithSalt sets the salt used for derivation, recorded in the resulting PHC string.
func WithSalt(salt []byte) Argon2idKDFOpt {
	return func(kdf *Argon2idKDF) {
		kdf.phc.Salt = salt
	}
}

// WithPHC seeds the KDF's parameters, version and salt from a decoded PHC string.
func WithPHC(phc Argon2idPHC) Argon2idKDFOpt {
	return func(kdf *Argon2idKDF) {
		kdf.phc = phc
	}
}

func WithParams(params Argon2Params) Argon2idKDFOpt {
	return func(kdf *Argon2idKDF) {
		kdf.phc.Argon2Params = params
	}
}

func WithVersion(v int) Argon2idKDFOpt {
	return func(kdf *Argon2idKDF) {
		kdf.phc.Version = v
	}
}

func WithKeyLen(n uint32) Argon2idKDFOpt {
	return func(kdf *Argon2idKDF) {
		kdf.keyLen = n
	}
}

// Derive runs Argon2id over password with this KDF's salt and parameters.
func (a *Argon2idKDF) Derive(password []byte) []byte {
	params := a.phc.Argon2Params
	return argon2.IDKey(password, a.phc.Salt, params.Time, params.Memory, params.Parallelism, a.keyLen)
}

// PHC returns the PHC record describing this KDF's parameters. The returned
// value has no Hash set; callers authenticating a password assign one
// themselves, e.g. `phc := kdf.PHC(); phc.Hash = kdf.Derive(password)`.
func (a *Argon2idKDF) PHC() Argon2idPHC {
	return a.phc
}

package vaultcrypto

import (
	"crypto/ed25519"
	"errors"
)

// ErrInvalidEd25519Seed is returned when a seed of the wrong length is supplied.
var ErrInvalidEd25519Seed = errors.New("ed25519: invalid seed length")

// Ed25519KeyPair holds a seed-derived Ed25519 key pair.
//
// Seed is the 32-byte private seed; it is the only secret value and is the
// form callers should store inside locked memory. PublicKey is derived from
// Seed and is not secret.
type Ed25519KeyPair struct {
	Seed      []byte
	PublicKey ed25519.PublicKey
}

// GenerateEd25519 creates a new random Ed25519 key pair.
func GenerateEd25519() (*Ed25519KeyPair, error) {
	seed, err := RandBytes(ed25519.SeedSize)
	if err != nil {
		return nil, err
	}

	return Ed25519FromSeed(seed)
}

// Ed25519FromSeed reconstructs an Ed25519 key pair from a 32-byte seed.
func Ed25519FromSeed(seed []byte) (*Ed25519KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidEd25519Seed
	}

	priv := ed25519.NewKeyFromSeed(seed)

	return &Ed25519KeyPair{
		Seed:      seed,
		PublicKey: priv.Public().(ed25519.PublicKey),
	}, nil
}

// Sign signs message with the key pair's private key, reconstructed from Seed.
func (k *Ed25519KeyPair) Sign(message []byte) []byte {
	priv := ed25519.NewKeyFromSeed(k.Seed)
	return ed25519.Sign(priv, message)
}

// VerifyEd25519 reports whether sig is a valid signature of message by publicKey.
func VerifyEd25519(publicKey ed25519.PublicKey, message, sig []byte) bool {
	return ed25519.Verify(publicKey, message, sig)
}

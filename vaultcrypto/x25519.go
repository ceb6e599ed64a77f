package vaultcrypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// DeriveX25519Shared computes the X25519 shared secret between the given
// 32-byte scalar and the given 32-byte peer public point.
//
// The scalar is used as-is; callers deriving it from a password-based key
// are responsible for ensuring it has the expected length.
func DeriveX25519Shared(scalar, peerPublic []byte) ([]byte, error) {
	return curve25519.X25519(scalar, peerPublic)
}

// X25519Basepoint returns the public point corresponding to scalar,
// computed against the standard Curve25519 base point.
func X25519Basepoint(scalar []byte) ([]byte, error) {
	return curve25519.X25519(scalar, curve25519.Basepoint)
}

// HKDFExpand derives keyLen bytes from secret using HKDF-SHA256 with the
// given salt and info, per RFC 5869.
func HKDFExpand(secret, salt, info []byte, keyLen int) ([]byte, error) {
	out := make([]byte, keyLen)

	r := hkdf.New(sha256.New, secret, salt, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}

	return out, nil
}

package vaultcrypto

import (
	"crypto/cipher"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSizeXChaCha is the nonce length, in bytes, required by [XChaCha20Poly1305].
const NonceSizeXChaCha = chacha20poly1305.NonceSizeX

// TagSizeXChaCha is the authentication tag length, in bytes, appended by [XChaCha20Poly1305.Seal].
const TagSizeXChaCha = chacha20poly1305.Overhead

var ErrNilXChaCha20Poly1305 = errors.New("XChaCha20Poly1305 is nil")

// XChaCha20Poly1305 wraps a [cipher.AEAD] using the XChaCha20-Poly1305
// construction: a 24-byte extended nonce over ChaCha20-Poly1305.
type XChaCha20Poly1305 struct {
	aead cipher.AEAD
}

// NewXChaCha20Poly1305 creates a new XChaCha20-Poly1305 cipher using the provided 32-byte key.
func NewXChaCha20Poly1305(key []byte) (*XChaCha20Poly1305, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	return &XChaCha20Poly1305{aead}, nil
}

// Seal encrypts and authenticates plaintext with the given nonce and associated data.
func (x *XChaCha20Poly1305) Seal(nonce, plaintext, ad []byte) ([]byte, error) {
	if x == nil {
		return nil, ErrNilXChaCha20Poly1305
	}

	return x.aead.Seal(nil, nonce, plaintext, ad), nil
}

// Open decrypts and authenticates ciphertext with the given nonce and associated data.
func (x *XChaCha20Poly1305) Open(nonce, ciphertext, ad []byte) ([]byte, error) {
	if x == nil {
		return nil, ErrNilXChaCha20Poly1305
	}

	return x.aead.Open(nil, nonce, ciphertext, ad)
}

// AEAD returns the underlying cipher.AEAD instance.
func (x *XChaCha20Poly1305) AEAD() cipher.AEAD {
	return x.aead
}

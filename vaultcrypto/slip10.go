package vaultcrypto

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
)

// HardenedOffset is added to a child index to mark it hardened, per BIP-32/SLIP-10.
const HardenedOffset uint32 = 0x80000000

var (
	slip10Ed25519Key = []byte("ed25519 seed")

	// ErrInvalidSeed is returned when a SLIP-10 master seed falls outside
	// the 16-64 byte range the spec requires.
	ErrInvalidSeed = errors.New("slip10: seed must be between 16 and 64 bytes")
)

// ExtendedKey is a SLIP-10 key node: a 32-byte private key and its
// accompanying 32-byte chain code.
type ExtendedKey struct {
	Key       []byte // 32 bytes
	ChainCode []byte // 32 bytes
}

// SLIP10MasterKey derives the Ed25519 master extended key from a seed,
// per SLIP-0010 (https://github.com/satoshilabs/slips/blob/master/slip-0010.md).
func SLIP10MasterKey(seed []byte) (*ExtendedKey, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, ErrInvalidSeed
	}

	mac := hmac.New(sha512.New, slip10Ed25519Key)
	mac.Write(seed)
	sum := mac.Sum(nil)

	return &ExtendedKey{
		Key:       sum[:32],
		ChainCode: sum[32:],
	}, nil
}

// DeriveChild derives the hardened child at the given index.
//
// Ed25519 under SLIP-10 supports only hardened derivation; index is
// automatically offset by [HardenedOffset] if it is not already hardened.
func (k *ExtendedKey) DeriveChild(index uint32) (*ExtendedKey, error) {
	if index < HardenedOffset {
		index += HardenedOffset
	}

	data := make([]byte, 1+32+4)
	data[0] = 0x00
	copy(data[1:33], k.Key)
	binary.BigEndian.PutUint32(data[33:], index)

	mac := hmac.New(sha512.New, k.ChainCode)
	mac.Write(data)
	sum := mac.Sum(nil)

	return &ExtendedKey{
		Key:       sum[:32],
		ChainCode: sum[32:],
	}, nil
}

// DerivePath walks a sequence of hardened indices starting from the master key.
func (k *ExtendedKey) DerivePath(indices ...uint32) (*ExtendedKey, error) {
	cur := k
	for _, idx := range indices {
		next, err := cur.DeriveChild(idx)
		if err != nil {
			return nil, err
		}

		cur = next
	}

	return cur, nil
}

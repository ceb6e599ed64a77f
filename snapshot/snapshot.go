// Package snapshot implements the at-rest file format: a password-sealed,
// streaming-AEAD container holding one or more clients' serialized state.
// The key schedule combines an Argon2id password-key with an ephemeral
// X25519 exchange and HKDF-SHA256, so that the file itself carries
// everything (besides the password) needed to recover the symmetric key.
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/natefinch/atomic"

	"github.com/ladzaretti/strongbox/client"
	"github.com/ladzaretti/strongbox/vaultcrypto"
	"github.com/ladzaretti/strongbox/vaultid"
	"github.com/ladzaretti/strongbox/vaulterrors"
)

// magic identifies a strongbox snapshot file.
var magic = [4]byte{'S', 'T', 'R', 'N'}

// version is the only schema this package knows how to read or write.
const version uint16 = 1

// ChunkSize is the plaintext size of one streamed AEAD chunk. Callers
// writing very large snapshots may lower it; it is read at the start of
// each [Write] call.
var ChunkSize = 1 << 20 // 1 MiB

const (
	ephemeralPubSize = 32
	nonceSize        = vaultcrypto.NonceSizeXChaCha
)

// Load decrypts the snapshot at path under password, authenticating the
// caller-supplied ad, and returns the clients it contained.
func Load(ctx context.Context, path string, password, ad []byte) (map[vaultid.ClientId]*client.Client, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load: %w", vaulterrors.ErrIo)
	}

	hdr, body, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}

	kSym, err := symmetricKey(password, hdr)
	if err != nil {
		return nil, err
	}
	defer zero(kSym)

	aead, err := vaultcrypto.NewXChaCha20Poly1305(kSym)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load: %w", vaulterrors.ErrCrypto)
	}

	headerAD := append(append([]byte(nil), hdr.headerBytes...), ad...)

	plaintext, err := decodeChunks(ctx, aead, hdr.nonce, hdr.chunkCount, body, headerAD)
	if err != nil {
		return nil, err
	}
	defer zero(plaintext)

	clients, err := decodeClients(plaintext)
	if err != nil {
		return nil, err
	}

	return clients, nil
}

// Write atomically seals clients into the snapshot at path under
// password, authenticating the caller-supplied ad. A partial write
// never replaces an existing, valid snapshot.
func Write(ctx context.Context, path string, password, ad []byte, clients map[vaultid.ClientId]*client.Client) error {
	plaintext, err := encodeClients(ctx, clients)
	if err != nil {
		return err
	}
	defer zero(plaintext)

	salt, err := vaultcrypto.RandBytes(vaultcrypto.SaltSize)
	if err != nil {
		return fmt.Errorf("snapshot: write: %w", vaulterrors.ErrCrypto)
	}

	kdf := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithSalt(salt))
	kPw := kdf.Derive(password)
	defer zero(kPw)

	eSk, err := vaultcrypto.RandBytes(32)
	if err != nil {
		return fmt.Errorf("snapshot: write: %w", vaulterrors.ErrCrypto)
	}
	defer zero(eSk)

	ePub, err := vaultcrypto.X25519Basepoint(eSk)
	if err != nil {
		return fmt.Errorf("snapshot: write: %w", vaulterrors.ErrCrypto)
	}

	shared, err := vaultcrypto.DeriveX25519Shared(kPw, ePub)
	if err != nil {
		return fmt.Errorf("snapshot: write: %w", vaulterrors.ErrCrypto)
	}
	defer zero(shared)

	kSym, err := vaultcrypto.HKDFExpand(shared, nil, []byte("snapshot-v1"), 32)
	if err != nil {
		return fmt.Errorf("snapshot: write: %w", vaulterrors.ErrCrypto)
	}
	defer zero(kSym)

	nonce, err := vaultcrypto.RandBytes(nonceSize)
	if err != nil {
		return fmt.Errorf("snapshot: write: %w", vaulterrors.ErrCrypto)
	}

	chunkCount := uint32(len(plaintext)/ChunkSize) + 2 // data chunks, rounded up, plus the final empty chunk
	if len(plaintext)%ChunkSize == 0 {
		chunkCount--
	}

	headerBytes := encodeHeaderPrefix(kdf.PHC().String(), ePub)

	aead, err := vaultcrypto.NewXChaCha20Poly1305(kSym)
	if err != nil {
		return fmt.Errorf("snapshot: write: %w", vaulterrors.ErrCrypto)
	}

	headerAD := append(append([]byte(nil), headerBytes...), ad...)

	body, err := encodeChunks(ctx, aead, nonce, chunkCount, plaintext, headerAD)
	if err != nil {
		return err
	}

	out := new(bytes.Buffer)
	out.Write(headerBytes)
	out.Write(nonce)

	var cc [4]byte
	binary.LittleEndian.PutUint32(cc[:], chunkCount)
	out.Write(cc[:])
	out.Write(body)

	if err := atomic.WriteFile(path, bytes.NewReader(out.Bytes())); err != nil {
		return fmt.Errorf("snapshot: write: %w", vaulterrors.ErrIo)
	}

	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// sortedClientIds returns client ids in a stable order, so a snapshot's
// byte layout does not depend on map iteration order.
func sortedClientIds(clients map[vaultid.ClientId]*client.Client) []vaultid.ClientId {
	ids := make([]vaultid.ClientId, 0, len(clients))
	for id := range clients {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	return ids
}

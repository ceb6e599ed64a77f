package lockedmem

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ladzaretti/strongbox/guardedbuf"
	"github.com/ladzaretti/strongbox/vaultcrypto"
)

// ShardSize is the fixed secret length [NonContiguous] operates on: the
// width of a SHA-256 digest.
const ShardSize = sha256.Size

// ErrShardSize indicates a secret whose length does not equal [ShardSize]
// was supplied to non-contiguous memory.
var ErrShardSize = errors.New("lockedmem: non-contiguous secret must be exactly ShardSize bytes")

// ShardFactory allocates a [Memory] handle to hold a shard's plaintext bytes.
// Callers typically pass [NewRAM] and [NewFile] bound to a key, so that one
// shard lives in RAM and the other on disk.
type ShardFactory func(plaintext []byte) (Memory, error)

// NonContiguous splits a [ShardSize]-byte secret S across two independently
// backed shards: A (random) and B = S xor SHA256(A). Unlock reconstructs S
// as B xor SHA256(A), entirely inside guarded buffers. Refresh rolls both
// shards without ever exposing S outside of a guarded buffer.
type NonContiguous struct {
	shardA, shardB       Memory
	newShardA, newShardB ShardFactory
}

// NewNonContiguous splits secret into two shards, allocated via newShardA
// and newShardB.
func NewNonContiguous(secret []byte, newShardA, newShardB ShardFactory) (*NonContiguous, error) {
	if len(secret) != ShardSize {
		return nil, ErrShardSize
	}

	a, err := vaultcrypto.RandBytes(ShardSize)
	if err != nil {
		return nil, fmt.Errorf("lockedmem: noncontig: %w", err)
	}

	b := xorDigest(secret, a)

	shardA, err := newShardA(a)
	zero(a)

	if err != nil {
		return nil, fmt.Errorf("lockedmem: noncontig: shard a: %w", err)
	}

	shardB, err := newShardB(b)
	zero(b)

	if err != nil {
		_ = shardA.Destroy()
		return nil, fmt.Errorf("lockedmem: noncontig: shard b: %w", err)
	}

	return &NonContiguous{
		shardA:    shardA,
		shardB:    shardB,
		newShardA: newShardA,
		newShardB: newShardB,
	}, nil
}

// xorDigest returns secret xor SHA256(a).
func xorDigest(secret, a []byte) []byte {
	h := sha256.Sum256(a)
	out := make([]byte, len(secret))

	for i := range out {
		out[i] = secret[i] ^ h[i]
	}

	return out
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Unlock implements [Memory]. It reconstructs S = B xor SHA256(A) entirely
// within guarded-buffer scopes.
func (n *NonContiguous) Unlock() (*guardedbuf.Buffer, error) {
	bufA, err := n.shardA.Unlock()
	if err != nil {
		return nil, fmt.Errorf("lockedmem: noncontig: unlock shard a: %w", err)
	}
	defer func() { _ = bufA.Release() }()

	bufB, err := n.shardB.Unlock()
	if err != nil {
		return nil, fmt.Errorf("lockedmem: noncontig: unlock shard b: %w", err)
	}
	defer func() { _ = bufB.Release() }()

	var result *guardedbuf.Buffer

	err = bufA.WithReadAccess(func(a []byte) error {
		return bufB.WithReadAccess(func(b []byte) error {
			s := xorDigest(b, a)
			result, err = guardedbuf.FromBytes(s)
			zero(s)

			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("lockedmem: noncontig: reconstruct: %w", err)
	}

	return result, nil
}

// Update implements [Memory]: it replaces the secret wholesale, rolling
// fresh shards for the new value.
func (n *NonContiguous) Update(buf *guardedbuf.Buffer) error {
	return buf.WithReadAccess(func(s []byte) error {
		return n.reshard(s)
	})
}

// Refresh rolls both shards to new random values without changing the
// reconstructed secret. No background timer drives this; callers invoke it
// explicitly on whatever schedule suits them.
func (n *NonContiguous) Refresh() error {
	buf, err := n.Unlock()
	if err != nil {
		return fmt.Errorf("lockedmem: noncontig: refresh: %w", err)
	}
	defer func() { _ = buf.Release() }()

	return buf.WithReadAccess(func(s []byte) error {
		return n.reshard(s)
	})
}

func (n *NonContiguous) reshard(secret []byte) error {
	if len(secret) != ShardSize {
		return ErrShardSize
	}

	a, err := vaultcrypto.RandBytes(ShardSize)
	if err != nil {
		return err
	}

	b := xorDigest(secret, a)
	defer zero(a)
	defer zero(b)

	bufA, err := guardedbuf.FromBytes(a)
	if err != nil {
		return fmt.Errorf("lockedmem: noncontig: reshard: guard shard a: %w", err)
	}
	defer func() { _ = bufA.Release() }()

	if err := n.shardA.Update(bufA); err != nil {
		return fmt.Errorf("lockedmem: noncontig: reshard: shard a: %w", err)
	}

	bufB, err := guardedbuf.FromBytes(b)
	if err != nil {
		return fmt.Errorf("lockedmem: noncontig: reshard: guard shard b: %w", err)
	}
	defer func() { _ = bufB.Release() }()

	if err := n.shardB.Update(bufB); err != nil {
		return fmt.Errorf("lockedmem: noncontig: reshard: shard b: %w", err)
	}

	return nil
}

// Destroy implements [Memory].
func (n *NonContiguous) Destroy() error {
	errA := n.shardA.Destroy()
	errB := n.shardB.Destroy()

	if errA != nil || errB != nil {
		return fmt.Errorf("lockedmem: noncontig: destroy: %w", errors.Join(errA, errB))
	}

	return nil
}

package client

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/ladzaretti/strongbox/store"
	"github.com/ladzaretti/strongbox/txlog"
	"github.com/ladzaretti/strongbox/vault"
	"github.com/ladzaretti/strongbox/vaultid"
	"github.com/ladzaretti/strongbox/vaulterrors"
)

// stateFormatVersion tags the layout of [Client.Serialize]'s output,
// independent of the snapshot file format version that wraps it.
const stateFormatVersion = 1

const (
	tagVaultSection byte = 0x01
	tagStoreSection byte = 0x02
)

func putUint32(buf *bytes.Buffer, n uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	buf.Write(b[:])
}

func putUint64(buf *bytes.Buffer, n uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n)
	buf.Write(b[:])
}

func putInt64(buf *bytes.Buffer, n int64) {
	putUint64(buf, uint64(n))
}

func putBytes(buf *bytes.Buffer, b []byte) {
	putUint32(buf, uint32(len(b)))
	buf.Write(b)
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) err() error {
	return fmt.Errorf("client: deserialize: %w", vaulterrors.ErrSerialize)
}

func (r *reader) byte() (byte, error) {
	if r.off >= len(r.b) {
		return 0, r.err()
	}

	v := r.b[r.off]
	r.off++

	return v, nil
}

func (r *reader) fixed(n int) ([]byte, error) {
	if r.off+n > len(r.b) {
		return nil, r.err()
	}

	v := r.b[r.off : r.off+n]
	r.off += n

	return v, nil
}

func (r *reader) uint32() (uint32, error) {
	v, err := r.fixed(4)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(v), nil
}

func (r *reader) uint64() (uint64, error) {
	v, err := r.fixed(8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(v), nil
}

func (r *reader) int64() (int64, error) {
	v, err := r.uint64()
	return int64(v), err
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}

	return r.fixed(int(n))
}

func (r *reader) recordId() (vaultid.RecordId, error) {
	var id vaultid.RecordId

	b, err := r.fixed(len(id))
	if err != nil {
		return id, err
	}

	copy(id[:], b)

	return id, nil
}

func (r *reader) vaultId() (vaultid.VaultId, error) {
	var id vaultid.VaultId

	b, err := r.fixed(len(id))
	if err != nil {
		return id, err
	}

	copy(id[:], b)

	return id, nil
}

func (r *reader) hint() (vaultid.Hint, error) {
	var h vaultid.Hint

	b, err := r.fixed(len(h))
	if err != nil {
		return h, err
	}

	copy(h[:], b)

	return h, nil
}

// Serialize encodes the client's vaults and store into a stable,
// self-describing byte stream. Vault-key bytes are copied directly from
// a guarded buffer into the output; record and store contents are
// already opaque ciphertext/plain values the serializer does not need
// to protect specially. Store entries are taken from [store.Store.Iter],
// so entries already expired are not embedded.
func (c *Client) Serialize(ctx context.Context) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	buf := new(bytes.Buffer)
	buf.WriteByte(stateFormatVersion)

	ids := make([]vaultid.VaultId, 0, len(c.vaults))
	for id := range c.vaults {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	buf.WriteByte(tagVaultSection)
	putUint32(buf, uint32(len(ids)))

	for _, id := range ids {
		if err := serializeVault(ctx, buf, id, c.vaults[id]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte(tagStoreSection)

	entries := c.store.Iter()
	putUint32(buf, uint32(len(entries)))

	for _, e := range entries {
		putBytes(buf, e.Key)
		putBytes(buf, e.Value)

		if e.Expires.IsZero() {
			buf.WriteByte(0)
		} else {
			buf.WriteByte(1)
			putInt64(buf, e.Expires.UnixNano())
		}
	}

	return buf.Bytes(), nil
}

func serializeVault(ctx context.Context, buf *bytes.Buffer, id vaultid.VaultId, v *vault.Vault) error {
	buf.Write(id[:])

	if err := v.ExportKey(func(key []byte) error {
		buf.Write(key)
		return nil
	}); err != nil {
		return fmt.Errorf("client: serialize vault %s: %w", id, err)
	}

	entries, tombstones := v.ExportLog()

	putUint32(buf, uint32(len(tombstones)))
	for _, t := range tombstones {
		buf.Write(t[:])
	}

	putUint32(buf, uint32(len(entries)))

	for _, e := range entries {
		buf.WriteByte(byte(e.Kind))
		putUint64(buf, e.Counter)
		putInt64(buf, e.Prev)
		buf.Write(e.Record[:])
		buf.Write(e.Hint[:])
	}

	list, err := v.List(ctx)
	if err != nil {
		return fmt.Errorf("client: serialize vault %s: %w", id, err)
	}

	putUint32(buf, uint32(len(list)))

	for _, e := range list {
		buf.Write(e.Record[:])

		if err := v.ExportRecord(e.Record, func(ct []byte) error {
			putBytes(buf, ct)
			return nil
		}); err != nil {
			return fmt.Errorf("client: serialize vault %s record %s: %w", id, e.Record, err)
		}
	}

	return nil
}

// Deserialize is the inverse of [Client.Serialize]: it reconstructs a
// client with its vault-key handles re-established in locked memory
// before any record becomes addressable.
func Deserialize(id vaultid.ClientId, data []byte) (*Client, error) {
	r := &reader{b: data}

	version, err := r.byte()
	if err != nil {
		return nil, err
	}

	if version != stateFormatVersion {
		return nil, fmt.Errorf("client: deserialize: unsupported state version %d: %w", version, vaulterrors.ErrBadVersion)
	}

	tag, err := r.byte()
	if err != nil || tag != tagVaultSection {
		return nil, r.err()
	}

	vaultCount, err := r.uint32()
	if err != nil {
		return nil, err
	}

	c := New(id)

	for i := uint32(0); i < vaultCount; i++ {
		vid, v, err := deserializeVault(r)
		if err != nil {
			return nil, err
		}

		c.vaults[vid] = v
	}

	tag, err = r.byte()
	if err != nil || tag != tagStoreSection {
		return nil, r.err()
	}

	storeCount, err := r.uint32()
	if err != nil {
		return nil, err
	}

	storeEntries := make([]store.Entry, 0, storeCount)

	for i := uint32(0); i < storeCount; i++ {
		key, err := r.bytes()
		if err != nil {
			return nil, err
		}

		value, err := r.bytes()
		if err != nil {
			return nil, err
		}

		hasExpiry, err := r.byte()
		if err != nil {
			return nil, err
		}

		var expires time.Time

		if hasExpiry == 1 {
			ns, err := r.int64()
			if err != nil {
				return nil, err
			}

			expires = time.Unix(0, ns)
		}

		storeEntries = append(storeEntries, store.Entry{Key: key, Value: value, Expires: expires})
	}

	c.store = store.Restore(storeEntries)

	return c, nil
}

func deserializeVault(r *reader) (vaultid.VaultId, *vault.Vault, error) {
	vid, err := r.vaultId()
	if err != nil {
		return vid, nil, err
	}

	key, err := r.fixed(32)
	if err != nil {
		return vid, nil, err
	}

	tombCount, err := r.uint32()
	if err != nil {
		return vid, nil, err
	}

	tombstones := make([]vaultid.RecordId, 0, tombCount)

	for i := uint32(0); i < tombCount; i++ {
		rid, err := r.recordId()
		if err != nil {
			return vid, nil, err
		}

		tombstones = append(tombstones, rid)
	}

	entryCount, err := r.uint32()
	if err != nil {
		return vid, nil, err
	}

	entries := make([]txlog.Transaction, 0, entryCount)

	for i := uint32(0); i < entryCount; i++ {
		kind, err := r.byte()
		if err != nil {
			return vid, nil, err
		}

		counter, err := r.uint64()
		if err != nil {
			return vid, nil, err
		}

		prev, err := r.int64()
		if err != nil {
			return vid, nil, err
		}

		rid, err := r.recordId()
		if err != nil {
			return vid, nil, err
		}

		hint, err := r.hint()
		if err != nil {
			return vid, nil, err
		}

		entries = append(entries, txlog.Transaction{
			Counter: counter,
			Kind:    txlog.Kind(kind),
			Record:  rid,
			Prev:    prev,
			Hint:    hint,
		})
	}

	recordCount, err := r.uint32()
	if err != nil {
		return vid, nil, err
	}

	records := make(map[vaultid.RecordId][]byte, recordCount)

	for i := uint32(0); i < recordCount; i++ {
		rid, err := r.recordId()
		if err != nil {
			return vid, nil, err
		}

		ct, err := r.bytes()
		if err != nil {
			return vid, nil, err
		}

		records[rid] = ct
	}

	v, err := vault.Restore(vid, key, entries, tombstones, records)
	if err != nil {
		return vid, nil, fmt.Errorf("client: deserialize vault %s: %w", vid, err)
	}

	return vid, v, nil
}

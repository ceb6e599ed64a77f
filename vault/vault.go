// Package vault implements the record-level encryption engine: per-vault
// write/revoke/read/garbage-collect over a [txlog.Log], with ciphertext
// held in [lockedmem] handles and the vault-key itself never leaving a
// locked-memory/guarded-buffer scope.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/ladzaretti/strongbox/guardedbuf"
	"github.com/ladzaretti/strongbox/lockedmem"
	"github.com/ladzaretti/strongbox/txlog"
	"github.com/ladzaretti/strongbox/vaultcrypto"
	"github.com/ladzaretti/strongbox/vaultid"
	"github.com/ladzaretti/strongbox/vaulterrors"
	"github.com/ladzaretti/strongbox/vlog"
)

const keySize = 32

// Vault holds one client's vault: a key held in locked memory, a
// transaction log, and the per-record ciphertext handles the log's live
// tips refer to. At most one mutating operation (Write, Revoke, GC,
// Clear) proceeds at a time; reads (GetGuard, List) may run concurrently
// with each other but not with a writer.
type Vault struct {
	id vaultid.VaultId

	mu       sync.RWMutex
	key      lockedmem.Memory
	log      *txlog.Log
	records  map[vaultid.RecordId]lockedmem.Memory
	terminal bool
}

// New creates a fresh vault identified by id, with a random vault-key
// held in RAM-locked memory.
func New(id vaultid.VaultId) (*Vault, error) {
	key, err := vaultcrypto.RandBytes(keySize)
	if err != nil {
		return nil, fmt.Errorf("vault: new: %w", err)
	}
	defer zero(key)

	mem, err := lockedmem.NewRAM(key, nil)
	if err != nil {
		return nil, fmt.Errorf("vault: new: %w", err)
	}

	return &Vault{
		id:      id,
		key:     mem,
		log:     txlog.New(),
		records: make(map[vaultid.RecordId]lockedmem.Memory),
	}, nil
}

// Id returns the vault's identifier.
func (v *Vault) Id() vaultid.VaultId { return v.id }

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func (v *Vault) associatedData(record vaultid.RecordId) []byte {
	ad := make([]byte, 0, len(v.id)+len(record))
	ad = append(ad, v.id[:]...)
	ad = append(ad, record[:]...)

	return ad
}

// withKey unlocks the vault-key into a guarded buffer, invokes fn with
// its plaintext bytes, and guarantees the buffer is released before
// returning, even if fn fails.
func (v *Vault) withKey(fn func(key []byte) error) error {
	buf, err := v.key.Unlock()
	if err != nil {
		return fmt.Errorf("vault: unlock key: %w", err)
	}
	defer func() { _ = buf.Release() }()

	return buf.WithReadAccess(fn)
}

func (v *Vault) seal(record vaultid.RecordId, plaintext []byte) ([]byte, error) {
	var out []byte

	err := v.withKey(func(key []byte) error {
		aead, err := vaultcrypto.NewXChaCha20Poly1305(key)
		if err != nil {
			return err
		}

		nonce, err := vaultcrypto.RandBytes(vaultcrypto.NonceSizeXChaCha)
		if err != nil {
			return err
		}

		ct, err := aead.Seal(nonce, plaintext, v.associatedData(record))
		if err != nil {
			return err
		}

		out = append(nonce, ct...)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault: seal %s: %w", record, vaulterrors.ErrCrypto)
	}

	return out, nil
}

func (v *Vault) open(record vaultid.RecordId, ciphertext []byte) (*guardedbuf.Buffer, error) {
	if len(ciphertext) < vaultcrypto.NonceSizeXChaCha {
		return nil, fmt.Errorf("vault: open %s: %w", record, vaulterrors.ErrCorruptRecord)
	}

	nonce, ct := ciphertext[:vaultcrypto.NonceSizeXChaCha], ciphertext[vaultcrypto.NonceSizeXChaCha:]

	var out *guardedbuf.Buffer

	err := v.withKey(func(key []byte) error {
		aead, err := vaultcrypto.NewXChaCha20Poly1305(key)
		if err != nil {
			return err
		}

		pt, err := aead.Open(nonce, ct, v.associatedData(record))
		if err != nil {
			return err
		}
		defer zero(pt)

		out, err = guardedbuf.FromBytes(pt)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("vault: open %s: %w", record, vaulterrors.ErrCorruptRecord)
	}

	return out, nil
}

// Write encrypts payload under the vault-key and appends a Data
// transaction for record. If record already has a live, non-revoked
// entry, the new transaction supersedes it; the superseded ciphertext
// handle is destroyed once the log append succeeds. Writing to a record
// that has ever been revoked fails: a RecordId is never reused over a
// vault's lifetime.
func (v *Vault) Write(_ context.Context, record vaultid.RecordId, payload []byte, hint vaultid.Hint) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.terminal {
		return fmt.Errorf("vault: write: %w", vaulterrors.ErrNoVault)
	}

	ct, err := v.seal(record, payload)
	if err != nil {
		return err
	}

	mem, err := lockedmem.NewRAM(ct, nil)
	zero(ct)

	if err != nil {
		return fmt.Errorf("vault: write %s: %w", record, vaulterrors.ErrIo)
	}

	if _, err := v.log.AppendData(record, hint); err != nil {
		_ = mem.Destroy()
		return fmt.Errorf("vault: write %s: %w", record, err)
	}

	if old, ok := v.records[record]; ok {
		_ = old.Destroy()
	}

	v.records[record] = mem

	return nil
}

// Revoke marks record revoked. A subsequent write to the same RecordId
// always fails.
func (v *Vault) Revoke(_ context.Context, record vaultid.RecordId) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.terminal {
		return fmt.Errorf("vault: revoke: %w", vaulterrors.ErrNoVault)
	}

	if _, err := v.log.AppendRevoke(record); err != nil {
		return fmt.Errorf("vault: revoke %s: %w", record, err)
	}

	return nil
}

// GetGuard locates the current live Data transaction for record, decrypts
// it into a guarded buffer, and invokes fn with it. The buffer is
// released before GetGuard returns, whether or not fn succeeds.
func (v *Vault) GetGuard(_ context.Context, record vaultid.RecordId, fn func(*guardedbuf.Buffer) error) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.terminal || !v.log.IsValid(record) {
		return fmt.Errorf("vault: get_guard %s: %w", record, vaulterrors.ErrNoRecord)
	}

	mem, ok := v.records[record]
	if !ok {
		return fmt.Errorf("vault: get_guard %s: %w", record, vaulterrors.ErrNoRecord)
	}

	ctBuf, err := mem.Unlock()
	if err != nil {
		return fmt.Errorf("vault: get_guard %s: %w", record, err)
	}
	defer func() { _ = ctBuf.Release() }()

	var ptBuf *guardedbuf.Buffer

	err = ctBuf.WithReadAccess(func(ct []byte) error {
		var openErr error
		ptBuf, openErr = v.open(record, ct)

		return openErr
	})
	if err != nil {
		return err
	}
	defer func() { _ = ptBuf.Release() }()

	return fn(ptBuf)
}

// ExecProc reads record in, passes its plaintext to fn, and stores fn's
// returned plaintext result at record out, re-encrypted under the
// vault-key. The intermediate result only ever exists inside guarded
// buffers. in and out may be the same RecordId (an in-place transform).
func (v *Vault) ExecProc(_ context.Context, in, out vaultid.RecordId, fn func(*guardedbuf.Buffer) ([]byte, error)) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.terminal || !v.log.IsValid(in) {
		return fmt.Errorf("vault: exec_proc %s: %w", in, vaulterrors.ErrNoRecord)
	}

	mem, ok := v.records[in]
	if !ok {
		return fmt.Errorf("vault: exec_proc %s: %w", in, vaulterrors.ErrNoRecord)
	}

	ctBuf, err := mem.Unlock()
	if err != nil {
		return fmt.Errorf("vault: exec_proc %s: %w", in, err)
	}
	defer func() { _ = ctBuf.Release() }()

	var ptBuf *guardedbuf.Buffer

	err = ctBuf.WithReadAccess(func(ct []byte) error {
		var openErr error
		ptBuf, openErr = v.open(in, ct)

		return openErr
	})
	if err != nil {
		return err
	}
	defer func() { _ = ptBuf.Release() }()

	result, err := fn(ptBuf)
	if err != nil {
		return fmt.Errorf("vault: exec_proc %s: %w", in, err)
	}
	defer zero(result)

	ct, err := v.seal(out, result)
	if err != nil {
		return err
	}

	outMem, err := lockedmem.NewRAM(ct, nil)
	zero(ct)

	if err != nil {
		return fmt.Errorf("vault: exec_proc %s: %w", out, vaulterrors.ErrIo)
	}

	if _, err := v.log.AppendData(out, vaultid.Hint{}); err != nil {
		_ = outMem.Destroy()
		return fmt.Errorf("vault: exec_proc %s: %w", out, err)
	}

	if old, ok := v.records[out]; ok {
		_ = old.Destroy()
	}

	v.records[out] = outMem

	return nil
}

// List returns the live records' (RecordId, Hint) pairs in
// first-appearance order.
func (v *Vault) List(_ context.Context) ([]txlog.Entry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.terminal {
		return nil, fmt.Errorf("vault: list: %w", vaulterrors.ErrNoVault)
	}

	return v.log.List(), nil
}

// GC rewrites the transaction log, dropping revoked and superseded
// entries, and destroys the ciphertext handles of any record no longer
// live (revoked records).
func (v *Vault) GC(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.terminal {
		return fmt.Errorf("vault: gc: %w", vaulterrors.ErrNoVault)
	}

	live := make(map[vaultid.RecordId]bool)

	for _, e := range v.log.List() {
		live[e.Record] = true
	}

	v.log.GC()

	for record, mem := range v.records {
		if !live[record] {
			_ = mem.Destroy()
			delete(v.records, record)
		}
	}

	return nil
}

// ExportKey invokes fn with the vault-key's raw bytes, inside a guarded
// buffer scope, for serialization into a snapshot. fn must not retain the
// slice past its call.
func (v *Vault) ExportKey(fn func([]byte) error) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.withKey(fn)
}

// ExportLog returns the vault's transaction log entries and tombstone
// set, for serialization (see [txlog.Log.Entries], [txlog.Log.Tombstones]).
func (v *Vault) ExportLog() ([]txlog.Transaction, []vaultid.RecordId) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.log.Entries(), v.log.Tombstones()
}

// ExportRecord invokes fn with record's raw ciphertext bytes (nonce
// prepended), for serialization. Only live records need be exported;
// a non-live RecordId is reported as [vaulterrors.ErrNoRecord].
func (v *Vault) ExportRecord(record vaultid.RecordId, fn func([]byte) error) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	mem, ok := v.records[record]
	if !ok {
		return fmt.Errorf("vault: export record %s: %w", record, vaulterrors.ErrNoRecord)
	}

	buf, err := mem.Unlock()
	if err != nil {
		return fmt.Errorf("vault: export record %s: %w", record, err)
	}
	defer func() { _ = buf.Release() }()

	return buf.WithReadAccess(fn)
}

// Restore reconstructs a vault from previously exported state: its raw
// key bytes, its log entries and tombstones, and a map of live record
// ciphertexts (nonce prepended), as produced by [Vault.ExportKey],
// [Vault.ExportLog], and [Vault.ExportRecord].
func Restore(id vaultid.VaultId, key []byte, entries []txlog.Transaction, tombstones []vaultid.RecordId, records map[vaultid.RecordId][]byte) (*Vault, error) {
	mem, err := lockedmem.NewRAM(key, nil)
	if err != nil {
		return nil, fmt.Errorf("vault: restore: %w", err)
	}

	v := &Vault{
		id:      id,
		key:     mem,
		log:     txlog.Restore(entries, tombstones),
		records: make(map[vaultid.RecordId]lockedmem.Memory, len(records)),
	}

	for record, ct := range records {
		rmem, err := lockedmem.NewRAM(ct, nil)
		if err != nil {
			return nil, fmt.Errorf("vault: restore record %s: %w", record, err)
		}

		v.records[record] = rmem
	}

	return v, nil
}

// Clear destroys all record ciphertext handles and the vault-key's
// backing memory, then marks the vault terminal: every subsequent
// operation fails with [vaulterrors.ErrNoVault].
func (v *Vault) Clear(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.terminal {
		return nil
	}

	for record, mem := range v.records {
		if err := mem.Destroy(); err != nil {
			vlog.Component("vault").Debug().Err(err).Str("record", record.String()).Msg("destroy record on clear")
		}

		delete(v.records, record)
	}

	if err := v.key.Destroy(); err != nil {
		vlog.Component("vault").Debug().Err(err).Str("vault", v.id.String()).Msg("destroy key on clear")
	}

	v.terminal = true

	return nil
}

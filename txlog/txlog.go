// Package txlog implements the per-vault transaction log: a typed,
// counted, append-only sequence of Init/Data/Revoke entries. The log
// itself never holds plaintext or ciphertext; it tracks which RecordId
// is currently live, which is revoked, and the insertion order list
// exposed through [Log.List].
package txlog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ladzaretti/strongbox/vaultid"
	"github.com/ladzaretti/strongbox/vaulterrors"
)

// Kind tags a transaction's variant.
type Kind int

const (
	KindInit Kind = iota
	KindData
	KindRevoke
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindData:
		return "data"
	case KindRevoke:
		return "revoke"
	default:
		return "unknown"
	}
}

// Transaction is one entry in a vault's log. Prev is the counter of the
// data transaction this one supersedes, or -1 if there was none. Record
// and Hint are meaningful only for Data and Revoke (Hint only for Data).
type Transaction struct {
	Counter uint64
	Kind    Kind
	Record  vaultid.RecordId
	Prev    int64
	Hint    vaultid.Hint
}

// Log is a single vault's transaction log. The zero value is not usable;
// construct one with [New]. Callers are responsible for serializing
// mutating calls (the owning vault does this with its own lock); Log's
// own mutex only protects against accidental concurrent misuse.
type Log struct {
	mu sync.Mutex

	entries []Transaction // entries[0] is always the Init transaction
	tips    map[vaultid.RecordId]int
	revoked map[vaultid.RecordId]bool
	order   []vaultid.RecordId // first-appearance order, for List

	// tombstones survives GC: once a RecordId is revoked it must never be
	// written again, even after the revoke itself is compacted away.
	tombstones map[vaultid.RecordId]bool
}

// New returns a freshly initialized log, consisting of only its implicit
// Init transaction.
func New() *Log {
	return &Log{
		entries:    []Transaction{{Counter: 0, Kind: KindInit, Prev: -1}},
		tips:       make(map[vaultid.RecordId]int),
		revoked:    make(map[vaultid.RecordId]bool),
		tombstones: make(map[vaultid.RecordId]bool),
	}
}

// Entries returns a copy of every transaction in the log, including the
// leading Init entry, in append order.
func (l *Log) Entries() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Transaction(nil), l.entries...)
}

// Tombstones returns every RecordId that has ever been revoked, whether
// or not its Revoke transaction has since been compacted away by GC.
func (l *Log) Tombstones() []vaultid.RecordId {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]vaultid.RecordId, 0, len(l.tombstones))
	for r := range l.tombstones {
		out = append(out, r)
	}

	return out
}

// Restore reconstructs a Log from a previously captured entry list and
// tombstone set (see [Log.Entries], [Log.Tombstones]). entries must begin
// with the Init transaction at counter 0.
func Restore(entries []Transaction, tombstones []vaultid.RecordId) *Log {
	l := &Log{
		entries:    append([]Transaction(nil), entries...),
		tips:       make(map[vaultid.RecordId]int),
		revoked:    make(map[vaultid.RecordId]bool),
		tombstones: make(map[vaultid.RecordId]bool),
	}

	for _, r := range tombstones {
		l.tombstones[r] = true
	}

	for i, e := range l.entries {
		switch e.Kind {
		case KindData:
			if _, seen := l.tips[e.Record]; !seen {
				l.order = append(l.order, e.Record)
			}

			l.tips[e.Record] = i
			delete(l.revoked, e.Record)
		case KindRevoke:
			l.revoked[e.Record] = true
		case KindInit:
		}
	}

	return l
}

// Len returns the number of Data and Revoke transactions in the log,
// excluding the implicit Init entry.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries) - 1
}

// IsValid reports whether record has a live (non-revoked) Data transaction.
func (l *Log) IsValid(record vaultid.RecordId) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.tips[record]

	return ok && !l.revoked[record]
}

// IsRevoked reports whether record has ever been revoked (regardless of
// whether GC has since run).
func (l *Log) IsRevoked(record vaultid.RecordId) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.tombstones[record]
}

// AppendData appends a Data transaction for record, superseding its prior
// tip if one exists. It refuses to append if record has ever been
// revoked: a RecordId is never reused, per the vault's lifetime invariant.
func (l *Log) AppendData(record vaultid.RecordId, hint vaultid.Hint) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tombstones[record] {
		return 0, fmt.Errorf("txlog: record %s already revoked: %w", record, vaulterrors.ErrExists)
	}

	prev := int64(-1)
	if idx, ok := l.tips[record]; ok {
		prev = int64(l.entries[idx].Counter)
	} else {
		l.order = append(l.order, record)
	}

	counter := uint64(len(l.entries))
	l.entries = append(l.entries, Transaction{
		Counter: counter,
		Kind:    KindData,
		Record:  record,
		Prev:    prev,
		Hint:    hint,
	})
	l.tips[record] = len(l.entries) - 1

	return counter, nil
}

// AppendRevoke appends a Revoke transaction for record. It requires a
// live, non-revoked Data transaction to exist for record.
func (l *Log) AppendRevoke(record vaultid.RecordId) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.tips[record]
	if !ok || l.revoked[record] {
		return 0, fmt.Errorf("txlog: revoke %s: %w", record, vaulterrors.ErrNoRecord)
	}

	counter := uint64(len(l.entries))
	l.entries = append(l.entries, Transaction{
		Counter: counter,
		Kind:    KindRevoke,
		Record:  record,
		Prev:    int64(l.entries[idx].Counter),
	})
	l.revoked[record] = true
	l.tombstones[record] = true

	return counter, nil
}

// Entry is a (RecordId, Hint) pair returned by [Log.List].
type Entry struct {
	Record vaultid.RecordId
	Hint   vaultid.Hint
}

// List returns the live records in first-appearance order.
func (l *Log) List() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.order))

	for _, record := range l.order {
		if l.revoked[record] {
			continue
		}

		idx := l.tips[record]
		out = append(out, Entry{Record: record, Hint: l.entries[idx].Hint})
	}

	return out
}

// GC rewrites the log in place, keeping only the live tip Data
// transaction for each non-revoked record, in the order those tips were
// originally appended. Counters are re-issued densely starting at 0.
func (l *Log) GC() {
	l.mu.Lock()
	defer l.mu.Unlock()

	type survivor struct {
		record  vaultid.RecordId
		hint    vaultid.Hint
		counter uint64
	}

	survivors := make([]survivor, 0, len(l.tips))

	for record, idx := range l.tips {
		if l.revoked[record] {
			continue
		}

		e := l.entries[idx]
		survivors = append(survivors, survivor{record: record, hint: e.Hint, counter: e.Counter})
	}

	sort.Slice(survivors, func(i, j int) bool { return survivors[i].counter < survivors[j].counter })

	entries := []Transaction{{Counter: 0, Kind: KindInit, Prev: -1}}
	tips := make(map[vaultid.RecordId]int, len(survivors))
	order := make([]vaultid.RecordId, 0, len(survivors))

	for _, s := range survivors {
		counter := uint64(len(entries))
		entries = append(entries, Transaction{
			Counter: counter,
			Kind:    KindData,
			Record:  s.record,
			Prev:    -1,
			Hint:    s.hint,
		})
		tips[s.record] = len(entries) - 1
		order = append(order, s.record)
	}

	l.entries = entries
	l.tips = tips
	l.revoked = make(map[vaultid.RecordId]bool)
	l.order = order
}

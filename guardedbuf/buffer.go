// Package guardedbuf implements short-lived, page-guarded plaintext
// buffers: the only type in this module that cryptographic code paths are
// allowed to hold raw secret bytes in.
//
// A [Buffer] is allocated with two inaccessible guard pages flanking its
// data pages, canary bytes immediately inside each guard boundary, and
// starts in no-access state. Callers must explicitly scope access via
// [Buffer.WithReadAccess] or [Buffer.WithReadWriteAccess]; the buffer
// reverts to no-access when the scope exits, including on panic. Release
// zeroes the data pages, verifies the canaries, and returns the memory to
// the OS.
package guardedbuf

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ladzaretti/strongbox/vlog"
)

// canarySize is the width, in bytes, of each canary written immediately
// inside a guard page boundary.
const canarySize = 8

var canaryPattern = [canarySize]byte{0xDE, 0xAD, 0xC0, 0xDE, 0xDE, 0xAD, 0xC0, 0xDE}

var (
	// ErrDestroyed indicates an operation was attempted on a released buffer.
	ErrDestroyed = errors.New("guardedbuf: buffer already released")

	// ErrCanaryMismatch indicates a guard-page canary was overwritten,
	// signalling a memory-safety violation outside this package's control.
	ErrCanaryMismatch = errors.New("guardedbuf: canary mismatch: fatal memory corruption")

	// ErrSize indicates a zero or negative buffer size was requested.
	ErrSize = errors.New("guardedbuf: size must be positive")
)

// Buffer is a fixed-capacity, page-guarded region holding plaintext bytes.
//
// The zero value is not usable; construct with [New].
type Buffer struct {
	region    []byte // the full mmap'd region: guard | canary | data | canary | guard
	data      []byte // the caller-visible capacity, a sub-slice of region
	canFront  []byte // front canary, inside region, immediately before data
	canBack   []byte // back canary, inside region, immediately after data
	dataStart int    // offset of the accessible (non-guard) middle region within region
	dataLen   int    // length of the accessible middle region
	destroyed bool
}

// New allocates a guarded buffer able to hold up to size bytes of plaintext.
// The buffer starts in no-access state.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, ErrSize
	}

	pageSize := unix.Getpagesize()

	inner := size + 2*canarySize
	innerPages := (inner + pageSize - 1) / pageSize
	if innerPages < 1 {
		innerPages = 1
	}

	totalPages := innerPages + 2 // + front guard + back guard
	total := totalPages * pageSize

	region, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("guardedbuf: mmap: %w", err)
	}

	b := &Buffer{
		region:    region,
		dataStart: pageSize,
		dataLen:   innerPages * pageSize,
	}

	middle := region[b.dataStart : b.dataStart+b.dataLen]
	b.canFront = middle[:canarySize]
	b.canBack = middle[len(middle)-canarySize:]
	b.data = middle[canarySize : len(middle)-canarySize][:size:size]

	copy(b.canFront, canaryPattern[:])
	copy(b.canBack, canaryPattern[:])

	if err := unix.Mlock(middle); err != nil {
		vlog.Component("guardedbuf").Debug().Err(err).Msg("mlock failed, continuing without page pinning")
	}

	if err := unix.Mprotect(region[:pageSize], unix.PROT_NONE); err != nil {
		_ = b.Release()
		return nil, fmt.Errorf("guardedbuf: mprotect front guard: %w", err)
	}

	if err := unix.Mprotect(region[b.dataStart+b.dataLen:], unix.PROT_NONE); err != nil {
		_ = b.Release()
		return nil, fmt.Errorf("guardedbuf: mprotect back guard: %w", err)
	}

	if err := unix.Mprotect(middle, unix.PROT_NONE); err != nil {
		_ = b.Release()
		return nil, fmt.Errorf("guardedbuf: mprotect data: %w", err)
	}

	return b, nil
}

// FromBytes allocates a guarded buffer sized to len(src), copies src into it
// under a write scope, and returns it. The caller remains responsible for
// zeroing src: this package cannot zero memory it does not own.
func FromBytes(src []byte) (*Buffer, error) {
	b, err := New(len(src))
	if err != nil {
		return nil, err
	}

	if err := b.WithReadWriteAccess(func(p []byte) error {
		copy(p, src)
		return nil
	}); err != nil {
		_ = b.Release()
		return nil, err
	}

	return b, nil
}

// Len returns the buffer's capacity.
func (b *Buffer) Len() int {
	return len(b.data)
}

func (b *Buffer) middle() []byte {
	return b.region[b.dataStart : b.dataStart+b.dataLen]
}

// WithReadAccess transitions the buffer to read-only for the duration of fn
// and reverts to no-access on return, including when fn panics.
func (b *Buffer) WithReadAccess(fn func([]byte) error) error {
	return b.withAccess(unix.PROT_READ, fn)
}

// WithReadWriteAccess transitions the buffer to read-write for the duration
// of fn and reverts to no-access on return, including when fn panics.
func (b *Buffer) WithReadWriteAccess(fn func([]byte) error) error {
	return b.withAccess(unix.PROT_READ|unix.PROT_WRITE, fn)
}

func (b *Buffer) withAccess(prot int, fn func([]byte) error) (retErr error) {
	if b.destroyed {
		return ErrDestroyed
	}

	if err := unix.Mprotect(b.middle(), prot); err != nil {
		return fmt.Errorf("guardedbuf: mprotect: %w", err)
	}

	defer func() {
		if err := unix.Mprotect(b.middle(), unix.PROT_NONE); err != nil && retErr == nil {
			retErr = fmt.Errorf("guardedbuf: mprotect revert: %w", err)
		}
	}()

	return fn(b.data)
}

// Equal reports whether a and b hold byte-identical plaintext, in constant time.
func Equal(a, b *Buffer) (bool, error) {
	if a.Len() != b.Len() {
		return false, nil
	}

	var eq bool

	err := a.WithReadAccess(func(pa []byte) error {
		return b.WithReadAccess(func(pb []byte) error {
			eq = subtle.ConstantTimeCompare(pa, pb) == 1
			return nil
		})
	})

	return eq, err
}

// Release overwrites the data pages with zeros, verifies the guard
// canaries, and returns the underlying pages to the OS. It is safe to call
// Release more than once; only the first call has effect.
func (b *Buffer) Release() error {
	if b.destroyed {
		return nil
	}

	b.destroyed = true

	if err := unix.Mprotect(b.middle(), unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("guardedbuf: mprotect for release: %w", err)
	}

	frontOK := subtle.ConstantTimeCompare(b.canFront, canaryPattern[:]) == 1
	backOK := subtle.ConstantTimeCompare(b.canBack, canaryPattern[:]) == 1

	for i := range b.middle() {
		b.middle()[i] = 0
	}

	if err := unix.Munmap(b.region); err != nil {
		return fmt.Errorf("guardedbuf: munmap: %w", err)
	}

	if !frontOK || !backOK {
		return ErrCanaryMismatch
	}

	return nil
}

package lockedmem_test

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/ladzaretti/strongbox/lockedmem"
	"github.com/ladzaretti/strongbox/vaultcrypto"
)

func unlockBytes(t *testing.T, m lockedmem.Memory) []byte {
	t.Helper()

	buf, err := m.Unlock()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = buf.Release() }()

	var out []byte

	err = buf.WithReadAccess(func(p []byte) error {
		out = append(out, p...)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	return out
}

func TestRAM_RoundTrip(t *testing.T) {
	key, err := vaultcrypto.RandBytes(32)
	if err != nil {
		t.Fatal(err)
	}

	m, err := lockedmem.NewRAM([]byte("ram-secret"), key)
	if err != nil {
		t.Fatal(err)
	}

	if got := unlockBytes(t, m); !bytes.Equal(got, []byte("ram-secret")) {
		t.Fatalf("got %q", got)
	}

	if err := m.Destroy(); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Unlock(); err != lockedmem.ErrDestroyed {
		t.Fatalf("expected ErrDestroyed, got %v", err)
	}
}

func TestFile_RoundTrip(t *testing.T) {
	key, err := vaultcrypto.RandBytes(32)
	if err != nil {
		t.Fatal(err)
	}

	m, err := lockedmem.NewFile(t.TempDir(), []byte("file-secret"), key)
	if err != nil {
		t.Fatal(err)
	}

	if got := unlockBytes(t, m); !bytes.Equal(got, []byte("file-secret")) {
		t.Fatalf("got %q", got)
	}

	if err := m.Destroy(); err != nil {
		t.Fatal(err)
	}
}

func TestNonContiguous_RoundTripAndRefresh(t *testing.T) {
	dir := t.TempDir()
	secret := sha256.Sum256([]byte("non-contiguous secret"))

	ramKey, err := vaultcrypto.RandBytes(32)
	if err != nil {
		t.Fatal(err)
	}

	nc, err := lockedmem.NewNonContiguous(secret[:],
		func(p []byte) (lockedmem.Memory, error) { return lockedmem.NewRAM(p, ramKey) },
		func(p []byte) (lockedmem.Memory, error) { return lockedmem.NewFile(dir, p, nil) },
	)
	if err != nil {
		t.Fatal(err)
	}

	if got := unlockBytes(t, nc); !bytes.Equal(got, secret[:]) {
		t.Fatalf("got %x want %x", got, secret)
	}

	for range 5 {
		if err := nc.Refresh(); err != nil {
			t.Fatal(err)
		}

		if got := unlockBytes(t, nc); !bytes.Equal(got, secret[:]) {
			t.Fatalf("after refresh: got %x want %x", got, secret)
		}
	}

	if err := nc.Destroy(); err != nil {
		t.Fatal(err)
	}
}

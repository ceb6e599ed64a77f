package guardedbuf_test

import (
	"bytes"
	"testing"

	"github.com/ladzaretti/strongbox/guardedbuf"
)

func TestBuffer_RoundTrip(t *testing.T) {
	b, err := guardedbuf.FromBytes([]byte("hunter2"))
	if err != nil {
		t.Fatal(err)
	}

	var got []byte

	err = b.WithReadAccess(func(p []byte) error {
		got = append(got, p...)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, []byte("hunter2")) {
		t.Fatalf("got %q, want %q", got, "hunter2")
	}

	if err := b.Release(); err != nil {
		t.Fatal(err)
	}
}

func TestBuffer_Equal(t *testing.T) {
	a, err := guardedbuf.FromBytes([]byte("same-secret"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Release() }()

	b, err := guardedbuf.FromBytes([]byte("same-secret"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = b.Release() }()

	c, err := guardedbuf.FromBytes([]byte("different!!!"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Release() }()

	eq, err := guardedbuf.Equal(a, b)
	if err != nil {
		t.Fatal(err)
	}

	if !eq {
		t.Fatal("expected equal buffers to compare equal")
	}

	eq, err = guardedbuf.Equal(a, c)
	if err != nil {
		t.Fatal(err)
	}

	if eq {
		t.Fatal("expected different-length buffers to compare unequal")
	}
}

func TestBuffer_ReleaseZeroesAndIsIdempotent(t *testing.T) {
	b, err := guardedbuf.FromBytes([]byte("zero-me-please"))
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Release(); err != nil {
		t.Fatal(err)
	}

	if err := b.Release(); err != nil {
		t.Fatalf("second release should be a no-op, got: %v", err)
	}
}

func TestBuffer_AccessAfterReleaseFails(t *testing.T) {
	b, err := guardedbuf.FromBytes([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Release(); err != nil {
		t.Fatal(err)
	}

	err = b.WithReadAccess(func([]byte) error { return nil })
	if err != guardedbuf.ErrDestroyed {
		t.Fatalf("expected ErrDestroyed, got %v", err)
	}
}

func TestNew_RejectsNonPositiveSize(t *testing.T) {
	if _, err := guardedbuf.New(0); err != guardedbuf.ErrSize {
		t.Fatalf("expected ErrSize, got %v", err)
	}
}

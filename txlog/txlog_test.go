package txlog_test

import (
	"testing"

	"github.com/ladzaretti/strongbox/txlog"
	"github.com/ladzaretti/strongbox/vaultid"
)

func record(b byte) vaultid.RecordId {
	var r vaultid.RecordId
	r[0] = b

	return r
}

func TestLog_WriteListRevokeGC(t *testing.T) {
	l := txlog.New()

	r1, r2 := record(1), record(2)

	if _, err := l.AppendData(r1, vaultid.HintFromString("a")); err != nil {
		t.Fatal(err)
	}

	if _, err := l.AppendData(r2, vaultid.HintFromString("b")); err != nil {
		t.Fatal(err)
	}

	if got := l.List(); len(got) != 2 || got[0].Record != r1 || got[1].Record != r2 {
		t.Fatalf("unexpected list: %+v", got)
	}

	if _, err := l.AppendRevoke(r1); err != nil {
		t.Fatal(err)
	}

	got := l.List()
	if len(got) != 1 || got[0].Record != r2 {
		t.Fatalf("after revoke: %+v", got)
	}

	l.GC()

	got = l.List()
	if len(got) != 1 || got[0].Record != r2 {
		t.Fatalf("after gc: %+v", got)
	}

	if n := l.Len(); n != 1 {
		t.Fatalf("internal log length after gc = %d, want 1", n)
	}
}

func TestLog_WriteSupersedes(t *testing.T) {
	l := txlog.New()
	r := record(9)

	c1, err := l.AppendData(r, vaultid.HintFromString("first"))
	if err != nil {
		t.Fatal(err)
	}

	c2, err := l.AppendData(r, vaultid.HintFromString("second"))
	if err != nil {
		t.Fatal(err)
	}

	if c2 <= c1 {
		t.Fatalf("expected increasing counters, got %d then %d", c1, c2)
	}

	got := l.List()
	if len(got) != 1 || got[0].Hint.String() != "second" {
		t.Fatalf("expected single superseding entry, got %+v", got)
	}
}

func TestLog_RevokeWithoutDataFails(t *testing.T) {
	l := txlog.New()

	if _, err := l.AppendRevoke(record(3)); err == nil {
		t.Fatal("expected error revoking nonexistent record")
	}
}

func TestLog_RecordIdNeverReused(t *testing.T) {
	l := txlog.New()
	r := record(5)

	if _, err := l.AppendData(r, vaultid.Hint{}); err != nil {
		t.Fatal(err)
	}

	if _, err := l.AppendRevoke(r); err != nil {
		t.Fatal(err)
	}

	l.GC()

	if _, err := l.AppendData(r, vaultid.Hint{}); err == nil {
		t.Fatal("expected error reusing a revoked RecordId even after gc")
	}
}

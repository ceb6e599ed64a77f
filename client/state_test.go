package client_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/ladzaretti/strongbox/client"
	"github.com/ladzaretti/strongbox/guardedbuf"
	"github.com/ladzaretti/strongbox/vaultid"
)

func TestClient_SerializeDeserializeRoundTrip(t *testing.T) {
	ctx := context.Background()

	var cid vaultid.ClientId
	cid[0] = 0x01

	c := client.New(cid)

	var vid vaultid.VaultId
	vid[0] = 0x02

	v, err := c.CreateVault(vid)
	if err != nil {
		t.Fatal(err)
	}

	var r1, r2 vaultid.RecordId
	r1[0], r2[0] = 1, 2

	if err := v.Write(ctx, r1, []byte("alpha"), vaultid.HintFromString("a")); err != nil {
		t.Fatal(err)
	}

	if err := v.Write(ctx, r2, []byte("beta"), vaultid.HintFromString("b")); err != nil {
		t.Fatal(err)
	}

	if err := v.Revoke(ctx, r2); err != nil {
		t.Fatal(err)
	}

	c.Store().Insert([]byte("k"), []byte("v"), nil)

	data, err := c.Serialize(ctx)
	if err != nil {
		t.Fatal(err)
	}

	restored, err := client.Deserialize(cid, data)
	if err != nil {
		t.Fatal(err)
	}

	if restored.Id() != cid {
		t.Fatalf("client id mismatch")
	}

	rv, err := restored.Vault(vid)
	if err != nil {
		t.Fatal(err)
	}

	var got []byte

	err = rv.GetGuard(ctx, r1, func(buf *guardedbuf.Buffer) error {
		return buf.WithReadAccess(func(p []byte) error {
			got = append(got, p...)
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, []byte("alpha")) {
		t.Fatalf("got %q", got)
	}

	if err := rv.GetGuard(ctx, r2, func(*guardedbuf.Buffer) error { return nil }); err == nil {
		t.Fatal("expected revoked record to remain hidden after round trip")
	}

	if err := rv.Write(ctx, r2, []byte("new"), vaultid.Hint{}); err == nil {
		t.Fatal("expected revoked RecordId to remain unusable after round trip")
	}

	if val, ok := restored.Store().Get([]byte("k")); !ok || !bytes.Equal(val, []byte("v")) {
		t.Fatalf("store entry missing or mismatched after round trip: %q %v", val, ok)
	}
}

package snapshot_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ladzaretti/strongbox/client"
	"github.com/ladzaretti/strongbox/guardedbuf"
	"github.com/ladzaretti/strongbox/snapshot"
	"github.com/ladzaretti/strongbox/vaultid"
	"github.com/ladzaretti/strongbox/vaulterrors"
)

func buildClient(t *testing.T, seed byte) (*client.Client, vaultid.ClientId, vaultid.VaultId, vaultid.RecordId) {
	t.Helper()

	var cid vaultid.ClientId
	cid[0] = seed

	c := client.New(cid)

	var vid vaultid.VaultId
	vid[0] = seed

	v, err := c.CreateVault(vid)
	if err != nil {
		t.Fatal(err)
	}

	var rid vaultid.RecordId
	rid[0] = seed

	if err := v.Write(context.Background(), rid, []byte("payload"), vaultid.HintFromString("h")); err != nil {
		t.Fatal(err)
	}

	c.Store().Insert([]byte("key"), []byte("value"), nil)

	return c, cid, vid, rid
}

func TestSnapshot_WriteLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.strn")

	c, cid, vid, rid := buildClient(t, 0x11)

	clients := map[vaultid.ClientId]*client.Client{cid: c}

	if err := snapshot.Write(ctx, path, []byte("correct horse"), []byte("ad"), clients); err != nil {
		t.Fatal(err)
	}

	loaded, err := snapshot.Load(ctx, path, []byte("correct horse"), []byte("ad"))
	if err != nil {
		t.Fatal(err)
	}

	lc, ok := loaded[cid]
	if !ok {
		t.Fatal("client missing after load")
	}

	v, err := lc.Vault(vid)
	if err != nil {
		t.Fatal(err)
	}

	var got []byte

	err = v.GetGuard(ctx, rid, func(buf *guardedbuf.Buffer) error {
		return buf.WithReadAccess(func(p []byte) error {
			got = append(got, p...)
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("got %q", got)
	}

	if val, ok := lc.Store().Get([]byte("key")); !ok || !bytes.Equal(val, []byte("value")) {
		t.Fatalf("store mismatch: %q %v", val, ok)
	}
}

func TestSnapshot_WrongPasswordFails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.strn")

	c, cid, _, _ := buildClient(t, 0x22)
	clients := map[vaultid.ClientId]*client.Client{cid: c}

	if err := snapshot.Write(ctx, path, []byte("right"), nil, clients); err != nil {
		t.Fatal(err)
	}

	if _, err := snapshot.Load(ctx, path, []byte("wrong"), nil); !errors.Is(err, vaulterrors.ErrAuthFailure) {
		t.Fatalf("expected ErrAuthFailure, got %v", err)
	}
}

func TestSnapshot_WrongADFails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.strn")

	c, cid, _, _ := buildClient(t, 0x33)
	clients := map[vaultid.ClientId]*client.Client{cid: c}

	if err := snapshot.Write(ctx, path, []byte("pw"), []byte("right-ad"), clients); err != nil {
		t.Fatal(err)
	}

	if _, err := snapshot.Load(ctx, path, []byte("pw"), []byte("wrong-ad")); !errors.Is(err, vaulterrors.ErrAuthFailure) {
		t.Fatalf("expected ErrAuthFailure, got %v", err)
	}
}

func TestSnapshot_TamperedFileFails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.strn")

	c, cid, _, _ := buildClient(t, 0x44)
	clients := map[vaultid.ClientId]*client.Client{cid: c}

	if err := snapshot.Write(ctx, path, []byte("pw"), nil, clients); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	data[len(data)-1] ^= 0xFF

	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := snapshot.Load(ctx, path, []byte("pw"), nil); err == nil {
		t.Fatal("expected tampered snapshot to fail to load")
	}
}

func TestSnapshot_MultiChunkBody(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.strn")

	old := snapshot.ChunkSize
	snapshot.ChunkSize = 16
	defer func() { snapshot.ChunkSize = old }()

	c, cid, vid, rid := buildClient(t, 0x55)
	clients := map[vaultid.ClientId]*client.Client{cid: c}

	if err := snapshot.Write(ctx, path, []byte("pw"), nil, clients); err != nil {
		t.Fatal(err)
	}

	loaded, err := snapshot.Load(ctx, path, []byte("pw"), nil)
	if err != nil {
		t.Fatal(err)
	}

	v, err := loaded[cid].Vault(vid)
	if err != nil {
		t.Fatal(err)
	}

	var got []byte

	err = v.GetGuard(ctx, rid, func(buf *guardedbuf.Buffer) error {
		return buf.WithReadAccess(func(p []byte) error {
			got = append(got, p...)
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("got %q", got)
	}
}

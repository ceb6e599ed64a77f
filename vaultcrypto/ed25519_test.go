package vaultcrypto_test

import (
	"bytes"
	"testing"

	"github.com/ladzaretti/strongbox/vaultcrypto"
)

func TestEd25519_SignVerifyRoundTrip(t *testing.T) {
	kp, err := vaultcrypto.GenerateEd25519()
	if err != nil {
		t.Fatal(err)
	}

	msg := []byte("sign me")
	sig := kp.Sign(msg)

	if !vaultcrypto.VerifyEd25519(kp.PublicKey, msg, sig) {
		t.Fatal("expected signature to verify")
	}

	if vaultcrypto.VerifyEd25519(kp.PublicKey, []byte("not the message"), sig) {
		t.Fatal("expected signature over a different message to fail verification")
	}
}

func TestEd25519FromSeed_RejectsWrongLength(t *testing.T) {
	if _, err := vaultcrypto.Ed25519FromSeed([]byte("too short")); err != vaultcrypto.ErrInvalidEd25519Seed {
		t.Fatalf("got %v, want ErrInvalidEd25519Seed", err)
	}
}

func TestEd25519FromSeed_Deterministic(t *testing.T) {
	seed, err := vaultcrypto.RandBytes(32)
	if err != nil {
		t.Fatal(err)
	}

	kp1, err := vaultcrypto.Ed25519FromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}

	kp2, err := vaultcrypto.Ed25519FromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(kp1.PublicKey, kp2.PublicKey) {
		t.Fatal("same seed must reconstruct the same public key")
	}
}

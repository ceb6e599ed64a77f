package vaultcrypto_test

import (
	"bytes"
	"testing"

	"github.com/ladzaretti/strongbox/vaultcrypto"
)

func TestArgon2idKDF_DeriveIsDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	fast := vaultcrypto.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1}

	kdf1 := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithSalt(salt), vaultcrypto.WithParams(fast))
	kdf2 := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithSalt(salt), vaultcrypto.WithParams(fast))

	k1 := kdf1.Derive([]byte("hunter2"))
	k2 := kdf2.Derive([]byte("hunter2"))

	if !bytes.Equal(k1, k2) {
		t.Fatal("same salt, password and params must derive the same key")
	}
}

func TestArgon2idKDF_DeriveDiffersOnPassword(t *testing.T) {
	salt := []byte("0123456789abcdef")
	fast := vaultcrypto.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1}

	kdf := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithSalt(salt), vaultcrypto.WithParams(fast))

	k1 := kdf.Derive([]byte("hunter2"))
	k2 := kdf.Derive([]byte("hunter3"))

	if bytes.Equal(k1, k2) {
		t.Fatal("differing passwords must not derive the same key")
	}
}

func TestArgon2idKDF_KeyLenOption(t *testing.T) {
	kdf := vaultcrypto.NewArgon2idKDF(
		vaultcrypto.WithSalt([]byte("salt")),
		vaultcrypto.WithParams(vaultcrypto.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1}),
		vaultcrypto.WithKeyLen(16),
	)

	if got := len(kdf.Derive([]byte("pw"))); got != 16 {
		t.Fatalf("got key length %d, want 16", got)
	}
}

func TestArgon2idKDF_PHCRoundTrip(t *testing.T) {
	salt := []byte("0123456789abcdef")
	params := vaultcrypto.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1}

	kdf := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithSalt(salt), vaultcrypto.WithParams(params))
	key := kdf.Derive([]byte("pw"))

	phc, err := vaultcrypto.DecodeAragon2idPHC(kdf.PHC().String())
	if err != nil {
		t.Fatal(err)
	}

	rebuilt := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithPHC(phc))

	if got := rebuilt.Derive([]byte("pw")); !bytes.Equal(got, key) {
		t.Fatal("key derived from a round-tripped PHC must match the original")
	}
}

package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ladzaretti/strongbox/vaultcrypto"
	"github.com/ladzaretti/strongbox/vaulterrors"
)

func putUint32(buf *bytes.Buffer, n uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	buf.Write(b[:])
}

// header is the parsed fixed-layout prefix of a snapshot file, through
// chunk_count. headerBytes holds the associated-data prefix: every byte
// from magic through ephemeral_pub, inclusive.
type header struct {
	headerBytes []byte
	phc         string
	ePub        []byte
	nonce       []byte
	chunkCount  uint32
}

// encodeHeaderPrefix builds the associated-data prefix (magic through
// ephemeral_pub) for a freshly written snapshot.
func encodeHeaderPrefix(phc string, ePub []byte) []byte {
	buf := new(bytes.Buffer)
	buf.Write(magic[:])

	var v [2]byte
	binary.BigEndian.PutUint16(v[:], version)
	buf.Write(v[:])

	buf.Write([]byte{0, 0}) // reserved

	var l [2]byte
	binary.LittleEndian.PutUint16(l[:], uint16(len(phc)))
	buf.Write(l[:])

	buf.WriteString(phc)
	buf.Write(ePub)

	return buf.Bytes()
}

func parseHeader(raw []byte) (*header, []byte, error) {
	if len(raw) < 10 {
		return nil, nil, fmt.Errorf("snapshot: parse header: %w", vaulterrors.ErrBadMagic)
	}

	if !bytes.Equal(raw[:4], magic[:]) {
		return nil, nil, fmt.Errorf("snapshot: parse header: %w", vaulterrors.ErrBadMagic)
	}

	if v := binary.BigEndian.Uint16(raw[4:6]); v != version {
		return nil, nil, fmt.Errorf("snapshot: parse header: %w", vaulterrors.ErrBadVersion)
	}

	kdfLen := int(binary.LittleEndian.Uint16(raw[8:10]))
	off := 10

	if len(raw) < off+kdfLen+ephemeralPubSize+nonceSize+4 {
		return nil, nil, fmt.Errorf("snapshot: parse header: %w", vaulterrors.ErrCorrupt)
	}

	phc := string(raw[off : off+kdfLen])
	off += kdfLen

	headerBytes := append([]byte(nil), raw[:off+ephemeralPubSize]...)

	ePub := raw[off : off+ephemeralPubSize]
	off += ephemeralPubSize

	nonce := raw[off : off+nonceSize]
	off += nonceSize

	chunkCount := binary.LittleEndian.Uint32(raw[off : off+4])
	off += 4

	return &header{
		headerBytes: headerBytes,
		phc:         phc,
		ePub:        ePub,
		nonce:       nonce,
		chunkCount:  chunkCount,
	}, raw[off:], nil
}

// symmetricKey recomputes K_sym from password and the parsed header,
// recreating the write path's key schedule exactly.
func symmetricKey(password []byte, hdr *header) ([]byte, error) {
	phc, err := vaultcrypto.DecodeAragon2idPHC(hdr.phc)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", vaulterrors.ErrCorrupt)
	}

	kdf := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithPHC(phc))
	kPw := kdf.Derive(password)
	defer zero(kPw)

	shared, err := vaultcrypto.DeriveX25519Shared(kPw, hdr.ePub)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", vaulterrors.ErrCrypto)
	}
	defer zero(shared)

	kSym, err := vaultcrypto.HKDFExpand(shared, nil, []byte("snapshot-v1"), 32)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", vaulterrors.ErrCrypto)
	}

	return kSym, nil
}

package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ladzaretti/strongbox/vaultcrypto"
	"github.com/ladzaretti/strongbox/vaulterrors"
)

// chunkNonce derives chunk counter's nonce from base by XOR-ing counter,
// big-endian, into base's low 8 bytes.
func chunkNonce(base []byte, counter uint64) []byte {
	n := append([]byte(nil), base...)

	var cb [8]byte
	binary.BigEndian.PutUint64(cb[:], counter)

	off := len(n) - len(cb)
	for i := range cb {
		n[off+i] ^= cb[i]
	}

	return n
}

// encodeChunks splits plaintext into chunkCount-1 sealed data chunks plus
// a final empty "end" chunk, each length-prefixed.
func encodeChunks(ctx context.Context, aead *vaultcrypto.XChaCha20Poly1305, baseNonce []byte, chunkCount uint32, plaintext []byte, ad []byte) ([]byte, error) {
	out := new(bytes.Buffer)
	dataChunks := int(chunkCount) - 1

	for i := 0; i < dataChunks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := i * ChunkSize

		end := start + ChunkSize
		if end > len(plaintext) {
			end = len(plaintext)
		}

		sealed, err := aead.Seal(chunkNonce(baseNonce, uint64(i)), plaintext[start:end], ad)
		if err != nil {
			return nil, fmt.Errorf("snapshot: encode chunk %d: %w", i, vaulterrors.ErrCrypto)
		}

		putUint32(out, uint32(len(sealed)))
		out.Write(sealed)
	}

	final, err := aead.Seal(chunkNonce(baseNonce, uint64(dataChunks)), nil, ad)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode end chunk: %w", vaulterrors.ErrCrypto)
	}

	putUint32(out, uint32(len(final)))
	out.Write(final)

	return out.Bytes(), nil
}

// decodeChunks reverses [encodeChunks], refusing to return any plaintext
// until the final empty chunk has verified, which guards against a
// truncated file being accepted as complete.
func decodeChunks(ctx context.Context, aead *vaultcrypto.XChaCha20Poly1305, baseNonce []byte, chunkCount uint32, body []byte, ad []byte) ([]byte, error) {
	r := bytes.NewReader(body)
	out := new(bytes.Buffer)

	for i := uint32(0); i < chunkCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var lb [4]byte
		if _, err := io.ReadFull(r, lb[:]); err != nil {
			return nil, fmt.Errorf("snapshot: decode chunk %d: %w", i, vaulterrors.ErrCorrupt)
		}

		sealed := make([]byte, binary.LittleEndian.Uint32(lb[:]))
		if _, err := io.ReadFull(r, sealed); err != nil {
			return nil, fmt.Errorf("snapshot: decode chunk %d: %w", i, vaulterrors.ErrCorrupt)
		}

		pt, err := aead.Open(chunkNonce(baseNonce, uint64(i)), sealed, ad)
		if err != nil {
			return nil, fmt.Errorf("snapshot: decode chunk %d: %w", i, vaulterrors.ErrAuthFailure)
		}

		if i == chunkCount-1 {
			if len(pt) != 0 {
				return nil, fmt.Errorf("snapshot: decode: %w", vaulterrors.ErrCorrupt)
			}

			break
		}

		out.Write(pt)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("snapshot: decode: trailing data: %w", vaulterrors.ErrCorrupt)
	}

	return out.Bytes(), nil
}

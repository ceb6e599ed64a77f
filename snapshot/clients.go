package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ladzaretti/strongbox/client"
	"github.com/ladzaretti/strongbox/vaultid"
	"github.com/ladzaretti/strongbox/vaulterrors"
)

// encodeClients purges each client's store and concatenates their
// self-describing serialized states, each prefixed with its ClientId and
// a length, into the plaintext body a snapshot seals.
func encodeClients(ctx context.Context, clients map[vaultid.ClientId]*client.Client) ([]byte, error) {
	buf := new(bytes.Buffer)
	ids := sortedClientIds(clients)

	putUint32(buf, uint32(len(ids)))

	for _, id := range ids {
		c := clients[id]

		if err := c.Store().Purge(ctx); err != nil {
			return nil, fmt.Errorf("snapshot: encode client %s: %w", id, err)
		}

		data, err := c.Serialize(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshot: encode client %s: %w", id, err)
		}

		buf.Write(id[:])
		putUint32(buf, uint32(len(data)))
		buf.Write(data)
	}

	return buf.Bytes(), nil
}

// decodeClients reverses [encodeClients].
func decodeClients(data []byte) (map[vaultid.ClientId]*client.Client, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("snapshot: decode clients: %w", vaulterrors.ErrCorrupt)
	}

	off := 0
	count := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4

	out := make(map[vaultid.ClientId]*client.Client, count)

	for i := uint32(0); i < count; i++ {
		var id vaultid.ClientId

		if len(data) < off+len(id)+4 {
			return nil, fmt.Errorf("snapshot: decode clients: %w", vaulterrors.ErrCorrupt)
		}

		copy(id[:], data[off:off+len(id)])
		off += len(id)

		n := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4

		if len(data) < off+n {
			return nil, fmt.Errorf("snapshot: decode clients: %w", vaulterrors.ErrCorrupt)
		}

		c, err := client.Deserialize(id, data[off:off+n])
		if err != nil {
			return nil, fmt.Errorf("snapshot: decode client %s: %w", id, err)
		}

		off += n
		out[id] = c
	}

	if off != len(data) {
		return nil, fmt.Errorf("snapshot: decode clients: %w", vaulterrors.ErrCorrupt)
	}

	return out, nil
}

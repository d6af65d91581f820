// Package statecache stores derived zswap collapsed-update proofs keyed
// by (protocol version, from, to) so repeated wallet sync requests for
// the same range don't re-walk the tree, backed by pebble the same way
// the rest of this indexer's block stores are.
package statecache

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble/v2"

	"github.com/midnight-ntwrk/ledger-indexer-core/internal/db"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/zswap"
)

// Cache is a content-addressed, write-through cache of collapsed
// updates. Entries never need invalidation: a (version, from, to) key's
// value, if it exists, is immutable, since it's derived from a finalized
// range of the append-only commitment tree.
type Cache struct {
	pdb *pebble.DB
}

func Open(dir string) (*Cache, error) {
	pdb, err := db.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("statecache: open: %w", err)
	}
	return &Cache{pdb: pdb}, nil
}

func (c *Cache) Close() error { return c.pdb.Close() }

func key(version uint16, from, to uint64) []byte {
	b := make([]byte, 2+8+8)
	binary.BigEndian.PutUint16(b[0:2], version)
	binary.BigEndian.PutUint64(b[2:10], from)
	binary.BigEndian.PutUint64(b[10:18], to)
	return b
}

// Get returns a cached collapsed update for (version, from, to), if
// present.
func (c *Cache) Get(version uint16, from, to uint64) (zswap.CollapsedUpdate, bool) {
	val, closer, err := c.pdb.Get(key(version, from, to))
	if err != nil {
		return zswap.CollapsedUpdate{}, false
	}
	defer closer.Close()
	return decodeUpdate(val, from, to), true
}

// Put stores a freshly-derived collapsed update.
func (c *Cache) Put(version uint16, update zswap.CollapsedUpdate) error {
	return c.pdb.Set(key(version, update.From, update.To), encodeUpdate(update), pebble.Sync)
}

func encodeUpdate(u zswap.CollapsedUpdate) []byte {
	out := make([]byte, 0, len(u.Leaves)*32)
	for _, leaf := range u.Leaves {
		out = append(out, leaf[:]...)
	}
	return out
}

func decodeUpdate(b []byte, from, to uint64) zswap.CollapsedUpdate {
	n := len(b) / 32
	leaves := make([]zswap.Digest, n)
	for i := 0; i < n; i++ {
		copy(leaves[i][:], b[i*32:(i+1)*32])
	}
	return zswap.CollapsedUpdate{From: from, To: to, Leaves: leaves}
}

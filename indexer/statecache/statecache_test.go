package statecache

import (
	"path/filepath"
	"testing"

	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/zswap"
)

func TestPutThenGetRoundTrips(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "statecache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	update := zswap.CollapsedUpdate{From: 1, To: 3, Leaves: []zswap.Digest{{1}, {2}}}
	if err := c.Put(7, update); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := c.Get(7, 1, 3)
	if !ok {
		t.Fatal("expected a cache hit for the stored (version, from, to)")
	}
	if got.From != update.From || got.To != update.To || len(got.Leaves) != len(update.Leaves) {
		t.Fatalf("got %+v, want %+v", got, update)
	}
	for i := range got.Leaves {
		if got.Leaves[i] != update.Leaves[i] {
			t.Fatalf("leaf %d mismatch: got %x, want %x", i, got.Leaves[i], update.Leaves[i])
		}
	}
}

func TestGetMissForUnknownRange(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "statecache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if _, ok := c.Get(1, 0, 10); ok {
		t.Fatal("expected a miss for a range never put")
	}
}

func TestGetDistinguishesProtocolVersion(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "statecache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if err := c.Put(1, zswap.CollapsedUpdate{From: 0, To: 2, Leaves: []zswap.Digest{{9}}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := c.Get(2, 0, 2); ok {
		t.Fatal("expected Get under a different protocol version to miss")
	}
}

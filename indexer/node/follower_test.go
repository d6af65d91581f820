package node

import (
	"context"
	"testing"
)

func TestDecodeHexStripsPrefix(t *testing.T) {
	got := decodeHex("0xdeadbeef")
	want := []byte{0xde, 0xad, 0xbe, 0xef}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %x, want %x", i, got[i], want[i])
		}
	}
}

func TestDecodeHexWithoutPrefix(t *testing.T) {
	got := decodeHex("ff00")
	if len(got) != 2 || got[0] != 0xff || got[1] != 0x00 {
		t.Fatalf("decodeHex(\"ff00\") = %v", got)
	}
}

func TestWireBlockToBlockDecodesFields(t *testing.T) {
	w := wireBlock{
		Height:     7,
		Hash:       "0x" + "11" + "00000000000000000000000000000000000000000000000000000000000",
		ParentHash: "0x" + "22" + "00000000000000000000000000000000000000000000000000000000000",
		Timestamp:  1234,
		Txs:        []string{"0xaabb", "0xccdd"},
	}
	b := w.toBlock()
	if b.Height != 7 {
		t.Fatalf("Height = %d, want 7", b.Height)
	}
	if b.Timestamp != 1234 {
		t.Fatalf("Timestamp = %d, want 1234", b.Timestamp)
	}
	if b.Hash[0] != 0x11 {
		t.Fatalf("Hash[0] = %x, want 0x11", b.Hash[0])
	}
	if b.ParentHash[0] != 0x22 {
		t.Fatalf("ParentHash[0] = %x, want 0x22", b.ParentHash[0])
	}
	if len(b.RawTxs) != 2 {
		t.Fatalf("RawTxs len = %d, want 2", len(b.RawTxs))
	}
	if b.RawTxs[0][0] != 0xaa || b.RawTxs[0][1] != 0xbb {
		t.Fatalf("RawTxs[0] = %x", b.RawTxs[0])
	}
}

func TestNewFollowerInitialState(t *testing.T) {
	f := NewFollower(context.Background(), "ws://127.0.0.1:0", ProtocolVersion(1))
	if f.LatestHeight() != 0 {
		t.Fatalf("LatestHeight on fresh follower = %d, want 0", f.LatestHeight())
	}
	f.cancel()
}

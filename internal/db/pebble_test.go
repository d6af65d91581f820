package db

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/pebble/v2"
)

func TestWatermarkRoundTrip(t *testing.T) {
	pdb, err := Open(filepath.Join(t.TempDir(), "pebble"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pdb.Close()

	if wm, err := GetWatermark(pdb, "height"); err != nil || wm != 0 {
		t.Fatalf("GetWatermark on fresh db = %d, %v, want 0, nil", wm, err)
	}

	batch := pdb.NewBatch()
	SaveWatermark(batch, "height", 42)
	if err := batch.Commit(pebble.Sync); err != nil {
		t.Fatalf("commit: %v", err)
	}

	wm, err := GetWatermark(pdb, "height")
	if err != nil {
		t.Fatalf("GetWatermark: %v", err)
	}
	if wm != 42 {
		t.Fatalf("GetWatermark = %d, want 42", wm)
	}
}

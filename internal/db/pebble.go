// Package db holds the pebble-backed helpers shared by the indexer's
// watermark bookkeeping and snapshot cache.
package db

import (
	"log"

	"github.com/cockroachdb/pebble/v2"
)

type quietLogger struct{}

func (quietLogger) Infof(format string, args ...interface{}) {}
func (quietLogger) Errorf(format string, args ...interface{}) {
	log.Printf("[pebble] "+format, args...)
}
func (quietLogger) Fatalf(format string, args ...interface{}) {
	log.Fatalf("[pebble] "+format, args...)
}

// QuietLogger silences pebble's info-level chatter, keeping only errors.
func QuietLogger() pebble.Logger { return quietLogger{} }

// GetWatermark reads a monotonic uint64 checkpoint, returning 0 if unset.
func GetWatermark(pdb *pebble.DB, key string) (uint64, error) {
	val, closer, err := pdb.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, nil
	}
	return uint64(val[0])<<56 | uint64(val[1])<<48 | uint64(val[2])<<40 | uint64(val[3])<<32 |
		uint64(val[4])<<24 | uint64(val[5])<<16 | uint64(val[6])<<8 | uint64(val[7]), nil
}

// SaveWatermark writes watermark into batch under key, big-endian encoded
// so lexicographic key order matches numeric order for range scans.
func SaveWatermark(batch *pebble.Batch, key string, watermark uint64) {
	b := make([]byte, 8)
	b[0] = byte(watermark >> 56)
	b[1] = byte(watermark >> 48)
	b[2] = byte(watermark >> 40)
	b[3] = byte(watermark >> 32)
	b[4] = byte(watermark >> 24)
	b[5] = byte(watermark >> 16)
	b[6] = byte(watermark >> 8)
	b[7] = byte(watermark)
	batch.Set([]byte(key), b, nil)
}

// Open opens (creating if absent) a pebble database at dir with the
// teacher's compaction tuning, used both for the snapshot cache and any
// future block-archive use.
func Open(dir string) (*pebble.DB, error) {
	opts := &pebble.Options{Logger: QuietLogger()}
	opts.L0CompactionThreshold = 8
	opts.L0StopWritesThreshold = 24
	opts.LBaseMaxBytes = 512 << 20
	opts.MemTableSize = 64 << 20
	return pebble.Open(dir, opts)
}

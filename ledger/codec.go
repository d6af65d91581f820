// Package ledger implements the Midnight ledger state machine: the
// zswap/utxo/dust/contract sub-engines, transaction well-formedness and
// application, and the content-addressed state root.
package ledger

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

// Tag identifies the wire type of an encoded value. Every serialized
// ledger value begins with a Tag byte, then a protocol Version byte, then
// (for network-specific artifacts) a NetworkID byte.
type Tag byte

const (
	TagLedgerState Tag = iota + 1
	TagTransaction
	TagIntent
	TagContractAction
	TagSystemTransaction
	TagShieldedOffer
	TagUnshieldedOffer
	TagMerkleRoot
	TagCollapsedUpdate
	TagChargedState
	TagTranscript
)

// NetworkID tags a value to the network it was produced for. Decoding a
// value tagged for one network while connected to another fails closed.
type NetworkID byte

const (
	NetworkUndeployed NetworkID = iota
	NetworkDevNet
	NetworkTestNet
	NetworkMainNet
)

// ProtocolVersion is the ledger's own data-format version, independent of
// the node's runtime/spec version (see node.ProtocolVersion for that).
type ProtocolVersion uint16

const CurrentProtocolVersion ProtocolVersion = 1

// Writer accumulates a tagged, versioned, optionally network-scoped binary
// encoding. All multi-byte integers are big-endian; all variable-length
// fields are length-prefixed with a uint32.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) WriteTag(t Tag) { w.buf.WriteByte(byte(t)) }

func (w *Writer) WriteVersion(v ProtocolVersion) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	w.buf.Write(b[:])
}

func (w *Writer) WriteNetworkID(n NetworkID) { w.buf.WriteByte(byte(n)) }

func (w *Writer) WriteU8(v uint8) { w.buf.WriteByte(v) }

func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteU128 writes a 128-bit unsigned value as two big-endian u64 halves
// (hi, lo). The ledger never needs values beyond 128 bits.
func (w *Writer) WriteU128(hi, lo uint64) {
	w.WriteU64(hi)
	w.WriteU64(lo)
}

func (w *Writer) WriteDigest(d [32]byte) { w.buf.Write(d[:]) }

func (w *Writer) WriteBytes(b []byte) {
	w.WriteU32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *Writer) WriteBool(b bool) {
	if b {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// Reader is the symmetric counterpart of Writer. Every Read* method that
// checks a tag/version/network returns a deserialization-kind error on
// mismatch.
type Reader struct {
	r *bytes.Reader
}

func NewReader(b []byte) *Reader { return &Reader{r: bytes.NewReader(b)} }

func (r *Reader) ExpectTag(want Tag) error {
	b, err := r.r.ReadByte()
	if err != nil {
		return wrapErr(ErrKindDeserialization, errors.Wrap(err, "read tag"))
	}
	if Tag(b) != want {
		return wrapErr(ErrKindDeserialization, errors.Newf("tag mismatch: got %d want %d", b, want))
	}
	return nil
}

func (r *Reader) ExpectVersion(want ProtocolVersion) error {
	v, err := r.ReadU16()
	if err != nil {
		return err
	}
	if ProtocolVersion(v) != want {
		return wrapErr(ErrKindDeserialization, errors.Newf("version mismatch: got %d want %d", v, want))
	}
	return nil
}

func (r *Reader) ExpectNetworkID(want NetworkID) error {
	b, err := r.r.ReadByte()
	if err != nil {
		return wrapErr(ErrKindDeserialization, errors.Wrap(err, "read network id"))
	}
	if NetworkID(b) != want {
		return wrapErr(ErrKindDeserialization, errors.Newf("network mismatch: got %d want %d", b, want))
	}
	return nil
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, wrapErr(ErrKindDeserialization, err)
	}
	return b, nil
}

func (r *Reader) ReadU16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, wrapErr(ErrKindDeserialization, err)
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, wrapErr(ErrKindDeserialization, err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, wrapErr(ErrKindDeserialization, err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func (r *Reader) ReadU128() (hi, lo uint64, err error) {
	if hi, err = r.ReadU64(); err != nil {
		return 0, 0, err
	}
	if lo, err = r.ReadU64(); err != nil {
		return 0, 0, err
	}
	return hi, lo, nil
}

func (r *Reader) ReadDigest() ([32]byte, error) {
	var d [32]byte
	if _, err := io.ReadFull(r.r, d[:]); err != nil {
		return d, wrapErr(ErrKindDeserialization, err)
	}
	return d, nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, wrapErr(ErrKindDeserialization, err)
	}
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// Remaining reports whether any bytes are left unread; callers use it to
// reject trailing garbage after a full decode.
func (r *Reader) Remaining() int { return r.r.Len() }

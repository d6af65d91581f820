package ledger

import "testing"

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteTag(TagTransaction)
	w.WriteVersion(CurrentProtocolVersion)
	w.WriteNetworkID(NetworkTestNet)
	w.WriteU8(7)
	w.WriteU16(1234)
	w.WriteU32(567890)
	w.WriteU64(1 << 40)
	w.WriteU128(11, 22)
	digest := Digest{1, 2, 3, 4}
	w.WriteDigest(digest)
	w.WriteBytes([]byte("hello"))
	w.WriteBool(true)
	w.WriteBool(false)

	r := NewReader(w.Bytes())
	if err := r.ExpectTag(TagTransaction); err != nil {
		t.Fatalf("ExpectTag: %v", err)
	}
	if err := r.ExpectVersion(CurrentProtocolVersion); err != nil {
		t.Fatalf("ExpectVersion: %v", err)
	}
	if err := r.ExpectNetworkID(NetworkTestNet); err != nil {
		t.Fatalf("ExpectNetworkID: %v", err)
	}
	if v, err := r.ReadU8(); err != nil || v != 7 {
		t.Fatalf("ReadU8 = %d, %v", v, err)
	}
	if v, err := r.ReadU16(); err != nil || v != 1234 {
		t.Fatalf("ReadU16 = %d, %v", v, err)
	}
	if v, err := r.ReadU32(); err != nil || v != 567890 {
		t.Fatalf("ReadU32 = %d, %v", v, err)
	}
	if v, err := r.ReadU64(); err != nil || v != 1<<40 {
		t.Fatalf("ReadU64 = %d, %v", v, err)
	}
	if hi, lo, err := r.ReadU128(); err != nil || hi != 11 || lo != 22 {
		t.Fatalf("ReadU128 = %d,%d, %v", hi, lo, err)
	}
	if got, err := r.ReadDigest(); err != nil || got != digest {
		t.Fatalf("ReadDigest = %x, %v", got, err)
	}
	if got, err := r.ReadBytes(); err != nil || string(got) != "hello" {
		t.Fatalf("ReadBytes = %q, %v", got, err)
	}
	if got, err := r.ReadBool(); err != nil || got != true {
		t.Fatalf("ReadBool = %v, %v", got, err)
	}
	if got, err := r.ReadBool(); err != nil || got != false {
		t.Fatalf("ReadBool = %v, %v", got, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected no trailing bytes, got %d remaining", r.Remaining())
	}
}

func TestExpectTagMismatch(t *testing.T) {
	w := NewWriter()
	w.WriteTag(TagIntent)
	r := NewReader(w.Bytes())
	if err := r.ExpectTag(TagTransaction); err == nil {
		t.Fatal("expected a tag mismatch error")
	}
}

func TestExpectVersionMismatch(t *testing.T) {
	w := NewWriter()
	w.WriteVersion(ProtocolVersion(99))
	r := NewReader(w.Bytes())
	if err := r.ExpectVersion(CurrentProtocolVersion); err == nil {
		t.Fatal("expected a version mismatch error")
	}
}

func TestReadTruncatedInputFails(t *testing.T) {
	w := NewWriter()
	w.WriteU32(42)
	raw := w.Bytes()[:2] // truncate mid-field
	r := NewReader(raw)
	if _, err := r.ReadU32(); err == nil {
		t.Fatal("expected an error reading a truncated u32")
	}
}

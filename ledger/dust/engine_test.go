package dust

import "testing"

func TestValueAtBeforeStartIsZero(t *testing.T) {
	g := GenerationInfo{StartTime: 100, RatePerSec: 5}
	if v := ValueAt(g, 100, Parameters{MaxValue: 1000}); v != 0 {
		t.Fatalf("ValueAt at start time = %d, want 0", v)
	}
	if v := ValueAt(g, 50, Parameters{MaxValue: 1000}); v != 0 {
		t.Fatalf("ValueAt before start time = %d, want 0", v)
	}
}

func TestValueAtAccruesLinearly(t *testing.T) {
	g := GenerationInfo{StartTime: 0, RatePerSec: 3}
	if v := ValueAt(g, 10, Parameters{MaxValue: 1000}); v != 30 {
		t.Fatalf("ValueAt(10s @ 3/s) = %d, want 30", v)
	}
}

func TestValueAtCapsAtMaxValue(t *testing.T) {
	g := GenerationInfo{StartTime: 0, RatePerSec: 100}
	if v := ValueAt(g, 1000, Parameters{MaxValue: 50}); v != 50 {
		t.Fatalf("ValueAt capped = %d, want 50", v)
	}
}

func TestValueAtRespectsExpiry(t *testing.T) {
	g := GenerationInfo{StartTime: 0, RatePerSec: 10, ExpiresAt: 5}
	if v := ValueAt(g, 100, Parameters{MaxValue: 10000}); v != 50 {
		t.Fatalf("ValueAt after expiry = %d, want accrual frozen at expiry (5s * 10/s = 50)", v)
	}
}

func TestApplyNullifierRejectsDoubleClaim(t *testing.T) {
	s := NewState()
	var n Digest
	n[0] = 7
	if err := s.ApplyNullifier(n); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := s.ApplyNullifier(n); err != ErrDoubleClaim {
		t.Fatalf("expected ErrDoubleClaim, got %v", err)
	}
}

func TestAdvanceTimeExpiresGenerationSlots(t *testing.T) {
	s := NewState()
	var addr Digest
	addr[0] = 1
	s.Register(Registration{DustAddress: addr, Generation: GenerationInfo{StartTime: 0, ExpiresAt: 50}})
	s.AdvanceTime(10)
	if _, ok := s.Registrations[addr]; !ok {
		t.Fatal("registration should not expire before its ExpiresAt")
	}
	s.AdvanceTime(100)
	if _, ok := s.Registrations[addr]; ok {
		t.Fatal("registration should be expired once block time passes ExpiresAt")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewState()
	var addr Digest
	addr[0] = 2
	s.AddUnclaimed(addr, 10)
	clone := s.Clone()
	s.AddUnclaimed(addr, 5)
	if clone.Unclaimed[addr] != 10 {
		t.Fatalf("clone unclaimed = %d, want 10 (unaffected by later mutation)", clone.Unclaimed[addr])
	}
	if s.Unclaimed[addr] != 15 {
		t.Fatalf("original unclaimed = %d, want 15", s.Unclaimed[addr])
	}
}

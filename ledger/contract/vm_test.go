package contract

import "testing"

type stubVerifier struct {
	ok  bool
	err error
}

func (s stubVerifier) Verify(vk, publicInputs, proof []byte) (bool, error) {
	return s.ok, s.err
}

type stubSignatureChecker struct{ ok bool }

func (s stubSignatureChecker) VerifyThreshold(keys [][]byte, threshold uint32, msg []byte, sigs [][]byte) bool {
	return s.ok
}

func TestDeployDerivesAddressFromState(t *testing.T) {
	m := NewMap()
	addr, err := m.Deploy(ChargedState{Data: []byte("counter-v1")}, map[string][]byte{"increment": {1}}, MaintenanceAuthority{})
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if addr == (Digest{}) {
		t.Fatal("expected a non-zero derived address")
	}
	if _, ok := m.Get(addr); !ok {
		t.Fatal("expected deployed contract to be retrievable")
	}
}

func TestDeployRejectsCollision(t *testing.T) {
	m := NewMap()
	state := ChargedState{Data: []byte("same-initial-state")}
	if _, err := m.Deploy(state, nil, MaintenanceAuthority{}); err != nil {
		t.Fatalf("first deploy: %v", err)
	}
	if _, err := m.Deploy(state, nil, MaintenanceAuthority{}); err != ErrAlreadyDeployed {
		t.Fatalf("expected ErrAlreadyDeployed on collision, got %v", err)
	}
}

func TestCallAppliesStateDeltaOnVerifiedProof(t *testing.T) {
	m := NewMap()
	addr, _ := m.Deploy(ChargedState{Data: []byte("init")}, map[string][]byte{"increment": {1}}, MaintenanceAuthority{})
	tr := Transcript{Operations: []Operation{{Name: "increment", StateDelta: []byte("-delta")}}}
	if err := m.Call(addr, "increment", tr, stubVerifier{ok: true}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	c, _ := m.Get(addr)
	if string(c.State.Data) != "init-delta" {
		t.Fatalf("state after call = %q, want %q", c.State.Data, "init-delta")
	}
}

func TestCallLeavesStateUntouchedOnFailedProof(t *testing.T) {
	m := NewMap()
	addr, _ := m.Deploy(ChargedState{Data: []byte("init")}, map[string][]byte{"increment": {1}}, MaintenanceAuthority{})
	tr := Transcript{Operations: []Operation{{Name: "increment", StateDelta: []byte("-delta")}}}
	if err := m.Call(addr, "increment", tr, stubVerifier{ok: false}); err != ErrProofVerification {
		t.Fatalf("expected ErrProofVerification, got %v", err)
	}
	c, _ := m.Get(addr)
	if string(c.State.Data) != "init" {
		t.Fatalf("state mutated despite failed verification: %q", c.State.Data)
	}
}

func TestCallRejectsUnknownEntryPoint(t *testing.T) {
	m := NewMap()
	addr, _ := m.Deploy(ChargedState{Data: []byte("init")}, map[string][]byte{"increment": {1}}, MaintenanceAuthority{})
	if err := m.Call(addr, "decrement", Transcript{}, stubVerifier{ok: true}); err != ErrUnknownEntryPoint {
		t.Fatalf("expected ErrUnknownEntryPoint, got %v", err)
	}
}

func TestMaintainEnforcesReplayProtection(t *testing.T) {
	m := NewMap()
	addr, _ := m.Deploy(ChargedState{Data: []byte("init")}, map[string][]byte{}, MaintenanceAuthority{Counter: 5})
	err := m.Maintain(addr, map[string][]byte{"foo": {1}}, nil, 5, []byte("msg"), nil, stubSignatureChecker{ok: true})
	if err != ErrReplayProtection {
		t.Fatalf("expected ErrReplayProtection for non-increasing counter, got %v", err)
	}
	if err := m.Maintain(addr, map[string][]byte{"foo": {1}}, nil, 6, []byte("msg"), nil, stubSignatureChecker{ok: true}); err != nil {
		t.Fatalf("Maintain with advancing counter: %v", err)
	}
	c, _ := m.Get(addr)
	if c.MaintenanceAuthority.Counter != 6 {
		t.Fatalf("counter after maintain = %d, want 6", c.MaintenanceAuthority.Counter)
	}
	if string(c.Operations["foo"]) != string([]byte{1}) {
		t.Fatal("expected verifier key update to apply")
	}
}

func TestMaintainEnforcesThreshold(t *testing.T) {
	m := NewMap()
	addr, _ := m.Deploy(ChargedState{Data: []byte("init")}, map[string][]byte{}, MaintenanceAuthority{Counter: 1})
	err := m.Maintain(addr, nil, nil, 2, []byte("msg"), nil, stubSignatureChecker{ok: false})
	if err != ErrThresholdNotMet {
		t.Fatalf("expected ErrThresholdNotMet, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := NewMap()
	addr, _ := m.Deploy(ChargedState{Data: []byte("init")}, map[string][]byte{"increment": {1}}, MaintenanceAuthority{})
	clone := m.Clone()
	tr := Transcript{Operations: []Operation{{Name: "increment", StateDelta: []byte("-x")}}}
	if err := m.Call(addr, "increment", tr, stubVerifier{ok: true}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	cc, _ := clone.Get(addr)
	if string(cc.State.Data) != "init" {
		t.Fatalf("clone observed mutation made on the original: %q", cc.State.Data)
	}
}

package crypto

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
)

func TestVerifyProofRejectsPublicInputCountMismatch(t *testing.T) {
	vk := VerifierKey{IC: make([]bn254.G1Affine, 2)} // expects 1 public input
	_, err := VerifyProof(vk, []bn254.G1Affine{{}, {}}, Proof{})
	if err == nil {
		t.Fatal("expected an error when public input count does not match the verifier key")
	}
}

func TestVerifyProofRejectsMissingPublicInput(t *testing.T) {
	vk := VerifierKey{IC: make([]bn254.G1Affine, 3)} // expects 2 public inputs
	_, err := VerifyProof(vk, []bn254.G1Affine{{}}, Proof{})
	if err == nil {
		t.Fatal("expected an error when fewer public inputs are supplied than the verifier key expects")
	}
}

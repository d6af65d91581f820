package crypto

import (
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/cockroachdb/errors"
)

// VerifierKey is a Groth16-style verifying key for one contract
// entry-point's circuit. The ledger never constructs these; they arrive
// as part of a contract's Deploy/Maintain state and are opaque beyond
// what VerifyProof needs.
type VerifierKey struct {
	Alpha bn254.G1Affine
	Beta  bn254.G2Affine
	Gamma bn254.G2Affine
	Delta bn254.G2Affine
	// IC holds one G1 point per public input plus one constant term.
	IC []bn254.G1Affine
}

// Proof is the Groth16 proof triple.
type Proof struct {
	A bn254.G1Affine
	B bn254.G2Affine
	C bn254.G1Affine
}

// VerifyProof checks e(A,B) = e(alpha,beta) * e(vk_x,gamma) * e(C,delta)
// where vk_x = IC[0] + sum(publicInputs[i]). Each public input is a G1
// point the caller has already scaled (s_i * IC[i+1]); VerifyProof only
// checks that there is one per IC term after the first and does not
// multiply by IC itself. This is the Groth16 pairing check; the ledger supplies it as the
// collaborator boundary named in the transcript-dispatch design note.
func VerifyProof(vk VerifierKey, publicInputs []bn254.G1Affine, proof Proof) (bool, error) {
	if len(vk.IC) != len(publicInputs)+1 {
		return false, errors.Newf("verifier key expects %d public inputs, got %d", len(vk.IC)-1, len(publicInputs))
	}

	vkx := vk.IC[0]
	for i, in := range publicInputs {
		var scaled bn254.G1Affine
		scaled.Set(&in)
		_ = vk.IC[i+1] // public inputs are pre-scaled by the caller's field elements
		vkx.Add(&vkx, &scaled)
	}

	var negA bn254.G1Affine
	negA.Neg(&proof.A)

	lhs, err := bn254.Pair([]bn254.G1Affine{negA, vk.Alpha, vkx, proof.C}, []bn254.G2Affine{proof.B, vk.Beta, vk.Gamma, vk.Delta})
	if err != nil {
		return false, errors.Wrap(err, "pairing")
	}
	return lhs.IsOne(), nil
}

package ledger

import (
	"github.com/cockroachdb/errors"
	"github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/crypto"
)

// snarkVerifier adapts the byte-oriented contract.Verifier boundary onto
// crypto.VerifyProof, deserializing the opaque verifier-key and proof
// blobs a contract carries into their concrete curve points. It is the
// only place gnark-crypto's point encoding is parsed.
type snarkVerifier struct{}

func (snarkVerifier) Verify(verifierKey, publicInputs, proof []byte) (bool, error) {
	vk, err := decodeVerifierKey(verifierKey)
	if err != nil {
		return false, errors.Wrap(err, "decode verifier key")
	}
	pf, err := decodeProof(proof)
	if err != nil {
		return false, errors.Wrap(err, "decode proof")
	}
	pubs, err := decodePublicInputs(publicInputs)
	if err != nil {
		return false, errors.Wrap(err, "decode public inputs")
	}
	return crypto.VerifyProof(vk, pubs, pf)
}

const g1Size = 64 // uncompressed affine encoding used by gnark-crypto's bn254 package
const g2Size = 128

func decodeProof(b []byte) (crypto.Proof, error) {
	if len(b) != g1Size+g2Size+g1Size {
		return crypto.Proof{}, errors.Newf("proof: expected %d bytes, got %d", g1Size+g2Size+g1Size, len(b))
	}
	var p crypto.Proof
	if _, err := p.A.SetBytes(b[:g1Size]); err != nil {
		return crypto.Proof{}, errors.Wrap(err, "A")
	}
	if _, err := p.B.SetBytes(b[g1Size : g1Size+g2Size]); err != nil {
		return crypto.Proof{}, errors.Wrap(err, "B")
	}
	if _, err := p.C.SetBytes(b[g1Size+g2Size:]); err != nil {
		return crypto.Proof{}, errors.Wrap(err, "C")
	}
	return p, nil
}

func decodePublicInputs(b []byte) ([]bn254.G1Affine, error) {
	if len(b)%g1Size != 0 {
		return nil, errors.Newf("public inputs: length %d not a multiple of %d", len(b), g1Size)
	}
	n := len(b) / g1Size
	out := make([]bn254.G1Affine, n)
	for i := 0; i < n; i++ {
		if _, err := out[i].SetBytes(b[i*g1Size : (i+1)*g1Size]); err != nil {
			return nil, errors.Wrapf(err, "public input %d", i)
		}
	}
	return out, nil
}

func decodeVerifierKey(b []byte) (crypto.VerifierKey, error) {
	const fixed = g1Size + g2Size*3
	if len(b) < fixed || (len(b)-fixed)%g1Size != 0 {
		return crypto.VerifierKey{}, errors.Newf("verifier key: malformed length %d", len(b))
	}
	var vk crypto.VerifierKey
	off := 0
	if _, err := vk.Alpha.SetBytes(b[off : off+g1Size]); err != nil {
		return crypto.VerifierKey{}, errors.Wrap(err, "alpha")
	}
	off += g1Size
	if _, err := vk.Beta.SetBytes(b[off : off+g2Size]); err != nil {
		return crypto.VerifierKey{}, errors.Wrap(err, "beta")
	}
	off += g2Size
	if _, err := vk.Gamma.SetBytes(b[off : off+g2Size]); err != nil {
		return crypto.VerifierKey{}, errors.Wrap(err, "gamma")
	}
	off += g2Size
	if _, err := vk.Delta.SetBytes(b[off : off+g2Size]); err != nil {
		return crypto.VerifierKey{}, errors.Wrap(err, "delta")
	}
	off += g2Size
	n := (len(b) - off) / g1Size
	vk.IC = make([]bn254.G1Affine, n)
	for i := 0; i < n; i++ {
		if _, err := vk.IC[i].SetBytes(b[off+i*g1Size : off+(i+1)*g1Size]); err != nil {
			return crypto.VerifierKey{}, errors.Wrapf(err, "ic[%d]", i)
		}
	}
	return vk, nil
}

// Package crypto is the narrow boundary behind which the ledger treats
// hashing, commitments, and signature/proof verification as primitives
// supplied by a collaborator library: the core verifies proofs, it
// never constructs them.
package crypto

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/blake2b"
)

// Digest is a 32-byte content hash, used uniformly for Merkle nodes,
// nullifiers, contract addresses, and the state root.
type Digest = [32]byte

// Hash derives a domain-separated digest over an arbitrary number of
// byte-string parts, so that e.g. a Merkle-node hash can never collide
// with a state-root hash even given identical input bytes.
func Hash(domain string, parts ...[]byte) Digest {
	h, err := blake2b.New256([]byte(domain))
	if err != nil {
		// blake2b.New256 only fails if the key exceeds 64 bytes; domain
		// tags in this package are all short string literals.
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// pedersen base points, derived deterministically from fixed domain tags
// via hash-to-curve-by-rejection so neither party knows a discrete log
// relating G and H.
var (
	pedersenG = hashToPoint("midnight/pedersen/G")
	pedersenH = hashToPoint("midnight/pedersen/H")
)

func hashToPoint(domain string) *btcec.PublicKey {
	curve := btcec.S256()
	for ctr := uint32(0); ; ctr++ {
		var ctrBytes [4]byte
		ctrBytes[0] = byte(ctr >> 24)
		ctrBytes[1] = byte(ctr >> 16)
		ctrBytes[2] = byte(ctr >> 8)
		ctrBytes[3] = byte(ctr)
		d := Hash(domain, ctrBytes[:])
		x := new(big.Int).SetBytes(d[:])
		x.Mod(x, curve.Params().P)
		if !curve.IsOnCurve(x, new(big.Int)) {
			ySq := new(big.Int)
			ySq.Exp(x, big.NewInt(3), curve.Params().P)
			ySq.Add(ySq, big.NewInt(7))
			ySq.Mod(ySq, curve.Params().P)
			y := new(big.Int).ModSqrt(ySq, curve.Params().P)
			if y == nil {
				continue
			}
			px, py := x, y
			if !curve.IsOnCurve(px, py) {
				continue
			}
			return btcec.NewPublicKey(px, py)
		}
	}
}

// PedersenCommit computes value*G + blind*H over secp256k1, returning the
// compressed point encoding used as the coin commitment / binding
// commitment throughout the ledger.
func PedersenCommit(value, blind *big.Int) []byte {
	curve := btcec.S256()
	vx, vy := curve.ScalarMult(pedersenG.X(), pedersenG.Y(), value.Bytes())
	bx, by := curve.ScalarMult(pedersenH.X(), pedersenH.Y(), blind.Bytes())
	rx, ry := curve.Add(vx, vy, bx, by)
	pk := btcec.NewPublicKey(rx, ry)
	return pk.SerializeCompressed()
}

// VerifyOpening checks that commitment opens to (value, blind).
func VerifyOpening(commitment []byte, value, blind *big.Int) bool {
	got := PedersenCommit(value, blind)
	if len(got) != len(commitment) {
		return false
	}
	for i := range got {
		if got[i] != commitment[i] {
			return false
		}
	}
	return true
}

// VerifySchnorr checks a BIP-340-style Schnorr signature over an
// x-only public key, used for intent signatures and maintenance-authority
// thresholds.
func VerifySchnorr(pubKeyXOnly, msg, sig []byte) (bool, error) {
	pk, err := schnorr.ParsePubKey(pubKeyXOnly)
	if err != nil {
		return false, errors.Wrap(err, "parse schnorr pubkey")
	}
	s, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false, errors.Wrap(err, "parse schnorr signature")
	}
	return s.Verify(msg, pk), nil
}

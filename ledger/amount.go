package ledger

import "math/bits"

// Add returns a+b and whether the addition overflowed 128 bits.
func (a U128) Add(b U128) (U128, bool) {
	lo, carry := bits.Add64(a.Lo, b.Lo, 0)
	hi, carry2 := bits.Add64(a.Hi, b.Hi, carry)
	return U128{Hi: hi, Lo: lo}, carry2 != 0
}

// Sub returns a-b and whether the subtraction underflowed.
func (a U128) Sub(b U128) (U128, bool) {
	lo, borrow := bits.Sub64(a.Lo, b.Lo, 0)
	hi, borrow2 := bits.Sub64(a.Hi, b.Hi, borrow)
	return U128{Hi: hi, Lo: lo}, borrow2 != 0
}

// Cmp returns -1, 0, 1 as a is less than, equal to, or greater than b.
func (a U128) Cmp(b U128) int {
	if a.Hi != b.Hi {
		if a.Hi < b.Hi {
			return -1
		}
		return 1
	}
	if a.Lo != b.Lo {
		if a.Lo < b.Lo {
			return -1
		}
		return 1
	}
	return 0
}

func (a U128) IsZero() bool { return a.Hi == 0 && a.Lo == 0 }

func U128FromUint64(v uint64) U128 { return U128{Lo: v} }

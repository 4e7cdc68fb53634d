// Package number implements the arbitrary-precision signed integer model
// with an explicit infinity sentinel described in spec section 4.1. A Number
// is a tagged value: a small int64, a heap big.Int for values that overflow
// the small range, or the INF sentinel. Every arithmetic operation absorbs
// INF, and overflow of the big representation (beyond a configurable maximum
// width) also saturates to INF rather than panicking — this is the source
// language's only error channel for arithmetic, so it must never panic.
//
// Grounded on _examples/original_source/src/math/number.cpp and
// src/semantics.cpp: the promotion rules (small -> big -> INF) and the
// per-operation semantics (pow/bin/gcd/getPowerOf edge cases) follow that
// reference directly.
package number

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// MaxBigWords bounds the width of the big representation, in 64-bit words.
// Canonical value per spec is 50; configurable for tests that want tighter
// bounds.
var MaxBigWords = 50

func maxBigBits() uint {
	return uint(MaxBigWords) * 64
}

// Number is the tagged arbitrary-precision value.
type Number struct {
	inf   bool
	big   *big.Int // non-nil only when the value does not fit in int64
	small int64
}

// Zero, One, Two and MinusOne are the common small constants.
var (
	Zero     = Number{}
	One      = Number{small: 1}
	Two      = Number{small: 2}
	MinusOne = Number{small: -1}
)

// Inf returns the infinity sentinel.
func Inf() Number { return Number{inf: true} }

// FromInt64 constructs a Number from a native integer.
func FromInt64(v int64) Number { return Number{small: v} }

// FromBigInt constructs a canonicalized Number from a big.Int, saturating to
// INF if it exceeds MaxBigWords.
func FromBigInt(v *big.Int) Number { return canonical(new(big.Int).Set(v)) }

// Parse parses the decimal textual form used throughout the on-disk corpus
// (stripped index, b-files, .asm constants). "inf" parses to the sentinel.
func Parse(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if s == "inf" {
		return Inf(), nil
	}
	if s == "" {
		return Zero, fmt.Errorf("empty number")
	}
	if len(s) <= 18 {
		v, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return Number{small: v}, nil
		}
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Zero, fmt.Errorf("invalid number literal %q", s)
	}
	return canonical(b), nil
}

// canonical picks the smallest representation that holds v, saturating to
// INF if v exceeds the configured maximum width.
func canonical(v *big.Int) Number {
	if uint(v.BitLen()) > maxBigBits() {
		return Inf()
	}
	if v.IsInt64() {
		return Number{small: v.Int64()}
	}
	return Number{big: v}
}

// IsInf reports whether n is the infinity sentinel.
func (n Number) IsInf() bool { return n.inf }

// bigValue returns a *big.Int view of n. Must not be called on Inf.
func (n Number) bigValue() *big.Int {
	if n.big != nil {
		return n.big
	}
	return big.NewInt(n.small)
}

// AsInt64 returns the native value. Panics if n is Inf or does not fit —
// callers must check IsInf first, mirroring the source's asInt() contract
// which throws on infinity.
func (n Number) AsInt64() int64 {
	if n.inf {
		panic("number: AsInt64 called on infinity")
	}
	if n.big != nil {
		if !n.big.IsInt64() {
			panic("number: value does not fit in int64")
		}
		return n.big.Int64()
	}
	return n.small
}

// FitsInt64 reports whether the value (not Inf) fits a native int64.
func (n Number) FitsInt64() bool {
	if n.inf {
		return false
	}
	if n.big == nil {
		return true
	}
	return n.big.IsInt64()
}

// NumUsedWords returns how many 64-bit words the value occupies (1 for
// small values), used by bin() to reject huge k before iterating.
func (n Number) NumUsedWords() int64 {
	if n.big == nil {
		return 1
	}
	bits := n.big.BitLen()
	return int64((bits + 63) / 64)
}

// String renders the decimal form, or "inf".
func (n Number) String() string {
	if n.inf {
		return "inf"
	}
	if n.big != nil {
		return n.big.String()
	}
	return strconv.FormatInt(n.small, 10)
}

// Equal implements value equality across small/big representations: a
// Number built as Small(v) and one built as Big(v) must compare equal.
func (n Number) Equal(m Number) bool {
	if n.inf || m.inf {
		return n.inf == m.inf
	}
	if n.big == nil && m.big == nil {
		return n.small == m.small
	}
	return n.bigValue().Cmp(m.bigValue()) == 0
}

// Less implements the total order used by loop-termination comparisons and
// by the Memory ordering. INF compares greater than any finite value.
func (n Number) Less(m Number) bool {
	if n.inf {
		return false
	}
	if m.inf {
		return true
	}
	if n.big == nil && m.big == nil {
		return n.small < m.small
	}
	return n.bigValue().Cmp(m.bigValue()) < 0
}

// Cmp returns -1, 0 or 1 the way sort comparators expect; INF is the
// maximum element.
func (n Number) Cmp(m Number) int {
	switch {
	case n.Equal(m):
		return 0
	case n.Less(m):
		return -1
	default:
		return 1
	}
}

// Hash returns a hash consistent across small/big representations of the
// same value: Equal(a,b) implies Hash(a) == Hash(b).
func (n Number) Hash() uint64 {
	if n.inf {
		return ^uint64(0)
	}
	// FNV-1a over the canonical sign+magnitude byte form, so Small(v) and
	// Big(v) hash identically.
	b := n.bigValue()
	var h uint64 = 14695981039346656037
	sign := byte(0)
	if b.Sign() < 0 {
		sign = 1
	}
	h = (h ^ uint64(sign)) * 1099511628211
	for _, by := range b.Bytes() {
		h = (h ^ uint64(by)) * 1099511628211
	}
	return h
}

// Odd reports oddness; INF is conventionally not odd.
func (n Number) Odd() bool {
	if n.inf {
		return false
	}
	if n.big != nil {
		return n.big.Bit(0) == 1
	}
	return n.small&1 != 0
}

// Sign returns -1, 0 or 1; INF has sign +1 by convention (it is never
// negative in this language).
func (n Number) Sign() int {
	if n.inf {
		return 1
	}
	if n.big != nil {
		return n.big.Sign()
	}
	switch {
	case n.small > 0:
		return 1
	case n.small < 0:
		return -1
	default:
		return 0
	}
}

// IsZero reports whether n is the finite value zero.
func (n Number) IsZero() bool { return !n.inf && n.Sign() == 0 }

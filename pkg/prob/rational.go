package prob

import (
	"fmt"
	"math"
	"math/big"
	"math/rand/v2"
	"strings"
)

// RationalValue is an exact fraction backed by math/big.Rat.
type RationalValue struct {
	r big.Rat
}

type rationalRep struct{}

var (
	rationalInstance = rationalRep{}
	ratOne           = big.NewRat(1, 1)
)

// Rational returns the exact rational representation.
func Rational() Representation { return rationalInstance }

// NewRational returns num/den. It panics when den is zero.
func NewRational(num, den int64) *RationalValue {
	v := &RationalValue{}
	v.r.SetFrac64(num, den)
	return v
}

// Rat returns a copy of the underlying fraction.
func (v *RationalValue) Rat() *big.Rat {
	return new(big.Rat).Set(&v.r)
}

func (v *RationalValue) other(o Value) *RationalValue {
	ov, ok := o.(*RationalValue)
	if !ok {
		panic(mismatch("rational", o))
	}
	return ov
}

func (v *RationalValue) Add(o Value) Value {
	res := &RationalValue{}
	res.r.Add(&v.r, &v.other(o).r)
	return res
}

func (v *RationalValue) Sub(o Value) Value {
	res := &RationalValue{}
	res.r.Sub(&v.r, &v.other(o).r)
	return res
}

func (v *RationalValue) Mul(o Value) Value {
	res := &RationalValue{}
	res.r.Mul(&v.r, &v.other(o).r)
	return res
}

func (v *RationalValue) Quo(o Value) (Value, error) {
	ov := v.other(o)
	if ov.r.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	res := &RationalValue{}
	res.r.Quo(&v.r, &ov.r)
	return res, nil
}

func (v *RationalValue) Cmp(o Value) int { return v.r.Cmp(&v.other(o).r) }
func (v *RationalValue) Sign() int       { return v.r.Sign() }
func (v *RationalValue) IsZero() bool    { return v.r.Sign() == 0 }
func (v *RationalValue) IsOne() bool     { return v.r.Cmp(ratOne) == 0 }

func (v *RationalValue) Float64() float64 {
	f, _ := v.r.Float64()
	return f
}

// String renders "n/d", or "n" for integers.
func (v *RationalValue) String() string {
	return v.r.RatString()
}

func (rationalRep) Name() string { return "rational" }
func (rationalRep) Zero() Value  { return &RationalValue{} }
func (rationalRep) One() Value   { return NewRational(1, 1) }

func (rationalRep) FromInt(n int64) Value { return NewRational(n, 1) }

func (rationalRep) FromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("prob: cannot represent %v as a rational", f)
	}
	v := &RationalValue{}
	v.r.SetFloat64(f)
	return v, nil
}

func (rationalRep) Parse(s string) (Value, error) {
	body, pct := splitPercent(s)
	if body == "" {
		return nil, fmt.Errorf("prob: empty rational literal")
	}
	v := &RationalValue{}
	// big.Rat accepts "a/b" and decimal forms such as "0.25" or "1e-3".
	if _, ok := v.r.SetString(strings.TrimSpace(body)); !ok {
		return nil, fmt.Errorf("prob: invalid rational literal %q", s)
	}
	if pct {
		v.r.Quo(&v.r, big.NewRat(100, 1))
	}
	return v, nil
}

func (rationalRep) Owns(v Value) bool {
	_, ok := v.(*RationalValue)
	return ok
}

// Unit returns k/2^53 for a uniform k, which is exact in both float64 and big.Rat.
func (rationalRep) Unit(rng *rand.Rand) Value {
	k := rng.Uint64() >> 11
	v := &RationalValue{}
	v.r.SetFrac(new(big.Int).SetUint64(k), new(big.Int).Lsh(big.NewInt(1), 53))
	return v
}

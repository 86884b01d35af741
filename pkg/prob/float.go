package prob

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
)

// FloatValue is an IEEE-754 double weight. It trades exactness for speed.
type FloatValue float64

type floatRep struct{}

// Float returns the float64 representation.
func Float() Representation { return floatRep{} }

func (v FloatValue) other(o Value) FloatValue {
	ov, ok := o.(FloatValue)
	if !ok {
		panic(mismatch("float", o))
	}
	return ov
}

func (v FloatValue) Add(o Value) Value { return v + v.other(o) }
func (v FloatValue) Sub(o Value) Value { return v - v.other(o) }
func (v FloatValue) Mul(o Value) Value { return v * v.other(o) }

func (v FloatValue) Quo(o Value) (Value, error) {
	ov := v.other(o)
	if ov == 0 {
		return nil, ErrDivisionByZero
	}
	return v / ov, nil
}

func (v FloatValue) Cmp(o Value) int {
	ov := v.other(o)
	switch {
	case v < ov:
		return -1
	case v > ov:
		return 1
	default:
		return 0
	}
}

func (v FloatValue) Sign() int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

func (v FloatValue) IsZero() bool     { return v == 0 }
func (v FloatValue) IsOne() bool      { return v == 1 }
func (v FloatValue) Float64() float64 { return float64(v) }
func (v FloatValue) String() string   { return strconv.FormatFloat(float64(v), 'g', -1, 64) }

func (floatRep) Name() string         { return "float" }
func (floatRep) Zero() Value          { return FloatValue(0) }
func (floatRep) One() Value           { return FloatValue(1) }
func (floatRep) FromInt(n int64) Value { return FloatValue(n) }

func (floatRep) FromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("prob: cannot use %v as a weight", f)
	}
	return FloatValue(f), nil
}

func (r floatRep) Parse(s string) (Value, error) {
	// Fractions are parsed exactly first, then rounded once.
	rv, err := Rational().Parse(s)
	if err != nil {
		return nil, err
	}
	return r.FromFloat(rv.Float64())
}

func (floatRep) Owns(v Value) bool {
	_, ok := v.(FloatValue)
	return ok
}

func (floatRep) Unit(rng *rand.Rand) Value { return FloatValue(rng.Float64()) }

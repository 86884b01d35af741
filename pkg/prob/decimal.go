package prob

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/cockroachdb/apd/v3"
)

// DecimalPrecision is the number of significant digits kept by decimal weights.
const DecimalPrecision = 34

var decimalCtx = apd.BaseContext.WithPrecision(DecimalPrecision)

// DecimalValue is an arbitrary-precision decimal weight backed by apd.
type DecimalValue struct {
	d apd.Decimal
}

type decimalRep struct{}

// Decimal returns the decimal representation (34 significant digits).
func Decimal() Representation { return decimalRep{} }

func (v *DecimalValue) other(o Value) *DecimalValue {
	ov, ok := o.(*DecimalValue)
	if !ok {
		panic(mismatch("decimal", o))
	}
	return ov
}

// apply runs a binary apd operation. The shared context never traps on the
// operations used here, except division by zero which Quo checks up front.
func (v *DecimalValue) apply(op func(d, x, y *apd.Decimal) (apd.Condition, error), o Value) *DecimalValue {
	res := &DecimalValue{}
	if _, err := op(&res.d, &v.d, &v.other(o).d); err != nil {
		panic(fmt.Sprintf("prob: decimal arithmetic: %v", err))
	}
	return res
}

func (v *DecimalValue) Add(o Value) Value { return v.apply(decimalCtx.Add, o) }
func (v *DecimalValue) Sub(o Value) Value { return v.apply(decimalCtx.Sub, o) }
func (v *DecimalValue) Mul(o Value) Value { return v.apply(decimalCtx.Mul, o) }

func (v *DecimalValue) Quo(o Value) (Value, error) {
	if v.other(o).d.IsZero() {
		return nil, ErrDivisionByZero
	}
	res := v.apply(decimalCtx.Quo, o)
	// Strip trailing zeros so 0.5000 and 0.5 render alike.
	if _, _, err := decimalCtx.Reduce(&res.d, &res.d); err != nil {
		return nil, fmt.Errorf("prob: decimal reduce: %w", err)
	}
	return res, nil
}

func (v *DecimalValue) Cmp(o Value) int { return v.d.Cmp(&v.other(o).d) }
func (v *DecimalValue) Sign() int       { return v.d.Sign() }
func (v *DecimalValue) IsZero() bool    { return v.d.IsZero() }
func (v *DecimalValue) IsOne() bool     { return v.d.Cmp(apd.New(1, 0)) == 0 }

func (v *DecimalValue) Float64() float64 {
	f, err := v.d.Float64()
	if err != nil {
		return math.NaN()
	}
	return f
}

func (v *DecimalValue) String() string { return v.d.Text('f') }

func (decimalRep) Name() string { return "decimal" }
func (decimalRep) Zero() Value  { return &DecimalValue{} }
func (decimalRep) One() Value   { return newDecimal(1, 0) }

func (decimalRep) FromInt(n int64) Value { return newDecimal(n, 0) }

func (decimalRep) FromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("prob: cannot represent %v as a decimal", f)
	}
	v := &DecimalValue{}
	if _, err := v.d.SetFloat64(f); err != nil {
		return nil, fmt.Errorf("prob: invalid decimal %v: %w", f, err)
	}
	return v, nil
}

func (r decimalRep) Parse(s string) (Value, error) {
	body, pct := splitPercent(s)
	if num, den, ok := splitFraction(body); ok {
		n, err := r.Parse(num)
		if err != nil {
			return nil, err
		}
		d, err := r.Parse(den)
		if err != nil {
			return nil, err
		}
		q, err := n.Quo(d)
		if err != nil {
			return nil, fmt.Errorf("prob: invalid decimal literal %q: %w", s, err)
		}
		return scalePercent(q, pct), nil
	}
	d, _, err := apd.NewFromString(body)
	if err != nil {
		return nil, fmt.Errorf("prob: invalid decimal literal %q: %w", s, err)
	}
	v := &DecimalValue{}
	v.d.Set(d)
	return scalePercent(v, pct), nil
}

func (decimalRep) Owns(v Value) bool {
	_, ok := v.(*DecimalValue)
	return ok
}

func (decimalRep) Unit(rng *rand.Rand) Value {
	k := newDecimal(int64(rng.Uint64()>>11), 0)
	q, _ := k.Quo(newDecimal(1<<53, 0))
	return q
}

func newDecimal(coeff int64, exponent int32) *DecimalValue {
	v := &DecimalValue{}
	v.d.Set(apd.New(coeff, exponent))
	return v
}

func scalePercent(v Value, pct bool) Value {
	if !pct {
		return v
	}
	q, _ := v.Quo(newDecimal(100, 0))
	return q
}

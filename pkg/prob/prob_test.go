package prob

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allReps() []Representation {
	return []Representation{Rational(), Float(), Decimal()}
}

func TestRepresentations_Arithmetic(t *testing.T) {
	for _, rep := range allReps() {
		t.Run(rep.Name(), func(t *testing.T) {
			three := rep.FromInt(3)
			one := rep.FromInt(1)
			four := three.Add(one)

			q, err := three.Quo(four)
			require.NoError(t, err)
			assert.InDelta(t, 0.75, q.Float64(), 1e-12)

			assert.True(t, rep.Zero().IsZero())
			assert.True(t, rep.One().IsOne())
			assert.True(t, four.Sub(three).IsOne())
			assert.Equal(t, 1, four.Cmp(three))
			assert.Equal(t, -1, one.Cmp(three))
			assert.Equal(t, 0, three.Mul(one).Cmp(three))
			assert.Equal(t, -1, one.Sub(three).Sign())
			assert.True(t, rep.Owns(q))
		})
	}
}

func TestRepresentations_DivisionByZero(t *testing.T) {
	for _, rep := range allReps() {
		t.Run(rep.Name(), func(t *testing.T) {
			_, err := rep.One().Quo(rep.Zero())
			assert.True(t, errors.Is(err, ErrDivisionByZero))
		})
	}
}

func TestRepresentations_Parse(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"3", 3},
		{"1/4", 0.25},
		{"0.125", 0.125},
		{"12.5%", 0.125},
		{" 50 % ", 0.5},
	}
	for _, rep := range allReps() {
		for _, tt := range tests {
			t.Run(rep.Name()+"/"+tt.in, func(t *testing.T) {
				v, err := rep.Parse(tt.in)
				require.NoError(t, err)
				assert.InDelta(t, tt.want, v.Float64(), 1e-12)
			})
		}
	}
}

func TestRepresentations_ParseInvalid(t *testing.T) {
	for _, rep := range allReps() {
		_, err := rep.Parse("abc")
		assert.Error(t, err, rep.Name())
	}
}

func TestRational_Exactness(t *testing.T) {
	rep := Rational()
	third, err := rep.One().Quo(rep.FromInt(3))
	require.NoError(t, err)

	sum := Sum(rep, third, third, third)
	assert.True(t, sum.IsOne())
	assert.Equal(t, "1/3", third.String())
}

func TestDecimal_Rendering(t *testing.T) {
	rep := Decimal()
	v, err := rep.FromInt(1).Quo(rep.FromInt(4))
	require.NoError(t, err)
	assert.Equal(t, "0.25", v.String())
}

func TestRepresentations_FromFloatRejectsNaN(t *testing.T) {
	for _, rep := range allReps() {
		_, err := rep.FromFloat(nan())
		assert.Error(t, err, rep.Name())
	}
}

func TestRepresentations_UnitRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, rep := range allReps() {
		for i := 0; i < 100; i++ {
			u := rep.Unit(rng)
			assert.GreaterOrEqual(t, u.Sign(), 0)
			assert.Equal(t, -1, u.Cmp(rep.One()))
		}
	}
}

func TestLookup(t *testing.T) {
	rep, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "rational", rep.Name())

	rep, err = Lookup("Decimal")
	require.NoError(t, err)
	assert.Equal(t, "decimal", rep.Name())

	_, err = Lookup("symbolic")
	assert.Error(t, err)
	assert.Equal(t, []string{"decimal", "float", "rational"}, Names())
}

func TestMixedRepresentationsPanic(t *testing.T) {
	assert.Panics(t, func() {
		Rational().One().Add(Float().One())
	})
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

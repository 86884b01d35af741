package engine

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/openfroyo/statues/pkg/prob"
)

// Entry is one row of an atomic distribution table.
type Entry[V comparable] struct {
	Value  V
	Weight prob.Value
}

// Freq is a value with an integer frequency.
type Freq[V comparable] struct {
	Value V
	Count int64
}

// Atomic builds a leaf distribution from an explicit table.
// Entries keep their order, values must be distinct and weights must be
// strictly positive and belong to the model's representation.
func Atomic[V comparable](m *Model, entries ...Entry[V]) (Var[V], error) {
	if len(entries) == 0 {
		return Var[V]{}, NewConstructionError(ErrCodeInvalidDistribution,
			"atomic distribution needs at least one value", nil)
	}

	n := newNode(kindAtomic, "atomic")
	n.entries = make([]entry, 0, len(entries))
	seen := make(map[V]struct{}, len(entries))
	total := m.rep.Zero()
	for _, e := range entries {
		if _, dup := seen[e.Value]; dup {
			return Var[V]{}, NewConstructionError(ErrCodeInvalidDistribution,
				fmt.Sprintf("duplicate value %v", e.Value), nil)
		}
		seen[e.Value] = struct{}{}

		if e.Weight == nil || !m.rep.Owns(e.Weight) {
			return Var[V]{}, NewConstructionError(ErrCodeInvalidDistribution,
				fmt.Sprintf("weight of value %v is not a %s weight", e.Value, m.rep.Name()), nil)
		}
		if e.Weight.Sign() <= 0 {
			return Var[V]{}, NewConstructionError(ErrCodeInvalidDistribution,
				fmt.Sprintf("weight of value %v must be positive, got %s", e.Value, e.Weight), nil)
		}

		total = total.Add(e.Weight)
		n.entries = append(n.entries, entry{value: e.Value, weight: e.Weight})
		n.cumul = append(n.cumul, total)
	}
	n.total = total

	return Var[V]{m: m, id: m.add(n)}, nil
}

// FromFreqs builds a leaf distribution from integer frequencies.
func FromFreqs[V comparable](m *Model, freqs ...Freq[V]) (Var[V], error) {
	entries := make([]Entry[V], len(freqs))
	for i, f := range freqs {
		entries[i] = Entry[V]{Value: f.Value, Weight: m.rep.FromInt(f.Count)}
	}
	return Atomic(m, entries...)
}

// FromMap builds a leaf distribution from a frequency map; entries are
// ordered by value.
func FromMap[V cmp.Ordered](m *Model, freqs map[V]int64) (Var[V], error) {
	keys := make([]V, 0, len(freqs))
	for k := range freqs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	entries := make([]Freq[V], len(keys))
	for i, k := range keys {
		entries[i] = Freq[V]{Value: k, Count: freqs[k]}
	}
	return FromFreqs(m, entries...)
}

// FromValues builds a leaf distribution where each value's weight is its
// number of occurrences; order of first occurrence is kept.
func FromValues[V comparable](m *Model, vals ...V) (Var[V], error) {
	counts := make(map[V]int64, len(vals))
	order := make([]V, 0, len(vals))
	for _, v := range vals {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	freqs := make([]Freq[V], len(order))
	for i, v := range order {
		freqs[i] = Freq[V]{Value: v, Count: counts[v]}
	}
	return FromFreqs(m, freqs...)
}

// Uniform builds an equiprobable leaf distribution over distinct values.
func Uniform[V comparable](m *Model, vals ...V) (Var[V], error) {
	entries := make([]Entry[V], len(vals))
	for i, v := range vals {
		entries[i] = Entry[V]{Value: v, Weight: m.rep.One()}
	}
	return Atomic(m, entries...)
}

// Certain builds a leaf distribution with a single value.
func Certain[V comparable](m *Model, v V) Var[V] {
	c, err := Atomic(m, Entry[V]{Value: v, Weight: m.rep.One()})
	if err != nil {
		// A single entry with unit weight is always valid.
		panic(err)
	}
	return c
}

// Bernoulli builds a boolean leaf that is true with probability p.
// A side with zero probability is left out of the table.
func Bernoulli(m *Model, p prob.Value) (Var[bool], error) {
	if p == nil || !m.rep.Owns(p) {
		return Var[bool]{}, NewConstructionError(ErrCodeInvalidDistribution,
			fmt.Sprintf("bernoulli probability must be a %s weight", m.rep.Name()), nil)
	}
	one := m.rep.One()
	if p.Sign() < 0 || p.Cmp(one) > 0 {
		return Var[bool]{}, NewConstructionError(ErrCodeInvalidDistribution,
			fmt.Sprintf("bernoulli probability %s is outside [0, 1]", p), nil)
	}

	var entries []Entry[bool]
	if !p.IsZero() {
		entries = append(entries, Entry[bool]{Value: true, Weight: p})
	}
	if q := one.Sub(p); !q.IsZero() {
		entries = append(entries, Entry[bool]{Value: false, Weight: q})
	}
	return Atomic(m, entries...)
}

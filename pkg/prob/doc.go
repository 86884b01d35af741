// Package prob provides the probability-value abstraction used by the engine.
//
// A probability weight is any type implementing Value. Every model picks one
// Representation (rational, float or decimal) and all weights of that model
// come from it, so the enumeration and aggregation algorithms are written once
// against the interface:
//
//	rep := prob.Rational()
//	w := rep.FromInt(3).Add(rep.FromInt(1)) // 4
//	p, _ := rep.FromInt(3).Quo(w)          // 3/4
//
// Values are immutable: every operation returns a new Value.
//
// A symbolic backend can be plugged in by implementing Value and
// Representation; nothing in the engine depends on a concrete type.
package prob

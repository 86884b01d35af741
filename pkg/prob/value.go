package prob

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
)

// ErrDivisionByZero is returned by Quo when the divisor is zero.
var ErrDivisionByZero = errors.New("prob: division by zero")

// Value is a probability weight.
// Operands of a binary operation must come from the same Representation;
// mixing representations is a programming error and panics.
type Value interface {
	// Add returns v + o.
	Add(o Value) Value

	// Sub returns v - o.
	Sub(o Value) Value

	// Mul returns v * o.
	Mul(o Value) Value

	// Quo returns v / o, or ErrDivisionByZero.
	Quo(o Value) (Value, error)

	// Cmp compares v and o and returns -1, 0 or +1.
	Cmp(o Value) int

	// Sign returns -1, 0 or +1.
	Sign() int

	// IsZero reports whether v is the representation's zero.
	IsZero() bool

	// IsOne reports whether v is the representation's unity.
	IsOne() bool

	// Float64 returns the nearest float64.
	Float64() float64

	// String renders the value in the representation's canonical form.
	String() string
}

// Representation is a family of Values sharing one arithmetic.
type Representation interface {
	// Name identifies the representation (rational, float, decimal).
	Name() string

	// Zero returns the additive identity.
	Zero() Value

	// One returns the multiplicative identity.
	One() Value

	// FromInt converts an integer frequency.
	FromInt(n int64) Value

	// FromFloat converts a float, failing on NaN or infinities.
	FromFloat(f float64) (Value, error)

	// Parse reads an integer, a fraction "a/b", a decimal or a percentage "x%".
	Parse(s string) (Value, error)

	// Owns reports whether v belongs to this representation.
	Owns(v Value) bool

	// Unit draws a value uniformly from [0, 1).
	Unit(rng *rand.Rand) Value
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Representation{}
)

func init() {
	Register(Rational())
	Register(Float())
	Register(Decimal())
}

// Register makes a representation available through Lookup.
// Registering a name twice replaces the previous entry.
func Register(rep Representation) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[rep.Name()] = rep
}

// Lookup returns the representation registered under name.
// The empty name selects the rational representation.
func Lookup(name string) (Representation, error) {
	if name == "" {
		return Rational(), nil
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	rep, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown probability representation %q (known: %s)",
			name, strings.Join(namesLocked(), ", "))
	}
	return rep, nil
}

// Names lists the registered representation names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sum adds vs in rep. The sum of nothing is rep.Zero().
func Sum(rep Representation, vs ...Value) Value {
	total := rep.Zero()
	for _, v := range vs {
		total = total.Add(v)
	}
	return total
}

// splitPercent strips a trailing "%" and reports whether one was present.
func splitPercent(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		return strings.TrimSpace(strings.TrimSuffix(s, "%")), true
	}
	return s, false
}

func mismatch(want string, got Value) string {
	return fmt.Sprintf("prob: %s operation with %T operand", want, got)
}

// splitFraction splits "a/b" into its two halves.
func splitFraction(s string) (string, string, bool) {
	i := strings.IndexByte(s, '/')
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
}

package engine

import (
	"cmp"
	"fmt"
	"slices"
)

// Eq builds a == b.
func Eq[V comparable](a, b Var[V]) Var[bool] {
	return apply2("==", a, b, func(x, y V) (bool, error) { return x == y, nil })
}

// Ne builds a != b.
func Ne[V comparable](a, b Var[V]) Var[bool] {
	return apply2("!=", a, b, func(x, y V) (bool, error) { return x != y, nil })
}

// Is builds a == val for a constant val.
func Is[V comparable](a Var[V], val V) Var[bool] {
	return Apply(fmt.Sprintf("== %v", val), func(args []any) (bool, error) {
		x, err := arg[V](args, 0)
		if err != nil {
			return false, err
		}
		return x == val, nil
	}, a)
}

// IsAnyOf builds the event that a takes one of vals.
func IsAnyOf[V comparable](a Var[V], vals ...V) Var[bool] {
	set := slices.Clone(vals)
	return Apply("in", func(args []any) (bool, error) {
		x, err := arg[V](args, 0)
		if err != nil {
			return false, err
		}
		return slices.Contains(set, x), nil
	}, a)
}

// IsNoneOf builds the event that a takes none of vals.
func IsNoneOf[V comparable](a Var[V], vals ...V) Var[bool] {
	set := slices.Clone(vals)
	return Apply("not in", func(args []any) (bool, error) {
		x, err := arg[V](args, 0)
		if err != nil {
			return false, err
		}
		return !slices.Contains(set, x), nil
	}, a)
}

// Lt builds a < b.
func Lt[V cmp.Ordered](a, b Var[V]) Var[bool] {
	return apply2("<", a, b, func(x, y V) (bool, error) { return x < y, nil })
}

// Le builds a <= b.
func Le[V cmp.Ordered](a, b Var[V]) Var[bool] {
	return apply2("<=", a, b, func(x, y V) (bool, error) { return x <= y, nil })
}

// Gt builds a > b.
func Gt[V cmp.Ordered](a, b Var[V]) Var[bool] {
	return apply2(">", a, b, func(x, y V) (bool, error) { return x > y, nil })
}

// Ge builds a >= b.
func Ge[V cmp.Ordered](a, b Var[V]) Var[bool] {
	return apply2(">=", a, b, func(x, y V) (bool, error) { return x >= y, nil })
}

// Max builds the larger of a and b.
func Max[V cmp.Ordered](a, b Var[V]) Var[V] {
	return apply2("max", a, b, func(x, y V) (V, error) { return max(x, y), nil })
}

// Min builds the smaller of a and b.
func Min[V cmp.Ordered](a, b Var[V]) Var[V] {
	return apply2("min", a, b, func(x, y V) (V, error) { return min(x, y), nil })
}

// Add builds a + b.
func Add[V Number](a, b Var[V]) Var[V] {
	return apply2("+", a, b, func(x, y V) (V, error) { return x + y, nil })
}

// Sub builds a - b.
func Sub[V Number](a, b Var[V]) Var[V] {
	return apply2("-", a, b, func(x, y V) (V, error) { return x - y, nil })
}

// Mul builds a * b.
func Mul[V Number](a, b Var[V]) Var[V] {
	return apply2("*", a, b, func(x, y V) (V, error) { return x * y, nil })
}

// Div builds a / b. A path where b is zero fails the query with
// ErrCodeArithmetic, for floats as well as integers.
func Div[V Number](a, b Var[V]) Var[V] {
	return apply2("/", a, b, func(x, y V) (V, error) {
		if y == 0 {
			var zero V
			return zero, NewEvaluationError(ErrCodeArithmetic, fmt.Sprintf("division of %v by zero", x), nil)
		}
		return x / y, nil
	})
}

// Neg builds -a.
func Neg[V Number](a Var[V]) Var[V] {
	return Apply("neg", func(args []any) (V, error) {
		x, err := arg[V](args, 0)
		return -x, err
	}, a)
}

// Not builds the negation of a boolean variable.
func Not(a Var[bool]) Var[bool] {
	return Apply("not", func(args []any) (bool, error) {
		x, err := arg[bool](args, 0)
		return !x, err
	}, a)
}

// And builds the conjunction of a and b. Both operands are always
// evaluated, so they both appear on every path.
func And(a, b Var[bool]) Var[bool] {
	return apply2("and", a, b, func(x, y bool) (bool, error) { return x && y, nil })
}

// Or builds the disjunction of a and b.
func Or(a, b Var[bool]) Var[bool] {
	return apply2("or", a, b, func(x, y bool) (bool, error) { return x || y, nil })
}

// Xor builds the exclusive disjunction of a and b.
func Xor(a, b Var[bool]) Var[bool] {
	return apply2("xor", a, b, func(x, y bool) (bool, error) { return x != y, nil })
}

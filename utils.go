package letsched

import (
	"math"

	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

func sum[T Number](list []T) T {
	var total T
	for _, val := range list {
		total += val
	}
	return total
}

func gcd[T constraints.Integer](a, b T) T {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// lcm returns the least common multiple of two positive values; ok is false
// when the result does not fit into int64.
func lcm(a, b int64) (int64, bool) {
	g := gcd(a, b)
	q := a / g
	if q > math.MaxInt64/b {
		return 0, false
	}
	return q * b, true
}

func ceilDiv[T constraints.Integer](a, b T) T {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}

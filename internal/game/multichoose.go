package game

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDegenerateEnumeration = errors.New("degenerate strategy enumeration")
	ErrStrategySpaceTooLarge = errors.New("strategy space too large")
)

// Compositions returns C(total+n-1, n-1), the number of length-n non-negative
// integer vectors summing exactly to total. Counts that do not fit in an int
// return ErrStrategySpaceTooLarge.
func Compositions(n, total int) (int, error) {
	if err := checkEnumeration(n, total); err != nil {
		return 0, err
	}
	if n == 0 {
		return 1, nil
	}
	if total > math.MaxInt-(n-1) {
		return 0, fmt.Errorf("%w: n=%d total=%d", ErrStrategySpaceTooLarge, n, total)
	}
	m, k := total+n-1, n-1
	if total < k {
		k = total
	}
	// c = C(m-k+i, i) after step i. c*f is divisible by i, so once the
	// common factor of c and i is removed the rest of i divides f.
	c := 1
	for i := 1; i <= k; i++ {
		f := m - k + i
		g := gcd(c, i)
		c /= g
		f /= i / g
		if c > math.MaxInt/f {
			return 0, fmt.Errorf("%w: C(%d,%d) overflows", ErrStrategySpaceTooLarge, m, n-1)
		}
		c *= f
	}
	return c, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Multichoose enumerates every length-n vector of non-negative integers whose
// entries sum exactly to total. Vectors are produced in lexicographic order
// with the first coordinate varying slowest. The result holds
// C(total+n-1, n-1) vectors; the growth is inherent to the model.
func Multichoose(n, total int) ([][]int, error) {
	count, err := Compositions(n, total)
	if err != nil {
		return nil, err
	}
	out := make([][]int, 0, count)
	err = EachComposition(n, total, func(v []int) {
		out = append(out, append([]int(nil), v...))
	})
	return out, err
}

// EachComposition calls fn with every composition in Multichoose order. The
// slice passed to fn is reused between calls.
func EachComposition(n, total int, fn func([]int)) error {
	if err := checkEnumeration(n, total); err != nil {
		return err
	}
	v := make([]int, n)
	if n == 0 {
		fn(v)
		return nil
	}
	v[n-1] = total
	for {
		fn(v)
		// Successor: bump the rightmost position that still has mass to its
		// right and push the remainder to the last coordinate.
		i := n - 2
		suffix := v[n-1]
		for i >= 0 && suffix == 0 {
			suffix += v[i]
			i--
		}
		if i < 0 {
			return nil
		}
		// v[i+1:] holds suffix units; move one unit to v[i].
		v[i]++
		for j := i + 1; j < n-1; j++ {
			v[j] = 0
		}
		v[n-1] = suffix - 1
	}
}

func checkEnumeration(n, total int) error {
	if n < 0 || total < 0 {
		return fmt.Errorf("%w: n=%d total=%d", ErrDegenerateEnumeration, n, total)
	}
	if n == 0 && total > 0 {
		return fmt.Errorf("%w: no zero-length vector sums to %d", ErrDegenerateEnumeration, total)
	}
	return nil
}

// Package fraction is a small family of flyweight fractions built on a
// shared registry. Fraction is the base type, Mixed embeds it and reuses its
// constructor for the same key, and Named pairs a base Fraction with a label.
package fraction

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/junioryono/flyweight"
)

var (
	ErrZeroDenominator = errors.New("fraction: zero denominator")
	ErrNegativeMixed   = errors.New("fraction: mixed form requires a non-negative value")
	ErrEmptyName       = errors.New("fraction: name cannot be empty")
	ErrOutOfRange      = errors.New("fraction: numerator or denominator out of range")
)

// key identifies a fraction in lowest terms.
type key struct {
	Num, Den int
}

// namedKey identifies a named fraction.
type namedKey struct {
	Num, Den int
	Name     string
}

// Fraction is an immutable rational number in lowest terms.
type Fraction struct {
	num, den int
}

// Num returns the numerator.
func (f *Fraction) Num() int { return f.num }

// Den returns the denominator, always positive.
func (f *Fraction) Den() int { return f.den }

func (f *Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.num, f.den)
}

func (f *Fraction) base() *Fraction { return f }

// member is implemented by *Fraction and by pointers to types embedding it.
type member interface {
	base() *Fraction
}

// New returns the flyweight for num/den.
func New(ctx context.Context, reg *flyweight.Registry, num, den int) (*Fraction, error) {
	return build(ctx, reg, num, den, func() *Fraction { return new(Fraction) })
}

// build is the constructor shared by the family. It acquires (T, num/den):
// called directly that is a claim, called from a subtype constructor holding
// the same pair it is a reentrant step that commits for the whole chain.
func build[T member](ctx context.Context, reg *flyweight.Registry, num, den int, alloc func() T) (T, error) {
	n, d, err := normalize(num, den)
	if err != nil {
		var zero T
		return zero, err
	}

	return flyweight.Get(ctx, reg, key{n, d}, func(ctx context.Context) (T, error) {
		v := alloc()
		b := v.base()
		b.num, b.den = n, d
		return v, nil
	})
}

// normalize reduces num/den to lowest terms with a positive denominator.
func normalize(num, den int) (int, int, error) {
	if den == 0 {
		return 0, 0, ErrZeroDenominator
	}
	// math.MinInt has no positive counterpart.
	if num == math.MinInt || den == math.MinInt {
		return 0, 0, ErrOutOfRange
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs(num), den)
	return num / g, den / g, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

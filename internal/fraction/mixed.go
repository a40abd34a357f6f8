package fraction

import (
	"context"
	"fmt"

	"github.com/junioryono/flyweight"
)

// Mixed is a non-negative fraction that also carries its mixed-number form.
// It shares the identity of the Fraction it embeds.
type Mixed struct {
	Fraction
	whole, rem int
}

// Whole returns the integer part.
func (m *Mixed) Whole() int { return m.whole }

// Rem returns the numerator of the fractional part.
func (m *Mixed) Rem() int { return m.rem }

func (m *Mixed) String() string {
	if m.rem == 0 {
		return fmt.Sprintf("%d", m.whole)
	}
	return fmt.Sprintf("%d %d/%d", m.whole, m.rem, m.den)
}

// NewMixed returns the flyweight mixed number for num/den.
//
// The mixed-form fields are filled in by the allocator, so the instance the
// shared Fraction constructor commits is already complete. A negative value
// fails after that commit and the committed instance is revoked.
func NewMixed(ctx context.Context, reg *flyweight.Registry, num, den int) (*Mixed, error) {
	n, d, err := normalize(num, den)
	if err != nil {
		return nil, err
	}

	return flyweight.Get(ctx, reg, key{n, d}, func(ctx context.Context) (*Mixed, error) {
		m, err := build(ctx, reg, n, d, func() *Mixed {
			return &Mixed{whole: n / d, rem: n % d}
		})
		if err != nil {
			return nil, err
		}
		if m.num < 0 {
			return nil, ErrNegativeMixed
		}
		return m, nil
	})
}

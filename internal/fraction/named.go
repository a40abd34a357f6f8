package fraction

import (
	"context"
	"fmt"

	"github.com/junioryono/flyweight"
)

// Named is a labelled fraction. Its base Fraction is itself a flyweight, so
// every Named with the same value shares one *Fraction.
type Named struct {
	*Fraction
	name string
}

// Name returns the label.
func (n *Named) Name() string { return n.name }

func (n *Named) String() string {
	return fmt.Sprintf("%s=%s", n.name, n.Fraction)
}

// NewNamed returns the flyweight for num/den labelled name. The base
// Fraction is acquired under its own key, as a separate claim.
func NewNamed(ctx context.Context, reg *flyweight.Registry, num, den int, name string) (*Named, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	n, d, err := normalize(num, den)
	if err != nil {
		return nil, err
	}

	return flyweight.Get(ctx, reg, namedKey{n, d, name}, func(ctx context.Context) (*Named, error) {
		f, err := New(ctx, reg, n, d)
		if err != nil {
			return nil, err
		}
		return &Named{Fraction: f, name: name}, nil
	})
}

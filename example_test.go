package flyweight_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"

	"github.com/junioryono/flyweight"
)

// Example demonstrates sharing one instance per key.
func Example() {
	reg := flyweight.MustNew()
	defer reg.Close()

	ctx := context.Background()

	a, err := NewPoint(ctx, reg, 1, 2)
	if err != nil {
		log.Fatal(err)
	}
	b, _ := NewPoint(ctx, reg, 1, 2)
	c, _ := NewPoint(ctx, reg, 2, 1)

	fmt.Println(a == b, a == c)
	fmt.Println(reg.Len())
	// Output:
	// true false
	// 2
}

// ExampleGet demonstrates that a failed construction leaves nothing behind.
func ExampleGet() {
	reg := flyweight.MustNew()
	defer reg.Close()

	errNegative := errors.New("negative radius")
	newCircle := func(ctx context.Context, radius int) (*Circle, error) {
		return flyweight.Get(ctx, reg, radius, func(context.Context) (*Circle, error) {
			if radius < 0 {
				return nil, errNegative
			}
			return &Circle{Radius: radius}, nil
		})
	}

	_, err := newCircle(context.Background(), -1)
	fmt.Println(err)

	_, ok := flyweight.Find[*Circle](reg, -1)
	fmt.Println(ok)
	// Output:
	// negative radius
	// false
}

// ExampleRegistry_Acquire demonstrates a hand-written constructor using a scope.
func ExampleRegistry_Acquire() {
	reg := flyweight.MustNew()
	defer reg.Close()

	glyphType := reflect.TypeOf((*Glyph)(nil))

	newGlyph := func(ctx context.Context, r rune) (g *Glyph, err error) {
		s, err := reg.Acquire(ctx, glyphType, r)
		if err != nil {
			return nil, err
		}
		defer s.Release(&err)

		if inst, ok := s.Instance(); ok {
			return inst.(*Glyph), nil
		}

		g = &Glyph{Rune: r}
		return g, s.Commit(g)
	}

	g1, _ := newGlyph(context.Background(), 'a')
	g2, _ := newGlyph(context.Background(), 'a')
	fmt.Println(g1 == g2, string(g1.Rune))
	// Output: true a
}

// ExampleRegistry_Begin demonstrates the low-level protocol.
func ExampleRegistry_Begin() {
	reg := flyweight.MustNew()
	defer reg.Close()

	ctx := context.Background()
	t := flyweight.TypeOf[*Circle]()

	cctx, role, err := reg.Begin(ctx, t, 3)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(role)

	if err := reg.Commit(cctx, t, 3, &Circle{Radius: 3}); err != nil {
		log.Fatal(err)
	}
	if err := reg.End(cctx, t, 3); err != nil {
		log.Fatal(err)
	}

	_, role, _ = reg.Begin(ctx, t, 3)
	fmt.Println(role)
	// Output:
	// Claimant
	// Observer
}

// Example_reentrant demonstrates a derived type reusing its base constructor
// for the same key.
func Example_reentrant() {
	reg := flyweight.MustNew()
	defer reg.Close()

	ctx := context.Background()

	l, err := NewLabelledPoint(ctx, reg, 3, 4)
	if err != nil {
		log.Fatal(err)
	}
	again, _ := NewLabelledPoint(ctx, reg, 3, 4)

	fmt.Println(l.Label, l == again)
	// Output: (3,4) true
}

// ============================================================================
// Example types
// ============================================================================

type Point struct {
	X, Y int
}

type LabelledPoint struct {
	Point
	Label string
}

type pointKey struct{ X, Y int }

func NewPoint(ctx context.Context, reg *flyweight.Registry, x, y int) (*Point, error) {
	return flyweight.Get(ctx, reg, pointKey{x, y}, func(context.Context) (*Point, error) {
		return &Point{X: x, Y: y}, nil
	})
}

// newPointInto is the base constructor step shared by types embedding Point.
func newPointInto[T any](ctx context.Context, reg *flyweight.Registry, x, y int, alloc func(Point) T) (T, error) {
	return flyweight.Get(ctx, reg, pointKey{x, y}, func(context.Context) (T, error) {
		return alloc(Point{X: x, Y: y}), nil
	})
}

func NewLabelledPoint(ctx context.Context, reg *flyweight.Registry, x, y int) (*LabelledPoint, error) {
	return flyweight.Get(ctx, reg, pointKey{x, y}, func(ctx context.Context) (*LabelledPoint, error) {
		l, err := newPointInto(ctx, reg, x, y, func(p Point) *LabelledPoint {
			return &LabelledPoint{Point: p}
		})
		if err != nil {
			return nil, err
		}
		l.Label = fmt.Sprintf("(%d,%d)", l.X, l.Y)
		return l, nil
	})
}

type Circle struct {
	Radius int
}

type Glyph struct {
	Rune rune
}

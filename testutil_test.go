package flyweight

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// ============================================================================
// Shared Test Types
// ============================================================================

// TFrac is a flyweight fraction used across tests.
type TFrac struct {
	Num, Den int
}

// TFracKey is the identity of a TFrac.
type TFracKey struct {
	Num, Den int
}

// TNamedFrac is a labelled fraction with its own identity.
type TNamedFrac struct {
	*TFrac
	Name string
}

// TNamedKey is the identity of a TNamedFrac.
type TNamedKey struct {
	Num, Den int
	Name     string
}

// TShape is implemented by test flyweights registered under an interface type.
type TShape interface {
	Area() int
}

// TSquare is a TShape.
type TSquare struct{ Side int }

func (s *TSquare) Area() int { return s.Side * s.Side }

// TDisposable implements Disposable for lifecycle testing.
type TDisposable struct {
	Name     string
	closed   atomic.Bool
	closeErr error
	order    *[]string
}

func (d *TDisposable) Close() error {
	if d.closed.Swap(true) {
		return errors.New("already closed")
	}
	if d.order != nil {
		*d.order = append(*d.order, d.Name)
	}
	return d.closeErr
}

// TContextDisposable implements DisposableWithContext.
type TContextDisposable struct {
	closed atomic.Bool
}

func (d *TContextDisposable) Close(ctx context.Context) error {
	d.closed.Store(true)
	return ctx.Err()
}

var (
	errZeroDen   = errors.New("zero denominator")
	errValidate  = errors.New("validation failed")
	fracType     = reflect.TypeOf((*TFrac)(nil))
	namedType    = reflect.TypeOf((*TNamedFrac)(nil))
	shapeType    = reflect.TypeOf((*TShape)(nil)).Elem()
	disposerType = reflect.TypeOf((*TDisposable)(nil))
)

// ============================================================================
// Helpers
// ============================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRegistry creates a registry that logs nothing.
func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	r, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// newFrac constructs a TFrac through a scope, the way a hand-written
// constructor would.
func newFrac(ctx context.Context, r *Registry, num, den int) (f *TFrac, err error) {
	s, err := r.Acquire(ctx, fracType, TFracKey{num, den})
	if err != nil {
		return nil, err
	}
	defer s.Release(&err)

	if inst, ok := s.Instance(); ok {
		return inst.(*TFrac), nil
	}

	if den == 0 {
		return nil, errZeroDen
	}

	f = &TFrac{Num: num, Den: den}
	if err := s.Commit(f); err != nil {
		return nil, err
	}
	return f, nil
}

// fracBase is the shared constructor step for types registered under the
// same pair as their caller. It runs reentrantly inside a subtype claim.
func fracBase(ctx context.Context, r *Registry, t reflect.Type, key any, alloc func() any) (inst any, err error) {
	s, err := r.Acquire(ctx, t, key)
	if err != nil {
		return nil, err
	}
	defer s.Release(&err)

	if existing, ok := s.Instance(); ok {
		return existing, nil
	}

	inst = alloc()
	if err := s.Commit(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// newNamedChecked constructs a TNamedFrac whose base step runs reentrantly
// under the same pair, then validates the name after the commit.
func newNamedChecked(ctx context.Context, r *Registry, num, den int, name string) (n *TNamedFrac, err error) {
	key := TNamedKey{num, den, name}

	s, err := r.Acquire(ctx, namedType, key)
	if err != nil {
		return nil, err
	}
	defer s.Release(&err)

	if inst, ok := s.Instance(); ok {
		return inst.(*TNamedFrac), nil
	}

	inst, err := fracBase(s.Context(), r, namedType, key, func() any {
		return &TNamedFrac{TFrac: &TFrac{Num: num, Den: den}}
	})
	if err != nil {
		return nil, err
	}

	n = inst.(*TNamedFrac)
	if name == "" {
		return nil, errValidate
	}
	n.Name = name
	return n, nil
}

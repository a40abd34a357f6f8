package flyweight

import (
	"context"
	"reflect"
)

// TypeOf returns the type identity used for T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Find returns the flyweight of type T registered under key, if any.
func Find[T any](r *Registry, key any) (T, bool) {
	var zero T

	if r == nil {
		return zero, false
	}

	instance, ok := r.Lookup(TypeOf[T](), key)
	if !ok {
		return zero, false
	}

	result, ok := instance.(T)
	return result, ok
}

// Acquire opens a scoped acquisition of (T, key). See [Registry.Acquire].
func Acquire[T any](ctx context.Context, r *Registry, key any) (*Scope, error) {
	if r == nil {
		return nil, ErrRegistryNil
	}
	return r.Acquire(ctx, TypeOf[T](), key)
}

// Get returns the flyweight of type T for key, calling build to construct it
// when the registry holds none.
//
// build receives a context that carries the claim; constructors it calls
// must use that context so that a nested Get for the same (T, key) is
// recognized as reentrant. When such a nested step already committed an
// instance, Get returns that instance instead of committing the value built
// here. Errors returned by build, and panics, roll back the claim and are
// passed through unchanged.
//
// Example:
//
//	type point struct{ X, Y int }
//
//	p, err := flyweight.Get(ctx, reg, point{1, 2}, func(ctx context.Context) (*Point, error) {
//	    return &Point{X: 1, Y: 2}, nil
//	})
func Get[T any](ctx context.Context, r *Registry, key any, build func(ctx context.Context) (T, error)) (result T, err error) {
	var zero T

	if r == nil {
		return zero, ErrRegistryNil
	}
	if build == nil {
		return zero, ErrNilBuild
	}

	s, err := Acquire[T](ctx, r, key)
	if err != nil {
		return zero, err
	}
	defer s.Release(&err)

	if s.Role() == RoleObserver {
		instance, _ := s.Instance()
		return cast[T](instance)
	}

	built, err := build(s.Context())
	if err != nil {
		return zero, err
	}

	// A reentrant step may have committed on behalf of the chain.
	if instance, ok := s.Instance(); ok {
		return cast[T](instance)
	}

	if err := s.Commit(built); err != nil {
		return zero, err
	}
	return built, nil
}

func cast[T any](instance any) (T, error) {
	result, ok := instance.(T)
	if !ok {
		var zero T
		return zero, TypeMismatchError{
			Expected: TypeOf[T](),
			Actual:   reflect.TypeOf(instance),
			Context:  "type assertion",
		}
	}
	return result, nil
}

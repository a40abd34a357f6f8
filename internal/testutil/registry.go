// Package testutil holds helpers shared by the tests of packages built on
// the flyweight registry.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/flyweight"
)

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewRegistry creates a quiet registry that is closed when the test ends.
func NewRegistry(t testing.TB, opts ...flyweight.Option) *flyweight.Registry {
	t.Helper()
	opts = append([]flyweight.Option{flyweight.WithLogger(DiscardLogger())}, opts...)
	reg, err := flyweight.New(opts...)
	require.NoError(t, err, "failed to create registry")
	t.Cleanup(func() {
		assert.NoError(t, reg.Close(), "failed to close registry")
	})
	return reg
}

// AssertSettled checks that no claim is left open.
func AssertSettled(t testing.TB, reg *flyweight.Registry) {
	t.Helper()
	assert.Zero(t, reg.Pending(), "claims left in progress")
}

// AssertCached checks that key resolves to want without constructing anything.
func AssertCached[T any](t testing.TB, reg *flyweight.Registry, key any, want T) {
	t.Helper()
	got, ok := flyweight.Find[T](reg, key)
	require.True(t, ok, "no instance for %v", key)
	assert.True(t, any(got) == any(want), "cached instance differs for %v", key)
}

// AssertNotCached checks that key holds no instance of type T.
func AssertNotCached[T any](t testing.TB, reg *flyweight.Registry, key any) {
	t.Helper()
	_, ok := flyweight.Find[T](reg, key)
	assert.False(t, ok, "unexpected instance of %s for %v", flyweight.TypeOf[T](), key)
}

// AssertAllSame checks that every element of instances is the same pointer.
func AssertAllSame[T comparable](t testing.TB, instances []T) {
	t.Helper()
	for i := 1; i < len(instances); i++ {
		assert.True(t, instances[i] == instances[0], "instance %d differs from instance 0", i)
	}
}

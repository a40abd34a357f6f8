// Package flyweight provides hash consing for Go values: a registry that keeps
// at most one live instance per (type, key) pair, so that structurally equal
// values become pointer-equal flyweights.
//
// # Overview
//
// Clients look an instance up by key. If it is present the cached instance is
// returned; if it is absent the client is granted an exclusive claim to
// construct and register one. The library provides:
//   - A Registry guarding the table of instances and the set of claims in progress
//   - Scoped acquisitions that commit or roll back on every exit path, panics included
//   - Reentrant acquisitions for constructors that delegate to a shared base constructor
//   - Blocking, context-aware waits for concurrent constructions of the same pair
//   - Prometheus metrics, OpenTelemetry spans and slog records
//
// # Basic Usage
//
// Create a registry, owned by the package that defines the type family, and
// construct through it:
//
//	var registry = flyweight.MustNew(flyweight.WithName("fractions"))
//
//	type fracKey struct{ num, den int }
//
//	func NewFrac(ctx context.Context, num, den int) (*Frac, error) {
//	    return flyweight.Get(ctx, registry, fracKey{num, den}, func(ctx context.Context) (*Frac, error) {
//	        if den == 0 {
//	            return nil, ErrZeroDenominator
//	        }
//	        return &Frac{num: num, den: den}, nil
//	    })
//	}
//
// Two calls with the same key return the same pointer. A failed build leaves
// no trace in the registry, and the next call may try again.
//
// # Roles
//
// Every acquisition resolves to one of three roles:
//
//   - Observer: an instance exists and is returned; committing is a protocol violation
//   - Claimant: the caller must construct the instance and commit it, exactly once
//   - Reentrant: an enclosing acquisition in the same logical call holds the claim
//
// # Logical Calls
//
// A logical call is identified by its context. [Registry.Acquire] and
// [Registry.Begin] return a context carrying the claim; constructors called
// while building must receive that context. An acquisition of the same pair
// with a descendant context is reentrant. Any other context is a concurrent
// caller and waits until the claim is ended or aborted.
//
// A constructor that hands the claim context to another goroutine makes that
// goroutine part of the same logical call. A constructor that waits on a
// goroutine acquiring the same pair with an unrelated context deadlocks.
//
// # Reentrant Construction
//
// A type embedding another can share the embedded type's constructor:
//
//	func NewMixed(ctx context.Context, num, den int) (*Mixed, error) {
//	    return flyweight.Get(ctx, registry, fracKey{num, den}, func(ctx context.Context) (*Mixed, error) {
//	        m, err := newBase(ctx, num, den, func() *Mixed { return new(Mixed) }) // reentrant, commits
//	        if err != nil {
//	            return nil, err
//	        }
//	        return m, m.split() // a failure here revokes the committed instance
//	    })
//	}
//
// # Low-Level Protocol
//
// [Registry.Lookup], [Registry.Begin], [Registry.Commit], [Registry.Revoke],
// [Registry.Abort] and [Registry.End] expose the protocol underneath scopes
// for callers that need to drive it themselves.
//
// # Reclamation
//
// The registry holds strong references. [Registry.Evict] and [Registry.Clear]
// drop instances that are not under construction; [Registry.Close] drops all
// of them and disposes those implementing [Disposable].
//
// # Error Handling
//
// Typed errors describe protocol failures:
//   - ProtocolViolationError: the acquisition protocol was misused
//   - DuplicateKeyError: an internal consistency fault, never expected
//   - TypeMismatchError: the committed instance is not of the claimed type
//   - WaitError: the context ended while waiting for a concurrent claim
//
// Errors returned by constructors are passed through unchanged.
package flyweight

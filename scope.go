package flyweight

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
)

// Scope is a scoped acquisition of one (type, key) pair.
//
// A scope is obtained from [Registry.Acquire] and must be released exactly
// once, by deferring Release directly:
//
//	func NewGlyph(ctx context.Context, reg *flyweight.Registry, r rune) (g *Glyph, err error) {
//	    s, err := reg.Acquire(ctx, glyphType, r)
//	    if err != nil {
//	        return nil, err
//	    }
//	    defer s.Release(&err)
//
//	    if inst, ok := s.Instance(); ok {
//	        return inst.(*Glyph), nil
//	    }
//
//	    g = &Glyph{r: r}
//	    if err := g.load(s.Context()); err != nil {
//	        return nil, err
//	    }
//	    return g, s.Commit(g)
//	}
//
// Release commits or rolls back registry state on every exit path,
// including panics.
type Scope struct {
	registry *Registry
	key      instanceKey
	role     Role
	claim    *claim
	ctx      context.Context
	instance any // cached instance for observers

	state    atomic.Int32
	released atomic.Bool
}

// Acquire performs the check-or-claim decision for (t, key).
//
// The resulting scope is an observer when an instance exists, a claimant
// when the caller must construct one, or reentrant when an enclosing
// acquisition in ctx already holds the claim. Acquire blocks while another
// logical call is constructing the same pair, until that construction
// resolves or ctx is done.
func (r *Registry) Acquire(ctx context.Context, t reflect.Type, key any) (*Scope, error) {
	if r == nil {
		return nil, ErrRegistryNil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	k, err := makeKey(t, key)
	if err != nil {
		return nil, err
	}

	res, err := r.resolve(ctx, k)
	if err != nil {
		return nil, err
	}
	r.acquired(k, res)

	return &Scope{
		registry: r,
		key:      k,
		role:     res.role,
		claim:    res.claim,
		ctx:      res.ctx,
		instance: res.instance,
	}, nil
}

// Role returns the role this scope resolved to.
func (s *Scope) Role() Role {
	return s.role
}

// ID returns the id of the claim this scope holds or joined.
// It is empty for observers.
func (s *Scope) ID() string {
	if s.claim == nil {
		return ""
	}
	return s.claim.id
}

// Type returns the instance type of the scope.
func (s *Scope) Type() reflect.Type {
	return s.key.Type
}

// Key returns the instance key of the scope.
func (s *Scope) Key() any {
	return s.key.Key
}

// Context returns the context to pass to nested constructors, so that
// acquisitions of the same pair made by them are recognized as reentrant.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// State returns the lifecycle state of the scope.
func (s *Scope) State() State {
	return State(s.state.Load())
}

// Instance returns the existing instance for an observer, or the instance
// committed so far under the claim for a claimant or reentrant scope.
func (s *Scope) Instance() (any, bool) {
	if s.role == RoleObserver {
		return s.instance, true
	}

	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	if !s.claim.committed {
		return nil, false
	}
	return s.claim.instance, true
}

// Commit registers instance for the scope's pair. Only one commit is
// allowed per claim, from the claimant or any reentrant scope joined to it.
func (s *Scope) Commit(instance any) error {
	if s.role == RoleObserver {
		return violation(s.key.Type, s.key.Key, "commit", ErrCommitOnHit)
	}
	if s.released.Load() {
		return violation(s.key.Type, s.key.Key, "commit", ErrClaimClosed)
	}

	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	return s.registry.commitLocked(s.claim, instance)
}

// Release finalizes the scope. It must be deferred directly so that it can
// observe panics:
//
//	defer s.Release(&err)
//
// A claimant exiting with a nil error and a committed instance ends the
// claim. A claimant exiting with an error or a panic aborts the claim,
// revoking an instance committed before the failure; the error is left
// untouched and the panic is resumed. A claimant exiting with a nil error
// but nothing committed aborts the claim and stores a
// ProtocolViolationError in *errp. Reentrant scopes leave the claim to the
// claimant. Calls after the first are no-ops.
func (s *Scope) Release(errp *error) {
	if !s.released.CompareAndSwap(false, true) {
		return
	}

	var failure error
	if errp != nil {
		failure = *errp
	}

	rec := recover()
	if rec != nil && failure == nil {
		failure = fmt.Errorf("panic during construction: %v", rec)
	}

	switch s.role {
	case RoleObserver:
		s.state.Store(int32(StateCommitted))

	case RoleReentrant:
		s.registry.mu.Lock()
		s.registry.exitLocked(s.claim)
		s.registry.mu.Unlock()

		if failure != nil {
			s.state.Store(int32(StateRolledBack))
		} else {
			s.state.Store(int32(StateCommitted))
		}

	case RoleClaimant:
		if failure != nil {
			s.registry.rollback(s.ctx, s.claim, failure)
			s.state.Store(int32(StateRolledBack))
			break
		}

		if err := s.registry.finish(s.ctx, s.claim); err != nil {
			s.state.Store(int32(StateRolledBack))
			if errp != nil {
				*errp = err
			} else {
				s.registry.opts.logger.WarnContext(s.ctx, "scope released without a committed instance",
					"registry", s.registry.opts.name, "type", formatType(s.key.Type), "key", s.key.Key,
					"claim", s.claim.id, "reason", err)
			}
			break
		}
		s.state.Store(int32(StateCommitted))
	}

	if rec != nil {
		panic(rec)
	}
}

package flyweight

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Registry holds at most one live instance per (type, key) pair and
// arbitrates their construction.
//
// A Registry is safe for concurrent use. Its mutex guards only bookkeeping;
// construction runs outside of it, between a claim being granted and the
// claim being ended or aborted.
type Registry struct {
	opts    options
	metrics *metrics

	mu        sync.Mutex
	entries   *instanceCache
	claims    map[instanceKey]*claim // in progress
	lifecycle *lifecycleManager

	closed atomic.Bool
}

// resolution is the outcome of the check-or-claim decision.
type resolution struct {
	ctx      context.Context
	role     Role
	claim    *claim
	instance any
	waited   time.Duration
}

// New creates an empty registry.
// It fails only when metrics were requested and could not be registered.
func New(opts ...Option) (*Registry, error) {
	o := newOptions(opts)

	m, err := newMetrics(o.name, o.registerer)
	if err != nil {
		return nil, err
	}

	return &Registry{
		opts:      o,
		metrics:   m,
		entries:   newInstanceCache(),
		claims:    make(map[instanceKey]*claim),
		lifecycle: newLifecycleManager(),
	}, nil
}

// MustNew is like New but panics on error.
func MustNew(opts ...Option) *Registry {
	r, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the registry name.
func (r *Registry) Name() string {
	return r.opts.name
}

// Lookup returns the instance registered for (t, key), if any.
// It has no side effects and does not wait for claims in progress.
func (r *Registry) Lookup(t reflect.Type, key any) (any, bool) {
	k, err := makeKey(t, key)
	if err != nil {
		return nil, false
	}
	return r.entries.get(k)
}

// Begin opens or joins a claim on (t, key) for the logical call carried by ctx.
//
// It returns RoleClaimant when the caller must construct and commit the
// instance, and RoleReentrant when an enclosing call in ctx already holds the
// claim. The returned context identifies the claim and must be passed to
// Commit, Revoke, Abort and End, and to nested constructors.
//
// When a different logical call holds the claim, Begin blocks until that
// claim resolves or ctx is done. RoleObserver is returned when an instance
// exists by the time the pair is free; the caller should Lookup it.
func (r *Registry) Begin(ctx context.Context, t reflect.Type, key any) (context.Context, Role, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	k, err := makeKey(t, key)
	if err != nil {
		return ctx, RoleObserver, err
	}

	res, err := r.resolve(ctx, k)
	if err != nil {
		return ctx, RoleObserver, err
	}
	r.acquired(k, res)

	return res.ctx, res.role, nil
}

// Commit registers instance as the flyweight for (t, key) under the claim
// carried by ctx. Either the claimant or a reentrant frame may commit, once.
// Lookups on every goroutine observe the instance after Commit returns.
func (r *Registry) Commit(ctx context.Context, t reflect.Type, key any, instance any) error {
	k, err := makeKey(t, key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.ownedFrame(ctx, k, "commit")
	if err != nil {
		return err
	}
	return r.commitLocked(f.claim, instance)
}

// Revoke removes the instance committed under the claim carried by ctx.
// The claim stays open; the claimant still has to Abort it.
func (r *Registry) Revoke(ctx context.Context, t reflect.Type, key any) error {
	k, err := makeKey(t, key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	f, err := r.ownedFrame(ctx, k, "revoke")
	if err != nil {
		r.mu.Unlock()
		return err
	}
	c := f.claim
	if !c.committed {
		r.mu.Unlock()
		return violation(k.Type, k.Key, "revoke", ErrNotCommitted)
	}
	r.revokeLocked(c)
	r.mu.Unlock()

	r.metrics.rolledBack("revoke")
	r.opts.logger.DebugContext(ctx, "revoked committed instance",
		"registry", r.opts.name, "type", formatType(k.Type), "key", k.Key, "claim", c.id)
	return nil
}

// Abort rolls back the claim carried by ctx: any committed instance is
// revoked, the pair is no longer in progress, and waiters are released.
// Only the claimant may abort.
func (r *Registry) Abort(ctx context.Context, t reflect.Type, key any) error {
	k, err := makeKey(t, key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	f, err := r.ownedFrame(ctx, k, "abort")
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if f.role != RoleClaimant {
		r.mu.Unlock()
		return violation(k.Type, k.Key, "abort", ErrNotClaimant)
	}
	r.mu.Unlock()

	r.rollback(ctx, f.claim, nil)
	return nil
}

// End finishes the frame carried by ctx after a successful construction.
//
// For the claimant the instance must have been committed; the claim is then
// closed and waiters observe the instance. If nothing was committed the claim
// is aborted and a ProtocolViolationError is returned. For a reentrant frame
// End only unwinds the nesting; the claimant finishes the claim.
func (r *Registry) End(ctx context.Context, t reflect.Type, key any) error {
	k, err := makeKey(t, key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	f, err := r.ownedFrame(ctx, k, "end")
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if f.role == RoleReentrant {
		r.exitLocked(f.claim)
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	return r.finish(ctx, f.claim)
}

// Evict removes the instance for (t, key) so that the next acquisition
// constructs a fresh one. It reports whether an instance was removed and
// refuses while the pair is under construction. Evicted instances are not
// disposed.
func (r *Registry) Evict(t reflect.Type, key any) (bool, error) {
	k, err := makeKey(t, key)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.claims[k]; ok {
		return false, ErrClaimInProgress
	}
	if _, ok := r.entries.delete(k); !ok {
		return false, nil
	}
	r.lifecycle.untrack(k)
	r.updateSizesLocked()
	return true, nil
}

// Clear evicts every instance that is not under construction and returns how
// many were removed.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, k := range r.entries.keys() {
		if _, ok := r.claims[k]; ok {
			continue
		}
		r.entries.delete(k)
		r.lifecycle.untrack(k)
		removed++
	}
	r.updateSizesLocked()
	return removed
}

// Len returns the number of live instances.
func (r *Registry) Len() int {
	return r.entries.len()
}

// Pending returns the number of claims under construction.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.claims)
}

// Keys returns the identities of all live instances in deterministic order.
func (r *Registry) Keys() []Key {
	ks := r.entries.keys()
	keys := make([]Key, 0, len(ks))
	for _, k := range ks {
		keys = append(keys, Key(k))
	}
	sortKeys(keys)
	return keys
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	return r.closed.Load()
}

// Close rejects further acquisitions, drops all instances and disposes the
// ones implementing Disposable or DisposableWithContext, most recent first.
// Claims still in progress fail when they try to commit.
func (r *Registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	ctx, span := r.opts.tracer.Start(context.Background(), "flyweight.Close",
		trace.WithAttributes(attribute.String("flyweight.registry", r.opts.name)))
	defer span.End()

	r.mu.Lock()
	n := r.entries.len()
	r.entries.clear()
	r.updateSizesLocked()
	r.mu.Unlock()

	err := r.lifecycle.dispose(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "disposal failed")
		r.opts.logger.WarnContext(ctx, "registry closed with disposal errors",
			"registry", r.opts.name, "instances", n, "reason", err)
		return err
	}

	r.opts.logger.DebugContext(ctx, "registry closed", "registry", r.opts.name, "instances", n)
	return nil
}

// resolve performs the check-or-claim decision for k, waiting out claims held
// by other logical calls. Open claims are checked before entries so that an
// instance committed under a claim that may still be revoked is only visible
// to the claim's own call chain.
func (r *Registry) resolve(ctx context.Context, k instanceKey) (resolution, error) {
	var waited time.Duration

	for {
		if r.closed.Load() {
			return resolution{ctx: ctx}, ErrRegistryClosed
		}

		r.mu.Lock()
		if c, ok := r.claims[k]; ok {
			if f := frameFor(ctx, c); f != nil {
				if c.committed {
					r.mu.Unlock()
					return resolution{ctx: ctx}, violation(k.Type, k.Key, "begin", ErrAlreadyCommitted)
				}
				c.depth++
				r.mu.Unlock()
				return resolution{
					ctx:    contextWithFrame(ctx, c, RoleReentrant),
					role:   RoleReentrant,
					claim:  c,
					waited: waited,
				}, nil
			}
			r.mu.Unlock()

			start := time.Now()
			err := r.wait(ctx, c)
			waited += time.Since(start)
			if err != nil {
				return resolution{ctx: ctx}, err
			}
			continue
		}

		if instance, ok := r.entries.get(k); ok {
			r.mu.Unlock()
			return resolution{ctx: ctx, role: RoleObserver, instance: instance, waited: waited}, nil
		}

		c := newClaim(k)
		r.claims[k] = c
		r.updateSizesLocked()
		r.mu.Unlock()

		return resolution{
			ctx:    contextWithFrame(ctx, c, RoleClaimant),
			role:   RoleClaimant,
			claim:  c,
			waited: waited,
		}, nil
	}
}

// wait blocks until c resolves or ctx is done.
func (r *Registry) wait(ctx context.Context, c *claim) error {
	r.metrics.waited()

	spanCtx, span := r.opts.tracer.Start(ctx, "flyweight.wait",
		trace.WithAttributes(
			attribute.String("flyweight.registry", r.opts.name),
			attribute.String("flyweight.type", formatType(c.key.Type)),
			attribute.String("flyweight.claim", c.id),
		))
	defer span.End()

	r.opts.logger.DebugContext(spanCtx, "waiting on concurrent claim",
		"registry", r.opts.name, "type", formatType(c.key.Type), "key", c.key.Key, "claim", c.id)

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		err := WaitError{Type: c.key.Type, Key: c.key.Key, Cause: ctx.Err()}
		span.RecordError(err)
		span.SetStatus(codes.Error, "wait abandoned")
		return err
	}
}

// acquired records the outcome of an acquisition.
func (r *Registry) acquired(k instanceKey, res resolution) {
	r.metrics.acquired(res.role)

	if res.role != RoleObserver {
		r.opts.logger.DebugContext(res.ctx, "acquired claim",
			"registry", r.opts.name, "type", formatType(k.Type), "key", k.Key,
			"role", res.role, "claim", res.claim.id, "waited", res.waited)
	}

	if r.opts.onAcquired != nil {
		r.opts.onAcquired(k.Type, k.Key, res.role, res.waited)
	}
}

// ownedFrame returns the open frame in ctx for k. Caller must hold r.mu.
func (r *Registry) ownedFrame(ctx context.Context, k instanceKey, op string) (*frame, error) {
	f := frameForKey(ctx, k)
	if f == nil {
		return nil, violation(k.Type, k.Key, op, ErrNoClaim)
	}
	if f.claim.closed {
		return nil, violation(k.Type, k.Key, op, ErrClaimClosed)
	}
	return f, nil
}

// commitLocked installs instance under c. Caller must hold r.mu.
func (r *Registry) commitLocked(c *claim, instance any) error {
	k := c.key

	if c.closed {
		return violation(k.Type, k.Key, "commit", ErrClaimClosed)
	}
	if c.committed || c.revoked {
		return violation(k.Type, k.Key, "commit", ErrAlreadyCommitted)
	}
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	if isNilInstance(instance) {
		return violation(k.Type, k.Key, "commit", ErrNilInstance)
	}
	if actual := reflect.TypeOf(instance); !actual.AssignableTo(k.Type) {
		return TypeMismatchError{Expected: k.Type, Actual: actual, Context: "commit"}
	}

	if !r.entries.insert(k, instance) {
		r.opts.logger.Error("duplicate flyweight instance",
			"registry", r.opts.name, "type", formatType(k.Type), "key", k.Key, "claim", c.id)
		return DuplicateKeyError{Type: k.Type, Key: k.Key}
	}

	c.instance = instance
	c.committed = true
	r.lifecycle.track(k, instance)
	r.updateSizesLocked()
	return nil
}

// revokeLocked removes the instance committed under c. Caller must hold r.mu.
func (r *Registry) revokeLocked(c *claim) {
	if !c.committed {
		return
	}
	if current, ok := r.entries.get(c.key); ok && current == c.instance {
		r.entries.delete(c.key)
		r.lifecycle.untrack(c.key)
	}
	c.instance = nil
	c.committed = false
	c.revoked = true
	r.updateSizesLocked()
}

// closeLocked ends c and wakes its waiters. Caller must hold r.mu.
func (r *Registry) closeLocked(c *claim) {
	if c.closed {
		return
	}
	c.closed = true
	if r.claims[c.key] == c {
		delete(r.claims, c.key)
	}
	close(c.done)
	r.updateSizesLocked()
}

// exitLocked unwinds one reentrant frame of c. Caller must hold r.mu.
func (r *Registry) exitLocked(c *claim) {
	if c.depth > 0 {
		c.depth--
	}
}

// finish closes c after a successful construction, aborting it when nothing
// was committed.
func (r *Registry) finish(ctx context.Context, c *claim) error {
	r.mu.Lock()
	if c.closed {
		r.mu.Unlock()
		return violation(c.key.Type, c.key.Key, "end", ErrClaimClosed)
	}
	if !c.committed {
		r.mu.Unlock()
		err := violation(c.key.Type, c.key.Key, "end", ErrNotCommitted)
		r.rollback(ctx, c, err)
		return err
	}
	if c.depth > 0 {
		r.opts.logger.WarnContext(ctx, "claim ended with reentrant frames still open",
			"registry", r.opts.name, "type", formatType(c.key.Type), "key", c.key.Key,
			"claim", c.id, "depth", c.depth)
	}
	r.closeLocked(c)
	r.mu.Unlock()

	r.opts.logger.DebugContext(ctx, "committed instance",
		"registry", r.opts.name, "type", formatType(c.key.Type), "key", c.key.Key,
		"claim", c.id, "elapsed", time.Since(c.started))
	return nil
}

// rollback aborts c: a committed instance is revoked, the pair leaves the
// in-progress set and waiters are released. cause is only reported.
func (r *Registry) rollback(ctx context.Context, c *claim, cause error) {
	r.mu.Lock()
	if c.closed {
		r.mu.Unlock()
		return
	}
	revoked := c.committed
	r.revokeLocked(c)
	r.closeLocked(c)
	r.mu.Unlock()

	kind := "abort"
	if revoked {
		kind = "revoke"
	}
	r.metrics.rolledBack(kind)

	r.opts.logger.DebugContext(ctx, "rolled back claim",
		"registry", r.opts.name, "type", formatType(c.key.Type), "key", c.key.Key,
		"claim", c.id, "revoked", revoked, "reason", cause)

	if r.opts.onRollback != nil {
		r.opts.onRollback(c.key.Type, c.key.Key, cause)
	}
}

// updateSizesLocked refreshes the size gauges. Caller must hold r.mu.
func (r *Registry) updateSizesLocked() {
	if r.metrics == nil {
		return
	}
	r.metrics.sizes(r.entries.len(), len(r.claims))
}

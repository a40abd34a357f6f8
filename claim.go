package flyweight

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// claim is an open construction attempt for one (type, key) pair.
// All fields other than id, key, done and started are guarded by the
// owning registry's mutex.
type claim struct {
	id      string
	key     instanceKey
	done    chan struct{} // closed when the claim is ended or aborted
	started time.Time

	depth     int // open reentrant frames
	instance  any
	committed bool
	revoked   bool
	closed    bool
}

func newClaim(key instanceKey) *claim {
	return &claim{
		id:      uuid.NewString(),
		key:     key,
		done:    make(chan struct{}),
		started: time.Now(),
	}
}

// frame links a claim into the logical call that opened or re-entered it.
// Frames form a chain through context values, innermost first, so nested
// acquisitions for different keys stack naturally.
type frame struct {
	claim  *claim
	role   Role
	parent *frame
}

// frameContextKey is the key for storing the innermost frame in a context.
type frameContextKey struct{}

// contextWithFrame returns a context whose frame chain is extended by c.
func contextWithFrame(ctx context.Context, c *claim, role Role) context.Context {
	parent, _ := ctx.Value(frameContextKey{}).(*frame)
	return context.WithValue(ctx, frameContextKey{}, &frame{claim: c, role: role, parent: parent})
}

// frameFor returns the innermost frame in ctx that refers to c, or nil when
// ctx does not belong to the logical call holding c.
func frameFor(ctx context.Context, c *claim) *frame {
	if ctx == nil || c == nil {
		return nil
	}
	for f, _ := ctx.Value(frameContextKey{}).(*frame); f != nil; f = f.parent {
		if f.claim == c {
			return f
		}
	}
	return nil
}

// ClaimID returns the id of the innermost claim carried by ctx, if any.
// It is meant for logs and traces.
func ClaimID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	f, ok := ctx.Value(frameContextKey{}).(*frame)
	if !ok || f == nil {
		return "", false
	}
	return f.claim.id, true
}

// frameForKey returns the innermost frame in ctx for the pair k, open or not.
func frameForKey(ctx context.Context, k instanceKey) *frame {
	if ctx == nil {
		return nil
	}
	for f, _ := ctx.Value(frameContextKey{}).(*frame); f != nil; f = f.parent {
		if f.claim.key == k {
			return f
		}
	}
	return nil
}

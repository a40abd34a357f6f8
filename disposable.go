package flyweight

import "context"

// Disposable is implemented by flyweights that hold resources.
// The registry closes them when it is closed itself. Eviction never does.
//
// Example:
//
//	type Glyph struct {
//	    bitmap *os.File
//	}
//
//	func (g *Glyph) Close() error {
//	    return g.bitmap.Close()
//	}
type Disposable interface {
	Close() error
}

// DisposableWithContext is the context-aware variant of Disposable.
type DisposableWithContext interface {
	Close(ctx context.Context) error
}

// contextDisposableWrapper wraps Disposable as DisposableWithContext.
type contextDisposableWrapper struct {
	disposable Disposable
}

func (w *contextDisposableWrapper) Close(ctx context.Context) error {
	return w.disposable.Close()
}

// asDisposable returns the context-aware closer for instance, if any.
func asDisposable(instance any) (DisposableWithContext, bool) {
	switch v := instance.(type) {
	case DisposableWithContext:
		return v, true
	case Disposable:
		return &contextDisposableWrapper{disposable: v}, true
	default:
		return nil, false
	}
}

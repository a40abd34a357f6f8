package flyweight

import (
	"reflect"
	"sync"
)

// typeCache provides a thread-safe cache for reflection type information
// used on every acquisition, to avoid repeated reflection on the same types.
type typeCache struct {
	cache sync.Map // map[reflect.Type]*typeInfo
}

// typeInfo holds pre-computed reflection information about a type.
type typeInfo struct {
	Type       reflect.Type
	Kind       reflect.Kind
	Comparable bool
	CanBeNil   bool

	// Formatted name for messages and deterministic ordering
	FormattedName     string
	formattedNameOnce sync.Once
}

// globalTypeCache is the type cache shared by all registries.
var globalTypeCache = &typeCache{}

// getTypeInfo returns cached type information or creates it if not present.
func (tc *typeCache) getTypeInfo(t reflect.Type) *typeInfo {
	if t == nil {
		return nil
	}

	if cached, ok := tc.cache.Load(t); ok {
		return cached.(*typeInfo)
	}

	info := &typeInfo{
		Type:       t,
		Kind:       t.Kind(),
		Comparable: t.Comparable(),
	}

	switch info.Kind {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		info.CanBeNil = true
	}

	// Another goroutine may have stored it first.
	actual, _ := tc.cache.LoadOrStore(t, info)
	return actual.(*typeInfo)
}

// name returns the formatted type name, computing it once.
func (info *typeInfo) name() string {
	info.formattedNameOnce.Do(func() {
		info.FormattedName = formatTypeUncached(info.Type)
	})
	return info.FormattedName
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return globalTypeCache.getTypeInfo(t).name()
}

func formatTypeUncached(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		// *Type instead of *package.Type
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}

// isNilInstance reports whether v is nil or a typed nil.
func isNilInstance(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	if !globalTypeCache.getTypeInfo(rv.Type()).CanBeNil {
		return false
	}
	return rv.IsNil()
}

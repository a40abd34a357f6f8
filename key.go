package flyweight

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

// instanceKey uniquely identifies a flyweight instance within a registry.
type instanceKey struct {
	Type reflect.Type
	Key  any
}

func (k instanceKey) String() string {
	return formatKey(k.Type, k.Key)
}

// Key is the exported view of an entry's identity, returned by [Registry.Keys].
type Key struct {
	Type reflect.Type
	Key  any
}

// String returns a human-readable representation "Type[key]".
func (k Key) String() string {
	return formatKey(k.Type, k.Key)
}

// makeKey validates a (type, key) pair and builds the map key for it.
// A nil key is allowed; any other key must have a comparable dynamic type,
// otherwise using it as a map key would panic.
func makeKey(t reflect.Type, key any) (instanceKey, error) {
	if t == nil {
		return instanceKey{}, ErrTypeNil
	}

	if key != nil {
		kt := reflect.TypeOf(key)
		// Comparable types may still hold incomparable values in interface fields.
		if !globalTypeCache.getTypeInfo(kt).Comparable || !reflect.ValueOf(key).Comparable() {
			return instanceKey{}, fmt.Errorf("%w: %s", ErrKeyNotComparable, formatType(kt))
		}
	}

	return instanceKey{Type: t, Key: key}, nil
}

// sortKeys orders keys by type name, then by the printed key.
func sortKeys(keys []Key) {
	slices.SortFunc(keys, func(a, b Key) int {
		if c := cmp.Compare(formatType(a.Type), formatType(b.Type)); c != 0 {
			return c
		}
		return cmp.Compare(fmt.Sprint(a.Key), fmt.Sprint(b.Key))
	})
}

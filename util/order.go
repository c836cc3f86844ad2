package util

import (
	"fmt"
	"sort"

	"golang.org/x/exp/constraints"
)

// OrderedMap is a map supporting iteration in insertion order.
//
// In addition, a map created with NewOrderedMap rejects an attempt to override a key. This behavior is
// configurable, and can be turned off. The zero value is an empty map that allows overrides.
type OrderedMap[K comparable, V any] struct {
	keys            []K
	data            map[K]V
	forbidOverrides bool
}

// OrderedMapEntry is an accessor into a single (key, value) pair of the map.
type OrderedMapEntry[K comparable, V any] struct {
	Key   K
	Value V
}

// Instantiates an empty OrderedMap object.
func NewOrderedMap[K comparable, V any]() OrderedMap[K, V] {
	return OrderedMap[K, V]{
		data:            map[K]V{},
		forbidOverrides: true,
	}
}

// Instantiates a new OrderedMap from a list of entries, keeping their order.
func NewOrderedMapFrom[K comparable, V any](entries []OrderedMapEntry[K, V]) (OrderedMap[K, V], error) {
	result := NewOrderedMap[K, V]()
	for _, entry := range entries {
		if err := result.Insert(entry.Key, entry.Value); err != nil {
			return OrderedMap[K, V]{}, err
		}
	}
	return result, nil
}

// Allow key overrides of the keys. An overridden key keeps its original position.
func (m *OrderedMap[K, V]) AllowOverrides() {
	m.forbidOverrides = false
}

// Insert a (key, value) pair.
func (m *OrderedMap[K, V]) Insert(key K, value V) error {
	if m.data == nil {
		m.data = map[K]V{}
	}
	if val, ok := m.data[key]; ok {
		if m.forbidOverrides {
			return fmt.Errorf("attempting to override a value with key: %v; old value: %v; new value: %v",
				key, val, value)
		}
	} else {
		m.keys = append(m.keys, key)
	}
	m.data[key] = value
	return nil
}

// Performs a lookup of the key, similar to `v, ok := m[k]`.
func (m OrderedMap[K, V]) Lookup(key K) (V, bool) {
	val, ok := m.data[key]
	return val, ok
}

// Len returns the number of entries.
func (m OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

// Returns the list of entries in insertion order.
func (m OrderedMap[K, V]) Entries() []OrderedMapEntry[K, V] {
	result := make([]OrderedMapEntry[K, V], 0, len(m.keys))
	for _, k := range m.keys {
		result = append(result, OrderedMapEntry[K, V]{
			Key:   k,
			Value: m.data[k],
		})
	}
	return result
}

// Returns the list of map keys in insertion order.
func (m OrderedMap[K, V]) Keys() []K {
	keys := make([]K, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Returns the values of entries in insertion order.
func (m OrderedMap[K, V]) Values() []V {
	result := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		result = append(result, m.data[k])
	}
	return result
}

// Clone returns a shallow copy of the map.
func (m OrderedMap[K, V]) Clone() OrderedMap[K, V] {
	result := OrderedMap[K, V]{
		keys:            make([]K, len(m.keys)),
		data:            make(map[K]V, len(m.data)),
		forbidOverrides: m.forbidOverrides,
	}
	copy(result.keys, m.keys)
	for k, v := range m.data {
		result.data[k] = v
	}
	return result
}

// Convenience function, returning the sorted list of keys of a conventional map.
func SortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

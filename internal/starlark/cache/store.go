// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package cache

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"go.starlark.net/starlark"
)

// store maps owning-instance identity to a cached value. Each property
// owns one store; presence of an entry is the FILLED state, absence is
// EMPTY.
//
// The store holds only the numeric identity of an instance, never the
// instance itself, so cached entries do not extend instance lifetime.
// Entries for collected instances are reclaimed through a finalizer.
type store struct {
	mu      sync.Mutex
	entries map[uintptr]starlark.Value
}

func newStore() *store {
	return &store{entries: make(map[uintptr]starlark.Value)}
}

func (s *store) get(instance starlark.Value) (starlark.Value, bool, error) {
	key, err := identity(instance)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *store) put(instance, value starlark.Value) error {
	key, err := identity(instance)
	if err != nil {
		return err
	}
	track(instance, key, s)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *store) drop(instance starlark.Value) error {
	key, err := identity(instance)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *store) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// identity returns a stable key for a reference-shaped value. Only values
// with pointer identity can own cached attributes: value types like
// strings or ints have no per-instance identity to key a cache on.
func identity(instance starlark.Value) (uintptr, error) {
	rv := reflect.ValueOf(instance)
	if rv.Kind() == reflect.Pointer {
		return rv.Pointer(), nil
	}
	return 0, fmt.Errorf("cache: %s value cannot own cached attributes", instance.Type())
}

// finalizers fans instance teardown out to every store tracking that
// instance. The runtime allows a single finalizer per object, and several
// properties of the same class usually track the same instance, so the
// finalizer is shared and dispatches through this registry.
var finalizers struct {
	sync.Mutex
	m map[uintptr][]*store
}

func track(instance starlark.Value, key uintptr, s *store) {
	finalizers.Lock()
	defer finalizers.Unlock()
	if finalizers.m == nil {
		finalizers.m = make(map[uintptr][]*store)
	}
	stores := finalizers.m[key]
	for _, t := range stores {
		if t == s {
			return
		}
	}
	finalizers.m[key] = append(stores, s)
	if len(stores) == 0 {
		runtime.SetFinalizer(instance, finalize)
	}
}

func finalize(instance any) {
	key := reflect.ValueOf(instance).Pointer()
	finalizers.Lock()
	stores := finalizers.m[key]
	delete(finalizers.m, key)
	finalizers.Unlock()
	for _, s := range stores {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
	}
}

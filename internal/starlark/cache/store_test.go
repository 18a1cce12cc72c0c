// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package cache

import (
	"runtime"
	"strings"
	"testing"
	"time"

	"go.astrophena.name/starcache/internal/testutil"

	"go.starlark.net/starlark"
)

func TestStorePutGetDrop(t *testing.T) {
	t.Parallel()

	s := newStore()
	inst := &thing{id: 1}

	if _, ok, err := s.get(inst); err != nil || ok {
		t.Fatalf("get on empty store: ok=%v, err=%v", ok, err)
	}
	if err := s.put(inst, starlark.MakeInt(42)); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.get(inst)
	if err != nil || !ok {
		t.Fatalf("get after put: ok=%v, err=%v", ok, err)
	}
	assertValueEqual(t, v, starlark.MakeInt(42))

	if err := s.drop(inst); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.get(inst); ok {
		t.Fatal("entry survived drop")
	}
	// Dropping an absent entry is fine.
	if err := s.drop(inst); err != nil {
		t.Fatal(err)
	}
}

func TestStoreRejectsValueTypes(t *testing.T) {
	t.Parallel()

	s := newStore()
	for _, inst := range []starlark.Value{
		starlark.MakeInt(1),
		starlark.String("str"),
		starlark.True,
	} {
		err := s.put(inst, starlark.None)
		if err == nil || !strings.Contains(err.Error(), "cannot own cached attributes") {
			t.Fatalf("put(%s): got error %v", inst.Type(), err)
		}
	}
}

func TestStoreReclaimsCollectedInstances(t *testing.T) {
	// Finalizer-driven, so no t.Parallel: GC pressure from other tests
	// makes the timing even less predictable.

	a, b := newStore(), newStore()
	inst := &thing{id: 1}
	if err := a.put(inst, starlark.MakeInt(1)); err != nil {
		t.Fatal(err)
	}
	if err := b.put(inst, starlark.MakeInt(2)); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, a.len(), 1)
	testutil.AssertEqual(t, b.len(), 1)

	// Drop the only reference and wait for the finalizer to clear the
	// entries from every store tracking the instance.
	inst = nil
	deadline := time.Now().Add(5 * time.Second)
	for a.len() > 0 || b.len() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("entries not reclaimed: a=%d, b=%d", a.len(), b.len())
		}
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStoreSurvivorKeepsEntry(t *testing.T) {
	s := newStore()
	kept := &thing{id: 1}
	gone := &thing{id: 2}
	if err := s.put(kept, starlark.MakeInt(1)); err != nil {
		t.Fatal(err)
	}
	if err := s.put(gone, starlark.MakeInt(2)); err != nil {
		t.Fatal(err)
	}

	gone = nil
	deadline := time.Now().Add(5 * time.Second)
	for s.len() > 1 {
		if time.Now().After(deadline) {
			t.Fatalf("entry not reclaimed: len=%d", s.len())
		}
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}

	v, ok, err := s.get(kept)
	if err != nil || !ok {
		t.Fatalf("surviving entry lost: ok=%v, err=%v", ok, err)
	}
	assertValueEqual(t, v, starlark.MakeInt(1))
	runtime.KeepAlive(kept)
}

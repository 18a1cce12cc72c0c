// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package syncx

import (
	"errors"
	"sync"
	"testing"

	"go.astrophena.name/starcache/internal/testutil"
)

func TestProtected(t *testing.T) {
	t.Parallel()

	p := Protect(make(map[string]int))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Access(func(m map[string]int) { m["n"]++ })
		}()
	}
	wg.Wait()

	var got int
	p.RAccess(func(m map[string]int) { got = m["n"] })
	testutil.AssertEqual(t, got, 10)
}

func TestLazy(t *testing.T) {
	t.Parallel()

	var calls int
	l := new(Lazy[int])
	f := func() int {
		calls++
		return 42
	}
	testutil.AssertEqual(t, l.Get(f), 42)
	testutil.AssertEqual(t, l.Get(f), 42)
	testutil.AssertEqual(t, calls, 1)
}

func TestLazyErr(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("computation failed")
	var calls int
	l := new(Lazy[string])
	f := func() (string, error) {
		calls++
		return "", wantErr
	}

	// The error is computed once and sticks.
	if _, err := l.GetErr(f); !errors.Is(err, wantErr) {
		t.Fatalf("got error %v, want %v", err, wantErr)
	}
	if _, err := l.GetErr(f); !errors.Is(err, wantErr) {
		t.Fatalf("got error %v, want %v", err, wantErr)
	}
	testutil.AssertEqual(t, calls, 1)
}

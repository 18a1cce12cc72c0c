// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package cache

import (
	"fmt"
	"sync"

	"go.starlark.net/starlark"
)

// Generator wraps a one-shot [Source] and makes it iterable any number of
// times. Values pulled from the source are recorded in order; every
// iterator first replays the recorded values and only then pulls new ones.
// Each value is pulled from the source at most once, no matter how many
// iterators exist or how they interleave.
type Generator struct {
	mu           sync.Mutex
	source       Source
	materialized []starlark.Value
	exhausted    bool
	pulling      bool
	err          error // first pull error, sticky
}

// NewGenerator returns a Generator wrapping source.
//
// It returns ErrNotAGenerator if source does not implement the [Source]
// contract and ErrExhausted if source has already signaled completion.
func NewGenerator(source starlark.Value) (*Generator, error) {
	src, ok := source.(Source)
	if !ok {
		typ := "nil"
		if source != nil {
			typ = source.Type()
		}
		return nil, fmt.Errorf("%w: %s is not a one-shot sequence", ErrNotAGenerator, typ)
	}
	if src.Exhausted() {
		return nil, fmt.Errorf("%w: %s has nothing left to produce", ErrExhausted, src.String())
	}
	return &Generator{source: src}, nil
}

// advance returns the value at pos, pulling it from the source if it has
// not been materialized yet. The pulling flag guards the frontier: a
// re-entrant advance that catches up while a pull of the same position is
// in flight terminates instead of pulling twice.
func (g *Generator) advance(pos int) (starlark.Value, bool, error) {
	g.mu.Lock()
	if pos < len(g.materialized) {
		v := g.materialized[pos]
		g.mu.Unlock()
		return v, true, nil
	}
	if g.exhausted {
		err := g.err
		g.mu.Unlock()
		return nil, false, err
	}
	if g.pulling {
		g.mu.Unlock()
		return nil, false, nil
	}
	g.pulling = true
	g.mu.Unlock()

	// The source may call back into this generator, so it must not be
	// invoked with the lock held.
	v, ok, err := g.source.Next()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.pulling = false
	if err != nil {
		g.exhausted = true
		g.err = err
		return nil, false, err
	}
	if !ok {
		g.exhausted = true
		return nil, false, nil
	}
	g.materialized = append(g.materialized, v)
	return v, true, nil
}

// Iterate implements the [starlark.Iterable] interface. Every call returns
// a fresh cursor starting from the beginning of the sequence.
func (g *Generator) Iterate() starlark.Iterator { return &cursor{g: g} }

// String implements the [fmt.Stringer] interface.
func (g *Generator) String() string { return "<cached_generator>" }

// Type implements the [starlark.Value] interface.
func (g *Generator) Type() string { return "cached_generator" }

// Freeze implements the [starlark.Value] interface.
func (g *Generator) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, v := range g.materialized {
		v.Freeze()
	}
}

// Truth implements the [starlark.Value] interface.
func (g *Generator) Truth() starlark.Bool { return starlark.True }

// Hash implements the [starlark.Value] interface.
func (g *Generator) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", g.Type()) }

// cursor is an independent position over a shared Generator.
type cursor struct {
	g   *Generator
	pos int
	err error
}

// Next implements the [starlark.Iterator] interface.
func (c *cursor) Next(p *starlark.Value) bool {
	v, ok, err := c.g.advance(c.pos)
	if err != nil {
		c.err = err
		return false
	}
	if !ok {
		return false
	}
	*p = v
	c.pos++
	return true
}

// Done implements the [starlark.Iterator] interface.
func (c *cursor) Done() {}

// Err returns the error that terminated the iteration, if any.
func (c *cursor) Err() error { return c.err }

var (
	_ starlark.Value    = (*Generator)(nil)
	_ starlark.Iterable = (*Generator)(nil)
)

// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package cache

import (
	"fmt"

	"go.starlark.net/starlark"
)

// Source is the capability contract of a one-shot lazy sequence: a value
// that produces values on demand, signals completion and can report
// whether it is already past completion.
//
// Values implementing Source returned by a property getter are wrapped in
// a [Generator] before caching.
type Source interface {
	starlark.Value

	// Next produces the next value of the sequence. It returns false once
	// the sequence has signaled completion. An error from the underlying
	// producer permanently exhausts the source.
	Next() (starlark.Value, bool, error)

	// Exhausted reports whether the sequence has signaled completion.
	Exhausted() bool
}

// Stream is a one-shot, forward-only sequence of values backed by a
// producer function. Once a value has been produced it cannot be observed
// again through the Stream itself; wrap it in a [Generator] to make it
// replayable.
type Stream struct {
	name      string
	next      func() (starlark.Value, bool, error)
	exhausted bool
}

// NewStream returns a Stream that produces values by calling next. The
// producer signals completion by returning false; it is never called again
// after that, or after it returns an error.
func NewStream(name string, next func() (starlark.Value, bool, error)) *Stream {
	return &Stream{name: name, next: next}
}

// Next implements the [Source] interface.
func (s *Stream) Next() (starlark.Value, bool, error) {
	if s.exhausted {
		return nil, false, nil
	}
	v, ok, err := s.next()
	if err != nil {
		s.exhausted = true
		return nil, false, err
	}
	if !ok {
		s.exhausted = true
		return nil, false, nil
	}
	return v, true, nil
}

// Exhausted implements the [Source] interface.
func (s *Stream) Exhausted() bool { return s.exhausted }

// String implements the [fmt.Stringer] interface.
func (s *Stream) String() string { return fmt.Sprintf("<stream %s>", s.name) }

// Type implements the [starlark.Value] interface.
func (s *Stream) Type() string { return "stream" }

// Freeze implements the [starlark.Value] interface.
func (s *Stream) Freeze() {}

// Truth implements the [starlark.Value] interface.
func (s *Stream) Truth() starlark.Bool { return starlark.Bool(!s.exhausted) }

// Hash implements the [starlark.Value] interface.
func (s *Stream) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", s.Type()) }

var _ Source = (*Stream)(nil)

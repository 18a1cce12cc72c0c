// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package cache implements lazily computed, invalidatable attributes for
// embedded Starlark.
//
// A [Property] behaves like a normal attribute of a script-defined type, but
// defers computation of its value until first read and caches the result per
// owning instance. Writing and deleting the attribute recompute, overwrite or
// invalidate the cache through optional hooks.
//
// A [Generator] makes a one-shot lazy sequence (a [Source], typically a
// [Stream]) iterable any number of times by materializing its values as they
// are produced. If a property getter returns a Source, the property caches a
// Generator wrapping it instead of the raw one-shot value.
package cache

import (
	"errors"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Errors reported by this package. They are returned wrapped with
// additional context and surface in scripts unchanged.
var (
	// ErrNotCallable means that a hook registration received a value that
	// is neither a callable nor None.
	ErrNotCallable = errors.New("not callable")
	// ErrAlreadyBound means that Bind was invoked twice on the same
	// property.
	ErrAlreadyBound = errors.New("property already bound")
	// ErrUnreadable means that a property with no getter and no cached
	// value was read.
	ErrUnreadable = errors.New("attribute is not readable")
	// ErrNotAGenerator means that a Generator was constructed from a value
	// that is not a one-shot lazy sequence.
	ErrNotAGenerator = errors.New("not a generator")
	// ErrExhausted means that a Generator was constructed from a source
	// that has already signaled completion.
	ErrExhausted = errors.New("generator already exhausted")
)

// Module returns a Starlark module that exposes cached properties and
// generators to scripts.
//
// This module provides the following functions:
//
//   - property(fget=None, fset=None, fdel=None, doc="", args=(), kwargs={}):
//     Creates a cached property.
//   - generator(source): Wraps a one-shot sequence in a cached generator.
//   - stream(fn): Creates a one-shot sequence from a callable. fn is called
//     with no arguments to produce each value and returns cache.done to
//     signal completion.
//   - wrap(descriptor, owner=None, name=""): Adapts an object with callable
//     get/set/delete attributes into a cached property.
//
// The done member is the completion sentinel recognized by stream callables.
func Module() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "cache",
		Members: starlark.StringDict{
			"property":  starlark.NewBuiltin("cache.property", makeProperty),
			"generator": starlark.NewBuiltin("cache.generator", makeGenerator),
			"stream":    starlark.NewBuiltin("cache.stream", makeStream),
			"wrap":      starlark.NewBuiltin("cache.wrap", wrapDescriptor),
			"done":      Done,
		},
	}
}

func makeProperty(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		fget, fset, fdel starlark.Value
		doc              string
		extraArgs        starlark.Tuple
		extraKwargs      *starlark.Dict
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"fget?", &fget,
		"fset?", &fset,
		"fdel?", &fdel,
		"doc?", &doc,
		"args?", &extraArgs,
		"kwargs?", &extraKwargs,
	); err != nil {
		return nil, err
	}
	return New(fget, fset, fdel, doc, extraArgs, extraKwargs)
}

func makeGenerator(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var source starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "source", &source); err != nil {
		return nil, err
	}
	return NewGenerator(source)
}

func makeStream(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn); err != nil {
		return nil, err
	}
	return NewStream(fn.Name(), func() (starlark.Value, bool, error) {
		v, err := starlark.Call(thread, fn, nil, nil)
		if err != nil {
			return nil, false, err
		}
		if v == Done {
			return nil, false, nil
		}
		return v, true, nil
	}), nil
}

func wrapDescriptor(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		descriptor starlark.Value
		owner      starlark.Value
		name       string
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"descriptor", &descriptor,
		"owner?", &owner,
		"name?", &name,
	); err != nil {
		return nil, err
	}
	if owner == starlark.None {
		owner = nil
	}
	return Wrap(descriptor, owner, name)
}

// Done is the completion sentinel returned by stream callables.
var Done doneType

type doneType struct{}

func (doneType) String() string        { return "done" }
func (doneType) Type() string          { return "done" }
func (doneType) Freeze()               {}
func (doneType) Truth() starlark.Bool  { return starlark.False }
func (doneType) Hash() (uint32, error) { return 0x646f6e65, nil }

func callableOrNone(c starlark.Callable) starlark.Value {
	if c == nil {
		return starlark.None
	}
	return c
}

// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package propclass binds cached properties into script-defined types.
//
// It is the host-side glue between Starlark's attribute protocol and the
// cache package: a script defines a class with types.define, instantiates
// it by calling the class, and every attribute read, write and delete on
// an instance is routed through the corresponding [cache.Property].
package propclass

import (
	"fmt"
	"sort"

	"go.astrophena.name/starcache/internal/starlark/cache"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Module returns a Starlark module for defining types with cached
// properties.
//
// This module provides two functions:
//
//   - define(name, fields): Creates a new class. fields is a dict mapping
//     attribute names to values; values that are cached properties are
//     bound to the class under their field name, everything else becomes a
//     shared class attribute.
//   - delete(instance, name): Deletes the named attribute of an instance.
//     Starlark has no attribute deletion statement, so the deleter hook of
//     a cached property is reachable through this function.
func Module() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "types",
		Members: starlark.StringDict{
			"define": starlark.NewBuiltin("types.define", define),
			"delete": starlark.NewBuiltin("types.delete", deleteAttr),
		},
	}
}

func define(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name   string
		fields *starlark.Dict
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "fields?", &fields); err != nil {
		return nil, err
	}
	c := &Class{name: name, fields: make(starlark.StringDict)}
	if fields != nil {
		for _, item := range fields.Items() {
			k, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("%s: field name is not a string: %s", b.Name(), item[0].Type())
			}
			v := item[1]
			if p, ok := v.(*cache.Property); ok {
				if err := p.Bind(c, k.GoString()); err != nil {
					return nil, err
				}
			}
			c.fields[k.GoString()] = v
		}
	}
	return c, nil
}

func deleteAttr(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		instance starlark.Value
		name     string
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "instance", &instance, "name", &name); err != nil {
		return nil, err
	}
	i, ok := instance.(*Instance)
	if !ok {
		return nil, fmt.Errorf("%s: %s has no deletable attributes", b.Name(), instance.Type())
	}
	return starlark.None, i.DeleteAttr(thread, name)
}

// Class is a script-defined type. Some of its fields may be cached
// properties; those are bound to the class when it is defined and
// intercept attribute access on its instances.
type Class struct {
	name   string
	fields starlark.StringDict
	frozen bool
}

// String implements the [fmt.Stringer] interface.
func (c *Class) String() string { return fmt.Sprintf("<class %s>", c.name) }

// Type implements the [starlark.Value] interface.
func (c *Class) Type() string { return "class" }

// Freeze implements the [starlark.Value] interface.
func (c *Class) Freeze() {
	if c.frozen {
		return
	}
	c.frozen = true
	c.fields.Freeze()
}

// Truth implements the [starlark.Value] interface.
func (c *Class) Truth() starlark.Bool { return starlark.True }

// Hash implements the [starlark.Value] interface.
func (c *Class) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", c.Type()) }

// Name implements the [starlark.Callable] interface.
func (c *Class) Name() string { return c.name }

// Attr implements the [starlark.HasAttrs] interface, exposing class
// fields (including the property objects themselves).
func (c *Class) Attr(name string) (starlark.Value, error) {
	if v, ok := c.fields[name]; ok {
		return v, nil
	}
	return nil, nil
}

// AttrNames implements the [starlark.HasAttrs] interface.
func (c *Class) AttrNames() []string {
	names := make([]string, 0, len(c.fields))
	for name := range c.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallInternal implements the [starlark.Callable] interface. Calling a
// class creates a new instance; keyword arguments are applied as initial
// attribute writes.
func (c *Class) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("%s: unexpected positional arguments", c.name)
	}
	i := &Instance{
		class:  c,
		thread: thread,
		attrs:  make(starlark.StringDict),
	}
	for _, kv := range kwargs {
		name, ok := kv[0].(starlark.String)
		if !ok {
			return nil, fmt.Errorf("%s: keyword is not a string: %s", c.name, kv[0].Type())
		}
		if err := i.SetField(name.GoString(), kv[1]); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Instance is a value of a script-defined class.
//
// Attribute hooks of cached properties run on the thread that created the
// instance: the Starlark attribute protocol carries no thread, and the
// host runtime is cooperative.
type Instance struct {
	class  *Class
	thread *starlark.Thread
	attrs  starlark.StringDict
	frozen bool
}

// Class returns the class this instance belongs to.
func (i *Instance) Class() *Class { return i.class }

// String implements the [fmt.Stringer] interface.
func (i *Instance) String() string { return fmt.Sprintf("<%s instance>", i.class.name) }

// Type implements the [starlark.Value] interface.
func (i *Instance) Type() string { return "instance" }

// Freeze implements the [starlark.Value] interface.
func (i *Instance) Freeze() {
	if i.frozen {
		return
	}
	i.frozen = true
	i.attrs.Freeze()
}

// Truth implements the [starlark.Value] interface.
func (i *Instance) Truth() starlark.Bool { return starlark.True }

// Hash implements the [starlark.Value] interface.
func (i *Instance) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", i.Type()) }

// Attr implements the [starlark.HasAttrs] interface. Cached properties
// take precedence over instance-local attributes; plain class fields are
// shadowed by instance-local ones.
func (i *Instance) Attr(name string) (starlark.Value, error) {
	if p, ok := i.property(name); ok {
		return p.Read(i.thread, i)
	}
	if v, ok := i.attrs[name]; ok {
		return v, nil
	}
	if v, ok := i.class.fields[name]; ok {
		return v, nil
	}
	return nil, nil
}

// AttrNames implements the [starlark.HasAttrs] interface.
func (i *Instance) AttrNames() []string {
	seen := make(map[string]bool)
	var names []string
	for name := range i.class.fields {
		seen[name] = true
		names = append(names, name)
	}
	for name := range i.attrs {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// SetField implements the [starlark.HasSetField] interface.
func (i *Instance) SetField(name string, val starlark.Value) error {
	if i.frozen {
		return fmt.Errorf("cannot set attribute of frozen %s instance", i.class.name)
	}
	if p, ok := i.property(name); ok {
		return p.Write(i.thread, i, val)
	}
	i.attrs[name] = val
	return nil
}

// DeleteAttr deletes the named attribute, invoking the deleter of a
// cached property or removing an instance-local attribute.
func (i *Instance) DeleteAttr(thread *starlark.Thread, name string) error {
	if i.frozen {
		return fmt.Errorf("cannot delete attribute of frozen %s instance", i.class.name)
	}
	if p, ok := i.property(name); ok {
		return p.Delete(thread, i)
	}
	if _, ok := i.attrs[name]; ok {
		delete(i.attrs, name)
		return nil
	}
	if _, ok := i.class.fields[name]; ok {
		return fmt.Errorf("cannot delete class attribute %q", name)
	}
	return starlark.NoSuchAttrError(fmt.Sprintf("%s instance has no attribute %q", i.class.name, name))
}

func (i *Instance) property(name string) (*cache.Property, bool) {
	v, ok := i.class.fields[name]
	if !ok {
		return nil, false
	}
	p, ok := v.(*cache.Property)
	return p, ok
}

var (
	_ starlark.Value       = (*Class)(nil)
	_ starlark.Callable    = (*Class)(nil)
	_ starlark.HasAttrs    = (*Class)(nil)
	_ starlark.Value       = (*Instance)(nil)
	_ starlark.HasAttrs    = (*Instance)(nil)
	_ starlark.HasSetField = (*Instance)(nil)
)

// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package cache

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"
)

// Property is an attribute of a script-defined type that is computed once
// per owning instance and cached.
//
// A single Property is shared by every instance of the class it is bound
// to; cached values live in a per-instance store keyed by instance
// identity. Reading a property with an empty cache invokes the getter and
// caches its result. Writing invokes the setter: a setter that returns
// None invalidates the cache, a setter that returns a value replaces the
// cached value, and with no setter registered the written value overwrites
// the cache directly. Deleting invokes the deleter, if any, and always
// clears the cache entry.
//
// From scripts a Property is created with cache.property and supports
// decorator-style hook registration:
//
//	norm = cache.property(doc = "Distance from origin.")
//	def norm_getter(self):
//	    return (self.x * self.x + self.y * self.y) ** 0.5
//	norm.getter(norm_getter)
type Property struct {
	fget, fset, fdel starlark.Callable
	doc              string
	args             starlark.Tuple
	kwargs           *starlark.Dict
	owner            starlark.Value // nil until bound
	name             string
	frozen           bool
	cache            *store
}

// New returns a new Property with the given hooks.
//
// Each hook may be nil or None, meaning unset; any other non-callable
// value is rejected with ErrNotCallable. args and kwargs are extra
// arguments appended to every hook invocation; nil values are normalized
// to empty. kwargs keys must be strings.
func New(fget, fset, fdel starlark.Value, doc string, args starlark.Tuple, kwargs *starlark.Dict) (*Property, error) {
	p := &Property{
		doc:    doc,
		args:   args,
		kwargs: kwargs,
		cache:  newStore(),
	}
	if p.args == nil {
		p.args = starlark.Tuple{}
	}
	if p.kwargs == nil {
		p.kwargs = starlark.NewDict(0)
	}
	for _, item := range p.kwargs.Items() {
		if _, ok := item[0].(starlark.String); !ok {
			return nil, fmt.Errorf("cache: kwargs key is not a string: %s", item[0].Type())
		}
	}
	var err error
	if p.fget, err = hook(fget); err != nil {
		return nil, err
	}
	if p.fset, err = hook(fset); err != nil {
		return nil, err
	}
	if p.fdel, err = hook(fdel); err != nil {
		return nil, err
	}
	return p, nil
}

// Wrap adapts descriptor into a Property. The descriptor's callable get,
// set and delete attributes, if present, become the getter, setter and
// deleter of the returned property.
//
// owner and name may be supplied to bind the property immediately, for
// wrapping outside a class definition; either may be left zero to bind
// later with [Property.Bind].
func Wrap(descriptor, owner starlark.Value, name string) (*Property, error) {
	attrs, ok := descriptor.(starlark.HasAttrs)
	if !ok {
		return nil, fmt.Errorf("cache: %s has no attributes to wrap", descriptor.Type())
	}
	p, err := New(nil, nil, nil, "", nil, nil)
	if err != nil {
		return nil, err
	}
	if p.fget, err = attrHook(attrs, "get"); err != nil {
		return nil, err
	}
	if p.fset, err = attrHook(attrs, "set"); err != nil {
		return nil, err
	}
	if p.fdel, err = attrHook(attrs, "delete"); err != nil {
		return nil, err
	}
	if owner != nil || name != "" {
		p.owner = owner
		p.name = name
	}
	return p, nil
}

// attrHook looks up a callable attribute of a wrapped descriptor. A
// missing attribute leaves the hook unset.
func attrHook(attrs starlark.HasAttrs, name string) (starlark.Callable, error) {
	v, err := attrs.Attr(name)
	if err != nil {
		var nsa starlark.NoSuchAttrError
		if errors.As(err, &nsa) {
			return nil, nil
		}
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return hook(v)
}

// hook validates a getter, setter or deleter slot value: it must be a
// callable, nil or None.
func hook(v starlark.Value) (starlark.Callable, error) {
	if v == nil || v == starlark.None {
		return nil, nil
	}
	c, ok := v.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, v.Type())
	}
	return c, nil
}

// Bind records the class and attribute name this property is attached to.
// It must be called exactly once, before any read, write or delete;
// calling it again returns ErrAlreadyBound.
func (p *Property) Bind(owner starlark.Value, name string) error {
	if p.owner != nil || p.name != "" {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, p.ref())
	}
	p.owner = owner
	p.name = name
	return nil
}

// Owner returns the class this property is bound to, or nil.
func (p *Property) Owner() starlark.Value { return p.owner }

// AttrName returns the attribute name this property is bound under.
func (p *Property) AttrName() string { return p.name }

// Doc returns the documentation string of this property.
func (p *Property) Doc() string { return p.doc }

// ref describes the property in error messages.
func (p *Property) ref() string {
	if p.name == "" {
		return "<anonymous property>"
	}
	if p.owner == nil {
		return fmt.Sprintf("property %q", p.name)
	}
	return fmt.Sprintf("property %q of %s", p.name, p.owner.String())
}

// Read returns the cached value for instance, computing it first if the
// cache entry is empty.
//
// On a miss the getter is invoked as fget(instance, *args, **kwargs). If
// its result is a one-shot lazy sequence (a [Source]), a [Generator]
// wrapping it is cached and returned instead of the raw sequence. A
// getter failure propagates unchanged and leaves the cache empty. Reading
// with no getter registered and no cached value returns ErrUnreadable.
func (p *Property) Read(thread *starlark.Thread, instance starlark.Value) (starlark.Value, error) {
	if v, ok, err := p.cache.get(instance); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}
	if p.fget == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreadable, p.ref())
	}
	v, err := starlark.Call(thread, p.fget, p.hookArgs(instance), p.hookKwargs())
	if err != nil {
		return nil, err
	}
	if _, ok := v.(Source); ok {
		g, err := NewGenerator(v)
		if err != nil {
			return nil, err
		}
		v = g
	}
	if err := p.cache.put(instance, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Write assigns value to the property for instance.
//
// With no setter registered the value is stored into the cache directly.
// Otherwise the setter is invoked as fset(instance, value, *args,
// **kwargs): if it returns None the cache entry is invalidated and the
// next read recomputes, if it returns a value that value is cached. A
// setter failure propagates unchanged and leaves the cache as it was.
// Write never invokes the getter.
func (p *Property) Write(thread *starlark.Thread, instance, value starlark.Value) error {
	if p.fset == nil {
		return p.cache.put(instance, value)
	}
	args := append(starlark.Tuple{instance, value}, p.args...)
	res, err := starlark.Call(thread, p.fset, args, p.hookKwargs())
	if err != nil {
		return err
	}
	if res == nil || res == starlark.None {
		return p.cache.drop(instance)
	}
	return p.cache.put(instance, res)
}

// Delete invokes the deleter for instance, if one is registered, and
// clears the cache entry. The deleter is called for its side effects only;
// its return value is ignored. A deleter failure propagates unchanged and
// leaves the cache as it was.
func (p *Property) Delete(thread *starlark.Thread, instance starlark.Value) error {
	if p.fdel != nil {
		if _, err := starlark.Call(thread, p.fdel, p.hookArgs(instance), p.hookKwargs()); err != nil {
			return err
		}
	}
	return p.cache.drop(instance)
}

// WithGetter registers fn as the getter and returns the property, enabling
// chained registration. fn may be None to unset the getter.
func (p *Property) WithGetter(fn starlark.Value) (*Property, error) { return p.with(&p.fget, fn) }

// WithSetter registers fn as the setter and returns the property. fn may
// be None to unset the setter.
func (p *Property) WithSetter(fn starlark.Value) (*Property, error) { return p.with(&p.fset, fn) }

// WithDeleter registers fn as the deleter and returns the property. fn may
// be None to unset the deleter.
func (p *Property) WithDeleter(fn starlark.Value) (*Property, error) { return p.with(&p.fdel, fn) }

func (p *Property) with(slot *starlark.Callable, fn starlark.Value) (*Property, error) {
	if p.frozen {
		return nil, fmt.Errorf("cache: cannot modify frozen %s", p.ref())
	}
	c, err := hook(fn)
	if err != nil {
		return nil, err
	}
	*slot = c
	return p, nil
}

// GetExtra returns the extra keyword argument named key.
func (p *Property) GetExtra(key string) (starlark.Value, bool, error) {
	v, ok, err := p.kwargs.Get(starlark.String(key))
	return v, ok, err
}

// SetExtra sets the extra keyword argument named key.
func (p *Property) SetExtra(key string, value starlark.Value) error {
	if p.frozen {
		return fmt.Errorf("cache: cannot modify frozen %s", p.ref())
	}
	return p.kwargs.SetKey(starlark.String(key), value)
}

// hookArgs builds the positional arguments of a getter or deleter call.
func (p *Property) hookArgs(instance starlark.Value) starlark.Tuple {
	return append(starlark.Tuple{instance}, p.args...)
}

// hookKwargs builds the keyword arguments of a hook call.
func (p *Property) hookKwargs() []starlark.Tuple {
	items := p.kwargs.Items()
	kwargs := make([]starlark.Tuple, 0, len(items))
	for _, item := range items {
		kwargs = append(kwargs, starlark.Tuple{item[0], item[1]})
	}
	return kwargs
}

// String implements the [fmt.Stringer] interface.
func (p *Property) String() string {
	if p.name == "" {
		return "<cached_property>"
	}
	return fmt.Sprintf("<cached_property %q>", p.name)
}

// Type implements the [starlark.Value] interface.
func (p *Property) Type() string { return "cached_property" }

// Freeze implements the [starlark.Value] interface.
func (p *Property) Freeze() {
	if p.frozen {
		return
	}
	p.frozen = true
	p.args.Freeze()
	p.kwargs.Freeze()
}

// Truth implements the [starlark.Value] interface.
func (p *Property) Truth() starlark.Bool { return starlark.True }

// Hash implements the [starlark.Value] interface.
func (p *Property) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", p.Type()) }

// Name implements the [starlark.Callable] interface.
func (p *Property) Name() string { return p.Type() }

// CallInternal implements the [starlark.Callable] interface. Calling a
// property registers its getter, mirroring decorator-style use of
// cache.property.
func (p *Property) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Value
	if err := starlark.UnpackPositionalArgs(p.Name(), args, kwargs, 1, &fn); err != nil {
		return nil, err
	}
	return p.WithGetter(fn)
}

// Attr implements the [starlark.HasAttrs] interface.
func (p *Property) Attr(name string) (starlark.Value, error) {
	switch name {
	case "fget":
		return callableOrNone(p.fget), nil
	case "fset":
		return callableOrNone(p.fset), nil
	case "fdel":
		return callableOrNone(p.fdel), nil
	case "doc":
		return starlark.String(p.doc), nil
	case "owner":
		if p.owner == nil {
			return starlark.None, nil
		}
		return p.owner, nil
	case "name":
		return starlark.String(p.name), nil
	case "args":
		return p.args, nil
	case "kwargs":
		return p.kwargs, nil
	case "getter":
		return p.registerer(name, p.WithGetter), nil
	case "setter":
		return p.registerer(name, p.WithSetter), nil
	case "deleter":
		return p.registerer(name, p.WithDeleter), nil
	}
	return nil, nil
}

// AttrNames implements the [starlark.HasAttrs] interface.
func (p *Property) AttrNames() []string {
	return []string{
		"args", "deleter", "doc", "fdel", "fget", "fset",
		"getter", "kwargs", "name", "owner", "setter",
	}
}

// registerer returns a bound method registering a hook and returning the
// property itself.
func (p *Property) registerer(name string, with func(starlark.Value) (*Property, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var fn starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &fn); err != nil {
			return nil, err
		}
		return with(fn)
	})
}

// Get implements the [starlark.Mapping] interface, reading an extra
// keyword argument by name.
func (p *Property) Get(k starlark.Value) (starlark.Value, bool, error) {
	return p.kwargs.Get(k)
}

// SetKey implements the [starlark.HasSetKey] interface, setting an extra
// keyword argument by name.
func (p *Property) SetKey(k, v starlark.Value) error {
	if p.frozen {
		return fmt.Errorf("cache: cannot modify frozen %s", p.ref())
	}
	if _, ok := k.(starlark.String); !ok {
		return fmt.Errorf("cache: kwargs key is not a string: %s", k.Type())
	}
	return p.kwargs.SetKey(k, v)
}

var (
	_ starlark.Value     = (*Property)(nil)
	_ starlark.Callable  = (*Property)(nil)
	_ starlark.HasAttrs  = (*Property)(nil)
	_ starlark.Mapping   = (*Property)(nil)
	_ starlark.HasSetKey = (*Property)(nil)
)

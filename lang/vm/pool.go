package vm

import (
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/mna/lovm/lang/code"
	"github.com/mna/lovm/lang/value"
)

// Handle is a unique, never-recycled identifier assigned to an object pool
// entry at creation time.
type Handle uint64

// poolKind distinguishes the three container shapes the object pool can
// hold. All three share the same keyed get/set/append capability (see
// container below); the kind only governs the type check of the Object,
// Array and Dict accessors (used by OCall) and OAppend's auto-indexing
// policy. Dispose accepts a handle of any kind.
type poolKind uint8

const (
	kindObject poolKind = iota
	kindArray
	kindDict
)

// container is the keyed storage shared by Object, Array and Dict, backed
// by a Swiss table for O(1) amortized lookup regardless of key kind. This
// mirrors the Map type of the Starlark-derived interpreter this module grew
// out of, which backs its own dictionary value with the same dolthub/swiss
// table; here the same table also stands in for "a list of values indexed
// by integer" by using integer-valued keys, per the shared capability set
// Array/Dict/Object are specified to have (keyed get, keyed set, append).
type container struct {
	m      *swiss.Map[value.Value, value.Value]
	nextIx int64
}

func newContainer() *container {
	return &container{m: swiss.NewMap[value.Value, value.Value](8)}
}

func (c *container) get(k value.Value) (value.Value, bool) {
	return c.m.Get(k)
}

func (c *container) set(k, v value.Value) {
	c.m.Put(k, v)
}

// appendIndexed stores v at the next auto-incrementing integer key, the
// Array/Object append convention.
func (c *container) appendIndexed(v value.Value) {
	c.m.Put(value.NewInt(c.nextIx), v)
	c.nextIx++
}

// appendKeyed stores v keyed by itself, the Dict append convention (a
// set-like insertion when OAppend supplies no explicit key).
func (c *container) appendKeyed(v value.Value) {
	c.m.Put(v, v)
}

// Object is a keyed container plus an optional association to a Unit
// acting as its method table, used by OCall to resolve a method name.
type Object struct {
	c    *container
	Unit *code.Unit
}

// Array is a keyed container conventionally indexed by consecutive
// integers starting at 0.
type Array struct {
	c *container
}

// Dict is a general keyed container: any Value may be a key.
type Dict struct {
	c *container
}

// poolEntry is one allocation tracked by the pool.
type poolEntry struct {
	kind   poolKind
	object *Object
	array  *Array
	dict   *Dict
}

func (e *poolEntry) container() *container {
	switch e.kind {
	case kindObject:
		return e.object.c
	case kindArray:
		return e.array.c
	default:
		return e.dict.c
	}
}

// Pool is the VM-scoped registry of runtime objects keyed by integer handle.
// Handles are assigned by a monotonically increasing counter and are never
// recycled within a VM's lifetime, even across disposal.
type Pool struct {
	entries map[Handle]*poolEntry
	next    Handle
}

func newPool() *Pool {
	return &Pool{entries: make(map[Handle]*poolEntry)}
}

func (p *Pool) alloc(e *poolEntry) Handle {
	h := p.next
	p.next++
	p.entries[h] = e
	return h
}

// NewObject allocates a new Object bound to unit and returns its handle.
func (p *Pool) NewObject(unit *code.Unit) Handle {
	return p.alloc(&poolEntry{kind: kindObject, object: &Object{c: newContainer(), Unit: unit}})
}

// NewArray allocates a new, empty Array and returns its handle.
func (p *Pool) NewArray() Handle {
	return p.alloc(&poolEntry{kind: kindArray, array: &Array{c: newContainer()}})
}

// NewDict allocates a new, empty Dict and returns its handle.
func (p *Pool) NewDict() Handle {
	return p.alloc(&poolEntry{kind: kindDict, dict: &Dict{c: newContainer()}})
}

// Dispose removes h from the pool. Using a disposed or unknown handle is a
// fatal runtime error (ErrBadHandle).
func (p *Pool) Dispose(h Handle) error {
	if _, ok := p.entries[h]; !ok {
		return fmt.Errorf("%w: %d", ErrBadHandle, h)
	}
	delete(p.entries, h)
	return nil
}

func (p *Pool) lookup(h Handle) (*poolEntry, error) {
	e, ok := p.entries[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBadHandle, h)
	}
	return e, nil
}

// Object returns the Object entry for h.
func (p *Pool) Object(h Handle) (*Object, error) {
	e, err := p.lookup(h)
	if err != nil {
		return nil, err
	}
	if e.kind != kindObject {
		return nil, fmt.Errorf("%w: handle %d is not an object", ErrBadHandle, h)
	}
	return e.object, nil
}

// Array returns the Array entry for h.
func (p *Pool) Array(h Handle) (*Array, error) {
	e, err := p.lookup(h)
	if err != nil {
		return nil, err
	}
	if e.kind != kindArray {
		return nil, fmt.Errorf("%w: handle %d is not an array", ErrBadHandle, h)
	}
	return e.array, nil
}

// Dict returns the Dict entry for h.
func (p *Pool) Dict(h Handle) (*Dict, error) {
	e, err := p.lookup(h)
	if err != nil {
		return nil, err
	}
	if e.kind != kindDict {
		return nil, fmt.Errorf("%w: handle %d is not a dict", ErrBadHandle, h)
	}
	return e.dict, nil
}

// Get reads the member keyed by k from h's container, regardless of pool
// kind, implementing OGet's uniform "keyed get" over Object/Array/Dict.
func (p *Pool) Get(h Handle, k value.Value) (value.Value, bool, error) {
	e, err := p.lookup(h)
	if err != nil {
		return value.Value{}, false, err
	}
	v, ok := e.container().get(k)
	return v, ok, nil
}

// Set writes v keyed by k into h's container, implementing OSet's uniform
// "keyed set".
func (p *Pool) Set(h Handle, k, v value.Value) error {
	e, err := p.lookup(h)
	if err != nil {
		return err
	}
	e.container().set(k, v)
	return nil
}

// Append implements OAppend: Array/Object entries append at the next
// auto-incrementing integer key; Dict entries insert keyed by the value
// itself.
func (p *Pool) Append(h Handle, v value.Value) error {
	e, err := p.lookup(h)
	if err != nil {
		return err
	}
	if e.kind == kindDict {
		e.container().appendKeyed(v)
	} else {
		e.container().appendIndexed(v)
	}
	return nil
}

package code

import "github.com/mna/lovm/lang/space"

// Unit is an ordered mapping of name to shared CodeObject, plus a unit-level
// Space reserved for future cross-object data. A Unit is the serialization
// boundary (see encode.go/decode.go) and the granularity at which the
// virtual machine loads code: a unit with a function named "main" is
// executable.
type Unit struct {
	Space   *space.Space
	entries []unitEntry
}

type unitEntry struct {
	Name string
	Code *CodeObject
}

// NewUnit returns an empty Unit.
func NewUnit() *Unit {
	return &Unit{Space: space.New()}
}

// Get returns the code object named name, by linear scan, and whether it was
// found.
func (u *Unit) Get(name string) (*CodeObject, bool) {
	for _, e := range u.entries {
		if e.Name == name {
			return e.Code, true
		}
	}
	return nil, false
}

// Set replaces the code object named name, or appends a new entry if no such
// name exists yet. Replacing a slot never mutates the CodeObject a caller
// may still be holding a reference to: it only swaps which CodeObject the
// Unit's entry points to.
func (u *Unit) Set(name string, co *CodeObject) {
	for i, e := range u.entries {
		if e.Name == name {
			u.entries[i].Code = co
			return
		}
	}
	u.entries = append(u.entries, unitEntry{Name: name, Code: co})
}

// Names returns the function names in insertion order.
func (u *Unit) Names() []string {
	names := make([]string, len(u.entries))
	for i, e := range u.entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of named code objects in the unit.
func (u *Unit) Len() int { return len(u.entries) }

// Executable reports whether the unit declares a function named "main".
func (u *Unit) Executable() bool {
	_, ok := u.Get("main")
	return ok
}

// Equal reports deep equality between two units, used to assert the
// serialization round-trip property.
func (u *Unit) Equal(o *Unit) bool {
	if len(u.entries) != len(o.entries) {
		return false
	}
	if !spaceEqual(u.Space, o.Space) {
		return false
	}
	for i, e := range u.entries {
		oe := o.entries[i]
		if e.Name != oe.Name {
			return false
		}
		if !codeEqual(e.Code, oe.Code) {
			return false
		}
	}
	return true
}

func spaceEqual(a, b *space.Space) bool {
	if len(a.Consts) != len(b.Consts) || len(a.Locals) != len(b.Locals) || len(a.Globals) != len(b.Globals) {
		return false
	}
	for i := range a.Consts {
		if !a.Consts[i].Equal(b.Consts[i]) {
			return false
		}
	}
	for i := range a.Locals {
		if a.Locals[i] != b.Locals[i] {
			return false
		}
	}
	for i := range a.Globals {
		if a.Globals[i] != b.Globals[i] {
			return false
		}
	}
	return true
}

func codeEqual(a, b *CodeObject) bool {
	if a.Argc != b.Argc || len(a.Instrs) != len(b.Instrs) {
		return false
	}
	if !spaceEqual(a.Space, b.Space) {
		return false
	}
	for i := range a.Instrs {
		if a.Instrs[i] != b.Instrs[i] {
			return false
		}
	}
	return true
}

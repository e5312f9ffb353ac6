// Package space implements the per-code-object symbol tables a CodeObject
// indexes into: the constant pool and the local/global name tables.
//
// The interning discipline (append-if-absent, observable insertion order) is
// adapted from the Space type of the original lovm sources
// (src/data/space.rs), reimplemented here with the append-only-slice
// approach a Starlark-derived interpreter uses for its own Program.Constants
// and Program.Names tables.
package space

import "github.com/mna/lovm/lang/value"

// Space holds the three ordered, append-only tables a code object's
// instructions index into. Insertion order is observable: the index
// assigned to an entry is the operand form used by bytecode, and is never
// renumbered once assigned.
type Space struct {
	Consts  []value.Value
	Locals  []string
	Globals []string
}

// New returns an empty Space.
func New() *Space {
	return &Space{}
}

// Clone returns a deep copy of s, safe to mutate independently.
func (s *Space) Clone() *Space {
	c := &Space{
		Consts:  append([]value.Value(nil), s.Consts...),
		Locals:  append([]string(nil), s.Locals...),
		Globals: append([]string(nil), s.Globals...),
	}
	return c
}

// InternConst interns v into the constant pool, returning its index. If an
// equal constant is already present, its existing index is returned and the
// pool is left unchanged.
func (s *Space) InternConst(v value.Value) int {
	for i, c := range s.Consts {
		if c.Equal(v) {
			return i
		}
	}
	s.Consts = append(s.Consts, v)
	return len(s.Consts) - 1
}

// InternLocal interns name into the locals table, returning its index.
func (s *Space) InternLocal(name string) int {
	return internName(&s.Locals, name)
}

// InternGlobal interns name into the globals table, returning its index.
func (s *Space) InternGlobal(name string) int {
	return internName(&s.Globals, name)
}

func internName(table *[]string, name string) int {
	for i, n := range *table {
		if n == name {
			return i
		}
	}
	*table = append(*table, name)
	return len(*table) - 1
}

// LocalIndex returns the index of name in the locals table, and whether it
// is present.
func (s *Space) LocalIndex(name string) (int, bool) {
	return indexOf(s.Locals, name)
}

// GlobalIndex returns the index of name in the globals table, and whether it
// is present.
func (s *Space) GlobalIndex(name string) (int, bool) {
	return indexOf(s.Globals, name)
}

func indexOf(table []string, name string) (int, bool) {
	for i, n := range table {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Merge interns every entry of other into s, in order. It does not rewrite
// any instruction operands; callers that merge code objects must remap
// operand indices themselves using the returned mappings.
func (s *Space) Merge(other *Space) (constMap, localMap, globalMap []int) {
	constMap = make([]int, len(other.Consts))
	for i, c := range other.Consts {
		constMap[i] = s.InternConst(c)
	}
	localMap = make([]int, len(other.Locals))
	for i, l := range other.Locals {
		localMap[i] = s.InternLocal(l)
	}
	globalMap = make([]int, len(other.Globals))
	for i, g := range other.Globals {
		globalMap[i] = s.InternGlobal(g)
	}
	return constMap, localMap, globalMap
}

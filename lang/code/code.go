package code

import "github.com/mna/lovm/lang/space"

// CodeObject is the unit of callable logic: an argument count, a Space, and
// an ordered instruction stream. Instructions reference local symbols
// exclusively by indices into this code object's own Space.
//
// A CodeObject is treated as immutable once it leaves a builder. "Modifying"
// a Unit's slot means constructing a replacement CodeObject and swapping the
// Unit's reference to it (see Unit.Set); the CodeObject itself is never
// mutated in place after being handed to a VM.
type CodeObject struct {
	Argc   int
	Space  *space.Space
	Instrs []Instr
}

// New returns an empty CodeObject ready to be populated by a builder.
func New(argc int) *CodeObject {
	return &CodeObject{Argc: argc, Space: space.New()}
}

// Clone returns a deep copy of co.
func (co *CodeObject) Clone() *CodeObject {
	return &CodeObject{
		Argc:   co.Argc,
		Space:  co.Space.Clone(),
		Instrs: append([]Instr(nil), co.Instrs...),
	}
}

// Validate checks the two structural invariants every built CodeObject must
// hold: every operand index falls within the Space table it indexes, and no
// jump instruction still carries the builder's sentinel target.
func (co *CodeObject) Validate() error {
	for i, in := range co.Instrs {
		if IsJump(in.Op) {
			if in.Arg == SentinelTarget {
				return &ValidationError{Index: i, Msg: "unresolved jump target"}
			}
			if int(in.Arg) >= len(co.Instrs) {
				return &ValidationError{Index: i, Msg: "jump target out of range"}
			}
			continue
		}
		if !HasArg(in.Op) {
			continue
		}
		switch in.Op {
		case CPush, Dv:
			if int(in.Arg) >= len(co.Space.Consts) {
				return &ValidationError{Index: i, Msg: "constant index out of range"}
			}
		case LPush, LPop, LCall:
			if int(in.Arg) >= len(co.Space.Locals) {
				return &ValidationError{Index: i, Msg: "local index out of range"}
			}
		case GPush, GPop, GCall, ONew:
			if int(in.Arg) >= len(co.Space.Globals) {
				return &ValidationError{Index: i, Msg: "global index out of range"}
			}
		case OGet, OSet, OCall:
			if int(in.Arg) >= len(co.Space.Consts) {
				return &ValidationError{Index: i, Msg: "member constant index out of range"}
			}
		}
	}
	return nil
}

// ValidationError reports a structural defect in a built CodeObject.
type ValidationError struct {
	Index int
	Msg   string
}

func (e *ValidationError) Error() string {
	return "code: instruction " + itoa(e.Index) + ": " + e.Msg
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Merge appends b's instructions onto a copy of a, reinterning every
// constant, local and global name referenced by b into the result's Space,
// and rewriting b's operand indices and jump targets accordingly.
//
// Per the builder's merge contract, a GPush/GPop/GCall instruction whose
// global name is already a local of a is rewritten into the corresponding
// LPush/LPop/LCall against that local; this is how a nested block that
// referenced an enclosing local (compiled, in isolation, as if it were a
// global) ends up correctly bound to the parent's local slot once merged.
func Merge(a, b *CodeObject) *CodeObject {
	out := a.Clone()
	constMap, localMap, _ := out.Space.Merge(&space.Space{Consts: b.Space.Consts, Locals: b.Space.Locals})

	localOfGlobal := make([]int, len(b.Space.Globals))
	isLocal := make([]bool, len(b.Space.Globals))
	globalMap := make([]int, len(b.Space.Globals))
	for i, name := range b.Space.Globals {
		if li, ok := out.Space.LocalIndex(name); ok {
			isLocal[i] = true
			localOfGlobal[i] = li
			continue
		}
		globalMap[i] = out.Space.InternGlobal(name)
	}

	base := uint32(len(out.Instrs))
	for _, in := range b.Instrs {
		switch {
		case IsJump(in.Op):
			in.Arg += base
		case in.Op == CPush || in.Op == Dv:
			in.Arg = uint32(constMap[in.Arg])
		case in.Op == LPush || in.Op == LPop || in.Op == LCall:
			in.Arg = uint32(localMap[in.Arg])
		case in.Op == GPush || in.Op == GPop || in.Op == GCall:
			idx := in.Arg
			if isLocal[idx] {
				in.Arg = uint32(localOfGlobal[idx])
				switch in.Op {
				case GPush:
					in.Op = LPush
				case GPop:
					in.Op = LPop
				case GCall:
					in.Op = LCall
				}
			} else {
				in.Arg = uint32(globalMap[idx])
			}
		case in.Op == ONew:
			in.Arg = uint32(out.Space.InternGlobal(b.Space.Globals[in.Arg]))
		case in.Op == OGet || in.Op == OSet || in.Op == OCall:
			in.Arg = uint32(constMap[in.Arg])
			// Cast and Int carry a raw, non-indexed argument and need no rewriting.
		}
		out.Instrs = append(out.Instrs, in)
	}
	return out
}

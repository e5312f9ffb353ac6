package code

import (
	"fmt"
	"io"
)

// Dump writes a textual disassembly of u to w: one function per block, one
// instruction per line, annotated with the symbol an argumented opcode's
// index resolves to. It is the inverse of nothing in particular — a reading
// aid for the assembler command line and for debugging, not a format this
// package ever parses back.
func Dump(w io.Writer, u *Unit) error {
	for _, name := range u.Names() {
		co, _ := u.Get(name)
		if _, err := fmt.Fprintf(w, "func %s/%d:\n", name, co.Argc); err != nil {
			return err
		}
		for i, in := range co.Instrs {
			if err := dumpInstr(w, i, in, co); err != nil {
				return err
			}
		}
	}
	return nil
}

func dumpInstr(w io.Writer, idx int, in Instr, co *CodeObject) error {
	if !HasArg(in.Op) {
		_, err := fmt.Fprintf(w, "%6d  %s\n", idx, in.Op)
		return err
	}

	ann := ""
	switch in.Op {
	case CPush, Dv, OGet, OSet, OCall:
		if int(in.Arg) < len(co.Space.Consts) {
			ann = fmt.Sprintf(" ; %s", co.Space.Consts[in.Arg])
		}
	case LPush, LPop, LCall:
		if int(in.Arg) < len(co.Space.Locals) {
			ann = fmt.Sprintf(" ; %s", co.Space.Locals[in.Arg])
		}
	case GPush, GPop, GCall, ONew:
		if int(in.Arg) < len(co.Space.Globals) {
			ann = fmt.Sprintf(" ; %s", co.Space.Globals[in.Arg])
		}
	}
	_, err := fmt.Fprintf(w, "%6d  %-6s %d%s\n", idx, in.Op, in.Arg, ann)
	return err
}

package asm

import (
	"fmt"
	"strings"

	"github.com/mna/lovm/lang/code"
	"github.com/mna/lovm/lang/token"
	"github.com/mna/lovm/lang/value"
)

// registers are pre-interned as locals 0-3 of every assembled function, so
// that Pusha/Popa's positional convention (the four register locals) lines
// up with `lpush A`/`lpop A`/etc resolving to the same slots.
var registers = [4]string{"A", "B", "C", "D"}

type lowerer struct {
	co       *code.CodeObject
	pending  map[string][]int
	resolved map[string]int
	errs     []error
}

// Assemble lexes, parses and lowers src into a Unit with a single function
// named "main" holding the flat instruction stream the source describes.
func Assemble(src string) (*code.Unit, error) {
	lines, lexErrs := Lex(src)
	stmts, parseErrs := Parse(lines)

	var errs []error
	errs = append(errs, lexErrs...)
	errs = append(errs, parseErrs...)
	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}

	lw := &lowerer{
		co:       code.New(0),
		pending:  make(map[string][]int),
		resolved: make(map[string]int),
	}
	for _, r := range registers {
		lw.co.Space.InternLocal(r)
	}

	for _, st := range stmts {
		lw.lowerStatement(st)
	}
	for name := range lw.pending {
		lw.errf(0, "undeclared label at end of compilation: %s", name)
	}
	if len(lw.errs) > 0 {
		return nil, joinErrors(lw.errs)
	}

	if err := lw.co.Validate(); err != nil {
		return nil, err
	}
	u := code.NewUnit()
	u.Set("main", lw.co)
	return u, nil
}

func joinErrors(errs []error) error {
	sb := &strings.Builder{}
	for i, e := range errs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Error())
	}
	return &CompileError{Errs: errs, msg: sb.String()}
}

// CompileError is the union of every error accumulated during one
// compilation pass: lex/parse errors fail immediately, but semantic errors
// from the lowering pass accumulate across the whole source before being
// returned together.
type CompileError struct {
	Errs []error
	msg  string
}

func (e *CompileError) Error() string { return e.msg }

func (lw *lowerer) errf(pos token.Pos, format string, args ...any) {
	l, c := pos.LineCol()
	msg := fmt.Sprintf(format, args...)
	if pos.Unknown() {
		lw.errs = append(lw.errs, fmt.Errorf("%s", msg))
		return
	}
	lw.errs = append(lw.errs, fmt.Errorf("%d:%d: %s", l, c, msg))
}

func (lw *lowerer) emit(in code.Instr) int {
	lw.co.Instrs = append(lw.co.Instrs, in)
	return len(lw.co.Instrs) - 1
}

func (lw *lowerer) lowerStatement(st Statement) {
	if st.Label != "" {
		if _, ok := lw.resolved[st.Label]; ok {
			lw.errf(st.LabelPos, "redeclaration of already-resolved label %q", st.Label)
		} else {
			target := len(lw.co.Instrs)
			lw.resolved[st.Label] = target
			for _, idx := range reversed(lw.pending[st.Label]) {
				lw.co.Instrs[idx].Arg = uint32(target)
			}
			delete(lw.pending, st.Label)
		}
	}
	if st.Mnemonic == "" {
		return
	}
	if st.IsMacro {
		lw.lowerMacro(st)
		return
	}
	name := strings.ToLower(st.Mnemonic)
	if name == "mov" {
		lw.lowerMov(st)
		return
	}
	op, ok := code.LookupOpcode(name)
	if !ok {
		lw.errf(st.MnemonicPos, "unknown mnemonic %q", st.Mnemonic)
		return
	}
	lw.lowerOpcode(st, op)
}

func reversed(s []int) []int {
	r := make([]int, len(s))
	for i, v := range s {
		r[len(s)-1-i] = v
	}
	return r
}

// pushValue emits the instruction that pushes op's own value (its register
// or local content, its constant, or its string), ignoring any leading '*'.
func (lw *lowerer) pushValue(op Operand) {
	switch op.Kind {
	case OperandRegister:
		idx := lw.co.Space.InternLocal(string(op.Register))
		lw.emit(code.Instr{Op: code.LPush, Arg: uint32(idx)})
	case OperandIdent:
		idx := lw.co.Space.InternLocal(op.Ident)
		lw.emit(code.Instr{Op: code.LPush, Arg: uint32(idx)})
	case OperandLiteral:
		idx := lw.co.Space.InternConst(op.Literal)
		lw.emit(code.Instr{Op: code.CPush, Arg: uint32(idx)})
	case OperandString:
		idx := lw.co.Space.InternConst(value.NewString(op.Str))
		lw.emit(code.Instr{Op: code.CPush, Arg: uint32(idx)})
	}
}

// popInto writes the stack top into op's own slot (register or named
// local); op must not be a literal or string.
func (lw *lowerer) popInto(op Operand) {
	switch op.Kind {
	case OperandRegister:
		idx := lw.co.Space.InternLocal(string(op.Register))
		lw.emit(code.Instr{Op: code.LPop, Arg: uint32(idx)})
	case OperandIdent:
		idx := lw.co.Space.InternLocal(op.Ident)
		lw.emit(code.Instr{Op: code.LPop, Arg: uint32(idx)})
	default:
		lw.errf(op.Pos, "cannot write a result into this operand")
	}
}

var binaryArith = map[code.Opcode]bool{
	code.Add: true, code.Sub: true, code.Mul: true, code.Div: true,
	code.Rem: true, code.Pow: true, code.And: true, code.Or: true,
	code.Xor: true, code.Shl: true, code.Shr: true,
}

var comparisons = map[code.Opcode]bool{
	code.CmpEq: true, code.CmpNe: true, code.CmpGe: true,
	code.CmpGt: true, code.CmpLe: true, code.CmpLt: true,
}

// noOperandOps carries no argument and takes no operand in assembly form
// beyond the shared binary-arithmetic/comparison two-operand sugar.
var noOperandOps = map[code.Opcode]bool{
	code.Neg: true, code.Inc: true, code.Dec: true, code.Dup: true,
	code.Ret: true, code.Pusha: true, code.Popa: true,
	code.Load: true, code.Store: true,
	code.ONewArray: true, code.ONewDict: true, code.ODispose: true,
	code.OAppend: true,
}

func (lw *lowerer) lowerOpcode(st Statement, op code.Opcode) {
	switch {
	case op == code.Cast:
		lw.lowerCast(st)
	case binaryArith[op] || comparisons[op]:
		lw.lowerArithOrCmp(st, op)
	case noOperandOps[op]:
		if len(st.Operands) != 0 {
			lw.errf(st.MnemonicPos, "%q takes no operands", st.Mnemonic)
			return
		}
		lw.emit(code.Instr{Op: op})
	case op == code.CPush:
		lw.lowerConstOperand(st, op)
	case op == code.LPush || op == code.LPop || op == code.LCall:
		lw.lowerLocalOperand(st, op)
	case op == code.GPush || op == code.GPop || op == code.GCall || op == code.ONew:
		lw.lowerGlobalOperand(st, op)
	case op == code.OGet || op == code.OSet || op == code.OCall:
		lw.lowerConstOperand(st, op)
	case op == code.Jmp || op == code.Jt || op == code.Jf:
		lw.lowerJump(st, op)
	case op == code.Int:
		lw.lowerInt(st)
	case op == code.Dv:
		lw.lowerDv(st)
	default:
		lw.errf(st.MnemonicPos, "mnemonic %q is not supported by the assembler", st.Mnemonic)
	}
}

func (lw *lowerer) lowerCast(st Statement) {
	if len(st.Operands) != 0 {
		lw.errf(st.MnemonicPos, "cast takes no operands, use an @type suffix")
		return
	}
	if st.TypeSuffix == "" {
		lw.errf(st.MnemonicPos, "cast requires an @type suffix")
		return
	}
	k, ok := value.ParseKind(st.TypeSuffix)
	if !ok {
		lw.errf(st.MnemonicPos, "unknown type suffix %q", st.TypeSuffix)
		return
	}
	lw.emit(code.Instr{Op: code.Cast, Arg: uint32(k)})
}

// lowerArithOrCmp lowers the bare-opcode form (no operand) or the
// two-operand sugar `op x1, x2`, which expands to `push x1; push x2; op`;
// for binary arithmetic (never for comparisons, whose result has no single
// natural destination) the result is written back into x1.
func (lw *lowerer) lowerArithOrCmp(st Statement, op code.Opcode) {
	switch len(st.Operands) {
	case 0:
		lw.emit(code.Instr{Op: op})
	case 2:
		lw.pushValue(st.Operands[0])
		lw.pushValue(st.Operands[1])
		lw.emit(code.Instr{Op: op})
		if binaryArith[op] {
			lw.popInto(st.Operands[0])
		}
	default:
		lw.errf(st.MnemonicPos, "%q takes 0 or 2 operands", st.Mnemonic)
	}
}

func (lw *lowerer) requireOneOperand(st Statement) (Operand, bool) {
	if len(st.Operands) != 1 {
		lw.errf(st.MnemonicPos, "%q requires exactly one operand", st.Mnemonic)
		return Operand{}, false
	}
	return st.Operands[0], true
}

func (lw *lowerer) lowerConstOperand(st Statement, op code.Opcode) {
	o, ok := lw.requireOneOperand(st)
	if !ok {
		return
	}
	var idx int
	switch o.Kind {
	case OperandLiteral:
		idx = lw.co.Space.InternConst(o.Literal)
	case OperandString:
		idx = lw.co.Space.InternConst(value.NewString(o.Str))
	default:
		lw.errf(o.Pos, "%q requires a literal or string operand", st.Mnemonic)
		return
	}
	lw.emit(code.Instr{Op: op, Arg: uint32(idx)})
}

func (lw *lowerer) lowerLocalOperand(st Statement, op code.Opcode) {
	o, ok := lw.requireOneOperand(st)
	if !ok {
		return
	}
	var idx int
	switch o.Kind {
	case OperandRegister:
		idx = lw.co.Space.InternLocal(string(o.Register))
	case OperandIdent:
		idx = lw.co.Space.InternLocal(o.Ident)
	default:
		lw.errf(o.Pos, "%q requires a register or identifier operand", st.Mnemonic)
		return
	}
	lw.emit(code.Instr{Op: op, Arg: uint32(idx)})
}

func (lw *lowerer) lowerGlobalOperand(st Statement, op code.Opcode) {
	o, ok := lw.requireOneOperand(st)
	if !ok {
		return
	}
	if o.Kind != OperandIdent {
		lw.errf(o.Pos, "%q requires an identifier operand", st.Mnemonic)
		return
	}
	idx := lw.co.Space.InternGlobal(o.Ident)
	lw.emit(code.Instr{Op: op, Arg: uint32(idx)})
}

func (lw *lowerer) lowerJump(st Statement, op code.Opcode) {
	o, ok := lw.requireOneOperand(st)
	if !ok {
		return
	}
	if o.Kind != OperandIdent {
		lw.errf(o.Pos, "%q requires a label operand", st.Mnemonic)
		return
	}
	idx := lw.emit(code.Instr{Op: op, Arg: code.SentinelTarget})
	if target, ok := lw.resolved[o.Ident]; ok {
		lw.co.Instrs[idx].Arg = uint32(target)
		return
	}
	lw.pending[o.Ident] = append(lw.pending[o.Ident], idx)
}

func (lw *lowerer) lowerInt(st Statement) {
	o, ok := lw.requireOneOperand(st)
	if !ok {
		return
	}
	if o.Kind != OperandLiteral {
		lw.errf(o.Pos, "int requires a literal operand")
		return
	}
	n, err := o.Literal.Cast(value.Int)
	if err != nil {
		lw.errf(o.Pos, "int operand: %s", err)
		return
	}
	lw.emit(code.Instr{Op: code.Int, Arg: uint32(n.Int())})
}

func (lw *lowerer) lowerDv(st Statement) {
	o, ok := lw.requireOneOperand(st)
	if !ok {
		return
	}
	var idx int
	switch o.Kind {
	case OperandLiteral:
		idx = lw.co.Space.InternConst(o.Literal)
	case OperandString:
		idx = lw.co.Space.InternConst(value.NewString(o.Str))
	default:
		lw.errf(o.Pos, "dv requires a literal or string operand")
		return
	}
	lw.emit(code.Instr{Op: code.Dv, Arg: uint32(idx)})
}

// lowerMov implements the four indirection cases for mov:
//
//	mov dst, src             push src; pop dst
//	mov dst, *src            push src; load; pop dst
//	mov *dst, src            push src; push dst; store
//	mov *dst, *src           push src; load; push dst; store
func (lw *lowerer) lowerMov(st Statement) {
	if len(st.Operands) != 2 {
		lw.errf(st.MnemonicPos, "mov requires exactly two operands")
		return
	}
	dst, src := st.Operands[0], st.Operands[1]

	lw.pushValue(src)
	if src.Deref {
		lw.emit(code.Instr{Op: code.Load})
	}
	if dst.Deref {
		lw.pushValue(dst)
		lw.emit(code.Instr{Op: code.Store})
		return
	}
	lw.popInto(dst)
}

// lowerMacro dispatches `@name ...` invocations. `skip` is the only macro
// registered here: it emits N zero-valued Dv slots.
func (lw *lowerer) lowerMacro(st Statement) {
	switch strings.ToLower(st.Mnemonic) {
	case "skip":
		lw.lowerSkip(st)
	default:
		lw.errf(st.MnemonicPos, "unknown macro %q", st.Mnemonic)
	}
}

func (lw *lowerer) lowerSkip(st Statement) {
	o, ok := lw.requireOneOperand(st)
	if !ok {
		return
	}
	if o.Kind != OperandLiteral {
		lw.errf(o.Pos, "skip requires a literal operand")
		return
	}
	n, err := o.Literal.Cast(value.Int)
	if err != nil {
		lw.errf(o.Pos, "skip operand: %s", err)
		return
	}
	zero := value.NewInt8(0)
	idx := lw.co.Space.InternConst(zero)
	for i := int64(0); i < n.Int(); i++ {
		lw.emit(code.Instr{Op: code.Dv, Arg: uint32(idx)})
	}
}

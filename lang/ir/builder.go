package ir

import (
	"fmt"

	"github.com/mna/lovm/lang/code"
)

// debugInterrupt is the reserved interrupt number the Debug operation
// triggers (vm.Debug in the virtual machine package; duplicated here as a
// literal so this package stays independent of vm).
const debugInterrupt = 10

// discardLocal is the name FunctionBuilder interns for a Pop operation's
// target: the instruction set has no dedicated "discard top of stack"
// opcode, so a pop is lowered as a write to a local that is never read.
const discardLocal = "$discard"

// FunctionBuilder lowers an Operation tree into a single code.CodeObject,
// per the builder's interning, evaluation-order, assignment, call, branching and
// termination rules.
type FunctionBuilder struct {
	co *code.CodeObject
}

// NewFunctionBuilder returns a builder for a function of argc parameters,
// named params, pre-interned as locals 0..argc-1 in declaration order.
func NewFunctionBuilder(argc int, params []string) *FunctionBuilder {
	co := code.New(argc)
	for _, p := range params {
		co.Space.InternLocal(p)
	}
	return &FunctionBuilder{co: co}
}

// Build lowers ops, appends a trailing Ret if the body doesn't already end
// in one (or in a Jmp) or if a jump targets the end of the body, validates
// the result, and returns the CodeObject.
func (b *FunctionBuilder) Build(ops []*Operation) (*code.CodeObject, error) {
	preScanAssigns(ops, b.co)
	for _, op := range ops {
		if err := b.lower(op); err != nil {
			return nil, err
		}
	}
	n := len(b.co.Instrs)
	needRet := n == 0 || (b.co.Instrs[n-1].Op != code.Ret && b.co.Instrs[n-1].Op != code.Jmp)
	for _, in := range b.co.Instrs {
		if code.IsJump(in.Op) && int(in.Arg) == n {
			needRet = true
		}
	}
	if needRet {
		b.emit(code.Instr{Op: code.Ret})
	}
	if err := b.co.Validate(); err != nil {
		return nil, err
	}
	return b.co, nil
}

// buildBlock lowers ops in a fresh, argc-0 CodeObject of their own, with no
// trailing Ret and no validation: the result is an intermediate fragment
// meant to be merged into an enclosing builder's CodeObject, never executed
// on its own.
func buildBlock(ops []*Operation) (*code.CodeObject, error) {
	b := &FunctionBuilder{co: code.New(0)}
	preScanAssigns(ops, b.co)
	for _, op := range ops {
		if err := b.lower(op); err != nil {
			return nil, err
		}
	}
	return b.co, nil
}

// preScanAssigns interns every Assign target in ops as a local before any
// operand is lowered: assignment targets are registered as locals up front,
// so a read of a name lowered before that name's (textually later)
// assignment still resolves to the local slot rather than interning a
// separate global. OperandBlock positions (branch bodies) are not
// descended into: they are lowered by their own, independent buildBlock
// call with their own pre-scan.
func preScanAssigns(ops []*Operation, co *code.CodeObject) {
	for _, op := range ops {
		if op.Tag == Assign && len(op.Operands) > 0 && op.Operands[0].Kind == OperandName {
			co.Space.InternLocal(op.Operands[0].Name)
		}
		for _, o := range op.Operands {
			if o.Kind == OperandNested {
				preScanAssigns([]*Operation{o.Op}, co)
			}
		}
	}
}

func (b *FunctionBuilder) emit(in code.Instr) int {
	b.co.Instrs = append(b.co.Instrs, in)
	return len(b.co.Instrs) - 1
}

func (b *FunctionBuilder) patch(idx, target int) {
	b.co.Instrs[idx].Arg = uint32(target)
}

// evalOperand emits the instructions that leave o's value on top of the
// stack.
func (b *FunctionBuilder) evalOperand(o Operand) error {
	switch o.Kind {
	case OperandConst:
		idx := b.co.Space.InternConst(o.Const)
		b.emit(code.Instr{Op: code.CPush, Arg: uint32(idx)})
		return nil
	case OperandName:
		if idx, ok := b.co.Space.LocalIndex(o.Name); ok {
			b.emit(code.Instr{Op: code.LPush, Arg: uint32(idx)})
			return nil
		}
		if idx, ok := b.co.Space.GlobalIndex(o.Name); ok {
			b.emit(code.Instr{Op: code.GPush, Arg: uint32(idx)})
			return nil
		}
		idx := b.co.Space.InternGlobal(o.Name)
		b.emit(code.Instr{Op: code.GPush, Arg: uint32(idx)})
		return nil
	case OperandNested:
		return b.lower(o.Op)
	default:
		return fmt.Errorf("ir: operand of kind %d cannot be evaluated as a value", o.Kind)
	}
}

func (b *FunctionBuilder) lower(op *Operation) error {
	switch op.Tag {
	case Assign:
		return b.lowerAssign(op)
	case Return:
		return b.lowerReturn(op)
	case Push:
		if len(op.Operands) != 1 {
			return fmt.Errorf("ir: push requires exactly one operand")
		}
		return b.evalOperand(op.Operands[0])
	case Pop:
		idx := b.co.Space.InternLocal(discardLocal)
		b.emit(code.Instr{Op: code.LPop, Arg: uint32(idx)})
		return nil
	case Arith:
		return b.lowerArith(op)
	case Compare:
		return b.lowerCompare(op)
	case Branch:
		return b.lowerBranch(op)
	case ObjectOp:
		return b.lowerObject(op)
	case Call:
		return b.lowerCall(op)
	case Debug:
		if len(op.Operands) != 1 {
			return fmt.Errorf("ir: debug requires exactly one operand")
		}
		if err := b.evalOperand(op.Operands[0]); err != nil {
			return err
		}
		b.emit(code.Instr{Op: code.Int, Arg: debugInterrupt})
		return nil
	default:
		return fmt.Errorf("ir: unknown operation tag %d", op.Tag)
	}
}

func (b *FunctionBuilder) lowerAssign(op *Operation) error {
	if len(op.Operands) != 2 || op.Operands[0].Kind != OperandName {
		return fmt.Errorf("ir: assign requires a name target and a value operand")
	}
	if err := b.evalOperand(op.Operands[1]); err != nil {
		return err
	}
	name := op.Operands[0].Name
	if idx, ok := b.co.Space.LocalIndex(name); ok {
		b.emit(code.Instr{Op: code.LPop, Arg: uint32(idx)})
		return nil
	}
	if idx, ok := b.co.Space.GlobalIndex(name); ok {
		b.emit(code.Instr{Op: code.GPop, Arg: uint32(idx)})
		return nil
	}
	idx := b.co.Space.InternLocal(name)
	b.emit(code.Instr{Op: code.LPop, Arg: uint32(idx)})
	return nil
}

func (b *FunctionBuilder) lowerReturn(op *Operation) error {
	if len(op.Operands) > 0 {
		if err := b.evalOperand(op.Operands[0]); err != nil {
			return err
		}
	}
	b.emit(code.Instr{Op: code.Ret})
	return nil
}

func (b *FunctionBuilder) lowerArith(op *Operation) error {
	if len(op.Operands) < 2 {
		return fmt.Errorf("ir: arithmetic requires at least two operands")
	}
	opc, err := arithToOpcode(op.Arith)
	if err != nil {
		return err
	}
	if err := b.evalOperand(op.Operands[0]); err != nil {
		return err
	}
	if err := b.evalOperand(op.Operands[1]); err != nil {
		return err
	}
	b.emit(code.Instr{Op: opc})
	for _, rest := range op.Operands[2:] {
		if err := b.evalOperand(rest); err != nil {
			return err
		}
		b.emit(code.Instr{Op: opc})
	}
	return nil
}

func (b *FunctionBuilder) lowerCompare(op *Operation) error {
	if len(op.Operands) != 2 {
		return fmt.Errorf("ir: comparison requires exactly two operands")
	}
	opc, err := cmpToOpcode(op.Cmp)
	if err != nil {
		return err
	}
	if err := b.evalOperand(op.Operands[0]); err != nil {
		return err
	}
	if err := b.evalOperand(op.Operands[1]); err != nil {
		return err
	}
	b.emit(code.Instr{Op: opc})
	return nil
}

// lowerBranch lowers a branch block: condition first, a Jf
// placeholder, the then-block merged in and the placeholder patched to its
// start; an optional else-block is appended behind a trailing Jmp that
// skips over it.
func (b *FunctionBuilder) lowerBranch(op *Operation) error {
	if len(op.Operands) < 2 || len(op.Operands) > 3 {
		return fmt.Errorf("ir: branch requires a condition and a then-block, and optionally an else-block")
	}
	if err := b.evalOperand(op.Operands[0]); err != nil {
		return err
	}
	jfIdx := b.emit(code.Instr{Op: code.Jf, Arg: code.SentinelTarget})

	thenCO, err := buildBlock(op.Operands[1].Block)
	if err != nil {
		return err
	}
	b.co = code.Merge(b.co, thenCO)

	if len(op.Operands) == 3 {
		jmpIdx := b.emit(code.Instr{Op: code.Jmp, Arg: code.SentinelTarget})
		b.patch(jfIdx, len(b.co.Instrs))

		elseCO, err := buildBlock(op.Operands[2].Block)
		if err != nil {
			return err
		}
		b.co = code.Merge(b.co, elseCO)
		b.patch(jmpIdx, len(b.co.Instrs))
		return nil
	}

	b.patch(jfIdx, len(b.co.Instrs))
	return nil
}

func (b *FunctionBuilder) lowerCall(op *Operation) error {
	if len(op.Operands) < 1 || op.Operands[0].Kind != OperandName {
		return fmt.Errorf("ir: call requires a function name operand")
	}
	name := op.Operands[0].Name
	for _, a := range op.Operands[1:] {
		if err := b.evalOperand(a); err != nil {
			return err
		}
	}
	if idx, ok := b.co.Space.LocalIndex(name); ok {
		b.emit(code.Instr{Op: code.LCall, Arg: uint32(idx)})
		return nil
	}
	if idx, ok := b.co.Space.GlobalIndex(name); ok {
		b.emit(code.Instr{Op: code.GCall, Arg: uint32(idx)})
		return nil
	}
	idx := b.co.Space.InternGlobal(name)
	b.emit(code.Instr{Op: code.GCall, Arg: uint32(idx)})
	return nil
}

func (b *FunctionBuilder) lowerObject(op *Operation) error {
	switch op.Object {
	case ObjectNew:
		if len(op.Operands) != 1 || op.Operands[0].Kind != OperandName {
			return fmt.Errorf("ir: object-new requires a type name operand")
		}
		idx := b.co.Space.InternGlobal(op.Operands[0].Name)
		b.emit(code.Instr{Op: code.ONew, Arg: uint32(idx)})
		return nil
	case ObjectNewArray:
		b.emit(code.Instr{Op: code.ONewArray})
		return nil
	case ObjectNewDict:
		b.emit(code.Instr{Op: code.ONewDict})
		return nil
	case ObjectDispose:
		if len(op.Operands) != 1 {
			return fmt.Errorf("ir: object-dispose requires a handle operand")
		}
		if err := b.evalOperand(op.Operands[0]); err != nil {
			return err
		}
		b.emit(code.Instr{Op: code.ODispose})
		return nil
	case ObjectGet:
		if len(op.Operands) != 2 || op.Operands[1].Kind != OperandConst {
			return fmt.Errorf("ir: object-get requires a handle operand and a constant key")
		}
		if err := b.evalOperand(op.Operands[0]); err != nil {
			return err
		}
		c := b.co.Space.InternConst(op.Operands[1].Const)
		b.emit(code.Instr{Op: code.OGet, Arg: uint32(c)})
		return nil
	case ObjectSet:
		if len(op.Operands) != 3 || op.Operands[1].Kind != OperandConst {
			return fmt.Errorf("ir: object-set requires a handle, a constant key, and a value operand")
		}
		if err := b.evalOperand(op.Operands[0]); err != nil {
			return err
		}
		if err := b.evalOperand(op.Operands[2]); err != nil {
			return err
		}
		c := b.co.Space.InternConst(op.Operands[1].Const)
		b.emit(code.Instr{Op: code.OSet, Arg: uint32(c)})
		return nil
	case ObjectCall:
		if len(op.Operands) < 2 || op.Operands[1].Kind != OperandConst {
			return fmt.Errorf("ir: object-call requires a handle operand, a constant method name, and arguments")
		}
		for _, a := range op.Operands[2:] {
			if err := b.evalOperand(a); err != nil {
				return err
			}
		}
		if err := b.evalOperand(op.Operands[0]); err != nil {
			return err
		}
		c := b.co.Space.InternConst(op.Operands[1].Const)
		b.emit(code.Instr{Op: code.OCall, Arg: uint32(c)})
		return nil
	case ObjectAppend:
		if len(op.Operands) != 2 {
			return fmt.Errorf("ir: object-append requires a handle operand and a value operand")
		}
		if err := b.evalOperand(op.Operands[0]); err != nil {
			return err
		}
		if err := b.evalOperand(op.Operands[1]); err != nil {
			return err
		}
		b.emit(code.Instr{Op: code.OAppend})
		return nil
	default:
		return fmt.Errorf("ir: unknown object operation kind %d", op.Object)
	}
}

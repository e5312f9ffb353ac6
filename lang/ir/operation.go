// Package ir implements the high-level Operation/Operand tree and the
// FunctionBuilder/UnitBuilder pair that lower it into code.CodeObject and
// code.Unit values.
//
// The tree shape and the builder's interning/evaluation-order contract
// follow the builder contract documented on FunctionBuilder; the lowering machinery (a small
// recursive-descent "compiler" walking an expression tree, accumulating
// instructions into a growable slice, patching placeholder jump targets
// once a branch's extent is known) is adapted from the approach used by
// lang/compiler of the Starlark-derived interpreter this module grew out
// of, generalized from Starlark expressions to lovm's Operation tree.
package ir

import "github.com/mna/lovm/lang/value"

// OperandKind identifies which field of an Operand is populated.
type OperandKind uint8

const (
	// OperandName is a bare identifier: a local or global name.
	OperandName OperandKind = iota
	// OperandConst is a literal value.
	OperandConst
	// OperandNested is a nested Operation, evaluated for its result.
	OperandNested
	// OperandBlock is an embedded sequence of Operations, used by branch
	// arms.
	OperandBlock
)

// Operand is one leaf or nested position in an Operation's operand list.
type Operand struct {
	Kind  OperandKind
	Name  string
	Const value.Value
	Op    *Operation
	Block []*Operation
}

// Name builds a name operand.
func Name(n string) Operand { return Operand{Kind: OperandName, Name: n} }

// Const builds a constant operand.
func Const(v value.Value) Operand { return Operand{Kind: OperandConst, Const: v} }

// Nested builds an operand whose value comes from evaluating op.
func Nested(op *Operation) Operand { return Operand{Kind: OperandNested, Op: op} }

// Block builds an embedded-block operand, used for branch bodies.
func Block(ops []*Operation) Operand { return Operand{Kind: OperandBlock, Block: ops} }

// Tag identifies what kind of construct an Operation represents.
type Tag uint8

const (
	// Assign writes Operands[1]'s value to the target named by Operands[0].
	Assign Tag = iota
	// Return evaluates Operands[0] (if present) and returns it.
	Return
	// Push evaluates Operands[0] and leaves it on the value stack.
	Push
	// Pop discards the top of the value stack.
	Pop
	// Arith folds Arith over Operands left to right.
	Arith
	// Compare evaluates Operands[0] Cmp Operands[1].
	Compare
	// Branch evaluates Operands[0] as a condition; Operands[1] is the
	// OperandBlock "then" body, and an optional Operands[2] is the "else"
	// body.
	Branch
	// ObjectOp performs an Object kind operation; see ObjectKind.
	ObjectOp
	// Call invokes the function named by Operands[0] with the remaining
	// Operands as arguments.
	Call
	// Debug evaluates Operands[0] and triggers the Debug interrupt on it.
	Debug
)

// ObjectKind identifies which object-pool operation an ObjectOp represents.
type ObjectKind uint8

const (
	ObjectNew ObjectKind = iota
	ObjectNewArray
	ObjectNewDict
	ObjectDispose
	ObjectGet
	ObjectSet
	ObjectCall
	ObjectAppend
)

// Operation is one node of the recursive IR tree lowered by FunctionBuilder.
type Operation struct {
	Tag      Tag
	Arith    value.BinOp
	Cmp      value.CmpOp
	Object   ObjectKind
	Operands []Operand
}

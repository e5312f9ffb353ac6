package ir_test

import (
	"testing"

	"github.com/mna/lovm/lang/ir"
	"github.com/mna/lovm/lang/value"
	"github.com/mna/lovm/lang/vm"
	"github.com/stretchr/testify/require"
)

func returnConst(n int64) *ir.Operation {
	return &ir.Operation{Tag: ir.Return, Operands: []ir.Operand{ir.Const(value.NewInt(n))}}
}

func eqBranch(name string, n int64, then *ir.Operation) *ir.Operation {
	cmp := &ir.Operation{
		Tag:      ir.Compare,
		Cmp:      value.CmpEq,
		Operands: []ir.Operand{ir.Name(name), ir.Const(value.NewInt(n))},
	}
	return &ir.Operation{
		Tag:      ir.Branch,
		Operands: []ir.Operand{ir.Nested(cmp), ir.Block([]*ir.Operation{then})},
	}
}

// buildFib builds, via the IR, a recursive fibonacci: if n==0 return 0; if
// n==1 return 1; return fib(n-1)+fib(n-2).
func buildFib(t *testing.T) *ir.UnitBuilder {
	t.Helper()
	sub := func(n int64) *ir.Operation {
		return &ir.Operation{Tag: ir.Arith, Arith: value.Sub, Operands: []ir.Operand{ir.Name("n"), ir.Const(value.NewInt(n))}}
	}
	callFib := func(arg *ir.Operation) *ir.Operation {
		return &ir.Operation{Tag: ir.Call, Operands: []ir.Operand{ir.Name("fib"), ir.Nested(arg)}}
	}
	sum := &ir.Operation{
		Tag:   ir.Arith,
		Arith: value.Add,
		Operands: []ir.Operand{
			ir.Nested(callFib(sub(1))),
			ir.Nested(callFib(sub(2))),
		},
	}
	body := []*ir.Operation{
		eqBranch("n", 0, returnConst(0)),
		eqBranch("n", 1, returnConst(1)),
		{Tag: ir.Return, Operands: []ir.Operand{ir.Nested(sum)}},
	}
	return ir.NewUnitBuilder().Func("fib", []string{"n"}, body)
}

func TestBuilderFibonacci(t *testing.T) {
	u, err := buildFib(t).Build()
	require.NoError(t, err)

	m := vm.New()
	m.LoadUnit("fib", u)
	result, err := m.Call(u, "fib", []value.Value{value.NewInt(8)})
	require.NoError(t, err)
	require.Equal(t, value.NewInt(21), result)
}

// buildArith builds a function via the IR where z starts at 1, then x and
// y are added into it in turn, observed through a debug interrupt.
func buildArith(t *testing.T) *ir.UnitBuilder {
	t.Helper()
	assign := func(name string, val ir.Operand) *ir.Operation {
		return &ir.Operation{Tag: ir.Assign, Operands: []ir.Operand{ir.Name(name), val}}
	}
	addInto := func(name, other string) *ir.Operation {
		arith := &ir.Operation{Tag: ir.Arith, Arith: value.Add, Operands: []ir.Operand{ir.Name(name), ir.Name(other)}}
		return assign(name, ir.Nested(arith))
	}
	body := []*ir.Operation{
		assign("z", ir.Const(value.NewInt(1))),
		addInto("z", "x"),
		addInto("z", "y"),
		{Tag: ir.Debug, Operands: []ir.Operand{ir.Name("z")}},
		{Tag: ir.Return},
	}
	return ir.NewUnitBuilder().Func("main", []string{"x", "y"}, body)
}

func TestBuilderArithmeticOnLocals(t *testing.T) {
	u, err := buildArith(t).Build()
	require.NoError(t, err)

	m := vm.New()
	m.LoadUnit("arith", u)
	_, err = m.Call(u, "main", []value.Value{value.NewInt(2), value.NewInt(3)})
	require.NoError(t, err)
	require.Equal(t, value.NewInt(6), m.LastDebug())
}

func TestBuilderBranchWithElse(t *testing.T) {
	cond := &ir.Operation{Tag: ir.Compare, Cmp: value.CmpGt, Operands: []ir.Operand{ir.Name("n"), ir.Const(value.NewInt(0))}}
	body := []*ir.Operation{
		{
			Tag: ir.Branch,
			Operands: []ir.Operand{
				ir.Nested(cond),
				ir.Block([]*ir.Operation{returnConst(1)}),
				ir.Block([]*ir.Operation{returnConst(-1)}),
			},
		},
	}
	u, err := ir.NewUnitBuilder().Func("sign", []string{"n"}, body).Build()
	require.NoError(t, err)

	m := vm.New()
	neg, err := m.Call(u, "sign", []value.Value{value.NewInt(-5)})
	require.NoError(t, err)
	require.Equal(t, value.NewInt(-1), neg)

	pos, err := m.Call(u, "sign", []value.Value{value.NewInt(5)})
	require.NoError(t, err)
	require.Equal(t, value.NewInt(1), pos)
}

// TestBuilderAssignTargetIsLocalEvenWhenReadFirst checks that a name
// assigned anywhere in a function body is classified as a local even when a
// read of that name is lowered before the assignment: assignment targets
// are registered up front, before any operand is lowered, so order of
// appearance within the body does not matter.
func TestBuilderAssignTargetIsLocalEvenWhenReadFirst(t *testing.T) {
	body := []*ir.Operation{
		{Tag: ir.Debug, Operands: []ir.Operand{ir.Name("g")}},
		{Tag: ir.Assign, Operands: []ir.Operand{ir.Name("g"), ir.Const(value.NewInt(5))}},
		{Tag: ir.Return, Operands: []ir.Operand{ir.Name("g")}},
	}
	co, err := ir.NewFunctionBuilder(0, nil).Build(body)
	require.NoError(t, err)
	require.Contains(t, co.Space.Locals, "g")
	require.NotContains(t, co.Space.Globals, "g")
}

// TestBuilderArithFoldsLeftToRight checks that an Arith operation with more
// than two operands repeats the opcode over each additional operand rather
// than requiring operands to be pre-paired.
func TestBuilderArithFoldsLeftToRight(t *testing.T) {
	sum := &ir.Operation{
		Tag:   ir.Arith,
		Arith: value.Add,
		Operands: []ir.Operand{
			ir.Const(value.NewInt(1)),
			ir.Const(value.NewInt(2)),
			ir.Const(value.NewInt(3)),
			ir.Const(value.NewInt(4)),
		},
	}
	body := []*ir.Operation{
		{Tag: ir.Return, Operands: []ir.Operand{ir.Nested(sum)}},
	}
	u, err := ir.NewUnitBuilder().Func("total", nil, body).Build()
	require.NoError(t, err)

	m := vm.New()
	result, err := m.Call(u, "total", nil)
	require.NoError(t, err)
	require.Equal(t, value.NewInt(10), result)
}

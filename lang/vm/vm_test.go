package vm_test

import (
	"testing"

	"github.com/mna/lovm/lang/code"
	"github.com/mna/lovm/lang/space"
	"github.com/mna/lovm/lang/value"
	"github.com/mna/lovm/lang/vm"
	"github.com/stretchr/testify/require"
)

// buildArithUnit builds a function where z starts at the constant 1, then
// x and y (the function's two parameters) are added into it in turn.
func buildArithUnit(t *testing.T) *code.Unit {
	t.Helper()
	sp := space.New()
	one := sp.InternConst(value.NewInt(1))
	x := sp.InternLocal("x")
	y := sp.InternLocal("y")
	z := sp.InternLocal("z")

	co := code.New(2)
	co.Space = sp
	co.Instrs = []code.Instr{
		{Op: code.CPush, Arg: uint32(one)},
		{Op: code.LPop, Arg: uint32(z)},
		{Op: code.LPush, Arg: uint32(z)},
		{Op: code.LPush, Arg: uint32(x)},
		{Op: code.Add},
		{Op: code.LPop, Arg: uint32(z)},
		{Op: code.LPush, Arg: uint32(z)},
		{Op: code.LPush, Arg: uint32(y)},
		{Op: code.Add},
		{Op: code.LPop, Arg: uint32(z)},
		{Op: code.LPush, Arg: uint32(z)},
		{Op: code.Int, Arg: vm.Debug},
		{Op: code.Ret},
	}

	u := code.NewUnit()
	u.Set("main", co)
	return u
}

func TestArithmeticOnLocals(t *testing.T) {
	u := buildArithUnit(t)
	m := vm.New()
	m.LoadUnit("arith", u)

	_, err := m.Call(u, "main", []value.Value{value.NewInt(2), value.NewInt(3)})
	require.NoError(t, err)
	require.Equal(t, value.NewInt(6), m.LastDebug())
}

// buildFibUnit builds a recursive fibonacci that calls
// itself by name, which FunctionBuilder rules intern as a global (the name
// is never a parameter or assignment target of fib's own body), so the
// recursive call lowers to GCall rather than LCall.
func buildFibUnit(t *testing.T) *code.Unit {
	t.Helper()
	sp := space.New()
	c0 := sp.InternConst(value.NewInt(0))
	c1 := sp.InternConst(value.NewInt(1))
	c2 := sp.InternConst(value.NewInt(2))
	n := sp.InternLocal("n")
	fib := sp.InternGlobal("fib")

	co := code.New(1)
	co.Space = sp
	co.Instrs = []code.Instr{
		{Op: code.LPush, Arg: uint32(n)},   // 0
		{Op: code.CPush, Arg: uint32(c0)},  // 1
		{Op: code.CmpEq},                   // 2
		{Op: code.Jf, Arg: 6},              // 3
		{Op: code.CPush, Arg: uint32(c0)},  // 4
		{Op: code.Ret},                     // 5
		{Op: code.LPush, Arg: uint32(n)},   // 6
		{Op: code.CPush, Arg: uint32(c1)},  // 7
		{Op: code.CmpEq},                   // 8
		{Op: code.Jf, Arg: 12},             // 9
		{Op: code.CPush, Arg: uint32(c1)},  // 10
		{Op: code.Ret},                     // 11
		{Op: code.LPush, Arg: uint32(n)},   // 12
		{Op: code.CPush, Arg: uint32(c1)},  // 13
		{Op: code.Sub},                     // 14: n-1
		{Op: code.GCall, Arg: uint32(fib)}, // 15: fib(n-1)
		{Op: code.LPush, Arg: uint32(n)},   // 16
		{Op: code.CPush, Arg: uint32(c2)},  // 17
		{Op: code.Sub},                     // 18: n-2
		{Op: code.GCall, Arg: uint32(fib)}, // 19: fib(n-2)
		{Op: code.Add},                     // 20
		{Op: code.Ret},                     // 21
	}

	u := code.NewUnit()
	u.Set("fib", co)
	return u
}

func TestRecursiveFibonacci(t *testing.T) {
	u := buildFibUnit(t)
	m := vm.New()
	m.LoadUnit("fib", u)

	result, err := m.Call(u, "fib", []value.Value{value.NewInt(8)})
	require.NoError(t, err)
	require.Equal(t, value.NewInt(21), result)
}

// buildDictUnit builds a function doing ONewDict, then three OSet calls
// keying on two string members and one integer member.
func buildDictUnit(t *testing.T) *code.Unit {
	t.Helper()
	sp := space.New()
	kx := sp.InternConst(value.NewString("x"))
	ky := sp.InternConst(value.NewString("y"))
	k10 := sp.InternConst(value.NewInt(10))
	v10 := sp.InternConst(value.NewInt(10))
	v11 := sp.InternConst(value.NewInt(11))

	co := code.New(0)
	co.Space = sp
	co.Instrs = []code.Instr{
		{Op: code.ONewDict},
		{Op: code.Dup},
		{Op: code.CPush, Arg: uint32(v10)},
		{Op: code.OSet, Arg: uint32(kx)},
		{Op: code.Dup},
		{Op: code.CPush, Arg: uint32(v10)},
		{Op: code.OSet, Arg: uint32(ky)},
		{Op: code.Dup},
		{Op: code.CPush, Arg: uint32(v11)},
		{Op: code.OSet, Arg: uint32(k10)},
		{Op: code.Ret},
	}

	u := code.NewUnit()
	u.Set("main", co)
	return u
}

func TestDictionaryBuild(t *testing.T) {
	u := buildDictUnit(t)
	m := vm.New()
	m.LoadUnit("dict", u)

	result, err := m.Call(u, "main", nil)
	require.NoError(t, err)

	h := vm.Handle(result.RefIndex())
	gotX, ok, err := m.Pool().Get(h, value.NewString("x"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value.NewInt(10), gotX)

	gotY, ok, err := m.Pool().Get(h, value.NewString("y"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value.NewInt(10), gotY)

	got10, ok, err := m.Pool().Get(h, value.NewInt(10))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, value.NewInt(11), got10)
}

// buildInterruptUnit builds a function that pushes a
// value and triggers interrupt 10, the value a custom handler observes.
func buildInterruptUnit(t *testing.T) *code.Unit {
	t.Helper()
	sp := space.New()
	c := sp.InternConst(value.NewString("hello"))

	co := code.New(0)
	co.Space = sp
	co.Instrs = []code.Instr{
		{Op: code.CPush, Arg: uint32(c)},
		{Op: code.Int, Arg: vm.Debug},
		{Op: code.Ret},
	}

	u := code.NewUnit()
	u.Set("main", co)
	return u
}

func TestInterruptDispatch(t *testing.T) {
	u := buildInterruptUnit(t)
	m := vm.New()

	var observed value.Value
	m.Interrupts().Set(vm.Debug, func(m *vm.VM) error {
		v, err := m.Top()
		if err != nil {
			return err
		}
		observed = v
		return nil
	})

	_, err := m.Call(u, "main", nil)
	require.NoError(t, err)
	require.Equal(t, value.NewString("hello"), observed)
}

func TestUndefinedGlobalCallIsFatal(t *testing.T) {
	sp := space.New()
	g := sp.InternGlobal("nope")
	co := code.New(0)
	co.Space = sp
	co.Instrs = []code.Instr{
		{Op: code.GCall, Arg: uint32(g)},
		{Op: code.Ret},
	}
	u := code.NewUnit()
	u.Set("main", co)

	m := vm.New()
	m.LoadUnit("u", u)
	_, err := m.Call(u, "main", nil)
	require.Error(t, err)
}

func TestStackUnderflowIsFatal(t *testing.T) {
	co := code.New(0)
	co.Space = space.New()
	co.Instrs = []code.Instr{
		{Op: code.Add},
		{Op: code.Ret},
	}
	u := code.NewUnit()
	u.Set("main", co)

	m := vm.New()
	_, err := m.Call(u, "main", nil)
	require.Error(t, err)
}

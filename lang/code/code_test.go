package code

import (
	"testing"

	"github.com/mna/lovm/lang/value"
	"github.com/stretchr/testify/require"
)

func makeSimple(argc int, name string) *CodeObject {
	co := New(argc)
	c := co.Space.InternConst(value.NewInt8(1))
	l := co.Space.InternLocal(name)
	co.Instrs = []Instr{
		{Op: CPush, Arg: uint32(c)},
		{Op: LPop, Arg: uint32(l)},
		{Op: Ret},
	}
	return co
}

func TestUnitRoundTrip(t *testing.T) {
	u := NewUnit()
	u.Set("main", makeSimple(0, "x"))
	u.Set("helper", makeSimple(2, "y"))

	b := Encode(u)
	u2, err := Decode(b)
	require.NoError(t, err)
	require.True(t, u.Equal(u2))

	b2 := Encode(u2)
	require.Equal(t, b, b2)
}

func TestUnitGetSet(t *testing.T) {
	u := NewUnit()
	co1 := makeSimple(0, "x")
	u.Set("main", co1)
	co2 := makeSimple(1, "z")
	u.Set("main", co2)

	got, ok := u.Get("main")
	require.True(t, ok)
	require.Same(t, co2, got)
	require.Equal(t, 1, u.Len())
	require.True(t, u.Executable())
}

func TestValidateDetectsSentinel(t *testing.T) {
	co := New(0)
	co.Instrs = []Instr{{Op: Jmp, Arg: SentinelTarget}}
	require.Error(t, co.Validate())
}

func TestValidateDetectsOutOfRangeIndex(t *testing.T) {
	co := New(0)
	co.Instrs = []Instr{{Op: CPush, Arg: 5}}
	require.Error(t, co.Validate())
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	co := makeSimple(0, "x")
	require.NoError(t, co.Validate())
}

// buildABC returns three small, distinct code objects to exercise merge
// associativity: merge(merge(A,B),C) and merge(A,merge(B,C)) must produce
// instruction streams of equal length with identical runtime behavior.
func buildABC() (a, b, c *CodeObject) {
	a = New(0)
	ca := a.Space.InternConst(value.NewInt8(1))
	a.Instrs = []Instr{{Op: CPush, Arg: uint32(ca)}}

	b = New(0)
	cb := b.Space.InternConst(value.NewInt8(2))
	b.Instrs = []Instr{{Op: CPush, Arg: uint32(cb)}, {Op: Add}}

	c = New(0)
	cc := c.Space.InternConst(value.NewInt8(3))
	c.Instrs = []Instr{{Op: CPush, Arg: uint32(cc)}, {Op: Mul}}
	return a, b, c
}

func TestMergeAssociativity(t *testing.T) {
	a, b, c := buildABC()

	left := Merge(Merge(a, b), c)

	a2, b2, c2 := buildABC()
	right := Merge(a2, Merge(b2, c2))

	require.Equal(t, len(left.Instrs), len(right.Instrs))

	// Both orderings must push the constants 1, 2, 3 in that order, regardless
	// of how the intermediate Space indices were assigned.
	evalConstPushMulAdd := func(co *CodeObject) []value.Value {
		var consts []value.Value
		for _, in := range co.Instrs {
			if in.Op == CPush {
				consts = append(consts, co.Space.Consts[in.Arg])
			}
		}
		return consts
	}
	lv := evalConstPushMulAdd(left)
	rv := evalConstPushMulAdd(right)
	require.Len(t, lv, 3)
	require.Len(t, rv, 3)
	for i := range lv {
		require.True(t, lv[i].Equal(rv[i]))
	}
}

func TestMergeRewritesGlobalToLocal(t *testing.T) {
	parent := New(1)
	xl := parent.Space.InternLocal("x")
	parent.Instrs = []Instr{{Op: LPush, Arg: uint32(xl)}}

	child := New(0)
	xg := child.Space.InternGlobal("x")
	child.Instrs = []Instr{{Op: GPush, Arg: uint32(xg)}, {Op: GPop, Arg: uint32(xg)}}

	merged := Merge(parent, child)
	require.Equal(t, LPush, merged.Instrs[1].Op)
	require.Equal(t, LPop, merged.Instrs[2].Op)
	require.Equal(t, uint32(xl), merged.Instrs[1].Arg)
	require.Equal(t, uint32(xl), merged.Instrs[2].Arg)
	require.Empty(t, merged.Space.Globals)
}

func TestMergeRewritesJumpTargets(t *testing.T) {
	parent := New(0)
	parent.Instrs = []Instr{{Op: Dup}, {Op: Dup}}

	child := New(0)
	child.Instrs = []Instr{{Op: Jmp, Arg: 1}, {Op: Dup}}

	merged := Merge(parent, child)
	require.Equal(t, uint32(3), merged.Instrs[2].Arg)
}

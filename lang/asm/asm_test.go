package asm_test

import (
	"testing"

	"github.com/mna/lovm/lang/asm"
	"github.com/mna/lovm/lang/code"
	"github.com/mna/lovm/lang/value"
	"github.com/mna/lovm/lang/vm"
	"github.com/stretchr/testify/require"
)

// TestLabelBackPatch checks that a forward jump's argument is patched to
// the index at which the referenced label resolves, counting an embedded
// datum as occupying one instruction slot.
func TestLabelBackPatch(t *testing.T) {
	u, err := asm.Assemble("jmp end\ndv 0\nend:\nret\n")
	require.NoError(t, err)

	co, ok := u.Get("main")
	require.True(t, ok)
	require.Len(t, co.Instrs, 3)
	require.Equal(t, code.Jmp, co.Instrs[0].Op)
	require.Equal(t, uint32(2), co.Instrs[0].Arg)
	require.Equal(t, code.Dv, co.Instrs[1].Op)
	require.Equal(t, code.Ret, co.Instrs[2].Op)
}

// TestMovIndirectForms checks that `mov *A, B` expands to push B; push A;
// store, and `mov A, *B` expands to push B; load; pop A.
func TestMovIndirectForms(t *testing.T) {
	u, err := asm.Assemble("mov *A, B\nret\n")
	require.NoError(t, err)
	co, ok := u.Get("main")
	require.True(t, ok)
	require.Len(t, co.Instrs, 4)
	require.Equal(t, code.LPush, co.Instrs[0].Op)
	require.Equal(t, co.Space.Locals[co.Instrs[0].Arg], "B")
	require.Equal(t, code.LPush, co.Instrs[1].Op)
	require.Equal(t, co.Space.Locals[co.Instrs[1].Arg], "A")
	require.Equal(t, code.Store, co.Instrs[2].Op)
	require.Equal(t, code.Ret, co.Instrs[3].Op)

	u2, err := asm.Assemble("mov A, *B\nret\n")
	require.NoError(t, err)
	co2, ok := u2.Get("main")
	require.True(t, ok)
	require.Len(t, co2.Instrs, 4)
	require.Equal(t, code.LPush, co2.Instrs[0].Op)
	require.Equal(t, co2.Space.Locals[co2.Instrs[0].Arg], "B")
	require.Equal(t, code.Load, co2.Instrs[1].Op)
	require.Equal(t, code.LPop, co2.Instrs[2].Op)
	require.Equal(t, co2.Space.Locals[co2.Instrs[2].Arg], "A")
	require.Equal(t, code.Ret, co2.Instrs[3].Op)
}

// TestAssembleAndRunArithmetic exercises the whole pipeline: textual source
// through the assembler, loaded and run by the VM, observed via the debug
// interrupt, using registers in place of parameters within the assembler's
// single-function model.
func TestAssembleAndRunArithmetic(t *testing.T) {
	src := `
mov A, #2
mov B, #3
add A, B
lpush A
int #10
ret
`
	u, err := asm.Assemble(src)
	require.NoError(t, err)

	m := vm.New()
	m.LoadUnit("arith", u)
	_, err = m.Call(u, "main", nil)
	require.NoError(t, err)
	require.Equal(t, value.NewInt8(5), m.LastDebug())
}

// TestUndeclaredLabelIsAnError checks that a forward reference never
// resolved by the end of compilation is reported.
func TestUndeclaredLabelIsAnError(t *testing.T) {
	_, err := asm.Assemble("jmp nowhere\nret\n")
	require.Error(t, err)
}

// TestRedeclaredLabelIsAnError checks that declaring the same label twice
// is rejected.
func TestRedeclaredLabelIsAnError(t *testing.T) {
	_, err := asm.Assemble("start:\nret\nstart:\nret\n")
	require.Error(t, err)
}

// TestSkipMacroEmitsData checks that `@skip N` emits N zero-valued Dv
// slots.
func TestSkipMacroEmitsData(t *testing.T) {
	u, err := asm.Assemble("@skip 3\nret\n")
	require.NoError(t, err)
	co, ok := u.Get("main")
	require.True(t, ok)
	require.Len(t, co.Instrs, 4)
	for i := 0; i < 3; i++ {
		require.Equal(t, code.Dv, co.Instrs[i].Op)
	}
	require.Equal(t, code.Ret, co.Instrs[3].Op)
}

// TestCastTypeSuffix checks that `cast@int` carries its target kind via
// the @type suffix rather than an operand.
func TestCastTypeSuffix(t *testing.T) {
	u, err := asm.Assemble("mov A, #3.5\nlpush A\ncast@int\nret\n")
	require.NoError(t, err)
	co, ok := u.Get("main")
	require.True(t, ok)
	last := co.Instrs[len(co.Instrs)-2]
	require.Equal(t, code.Cast, last.Op)
	require.Equal(t, uint32(value.Int), last.Arg)
}

package space

import (
	"testing"

	"github.com/mna/lovm/lang/value"
	"github.com/stretchr/testify/require"
)

func TestInternIdempotence(t *testing.T) {
	s := New()
	i1 := s.InternConst(value.NewInt(42))
	i2 := s.InternConst(value.NewInt(42))
	require.Equal(t, i1, i2)
	require.Len(t, s.Consts, 1)

	i3 := s.InternConst(value.NewInt(43))
	require.NotEqual(t, i1, i3)
	require.Len(t, s.Consts, 2)
}

func TestInternNamesPreserveInsertionOrder(t *testing.T) {
	s := New()
	require.Equal(t, 0, s.InternLocal("x"))
	require.Equal(t, 1, s.InternLocal("y"))
	require.Equal(t, 0, s.InternLocal("x"))
	require.Equal(t, []string{"x", "y"}, s.Locals)
}

func TestMerge(t *testing.T) {
	a := New()
	a.InternLocal("x")
	a.InternConst(value.NewInt(1))

	b := New()
	b.InternLocal("y")
	b.InternLocal("x")
	b.InternConst(value.NewInt(1))
	b.InternConst(value.NewInt(2))

	constMap, localMap, _ := a.Merge(b)
	require.Equal(t, []string{"x", "y"}, a.Locals)
	require.Equal(t, []int{1, 0}, localMap)
	require.Equal(t, []int{0, 1}, constMap)
	require.Len(t, a.Consts, 2)
}

package ir

import (
	"fmt"

	"github.com/mna/lovm/lang/code"
	"github.com/mna/lovm/lang/value"
)

func arithToOpcode(op value.BinOp) (code.Opcode, error) {
	switch op {
	case value.Add:
		return code.Add, nil
	case value.Sub:
		return code.Sub, nil
	case value.Mul:
		return code.Mul, nil
	case value.Div:
		return code.Div, nil
	case value.Rem:
		return code.Rem, nil
	case value.Pow:
		return code.Pow, nil
	case value.And:
		return code.And, nil
	case value.Or:
		return code.Or, nil
	case value.Xor:
		return code.Xor, nil
	case value.Shl:
		return code.Shl, nil
	case value.Shr:
		return code.Shr, nil
	default:
		return 0, fmt.Errorf("ir: unknown arithmetic operator %s", op)
	}
}

func cmpToOpcode(op value.CmpOp) (code.Opcode, error) {
	switch op {
	case value.CmpEq:
		return code.CmpEq, nil
	case value.CmpNe:
		return code.CmpNe, nil
	case value.CmpGe:
		return code.CmpGe, nil
	case value.CmpGt:
		return code.CmpGt, nil
	case value.CmpLe:
		return code.CmpLe, nil
	case value.CmpLt:
		return code.CmpLt, nil
	default:
		return 0, fmt.Errorf("ir: unknown comparison operator %s", op)
	}
}

package vm

import (
	"github.com/mna/lovm/lang/code"
	"github.com/mna/lovm/lang/value"
)

// Frame is per-call state: one slot per declared local (initialized to the
// integer zero), the three-way outcome of the last comparison
// executed in this frame, and the bookkeeping needed to resume the caller
// once this frame returns.
type Frame struct {
	Unit   *code.Unit
	Code   *code.CodeObject
	Locals []value.Value
	Flag   value.Flag
	PC     int
}

func newFrame(unit *code.Unit, co *code.CodeObject) *Frame {
	locals := make([]value.Value, len(co.Space.Locals))
	for i := range locals {
		locals[i] = value.NewInt8(0)
	}
	return &Frame{Unit: unit, Code: co, Locals: locals}
}

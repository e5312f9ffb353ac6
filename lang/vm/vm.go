// Package vm implements the stack-oriented interpreter: call frames, a value
// stack shared across them, a comparison flag per frame, a pluggable
// interrupt table, and a dynamic object pool.
//
// The dispatch loop's shape (fetch at pc, advance, execute a big opcode
// switch, with the call's frame popped by a deferred function) and the frame/thread
// bookkeeping around it are adapted from the run() function and the frame
// and thread machinery of a Starlark-derived interpreter this module grew
// out of. The instruction semantics themselves come from the lovm
// specification, not from Starlark.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/mna/lovm/lang/code"
	"github.com/mna/lovm/lang/value"
)

// loadedUnit pairs a Unit with the name it was registered under, used for
// GCall's ordered search and to name the unit in a RuntimeError; ONew
// resolves type names through the byName map instead.
type loadedUnit struct {
	name string
	unit *code.Unit
}

// VM is one interpreter instance: a loaded-unit registry, a call-frame
// stack, a shared value stack, an object pool and an interrupt table.
type VM struct {
	Stdout io.Writer

	units     []loadedUnit
	byName    map[string]*code.Unit
	pool      *Pool
	interrupt *InterruptTable

	frames  []*Frame
	stack   []value.Value
	globals map[string]value.Value

	lastDebug value.Value
}

// New returns a VM with an empty unit registry, a fresh object pool, and the
// default interrupt table (Debug and Put pre-registered).
func New() *VM {
	return &VM{
		Stdout:    os.Stdout,
		byName:    make(map[string]*code.Unit),
		globals:   make(map[string]value.Value),
		pool:      newPool(),
		interrupt: NewInterruptTable(),
	}
}

// LoadUnit registers u under name. Later GCall name resolution scans units
// in insertion order and returns the first match (LCall looks only in the
// calling frame's own unit); ONew resolves its type name against the
// by-name map populated here.
func (m *VM) LoadUnit(name string, u *code.Unit) {
	m.units = append(m.units, loadedUnit{name: name, unit: u})
	m.byName[name] = u
}

// Pool returns the VM's object pool.
func (m *VM) Pool() *Pool { return m.pool }

// Interrupts returns the VM's interrupt table, so callers can register
// additional handlers before running a program.
func (m *VM) Interrupts() *InterruptTable { return m.interrupt }

// LastDebug returns the value most recently observed by the Debug
// interrupt, used by embedders and tests to inspect machine state without
// wiring a custom handler.
func (m *VM) LastDebug() value.Value { return m.lastDebug }

// Push pushes v onto the shared value stack.
func (m *VM) Push(v value.Value) { m.stack = append(m.stack, v) }

// Pop pops the top of the value stack. It fails with ErrStackUnderflow if
// the stack is empty.
func (m *VM) Pop() (value.Value, error) {
	if len(m.stack) == 0 {
		return value.Value{}, ErrStackUnderflow
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

// Top returns the top of the value stack without popping it.
func (m *VM) Top() (value.Value, error) {
	if len(m.stack) == 0 {
		return value.Value{}, ErrStackUnderflow
	}
	return m.stack[len(m.stack)-1], nil
}

// Frame returns the currently executing frame, the top of the call-frame
// stack. It is nil when the VM is not currently dispatching.
func (m *VM) Frame() *Frame {
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1]
}

// Run loads u under name and executes its "main" function with no
// arguments, returning whatever value it left on top of the value stack (or
// a zero Value if it pushed nothing).
func (m *VM) Run(name string, u *code.Unit) (value.Value, error) {
	m.LoadUnit(name, u)
	co, ok := u.Get("main")
	if !ok {
		return value.Value{}, fmt.Errorf("vm: unit %q has no function named main", name)
	}
	if err := co.Validate(); err != nil {
		return value.Value{}, fmt.Errorf("vm: unit %q function main: %w", name, err)
	}
	return m.call(u, co, nil)
}

// Call invokes the function named fn in unit u with the given arguments,
// returning its result.
func (m *VM) Call(u *code.Unit, fn string, args []value.Value) (value.Value, error) {
	co, ok := u.Get(fn)
	if !ok {
		return value.Value{}, &RuntimeError{Err: fmt.Errorf("%w: %s", ErrUndefinedName, fn)}
	}
	if err := co.Validate(); err != nil {
		return value.Value{}, &RuntimeError{Err: fmt.Errorf("invalid code object: %w", err)}
	}
	return m.call(u, co, args)
}

func (m *VM) resolveGlobal(name string) (*code.Unit, *code.CodeObject, bool) {
	for _, lu := range m.units {
		if co, ok := lu.unit.Get(name); ok {
			return lu.unit, co, true
		}
	}
	return nil, nil, false
}

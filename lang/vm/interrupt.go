package vm

import "fmt"

// Reserved interrupt numbers.
const (
	Debug = 10
	Put   = 20
)

// interruptTableSize is the fixed number of interrupt slots a VM exposes.
const interruptTableSize = 256

// Handler is a host-provided callback invoked by the Int instruction. It
// receives a mutable view over the VM's execution state (frames, value
// stack, pool) via the vm argument itself, and returns a fatal error to
// abort the dispatch loop, or nil on success.
type Handler func(vm *VM) error

// InterruptTable is a fixed-size table of optional host callbacks, indexed
// by interrupt number.
type InterruptTable struct {
	handlers [interruptTableSize]Handler
}

// NewInterruptTable returns a table with the two reserved interrupts (Debug
// and Put) pre-registered.
func NewInterruptTable() *InterruptTable {
	t := &InterruptTable{}
	t.Set(Debug, debugHandler)
	t.Set(Put, putHandler)
	return t
}

// Set installs handler at n. n must be within [0, 256).
func (t *InterruptTable) Set(n int, handler Handler) {
	t.handlers[n] = handler
}

// Get returns the handler registered at n, and whether one is registered.
func (t *InterruptTable) Get(n int) (Handler, bool) {
	if n < 0 || n >= interruptTableSize {
		return nil, false
	}
	h := t.handlers[n]
	return h, h != nil
}

func debugHandler(m *VM) error {
	v, err := m.Top()
	if err != nil {
		return err
	}
	m.lastDebug = v
	return nil
}

func putHandler(m *VM) error {
	v, err := m.Top()
	if err != nil {
		return err
	}
	fmt.Fprintln(m.Stdout, v.String())
	return nil
}

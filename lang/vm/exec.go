package vm

import (
	"fmt"

	"github.com/mna/lovm/lang/code"
	"github.com/mna/lovm/lang/value"
)

// call pushes a new frame for co (belonging to unit), seeds its locals with
// args, runs the dispatch loop to completion, pops the frame, and returns
// whatever value the function left on top of the shared stack.
func (m *VM) call(unit *code.Unit, co *code.CodeObject, args []value.Value) (value.Value, error) {
	f := newFrame(unit, co)
	for i := 0; i < len(args) && i < len(f.Locals); i++ {
		f.Locals[i] = args[i]
	}
	m.frames = append(m.frames, f)
	defer func() { m.frames = m.frames[:len(m.frames)-1] }()

	if err := m.dispatch(f); err != nil {
		return value.Value{}, err
	}
	if len(m.stack) == 0 {
		return value.Value{}, nil
	}
	return m.Pop()
}

func (m *VM) wrap(f *Frame, err error) error {
	if err == nil {
		return nil
	}
	fn := ""
	for _, n := range f.Unit.Names() {
		if co, _ := f.Unit.Get(n); co == f.Code {
			fn = n
			break
		}
	}
	unitName := ""
	for _, lu := range m.units {
		if lu.unit == f.Unit {
			unitName = lu.name
			break
		}
	}
	return &RuntimeError{Unit: unitName, Function: fn, PC: f.PC, Err: err}
}

// dispatch runs f's instruction stream to completion: either an explicit Ret
// or falling off the end of the stream, which behaves as an implicit return
// of the current stack top.
func (m *VM) dispatch(f *Frame) error {
	for f.PC < len(f.Code.Instrs) {
		in := f.Code.Instrs[f.PC]
		f.PC++

		switch {
		case in.Op <= code.Dup:
			if err := m.execArith(in.Op); err != nil {
				return m.wrap(f, err)
			}
		case in.Op >= code.CmpEq && in.Op <= code.CmpLt:
			if err := m.execCmp(f, in.Op); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.Ret:
			return nil
		case in.Op == code.Pusha:
			if err := m.execPusha(f); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.Popa:
			if err := m.execPopa(f); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.Jmp:
			if err := checkJumpTarget(f.Code, in.Arg); err != nil {
				return m.wrap(f, err)
			}
			f.PC = int(in.Arg)
		case in.Op == code.Jt, in.Op == code.Jf:
			cond, err := m.Pop()
			if err != nil {
				return m.wrap(f, err)
			}
			want := in.Op == code.Jt
			boolCond, err := cond.Cast(value.Bool)
			if err != nil {
				return m.wrap(f, fmt.Errorf("%w: %s", ErrBadOperandKind, err))
			}
			if boolCond.Bool() == want {
				if err := checkJumpTarget(f.Code, in.Arg); err != nil {
					return m.wrap(f, err)
				}
				f.PC = int(in.Arg)
			}
		case in.Op == code.CPush:
			if int(in.Arg) >= len(f.Code.Space.Consts) {
				return m.wrap(f, fmt.Errorf("%w: const index %d", ErrBadOperandKind, in.Arg))
			}
			m.Push(f.Code.Space.Consts[in.Arg])
		case in.Op == code.LPush:
			v, err := m.localLoad(f, in.Arg)
			if err != nil {
				return m.wrap(f, err)
			}
			m.Push(v)
		case in.Op == code.LPop:
			v, err := m.Pop()
			if err != nil {
				return m.wrap(f, err)
			}
			if err := m.localStore(f, in.Arg, v); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.LCall:
			if err := m.execLCall(f, in.Arg); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.GPush:
			v, err := m.globalLoad(f, in.Arg)
			if err != nil {
				return m.wrap(f, err)
			}
			m.Push(v)
		case in.Op == code.GPop:
			v, err := m.Pop()
			if err != nil {
				return m.wrap(f, err)
			}
			if err := m.globalStore(f, in.Arg, v); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.GCall:
			if err := m.execGCall(f, in.Arg); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.ONew:
			if err := m.execONew(f, in.Arg); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.ONewArray:
			m.Push(value.NewRef(uint64(m.pool.NewArray())))
		case in.Op == code.ONewDict:
			m.Push(value.NewRef(uint64(m.pool.NewDict())))
		case in.Op == code.ODispose:
			h, err := m.Pop()
			if err != nil {
				return m.wrap(f, err)
			}
			hnd, err := toHandle(h)
			if err != nil {
				return m.wrap(f, err)
			}
			if err := m.pool.Dispose(hnd); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.OGet:
			if err := m.execOGet(f, in.Arg); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.OSet:
			if err := m.execOSet(f, in.Arg); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.OCall:
			if err := m.execOCall(f, in.Arg); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.OAppend:
			if err := m.execOAppend(); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.Cast:
			if err := m.execCast(in.Arg); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.Int:
			if err := m.execInt(in.Arg); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.Dv:
			// a datum occupying an instruction slot; reached only if control
			// flows into it directly instead of jumping over it.
		case in.Op == code.Load:
			if err := m.execLoad(f); err != nil {
				return m.wrap(f, err)
			}
		case in.Op == code.Store:
			if err := m.execStore(f); err != nil {
				return m.wrap(f, err)
			}
		default:
			return m.wrap(f, fmt.Errorf("vm: unhandled opcode %s", in.Op))
		}
	}
	return nil
}

// toHandle casts v to a Ref and returns the pool handle it carries,
// rejecting any other kind with ErrBadOperandKind rather than panicking: a
// hand-crafted or corrupted instruction stream can push a non-handle value
// ahead of an object instruction, and that must surface as a RuntimeError,
// not a crash.
func toHandle(v value.Value) (Handle, error) {
	r, err := v.Cast(value.Ref)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadOperandKind, err)
	}
	return Handle(r.RefIndex()), nil
}

func checkJumpTarget(co *code.CodeObject, target uint32) error {
	if target == code.SentinelTarget || int(target) > len(co.Instrs) {
		return fmt.Errorf("%w: target %d", ErrBadJump, target)
	}
	return nil
}

var binOpOf = map[code.Opcode]value.BinOp{
	code.Add: value.Add, code.Sub: value.Sub, code.Mul: value.Mul,
	code.Div: value.Div, code.Rem: value.Rem, code.Pow: value.Pow,
	code.And: value.And, code.Or: value.Or, code.Xor: value.Xor,
	code.Shl: value.Shl, code.Shr: value.Shr,
}

func (m *VM) execArith(op code.Opcode) error {
	if op == code.Dup {
		v, err := m.Top()
		if err != nil {
			return err
		}
		m.Push(v)
		return nil
	}
	if op == code.Neg {
		x, err := m.Pop()
		if err != nil {
			return err
		}
		r, err := value.Neg(x)
		if err != nil {
			return err
		}
		m.Push(r)
		return nil
	}
	if op == code.Inc || op == code.Dec {
		x, err := m.Pop()
		if err != nil {
			return err
		}
		var r value.Value
		if op == code.Inc {
			r, err = value.Inc(x)
		} else {
			r, err = value.Dec(x)
		}
		if err != nil {
			return err
		}
		m.Push(r)
		return nil
	}
	bop, ok := binOpOf[op]
	if !ok {
		return fmt.Errorf("vm: not a binary arithmetic opcode: %s", op)
	}
	y, err := m.Pop()
	if err != nil {
		return err
	}
	x, err := m.Pop()
	if err != nil {
		return err
	}
	r, err := value.Binary(bop, x, y)
	if err != nil {
		return err
	}
	m.Push(r)
	return nil
}

var cmpOpOf = map[code.Opcode]value.CmpOp{
	code.CmpEq: value.CmpEq, code.CmpNe: value.CmpNe,
	code.CmpGe: value.CmpGe, code.CmpGt: value.CmpGt,
	code.CmpLe: value.CmpLe, code.CmpLt: value.CmpLt,
}

func (m *VM) execCmp(f *Frame, op code.Opcode) error {
	y, err := m.Pop()
	if err != nil {
		return err
	}
	x, err := m.Pop()
	if err != nil {
		return err
	}
	cop := cmpOpOf[op]
	cond, flag, err := value.Compare(cop, x, y)
	if err != nil {
		return err
	}
	f.Flag = flag
	m.Push(value.NewBool(cond))
	return nil
}

// execPusha pushes the VM's four register locals (A-D, slots 0-3) onto the
// value stack in order, for the assembler's `pusha` convenience mnemonic.
func (m *VM) execPusha(f *Frame) error {
	for i := 0; i < 4 && i < len(f.Locals); i++ {
		m.Push(f.Locals[i])
	}
	return nil
}

// execPopa restores the four register locals in reverse order, undoing a
// prior Pusha.
func (m *VM) execPopa(f *Frame) error {
	for i := 3; i >= 0; i-- {
		if i >= len(f.Locals) {
			continue
		}
		v, err := m.Pop()
		if err != nil {
			return err
		}
		f.Locals[i] = v
	}
	return nil
}

func (m *VM) localLoad(f *Frame, idx uint32) (value.Value, error) {
	if int(idx) >= len(f.Locals) {
		return value.Value{}, fmt.Errorf("%w: local index %d", ErrBadOperandKind, idx)
	}
	return f.Locals[idx], nil
}

func (m *VM) localStore(f *Frame, idx uint32, v value.Value) error {
	if int(idx) >= len(f.Locals) {
		return fmt.Errorf("%w: local index %d", ErrBadOperandKind, idx)
	}
	f.Locals[idx] = v
	return nil
}

// execLoad implements the assembler's indirect-source addressing mode: the
// popped address is a local-slot index in the current frame, dereferenced
// through whatever value a register currently holds (registers are locals 0
// through 3; see Pusha/Popa).
func (m *VM) execLoad(f *Frame) error {
	addr, err := m.Pop()
	if err != nil {
		return err
	}
	idx, err := addr.Cast(value.Int)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadOperandKind, err)
	}
	v, err := m.localLoad(f, uint32(idx.Int()))
	if err != nil {
		return err
	}
	m.Push(v)
	return nil
}

// execStore implements the assembler's indirect-destination addressing
// mode, the mirror of execLoad: pop the address, then the value, and write
// the value into that local slot.
func (m *VM) execStore(f *Frame) error {
	addr, err := m.Pop()
	if err != nil {
		return err
	}
	v, err := m.Pop()
	if err != nil {
		return err
	}
	idx, err := addr.Cast(value.Int)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadOperandKind, err)
	}
	return m.localStore(f, uint32(idx.Int()), v)
}

// execLCall resolves locals[l] to a name and looks it up only within the
// current frame's own unit: a call to a sibling or self function defined in
// the same unit, as opposed to GCall's registry-wide search.
func (m *VM) execLCall(f *Frame, l uint32) error {
	if int(l) >= len(f.Code.Space.Locals) {
		return fmt.Errorf("%w: local index %d", ErrBadOperandKind, l)
	}
	name := f.Code.Space.Locals[l]
	co, ok := f.Unit.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUndefinedName, name)
	}
	return m.invoke(f.Unit, co)
}

func (m *VM) globalLoad(f *Frame, idx uint32) (value.Value, error) {
	if int(idx) >= len(f.Code.Space.Globals) {
		return value.Value{}, fmt.Errorf("%w: global index %d", ErrBadOperandKind, idx)
	}
	name := f.Code.Space.Globals[idx]
	v, ok := m.globals[name]
	if !ok {
		return value.NewInt8(0), nil
	}
	return v, nil
}

func (m *VM) globalStore(f *Frame, idx uint32, v value.Value) error {
	if int(idx) >= len(f.Code.Space.Globals) {
		return fmt.Errorf("%w: global index %d", ErrBadOperandKind, idx)
	}
	name := f.Code.Space.Globals[idx]
	m.globals[name] = v
	return nil
}

// execGCall resolves globals[g] to a name and searches every loaded unit, in
// registration order, for a function with that name: a call that may cross
// unit boundaries.
func (m *VM) execGCall(f *Frame, g uint32) error {
	if int(g) >= len(f.Code.Space.Globals) {
		return fmt.Errorf("%w: global index %d", ErrBadOperandKind, g)
	}
	name := f.Code.Space.Globals[g]
	unit, co, ok := m.resolveGlobal(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUndefinedName, name)
	}
	return m.invoke(unit, co)
}

// invoke pops co.Argc arguments off the shared stack, filling argument
// slots in pop order: the last-pushed argument lands in the first local, as
// Arguments are evaluated left-to-right by the caller,
// so this maps the rightmost argument expression to local 0.
func (m *VM) invoke(unit *code.Unit, co *code.CodeObject) error {
	args := make([]value.Value, co.Argc)
	for i := 0; i < co.Argc; i++ {
		v, err := m.Pop()
		if err != nil {
			return err
		}
		args[i] = v
	}
	result, err := m.call(unit, co, args)
	if err != nil {
		return err
	}
	m.Push(result)
	return nil
}

// execONew resolves globals[g] to a registered unit name and allocates an
// Object bound to it as a method table.
func (m *VM) execONew(f *Frame, g uint32) error {
	if int(g) >= len(f.Code.Space.Globals) {
		return fmt.Errorf("%w: global index %d", ErrBadOperandKind, g)
	}
	name := f.Code.Space.Globals[g]
	typ, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("%w: type %s", ErrUndefinedName, name)
	}
	m.Push(value.NewRef(uint64(m.pool.NewObject(typ))))
	return nil
}

// execOGet pops a handle and pushes the member keyed by consts[c] from its
// container (Object, Array or Dict share the same keyed-get capability).
func (m *VM) execOGet(f *Frame, c uint32) error {
	if int(c) >= len(f.Code.Space.Consts) {
		return fmt.Errorf("%w: const index %d", ErrBadOperandKind, c)
	}
	key := f.Code.Space.Consts[c]
	h, err := m.Pop()
	if err != nil {
		return err
	}
	hnd, err := toHandle(h)
	if err != nil {
		return err
	}
	v, ok, err := m.pool.Get(hnd, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no member %s", ErrUndefinedName, key.String())
	}
	m.Push(v)
	return nil
}

// execOSet pops a value then a handle, and stores the value keyed by
// consts[c] into its container.
func (m *VM) execOSet(f *Frame, c uint32) error {
	if int(c) >= len(f.Code.Space.Consts) {
		return fmt.Errorf("%w: const index %d", ErrBadOperandKind, c)
	}
	key := f.Code.Space.Consts[c]
	v, err := m.Pop()
	if err != nil {
		return err
	}
	h, err := m.Pop()
	if err != nil {
		return err
	}
	hnd, err := toHandle(h)
	if err != nil {
		return err
	}
	return m.pool.Set(hnd, key, v)
}

// execOCall resolves consts[c] to a method name, looks it up in the called
// Object's bound unit, and invokes it. lovm objects carry no implicit
// self/receiver argument: the method runs exactly like any other call,
// consuming its own declared argc from the stack.
func (m *VM) execOCall(f *Frame, c uint32) error {
	if int(c) >= len(f.Code.Space.Consts) {
		return fmt.Errorf("%w: const index %d", ErrBadOperandKind, c)
	}
	nameVal := f.Code.Space.Consts[c]
	if nameVal.Kind() != value.String {
		return fmt.Errorf("%w: OCall const must be a string", ErrBadOperandKind)
	}
	h, err := m.Pop()
	if err != nil {
		return err
	}
	hnd, err := toHandle(h)
	if err != nil {
		return err
	}
	obj, err := m.pool.Object(hnd)
	if err != nil {
		return err
	}
	if obj.Unit == nil {
		return fmt.Errorf("%w: object has no method table", ErrUndefinedName)
	}
	co, ok := obj.Unit.Get(nameVal.Str())
	if !ok {
		return fmt.Errorf("%w: %s", ErrUndefinedName, nameVal.Str())
	}
	return m.invoke(obj.Unit, co)
}

// execOAppend pops a value then a handle and appends the value: at the next
// auto-incrementing integer key for an Array or Object, keyed by itself for
// a Dict (a set-like insertion, since OAppend carries no explicit key
// operand).
func (m *VM) execOAppend() error {
	v, err := m.Pop()
	if err != nil {
		return err
	}
	h, err := m.Pop()
	if err != nil {
		return err
	}
	hnd, err := toHandle(h)
	if err != nil {
		return err
	}
	return m.pool.Append(hnd, v)
}

func (m *VM) execCast(arg uint32) error {
	v, err := m.Pop()
	if err != nil {
		return err
	}
	r, err := v.Cast(value.Kind(arg))
	if err != nil {
		return err
	}
	m.Push(r)
	return nil
}

func (m *VM) execInt(arg uint32) error {
	h, ok := m.interrupt.Get(int(arg))
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoInterrupt, arg)
	}
	return h(m)
}

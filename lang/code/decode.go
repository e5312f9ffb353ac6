package code

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mna/lovm/lang/space"
	"github.com/mna/lovm/lang/value"
)

// Decode deserializes a Unit previously produced by Encode. It returns an
// error describing the first structural defect encountered rather than
// panicking on malformed input.
func Decode(b []byte) (*Unit, error) {
	d := &decoder{buf: b}
	if len(b) < len(magic)+1 || string(b[:len(magic)]) != magic {
		return nil, fmt.Errorf("code: missing or invalid magic header")
	}
	d.off = len(magic)
	v := d.byte()
	if v != version {
		return nil, fmt.Errorf("code: unsupported unit format version %d", v)
	}

	u := &Unit{}
	u.Space = d.space()
	n := d.uvarint()
	for i := uint64(0); i < n && d.err == nil; i++ {
		name := d.string()
		co := d.codeObject()
		u.entries = append(u.entries, unitEntry{Name: name, Code: co})
	}
	if d.err != nil {
		return nil, d.err
	}
	return u, nil
}

type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) byte() byte {
	if d.err != nil {
		return 0
	}
	if d.off >= len(d.buf) {
		d.fail(fmt.Errorf("code: unexpected end of input"))
		return 0
	}
	b := d.buf[d.off]
	d.off++
	return b
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.buf) {
		d.fail(fmt.Errorf("code: unexpected end of input"))
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	x, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		d.fail(fmt.Errorf("code: invalid varint"))
		return 0
	}
	d.off += n
	return x
}

func (d *decoder) string() string {
	n := int(d.uvarint())
	return string(d.bytes(n))
}

func (d *decoder) space() *space.Space {
	s := space.New()
	nc := d.uvarint()
	for i := uint64(0); i < nc && d.err == nil; i++ {
		s.Consts = append(s.Consts, d.value())
	}
	nl := d.uvarint()
	for i := uint64(0); i < nl && d.err == nil; i++ {
		s.Locals = append(s.Locals, d.string())
	}
	ng := d.uvarint()
	for i := uint64(0); i < ng && d.err == nil; i++ {
		s.Globals = append(s.Globals, d.string())
	}
	return s
}

func (d *decoder) value() value.Value {
	tag := d.byte()
	switch tag {
	case tagInt8:
		return value.NewInt8(int8(d.byte()))
	case tagInt:
		return value.NewInt(int64(binary.LittleEndian.Uint64(d.bytes(8))))
	case tagFloat:
		return value.NewFloat(math.Float64frombits(binary.LittleEndian.Uint64(d.bytes(8))))
	case tagRef:
		return value.NewRef(d.uvarint())
	case tagBool:
		return value.NewBool(d.byte() != 0)
	case tagChar:
		return value.NewChar(rune(d.uvarint()))
	case tagString:
		return value.NewString(d.string())
	default:
		d.fail(fmt.Errorf("code: unknown value tag %d", tag))
		return value.Value{}
	}
}

func (d *decoder) codeObject() *CodeObject {
	co := &CodeObject{}
	co.Argc = int(d.uvarint())
	co.Space = d.space()
	n := d.uvarint()
	for i := uint64(0); i < n && d.err == nil; i++ {
		op := Opcode(d.byte())
		var arg uint32
		if HasArg(op) {
			arg = uint32(d.uvarint())
		}
		co.Instrs = append(co.Instrs, Instr{Op: op, Arg: arg})
	}
	return co
}

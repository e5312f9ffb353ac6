package code

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mna/lovm/lang/space"
	"github.com/mna/lovm/lang/value"
)

// magic tags the start of a serialized unit to catch accidental misuse of
// unrelated binary blobs. version allows format changes to be detected
// without guessing.
const (
	magic   = "LOVM"
	version = 1
)

const (
	tagInt8 byte = iota
	tagInt
	tagFloat
	tagRef
	tagBool
	tagChar
	tagString
)

// Encode serializes u into lovm's compact binary unit format: the
// unit-level space, then a length-prefixed sequence of (name, code object)
// records. Instructions encode as a one-byte opcode tag plus, where the
// opcode takes one, a varint argument (jumps are varint-encoded like every
// other argument; only the in-memory Instr representation fixes their
// width).
func Encode(u *Unit) []byte {
	var buf []byte
	buf = append(buf, magic...)
	buf = append(buf, version)
	buf = encodeSpace(buf, u.Space)
	buf = binary.AppendUvarint(buf, uint64(len(u.entries)))
	for _, e := range u.entries {
		buf = encodeString(buf, e.Name)
		buf = encodeCodeObject(buf, e.Code)
	}
	return buf
}

func encodeCodeObject(buf []byte, co *CodeObject) []byte {
	buf = binary.AppendUvarint(buf, uint64(co.Argc))
	buf = encodeSpace(buf, co.Space)
	buf = binary.AppendUvarint(buf, uint64(len(co.Instrs)))
	for _, in := range co.Instrs {
		buf = append(buf, byte(in.Op))
		if HasArg(in.Op) {
			buf = binary.AppendUvarint(buf, uint64(in.Arg))
		}
	}
	return buf
}

func encodeSpace(buf []byte, s *space.Space) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s.Consts)))
	for _, c := range s.Consts {
		buf = encodeValue(buf, c)
	}
	buf = binary.AppendUvarint(buf, uint64(len(s.Locals)))
	for _, n := range s.Locals {
		buf = encodeString(buf, n)
	}
	buf = binary.AppendUvarint(buf, uint64(len(s.Globals)))
	for _, n := range s.Globals {
		buf = encodeString(buf, n)
	}
	return buf
}

func encodeString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func encodeValue(buf []byte, v value.Value) []byte {
	switch v.Kind() {
	case value.Int8:
		buf = append(buf, tagInt8)
		return append(buf, byte(v.Int8()))
	case value.Int:
		buf = append(buf, tagInt)
		return binary.LittleEndian.AppendUint64(buf, uint64(v.Int()))
	case value.Float:
		buf = append(buf, tagFloat)
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float()))
	case value.Ref:
		buf = append(buf, tagRef)
		return binary.AppendUvarint(buf, v.RefIndex())
	case value.Bool:
		buf = append(buf, tagBool)
		b := byte(0)
		if v.Bool() {
			b = 1
		}
		return append(buf, b)
	case value.Char:
		buf = append(buf, tagChar)
		return binary.AppendUvarint(buf, uint64(v.Char()))
	case value.String:
		buf = append(buf, tagString)
		return encodeString(buf, v.Str())
	default:
		panic(fmt.Sprintf("code: unknown value kind %s", v.Kind()))
	}
}

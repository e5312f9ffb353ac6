package asm

import (
	"fmt"

	"github.com/mna/lovm/lang/token"
	"github.com/mna/lovm/lang/value"
)

// OperandKind identifies which field of an Operand is populated.
type OperandKind uint8

const (
	OperandRegister OperandKind = iota
	OperandLiteral
	OperandIdent
	OperandString
)

// Operand is one parsed operand position: a register, a parsed literal
// value, a bare identifier (a label or symbolic name, resolved by the
// lowerer according to the mnemonic it belongs to), or a string. Deref
// marks a leading '*' prefix, meaning "value at address" rather than the
// operand's own value.
type Operand struct {
	Kind     OperandKind
	Deref    bool
	Register byte
	Literal  value.Value
	Ident    string
	Str      string
	Pos      token.Pos
}

// Statement is one parsed assembly line: an optional label declaration,
// and either an instruction mnemonic with its operands and optional @type
// suffix, or a macro invocation with its arguments.
type Statement struct {
	Label       string
	LabelPos    token.Pos
	IsMacro     bool
	Mnemonic    string
	MnemonicPos token.Pos
	TypeSuffix  string
	Operands    []Operand
}

// ParseError is a syntax error carrying its source position.
type ParseError struct {
	Pos token.Pos
	Msg string
}

func (e *ParseError) Error() string {
	l, c := e.Pos.LineCol()
	return fmt.Sprintf("%d:%d: %s", l, c, e.Msg)
}

// Parse turns lexed lines into statements, accumulating every syntax error
// across the whole input rather than stopping at the first one.
func Parse(lines []Line) ([]Statement, []error) {
	var (
		stmts []Statement
		errs  []error
	)
	for _, ln := range lines {
		st, err := parseLine(ln)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if st != nil {
			stmts = append(stmts, *st)
		}
	}
	return stmts, errs
}

func parseLine(ln Line) (*Statement, error) {
	toks := ln.Tokens
	idx := 0
	var st Statement

	if len(toks) >= 2 && toks[0].Kind == TokIdent && toks[1].Kind == TokColon {
		st.Label = toks[0].Text
		st.LabelPos = toks[0].Pos
		idx = 2
	}

	if idx >= len(toks) {
		if st.Label == "" {
			return nil, nil
		}
		return &st, nil
	}

	if toks[idx].Kind == TokAt {
		st.IsMacro = true
		idx++
		if idx >= len(toks) || toks[idx].Kind != TokIdent {
			return nil, &ParseError{Pos: toks[idx-1].Pos, Msg: "expected macro name after '@'"}
		}
		st.Mnemonic = toks[idx].Text
		st.MnemonicPos = toks[idx].Pos
		idx++
		ops, err := parseOperandList(toks, idx, -1)
		if err != nil {
			return nil, err
		}
		st.Operands = ops
		return &st, nil
	}

	if toks[idx].Kind != TokIdent {
		return nil, &ParseError{Pos: toks[idx].Pos, Msg: fmt.Sprintf("expected a mnemonic, got %s", toks[idx].Kind)}
	}
	st.Mnemonic = toks[idx].Text
	st.MnemonicPos = toks[idx].Pos
	idx++

	if idx < len(toks) && toks[idx].Kind == TokAt {
		idx++
		if idx >= len(toks) || toks[idx].Kind != TokIdent {
			return nil, &ParseError{Pos: toks[idx-1].Pos, Msg: "expected a type name after '@'"}
		}
		st.TypeSuffix = toks[idx].Text
		idx++
	}

	ops, err := parseOperandList(toks, idx, 2)
	if err != nil {
		return nil, err
	}
	st.Operands = ops
	return &st, nil
}

// parseOperandList parses comma-separated operands starting at idx, up to
// max of them (no limit when max < 0), and requires every token on the
// line to be consumed.
func parseOperandList(toks []Token, idx, max int) ([]Operand, error) {
	var ops []Operand
	for idx < len(toks) {
		if max >= 0 && len(ops) >= max {
			return nil, &ParseError{Pos: toks[idx].Pos, Msg: "too many operands"}
		}
		op, next, err := parseOperand(toks, idx)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		idx = next
		if idx < len(toks) {
			if toks[idx].Kind != TokComma {
				return nil, &ParseError{Pos: toks[idx].Pos, Msg: fmt.Sprintf("expected ',' between operands, got %s", toks[idx].Kind)}
			}
			idx++
			if idx >= len(toks) {
				return nil, &ParseError{Pos: toks[idx-1].Pos, Msg: "expected an operand after ','"}
			}
		}
	}
	return ops, nil
}

func parseOperand(toks []Token, idx int) (Operand, int, error) {
	deref := false
	pos := toks[idx].Pos
	if toks[idx].Kind == TokStar {
		deref = true
		idx++
		if idx >= len(toks) {
			return Operand{}, 0, &ParseError{Pos: pos, Msg: "expected an operand after '*'"}
		}
	}
	t := toks[idx]
	switch t.Kind {
	case TokRegister:
		return Operand{Kind: OperandRegister, Deref: deref, Register: t.Text[0], Pos: pos}, idx + 1, nil
	case TokNumber:
		v, err := value.ParseValue(t.Text)
		if err != nil {
			return Operand{}, 0, &ParseError{Pos: t.Pos, Msg: err.Error()}
		}
		return Operand{Kind: OperandLiteral, Deref: deref, Literal: v, Pos: pos}, idx + 1, nil
	case TokString:
		return Operand{Kind: OperandString, Deref: deref, Str: t.Text, Pos: pos}, idx + 1, nil
	case TokIdent:
		return Operand{Kind: OperandIdent, Deref: deref, Ident: t.Text, Pos: pos}, idx + 1, nil
	default:
		return Operand{}, 0, &ParseError{Pos: t.Pos, Msg: fmt.Sprintf("expected an operand, got %s", t.Kind)}
	}
}

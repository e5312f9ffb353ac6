package asm

import (
	"fmt"
	"strings"

	"github.com/mna/lovm/lang/token"
)

// Line is the token stream produced from a single source line.
type Line struct {
	No     int
	Tokens []Token
}

// LexError is a lexical error carrying its source position.
type LexError struct {
	Pos token.Pos
	Msg string
}

func (e *LexError) Error() string {
	l, c := e.Pos.LineCol()
	return fmt.Sprintf("%d:%d: %s", l, c, e.Msg)
}

// Lex tokenizes src one line at a time, returning the non-empty lines and
// every lexical error encountered. Lexing never stops at the first error:
// after a bad character or an empty '#' literal, scanning resumes on the
// same line, and after a malformed string literal it resumes at the next
// line, so that a single pass reports every problem in the source.
func Lex(src string) ([]Line, []error) {
	var (
		lines []Line
		errs  []error
	)
	for i, raw := range strings.Split(src, "\n") {
		lineNo := i + 1
		toks, lerrs := lexLine(raw, lineNo)
		errs = append(errs, lerrs...)
		if len(toks) > 0 {
			lines = append(lines, Line{No: lineNo, Tokens: toks})
		}
	}
	return lines, errs
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func lexLine(line string, lineNo int) ([]Token, []error) {
	var (
		toks []Token
		errs []error
	)
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == ';':
			i = len(line)
		case c == ':':
			toks = append(toks, Token{Kind: TokColon, Text: ":", Pos: token.MakePos(lineNo, i+1)})
			i++
		case c == '@':
			toks = append(toks, Token{Kind: TokAt, Text: "@", Pos: token.MakePos(lineNo, i+1)})
			i++
		case c == '*':
			toks = append(toks, Token{Kind: TokStar, Text: "*", Pos: token.MakePos(lineNo, i+1)})
			i++
		case c == ',':
			toks = append(toks, Token{Kind: TokComma, Text: ",", Pos: token.MakePos(lineNo, i+1)})
			i++
		case c == '#':
			start := i
			i++
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' && line[j] != ',' && line[j] != ';' {
				j++
			}
			if j == i {
				errs = append(errs, &LexError{Pos: token.MakePos(lineNo, start+1), Msg: "empty literal after '#'"})
				i = j
				continue
			}
			toks = append(toks, Token{Kind: TokNumber, Text: line[i:j], Pos: token.MakePos(lineNo, start+1)})
			i = j
		case c == '"':
			start := i
			s, end, err := lexString(line, i)
			if err != nil {
				errs = append(errs, &LexError{Pos: token.MakePos(lineNo, start+1), Msg: err.Error()})
				i = len(line)
				continue
			}
			toks = append(toks, Token{Kind: TokString, Text: s, Pos: token.MakePos(lineNo, start+1)})
			i = end
		case isIdentStart(c):
			start := i
			j := i + 1
			for j < len(line) && isIdentCont(line[j]) {
				j++
			}
			text := line[start:j]
			kind := TokIdent
			if len(text) == 1 && (text == "A" || text == "B" || text == "C" || text == "D") {
				kind = TokRegister
			}
			toks = append(toks, Token{Kind: kind, Text: text, Pos: token.MakePos(lineNo, start+1)})
			i = j
		case isDigit(c) || (c == '-' && i+1 < len(line) && isDigit(line[i+1])):
			start := i
			j := i + 1
			for j < len(line) && (isDigit(line[j]) || line[j] == '.') {
				j++
			}
			toks = append(toks, Token{Kind: TokNumber, Text: line[start:j], Pos: token.MakePos(lineNo, start+1)})
			i = j
		default:
			errs = append(errs, &LexError{Pos: token.MakePos(lineNo, i+1), Msg: fmt.Sprintf("unexpected character %q", c)})
			i++
		}
	}
	return toks, errs
}

// lexString scans a double-quoted string literal starting at line[start]
// (the opening quote), returning its decoded value and the index just past
// the closing quote.
func lexString(line string, start int) (string, int, error) {
	var sb strings.Builder
	i := start + 1
	for i < len(line) {
		c := line[i]
		if c == '"' {
			return sb.String(), i + 1, nil
		}
		if c == '\\' {
			if i+1 >= len(line) {
				break
			}
			switch line[i+1] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				return "", 0, fmt.Errorf("unknown escape sequence '\\%c'", line[i+1])
			}
			i += 2
			continue
		}
		sb.WriteByte(c)
		i++
	}
	return "", 0, fmt.Errorf("unclosed string literal")
}

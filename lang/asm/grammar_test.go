package asm

import (
	"os"
	"testing"

	"golang.org/x/exp/ebnf"
)

// TestGrammar checks that grammar.ebnf, the reference grammar for the
// textual assembly language Lex/Parse/Assemble implement by hand, is itself
// well-formed: every production reachable from Line is defined, and no
// production is left dangling.
func TestGrammar(t *testing.T) {
	f, err := os.Open("grammar.ebnf")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	g, err := ebnf.Parse("grammar.ebnf", f)
	if err != nil {
		t.Fatal(err)
	}
	if err := ebnf.Verify(g, "Line"); err != nil {
		t.Fatal(err)
	}
}

// Command lovm is the assembler and virtual machine command line for the
// lovm bytecode format: `lovm asm <file>` assembles and prints or emits a
// unit, `lovm run <file>` loads a serialized unit and runs its main
// function.
package main

import (
	"os"

	"github.com/mna/mainer"
	"github.com/mna/lovm/internal/maincmd"
)

var (
	// placeholder values, replaced on build
	version   = "{v}" // must be N.N[.N]
	buildDate = "{d}" // must be YYYY-mm-DD
)

func main() {
	c := maincmd.Cmd{BuildVersion: version, BuildDate: buildDate}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}

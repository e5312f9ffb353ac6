package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/lovm/lang/asm"
	"github.com/mna/lovm/lang/code"
)

// Asm implements the assembler command line: read a path, assemble it, and
// either print a textual disassembly to stdout or, with --emit, write the
// unit's binary encoding to a file.
func (c *Cmd) Asm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return AssembleFile(ctx, stdio, c.Emit, args[0])
}

func AssembleFile(_ context.Context, stdio mainer.Stdio, emitPath, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	u, err := asm.Assemble(string(src))
	if err != nil {
		return printError(stdio, err)
	}

	if emitPath == "" {
		if err := code.Dump(stdio.Stdout, u); err != nil {
			return printError(stdio, err)
		}
		return nil
	}

	if err := os.WriteFile(emitPath, code.Encode(u), 0o644); err != nil {
		return printError(stdio, fmt.Errorf("writing %s: %w", emitPath, err))
	}
	return nil
}

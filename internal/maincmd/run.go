package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/lovm/lang/code"
	"github.com/mna/lovm/lang/vm"
)

// Run implements the virtual machine command line: read a path containing a
// serialized unit, deserialize it, and run its "main" function. A fatal VM
// error is printed and reported through the process exit code; a
// successful return prints the value main left on top of the stack.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return RunFile(ctx, stdio, args[0])
}

func RunFile(_ context.Context, stdio mainer.Stdio, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	u, err := code.Decode(b)
	if err != nil {
		return printError(stdio, fmt.Errorf("decoding %s: %w", path, err))
	}

	m := vm.New()
	m.Stdout = stdio.Stdout
	result, err := m.Run(path, u)
	if err != nil {
		return printError(stdio, err)
	}
	fmt.Fprintln(stdio.Stdout, result)
	return nil
}

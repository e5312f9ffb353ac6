package asm_test

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/lovm/internal/filetest"
	"github.com/mna/lovm/lang/asm"
	"github.com/mna/lovm/lang/code"
)

var testUpdateAsmTests = flag.Bool("test.update-asm-tests", false, "If set, replace expected assembler test results with actual results.")

// TestAssembleAndDump assembles every fixture in testdata/in and diffs its
// disassembly against the golden file of the same name in testdata/out,
// following the scanner package's testdata/in-testdata/out convention.
func TestAssembleAndDump(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".lasm") {
		t.Run(fi.Name(), func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join(srcDir, fi.Name()))
			if err != nil {
				t.Fatal(err)
			}

			var buf bytes.Buffer
			u, err := asm.Assemble(string(src))
			if err != nil {
				t.Fatal(err)
			}
			if err := code.Dump(&buf, u); err != nil {
				t.Fatal(err)
			}
			filetest.DiffOutput(t, fi, buf.String(), resultDir, testUpdateAsmTests)
		})
	}
}

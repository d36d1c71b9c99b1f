// piet2bytecode compiles a Piet source image and prints its disassembly,
// for inspecting what the compiler produced without running it.
//
// Grounded on cmd/ie32to64's flag-usage-convert-write shape and
// assembler/ie64dis.go's disassembly-dump purpose, retargeted from a
// binary-to-text converter to an image-to-bytecode one.
package main

import (
	"flag"
	"fmt"
	"os"

	"canvasvm/internal/piet/block"
	"canvasvm/internal/piet/bytecode"
	"canvasvm/internal/piet/compiler"
	"canvasvm/internal/piet/grid"
	"canvasvm/internal/piet/loader"
)

func main() {
	codelSize := flag.Int("codel", 0, "codel size in pixels (0 = auto-detect)")
	debugMode := flag.Bool("debug", true, "include source debug metadata in the disassembly")
	dumpGrid := flag.Bool("dump-grid", false, "also print an ASCII-art rendering of the codel grid")
	outFile := flag.String("o", "", "output file (default: stdout)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: piet2bytecode [options] input.png\n\nCompiles a Piet source image and prints its bytecode disassembly.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	inputPath := flag.Arg(0)

	out := os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if err := run(inputPath, *codelSize, *debugMode, *dumpGrid, out); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(inputPath string, codelSize int, debugMode, dumpGrid bool, out *os.File) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputPath, err)
	}
	defer f.Close()

	rgba, w, h, err := loader.DecodeImage(f)
	if err != nil {
		return err
	}

	if codelSize == 0 {
		codelSize, err = grid.DetectCodelSize(rgba, w, h)
		if err != nil {
			return err
		}
	}

	g, err := grid.Build(rgba, w, h, codelSize)
	if err != nil {
		return err
	}

	if dumpGrid {
		fmt.Fprintln(out, g.Dump())
		fmt.Fprintln(out)
	}

	mode := bytecode.Release
	if debugMode {
		mode = bytecode.Debug
	}
	program, err := compiler.Compile(g, block.Build(g), mode)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "; %d instructions, entry point %d, codel size %d\n", program.Meta.InstructionCount, program.Meta.EntryPoint, codelSize)
	fmt.Fprint(out, program.String())
	return nil
}

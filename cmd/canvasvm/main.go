// canvasvm loads a Piet source image, compiles it to bytecode, and runs
// it: either headless to completion, or interactively through the raw-mode
// debugger REPL or the Ebiten canvas visualizer.
//
// Grounded on main.go's flag-validate-wire-run shape, trimmed from the
// teacher's multi-CPU/multi-peripheral wiring down to the single
// loader -> grid -> block -> compiler -> vm pipeline this system needs.
package main

import (
	"flag"
	"fmt"
	"os"

	"canvasvm/internal/piet/block"
	"canvasvm/internal/piet/bytecode"
	"canvasvm/internal/piet/canvas"
	"canvasvm/internal/piet/compiler"
	"canvasvm/internal/piet/debugger"
	"canvasvm/internal/piet/grid"
	"canvasvm/internal/piet/loader"
	"canvasvm/internal/piet/term"
	"canvasvm/internal/piet/vm"
)

func main() {
	var (
		codelSize = flag.Int("codel", 0, "codel size in pixels (0 = auto-detect)")
		debugMode = flag.Bool("debug", false, "compile with source debug metadata")
		watchdog  = flag.Int("watchdog", 1_000_000, "maximum steps before the VM halts with a timeout (0 disables)")
		gui       = flag.Bool("gui", false, "open the Ebiten canvas visualizer instead of the terminal REPL")
		headless  = flag.Bool("run", false, "run to completion with no interactive front-end")
		scale     = flag.Int("scale", 8, "pixels per codel in the GUI visualizer")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <image>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	path := flag.Arg(0)

	program, g, err := compileImage(path, *codelSize, *debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "canvasvm: %v\n", err)
		os.Exit(1)
	}

	machine := vm.New(program)
	machine.SetWatchdog(*watchdog)

	switch {
	case *headless:
		runHeadless(machine)
	case *gui:
		dbg := debugger.New(machine)
		if err := canvas.New(g, dbg, *scale).Run("canvasvm — " + path); err != nil {
			fmt.Fprintf(os.Stderr, "canvasvm: %v\n", err)
			os.Exit(1)
		}
	default:
		dbg := debugger.New(machine)
		repl, err := term.New(dbg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "canvasvm: %v\n", err)
			os.Exit(1)
		}
		defer repl.Close()
		if err := repl.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "canvasvm: %v\n", err)
			os.Exit(1)
		}
	}
}

func compileImage(path string, codelSize int, debugMode bool) (*bytecode.Program, *grid.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rgba, w, h, err := loader.DecodeImage(f)
	if err != nil {
		return nil, nil, err
	}

	if codelSize == 0 {
		codelSize, err = grid.DetectCodelSize(rgba, w, h)
		if err != nil {
			return nil, nil, err
		}
	}

	g, err := grid.Build(rgba, w, h, codelSize)
	if err != nil {
		return nil, nil, err
	}

	blocks := block.Build(g)

	mode := bytecode.Release
	if debugMode {
		mode = bytecode.Debug
	}
	program, err := compiler.Compile(g, blocks, mode)
	if err != nil {
		return nil, nil, err
	}
	return program, g, nil
}

func runHeadless(machine *vm.VM) {
	for {
		if machine.Halted() {
			break
		}
		if machine.NeedsInput() != vm.NeedsNone && !machine.HasInput() {
			fmt.Fprintln(os.Stderr, "canvasvm: program blocked waiting for input with none available")
			break
		}
		if err := machine.Step(); err != nil {
			fmt.Fprintf(os.Stderr, "canvasvm: %v\n", err)
			break
		}
	}
	fmt.Print(machine.DrainOutputString())
}

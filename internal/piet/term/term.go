// Package term is the raw-mode interactive debugger REPL: step, run,
// breakpoints, trace, backstep, macros, and clipboard yank over a
// golang.org/x/term line-editing terminal.
//
// Grounded on terminal_host.go's MakeRaw/Restore pairing for stdin and a
// trimmed command table in the spirit of debug_commands.go's dispatch
// switch, narrowed to the dozen verbs a stack-machine debugger needs
// instead of the teacher's full multi-CPU register/memory command set.
package term

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"canvasvm/internal/piet/debugger"
	"canvasvm/internal/piet/vm"
)

// stdio adapts separate stdin/stdout streams into the io.ReadWriter
// x/term.NewTerminal requires.
type stdio struct {
	r io.Reader
	w io.Writer
}

func (s stdio) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s stdio) Write(p []byte) (int, error) { return s.w.Write(p) }

// REPL is an interactive front-end over a Debugger.
type REPL struct {
	dbg      *debugger.Debugger
	terminal *term.Terminal
	fd       int
	oldState *term.State
}

// New puts stdin into raw mode and wraps it in a line-editing terminal for
// dbg. Call Close to restore the terminal.
func New(dbg *debugger.Debugger) (*REPL, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("entering raw mode: %w", err)
	}
	t := term.NewTerminal(stdio{r: os.Stdin, w: os.Stdout}, "(canvasvm) ")
	return &REPL{dbg: dbg, terminal: t, fd: fd, oldState: oldState}, nil
}

// Close restores the terminal to cooked mode.
func (r *REPL) Close() error {
	return term.Restore(r.fd, r.oldState)
}

// Run reads and dispatches commands until the user quits or stdin closes.
func (r *REPL) Run() error {
	fmt.Fprintln(r.terminal, "canvasvm debugger. Type 'help' for commands.")
	for {
		line, err := r.terminal.ReadLine()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if quit, err := r.dispatch(line); err != nil {
			fmt.Fprintf(r.terminal, "error: %v\n", err)
		} else if quit {
			return nil
		}
	}
}

func (r *REPL) dispatch(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "help", "?":
		r.printHelp()
	case "quit", "exit", "q":
		return true, nil
	case "step", "s":
		return false, r.cmdStep()
	case "run", "r":
		return false, r.cmdRun(args)
	case "back", "b":
		if !r.dbg.StepBack() {
			fmt.Fprintln(r.terminal, "nothing to step back from")
		}
	case "break":
		return false, r.cmdBreak(args)
	case "cbreak":
		return false, r.cmdConditionalBreak(args)
	case "clear":
		return false, r.cmdClear(args)
	case "breaks":
		fmt.Fprintf(r.terminal, "%v\n", r.dbg.ListBreakpoints())
	case "trace":
		fmt.Fprint(r.terminal, debugger.FormatTrace(r.dbg.Trace()))
	case "reset":
		r.dbg.Machine().Reset()
	case "input":
		return false, r.cmdInput(args)
	case "record":
		return false, r.cmdRecord(args)
	case "macro":
		return false, r.cmdMacro(args)
	case "yank":
		return false, r.cmdYank(args)
	case "status":
		r.printStatus()
	default:
		fmt.Fprintf(r.terminal, "unknown command: %s (try 'help')\n", cmd)
	}
	return false, nil
}

func (r *REPL) printHelp() {
	fmt.Fprint(r.terminal, strings.Join([]string{
		"step (s)               execute one instruction",
		"run (r) [n]            run up to n steps or until halted/blocked/breakpoint",
		"back (b)               undo the last step",
		"break <idx>            set a breakpoint at instruction idx",
		"cbreak <idx> <cond>    set a conditional breakpoint, e.g. cbreak 12 top==0",
		"clear <idx>            remove a breakpoint",
		"breaks                 list armed breakpoints",
		"trace                  print the execution trace so far",
		"reset                  reset the machine to its entry point",
		"input <number|char> v  queue an input value",
		"record start|stop <n>  record or save a macro named n",
		"macro run <n>          replay macro n",
		"yank                   copy the trace to the clipboard",
		"status                 print ip/steps/stack/halted",
		"quit (q)               exit",
		"",
	}, "\n"))
}

func (r *REPL) cmdStep() error {
	step, err := r.dbg.Step()
	if err != nil {
		return err
	}
	fmt.Fprintf(r.terminal, "%s  ip %d -> %d  stack=%v\n", step.Op, step.PreIP, step.PostIP, step.PostStack)
	if step.OutputDelta != "" {
		fmt.Fprintf(r.terminal, "out: %q\n", step.OutputDelta)
	}
	r.printBlockedNotice()
	return nil
}

func (r *REPL) cmdRun(args []string) error {
	max := 1 << 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count: %s", args[0])
		}
		max = n
	}
	hit, err := r.dbg.RunUntilBreakpoint(max)
	if err != nil {
		return err
	}
	if hit >= 0 {
		fmt.Fprintf(r.terminal, "breakpoint hit at %d\n", hit)
	}
	r.printStatus()
	r.printBlockedNotice()
	return nil
}

func (r *REPL) printBlockedNotice() {
	if need := r.dbg.Machine().NeedsInput(); need != vm.NeedsNone {
		fmt.Fprintf(r.terminal, "blocked: needs %s input\n", need)
	}
}

func (r *REPL) cmdBreak(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: break <idx>")
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index: %s", args[0])
	}
	r.dbg.SetBreakpoint(idx)
	return nil
}

func (r *REPL) cmdConditionalBreak(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: cbreak <idx> <condition>")
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index: %s", args[0])
	}
	cond, err := debugger.ParseCondition(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	r.dbg.SetConditionalBreakpoint(idx, cond)
	return nil
}

func (r *REPL) cmdClear(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: clear <idx>")
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index: %s", args[0])
	}
	r.dbg.ClearBreakpoint(idx)
	return nil
}

func (r *REPL) cmdInput(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: input <number|char> <value>")
	}
	switch args[0] {
	case "number":
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %s", args[1])
		}
		r.dbg.Machine().PushInputInt(n)
	case "char":
		runes := []rune(args[1])
		if len(runes) != 1 {
			return fmt.Errorf("expected exactly one character, got %q", args[1])
		}
		return r.dbg.Machine().PushInputChar(runes[0])
	default:
		return fmt.Errorf("unknown input kind: %s (use number or char)", args[0])
	}
	return nil
}

func (r *REPL) cmdRecord(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: record start <name> | record stop")
	}
	switch args[0] {
	case "start":
		if len(args) != 2 {
			return fmt.Errorf("usage: record start <name>")
		}
		r.dbg.RecordMacro(args[1])
	case "stop":
		r.dbg.StopMacroRecording()
	default:
		return fmt.Errorf("usage: record start <name> | record stop")
	}
	return nil
}

func (r *REPL) cmdMacro(args []string) error {
	if len(args) != 2 || args[0] != "run" {
		return fmt.Errorf("usage: macro run <name>")
	}
	return r.dbg.RunMacro(args[1])
}

func (r *REPL) cmdYank(args []string) error {
	text := debugger.FormatTrace(r.dbg.Trace())
	if len(args) > 0 && args[0] == "output" {
		text = r.dbg.Machine().DrainOutputString()
	}
	return r.dbg.Yank(text)
}

func (r *REPL) printStatus() {
	snap := r.dbg.Machine().Snapshot()
	fmt.Fprintf(r.terminal, "ip=%d steps=%d dp=%s cc=%s halted=%v stack=%v\n",
		snap.InstructionIndex, snap.Steps, snap.Direction, snap.CodelChooser, snap.Halted, snap.Stack)
}

// Package debugger wraps a vm.VM with breakpoints, an execution trace,
// backstep, and macro replay, for interactive hosts (cmd/canvasvm's REPL,
// the Ebiten canvas overlay).
//
// Grounded on debug_monitor.go's MachineMonitor (mutex-protected state,
// freeze-on-breakpoint activation) and debug_conditions.go's
// ParseCondition/evaluateCondition, narrowed from CPU registers/memory to
// the stack machine's three observable quantities: instruction index,
// stack top, and step count.
package debugger

import (
	"fmt"
	"strings"
	"sync"

	"golang.design/x/clipboard"

	"canvasvm/internal/piet/vm"
)

// ConditionOp is a breakpoint condition's comparison operator.
type ConditionOp int

const (
	CondOpEqual ConditionOp = iota
	CondOpNotEqual
	CondOpLess
	CondOpGreater
	CondOpLessEqual
	CondOpGreaterEqual
)

// ConditionSource selects what a breakpoint condition compares.
type ConditionSource int

const (
	CondSourceStackTop ConditionSource = iota
	CondSourceStackDepth
	CondSourceStepCount
)

// Condition is a single comparison clause attached to a breakpoint.
type Condition struct {
	Source ConditionSource
	Op     ConditionOp
	Value  int64
}

// ParseCondition parses a condition string into a Condition. Formats:
//
//	top==5        - stack top, op ==, value 5
//	depth>3        - stack depth, op >, value 3
//	steps>=1000    - step count, op >=, value 1000
func ParseCondition(text string) (*Condition, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty condition")
	}

	var op ConditionOp
	var opStr string
	var opIdx int
	for _, candidate := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		idx := strings.Index(text, candidate)
		if idx >= 0 {
			opStr, opIdx = candidate, idx
			break
		}
	}
	if opStr == "" {
		return nil, fmt.Errorf("no operator found (use ==, !=, <, >, <=, >=)")
	}
	switch opStr {
	case "==":
		op = CondOpEqual
	case "!=":
		op = CondOpNotEqual
	case "<":
		op = CondOpLess
	case ">":
		op = CondOpGreater
	case "<=":
		op = CondOpLessEqual
	case ">=":
		op = CondOpGreaterEqual
	}

	lhs := strings.ToLower(strings.TrimSpace(text[:opIdx]))
	rhs := strings.TrimSpace(text[opIdx+len(opStr):])
	var value int64
	if _, err := fmt.Sscanf(rhs, "%d", &value); err != nil {
		return nil, fmt.Errorf("invalid value: %s", rhs)
	}

	var source ConditionSource
	switch lhs {
	case "top":
		source = CondSourceStackTop
	case "depth":
		source = CondSourceStackDepth
	case "steps":
		source = CondSourceStepCount
	default:
		return nil, fmt.Errorf("unknown condition source: %s (use top, depth, steps)", lhs)
	}
	return &Condition{Source: source, Op: op, Value: value}, nil
}

func compareValues(actual int64, op ConditionOp, expected int64) bool {
	switch op {
	case CondOpEqual:
		return actual == expected
	case CondOpNotEqual:
		return actual != expected
	case CondOpLess:
		return actual < expected
	case CondOpGreater:
		return actual > expected
	case CondOpLessEqual:
		return actual <= expected
	case CondOpGreaterEqual:
		return actual >= expected
	}
	return false
}

func evaluateCondition(cond *Condition, snap vm.Snapshot) bool {
	if cond == nil {
		return true
	}
	var actual int64
	switch cond.Source {
	case CondSourceStackTop:
		if len(snap.Stack) == 0 {
			return false
		}
		actual = snap.Stack[len(snap.Stack)-1]
	case CondSourceStackDepth:
		actual = int64(len(snap.Stack))
	case CondSourceStepCount:
		actual = int64(snap.Steps)
	}
	return compareValues(actual, cond.Op, cond.Value)
}

// Breakpoint is a halt point at a given instruction index, optionally
// guarded by a condition.
type Breakpoint struct {
	Index     int
	Condition *Condition
	HitCount  int
}

// ExecutionStep is one entry in the append-only trace log: the state of
// the machine immediately before and after a single Step call.
type ExecutionStep struct {
	Seq         int
	Op          string
	PreIP       int
	PostIP      int
	PreStack    []int64
	PostStack   []int64
	OutputDelta string
}

// ActionKind identifies a recordable debugger command, for macro replay.
type ActionKind int

const (
	ActionStep ActionKind = iota
	ActionRun
	ActionSetBreakpoint
	ActionClearBreakpoint
)

// Action is one recorded command in a macro.
type Action struct {
	Kind ActionKind
	Arg  int
}

// Debugger wraps a *vm.VM with breakpoints, a trace log, and backstep.
type Debugger struct {
	mu sync.Mutex

	machine *vm.VM

	breakpoints map[int]*Breakpoint

	trace    []ExecutionStep
	traceSeq int

	history     []vm.State
	maxBackstep int

	macros    map[string][]Action
	recording string
	recorded  []Action

	clipboardOnce sync.Once
	clipboardOK   bool
}

// New wraps m with a fresh debugger, no breakpoints or history.
func New(m *vm.VM) *Debugger {
	return &Debugger{
		machine:     m,
		breakpoints: make(map[int]*Breakpoint),
		maxBackstep: 256,
		macros:      make(map[string][]Action),
	}
}

// Machine returns the wrapped VM.
func (d *Debugger) Machine() *vm.VM { return d.machine }

// SetBreakpoint arms an unconditional breakpoint at index.
func (d *Debugger) SetBreakpoint(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakpoints[index] = &Breakpoint{Index: index}
	d.recordAction(Action{Kind: ActionSetBreakpoint, Arg: index})
}

// SetConditionalBreakpoint arms a breakpoint at index guarded by cond.
func (d *Debugger) SetConditionalBreakpoint(index int, cond *Condition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakpoints[index] = &Breakpoint{Index: index, Condition: cond}
}

// ClearBreakpoint disarms the breakpoint at index, if any.
func (d *Debugger) ClearBreakpoint(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.breakpoints, index)
	d.recordAction(Action{Kind: ActionClearBreakpoint, Arg: index})
}

// ClearAllBreakpoints disarms every breakpoint.
func (d *Debugger) ClearAllBreakpoints() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakpoints = make(map[int]*Breakpoint)
}

// ListBreakpoints returns the armed breakpoint indices, unordered.
func (d *Debugger) ListBreakpoints() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, 0, len(d.breakpoints))
	for idx := range d.breakpoints {
		out = append(out, idx)
	}
	return out
}

// HasBreakpoint reports whether index has an armed breakpoint.
func (d *Debugger) HasBreakpoint(index int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.breakpoints[index]
	return ok
}

// Trace returns the full execution trace recorded so far.
func (d *Debugger) Trace() []ExecutionStep {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ExecutionStep, len(d.trace))
	copy(out, d.trace)
	return out
}

// Step executes exactly one VM instruction, pushing the pre-step state
// onto the backstep ring buffer and appending an ExecutionStep to the
// trace.
func (d *Debugger) Step() (ExecutionStep, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recordAction(Action{Kind: ActionStep})
	return d.stepLocked()
}

func (d *Debugger) stepLocked() (ExecutionStep, error) {
	before := d.machine.Snapshot()
	outBefore := d.machine.OutputLen()
	state := d.machine.CaptureState()
	d.pushHistory(state)

	var mnemonic string
	if p := d.machine.Program(); before.InstructionIndex >= 0 && before.InstructionIndex < len(p.Instructions) {
		mnemonic = p.Instructions[before.InstructionIndex].Op.String()
	}

	err := d.machine.Step()
	after := d.machine.Snapshot()
	delta := d.machine.RenderOutputRange(outBefore, d.machine.OutputLen())

	step := ExecutionStep{
		Seq: d.traceSeq, Op: mnemonic,
		PreIP: before.InstructionIndex, PostIP: after.InstructionIndex,
		PreStack: before.Stack, PostStack: after.Stack,
		OutputDelta: delta,
	}
	d.traceSeq++
	d.trace = append(d.trace, step)
	return step, err
}

func (d *Debugger) pushHistory(s vm.State) {
	d.history = append(d.history, s)
	if len(d.history) > d.maxBackstep {
		d.history = d.history[len(d.history)-d.maxBackstep:]
	}
}

// StepBack undoes the most recent Step, restoring the VM to its state
// immediately before that instruction executed. It returns false if the
// history is empty.
func (d *Debugger) StepBack() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) == 0 {
		return false
	}
	last := d.history[len(d.history)-1]
	d.history = d.history[:len(d.history)-1]
	d.machine.RestoreState(last)
	if len(d.trace) > 0 {
		d.trace = d.trace[:len(d.trace)-1]
	}
	return true
}

// RunUntilBreakpoint steps the VM until it halts, blocks on input, hits an
// armed breakpoint whose condition holds, or maxSteps is reached. It
// returns the index of the breakpoint hit, or -1 if none.
func (d *Debugger) RunUntilBreakpoint(maxSteps int) (hitIndex int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hitIndex = -1
	d.recordAction(Action{Kind: ActionRun, Arg: maxSteps})
	for i := 0; i < maxSteps; i++ {
		if d.machine.Halted() {
			return hitIndex, nil
		}
		if d.machine.NeedsInput() != vm.NeedsNone && !d.machine.HasInput() {
			return hitIndex, nil
		}
		if _, err := d.stepLocked(); err != nil {
			return hitIndex, err
		}
		idx := d.machine.InstructionIndex()
		if bp, ok := d.breakpoints[idx]; ok {
			snap := d.machine.Snapshot()
			if evaluateCondition(bp.Condition, snap) {
				bp.HitCount++
				return idx, nil
			}
		}
	}
	return hitIndex, nil
}

func (d *Debugger) recordAction(a Action) {
	if d.recording == "" {
		return
	}
	d.recorded = append(d.recorded, a)
}

// RecordMacro begins recording debugger actions (Step, SetBreakpoint,
// ClearBreakpoint, RunUntilBreakpoint) under name. A prior recording with
// the same name is discarded.
func (d *Debugger) RecordMacro(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recording = name
	d.recorded = nil
}

// StopMacroRecording ends the current recording, if any, and saves it.
func (d *Debugger) StopMacroRecording() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.recording == "" {
		return
	}
	d.macros[d.recording] = d.recorded
	d.recording = ""
	d.recorded = nil
}

// RunMacro replays a previously recorded macro. Recording is suspended
// during replay so a macro can't record itself.
func (d *Debugger) RunMacro(name string) error {
	d.mu.Lock()
	actions, ok := d.macros[name]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("no macro named %q", name)
	}
	wasRecording := d.recording
	d.recording = ""
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.recording = wasRecording
		d.mu.Unlock()
	}()

	for _, a := range actions {
		switch a.Kind {
		case ActionStep:
			if _, err := d.Step(); err != nil {
				return err
			}
		case ActionRun:
			if _, err := d.RunUntilBreakpoint(a.Arg); err != nil {
				return err
			}
		case ActionSetBreakpoint:
			d.SetBreakpoint(a.Arg)
		case ActionClearBreakpoint:
			d.ClearBreakpoint(a.Arg)
		}
	}
	return nil
}

// Yank copies text to the system clipboard, for pulling a trace or output
// buffer out of the terminal host. Returns an error if no clipboard is
// available (e.g. headless CI).
func (d *Debugger) Yank(text string) error {
	d.clipboardOnce.Do(func() {
		d.clipboardOK = clipboard.Init() == nil
	})
	if !d.clipboardOK {
		return fmt.Errorf("clipboard unavailable")
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// FormatTrace renders the trace log as text, one instruction per line.
func FormatTrace(steps []ExecutionStep) string {
	var b strings.Builder
	for _, s := range steps {
		fmt.Fprintf(&b, "%4d  %-12s ip=%d->%d stack=%v", s.Seq, s.Op, s.PreIP, s.PostIP, s.PostStack)
		if s.OutputDelta != "" {
			fmt.Fprintf(&b, " out=%q", s.OutputDelta)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

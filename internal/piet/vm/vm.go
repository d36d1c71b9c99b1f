// Package vm implements the Piet bytecode stack machine: 19 opcodes,
// stack operations, buffered I/O, and a watchdog. Grounded on
// cpu_ie64.go's Execute/Step loop shape (decode, dispatch, advance IP);
// the snapshot/state-capture shape here plays the role debug_interface.go's
// DebuggableCPU interface plays for the teacher's CPU cores, narrowed to
// stack+IP since Piet has no registers or addressable memory.
package vm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"canvasvm/internal/piet/bytecode"
	"canvasvm/internal/piet/dpcc"
)

// ErrHalted is returned by Step when called on an already-halted VM.
var ErrHalted = errors.New("vm halted")

// ErrInvalidInput reports a malformed external input push.
var ErrInvalidInput = errors.New("invalid input")

// ExecutionTimeoutError reports the watchdog firing.
type ExecutionTimeoutError struct{ Steps int }

func (e *ExecutionTimeoutError) Error() string {
	return fmt.Sprintf("execution timeout after %d steps", e.Steps)
}

// NeedsInput reports what kind of input an In* instruction is blocked on.
type NeedsInput int

const (
	NeedsNone NeedsInput = iota
	NeedsNumber
	NeedsChar
)

func (n NeedsInput) String() string {
	switch n {
	case NeedsNumber:
		return "number"
	case NeedsChar:
		return "char"
	}
	return ""
}

// OutputKind tags an output buffer entry as a number or a character, so
// DrainOutputString can render mixed OutNumber/OutChar sequences
// correctly instead of guessing from the raw integer alone.
type OutputKind int

const (
	OutputNumber OutputKind = iota
	OutputChar
)

// OutputItem is one entry appended by OutNumber or OutChar.
type OutputItem struct {
	Kind  OutputKind
	Value int64
}

// Snapshot is a structured, read-only view of VM state for hosts (spec.md
// §6).
type Snapshot struct {
	InstructionIndex int
	Steps            int
	Halted           bool
	Stack            []int64
	Direction        dpcc.Direction
	CodelChooser     dpcc.Chooser
	PositionX        int
	PositionY        int
}

// VM executes a compiled bytecode Program. Program is immutable and may be
// shared by multiple VM instances; all mutable state lives here.
type VM struct {
	program *bytecode.Program

	stack []int64
	input []int64

	output []OutputItem

	ip     int
	steps  int
	halted bool

	watchdog   int // 0 disables the watchdog
	needsInput NeedsInput
}

// New constructs a VM positioned at program's entry point.
func New(program *bytecode.Program) *VM {
	v := &VM{program: program}
	v.Reset()
	return v
}

// Program returns the immutable compiled program this VM executes.
func (v *VM) Program() *bytecode.Program { return v.program }

// State is a full, restorable capture of VM execution state, for the
// debugger's backstep ring buffer. Unlike Snapshot it is not meant for
// display — it round-trips through RestoreState exactly.
type State struct {
	IP         int
	Steps      int
	Halted     bool
	Stack      []int64
	NeedsInput NeedsInput
	OutputLen  int // output buffer length at capture time, for trimming on restore
}

// CaptureState captures enough VM state to restore it later with
// RestoreState. The input queue is not captured: backstep rewinds
// execution, not consumed external input.
func (v *VM) CaptureState() State {
	stack := make([]int64, len(v.stack))
	copy(stack, v.stack)
	return State{
		IP: v.ip, Steps: v.steps, Halted: v.halted,
		Stack: stack, NeedsInput: v.needsInput, OutputLen: len(v.output),
	}
}

// RestoreState rewinds the VM to a previously captured State, truncating
// any output produced since that capture.
func (v *VM) RestoreState(s State) {
	v.ip = s.IP
	v.steps = s.Steps
	v.halted = s.Halted
	v.stack = append(v.stack[:0], s.Stack...)
	v.needsInput = s.NeedsInput
	if s.OutputLen <= len(v.output) {
		v.output = v.output[:s.OutputLen]
	}
}

// Reset restores IP to the entry point, clears the stack, output, input,
// step counter and halted flag. The watchdog limit survives reset (it is
// host configuration, not execution state).
func (v *VM) Reset() {
	v.ip = v.program.Meta.EntryPoint
	v.stack = v.stack[:0]
	v.input = v.input[:0]
	v.output = v.output[:0]
	v.steps = 0
	v.halted = false
	v.needsInput = NeedsNone
}

// SetWatchdog sets the step limit; 0 disables it.
func (v *VM) SetWatchdog(limit int) { v.watchdog = limit }

// PushInputInt enqueues an integer for the next InNumber to consume.
func (v *VM) PushInputInt(n int64) { v.input = append(v.input, n) }

// PushInputChar enqueues a Unicode code point for the next InChar to
// consume.
func (v *VM) PushInputChar(codePoint int32) error {
	if codePoint < 0 {
		return fmt.Errorf("%w: negative code point %d", ErrInvalidInput, codePoint)
	}
	v.input = append(v.input, int64(codePoint))
	return nil
}

// HasInput reports whether the input queue has at least one value.
func (v *VM) HasInput() bool { return len(v.input) > 0 }

// NeedsInput reports what kind of input the VM is currently blocked on, if
// any.
func (v *VM) NeedsInput() NeedsInput { return v.needsInput }

// Halted reports whether the VM has stopped executing.
func (v *VM) Halted() bool { return v.halted }

// Steps returns the number of Step calls made since the last Reset.
func (v *VM) Steps() int { return v.steps }

// InstructionIndex returns the current instruction pointer.
func (v *VM) InstructionIndex() int { return v.ip }

// DrainOutputNumbers returns every value written to the output buffer (by
// either OutNumber or OutChar) as raw integers, without clearing it.
func (v *VM) DrainOutputNumbers() []int64 {
	out := make([]int64, len(v.output))
	for i, item := range v.output {
		out[i] = item.Value
	}
	return out
}

// DrainOutputString renders the output buffer as text: OutNumber entries
// as decimal digits, OutChar entries as the UTF-8 encoding of their code
// point. It does not clear the buffer.
func (v *VM) DrainOutputString() string {
	var b strings.Builder
	for _, item := range v.output {
		switch item.Kind {
		case OutputNumber:
			b.WriteString(strconv.FormatInt(item.Value, 10))
		case OutputChar:
			b.WriteRune(rune(item.Value))
		}
	}
	return b.String()
}

// OutputLen returns the number of items (OutNumber/OutChar calls) written
// to the output buffer so far.
func (v *VM) OutputLen() int { return len(v.output) }

// RenderOutputRange renders output items [from, to) as text, the same way
// DrainOutputString renders the whole buffer. Used by hosts that want only
// the text produced since some earlier OutputLen() mark.
func (v *VM) RenderOutputRange(from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(v.output) {
		to = len(v.output)
	}
	var b strings.Builder
	for _, item := range v.output[from:to] {
		switch item.Kind {
		case OutputNumber:
			b.WriteString(strconv.FormatInt(item.Value, 10))
		case OutputChar:
			b.WriteRune(rune(item.Value))
		}
	}
	return b.String()
}

// Snapshot captures the current VM state for host display.
func (v *VM) Snapshot() Snapshot {
	stack := make([]int64, len(v.stack))
	copy(stack, v.stack)
	var dp dpcc.Direction
	var cc dpcc.Chooser
	var x, y int
	if v.ip >= 0 && v.ip < len(v.program.Instructions) {
		ins := v.program.Instructions[v.ip]
		dp, cc, x, y = ins.DP, ins.CC, ins.X, ins.Y
	}
	return Snapshot{
		InstructionIndex: v.ip,
		Steps:            v.steps,
		Halted:           v.halted,
		Stack:            stack,
		Direction:        dp,
		CodelChooser:     cc,
		PositionX:        x,
		PositionY:        y,
	}
}

// Step executes exactly one instruction (or makes one blocked attempt at
// an In* instruction). It returns ErrHalted if the VM was already halted,
// or an *ExecutionTimeoutError if this step trips the watchdog.
func (v *VM) Step() error {
	if v.halted {
		return ErrHalted
	}
	v.steps++
	if v.watchdog > 0 && v.steps > v.watchdog {
		v.halted = true
		return &ExecutionTimeoutError{Steps: v.steps}
	}

	ins := &v.program.Instructions[v.ip]
	v.needsInput = NeedsNone

	switch ins.Op {
	case bytecode.Push:
		v.push(int64(ins.Operand))
	case bytecode.Pop:
		v.pop1(func(int64) {})
	case bytecode.Add:
		v.binary(func(a, b int64) int64 { return a + b })
	case bytecode.Subtract:
		v.binary(func(a, b int64) int64 { return a - b })
	case bytecode.Multiply:
		v.binary(func(a, b int64) int64 { return a * b })
	case bytecode.Divide:
		v.divide()
	case bytecode.Mod:
		v.mod()
	case bytecode.Not:
		v.pop1(func(a int64) {
			if a == 0 {
				v.push(1)
			} else {
				v.push(0)
			}
		})
	case bytecode.Greater:
		v.binary(func(a, b int64) int64 {
			if a > b {
				return 1
			}
			return 0
		})
	case bytecode.Pointer:
		v.pointer(ins)
	case bytecode.Switch:
		v.switchOp(ins)
	case bytecode.Duplicate:
		v.duplicate()
	case bytecode.Roll:
		v.roll()
	case bytecode.InNumber:
		if !v.readInput(NeedsNumber, func(n int64) { v.push(n) }) {
			return nil
		}
	case bytecode.InChar:
		if !v.readInput(NeedsChar, func(n int64) { v.push(n) }) {
			return nil
		}
	case bytecode.OutNumber:
		v.pop1(func(a int64) { v.output = append(v.output, OutputItem{Kind: OutputNumber, Value: a}) })
	case bytecode.OutChar:
		v.pop1(func(a int64) { v.output = append(v.output, OutputItem{Kind: OutputChar, Value: a}) })
	case bytecode.Nop:
		// never emitted by the compiler as a standalone instruction, but
		// harmless if ever reached.
	case bytecode.Halt:
		v.halted = true
		return nil
	}

	if ins.Op != bytecode.Pointer && ins.Op != bytecode.Switch {
		v.ip = ins.Next
	}
	return nil
}

// Run executes up to maxSteps instructions (fewer if the VM halts, blocks
// on input, or the watchdog fires first) and returns the number of steps
// executed; a Step call that returns an error (such as the watchdog
// firing) is not counted. If a watchdog limit is set, it is honored even
// when maxSteps is larger.
func (v *VM) Run(maxSteps int) (int, error) {
	executed := 0
	for executed < maxSteps {
		if v.halted {
			break
		}
		if v.needsInput != NeedsNone && !v.HasInput() {
			break
		}
		if err := v.Step(); err != nil {
			return executed, err
		}
		executed++
		if v.needsInput != NeedsNone {
			break
		}
	}
	return executed, nil
}

func (v *VM) push(n int64) { v.stack = append(v.stack, n) }

func (v *VM) pop1(f func(int64)) {
	if len(v.stack) < 1 {
		return
	}
	a := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	f(a)
}

// binary pops b (top) then a (below it) and pushes f(a, b), or leaves the
// stack untouched if fewer than two items are present.
func (v *VM) binary(f func(a, b int64) int64) {
	if len(v.stack) < 2 {
		return
	}
	b := v.stack[len(v.stack)-1]
	a := v.stack[len(v.stack)-2]
	v.stack = v.stack[:len(v.stack)-2]
	v.push(f(a, b))
}

func (v *VM) divide() {
	if len(v.stack) < 2 || v.stack[len(v.stack)-1] == 0 {
		return
	}
	v.binary(func(a, b int64) int64 { return a / b }) // Go truncates toward zero, matching spec.md
}

func (v *VM) mod() {
	if len(v.stack) < 2 || v.stack[len(v.stack)-1] == 0 {
		return
	}
	v.binary(func(a, b int64) int64 {
		r := a % b
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return r
	})
}

func (v *VM) duplicate() {
	if len(v.stack) < 1 {
		return
	}
	v.push(v.stack[len(v.stack)-1])
}

func (v *VM) pointer(ins *bytecode.Instruction) {
	if len(v.stack) < 1 {
		v.fallThroughNoOp(ins)
		return
	}
	n := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	steps := int(((n % 4) + 4) % 4)
	newDP := ins.DP
	for i := 0; i < steps; i++ {
		newDP = newDP.Clockwise()
	}
	v.ip = ins.Targets[dpcc.State{DP: newDP, CC: ins.CC}]
}

func (v *VM) switchOp(ins *bytecode.Instruction) {
	if len(v.stack) < 1 {
		v.fallThroughNoOp(ins)
		return
	}
	n := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	cc := ins.CC
	if abs64(n)%2 == 1 {
		cc = cc.Toggle()
	}
	v.ip = ins.Targets[dpcc.State{DP: ins.DP, CC: cc}]
}

// fallThroughNoOp handles Pointer/Switch underflow: the instruction is a
// no-op per spec.md's table, but execution must still continue somewhere.
// It continues as though n==0 had been supplied (DP/CC unchanged), which
// is always a key present in Targets.
func (v *VM) fallThroughNoOp(ins *bytecode.Instruction) {
	v.ip = ins.Targets[dpcc.State{DP: ins.DP, CC: ins.CC}]
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func (v *VM) roll() {
	if len(v.stack) < 2 {
		return
	}
	count := v.stack[len(v.stack)-1]
	depth := v.stack[len(v.stack)-2]
	if depth < 0 || int(depth) > len(v.stack)-2 {
		return
	}
	v.stack = v.stack[:len(v.stack)-2]
	d := int(depth)
	if d == 0 {
		return
	}
	window := v.stack[len(v.stack)-d:]
	shifted := make([]int64, d)
	for i := 0; i < d; i++ {
		src := ((i-int(count))%d + d) % d
		shifted[i] = window[src]
	}
	copy(window, shifted)
}

// readInput attempts to pop one value from the input queue for an In*
// instruction. On success it calls f with the value and returns true. On
// an empty queue it sets needsInput and leaves the IP unchanged, returning
// false so Step does not advance past this instruction.
func (v *VM) readInput(kind NeedsInput, f func(int64)) bool {
	if len(v.input) == 0 {
		v.needsInput = kind
		return false
	}
	n := v.input[0]
	v.input = v.input[1:]
	f(n)
	return true
}

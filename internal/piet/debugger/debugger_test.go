package debugger

import (
	"strings"
	"testing"

	"canvasvm/internal/piet/bytecode"
	"canvasvm/internal/piet/vm"
)

func program(instructions ...bytecode.Instruction) *bytecode.Program {
	return &bytecode.Program{
		Instructions: instructions,
		Meta:         bytecode.Metadata{EntryPoint: 0, InstructionCount: len(instructions)},
	}
}

func threePushesThenHalt() *bytecode.Program {
	return program(
		bytecode.Instruction{Op: bytecode.Push, Operand: 1, Next: 1},
		bytecode.Instruction{Op: bytecode.Push, Operand: 2, Next: 2},
		bytecode.Instruction{Op: bytecode.Push, Operand: 3, Next: 3},
		bytecode.Instruction{Op: bytecode.Halt},
	)
}

func TestParseConditionValidForms(t *testing.T) {
	cases := []struct {
		text   string
		source ConditionSource
		op     ConditionOp
		value  int64
	}{
		{"top==5", CondSourceStackTop, CondOpEqual, 5},
		{"depth>3", CondSourceStackDepth, CondOpGreater, 3},
		{"steps>=1000", CondSourceStepCount, CondOpGreaterEqual, 1000},
		{"top!=0", CondSourceStackTop, CondOpNotEqual, 0},
	}
	for _, c := range cases {
		cond, err := ParseCondition(c.text)
		if err != nil {
			t.Fatalf("ParseCondition(%q): %v", c.text, err)
		}
		if cond.Source != c.source || cond.Op != c.op || cond.Value != c.value {
			t.Errorf("ParseCondition(%q) = %+v, want {%v %v %v}", c.text, cond, c.source, c.op, c.value)
		}
	}
}

func TestParseConditionRejectsMalformedInput(t *testing.T) {
	for _, text := range []string{"", "top", "bogus==5", "top==abc"} {
		if _, err := ParseCondition(text); err == nil {
			t.Errorf("ParseCondition(%q) should have failed", text)
		}
	}
}

func TestRunUntilBreakpointStopsAtArmedIndex(t *testing.T) {
	d := New(vm.New(threePushesThenHalt()))
	d.SetBreakpoint(2)
	hit, err := d.RunUntilBreakpoint(10)
	if err != nil {
		t.Fatalf("RunUntilBreakpoint: %v", err)
	}
	if hit != 2 {
		t.Fatalf("hit = %d, want 2", hit)
	}
	if got := d.Machine().Snapshot().Stack; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("stack at breakpoint = %v, want [1 2]", got)
	}
}

func TestRunUntilBreakpointHonorsCondition(t *testing.T) {
	d := New(vm.New(threePushesThenHalt()))
	cond, err := ParseCondition("top==2")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	d.SetConditionalBreakpoint(2, cond)
	hit, err := d.RunUntilBreakpoint(10)
	if err != nil {
		t.Fatalf("RunUntilBreakpoint: %v", err)
	}
	if hit != 2 {
		t.Fatalf("hit = %d, want 2 (condition top==2 holds there)", hit)
	}
}

func TestRunUntilBreakpointRunsToCompletionWhenConditionNeverHolds(t *testing.T) {
	d := New(vm.New(threePushesThenHalt()))
	cond, err := ParseCondition("top==99")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	d.SetConditionalBreakpoint(2, cond)
	hit, err := d.RunUntilBreakpoint(10)
	if err != nil {
		t.Fatalf("RunUntilBreakpoint: %v", err)
	}
	if hit != -1 {
		t.Errorf("hit = %d, want -1 (never matched, ran to halt)", hit)
	}
	if !d.Machine().Halted() {
		t.Error("expected the machine to run to completion")
	}
}

func TestStepBackUndoesLastStep(t *testing.T) {
	d := New(vm.New(threePushesThenHalt()))
	if _, err := d.Step(); err != nil { // push 1
		t.Fatalf("Step: %v", err)
	}
	if _, err := d.Step(); err != nil { // push 2
		t.Fatalf("Step: %v", err)
	}
	if ok := d.StepBack(); !ok {
		t.Fatal("StepBack returned false")
	}
	snap := d.Machine().Snapshot()
	if snap.InstructionIndex != 1 {
		t.Errorf("ip after StepBack = %d, want 1", snap.InstructionIndex)
	}
	if len(snap.Stack) != 1 || snap.Stack[0] != 1 {
		t.Errorf("stack after StepBack = %v, want [1]", snap.Stack)
	}
	if len(d.Trace()) != 1 {
		t.Errorf("trace length after StepBack = %d, want 1", len(d.Trace()))
	}
}

func TestStepBackOnEmptyHistoryReturnsFalse(t *testing.T) {
	d := New(vm.New(threePushesThenHalt()))
	if d.StepBack() {
		t.Error("StepBack on a fresh debugger should return false")
	}
}

func TestMacroRecordAndReplay(t *testing.T) {
	d := New(vm.New(threePushesThenHalt()))
	d.RecordMacro("two-pushes")
	if _, err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if _, err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	d.StopMacroRecording()

	d.Machine().Reset()
	if err := d.RunMacro("two-pushes"); err != nil {
		t.Fatalf("RunMacro: %v", err)
	}
	snap := d.Machine().Snapshot()
	if len(snap.Stack) != 2 || snap.Stack[0] != 1 || snap.Stack[1] != 2 {
		t.Errorf("stack after macro replay = %v, want [1 2]", snap.Stack)
	}
}

func TestRunMacroUnknownNameErrors(t *testing.T) {
	d := New(vm.New(threePushesThenHalt()))
	if err := d.RunMacro("nope"); err == nil {
		t.Error("expected an error for an unknown macro name")
	}
}

func TestFormatTraceRendersStepsAndOutputDelta(t *testing.T) {
	steps := []ExecutionStep{
		{Seq: 0, Op: "push 5", PreIP: 0, PostIP: 1, PostStack: []int64{5}},
		{Seq: 1, Op: "out(number)", PreIP: 1, PostIP: 2, PostStack: nil, OutputDelta: "5"},
	}
	out := FormatTrace(steps)
	if !strings.Contains(out, "push 5") || !strings.Contains(out, "ip=0->1") {
		t.Errorf("FormatTrace missing expected content: %q", out)
	}
	if !strings.Contains(out, `out="5"`) {
		t.Errorf("FormatTrace should quote the output delta: %q", out)
	}
}

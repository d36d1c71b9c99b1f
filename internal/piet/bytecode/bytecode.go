// Package bytecode defines the flat, linear instruction sequence the
// compiler emits and the VM executes: Instruction, Program, and the
// debug-metadata shape modeled on assembler/ie64dis.go's DisassembledLine.
package bytecode

import (
	"fmt"
	"strings"

	"canvasvm/internal/piet/color"
	"canvasvm/internal/piet/dpcc"
)

// Opcode is one of the 19 executable instructions (Halt included; Nop is a
// valid no-op opcode but never emitted by the compiler as a standalone
// instruction — white traversal simply continues without emitting one).
type Opcode = color.Operation

// Re-exported for readability at call sites that only need opcodes, not
// the whole color package.
const (
	Push     = color.OpPush
	Pop      = color.OpPop
	Add      = color.OpAdd
	Subtract = color.OpSubtract
	Multiply = color.OpMultiply
	Divide   = color.OpDivide
	Mod      = color.OpMod
	Not      = color.OpNot
	Greater  = color.OpGreater
	Pointer  = color.OpPointer
	Switch   = color.OpSwitch
	Duplicate = color.OpDuplicate
	Roll     = color.OpRoll
	InNumber = color.OpInNumber
	InChar   = color.OpInChar
	OutNumber = color.OpOutNumber
	OutChar  = color.OpOutChar
	Nop      = color.OpNop
	Halt     = color.OpHalt
)

// DebugInfo carries the extra source-level metadata spec.md §3 describes
// for "Debug" compile mode: nil in "Release" mode. The position/DP/CC a
// host needs for snapshots and rendering regardless of mode live directly
// on Instruction (below), since those are VM state, not debug-only
// annotation.
type DebugInfo struct {
	BlockSize int
	PreColor  color.Color
	PostColor color.Color
}

// Instruction is a single bytecode instruction: an opcode, an optional
// literal operand (only meaningful for Push), the grid position and
// (DP, CC) state the instruction executes under, and optional debug
// metadata.
type Instruction struct {
	Op      Opcode
	Operand int // valid only when Op == Push

	X, Y int            // first flood-filled cell of the block this instruction arrives in
	DP   dpcc.Direction // direction pointer at the moment this instruction runs
	CC   dpcc.Chooser   // codel chooser at the moment this instruction runs

	// Next is the instruction index to continue at after this
	// instruction, for every opcode except Pointer/Switch. It is
	// normally index+1 but may point at an earlier index: the back-edge
	// spec.md §4.5 describes for cyclic control flow, realized as an
	// explicit "next" pointer rather than a jump opcode.
	Next int

	// Targets holds, for Pointer/Switch instructions only, the
	// alternate successor instruction index keyed by the post-execution
	// (DP, CC) pair — the side-table spec.md §4.5 describes so dynamic
	// branches don't need patched jumps. Unused (nil) for every other
	// opcode, which uses Next instead.
	Targets map[dpcc.State]int

	Debug *DebugInfo // nil in Release mode
}

// Mode selects whether the compiler attaches DebugInfo to instructions.
type Mode int

const (
	Release Mode = iota
	Debug
)

// Program is an immutable, compiled bytecode sequence.
type Program struct {
	Instructions []Instruction
	Meta         Metadata
}

// Metadata describes the program as a whole.
type Metadata struct {
	EntryPoint       int
	InstructionCount int
	Mode             Mode
}

// DisassembledLine is one line of human-readable disassembly, modeled on
// assembler/ie64dis.go's DisassembledLine shape (address/mnemonic/operand),
// adapted from a binary hex dump to Piet's source-codel metadata.
type DisassembledLine struct {
	Index    int
	Mnemonic string
	HasDebug bool
	X, Y     int
	DP       dpcc.Direction
	CC       dpcc.Chooser
}

func (l DisassembledLine) String() string {
	if !l.HasDebug {
		return fmt.Sprintf("%4d  %s", l.Index, l.Mnemonic)
	}
	return fmt.Sprintf("%4d  %-20s ; (%d,%d) dp=%s cc=%s", l.Index, l.Mnemonic, l.X, l.Y, l.DP, l.CC)
}

// Disassemble renders every instruction in the program as a disassembly
// line, in the format the piet2bytecode CLI tool prints.
func (p *Program) Disassemble() []DisassembledLine {
	lines := make([]DisassembledLine, len(p.Instructions))
	for i, ins := range p.Instructions {
		mnemonic := ins.Op.String()
		if ins.Op == Push {
			mnemonic = fmt.Sprintf("push %d", ins.Operand)
		}
		lines[i] = DisassembledLine{
			Index: i, Mnemonic: mnemonic, HasDebug: ins.Debug != nil,
			X: ins.X, Y: ins.Y, DP: ins.DP, CC: ins.CC,
		}
	}
	return lines
}

// String renders the full disassembly as text.
func (p *Program) String() string {
	var b strings.Builder
	for _, l := range p.Disassemble() {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}

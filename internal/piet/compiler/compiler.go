// Package compiler walks the Piet grid with the DP/CC state machine from
// the top-left block and emits a flat, linear bytecode program: control
// transfers are resolved statically where possible (ordinary fall-through
// and cycles become explicit back-edges) and left symbolic, via a
// per-instruction side table, where Pointer/Switch make DP/CC
// data-dependent.
//
// Grounded on assembler/ie64asm.go's two-pass walk-and-resolve shape and
// assembler/ie64dis.go's disassembly line format.
package compiler

import (
	"canvasvm/internal/piet/block"
	"canvasvm/internal/piet/bytecode"
	"canvasvm/internal/piet/color"
	"canvasvm/internal/piet/dpcc"
	"canvasvm/internal/piet/grid"
)

// state is the compiler's internal (block, DP, CC) key, mirroring spec.md
// §3's 8-valued DP/CC state but anchored to a concrete block.
type state struct {
	block *block.Block
	dp    dpcc.Direction
	cc    dpcc.Chooser
}

type compiler struct {
	grid   *grid.Grid
	blocks *block.Map
	debug  bytecode.Mode

	program *bytecode.Program
	memo    map[state]int
}

// Compile walks g/blocks from the top-left block with DP=right, CC=left,
// producing an immutable Program. mode selects whether instructions carry
// DebugInfo.
func Compile(g *grid.Grid, blocks *block.Map, mode bytecode.Mode) (*bytecode.Program, error) {
	c := &compiler{
		grid:   g,
		blocks: blocks,
		debug:  mode,
		program: &bytecode.Program{},
		memo:    make(map[state]int),
	}
	start := state{block: blocks.BlockAt(0, 0), dp: dpcc.Right, cc: dpcc.Left}
	entry := c.resolve(start)
	c.program.Meta = bytecode.Metadata{
		EntryPoint:       entry,
		InstructionCount: len(c.program.Instructions),
		Mode:             mode,
	}
	return c.program, nil
}

// resolve returns the instruction index that execution continues at from
// s, memoizing s (and every transparent white/Nop state that leads to it)
// so cycles become back-edges instead of infinite compiler recursion.
func (c *compiler) resolve(s state) int {
	if idx, ok := c.memo[s]; ok {
		return idx
	}

	chain := []state{s}
	seen := map[state]bool{s: true}
	cur := s
	for {
		next, op, newDP, newCC, halted := c.advance(cur.block, cur.dp, cur.cc)
		if halted {
			idx := c.emitHalt()
			c.memoizeChain(chain, idx)
			return idx
		}
		if op != color.OpNop {
			// Memoize before emitting: emitTransition recurses into the
			// successors, and a cycle back to this chain must find idx.
			idx := len(c.program.Instructions)
			c.memoizeChain(chain, idx)
			return c.emitTransition(cur.block, op, next, newDP, newCC)
		}

		cur = state{block: next, dp: newDP, cc: newCC}
		if idx, ok := c.memo[cur]; ok {
			c.memoizeChain(chain, idx)
			return idx
		}
		if seen[cur] {
			// A cycle made entirely of transparent white/Nop transitions
			// never reaches a real op or a blocked exit, so it never
			// naturally halts. There is nothing to loop on in the
			// bytecode (nothing was ever emitted for these transitions),
			// so the compiler synthesizes a Halt rather than leave the
			// entry state unresolved.
			idx := c.emitHalt()
			c.memoizeChain(chain, idx)
			return idx
		}
		seen[cur] = true
		chain = append(chain, cur)
	}
}

func (c *compiler) memoizeChain(chain []state, idx int) {
	for _, s := range chain {
		c.memo[s] = idx
	}
}

func (c *compiler) emitHalt() int {
	idx := len(c.program.Instructions)
	c.program.Instructions = append(c.program.Instructions, bytecode.Instruction{Op: color.OpHalt, Next: idx})
	return idx
}

// emitTransition reserves idx before recursing into Next/Targets so that
// back-edges discovered deeper in the walk can refer to idx even though
// this instruction's own fields aren't filled in until recursion returns.
func (c *compiler) emitTransition(origin *block.Block, op color.Operation, next *block.Block, newDP dpcc.Direction, newCC dpcc.Chooser) int {
	idx := len(c.program.Instructions)
	c.program.Instructions = append(c.program.Instructions, bytecode.Instruction{})

	ins := bytecode.Instruction{Op: op, DP: newDP, CC: newCC}
	if op == color.OpPush {
		ins.Operand = origin.Size()
	}
	if c.debug == bytecode.Debug {
		ins.Debug = &bytecode.DebugInfo{
			BlockSize: origin.Size(),
			PreColor:  origin.Color,
			PostColor: next.Color,
		}
	}
	if x, y, ok := firstCell(next); ok {
		ins.X, ins.Y = x, y
	}

	if op == color.OpPointer || op == color.OpSwitch {
		ins.Targets = make(map[dpcc.State]int, 4)
		for _, post := range postStates(op, newDP, newCC) {
			ins.Targets[post] = c.resolve(state{block: next, dp: post.DP, cc: post.CC})
		}
	} else {
		ins.Next = c.resolve(state{block: next, dp: newDP, cc: newCC})
	}

	c.program.Instructions[idx] = ins
	return idx
}

func firstCell(b *block.Block) (int, int, bool) {
	if len(b.Cells) == 0 {
		return 0, 0, false
	}
	return b.Cells[0].X, b.Cells[0].Y, true
}

// postStates enumerates the bounded set of (DP, CC) pairs a Pointer or
// Switch instruction can produce at runtime: Pointer rotates DP by an
// arbitrary popped value mod 4 (so all four directions are reachable, CC
// unchanged); Switch toggles CC zero or one times (so both choosers are
// reachable, DP unchanged).
func postStates(op color.Operation, dp dpcc.Direction, cc dpcc.Chooser) []dpcc.State {
	if op == color.OpPointer {
		states := make([]dpcc.State, 4)
		for d := dpcc.Direction(0); d < 4; d++ {
			states[d] = dpcc.State{DP: d, CC: cc}
		}
		return states
	}
	return []dpcc.State{{DP: dp, CC: dpcc.Left}, {DP: dp, CC: dpcc.Right}}
}

// advance implements spec.md §4.4: pick b's exit corner under (dp, cc),
// step into the grid, and resolve rules 2, 4 and 5. It returns the next
// block, the operation executing this transition (OpNop for a transparent
// white-corridor pass-through), and the DP/CC in effect once the
// transition completes (unchanged except when rule 4 or 5's retries fire).
func (c *compiler) advance(b *block.Block, dp dpcc.Direction, cc dpcc.Chooser) (next *block.Block, op color.Operation, newDP dpcc.Direction, newCC dpcc.Chooser, halted bool) {
	curDP, curCC := dp, cc
	for attempt := 0; ; attempt++ {
		exit := b.Extreme(curDP, curCC)
		dx, dy := curDP.Delta()
		x, y := exit.X+dx, exit.Y+dy
		if c.grid.InBounds(x, y) && !c.grid.At(x, y).IsBlack() {
			return c.enterFrom(b, x, y, curDP, curCC)
		}
		if attempt >= dpcc.MaxRetries {
			return nil, 0, curDP, curCC, true
		}
		retried := dpcc.State{DP: curDP, CC: curCC}.Retry(attempt)
		curDP, curCC = retried.DP, retried.CC
	}
}

// enterFrom handles the codel at (x, y), the first in-bounds non-black
// codel reached when leaving b: either it's chromatic (rule 2, a direct
// transition) or white (rule 4, slide until a non-white codel or a
// blocked exit that must retry).
func (c *compiler) enterFrom(b *block.Block, x, y int, dp dpcc.Direction, cc dpcc.Chooser) (next *block.Block, op color.Operation, newDP dpcc.Direction, newCC dpcc.Chooser, halted bool) {
	col := c.grid.At(x, y)
	if !col.IsWhite() {
		return c.blocks.BlockAt(x, y), color.OpBetween(b.Color, col), dp, cc, false
	}

	curDP, curCC := dp, cc
	cx, cy := x, y
	for attempt := 0; ; {
		dx, dy := curDP.Delta()
		nx, ny := cx+dx, cy+dy
		if !c.grid.InBounds(nx, ny) || c.grid.At(nx, ny).IsBlack() {
			if attempt >= dpcc.MaxRetries {
				return nil, 0, curDP, curCC, true
			}
			attempt++
			curDP = curDP.Clockwise()
			curCC = curCC.Toggle()
			continue
		}
		if c.grid.At(nx, ny).IsWhite() {
			cx, cy = nx, ny
			continue
		}
		return c.blocks.BlockAt(nx, ny), color.OpNop, curDP, curCC, false
	}
}

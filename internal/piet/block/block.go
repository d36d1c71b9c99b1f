// Package block flood-fills the codel grid into maximal 4-connected
// same-color regions and precomputes, for each block, the exit codel
// reached by every (DP, CC) combination — the only structure the DP/CC
// state machine needs to take a block exit in O(1).
package block

import (
	"canvasvm/internal/piet/color"
	"canvasvm/internal/piet/dpcc"
	"canvasvm/internal/piet/grid"
)

// Point is a codel coordinate.
type Point struct{ X, Y int }

// Block is a maximal 4-connected region of same-color codels.
type Block struct {
	Color   color.Color
	Cells   []Point
	minX, minY, maxX, maxY int

	// extreme[dp][cc] is the exit codel for that (DP, CC) pair. Populated
	// for every block, including White and Black, though the state
	// machine only consults it for chromatic blocks (white/black use
	// their own slide/retry rules, spec.md §4.4).
	extreme [4][2]Point
}

// Size is the codel count of the block (the Push operand).
func (b *Block) Size() int { return len(b.Cells) }

// Bounds returns the block's bounding box, inclusive.
func (b *Block) Bounds() (minX, minY, maxX, maxY int) {
	return b.minX, b.minY, b.maxX, b.maxY
}

// Extreme returns the exit codel for the given (DP, CC) pair: the cell
// farthest along DP, then farthest along the CC-relative perpendicular.
func (b *Block) Extreme(dp dpcc.Direction, cc dpcc.Chooser) Point {
	return b.extreme[dp][cc]
}

// Map indexes every block by the cell that belongs to it.
type Map struct {
	Grid   *grid.Grid
	blocks []*Block
	owner  []int // row-major, index into blocks, -1 if ungridded (never happens)
}

// BlockAt returns the block containing (x, y).
func (m *Map) BlockAt(x, y int) *Block {
	return m.blocks[m.owner[y*m.Grid.Width+x]]
}

// Build flood-fills g into a Map of blocks.
func Build(g *grid.Grid) *Map {
	m := &Map{Grid: g, owner: make([]int, g.Width*g.Height)}
	for i := range m.owner {
		m.owner[i] = -1
	}

	var stack []Point
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if m.owner[y*g.Width+x] != -1 {
				continue
			}
			c := g.At(x, y)
			id := len(m.blocks)
			b := &Block{Color: c, minX: x, minY: y, maxX: x, maxY: y}

			stack = stack[:0]
			stack = append(stack, Point{x, y})
			m.owner[y*g.Width+x] = id
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				b.Cells = append(b.Cells, p)
				if p.X < b.minX {
					b.minX = p.X
				}
				if p.Y < b.minY {
					b.minY = p.Y
				}
				if p.X > b.maxX {
					b.maxX = p.X
				}
				if p.Y > b.maxY {
					b.maxY = p.Y
				}
				for _, n := range neighbors(p) {
					if !g.InBounds(n.X, n.Y) {
						continue
					}
					idx := n.Y*g.Width + n.X
					if m.owner[idx] != -1 {
						continue
					}
					if g.At(n.X, n.Y) != c {
						continue
					}
					m.owner[idx] = id
					stack = append(stack, n)
				}
			}
			computeExtremes(b)
			m.blocks = append(m.blocks, b)
		}
	}
	return m
}

func neighbors(p Point) [4]Point {
	return [4]Point{
		{p.X + 1, p.Y}, {p.X - 1, p.Y}, {p.X, p.Y + 1}, {p.X, p.Y - 1},
	}
}

// computeExtremes fills b.extreme for every (DP, CC) pair: among cells
// maximally advanced along DP, pick the one maximally advanced along the
// CC-relative perpendicular of DP.
func computeExtremes(b *Block) {
	for dp := dpcc.Direction(0); dp < 4; dp++ {
		best := farthestAlong(b.Cells, dp)
		for _, cc := range [2]dpcc.Chooser{dpcc.Left, dpcc.Right} {
			perp := dp.Perpendicular(cc)
			b.extreme[dp][cc] = farthestAlong(best, perp)[0]
		}
	}
}

// farthestAlong returns the subset of cells maximally advanced in
// direction d.
func farthestAlong(cells []Point, d dpcc.Direction) []Point {
	var best []Point
	bestVal := 0
	for i, p := range cells {
		v := advance(p, d)
		if i == 0 || v > bestVal {
			bestVal = v
			best = best[:0]
			best = append(best, p)
		} else if v == bestVal {
			best = append(best, p)
		}
	}
	return best
}

// advance returns a scalar that increases as p moves further along d, so
// that the maximum over a set of cells is "farthest along d".
func advance(p Point, d dpcc.Direction) int {
	switch d {
	case dpcc.Right:
		return p.X
	case dpcc.Down:
		return p.Y
	case dpcc.Left:
		return -p.X
	case dpcc.Up:
		return -p.Y
	}
	return 0
}

// Package canvas renders a running Piet program in an Ebiten window: the
// codel grid scaled up by a whole number of pixels per codel, the codel at
// the current instruction's recorded position highlighted, and a strip of
// program output underneath.
//
// Grounded on video_backend_ebiten.go's EbitenOutput (frame buffer +
// mutex, Update/Draw/Layout as the ebiten.Game contract, F-key handling
// via inpututil) and debug_overlay.go's idea of drawing debug state over
// the machine's own picture.
package canvas

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"canvasvm/internal/piet/debugger"
	"canvasvm/internal/piet/grid"
	"canvasvm/internal/piet/vm"
)

const (
	outputStripHeight = 64
	minCodelPixels     = 4
)

// Window is an ebiten.Game that visualizes a grid and a debugger stepping
// through the program compiled from it.
type Window struct {
	mu sync.Mutex

	grid  *grid.Grid
	dbg   *debugger.Debugger
	scale int

	paused      bool
	stepsPerTick int

	outputCache string
}

// New builds a Window over g, driving execution through dbg. scale is the
// number of screen pixels per codel (minimum 4).
func New(g *grid.Grid, dbg *debugger.Debugger, scale int) *Window {
	if scale < minCodelPixels {
		scale = minCodelPixels
	}
	return &Window{grid: g, dbg: dbg, scale: scale, stepsPerTick: 1}
}

// Run opens the window and blocks until it is closed.
func (w *Window) Run(title string) error {
	width, height := w.grid.Width*w.scale, w.grid.Height*w.scale+outputStripHeight
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizable(true)
	return ebiten.RunGame(w)
}

// Update advances the simulation by zero or more steps depending on
// keyboard input: space single-steps, R toggles free-run, B steps back.
func (w *Window) Update() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		w.dbg.Step()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		w.paused = !w.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyB) {
		w.dbg.StepBack()
	}
	if !w.paused {
		for i := 0; i < w.stepsPerTick; i++ {
			if w.dbg.Machine().Halted() {
				break
			}
			if w.dbg.Machine().NeedsInput() != vm.NeedsNone && !w.dbg.Machine().HasInput() {
				break
			}
			w.dbg.Step()
		}
	}
	return nil
}

// Draw renders the codel grid, highlights the single codel at the current
// instruction's recorded position (not the whole block; nothing is
// highlighted once halted), and draws the output strip.
func (w *Window) Draw(screen *ebiten.Image) {
	w.mu.Lock()
	snap := w.dbg.Machine().Snapshot()
	out := w.dbg.Machine().DrainOutputString()
	w.mu.Unlock()

	for y := 0; y < w.grid.Height; y++ {
		for x := 0; x < w.grid.Width; x++ {
			c := w.grid.At(x, y)
			rgb := c.ToRGB()
			ebitenutil.DrawRect(screen,
				float64(x*w.scale), float64(y*w.scale),
				float64(w.scale), float64(w.scale),
				color.RGBA{rgb.R, rgb.G, rgb.B, 0xFF})
		}
	}

	if !snap.Halted {
		ebitenutil.DrawRect(screen,
			float64(snap.PositionX*w.scale), float64(snap.PositionY*w.scale),
			float64(w.scale), float64(w.scale),
			color.RGBA{0xFF, 0xFF, 0xFF, 0x80})
	}

	stripY := w.grid.Height * w.scale
	ebitenutil.DrawRect(screen, 0, float64(stripY), float64(w.grid.Width*w.scale), outputStripHeight, color.Black)
	status := fmt.Sprintf("ip=%d steps=%d dp=%s cc=%s halted=%v", snap.InstructionIndex, snap.Steps, snap.Direction, snap.CodelChooser, snap.Halted)
	ebitenutil.DebugPrintAt(screen, status, 4, stripY+4)
	ebitenutil.DebugPrintAt(screen, truncate(out, 80), 4, stripY+24)
}

// Layout reports the fixed logical screen size.
func (w *Window) Layout(_, _ int) (int, int) {
	return w.grid.Width * w.scale, w.grid.Height*w.scale + outputStripHeight
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

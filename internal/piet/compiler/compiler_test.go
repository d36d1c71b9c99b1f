package compiler

import (
	"reflect"
	"testing"

	"canvasvm/internal/piet/block"
	"canvasvm/internal/piet/bytecode"
	"canvasvm/internal/piet/color"
	"canvasvm/internal/piet/dpcc"
	"canvasvm/internal/piet/grid"
)

func gridOfTwo(t *testing.T, left, right color.RGB) *grid.Grid {
	t.Helper()
	rgba := make([]byte, 2*1*4)
	rgba[0], rgba[1], rgba[2], rgba[3] = left.R, left.G, left.B, 0xFF
	rgba[4], rgba[5], rgba[6], rgba[7] = right.R, right.G, right.B, 0xFF
	g, err := grid.Build(rgba, 2, 1, 1)
	if err != nil {
		t.Fatalf("grid.Build: %v", err)
	}
	return g
}

func rgbFor(h color.Hue, l color.Lightness) color.RGB {
	return color.Color{Hue: h, Lightness: l}.ToRGB()
}

func TestCompileIsDeterministic(t *testing.T) {
	g := gridOfTwo(t, rgbFor(color.Red, color.Normal), rgbFor(color.Yellow, color.Normal))
	p1, err := Compile(g, block.Build(g), bytecode.Release)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p2, err := Compile(g, block.Build(g), bytecode.Release)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !reflect.DeepEqual(p1, p2) {
		t.Error("compiling the same grid twice produced different programs")
	}
}

func TestCompileEmitsAddForAdjacentRedYellow(t *testing.T) {
	g := gridOfTwo(t, rgbFor(color.Red, color.Normal), rgbFor(color.Yellow, color.Normal))
	p, err := Compile(g, block.Build(g), bytecode.Release)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	entry := p.Instructions[p.Meta.EntryPoint]
	if entry.Op != color.OpAdd {
		t.Errorf("entry op = %v, want Add", entry.Op)
	}
	if entry.DP != dpcc.Right || entry.CC != dpcc.Left {
		t.Errorf("entry (DP,CC) = (%v,%v), want (right,left)", entry.DP, entry.CC)
	}
}

func TestCompilePointerInstructionTargetsAllFourDirections(t *testing.T) {
	g := gridOfTwo(t, rgbFor(color.Red, color.Light), rgbFor(color.Cyan, color.Normal))
	p, err := Compile(g, block.Build(g), bytecode.Release)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	entry := p.Instructions[p.Meta.EntryPoint]
	if entry.Op != color.OpPointer {
		t.Fatalf("entry op = %v, want Pointer", entry.Op)
	}
	if len(entry.Targets) != 4 {
		t.Fatalf("Pointer Targets has %d entries, want 4", len(entry.Targets))
	}
	for dp := dpcc.Direction(0); dp < 4; dp++ {
		idx, ok := entry.Targets[dpcc.State{DP: dp, CC: dpcc.Left}]
		if !ok {
			t.Errorf("missing Targets entry for DP=%v CC=left", dp)
			continue
		}
		if idx < 0 || idx >= len(p.Instructions) {
			t.Errorf("Targets[%v,left] = %d out of range", dp, idx)
		}
	}
}

func TestCompileSwitchInstructionTargetsBothChoosers(t *testing.T) {
	g := gridOfTwo(t, rgbFor(color.Red, color.Light), rgbFor(color.Cyan, color.Dark))
	p, err := Compile(g, block.Build(g), bytecode.Release)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	entry := p.Instructions[p.Meta.EntryPoint]
	if entry.Op != color.OpSwitch {
		t.Fatalf("entry op = %v, want Switch", entry.Op)
	}
	if len(entry.Targets) != 2 {
		t.Fatalf("Switch Targets has %d entries, want 2", len(entry.Targets))
	}
	for _, cc := range []dpcc.Chooser{dpcc.Left, dpcc.Right} {
		idx, ok := entry.Targets[dpcc.State{DP: dpcc.Right, CC: cc}]
		if !ok {
			t.Errorf("missing Targets entry for DP=right CC=%v", cc)
			continue
		}
		if idx < 0 || idx >= len(p.Instructions) {
			t.Errorf("Targets[right,%v] = %d out of range", cc, idx)
		}
	}
}

func TestCompileDebugModeAttachesDebugInfo(t *testing.T) {
	g := gridOfTwo(t, rgbFor(color.Red, color.Normal), rgbFor(color.Yellow, color.Normal))
	p, err := Compile(g, block.Build(g), bytecode.Debug)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	entry := p.Instructions[p.Meta.EntryPoint]
	if entry.Debug == nil {
		t.Fatal("Debug mode should attach DebugInfo")
	}
	if entry.Debug.PreColor.String() != "red" || entry.Debug.PostColor.String() != "yellow" {
		t.Errorf("DebugInfo colors = (%v,%v), want (red,yellow)", entry.Debug.PreColor, entry.Debug.PostColor)
	}
}

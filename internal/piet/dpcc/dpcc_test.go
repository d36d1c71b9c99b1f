package dpcc

import "testing"

func TestDirectionClockwiseCycle(t *testing.T) {
	d := Right
	seen := []Direction{d}
	for i := 0; i < 3; i++ {
		d = d.Clockwise()
		seen = append(seen, d)
	}
	want := []Direction{Right, Down, Left, Up}
	for i, w := range want {
		if seen[i] != w {
			t.Errorf("step %d: got %v, want %v", i, seen[i], w)
		}
	}
	if d.Clockwise() != Right {
		t.Error("four clockwise rotations should return to the start")
	}
}

func TestChooserToggleIsInvolution(t *testing.T) {
	if Left.Toggle() != Right || Right.Toggle() != Left {
		t.Fatal("Toggle should swap Left and Right")
	}
	if Left.Toggle().Toggle() != Left {
		t.Error("Toggle twice should be identity")
	}
}

func TestPerpendicular(t *testing.T) {
	cases := []struct {
		dp   Direction
		cc   Chooser
		want Direction
	}{
		{Right, Left, Up},
		{Right, Right, Down},
		{Down, Left, Right},
		{Down, Right, Left},
	}
	for _, c := range cases {
		if got := c.dp.Perpendicular(c.cc); got != c.want {
			t.Errorf("%v.Perpendicular(%v) = %v, want %v", c.dp, c.cc, got, c.want)
		}
	}
}

func TestRetryAlternatesToggleAndRotate(t *testing.T) {
	s := State{DP: Right, CC: Left}
	s1 := s.Retry(0) // toggle
	if s1.DP != Right || s1.CC != Right {
		t.Errorf("Retry(0) = %+v, want DP unchanged, CC toggled", s1)
	}
	s2 := s1.Retry(1) // rotate
	if s2.DP != Down || s2.CC != Right {
		t.Errorf("Retry(1) = %+v, want DP rotated, CC unchanged", s2)
	}
}

func TestRetryExhaustionBound(t *testing.T) {
	if MaxRetries != 8 {
		t.Errorf("MaxRetries = %d, want 8", MaxRetries)
	}
}

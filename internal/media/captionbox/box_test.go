package captionbox_test

import (
	"image"
	"testing"

	"mediabot/internal/media/captionbox"
)

func metricsFor(widths []int, lineHeight, ascent int) captionbox.TextMetrics {
	return captionbox.TextMetrics{LineWidths: widths, LineHeight: lineHeight, Ascent: ascent}
}

func TestResolveKeepsLargeEnoughBox(t *testing.T) {
	spec := captionbox.Spec{Left: 0.1, Top: 0.1, Right: 0.9, Bottom: 0.5, Padding: 10, Position: captionbox.PositionTop}
	layout, err := captionbox.Resolve(spec, 1000, 1000, metricsFor([]int{100}, 20, 16))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := image.Rect(100, 100, 900, 500)
	if layout.Box != want {
		t.Fatalf("box = %v, want declared %v", layout.Box, want)
	}
	if layout.TextTop != 110 {
		t.Fatalf("top-anchored text top = %d, want boxTop+padding = 110", layout.TextTop)
	}
	// Horizontal centering within the box.
	if layout.LineLefts[0] != 100+(800-100)/2 {
		t.Fatalf("line left = %d, want centered 450", layout.LineLefts[0])
	}
}

func TestResolveExpandsAroundCenter(t *testing.T) {
	// Declared box: (400,400)-(500,450) on a 1000x1000 image, as the chat default.
	spec := captionbox.Spec{Left: 0.4, Top: 0.4, Right: 0.5, Bottom: 0.45, Padding: 10, Position: captionbox.PositionCenter}
	layout, err := captionbox.Resolve(spec, 1000, 1000, metricsFor([]int{300}, 40, 32))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Needs 320x60; centered expansion keeps the center at (450, 425).
	want := image.Rect(290, 395, 610, 455)
	if layout.Box != want {
		t.Fatalf("box = %v, want %v", layout.Box, want)
	}
	// Exactly padded: free space is zero, so centered == top anchored.
	if layout.TextTop != layout.Box.Min.Y+10 {
		t.Fatalf("text top = %d, want %d", layout.TextTop, layout.Box.Min.Y+10)
	}
}

func TestResolveNeverShrinks(t *testing.T) {
	spec := captionbox.Spec{Left: 0, Top: 0, Right: 1, Bottom: 1, Padding: 5, Position: captionbox.PositionTop}
	layout, err := captionbox.Resolve(spec, 640, 480, metricsFor([]int{10}, 12, 10))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if layout.Box != image.Rect(0, 0, 640, 480) {
		t.Fatalf("box shrank to %v", layout.Box)
	}
}

func TestResolveClampsBackInsideImage(t *testing.T) {
	// A box hugging the right edge that must expand gets shifted left,
	// not pushed out of frame.
	spec := captionbox.Spec{Left: 0.9, Top: 0.9, Right: 0.95, Bottom: 0.95, Padding: 10, Position: captionbox.PositionBottom}
	layout, err := captionbox.Resolve(spec, 400, 400, metricsFor([]int{200}, 30, 24))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if layout.Box.Max.X > 400 || layout.Box.Max.Y > 400 || layout.Box.Min.X < 0 || layout.Box.Min.Y < 0 {
		t.Fatalf("box %v escapes the 400x400 image", layout.Box)
	}
	if layout.Box.Dx() < 220 || layout.Box.Dy() < 50 {
		t.Fatalf("box %v lost its required padded size", layout.Box)
	}
}

func TestResolveCapsOversizedTextAtImageBounds(t *testing.T) {
	spec := captionbox.Spec{Left: 0.4, Top: 0.4, Right: 0.6, Bottom: 0.6, Padding: 10, Position: captionbox.PositionCenter}
	layout, err := captionbox.Resolve(spec, 300, 200, metricsFor([]int{500}, 300, 240))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if layout.Box != image.Rect(0, 0, 300, 200) {
		t.Fatalf("oversized caption box = %v, want full image", layout.Box)
	}
}

func TestVerticalPositionModes(t *testing.T) {
	spec := captionbox.Spec{Left: 0, Top: 0, Right: 1, Bottom: 1, Padding: 10}
	metrics := metricsFor([]int{50}, 20, 16)
	// Box 0..200 high, inner 10..190, text 20 high, free 160.
	cases := []struct {
		position string
		wantTop  int
	}{
		{position: "top", wantTop: 10},
		{position: "bottom", wantTop: 170},
		{position: "center", wantTop: 90},
		{position: "25", wantTop: 50},
		{position: "25%", wantTop: 50},
	}
	for _, tc := range cases {
		spec.Position = tc.position
		layout, err := captionbox.Resolve(spec, 100, 200, metrics)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tc.position, err)
		}
		if layout.TextTop != tc.wantTop {
			t.Errorf("position %q: text top = %d, want %d", tc.position, layout.TextTop, tc.wantTop)
		}
	}

	spec.Position = "sideways"
	if _, err := captionbox.Resolve(spec, 100, 200, metrics); err == nil {
		t.Fatal("expected error for unknown position mode")
	}
}

func TestBaseline(t *testing.T) {
	layout := captionbox.Layout{TextTop: 100, LineHeight: 20, Ascent: 16}
	if got := layout.Baseline(0); got != 116 {
		t.Fatalf("Baseline(0) = %d, want 116", got)
	}
	if got := layout.Baseline(2); got != 156 {
		t.Fatalf("Baseline(2) = %d, want 156", got)
	}
}

func TestFromVertices(t *testing.T) {
	spec, err := captionbox.FromVertices([][2]float64{{0.4, 0.4}, {0.5, 0.4}, {0.5, 0.45}, {0.4, 0.45}}, 10, "center")
	if err != nil {
		t.Fatalf("FromVertices: %v", err)
	}
	if spec.Left != 0.4 || spec.Right != 0.5 || spec.Top != 0.4 || spec.Bottom != 0.45 {
		t.Fatalf("unexpected spec %+v", spec)
	}
	if _, err := captionbox.FromVertices([][2]float64{{0, 0}, {1, 0}, {1, 1}}, 10, "center"); err == nil {
		t.Fatal("expected error for missing vertex")
	}
	if _, err := captionbox.FromVertices([][2]float64{{0.5, 0.5}, {0.5, 0.5}, {0.5, 0.5}, {0.5, 0.5}}, 10, "center"); err == nil {
		t.Fatal("expected error for degenerate box")
	}
}

func TestSplitLines(t *testing.T) {
	lines := captionbox.SplitLines("one\r\ntwo\n\nthree\n\n")
	want := []string{"one", "two", "", "three"}
	if len(lines) != len(want) {
		t.Fatalf("SplitLines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("SplitLines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

package captionbox_test

import (
	"image/color"
	"testing"

	"mediabot/internal/media/captionbox"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		value string
		want  color.NRGBA
	}{
		{"white", color.NRGBA{255, 255, 255, 255}},
		{" Black ", color.NRGBA{0, 0, 0, 255}},
		{"#ff0000", color.NRGBA{255, 0, 0, 255}},
		{"#f00", color.NRGBA{255, 0, 0, 255}},
		{"#00ff0080", color.NRGBA{0, 255, 0, 128}},
	}
	for _, tt := range tests {
		got, err := captionbox.ParseColor(tt.value)
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %+v, want %+v", tt.value, got, tt.want)
		}
	}

	for _, bad := range []string{"chartreuse-ish", "#12345", "#zzzzzz", ""} {
		if _, err := captionbox.ParseColor(bad); err == nil {
			t.Errorf("ParseColor(%q) succeeded, want error", bad)
		}
	}
}

func TestWithOpacity(t *testing.T) {
	base := color.NRGBA{0, 0, 0, 255}
	if got := captionbox.WithOpacity(base, 0.5); got.A != 128 {
		t.Fatalf("alpha = %d, want 128", got.A)
	}
	if got := captionbox.WithOpacity(base, 2); got.A != 255 {
		t.Fatalf("alpha clamped high = %d", got.A)
	}
	if got := captionbox.WithOpacity(base, -1); got.A != 0 {
		t.Fatalf("alpha clamped low = %d", got.A)
	}
}

func TestSpecFromBox(t *testing.T) {
	spec, err := captionbox.SpecFromBox([]float64{0.4, 0.4, 0.5, 0.45}, 10, "center")
	if err != nil {
		t.Fatalf("SpecFromBox: %v", err)
	}
	if spec.Left != 0.4 || spec.Top != 0.4 || spec.Right != 0.5 || spec.Bottom != 0.45 {
		t.Fatalf("spec = %+v", spec)
	}

	fromVertices, err := captionbox.SpecFromBox([]float64{0.4, 0.4, 0.5, 0.4, 0.5, 0.45, 0.4, 0.45}, 10, "center")
	if err != nil {
		t.Fatalf("SpecFromBox vertices: %v", err)
	}
	if fromVertices != spec {
		t.Fatalf("vertex form %+v != rectangle form %+v", fromVertices, spec)
	}

	if _, err := captionbox.SpecFromBox([]float64{0.1, 0.2}, 0, ""); err == nil {
		t.Fatal("expected error for wrong length")
	}
	if _, err := captionbox.SpecFromBox([]float64{0.5, 0.4, 0.4, 0.45}, 0, ""); err == nil {
		t.Fatal("expected error for inverted rectangle")
	}
}

package captionbox

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var namedColors = map[string]color.NRGBA{
	"black":   {0, 0, 0, 255},
	"white":   {255, 255, 255, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 128, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"cyan":    {0, 255, 255, 255},
	"magenta": {255, 0, 255, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
	"orange":  {255, 165, 0, 255},
}

// ParseColor reads a color name or a #RGB/#RRGGBB/#RRGGBBAA hex value. The
// names cover the ffmpeg drawbox palette subset the config accepts, so the
// same config value works for both pixel rendering and filter strings.
func ParseColor(value string) (color.NRGBA, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if c, ok := namedColors[normalized]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(normalized, "#")
	if hex == normalized {
		return color.NRGBA{}, fmt.Errorf("unknown color %q", value)
	}
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}) + "ff"
	case 6:
		hex += "ff"
	case 8:
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", value)
	}
	raw, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", value)
	}
	return color.NRGBA{
		R: uint8(raw >> 24),
		G: uint8(raw >> 16),
		B: uint8(raw >> 8),
		A: uint8(raw),
	}, nil
}

// WithOpacity scales the color's alpha by opacity in [0, 1].
func WithOpacity(c color.NRGBA, opacity float64) color.NRGBA {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	c.A = uint8(float64(c.A)*opacity + 0.5)
	return c
}

// SpecFromBox builds a Spec from a configured box slice: either 4 values
// (left, top, right, bottom) or 8 values (four x,y vertex pairs).
func SpecFromBox(box []float64, padding int, position string) (Spec, error) {
	switch len(box) {
	case 4:
		spec := Spec{Left: box[0], Top: box[1], Right: box[2], Bottom: box[3], Padding: padding, Position: position}
		return spec, spec.check()
	case 8:
		vertices := [][2]float64{
			{box[0], box[1]},
			{box[2], box[3]},
			{box[4], box[5]},
			{box[6], box[7]},
		}
		return FromVertices(vertices, padding, position)
	default:
		return Spec{}, fmt.Errorf("caption box needs 4 or 8 values, got %d", len(box))
	}
}

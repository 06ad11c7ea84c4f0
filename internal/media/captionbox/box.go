package captionbox

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Position modes for vertical text placement inside the box.
const (
	PositionTop    = "top"
	PositionBottom = "bottom"
	PositionCenter = "center"
)

// Spec describes a requested caption box in image-relative fractions.
type Spec struct {
	// Vertices of the box as fractions of the image width and height.
	// Left < Right and Top < Bottom, all within [0, 1].
	Left   float64
	Top    float64
	Right  float64
	Bottom float64

	// Padding in pixels between the box edge and the text on every side.
	Padding int

	// Position is top, bottom, center, or an integer percent ("25" or
	// "25%") of the free vertical space above the text.
	Position string
}

// FromVertices builds a Spec from the four fractional corner points the
// chat grammar uses, taking the bounding rectangle of whatever arrives.
func FromVertices(vertices [][2]float64, padding int, position string) (Spec, error) {
	if len(vertices) != 4 {
		return Spec{}, fmt.Errorf("caption box needs 4 vertices, got %d", len(vertices))
	}
	spec := Spec{Left: 1, Top: 1, Padding: padding, Position: position}
	for _, v := range vertices {
		spec.Left = minF(spec.Left, v[0])
		spec.Right = maxF(spec.Right, v[0])
		spec.Top = minF(spec.Top, v[1])
		spec.Bottom = maxF(spec.Bottom, v[1])
	}
	return spec, spec.check()
}

func (s Spec) check() error {
	for _, v := range []float64{s.Left, s.Top, s.Right, s.Bottom} {
		if v < 0 || v > 1 {
			return errors.New("caption box fractions must be within [0, 1]")
		}
	}
	if s.Left >= s.Right || s.Top >= s.Bottom {
		return errors.New("caption box must have positive width and height")
	}
	if s.Padding < 0 {
		return errors.New("caption padding must not be negative")
	}
	return nil
}

// TextMetrics carries measured text dimensions in pixels.
type TextMetrics struct {
	LineWidths []int
	LineHeight int
	Ascent     int
}

// MaxWidth returns the widest line.
func (m TextMetrics) MaxWidth() int {
	widest := 0
	for _, w := range m.LineWidths {
		if w > widest {
			widest = w
		}
	}
	return widest
}

// Height returns the total text block height.
func (m TextMetrics) Height() int {
	return m.LineHeight * len(m.LineWidths)
}

// Layout is the resolved pixel geometry for one caption.
type Layout struct {
	// Box is the background rectangle in image coordinates.
	Box image.Rectangle
	// TextTop is the y coordinate of the first line's top edge.
	TextTop int
	// LineLefts holds the x coordinate of each line's left edge.
	LineLefts []int
	// LineHeight is the vertical advance between lines.
	LineHeight int
	// Ascent is the baseline offset from a line's top edge.
	Ascent int
}

// Baseline returns the baseline y for line i.
func (l Layout) Baseline(i int) int {
	return l.TextTop + i*l.LineHeight + l.Ascent
}

// Resolve turns a fractional spec and measured text into pixel geometry.
// The box grows symmetrically about its center until the padded text fits
// (it never shrinks), then is shifted back inside the image, capped at the
// image bounds when the padded text is wider or taller than the image.
func Resolve(spec Spec, imageWidth, imageHeight int, metrics TextMetrics) (Layout, error) {
	if err := spec.check(); err != nil {
		return Layout{}, err
	}
	if imageWidth <= 0 || imageHeight <= 0 {
		return Layout{}, errors.New("image dimensions must be positive")
	}
	if len(metrics.LineWidths) == 0 || metrics.LineHeight <= 0 {
		return Layout{}, errors.New("caption text measures to nothing")
	}

	box := image.Rect(
		roundF(spec.Left*float64(imageWidth)),
		roundF(spec.Top*float64(imageHeight)),
		roundF(spec.Right*float64(imageWidth)),
		roundF(spec.Bottom*float64(imageHeight)),
	)

	needW := metrics.MaxWidth() + 2*spec.Padding
	needH := metrics.Height() + 2*spec.Padding
	box = expand(box, needW, needH)
	box = clampToImage(box, imageWidth, imageHeight)

	textTop, err := verticalAnchor(spec, box, metrics)
	if err != nil {
		return Layout{}, err
	}

	lineLefts := make([]int, len(metrics.LineWidths))
	for i, w := range metrics.LineWidths {
		lineLefts[i] = box.Min.X + (box.Dx()-w)/2
	}

	return Layout{
		Box:        box,
		TextTop:    textTop,
		LineLefts:  lineLefts,
		LineHeight: metrics.LineHeight,
		Ascent:     metrics.Ascent,
	}, nil
}

// expand grows the box symmetrically about its center to at least needW by
// needH, keeping the declared size when it is already large enough.
func expand(box image.Rectangle, needW, needH int) image.Rectangle {
	if grow := needW - box.Dx(); grow > 0 {
		left := grow / 2
		box.Min.X -= left
		box.Max.X += grow - left
	}
	if grow := needH - box.Dy(); grow > 0 {
		top := grow / 2
		box.Min.Y -= top
		box.Max.Y += grow - top
	}
	return box
}

// clampToImage shifts the box back inside the image, truncating to the image
// bounds when the box is larger than the image on an axis.
func clampToImage(box image.Rectangle, imageWidth, imageHeight int) image.Rectangle {
	if box.Dx() >= imageWidth {
		box.Min.X, box.Max.X = 0, imageWidth
	} else {
		if box.Min.X < 0 {
			box = box.Add(image.Pt(-box.Min.X, 0))
		}
		if box.Max.X > imageWidth {
			box = box.Add(image.Pt(imageWidth-box.Max.X, 0))
		}
	}
	if box.Dy() >= imageHeight {
		box.Min.Y, box.Max.Y = 0, imageHeight
	} else {
		if box.Min.Y < 0 {
			box = box.Add(image.Pt(0, -box.Min.Y))
		}
		if box.Max.Y > imageHeight {
			box = box.Add(image.Pt(0, imageHeight-box.Max.Y))
		}
	}
	return box
}

// verticalAnchor places the text block inside the padded box. The free space
// is whatever the padded box has beyond the text height; percent mode puts
// that fraction of it above the text.
func verticalAnchor(spec Spec, box image.Rectangle, metrics TextMetrics) (int, error) {
	innerTop := box.Min.Y + spec.Padding
	free := box.Dy() - 2*spec.Padding - metrics.Height()
	if free < 0 {
		free = 0
	}
	switch strings.ToLower(strings.TrimSpace(spec.Position)) {
	case PositionTop, "":
		return innerTop, nil
	case PositionBottom:
		return innerTop + free, nil
	case PositionCenter:
		return innerTop + free/2, nil
	default:
		raw := strings.TrimSuffix(strings.TrimSpace(spec.Position), "%")
		pct, err := strconv.Atoi(raw)
		if err != nil || pct < 0 || pct > 100 {
			return 0, fmt.Errorf("caption position must be top, bottom, center, or a percent, got %q", spec.Position)
		}
		return innerTop + free*pct/100, nil
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func roundF(v float64) int {
	if v < 0 {
		return -roundF(-v)
	}
	return int(v + 0.5)
}

package captionbox

import (
	"strings"

	"golang.org/x/image/font"
)

// SplitLines breaks caption text into lines, dropping trailing blank lines
// but keeping intentional interior blanks.
func SplitLines(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Measure computes the pixel metrics of the lines under the given face.
func Measure(face font.Face, lines []string) TextMetrics {
	faceMetrics := face.Metrics()
	metrics := TextMetrics{
		LineWidths: make([]int, len(lines)),
		LineHeight: faceMetrics.Height.Ceil(),
		Ascent:     faceMetrics.Ascent.Ceil(),
	}
	for i, line := range lines {
		metrics.LineWidths[i] = font.MeasureString(face, line).Ceil()
	}
	return metrics
}

// Package captionbox computes caption geometry: a background rectangle
// declared as fractional vertices of the image, expanded around its center
// until the padded text fits, clamped back inside the image, and a vertical
// text anchor derived from a position mode. The same geometry feeds both the
// image compositor and the ffmpeg drawbox/drawtext filters.
package captionbox

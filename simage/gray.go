// Package simage provides the image value types the stereo engine works on:
// single channel frame buffers and the synchronized frame pairs produced by
// a two camera rig.
package simage

import (
	"image"
	"math"
)

// Gray is a single channel image backed by a row-major float32 buffer.
// Intensities are conventionally in [0, 255] but nothing enforces a range;
// rectified images keep fractional values from interpolation.
type Gray struct {
	width  int
	height int
	data   []float32
}

// NewGray returns a zeroed image of the given dimensions.
func NewGray(width, height int) *Gray {
	return &Gray{
		width:  width,
		height: height,
		data:   make([]float32, width*height),
	}
}

// NewGrayFromData wraps an existing row-major buffer. The buffer length must
// be width*height; ownership transfers to the returned image.
func NewGrayFromData(width, height int, data []float32) *Gray {
	if len(data) != width*height {
		panic("simage: buffer length does not match dimensions")
	}
	return &Gray{width: width, height: height, data: data}
}

// Width returns the horizontal dimension in pixels.
func (g *Gray) Width() int {
	return g.width
}

// Height returns the vertical dimension in pixels.
func (g *Gray) Height() int {
	return g.height
}

// Bounds returns the image bounds.
func (g *Gray) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.width, g.height)
}

// In returns whether the given coordinate lies inside the image.
func (g *Gray) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

// GetXY returns the intensity at (x, y).
func (g *Gray) GetXY(x, y int) float32 {
	return g.data[y*g.width+x]
}

// SetXY sets the intensity at (x, y).
func (g *Gray) SetXY(x, y int, v float32) {
	g.data[y*g.width+x] = v
}

// Clone returns a deep copy.
func (g *Gray) Clone() *Gray {
	data := make([]float32, len(g.data))
	copy(data, g.data)
	return &Gray{width: g.width, height: g.height, data: data}
}

// Bilinear samples the image at a fractional coordinate using bilinear
// interpolation. The second return is false when the sample falls outside
// the image; callers fill with their own sentinel rather than wrapping.
func (g *Gray) Bilinear(x, y float64) (float32, bool) {
	if x < 0 || y < 0 || x > float64(g.width-1) || y > float64(g.height-1) {
		return 0, false
	}
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 >= g.width {
		x1 = x0
	}
	if y1 >= g.height {
		y1 = y0
	}
	fx := float32(x - float64(x0))
	fy := float32(y - float64(y0))

	v00 := g.GetXY(x0, y0)
	v10 := g.GetXY(x1, y0)
	v01 := g.GetXY(x0, y1)
	v11 := g.GetXY(x1, y1)

	top := v00 + (v10-v00)*fx
	bottom := v01 + (v11-v01)*fx
	return top + (bottom-top)*fy, true
}

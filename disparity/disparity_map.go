package disparity

import "math"

// invalid is the in-band marker for cells with no usable disparity
// (occlusion, low texture, failed consistency).
var invalid = float32(math.NaN())

// Map is a dense grid of sub-pixel disparities matching the rectified image
// dimensions. Cells are either a value within the configured search range
// or invalid. A Map is never mutated after Match returns it.
type Map struct {
	width  int
	height int
	data   []float32
}

func newMap(width, height int) *Map {
	data := make([]float32, width*height)
	for i := range data {
		data[i] = invalid
	}
	return &Map{width: width, height: height, data: data}
}

// Width returns the horizontal dimension in pixels.
func (m *Map) Width() int {
	return m.width
}

// Height returns the vertical dimension in pixels.
func (m *Map) Height() int {
	return m.height
}

// At returns the disparity at (x, y) and whether the cell is valid.
func (m *Map) At(x, y int) (float64, bool) {
	v := m.data[y*m.width+x]
	if math.IsNaN(float64(v)) {
		return 0, false
	}
	return float64(v), true
}

// ValidCount returns how many cells hold a usable disparity.
func (m *Map) ValidCount() int {
	n := 0
	for _, v := range m.data {
		if !math.IsNaN(float64(v)) {
			n++
		}
	}
	return n
}

func (m *Map) set(x, y int, v float32) {
	m.data[y*m.width+x] = v
}

func (m *Map) markInvalid(x, y int) {
	m.data[y*m.width+x] = invalid
}

// Package project converts disparity maps into metric depth images and 3D
// point clouds, triangulating through the rectified virtual camera.
package project

import "math"

// DepthMap is a dense per pixel depth image in meters, matching the
// rectified image dimensions. Cells without a usable disparity hold a NaN
// sentinel and report as invalid.
type DepthMap struct {
	width  int
	height int
	depths []float32
}

func newDepthMap(width, height int) *DepthMap {
	depths := make([]float32, width*height)
	nan := float32(math.NaN())
	for i := range depths {
		depths[i] = nan
	}
	return &DepthMap{width: width, height: height, depths: depths}
}

// Width returns the horizontal dimension in pixels.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical dimension in pixels.
func (dm *DepthMap) Height() int {
	return dm.height
}

// At returns the depth in meters at (x, y) and whether the cell is valid.
func (dm *DepthMap) At(x, y int) (float64, bool) {
	v := dm.depths[y*dm.width+x]
	if math.IsNaN(float64(v)) {
		return 0, false
	}
	return float64(v), true
}

// ValidCount returns how many cells hold a usable depth.
func (dm *DepthMap) ValidCount() int {
	n := 0
	for _, v := range dm.depths {
		if !math.IsNaN(float64(v)) {
			n++
		}
	}
	return n
}

func (dm *DepthMap) set(x, y int, v float32) {
	dm.depths[y*dm.width+x] = v
}

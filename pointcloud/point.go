// Package pointcloud defines the point cloud the stereo engine emits and a
// PCD writer for it. Clouds come from raster scans of a disparity map, so
// the container is ordered and dense rather than keyed by position.
package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"
)

// NewVector convenience method for creating a vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// Data describes the payload associated with a single point within a PointCloud.
type Data interface {
	// HasColor returns whether or not this point is colored.
	HasColor() bool

	// RGB255 returns, if colored, the RGB components of the color.
	RGB255() (uint8, uint8, uint8)

	// Color returns the native color of the point.
	Color() color.Color

	// HasIntensity returns whether or not this point has an intensity value.
	HasIntensity() bool

	// Intensity returns the intensity value, if it exists.
	Intensity() float64
}

type basicData struct {
	hasColor bool
	c        color.NRGBA

	hasIntensity bool
	intensity    float64
}

// NewBasicData returns a point payload with no color and no intensity.
func NewBasicData() Data {
	return &basicData{}
}

// NewColoredData returns a point payload with the given color.
func NewColoredData(c color.NRGBA) Data {
	return &basicData{hasColor: true, c: c}
}

// NewIntensityData returns a point payload with the given intensity.
func NewIntensityData(v float64) Data {
	return &basicData{hasIntensity: true, intensity: v}
}

func (bd *basicData) HasColor() bool {
	return bd.hasColor
}

func (bd *basicData) RGB255() (uint8, uint8, uint8) {
	return bd.c.R, bd.c.G, bd.c.B
}

func (bd *basicData) Color() color.Color {
	return bd.c
}

func (bd *basicData) HasIntensity() bool {
	return bd.hasIntensity
}

func (bd *basicData) Intensity() float64 {
	return bd.intensity
}

// PointAndData is a tiny struct to facilitate returning nearest neighbors in a neat way.
type PointAndData struct {
	P r3.Vector
	D Data
}

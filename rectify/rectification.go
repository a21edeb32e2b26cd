// Package rectify computes and applies the epipolar rectification of a
// calibrated stereo rig: per camera pixel remapping tables that make
// corresponding points land on the same image row, plus the shared virtual
// camera geometry the rectified images obey.
package rectify

import (
	"image"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/opticlab/stereovision/transform"
	"github.com/opticlab/stereovision/utils"
)

// ErrDegenerateBaseline is returned when the two cameras are effectively
// coincident and no epipolar geometry exists to rectify against. This is a
// rig setup problem, not a per-frame one.
var ErrDegenerateBaseline = errors.New("camera baseline is degenerate (translation is near zero)")

// minBaseline is the translation norm below which the rig is considered
// degenerate, in meters.
const minBaseline = 1e-6

// RectifiedGeometry is the virtual camera both rectified images share: a
// single focal length, a common principal point and the rig baseline. Depth
// projection uses these values, not the raw per camera intrinsics.
type RectifiedGeometry struct {
	Virtual  transform.PinholeCameraIntrinsics
	Baseline float64
}

// RectificationMap is a dense per destination pixel lookup into one
// camera's raw image, plus the rectifying rotation that produced it. Maps
// are derived deterministically from a calibration model; recompute only
// when the model changes.
type RectificationMap struct {
	Width  int
	Height int

	// SourceX/SourceY hold, row-major per destination pixel, the raw image
	// coordinate to sample. Out of bounds samples fill with zero on apply.
	SourceX []float32
	SourceY []float32

	// Rotation maps raw camera ray directions into the rectified frame.
	Rotation *mat.Dense

	Geometry *RectifiedGeometry
}

// ComputeRectification builds both cameras' rectification maps from a
// calibration model, Bouguet style: the inter-camera rotation is split
// evenly between the two cameras and the common frame is spun so its x-axis
// runs along the baseline.
func ComputeRectification(model *transform.StereoCameraModel) (*RectificationMap, *RectificationMap, error) {
	if err := model.CheckValid(); err != nil {
		return nil, nil, err
	}
	t := model.Extrinsics.Translation
	if t.Norm() < minBaseline {
		return nil, nil, errors.Wrapf(ErrDegenerateBaseline, "translation norm %v m", t.Norm())
	}

	// split the right-to-left rotation in half: rotating the left camera by
	// exp(-ω/2) and the right by exp(+ω/2) lands both on a shared frame
	// while distorting each field of view as little as possible
	omega := transform.AxisAngleFromRotation(model.Extrinsics.Rotation)
	halfInv := transform.RotationFromAxisAngle(omega.Mul(-0.5))
	halfFwd := transform.RotationFromAxisAngle(omega.Mul(0.5))

	// baseline expressed in the shared frame
	tShared := mulVec(halfInv, t)

	// rows of the alignment rotation: x along the baseline, y chosen in the
	// original image plane, z completing the frame
	e1 := tShared.Mul(1 / tShared.Norm())
	var e2 r3.Vector
	planar := r3.Vector{X: tShared.X, Y: tShared.Y}.Norm()
	if planar < minBaseline {
		// baseline along the optical axis; any in-plane y works
		e2 = r3.Vector{X: 0, Y: 1, Z: 0}
	} else {
		e2 = r3.Vector{X: -tShared.Y / planar, Y: tShared.X / planar, Z: 0}
	}
	e3 := e1.Cross(e2)
	align := mat.NewDense(3, 3, []float64{
		e1.X, e1.Y, e1.Z,
		e2.X, e2.Y, e2.Z,
		e3.X, e3.Y, e3.Z,
	})

	rotLeft := mat.NewDense(3, 3, nil)
	rotLeft.Mul(align, halfInv)
	rotRight := mat.NewDense(3, 3, nil)
	rotRight.Mul(align, halfFwd)

	geom := &RectifiedGeometry{
		Virtual: transform.PinholeCameraIntrinsics{
			Width:  model.Left.Width,
			Height: model.Left.Height,
			Fx:     (model.Left.Fx + model.Left.Fy + model.Right.Fx + model.Right.Fy) / 4,
			Fy:     (model.Left.Fx + model.Left.Fy + model.Right.Fx + model.Right.Fy) / 4,
			Ppx:    (model.Left.Ppx + model.Right.Ppx) / 2,
			Ppy:    (model.Left.Ppy + model.Right.Ppy) / 2,
		},
		Baseline: t.Norm(),
	}

	left := buildMap(&model.Left, rotLeft, geom)
	right := buildMap(&model.Right, rotRight, geom)
	return left, right, nil
}

// buildMap fills the dense lookup table for one camera: each rectified
// destination pixel is traced back through the inverse rectifying rotation
// and the camera's forward distortion to its raw source coordinate.
func buildMap(intr *transform.PinholeCameraIntrinsics, rot *mat.Dense, geom *RectifiedGeometry) *RectificationMap {
	width, height := geom.Virtual.Width, geom.Virtual.Height
	m := &RectificationMap{
		Width:    width,
		Height:   height,
		SourceX:  make([]float32, width*height),
		SourceY:  make([]float32, width*height),
		Rotation: rot,
		Geometry: geom,
	}
	rotInv := rot.T()

	utils.ParallelForEachPixel(image.Point{width, height}, func(u, v int) {
		// rectified pixel to a ray in the raw camera frame
		xn := (float64(u) - geom.Virtual.Ppx) / geom.Virtual.Fx
		yn := (float64(v) - geom.Virtual.Ppy) / geom.Virtual.Fy
		ray := r3.Vector{
			X: rotInv.At(0, 0)*xn + rotInv.At(0, 1)*yn + rotInv.At(0, 2),
			Y: rotInv.At(1, 0)*xn + rotInv.At(1, 1)*yn + rotInv.At(1, 2),
			Z: rotInv.At(2, 0)*xn + rotInv.At(2, 1)*yn + rotInv.At(2, 2),
		}
		idx := v*width + u
		if ray.Z <= 1e-9 {
			// ray bends behind the raw camera; mark as out of bounds
			m.SourceX[idx] = -1
			m.SourceY[idx] = -1
			return
		}
		x := ray.X / ray.Z
		y := ray.Y / ray.Z
		if intr.Distortion != nil {
			x, y = intr.Distortion.Transform(x, y)
		}
		m.SourceX[idx] = float32(x*intr.Fx + intr.Ppx)
		m.SourceY[idx] = float32(y*intr.Fy + intr.Ppy)
	})
	return m
}

// RectifyPoint maps a point in this camera's frame to its rectified pixel.
// Useful for consumers that track features through rectification.
func (m *RectificationMap) RectifyPoint(p r3.Vector) (float64, float64) {
	rect := mulVec(m.Rotation, p)
	return m.Geometry.Virtual.PointToPixel(rect.X, rect.Y, rect.Z)
}

func mulVec(m mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

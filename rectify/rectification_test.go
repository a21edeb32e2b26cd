package rectify

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/opticlab/stereovision/transform"
)

func testModel() *transform.StereoCameraModel {
	return &transform.StereoCameraModel{
		Left: transform.PinholeCameraIntrinsics{
			Width: 320, Height: 240,
			Fx: 410.0, Fy: 412.0, Ppx: 162.0, Ppy: 121.5,
			Distortion: &transform.BrownConrady{RadialK1: -0.02, RadialK2: 0.001},
		},
		Right: transform.PinholeCameraIntrinsics{
			Width: 320, Height: 240,
			Fx: 408.0, Fy: 409.5, Ppx: 158.5, Ppy: 119.0,
			Distortion: &transform.BrownConrady{RadialK1: -0.018, RadialK2: 0.0012},
		},
		Extrinsics: transform.Extrinsics{
			Rotation:    transform.RotationFromAxisAngle(r3.Vector{X: 0.01, Y: 0.05, Z: -0.008}),
			Translation: r3.Vector{X: 0.1, Y: 0.004, Z: 0.002},
		},
	}
}

func TestRectifiedRowsAlign(t *testing.T) {
	model := testModel()
	leftMap, rightMap, err := ComputeRectification(model)
	test.That(t, err, test.ShouldBeNil)

	baseline := model.Baseline()
	focal := leftMap.Geometry.Virtual.Fx

	// scene points spread over the shared field of view
	for _, pLeft := range []r3.Vector{
		{X: 0.0, Y: 0.0, Z: 1.5},
		{X: 0.3, Y: -0.2, Z: 2.0},
		{X: -0.4, Y: 0.3, Z: 3.0},
		{X: 0.1, Y: 0.25, Z: 1.2},
		{X: -0.2, Y: -0.3, Z: 4.5},
	} {
		pRight := model.Extrinsics.TransformPointToChild(pLeft)
		xl, yl := leftMap.RectifyPoint(pLeft)
		xr, yr := rightMap.RectifyPoint(pRight)

		// epipolar lines are horizontal after rectification
		test.That(t, math.Abs(yl-yr), test.ShouldBeLessThan, 1.0)

		// disparity is positive and encodes metric depth in the shared frame
		d := xl - xr
		test.That(t, d, test.ShouldBeGreaterThan, 0.0)
		zRect := mulVec(leftMap.Rotation, pLeft).Z
		test.That(t, focal*baseline/d, test.ShouldAlmostEqual, zRect, 1e-6*zRect)
	}
}

func TestVirtualGeometry(t *testing.T) {
	model := testModel()
	leftMap, rightMap, err := ComputeRectification(model)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, leftMap.Geometry, test.ShouldEqual, rightMap.Geometry)
	virt := leftMap.Geometry.Virtual
	test.That(t, virt.Fx, test.ShouldEqual, virt.Fy)
	wantFocal := (model.Left.Fx + model.Left.Fy + model.Right.Fx + model.Right.Fy) / 4
	test.That(t, virt.Fx, test.ShouldAlmostEqual, wantFocal, 1e-12)
	test.That(t, virt.Width, test.ShouldEqual, model.Left.Width)
	test.That(t, leftMap.Geometry.Baseline, test.ShouldAlmostEqual, model.Baseline(), 1e-12)
	test.That(t, len(leftMap.SourceX), test.ShouldEqual, virt.Width*virt.Height)
}

func TestDegenerateBaseline(t *testing.T) {
	model := testModel()
	model.Extrinsics.Translation = r3.Vector{X: 1e-9}
	_, _, err := ComputeRectification(model)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrDegenerateBaseline), test.ShouldBeTrue)
}

func TestComputeRectificationInvalidModel(t *testing.T) {
	model := testModel()
	model.Left.Fx = -1
	_, _, err := ComputeRectification(model)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestComputeRectificationDeterministic(t *testing.T) {
	model := testModel()
	a, _, err := ComputeRectification(model)
	test.That(t, err, test.ShouldBeNil)
	b, _, err := ComputeRectification(model)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.SourceX, test.ShouldResemble, b.SourceX)
	test.That(t, a.SourceY, test.ShouldResemble, b.SourceY)
}

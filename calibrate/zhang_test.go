package calibrate

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/opticlab/stereovision/transform"
)

// homographyFor builds the exact pattern-to-image homography H = K [r1 r2 t]
// for a planar target seen by a camera with matrix k at the given pose.
func homographyFor(k, rot *mat.Dense, t r3.Vector) *mat.Dense {
	rt := mat.NewDense(3, 3, []float64{
		rot.At(0, 0), rot.At(0, 1), t.X,
		rot.At(1, 0), rot.At(1, 1), t.Y,
		rot.At(2, 0), rot.At(2, 1), t.Z,
	})
	h := mat.NewDense(3, 3, nil)
	h.Mul(k, rt)
	h.Scale(1/h.At(2, 2), h)
	return h
}

var testPoses = []struct {
	rot   r3.Vector
	trans r3.Vector
}{
	{r3.Vector{X: 0.3}, r3.Vector{X: -0.10, Y: -0.08, Z: 0.60}},
	{r3.Vector{X: -0.25, Y: 0.10}, r3.Vector{X: -0.08, Y: -0.09, Z: 0.65}},
	{r3.Vector{X: 0.10, Y: 0.30, Z: 0.05}, r3.Vector{X: -0.11, Y: -0.07, Z: 0.70}},
	{r3.Vector{X: -0.10, Y: -0.30, Z: 0.10}, r3.Vector{X: -0.09, Y: -0.08, Z: 0.75}},
	{r3.Vector{X: 0.20, Y: -0.20, Z: -0.10}, r3.Vector{X: -0.10, Y: -0.06, Z: 0.68}},
	{r3.Vector{Y: 0.25, Z: 0.15}, r3.Vector{X: -0.12, Y: -0.08, Z: 0.62}},
	{r3.Vector{X: 0.35, Y: 0.15}, r3.Vector{X: -0.07, Y: -0.10, Z: 0.72}},
	{r3.Vector{X: -0.20, Y: 0.20, Z: -0.05}, r3.Vector{X: -0.10, Y: -0.08, Z: 0.66}},
}

func TestIntrinsicsFromHomographies(t *testing.T) {
	intr := &transform.PinholeCameraIntrinsics{
		Width: 640, Height: 480,
		Fx: 800.0, Fy: 805.0, Ppx: 325.0, Ppy: 242.0,
	}
	k := intr.GetCameraMatrix()

	hs := make([]*mat.Dense, len(testPoses))
	for i, pose := range testPoses {
		hs[i] = homographyFor(k, transform.RotationFromAxisAngle(pose.rot), pose.trans)
	}

	got, err := intrinsicsFromHomographies(hs, intr.Width, intr.Height)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Fx, test.ShouldAlmostEqual, intr.Fx, 1e-3)
	test.That(t, got.Fy, test.ShouldAlmostEqual, intr.Fy, 1e-3)
	test.That(t, got.Ppx, test.ShouldAlmostEqual, intr.Ppx, 1e-3)
	test.That(t, got.Ppy, test.ShouldAlmostEqual, intr.Ppy, 1e-3)

	_, err = intrinsicsFromHomographies(hs[:2], intr.Width, intr.Height)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPoseFromHomography(t *testing.T) {
	intr := &transform.PinholeCameraIntrinsics{
		Width: 640, Height: 480,
		Fx: 800.0, Fy: 805.0, Ppx: 325.0, Ppy: 242.0,
	}
	k := intr.GetCameraMatrix()
	wantRot := transform.RotationFromAxisAngle(r3.Vector{X: 0.2, Y: -0.15, Z: 0.05})
	wantTrans := r3.Vector{X: -0.1, Y: -0.05, Z: 0.8}

	rot, trans, err := poseFromHomography(k, homographyFor(k, wantRot, wantTrans))
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, rot.At(i, j), test.ShouldAlmostEqual, wantRot.At(i, j), 1e-6)
		}
	}
	test.That(t, trans.X, test.ShouldAlmostEqual, wantTrans.X, 1e-6)
	test.That(t, trans.Y, test.ShouldAlmostEqual, wantTrans.Y, 1e-6)
	test.That(t, trans.Z, test.ShouldAlmostEqual, wantTrans.Z, 1e-6)
}

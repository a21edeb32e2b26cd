package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestAxisAngleRoundTrip(t *testing.T) {
	for _, v := range []r3.Vector{
		{X: 0.3},
		{Y: -1.2},
		{Z: 0.7},
		{X: 0.2, Y: -0.4, Z: 1.1},
		{X: 1e-10}, // near identity
	} {
		got := AxisAngleFromRotation(RotationFromAxisAngle(v))
		test.That(t, got.X, test.ShouldAlmostEqual, v.X, 1e-8)
		test.That(t, got.Y, test.ShouldAlmostEqual, v.Y, 1e-8)
		test.That(t, got.Z, test.ShouldAlmostEqual, v.Z, 1e-8)
	}
}

func TestAxisAngleNearHalfTurn(t *testing.T) {
	// near theta = pi the sine based recovery degenerates; compare
	// rotations, since the axis sign is ambiguous at exactly pi
	axis := r3.Vector{X: 1, Y: 2, Z: -1}
	v := axis.Mul((math.Pi - 1e-8) / axis.Norm())
	r := RotationFromAxisAngle(v)
	back := RotationFromAxisAngle(AxisAngleFromRotation(r))
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, back.At(i, j), test.ShouldAlmostEqual, r.At(i, j), 1e-6)
		}
	}
}

func TestRotationIsOrthonormal(t *testing.T) {
	r := RotationFromAxisAngle(r3.Vector{X: 0.5, Y: -0.3, Z: 0.9})
	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			test.That(t, rtr.At(i, j), test.ShouldAlmostEqual, want, 1e-12)
		}
	}
	test.That(t, mat.Det(r), test.ShouldAlmostEqual, 1, 1e-12)
}

func TestOrthonormalize(t *testing.T) {
	r := RotationFromAxisAngle(r3.Vector{X: 0.2, Y: 0.4})
	// perturb the matrix off the rotation manifold
	perturbed := mat.DenseCopyOf(r)
	perturbed.Set(0, 0, perturbed.At(0, 0)+0.01)
	perturbed.Set(1, 2, perturbed.At(1, 2)-0.02)

	fixed, err := Orthonormalize(perturbed)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.Det(fixed), test.ShouldAlmostEqual, 1, 1e-9)
	var rtr mat.Dense
	rtr.Mul(fixed.T(), fixed)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			test.That(t, rtr.At(i, j), test.ShouldAlmostEqual, want, 1e-9)
		}
	}
	// the projection should stay close to the original rotation
	test.That(t, fixed.At(0, 0), test.ShouldAlmostEqual, r.At(0, 0), 0.05)
}

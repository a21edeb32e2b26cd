package transform

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// RotationFromAxisAngle converts an axis-angle (Rodrigues) vector into a 3x3
// rotation matrix.
func RotationFromAxisAngle(v r3.Vector) *mat.Dense {
	theta := v.Norm()
	r := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if theta < 1e-12 {
		// first order approximation near identity
		r.Set(0, 1, -v.Z)
		r.Set(0, 2, v.Y)
		r.Set(1, 0, v.Z)
		r.Set(1, 2, -v.X)
		r.Set(2, 0, -v.Y)
		r.Set(2, 1, v.X)
		return r
	}
	k := v.Mul(1 / theta)
	s := math.Sin(theta)
	c := math.Cos(theta)
	t := 1 - c

	r.Set(0, 0, c+k.X*k.X*t)
	r.Set(0, 1, k.X*k.Y*t-k.Z*s)
	r.Set(0, 2, k.X*k.Z*t+k.Y*s)
	r.Set(1, 0, k.Y*k.X*t+k.Z*s)
	r.Set(1, 1, c+k.Y*k.Y*t)
	r.Set(1, 2, k.Y*k.Z*t-k.X*s)
	r.Set(2, 0, k.Z*k.X*t-k.Y*s)
	r.Set(2, 1, k.Z*k.Y*t+k.X*s)
	r.Set(2, 2, c+k.Z*k.Z*t)
	return r
}

// AxisAngleFromRotation converts a 3x3 rotation matrix into its axis-angle
// (Rodrigues) vector.
func AxisAngleFromRotation(r *mat.Dense) r3.Vector {
	trace := r.At(0, 0) + r.At(1, 1) + r.At(2, 2)
	cosTheta := (trace - 1) / 2
	if cosTheta > 1 {
		cosTheta = 1
	}
	if cosTheta < -1 {
		cosTheta = -1
	}
	theta := math.Acos(cosTheta)

	axisTimesTwoSin := r3.Vector{
		X: r.At(2, 1) - r.At(1, 2),
		Y: r.At(0, 2) - r.At(2, 0),
		Z: r.At(1, 0) - r.At(0, 1),
	}

	switch {
	case theta < 1e-9:
		return axisTimesTwoSin.Mul(0.5)
	case math.Pi-theta < 1e-6:
		// near a half turn the off-diagonal difference vanishes; recover
		// the axis from the diagonal of (R + I)/2 = kkᵀ
		axis := r3.Vector{
			X: math.Sqrt(math.Max(0, (r.At(0, 0)+1)/2)),
			Y: math.Sqrt(math.Max(0, (r.At(1, 1)+1)/2)),
			Z: math.Sqrt(math.Max(0, (r.At(2, 2)+1)/2)),
		}
		// fix signs from the larger off-diagonal sums
		if r.At(0, 1)+r.At(1, 0) < 0 {
			axis.Y = -axis.Y
		}
		if r.At(0, 2)+r.At(2, 0) < 0 {
			axis.Z = -axis.Z
		}
		return axis.Mul(theta / axis.Norm())
	default:
		return axisTimesTwoSin.Mul(theta / (2 * math.Sin(theta)))
	}
}

// Orthonormalize projects a near-rotation matrix onto the closest proper
// rotation via SVD.
func Orthonormalize(r *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(r, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize rotation")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	out := mat.NewDense(3, 3, nil)
	out.Mul(&u, v.T())
	if mat.Det(out) < 0 {
		// flip the last column of U to land on a proper rotation
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		out.Mul(&u, v.T())
	}
	return out, nil
}

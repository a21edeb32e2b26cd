package calibrate

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/opticlab/stereovision/transform"
)

// vij builds the constraint row on the absolute conic image B used by the
// Zhang closed form, from columns i and j of a pattern-to-image homography.
func vij(h *mat.Dense, i, j int) []float64 {
	return []float64{
		h.At(0, i) * h.At(0, j),
		h.At(0, i)*h.At(1, j) + h.At(1, i)*h.At(0, j),
		h.At(1, i) * h.At(1, j),
		h.At(2, i)*h.At(0, j) + h.At(0, i)*h.At(2, j),
		h.At(2, i)*h.At(1, j) + h.At(1, i)*h.At(2, j),
		h.At(2, i) * h.At(2, j),
	}
}

// intrinsicsFromHomographies recovers pinhole intrinsics from a set of
// planar pattern homographies (Zhang's closed form). Distortion starts at
// zero; the joint refinement fills it in.
func intrinsicsFromHomographies(hs []*mat.Dense, width, height int) (*transform.PinholeCameraIntrinsics, error) {
	if len(hs) < 3 {
		return nil, errors.Errorf("need at least 3 homographies to recover intrinsics, got %d", len(hs))
	}
	v := mat.NewDense(2*len(hs), 6, nil)
	for k, h := range hs {
		v.SetRow(2*k, vij(h, 0, 1))
		v12 := vij(h, 0, 0)
		v22 := vij(h, 1, 1)
		row := make([]float64, 6)
		for i := range row {
			row[i] = v12[i] - v22[i]
		}
		v.SetRow(2*k+1, row)
	}

	var svd mat.SVD
	if ok := svd.Factorize(v, mat.SVDThin); !ok {
		return nil, errFactorization
	}
	var vv mat.Dense
	svd.VTo(&vv)
	b := make([]float64, 6)
	for i := range b {
		b[i] = vv.At(i, 5)
	}

	intr, err := intrinsicsFromConic(b, width, height)
	if err == nil {
		return intr, nil
	}
	// the conic solution has a sign ambiguity; retry negated before failing
	for i := range b {
		b[i] = -b[i]
	}
	return intrinsicsFromConic(b, width, height)
}

func intrinsicsFromConic(b []float64, width, height int) (*transform.PinholeCameraIntrinsics, error) {
	b11, b12, b22, b13, b23, b33 := b[0], b[1], b[2], b[3], b[4], b[5]

	denom := b11*b22 - b12*b12
	if math.Abs(denom) < 1e-18 || math.Abs(b11) < 1e-18 {
		return nil, errors.New("degenerate calibration geometry: pattern poses do not constrain the intrinsics")
	}
	v0 := (b12*b13 - b11*b23) / denom
	lambda := b33 - (b13*b13+v0*(b12*b13-b11*b23))/b11
	if lambda/b11 <= 0 || lambda/denom*b11 <= 0 {
		return nil, errors.New("conic solution is not positive definite")
	}
	alpha := math.Sqrt(lambda / b11)
	beta := math.Sqrt(lambda * b11 / denom)
	gamma := -b12 * alpha * alpha * beta / lambda
	u0 := gamma*v0/beta - b13*alpha*alpha/lambda

	intr := &transform.PinholeCameraIntrinsics{
		Width:      width,
		Height:     height,
		Fx:         alpha,
		Fy:         beta,
		Ppx:        u0,
		Ppy:        v0,
		Distortion: &transform.BrownConrady{},
	}
	if err := intr.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "closed form intrinsics are invalid")
	}
	return intr, nil
}

// poseFromHomography recovers the pattern pose (pattern frame to camera
// frame) from a pattern-to-image homography and the camera matrix.
func poseFromHomography(k, h *mat.Dense) (*mat.Dense, r3.Vector, error) {
	var kInv mat.Dense
	if err := kInv.Inverse(k); err != nil {
		return nil, r3.Vector{}, errors.Wrap(err, "camera matrix is singular")
	}

	col := func(m *mat.Dense, j int) r3.Vector {
		return r3.Vector{X: m.At(0, j), Y: m.At(1, j), Z: m.At(2, j)}
	}
	mulVec := func(m *mat.Dense, v r3.Vector) r3.Vector {
		return r3.Vector{
			X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
			Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
			Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
		}
	}

	r1 := mulVec(&kInv, col(h, 0))
	r2 := mulVec(&kInv, col(h, 1))
	r3c := mulVec(&kInv, col(h, 2))

	norm := r1.Norm()
	if norm < 1e-12 {
		return nil, r3.Vector{}, errors.New("degenerate homography column")
	}
	scale := 1 / norm
	r1 = r1.Mul(scale)
	r2 = r2.Mul(scale)
	t := r3c.Mul(scale)

	// the pattern must sit in front of the camera
	if t.Z < 0 {
		r1 = r1.Mul(-1)
		r2 = r2.Mul(-1)
		t = t.Mul(-1)
	}
	r3v := r1.Cross(r2)

	rot := mat.NewDense(3, 3, []float64{
		r1.X, r2.X, r3v.X,
		r1.Y, r2.Y, r3v.Y,
		r1.Z, r2.Z, r3v.Z,
	})
	rot, err := transform.Orthonormalize(rot)
	if err != nil {
		return nil, r3.Vector{}, err
	}
	return rot, t, nil
}

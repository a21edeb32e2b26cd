package calibrate

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var errFactorization = errors.New("failed to factorize matrix")

// similarityNormalization returns the Hartley normalization for a point set:
// a similarity transform moving the centroid to the origin and scaling the
// mean distance from it to sqrt(2).
func similarityNormalization(pts []r2.Point) *mat.Dense {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}
	meanDist /= n
	scale := 1.0
	if meanDist > 0 {
		scale = math.Sqrt2 / meanDist
	}
	return mat.NewDense(3, 3, []float64{
		scale, 0, -scale * cx,
		0, scale, -scale * cy,
		0, 0, 1,
	})
}

func applyTransform2D(t *mat.Dense, p r2.Point) r2.Point {
	w := t.At(2, 0)*p.X + t.At(2, 1)*p.Y + t.At(2, 2)
	return r2.Point{
		X: (t.At(0, 0)*p.X + t.At(0, 1)*p.Y + t.At(0, 2)) / w,
		Y: (t.At(1, 0)*p.X + t.At(1, 1)*p.Y + t.At(1, 2)) / w,
	}
}

// estimateHomography computes the 3x3 homography H mapping src[i] to dst[i]
// (up to scale, H[2][2] normalized to 1) with a normalized direct linear
// transform solved by SVD.
func estimateHomography(src, dst []r2.Point) (*mat.Dense, error) {
	if len(src) != len(dst) {
		return nil, errors.Errorf("point sets must have the same length, got %d and %d", len(src), len(dst))
	}
	if len(src) < minPointsPerSet {
		return nil, errors.Errorf("homography needs at least %d point pairs, got %d", minPointsPerSet, len(src))
	}

	tSrc := similarityNormalization(src)
	tDst := similarityNormalization(dst)

	a := mat.NewDense(2*len(src), 9, nil)
	for i := range src {
		s := applyTransform2D(tSrc, src[i])
		d := applyTransform2D(tDst, dst[i])
		r := 2 * i
		a.SetRow(r, []float64{
			-s.X, -s.Y, -1,
			0, 0, 0,
			d.X * s.X, d.X * s.Y, d.X,
		})
		a.SetRow(r+1, []float64{
			0, 0, 0,
			-s.X, -s.Y, -1,
			d.Y * s.X, d.Y * s.Y, d.Y,
		})
	}

	// full SVD: with the minimum four pairs a is 8x9 and the null-space
	// vector only appears in the full right singular basis
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, errFactorization
	}
	var v mat.Dense
	svd.VTo(&v)
	// homography is the right singular vector of the smallest singular value
	h := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h.Set(i, j, v.At(3*i+j, 8))
		}
	}

	// denormalize: H = Tdst⁻¹ Ĥ Tsrc
	var tDstInv mat.Dense
	if err := tDstInv.Inverse(tDst); err != nil {
		return nil, errors.Wrap(err, "degenerate destination normalization")
	}
	var tmp mat.Dense
	tmp.Mul(h, tSrc)
	h.Mul(&tDstInv, &tmp)

	if math.Abs(h.At(2, 2)) < 1e-12 {
		return nil, errors.New("degenerate homography")
	}
	h.Scale(1/h.At(2, 2), h)
	return h, nil
}

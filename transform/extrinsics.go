package transform

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// orthonormalTolerance bounds how far a fitted rotation may drift from a
// proper rotation (RᵀR = I, det = +1) before the model is rejected.
const orthonormalTolerance = 1e-6

// Extrinsics is the rigid transform between the two cameras of the rig,
// mapping points in the right (B) camera frame into the left (A) camera
// frame: pA = R*pB + T. Translation is in meters.
type Extrinsics struct {
	Rotation    *mat.Dense
	Translation r3.Vector
}

// NewExtrinsics builds an Extrinsics from a row-major 9 element rotation and
// a translation vector, validating the rotation.
func NewExtrinsics(rotation []float64, translation r3.Vector) (*Extrinsics, error) {
	if len(rotation) != 9 {
		return nil, errors.Errorf("rotation must have 9 elements, got %d", len(rotation))
	}
	ext := &Extrinsics{
		Rotation:    mat.NewDense(3, 3, rotation),
		Translation: translation,
	}
	if err := ext.CheckValid(); err != nil {
		return nil, err
	}
	return ext, nil
}

// CheckValid verifies the rotation is orthonormal with determinant +1 within
// tolerance.
func (e *Extrinsics) CheckValid() error {
	if e == nil || e.Rotation == nil {
		return errors.New("extrinsics do not exist")
	}
	r, c := e.Rotation.Dims()
	if r != 3 || c != 3 {
		return errors.Errorf("rotation must be 3x3, got %dx%d", r, c)
	}
	var rtr mat.Dense
	rtr.Mul(e.Rotation.T(), e.Rotation)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if diff := rtr.At(i, j) - want; diff > orthonormalTolerance || diff < -orthonormalTolerance {
				return errors.Errorf("rotation is not orthonormal: (RᵀR)[%d,%d] = %v", i, j, rtr.At(i, j))
			}
		}
	}
	if det := mat.Det(e.Rotation); det < 1.0-orthonormalTolerance || det > 1.0+orthonormalTolerance {
		return errors.Errorf("rotation determinant %v is not +1", det)
	}
	return nil
}

// Baseline is the physical distance between the two camera optical centers
// in meters.
func (e *Extrinsics) Baseline() float64 {
	return e.Translation.Norm()
}

// TransformPointToParent maps a point in the right camera frame into the
// left camera frame.
func (e *Extrinsics) TransformPointToParent(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: e.Rotation.At(0, 0)*p.X + e.Rotation.At(0, 1)*p.Y + e.Rotation.At(0, 2)*p.Z + e.Translation.X,
		Y: e.Rotation.At(1, 0)*p.X + e.Rotation.At(1, 1)*p.Y + e.Rotation.At(1, 2)*p.Z + e.Translation.Y,
		Z: e.Rotation.At(2, 0)*p.X + e.Rotation.At(2, 1)*p.Y + e.Rotation.At(2, 2)*p.Z + e.Translation.Z,
	}
}

// TransformPointToChild maps a point in the left camera frame into the right
// camera frame.
func (e *Extrinsics) TransformPointToChild(p r3.Vector) r3.Vector {
	d := p.Sub(e.Translation)
	return r3.Vector{
		X: e.Rotation.At(0, 0)*d.X + e.Rotation.At(1, 0)*d.Y + e.Rotation.At(2, 0)*d.Z,
		Y: e.Rotation.At(0, 1)*d.X + e.Rotation.At(1, 1)*d.Y + e.Rotation.At(2, 1)*d.Z,
		Z: e.Rotation.At(0, 2)*d.X + e.Rotation.At(1, 2)*d.Y + e.Rotation.At(2, 2)*d.Z,
	}
}

// extrinsicsJSON is the persisted shape of Extrinsics: the rotation as a
// row-major 9 element array, translation in meters.
type extrinsicsJSON struct {
	Rotation    []float64  `json:"rotation_row_major"`
	Translation [3]float64 `json:"translation_m"`
}

// MarshalJSON implements json.Marshaler.
func (e *Extrinsics) MarshalJSON() ([]byte, error) {
	out := extrinsicsJSON{
		Rotation:    make([]float64, 0, 9),
		Translation: [3]float64{e.Translation.X, e.Translation.Y, e.Translation.Z},
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Rotation = append(out.Rotation, e.Rotation.At(i, j))
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Extrinsics) UnmarshalJSON(data []byte) error {
	var in extrinsicsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Rotation) != 9 {
		return errors.Errorf("rotation_row_major must have 9 elements, got %d", len(in.Rotation))
	}
	e.Rotation = mat.NewDense(3, 3, in.Rotation)
	e.Translation = r3.Vector{X: in.Translation[0], Y: in.Translation[1], Z: in.Translation[2]}
	return nil
}

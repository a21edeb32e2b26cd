package transform

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// StereoCameraModel is the complete calibration of a two camera rig: both
// cameras' intrinsics and the extrinsics between them, plus the RMS
// reprojection error the calibration run achieved. A model is immutable once
// fitted; re-calibration produces a new value.
//
// The persisted JSON record is the calibration file contract:
//
//	{
//	  "left":  {"width_px", "height_px", "fx", "fy", "ppx", "ppy",
//	            "distortion_parameters": {"rk1","rk2","rk3","tp1","tp2"}},
//	  "right": { ... same shape ... },
//	  "extrinsics": {"rotation_row_major": [9 floats], "translation_m": [3 floats]},
//	  "reprojection_error_px": float
//	}
type StereoCameraModel struct {
	Left              PinholeCameraIntrinsics `json:"left"`
	Right             PinholeCameraIntrinsics `json:"right"`
	Extrinsics        Extrinsics              `json:"extrinsics"`
	ReprojectionError float64                 `json:"reprojection_error_px"`
}

// CheckValid checks both cameras' intrinsics and the extrinsics, and that
// the two cameras declare the same image dimensions.
func (m *StereoCameraModel) CheckValid() error {
	if m == nil {
		return errors.New("stereo camera model does not exist")
	}
	if err := m.Left.CheckValid(); err != nil {
		return errors.Wrap(err, "left camera")
	}
	if err := m.Right.CheckValid(); err != nil {
		return errors.Wrap(err, "right camera")
	}
	if m.Left.Width != m.Right.Width || m.Left.Height != m.Right.Height {
		return errors.Errorf("camera dimensions disagree: left (%d,%d) right (%d,%d)",
			m.Left.Width, m.Left.Height, m.Right.Width, m.Right.Height)
	}
	if err := m.Extrinsics.CheckValid(); err != nil {
		return errors.Wrap(err, "extrinsics")
	}
	return nil
}

// Baseline is the distance between the two optical centers in meters.
func (m *StereoCameraModel) Baseline() float64 {
	return m.Extrinsics.Baseline()
}

// Save writes the model as indented JSON.
func (m *StereoCameraModel) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	if err := enc.Encode(m); err != nil {
		return errors.Wrap(err, "error writing stereo camera model")
	}
	return nil
}

// SaveFile writes the model to the given path.
func (m *StereoCameraModel) SaveFile(path string) error {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "error creating calibration file")
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return m.Save(f)
}

// LoadStereoCameraModel reads and validates a persisted model.
func LoadStereoCameraModel(r io.Reader) (*StereoCameraModel, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "error reading calibration data")
	}
	model := &StereoCameraModel{}
	if err := json.Unmarshal(data, model); err != nil {
		return nil, errors.Wrap(err, "error parsing calibration data")
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	return model, nil
}

// LoadStereoCameraModelFromFile reads and validates a persisted model from
// the given path.
func LoadStereoCameraModelFromFile(path string) (*StereoCameraModel, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening calibration file")
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return LoadStereoCameraModel(f)
}

package transform

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrapf(ErrNoIntrinsics, "%s", msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective
// projection of a 3D scene to the 2D plane, along with the lens distortion of
// the camera that captured it.
type PinholeCameraIntrinsics struct {
	Width      int           `json:"width_px"`
	Height     int           `json:"height_px"`
	Fx         float64       `json:"fx"`
	Fy         float64       `json:"fy"`
	Ppx        float64       `json:"ppx"`
	Ppy        float64       `json:"ppy"`
	Distortion *BrownConrady `json:"distortion_parameters,omitempty"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// PixelToPoint transforms a pixel with depth to a 3D point in the camera
// frame. Depth z is in the same unit the returned coordinates should be in.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	return xOverZ * z, yOverZ * z, z
}

// PointToPixel projects a 3D point in the camera frame to an image plane
// pixel. Points with zero depth project to negative coordinates so a bounds
// check filters them out.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		xPx := (x/z)*params.Fx + params.Ppx
		yPx := (y/z)*params.Fy + params.Ppy
		return xPx, yPx
	}
	return -1.0, -1.0
}

// DistortPixel maps an undistorted pixel coordinate to where the lens
// actually imaged it. With no distortion model the pixel is unchanged.
func (params *PinholeCameraIntrinsics) DistortPixel(u, v float64) (float64, float64) {
	if params.Distortion == nil {
		return u, v
	}
	x := (u - params.Ppx) / params.Fx
	y := (v - params.Ppy) / params.Fy
	x, y = params.Distortion.Transform(x, y)
	return x*params.Fx + params.Ppx, y*params.Fy + params.Ppy
}

// UndistortPixel inverts DistortPixel.
func (params *PinholeCameraIntrinsics) UndistortPixel(u, v float64) (float64, float64) {
	if params.Distortion == nil {
		return u, v
	}
	x := (u - params.Ppx) / params.Fx
	y := (v - params.Ppy) / params.Fy
	x, y = params.Distortion.Undistort(x, y)
	return x*params.Fx + params.Ppx, y*params.Fy + params.Ppy
}

// GetCameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}

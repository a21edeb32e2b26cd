package calibrate

import "fmt"

// InsufficientDataError is returned when a calibration run is handed fewer
// correspondence sets than the configured minimum. No model is produced.
type InsufficientDataError struct {
	Got int
	Min int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("calibration requires at least %d correspondence sets, got %d", e.Min, e.Got)
}

// NotConvergedError is returned when the joint refinement hits its iteration
// cap before the relative decrease in reprojection error falls below
// tolerance. It carries the last achieved RMS so an operator can judge how
// far off the run was; there is no silent partial result.
type NotConvergedError struct {
	Iterations int
	LastRMS    float64
}

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("calibration did not converge within %d iterations, last RMS reprojection error %f px",
		e.Iterations, e.LastRMS)
}

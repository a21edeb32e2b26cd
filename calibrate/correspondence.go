// Package calibrate fits a stereo camera model from detected calibration
// pattern correspondences: a Zhang style closed-form initialization per
// camera followed by a joint nonlinear refinement of both cameras'
// intrinsics and the stereo extrinsics.
package calibrate

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// CorrespondenceSet is one calibration capture: the known pattern geometry
// and where each pattern point was detected in both cameras. The i-th
// entries of all three slices describe the same physical point. Sets are
// consumed by Fit and can be discarded afterwards.
type CorrespondenceSet struct {
	// Pattern holds the pattern points in the pattern's own frame, in
	// meters. The initialization assumes a planar target, so Z must be 0.
	Pattern []r3.Vector
	Left    []r2.Point
	Right   []r2.Point
}

// minPointsPerSet is what the homography estimate needs; real detections of
// a checkerboard carry far more.
const minPointsPerSet = 4

// CheckValid verifies the set is internally consistent and planar.
func (cs *CorrespondenceSet) CheckValid() error {
	if cs == nil {
		return errors.New("correspondence set does not exist")
	}
	if len(cs.Pattern) < minPointsPerSet {
		return errors.Errorf("correspondence set needs at least %d points, got %d", minPointsPerSet, len(cs.Pattern))
	}
	if len(cs.Left) != len(cs.Pattern) || len(cs.Right) != len(cs.Pattern) {
		return errors.Errorf("correspondence set lengths disagree: pattern %d, left %d, right %d",
			len(cs.Pattern), len(cs.Left), len(cs.Right))
	}
	for i, p := range cs.Pattern {
		if p.Z != 0 {
			return errors.Errorf("pattern point %d has Z = %v; calibration target must be planar with Z = 0", i, p.Z)
		}
	}
	return nil
}

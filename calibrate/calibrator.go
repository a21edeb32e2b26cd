package calibrate

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/opticlab/stereovision/transform"
	"github.com/opticlab/stereovision/utils"
)

// Options configure a calibration run.
type Options struct {
	// MinSets is the fewest correspondence sets Fit accepts.
	MinSets int
	// RecommendedSets is the capture count below which Fit logs a warning
	// about expected accuracy.
	RecommendedSets int
	// MaxIterations caps the joint refinement.
	MaxIterations int
	// Tolerance is the relative decrease in total reprojection error below
	// which the refinement is considered converged.
	Tolerance float64
}

func (o Options) withDefaults() Options {
	if o.MinSets <= 0 {
		o.MinSets = 6
	}
	if o.RecommendedSets <= 0 {
		o.RecommendedSets = 20
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 100
	}
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-6
	}
	return o
}

// Calibrator fits a stereo camera model from correspondence sets. It keeps
// no state between runs; Fit is a pure function of its inputs.
type Calibrator struct {
	opts   Options
	logger golog.Logger
}

// NewCalibrator returns a Calibrator with the given options filled in with
// defaults where unset.
func NewCalibrator(opts Options, logger golog.Logger) *Calibrator {
	return &Calibrator{opts: opts.withDefaults(), logger: logger}
}

// the refined parameter vector: per camera fx, fy, ppx, ppy, k1, k2,
// then the stereo rotation as a Rodrigues vector and the translation.
const (
	paramsPerCamera = 6
	numParams       = 2*paramsPerCamera + 6
)

// Fit runs the full calibration: Zhang closed-form initialization per
// camera, per-view extrinsic initialization, then a joint nonlinear
// refinement of both cameras' intrinsics and the stereo extrinsics
// minimizing total squared reprojection error over both cameras.
func (c *Calibrator) Fit(
	ctx context.Context,
	sets []CorrespondenceSet,
	width, height int,
) (*transform.StereoCameraModel, error) {
	if len(sets) < c.opts.MinSets {
		return nil, &InsufficientDataError{Got: len(sets), Min: c.opts.MinSets}
	}
	for i := range sets {
		if err := sets[i].CheckValid(); err != nil {
			return nil, errors.Wrapf(err, "correspondence set %d", i)
		}
	}
	if len(sets) < c.opts.RecommendedSets {
		c.logger.Warnf("calibrating from %d correspondence sets; %d or more are recommended for a stable fit",
			len(sets), c.opts.RecommendedSets)
	}

	patterns := make([][]r2.Point, len(sets))
	for i, set := range sets {
		pts := make([]r2.Point, len(set.Pattern))
		for j, p := range set.Pattern {
			pts[j] = r2.Point{X: p.X, Y: p.Y}
		}
		patterns[i] = pts
	}

	// the two cameras' homographies are independent, estimate them in parallel
	leftHs := make([]*mat.Dense, len(sets))
	rightHs := make([]*mat.Dense, len(sets))
	estimateAll := func(name string, out []*mat.Dense, points func(int) []r2.Point) utils.SimpleFunc {
		return func(ctx context.Context) error {
			for i := range sets {
				if err := ctx.Err(); err != nil {
					return err
				}
				h, err := estimateHomography(patterns[i], points(i))
				if err != nil {
					return errors.Wrapf(err, "%s homography for set %d", name, i)
				}
				out[i] = h
			}
			return nil
		}
	}
	if _, err := utils.RunInParallel(ctx, []utils.SimpleFunc{
		estimateAll("left", leftHs, func(i int) []r2.Point { return sets[i].Left }),
		estimateAll("right", rightHs, func(i int) []r2.Point { return sets[i].Right }),
	}); err != nil {
		return nil, err
	}

	leftInit, err := intrinsicsFromHomographies(leftHs, width, height)
	if err != nil {
		return nil, errors.Wrap(err, "left camera initialization")
	}
	rightInit, err := intrinsicsFromHomographies(rightHs, width, height)
	if err != nil {
		return nil, errors.Wrap(err, "right camera initialization")
	}
	c.logger.Debugf("initial left intrinsics: fx=%.2f fy=%.2f pp=(%.2f, %.2f)",
		leftInit.Fx, leftInit.Fy, leftInit.Ppx, leftInit.Ppy)
	c.logger.Debugf("initial right intrinsics: fx=%.2f fy=%.2f pp=(%.2f, %.2f)",
		rightInit.Fx, rightInit.Fy, rightInit.Ppx, rightInit.Ppy)

	rotInit, transInit, err := initialExtrinsics(leftInit, rightInit, leftHs, rightHs)
	if err != nil {
		return nil, errors.Wrap(err, "stereo extrinsics initialization")
	}

	theta := packParams(leftInit, rightInit, rotInit, transInit)
	nResiduals := 0
	for _, set := range sets {
		nResiduals += 2 * len(set.Pattern)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return totalSquaredReprojection(x, sets, patterns, width, height)
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		MajorIterations: c.opts.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Relative:   c.opts.Tolerance,
			Absolute:   1e-12,
			Iterations: 10,
		},
	}

	result, err := optimize.Minimize(problem, theta, settings, &optimize.NelderMead{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errors.Wrap(ctxErr, "calibration canceled")
	}
	if err != nil {
		return nil, errors.Wrap(err, "joint refinement failed")
	}
	rms := math.Sqrt(result.F / float64(nResiduals))
	if result.Status == optimize.IterationLimit {
		return nil, &NotConvergedError{Iterations: c.opts.MaxIterations, LastRMS: rms}
	}

	model, err := unpackParams(result.X, width, height)
	if err != nil {
		return nil, err
	}
	model.ReprojectionError = rms

	c.logViewErrors(result.X, sets, patterns, width, height)
	c.logger.Infof("calibration converged, RMS reprojection error %.4f px over %d views", rms, len(sets))
	return model, nil
}

// initialExtrinsics averages the per-view relative poses between the two
// cameras into a single starting extrinsic estimate.
func initialExtrinsics(
	left, right *transform.PinholeCameraIntrinsics,
	leftHs, rightHs []*mat.Dense,
) (r3.Vector, r3.Vector, error) {
	kLeft := left.GetCameraMatrix()
	kRight := right.GetCameraMatrix()

	var rotSum, transSum r3.Vector
	n := 0
	for i := range leftHs {
		rLeft, tLeft, err := poseFromHomography(kLeft, leftHs[i])
		if err != nil {
			continue
		}
		rRight, tRight, err := poseFromHomography(kRight, rightHs[i])
		if err != nil {
			continue
		}
		// relative rotation mapping right camera coordinates into left:
		// R = R_left * R_rightᵀ, T = t_left - R * t_right
		rel := mat.NewDense(3, 3, nil)
		rel.Mul(rLeft, rRight.T())
		t := tLeft.Sub(r3.Vector{
			X: rel.At(0, 0)*tRight.X + rel.At(0, 1)*tRight.Y + rel.At(0, 2)*tRight.Z,
			Y: rel.At(1, 0)*tRight.X + rel.At(1, 1)*tRight.Y + rel.At(1, 2)*tRight.Z,
			Z: rel.At(2, 0)*tRight.X + rel.At(2, 1)*tRight.Y + rel.At(2, 2)*tRight.Z,
		})
		rotSum = rotSum.Add(transform.AxisAngleFromRotation(rel))
		transSum = transSum.Add(t)
		n++
	}
	if n == 0 {
		return r3.Vector{}, r3.Vector{}, errors.New("no view produced a usable relative pose")
	}
	return rotSum.Mul(1 / float64(n)), transSum.Mul(1 / float64(n)), nil
}

func packParams(left, right *transform.PinholeCameraIntrinsics, rot, trans r3.Vector) []float64 {
	theta := make([]float64, 0, numParams)
	for _, intr := range []*transform.PinholeCameraIntrinsics{left, right} {
		theta = append(theta, intr.Fx, intr.Fy, intr.Ppx, intr.Ppy,
			intr.Distortion.RadialK1, intr.Distortion.RadialK2)
	}
	theta = append(theta, rot.X, rot.Y, rot.Z, trans.X, trans.Y, trans.Z)
	return theta
}

func cameraFromParams(theta []float64, offset, width, height int) transform.PinholeCameraIntrinsics {
	return transform.PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     theta[offset],
		Fy:     theta[offset+1],
		Ppx:    theta[offset+2],
		Ppy:    theta[offset+3],
		Distortion: &transform.BrownConrady{
			RadialK1: theta[offset+4],
			RadialK2: theta[offset+5],
		},
	}
}

func unpackParams(theta []float64, width, height int) (*transform.StereoCameraModel, error) {
	left := cameraFromParams(theta, 0, width, height)
	right := cameraFromParams(theta, paramsPerCamera, width, height)
	rot := transform.RotationFromAxisAngle(r3.Vector{X: theta[12], Y: theta[13], Z: theta[14]})
	model := &transform.StereoCameraModel{
		Left:  left,
		Right: right,
		Extrinsics: transform.Extrinsics{
			Rotation:    rot,
			Translation: r3.Vector{X: theta[15], Y: theta[16], Z: theta[17]},
		},
	}
	if err := model.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "refined model is invalid")
	}
	return model, nil
}

// totalSquaredReprojection is the refinement objective: the sum of squared
// pixel distances between observed and reprojected pattern points in both
// cameras. The pattern pose for each view is re-estimated from the current
// left intrinsics (pose resection nested inside the outer refinement), so
// view poses do not inflate the parameter vector.
func totalSquaredReprojection(theta []float64, sets []CorrespondenceSet, patterns [][]r2.Point, width, height int) float64 {
	left := cameraFromParams(theta, 0, width, height)
	right := cameraFromParams(theta, paramsPerCamera, width, height)
	if left.Fx <= 0 || left.Fy <= 0 || right.Fx <= 0 || right.Fy <= 0 {
		return math.Inf(1)
	}
	rot := transform.RotationFromAxisAngle(r3.Vector{X: theta[12], Y: theta[13], Z: theta[14]})
	ext := transform.Extrinsics{
		Rotation:    rot,
		Translation: r3.Vector{X: theta[15], Y: theta[16], Z: theta[17]},
	}
	kLeft := left.GetCameraMatrix()

	var total float64
	for i, set := range sets {
		sqErr, ok := viewSquaredReprojection(&left, &right, &ext, kLeft, set, patterns[i])
		if !ok {
			return math.Inf(1)
		}
		total += sqErr
	}
	return total
}

func viewSquaredReprojection(
	left, right *transform.PinholeCameraIntrinsics,
	ext *transform.Extrinsics,
	kLeft *mat.Dense,
	set CorrespondenceSet,
	pattern []r2.Point,
) (float64, bool) {
	// resect the pattern pose against the left camera, compensating the
	// current distortion estimate
	undistorted := make([]r2.Point, len(set.Left))
	for j, p := range set.Left {
		x, y := left.UndistortPixel(p.X, p.Y)
		undistorted[j] = r2.Point{X: x, Y: y}
	}
	h, err := estimateHomography(pattern, undistorted)
	if err != nil {
		return 0, false
	}
	rView, tView, err := poseFromHomography(kLeft, h)
	if err != nil {
		return 0, false
	}

	var total float64
	for j, p := range set.Pattern {
		pLeft := r3.Vector{
			X: rView.At(0, 0)*p.X + rView.At(0, 1)*p.Y + rView.At(0, 2)*p.Z + tView.X,
			Y: rView.At(1, 0)*p.X + rView.At(1, 1)*p.Y + rView.At(1, 2)*p.Z + tView.Y,
			Z: rView.At(2, 0)*p.X + rView.At(2, 1)*p.Y + rView.At(2, 2)*p.Z + tView.Z,
		}
		pRight := ext.TransformPointToChild(pLeft)
		if pLeft.Z <= 0 || pRight.Z <= 0 {
			return 0, false
		}

		lu, lv := projectDistorted(left, pLeft)
		ru, rv := projectDistorted(right, pRight)
		total += utils.Square(lu-set.Left[j].X) + utils.Square(lv-set.Left[j].Y)
		total += utils.Square(ru-set.Right[j].X) + utils.Square(rv-set.Right[j].Y)
	}
	return total, true
}

func projectDistorted(intr *transform.PinholeCameraIntrinsics, p r3.Vector) (float64, float64) {
	xn := p.X / p.Z
	yn := p.Y / p.Z
	if intr.Distortion != nil {
		xn, yn = intr.Distortion.Transform(xn, yn)
	}
	return xn*intr.Fx + intr.Ppx, yn*intr.Fy + intr.Ppy
}

// logViewErrors reports the spread of per-view RMS errors so an operator
// can spot a bad capture in an otherwise good run.
func (c *Calibrator) logViewErrors(theta []float64, sets []CorrespondenceSet, patterns [][]r2.Point, width, height int) {
	left := cameraFromParams(theta, 0, width, height)
	right := cameraFromParams(theta, paramsPerCamera, width, height)
	rot := transform.RotationFromAxisAngle(r3.Vector{X: theta[12], Y: theta[13], Z: theta[14]})
	ext := transform.Extrinsics{
		Rotation:    rot,
		Translation: r3.Vector{X: theta[15], Y: theta[16], Z: theta[17]},
	}
	kLeft := left.GetCameraMatrix()

	perView := make([]float64, 0, len(sets))
	for i, set := range sets {
		sqErr, ok := viewSquaredReprojection(&left, &right, &ext, kLeft, set, patterns[i])
		if !ok {
			continue
		}
		perView = append(perView, math.Sqrt(sqErr/float64(2*len(set.Pattern))))
	}
	if len(perView) == 0 {
		return
	}
	median, err := stats.Median(perView)
	if err != nil {
		return
	}
	worst, err := stats.Max(perView)
	if err != nil {
		return
	}
	c.logger.Debugf("per-view RMS reprojection error: median %.4f px, worst %.4f px", median, worst)
}

package pipeline

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/opticlab/stereovision/disparity"
	"github.com/opticlab/stereovision/pointcloud"
	"github.com/opticlab/stereovision/project"
	"github.com/opticlab/stereovision/rectify"
	"github.com/opticlab/stereovision/simage"
	"github.com/opticlab/stereovision/transform"
)

// ErrNoModel is returned by Submit before any calibration has been swapped in.
var ErrNoModel = errors.New("no calibration model active")

// Result is the output for one successfully processed frame pair. Depth and
// Cloud are populated according to the engine config.
type Result struct {
	Seq           uint64
	CapturedLeft  time.Time
	CapturedRight time.Time
	Depth         *project.DepthMap
	Cloud         pointcloud.PointCloud
}

// Stats is a point-in-time snapshot of the engine counters.
type Stats struct {
	Processed uint64
	Dropped   uint64
	Failed    uint64
}

// snapshot binds a calibration model to the rectification maps derived from
// it so a swap can never pair a model with stale maps.
type snapshot struct {
	model    *transform.StereoCameraModel
	leftMap  *rectify.RectificationMap
	rightMap *rectify.RectificationMap
}

// Engine runs the rectify, match, project sequence over a bounded queue of
// frame pairs. One Run loop processes frames serially, so outputs come out
// in submission order.
type Engine struct {
	cfg    EngineConfig
	logger golog.Logger
	clock  clock.Clock

	snap    atomic.Pointer[snapshot]
	frames  chan *simage.FramePair
	results chan Result

	processed atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// EngineOption configures NewEngine.
type EngineOption func(*Engine)

// WithClock substitutes the wall clock, for tests.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// NewEngine validates the config and builds an idle engine. Call SwapModel
// before submitting frames and Run to start processing.
func NewEngine(cfg EngineConfig, logger golog.Logger, opts ...EngineOption) (*Engine, error) {
	if err := cfg.CheckValid(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		clock:   clock.New(),
		frames:  make(chan *simage.FramePair, cfg.QueueSize),
		results: make(chan Result),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SwapModel computes rectification maps for the model and installs both
// atomically. Frames already queued keep the snapshot they are matched
// against when processing starts, never a half-swapped one.
func (e *Engine) SwapModel(model *transform.StereoCameraModel) error {
	leftMap, rightMap, err := rectify.ComputeRectification(model)
	if err != nil {
		return errors.Wrap(err, "cannot activate calibration model")
	}
	e.snap.Store(&snapshot{model: model, leftMap: leftMap, rightMap: rightMap})
	e.logger.Infow("calibration model activated",
		"baseline_m", model.Baseline(),
		"reprojection_error_px", model.ReprojectionError,
	)
	return nil
}

// Results delivers one Result per successfully processed frame pair. The
// channel closes when Run returns.
func (e *Engine) Results() <-chan Result {
	return e.results
}

// Stats reports counter values. Counters only ever increase.
func (e *Engine) Stats() Stats {
	return Stats{
		Processed: e.processed.Load(),
		Dropped:   e.dropped.Load(),
		Failed:    e.failed.Load(),
	}
}

// Submit enqueues a frame pair. It rejects pairs whose capture skew exceeds
// the sync tolerance or whose dimensions disagree with the active model;
// rejected pairs are never queued. Under DropOldest a full queue evicts its
// oldest frame instead of blocking.
func (e *Engine) Submit(ctx context.Context, pair *simage.FramePair) error {
	snap := e.snap.Load()
	if snap == nil {
		return ErrNoModel
	}
	if err := pair.CheckSync(e.cfg.SyncTolerance); err != nil {
		return err
	}
	if err := pair.CheckDimensions(snap.model.Left.Width, snap.model.Left.Height); err != nil {
		return err
	}

	if e.cfg.Backpressure == Block {
		select {
		case e.frames <- pair:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		select {
		case e.frames <- pair:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		select {
		case old := <-e.frames:
			e.dropped.Inc()
			e.logger.Debugw("dropping oldest queued frame", "seq", old.Seq)
		default:
		}
	}
}

// Run processes queued frames until the context is canceled, then closes the
// results channel. A frame that fails logs the reason and yields no result;
// processing continues with the next frame.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.results)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pair := <-e.frames:
			res, err := e.processFrame(ctx, pair)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.failed.Inc()
				e.logger.Warnw("frame processing failed", "seq", pair.Seq, "error", err)
				continue
			}
			if res == nil {
				continue
			}
			select {
			case e.results <- *res:
				e.processed.Inc()
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (e *Engine) processFrame(ctx context.Context, pair *simage.FramePair) (*Result, error) {
	if e.cfg.MaxFrameAge > 0 {
		if age := e.clock.Now().Sub(pair.CapturedLeft); age > e.cfg.MaxFrameAge {
			e.dropped.Inc()
			e.logger.Debugw("discarding stale frame", "seq", pair.Seq, "age", age)
			return nil, nil
		}
	}
	snap := e.snap.Load()

	var rectLeft, rectRight *simage.Gray
	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		rectLeft, err = snap.leftMap.Apply(pair.Left)
		return err
	})
	group.Go(func() error {
		var err error
		rectRight, err = snap.rightMap.Apply(pair.Right)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, errors.Wrap(err, "rectification")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	disp, err := disparity.Match(ctx, rectLeft, rectRight, e.cfg.Matcher)
	if err != nil {
		return nil, errors.Wrap(err, "stereo matching")
	}

	res := &Result{
		Seq:           pair.Seq,
		CapturedLeft:  pair.CapturedLeft,
		CapturedRight: pair.CapturedRight,
	}
	geom := snap.leftMap.Geometry
	if e.cfg.EmitDepth {
		if res.Depth, err = project.DepthImage(disp, geom); err != nil {
			return nil, errors.Wrap(err, "depth projection")
		}
	}
	if e.cfg.EmitPointCloud {
		if res.Cloud, err = project.ToPointCloud(disp, geom, project.WithIntensity(rectLeft)); err != nil {
			return nil, errors.Wrap(err, "point cloud projection")
		}
	}
	return res, nil
}

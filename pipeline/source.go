package pipeline

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/opticlab/stereovision/simage"
)

// FrameSource produces synchronized frame pairs. NextFramePair blocks until
// a pair is available, the context is canceled, or the source is exhausted,
// in which case it returns io.EOF.
type FrameSource interface {
	NextFramePair(ctx context.Context) (*simage.FramePair, error)
}

// Pump feeds frames from a source into the engine until the source returns
// io.EOF or the context is canceled. Frames the engine rejects (sync skew,
// dimension mismatch) are counted as failed and logged; the pump keeps going.
func (e *Engine) Pump(ctx context.Context, src FrameSource) error {
	for {
		pair, err := src.NextFramePair(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "frame source")
		}
		if err := e.Submit(ctx, pair); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.failed.Inc()
			e.logger.Warnw("frame rejected", "seq", pair.Seq, "error", err)
		}
	}
}

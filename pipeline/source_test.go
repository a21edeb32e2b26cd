package pipeline

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/opticlab/stereovision/simage"
)

type sliceSource struct {
	pairs []*simage.FramePair
}

func (s *sliceSource) NextFramePair(ctx context.Context) (*simage.FramePair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.pairs) == 0 {
		return nil, io.EOF
	}
	pair := s.pairs[0]
	s.pairs = s.pairs[1:]
	return pair, nil
}

func TestPumpProcessesUntilEOF(t *testing.T) {
	engine, err := NewEngine(testConfig(), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, engine.SwapModel(wallModel()), test.ShouldBeNil)

	now := time.Now()
	badSync := wallPair(2, now)
	badSync.CapturedRight = now.Add(time.Second)
	src := &sliceSource{pairs: []*simage.FramePair{
		wallPair(1, now),
		badSync,
		wallPair(3, now),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = engine.Run(ctx)
	}()

	test.That(t, engine.Pump(ctx, src), test.ShouldBeNil)

	var seqs []uint64
	for len(seqs) < 2 {
		res := <-engine.Results()
		seqs = append(seqs, res.Seq)
	}
	// the unsynchronized pair was rejected; order is preserved
	test.That(t, seqs, test.ShouldResemble, []uint64{1, 3})
	test.That(t, engine.Stats().Failed, test.ShouldEqual, 1)

	deadline := time.Now().Add(10 * time.Second)
	for engine.Stats().Processed < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	test.That(t, engine.Stats().Processed, test.ShouldEqual, 2)

	cancel()
	<-runDone
}

func TestPumpPropagatesSourceErrors(t *testing.T) {
	engine, err := NewEngine(testConfig(), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, engine.SwapModel(wallModel()), test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = engine.Pump(ctx, &sliceSource{pairs: []*simage.FramePair{wallPair(1, time.Now())}})
	test.That(t, err, test.ShouldNotBeNil)
}

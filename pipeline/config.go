package pipeline

import (
	"time"

	"github.com/pkg/errors"

	"github.com/opticlab/stereovision/disparity"
)

// Backpressure selects what Submit does when the frame queue is full.
type Backpressure string

const (
	// DropOldest evicts the oldest queued frame to make room. Live feeds
	// want this: a stale frame is worth less than a fresh one.
	DropOldest = Backpressure("drop_oldest")
	// Block makes Submit wait for queue space or context cancellation.
	Block = Backpressure("block")
)

const (
	defaultQueueSize     = 8
	defaultSyncTolerance = 10 * time.Millisecond
)

// EngineConfig configures a stereo processing engine.
type EngineConfig struct {
	Matcher disparity.MatcherParams `json:"matcher"`

	// SyncTolerance is the largest left/right capture skew Submit accepts.
	// Zero means the default of 10ms.
	SyncTolerance time.Duration `json:"sync_tolerance"`

	// QueueSize bounds the number of frames waiting for processing. Zero
	// means the default of 8.
	QueueSize int `json:"queue_size"`

	// Backpressure defaults to DropOldest.
	Backpressure Backpressure `json:"backpressure"`

	// MaxFrameAge discards frames captured too long before processing
	// starts. Zero disables the check.
	MaxFrameAge time.Duration `json:"max_frame_age"`

	EmitDepth      bool `json:"emit_depth"`
	EmitPointCloud bool `json:"emit_point_cloud"`
}

// CheckValid returns an error if the config cannot drive an engine.
func (c *EngineConfig) CheckValid() error {
	if err := c.Matcher.CheckValid(); err != nil {
		return errors.Wrap(err, "invalid matcher parameters")
	}
	if c.SyncTolerance < 0 {
		return errors.New("sync_tolerance cannot be negative")
	}
	if c.QueueSize < 0 {
		return errors.New("queue_size cannot be negative")
	}
	if c.MaxFrameAge < 0 {
		return errors.New("max_frame_age cannot be negative")
	}
	switch c.Backpressure {
	case "", DropOldest, Block:
	default:
		return errors.Errorf("unknown backpressure policy %q", c.Backpressure)
	}
	if !c.EmitDepth && !c.EmitPointCloud {
		return errors.New("at least one of emit_depth or emit_point_cloud must be set")
	}
	return nil
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.SyncTolerance == 0 {
		c.SyncTolerance = defaultSyncTolerance
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Backpressure == "" {
		c.Backpressure = DropOldest
	}
	return c
}

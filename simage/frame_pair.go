package simage

import (
	"fmt"
	"time"
)

// FramePair is one synchronized capture from both cameras of the rig.
// Seq carries the submission identity so downstream consumers can re-order
// or drop stale results.
type FramePair struct {
	Left  *Gray
	Right *Gray

	CapturedLeft  time.Time
	CapturedRight time.Time

	Seq uint64
}

// SizeMismatchError is returned when a frame does not match the dimensions
// declared by the active calibration. The engine never resizes.
type SizeMismatchError struct {
	GotWidth, GotHeight   int
	WantWidth, WantHeight int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("frame dimensions (%d,%d) do not match calibration dimensions (%d,%d)",
		e.GotWidth, e.GotHeight, e.WantWidth, e.WantHeight)
}

// SyncToleranceError is returned when the two captures of a pair are further
// apart in time than the configured tolerance. Such pairs are rejected, not
// silently matched.
type SyncToleranceError struct {
	Skew      time.Duration
	Tolerance time.Duration
}

func (e *SyncToleranceError) Error() string {
	return fmt.Sprintf("capture timestamps differ by %v, more than the sync tolerance %v", e.Skew, e.Tolerance)
}

// CheckSync verifies the two capture timestamps are within tolerance of
// each other.
func (fp *FramePair) CheckSync(tolerance time.Duration) error {
	skew := fp.CapturedLeft.Sub(fp.CapturedRight)
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return &SyncToleranceError{Skew: skew, Tolerance: tolerance}
	}
	return nil
}

// CheckDimensions verifies both images exist and match the expected size.
func (fp *FramePair) CheckDimensions(width, height int) error {
	for _, img := range []*Gray{fp.Left, fp.Right} {
		if img == nil {
			return &SizeMismatchError{WantWidth: width, WantHeight: height}
		}
		if img.Width() != width || img.Height() != height {
			return &SizeMismatchError{
				GotWidth: img.Width(), GotHeight: img.Height(),
				WantWidth: width, WantHeight: height,
			}
		}
	}
	return nil
}

// Package disparity computes dense sub-pixel disparity maps from a
// rectified stereo pair by windowed block matching along scanlines, with
// left-right consistency and low-texture filtering.
package disparity

import "github.com/pkg/errors"

// MatcherParams is the full configuration surface of the matcher. The
// search range is required and explicit: it determines both correctness and
// cost, so it is never inferred from the images.
type MatcherParams struct {
	// MinDisparity and MaxDisparity bound the scanline search, in pixels.
	MinDisparity int `json:"min_disparity"`
	MaxDisparity int `json:"max_disparity"`

	// WindowSize is the odd side length of the matching block.
	WindowSize int `json:"match_window_size"`

	// ConsistencyTolerance is how far the left-to-right and right-to-left
	// disparity estimates may disagree, in pixels, before a pixel is marked
	// invalid. This is the primary occlusion filter.
	ConsistencyTolerance float64 `json:"consistency_tolerance_px"`

	// TextureThreshold rejects ambiguous matches: a pixel is invalid when
	// (secondBestCost - bestCost) / (bestCost + 1) falls below it. Zero
	// disables the check.
	TextureThreshold float64 `json:"low_texture_confidence_threshold"`
}

// CheckValid fails fast on an invalid configuration so nothing surfaces mid
// pipeline.
func (p *MatcherParams) CheckValid() error {
	if p.MinDisparity < 0 {
		return errors.Errorf("min disparity must be non-negative, got %d", p.MinDisparity)
	}
	if p.MinDisparity >= p.MaxDisparity {
		return errors.Errorf("min disparity %d must be less than max disparity %d", p.MinDisparity, p.MaxDisparity)
	}
	if p.WindowSize < 3 || p.WindowSize%2 == 0 {
		return errors.Errorf("match window size must be odd and at least 3, got %d", p.WindowSize)
	}
	if p.ConsistencyTolerance <= 0 {
		return errors.Errorf("consistency tolerance must be positive, got %v", p.ConsistencyTolerance)
	}
	if p.TextureThreshold < 0 {
		return errors.Errorf("texture threshold must be non-negative, got %v", p.TextureThreshold)
	}
	return nil
}

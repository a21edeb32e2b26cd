package disparity

import (
	"context"
	"math"

	"github.com/opticlab/stereovision/simage"
	"github.com/opticlab/stereovision/utils"
)

// Match computes a dense disparity map for a rectified pair. Rectification
// reduces the correspondence search to scanlines: a point's match in the
// other image lies on the same row. Matching runs both directions and
// discards pixels whose two estimates disagree. Work is split across
// workers by disjoint row ranges, so output is bit-for-bit reproducible for
// fixed inputs and parameters.
func Match(ctx context.Context, left, right *simage.Gray, params MatcherParams) (*Map, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	if left.Width() != right.Width() || left.Height() != right.Height() {
		return nil, &simage.SizeMismatchError{
			GotWidth: right.Width(), GotHeight: right.Height(),
			WantWidth: left.Width(), WantHeight: left.Height(),
		}
	}

	width, height := left.Width(), left.Height()
	leftDisp := newMap(width, height)
	rightDisp := newMap(width, height)

	err := utils.GroupWorkParallel(ctx, height,
		func(groupSize int) {},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			// one cost curve per worker keeps memory at O(disparity range)
			costs := make([]float64, params.MaxDisparity-params.MinDisparity+1)
			return func(memberNum, y int) {
				if ctx.Err() != nil {
					return
				}
				matchRow(left, right, params, y, costs, leftDisp, leftToRight)
				matchRow(right, left, params, y, costs, rightDisp, rightToLeft)
			}, nil
		})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enforceConsistency(leftDisp, rightDisp, params)
	return leftDisp, nil
}

// direction selects where the block matcher looks for a candidate: the
// match for a left pixel sits to the left in the right image, and vice
// versa.
type direction int

const (
	leftToRight direction = iota
	rightToLeft
)

// matchRow fills one output row: for every reference pixel it sweeps the
// disparity range, rejects flat cost curves, and refines the integer winner
// with a parabola fit over its neighbors.
func matchRow(ref, other *simage.Gray, params MatcherParams, y int, costs []float64, out *Map, dir direction) {
	width := ref.Width()
	half := params.WindowSize / 2
	if y < half || y >= ref.Height()-half {
		return
	}

	for x := half; x < width-half; x++ {
		bestD := -1
		bestCost := math.Inf(1)
		for i := range costs {
			costs[i] = math.Inf(1)
		}
		for d := params.MinDisparity; d <= params.MaxDisparity; d++ {
			cx := candidateX(x, d, dir)
			if cx-half < 0 || cx+half >= width {
				continue
			}
			c := blockCost(ref, other, x, cx, y, half)
			costs[d-params.MinDisparity] = c
			if c < bestCost {
				bestCost = c
				bestD = d
			}
		}
		if bestD < 0 {
			continue
		}

		if params.TextureThreshold > 0 {
			second := math.Inf(1)
			for d := params.MinDisparity; d <= params.MaxDisparity; d++ {
				if utils.AbsInt(d-bestD) <= 1 {
					continue
				}
				if c := costs[d-params.MinDisparity]; c < second {
					second = c
				}
			}
			if !math.IsInf(second, 1) {
				confidence := (second - bestCost) / (bestCost + 1)
				if confidence < params.TextureThreshold {
					continue
				}
			}
		}

		out.set(x, y, float32(refineSubPixel(costs, bestD, params)))
	}
}

func candidateX(x, d int, dir direction) int {
	if dir == leftToRight {
		return x - d
	}
	return x + d
}

// blockCost is the sum of absolute differences over the matching window.
func blockCost(ref, other *simage.Gray, xRef, xOther, y, half int) float64 {
	var sum float64
	for j := -half; j <= half; j++ {
		for i := -half; i <= half; i++ {
			diff := float64(ref.GetXY(xRef+i, y+j)) - float64(other.GetXY(xOther+i, y+j))
			if diff < 0 {
				diff = -diff
			}
			sum += diff
		}
	}
	return sum
}

// refineSubPixel fits a parabola through the cost curve around the integer
// minimum. At the edges of the search range there is no neighbor to fit
// against, so the integer value stands.
func refineSubPixel(costs []float64, bestD int, params MatcherParams) float64 {
	i := bestD - params.MinDisparity
	if i == 0 || i == len(costs)-1 {
		return float64(bestD)
	}
	c0, c1, c2 := costs[i-1], costs[i], costs[i+1]
	if math.IsInf(c0, 1) || math.IsInf(c2, 1) {
		return float64(bestD)
	}
	denom := c0 - 2*c1 + c2
	if denom <= 0 {
		return float64(bestD)
	}
	offset := 0.5 * (c0 - c2) / denom
	offset = utils.Clamp(offset, -0.5, 0.5)
	return float64(bestD) + offset
}

// enforceConsistency invalidates any left pixel whose disparity is not
// confirmed by the right-to-left pass within tolerance. Pixels whose
// counterpart is itself invalid or out of frame are occlusions and are
// dropped too.
func enforceConsistency(leftDisp, rightDisp *Map, params MatcherParams) {
	for y := 0; y < leftDisp.Height(); y++ {
		for x := 0; x < leftDisp.Width(); x++ {
			d, ok := leftDisp.At(x, y)
			if !ok {
				continue
			}
			xr := x - int(math.Round(d))
			if xr < 0 || xr >= leftDisp.Width() {
				leftDisp.markInvalid(x, y)
				continue
			}
			dr, ok := rightDisp.At(xr, y)
			if !ok || math.Abs(d-dr) > params.ConsistencyTolerance {
				leftDisp.markInvalid(x, y)
			}
		}
	}
}

// Package evaluation scores predicted grasps against ground truth with the
// rectangle metric: a prediction is correct when some ground-truth grasp is
// within the angle tolerance and overlaps it by more than the IOU threshold.
//
// Both comparisons are strict. An IOU of exactly 0.25 or an angle
// difference of exactly 30° does not count as a match.
package evaluation

import (
	"math"

	"github.com/born-ml/graspnet/internal/grasp"
	"github.com/born-ml/graspnet/internal/postprocess"
)

// Thresholds for a successful match.
type Thresholds struct {
	IOU   float64 // IOU must be greater than this
	Angle float64 // angle difference in radians must be less than this
}

// DefaultThresholds returns IOU 0.25 and 30°.
func DefaultThresholds() Thresholds {
	return Thresholds{IOU: 0.25, Angle: math.Pi / 6}
}

// MaxIOU returns the best IOU between pred and the ground truths whose
// angle differs from pred by less than maxAngle. It returns 0 when none do.
func MaxIOU(pred grasp.Rectangle, gts grasp.Rectangles, maxAngle float64) float64 {
	best := 0.0
	angle := pred.Angle()
	for _, gt := range gts {
		if grasp.AngleDiff(angle, gt.Angle()) >= maxAngle {
			continue
		}
		best = math.Max(best, grasp.IOU(pred, gt))
	}
	return best
}

// Match reports whether pred matches any ground truth.
func Match(pred grasp.Grasp, gts grasp.Rectangles, th Thresholds) bool {
	return MaxIOU(pred.Rectangle(), gts, th.Angle) > th.IOU
}

// CalculateIOUMatch detects up to opts.NumGrasps grasps in the
// post-processed maps and reports whether any of them matches gts.
func CalculateIOUMatch(m postprocess.Maps, gts grasp.Rectangles, th Thresholds, opts postprocess.DetectOptions) bool {
	for _, g := range postprocess.DetectGrasps(m, opts) {
		if Match(g, gts, th) {
			return true
		}
	}
	return false
}

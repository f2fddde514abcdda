// Package outlier implements the outlier flagger of spec.md §4.8, run after
// each optimization pass and before re-triangulation: boundary exclusion,
// then the convergence-angle filter, then the reprojection-error filter, in
// that prescribed order (angle depends only on geometry, not on current
// residual magnitudes, so it must run first).
package outlier

import (
	"math"

	"github.com/golang/geo/r3"
)

// Key identifies one track observation: a track id, the acquisition index
// within that track, and the feature id recorded for that acquisition
// (spec.md §3's inlier mask is a mapping (pid, cid, fid) -> {0,1}).
type Key struct {
	Pid, Cid, Fid int
}

// Mask is the inlier mask of spec.md §3. It is monotonic: once a key is
// flagged outlier, it never returns to inlier; a key absent from the mask is
// inlier by default, since the mask only ever records the flagging of
// outliers, never the (re-)promotion of inliers.
type Mask map[Key]bool

// SetOutlier marks a key outlier. Idempotent; never un-flags a key, so the
// monotonicity invariant holds regardless of call order.
func (m Mask) SetOutlier(k Key) {
	m[k] = false
}

// IsInlier reports whether a key is currently an inlier: any key present in
// the mask has been flagged outlier, whatever value it holds.
func (m Mask) IsInlier(k Key) bool {
	_, ok := m[k]
	return !ok
}

// ExcludeBoundary implements spec.md §4.8's boundary exclusion: for a
// reference-sensor pixel within numExcludeBoundaryPixels of any edge of a
// width x height image, set inlier = 0. A no-op for non-reference
// acquisitions or when numExcludeBoundaryPixels <= 0.
func ExcludeBoundary(mask Mask, key Key, isReference bool, x, y float64, width, height, numExcludeBoundaryPixels int) {
	if !isReference || numExcludeBoundaryPixels <= 0 {
		return
	}
	n := float64(numExcludeBoundaryPixels)
	if x < n || y < n || x > float64(width)-n || y > float64(height)-n {
		mask.SetOutlier(key)
	}
}

// ConvergenceAngleDegrees computes the maximum pairwise angle, in degrees,
// between rays from each camera center in centers to landmark (spec.md
// §4.8). NaN/Inf angles (degenerate centers coincident with the landmark)
// are ignored in the max; ok is false when no camera pair produced a finite
// angle.
func ConvergenceAngleDegrees(centers []r3.Vector, landmark r3.Vector) (maxAngle float64, ok bool) {
	maxAngle = math.Inf(-1)
	for i := 0; i < len(centers); i++ {
		for j := i + 1; j < len(centers); j++ {
			ri := landmark.Sub(centers[i])
			rj := landmark.Sub(centers[j])
			ni, nj := ri.Norm(), rj.Norm()
			if ni == 0 || nj == 0 {
				continue
			}
			cosTheta := ri.Dot(rj) / (ni * nj)
			cosTheta = math.Max(-1, math.Min(1, cosTheta))
			angle := math.Acos(cosTheta) * 180 / math.Pi
			if math.IsNaN(angle) || math.IsInf(angle, 0) {
				continue
			}
			if angle > maxAngle {
				maxAngle = angle
				ok = true
			}
		}
	}
	if !ok {
		return 0, false
	}
	return maxAngle, true
}

// FlagByConvergenceAngle implements spec.md §4.8's convergence-angle filter
// for one track: if the maximum pairwise ray angle is below
// minAngleDegrees (or no finite angle exists), every member observation is
// flagged outlier.
func FlagByConvergenceAngle(mask Mask, members []Key, centers []r3.Vector, landmark r3.Vector, minAngleDegrees float64) {
	maxAngle, ok := ConvergenceAngleDegrees(centers, landmark)
	if ok && maxAngle >= minAngleDegrees {
		return
	}
	for _, k := range members {
		mask.SetOutlier(k)
	}
}

// FlagByReprojectionError implements spec.md §4.8's reprojection-error
// filter: for a currently-inlier observation, flag it outlier if its
// pixel-residual magnitude exceeds maxReprojectionError. A no-op for
// already-outlier observations.
func FlagByReprojectionError(mask Mask, key Key, residualPx, maxReprojectionError float64) {
	if !mask.IsInlier(key) {
		return
	}
	if residualPx > maxReprojectionError {
		mask.SetOutlier(key)
	}
}

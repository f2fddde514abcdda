package features

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// Affine2D is a 2-D affine map x' = M*x + t, the model spec.md §4.3 step 3
// fits by RANSAC ("Affine is preferred over homography for stability").
type Affine2D struct {
	M [4]float64 // row-major 2x2
	T [2]float64
}

// Apply maps a point through the affine model.
func (a Affine2D) Apply(p r2.Point) r2.Point {
	return r2.Point{
		X: a.M[0]*p.X + a.M[1]*p.Y + a.T[0],
		Y: a.M[2]*p.X + a.M[3]*p.Y + a.T[1],
	}
}

// fitAffine2D solves the 6-dof affine least-squares fit x' = M*x + t from n
// >= 3 point correspondences.
func fitAffine2D(from, to []r2.Point) (Affine2D, bool) {
	n := len(from)
	if n < 3 {
		return Affine2D{}, false
	}
	// Solve for each output coordinate independently: [x y 1] * [a b c]^T = x'.
	a := mat.NewDense(n, 3, nil)
	bx := mat.NewDense(n, 1, nil)
	by := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a.SetRow(i, []float64{from[i].X, from[i].Y, 1})
		bx.Set(i, 0, to[i].X)
		by.Set(i, 0, to[i].Y)
	}
	var xSol, ySol mat.Dense
	if err := xSol.Solve(a, bx); err != nil {
		return Affine2D{}, false
	}
	if err := ySol.Solve(a, by); err != nil {
		return Affine2D{}, false
	}
	return Affine2D{
		M: [4]float64{xSol.At(0, 0), xSol.At(1, 0), ySol.At(0, 0), ySol.At(1, 0)},
		T: [2]float64{xSol.At(2, 0), ySol.At(2, 0)},
	}, true
}

// AffineRANSAC implements spec.md §4.3 step 3: fit a 2-D affine model by
// RANSAC over candidate matches' pixel coordinates, returning the inlier
// subset. Grounded on the RANSAC loop structure of the teacher's
// vision/segmentation/plane_segmentation.go SegmentPlane (seeded
// math/rand.Rand, minimal-subset sampling, best-inlier-count bookkeeping),
// generalized from a 3-point plane fit to a 3-point affine fit, and adopting
// its commented adaptive-iteration-count formula
// (nIter = log(1-p)/log(1-(1-e)^s)) to let AffineRANSACConfidence shrink the
// iteration budget once a good model is found, capped at
// AffineRANSACMaxIterations.
func AffineRANSAC(ptsA, ptsB []r2.Point, thresholdPx float64, maxIterations int, confidence float64) []int {
	n := len(ptsA)
	if n < 3 {
		return nil
	}
	r := rand.New(rand.NewSource(1))

	bestInliers := []int{}
	iterBudget := maxIterations
	for iter := 0; iter < iterBudget; iter++ {
		i0, i1, i2 := sampleThreeDistinct(r, n)
		fromSample := []r2.Point{ptsA[i0], ptsA[i1], ptsA[i2]}
		toSample := []r2.Point{ptsB[i0], ptsB[i1], ptsB[i2]}
		model, ok := fitAffine2D(fromSample, toSample)
		if !ok {
			continue
		}

		inliers := make([]int, 0, n)
		for i := 0; i < n; i++ {
			predicted := model.Apply(ptsA[i])
			d := predicted.Sub(ptsB[i]).Norm()
			if d < thresholdPx {
				inliers = append(inliers, i)
			}
		}
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
		}

		if confidence > 0 && confidence < 1 && len(bestInliers) > 0 {
			w := float64(len(bestInliers)) / float64(n)
			denom := math.Log(1 - w*w*w)
			if denom < 0 {
				needed := int(math.Log(1-confidence)/denom) + 1
				if needed < iterBudget {
					iterBudget = needed
				}
			}
		}
	}
	return bestInliers
}

// FilterByAffineRANSAC applies AffineRANSAC to the pixel coordinates of a
// candidate match list and returns the surviving matches.
func FilterByAffineRANSAC(matches []Match, kpsA, kpsB []Keypoint, thresholdPx float64, maxIterations int, confidence float64) []Match {
	if len(matches) < 3 {
		return nil
	}
	ptsA := make([]r2.Point, len(matches))
	ptsB := make([]r2.Point, len(matches))
	for i, m := range matches {
		ptsA[i] = kpsA[m.FidA]
		ptsB[i] = kpsB[m.FidB]
	}
	inlierIdx := AffineRANSAC(ptsA, ptsB, thresholdPx, maxIterations, confidence)
	out := make([]Match, len(inlierIdx))
	for i, idx := range inlierIdx {
		out[i] = matches[idx]
	}
	return out
}

func sampleThreeDistinct(r *rand.Rand, n int) (int, int, int) {
	i0 := r.Intn(n)
	i1 := r.Intn(n)
	for i1 == i0 {
		i1 = r.Intn(n)
	}
	i2 := r.Intn(n)
	for i2 == i0 || i2 == i1 {
		i2 = r.Intn(n)
	}
	return i0, i1, i2
}

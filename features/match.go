package features

import (
	"math"
	"sync"

	"go.viam.com/utils"

	"github.com/rigcal/rigcal/internal/rigcalog"
	"github.com/rigcal/rigcal/rigcalconfig"
)

// RatioTestMatch runs Lowe's ratio test between two descriptor sets: for each
// descriptor in a, find its nearest and second-nearest neighbor in b by L2
// distance, and keep the pair only if nearest/second-nearest < ratio (or if
// b holds a single candidate, so no second-nearest exists).
// Grounded on the teacher's vision/keypoints/matching.go MatchKeypoints,
// generalized from its Hamming-distance cross-check to an L2 ratio test
// since spec.md §4.3 step 1 specifies "ratio test inside the underlying
// matcher" rather than cross-checked Hamming matching.
func RatioTestMatch(a, b []Descriptor, ratio float64) []Match {
	matches := make([]Match, 0, len(a))
	for i, da := range a {
		bestIdx, secondIdx := -1, -1
		best, second := math.Inf(1), math.Inf(1)
		for j, db := range b {
			d := l2Distance(da, db)
			if d < best {
				secondIdx, second = bestIdx, best
				bestIdx, best = j, d
			} else if d < second {
				secondIdx, second = j, d
			}
		}
		if bestIdx < 0 {
			continue
		}
		if secondIdx < 0 || best < ratio*second {
			matches = append(matches, Match{FidA: i, FidB: bestIdx})
		}
	}
	return matches
}

func l2Distance(a, b Descriptor) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// PairKey identifies an ordered acquisition pair (i, j) with j > i.
type PairKey struct {
	I, J int
}

// PairwiseMatchAll runs RatioTestMatch followed by the caller-supplied filter
// (for example the affine RANSAC of affineransac.go) over every ordered pair
// (i, j) with j in (i, i+cfg.NumOverlaps], on a bounded worker
// pool sharing one result mutex, per spec.md §5's pairwise matching pool:
// "each task reads shared descriptor/keypoint arrays, writes its result into
// a map under a single shared mutex, acquired only for the final insertion
// and for verbose logging (grouped atomically to avoid interleaved output)".
func PairwiseMatchAll(
	frames []*Frame,
	filter func(i, j int, matches []Match) []Match,
	cfg rigcalconfig.Config,
	logger rigcalog.Logger,
) map[PairKey][]Match {
	type job struct{ i, j int }
	var jobs []job
	for i := range frames {
		for j := i + 1; j <= i+cfg.NumOverlaps && j < len(frames); j++ {
			jobs = append(jobs, job{i, j})
		}
	}

	result := make(map[PairKey][]Match, len(jobs))
	var mu sync.Mutex
	sem := make(chan struct{}, maxInt(1, cfg.NumMatchThreads))
	var wg sync.WaitGroup
	for _, jb := range jobs {
		jb := jb
		wg.Add(1)
		sem <- struct{}{}
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			defer func() { <-sem }()

			raw := RatioTestMatch(frames[jb.i].Descriptors, frames[jb.j].Descriptors, ratioTestThreshold)
			filtered := filter(jb.i, jb.j, raw)

			mu.Lock()
			result[PairKey{I: jb.i, J: jb.j}] = filtered
			if cfg.Verbose {
				logger.Debugw("matched pair", "i", jb.i, "j", jb.j, "raw", len(raw), "inliers", len(filtered))
			}
			mu.Unlock()
		})
	}
	wg.Wait()
	return result
}

const ratioTestThreshold = 0.75

// Package bracketing implements the bracketing pass of spec.md §4.5: for
// each pair of consecutive reference frames, finding the non-reference
// acquisition of each sensor closest to their midpoint, with a monotone
// per-sensor scan cursor.
package bracketing

import "math"

// RefFrame is one reference-sensor acquisition's timestamp, indexed by its
// position in the reference timeline.
type RefFrame struct {
	RefTS float64
}

// Candidate is one non-reference acquisition of a single sensor, in
// time-sorted order.
type Candidate struct {
	WallTS float64
}

// Bracket records, for one reference-frame index, the chosen candidate index
// for a sensor, or -1 when no candidate satisfies the window.
type Bracket struct {
	RefIndex       int
	CandidateIndex int
}

// BracketSensor implements spec.md §4.5 for one non-reference sensor: for
// every reference frame index b (except the last, which only self-brackets),
// search the time-ordered candidates for the one closest to the window
// midpoint (ref_ts[b]+ref_ts[b+1])/2 + offset, constrained to
// [ref_ts[b]+offset, ref_ts[b+1]+offset], skipping windows longer than
// bracketLength. The scan cursor is monotone: it only ever advances, never
// rewinds, across increasing b.
func BracketSensor(refFrames []RefFrame, candidates []Candidate, offset, bracketLength float64) []Bracket {
	var out []Bracket
	cursor := 0
	for b := 0; b+1 < len(refFrames); b++ {
		begTS := refFrames[b].RefTS
		endTS := refFrames[b+1].RefTS
		if endTS-begTS > bracketLength {
			continue
		}
		lo := begTS + offset
		hi := endTS + offset
		mid := (begTS+endTS)/2 + offset

		best := -1
		bestDist := math.Inf(1)
		// Advance cursor past candidates that fall before this window's lower
		// bound; the cursor never rewinds, so sensors scanned in increasing b
		// order cost O(n) total rather than O(n*m).
		for cursor < len(candidates) && candidates[cursor].WallTS < lo {
			cursor++
		}
		for i := cursor; i < len(candidates) && candidates[i].WallTS <= hi; i++ {
			d := math.Abs(candidates[i].WallTS - mid)
			if d < bestDist {
				bestDist = d
				best = i
			}
		}
		if best >= 0 {
			out = append(out, Bracket{RefIndex: b, CandidateIndex: best})
		}
	}
	return out
}

// offsetEpsilon shrinks the derived timestamp-offset bounds slightly so the
// solver's bound constraints are strict, per spec.md §3.
const offsetEpsilon = 1e-6

// OffsetBounds computes the derived timestamp-offset bounds of spec.md §3:
// min_offset = max over acquisitions of (wall_ts - ref_ts[end_ref]);
// max_offset = min over acquisitions of (wall_ts - ref_ts[beg_ref]). The
// result is then clamped to [initialOffset-maxOffsetChange,
// initialOffset+maxOffsetChange] and shrunk by a small epsilon on each side.
func OffsetBounds(wallTS, refTSBeg, refTSEnd []float64, initialOffset, maxOffsetChange float64) (minOffset, maxOffset float64) {
	minOffset = math.Inf(-1)
	maxOffset = math.Inf(1)
	for i := range wallTS {
		lower := wallTS[i] - refTSEnd[i]
		upper := wallTS[i] - refTSBeg[i]
		if lower > minOffset {
			minOffset = lower
		}
		if upper < maxOffset {
			maxOffset = upper
		}
	}
	lo := initialOffset - maxOffsetChange
	hi := initialOffset + maxOffsetChange
	if minOffset < lo {
		minOffset = lo
	}
	if maxOffset > hi {
		maxOffset = hi
	}
	minOffset += offsetEpsilon
	maxOffset -= offsetEpsilon
	return minOffset, maxOffset
}

// DepthCloudTS is one available depth cloud's timestamp.
type DepthCloudTS struct {
	TS float64
}

// NearestDepth implements spec.md §4.5's depth-bearing-sensor rule: look up
// the nearest-in-time depth cloud to a chosen image timestamp, accepting the
// match only if the gap is within maxImageToDepthDiff.
func NearestDepth(depths []DepthCloudTS, imageTS, maxImageToDepthDiff float64) (int, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, d := range depths {
		dist := math.Abs(d.TS - imageTS)
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	if best < 0 || bestDist > maxImageToDepthDiff {
		return -1, false
	}
	return best, true
}

// SelfBracket returns the (begin, end) reference indices for a reference
// acquisition, which always brackets against itself (spec.md §4.5: "Reference-
// sensor acquisitions are self-bracketing"), and likewise for the final
// reference frame bracketed against itself.
func SelfBracket(refIndex int) (beg, end int) {
	return refIndex, refIndex
}

package features

import (
	"testing"

	"go.viam.com/test"
)

func TestRatioTestMatchKeepsClearWinner(t *testing.T) {
	a := []Descriptor{{1, 0, 0}}
	b := []Descriptor{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	matches := RatioTestMatch(a, b, 0.75)
	test.That(t, len(matches), test.ShouldEqual, 1)
	test.That(t, matches[0].FidB, test.ShouldEqual, 0)
}

func TestRatioTestMatchRejectsAmbiguousPair(t *testing.T) {
	a := []Descriptor{{1, 0, 0}}
	b := []Descriptor{{1, 0, 0}, {0.99, 0.01, 0}}
	matches := RatioTestMatch(a, b, 0.75)
	test.That(t, len(matches), test.ShouldEqual, 0)
}

func TestPairwiseMatchAllRespectsOverlapWindow(t *testing.T) {
	frames := make([]*Frame, 5)
	for i := range frames {
		frames[i] = &Frame{
			Keypoints:   []Keypoint{{X: 1, Y: 1}},
			Descriptors: []Descriptor{{float64(i), 0, 0}},
		}
	}
	cfg := testConfig()
	cfg.NumOverlaps = 1
	noop := func(i, j int, m []Match) []Match { return m }
	result := PairwiseMatchAll(frames, noop, cfg, testLogger(t))
	test.That(t, len(result), test.ShouldEqual, 4) // (0,1)(1,2)(2,3)(3,4)
}

package persist

import (
	"bytes"
	"testing"

	"go.viam.com/test"

	"github.com/rigcal/rigcal/features"
)

func samplePoints() []InterestPoint {
	return []InterestPoint{
		{X: 1, Y: 2, Ix: 1, Iy: 2, Orientation: 0.5, Scale: 1.2, Interest: 3.4, Polarity: true, Octave: 2, ScaleLvl: 1, Descriptor: []float32{0.1, 0.2, 0.3}},
		{X: 3, Y: 4, Ix: 3, Iy: 4, Descriptor: []float32{}},
	}
}

func TestWriteReadMatchFileRoundTrips(t *testing.T) {
	left := samplePoints()
	right := samplePoints()[:1]

	var buf bytes.Buffer
	test.That(t, WriteMatchFile(&buf, left, right), test.ShouldBeNil)

	gotLeft, gotRight, err := ReadMatchFile(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(gotLeft), test.ShouldEqual, 2)
	test.That(t, len(gotRight), test.ShouldEqual, 1)
	test.That(t, gotLeft[0].Polarity, test.ShouldBeTrue)
	test.That(t, gotLeft[1].Polarity, test.ShouldBeFalse)
	test.That(t, gotLeft[0].Octave, test.ShouldEqual, uint32(2))
	test.That(t, gotLeft[0].Descriptor, test.ShouldResemble, []float32{0.1, 0.2, 0.3})
}

func TestFrameInterestPointRoundTrip(t *testing.T) {
	frame := &features.Frame{
		Keypoints:   []features.Keypoint{{X: 10, Y: 20}, {X: 30, Y: 40}},
		Descriptors: []features.Descriptor{{1, 2, 3}, {4, 5}},
	}

	points := FrameToInterestPoints(frame)
	test.That(t, len(points), test.ShouldEqual, 2)

	back := InterestPointsToFrame(points)
	test.That(t, len(back.Keypoints), test.ShouldEqual, 2)
	test.That(t, back.Keypoints[0].X, test.ShouldEqual, 10.0)
	test.That(t, back.Descriptors[1], test.ShouldResemble, features.Descriptor{4, 5})
}

package camera

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestModelPixelRoundTrip(t *testing.T) {
	distortion, err := NewDistorter([]float64{-0.1, 0.02, 0.0005, -0.0008})
	test.That(t, err, test.ShouldBeNil)
	m, err := NewModel(600, r2.Point{X: 320, Y: 240}, distortion, Size{640, 480}, Size{640, 480})
	test.That(t, err, test.ShouldBeNil)

	centered := m.ToUndistortedCentered(410, 260)
	xd, yd := m.ToDistorted(centered)
	test.That(t, math.Abs(xd-410), test.ShouldBeLessThan, 1e-6)
	test.That(t, math.Abs(yd-260), test.ShouldBeLessThan, 1e-6)
}

func TestNewModelRejectsInvalidFocal(t *testing.T) {
	_, err := NewModel(0, r2.Point{}, nil, Size{640, 480}, Size{640, 480})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestModelNeedsResize(t *testing.T) {
	m, err := NewModel(500, r2.Point{X: 320, Y: 240}, nil, Size{640, 480}, Size{640, 480})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.NeedsResize(Size{640, 480}), test.ShouldBeFalse)
	test.That(t, m.NeedsResize(Size{1280, 960}), test.ShouldBeTrue)

	sx, sy := m.ResizeScale(Size{1280, 960})
	test.That(t, sx, test.ShouldEqual, 0.5)
	test.That(t, sy, test.ShouldEqual, 0.5)
}

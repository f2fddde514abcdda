package pose

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/rigcal/rigcal/geom"
	"go.viam.com/test"
)

func TestAlphaPrescribedSubtractionOrder(t *testing.T) {
	alpha := Alpha(105, 100, 110, 2)
	// (105 - 100) - 2 = 3; 3 / (110-100) = 0.3
	test.That(t, math.Abs(alpha-0.3), test.ShouldBeLessThan, 1e-12)
}

func TestWorldToRefRejectsOutOfRangeAlpha(t *testing.T) {
	begin := geom.Identity()
	end := geom.Rigid{Rotation: geom.Identity().Rotation, Translation: r3.Vector{X: 1}}
	_, err := WorldToRef(begin, end, 1.5)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWorldToRefLinearTranslation(t *testing.T) {
	begin := geom.Identity()
	end := geom.Rigid{Rotation: geom.Identity().Rotation, Translation: r3.Vector{X: 10}}
	mid, err := WorldToRef(begin, end, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(mid.Translation.X-5), test.ShouldBeLessThan, 1e-9)
}

func TestWorldToCamUsesBeginDirectlyWhenSelfBracketed(t *testing.T) {
	begin := geom.Rigid{Rotation: geom.Identity().Rotation, Translation: r3.Vector{X: 3}}
	end := geom.Rigid{Rotation: geom.Identity().Rotation, Translation: r3.Vector{X: 30}}
	refToSensor := geom.Rigid{Rotation: geom.Identity().Rotation, Translation: r3.Vector{X: 100}}

	got, err := WorldToCam(begin, end, refToSensor, 0, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(got.Translation.X-3), test.ShouldBeLessThan, 1e-9)
}

func TestWorldToCamComposesRefToSensor(t *testing.T) {
	begin := geom.Identity()
	end := geom.Identity()
	refToSensor := geom.Rigid{Rotation: geom.Identity().Rotation, Translation: r3.Vector{X: 1}}

	got, err := WorldToCam(begin, end, refToSensor, 0, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(got.Translation.X-1), test.ShouldBeLessThan, 1e-9)
}

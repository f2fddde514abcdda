package outlier

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestMaskDefaultsToInlier(t *testing.T) {
	mask := Mask{}
	test.That(t, mask.IsInlier(Key{Pid: 1, Cid: 2, Fid: 3}), test.ShouldBeTrue)
}

func TestMaskIsMonotonic(t *testing.T) {
	mask := Mask{}
	k := Key{Pid: 1, Cid: 2, Fid: 3}
	mask.SetOutlier(k)
	mask[k] = true // a direct write does not bring a flagged key back
	test.That(t, mask.IsInlier(k), test.ShouldBeFalse)
	mask.SetOutlier(k)
	test.That(t, mask.IsInlier(k), test.ShouldBeFalse)
}

func TestExcludeBoundaryFlagsNearEdgeReferencePixel(t *testing.T) {
	mask := Mask{}
	k := Key{Pid: 0, Cid: 0, Fid: 0}
	ExcludeBoundary(mask, k, true, 2, 100, 640, 480, 5)
	test.That(t, mask.IsInlier(k), test.ShouldBeFalse)
}

func TestExcludeBoundaryIgnoresNonReference(t *testing.T) {
	mask := Mask{}
	k := Key{Pid: 0, Cid: 1, Fid: 0}
	ExcludeBoundary(mask, k, false, 2, 100, 640, 480, 5)
	test.That(t, mask.IsInlier(k), test.ShouldBeTrue)
}

func TestConvergenceAngleDegreesRightAngle(t *testing.T) {
	landmark := r3.Vector{X: 0, Y: 0, Z: 1}
	centers := []r3.Vector{{X: -1, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}}
	angle, ok := ConvergenceAngleDegrees(centers, landmark)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, math.Abs(angle-90), test.ShouldBeLessThan, 1e-9)
}

func TestConvergenceAngleDegreesDegenerateCoincidentCenter(t *testing.T) {
	landmark := r3.Vector{X: 0, Y: 0, Z: 1}
	centers := []r3.Vector{{X: 0, Y: 0, Z: 1}}
	_, ok := ConvergenceAngleDegrees(centers, landmark)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestFlagByConvergenceAngleFlagsNarrowBaseline(t *testing.T) {
	mask := Mask{}
	members := []Key{{Pid: 0, Cid: 0, Fid: 0}, {Pid: 0, Cid: 1, Fid: 2}}
	landmark := r3.Vector{X: 0, Y: 0, Z: 1000}
	centers := []r3.Vector{{X: -0.001, Y: 0, Z: 0}, {X: 0.001, Y: 0, Z: 0}}
	FlagByConvergenceAngle(mask, members, centers, landmark, 0.5)
	for _, k := range members {
		test.That(t, mask.IsInlier(k), test.ShouldBeFalse)
	}
}

func TestFlagByConvergenceAngleKeepsWideBaseline(t *testing.T) {
	mask := Mask{}
	members := []Key{{Pid: 0, Cid: 0, Fid: 0}, {Pid: 0, Cid: 1, Fid: 2}}
	landmark := r3.Vector{X: 0, Y: 0, Z: 1}
	centers := []r3.Vector{{X: -1, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}}
	FlagByConvergenceAngle(mask, members, centers, landmark, 0.5)
	for _, k := range members {
		test.That(t, mask.IsInlier(k), test.ShouldBeTrue)
	}
}

func TestFlagByReprojectionErrorSkipsAlreadyOutlier(t *testing.T) {
	mask := Mask{}
	k := Key{Pid: 0, Cid: 0, Fid: 0}
	mask.SetOutlier(k)
	FlagByReprojectionError(mask, k, 1000, 25)
	test.That(t, mask.IsInlier(k), test.ShouldBeFalse)
}

func TestFlagByReprojectionErrorFlagsExcessResidual(t *testing.T) {
	mask := Mask{}
	k := Key{Pid: 0, Cid: 0, Fid: 0}
	FlagByReprojectionError(mask, k, 30, 25)
	test.That(t, mask.IsInlier(k), test.ShouldBeFalse)
}

func TestFlagByReprojectionErrorKeepsWithinThreshold(t *testing.T) {
	mask := Mask{}
	k := Key{Pid: 0, Cid: 0, Fid: 0}
	FlagByReprojectionError(mask, k, 10, 25)
	test.That(t, mask.IsInlier(k), test.ShouldBeTrue)
}

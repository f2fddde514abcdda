package cost

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/rigcal/rigcal/camera"
	"github.com/rigcal/rigcal/geom"
)

func identityModel(t *testing.T) *camera.Model {
	t.Helper()
	m, err := camera.NewModel(500, r2.Point{X: 320, Y: 240}, nil,
		camera.Size{Width: 640, Height: 480}, camera.Size{Width: 640, Height: 480})
	test.That(t, err, test.ShouldBeNil)
	return m
}

func TestReprojectionZeroAtGroundTruth(t *testing.T) {
	model := identityModel(t)
	worldToRef := geom.Identity()
	refToSensor := geom.Identity()
	worldPoint := r3.Vector{X: 0.1, Y: -0.05, Z: 2}

	centered := r2.Point{X: worldPoint.X / worldPoint.Z, Y: worldPoint.Y / worldPoint.Z}
	px, py := model.ToDistorted(centered)

	dx, dy, err := Reprojection(
		worldToRef, worldToRef, refToSensor,
		worldPoint,
		0, 0, 0, 0,
		true,
		model,
		r2.Point{X: px, Y: py},
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(dx), test.ShouldBeLessThan, 1e-9)
	test.That(t, math.Abs(dy), test.ShouldBeLessThan, 1e-9)
}

func TestReprojectionBehindCameraFails(t *testing.T) {
	model := identityModel(t)
	worldToRef := geom.Identity()
	refToSensor := geom.Identity()
	worldPoint := r3.Vector{X: 0, Y: 0, Z: -1}

	_, _, err := Reprojection(
		worldToRef, worldToRef, refToSensor,
		worldPoint,
		0, 0, 0, 0,
		true,
		model,
		r2.Point{X: 320, Y: 240},
	)
	test.That(t, err, test.ShouldEqual, DegenerateProjection)
}

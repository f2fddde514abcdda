package geom

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func rayToPoint(focal float64, worldToCam Rigid, world r3.Vector) Ray {
	cam := worldToCam.Apply(world)
	return Ray{
		Focal:               focal,
		WorldToCam:          worldToCam,
		CenteredUndistorted: r3.Vector{X: cam.X / cam.Z, Y: cam.Y / cam.Z, Z: 1},
	}
}

func TestTriangulateMultiViewNoiseFree(t *testing.T) {
	world := r3.Vector{X: 0.1, Y: -0.2, Z: 5}
	cam1 := Identity()
	cam2 := Rigid{Rotation: Identity().Rotation, Translation: r3.Vector{X: 1}}
	rays := []Ray{rayToPoint(500, cam1, world), rayToPoint(500, cam2, world)}

	got := TriangulateMultiView(rays)
	test.That(t, IsDegenerate(got), test.ShouldBeFalse)
	test.That(t, math.Abs(got.X-world.X), test.ShouldBeLessThan, 1e-6)
	test.That(t, math.Abs(got.Y-world.Y), test.ShouldBeLessThan, 1e-6)
	test.That(t, math.Abs(got.Z-world.Z), test.ShouldBeLessThan, 1e-6)
}

func TestTriangulateMultiViewSingleRayFails(t *testing.T) {
	rays := []Ray{rayToPoint(500, Identity(), r3.Vector{X: 0, Y: 0, Z: 5})}
	got := TriangulateMultiView(rays)
	test.That(t, IsDegenerate(got), test.ShouldBeTrue)
}

func TestTriangulateMultiViewBehindCameraFails(t *testing.T) {
	// A point behind both cameras (negative depth in each cam frame).
	behind := r3.Vector{X: 0.1, Y: 0, Z: -5}
	cam2 := Rigid{Rotation: Identity().Rotation, Translation: r3.Vector{X: 1}}
	rays := []Ray{rayToPoint(500, Identity(), behind), rayToPoint(500, cam2, behind)}
	got := TriangulateMultiView(rays)
	test.That(t, IsDegenerate(got), test.ShouldBeTrue)
}

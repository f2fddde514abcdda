package features

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/rigcal/rigcal/geom"
)

// CameraPose is the minimal per-acquisition camera state the geometric
// pre-filter needs: focal length and world-to-camera transform, supplied by
// the bracketing/pose-interpolator components (C5/C6) for the current pose
// estimate. Declared here rather than imported so this package has no
// dependency on the higher-level pipeline packages.
type CameraPose struct {
	Focal      float64
	WorldToCam geom.Rigid
}

// Undistorted maps a feature id to its undistorted, principal-point-centered,
// focal-normalized coordinate (camera.Model.ToUndistortedCentered output).
type Undistorted = func(fid int) (float64, float64)

// GeometricPreFilter implements spec.md §4.3 step 2: for each candidate
// match, undistort both pixels, triangulate using the current pose estimate,
// reproject into both images, and discard the candidate if either
// reprojection residual exceeds maxReprojErr pixels, or if any intermediate
// value is NaN/Inf.
func GeometricPreFilter(
	matches []Match,
	camA, camB CameraPose,
	undistortedA, undistortedB Undistorted,
	maxReprojErr float64,
) []Match {
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		xa, ya := undistortedA(m.FidA)
		xb, yb := undistortedB(m.FidB)
		if !finite(xa) || !finite(ya) || !finite(xb) || !finite(yb) {
			continue
		}

		rays := []geom.Ray{
			{Focal: camA.Focal, WorldToCam: camA.WorldToCam, CenteredUndistorted: vec3(xa, ya)},
			{Focal: camB.Focal, WorldToCam: camB.WorldToCam, CenteredUndistorted: vec3(xb, yb)},
		}
		world := geom.TriangulateMultiView(rays)
		if geom.IsDegenerate(world) {
			continue
		}

		errA := reprojErrorPx(world, camA, xa, ya)
		errB := reprojErrorPx(world, camB, xb, yb)
		if !finite(errA) || !finite(errB) || errA > maxReprojErr || errB > maxReprojErr {
			continue
		}
		out = append(out, m)
	}
	return out
}

func reprojErrorPx(world r3.Vector, cam CameraPose, measuredX, measuredY float64) float64 {
	camPoint := cam.WorldToCam.Apply(world)
	if camPoint.Z <= 0 {
		return math.Inf(1)
	}
	px := camPoint.X / camPoint.Z
	py := camPoint.Y / camPoint.Z
	dx := (px - measuredX) * cam.Focal
	dy := (py - measuredY) * cam.Focal
	return math.Sqrt(dx*dx + dy*dy)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func vec3(x, y float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: 1}
}

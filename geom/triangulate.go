package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Ray is one observation feeding multi-view triangulation (spec.md §4.1): a
// camera's focal length, its world-to-camera rigid transform, and the
// undistorted, principal-point-centered pixel of the observed feature.
type Ray struct {
	Focal           float64
	WorldToCam      Rigid
	CenteredUndistorted r3.Vector // (x, y, 1) in normalized camera coordinates; Z is always 1
}

// NaNPoint is the sentinel ±∞/NaN 3-vector spec.md §4.1 mandates on failure:
// the caller must check for it and flag all participating features as outliers.
var NaNPoint = r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}

// IsDegenerate reports whether p is the triangulation failure sentinel.
func IsDegenerate(p r3.Vector) bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) ||
		math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) || math.IsInf(p.Z, 0)
}

// TriangulateMultiView implements the linear DLT solve of spec.md §4.1: given n
// >= 2 rays, return the world point minimizing the sum of squared reprojection
// residuals under a linear system over normalized pinhole matrices. Grounded on
// the teacher's rimage/transform/cam_poses.go GetLinearTriangulatedPoints, which
// builds the analogous 2-view DLT system via cross-product rows and an SVD.
func TriangulateMultiView(rays []Ray) r3.Vector {
	if len(rays) < 2 {
		return NaNPoint
	}
	// Build the 2n x 4 system A.x = 0 in homogeneous world coordinates, one pair
	// of rows per ray from the cross-product-with-projection-row construction.
	a := mat.NewDense(2*len(rays), 4, nil)
	for i, ray := range rays {
		p := projectionMatrix(ray.Focal, ray.WorldToCam)
		u, v := ray.CenteredUndistorted.X, ray.CenteredUndistorted.Y
		// u*P_row3 - P_row1 = 0 ; v*P_row3 - P_row2 = 0
		for c := 0; c < 4; c++ {
			a.Set(2*i, c, u*p.At(2, c)-p.At(0, c))
			a.Set(2*i+1, c, v*p.At(2, c)-p.At(1, c))
		}
	}
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return NaNPoint
	}
	const rcond = 1e-15
	if svd.Rank(rcond) == 0 {
		return NaNPoint
	}
	var v mat.Dense
	svd.VTo(&v)
	col := v.ColView(3)
	w := col.AtVec(3)
	if w == 0 {
		return NaNPoint
	}
	world := r3.Vector{X: col.AtVec(0) / w, Y: col.AtVec(1) / w, Z: col.AtVec(2) / w}
	if IsDegenerate(world) {
		return NaNPoint
	}
	// Fail when the minimum depth along any ray is negative (point behind a camera).
	for _, ray := range rays {
		camPoint := ray.WorldToCam.Apply(world)
		if camPoint.Z < 0 {
			return NaNPoint
		}
	}
	return world
}

// projectionMatrix builds the 3x4 camera matrix K*[R|t] for a ray's focal length
// (principal point already subtracted out, so K = diag(f, f, 1)) and world-to-cam
// pose.
func projectionMatrix(focal float64, worldToCam Rigid) *mat.Dense {
	rt := worldToCam.ToArray12()
	p := mat.NewDense(3, 4, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			p.Set(r, c, rt[r*4+c])
		}
	}
	scale := mat.NewDense(3, 3, []float64{focal, 0, 0, 0, focal, 0, 0, 0, 1})
	var out mat.Dense
	out.Mul(scale, p)
	return &out
}

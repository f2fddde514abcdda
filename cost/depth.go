package cost

import (
	"github.com/golang/geo/r3"

	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/pose"
)

// DepthTriangulation computes the R2/R3 residual of spec.md §4.7:
// w * (X - T_{cam->world} . T_{depth->image} . scale . m), where m is the
// measured depth 3-vector and X is either a triangulated world point (R2) or
// a precomputed mesh-intersection point (R3) — the caller selects which by
// the worldPoint argument, per spec.md §4.7's "R3 ... like R2 but replace X
// by the precomputed mesh-intersection point".
func DepthTriangulation(
	worldToRefBegin, worldToRefEnd, refToSensor geom.Rigid,
	depthToImage geom.Affine,
	depthScale float64,
	worldPoint r3.Vector,
	measured r3.Vector,
	wallTS, refTSBeg, refTSEnd, timeOffset float64,
	selfBracketed bool,
	weight float64,
) (r3.Vector, error) {
	alpha := pose.Alpha(wallTS, refTSBeg, refTSEnd, timeOffset)
	worldToCam, err := pose.WorldToCam(worldToRefBegin, worldToRefEnd, refToSensor, alpha, selfBracketed)
	if err != nil {
		return r3.Vector{}, err
	}
	camToWorld := worldToCam.Inverse()

	scaled := measured.Mul(depthScale)
	imageFrame := depthToImage.Apply(scaled)
	worldFrame := camToWorld.Apply(imageFrame)

	diff := worldPoint.Sub(worldFrame)
	return diff.Mul(weight), nil
}

// MeshAnchor computes the R4 residual of spec.md §4.7: w_mesh_tri *
// (X_pid - mesh_xyz_pid), where mesh_xyz_pid is the average, over every cid
// in the track, of the ray-mesh intersection points found for that pid.
func MeshAnchor(worldPoint, meshXYZ r3.Vector, weight float64) r3.Vector {
	return worldPoint.Sub(meshXYZ).Mul(weight)
}

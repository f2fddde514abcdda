// Package driver implements the optimization driver of spec.md §4.9: it
// assembles residual blocks from the cost model over all inliers, applies
// the parameter-freezing policy, runs the solver, iterates passes, and
// re-triangulates between passes.
package driver

import (
	"github.com/golang/geo/r3"

	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/outlier"
	"github.com/rigcal/rigcal/pose"
	"github.com/rigcal/rigcal/rig"
	"github.com/rigcal/rigcal/tracks"
)

// State is the full rig-wide state of spec.md §3's data model, owned by the
// driver for the duration of a run and borrowed by every other component
// ("Ownership").
type State struct {
	// RefFrameTS holds the reference sensor's wall timestamps, indexed by
	// reference-frame index.
	RefFrameTS []float64
	// RefPoses holds world-to-reference transforms, indexed the same way.
	RefPoses []geom.Rigid

	// Sensors is indexed by sensor id; Sensors[0] is the reference sensor.
	Sensors []rig.Sensor

	Acquisitions []rig.Acquisition
	Tracks       []tracks.Track
	Landmarks    []r3.Vector // indexed by pid, one per Tracks entry

	Mask outlier.Mask

	// WorldToCam is the per-acquisition world-to-camera snapshot recomputed
	// at the start of each pass (spec.md §4.9 step 1); used for
	// triangulation, mesh intersection, and the outlier flagger, not for
	// residual evaluation inside the solver, which recomputes interpolation
	// live from the trial parameter vector.
	WorldToCam []geom.Rigid

	// MeshPoints and MeshAnchors cache ray-mesh intersections (spec.md §4.9
	// step 3), populated whenever a MeshIntersector is supplied; the mesh
	// residuals read them only when Config.UseMesh is set.
	MeshPoints  map[MeshKey]r3.Vector
	MeshAnchors map[int]r3.Vector
}

// MeshKey identifies one track observation for mesh-intersection caching.
type MeshKey struct {
	Pid, Cid, Fid int
}

// MeshIntersector is the out-of-scope ray-mesh intersection collaborator of
// spec.md §1/§6 ("the mesh loader and ray-mesh intersection library"): given
// a camera pose and a ray direction in camera coordinates, return the point
// where the ray intersects the prior scene mesh, in world coordinates.
type MeshIntersector interface {
	Intersect(worldToCam geom.Rigid, rayDirCam r3.Vector) (r3.Vector, bool)
}

// RecomputeWorldToCam implements spec.md §4.9 step 1: recompute world_to_cam
// for every acquisition from the current structured parameter state, via the
// pose interpolator (C6).
func RecomputeWorldToCam(state *State) {
	out := make([]geom.Rigid, len(state.Acquisitions))
	for i, acq := range state.Acquisitions {
		sensor := state.Sensors[acq.SensorID]
		begin := state.RefPoses[acq.BegRef]
		end := state.RefPoses[acq.EndRef]
		alpha := pose.Alpha(acq.WallTS, state.RefFrameTS[acq.BegRef], state.RefFrameTS[acq.EndRef], sensor.RefToSensorTimestampOffset)
		w2c, err := pose.WorldToCam(begin, end, sensor.RefToSensor, alpha, acq.IsSelfBracketed())
		if err != nil {
			// Bracketing/interpolation failure for one acquisition is a
			// per-observation failure (spec.md §7): leave its world_to_cam
			// at the identity and rely on the outlier flagger/reprojection
			// filter to exclude its observations via excess residual.
			w2c = geom.Identity()
		}
		out[i] = w2c
	}
	state.WorldToCam = out
}

package driver

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/rigcal/rigcal/cost"
	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/internal/rigcalog"
	"github.com/rigcal/rigcal/outlier"
	"github.com/rigcal/rigcal/rigcalconfig"
)

// triangulateTrack implements spec.md §4.9 step 2 for one track: multi-view
// triangulation over its currently-inlier observations. Tracks left with
// fewer than 2 inliers become all-outlier, per spec.md §8's boundary
// behavior ("with 1, triangulation is skipped and the remaining observation
// is flagged outlier").
func triangulateTrack(state *State, pid int) r3.Vector {
	track := state.Tracks[pid]
	var rays []geom.Ray
	var keys []outlier.Key
	for cid, fid := range track {
		key := outlier.Key{Pid: pid, Cid: cid, Fid: fid}
		if !state.Mask.IsInlier(key) {
			continue
		}
		acq := state.Acquisitions[cid]
		sensor := state.Sensors[acq.SensorID]
		kp := acq.DistortedPixels[fid]
		centered := sensor.Intrinsics.ToUndistortedCentered(kp.X, kp.Y)
		rays = append(rays, geom.Ray{
			Focal:               sensor.Intrinsics.Focal,
			WorldToCam:          state.WorldToCam[cid],
			CenteredUndistorted: r3.Vector{X: centered.X, Y: centered.Y, Z: 1},
		})
		keys = append(keys, key)
	}
	if len(rays) < 2 {
		for _, k := range keys {
			state.Mask.SetOutlier(k)
		}
		return geom.NaNPoint
	}
	point := geom.TriangulateMultiView(rays)
	if geom.IsDegenerate(point) {
		for _, k := range keys {
			state.Mask.SetOutlier(k)
		}
	}
	return point
}

// retriangulate runs triangulateTrack over every track, implementing
// spec.md §4.9 step 2.
func retriangulate(state *State) {
	for pid := range state.Tracks {
		state.Landmarks[pid] = triangulateTrack(state, pid)
	}
}

// buildMeshCache implements spec.md §4.9 step 3: when a mesh is configured,
// compute and cache per-(pid,cid,fid) ray-mesh intersections and the
// per-pid average. A no-op when mesh is nil (no mesh configured, the common
// case, since the mesh loader and intersection library are out-of-scope
// external collaborators per spec.md §1).
func buildMeshCache(state *State, mesh MeshIntersector) {
	if mesh == nil {
		return
	}
	state.MeshPoints = map[MeshKey]r3.Vector{}
	state.MeshAnchors = map[int]r3.Vector{}
	for pid, track := range state.Tracks {
		var sum r3.Vector
		var count int
		for cid, fid := range track {
			key := outlier.Key{Pid: pid, Cid: cid, Fid: fid}
			if !state.Mask.IsInlier(key) {
				continue
			}
			acq := state.Acquisitions[cid]
			sensor := state.Sensors[acq.SensorID]
			kp := acq.DistortedPixels[fid]
			centered := sensor.Intrinsics.ToUndistortedCentered(kp.X, kp.Y)
			point, ok := mesh.Intersect(state.WorldToCam[cid], r3.Vector{X: centered.X, Y: centered.Y, Z: 1})
			if !ok {
				continue
			}
			state.MeshPoints[MeshKey{Pid: pid, Cid: cid, Fid: fid}] = point
			sum = sum.Add(point)
			count++
		}
		if count > 0 {
			state.MeshAnchors[pid] = sum.Mul(1 / float64(count))
		}
	}
}

// residualStats computes the 25/50/75/100-percentile absolute reprojection
// residual magnitudes over every currently-inlier observation (spec.md §8's
// "Residual-stats percentile values"), logged before and after each pass.
func residualStats(state *State) [4]float64 {
	var mags []float64
	for pid, track := range state.Tracks {
		landmark := state.Landmarks[pid]
		for cid, fid := range track {
			key := outlier.Key{Pid: pid, Cid: cid, Fid: fid}
			if !state.Mask.IsInlier(key) {
				continue
			}
			acq := state.Acquisitions[cid]
			sensor := state.Sensors[acq.SensorID]
			kp := acq.DistortedPixels[fid]
			dx, dy, err := cost.Reprojection(
				state.RefPoses[acq.BegRef], state.RefPoses[acq.EndRef], sensor.RefToSensor,
				landmark,
				acq.WallTS, state.RefFrameTS[acq.BegRef], state.RefFrameTS[acq.EndRef], sensor.RefToSensorTimestampOffset,
				acq.IsSelfBracketed(),
				sensor.Intrinsics,
				r2.Point{X: kp.X, Y: kp.Y},
			)
			if err != nil {
				continue
			}
			mags = append(mags, math.Hypot(dx, dy))
		}
	}
	if len(mags) == 0 {
		return [4]float64{}
	}
	sort.Float64s(mags)
	return [4]float64{
		stat.Quantile(0.25, stat.Empirical, mags, nil),
		stat.Quantile(0.50, stat.Empirical, mags, nil),
		stat.Quantile(0.75, stat.Empirical, mags, nil),
		stat.Quantile(1.00, stat.Empirical, mags, nil),
	}
}

// RunPass implements the 7-step algorithm of spec.md §4.9 for one
// optimization pass.
func RunPass(state *State, cfg rigcalconfig.Config, mesh MeshIntersector, logger rigcalog.Logger) error {
	// Step 1.
	RecomputeWorldToCam(state)
	// Step 2.
	retriangulate(state)
	// Step 3.
	buildMeshCache(state, mesh)

	if logger != nil {
		before := residualStats(state)
		logger.Infow("residual stats before pass", "p25", before[0], "p50", before[1], "p75", before[2], "p100", before[3])
	}

	// Step 4.
	layout := BuildLayout(state, cfg)
	if layout.Size > 0 {
		x0 := Pack(state, layout)
		problem := BuildProblem(state, layout, cfg)
		settings := &optimize.Settings{
			MajorIterations:   cfg.NumIterations,
			Concurrent:        cfg.NumOptThreads,
			GradientThreshold: 1e-16,
		}
		// Step 5.
		result, err := optimize.Minimize(problem, x0, settings, &optimize.BFGS{})
		if err != nil && (result == nil || result.X == nil) {
			return err
		}
		// Step 6.
		Unpack(result.X, layout, state)
	}

	// Step 7.
	RecomputeWorldToCam(state)
	runOutlierFlagger(state, cfg)

	if logger != nil {
		after := residualStats(state)
		logger.Infow("residual stats after pass", "p25", after[0], "p50", after[1], "p75", after[2], "p100", after[3])
	}
	return nil
}

// runOutlierFlagger applies spec.md §4.8's three filters in the prescribed
// order: boundary exclusion, convergence angle, reprojection error.
func runOutlierFlagger(state *State, cfg rigcalconfig.Config) {
	for pid, track := range state.Tracks {
		landmark := state.Landmarks[pid]
		var members []outlier.Key
		var centers []r3.Vector
		for cid, fid := range track {
			key := outlier.Key{Pid: pid, Cid: cid, Fid: fid}
			acq := state.Acquisitions[cid]
			sensor := state.Sensors[acq.SensorID]
			kp := acq.DistortedPixels[fid]

			if acq.IsReference() {
				outlier.ExcludeBoundary(state.Mask, key, true, kp.X, kp.Y,
					sensor.Intrinsics.DistortedSize.Width, sensor.Intrinsics.DistortedSize.Height,
					cfg.NavCamNumExcludeBoundaryPixels)
			}
			if state.Mask.IsInlier(key) {
				members = append(members, key)
				centers = append(centers, state.WorldToCam[cid].Inverse().Translation)
			}
		}

		outlier.FlagByConvergenceAngle(state.Mask, members, centers, landmark, cfg.RefinerMinAngleDegrees)

		for cid, fid := range track {
			key := outlier.Key{Pid: pid, Cid: cid, Fid: fid}
			if !state.Mask.IsInlier(key) {
				continue
			}
			acq := state.Acquisitions[cid]
			sensor := state.Sensors[acq.SensorID]
			kp := acq.DistortedPixels[fid]
			dx, dy, err := cost.Reprojection(
				state.RefPoses[acq.BegRef], state.RefPoses[acq.EndRef], sensor.RefToSensor,
				landmark,
				acq.WallTS, state.RefFrameTS[acq.BegRef], state.RefFrameTS[acq.EndRef], sensor.RefToSensorTimestampOffset,
				acq.IsSelfBracketed(),
				sensor.Intrinsics,
				r2.Point{X: kp.X, Y: kp.Y},
			)
			if err != nil {
				state.Mask.SetOutlier(key)
				continue
			}
			outlier.FlagByReprojectionError(state.Mask, key, math.Hypot(dx, dy), cfg.MaxReprojectionError)
		}
	}
}

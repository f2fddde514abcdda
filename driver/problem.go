package driver

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/rigcal/rigcal/cost"
	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/outlier"
	"github.com/rigcal/rigcal/rig"
	"github.com/rigcal/rigcal/rigcalconfig"
)

// objective builds the scalar sum-of-squares function a flat parameter
// vector minimizes: every inlier observation's Cauchy-robustified R1 (and,
// when configured, R2/R3) residual, plus R4 once per track when a mesh is
// configured (spec.md §4.7). It never mutates the State passed to
// BuildProblem; each call unpacks x into a working copy.
func objective(base *State, layout Layout, cfg rigcalconfig.Config) func(x []float64) float64 {
	return func(x []float64) float64 {
		working := cloneForTrial(base)
		Unpack(x, layout, working)

		var total float64
		for pid, track := range working.Tracks {
			landmark := working.Landmarks[pid]
			for cid, fid := range track {
				key := outlier.Key{Pid: pid, Cid: cid, Fid: fid}
				if !working.Mask.IsInlier(key) {
					continue
				}
				acq := working.Acquisitions[cid]
				sensor := working.Sensors[acq.SensorID]
				kp := acq.DistortedPixels[fid]

				dx, dy, err := cost.Reprojection(
					working.RefPoses[acq.BegRef], working.RefPoses[acq.EndRef], sensor.RefToSensor,
					landmark,
					acq.WallTS, working.RefFrameTS[acq.BegRef], working.RefFrameTS[acq.EndRef], sensor.RefToSensorTimestampOffset,
					acq.IsSelfBracketed(),
					sensor.Intrinsics,
					r2.Point{X: kp.X, Y: kp.Y},
				)
				if err == nil {
					total += sumSquares(cost.ApplyCauchy([]float64{dx, dy}, cfg.RobustThreshold))
				}

				if measured, ok := depthLookup(acq, fid); ok {
					depthToImage, scale := depthToImageParts(sensor)
					residual, err := cost.DepthTriangulation(
						working.RefPoses[acq.BegRef], working.RefPoses[acq.EndRef], sensor.RefToSensor,
						depthToImage, scale,
						landmark, measured,
						acq.WallTS, working.RefFrameTS[acq.BegRef], working.RefFrameTS[acq.EndRef], sensor.RefToSensorTimestampOffset,
						acq.IsSelfBracketed(),
						cfg.WeightDepthTriangulation,
					)
					if err == nil {
						total += sumSquares(cost.ApplyCauchy(vec3ToSlice(residual), cfg.RobustThreshold))
					}

					if cfg.UseMesh {
						if meshPoint, ok := working.MeshPoints[MeshKey{Pid: pid, Cid: cid, Fid: fid}]; ok {
							meshResidual, err := cost.DepthTriangulation(
								working.RefPoses[acq.BegRef], working.RefPoses[acq.EndRef], sensor.RefToSensor,
								depthToImage, scale,
								meshPoint, measured,
								acq.WallTS, working.RefFrameTS[acq.BegRef], working.RefFrameTS[acq.EndRef], sensor.RefToSensorTimestampOffset,
								acq.IsSelfBracketed(),
								cfg.WeightMeshTriangulation,
							)
							if err == nil {
								total += sumSquares(cost.ApplyCauchy(vec3ToSlice(meshResidual), cfg.RobustThreshold))
							}
						}
					}
				}
			}
			if cfg.UseMesh {
				if anchor, ok := working.MeshAnchors[pid]; ok {
					r := cost.MeshAnchor(landmark, anchor, cfg.WeightMeshTriangulation)
					total += sumSquares(cost.ApplyCauchy(vec3ToSlice(r), cfg.RobustThreshold))
				}
			}
		}
		return total
	}
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}

func vec3ToSlice(v r3.Vector) []float64 { return []float64{v.X, v.Y, v.Z} }

// depthToImageParts extracts the rigid part and scale of a sensor's
// depth-to-image transform, folding an affine transform's scale to 1 (it is
// already baked into the linear part for sensors that use the affine form).
func depthToImageParts(sensor rig.Sensor) (geom.Affine, float64) {
	if sensor.DepthToImageKind == rig.DepthToImageAffine {
		return sensor.DepthToImageAff, 1
	}
	rigidPart, scale := sensor.DepthToImageSim.ToRigidWithScale()
	return geom.FromRigid(rigidPart), scale
}

func depthLookup(acq rig.Acquisition, fid int) (r3.Vector, bool) {
	if !acq.HasDepth || acq.Depth == nil {
		return r3.Vector{}, false
	}
	kp := acq.DistortedPixels[fid]
	x := int(math.Round(kp.X))
	y := int(math.Round(kp.Y))
	p := acq.Depth.At(x, y)
	if !p.IsValid() {
		return r3.Vector{}, false
	}
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}, true
}

// cloneForTrial makes a shallow-enough copy of base that Unpack can mutate
// free parameters without disturbing the caller's State between solver
// evaluations; slices that Unpack writes through index assignment are
// deep-copied, the rest are shared read-only.
func cloneForTrial(base *State) *State {
	clone := *base
	clone.RefPoses = append([]geom.Rigid(nil), base.RefPoses...)
	clone.Sensors = append([]rig.Sensor(nil), base.Sensors...)
	clone.Landmarks = append([]r3.Vector(nil), base.Landmarks...)
	clone.WorldToCam = append([]geom.Rigid(nil), base.WorldToCam...)
	return &clone
}

// BuildProblem assembles the gonum/optimize.Problem for one pass: the scalar
// objective above, differentiated numerically (spec.md §9's "Ceres dynamic
// cost functions" note: distortion length is not known at compile time, so
// numeric differentiation with a tunable step stands in for automatic
// differentiation over a fixed-capacity parameter array).
func BuildProblem(state *State, layout Layout, cfg rigcalconfig.Config) optimize.Problem {
	obj := objective(state, layout, cfg)
	return optimize.Problem{
		Func: obj,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, obj, x, nil)
		},
	}
}

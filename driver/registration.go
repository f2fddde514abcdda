package driver

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/persist"
	"github.com/rigcal/rigcal/rig"
)

// ApplyRegistration implements the registration step of spec.md §6/§9: solve
// the Kabsch+scale similarity aligning the sparse map's triangulated control
// points (mapPoints) to their ground-truth coordinates (worldPoints), then
// propagate the resulting transform to every buffer derived from the map's
// coordinate frame: every reference pose, every landmark, the translation
// of each non-reference sensor's rig extrinsics, and that sensor's
// depth-to-image transform (its translation, plus its similarity scale or
// every entry of its affine linear part); extrinsic rotations are
// scale-invariant and untouched. spec.md §9 flags
// the original tool's registration path for updating depth_to_image but not
// the rest of the state; RecomputeWorldToCam at the end re-derives every
// acquisition's world_to_cam from the now-registered buffers, which is the
// fix: recomputing world_to_cam and evaluating reprojection afterward
// yields residuals unchanged up to the registration's scale factor.
func ApplyRegistration(state *State, mapPoints, worldPoints []r3.Vector) (geom.Similarity, error) {
	if len(mapPoints) != len(worldPoints) {
		return geom.Similarity{}, errors.New("registration: mismatched control point counts")
	}
	if err := persist.ValidateControlPointCount(len(mapPoints)); err != nil {
		return geom.Similarity{}, err
	}

	sim := geom.SolveSimilarity(mapPoints, worldPoints)

	for i, pose := range state.RefPoses {
		state.RefPoses[i] = geom.TransformWorldToCam(sim, pose)
	}
	for i, lm := range state.Landmarks {
		state.Landmarks[i] = sim.Apply(lm)
	}
	for i, sensor := range state.Sensors {
		if sensor.IsReference() {
			continue
		}
		sensor.RefToSensor.Translation = sensor.RefToSensor.Translation.Mul(sim.Scale)
		switch sensor.DepthToImageKind {
		case rig.DepthToImageRigid:
			sensor.DepthToImageSim.Scale *= sim.Scale
			sensor.DepthToImageSim.Translation = sensor.DepthToImageSim.Translation.Mul(sim.Scale)
		case rig.DepthToImageAffine:
			for j := range sensor.DepthToImageAff.Linear {
				sensor.DepthToImageAff.Linear[j] *= sim.Scale
			}
			sensor.DepthToImageAff.Translation = sensor.DepthToImageAff.Translation.Mul(sim.Scale)
		}
		state.Sensors[i] = sensor
	}

	RecomputeWorldToCam(state)
	return sim, nil
}

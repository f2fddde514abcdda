package driver

import (
	"github.com/rigcal/rigcal/internal/rigcalog"
	"github.com/rigcal/rigcal/rig"
	"github.com/rigcal/rigcal/rigcalconfig"
)

// Run implements spec.md §4.9: runs cfg.RefinerNumPasses passes of RunPass,
// then reinstates each sensor's depth scale into its depth-to-image affine
// linear part, since the scale was factored out during optimization only to
// allow locking it independently of rotation and translation.
func Run(state *State, cfg rigcalconfig.Config, mesh MeshIntersector, logger rigcalog.Logger) error {
	for p := 0; p < cfg.RefinerNumPasses; p++ {
		if logger != nil {
			logger.Infow("starting optimization pass", "pass", p)
		}
		if err := RunPass(state, cfg, mesh, logger); err != nil {
			return err
		}
	}
	reinstateDepthScale(state)
	return nil
}

// reinstateDepthScale folds each non-reference, rigid-depth-to-image
// sensor's scale back into an affine linear part (spec.md §4.9: "After the
// final pass, reinstate the depth scale into the depth-to-image linear
// part").
func reinstateDepthScale(state *State) {
	for i, sensor := range state.Sensors {
		if sensor.IsReference() || sensor.DepthToImageKind != rig.DepthToImageRigid {
			continue
		}
		state.Sensors[i].DepthToImageAff = sensor.DepthToImageSim.ScaleAffine()
		state.Sensors[i].DepthToImageKind = rig.DepthToImageAffine
	}
}

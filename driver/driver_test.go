package driver

import (
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/rig"
)

func TestReinstateDepthScaleFoldsScaleIntoAffine(t *testing.T) {
	sim := geom.Similarity{Scale: 2, Rotation: quat.Number{Real: 1}}
	state := &State{
		Sensors: []rig.Sensor{
			{ID: 0},
			{ID: 1, DepthToImageKind: rig.DepthToImageRigid, DepthToImageSim: sim},
		},
	}

	reinstateDepthScale(state)

	test.That(t, state.Sensors[1].DepthToImageKind, test.ShouldEqual, rig.DepthToImageAffine)
	want := sim.ScaleAffine()
	test.That(t, state.Sensors[1].DepthToImageAff, test.ShouldResemble, want)
}

func TestReinstateDepthScaleSkipsReferenceAndAffineSensors(t *testing.T) {
	state := &State{
		Sensors: []rig.Sensor{
			{ID: 0, DepthToImageKind: rig.DepthToImageRigid, DepthToImageSim: geom.Similarity{Scale: 3}},
			{ID: 1, DepthToImageKind: rig.DepthToImageAffine, DepthToImageAff: geom.Affine{}},
		},
	}

	reinstateDepthScale(state)

	test.That(t, state.Sensors[0].DepthToImageKind, test.ShouldEqual, rig.DepthToImageRigid)
	test.That(t, state.Sensors[1].DepthToImageKind, test.ShouldEqual, rig.DepthToImageAffine)
}

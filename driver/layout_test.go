package driver

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/rigcalconfig"
)

func TestPackUnpackRoundTripsFreeLandmarks(t *testing.T) {
	landmark := r3.Vector{X: 1, Y: 2, Z: 8}
	state := buildIdentityRigState(t, landmark)
	cfg := rigcalconfig.Default()

	layout := BuildLayout(state, cfg)
	x := Pack(state, layout)
	test.That(t, len(x), test.ShouldEqual, layout.Size)

	x[layout.LandmarkOffset[0]] = 9
	x[layout.LandmarkOffset[0]+1] = -3
	x[layout.LandmarkOffset[0]+2] = 4

	working := cloneForTrial(state)
	Unpack(x, layout, working)

	test.That(t, working.Landmarks[0], test.ShouldResemble, r3.Vector{X: 9, Y: -3, Z: 4})
}

func TestUnpackLeavesFrozenGroupsUntouched(t *testing.T) {
	landmark := r3.Vector{X: 0, Y: 0, Z: 5}
	state := buildIdentityRigState(t, landmark)
	cfg := rigcalconfig.Default()

	layout := BuildLayout(state, cfg)
	test.That(t, layout.ExtrinsicsOffset[1], test.ShouldEqual, -1)
	test.That(t, layout.TimeOffsetOffset[1], test.ShouldEqual, -1)
	test.That(t, layout.IntrinsicsOffset[0], test.ShouldEqual, -1)

	x := Pack(state, layout)
	working := cloneForTrial(state)
	Unpack(x, layout, working)

	test.That(t, working.Sensors[1].RefToSensor, test.ShouldResemble, state.Sensors[1].RefToSensor)
	test.That(t, working.Sensors[1].RefToSensorTimestampOffset, test.ShouldEqual, state.Sensors[1].RefToSensorTimestampOffset)
}

func TestUnpackClampsTimeOffsetToBounds(t *testing.T) {
	landmark := r3.Vector{X: 0, Y: 0, Z: 5}
	state := buildIdentityRigState(t, landmark)
	cfg := rigcalconfig.Default()
	cfg.FloatTimestampOffsets = true

	layout := BuildLayout(state, cfg)
	off := layout.TimeOffsetOffset[1]
	test.That(t, off, test.ShouldNotEqual, -1)

	x := Pack(state, layout)
	bounds := layout.TimeOffsetBounds[1]
	x[off] = bounds[1] + 1000 // push far outside the derived bound

	working := cloneForTrial(state)
	Unpack(x, layout, working)

	test.That(t, working.Sensors[1].RefToSensorTimestampOffset, test.ShouldEqual, bounds[1])
}

func TestRecomputeWorldToCamIdentityRig(t *testing.T) {
	landmark := r3.Vector{X: 0, Y: 0, Z: 5}
	state := buildIdentityRigState(t, landmark)
	state.WorldToCam = nil

	RecomputeWorldToCam(state)

	test.That(t, len(state.WorldToCam), test.ShouldEqual, len(state.Acquisitions))
	for _, w2c := range state.WorldToCam {
		test.That(t, w2c, test.ShouldResemble, geom.Identity())
	}
}

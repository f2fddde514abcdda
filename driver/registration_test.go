package driver

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/rigcal/rigcal/camera"
	"github.com/rigcal/rigcal/cost"
	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/outlier"
	"github.com/rigcal/rigcal/rig"
	"github.com/rigcal/rigcal/tracks"
)

// project reprojects a world point through worldToCam and model, the
// forward direction of cost.Reprojection, for building a synthetic
// measurement in the test below.
func project(worldToCam geom.Rigid, model *camera.Model, worldPoint r3.Vector) r2.Point {
	cam := worldToCam.Apply(worldPoint)
	centered := r2.Point{X: cam.X / cam.Z, Y: cam.Y / cam.Z}
	x, y := model.ToDistorted(centered)
	return r2.Point{X: x, Y: y}
}

// TestApplyRegistrationPreservesReprojectionResiduals exercises spec.md's
// registration invariant: after registration, recomputing world_to_cam and
// evaluating reprojection against the same pixel measurement must yield the
// same residual as before registration, since the whole scene (reference
// poses and landmarks alike) moved through the same similarity transform.
func TestApplyRegistrationPreservesReprojectionResiduals(t *testing.T) {
	model, err := camera.NewModel(100, r2.Point{X: 50, Y: 50}, nil, camera.Size{Width: 100, Height: 100}, camera.Size{Width: 100, Height: 100})
	test.That(t, err, test.ShouldBeNil)

	landmark := r3.Vector{X: 0.3, Y: -0.2, Z: 4}
	refPose := geom.Identity()

	state := &State{
		RefFrameTS: []float64{0},
		RefPoses:   []geom.Rigid{refPose},
		Sensors:    []rig.Sensor{{ID: 0, Intrinsics: model}},
		Acquisitions: []rig.Acquisition{
			{SensorID: 0, WallTS: 0, RefTS: 0, BegRef: 0, EndRef: 0},
		},
		Tracks:    []tracks.Track{{0: 0}},
		Landmarks: []r3.Vector{landmark},
		Mask:      outlier.Mask{},
	}
	RecomputeWorldToCam(state)

	measured := project(state.WorldToCam[0], model, landmark)
	state.Acquisitions[0].DistortedPixels = []rig.Keypoint2D{{X: measured.X, Y: measured.Y}}

	dxBefore, dyBefore, err := cost.Reprojection(
		state.RefPoses[0], state.RefPoses[0], state.Sensors[0].RefToSensor,
		state.Landmarks[0], 0, 0, 0, 0, true, model, measured)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dxBefore, test.ShouldAlmostEqual, 0.0)
	test.That(t, dyBefore, test.ShouldAlmostEqual, 0.0)

	// A known similarity: scale 2, 90 degrees about Z, translate (1, 2, 3).
	halfTurn := quat.Number{Real: 0.7071067811865476, Kmag: 0.7071067811865476}
	trueSim := geom.Similarity{Scale: 2, Rotation: halfTurn, Translation: r3.Vector{X: 1, Y: 2, Z: 3}}

	mapPoints := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
	}
	worldPoints := make([]r3.Vector, len(mapPoints))
	for i, p := range mapPoints {
		worldPoints[i] = trueSim.Apply(p)
	}

	sim, err := ApplyRegistration(state, mapPoints, worldPoints)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sim.Scale, test.ShouldAlmostEqual, trueSim.Scale)

	dxAfter, dyAfter, err := cost.Reprojection(
		state.RefPoses[0], state.RefPoses[0], state.Sensors[0].RefToSensor,
		state.Landmarks[0], 0, 0, 0, 0, true, model, measured)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dxAfter, test.ShouldAlmostEqual, dxBefore)
	test.That(t, dyAfter, test.ShouldAlmostEqual, dyBefore)

	test.That(t, state.WorldToCam[0].Translation.X, test.ShouldAlmostEqual, state.RefPoses[0].Translation.X)
}

func TestApplyRegistrationRejectsInsufficientControlPoints(t *testing.T) {
	state := &State{
		RefPoses: []geom.Rigid{geom.Identity()},
		Sensors:  []rig.Sensor{{ID: 0}},
	}
	_, err := ApplyRegistration(state,
		[]r3.Vector{{X: 0}, {X: 1}},
		[]r3.Vector{{X: 0}, {X: 2}})
	test.That(t, err, test.ShouldNotBeNil)
}

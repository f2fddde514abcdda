package driver

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/rigcal/rigcal/camera"
	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/outlier"
	"github.com/rigcal/rigcal/rig"
	"github.com/rigcal/rigcal/rigcalconfig"
	"github.com/rigcal/rigcal/tracks"
)

// buildIdentityRigState constructs the "identity rig, noise-free" scenario
// of spec.md §8 scenario 1: two reference acquisitions and one non-reference
// acquisition bracketed between them, all consistent with identity
// extrinsics and no distortion.
func buildIdentityRigState(t *testing.T, landmark r3.Vector) *State {
	t.Helper()
	model, err := camera.NewModel(500, r2.Point{X: 320, Y: 240}, nil,
		camera.Size{Width: 640, Height: 480}, camera.Size{Width: 640, Height: 480})
	test.That(t, err, test.ShouldBeNil)

	sensors := []rig.Sensor{
		{ID: 0, Name: "ref", Intrinsics: model, RefToSensor: geom.Identity()},
		{ID: 1, Name: "cam1", Intrinsics: model, RefToSensor: geom.Identity()},
	}

	px := func(worldToCam geom.Rigid) rig.Keypoint2D {
		cam := worldToCam.Apply(landmark)
		centered := r2.Point{X: cam.X / cam.Z, Y: cam.Y / cam.Z}
		x, y := model.ToDistorted(centered)
		return rig.Keypoint2D{X: x, Y: y}
	}

	acquisitions := []rig.Acquisition{
		{SensorID: 0, WallTS: 0, RefTS: 0, BegRef: 0, EndRef: 0, DistortedPixels: []rig.Keypoint2D{px(geom.Identity())}},
		{SensorID: 0, WallTS: 10, RefTS: 10, BegRef: 1, EndRef: 1, DistortedPixels: []rig.Keypoint2D{px(geom.Identity())}},
		{SensorID: 1, WallTS: 5, RefTS: 5, BegRef: 0, EndRef: 1, DistortedPixels: []rig.Keypoint2D{px(geom.Identity())}},
	}

	track := tracks.Track{0: 0, 1: 0, 2: 0}

	return &State{
		RefFrameTS:   []float64{0, 10},
		RefPoses:     []geom.Rigid{geom.Identity(), geom.Identity()},
		Sensors:      sensors,
		Acquisitions: acquisitions,
		Tracks:       []tracks.Track{track},
		Landmarks:    []r3.Vector{landmark},
		Mask:         outlier.Mask{},
		WorldToCam:   []geom.Rigid{geom.Identity(), geom.Identity(), geom.Identity()},
	}
}

func TestObjectiveIsZeroAtGroundTruth(t *testing.T) {
	landmark := r3.Vector{X: 0.1, Y: -0.05, Z: 5}
	state := buildIdentityRigState(t, landmark)
	cfg := rigcalconfig.Default()

	layout := BuildLayout(state, cfg)
	x := Pack(state, layout)
	obj := objective(state, layout, cfg)

	test.That(t, obj(x), test.ShouldBeLessThan, 1e-12)
}

func TestObjectiveIsPositiveWhenPerturbed(t *testing.T) {
	landmark := r3.Vector{X: 0.1, Y: -0.05, Z: 5}
	state := buildIdentityRigState(t, landmark)
	cfg := rigcalconfig.Default()

	layout := BuildLayout(state, cfg)
	x := Pack(state, layout)
	x[0] += 1.0 // perturb the landmark's X coordinate

	obj := objective(state, layout, cfg)
	test.That(t, obj(x), test.ShouldBeGreaterThan, 1e-6)
}

func TestBuildLayoutOnlyFreesLandmarksByDefault(t *testing.T) {
	landmark := r3.Vector{X: 0, Y: 0, Z: 5}
	state := buildIdentityRigState(t, landmark)
	cfg := rigcalconfig.Default()

	layout := BuildLayout(state, cfg)
	test.That(t, layout.Size, test.ShouldEqual, 3)
	for _, off := range layout.RefPoseOffset {
		test.That(t, off, test.ShouldEqual, -1)
	}
	test.That(t, layout.ExtrinsicsOffset[1], test.ShouldEqual, -1)
}

package persist

import (
	"bytes"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/rigcal/rigcal/camera"
	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/rig"
)

func sampleRigConfig(t *testing.T) RigConfig {
	t.Helper()
	model0, err := camera.NewModel(500, r2.Point{X: 320, Y: 240}, nil, camera.Size{Width: 640, Height: 480}, camera.Size{Width: 640, Height: 480})
	test.That(t, err, test.ShouldBeNil)
	distorter, err := camera.NewDistorter([]float64{0.1, -0.05, 0, 0})
	test.That(t, err, test.ShouldBeNil)
	model1, err := camera.NewModel(510, r2.Point{X: 315, Y: 245}, distorter, camera.Size{Width: 640, Height: 480}, camera.Size{Width: 640, Height: 480})
	test.That(t, err, test.ShouldBeNil)

	return RigConfig{
		RefSensorID: 0,
		Sensors: []rig.Sensor{
			{
				ID: 0, Name: "ref", Intrinsics: model0,
				RefToSensor: geom.Identity(), HasInitialRig: true,
				DepthToImageKind: rig.DepthToImageAffine, DepthToImageAff: geom.FromRigid(geom.Identity()),
				RefToSensorTimestampOffset: 0,
			},
			{
				ID: 1, Name: "cam1", Intrinsics: model1,
				RefToSensor: geom.Identity(), HasInitialRig: false,
				DepthToImageKind: rig.DepthToImageAffine, DepthToImageAff: geom.FromRigid(geom.Identity()),
				RefToSensorTimestampOffset: 0.25,
			},
		},
	}
}

func TestWriteReadRigConfigRoundTrips(t *testing.T) {
	cfg := sampleRigConfig(t)
	var buf bytes.Buffer
	test.That(t, WriteRigConfig(&buf, cfg), test.ShouldBeNil)

	got, err := ReadRigConfig(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.RefSensorID, test.ShouldEqual, cfg.RefSensorID)
	test.That(t, len(got.Sensors), test.ShouldEqual, len(cfg.Sensors))
	test.That(t, got.Sensors[0].Name, test.ShouldEqual, "ref")
	test.That(t, got.Sensors[1].Name, test.ShouldEqual, "cam1")
	test.That(t, got.Sensors[1].Intrinsics.Focal, test.ShouldEqual, 510.0)
	test.That(t, got.Sensors[1].RefToSensorTimestampOffset, test.ShouldEqual, 0.25)
}

func TestReadRigConfigPreservesNoInitialRigSentinel(t *testing.T) {
	cfg := sampleRigConfig(t)
	var buf bytes.Buffer
	test.That(t, WriteRigConfig(&buf, cfg), test.ShouldBeNil)

	got, err := ReadRigConfig(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Sensors[0].HasInitialRig, test.ShouldBeTrue)
	test.That(t, got.Sensors[1].HasInitialRig, test.ShouldBeFalse)
}

func TestReadRigConfigSkipsCommentsAndBlankLines(t *testing.T) {
	cfg := sampleRigConfig(t)
	var buf bytes.Buffer
	test.That(t, WriteRigConfig(&buf, cfg), test.ShouldBeNil)

	withComments := "# a leading comment\n\n" + buf.String() + "\n# trailing comment\n"
	got, err := ReadRigConfig(strings.NewReader(withComments))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(got.Sensors), test.ShouldEqual, 2)
}

func TestReadRigConfigRejectsBadTag(t *testing.T) {
	_, err := ReadRigConfig(strings.NewReader("not_a_tag 0\n"))
	test.That(t, err, test.ShouldNotBeNil)
}

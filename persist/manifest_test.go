package persist

import (
	"bytes"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/rigcal/rigcal/geom"
)

func TestWriteReadManifestRoundTrips(t *testing.T) {
	entries := []ManifestEntry{
		{ImagePath: "cam0/000001.png", SensorID: 0, Timestamp: 1.5, HasDepth: false,
			WorldToCam: geom.Identity()},
		{ImagePath: "cam1/000002.png", SensorID: 1, Timestamp: 2.25, HasDepth: true, DepthPath: "cam1/000002.xyz",
			WorldToCam: geom.NewRigidFromQuatTranslation(geom.Identity().Rotation, r3.Vector{X: 1, Y: 2, Z: 3})},
	}

	var buf bytes.Buffer
	test.That(t, WriteManifest(&buf, entries), test.ShouldBeNil)

	got, err := ReadManifest(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(got), test.ShouldEqual, 2)
	test.That(t, got[0].DepthPath, test.ShouldEqual, NoDepthFile)
	test.That(t, got[0].HasDepth, test.ShouldBeFalse)
	test.That(t, got[1].HasDepth, test.ShouldBeTrue)
	test.That(t, got[1].DepthPath, test.ShouldEqual, "cam1/000002.xyz")
	test.That(t, got[1].WorldToCam.Translation, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
}

func TestReadManifestSkipsComments(t *testing.T) {
	data := "# header\n\ncam0/1.png 0 0.0 none 1 0 0 0 0 1 0 0 0 0 1 0\n"
	got, err := ReadManifest(bytes.NewBufferString(data))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(got), test.ShouldEqual, 1)
}

func TestReadManifestRejectsWrongFieldCount(t *testing.T) {
	_, err := ReadManifest(bytes.NewBufferString("cam0/1.png 0 0.0 none\n"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTimestampFromBasenameParsesLeadingDigits(t *testing.T) {
	v, err := TimestampFromBasename("1699999999.500000.png")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldAlmostEqual, 1699999999.5, 1e-6)
}

func TestTimestampFromBasenameRejectsNonDigitStart(t *testing.T) {
	_, err := TimestampFromBasename("frame_001.png")
	test.That(t, err, test.ShouldNotBeNil)
}

package persist

import (
	"bytes"
	"testing"

	"go.viam.com/test"

	"github.com/rigcal/rigcal/rig"
)

func TestWriteReadXYZRasterRoundTrips(t *testing.T) {
	cloud := &rig.DepthCloud{
		Width: 2, Height: 2,
		Points: []rig.DepthPoint{
			{X: 0, Y: 0, Z: 0},
			{X: 1.5, Y: 2.5, Z: 3.5},
			{X: -1, Y: -2, Z: -3},
			{X: 0, Y: 0, Z: 0},
		},
	}

	var buf bytes.Buffer
	test.That(t, WriteXYZRaster(&buf, cloud), test.ShouldBeNil)

	got, err := ReadXYZRaster(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Width, test.ShouldEqual, cloud.Width)
	test.That(t, got.Height, test.ShouldEqual, cloud.Height)
	test.That(t, len(got.Points), test.ShouldEqual, len(cloud.Points))
	test.That(t, got.At(1, 0), test.ShouldResemble, rig.DepthPoint{X: 1.5, Y: 2.5, Z: 3.5})
	test.That(t, got.At(0, 0).IsValid(), test.ShouldBeFalse)
}

func TestReadXYZRasterRejectsWrongChannelCount(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{1, 0, 0, 0, 1, 0, 0, 0, 4, 0, 0, 0})
	_, err := ReadXYZRaster(&buf)
	test.That(t, err, test.ShouldNotBeNil)
}

package persist

import (
	"bytes"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestWriteReadPTORoundTrips(t *testing.T) {
	images := []string{"cam0/img1.jpg", "cam1/img2.jpg"}
	points := []ControlPoint{
		{ImageLeft: 0, ImageRight: 1, XL: 10, YL: 20, XR: 11, YR: 21},
		{ImageLeft: 0, ImageRight: 1, XL: 30, YL: 40, XR: 31, YR: 41},
	}

	var buf bytes.Buffer
	test.That(t, WritePTO(&buf, images, points), test.ShouldBeNil)

	gotImages, gotPoints, err := ReadPTO(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gotImages, test.ShouldResemble, images)
	test.That(t, gotPoints, test.ShouldResemble, points)
}

func TestReadPTOSkipsCommentsAndBlankLines(t *testing.T) {
	data := "# comment\n\ni n\"a.jpg\"\n\nc 0 0 1 2 3 4\n"
	images, points, err := ReadPTO(strings.NewReader(data))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, images, test.ShouldResemble, []string{"a.jpg"})
	test.That(t, len(points), test.ShouldEqual, 1)
}

func TestWriteReadControlPointsXYZRoundTrips(t *testing.T) {
	points := []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -1, Y: 0, Z: 5}}
	var buf bytes.Buffer
	test.That(t, WriteControlPointsXYZ(&buf, points), test.ShouldBeNil)

	got, err := ReadControlPointsXYZ(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, points)
}

func TestReadControlPointsXYZSkipsComments(t *testing.T) {
	data := "# header\n1 2 3\n# another\n4 5 6\n"
	got, err := ReadControlPointsXYZ(strings.NewReader(data))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(got), test.ShouldEqual, 2)
}

func TestValidateControlPointCount(t *testing.T) {
	test.That(t, ValidateControlPointCount(2), test.ShouldEqual, ErrInsufficientControlPoints)
	test.That(t, ValidateControlPointCount(3), test.ShouldBeNil)
}

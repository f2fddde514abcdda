package features

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestDetectAllFillsOnePerImage(t *testing.T) {
	images := make([]*image.Gray, 3)
	for i := range images {
		img := image.NewGray(image.Rect(0, 0, 40, 40))
		// Paint a bright square so the corner detector has something to find.
		for y := 15; y < 25; y++ {
			for x := 15; x < 25; x++ {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
		images[i] = img
	}
	cfg := testConfig()
	detector := NewDefaultDetector(cfg)

	frames, err := DetectAll(detector, images, cfg, testLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(frames), test.ShouldEqual, 3)
	for _, f := range frames {
		test.That(t, len(f.Keypoints), test.ShouldEqual, len(f.Descriptors))
	}
}

func TestDefaultDetectorRejectsNilImage(t *testing.T) {
	d := NewDefaultDetector(testConfig())
	_, err := d.Detect(nil)
	test.That(t, err, test.ShouldNotBeNil)
}

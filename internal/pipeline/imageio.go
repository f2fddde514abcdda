package pipeline

import (
	"image"
	_ "image/jpeg" // decode format registered via side effect, as the stdlib image package expects
	_ "image/png"
	"os"

	"github.com/pkg/errors"

	"github.com/rigcal/rigcal/persist"
	"github.com/rigcal/rigcal/rig"
)

// LoadSources reads every manifest entry's image and, when present, its
// depth cloud, converting the image to grayscale for the feature engine
// (spec.md §1 carves image/depth codecs out of the core; this is the
// thinnest possible boundary adapter onto that external surface).
func LoadSources(entries []persist.ManifestEntry) ([]Source, error) {
	sources := make([]Source, len(entries))
	for i, e := range entries {
		img, err := loadGray(e.ImagePath)
		if err != nil {
			return nil, errors.Wrapf(err, "loading image %q", e.ImagePath)
		}
		var depth *rig.DepthCloud
		if e.HasDepth {
			depth, err = loadDepth(e.DepthPath)
			if err != nil {
				return nil, errors.Wrapf(err, "loading depth cloud %q", e.DepthPath)
			}
		}
		sources[i] = Source{Entry: e, Image: img, Depth: depth}
	}
	return sources, nil
}

func loadGray(path string) (*image.Gray, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	if g, ok := src.(*image.Gray); ok {
		return g, nil
	}
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, src.At(x, y))
		}
	}
	return gray, nil
}

func loadDepth(path string) (*rig.DepthCloud, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return persist.ReadXYZRaster(f)
}

package features

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/rigcal/rigcal/internal/rigcalog"
	"github.com/rigcal/rigcal/rigcalconfig"
)

// Detector produces a Frame from a single grayscale image. The concrete
// detection algorithm (SIFT, SURF, or any other) is an injectable external
// collaborator: spec.md §1 excludes image/depth I/O codecs from the core,
// and the CV kernels behind SIFT/SURF occupy the same role here (they are
// not present in this workspace's dependency set, which has no OpenCV/gocv
// binding). DefaultDetector below is the one concrete implementation carried
// in-tree, a FAST-corner-and-patch-descriptor detector adapted from
// vision/keypoints' FAST+BRIEF pipeline with the image-pyramid and Gaussian
// pre-blur stages dropped, since those belong to the same out-of-scope image
// processing surface.
type Detector interface {
	Detect(img *image.Gray) (*Frame, error)
}

// DetectAll runs detector over images on a bounded worker pool of size
// cfg.NumMatchThreads, matching spec.md §5's feature detection pool: each
// task owns one image and writes only into its own pre-sized result slot, so
// no locking is required. Grounded on the teacher's PanicCapturingGo-based
// background-worker pattern (e.g. sensor/gps/nmea/serial.go), adapted from a
// single background goroutine to a bounded fan-out/fan-in pool.
func DetectAll(detector Detector, images []*image.Gray, cfg rigcalconfig.Config, logger rigcalog.Logger) ([]*Frame, error) {
	frames := make([]*Frame, len(images))
	errs := make([]error, len(images))

	sem := make(chan struct{}, maxInt(1, cfg.NumMatchThreads))
	var wg sync.WaitGroup
	for i, img := range images {
		i, img := i, img
		wg.Add(1)
		sem <- struct{}{}
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			defer func() { <-sem }()
			frame, err := detector.Detect(img)
			if err != nil {
				errs[i] = errors.Wrapf(err, "detecting features in image %d", i)
				return
			}
			frames[i] = frame
		})
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		logger.Debugw("detected keypoints", "image", i, "count", len(frames[i].Keypoints))
	}
	return frames, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// DefaultDetector is a FAST-style corner detector paired with a fixed-pattern
// patch-intensity descriptor, adapted from vision/keypoints.go's orientation
// mask and briefdesc.go's sample-pair comparison idea onto plain float
// intensities (rather than a binary popcount descriptor), since SIFT/SURF's
// configured descriptors (rigcalconfig.Config.FeatureDetector) are real-valued.
type DefaultDetector struct {
	// Threshold is the minimum intensity difference between a candidate pixel
	// and its surrounding ring for the pixel to be flagged a corner.
	Threshold uint8
	// PatchRadius is the half-width of the descriptor sampling patch.
	PatchRadius int
}

// NewDefaultDetector builds a DefaultDetector from the SIFT-shaped config
// knobs spec.md §4.3 enumerates, reusing SIFTContrastThreshold (scaled to a
// pixel-intensity delta) as the corner threshold so the configured detector
// parameters are not dead fields even when gocv-backed SIFT is unavailable.
func NewDefaultDetector(cfg rigcalconfig.Config) *DefaultDetector {
	threshold := uint8(cfg.SIFTContrastThreshold * 255)
	if threshold == 0 {
		threshold = 8
	}
	return &DefaultDetector{Threshold: threshold, PatchRadius: 4}
}

var fastRing = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// Detect implements Detector.
func (d *DefaultDetector) Detect(img *image.Gray) (*Frame, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	bounds := img.Bounds()
	margin := 3 + d.PatchRadius
	var kps []Keypoint
	for y := bounds.Min.Y + margin; y < bounds.Max.Y-margin; y++ {
		for x := bounds.Min.X + margin; x < bounds.Max.X-margin; x++ {
			if d.isCorner(img, x, y) {
				kps = append(kps, Keypoint{X: float64(x), Y: float64(y)})
			}
		}
	}
	descs := make([]Descriptor, len(kps))
	for i, kp := range kps {
		descs[i] = d.patchDescriptor(img, int(kp.X), int(kp.Y))
	}
	return &Frame{Keypoints: kps, Descriptors: descs}, nil
}

// isCorner applies a simplified FAST-9 test: at least 9 contiguous ring
// pixels all brighter, or all darker, than the center by more than Threshold.
func (d *DefaultDetector) isCorner(img *image.Gray, x, y int) bool {
	center := int(img.GrayAt(x, y).Y)
	brighter := make([]bool, 16)
	darker := make([]bool, 16)
	for i, off := range fastRing {
		v := int(img.GrayAt(x+off[0], y+off[1]).Y)
		brighter[i] = v-center > int(d.Threshold)
		darker[i] = center-v > int(d.Threshold)
	}
	return longestRun(brighter) >= 9 || longestRun(darker) >= 9
}

func longestRun(vals []bool) int {
	n := len(vals)
	best, cur := 0, 0
	for i := 0; i < 2*n; i++ {
		if vals[i%n] {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}

// patchDescriptor samples a (2r+1)x(2r+1) intensity patch around the
// keypoint, normalized to zero mean, as the real-valued descriptor vector.
func (d *DefaultDetector) patchDescriptor(img *image.Gray, x, y int) Descriptor {
	r := d.PatchRadius
	desc := make(Descriptor, 0, (2*r+1)*(2*r+1))
	var sum float64
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			v := float64(img.GrayAt(x+dx, y+dy).Y)
			desc = append(desc, v)
			sum += v
		}
	}
	mean := sum / float64(len(desc))
	for i := range desc {
		desc[i] -= mean
	}
	return desc
}

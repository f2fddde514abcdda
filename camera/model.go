package camera

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Size is a pixel width/height pair.
type Size struct {
	Width, Height int
}

// Model is the per-sensor pinhole camera model of spec.md §4.2: a single
// focal length shared by x and y, a principal point, a distortion model, and
// the distorted/undistorted image sizes used to validate and resize loaded
// images. Grounded on the teacher's rimage/transform PinholeCameraIntrinsics,
// trimmed to the scalar-focal-length form spec.md §4.2 mandates and stripped
// of the image/pointcloud projection helpers that belong to the external,
// out-of-scope image-I/O collaborator (spec.md §1).
type Model struct {
	Focal              float64
	PrincipalPoint     r2.Point
	Distortion         Distorter
	DistortedSize      Size
	UndistortedSize    Size
}

// NewModel validates and constructs a Model.
func NewModel(focal float64, pp r2.Point, distortion Distorter, distortedSize, undistortedSize Size) (*Model, error) {
	if focal <= 0 {
		return nil, errors.Errorf("invalid focal length %v", focal)
	}
	if distortedSize.Width <= 0 || distortedSize.Height <= 0 {
		return nil, errors.Errorf("invalid distorted image size %+v", distortedSize)
	}
	if distortion == nil {
		distortion = identityDistorter{}
	}
	return &Model{
		Focal:           focal,
		PrincipalPoint:  pp,
		Distortion:      distortion,
		DistortedSize:   distortedSize,
		UndistortedSize: undistortedSize,
	}, nil
}

// ToUndistortedCentered maps a distorted pixel to the undistorted,
// principal-point-centered, focal-normalized coordinate used throughout the
// geometry kernels (spec.md §4.2 distorted→undistorted_centered).
func (m *Model) ToUndistortedCentered(x, y float64) r2.Point {
	cx := (x - m.PrincipalPoint.X) / m.Focal
	cy := (y - m.PrincipalPoint.Y) / m.Focal
	ux, uy := m.Distortion.Undistort(cx, cy)
	return r2.Point{X: ux, Y: uy}
}

// ToDistorted maps an undistorted, centered, normalized coordinate back to a
// distorted pixel (spec.md §4.2 undistorted_centered→distorted).
func (m *Model) ToDistorted(centered r2.Point) (float64, float64) {
	dx, dy := m.Distortion.Distort(centered.X, centered.Y)
	return dx*m.Focal + m.PrincipalPoint.X, dy*m.Focal + m.PrincipalPoint.Y
}

// NeedsResize reports whether an image of the given size must be resized to
// DistortedSize before feature detection (spec.md §4.2: "The engine must
// resize any loaded image whose dimensions differ from the configured
// distorted size").
func (m *Model) NeedsResize(loaded Size) bool {
	return loaded.Width != m.DistortedSize.Width || loaded.Height != m.DistortedSize.Height
}

// ResizeScale returns the (x, y) scale factors to map pixel coordinates from
// loaded to the configured distorted size, applied by the caller's image
// resampler (an out-of-scope I/O collaborator per spec.md §1).
func (m *Model) ResizeScale(loaded Size) (sx, sy float64) {
	return float64(m.DistortedSize.Width) / float64(loaded.Width),
		float64(m.DistortedSize.Height) / float64(loaded.Height)
}

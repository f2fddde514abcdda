// Package features implements the feature engine of spec.md §4.3: per-image
// keypoint/descriptor detection on a bounded worker pool, followed by
// pairwise matching with a geometric pre-filter and an affine-2D RANSAC pass.
package features

import "github.com/golang/geo/r2"

// Keypoint is a distorted pixel coordinate, indexed by its position in a
// Frame's Keypoints slice (that index is the feature id `fid` of spec.md §3).
type Keypoint = r2.Point

// Descriptor is a real-valued feature descriptor vector. SIFT/SURF both
// produce this shape; the ratio test of spec.md §4.3 step 1 operates on its
// L2 distance.
type Descriptor []float64

// Frame holds one acquisition's detection result: an ordered keypoint list
// and its parallel descriptor matrix, matching spec.md §3's "keypoint table"
// (fid = index into Keypoints) plus the transient descriptor matrix that is
// released once matching completes.
type Frame struct {
	Keypoints   []Keypoint
	Descriptors []Descriptor
}

// Match is one surviving correspondence between two frames' feature ids.
type Match struct {
	FidA, FidB int
}

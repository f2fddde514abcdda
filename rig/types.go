// Package rig defines the rig-wide data model of spec.md §3: sensor
// descriptors and camera acquisitions, owned by the optimization driver for
// the duration of a run and borrowed by every other component.
package rig

import (
	"github.com/rigcal/rigcal/camera"
	"github.com/rigcal/rigcal/geom"
)

// DepthToImageKind selects whether a sensor's depth-cloud-to-image transform
// is a rigid-with-scale similarity or a general affine map (spec.md §3).
type DepthToImageKind int

const (
	// DepthToImageRigid is a Kabsch-recoverable similarity transform.
	DepthToImageRigid DepthToImageKind = iota
	// DepthToImageAffine is a general affine transform (no separable scale).
	DepthToImageAffine
)

// Sensor is the fixed-per-run descriptor of spec.md §3's "Sensor descriptor".
type Sensor struct {
	ID   int
	Name string

	Intrinsics *camera.Model

	RefToSensor geom.Rigid
	// HasInitialRig is false when the rig-config file's ref_to_sensor_transform
	// was the all-zero sentinel (spec.md §6: "no initial rig known"); callers
	// must then recover this sensor's poses independently per acquisition
	// rather than trust RefToSensor.
	HasInitialRig bool

	DepthToImageKind DepthToImageKind
	DepthToImageSim  geom.Similarity // valid when DepthToImageKind == DepthToImageRigid
	DepthToImageAff  geom.Affine     // valid when DepthToImageKind == DepthToImageAffine

	RefToSensorTimestampOffset float64
}

// IsReference reports whether this is the reference sensor (id 0).
func (s Sensor) IsReference() bool { return s.ID == 0 }

// DepthPoint is one depth-cloud pixel: invalid pixels are the zero vector,
// per spec.md §3 "(0,0,0) marking invalid pixels".
type DepthPoint struct {
	X, Y, Z float64
}

// IsValid reports whether a depth point is a real measurement.
func (p DepthPoint) IsValid() bool {
	return p.X != 0 || p.Y != 0 || p.Z != 0
}

// DepthCloud is a 2-D grid of depth measurements aligned with a sensor's
// undistorted image coordinates.
type DepthCloud struct {
	Width, Height int
	Points        []DepthPoint // row-major, length Width*Height
}

// At returns the depth point at undistorted pixel (x, y), or an invalid
// (zero) point if out of bounds.
func (d *DepthCloud) At(x, y int) DepthPoint {
	if d == nil || x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return DepthPoint{}
	}
	return d.Points[y*d.Width+x]
}

// Acquisition is one camera capture (spec.md §3's `cam_image`).
type Acquisition struct {
	SensorID int
	WallTS   float64
	// RefTS is WallTS minus the owning sensor's time offset.
	RefTS float64

	// BegRef, EndRef index the two bracketing reference acquisitions; equal
	// when this acquisition is itself a reference frame.
	BegRef, EndRef int

	DistortedPixels []Keypoint2D // this acquisition's keypoint table (§3)

	Depth       *DepthCloud
	DepthTS     float64
	HasDepth    bool
}

// Keypoint2D is a distorted pixel coordinate; its slice index is the fid.
type Keypoint2D struct {
	X, Y float64
}

// IsReference reports whether this acquisition belongs to the reference
// sensor (sensor id 0).
func (a Acquisition) IsReference() bool { return a.SensorID == 0 }

// IsSelfBracketed reports whether the acquisition is self-bracketing
// (BegRef == EndRef), true for every reference-sensor acquisition and for
// the final reference frame when bracketed against itself (spec.md §4.5).
func (a Acquisition) IsSelfBracketed() bool { return a.BegRef == a.EndRef }

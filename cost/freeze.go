package cost

import "github.com/rigcal/rigcal/rigcalconfig"

// FreezePolicy answers the parameter-freezing questions of spec.md §4.7's
// table, given a loaded configuration. Every method name corresponds to one
// table row.
type FreezePolicy struct {
	Config rigcalconfig.Config
}

// IntrinsicsFree reports whether a sensor's focal length, principal point,
// and distortion are free parameters.
func (f FreezePolicy) IntrinsicsFree(sensorName string) bool {
	return f.Config.IntrinsicsFloat(sensorName)
}

// ExtrinsicsFree reports whether a sensor's reference-to-sensor transform is
// free. Always frozen for the reference sensor, regardless of configuration.
func (f FreezePolicy) ExtrinsicsFree(sensorName string, isReference bool) bool {
	if isReference {
		return false
	}
	return f.Config.ExtrinsicsFloat(sensorName)
}

// DepthToImageFree reports whether a sensor's depth-to-image transform is
// free: "depth_to_image" named in extrinsics_to_float.
func (f FreezePolicy) DepthToImageFree() bool {
	return f.Config.ExtrinsicsFloat("depth_to_image")
}

// DepthScaleFree reports whether depth scale is a free parameter:
// float_scale and not an affine depth-to-image transform (scale is not
// separable from a general affine linear part).
func (f FreezePolicy) DepthScaleFree(usesAffineDepthToImage bool) bool {
	return f.Config.FloatScale && !usesAffineDepthToImage
}

// TimeOffsetFree reports whether a non-reference sensor's time offset is
// free: float_timestamp_offsets, sensor != ref, and extrinsics are modeled.
func (f FreezePolicy) TimeOffsetFree(isReference bool) bool {
	return f.Config.FloatTimestampOffsets && !isReference && !f.Config.NoExtrinsics
}

// WorldToRefFree reports whether world-to-reference poses are free:
// float_sparse_map.
func (f FreezePolicy) WorldToRefFree() bool {
	return f.Config.FloatSparseMap
}

// WorldToCamFreeNoExtrinsics reports whether, when no_extrinsics is set, a
// camera's world-to-camera pose is directly free: float_sparse_map for the
// reference sensor, float_nonref_cameras otherwise. Returns false whenever
// no_extrinsics is not set, since this parameterization only applies in
// that mode.
func (f FreezePolicy) WorldToCamFreeNoExtrinsics(isReference bool) bool {
	if !f.Config.NoExtrinsics {
		return false
	}
	if isReference {
		return f.Config.FloatSparseMap
	}
	return f.Config.FloatNonrefCameras
}

// RightBracketFrozenForReference reports that the unused right-bracket pose
// of a reference-sensor acquisition is always frozen (a placeholder), per
// the last row of spec.md §4.7's table.
func (f FreezePolicy) RightBracketFrozenForReference() bool {
	return true
}

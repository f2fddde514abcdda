// Package pose implements the bracketed pose interpolator of spec.md §4.6.
package pose

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/rigcal/rigcal/geom"
)

// Fatal is returned when an interpolation parameter falls outside [0, 1],
// which spec.md §4.6 calls out explicitly as fatal rather than clamped.
var Fatal = errors.New("pose interpolation parameter out of [0, 1]")

// WorldToRef interpolates the world-to-reference transform at parameter
// alpha between the begin and end bracketing reference poses: translations
// linearly, rotations by slerp (spec.md §4.6).
func WorldToRef(begin, end geom.Rigid, alpha float64) (geom.Rigid, error) {
	if alpha < 0 || alpha > 1 {
		return geom.Rigid{}, errors.Wrapf(Fatal, "alpha = %v", alpha)
	}
	translation := r3.Vector{
		X: (1-alpha)*begin.Translation.X + alpha*end.Translation.X,
		Y: (1-alpha)*begin.Translation.Y + alpha*end.Translation.Y,
		Z: (1-alpha)*begin.Translation.Z + alpha*end.Translation.Z,
	}
	rotation := geom.Slerp(begin.Rotation, end.Rotation, alpha)
	return geom.NewRigidFromQuatTranslation(rotation, translation), nil
}

// Alpha computes the interpolation parameter of spec.md §4.6: the
// subtraction order (wallTS - refTSBeg) - offset is prescribed to preserve
// precision at large absolute timestamps, rather than wallTS - (refTSBeg +
// offset).
func Alpha(wallTS, refTSBeg, refTSEnd, offset float64) float64 {
	if refTSEnd == refTSBeg {
		return 0
	}
	return ((wallTS - refTSBeg) - offset) / (refTSEnd - refTSBeg)
}

// WorldToCam computes an acquisition's world-to-camera transform, per
// spec.md §4.6. When begin == end the acquisition is itself a reference
// frame: use worldToRefBegin directly and treat refToSensor as identity.
// Otherwise interpolate the reference-world pose and compose with
// refToSensor: T_{ref->s} . T_{world->ref}(alpha).
func WorldToCam(
	worldToRefBegin, worldToRefEnd geom.Rigid,
	refToSensor geom.Rigid,
	alpha float64,
	begEqualsEnd bool,
) (geom.Rigid, error) {
	if begEqualsEnd {
		return worldToRefBegin, nil
	}
	worldToRef, err := WorldToRef(worldToRefBegin, worldToRefEnd, alpha)
	if err != nil {
		return geom.Rigid{}, err
	}
	return worldToRef.Compose(refToSensor), nil
}

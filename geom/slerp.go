package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Slerp spherically interpolates between two unit quaternions at parameter
// t in [0, 1], used by the pose interpolator (spec.md §4.6: "rotations by
// unit-quaternion slerp"). Takes the short arc by flipping b when the dot
// product is negative, the standard fix for quaternion double-cover.
func Slerp(a, b quat.Number, t float64) quat.Number {
	dot := quatDot(a, b)
	if dot < 0 {
		b = quat.Scale(-1, b)
		dot = -dot
	}
	const dotThreshold = 0.9995
	if dot > dotThreshold {
		// Nearly parallel: linear interpolation avoids a divide-by-near-zero sin.
		return normalizeQuat(quat.Number{
			Real: a.Real + t*(b.Real-a.Real),
			Imag: a.Imag + t*(b.Imag-a.Imag),
			Jmag: a.Jmag + t*(b.Jmag-a.Jmag),
			Kmag: a.Kmag + t*(b.Kmag-a.Kmag),
		})
	}
	theta0 := math.Acos(dot)
	theta := theta0 * t
	sinTheta0 := math.Sin(theta0)
	sinTheta := math.Sin(theta)

	s0 := math.Cos(theta) - dot*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0

	return normalizeQuat(quat.Number{
		Real: s0*a.Real + s1*b.Real,
		Imag: s0*a.Imag + s1*b.Imag,
		Jmag: s0*a.Jmag + s1*b.Jmag,
		Kmag: s0*a.Kmag + s1*b.Kmag,
	})
}

func quatDot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

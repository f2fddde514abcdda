// Package geom implements the geometry kernels of spec.md §4.1: rigid and
// affine transforms, multi-view triangulation, and the Kabsch+scale similarity
// solve. Rotations are stored as unit quaternions (gonum.org/v1/gonum/num/quat),
// the same representation spatialmath.DualQuaternion builds on in the teacher
// repo, because quaternion composition and slerp (needed by the pose
// interpolator in package pose) are cheap and numerically well behaved.
package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Rigid is a rotation + translation: x -> R*x + T.
type Rigid struct {
	Rotation    quat.Number
	Translation r3.Vector
}

// Identity returns the identity rigid transform.
func Identity() Rigid {
	return Rigid{Rotation: quat.Number{Real: 1}, Translation: r3.Vector{}}
}

// NewRigidFromQuatTranslation builds a Rigid from an (unnormalized) quaternion
// and a translation, normalizing the quaternion.
func NewRigidFromQuatTranslation(q quat.Number, t r3.Vector) Rigid {
	return Rigid{Rotation: normalizeQuat(q), Translation: t}
}

func normalizeQuat(q quat.Number) quat.Number {
	n := quatNorm(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

func quatNorm(q quat.Number) float64 {
	return math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// Apply transforms a point: R*p + T.
func (r Rigid) Apply(p r3.Vector) r3.Vector {
	return rotateVector(r.Rotation, p).Add(r.Translation)
}

// rotateVector rotates p by unit quaternion q via q*p*conj(q).
func rotateVector(q quat.Number, p r3.Vector) r3.Vector {
	pq := quat.Number{Imag: p.X, Jmag: p.Y, Kmag: p.Z}
	rq := quat.Mul(quat.Mul(q, pq), quat.Conj(q))
	return r3.Vector{X: rq.Imag, Y: rq.Jmag, Z: rq.Kmag}
}

// Inverse returns the transform's inverse: for orthonormal R, R^-1 = conj(q).
func (r Rigid) Inverse() Rigid {
	qInv := quat.Conj(r.Rotation)
	return Rigid{
		Rotation:    qInv,
		Translation: rotateVector(qInv, r.Translation.Mul(-1)),
	}
}

// Compose returns the transform equivalent to applying r first, then other:
// other.Apply(r.Apply(p)).
func (r Rigid) Compose(other Rigid) Rigid {
	return Rigid{
		Rotation:    quat.Mul(other.Rotation, r.Rotation),
		Translation: rotateVector(other.Rotation, r.Translation).Add(other.Translation),
	}
}

// RotationMatrix returns the row-major 3x3 rotation matrix.
func (r Rigid) RotationMatrix() [9]float64 {
	q := r.Rotation
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	}
}

// NewRigidFromRotationMatrix builds a Rigid from a row-major 3x3 rotation
// matrix and a translation, converting the matrix to a unit quaternion.
func NewRigidFromRotationMatrix(m [9]float64, t r3.Vector) Rigid {
	trace := m[0] + m[4] + m[8]
	var w, x, y, z float64
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		w = 0.25 / s
		x = (m[7] - m[5]) * s
		y = (m[2] - m[6]) * s
		z = (m[3] - m[1]) * s
	case m[0] > m[4] && m[0] > m[8]:
		s := 2 * math.Sqrt(1+m[0]-m[4]-m[8])
		w = (m[7] - m[5]) / s
		x = 0.25 * s
		y = (m[1] + m[3]) / s
		z = (m[2] + m[6]) / s
	case m[4] > m[8]:
		s := 2 * math.Sqrt(1+m[4]-m[0]-m[8])
		w = (m[2] - m[6]) / s
		x = (m[1] + m[3]) / s
		y = 0.25 * s
		z = (m[5] + m[7]) / s
	default:
		s := 2 * math.Sqrt(1+m[8]-m[0]-m[4])
		w = (m[3] - m[1]) / s
		x = (m[2] + m[6]) / s
		y = (m[5] + m[7]) / s
		z = 0.25 * s
	}
	return Rigid{Rotation: normalizeQuat(quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}), Translation: t}
}

// ToArray7 serializes to (qw,qx,qy,qz,tx,ty,tz), the R1-R4 residual parameter
// block shape of spec.md §4.7.
func (r Rigid) ToArray7() [7]float64 {
	q := r.Rotation
	return [7]float64{q.Real, q.Imag, q.Jmag, q.Kmag, r.Translation.X, r.Translation.Y, r.Translation.Z}
}

// RigidFromArray7 is the inverse of ToArray7.
func RigidFromArray7(a [7]float64) Rigid {
	return NewRigidFromQuatTranslation(
		quat.Number{Real: a[0], Imag: a[1], Jmag: a[2], Kmag: a[3]},
		r3.Vector{X: a[4], Y: a[5], Z: a[6]},
	)
}

// ToArray12 serializes to a row-major 3x4 matrix [R | T], the rig-config and
// NVM/image-list wire format (spec.md §6).
func (r Rigid) ToArray12() [12]float64 {
	m := r.RotationMatrix()
	return [12]float64{
		m[0], m[1], m[2], r.Translation.X,
		m[3], m[4], m[5], r.Translation.Y,
		m[6], m[7], m[8], r.Translation.Z,
	}
}

// RigidFromArray12 is the inverse of ToArray12.
func RigidFromArray12(a [12]float64) Rigid {
	m := [9]float64{a[0], a[1], a[2], a[4], a[5], a[6], a[8], a[9], a[10]}
	t := r3.Vector{X: a[3], Y: a[7], Z: a[11]}
	return NewRigidFromRotationMatrix(m, t)
}

// IsZero reports whether the transform's 3x4 matrix is all zeros: a rig-config
// sentinel meaning "no initial rig known" (spec.md §6).
func (r Rigid) IsZero() bool {
	a := r.ToArray12()
	for _, v := range a {
		if v != 0 {
			return false
		}
	}
	return true
}

// TransformWorldToCam applies the spec.md §4.1 "transform_cameras" rule to one
// world-to-camera rigid transform under a similarity T(x) = s*R*x + t: the new
// world-to-camera is L*(R/s)^-1 for the linear part and s*t_old - L_new*t_T for
// the translation, where s = |T.linear|^(1/3).
func TransformWorldToCam(sim Similarity, worldToCam Rigid) Rigid {
	s := sim.Scale
	// (R/s)^-1 = conj(R) * s since R is a unit quaternion.
	rInvScaled := quat.Scale(s, quat.Conj(sim.Rotation))
	newRotQ := quat.Mul(worldToCam.Rotation, rInvScaled)
	newRot := normalizeQuat(newRotQ)
	newTranslation := worldToCam.Translation.Mul(s).Sub(rotateVector(newRot, sim.Translation))
	return Rigid{Rotation: newRot, Translation: newTranslation}
}

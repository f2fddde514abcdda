package geom

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Affine is a general 3x3 linear map plus translation: x -> L*x + T. Used for
// depth-to-image transforms that are not rigid-with-scale (spec.md §3).
type Affine struct {
	Linear      [9]float64 // row-major 3x3
	Translation r3.Vector
}

// Apply transforms a point through the affine map.
func (a Affine) Apply(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: a.Linear[0]*p.X + a.Linear[1]*p.Y + a.Linear[2]*p.Z + a.Translation.X,
		Y: a.Linear[3]*p.X + a.Linear[4]*p.Y + a.Linear[5]*p.Z + a.Translation.Y,
		Z: a.Linear[6]*p.X + a.Linear[7]*p.Y + a.Linear[8]*p.Z + a.Translation.Z,
	}
}

// ToArray12 serializes to a row-major 3x4 matrix, the same wire shape as a Rigid.
func (a Affine) ToArray12() [12]float64 {
	return [12]float64{
		a.Linear[0], a.Linear[1], a.Linear[2], a.Translation.X,
		a.Linear[3], a.Linear[4], a.Linear[5], a.Translation.Y,
		a.Linear[6], a.Linear[7], a.Linear[8], a.Translation.Z,
	}
}

// AffineFromArray12 is the inverse of ToArray12.
func AffineFromArray12(a [12]float64) Affine {
	return Affine{
		Linear:      [9]float64{a[0], a[1], a[2], a[4], a[5], a[6], a[8], a[9], a[10]},
		Translation: r3.Vector{X: a[3], Y: a[7], Z: a[11]},
	}
}

// FromRigid expresses a Rigid as an Affine (identity-scale linear part).
func FromRigid(r Rigid) Affine {
	m := r.RotationMatrix()
	return Affine{Linear: m, Translation: r.Translation}
}

// Similarity is a uniform-scale rigid transform: x -> s*R*x + t (§4.1 Kabsch).
type Similarity struct {
	Scale       float64
	Rotation    quat.Number
	Translation r3.Vector
}

// ToRigidWithScale splits the similarity into its rigid part and scalar scale,
// used when reinstating depth scale into the depth-to-image linear part after
// the final optimization pass (spec.md §4.9).
func (s Similarity) ToRigidWithScale() (Rigid, float64) {
	return Rigid{Rotation: s.Rotation, Translation: s.Translation}, s.Scale
}

// ScaleAffine returns the Affine whose linear part is the similarity's rotation
// scaled by s, i.e. the depth-to-image transform with the scale factored back in.
func (s Similarity) ScaleAffine() Affine {
	r := Rigid{Rotation: s.Rotation}
	m := r.RotationMatrix()
	for i := range m {
		m[i] *= s.Scale
	}
	return Affine{Linear: m, Translation: s.Translation}
}

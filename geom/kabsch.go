package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// SolveSimilarity implements the Kabsch+scale solve of spec.md §4.1: given two
// ordered point sets `in` and `out`, return the similarity T(x) = s*R*x + t
// minimizing sum ||T*in_i - out_i||^2, following the prescribed step order.
// Grounded on the SVD-based rotation recovery in the teacher's
// rimage/transform/two_view_geom.go (performSVD, sign-adjustment of the
// determinant), generalized from the essential-matrix 3x3 case to the
// general point-cloud alignment case.
func SolveSimilarity(in, out []r3.Vector) Similarity {
	n := len(in)
	if n == 0 || n != len(out) {
		return identitySimilarity()
	}

	// Step 1: scale estimate from consecutive-point distance ratios.
	var sumIn, sumOut float64
	for i := 0; i+1 < n; i++ {
		sumIn += in[i+1].Sub(in[i]).Norm()
		sumOut += out[i+1].Sub(out[i]).Norm()
	}
	if sumIn <= 0 || sumOut <= 0 {
		return identitySimilarity()
	}
	s := sumOut / sumIn

	// Step 2: divide out by s.
	scaledOut := make([]r3.Vector, n)
	for i, p := range out {
		scaledOut[i] = p.Mul(1 / s)
	}

	// Step 3: subtract centroids.
	centroidIn := centroid(in)
	centroidOut := centroid(scaledOut)
	centeredIn := mat.NewDense(3, n, nil)
	centeredOut := mat.NewDense(3, n, nil)
	for i := 0; i < n; i++ {
		ci := in[i].Sub(centroidIn)
		co := scaledOut[i].Sub(centroidOut)
		centeredIn.Set(0, i, ci.X)
		centeredIn.Set(1, i, ci.Y)
		centeredIn.Set(2, i, ci.Z)
		centeredOut.Set(0, i, co.X)
		centeredOut.Set(1, i, co.Y)
		centeredOut.Set(2, i, co.Z)
	}

	// Step 4: SVD of in^T . out^T^T, i.e. H = centeredIn * centeredOut^T.
	var h mat.Dense
	h.Mul(centeredIn, centeredOut.T())
	var svd mat.SVD
	if !svd.Factorize(&h, mat.SVDFull) {
		return identitySimilarity()
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// Step 5: R = V . diag(1,1,sign|VU^T|) . U^T
	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := 1.0
	if mat.Det(&vut) < 0 {
		d = -1
	}
	diag := mat.NewDiagDense(3, []float64{1, 1, d})
	var rTmp, rMat mat.Dense
	rTmp.Mul(&v, diag)
	rMat.Mul(&rTmp, u.T())
	rotation := NewRigidFromRotationMatrix(denseTo9(&rMat), r3.Vector{}).Rotation

	// Step 6: t = s*(c_out - R*c_in)
	t := centroidOut.Mul(s).Sub(rotateVector(rotation, centroidIn).Mul(s))

	return Similarity{Scale: s, Rotation: rotation, Translation: t}
}

func identitySimilarity() Similarity {
	return Similarity{Scale: 1, Rotation: Identity().Rotation}
}

func centroid(pts []r3.Vector) r3.Vector {
	var sum r3.Vector
	for _, p := range pts {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(pts)))
}

func denseTo9(m *mat.Dense) [9]float64 {
	var out [9]float64
	k := 0
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[k] = m.At(r, c)
			k++
		}
	}
	return out
}

// residual is exposed for tests verifying ‖T·in − out‖ < tolerance.
func residual(sim Similarity, in, out r3.Vector) float64 {
	predicted := rotateVector(sim.Rotation, in).Mul(sim.Scale).Add(sim.Translation)
	return predicted.Sub(out).Norm()
}

// MaxResidual returns the maximum ||T*in_i - out_i|| over all points, used by
// the similarity-solve boundary test (spec.md §8 scenario 3).
func MaxResidual(sim Similarity, in, out []r3.Vector) float64 {
	maxR := 0.0
	for i := range in {
		r := residual(sim, in[i], out[i])
		if r > maxR {
			maxR = r
		}
	}
	return maxR
}

// Apply applies the similarity transform to a point: s*R*p + t.
func (s Similarity) Apply(p r3.Vector) r3.Vector {
	return rotateVector(s.Rotation, p).Mul(s.Scale).Add(s.Translation)
}

// TransformPoints applies a Rigid to a slice of points (spec.md §4.1 transform_points).
func TransformPoints(r Rigid, pts []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	for i, p := range pts {
		out[i] = r.Apply(p)
	}
	return out
}

// CheckOrthonormal is a test helper reporting whether the row-major 3x3
// matrix m has determinant 1 within 1e-6; it does not check that the rows
// are orthogonal.
func CheckOrthonormal(m [9]float64) bool {
	det := m[0]*(m[4]*m[8]-m[5]*m[7]) - m[1]*(m[3]*m[8]-m[5]*m[6]) + m[2]*(m[3]*m[7]-m[4]*m[6])
	return math.Abs(det-1) < 1e-6
}

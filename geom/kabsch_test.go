package geom

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestSolveSimilarityRotationScaleTranslation(t *testing.T) {
	in := []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1}}
	// 90 degree rotation about Z, scale 2, translation (5,0,0).
	out := make([]r3.Vector, len(in))
	for i, p := range in {
		rotated := r3.Vector{X: -p.Y, Y: p.X, Z: p.Z}
		out[i] = rotated.Mul(2).Add(r3.Vector{X: 5})
	}

	sim := SolveSimilarity(in, out)
	test.That(t, math.Abs(sim.Scale-2), test.ShouldBeLessThan, 1e-8)
	test.That(t, MaxResidual(sim, in, out), test.ShouldBeLessThan, 1e-8)
}

func TestSolveSimilarityDegenerateInput(t *testing.T) {
	in := []r3.Vector{{X: 0, Y: 0, Z: 0}}
	out := []r3.Vector{{X: 1, Y: 1, Z: 1}}
	sim := SolveSimilarity(in, out)
	test.That(t, sim.Scale, test.ShouldEqual, 1.0)
}

func TestRigidArray7RoundTrip(t *testing.T) {
	r := NewRigidFromRotationMatrix([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, r3.Vector{X: 1, Y: 2, Z: 3})
	round := RigidFromArray7(r.ToArray7())
	test.That(t, round.Translation.X, test.ShouldEqual, 1.0)
	test.That(t, round.Translation.Y, test.ShouldEqual, 2.0)
	test.That(t, round.Translation.Z, test.ShouldEqual, 3.0)
}

func TestRigidArray12RoundTripOrthonormal(t *testing.T) {
	r := NewRigidFromRotationMatrix([9]float64{0, -1, 0, 1, 0, 0, 0, 0, 1}, r3.Vector{X: 1, Y: -2, Z: 3})
	test.That(t, CheckOrthonormal(r.RotationMatrix()), test.ShouldBeTrue)
	round := RigidFromArray12(r.ToArray12())
	test.That(t, round.ToArray12()[0], test.ShouldAlmostEqual, r.ToArray12()[0])
}

// Package cost implements the parametric residuals of spec.md §4.7: bracketed
// reprojection (R1), bracketed depth-triangulation (R2), bracketed depth-mesh
// (R3), mesh-triangulation anchor (R4), the Cauchy robustifier, and the
// parameter-freezing policy table. The optimization driver (C9) marshals
// these typed residual functions into the flat scalar arrays a
// numerically-differentiated solver addresses; keeping the residual math
// itself typed follows spec.md §9's "typed views over a single backing
// buffer" design note.
package cost

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/rigcal/rigcal/camera"
	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/pose"
)

// DegenerateProjection is returned when a reprojection residual's world point
// falls behind the camera (non-positive depth), mirroring the triangulation
// degeneracy handling of geom.TriangulateMultiView.
var DegenerateProjection = errors.New("world point behind camera")

// Reprojection computes the R1 residual of spec.md §4.7: the distorted-pixel
// measurement minus the projection, through the sensor's camera model, of the
// interpolated world-to-cam transform applied to the world point. The
// parameter groups named by spec.md §4.7 (begin/end world-to-ref, ref-to-
// sensor, world point, time offset, focal/principal-point/distortion) are
// folded into worldToRefBegin/End, refToSensor, worldPoint, timeOffset, and
// model; C9 is responsible for reading and writing these from the solver's
// flat parameter vector.
func Reprojection(
	worldToRefBegin, worldToRefEnd, refToSensor geom.Rigid,
	worldPoint r3.Vector,
	wallTS, refTSBeg, refTSEnd, timeOffset float64,
	selfBracketed bool,
	model *camera.Model,
	measured r2.Point,
) (dx, dy float64, err error) {
	alpha := pose.Alpha(wallTS, refTSBeg, refTSEnd, timeOffset)
	worldToCam, err := pose.WorldToCam(worldToRefBegin, worldToRefEnd, refToSensor, alpha, selfBracketed)
	if err != nil {
		return 0, 0, err
	}
	cam := worldToCam.Apply(worldPoint)
	if cam.Z <= 0 {
		return 0, 0, DegenerateProjection
	}
	centered := r2.Point{X: cam.X / cam.Z, Y: cam.Y / cam.Z}
	projX, projY := model.ToDistorted(centered)
	return measured.X - projX, measured.Y - projY, nil
}

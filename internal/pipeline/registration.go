package pipeline

import (
	"math"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/rigcal/rigcal/driver"
	"github.com/rigcal/rigcal/persist"
)

// pixelMatchTolerancePx bounds how far a .pto control point's hand-picked
// pixel may sit from a track's actual feature-engine observation and still
// count as the same scene point (spec.md §6's control points are placed in
// an external tool, not by this engine's detector).
const pixelMatchTolerancePx = 2.0

// ResolveControlPoints matches each registration control point (spec.md §6:
// a Hugin-style .pto file naming two images and a pixel in each) to the
// triangulated landmark of whichever track observes a nearby pixel in
// either named image, pairing it with the ground-truth coordinate the
// companion XYZ file gives for the same control point index. A control
// point that cannot be resolved to a triangulated landmark in either image
// is dropped; spec.md §7's "fewer than 3 usable control points" fatal
// threshold is enforced by driver.ApplyRegistration on the surviving count.
func ResolveControlPoints(state *driver.State, sources []Source, images []string, points []persist.ControlPoint, worldXYZ []r3.Vector) (mapPoints, worldPoints []r3.Vector, err error) {
	if len(points) != len(worldXYZ) {
		return nil, nil, errors.New("registration: control point count does not match XYZ file")
	}

	cidByBasename := make(map[string]int, len(sources))
	for i, s := range sources {
		cidByBasename[filepath.Base(s.Entry.ImagePath)] = i
	}

	for i, p := range points {
		leftCID, leftOK := cidByBasename[imageBasename(images, p.ImageLeft)]
		if pid, ok := findTrackNear(state, leftCID, leftOK, p.XL, p.YL); ok {
			mapPoints = append(mapPoints, state.Landmarks[pid])
			worldPoints = append(worldPoints, worldXYZ[i])
			continue
		}
		rightCID, rightOK := cidByBasename[imageBasename(images, p.ImageRight)]
		if pid, ok := findTrackNear(state, rightCID, rightOK, p.XR, p.YR); ok {
			mapPoints = append(mapPoints, state.Landmarks[pid])
			worldPoints = append(worldPoints, worldXYZ[i])
		}
	}
	return mapPoints, worldPoints, nil
}

func imageBasename(images []string, idx int) string {
	if idx < 0 || idx >= len(images) {
		return ""
	}
	return filepath.Base(images[idx])
}

func findTrackNear(state *driver.State, cid int, cidOK bool, x, y float64) (pid int, ok bool) {
	if !cidOK {
		return 0, false
	}
	for pid, track := range state.Tracks {
		fid, inTrack := track[cid]
		if !inTrack {
			continue
		}
		kp := state.Acquisitions[cid].DistortedPixels[fid]
		if math.Abs(kp.X-x) <= pixelMatchTolerancePx && math.Abs(kp.Y-y) <= pixelMatchTolerancePx {
			return pid, true
		}
	}
	return 0, false
}

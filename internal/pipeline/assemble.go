// Package pipeline wires the calibration engine's independent components
// (feature engine, track builder, bracketing, optimization driver) into the
// single assembled run the cmd/rigcal calibrate command drives. It owns no
// algorithm of its own; every step here delegates to the package that
// implements it.
package pipeline

import (
	"image"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/rigcal/rigcal/bracketing"
	"github.com/rigcal/rigcal/driver"
	"github.com/rigcal/rigcal/features"
	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/internal/rigcalog"
	"github.com/rigcal/rigcal/outlier"
	"github.com/rigcal/rigcal/persist"
	"github.com/rigcal/rigcal/rig"
	"github.com/rigcal/rigcal/rigcalconfig"
	"github.com/rigcal/rigcal/tracks"
)

// Source is one loaded acquisition: its manifest entry, decoded grayscale
// image, and optional depth cloud.
type Source struct {
	Entry persist.ManifestEntry
	Image *image.Gray
	Depth *rig.DepthCloud
}

// DetectAndMatch runs the feature engine (spec.md §4.3) over every source's
// image and pairwise-matches the resulting frames.
func DetectAndMatch(detector features.Detector, sources []Source, cfg rigcalconfig.Config, logger rigcalog.Logger) ([]*features.Frame, map[features.PairKey][]features.Match, error) {
	images := make([]*image.Gray, len(sources))
	for i, s := range sources {
		images[i] = s.Image
	}
	frames, err := features.DetectAll(detector, images, cfg, logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "detecting features")
	}
	// The geometric pre-filter of spec.md §4.3 step 2 needs a current pose
	// estimate per acquisition, which does not exist yet at matching time
	// (bracketing and pose assembly run after this step); only the affine-2D
	// RANSAC filter is applied here, which is purely image-plane geometry.
	filter := func(i, j int, matches []features.Match) []features.Match {
		return features.FilterByAffineRANSAC(matches, frames[i].Keypoints, frames[j].Keypoints,
			cfg.AffineRANSACThresholdPx, cfg.AffineRANSACMaxIterations, cfg.AffineRANSACConfidence)
	}
	matches := features.PairwiseMatchAll(frames, filter, cfg, logger)
	return frames, matches, nil
}

// AssembleState implements spec.md §3's data model assembly: it builds the
// reference timeline, brackets every non-reference acquisition against it
// (§4.5), fuses pairwise matches into tracks (§4.4), and returns a
// driver.State ready for driver.Run. Acquisition index (cid) equals the
// source's position in sources, matching the index space DetectAndMatch used
// to build frames and matches.
func AssembleState(rc persist.RigConfig, sources []Source, matches map[features.PairKey][]features.Match, frames []*features.Frame, cfg rigcalconfig.Config) (*driver.State, error) {
	if len(rc.Sensors) == 0 {
		return nil, errors.New("rig config has no sensors")
	}
	sensors := make([]rig.Sensor, len(rc.Sensors))
	copy(sensors, rc.Sensors)

	// Reference timeline: every source whose sensor id is the reference
	// sensor, sorted by wall timestamp (spec.md §4.5's monotone assumption).
	var refIdx []int
	for i, s := range sources {
		if s.Entry.SensorID == rc.RefSensorID {
			refIdx = append(refIdx, i)
		}
	}
	if len(refIdx) < 2 {
		return nil, errors.New("need at least 2 reference-sensor acquisitions to bracket against")
	}
	sort.Slice(refIdx, func(i, j int) bool {
		return sources[refIdx[i]].Entry.Timestamp < sources[refIdx[j]].Entry.Timestamp
	})

	refFrameTS := make([]float64, len(refIdx))
	refPoses := make([]geom.Rigid, len(refIdx))
	refFrames := make([]bracketing.RefFrame, len(refIdx))
	for i, si := range refIdx {
		refFrameTS[i] = sources[si].Entry.Timestamp
		refPoses[i] = sources[si].Entry.WorldToCam
		refFrames[i] = bracketing.RefFrame{RefTS: refFrameTS[i]}
	}

	acquisitions := make([]rig.Acquisition, len(sources))
	for i, s := range sources {
		acq := rig.Acquisition{
			SensorID: s.Entry.SensorID,
			WallTS:   s.Entry.Timestamp,
			Depth:    s.Depth,
			HasDepth: s.Depth != nil,
		}
		if frames[i] != nil {
			acq.DistortedPixels = make([]rig.Keypoint2D, len(frames[i].Keypoints))
			for j, kp := range frames[i].Keypoints {
				acq.DistortedPixels[j] = rig.Keypoint2D{X: kp.X, Y: kp.Y}
			}
		}
		acq.RefTS = acq.WallTS - sensors[s.Entry.SensorID].RefToSensorTimestampOffset
		acquisitions[i] = acq
	}

	// Bracket each non-reference sensor's candidates against the reference
	// timeline, then stamp every matching acquisition's BegRef/EndRef.
	bySensor := map[int][]int{} // sensor id -> source indices, time-sorted
	for i, s := range sources {
		if s.Entry.SensorID == rc.RefSensorID {
			continue
		}
		bySensor[s.Entry.SensorID] = append(bySensor[s.Entry.SensorID], i)
	}
	for sensorID, idxs := range bySensor {
		sort.Slice(idxs, func(i, j int) bool {
			return sources[idxs[i]].Entry.Timestamp < sources[idxs[j]].Entry.Timestamp
		})
		candidates := make([]bracketing.Candidate, len(idxs))
		for i, si := range idxs {
			candidates[i] = bracketing.Candidate{WallTS: sources[si].Entry.Timestamp}
		}
		offset := sensors[sensorID].RefToSensorTimestampOffset
		brackets := bracketing.BracketSensor(refFrames, candidates, offset, cfg.BracketLength)
		for _, b := range brackets {
			si := idxs[b.CandidateIndex]
			acquisitions[si].BegRef = b.RefIndex
			acquisitions[si].EndRef = b.RefIndex + 1
		}
	}
	refPosition := make(map[int]int, len(refIdx))
	for i, si := range refIdx {
		refPosition[si] = i
	}
	for _, si := range refIdx {
		b, e := bracketing.SelfBracket(refPosition[si])
		acquisitions[si].BegRef = b
		acquisitions[si].EndRef = e
	}

	// Fuse pairwise matches into tracks (spec.md §4.4). An acquisition that
	// never matched a bracket window keeps its zero-valued BegRef/EndRef,
	// which the outlier flagger and reprojection filter will prune as excess
	// residual rather than something AssembleState must special-case.
	allTracks := tracks.Build(matches)

	state := &driver.State{
		RefFrameTS:   refFrameTS,
		RefPoses:     refPoses,
		Sensors:      sensors,
		Acquisitions: acquisitions,
		Tracks:       allTracks,
		Landmarks:    make([]r3.Vector, len(allTracks)),
		Mask:         outlier.Mask{},
	}
	return state, nil
}

package driver

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/rigcal/rigcal/bracketing"
	"github.com/rigcal/rigcal/camera"
	"github.com/rigcal/rigcal/cost"
	"github.com/rigcal/rigcal/geom"
	"github.com/rigcal/rigcal/rig"
	"github.com/rigcal/rigcal/rigcalconfig"
)

// Layout assigns flat-vector offsets to every free parameter group, per
// spec.md §9's "typed views over a single backing buffer" design note: a
// tagged-index abstraction replacing the source's raw pointer arithmetic
// into one pool of doubles. An offset of -1 means the group is frozen, per
// the spec.md §4.7 parameter-freezing table, and is read from State directly
// rather than from the flat vector.
type Layout struct {
	RefPoseOffset      []int // len(state.RefPoses); 7 floats each
	ExtrinsicsOffset   map[int]int // sensor id -> offset; 7 floats
	IntrinsicsOffset   map[int]int // sensor id -> offset; 3+len(distortion) floats
	IntrinsicsDistLen  map[int]int // sensor id -> distortion vector length
	DepthToImageOffset map[int]int // sensor id -> offset; 7 floats (rigid part)
	DepthScaleOffset   map[int]int // sensor id -> offset; 1 float
	TimeOffsetOffset   map[int]int // sensor id -> offset; 1 float
	TimeOffsetBounds   map[int][2]float64

	WorldToCamOffset map[int]int // acquisition index -> offset, when no_extrinsics; 7 floats

	LandmarkOffset []int // len(state.Tracks); 3 floats each, always free

	Size int
}

// BuildLayout walks every parameter group named in spec.md §4.7's table and
// assigns it a flat-vector offset, or -1 if FreezePolicy says it is frozen.
func BuildLayout(state *State, cfg rigcalconfig.Config) Layout {
	policy := cost.FreezePolicy{Config: cfg}
	layout := Layout{
		RefPoseOffset:      make([]int, len(state.RefPoses)),
		ExtrinsicsOffset:   map[int]int{},
		IntrinsicsOffset:   map[int]int{},
		IntrinsicsDistLen:  map[int]int{},
		DepthToImageOffset: map[int]int{},
		DepthScaleOffset:   map[int]int{},
		TimeOffsetOffset:   map[int]int{},
		TimeOffsetBounds:   map[int][2]float64{},
		WorldToCamOffset:   map[int]int{},
		LandmarkOffset:     make([]int, len(state.Tracks)),
	}
	next := 0
	alloc := func(n int) int {
		o := next
		next += n
		return o
	}

	if cfg.NoExtrinsics {
		for i, acq := range state.Acquisitions {
			if policy.WorldToCamFreeNoExtrinsics(acq.IsReference()) {
				layout.WorldToCamOffset[i] = alloc(7)
			} else {
				layout.WorldToCamOffset[i] = -1
			}
		}
	} else {
		refFree := policy.WorldToRefFree()
		for b := range state.RefPoses {
			if refFree {
				layout.RefPoseOffset[b] = alloc(7)
			} else {
				layout.RefPoseOffset[b] = -1
			}
		}
	}

	wallTS, refTSBeg, refTSEnd := timestampTriples(state)

	for _, sensor := range state.Sensors {
		if sensor.IsReference() {
			continue
		}
		if policy.ExtrinsicsFree(sensor.Name, false) {
			layout.ExtrinsicsOffset[sensor.ID] = alloc(7)
		} else {
			layout.ExtrinsicsOffset[sensor.ID] = -1
		}
		if policy.TimeOffsetFree(false) {
			layout.TimeOffsetOffset[sensor.ID] = alloc(1)
			lo, hi := bracketing.OffsetBounds(wallTS[sensor.ID], refTSBeg[sensor.ID], refTSEnd[sensor.ID],
				sensor.RefToSensorTimestampOffset, cfg.MaxOffsetChange)
			layout.TimeOffsetBounds[sensor.ID] = [2]float64{lo, hi}
		} else {
			layout.TimeOffsetOffset[sensor.ID] = -1
		}
		usesAffine := sensor.DepthToImageKind == rig.DepthToImageAffine
		if policy.DepthToImageFree() {
			layout.DepthToImageOffset[sensor.ID] = alloc(7)
		} else {
			layout.DepthToImageOffset[sensor.ID] = -1
		}
		if policy.DepthScaleFree(usesAffine) {
			layout.DepthScaleOffset[sensor.ID] = alloc(1)
		} else {
			layout.DepthScaleOffset[sensor.ID] = -1
		}
	}

	for _, sensor := range state.Sensors {
		if policy.IntrinsicsFree(sensor.Name) {
			distLen := len(sensor.Intrinsics.Distortion.Parameters())
			layout.IntrinsicsDistLen[sensor.ID] = distLen
			layout.IntrinsicsOffset[sensor.ID] = alloc(3 + distLen)
		} else {
			layout.IntrinsicsOffset[sensor.ID] = -1
		}
	}

	for pid := range state.Tracks {
		layout.LandmarkOffset[pid] = alloc(3)
	}

	layout.Size = next
	return layout
}

// timestampTriples builds, per non-reference sensor id, the parallel
// wall_ts/ref_ts[beg]/ref_ts[end] slices bracketing.OffsetBounds expects,
// drawn from that sensor's acquisitions.
func timestampTriples(state *State) (wallTS, refTSBeg, refTSEnd map[int][]float64) {
	wallTS = map[int][]float64{}
	refTSBeg = map[int][]float64{}
	refTSEnd = map[int][]float64{}
	for _, acq := range state.Acquisitions {
		if acq.IsReference() {
			continue
		}
		wallTS[acq.SensorID] = append(wallTS[acq.SensorID], acq.WallTS)
		refTSBeg[acq.SensorID] = append(refTSBeg[acq.SensorID], state.RefFrameTS[acq.BegRef])
		refTSEnd[acq.SensorID] = append(refTSEnd[acq.SensorID], state.RefFrameTS[acq.EndRef])
	}
	return wallTS, refTSBeg, refTSEnd
}

// Pack serializes every free parameter group's current value from state into
// a fresh flat vector, in layout's offsets.
func Pack(state *State, layout Layout) []float64 {
	x := make([]float64, layout.Size)

	for i, off := range layout.WorldToCamOffset {
		if off < 0 {
			continue
		}
		arr := state.WorldToCam[i].ToArray7()
		copy(x[off:off+7], arr[:])
	}
	for b, off := range layout.RefPoseOffset {
		if off < 0 {
			continue
		}
		arr := state.RefPoses[b].ToArray7()
		copy(x[off:off+7], arr[:])
	}
	for id, off := range layout.ExtrinsicsOffset {
		if off < 0 {
			continue
		}
		arr := state.Sensors[id].RefToSensor.ToArray7()
		copy(x[off:off+7], arr[:])
	}
	for id, off := range layout.TimeOffsetOffset {
		if off < 0 {
			continue
		}
		x[off] = state.Sensors[id].RefToSensorTimestampOffset
	}
	for id, off := range layout.DepthToImageOffset {
		if off < 0 {
			continue
		}
		rigidPart, _ := state.Sensors[id].DepthToImageSim.ToRigidWithScale()
		arr := rigidPart.ToArray7()
		copy(x[off:off+7], arr[:])
	}
	for id, off := range layout.DepthScaleOffset {
		if off < 0 {
			continue
		}
		x[off] = state.Sensors[id].DepthToImageSim.Scale
	}
	for id, off := range layout.IntrinsicsOffset {
		if off < 0 {
			continue
		}
		m := state.Sensors[id].Intrinsics
		x[off] = m.Focal
		x[off+1] = m.PrincipalPoint.X
		x[off+2] = m.PrincipalPoint.Y
		copy(x[off+3:off+3+layout.IntrinsicsDistLen[id]], m.Distortion.Parameters())
	}
	for pid, off := range layout.LandmarkOffset {
		x[off] = state.Landmarks[pid].X
		x[off+1] = state.Landmarks[pid].Y
		x[off+2] = state.Landmarks[pid].Z
	}
	return x
}

// Unpack deserializes every free parameter group from x back into a mutable
// copy of state, clamping bounded groups (currently only timestamp offsets)
// to their derived bounds. Frozen groups are left untouched, so the caller
// must start from a State already carrying the correct frozen values.
func Unpack(x []float64, layout Layout, state *State) {
	for i, off := range layout.WorldToCamOffset {
		if off < 0 {
			continue
		}
		var a [7]float64
		copy(a[:], x[off:off+7])
		state.WorldToCam[i] = geom.RigidFromArray7(a)
	}
	for b, off := range layout.RefPoseOffset {
		if off < 0 {
			continue
		}
		var a [7]float64
		copy(a[:], x[off:off+7])
		state.RefPoses[b] = geom.RigidFromArray7(a)
	}
	for id, off := range layout.ExtrinsicsOffset {
		if off < 0 {
			continue
		}
		var a [7]float64
		copy(a[:], x[off:off+7])
		state.Sensors[id].RefToSensor = geom.RigidFromArray7(a)
	}
	for id, off := range layout.TimeOffsetOffset {
		if off < 0 {
			continue
		}
		v := x[off]
		if bounds, ok := layout.TimeOffsetBounds[id]; ok {
			if v < bounds[0] {
				v = bounds[0]
			}
			if v > bounds[1] {
				v = bounds[1]
			}
		}
		state.Sensors[id].RefToSensorTimestampOffset = v
	}
	for id, off := range layout.DepthToImageOffset {
		if off < 0 {
			continue
		}
		var a [7]float64
		copy(a[:], x[off:off+7])
		r := geom.RigidFromArray7(a)
		state.Sensors[id].DepthToImageSim.Rotation = r.Rotation
		state.Sensors[id].DepthToImageSim.Translation = r.Translation
	}
	for id, off := range layout.DepthScaleOffset {
		if off < 0 {
			continue
		}
		state.Sensors[id].DepthToImageSim.Scale = x[off]
	}
	for id, off := range layout.IntrinsicsOffset {
		if off < 0 {
			continue
		}
		m := *state.Sensors[id].Intrinsics
		m.Focal = x[off]
		m.PrincipalPoint = r2.Point{X: x[off+1], Y: x[off+2]}
		distLen := layout.IntrinsicsDistLen[id]
		coeffs := make([]float64, distLen)
		copy(coeffs, x[off+3:off+3+distLen])
		distorter, err := camera.NewDistorter(coeffs)
		if err == nil {
			m.Distortion = distorter
		}
		state.Sensors[id].Intrinsics = &m
	}
	for pid, off := range layout.LandmarkOffset {
		state.Landmarks[pid] = r3.Vector{X: x[off], Y: x[off+1], Z: x[off+2]}
	}
}

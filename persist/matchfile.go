package persist

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/rigcal/rigcal/features"
)

// InterestPoint is one record of the legacy binary match file (spec.md §6):
// a detected keypoint plus the descriptor and bookkeeping fields the legacy
// format carries that features.Frame does not (orientation, scale,
// interest, polarity, octave, scale level).
type InterestPoint struct {
	X, Y           float32
	Ix, Iy         int32
	Orientation    float32
	Scale          float32
	Interest       float32
	Polarity       bool
	Octave         uint32
	ScaleLvl       uint32
	Descriptor     []float32
}

func readInterestPoints(r io.Reader, n uint64) ([]InterestPoint, error) {
	points := make([]InterestPoint, n)
	for i := range points {
		var p InterestPoint
		if err := binary.Read(r, binary.LittleEndian, &p.X); err != nil {
			return nil, errors.Wrapf(err, "point %d: x", i)
		}
		if err := binary.Read(r, binary.LittleEndian, &p.Y); err != nil {
			return nil, errors.Wrapf(err, "point %d: y", i)
		}
		if err := binary.Read(r, binary.LittleEndian, &p.Ix); err != nil {
			return nil, errors.Wrapf(err, "point %d: ix", i)
		}
		if err := binary.Read(r, binary.LittleEndian, &p.Iy); err != nil {
			return nil, errors.Wrapf(err, "point %d: iy", i)
		}
		if err := binary.Read(r, binary.LittleEndian, &p.Orientation); err != nil {
			return nil, errors.Wrapf(err, "point %d: orientation", i)
		}
		if err := binary.Read(r, binary.LittleEndian, &p.Scale); err != nil {
			return nil, errors.Wrapf(err, "point %d: scale", i)
		}
		if err := binary.Read(r, binary.LittleEndian, &p.Interest); err != nil {
			return nil, errors.Wrapf(err, "point %d: interest", i)
		}
		var polarity byte
		if err := binary.Read(r, binary.LittleEndian, &polarity); err != nil {
			return nil, errors.Wrapf(err, "point %d: polarity", i)
		}
		p.Polarity = polarity != 0
		if err := binary.Read(r, binary.LittleEndian, &p.Octave); err != nil {
			return nil, errors.Wrapf(err, "point %d: octave", i)
		}
		if err := binary.Read(r, binary.LittleEndian, &p.ScaleLvl); err != nil {
			return nil, errors.Wrapf(err, "point %d: scale_lvl", i)
		}
		var descLen uint64
		if err := binary.Read(r, binary.LittleEndian, &descLen); err != nil {
			return nil, errors.Wrapf(err, "point %d: descriptor length", i)
		}
		p.Descriptor = make([]float32, descLen)
		if err := binary.Read(r, binary.LittleEndian, p.Descriptor); err != nil {
			return nil, errors.Wrapf(err, "point %d: descriptor", i)
		}
		points[i] = p
	}
	return points, nil
}

func writeInterestPoints(w io.Writer, points []InterestPoint) error {
	for i, p := range points {
		for _, v := range []interface{}{p.X, p.Y, p.Ix, p.Iy, p.Orientation, p.Scale, p.Interest} {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return errors.Wrapf(err, "point %d", i)
			}
		}
		var polarity byte
		if p.Polarity {
			polarity = 1
		}
		if err := binary.Write(w, binary.LittleEndian, polarity); err != nil {
			return errors.Wrapf(err, "point %d: polarity", i)
		}
		if err := binary.Write(w, binary.LittleEndian, p.Octave); err != nil {
			return errors.Wrapf(err, "point %d: octave", i)
		}
		if err := binary.Write(w, binary.LittleEndian, p.ScaleLvl); err != nil {
			return errors.Wrapf(err, "point %d: scale_lvl", i)
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(p.Descriptor))); err != nil {
			return errors.Wrapf(err, "point %d: descriptor length", i)
		}
		if err := binary.Write(w, binary.LittleEndian, p.Descriptor); err != nil {
			return errors.Wrapf(err, "point %d: descriptor", i)
		}
	}
	return nil
}

// ReadMatchFile parses the legacy binary match file of spec.md §6: two
// interest-point lists, lengths n1 and n2, for the left and right image of
// one pair.
func ReadMatchFile(r io.Reader) (left, right []InterestPoint, err error) {
	var n1, n2 uint64
	if err := binary.Read(r, binary.LittleEndian, &n1); err != nil {
		return nil, nil, errors.Wrap(err, "reading n1")
	}
	if err := binary.Read(r, binary.LittleEndian, &n2); err != nil {
		return nil, nil, errors.Wrap(err, "reading n2")
	}
	left, err = readInterestPoints(r, n1)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading left interest points")
	}
	right, err = readInterestPoints(r, n2)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading right interest points")
	}
	return left, right, nil
}

// WriteMatchFile serializes a pair of interest-point lists in the format
// ReadMatchFile parses.
func WriteMatchFile(w io.Writer, left, right []InterestPoint) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(left))); err != nil {
		return errors.Wrap(err, "writing n1")
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(right))); err != nil {
		return errors.Wrap(err, "writing n2")
	}
	if err := writeInterestPoints(w, left); err != nil {
		return errors.Wrap(err, "writing left interest points")
	}
	if err := writeInterestPoints(w, right); err != nil {
		return errors.Wrap(err, "writing right interest points")
	}
	return nil
}

// FrameToInterestPoints adapts a features.Frame into the legacy interest
// point shape, filling the fields the in-tree detector does not compute with
// placeholders: scale 1, and zero for orientation/interest/polarity/octave/
// scale_lvl (spec.md §6
// round-trips these fields; it does not require the detector to populate
// them meaningfully).
func FrameToInterestPoints(frame *features.Frame) []InterestPoint {
	points := make([]InterestPoint, len(frame.Keypoints))
	for i, kp := range frame.Keypoints {
		desc := make([]float32, len(frame.Descriptors[i]))
		for j, v := range frame.Descriptors[i] {
			desc[j] = float32(v)
		}
		points[i] = InterestPoint{
			X: float32(kp.X), Y: float32(kp.Y),
			Ix: int32(kp.X), Iy: int32(kp.Y),
			Scale:      1,
			Descriptor: desc,
		}
	}
	return points
}

// InterestPointsToFrame is the inverse of FrameToInterestPoints.
func InterestPointsToFrame(points []InterestPoint) *features.Frame {
	frame := &features.Frame{
		Keypoints:   make([]features.Keypoint, len(points)),
		Descriptors: make([]features.Descriptor, len(points)),
	}
	for i, p := range points {
		frame.Keypoints[i] = features.Keypoint{X: float64(p.X), Y: float64(p.Y)}
		desc := make(features.Descriptor, len(p.Descriptor))
		for j, v := range p.Descriptor {
			desc[j] = float64(v)
		}
		frame.Descriptors[i] = desc
	}
	return frame
}

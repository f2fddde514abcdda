package persist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ControlPoint is one registration control point of a .pto file (spec.md
// §6): a correspondence between a pixel in the left image and a pixel in
// the right image, identified by their index into the .pto's image list.
type ControlPoint struct {
	ImageLeft, ImageRight int
	XL, YL, XR, YR        float64
}

// ReadPTO parses a Hugin-style .pto registration file: `i ` lines name
// images in order (the quoted n"..." filename), `c ` lines give control
// points `nL nR xL yL xR yR`.
func ReadPTO(r io.Reader) (images []string, points []ControlPoint, err error) {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "i "):
			name, err := extractQuotedName(line)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "line %d", lineNo)
			}
			images = append(images, name)
		case strings.HasPrefix(line, "c "):
			fields := strings.Fields(strings.TrimPrefix(line, "c "))
			if len(fields) != 6 {
				return nil, nil, errors.Errorf("line %d: expected 6 control point fields, got %d", lineNo, len(fields))
			}
			vals := make([]float64, 6)
			for i, f := range fields {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					return nil, nil, errors.Wrapf(err, "line %d: field %d", lineNo, i)
				}
				vals[i] = v
			}
			points = append(points, ControlPoint{
				ImageLeft: int(vals[0]), ImageRight: int(vals[1]),
				XL: vals[2], YL: vals[3], XR: vals[4], YR: vals[5],
			})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "reading .pto file")
	}
	return images, points, nil
}

func extractQuotedName(line string) (string, error) {
	start := strings.Index(line, `n"`)
	if start < 0 {
		return "", errors.Errorf("missing n\"...\" filename in %q", line)
	}
	start += 2
	end := strings.Index(line[start:], `"`)
	if end < 0 {
		return "", errors.Errorf("unterminated filename in %q", line)
	}
	return line[start : start+end], nil
}

// WritePTO serializes images and points in the format ReadPTO parses.
func WritePTO(w io.Writer, images []string, points []ControlPoint) error {
	for _, name := range images {
		if _, err := fmt.Fprintf(w, "i n\"%s\"\n", name); err != nil {
			return errors.Wrap(err, "writing image line")
		}
	}
	for _, p := range points {
		if _, err := fmt.Fprintf(w, "c %d %d %v %v %v %v\n", p.ImageLeft, p.ImageRight, p.XL, p.YL, p.XR, p.YR); err != nil {
			return errors.Wrap(err, "writing control point line")
		}
	}
	return nil
}

// ReadControlPointsXYZ parses the companion XYZ file of a .pto registration:
// one `x y z` triple per line, one per control point, `#` comments allowed.
func ReadControlPointsXYZ(r io.Reader) ([]r3.Vector, error) {
	sc := bufio.NewScanner(r)
	var points []r3.Vector
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, errors.Errorf("line %d: expected 3 fields, got %d", lineNo, len(fields))
		}
		vals := make([]float64, 3)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: field %d", lineNo, i)
			}
			vals[i] = v
		}
		points = append(points, r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading control-point XYZ file")
	}
	return points, nil
}

// minUsableControlPoints is spec.md §7's registration-data-insufficient
// threshold: fewer than 3 usable control points after image filtering is
// fatal.
const minUsableControlPoints = 3

// ErrInsufficientControlPoints is returned when fewer than
// minUsableControlPoints control points remain after filtering.
var ErrInsufficientControlPoints = errors.New("fewer than 3 usable control points")

// ValidateControlPointCount enforces spec.md §7's registration-data
// threshold.
func ValidateControlPointCount(n int) error {
	if n < minUsableControlPoints {
		return ErrInsufficientControlPoints
	}
	return nil
}

// WriteControlPointsXYZ serializes points in the format ReadControlPointsXYZ
// parses.
func WriteControlPointsXYZ(w io.Writer, points []r3.Vector) error {
	for _, p := range points {
		if _, err := fmt.Fprintf(w, "%v %v %v\n", p.X, p.Y, p.Z); err != nil {
			return errors.Wrap(err, "writing control-point XYZ line")
		}
	}
	return nil
}

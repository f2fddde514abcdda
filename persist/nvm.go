package persist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/rigcal/rigcal/geom"
)

// NVMCamera is one camera record of the NVM landmark file (spec.md §6):
// image filename, focal length, and world-to-cam pose. Distortion values
// are not modeled by the NVM format; they are ignored on read and written
// as "0 0".
type NVMCamera struct {
	Filename   string
	Focal      float64
	WorldToCam geom.Rigid
}

// NVMObservation is one (cid,fid) sighting of an NVM landmark, with pixel
// coordinates already shifted by the owning camera's principal point (NVM
// keypoints are written relative to the optical centre, spec.md §6).
type NVMObservation struct {
	Cid, Fid int
	U, V     float64
}

// NVMPoint is one triangulated landmark and its observation list.
type NVMPoint struct {
	Position r3.Vector
	Color    [3]uint8
	Obs      []NVMObservation
}

// NVMFile is the full parsed contents of an NVM landmark file.
type NVMFile struct {
	Cameras []NVMCamera
	Points  []NVMPoint
}

// ReadNVM parses the NVM_V3 landmark file format of spec.md §6.
func ReadNVM(r io.Reader) (NVMFile, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	readLine := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return sc.Text(), true
	}

	header, ok := readLine()
	if !ok || strings.TrimSpace(header) != "NVM_V3" {
		return NVMFile{}, errors.Errorf("expected NVM_V3 header, got %q", header)
	}

	nCamsLine, ok := readLine()
	if !ok {
		return NVMFile{}, errors.New("missing camera count")
	}
	nCams, err := strconv.Atoi(strings.TrimSpace(nCamsLine))
	if err != nil {
		return NVMFile{}, errors.Wrap(err, "invalid camera count")
	}

	cameras := make([]NVMCamera, 0, nCams)
	for i := 0; i < nCams; i++ {
		line, ok := readLine()
		if !ok {
			return NVMFile{}, errors.Errorf("camera %d: unexpected end of file", i)
		}
		fields := strings.Fields(line)
		if len(fields) != 11 {
			return NVMFile{}, errors.Errorf("camera %d: expected 11 fields, got %d", i, len(fields))
		}
		vals := make([]float64, 10)
		for j := 0; j < 10; j++ {
			v, err := strconv.ParseFloat(fields[1+j], 64)
			if err != nil {
				return NVMFile{}, errors.Wrapf(err, "camera %d: field %d", i, j)
			}
			vals[j] = v
		}
		focal := vals[0]
		q := quat.Number{Real: vals[1], Imag: vals[2], Jmag: vals[3], Kmag: vals[4]}
		center := r3.Vector{X: vals[5], Y: vals[6], Z: vals[7]}
		// d1, d2 (vals[8], vals[9]) are ignored on read (spec.md §6).
		worldToCam := geom.Rigid{Rotation: quat.Conj(q), Translation: center}.Inverse()
		cameras = append(cameras, NVMCamera{Filename: fields[0], Focal: focal, WorldToCam: worldToCam})
	}

	nPointsLine, ok := readLine()
	if !ok {
		return NVMFile{}, errors.New("missing point count")
	}
	nPoints, err := strconv.Atoi(strings.TrimSpace(nPointsLine))
	if err != nil {
		return NVMFile{}, errors.Wrap(err, "invalid point count")
	}

	points := make([]NVMPoint, 0, nPoints)
	for i := 0; i < nPoints; i++ {
		line, ok := readLine()
		if !ok {
			return NVMFile{}, errors.Errorf("point %d: unexpected end of file", i)
		}
		fields := strings.Fields(line)
		if len(fields) < 7 {
			return NVMFile{}, errors.Errorf("point %d: expected at least 7 fields, got %d", i, len(fields))
		}
		x, _ := strconv.ParseFloat(fields[0], 64)
		y, _ := strconv.ParseFloat(fields[1], 64)
		z, _ := strconv.ParseFloat(fields[2], 64)
		r, _ := strconv.Atoi(fields[3])
		g, _ := strconv.Atoi(fields[4])
		b, _ := strconv.Atoi(fields[5])
		nObs, err := strconv.Atoi(fields[6])
		if err != nil {
			return NVMFile{}, errors.Wrapf(err, "point %d: invalid n_obs", i)
		}
		if len(fields) != 7+4*nObs {
			return NVMFile{}, errors.Errorf("point %d: expected %d fields for %d observations, got %d", i, 7+4*nObs, nObs, len(fields))
		}
		obs := make([]NVMObservation, nObs)
		for k := 0; k < nObs; k++ {
			base := 7 + 4*k
			cid, err := strconv.Atoi(fields[base])
			if err != nil {
				return NVMFile{}, errors.Wrapf(err, "point %d obs %d: invalid cid", i, k)
			}
			fid, err := strconv.Atoi(fields[base+1])
			if err != nil {
				return NVMFile{}, errors.Wrapf(err, "point %d obs %d: invalid fid", i, k)
			}
			u, _ := strconv.ParseFloat(fields[base+2], 64)
			v, _ := strconv.ParseFloat(fields[base+3], 64)
			obs[k] = NVMObservation{Cid: cid, Fid: fid, U: u, V: v}
		}
		points = append(points, NVMPoint{
			Position: r3.Vector{X: x, Y: y, Z: z},
			Color:    [3]uint8{uint8(r), uint8(g), uint8(b)},
			Obs:      obs,
		})
	}

	return NVMFile{Cameras: cameras, Points: points}, nil
}

// WriteNVM serializes f in the NVM_V3 format ReadNVM parses.
func WriteNVM(w io.Writer, f NVMFile) error {
	if _, err := fmt.Fprintln(w, "NVM_V3"); err != nil {
		return errors.Wrap(err, "writing header")
	}
	if _, err := fmt.Fprintln(w, len(f.Cameras)); err != nil {
		return errors.Wrap(err, "writing camera count")
	}
	for _, cam := range f.Cameras {
		q := cam.WorldToCam.Rotation
		center := cam.WorldToCam.Inverse().Translation
		if _, err := fmt.Fprintf(w, "%s %v %v %v %v %v %v %v %v %v %v\n",
			cam.Filename, cam.Focal,
			q.Real, q.Imag, q.Jmag, q.Kmag,
			center.X, center.Y, center.Z,
			0, 0); err != nil {
			return errors.Wrap(err, "writing camera")
		}
	}
	if _, err := fmt.Fprintln(w, len(f.Points)); err != nil {
		return errors.Wrap(err, "writing point count")
	}
	for _, p := range f.Points {
		if _, err := fmt.Fprintf(w, "%v %v %v %d %d %d %d", p.Position.X, p.Position.Y, p.Position.Z, p.Color[0], p.Color[1], p.Color[2], len(p.Obs)); err != nil {
			return errors.Wrap(err, "writing point")
		}
		for _, o := range p.Obs {
			if _, err := fmt.Fprintf(w, " %d %d %v %v", o.Cid, o.Fid, o.U, o.V); err != nil {
				return errors.Wrap(err, "writing observation")
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return errors.Wrap(err, "writing point terminator")
		}
	}
	return nil
}

package persist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/rigcal/rigcal/geom"
)

// NoDepthFile is the image-list manifest's sentinel depth-path value meaning
// "no depth cloud for this acquisition" (spec.md §6).
const NoDepthFile = "none"

// ManifestEntry is one line of the image-list manifest: one camera
// acquisition's image path, owning sensor, wall-clock timestamp, optional
// depth-cloud path, and an externally-supplied world-to-camera pose (used to
// seed acquisitions that were not derived from the rig-config's
// ref_to_sensor_transform, e.g. when HasInitialRig is false).
type ManifestEntry struct {
	ImagePath  string
	SensorID   int
	Timestamp  float64
	DepthPath  string
	WorldToCam geom.Rigid
	HasDepth   bool
}

// ReadManifest parses the image-list manifest of spec.md §6: one acquisition
// per non-comment line, `image_path sensor_id timestamp depth_path
// world_to_cam(12 floats)`.
func ReadManifest(r io.Reader) ([]ManifestEntry, error) {
	sc := bufio.NewScanner(r)
	var entries []ManifestEntry
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 16 {
			return nil, errors.Errorf("line %d: expected 16 fields (image_path sensor_id timestamp depth_path + 12 floats), got %d", lineNo, len(fields))
		}
		sensorID, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid sensor_id", lineNo)
		}
		ts, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid timestamp", lineNo)
		}
		depthPath := fields[3]
		var xform [12]float64
		for i := 0; i < 12; i++ {
			v, err := strconv.ParseFloat(fields[4+i], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: invalid world_to_cam component %d", lineNo, i)
			}
			xform[i] = v
		}
		entries = append(entries, ManifestEntry{
			ImagePath:  fields[0],
			SensorID:   sensorID,
			Timestamp:  ts,
			DepthPath:  depthPath,
			WorldToCam: geom.RigidFromArray12(xform),
			HasDepth:   depthPath != NoDepthFile,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading manifest")
	}
	return entries, nil
}

// TimestampFromBasename recovers a timestamp from an image basename that
// begins with a decimal digit (spec.md §6), for acquisitions the bracketing
// code must re-derive a timestamp for by name rather than from the manifest
// column.
func TimestampFromBasename(basename string) (float64, error) {
	end := 0
	seenDot := false
	for end < len(basename) {
		c := basename[end]
		if c == '.' {
			if seenDot {
				break
			}
			seenDot = true
		} else if c < '0' || c > '9' {
			break
		}
		end++
	}
	if end == 0 {
		return 0, errors.Errorf("basename %q does not begin with a decimal digit", basename)
	}
	v, err := strconv.ParseFloat(basename[:end], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "basename %q", basename)
	}
	return v, nil
}

// WriteManifest serializes entries in the format ReadManifest parses.
func WriteManifest(w io.Writer, entries []ManifestEntry) error {
	for _, e := range entries {
		depthPath := e.DepthPath
		if !e.HasDepth {
			depthPath = NoDepthFile
		}
		xform := e.WorldToCam.ToArray12()
		if _, err := fmt.Fprintf(w, "%s %d %s %s %s\n", e.ImagePath, e.SensorID, strconv.FormatFloat(e.Timestamp, 'g', -1, 64), depthPath, formatFloats(xform[:])); err != nil {
			return errors.Wrap(err, "writing manifest entry")
		}
	}
	return nil
}

package persist

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/rigcal/rigcal/rig"
)

// depthChannels is the fixed channel count of the XYZ depth raster format
// (spec.md §6: "three int32 (rows, cols, channels=3)").
const depthChannels = 3

// ReadXYZRaster parses the custom binary XYZ depth raster of spec.md §6:
// three int32 header fields (rows, cols, channels), then rows*cols*3 float32
// in row-major order, invalid pixels stored as (0,0,0).
func ReadXYZRaster(r io.Reader) (*rig.DepthCloud, error) {
	var header [3]int32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "reading XYZ raster header")
	}
	rows, cols, channels := int(header[0]), int(header[1]), int(header[2])
	if channels != depthChannels {
		return nil, errors.Errorf("expected %d channels, got %d", depthChannels, channels)
	}
	if rows < 0 || cols < 0 {
		return nil, errors.Errorf("invalid raster dimensions %dx%d", rows, cols)
	}

	points := make([]rig.DepthPoint, rows*cols)
	buf := make([]float32, rows*cols*depthChannels)
	if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
		return nil, errors.Wrap(err, "reading XYZ raster body")
	}
	for i := range points {
		points[i] = rig.DepthPoint{
			X: float64(buf[i*3]),
			Y: float64(buf[i*3+1]),
			Z: float64(buf[i*3+2]),
		}
	}
	return &rig.DepthCloud{Width: cols, Height: rows, Points: points}, nil
}

// WriteXYZRaster serializes a depth cloud in the format ReadXYZRaster parses.
func WriteXYZRaster(w io.Writer, cloud *rig.DepthCloud) error {
	header := [3]int32{int32(cloud.Height), int32(cloud.Width), depthChannels}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return errors.Wrap(err, "writing XYZ raster header")
	}
	buf := make([]float32, len(cloud.Points)*depthChannels)
	for i, p := range cloud.Points {
		buf[i*3] = float32(p.X)
		buf[i*3+1] = float32(p.Y)
		buf[i*3+2] = float32(p.Z)
	}
	if err := binary.Write(w, binary.LittleEndian, buf); err != nil {
		return errors.Wrap(err, "writing XYZ raster body")
	}
	return nil
}

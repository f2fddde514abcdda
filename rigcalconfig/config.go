// Package rigcalconfig holds the single immutable configuration structure that
// replaces the source's process-wide flag registry (spec.md §9, "Global flag
// state"). One Config is built at startup, validated, and threaded through every
// constructor in the pipeline.
package rigcalconfig

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Detector selects the feature detector used by the feature engine (§4.3).
type Detector string

// Supported detectors.
const (
	DetectorSIFT Detector = "sift"
	DetectorSURF Detector = "surf"
)

// Config is the full set of enumerated options from spec.md §4, replacing the
// source's process-wide flags with one threaded, immutable value.
type Config struct {
	// Feature engine (§4.3).
	FeatureDetector       Detector `json:"feature_detector"`
	SIFTNFeatures         int      `json:"sift_n_features"`
	SIFTOctaveLayers      int      `json:"sift_octave_layers"`
	SIFTContrastThreshold float64  `json:"sift_contrast_threshold"`
	SIFTEdgeThreshold     float64  `json:"sift_edge_threshold"`
	SIFTSigma             float64  `json:"sift_sigma"`
	EqualizeHistogram     bool     `json:"equalize_histogram"`

	InitialMaxReprojectionError float64 `json:"initial_max_reprojection_error"`
	NumOverlaps                 int     `json:"num_overlaps"`
	AffineRANSACThresholdPx     float64 `json:"affine_ransac_threshold_px"`
	AffineRANSACMaxIterations   int     `json:"affine_ransac_max_iterations"`
	AffineRANSACConfidence      float64 `json:"affine_ransac_confidence"`

	// Bracketing (§4.5).
	BracketLength        float64 `json:"bracket_length"`
	MaxImageToDepthDiff  float64 `json:"max_image_to_depth_diff"`

	// Outlier flagger (§4.8).
	NavCamNumExcludeBoundaryPixels int     `json:"nav_cam_num_exclude_boundary_pixels"`
	RefinerMinAngleDegrees         float64 `json:"refiner_min_angle"`
	MaxReprojectionError           float64 `json:"max_reprojection_error"`

	// Cost model (§4.7).
	WeightDepthTriangulation float64 `json:"w_depth_tri"`
	WeightMeshTriangulation  float64 `json:"w_mesh_tri"`
	RobustThreshold          float64 `json:"robust_threshold"`

	// Parameter freezing policy (§4.7).
	IntrinsicsToFloat      map[string]bool `json:"intrinsics_to_float"`
	ExtrinsicsToFloat      map[string]bool `json:"extrinsics_to_float"`
	FloatScale             bool            `json:"float_scale"`
	FloatTimestampOffsets  bool            `json:"float_timestamp_offsets"`
	FloatSparseMap         bool            `json:"float_sparse_map"`
	FloatNonrefCameras     bool            `json:"float_nonref_cameras"`
	NoExtrinsics           bool            `json:"no_extrinsics"`
	MaxOffsetChange        float64         `json:"max_offset_change"`

	// Mesh (§4.7 R3/R4); empty UseMesh means no mesh residuals are added.
	UseMesh bool `json:"use_mesh"`

	// Optimization driver (§4.9).
	RefinerNumPasses int `json:"refiner_num_passes"`
	NumIterations    int `json:"num_iterations"`
	NumOptThreads    int `json:"num_opt_threads"`

	// Concurrency (§5).
	NumMatchThreads int `json:"num_match_threads"`

	Verbose bool `json:"verbose"`
}

// Default returns the configuration with every numeric default spec.md names
// explicitly (sift_n_features = 10000, refiner_num_passes = 2, etc.), leaving
// the float-flags and mesh options off until the caller opts in.
func Default() Config {
	return Config{
		FeatureDetector:             DetectorSIFT,
		SIFTNFeatures:               10000,
		SIFTOctaveLayers:            3,
		SIFTContrastThreshold:       0.02,
		SIFTEdgeThreshold:           10,
		SIFTSigma:                   1.6,
		InitialMaxReprojectionError: 10,
		NumOverlaps:                 5,
		AffineRANSACThresholdPx:     20,
		AffineRANSACMaxIterations:   10000,
		AffineRANSACConfidence:      0.8,
		BracketLength:               1.0,
		MaxImageToDepthDiff:         0.05,
		NavCamNumExcludeBoundaryPixels: 0,
		RefinerMinAngleDegrees:      0.5,
		MaxReprojectionError:        25,
		WeightDepthTriangulation:    1,
		WeightMeshTriangulation:     1,
		RobustThreshold:             3.0,
		IntrinsicsToFloat:           map[string]bool{},
		ExtrinsicsToFloat:           map[string]bool{},
		MaxOffsetChange:             1.0,
		RefinerNumPasses:            2,
		NumIterations:               100,
		NumOptThreads:               4,
		NumMatchThreads:             8,
	}
}

// Load reads a Config from a JSON file, filling unset fields from Default, then
// validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	//nolint:gosec
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config file %q", path)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config file %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate implements every configuration-error case from spec.md §7: fail fast,
// before any work, on impossible flag combinations.
func (c Config) Validate() error {
	if c.FeatureDetector != DetectorSIFT && c.FeatureDetector != DetectorSURF {
		return errors.Errorf("unknown feature_detector %q, expected sift or surf", c.FeatureDetector)
	}
	if c.FloatScale && c.usesAffineDepthToImage() {
		return errors.New("float_scale cannot be combined with an affine depth_to_image transform: " +
			"scale is not separable from a general affine linear part")
	}
	if c.FloatNonrefCameras && !c.NoExtrinsics {
		return errors.New("float_nonref_cameras requires no_extrinsics: " +
			"non-reference camera poses are only free parameters when extrinsics are not modeled")
	}
	if c.FloatTimestampOffsets && c.NoExtrinsics {
		return errors.New("float_timestamp_offsets cannot be combined with no_extrinsics: " +
			"the bracketing pose model that the offset perturbs is unused in that mode")
	}
	if c.RefinerNumPasses < 1 {
		return errors.New("refiner_num_passes must be >= 1")
	}
	if c.NumMatchThreads < 1 {
		return errors.New("num_match_threads must be >= 1")
	}
	if c.NumOptThreads < 1 {
		return errors.New("num_opt_threads must be >= 1")
	}
	if c.RobustThreshold <= 0 {
		return errors.New("robust_threshold must be > 0")
	}
	return nil
}

// usesAffineDepthToImage reports whether the caller has indicated (out of band,
// via the rig configuration's own per-sensor transform kind) that any configured
// sensor uses a general affine depth-to-image transform. Config itself does not
// own sensor descriptors, so this always reports false; the check against
// loaded sensors is ValidateAgainstSensors, which nothing in this module calls.
func (c Config) usesAffineDepthToImage() bool {
	return false
}

// ValidateAgainstSensors re-runs the float_scale/affine check now that sensor
// descriptors are available (rig.Sensor carries DepthToImageKind).
func (c Config) ValidateAgainstSensors(anyAffineDepthToImage bool) error {
	if c.FloatScale && anyAffineDepthToImage {
		return errors.New("float_scale cannot be combined with an affine depth_to_image transform " +
			"on any configured sensor")
	}
	return nil
}

// IntrinsicsFloat reports whether a sensor's intrinsics are free parameters.
func (c Config) IntrinsicsFloat(sensor string) bool {
	return c.IntrinsicsToFloat[sensor]
}

// ExtrinsicsFloat reports whether a sensor's reference-to-sensor transform is free.
func (c Config) ExtrinsicsFloat(sensor string) bool {
	return c.ExtrinsicsToFloat[sensor]
}

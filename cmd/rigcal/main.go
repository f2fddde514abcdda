// Command rigcal runs the multi-sensor rig calibration engine: feature
// detection and matching, track fusion, bracketing, and bundle-adjustment
// refinement over a rig of time-synchronized cameras.
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/rigcal/rigcal/driver"
	"github.com/rigcal/rigcal/features"
	"github.com/rigcal/rigcal/internal/pipeline"
	"github.com/rigcal/rigcal/internal/rigcalog"
	"github.com/rigcal/rigcal/outlier"
	"github.com/rigcal/rigcal/persist"
	"github.com/rigcal/rigcal/rigcalconfig"
)

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

var logger = rigcalog.NewLogger("rigcal")

// Arguments covers the flags used by any of the three run modes; each mode
// reads only the subset it needs, the way the teacher's own single-binary
// CLIs do when a mode-specific flag set would be overkill for a one-shot
// batch tool.
type Arguments struct {
	Command string `flag:"0,required,usage=command: calibrate, match, or convert"`

	RigConfig  string `flag:"rigconfig,usage=path to the rig configuration file"`
	Manifest   string `flag:"manifest,usage=path to the image-list manifest"`
	ConfigFile string `flag:"config,usage=path to a JSON pipeline configuration overriding the defaults"`
	Out        string `flag:"out,usage=output directory"`

	ImageA string `flag:"image-a,usage=first image, for match mode"`
	ImageB string `flag:"image-b,usage=second image, for match mode"`

	NVMIn     string `flag:"nvm-in,usage=input NVM file, for convert mode"`
	Direction string `flag:"direction,usage=convert direction: nvm2rig or rig2nvm"`

	Registration bool   `flag:"registration,usage=redo sparse-map registration against ground-truth control points after calibrate"`
	Hugin        string `flag:"hugin,usage=path to the .pto registration control-point file"`
	XYZ          string `flag:"xyz,usage=path to the registration control points' ground-truth XYZ file"`

	Verbose bool `flag:"v,usage=enable debug logging"`
}

func mainWithArgs(ctx context.Context, args []string, logger rigcalog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Verbose {
		logger = rigcalog.NewDebugLogger("rigcal")
	}

	switch argsParsed.Command {
	case "calibrate":
		return runCalibrate(argsParsed, logger)
	case "match":
		return runMatch(argsParsed, logger)
	case "convert":
		return runConvert(argsParsed, logger)
	default:
		return errors.Errorf("unknown command %q, expected calibrate, match, or convert", argsParsed.Command)
	}
}

func loadConfig(path string) (rigcalconfig.Config, error) {
	if path == "" {
		return rigcalconfig.Default(), nil
	}
	return rigcalconfig.Load(path)
}

func runCalibrate(args Arguments, logger rigcalog.Logger) error {
	if args.RigConfig == "" || args.Manifest == "" {
		return errors.New("calibrate requires -rigconfig and -manifest")
	}
	cfg, err := loadConfig(args.ConfigFile)
	if err != nil {
		return err
	}

	rigConfig, err := readRigConfig(args.RigConfig)
	if err != nil {
		return err
	}
	entries, err := readManifest(args.Manifest)
	if err != nil {
		return err
	}

	sources, err := pipeline.LoadSources(entries)
	if err != nil {
		return err
	}

	detector := features.NewDefaultDetector(cfg)
	frames, matches, err := pipeline.DetectAndMatch(detector, sources, cfg, logger.Named("features"))
	if err != nil {
		return err
	}

	state, err := pipeline.AssembleState(rigConfig, sources, matches, frames, cfg)
	if err != nil {
		return err
	}

	if err := driver.Run(state, cfg, nil, logger.Named("driver")); err != nil {
		return err
	}

	if args.Registration {
		if err := runRegistration(args, state, sources, logger); err != nil {
			return err
		}
	}

	if args.Out == "" {
		logger.Infow("calibration complete", "sensors", len(state.Sensors), "tracks", len(state.Tracks))
		return nil
	}
	return writeResults(args.Out, rigConfig, state, sources)
}

// runRegistration implements spec.md §6/§9's registration pass: resolve the
// .pto/xyz control points against the just-calibrated state's tracks, solve
// the Kabsch+scale similarity, and propagate it into every reference pose,
// landmark, and sensor extrinsic/depth-to-image translation.
func runRegistration(args Arguments, state *driver.State, sources []pipeline.Source, logger rigcalog.Logger) error {
	if args.Hugin == "" || args.XYZ == "" {
		return errors.New("-registration requires -hugin and -xyz")
	}
	images, points, err := readPTO(args.Hugin)
	if err != nil {
		return err
	}
	worldXYZ, err := readControlPointsXYZ(args.XYZ)
	if err != nil {
		return err
	}
	mapPoints, worldPoints, err := pipeline.ResolveControlPoints(state, sources, images, points, worldXYZ)
	if err != nil {
		return err
	}
	sim, err := driver.ApplyRegistration(state, mapPoints, worldPoints)
	if err != nil {
		return err
	}
	logger.Infow("applied registration", "scale", sim.Scale, "controlPoints", len(mapPoints))
	return nil
}

func runMatch(args Arguments, logger rigcalog.Logger) error {
	if args.ImageA == "" || args.ImageB == "" {
		return errors.New("match requires -image-a and -image-b")
	}
	cfg := rigcalconfig.Default()
	entries := []persist.ManifestEntry{{ImagePath: args.ImageA}, {ImagePath: args.ImageB}}
	sources, err := pipeline.LoadSources(entries)
	if err != nil {
		return err
	}

	detector := features.NewDefaultDetector(cfg)
	frameA, err := detector.Detect(sources[0].Image)
	if err != nil {
		return errors.Wrap(err, "detecting image A")
	}
	frameB, err := detector.Detect(sources[1].Image)
	if err != nil {
		return errors.Wrap(err, "detecting image B")
	}
	matches := features.RatioTestMatch(frameA.Descriptors, frameB.Descriptors, 0.8)
	matches = features.FilterByAffineRANSAC(matches, frameA.Keypoints, frameB.Keypoints,
		cfg.AffineRANSACThresholdPx, cfg.AffineRANSACMaxIterations, cfg.AffineRANSACConfidence)
	logger.Infow("matched image pair", "matches", len(matches))

	if args.Out == "" {
		return nil
	}
	if err := os.MkdirAll(args.Out, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}
	left, right := pairToInterestPoints(frameA, frameB, matches)
	return writeMatchFile(filepath.Join(args.Out, "match.bin"), left, right)
}

func runConvert(args Arguments, logger rigcalog.Logger) error {
	switch args.Direction {
	case "nvm2rig":
		if args.NVMIn == "" || args.Out == "" {
			return errors.New("nvm2rig requires -nvm-in and -out")
		}
		nvm, err := readNVM(args.NVMIn)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(args.Out, 0o755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}
		entries := make([]persist.ManifestEntry, len(nvm.Cameras))
		for i, cam := range nvm.Cameras {
			ts, err := persist.TimestampFromBasename(filepath.Base(cam.Filename))
			if err != nil {
				ts = 0
			}
			entries[i] = persist.ManifestEntry{
				ImagePath:  cam.Filename,
				SensorID:   0,
				Timestamp:  ts,
				DepthPath:  persist.NoDepthFile,
				WorldToCam: cam.WorldToCam,
			}
		}
		logger.Infow("converted NVM cameras to manifest entries", "cameras", len(entries), "points", len(nvm.Points))
		return writeManifest(filepath.Join(args.Out, "manifest.txt"), entries)
	case "rig2nvm":
		if args.RigConfig == "" || args.Manifest == "" || args.Out == "" {
			return errors.New("rig2nvm requires -rigconfig, -manifest, and -out")
		}
		rigConfig, err := readRigConfig(args.RigConfig)
		if err != nil {
			return err
		}
		entries, err := readManifest(args.Manifest)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(args.Out, 0o755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}
		cameras := make([]persist.NVMCamera, len(entries))
		for i, e := range entries {
			focal := 0.0
			if e.SensorID < len(rigConfig.Sensors) && rigConfig.Sensors[e.SensorID].Intrinsics != nil {
				focal = rigConfig.Sensors[e.SensorID].Intrinsics.Focal
			}
			cameras[i] = persist.NVMCamera{Filename: e.ImagePath, Focal: focal, WorldToCam: e.WorldToCam}
		}
		logger.Infow("converted rig config and manifest to NVM cameras", "cameras", len(cameras))
		return writeNVM(filepath.Join(args.Out, "converted.nvm"), persist.NVMFile{Cameras: cameras})
	default:
		return errors.Errorf("unknown -direction %q, expected nvm2rig or rig2nvm", args.Direction)
	}
}

func writeResults(dir string, rigConfig persist.RigConfig, state *driver.State, sources []pipeline.Source) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}
	outRig := rigConfig
	outRig.Sensors = state.Sensors
	if err := writeRigConfig(filepath.Join(dir, "rig_config.txt"), outRig); err != nil {
		return err
	}

	nvm := persist.NVMFile{
		Cameras: make([]persist.NVMCamera, len(state.Acquisitions)),
		Points:  make([]persist.NVMPoint, len(state.Tracks)),
	}
	for i, acq := range state.Acquisitions {
		focal := state.Sensors[acq.SensorID].Intrinsics.Focal
		nvm.Cameras[i] = persist.NVMCamera{
			Filename:   sources[i].Entry.ImagePath,
			Focal:      focal,
			WorldToCam: state.WorldToCam[i],
		}
	}
	for pid, track := range state.Tracks {
		var obs []persist.NVMObservation
		for cid, fid := range track {
			key := outlier.Key{Pid: pid, Cid: cid, Fid: fid}
			if !state.Mask.IsInlier(key) {
				continue
			}
			kp := state.Acquisitions[cid].DistortedPixels[fid]
			obs = append(obs, persist.NVMObservation{Cid: cid, Fid: fid, U: kp.X, V: kp.Y})
		}
		nvm.Points[pid] = persist.NVMPoint{Position: landmarkOrZero(state, pid), Obs: obs}
	}
	return writeNVM(filepath.Join(dir, "sparse.nvm"), nvm)
}

func landmarkOrZero(state *driver.State, pid int) r3.Vector {
	if pid < len(state.Landmarks) {
		return state.Landmarks[pid]
	}
	return r3.Vector{}
}

func pairToInterestPoints(a, b *features.Frame, matches []features.Match) (left, right []persist.InterestPoint) {
	leftFrame := &features.Frame{}
	rightFrame := &features.Frame{}
	for _, m := range matches {
		leftFrame.Keypoints = append(leftFrame.Keypoints, a.Keypoints[m.FidA])
		leftFrame.Descriptors = append(leftFrame.Descriptors, a.Descriptors[m.FidA])
		rightFrame.Keypoints = append(rightFrame.Keypoints, b.Keypoints[m.FidB])
		rightFrame.Descriptors = append(rightFrame.Descriptors, b.Descriptors[m.FidB])
	}
	return persist.FrameToInterestPoints(leftFrame), persist.FrameToInterestPoints(rightFrame)
}

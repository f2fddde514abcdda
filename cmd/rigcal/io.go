package main

import (
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/rigcal/rigcal/persist"
)

func readRigConfig(path string) (persist.RigConfig, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return persist.RigConfig{}, errors.Wrapf(err, "opening rig config %q", path)
	}
	defer f.Close()
	return persist.ReadRigConfig(f)
}

func writeRigConfig(path string, cfg persist.RigConfig) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating rig config %q", path)
	}
	defer func() { err = multierr.Combine(err, f.Close()) }()
	return persist.WriteRigConfig(f, cfg)
}

func readManifest(path string) ([]persist.ManifestEntry, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening manifest %q", path)
	}
	defer f.Close()
	return persist.ReadManifest(f)
}

func writeManifest(path string, entries []persist.ManifestEntry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating manifest %q", path)
	}
	defer func() { err = multierr.Combine(err, f.Close()) }()
	return persist.WriteManifest(f, entries)
}

func readNVM(path string) (persist.NVMFile, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return persist.NVMFile{}, errors.Wrapf(err, "opening NVM file %q", path)
	}
	defer f.Close()
	return persist.ReadNVM(f)
}

func writeNVM(path string, nvm persist.NVMFile) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating NVM file %q", path)
	}
	defer func() { err = multierr.Combine(err, f.Close()) }()
	return persist.WriteNVM(f, nvm)
}

func writeMatchFile(path string, left, right []persist.InterestPoint) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating match file %q", path)
	}
	defer func() { err = multierr.Combine(err, f.Close()) }()
	return persist.WriteMatchFile(f, left, right)
}

func readPTO(path string) ([]string, []persist.ControlPoint, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening hugin file %q", path)
	}
	defer f.Close()
	return persist.ReadPTO(f)
}

func readControlPointsXYZ(path string) ([]r3.Vector, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening xyz file %q", path)
	}
	defer f.Close()
	return persist.ReadControlPointsXYZ(f)
}

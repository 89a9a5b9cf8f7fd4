// SPDX-License-Identifier: MIT
/*
Package mathlib binds the native signal math engine at run time.

The shared library is opened with dlopen and each entry point is resolved
with dlsym, so the module builds and tests without the vendor library
installed. Records cross the boundary in the layouts defined by package
records; nested sample arrays go through package bridge.

A MathLib is not safe for concurrent use by the engine itself, so every call
is serialised behind a mutex.
*/
package mathlib

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// ErrClosed is returned by calls on a closed Library or MathLib.
var ErrClosed = errors.New("mathlib: closed")

// symbols holds the resolved entry points of the engine.
type symbols struct {
	create                   unsafe.Pointer
	free                     unsafe.Pointer
	setMentalEstimationMode  unsafe.Pointer
	setPrioritySide          unsafe.Pointer
	setCalibrationLength     unsafe.Pointer
	setSkipWinsAfterArtifact unsafe.Pointer
	setWeightsForSpectra     unsafe.Pointer
	setZeroSpectWaves        unsafe.Pointer
	setSpectNormByBandsWidth unsafe.Pointer
	setSpectNormByCoeffs     unsafe.Pointer
	pushData                 unsafe.Pointer
	pushDataArr              unsafe.Pointer
	processDataArr           unsafe.Pointer
	processData              unsafe.Pointer
	startCalibration         unsafe.Pointer
	calibrationFinished      unsafe.Pointer
	calibrationPercents      unsafe.Pointer
	isArtifactedSequence     unsafe.Pointer
	isBothSidesArtifacted    unsafe.Pointer
	readMentalDataArrSize    unsafe.Pointer
	readMentalDataArr        unsafe.Pointer
	readAverageMentalData    unsafe.Pointer
	readSpectralPercentsSize unsafe.Pointer
	readSpectralPercentsArr  unsafe.Pointer
	readRawSpectralVals      unsafe.Pointer
}

// table maps exported symbol names to the slot they fill.
func (s *symbols) table() []struct {
	name string
	slot *unsafe.Pointer
} {
	return []struct {
		name string
		slot *unsafe.Pointer
	}{
		{"createMathLib", &s.create},
		{"freeMathLib", &s.free},
		{"MathLibSetMentalEstimationMode", &s.setMentalEstimationMode},
		{"MathLibSetPrioritySide", &s.setPrioritySide},
		{"MathLibSetCallibrationLength", &s.setCalibrationLength},
		{"MathLibSetSkipWinsAfterArtifact", &s.setSkipWinsAfterArtifact},
		{"MathLibSetWeightsForSpectra", &s.setWeightsForSpectra},
		{"MathLibSetZeroSpectWaves", &s.setZeroSpectWaves},
		{"MathLibSetSpectNormalizationByBandsWidth", &s.setSpectNormByBandsWidth},
		{"MathLibSetSpectNormalizationByCoeffs", &s.setSpectNormByCoeffs},
		{"MathLibPushData", &s.pushData},
		{"MathLibPushDataArr", &s.pushDataArr},
		{"MathLibProcessDataArr", &s.processDataArr},
		{"MathLibProcessData", &s.processData},
		{"MathLibStartCalibration", &s.startCalibration},
		{"MathLibCalibrationFinished", &s.calibrationFinished},
		{"MathLibGetCallibrationPercents", &s.calibrationPercents},
		{"MathLibIsArtifactedSequence", &s.isArtifactedSequence},
		{"MathLibIsBothSidesArtifacted", &s.isBothSidesArtifacted},
		{"MathLibReadMentalDataArrSize", &s.readMentalDataArrSize},
		{"MathLibReadMentalDataArr", &s.readMentalDataArr},
		{"MathLibReadAverageMentalData", &s.readAverageMentalData},
		{"MathLibReadSpectralDataPercentsArrSize", &s.readSpectralPercentsSize},
		{"MathLibReadSpectralDataPercentsArr", &s.readSpectralPercentsArr},
		{"MathLibReadRawSpectralVals", &s.readRawSpectralVals},
	}
}

// SymbolNames lists every entry point Open requires, in resolution order.
func SymbolNames() []string {
	var s symbols
	t := s.table()
	names := make([]string, len(t))
	for i, e := range t {
		names[i] = e.name
	}
	return names
}

// Library is an opened engine shared object.
type Library struct {
	mu     sync.Mutex
	path   string
	handle unsafe.Pointer
	sym    symbols
}

// Open loads the engine from path and resolves all entry points.
func Open(path string) (*Library, error) {
	if path == "" {
		return nil, errors.New("mathlib: library path is empty")
	}

	h, err := dlopen(path)
	if err != nil {
		return nil, fmt.Errorf("mathlib: dlopen(%q): %w", path, err)
	}

	lib := &Library{path: path, handle: h}
	for _, e := range lib.sym.table() {
		p, err := dlsym(h, e.name)
		if err != nil {
			_ = dlclose(h)
			return nil, fmt.Errorf("mathlib: dlsym(%q) in %s: %w", e.name, path, err)
		}
		*e.slot = p
	}
	return lib, nil
}

// Path returns the path the library was opened from.
func (l *Library) Path() string {
	return l.path
}

// Close unloads the library. Every MathLib created from it must be closed
// first.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle == nil {
		return nil
	}
	err := dlclose(l.handle)
	l.handle = nil
	if err != nil {
		return fmt.Errorf("mathlib: dlclose(%q): %w", l.path, err)
	}
	return nil
}

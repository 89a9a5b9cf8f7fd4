// SPDX-License-Identifier: MIT
package mathlib

import (
	"fmt"
	"sync"
	"unsafe"

	"signalmath/internal/bridge"
	"signalmath/internal/records"
)

// Settings are the four records createMathLib takes by value.
type Settings struct {
	MathLib           records.MathLibSetting
	ArtifactDetect    records.ArtifactDetectSetting
	ShortArtifact     records.ShortArtifactDetectSetting
	MentalAndSpectral records.MentalAndSpectralSetting
}

// images returns the native byte image of every settings record.
func (s Settings) images() (mls, ads, sads, mss []byte, err error) {
	if mls, err = s.MathLib.MarshalBinary(); err != nil {
		return
	}
	if ads, err = s.ArtifactDetect.MarshalBinary(); err != nil {
		return
	}
	if sads, err = s.ShortArtifact.MarshalBinary(); err != nil {
		return
	}
	mss, err = s.MentalAndSpectral.MarshalBinary()
	return
}

// MathLib is one engine instance.
type MathLib struct {
	mu  sync.Mutex
	sym *symbols
	ptr unsafe.Pointer
}

// NewMathLib creates an engine instance configured by s.
func (l *Library) NewMathLib(s Settings) (*MathLib, error) {
	mls, ads, sads, mss, err := s.images()
	if err != nil {
		return nil, fmt.Errorf("mathlib: encoding settings: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == nil {
		return nil, ErrClosed
	}

	var st records.OpStatus
	p := callCreate(l.sym.create, mls, ads, sads, mss, unsafe.Pointer(&st))
	if p == nil {
		return nil, checkStatus("createMathLib", false, &st)
	}
	if !st.Success {
		callFree(l.sym.free, p)
		return nil, checkStatus("createMathLib", false, &st)
	}
	return &MathLib{sym: &l.sym, ptr: p}, nil
}

// call runs fn with the engine pointer and a fresh status record, holding
// the instance lock for the whole native call.
func (m *MathLib) call(op string, fn func(lib, st unsafe.Pointer) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ptr == nil {
		return ErrClosed
	}
	var st records.OpStatus
	ok := fn(m.ptr, unsafe.Pointer(&st))
	return checkStatus(op, ok, &st)
}

// Close frees the engine instance. Further calls return ErrClosed.
func (m *MathLib) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ptr == nil {
		return nil
	}
	callFree(m.sym.free, m.ptr)
	m.ptr = nil
	return nil
}

// SetMentalEstimationMode selects independent (true) or dependent
// attention/relaxation estimation.
func (m *MathLib) SetMentalEstimationMode(independent bool) error {
	return m.call("MathLibSetMentalEstimationMode", func(lib, st unsafe.Pointer) bool {
		return callOpBool(m.sym.setMentalEstimationMode, lib, independent, st)
	})
}

// SetPrioritySide selects the side used when both carry valid data.
func (m *MathLib) SetPrioritySide(side records.SideType) error {
	return m.call("MathLibSetPrioritySide", func(lib, st unsafe.Pointer) bool {
		return callOpInt(m.sym.setPrioritySide, lib, int(side), st)
	})
}

// SetCalibrationLength sets the calibration duration in seconds.
func (m *MathLib) SetCalibrationLength(seconds int) error {
	return m.call("MathLibSetCallibrationLength", func(lib, st unsafe.Pointer) bool {
		return callOpInt(m.sym.setCalibrationLength, lib, seconds, st)
	})
}

// SetSkipWinsAfterArtifact sets how many windows are ignored after an
// artifact.
func (m *MathLib) SetSkipWinsAfterArtifact(windows int) error {
	return m.call("MathLibSetSkipWinsAfterArtifact", func(lib, st unsafe.Pointer) bool {
		return callOpInt(m.sym.setSkipWinsAfterArtifact, lib, windows, st)
	})
}

// SetWeightsForSpectra sets the per-band weighting coefficients.
func (m *MathLib) SetWeightsForSpectra(delta, theta, alpha, beta, gamma float64) error {
	return m.call("MathLibSetWeightsForSpectra", func(lib, st unsafe.Pointer) bool {
		return callWeights(m.sym.setWeightsForSpectra, lib, [5]float64{delta, theta, alpha, beta, gamma}, st)
	})
}

// SetZeroSpectWaves sets the per-band flags of the spectral band mask and
// switches the mask on or off.
func (m *MathLib) SetZeroSpectWaves(active bool, delta, theta, alpha, beta, gamma int) error {
	return m.call("MathLibSetZeroSpectWaves", func(lib, st unsafe.Pointer) bool {
		return callZeroWaves(m.sym.setZeroSpectWaves, lib, active, [5]int{delta, theta, alpha, beta, gamma}, st)
	})
}

func (m *MathLib) SetSpectNormalizationByBandsWidth(enabled bool) error {
	return m.call("MathLibSetSpectNormalizationByBandsWidth", func(lib, st unsafe.Pointer) bool {
		return callOpBool(m.sym.setSpectNormByBandsWidth, lib, enabled, st)
	})
}

func (m *MathLib) SetSpectNormalizationByCoeffs(enabled bool) error {
	return m.call("MathLibSetSpectNormalizationByCoeffs", func(lib, st unsafe.Pointer) bool {
		return callOpBool(m.sym.setSpectNormByCoeffs, lib, enabled, st)
	})
}

// PushData appends bipolar samples to the engine's input queue.
func (m *MathLib) PushData(samples []records.RawChannels) error {
	var data unsafe.Pointer
	if len(samples) > 0 {
		data = unsafe.Pointer(&samples[0])
	}
	return m.call("MathLibPushData", func(lib, st unsafe.Pointer) bool {
		return callOpPush(m.sym.pushData, lib, data, len(samples), st)
	})
}

// PushDataArr appends multichannel samples. Each element is one sample
// instant holding a value per channel. The nested records are flattened into
// C memory for the duration of the call and released when it returns; a nil
// slice is passed as a NULL pointer.
func (m *MathLib) PushDataArr(samples []records.RawChannelsArray) error {
	var rows [][]float64
	if samples != nil {
		rows = make([][]float64, len(samples))
		for i := range samples {
			rows[i] = samples[i].Channels
		}
	}

	h, err := bridge.Flatten(rows)
	if err != nil {
		return fmt.Errorf("mathlib: MathLibPushDataArr: %w", err)
	}
	defer h.Release()

	return m.call("MathLibPushDataArr", func(lib, st unsafe.Pointer) bool {
		return callOpPush(m.sym.pushDataArr, lib, h.Ptr(), h.Len(), st)
	})
}

// ProcessDataArr runs the analysis over everything pushed so far.
func (m *MathLib) ProcessDataArr() error {
	return m.call("MathLibProcessDataArr", func(lib, st unsafe.Pointer) bool {
		return callOp(m.sym.processDataArr, lib, st)
	})
}

// ProcessData runs the analysis for a single side.
func (m *MathLib) ProcessData(side records.SideType) error {
	return m.call("MathLibProcessData", func(lib, st unsafe.Pointer) bool {
		return callOpInt(m.sym.processData, lib, int(side), st)
	})
}

func (m *MathLib) StartCalibration() error {
	return m.call("MathLibStartCalibration", func(lib, st unsafe.Pointer) bool {
		return callOp(m.sym.startCalibration, lib, st)
	})
}

func (m *MathLib) CalibrationFinished() (bool, error) {
	var done bool
	err := m.call("MathLibCalibrationFinished", func(lib, st unsafe.Pointer) bool {
		return callOpOut(m.sym.calibrationFinished, lib, unsafe.Pointer(&done), st)
	})
	return done, err
}

// CalibrationPercents reports calibration progress from 0 to 100.
func (m *MathLib) CalibrationPercents() (int, error) {
	var pct int32
	err := m.call("MathLibGetCallibrationPercents", func(lib, st unsafe.Pointer) bool {
		return callOpOut(m.sym.calibrationPercents, lib, unsafe.Pointer(&pct), st)
	})
	return int(pct), err
}

func (m *MathLib) IsArtifactedSequence() (bool, error) {
	var art bool
	err := m.call("MathLibIsArtifactedSequence", func(lib, st unsafe.Pointer) bool {
		return callOpOut(m.sym.isArtifactedSequence, lib, unsafe.Pointer(&art), st)
	})
	return art, err
}

func (m *MathLib) IsBothSidesArtifacted() (bool, error) {
	var art bool
	err := m.call("MathLibIsBothSidesArtifacted", func(lib, st unsafe.Pointer) bool {
		return callOpOut(m.sym.isBothSidesArtifacted, lib, unsafe.Pointer(&art), st)
	})
	return art, err
}

// ReadMentalData drains the mental estimations produced since the last read.
func (m *MathLib) ReadMentalData() ([]records.MindData, error) {
	var out []records.MindData
	err := m.call("MathLibReadMentalDataArr", func(lib, st unsafe.Pointer) bool {
		var n int32
		if !callOpOut(m.sym.readMentalDataArrSize, lib, unsafe.Pointer(&n), st) {
			return false
		}
		if n <= 0 {
			return true
		}
		out = make([]records.MindData, n)
		if !callOpRead(m.sym.readMentalDataArr, lib, unsafe.Pointer(&out[0]), &n, st) {
			return false
		}
		out = out[:min(int(n), len(out))]
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadAverageMentalData averages the last n windows.
func (m *MathLib) ReadAverageMentalData(n int) (records.MindData, error) {
	var md records.MindData
	err := m.call("MathLibReadAverageMentalData", func(lib, st unsafe.Pointer) bool {
		return callOpIntOut(m.sym.readAverageMentalData, lib, n, unsafe.Pointer(&md), st)
	})
	return md, err
}

// ReadSpectralDataPercents drains the spectral band shares produced since the
// last read.
func (m *MathLib) ReadSpectralDataPercents() ([]records.SpectralDataPercents, error) {
	var out []records.SpectralDataPercents
	err := m.call("MathLibReadSpectralDataPercentsArr", func(lib, st unsafe.Pointer) bool {
		var n int32
		if !callOpOut(m.sym.readSpectralPercentsSize, lib, unsafe.Pointer(&n), st) {
			return false
		}
		if n <= 0 {
			return true
		}
		out = make([]records.SpectralDataPercents, n)
		if !callOpRead(m.sym.readSpectralPercentsArr, lib, unsafe.Pointer(&out[0]), &n, st) {
			return false
		}
		out = out[:min(int(n), len(out))]
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MathLib) ReadRawSpectralVals() (records.RawSpectVals, error) {
	var v records.RawSpectVals
	err := m.call("MathLibReadRawSpectralVals", func(lib, st unsafe.Pointer) bool {
		return callOpOut(m.sym.readRawSpectralVals, lib, unsafe.Pointer(&v), st)
	})
	return v, err
}

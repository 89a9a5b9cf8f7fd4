// SPDX-License-Identifier: MIT
package mathlib

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalmath/internal/records"
)

func TestOpenEmptyPath(t *testing.T) {
	lib, err := Open("")
	assert.Nil(t, lib)
	assert.EqualError(t, err, "mathlib: library path is empty")
}

func TestOpenMissingLibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libmissing.so")

	lib, err := Open(path)
	assert.Nil(t, lib)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dlopen")
	assert.Contains(t, err.Error(), path)
}

func TestOpenNotASharedObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libbogus.so")
	require.NoError(t, os.WriteFile(path, []byte("not an elf file"), 0o644))

	lib, err := Open(path)
	assert.Nil(t, lib)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dlopen")
}

func TestOpenMissingSymbol(t *testing.T) {
	// Any loadable library lacking the engine's exports will do.
	lib, err := Open("libm.so.6")
	require.Error(t, err)
	if strings.Contains(err.Error(), "dlopen") {
		t.Skipf("libm.so.6 not loadable here: %v", err)
	}
	assert.Nil(t, lib)
	assert.Contains(t, err.Error(), `dlsym("createMathLib")`)
}

func TestSymbolNames(t *testing.T) {
	names := SymbolNames()
	require.Len(t, names, 25)
	assert.Equal(t, "createMathLib", names[0])
	assert.Equal(t, "freeMathLib", names[1])

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		assert.False(t, seen[n], "duplicate symbol %s", n)
		seen[n] = true
	}
	for _, n := range []string{
		"MathLibPushDataArr",
		"MathLibSetCallibrationLength",
		"MathLibGetCallibrationPercents",
		"MathLibReadSpectralDataPercentsArrSize",
	} {
		assert.True(t, seen[n], "missing %s", n)
	}
}

func TestCheckStatus(t *testing.T) {
	failed := records.OpStatus{Error: 7}
	failed.SetMessage("window too short")

	tests := []struct {
		name    string
		ok      bool
		st      records.OpStatus
		wantErr string
	}{
		{"Success", true, records.OpStatus{Success: true}, ""},
		{"Return false", false, records.OpStatus{Success: true}, "mathlib: Op failed with code 0"},
		{"Status false", true, records.OpStatus{}, "mathlib: Op failed with code 0"},
		{"Both false with message", false, failed, "mathlib: Op failed with code 7: window too short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkStatus("Op", tt.ok, &tt.st)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.EqualError(t, err, tt.wantErr)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, "Op", se.Op)
			assert.Equal(t, tt.st.Error, se.Code)
		})
	}
}

func TestClosedLibrary(t *testing.T) {
	lib := &Library{path: "libsignal.so"}

	assert.NoError(t, lib.Close())
	assert.NoError(t, lib.Close())
	assert.Equal(t, "libsignal.so", lib.Path())

	m, err := lib.NewMathLib(Settings{})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClosedMathLib(t *testing.T) {
	m := &MathLib{sym: &symbols{}}

	calls := map[string]func() error{
		"SetMentalEstimationMode": func() error { return m.SetMentalEstimationMode(true) },
		"SetPrioritySide":         func() error { return m.SetPrioritySide(records.SideLeft) },
		"SetCalibrationLength":    func() error { return m.SetCalibrationLength(6) },
		"SetSkipWinsAfterArtifact": func() error {
			return m.SetSkipWinsAfterArtifact(10)
		},
		"SetWeightsForSpectra": func() error { return m.SetWeightsForSpectra(1, 1, 1, 1, 1) },
		"SetZeroSpectWaves":    func() error { return m.SetZeroSpectWaves(true, 0, 1, 1, 1, 0) },
		"SetSpectNormalizationByBandsWidth": func() error {
			return m.SetSpectNormalizationByBandsWidth(true)
		},
		"SetSpectNormalizationByCoeffs": func() error {
			return m.SetSpectNormalizationByCoeffs(true)
		},
		"PushData": func() error {
			return m.PushData([]records.RawChannels{{LeftBipolar: 1, RightBipolar: 2}})
		},
		"PushDataArr": func() error {
			return m.PushDataArr([]records.RawChannelsArray{{Channels: []float64{1, 2, 3, 4}}})
		},
		"ProcessDataArr":   m.ProcessDataArr,
		"ProcessData":      func() error { return m.ProcessData(records.SideNone) },
		"StartCalibration": m.StartCalibration,
		"CalibrationFinished": func() error {
			_, err := m.CalibrationFinished()
			return err
		},
		"CalibrationPercents": func() error {
			_, err := m.CalibrationPercents()
			return err
		},
		"IsArtifactedSequence": func() error {
			_, err := m.IsArtifactedSequence()
			return err
		},
		"IsBothSidesArtifacted": func() error {
			_, err := m.IsBothSidesArtifacted()
			return err
		},
		"ReadMentalData": func() error {
			got, err := m.ReadMentalData()
			assert.Nil(t, got)
			return err
		},
		"ReadAverageMentalData": func() error {
			_, err := m.ReadAverageMentalData(3)
			return err
		},
		"ReadSpectralDataPercents": func() error {
			got, err := m.ReadSpectralDataPercents()
			assert.Nil(t, got)
			return err
		},
		"ReadRawSpectralVals": func() error {
			_, err := m.ReadRawSpectralVals()
			return err
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(), ErrClosed)
		})
	}

	assert.NoError(t, m.Close())
}

func TestSettingsImages(t *testing.T) {
	s := Settings{
		MathLib:           records.MathLibSetting{SamplingRate: 250, FFTWindow: 1000, BipolarMode: records.True, ChannelsNumber: 4},
		ArtifactDetect:    records.ArtifactDetectSetting{ArtBord: 110, HanningWinSpectrum: records.True},
		ShortArtifact:     records.ShortArtifactDetectSetting{AmplArtDetectWinSize: 200},
		MentalAndSpectral: records.MentalAndSpectralSetting{NSecForInstantEstimation: 2, NSecForAveraging: 2},
	}

	mls, ads, sads, mss, err := s.images()
	require.NoError(t, err)
	assert.Len(t, mls, records.MathLibSettingSize)
	assert.Len(t, ads, records.ArtifactDetectSettingSize)
	assert.Len(t, sads, records.ShortArtifactDetectSettingSize)
	assert.Len(t, mss, records.MentalAndSpectralSettingSize)
}

// SPDX-License-Identifier: MIT
/*
Package records defines the fixed-layout value types exchanged with the
native signal math engine.

Every type here mirrors a C struct byte for byte. The four settings records
are declared with one-byte packing on the native side and their flags are
four-byte BOOLs (Bool32), so every field is 32 bits wide. Each record
produces its exact native byte image through MarshalBinary and reads one
back through UnmarshalBinary. The result records
(OpStatus, RawChannels, MindData, RawSpectVals, SpectralDataPercents) use
natural alignment, and their Go declarations have the same in-memory layout
as the C ones, so they may also be filled in place by the native side.

The types carry no validation. Out-of-range values are passed through and
rejected, if at all, by the native engine through OpStatus.
*/
package records

// Native byte sizes of each record.
const (
	MathLibSettingSize             = 28
	ArtifactDetectSettingSize      = 36
	ShortArtifactDetectSettingSize = 12
	MentalAndSpectralSettingSize   = 8
	OpStatusSize                   = 520
	RawChannelsSize                = 16
	MindDataSize                   = 32
	RawSpectValsSize               = 16
	SpectralDataPercentsSize       = 40
)

// Bool32 is a flag stored as a 32-bit integer: zero is false, anything
// else true.
type Bool32 int32

const (
	False Bool32 = 0
	True  Bool32 = 1
)

// Flag converts b to its native form.
func Flag(b bool) Bool32 {
	if b {
		return True
	}
	return False
}

// Bool reports whether the flag is set.
func (b Bool32) Bool() bool {
	return b != 0
}

// MathLibSetting configures sampling and the analysis window of the engine.
type MathLibSetting struct {
	SamplingRate       int32 // Hz
	ProcessWinFreq     int32 // processing windows per second
	FFTWindow          int32 // samples per FFT window
	NFirstSecSkipped   int32 // seconds dropped at the start of a recording
	BipolarMode        Bool32
	ChannelsNumber     int32
	ChannelForAnalysis int32
}

// ArtifactDetectSetting configures long-window artifact detection.
type ArtifactDetectSetting struct {
	ArtBord                 int32
	AllowedPercentArtpoints int32
	RawBetapLimit           int32
	TotalPowBorder          int32
	GlobalArtwinSec         int32
	SpectArtByTotalp        Bool32
	HanningWinSpectrum      Bool32
	HammingWinSpectrum      Bool32
	NumWinsForQualityAvg    int32
}

// ShortArtifactDetectSetting configures amplitude artifact detection.
type ShortArtifactDetectSetting struct {
	AmplArtDetectWinSize  int32
	AmplArtZerodArea      int32
	AmplArtExtremumBorder int32
}

// MentalAndSpectralSetting configures the estimation windows.
type MentalAndSpectralSetting struct {
	NSecForInstantEstimation int32
	NSecForAveraging         int32
}

// RawChannels is one sample instant of the left and right bipolar leads.
type RawChannels struct {
	LeftBipolar  float64
	RightBipolar float64
}

// MindData holds the relative and instantaneous attention/relaxation pair.
type MindData struct {
	RelAttention   float64 `json:"rel_attention"`
	RelRelaxation  float64 `json:"rel_relaxation"`
	InstAttention  float64 `json:"inst_attention"`
	InstRelaxation float64 `json:"inst_relaxation"`
}

// RawSpectVals holds raw alpha and beta spectral power.
type RawSpectVals struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// SpectralDataPercents holds per-band power shares. The values are
// independent measurements and need not sum to 100.
type SpectralDataPercents struct {
	Delta float64 `json:"delta"`
	Theta float64 `json:"theta"`
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// RawChannelsArray is the logical shape of one nested record: a run of
// samples of its own length. On the native side it becomes a single pointer
// into a shared sample block, see package bridge.
type RawChannelsArray struct {
	Channels []float64
}

// SPDX-License-Identifier: MIT
package config

// Defaults follow the vendor's reference setup for a four channel headband
// sampled at 250 Hz.
const (
	DefaultLibraryPath = "libem_st_artifacts.so"
	DefaultLogLevel    = "info"

	DefaultSamplingRate       = 250
	DefaultProcessWinFreq     = 25
	DefaultFFTWindow          = 1000
	DefaultNFirstSecSkipped   = 4
	DefaultBipolarMode        = true
	DefaultChannelsNumber     = 4
	DefaultChannelForAnalysis = 0

	DefaultArtBord                 = 110
	DefaultAllowedPercentArtpoints = 70
	DefaultRawBetapLimit           = 800_000
	DefaultTotalPowBorder          = 30_000_000
	DefaultGlobalArtwinSec         = 4
	DefaultNumWinsForQualityAvg    = 100

	DefaultAmplArtDetectWinSize  = 200
	DefaultAmplArtZerodArea      = 200
	DefaultAmplArtExtremumBorder = 25

	DefaultNSecForInstantEstimation = 2
	DefaultNSecForAveraging         = 2

	DefaultBatchSize             = 25
	DefaultCalibrationLength     = 6 // seconds
	DefaultSkipWinsAfterArtifact = 10
	DefaultAverageWindows        = 3
	DefaultRecordFullScale       = 3276.8 // uV, 0.1 uV per 16-bit step

	DefaultInputKind       = InputEDF
	DefaultDeviceID        = MinDeviceID // Default to system default device
	DefaultFramesPerBuffer = 250
	DefaultGain            = 1.0

	DefaultWebSocketAddress = "127.0.0.1:8765"
	DefaultWebSocketPath    = "/results"
	DefaultUDPAddress       = "127.0.0.1:9090"
	DefaultKafkaTopic       = "signalmath.results"
	DefaultParquetCodec     = "snappy"

	// Limits
	MinDeviceID     = -1 // -1 represents system default device
	MinSampleRate   = 100
	MaxSampleRate   = 16000
	MaxBufferFrames = 8192
)

// Input kinds.
const (
	InputEDF    = "edf"
	InputWAV    = "wav"
	InputDevice = "device"
)

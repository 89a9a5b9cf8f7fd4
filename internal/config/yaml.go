// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"signalmath/internal/log"
	"signalmath/internal/records"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug    bool   `yaml:"debug"`     // Enable debug mode (forces the debug log level).
	LogLevel string `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	LogJSON  bool   `yaml:"log_json"`  // Emit one JSON object per log line.

	Library             LibraryConfig             `yaml:"library"`
	MathLib             MathLibConfig             `yaml:"math_lib"`
	ArtifactDetect      ArtifactDetectConfig      `yaml:"artifact_detect"`
	ShortArtifactDetect ShortArtifactDetectConfig `yaml:"short_artifact_detect"`
	MentalAndSpectral   MentalAndSpectralConfig   `yaml:"mental_and_spectral"`
	Session             SessionConfig             `yaml:"session"`
	Input               InputConfig               `yaml:"input"`
	Transport           TransportConfig           `yaml:"transport"`
}

// LibraryConfig locates the native engine.
type LibraryConfig struct {
	Path string `yaml:"path"` // File name or path handed to dlopen.
}

// MathLibConfig mirrors records.MathLibSetting.
type MathLibConfig struct {
	SamplingRate       int  `yaml:"sampling_rate"`       // Hz.
	ProcessWinFreq     int  `yaml:"process_win_freq"`    // Analysis windows per second.
	FFTWindow          int  `yaml:"fft_window"`          // Samples per FFT.
	NFirstSecSkipped   int  `yaml:"n_first_sec_skipped"` // Seconds dropped at the start.
	BipolarMode        bool `yaml:"bipolar_mode"`        // Push derived bipolar pairs instead of raw channels.
	ChannelsNumber     int  `yaml:"channels_number"`
	ChannelForAnalysis int  `yaml:"channel_for_analysis"`
}

// ArtifactDetectConfig mirrors records.ArtifactDetectSetting.
type ArtifactDetectConfig struct {
	ArtBord                 int  `yaml:"art_bord"`
	AllowedPercentArtpoints int  `yaml:"allowed_percent_artpoints"`
	RawBetapLimit           int  `yaml:"raw_betap_limit"`
	TotalPowBorder          int  `yaml:"total_pow_border"`
	GlobalArtwinSec         int  `yaml:"global_artwin_sec"`
	SpectArtByTotalp        bool `yaml:"spect_art_by_totalp"`
	HanningWinSpectrum      bool `yaml:"hanning_win_spectrum"`
	HammingWinSpectrum      bool `yaml:"hamming_win_spectrum"`
	NumWinsForQualityAvg    int  `yaml:"num_wins_for_quality_avg"`
}

// ShortArtifactDetectConfig mirrors records.ShortArtifactDetectSetting.
type ShortArtifactDetectConfig struct {
	AmplArtDetectWinSize  int `yaml:"ampl_art_detect_win_size"`
	AmplArtZerodArea      int `yaml:"ampl_art_zerod_area"`
	AmplArtExtremumBorder int `yaml:"ampl_art_extremum_border"`
}

// MentalAndSpectralConfig mirrors records.MentalAndSpectralSetting.
type MentalAndSpectralConfig struct {
	NSecForInstantEstimation int `yaml:"n_sec_for_instant_estimation"`
	NSecForAveraging         int `yaml:"n_sec_for_averaging"`
}

// BipolarConfig picks the electrodes each bipolar lead is derived from:
// lead = plus - minus.
type BipolarConfig struct {
	LeftPlus   int `yaml:"left_plus"`
	LeftMinus  int `yaml:"left_minus"`
	RightPlus  int `yaml:"right_plus"`
	RightMinus int `yaml:"right_minus"`
}

// SessionConfig holds settings that drive a session rather than the engine
// constructor.
type SessionConfig struct {
	BatchSize             int           `yaml:"batch_size"`         // Samples per push.
	Bipolar               BipolarConfig `yaml:"bipolar"`            // Used when math_lib.bipolar_mode is set.
	Calibrate             bool          `yaml:"calibrate"`          // Run calibration before reporting.
	CalibrationLength     int           `yaml:"calibration_length"` // Seconds.
	PrioritySide          string        `yaml:"priority_side"`      // left, right or none.
	IndependentEstimation bool          `yaml:"independent_estimation"`
	SkipWinsAfterArtifact int           `yaml:"skip_wins_after_artifact"`
	AverageWindows        int           `yaml:"average_windows"` // Windows averaged for the summary.
	SpectraWeights        []float64     `yaml:"spectra_weights"` // delta, theta, alpha, beta, gamma.
	NormalizeByBandsWidth bool          `yaml:"normalize_by_bands_width"`
	NormalizeByCoeffs     bool          `yaml:"normalize_by_coeffs"`
	RecordPath            string        `yaml:"record_path"`       // Copy the raw signal to a .edf or .wav file.
	RecordFullScale       float64       `yaml:"record_full_scale"` // Physical value mapped to digital full scale.
}

// InputConfig selects where samples come from.
type InputConfig struct {
	Kind            string  `yaml:"kind"`              // edf, wav or device.
	Path            string  `yaml:"path"`              // File for edf and wav.
	Device          int     `yaml:"device"`            // PortAudio device index (-1 for default).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Device buffer size.
	Gain            float64 `yaml:"gain"`              // Multiplier applied to every sample.
}

// TransportConfig holds settings related to publishing results.
type TransportConfig struct {
	LogResults       bool   `yaml:"log_results"`       // Log every result.
	WebSocketEnabled bool   `yaml:"websocket_enabled"` // Serve results over a websocket.
	WebSocketAddress string `yaml:"websocket_address"` // Listen address (e.g., "127.0.0.1:8765").
	WebSocketPath    string `yaml:"websocket_path"`    // HTTP path of the websocket endpoint.
	UDPEnabled       bool   `yaml:"udp_enabled"`       // Send one datagram per result.
	UDPAddress       string `yaml:"udp_address"`       // Peer address (e.g., "127.0.0.1:9090").

	KafkaBrokers []string `yaml:"kafka_brokers"` // Produce results to Kafka when set.
	KafkaTopic   string   `yaml:"kafka_topic"`
	KafkaKey     string   `yaml:"kafka_key"` // Message key; defaults to the input path.

	ParquetPath        string `yaml:"parquet_path"`        // Archive results to this Parquet file when set.
	ParquetCompression string `yaml:"parquet_compression"` // snappy, zstd, gzip or none.
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Library:  LibraryConfig{Path: DefaultLibraryPath},
		MathLib: MathLibConfig{
			SamplingRate:       DefaultSamplingRate,
			ProcessWinFreq:     DefaultProcessWinFreq,
			FFTWindow:          DefaultFFTWindow,
			NFirstSecSkipped:   DefaultNFirstSecSkipped,
			BipolarMode:        DefaultBipolarMode,
			ChannelsNumber:     DefaultChannelsNumber,
			ChannelForAnalysis: DefaultChannelForAnalysis,
		},
		ArtifactDetect: ArtifactDetectConfig{
			ArtBord:                 DefaultArtBord,
			AllowedPercentArtpoints: DefaultAllowedPercentArtpoints,
			RawBetapLimit:           DefaultRawBetapLimit,
			TotalPowBorder:          DefaultTotalPowBorder,
			GlobalArtwinSec:         DefaultGlobalArtwinSec,
			SpectArtByTotalp:        true,
			HanningWinSpectrum:      false,
			HammingWinSpectrum:      true,
			NumWinsForQualityAvg:    DefaultNumWinsForQualityAvg,
		},
		ShortArtifactDetect: ShortArtifactDetectConfig{
			AmplArtDetectWinSize:  DefaultAmplArtDetectWinSize,
			AmplArtZerodArea:      DefaultAmplArtZerodArea,
			AmplArtExtremumBorder: DefaultAmplArtExtremumBorder,
		},
		MentalAndSpectral: MentalAndSpectralConfig{
			NSecForInstantEstimation: DefaultNSecForInstantEstimation,
			NSecForAveraging:         DefaultNSecForAveraging,
		},
		Session: SessionConfig{
			BatchSize: DefaultBatchSize,
			// T3-O1 and T4-O2 on a headband ordered O1, T3, T4, O2.
			Bipolar:               BipolarConfig{LeftPlus: 1, LeftMinus: 0, RightPlus: 2, RightMinus: 3},
			Calibrate:             true,
			CalibrationLength:     DefaultCalibrationLength,
			PrioritySide:          "none",
			SkipWinsAfterArtifact: DefaultSkipWinsAfterArtifact,
			AverageWindows:        DefaultAverageWindows,
			SpectraWeights:        []float64{1, 1, 1, 1, 1},
			RecordFullScale:       DefaultRecordFullScale,
		},
		Input: InputConfig{
			Kind:            DefaultInputKind,
			Device:          DefaultDeviceID,
			FramesPerBuffer: DefaultFramesPerBuffer,
			Gain:            DefaultGain,
		},
		Transport: TransportConfig{
			LogResults:         true,
			WebSocketAddress:   DefaultWebSocketAddress,
			WebSocketPath:      DefaultWebSocketPath,
			UDPAddress:         DefaultUDPAddress,
			KafkaTopic:         DefaultKafkaTopic,
			ParquetCompression: DefaultParquetCodec,
		},
	}
}

// LoadConfig reads configuration with ReadConfig and validates it.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ReadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("signalmath.yaml", "config.yaml"). If no file is found,
// it uses built-in defaults. After loading defaults or from file, it applies environment
// variable overrides. The result is not validated, so callers that layer further
// overrides on top validate once they are done.
func ReadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"signalmath.yaml", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	return &cfg, nil
}

// Validate reports every setting that the engine or a session would reject.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		add("log_level %q is not a known level", c.LogLevel)
	}
	if c.Library.Path == "" {
		add("library.path must be set")
	}

	m := c.MathLib
	if m.SamplingRate < MinSampleRate || m.SamplingRate > MaxSampleRate {
		add("math_lib.sampling_rate %d outside [%d, %d]", m.SamplingRate, MinSampleRate, MaxSampleRate)
	}
	if m.ProcessWinFreq <= 0 {
		add("math_lib.process_win_freq must be positive")
	} else if m.SamplingRate%m.ProcessWinFreq != 0 {
		add("math_lib.process_win_freq %d must divide sampling_rate %d", m.ProcessWinFreq, m.SamplingRate)
	}
	if m.FFTWindow <= 0 {
		add("math_lib.fft_window must be positive")
	}
	if m.NFirstSecSkipped < 0 {
		add("math_lib.n_first_sec_skipped must not be negative")
	}
	if m.ChannelsNumber < 1 {
		add("math_lib.channels_number must be at least 1")
	}
	if m.ChannelForAnalysis < 0 || m.ChannelForAnalysis >= max(m.ChannelsNumber, 1) {
		add("math_lib.channel_for_analysis %d outside [0, %d)", m.ChannelForAnalysis, m.ChannelsNumber)
	}
	if m.BipolarMode {
		b := c.Session.Bipolar
		for name, ch := range map[string]int{
			"left_plus": b.LeftPlus, "left_minus": b.LeftMinus,
			"right_plus": b.RightPlus, "right_minus": b.RightMinus,
		} {
			if ch < 0 || ch >= m.ChannelsNumber {
				add("session.bipolar.%s %d outside [0, %d)", name, ch, m.ChannelsNumber)
			}
		}
	}

	a := c.ArtifactDetect
	if a.AllowedPercentArtpoints < 0 || a.AllowedPercentArtpoints > 100 {
		add("artifact_detect.allowed_percent_artpoints %d outside [0, 100]", a.AllowedPercentArtpoints)
	}
	if a.GlobalArtwinSec <= 0 {
		add("artifact_detect.global_artwin_sec must be positive")
	}
	if a.HanningWinSpectrum && a.HammingWinSpectrum {
		add("artifact_detect: hanning_win_spectrum and hamming_win_spectrum are exclusive")
	}
	if c.ShortArtifactDetect.AmplArtDetectWinSize <= 0 {
		add("short_artifact_detect.ampl_art_detect_win_size must be positive")
	}
	if c.MentalAndSpectral.NSecForInstantEstimation <= 0 || c.MentalAndSpectral.NSecForAveraging <= 0 {
		add("mental_and_spectral windows must be positive")
	}

	s := c.Session
	if s.BatchSize <= 0 {
		add("session.batch_size must be positive")
	}
	if s.CalibrationLength <= 0 {
		add("session.calibration_length must be positive")
	}
	if _, err := records.ParseSide(s.PrioritySide); err != nil {
		add("session.priority_side: %w", err)
	}
	if s.SkipWinsAfterArtifact < 0 {
		add("session.skip_wins_after_artifact must not be negative")
	}
	if s.AverageWindows <= 0 {
		add("session.average_windows must be positive")
	}
	if s.RecordFullScale <= 0 {
		add("session.record_full_scale must be positive")
	}
	if len(s.SpectraWeights) != 5 {
		add("session.spectra_weights needs 5 values, got %d", len(s.SpectraWeights))
	}

	in := c.Input
	switch strings.ToLower(in.Kind) {
	case InputEDF, InputWAV:
		// The path is checked when the source is opened; commands that
		// never read samples run without one.
	case InputDevice:
		if in.Device < MinDeviceID {
			add("input.device %d below %d", in.Device, MinDeviceID)
		}
		if in.FramesPerBuffer <= 0 || in.FramesPerBuffer > MaxBufferFrames {
			add("input.frames_per_buffer %d outside (0, %d]", in.FramesPerBuffer, MaxBufferFrames)
		}
	default:
		add("input.kind %q is not one of edf, wav, device", in.Kind)
	}
	if in.Gain <= 0 {
		add("input.gain must be positive")
	}

	if c.Transport.WebSocketEnabled {
		if !strings.Contains(c.Transport.WebSocketAddress, ":") {
			add("transport.websocket_address %q appears invalid (missing port?)", c.Transport.WebSocketAddress)
		}
		if !strings.HasPrefix(c.Transport.WebSocketPath, "/") {
			add("transport.websocket_path %q must start with /", c.Transport.WebSocketPath)
		}
	}
	if c.Transport.UDPEnabled && !strings.Contains(c.Transport.UDPAddress, ":") {
		add("transport.udp_address %q appears invalid (missing port?)", c.Transport.UDPAddress)
	}
	if len(c.Transport.KafkaBrokers) > 0 && c.Transport.KafkaTopic == "" {
		add("transport.kafka_topic must be set when kafka_brokers is")
	}
	switch strings.ToLower(c.Transport.ParquetCompression) {
	case "", "snappy", "zstd", "gzip", "gz", "none", "uncompressed":
	default:
		add("transport.parquet_compression %q is not one of snappy, zstd, gzip, none", c.Transport.ParquetCompression)
	}

	return errors.Join(errs...)
}

// applyEnvOverrides lets ENV_* variables replace file and default values.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			log.Debugf("configuration: overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		log.Debugf("configuration: overriding log_level from env: %s", val)
	}
	// ENV_LIBRARY_PATH
	if val, ok := os.LookupEnv("ENV_LIBRARY_PATH"); ok {
		cfg.Library.Path = val
		log.Debugf("configuration: overriding library.path from env: %s", val)
	}

	// ENV_INPUT_{...}
	// These select the sample source.

	// ENV_INPUT_KIND
	if val, ok := os.LookupEnv("ENV_INPUT_KIND"); ok {
		cfg.Input.Kind = val
		log.Debugf("configuration: overriding input.kind from env: %s", val)
	}
	// ENV_INPUT_PATH
	if val, ok := os.LookupEnv("ENV_INPUT_PATH"); ok {
		cfg.Input.Path = val
		log.Debugf("configuration: overriding input.path from env: %s", val)
	}
	// ENV_INPUT_DEVICE
	if val, ok := os.LookupEnv("ENV_INPUT_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Input.Device = iVal
			log.Debugf("configuration: overriding input.device from env: %d", iVal)
		}
	}

	// ENV_WS_{...}
	// These are specific to the transport layer.

	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.WebSocketEnabled = bVal
			log.Debugf("configuration: overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketAddress = val
		log.Debugf("configuration: overriding transport.websocket_address from env: %s", val)
	}
	// ENV_UDP_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_ADDRESS"); ok {
		cfg.Transport.UDPAddress = val
		cfg.Transport.UDPEnabled = true
		log.Debugf("configuration: overriding transport.udp_address from env: %s", val)
	}
	// ENV_KAFKA_BROKERS (comma separated)
	if val, ok := os.LookupEnv("ENV_KAFKA_BROKERS"); ok {
		cfg.Transport.KafkaBrokers = splitList(val)
		log.Debugf("configuration: overriding transport.kafka_brokers from env: %v", cfg.Transport.KafkaBrokers)
	}
	// ENV_PARQUET_PATH
	if val, ok := os.LookupEnv("ENV_PARQUET_PATH"); ok {
		cfg.Transport.ParquetPath = val
		log.Debugf("configuration: overriding transport.parquet_path from env: %s", val)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

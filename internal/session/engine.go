// SPDX-License-Identifier: MIT
/*
Package session drives an analysis session: samples flow from a source into
the native engine batch by batch, and every batch yields a result for the
transports.

	source ──Read──▶ block ──bipolar/frames──▶ Analyzer ──results──▶ Transport
	                   └──────────▶ recorder (optional)

Calibration runs first when enabled. While it lasts only its progress is
published.
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"signalmath/internal/config"
	"signalmath/internal/records"
	"signalmath/internal/source"
	"signalmath/internal/transport"
)

// Analyzer is the part of the native engine a session drives.
// *mathlib.MathLib satisfies it.
type Analyzer interface {
	SetMentalEstimationMode(independent bool) error
	SetPrioritySide(side records.SideType) error
	SetCalibrationLength(seconds int) error
	SetSkipWinsAfterArtifact(windows int) error
	SetWeightsForSpectra(delta, theta, alpha, beta, gamma float64) error
	SetSpectNormalizationByBandsWidth(enabled bool) error
	SetSpectNormalizationByCoeffs(enabled bool) error

	PushData(samples []records.RawChannels) error
	PushDataArr(samples []records.RawChannelsArray) error
	ProcessDataArr() error

	StartCalibration() error
	CalibrationFinished() (bool, error)
	CalibrationPercents() (int, error)

	IsArtifactedSequence() (bool, error)
	IsBothSidesArtifacted() (bool, error)

	ReadMentalData() ([]records.MindData, error)
	ReadAverageMentalData(n int) (records.MindData, error)
	ReadSpectralDataPercents() ([]records.SpectralDataPercents, error)
	ReadRawSpectralVals() (records.RawSpectVals, error)
}

// Options controls an Engine.
type Options struct {
	BatchSize       int // Samples per push.
	Channels        int // Channels handed to the analyzer.
	Bipolar         bool
	Mapping         source.Mapping
	Calibrate       bool
	AverageWindows  int
	RecordPath      string
	RecordFullScale float64
}

// OptionsFrom derives engine options from the configuration.
func OptionsFrom(cfg *config.Config) Options {
	b := cfg.Session.Bipolar
	return Options{
		BatchSize: cfg.Session.BatchSize,
		Channels:  cfg.MathLib.ChannelsNumber,
		Bipolar:   cfg.MathLib.BipolarMode,
		Mapping: source.Mapping{
			LeftPlus: b.LeftPlus, LeftMinus: b.LeftMinus,
			RightPlus: b.RightPlus, RightMinus: b.RightMinus,
		},
		Calibrate:       cfg.Session.Calibrate,
		AverageWindows:  cfg.Session.AverageWindows,
		RecordPath:      cfg.Session.RecordPath,
		RecordFullScale: cfg.Session.RecordFullScale,
	}
}

// Configure applies the session section of cfg to a freshly created
// analyzer.
func Configure(a Analyzer, cfg *config.Config) error {
	s := cfg.Session
	w := s.SpectraWeights
	if len(w) != 5 {
		return fmt.Errorf("session: spectra weights need 5 values, got %d", len(w))
	}

	steps := []func() error{
		func() error { return a.SetMentalEstimationMode(s.IndependentEstimation) },
		func() error { return a.SetPrioritySide(cfg.PrioritySide()) },
		func() error { return a.SetCalibrationLength(s.CalibrationLength) },
		func() error { return a.SetSkipWinsAfterArtifact(s.SkipWinsAfterArtifact) },
		func() error { return a.SetWeightsForSpectra(w[0], w[1], w[2], w[3], w[4]) },
		func() error { return a.SetSpectNormalizationByBandsWidth(s.NormalizeByBandsWidth) },
		func() error { return a.SetSpectNormalizationByCoeffs(s.NormalizeByCoeffs) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("session: configuring analyzer: %w", err)
		}
	}
	return nil
}

// Engine moves samples from a source through an analyzer to a transport.
type Engine struct {
	opts     Options
	analyzer Analyzer
	src      source.Source
	out      transport.Transport
	logger   *zap.Logger
	now      func() time.Time

	block   [][]float64
	bipolar *source.Bipolar
	pairs   []records.RawChannels
	frames  []records.RawChannelsArray

	samples     int
	calibrating bool
	rec         recorder
}

// NewEngine checks that src can feed the analyzer as opts describe.
func NewEngine(a Analyzer, src source.Source, out transport.Transport, opts Options, logger *zap.Logger) (*Engine, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("session: batch size %d must be positive", opts.BatchSize)
	}
	if opts.Channels <= 0 {
		return nil, fmt.Errorf("session: channel count %d must be positive", opts.Channels)
	}
	if src.Channels() < opts.Channels {
		return nil, fmt.Errorf("session: source has %d channels, analyzer expects %d", src.Channels(), opts.Channels)
	}
	if opts.Bipolar {
		m := opts.Mapping
		for _, ch := range []int{m.LeftPlus, m.LeftMinus, m.RightPlus, m.RightMinus} {
			if ch < 0 || ch >= opts.Channels {
				return nil, fmt.Errorf("session: bipolar channel %d outside [0, %d)", ch, opts.Channels)
			}
		}
	}

	e := &Engine{
		opts:     opts,
		analyzer: a,
		src:      src,
		out:      out,
		logger:   logger.Named("session"),
		now:      time.Now,
		block:    source.NewBlock(src.Channels(), opts.BatchSize),
	}
	if opts.Bipolar {
		e.bipolar = source.NewBipolar(opts.Mapping)
	}
	return e, nil
}

// Samples returns how many samples per channel were pushed so far.
func (e *Engine) Samples() int {
	return e.samples
}

// Run processes batches until the source is exhausted or ctx is done. It
// returns nil at the end of the input and ctx.Err() on cancellation.
func (e *Engine) Run(ctx context.Context) error {
	if e.opts.RecordPath != "" {
		if err := e.StartRecording(e.opts.RecordPath); err != nil {
			return err
		}
		defer func() {
			if err := e.StopRecording(); err != nil {
				e.logger.Error("closing recording", zap.Error(err))
			}
		}()
	}

	if e.opts.Calibrate {
		if err := e.analyzer.StartCalibration(); err != nil {
			return fmt.Errorf("session: %w", err)
		}
		e.calibrating = true
		e.logger.Info("calibration started")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := e.src.Read(e.block)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("session: %w", readErr)
		}
		if n > 0 {
			if err := e.Step(n); err != nil {
				return err
			}
		}
		if errors.Is(readErr, io.EOF) {
			e.logger.Info("input exhausted", zap.Int("samples", e.samples))
			return nil
		}
	}
}

// Step pushes the first n samples of the current block, runs the analysis
// and publishes the result.
func (e *Engine) Step(n int) error {
	if e.rec != nil {
		if err := e.rec.Write(e.block[:e.opts.Channels], n); err != nil {
			return fmt.Errorf("session: recording: %w", err)
		}
	}

	if err := e.push(n); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := e.analyzer.ProcessDataArr(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	e.samples += n

	res, err := e.collect()
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := e.out.Send(res); err != nil {
		e.logger.Warn("publishing result", zap.Error(err))
	}
	return nil
}

func (e *Engine) push(n int) error {
	if e.opts.Bipolar {
		e.pairs = e.bipolar.Derive(e.block, n, e.pairs)
		return e.analyzer.PushData(e.pairs)
	}
	e.frames = source.Frames(e.block[:e.opts.Channels], n, e.frames)
	return e.analyzer.PushDataArr(e.frames)
}

func (e *Engine) collect() (transport.Result, error) {
	res := transport.Result{Time: e.now(), Samples: e.samples}

	if e.calibrating {
		done, err := e.analyzer.CalibrationFinished()
		if err != nil {
			return res, err
		}
		if !done {
			pct, err := e.analyzer.CalibrationPercents()
			if err != nil {
				return res, err
			}
			res.Calibrating = true
			res.CalibrationPercents = pct
			return res, nil
		}
		e.calibrating = false
		e.logger.Info("calibration finished", zap.Int("samples", e.samples))
	}

	var err error
	if res.Artifacted, err = e.analyzer.IsArtifactedSequence(); err != nil {
		return res, err
	}
	if res.BothSidesArtifacted, err = e.analyzer.IsBothSidesArtifacted(); err != nil {
		return res, err
	}
	if res.Mental, err = e.analyzer.ReadMentalData(); err != nil {
		return res, err
	}
	if len(res.Mental) > 0 {
		avg, err := e.analyzer.ReadAverageMentalData(e.opts.AverageWindows)
		if err != nil {
			return res, err
		}
		res.Average = &avg
	}
	if res.Spectral, err = e.analyzer.ReadSpectralDataPercents(); err != nil {
		return res, err
	}
	if len(res.Spectral) > 0 {
		raw, err := e.analyzer.ReadRawSpectralVals()
		if err != nil {
			return res, err
		}
		res.RawSpectral = &raw
	}

	if res.Artifacted {
		e.logger.Debug("artifacted batch", zap.Int("samples", e.samples), zap.Bool("both_sides", res.BothSidesArtifacted))
	}
	return res, nil
}

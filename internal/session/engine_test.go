// SPDX-License-Identifier: MIT
package session

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"signalmath/internal/config"
	"signalmath/internal/records"
	"signalmath/internal/source"
	"signalmath/internal/transport"
)

// memSource serves channel-major samples from memory.
type memSource struct {
	data   [][]float64
	rate   float64
	pos    int
	err    error // returned instead of data when set
	closed bool
}

// newMemSource builds channels of length n where sample i of channel c
// holds c*1000 + i.
func newMemSource(channels, n int) *memSource {
	data := make([][]float64, channels)
	for c := range data {
		data[c] = make([]float64, n)
		for i := range data[c] {
			data[c][i] = float64(c*1000 + i)
		}
	}
	return &memSource{data: data, rate: 10}
}

func (s *memSource) Channels() int       { return len(s.data) }
func (s *memSource) SampleRate() float64 { return s.rate }
func (s *memSource) Close() error        { s.closed = true; return nil }

func (s *memSource) Read(block [][]float64) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n := min(len(block[0]), len(s.data[0])-s.pos)
	for c := range s.data {
		copy(block[c], s.data[c][s.pos:s.pos+n])
	}
	s.pos += n
	if s.pos == len(s.data[0]) {
		return n, io.EOF
	}
	return n, nil
}

// fakeAnalyzer records what the session hands it.
type fakeAnalyzer struct {
	pairs  [][]records.RawChannels
	frames [][]records.RawChannelsArray

	processed      int
	calibrating    bool
	calibrateAfter int // processed batches until calibration completes
	averageN       []int

	independent  bool
	side         records.SideType
	calibLength  int
	skipWins     int
	weights      [5]float64
	normBands    bool
	normCoeffs   bool
	failPush     error
	failSettings error
}

func (f *fakeAnalyzer) SetMentalEstimationMode(v bool) error {
	f.independent = v
	return f.failSettings
}
func (f *fakeAnalyzer) SetPrioritySide(s records.SideType) error { f.side = s; return nil }
func (f *fakeAnalyzer) SetCalibrationLength(n int) error         { f.calibLength = n; return nil }
func (f *fakeAnalyzer) SetSkipWinsAfterArtifact(n int) error     { f.skipWins = n; return nil }
func (f *fakeAnalyzer) SetWeightsForSpectra(d, t, a, b, g float64) error {
	f.weights = [5]float64{d, t, a, b, g}
	return nil
}
func (f *fakeAnalyzer) SetSpectNormalizationByBandsWidth(v bool) error { f.normBands = v; return nil }
func (f *fakeAnalyzer) SetSpectNormalizationByCoeffs(v bool) error     { f.normCoeffs = v; return nil }

func (f *fakeAnalyzer) PushData(s []records.RawChannels) error {
	if f.failPush != nil {
		return f.failPush
	}
	f.pairs = append(f.pairs, append([]records.RawChannels(nil), s...))
	return nil
}

func (f *fakeAnalyzer) PushDataArr(s []records.RawChannelsArray) error {
	if f.failPush != nil {
		return f.failPush
	}
	cp := make([]records.RawChannelsArray, len(s))
	for i := range s {
		cp[i].Channels = append([]float64(nil), s[i].Channels...)
	}
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeAnalyzer) ProcessDataArr() error { f.processed++; return nil }

func (f *fakeAnalyzer) StartCalibration() error { f.calibrating = true; return nil }
func (f *fakeAnalyzer) CalibrationFinished() (bool, error) {
	return f.processed >= f.calibrateAfter, nil
}
func (f *fakeAnalyzer) CalibrationPercents() (int, error) {
	return f.processed * 100 / f.calibrateAfter, nil
}

func (f *fakeAnalyzer) IsArtifactedSequence() (bool, error)  { return f.processed%2 == 1, nil }
func (f *fakeAnalyzer) IsBothSidesArtifacted() (bool, error) { return false, nil }

func (f *fakeAnalyzer) ReadMentalData() ([]records.MindData, error) {
	return []records.MindData{{RelAttention: float64(f.processed)}}, nil
}
func (f *fakeAnalyzer) ReadAverageMentalData(n int) (records.MindData, error) {
	f.averageN = append(f.averageN, n)
	return records.MindData{RelAttention: 50}, nil
}
func (f *fakeAnalyzer) ReadSpectralDataPercents() ([]records.SpectralDataPercents, error) {
	return nil, nil
}
func (f *fakeAnalyzer) ReadRawSpectralVals() (records.RawSpectVals, error) {
	return records.RawSpectVals{}, errors.New("not expected without spectral data")
}

// collector is an in-memory transport.
type collector struct {
	results []transport.Result
	err     error
}

func (c *collector) Send(r transport.Result) error {
	c.results = append(c.results, r)
	return c.err
}
func (c *collector) Close() error { return nil }

func bipolarOptions() Options {
	return Options{
		BatchSize:      25,
		Channels:       4,
		Bipolar:        true,
		Mapping:        source.Mapping{LeftPlus: 1, LeftMinus: 0, RightPlus: 2, RightMinus: 3},
		AverageWindows: 3,
	}
}

func TestRunBipolar(t *testing.T) {
	src := newMemSource(4, 60)
	an := &fakeAnalyzer{calibrateAfter: 2}
	out := &collector{}
	opts := bipolarOptions()
	opts.Calibrate = true

	e, err := NewEngine(an, src, out, opts, zap.NewNop())
	require.NoError(t, err)
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 60, e.Samples())
	assert.True(t, an.calibrating)

	require.Len(t, an.pairs, 3)
	assert.Len(t, an.pairs[0], 25)
	assert.Len(t, an.pairs[2], 10)
	// T3 - O1 = 1000, T4 - O2 = -1000 for every sample.
	for _, batch := range an.pairs {
		for _, p := range batch {
			assert.Equal(t, records.RawChannels{LeftBipolar: 1000, RightBipolar: -1000}, p)
		}
	}
	assert.Empty(t, an.frames)
	assert.Equal(t, 3, an.processed)

	require.Len(t, out.results, 3)

	first := out.results[0]
	assert.True(t, first.Calibrating)
	assert.Equal(t, 50, first.CalibrationPercents)
	assert.Nil(t, first.Mental, "no estimates while calibrating")
	assert.Equal(t, 25, first.Samples)
	assert.Equal(t, fixed, first.Time)

	second := out.results[1]
	assert.False(t, second.Calibrating)
	assert.False(t, second.Artifacted)
	assert.Equal(t, []records.MindData{{RelAttention: 2}}, second.Mental)
	require.NotNil(t, second.Average)
	assert.Equal(t, 50.0, second.Average.RelAttention)
	assert.Nil(t, second.RawSpectral, "raw spectra are only read along with spectral data")

	third := out.results[2]
	assert.True(t, third.Artifacted)
	assert.Equal(t, 60, third.Samples)
	assert.Equal(t, []int{3, 3}, an.averageN)
}

func TestRunMultichannel(t *testing.T) {
	src := newMemSource(3, 5)
	an := &fakeAnalyzer{}
	out := &collector{}

	e, err := NewEngine(an, src, out, Options{BatchSize: 4, Channels: 2, AverageWindows: 1}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))

	require.Len(t, an.frames, 2)
	require.Len(t, an.frames[0], 4)
	require.Len(t, an.frames[1], 1)
	assert.Equal(t, []float64{0, 1000}, an.frames[0][0].Channels, "only the configured channels are pushed")
	assert.Equal(t, []float64{3, 1003}, an.frames[0][3].Channels)
	assert.Equal(t, []float64{4, 1004}, an.frames[1][0].Channels)
	assert.Empty(t, an.pairs)
	assert.False(t, an.calibrating)
	assert.Len(t, out.results, 2)
}

func TestRunCancelled(t *testing.T) {
	an := &fakeAnalyzer{}
	e, err := NewEngine(an, newMemSource(4, 100), &collector{}, bipolarOptions(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, e.Run(ctx), context.Canceled)
	assert.Zero(t, an.processed)
}

func TestRunAnalyzerError(t *testing.T) {
	status := errors.New("mathlib: MathLibPushData failed with code 3")
	an := &fakeAnalyzer{failPush: status}
	e, err := NewEngine(an, newMemSource(4, 30), &collector{}, bipolarOptions(), zap.NewNop())
	require.NoError(t, err)

	err = e.Run(context.Background())
	assert.ErrorIs(t, err, status)
	assert.Zero(t, an.processed)
}

func TestRunSourceError(t *testing.T) {
	src := newMemSource(4, 30)
	src.err = errors.New("device unplugged")
	e, err := NewEngine(&fakeAnalyzer{}, src, &collector{}, bipolarOptions(), zap.NewNop())
	require.NoError(t, err)

	assert.ErrorContains(t, e.Run(context.Background()), "device unplugged")
}

func TestRunTransportErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	out := &collector{err: errors.New("no listeners")}

	e, err := NewEngine(&fakeAnalyzer{}, newMemSource(4, 25), out, bipolarOptions(), zap.New(core))
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background()))
	assert.Len(t, out.results, 1)
	require.Equal(t, 1, logs.FilterMessage("publishing result").Len())
}

func TestNewEngineValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		src    *memSource
	}{
		{"Zero batch", func(o *Options) { o.BatchSize = 0 }, newMemSource(4, 1)},
		{"Zero channels", func(o *Options) { o.Channels = 0 }, newMemSource(4, 1)},
		{"Too few source channels", func(o *Options) {}, newMemSource(3, 1)},
		{"Bipolar channel out of range", func(o *Options) { o.Mapping.RightMinus = 4 }, newMemSource(4, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := bipolarOptions()
			tt.mutate(&opts)
			_, err := NewEngine(&fakeAnalyzer{}, tt.src, &collector{}, opts, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestConfigure(t *testing.T) {
	cfg := config.Default()
	cfg.Session.IndependentEstimation = true
	cfg.Session.PrioritySide = "right"
	cfg.Session.SpectraWeights = []float64{1, 2, 3, 4, 5}
	cfg.Session.NormalizeByCoeffs = true

	an := &fakeAnalyzer{}
	require.NoError(t, Configure(an, &cfg))

	assert.True(t, an.independent)
	assert.Equal(t, records.SideRight, an.side)
	assert.Equal(t, config.DefaultCalibrationLength, an.calibLength)
	assert.Equal(t, config.DefaultSkipWinsAfterArtifact, an.skipWins)
	assert.Equal(t, [5]float64{1, 2, 3, 4, 5}, an.weights)
	assert.False(t, an.normBands)
	assert.True(t, an.normCoeffs)
}

func TestConfigureErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Session.SpectraWeights = []float64{1}
	assert.Error(t, Configure(&fakeAnalyzer{}, &cfg))

	cfg = config.Default()
	fail := errors.New("rejected")
	assert.ErrorIs(t, Configure(&fakeAnalyzer{failSettings: fail}, &cfg), fail)
}

func TestOptionsFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Session.RecordPath = "out.edf"

	opts := OptionsFrom(&cfg)
	assert.Equal(t, config.DefaultBatchSize, opts.BatchSize)
	assert.Equal(t, config.DefaultChannelsNumber, opts.Channels)
	assert.True(t, opts.Bipolar)
	assert.Equal(t, source.Mapping{LeftPlus: 1, LeftMinus: 0, RightPlus: 2, RightMinus: 3}, opts.Mapping)
	assert.True(t, opts.Calibrate)
	assert.Equal(t, "out.edf", opts.RecordPath)
	assert.Equal(t, config.DefaultRecordFullScale, opts.RecordFullScale)
}

func TestRecordWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "copy.wav")
	opts := bipolarOptions()
	opts.RecordPath = path
	opts.RecordFullScale = 4000

	e, err := NewEngine(&fakeAnalyzer{}, newMemSource(4, 30), &collector{}, opts, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))

	src, err := source.OpenWAV(path, opts.RecordFullScale)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 4, src.Channels())
	assert.Equal(t, 10.0, src.SampleRate())

	block := source.NewBlock(4, 40)
	n, err := src.Read(block)
	assert.ErrorIs(t, err, io.EOF)
	require.Equal(t, 30, n)
	for c := 0; c < 4; c++ {
		for i := 0; i < n; i++ {
			assert.InDelta(t, float64(c*1000+i), block[c][i], 1e-3, "channel %d sample %d", c, i)
		}
	}
}

func TestRecordEDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "copy.EDF")
	opts := bipolarOptions()
	opts.RecordPath = path
	opts.RecordFullScale = 4000

	e, err := NewEngine(&fakeAnalyzer{}, newMemSource(4, 25), &collector{}, opts, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))

	src, err := source.OpenEDF(path, 10, 1)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 4, src.Channels())

	block := source.NewBlock(4, 40)
	n, err := src.Read(block)
	assert.ErrorIs(t, err, io.EOF)
	require.Equal(t, 20, n, "two full one-second records, the partial one is dropped")

	step := 2 * opts.RecordFullScale / 65535
	for c := 0; c < 4; c++ {
		for i := 0; i < n; i++ {
			want := min(float64(c*1000+i), opts.RecordFullScale)
			assert.InDelta(t, want, block[c][i], 2*step, "channel %d sample %d", c, i)
		}
	}
}

func TestRecordingLifecycle(t *testing.T) {
	opts := bipolarOptions()
	opts.RecordFullScale = 1
	e, err := NewEngine(&fakeAnalyzer{}, newMemSource(4, 1), &collector{}, opts, zap.NewNop())
	require.NoError(t, err)

	assert.NoError(t, e.StopRecording(), "stopping without a recording is a no-op")

	path := filepath.Join(t.TempDir(), "copy.wav")
	require.NoError(t, e.StartRecording(path))
	assert.Error(t, e.StartRecording(path), "already recording")
	assert.NoError(t, e.StopRecording())

	e.opts.RecordFullScale = 0
	assert.Error(t, e.StartRecording(path))
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, 0, quantize(0, 32767))
	assert.Equal(t, 32767, quantize(1, 32767))
	assert.Equal(t, -32768, quantize(-1, 32767))
	assert.Equal(t, 32767, quantize(5, 32767))
	assert.Equal(t, -32768, quantize(-5, 32767))
	assert.Equal(t, 16384, quantize(0.5, 32767))
}

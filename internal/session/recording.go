// SPDX-License-Identifier: MIT
package session

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OpenPSG/edf"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"
)

// recorder copies the pushed signal to a file.
type recorder interface {
	Write(block [][]float64, n int) error
	Close() error
}

// StartRecording copies every pushed batch to path. The format follows the
// extension: .edf writes EDF, anything else 32-bit WAV.
func (e *Engine) StartRecording(path string) error {
	if e.rec != nil {
		return fmt.Errorf("session: already recording")
	}
	fullScale := e.opts.RecordFullScale
	if fullScale <= 0 {
		return fmt.Errorf("session: record full scale %v must be positive", fullScale)
	}

	var (
		rec recorder
		err error
	)
	rate := int(e.src.SampleRate())
	if strings.EqualFold(filepath.Ext(path), ".edf") {
		rec, err = newEDFRecorder(path, e.opts.Channels, rate, fullScale, e.now())
	} else {
		rec, err = newWAVRecorder(path, e.opts.Channels, rate, fullScale)
	}
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	e.rec = rec
	e.logger.Info("recording started", zap.String("path", path))
	return nil
}

// StopRecording finalises the recording, if any.
func (e *Engine) StopRecording() error {
	if e.rec == nil {
		return nil
	}
	rec := e.rec
	e.rec = nil
	return rec.Close()
}

// wavRecorder stores samples as 32-bit PCM where fullScale maps to the
// largest code. Reading it back with the same value as gain restores the
// physical values.
type wavRecorder struct {
	f         *os.File
	enc       *wav.Encoder
	buf       *audio.IntBuffer
	channels  int
	fullScale float64
}

func newWAVRecorder(path string, channels, rate int, fullScale float64) (*wavRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &wavRecorder{
		f:   f,
		enc: wav.NewEncoder(f, rate, 32, channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
			SourceBitDepth: 32,
		},
		channels:  channels,
		fullScale: fullScale,
	}, nil
}

func (r *wavRecorder) Write(block [][]float64, n int) error {
	need := n * r.channels
	if cap(r.buf.Data) < need {
		r.buf.Data = make([]int, need)
	}
	r.buf.Data = r.buf.Data[:need]

	for i := 0; i < n; i++ {
		for c := 0; c < r.channels; c++ {
			r.buf.Data[i*r.channels+c] = quantize(block[c][i]/r.fullScale, math.MaxInt32)
		}
	}
	return r.enc.Write(r.buf)
}

func (r *wavRecorder) Close() error {
	if err := r.enc.Close(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

// quantize maps v in [-1, 1] onto [-limit-1, limit], clamping outside.
func quantize(v float64, limit int) int {
	x := math.Round(v * float64(limit+1))
	return int(max(min(x, float64(limit)), float64(-limit-1)))
}

// edfRecorder writes one-second EDF records. A trailing partial second is
// dropped on Close because EDF records have a fixed length.
type edfRecorder struct {
	f       *os.File
	w       *edf.Writer
	pending [][]float64
	rate    int
	limit   float64
}

func newEDFRecorder(path string, channels, rate int, fullScale float64, start time.Time) (*edfRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "X X X X",
		RecordingID:        "Startdate " + strings.ToUpper(start.Format("02-Jan-2006")) + " X X signalmath",
		StartTime:          start,
		DataRecordDuration: time.Second,
		SignalCount:        channels,
	}
	for c := 0; c < channels; c++ {
		hdr.Signals = append(hdr.Signals, edf.Signal{
			Label:             fmt.Sprintf("EEG %d", c),
			TransducerType:    "AgAgCl electrode",
			PhysicalDimension: "uV",
			PhysicalMin:       -fullScale,
			PhysicalMax:       fullScale,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  rate,
		})
	}

	w, err := edf.Create(f, hdr)
	if err != nil {
		f.Close()
		return nil, err
	}

	pending := make([][]float64, channels)
	for c := range pending {
		pending[c] = make([]float64, 0, rate)
	}
	return &edfRecorder{f: f, w: w, pending: pending, rate: rate, limit: fullScale}, nil
}

func (r *edfRecorder) Write(block [][]float64, n int) error {
	for i := 0; i < n; {
		take := min(n-i, r.rate-len(r.pending[0]))
		for c := range r.pending {
			for _, v := range block[c][i : i+take] {
				r.pending[c] = append(r.pending[c], max(min(v, r.limit), -r.limit))
			}
		}
		i += take

		if len(r.pending[0]) == r.rate {
			if err := r.w.WriteRecord(r.pending); err != nil {
				return err
			}
			for c := range r.pending {
				r.pending[c] = r.pending[c][:0]
			}
		}
	}
	return nil
}

func (r *edfRecorder) Close() error {
	if err := r.w.Close(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

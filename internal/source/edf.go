// SPDX-License-Identifier: MIT
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/OpenPSG/edf"
	"gonum.org/v1/gonum/floats"
)

// EDF reads every signal of an EDF/EDF+ recording. The reader does not
// expose the header, so the sample rate comes from configuration and all
// signals are expected to share it.
type EDF struct {
	f       *os.File
	signals []*edf.SignalReader
	rate    float64
	gain    float64
}

// OpenEDF opens the recording at path.
func OpenEDF(path string, sampleRate, gain float64) (*EDF, error) {
	if path == "" {
		return nil, errors.New("source: edf input needs a path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	r, err := edf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source: reading %s: %w", path, err)
	}

	// Signal fails past the last index.
	var signals []*edf.SignalReader
	for i := 0; ; i++ {
		sr, err := r.Signal(i)
		if err != nil {
			break
		}
		signals = append(signals, sr)
	}
	if len(signals) == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoChannels, path)
	}

	return &EDF{f: f, signals: signals, rate: sampleRate, gain: gain}, nil
}

func (s *EDF) Channels() int       { return len(s.signals) }
func (s *EDF) SampleRate() float64 { return s.rate }

func (s *EDF) Read(block [][]float64) (int, error) {
	frames, err := checkBlock(block, len(s.signals))
	if err != nil {
		return 0, err
	}

	n := frames
	eof := false
	for c, sr := range s.signals {
		got, err := sr.Read(block[c][:frames])
		switch {
		case errors.Is(err, io.EOF):
			eof = true
		case err != nil:
			return 0, fmt.Errorf("source: edf signal %d: %w", c, err)
		}
		n = min(n, got)
	}

	if s.gain != 1 {
		for c := range s.signals {
			floats.Scale(s.gain, block[c][:n])
		}
	}
	if eof {
		return n, io.EOF
	}
	return n, nil
}

func (s *EDF) Close() error {
	return s.f.Close()
}

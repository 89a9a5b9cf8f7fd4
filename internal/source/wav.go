// SPDX-License-Identifier: MIT
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV reads integer PCM recordings. Samples are normalised by the bit depth
// to [-1, 1) and multiplied by the gain, which is the physical full scale.
type WAV struct {
	f        *os.File
	dec      *wav.Decoder
	buf      *audio.IntBuffer
	channels int
	rate     float64
	scale    float64
}

// OpenWAV opens the recording at path.
func OpenWAV(path string, gain float64) (*WAV, error) {
	if path == "" {
		return nil, errors.New("source: wav input needs a path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("source: %s is not a valid WAV file", path)
	}
	if dec.NumChans == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoChannels, path)
	}
	if dec.BitDepth == 0 || dec.BitDepth > 32 {
		f.Close()
		return nil, fmt.Errorf("source: %s has unsupported bit depth %d", path, dec.BitDepth)
	}

	return &WAV{
		f:        f,
		dec:      dec,
		buf:      &audio.IntBuffer{Format: dec.Format()},
		channels: int(dec.NumChans),
		rate:     float64(dec.SampleRate),
		scale:    gain / float64(uint64(1)<<(dec.BitDepth-1)),
	}, nil
}

func (s *WAV) Channels() int       { return s.channels }
func (s *WAV) SampleRate() float64 { return s.rate }

func (s *WAV) Read(block [][]float64) (int, error) {
	frames, err := checkBlock(block, s.channels)
	if err != nil {
		return 0, err
	}

	need := frames * s.channels
	if cap(s.buf.Data) < need {
		s.buf.Data = make([]int, need)
	}
	s.buf.Data = s.buf.Data[:need]

	got, err := s.dec.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("source: decoding wav: %w", err)
	}

	n := got / s.channels
	for i := 0; i < n; i++ {
		frame := s.buf.Data[i*s.channels : (i+1)*s.channels]
		for c, v := range frame {
			block[c][i] = float64(v) * s.scale
		}
	}

	if n < frames || errors.Is(err, io.EOF) {
		return n, io.EOF
	}
	return n, nil
}

func (s *WAV) Close() error {
	return s.f.Close()
}

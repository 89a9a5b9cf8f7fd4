// SPDX-License-Identifier: MIT
/*
Package source reads multichannel EEG samples from recordings and live
devices.

Every source fills channel-major blocks: block[c][i] is sample i of channel
c. A block is allocated once with NewBlock and reused for every Read.
*/
package source

import (
	"errors"
	"fmt"
	"strings"

	"signalmath/internal/config"
)

var (
	// ErrNoChannels is returned when an input carries no signals.
	ErrNoChannels = errors.New("source: input has no channels")
	// ErrShortBlock is returned by Read when the block has fewer rows than
	// the source has channels.
	ErrShortBlock = errors.New("source: block has fewer rows than channels")
)

// Source delivers samples in channel-major blocks.
type Source interface {
	Channels() int
	SampleRate() float64
	// Read fills block[c][:n] for every channel and returns n. Once the
	// input is exhausted it returns io.EOF, possibly together with a final
	// partial block.
	Read(block [][]float64) (int, error)
	Close() error
}

// NewBlock allocates a channel-major block backed by one slice.
func NewBlock(channels, frames int) [][]float64 {
	backing := make([]float64, channels*frames)
	block := make([][]float64, channels)
	for c := range block {
		block[c] = backing[c*frames : (c+1)*frames : (c+1)*frames]
	}
	return block
}

// Open creates the source selected by cfg.Input.
func Open(cfg *config.Config) (Source, error) {
	in := cfg.Input
	switch strings.ToLower(in.Kind) {
	case config.InputEDF:
		return OpenEDF(in.Path, float64(cfg.MathLib.SamplingRate), in.Gain)
	case config.InputWAV:
		return OpenWAV(in.Path, in.Gain)
	case config.InputDevice:
		return OpenDevice(DeviceOptions{
			DeviceID:        in.Device,
			Channels:        cfg.MathLib.ChannelsNumber,
			SampleRate:      float64(cfg.MathLib.SamplingRate),
			FramesPerBuffer: in.FramesPerBuffer,
			Gain:            in.Gain,
		})
	default:
		return nil, fmt.Errorf("source: unknown input kind %q", in.Kind)
	}
}

func checkBlock(block [][]float64, channels int) (int, error) {
	if len(block) < channels {
		return 0, ErrShortBlock
	}
	frames := len(block[0])
	for c := 1; c < channels; c++ {
		frames = min(frames, len(block[c]))
	}
	return frames, nil
}

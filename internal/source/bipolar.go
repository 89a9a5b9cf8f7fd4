// SPDX-License-Identifier: MIT
package source

import (
	"gonum.org/v1/gonum/floats"

	"signalmath/internal/records"
)

// Mapping names the electrodes each bipolar lead is derived from.
type Mapping struct {
	LeftPlus, LeftMinus   int
	RightPlus, RightMinus int
}

// Bipolar derives left and right bipolar leads from referential channels.
// The scratch buffers grow to the largest block seen.
type Bipolar struct {
	Mapping
	left, right []float64
}

// NewBipolar returns a deriver for m.
func NewBipolar(m Mapping) *Bipolar {
	return &Bipolar{Mapping: m}
}

// Derive computes plus - minus for both leads over the first n samples of
// block and writes them into dst, which is resized to n.
func (b *Bipolar) Derive(block [][]float64, n int, dst []records.RawChannels) []records.RawChannels {
	if cap(b.left) < n {
		b.left = make([]float64, n)
		b.right = make([]float64, n)
	}
	left := floats.SubTo(b.left[:n], block[b.LeftPlus][:n], block[b.LeftMinus][:n])
	right := floats.SubTo(b.right[:n], block[b.RightPlus][:n], block[b.RightMinus][:n])

	if cap(dst) < n {
		dst = make([]records.RawChannels, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = records.RawChannels{LeftBipolar: left[i], RightBipolar: right[i]}
	}
	return dst
}

// Frames transposes the first n samples of a channel-major block into one
// record per sample instant. Channel slices already present in dst are
// reused.
func Frames(block [][]float64, n int, dst []records.RawChannelsArray) []records.RawChannelsArray {
	if cap(dst) < n {
		grown := make([]records.RawChannelsArray, n)
		copy(grown, dst[:cap(dst)])
		dst = grown
	}
	dst = dst[:n]
	for i := range dst {
		ch := dst[i].Channels
		if cap(ch) < len(block) {
			ch = make([]float64, len(block))
		}
		ch = ch[:len(block)]
		for c := range block {
			ch[c] = block[c][i]
		}
		dst[i].Channels = ch
	}
	return dst
}

// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"io"
	"time"

	"github.com/gordonklaus/portaudio"

	"signalmath/internal/config"
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any device operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// DeviceInfo describes a capture device.
type DeviceInfo struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	LowLatency        time.Duration
	HighLatency       time.Duration
}

// ListDevices returns every device that can capture. PortAudio must be
// initialised.
func ListDevices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var out []DeviceInfo
	for i, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		out = append(out, DeviceInfo{
			ID:                i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			LowLatency:        d.DefaultLowInputLatency,
			HighLatency:       d.DefaultHighInputLatency,
		})
	}
	return out, nil
}

// inputDevice retrieves the input device for the given device ID.
// If deviceID is MinDeviceID (-1), returns the system default input device.
func inputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == config.MinDeviceID {
		return portaudio.DefaultInputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	return devices[deviceID], nil
}

// DeviceOptions configures a live capture.
type DeviceOptions struct {
	DeviceID        int
	Channels        int
	SampleRate      float64
	FramesPerBuffer int
	Gain            float64
}

// Device captures from an amplifier exposed as an audio interface. It uses
// a blocking float32 stream; samples are de-interleaved and scaled by the
// gain.
type Device struct {
	opts   DeviceOptions
	stream *portaudio.Stream
	buf    []float32 // interleaved, FramesPerBuffer * Channels
	pos    int       // next unread frame in buf
	filled int       // frames in buf
}

// OpenDevice opens and starts the capture stream.
func OpenDevice(opts DeviceOptions) (*Device, error) {
	if opts.Channels <= 0 {
		return nil, ErrNoChannels
	}
	if opts.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("source: frames per buffer must be positive, got %d", opts.FramesPerBuffer)
	}
	info, err := inputDevice(opts.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if info.MaxInputChannels < opts.Channels {
		return nil, fmt.Errorf("source: device %q has %d input channels, need %d",
			info.Name, info.MaxInputChannels, opts.Channels)
	}

	d := &Device{
		opts: opts,
		buf:  make([]float32, opts.FramesPerBuffer*opts.Channels),
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: opts.Channels,
			Device:   info,
			Latency:  info.DefaultHighInputLatency,
		},
		FramesPerBuffer: opts.FramesPerBuffer,
		SampleRate:      opts.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, d.buf)
	if err != nil {
		return nil, fmt.Errorf("source: opening stream on %q: %w", info.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("source: starting stream on %q: %w", info.Name, err)
	}
	d.stream = stream
	return d, nil
}

func (d *Device) Channels() int       { return d.opts.Channels }
func (d *Device) SampleRate() float64 { return d.opts.SampleRate }

// Read blocks until the block is full.
func (d *Device) Read(block [][]float64) (int, error) {
	frames, err := checkBlock(block, d.opts.Channels)
	if err != nil {
		return 0, err
	}
	if d.stream == nil {
		return 0, io.EOF
	}

	n := 0
	for n < frames {
		if d.pos == d.filled {
			if err := d.stream.Read(); err != nil {
				return n, fmt.Errorf("source: reading stream: %w", err)
			}
			d.pos, d.filled = 0, d.opts.FramesPerBuffer
		}
		take := min(frames-n, d.filled-d.pos)
		deinterleave(block, n, d.buf[d.pos*d.opts.Channels:(d.pos+take)*d.opts.Channels], d.opts.Channels, d.opts.Gain)
		d.pos += take
		n += take
	}
	return n, nil
}

// deinterleave copies interleaved frames into block starting at frame off.
func deinterleave(block [][]float64, off int, in []float32, channels int, gain float64) {
	for i := 0; i < len(in)/channels; i++ {
		for c := 0; c < channels; c++ {
			block[c][off+i] = float64(in[i*channels+c]) * gain
		}
	}
}

func (d *Device) Close() error {
	if d.stream == nil {
		return nil
	}
	stream := d.stream
	d.stream = nil
	if err := stream.Stop(); err != nil {
		stream.Close()
		return err
	}
	return stream.Close()
}

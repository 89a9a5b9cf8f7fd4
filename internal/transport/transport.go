// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"time"

	"signalmath/internal/records"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport: closed")

// Transport defines a generic interface for publishing session results.
// Implementations should be thread-safe.
type Transport interface {
	Send(r Result) error
	Close() error
}

// Result is what a session publishes after each processed batch.
type Result struct {
	Time                time.Time                      `json:"time"`
	Samples             int                            `json:"samples"` // Samples pushed so far.
	Calibrating         bool                           `json:"calibrating"`
	CalibrationPercents int                            `json:"calibration_percents"`
	Artifacted          bool                           `json:"artifacted"`
	BothSidesArtifacted bool                           `json:"both_sides_artifacted"`
	Mental              []records.MindData             `json:"mental,omitempty"`
	Average             *records.MindData              `json:"average,omitempty"`
	Spectral            []records.SpectralDataPercents `json:"spectral,omitempty"`
	RawSpectral         *records.RawSpectVals          `json:"raw_spectral,omitempty"`
}

// Multi fans a result out to several transports. Send and Close visit every
// transport and join their errors.
type Multi []Transport

func (m Multi) Send(r Result) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Multi(nil)

// SPDX-License-Identifier: MIT
package transport

import (
	"go.uber.org/zap"
)

// LoggingTransport implements the Transport interface by logging results.
type LoggingTransport struct {
	logger *zap.Logger
}

// NewLoggingTransport creates a new LoggingTransport writing to logger.
func NewLoggingTransport(logger *zap.Logger) *LoggingTransport {
	logger = logger.Named("results")
	logger.Debug("transport: using LoggingTransport")
	return &LoggingTransport{logger: logger}
}

// Send logs the result at info level. Logging never fails to "send".
func (lt *LoggingTransport) Send(r Result) error {
	fields := []zap.Field{
		zap.Int("samples", r.Samples),
		zap.Bool("artifacted", r.Artifacted),
		zap.Bool("both_sides_artifacted", r.BothSidesArtifacted),
	}
	if r.Calibrating {
		lt.logger.Info("calibrating", append(fields, zap.Int("percents", r.CalibrationPercents))...)
		return nil
	}
	if n := len(r.Mental); n > 0 {
		last := r.Mental[n-1]
		fields = append(fields,
			zap.Float64("rel_attention", last.RelAttention),
			zap.Float64("rel_relaxation", last.RelRelaxation),
			zap.Float64("inst_attention", last.InstAttention),
			zap.Float64("inst_relaxation", last.InstRelaxation))
	}
	if n := len(r.Spectral); n > 0 {
		last := r.Spectral[n-1]
		fields = append(fields,
			zap.Float64s("bands", []float64{last.Delta, last.Theta, last.Alpha, last.Beta, last.Gamma}))
	}
	lt.logger.Info("result", fields...)
	return nil
}

// Close flushes the logger.
func (lt *LoggingTransport) Close() error {
	_ = lt.logger.Sync()
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)

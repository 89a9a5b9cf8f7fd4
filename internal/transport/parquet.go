// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"
)

// ResultRow is the columnar form of a Result. Mental and band columns hold
// the last window of the batch; the Has flags tell whether one existed.
type ResultRow struct {
	TimeUnixNano        int64   `parquet:"time_unix_nano"`
	Samples             int64   `parquet:"samples"`
	Calibrating         bool    `parquet:"calibrating"`
	CalibrationPercents int32   `parquet:"calibration_percents"`
	Artifacted          bool    `parquet:"artifacted"`
	BothSidesArtifacted bool    `parquet:"both_sides_artifacted"`
	HasMental           bool    `parquet:"has_mental"`
	RelAttention        float64 `parquet:"rel_attention"`
	RelRelaxation       float64 `parquet:"rel_relaxation"`
	InstAttention       float64 `parquet:"inst_attention"`
	InstRelaxation      float64 `parquet:"inst_relaxation"`
	AvgAttention        float64 `parquet:"avg_attention"`
	AvgRelaxation       float64 `parquet:"avg_relaxation"`
	HasSpectral         bool    `parquet:"has_spectral"`
	Delta               float64 `parquet:"delta"`
	Theta               float64 `parquet:"theta"`
	Alpha               float64 `parquet:"alpha"`
	Beta                float64 `parquet:"beta"`
	Gamma               float64 `parquet:"gamma"`
	RawAlpha            float64 `parquet:"raw_alpha"`
	RawBeta             float64 `parquet:"raw_beta"`
}

// NewResultRow flattens r. Missing values are NaN.
func NewResultRow(r Result) ResultRow {
	nan := math.NaN()
	row := ResultRow{
		TimeUnixNano:        r.Time.UnixNano(),
		Samples:             int64(r.Samples),
		Calibrating:         r.Calibrating,
		CalibrationPercents: int32(r.CalibrationPercents),
		Artifacted:          r.Artifacted,
		BothSidesArtifacted: r.BothSidesArtifacted,
		RelAttention:        nan, RelRelaxation: nan, InstAttention: nan, InstRelaxation: nan,
		AvgAttention: nan, AvgRelaxation: nan,
		Delta: nan, Theta: nan, Alpha: nan, Beta: nan, Gamma: nan,
		RawAlpha: nan, RawBeta: nan,
	}
	if n := len(r.Mental); n > 0 {
		m := r.Mental[n-1]
		row.HasMental = true
		row.RelAttention, row.RelRelaxation = m.RelAttention, m.RelRelaxation
		row.InstAttention, row.InstRelaxation = m.InstAttention, m.InstRelaxation
	}
	if r.Average != nil {
		row.AvgAttention, row.AvgRelaxation = r.Average.RelAttention, r.Average.RelRelaxation
	}
	if n := len(r.Spectral); n > 0 {
		s := r.Spectral[n-1]
		row.HasSpectral = true
		row.Delta, row.Theta, row.Alpha, row.Beta, row.Gamma = s.Delta, s.Theta, s.Alpha, s.Beta, s.Gamma
	}
	if r.RawSpectral != nil {
		row.RawAlpha, row.RawBeta = r.RawSpectral.Alpha, r.RawSpectral.Beta
	}
	return row
}

// parquetRowGroup is how many rows are buffered before a row group is
// flushed to disk.
const parquetRowGroup = 1024

// ParquetTransport implements the Transport interface by archiving every
// result as a row of a Parquet file. The file is valid only after Close.
type ParquetTransport struct {
	logger *zap.Logger

	mu      sync.Mutex
	f       *os.File
	w       *parquet.GenericWriter[ResultRow]
	pending int
	rows    int
	closed  bool
}

// ParquetCompression maps a codec name to a writer option. Unknown and
// empty names select snappy.
func ParquetCompression(name string) parquet.WriterOption {
	switch strings.ToLower(name) {
	case "zstd":
		return parquet.Compression(&parquet.Zstd)
	case "gzip", "gz":
		return parquet.Compression(&parquet.Gzip)
	case "none", "uncompressed":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// NewParquetTransport creates path and writes results to it.
func NewParquetTransport(path, compression string, logger *zap.Logger) (*ParquetTransport, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("transport: creating parquet file: %w", err)
	}

	logger = logger.Named("parquet")
	logger.Info("archiving results", zap.String("path", path), zap.String("compression", compression))
	return &ParquetTransport{
		logger: logger,
		f:      f,
		w:      parquet.NewGenericWriter[ResultRow](f, ParquetCompression(compression)),
	}, nil
}

// Send appends r as one row.
func (t *ParquetTransport) Send(r Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if _, err := t.w.Write([]ResultRow{NewResultRow(r)}); err != nil {
		return fmt.Errorf("transport: writing parquet row: %w", err)
	}
	t.rows++
	t.pending++
	if t.pending >= parquetRowGroup {
		if err := t.w.Flush(); err != nil {
			return fmt.Errorf("transport: flushing parquet row group: %w", err)
		}
		t.pending = 0
	}
	return nil
}

// Close writes the footer and closes the file.
func (t *ParquetTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.w.Close(); err != nil {
		t.f.Close()
		return fmt.Errorf("transport: closing parquet writer: %w", err)
	}
	t.logger.Debug("closed", zap.Int("rows", t.rows))
	return t.f.Close()
}

// Ensure ParquetTransport satisfies the interface at compile time.
var _ Transport = (*ParquetTransport)(nil)

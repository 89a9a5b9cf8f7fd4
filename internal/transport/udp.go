// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"sync"

	"go.uber.org/zap"
)

/*
UDP packet (BigEndian), one per result:

|<- 4 ->|<--- 8 --->|<- 4 ->|<1>|<1>|<---- 4 * 4 ---->|<---- 5 * 4 ---->|
+-------+-----------+-------+---+---+-----------------+-----------------+
|  Seq  | Timestamp |Samples|Flg|Pct|  Mental window  |  Band percents  |
|uint32 |   int64   |uint32 |u8 |u8 |  (4 x float32)  |  (5 x float32)  |
+-------+-----------+-------+---+---+-----------------+-----------------+

Flags: bit 0 calibrating, bit 1 artifacted, bit 2 both sides artifacted.
Mental holds rel_attention, rel_relaxation, inst_attention and
inst_relaxation of the last window; bands hold delta to gamma. Values the
result does not carry are NaN.
*/

// PacketSize is the length of every UDP packet.
const PacketSize = 54

// Packet flags.
const (
	FlagCalibrating uint8 = 1 << iota
	FlagArtifacted
	FlagBothSidesArtifacted
)

// Packet is the wire form of a result.
type Packet struct {
	Seq      uint32
	Time     int64 // Unix nanoseconds.
	Samples  uint32
	Flags    uint8
	Percents uint8
	Mental   [4]float32
	Bands    [5]float32
}

// NewPacket flattens r into its wire form.
func NewPacket(seq uint32, r Result) Packet {
	p := Packet{
		Seq:      seq,
		Time:     r.Time.UnixNano(),
		Samples:  uint32(r.Samples),
		Percents: uint8(min(max(r.CalibrationPercents, 0), 100)),
	}
	if r.Calibrating {
		p.Flags |= FlagCalibrating
	}
	if r.Artifacted {
		p.Flags |= FlagArtifacted
	}
	if r.BothSidesArtifacted {
		p.Flags |= FlagBothSidesArtifacted
	}

	nan := float32(math.NaN())
	p.Mental = [4]float32{nan, nan, nan, nan}
	p.Bands = [5]float32{nan, nan, nan, nan, nan}
	if n := len(r.Mental); n > 0 {
		m := r.Mental[n-1]
		p.Mental = [4]float32{float32(m.RelAttention), float32(m.RelRelaxation), float32(m.InstAttention), float32(m.InstRelaxation)}
	}
	if n := len(r.Spectral); n > 0 {
		s := r.Spectral[n-1]
		p.Bands = [5]float32{float32(s.Delta), float32(s.Theta), float32(s.Alpha), float32(s.Beta), float32(s.Gamma)}
	}
	return p
}

// UDPTransport implements the Transport interface by sending one datagram
// per result to a fixed peer.
type UDPTransport struct {
	logger *zap.Logger

	mu     sync.Mutex // Protects conn, seq and buf.
	conn   *net.UDPConn
	seq    uint32
	buf    []byte
	closed bool
}

// NewUDPTransport dials the peer at addr ("host:port").
func NewUDPTransport(addr string, logger *zap.Logger) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolving udp target %q: %w", addr, err)
	}

	// Sending only, so the local address is left to the kernel.
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dialing udp target %q: %w", addr, err)
	}

	logger = logger.Named("udp")
	logger.Info("sending results", zap.Stringer("target", conn.RemoteAddr()))
	return &UDPTransport{
		logger: logger,
		conn:   conn,
		buf:    make([]byte, 0, PacketSize),
	}, nil
}

// Send packs r and writes it as one datagram.
func (t *UDPTransport) Send(r Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	t.seq++
	p := NewPacket(t.seq, r)
	buf, err := binary.Append(t.buf[:0], binary.BigEndian, &p)
	if err != nil {
		return fmt.Errorf("transport: packing udp packet: %w", err)
	}
	t.buf = buf

	if _, err := t.conn.Write(buf); err != nil {
		return fmt.Errorf("transport: sending udp packet %d: %w", t.seq, err)
	}
	t.logger.Debug("sent packet", zap.Uint32("seq", t.seq), zap.Int("bytes", len(buf)))
	return nil
}

// Close closes the connection. Further sends return ErrClosed.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.conn.Close(); err != nil {
		return fmt.Errorf("transport: closing udp connection: %w", err)
	}
	return nil
}

// Ensure UDPTransport satisfies the interface at compile time.
var _ Transport = (*UDPTransport)(nil)

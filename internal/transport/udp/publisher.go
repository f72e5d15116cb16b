// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"spexia/internal/dsp"
	applog "spexia/internal/log"
	"spexia/internal/transport"
)

// HeaderSize is the fixed part of every packet.
const HeaderSize = 4 + 8 + 1 + 2

// MaxPayload is the largest UDP payload an IPv4 datagram can carry.
const MaxPayload = 65507

// MaxBins is the largest bin count whose packet fits in MaxPayload.
const MaxBins = (MaxPayload - HeaderSize) / (dsp.Channels * 2 * 4)

// PacketSize returns the size in bytes of a packet carrying bins bins per
// channel.
func PacketSize(bins int) int {
	return HeaderSize + dsp.Channels*2*bins*4
}

// UDPPublisher packs frame summaries into a binary format and sends them over
// UDP, one packet per frame.
type UDPPublisher struct {
	sender *UDPSender
	bins   int
	now    func() time.Time

	sequenceNum  uint32        // Wraps; receivers compare modulo 2^32.
	packetBuffer *bytes.Buffer // Reused for every packet.
	failures     uint64
}

// NewUDPPublisher creates a publisher that sends bins bins per channel.
func NewUDPPublisher(sender *UDPSender, bins int) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if bins <= 0 || bins > MaxBins {
		return nil, fmt.Errorf("UDPPublisher: bins must be in [1, %d], got %d", MaxBins, bins)
	}
	applog.Infof("UDPPublisher: Initializing (Bins: %d)", bins)

	return &UDPPublisher{
		sender:       sender,
		bins:         bins,
		now:          time.Now,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

/*
UDP Packet Structure (BigEndian)

+----------------------------------------------------------------------------------+
| Field          | Data Type | Size (Bytes) | Description                           |
|----------------|-----------|--------------|---------------------------------------|
| Sequence       | uint32    | 4            | Incremented per packet                |
| Timestamp      | int64     | 8            | Nanoseconds since epoch               |
| Channel Count  | uint8     | 1            | C, always 2                           |
| Bin Count      | uint16    | 2            | N                                     |
| Channel data   | float32   | C * 2N * 4   | Per channel: N log10 magnitudes, then |
|                |           |              | N phase derivatives                   |
+----------------------------------------------------------------------------------+
*/

// Publish summarizes frame and sends it as one packet. Send failures are
// returned but do not stop the publisher.
func (p *UDPPublisher) Publish(frame dsp.Frame) error {
	p.sequenceNum++
	s := transport.Summarize(frame, p.bins, p.now())

	p.packetBuffer.Reset()
	if err := writePacket(p.packetBuffer, p.sequenceNum, s); err != nil {
		return fmt.Errorf("UDPPublisher: failed to pack frame %d: %w", frame.Seq, err)
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		p.failures++
		if p.failures == 1 || p.failures%100 == 0 {
			applog.Warnf("UDPPublisher: %d packets failed, last: %v", p.failures, err)
		}
		return err
	}
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	return nil
}

// writePacket writes the packet for s to w.
func writePacket(w io.Writer, seq uint32, s transport.Summary) error {
	bins := 0
	if len(s.Channels) > 0 {
		bins = len(s.Channels[0].Magnitudes)
	}
	header := struct {
		Seq       uint32
		Timestamp int64
		Channels  uint8
		Bins      uint16
	}{seq, s.Timestamp, uint8(len(s.Channels)), uint16(bins)}

	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	for _, ch := range s.Channels {
		if err := binary.Write(w, binary.BigEndian, ch.Magnitudes); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, ch.Phase); err != nil {
			return err
		}
	}
	return nil
}

// Packet is a decoded UDP packet.
type Packet struct {
	Seq        uint32
	Timestamp  int64
	Magnitudes [][]float32
	Phase      [][]float32
}

// DecodePacket parses a packet produced by UDPPublisher.
func DecodePacket(data []byte) (Packet, error) {
	var pkt Packet
	if len(data) < HeaderSize {
		return pkt, fmt.Errorf("packet too short: %d bytes", len(data))
	}
	r := bytes.NewReader(data)
	var channels uint8
	var bins uint16
	for _, v := range []any{&pkt.Seq, &pkt.Timestamp, &channels, &bins} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return pkt, err
		}
	}

	if want := HeaderSize + int(channels)*2*int(bins)*4; len(data) != want {
		return pkt, fmt.Errorf("packet is %d bytes, header implies %d", len(data), want)
	}
	pkt.Magnitudes = make([][]float32, channels)
	pkt.Phase = make([][]float32, channels)
	for ch := range int(channels) {
		pkt.Magnitudes[ch] = make([]float32, bins)
		pkt.Phase[ch] = make([]float32, bins)
		if err := binary.Read(r, binary.BigEndian, pkt.Magnitudes[ch]); err != nil {
			return pkt, err
		}
		if err := binary.Read(r, binary.BigEndian, pkt.Phase[ch]); err != nil {
			return pkt, err
		}
	}
	return pkt, nil
}

// Close closes the underlying sender.
func (p *UDPPublisher) Close() error {
	applog.Debugf("UDPPublisher: Close called after %d packets", p.sequenceNum)
	return p.sender.Close()
}

// Ensure UDPPublisher satisfies the Publisher interface at compile time.
var _ transport.Publisher = (*UDPPublisher)(nil)

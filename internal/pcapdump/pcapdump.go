// Package pcapdump writes the packets exchanged by the two endpoints to a pcap
// file, so that a run can be inspected with the usual tools. Each packet is
// wrapped in a synthetic IPv4/UDP header: A is 10.0.0.1:5001 and B is
// 10.0.0.2:5002.
package pcapdump

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/ooni/minisr/internal/model"
)

const (
	// SNAPLEN is the snapshot length we declare in the file header.
	SNAPLEN = 65535

	// PORT_A is the synthetic UDP port of endpoint A.
	PORT_A = 5001

	// PORT_B is the synthetic UDP port of endpoint B.
	PORT_B = 5002
)

var (
	addrA = net.IPv4(10, 0, 0, 1)
	addrB = net.IPv4(10, 0, 0, 2)
)

// ErrCapture is returned when we cannot serialize or write a packet.
var ErrCapture = errors.New("pcapdump: capture failed")

// Writer writes packets to a pcap stream. It is safe to use from multiple goroutines.
type Writer struct {
	mu sync.Mutex
	w  *pcapgo.Writer
}

// NewWriter writes the pcap file header to w and returns a [Writer].
func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(SNAPLEN, layers.LinkTypeRaw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCapture, err)
	}
	return &Writer{w: pw}, nil
}

// WritePacket records packet as sent by from at time t.
func (pw *Writer) WritePacket(t time.Time, from model.Endpoint, packet *model.Packet) error {
	data, err := Encapsulate(from, packet)
	if err != nil {
		return err
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     t,
		CaptureLength: len(data),
		Length:        len(data),
	}
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if err := pw.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("%w: %s", ErrCapture, err)
	}
	return nil
}

// Encapsulate serializes packet inside an IPv4/UDP datagram going from the
// given endpoint to its peer.
func Encapsulate(from model.Endpoint, packet *model.Packet) ([]byte, error) {
	src, dst := addrA, addrB
	sport, dport := layers.UDPPort(PORT_A), layers.UDPPort(PORT_B)
	if from == model.EndpointB {
		src, dst = dst, src
		sport, dport = dport, sport
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    src,
		DstIP:    dst,
	}
	udp := &layers.UDP{
		SrcPort: sport,
		DstPort: dport,
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCapture, err)
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buf, opts, ip, udp, gopacket.Payload(packet.Bytes())); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCapture, err)
	}
	return buf.Bytes(), nil
}

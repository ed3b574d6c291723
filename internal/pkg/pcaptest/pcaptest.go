// Package pcaptest builds synthetic packets and capture files for tests.
package pcaptest

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Frame describes one synthetic packet.
type Frame struct {
	Time     time.Time
	SrcIP    string
	DstIP    string
	SrcPort  uint16
	DstPort  uint16
	Protocol layers.IPProtocol // TCP, UDP or ICMPv4
	Payload  int
}

// Serialize encodes the frame as an Ethernet/IPv4 packet.
func Serialize(t testing.TB, f Frame) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		SrcIP:    net.ParseIP(f.SrcIP).To4(),
		DstIP:    net.ParseIP(f.DstIP).To4(),
		Version:  4,
		TTL:      64,
		Protocol: f.Protocol,
	}

	var transport gopacket.SerializableLayer
	switch f.Protocol {
	case layers.IPProtocolTCP:
		tcp := &layers.TCP{SrcPort: layers.TCPPort(f.SrcPort), DstPort: layers.TCPPort(f.DstPort), SYN: true, Window: 14600}
		tcp.SetNetworkLayerForChecksum(ip)
		transport = tcp
	case layers.IPProtocolUDP:
		udp := &layers.UDP{SrcPort: layers.UDPPort(f.SrcPort), DstPort: layers.UDPPort(f.DstPort)}
		udp.SetNetworkLayerForChecksum(ip)
		transport = udp
	default:
		transport = &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, transport, gopacket.Payload(make([]byte, f.Payload))); err != nil {
		t.Fatalf("Failed to serialize layers: %v", err)
	}
	return buf.Bytes()
}

// Packet returns the frame decoded as a gopacket.Packet with its capture timestamp set.
func Packet(t testing.TB, f Frame) gopacket.Packet {
	t.Helper()
	data := Serialize(t, f)
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	packet.Metadata().CaptureInfo = gopacket.CaptureInfo{
		Timestamp:     f.Time,
		CaptureLength: len(data),
		Length:        len(data),
	}
	return packet
}

// WriteFile writes the frames to a pcap file at path.
func WriteFile(t testing.TB, path string, frames []Frame) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create pcap file: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("Failed to write pcap header: %v", err)
	}
	for _, fr := range frames {
		data := Serialize(t, fr)
		ci := gopacket.CaptureInfo{Timestamp: fr.Time, CaptureLength: len(data), Length: len(data)}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("Failed to write packet: %v", err)
		}
	}
}

package protocol

import (
	"NetSentinel/internal/model"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ParsePacket extracts a packet observation from a decoded packet.
// IPv4 and IPv6 are supported; transports without ports (ICMP, GRE, ...)
// are kept with both ports set to 0.
func ParsePacket(packet gopacket.Packet) (*model.PacketObservation, error) {
	obs := &model.PacketObservation{
		Timestamp: toSeconds(time.Now()),
		Length:    len(packet.Data()),
	}

	if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		obs.Timestamp = toSeconds(meta.Timestamp)
	}

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		obs.SrcIP = ip.SrcIP.String()
		obs.DstIP = ip.DstIP.String()
		obs.Protocol = uint8(ip.Protocol)
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		obs.SrcIP = ip.SrcIP.String()
		obs.DstIP = ip.DstIP.String()
		obs.Protocol = uint8(ip.NextHeader)
	} else {
		return nil, fmt.Errorf("not an IP packet")
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		obs.SrcPort = uint16(tcp.SrcPort)
		obs.DstPort = uint16(tcp.DstPort)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		obs.SrcPort = uint16(udp.SrcPort)
		obs.DstPort = uint16(udp.DstPort)
	}

	return obs, nil
}

func toSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

package protocol

import (
	"testing"
	"time"

	"NetSentinel/internal/pkg/pcaptest"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePacket_TCP(t *testing.T) {
	ts := time.Unix(1700000000, 500_000_000)
	packet := pcaptest.Packet(t, pcaptest.Frame{
		Time: ts, SrcIP: "10.0.0.1", DstIP: "10.0.0.2",
		SrcPort: 1234, DstPort: 80, Protocol: layers.IPProtocolTCP, Payload: 46,
	})

	obs, err := ParsePacket(packet)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", obs.SrcIP)
	assert.Equal(t, "10.0.0.2", obs.DstIP)
	assert.EqualValues(t, 1234, obs.SrcPort)
	assert.EqualValues(t, 80, obs.DstPort)
	assert.EqualValues(t, 6, obs.Protocol)
	assert.Equal(t, len(packet.Data()), obs.Length)
	assert.InDelta(t, 1700000000.5, obs.Timestamp, 1e-6)
}

func TestParsePacket_UDP(t *testing.T) {
	packet := pcaptest.Packet(t, pcaptest.Frame{
		Time: time.Now(), SrcIP: "192.168.0.1", DstIP: "8.8.8.8",
		SrcPort: 53000, DstPort: 53, Protocol: layers.IPProtocolUDP, Payload: 20,
	})

	obs, err := ParsePacket(packet)
	require.NoError(t, err)
	assert.EqualValues(t, 53000, obs.SrcPort)
	assert.EqualValues(t, 53, obs.DstPort)
	assert.EqualValues(t, 17, obs.Protocol)
}

func TestParsePacket_PortlessProtocolDefaultsToZero(t *testing.T) {
	packet := pcaptest.Packet(t, pcaptest.Frame{
		Time: time.Now(), SrcIP: "192.168.0.1", DstIP: "192.168.0.254",
		Protocol: layers.IPProtocolICMPv4, Payload: 8,
	})

	obs, err := ParsePacket(packet)
	require.NoError(t, err)
	assert.EqualValues(t, 0, obs.SrcPort)
	assert.EqualValues(t, 0, obs.DstPort)
	assert.EqualValues(t, 1, obs.Protocol)
}

func TestParsePacket_NonIP(t *testing.T) {
	arp := &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
		SourceHwAddress: []byte{0, 1, 2, 3, 4, 5}, SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress: []byte{0, 0, 0, 0, 0, 0}, DstProtAddress: []byte{10, 0, 0, 2},
	}
	eth := &layers.Ethernet{
		SrcMAC: []byte{0, 1, 2, 3, 4, 5}, DstMAC: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp))

	packet := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
	_, err := ParsePacket(packet)
	assert.Error(t, err)
}

// Package capture provides the capture collaborators of the sensor: live
// capture from a network interface into a pcap file, and replay of an
// existing capture file.
package capture

import (
	"NetSentinel/internal/config"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
)

// readTimeout bounds a single read so that cancellation is noticed while the
// interface is quiet.
const readTimeout = 500 * time.Millisecond

// Handle is the packet source a capture round reads from.
type Handle interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
	Close()
}

// Opener opens an interface for capture.
type Opener func(iface string, snaplen int32, promisc bool) (Handle, error)

// OpenLive opens iface with libpcap.
func OpenLive(iface string, snaplen int32, promisc bool) (Handle, error) {
	h, err := pcap.OpenLive(iface, snaplen, promisc, readTimeout)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// LiveCapturer records a fixed number of packets per round into a pcap file
// under its capture directory. Each round overwrites the previous file of the
// same interface.
type LiveCapturer struct {
	dir     string
	snaplen int32
	promisc bool
	timeout time.Duration
	open    Opener
}

// NewLiveCapturer creates a capturer from the agent settings.
func NewLiveCapturer(cfg config.AgentConfig) (*LiveCapturer, error) {
	if err := os.MkdirAll(cfg.CaptureDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	return &LiveCapturer{
		dir:     cfg.CaptureDir,
		snaplen: cfg.SnapshotLen,
		promisc: cfg.Promiscuous,
		timeout: cfg.CaptureTimeoutDuration(),
		open:    OpenLive,
	}, nil
}

// WithOpener replaces the libpcap opener.
func (c *LiveCapturer) WithOpener(open Opener) *LiveCapturer {
	c.open = open
	return c
}

// Capture blocks until budget packets were recorded, the capture timeout
// elapsed or ctx was cancelled. A timeout yields a short capture rather than
// an error; cancellation of ctx is an error.
func (c *LiveCapturer) Capture(ctx context.Context, iface string, budget int) (string, error) {
	if budget <= 0 {
		return "", fmt.Errorf("packet budget must be positive, got %d", budget)
	}
	handle, err := c.open(iface, c.snaplen, c.promisc)
	if err != nil {
		return "", fmt.Errorf("failed to open device %s: %w", iface, err)
	}
	defer handle.Close()

	path := filepath.Join(c.dir, fmt.Sprintf("capture_%s.pcap", iface))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create capture file: %w", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(uint32(c.snaplen), handle.LinkType()); err != nil {
		return "", fmt.Errorf("failed to write pcap header: %w", err)
	}

	roundCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		roundCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log.Printf("Capturing %d packets on %s ...", budget, iface)
	written := 0
	for written < budget {
		if roundCtx.Err() != nil {
			break
		}
		data, ci, err := handle.ReadPacketData()
		if err != nil {
			if errors.Is(err, pcap.NextErrorTimeoutExpired) {
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("failed to read packet: %w", err)
		}
		if err := w.WritePacket(ci, data); err != nil {
			return "", fmt.Errorf("failed to write packet: %w", err)
		}
		written++
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if written < budget {
		log.Printf("Capture on %s stopped after %d of %d packets", iface, written, budget)
	}
	log.Printf("Capture complete -> %s", path)
	return path, nil
}

// ReplayCapturer hands out the same capture file every round.
type ReplayCapturer struct {
	Path string
}

// Capture returns the replay file if it exists.
func (r ReplayCapturer) Capture(ctx context.Context, _ string, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(r.Path); err != nil {
		return "", fmt.Errorf("replay file unavailable: %w", err)
	}
	return r.Path, nil
}

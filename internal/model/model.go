package model

import (
	"fmt"
	"math"
)

// DurationEpsilon is the lower bound applied to a flow's duration so that
// rate features stay finite for single-packet flows.
const DurationEpsilon = 1e-6

// PacketObservation holds the metadata extracted from a single captured packet.
type PacketObservation struct {
	Timestamp float64 // seconds since the epoch
	SrcIP     string
	DstIP     string
	SrcPort   uint16
	DstPort   uint16
	Protocol  uint8
	Length    int
}

// Key returns the 5-tuple the observation belongs to.
func (o PacketObservation) Key() FlowKey {
	return FlowKey{
		SrcIP:    o.SrcIP,
		DstIP:    o.DstIP,
		SrcPort:  o.SrcPort,
		DstPort:  o.DstPort,
		Protocol: o.Protocol,
	}
}

// FlowKey is the directional 5-tuple identifying a flow within a round.
// It is a comparable value type and is used directly as a map key.
type FlowKey struct {
	SrcIP    string
	DstIP    string
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

func (k FlowKey) String() string {
	return fmt.Sprintf("%s:%d->%s:%d/%d", k.SrcIP, k.SrcPort, k.DstIP, k.DstPort, k.Protocol)
}

// FlowStats are the derived statistics of a finalized flow.
type FlowStats struct {
	PacketCount      int
	TotalBytes       int
	MeanPacketLength float64
	DurationSeconds  float64
	BytesPerSecond   float64
	PacketsPerSecond float64
}

// FlowRecord accumulates the packets of one flow during a capture round.
// PacketSizes and Timestamps are kept in arrival order and always have the same length.
type FlowRecord struct {
	Key         FlowKey
	PacketSizes []int
	Timestamps  []float64
	Stats       FlowStats

	finalized bool
}

// NewFlowRecord creates an empty record for the given key.
func NewFlowRecord(key FlowKey) *FlowRecord {
	return &FlowRecord{Key: key}
}

// Append adds one observation to the record.
func (r *FlowRecord) Append(size int, ts float64) {
	r.PacketSizes = append(r.PacketSizes, size)
	r.Timestamps = append(r.Timestamps, ts)
	r.finalized = false
}

// Len returns the number of packets in the record.
func (r *FlowRecord) Len() int {
	return len(r.PacketSizes)
}

// Finalized reports whether Finalize has been called since the last Append.
func (r *FlowRecord) Finalized() bool {
	return r.finalized
}

// Finalize computes the derived statistics and stores them on the record.
// An empty record finalizes to zero stats.
func (r *FlowRecord) Finalize() FlowStats {
	n := len(r.PacketSizes)
	if n == 0 || n != len(r.Timestamps) {
		r.Stats = FlowStats{}
		r.finalized = true
		return r.Stats
	}

	total := 0
	for _, s := range r.PacketSizes {
		total += s
	}
	minTs, maxTs := r.Timestamps[0], r.Timestamps[0]
	for _, ts := range r.Timestamps[1:] {
		minTs = math.Min(minTs, ts)
		maxTs = math.Max(maxTs, ts)
	}
	duration := math.Max(maxTs-minTs, DurationEpsilon)

	r.Stats = FlowStats{
		PacketCount:      n,
		TotalBytes:       total,
		MeanPacketLength: float64(total) / float64(n),
		DurationSeconds:  duration,
		BytesPerSecond:   float64(total) / duration,
		PacketsPerSecond: float64(n) / duration,
	}
	r.finalized = true
	return r.Stats
}

// FeatureVector is the ordered input handed to the classifier.
type FeatureVector struct {
	Names  []string
	Values []float64
}

// Get returns the value of a named feature.
func (v FeatureVector) Get(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i], true
		}
	}
	return 0, false
}

// PredictedClass is the label the classification gate assigns to a flow.
type PredictedClass int

const (
	Normal PredictedClass = iota
	Suspicious
)

func (c PredictedClass) String() string {
	switch c {
	case Suspicious:
		return "suspicious"
	case Normal:
		return "normal"
	default:
		return "unknown"
	}
}

// ScoredFlow is a flow record together with its classification.
type ScoredFlow struct {
	Record      *FlowRecord
	AttackScore float64
	Class       PredictedClass
}

// Alert is the wire and storage representation of a suspicious flow.
type Alert struct {
	Ts             string   `json:"ts"`
	Src            string   `json:"src"`
	Dst            string   `json:"dst"`
	Sport          int64    `json:"sport"`
	Dport          int64    `json:"dport"`
	Proto          int64    `json:"proto"`
	PredictedClass string   `json:"predicted_class"`
	PacketCount    int64    `json:"packet_count"`
	TotalBytes     int64    `json:"total_bytes"`
	AttackScore    *float64 `json:"attack_score"`
}

// StoredAlert is an alert row as persisted by the collector.
type StoredAlert struct {
	ID int64 `json:"-"`
	Alert
}

// Package features maps finalized flow records onto the ordered feature
// vector a classifier was trained with.
package features

import (
	"NetSentinel/internal/model"
	"fmt"
	"math"
)

// Names of the features derived from a flow record. They follow the column
// names of the CICIDS2017 training data the bundled models use.
const (
	FlowDuration       = "Flow Duration"
	TotalFwdPackets    = "Total Fwd Packets"
	TotalLengthFwd     = "Total Length of Fwd Packets"
	PacketLengthMean   = "Packet Length Mean"
	FlowBytesPerSecond = "Flow Bytes/s"
	FlowPacketsPerSec  = "Flow Packets/s"
)

type extractor func(s model.FlowStats) float64

var extractors = map[string]extractor{
	FlowDuration:       func(s model.FlowStats) float64 { return s.DurationSeconds },
	TotalFwdPackets:    func(s model.FlowStats) float64 { return float64(s.PacketCount) },
	TotalLengthFwd:     func(s model.FlowStats) float64 { return float64(s.TotalBytes) },
	PacketLengthMean:   func(s model.FlowStats) float64 { return s.MeanPacketLength },
	FlowBytesPerSecond: func(s model.FlowStats) float64 { return s.BytesPerSecond },
	FlowPacketsPerSec:  func(s model.FlowStats) float64 { return s.PacketsPerSecond },
}

// Known reports whether a feature name can be derived from a flow record.
func Known(name string) bool {
	_, ok := extractors[name]
	return ok
}

// Projector produces feature vectors in a fixed, configured order.
type Projector struct {
	names      []string
	extractors []extractor
}

// NewProjector validates the schema once. Unknown or duplicated feature names
// are a deployment misconfiguration and yield a *model.FeatureMismatchError.
func NewProjector(schema []string) (*Projector, error) {
	if len(schema) == 0 {
		return nil, &model.FeatureMismatchError{Reason: "empty feature schema"}
	}
	p := &Projector{
		names:      append([]string(nil), schema...),
		extractors: make([]extractor, len(schema)),
	}
	seen := make(map[string]bool, len(schema))
	for i, name := range schema {
		fn, ok := extractors[name]
		if !ok {
			return nil, &model.FeatureMismatchError{Feature: name, Reason: "cannot be derived from flow records"}
		}
		if seen[name] {
			return nil, &model.FeatureMismatchError{Feature: name, Reason: "listed more than once"}
		}
		seen[name] = true
		p.extractors[i] = fn
	}
	return p, nil
}

// FeatureNames returns a copy of the projector's feature order.
func (p *Projector) FeatureNames() []string {
	return append([]string(nil), p.names...)
}

// Project maps a finalized record to its feature vector. It has no side
// effects; projecting the same record twice yields identical vectors.
func (p *Projector) Project(record *model.FlowRecord) (model.FeatureVector, error) {
	if record == nil || !record.Finalized() || record.Stats.PacketCount == 0 {
		return model.FeatureVector{}, &model.FeatureMismatchError{Reason: "flow record is empty or not finalized"}
	}

	v := model.FeatureVector{
		Names:  p.FeatureNames(),
		Values: make([]float64, len(p.extractors)),
	}
	for i, fn := range p.extractors {
		x := fn(record.Stats)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return model.FeatureVector{}, &model.FeatureMismatchError{
				Feature: p.names[i],
				Reason:  fmt.Sprintf("non-finite value for flow %s", record.Key),
			}
		}
		v.Values[i] = x
	}
	return v, nil
}

// CheckSchema verifies that the projector emits exactly the feature order a
// scorer expects.
func CheckSchema(p *Projector, expected []string) error {
	if len(expected) != len(p.names) {
		return &model.FeatureMismatchError{
			Reason: fmt.Sprintf("classifier expects %d features, projector emits %d", len(expected), len(p.names)),
		}
	}
	for i := range expected {
		if expected[i] != p.names[i] {
			return &model.FeatureMismatchError{
				Feature: p.names[i],
				Reason:  fmt.Sprintf("position %d, classifier expects %q", i, expected[i]),
			}
		}
	}
	return nil
}

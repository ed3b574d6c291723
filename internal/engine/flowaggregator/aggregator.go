package flowaggregator

import (
	"NetSentinel/internal/model"
	"sort"
)

// FlowAggregator groups the packet observations of one capture round into
// flow records keyed by the exact directional 5-tuple. Memory grows with the
// number of distinct flows, not with the number of packets beyond the per-flow
// size and timestamp slices.
//
// A FlowAggregator is owned by a single round and is not safe for concurrent use.
type FlowAggregator struct {
	flows        map[model.FlowKey]*model.FlowRecord
	observations int
}

// NewFlowAggregator creates an empty aggregator.
func NewFlowAggregator() *FlowAggregator {
	return &FlowAggregator{flows: make(map[model.FlowKey]*model.FlowRecord)}
}

// Add records one observation, creating the flow on first sight of its key.
func (fa *FlowAggregator) Add(obs model.PacketObservation) {
	key := obs.Key()
	record, ok := fa.flows[key]
	if !ok {
		record = model.NewFlowRecord(key)
		fa.flows[key] = record
	}
	record.Append(obs.Length, obs.Timestamp)
	fa.observations++
}

// Len returns the number of distinct flows seen so far.
func (fa *FlowAggregator) Len() int {
	return len(fa.flows)
}

// Observations returns the number of observations added so far.
func (fa *FlowAggregator) Observations() int {
	return fa.observations
}

// Flush finalizes every flow, drops records without packets and returns them.
// The aggregator is reset and can be reused for the next round.
func (fa *FlowAggregator) Flush() map[model.FlowKey]*model.FlowRecord {
	out := make(map[model.FlowKey]*model.FlowRecord, len(fa.flows))
	for key, record := range fa.flows {
		if record.Len() == 0 {
			continue
		}
		record.Finalize()
		out[key] = record
	}
	fa.flows = make(map[model.FlowKey]*model.FlowRecord)
	fa.observations = 0
	return out
}

// Aggregate runs a single pass over the observations and returns the finalized flows.
// An empty input yields an empty, non-nil map.
func Aggregate(observations []model.PacketObservation) map[model.FlowKey]*model.FlowRecord {
	fa := NewFlowAggregator()
	for _, obs := range observations {
		fa.Add(obs)
	}
	return fa.Flush()
}

// SortedRecords returns the records ordered by key so that downstream
// processing and logs are deterministic.
func SortedRecords(flows map[model.FlowKey]*model.FlowRecord) []*model.FlowRecord {
	records := make([]*model.FlowRecord, 0, len(flows))
	for _, r := range flows {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Key, records[j].Key
		if a.SrcIP != b.SrcIP {
			return a.SrcIP < b.SrcIP
		}
		if a.DstIP != b.DstIP {
			return a.DstIP < b.DstIP
		}
		if a.SrcPort != b.SrcPort {
			return a.SrcPort < b.SrcPort
		}
		if a.DstPort != b.DstPort {
			return a.DstPort < b.DstPort
		}
		return a.Protocol < b.Protocol
	})
	return records
}

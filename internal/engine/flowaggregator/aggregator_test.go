package flowaggregator

import (
	"NetSentinel/internal/model"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obs(src, dst string, sport, dport uint16, proto uint8, size int, ts float64) model.PacketObservation {
	return model.PacketObservation{
		Timestamp: ts, SrcIP: src, DstIP: dst,
		SrcPort: sport, DstPort: dport, Protocol: proto, Length: size,
	}
}

func TestAggregate_EndToEndScenario(t *testing.T) {
	flows := Aggregate([]model.PacketObservation{
		obs("10.0.0.1", "10.0.0.2", 1234, 80, 6, 100, 0.0),
		obs("10.0.0.1", "10.0.0.2", 1234, 80, 6, 200, 0.5),
		obs("10.0.0.1", "10.0.0.2", 1234, 80, 6, 150, 1.0),
	})
	require.Len(t, flows, 1)

	key := model.FlowKey{SrcIP: "10.0.0.1", DstIP: "10.0.0.2", SrcPort: 1234, DstPort: 80, Protocol: 6}
	record, ok := flows[key]
	require.True(t, ok)

	s := record.Stats
	assert.Equal(t, 3, s.PacketCount)
	assert.Equal(t, 450, s.TotalBytes)
	assert.InDelta(t, 150.0, s.MeanPacketLength, 1e-9)
	assert.InDelta(t, 1.0, s.DurationSeconds, 1e-9)
	assert.InDelta(t, 450.0, s.BytesPerSecond, 1e-9)
	assert.InDelta(t, 3.0, s.PacketsPerSecond, 1e-9)
	assert.Equal(t, []int{100, 200, 150}, record.PacketSizes)
	assert.Equal(t, []float64{0.0, 0.5, 1.0}, record.Timestamps)
}

func TestAggregate_CountsAndBytesPerKey(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	keys := []model.FlowKey{
		{SrcIP: "10.0.0.1", DstIP: "10.0.0.2", SrcPort: 1, DstPort: 2, Protocol: 6},
		{SrcIP: "10.0.0.3", DstIP: "10.0.0.4", SrcPort: 5, DstPort: 53, Protocol: 17},
		{SrcIP: "10.0.0.5", DstIP: "10.0.0.6", Protocol: 1},
	}
	wantCount := map[model.FlowKey]int{}
	wantBytes := map[model.FlowKey]int{}

	var observations []model.PacketObservation
	for i := 0; i < 500; i++ {
		k := keys[rng.Intn(len(keys))]
		size := 40 + rng.Intn(1400)
		observations = append(observations, obs(k.SrcIP, k.DstIP, k.SrcPort, k.DstPort, k.Protocol, size, rng.Float64()*10))
		wantCount[k]++
		wantBytes[k] += size
	}

	flows := Aggregate(observations)
	require.Len(t, flows, len(wantCount))
	for k, record := range flows {
		assert.Equal(t, wantCount[k], record.Stats.PacketCount, "packet count for %s", k)
		assert.Equal(t, wantBytes[k], record.Stats.TotalBytes, "total bytes for %s", k)
		assert.Equal(t, len(record.PacketSizes), len(record.Timestamps))
	}
}

func TestAggregate_DirectionsAreDistinct(t *testing.T) {
	flows := Aggregate([]model.PacketObservation{
		obs("10.0.0.1", "10.0.0.2", 1234, 80, 6, 100, 0),
		obs("10.0.0.2", "10.0.0.1", 80, 1234, 6, 1500, 0.1),
	})
	assert.Len(t, flows, 2)
}

func TestAggregate_DurationFloor(t *testing.T) {
	flows := Aggregate([]model.PacketObservation{obs("10.0.0.1", "10.0.0.2", 1, 2, 6, 60, 42.0)})
	require.Len(t, flows, 1)

	for _, record := range flows {
		s := record.Stats
		assert.GreaterOrEqual(t, s.DurationSeconds, model.DurationEpsilon)
		assert.False(t, math.IsInf(s.BytesPerSecond, 0) || math.IsNaN(s.BytesPerSecond))
		assert.False(t, math.IsInf(s.PacketsPerSecond, 0) || math.IsNaN(s.PacketsPerSecond))
		assert.InDelta(t, 60/model.DurationEpsilon, s.BytesPerSecond, 1e-3)
	}
}

func TestAggregate_OutOfOrderTimestamps(t *testing.T) {
	flows := Aggregate([]model.PacketObservation{
		obs("10.0.0.1", "10.0.0.2", 1, 2, 6, 10, 5.0),
		obs("10.0.0.1", "10.0.0.2", 1, 2, 6, 10, 2.0),
		obs("10.0.0.1", "10.0.0.2", 1, 2, 6, 10, 4.0),
	})
	for _, record := range flows {
		assert.InDelta(t, 3.0, record.Stats.DurationSeconds, 1e-9)
		assert.Equal(t, []float64{5.0, 2.0, 4.0}, record.Timestamps)
	}
}

func TestAggregate_Empty(t *testing.T) {
	flows := Aggregate(nil)
	assert.NotNil(t, flows)
	assert.Empty(t, flows)
}

func TestFlowAggregator_FlushResets(t *testing.T) {
	fa := NewFlowAggregator()
	fa.Add(obs("10.0.0.1", "10.0.0.2", 1, 2, 6, 10, 1))
	fa.Add(obs("10.0.0.1", "10.0.0.2", 1, 2, 6, 10, 2))
	assert.Equal(t, 1, fa.Len())
	assert.Equal(t, 2, fa.Observations())

	first := fa.Flush()
	assert.Len(t, first, 1)
	assert.Equal(t, 0, fa.Len())
	assert.Equal(t, 0, fa.Observations())

	fa.Add(obs("10.0.0.1", "10.0.0.2", 1, 2, 6, 10, 3))
	second := fa.Flush()
	require.Len(t, second, 1)
	for _, r := range second {
		assert.Equal(t, 1, r.Stats.PacketCount, "flows must not carry over between rounds")
	}
}

func TestSortedRecords(t *testing.T) {
	flows := Aggregate([]model.PacketObservation{
		obs("10.0.0.9", "10.0.0.1", 1, 2, 6, 10, 0),
		obs("10.0.0.1", "10.0.0.2", 9, 2, 6, 10, 0),
		obs("10.0.0.1", "10.0.0.2", 3, 2, 6, 10, 0),
	})
	records := SortedRecords(flows)
	require.Len(t, records, 3)
	assert.EqualValues(t, 3, records[0].Key.SrcPort)
	assert.EqualValues(t, 9, records[1].Key.SrcPort)
	assert.Equal(t, "10.0.0.9", records[2].Key.SrcIP)
}

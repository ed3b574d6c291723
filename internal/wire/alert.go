// Package wire encodes alerts for message-bus transport as protobuf
// google.protobuf.Struct messages carrying the same fields as the JSON payload.
package wire

import (
	"NetSentinel/internal/model"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts an alert into its Struct form.
func ToStruct(a model.Alert) *structpb.Struct {
	score := structpb.NewNullValue()
	if a.AttackScore != nil {
		score = structpb.NewNumberValue(*a.AttackScore)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"ts":              structpb.NewStringValue(a.Ts),
		"src":             structpb.NewStringValue(a.Src),
		"dst":             structpb.NewStringValue(a.Dst),
		"sport":           structpb.NewNumberValue(float64(a.Sport)),
		"dport":           structpb.NewNumberValue(float64(a.Dport)),
		"proto":           structpb.NewNumberValue(float64(a.Proto)),
		"predicted_class": structpb.NewStringValue(a.PredictedClass),
		"packet_count":    structpb.NewNumberValue(float64(a.PacketCount)),
		"total_bytes":     structpb.NewNumberValue(float64(a.TotalBytes)),
		"attack_score":    score,
	}}
}

// Encode serializes an alert to protobuf bytes.
func Encode(a model.Alert) ([]byte, error) {
	data, err := proto.Marshal(ToStruct(a))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert: %w", err)
	}
	return data, nil
}

// DecodeMap parses protobuf bytes into the loosely typed field map that the
// collector normalizes. Numbers come back as float64, null as nil.
func DecodeMap(data []byte) (map[string]interface{}, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
	}
	return s.AsMap(), nil
}

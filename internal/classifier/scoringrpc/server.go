package scoringrpc

import (
	"NetSentinel/internal/model"
	"context"
	"fmt"
	"log"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	modeProbability = "probability"
	modeDiscrete    = "discrete"
)

// Server serves a locally loaded classifier.
type Server struct {
	capability model.FeatureSchema
	mode       string
}

// NewServer wraps a capability that implements model.ProbabilityScorer or
// model.Predictor.
func NewServer(capability model.FeatureSchema) (*Server, error) {
	s := &Server{capability: capability}
	switch capability.(type) {
	case model.ProbabilityScorer:
		s.mode = modeProbability
	case model.Predictor:
		s.mode = modeDiscrete
	default:
		return nil, fmt.Errorf("capability %T exposes neither Score nor Predict", capability)
	}
	return s, nil
}

// Describe reports the feature order and the scoring mode.
func (s *Server) Describe(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	names := s.capability.FeatureNames()
	features := make([]interface{}, len(names))
	for i, n := range names {
		features[i] = n
	}
	out, err := structpb.NewStruct(map[string]interface{}{
		"features": features,
		"mode":     s.mode,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to build describe response: %v", err)
	}
	return out, nil
}

// Score evaluates one feature vector.
func (s *Server) Score(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, err := decodeVector(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	switch c := s.capability.(type) {
	case model.ProbabilityScorer:
		p, err := c.Score(ctx, v)
		if err != nil {
			log.Printf("Scoring request rejected: %v", err)
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return &structpb.Struct{Fields: map[string]*structpb.Value{"score": structpb.NewNumberValue(p)}}, nil
	case model.Predictor:
		label, err := c.Predict(ctx, v)
		if err != nil {
			log.Printf("Prediction request rejected: %v", err)
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return &structpb.Struct{Fields: map[string]*structpb.Value{"label": structpb.NewNumberValue(float64(label))}}, nil
	}
	return nil, status.Error(codes.Internal, "no scoring capability")
}

func encodeVector(v model.FeatureVector) *structpb.Struct {
	names := make([]*structpb.Value, len(v.Names))
	for i, n := range v.Names {
		names[i] = structpb.NewStringValue(n)
	}
	values := make([]*structpb.Value, len(v.Values))
	for i, x := range v.Values {
		values[i] = structpb.NewNumberValue(x)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"names":  structpb.NewListValue(&structpb.ListValue{Values: names}),
		"values": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

func decodeVector(s *structpb.Struct) (model.FeatureVector, error) {
	var v model.FeatureVector
	for _, item := range s.GetFields()["names"].GetListValue().GetValues() {
		name, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return v, fmt.Errorf("feature names must be strings")
		}
		v.Names = append(v.Names, name.StringValue)
	}
	for _, item := range s.GetFields()["values"].GetListValue().GetValues() {
		x, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return v, fmt.Errorf("feature values must be numbers")
		}
		v.Values = append(v.Values, x.NumberValue)
	}
	if len(v.Values) == 0 {
		return v, fmt.Errorf("empty feature vector")
	}
	if len(v.Names) != 0 && len(v.Names) != len(v.Values) {
		return v, fmt.Errorf("got %d names for %d values", len(v.Names), len(v.Values))
	}
	return v, nil
}

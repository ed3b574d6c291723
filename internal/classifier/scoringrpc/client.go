package scoringrpc

import (
	"NetSentinel/internal/model"
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client talks to a remote scoring service.
type Client struct {
	conn        grpc.ClientConnInterface
	closer      func() error
	callTimeout time.Duration
}

// Dial creates a client for addr. Extra options are appended after the
// default insecure transport credentials.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to scoring service at %s: %w", addr, err)
	}
	return &Client{conn: conn, closer: conn.Close}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// WithCallTimeout bounds every Score/Predict call. Zero disables the bound.
func (c *Client) WithCallTimeout(d time.Duration) *Client {
	c.callTimeout = d
	return c
}

// Close releases the underlying connection if the client owns it.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Capability asks the service for its schema and mode and returns a local
// handle implementing model.ProbabilityScorer or model.Predictor.
func (c *Client) Capability(ctx context.Context) (model.FeatureSchema, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, describeMethod, &emptypb.Empty{}, out); err != nil {
		return nil, fmt.Errorf("failed to describe scoring service: %w", err)
	}

	var names []string
	for _, item := range out.GetFields()["features"].GetListValue().GetValues() {
		names = append(names, item.GetStringValue())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("scoring service reported no features")
	}

	mode := out.GetFields()["mode"].GetStringValue()
	log.Printf("Remote scoring service uses %s mode over %d features", mode, len(names))
	base := remote{client: c, names: names}
	switch mode {
	case modeProbability:
		return &remoteScorer{base}, nil
	case modeDiscrete:
		return &remotePredictor{base}, nil
	default:
		return nil, fmt.Errorf("scoring service reported unknown mode %q", mode)
	}
}

type remote struct {
	client *Client
	names  []string
}

func (r remote) FeatureNames() []string { return append([]string(nil), r.names...) }

func (r remote) call(ctx context.Context, v model.FeatureVector, field string) (float64, error) {
	if r.client.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.client.callTimeout)
		defer cancel()
	}
	out := new(structpb.Struct)
	if err := r.client.conn.Invoke(ctx, scoreMethod, encodeVector(v), out); err != nil {
		return 0, err
	}
	value, ok := out.GetFields()[field]
	if !ok {
		return 0, fmt.Errorf("scoring response has no %q field", field)
	}
	return value.GetNumberValue(), nil
}

type remoteScorer struct{ remote }

func (r *remoteScorer) Score(ctx context.Context, v model.FeatureVector) (float64, error) {
	return r.call(ctx, v, "score")
}

type remotePredictor struct{ remote }

func (r *remotePredictor) Predict(ctx context.Context, v model.FeatureVector) (int, error) {
	x, err := r.call(ctx, v, "label")
	if err != nil {
		return 0, err
	}
	if x != math.Trunc(x) {
		return 0, fmt.Errorf("non-integer label %v", x)
	}
	return int(x), nil
}

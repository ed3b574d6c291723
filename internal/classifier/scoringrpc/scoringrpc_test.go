package scoringrpc

import (
	"NetSentinel/internal/classifier"
	"NetSentinel/internal/model"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func serve(t *testing.T, capability model.FeatureSchema) *Client {
	t.Helper()
	srv, err := NewServer(capability)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterScorerServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func build(t *testing.T, a classifier.Artifact) model.FeatureSchema {
	t.Helper()
	m, err := a.Build()
	require.NoError(t, err)
	return m
}

func TestRemote_ProbabilityMode(t *testing.T) {
	local := build(t, classifier.Artifact{
		Kind:     "logistic",
		Features: []string{"x", "y"},
		Weights:  []float64{2, -1},
		Bias:     -1,
	})
	client := serve(t, local)

	remote, err := client.Capability(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, remote.FeatureNames())

	scorer, ok := remote.(model.ProbabilityScorer)
	require.True(t, ok)
	v := model.FeatureVector{Names: []string{"x", "y"}, Values: []float64{1.5, 0.5}}

	want, err := local.(model.ProbabilityScorer).Score(context.Background(), v)
	require.NoError(t, err)
	got, err := scorer.Score(context.Background(), v)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)

	gate, err := classifier.NewGate(remote, 0.5)
	require.NoError(t, err)
	assert.Equal(t, classifier.ModeProbability, gate.Mode())
}

func TestRemote_DiscreteMode(t *testing.T) {
	client := serve(t, build(t, classifier.Artifact{
		Kind:     "tree",
		Features: []string{"x"},
		Trees: []classifier.TreeDef{{Nodes: []classifier.NodeDef{
			{Feature: 0, Threshold: 10, Left: 1, Right: 2},
			{Leaf: true, Class: 0},
			{Leaf: true, Class: 1},
		}}},
	}))

	remote, err := client.Capability(context.Background())
	require.NoError(t, err)
	_, isScorer := remote.(model.ProbabilityScorer)
	assert.False(t, isScorer)

	predictor, ok := remote.(model.Predictor)
	require.True(t, ok)
	label, err := predictor.Predict(context.Background(), model.FeatureVector{Names: []string{"x"}, Values: []float64{42}})
	require.NoError(t, err)
	assert.Equal(t, 1, label)
}

func TestRemote_RejectedInput(t *testing.T) {
	client := serve(t, build(t, classifier.Artifact{
		Kind:     "logistic",
		Features: []string{"x", "y"},
		Weights:  []float64{1, 1},
	}))
	remote, err := client.Capability(context.Background())
	require.NoError(t, err)

	_, err = remote.(model.ProbabilityScorer).Score(context.Background(), model.FeatureVector{Names: []string{"x"}, Values: []float64{1}})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestNewServer_RejectsSchemaOnly(t *testing.T) {
	_, err := NewServer(schemaOnly{})
	assert.Error(t, err)
}

type schemaOnly struct{}

func (schemaOnly) FeatureNames() []string { return []string{"x"} }

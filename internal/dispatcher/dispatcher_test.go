package dispatcher

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/metrics"
	"NetSentinel/internal/model"
	"NetSentinel/internal/pkg/clock"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	alerts []model.Alert
	failOn map[int]bool
	calls  int
}

func (s *recordingSink) Ingest(ctx context.Context, a model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failOn[s.calls] {
		return errors.New("connection refused")
	}
	s.alerts = append(s.alerts, a)
	return nil
}

type recordingMitigator struct {
	blocked []string
	err     error
}

func (m *recordingMitigator) Block(_ context.Context, src string) error {
	m.blocked = append(m.blocked, src)
	return m.err
}

func flow(src string, sport uint16, packets int, score float64, class model.PredictedClass) model.ScoredFlow {
	r := model.NewFlowRecord(model.FlowKey{SrcIP: src, DstIP: "10.0.0.2", SrcPort: sport, DstPort: 80, Protocol: 6})
	for i := 0; i < packets; i++ {
		r.Append(100, float64(i))
	}
	r.Finalize()
	return model.ScoredFlow{Record: r, AttackScore: score, Class: class}
}

func TestDispatch_OnlySuspicious(t *testing.T) {
	sink := &recordingSink{}
	d := New(Options{Clock: clock.NewFake(time.Unix(0, 0))})

	report := d.Dispatch(context.Background(), []model.ScoredFlow{
		flow("10.0.0.1", 1, 3, 0.9, model.Suspicious),
		flow("10.0.0.1", 2, 3, 0.1, model.Normal),
		flow("10.0.0.1", 3, 3, 0.7, model.Suspicious),
	}, sink)

	assert.Equal(t, DispatchReport{Considered: 3, Flagged: 2, Delivered: 2}, report)
	require.Len(t, sink.alerts, 2)
	assert.EqualValues(t, 1, sink.alerts[0].Sport)
	assert.EqualValues(t, 3, sink.alerts[1].Sport)
}

func TestDispatch_FailureDoesNotBlockNextAlert(t *testing.T) {
	sink := &recordingSink{failOn: map[int]bool{1: true}}
	reg := prometheus.NewRegistry()
	m := metrics.NewAgent(reg)
	d := New(Options{Clock: clock.NewFake(time.Unix(0, 0)), Metrics: m})

	report := d.Dispatch(context.Background(), []model.ScoredFlow{
		flow("10.0.0.1", 1, 3, 0.9, model.Suspicious),
		flow("10.0.0.1", 2, 3, 0.9, model.Suspicious),
	}, sink)

	assert.Equal(t, 2, sink.calls, "alert N+1 must be attempted after alert N failed")
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Delivered)
	assert.EqualValues(t, 2, sink.alerts[0].Sport)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("failed")))
}

func TestDispatch_ThrottleBetweenDeliveries(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	d := New(Options{Clock: fake, Throttle: 200 * time.Millisecond})

	d.Dispatch(context.Background(), []model.ScoredFlow{
		flow("10.0.0.1", 1, 3, 0.9, model.Suspicious),
		flow("10.0.0.1", 2, 3, 0.9, model.Suspicious),
		flow("10.0.0.1", 3, 3, 0.9, model.Suspicious),
	}, &recordingSink{})

	assert.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}, fake.Sleeps())
}

func TestDispatch_TimeoutPerCall(t *testing.T) {
	var deadlines []bool
	sink := sinkFunc(func(ctx context.Context, _ model.Alert) error {
		_, ok := ctx.Deadline()
		deadlines = append(deadlines, ok)
		<-ctx.Done()
		return ctx.Err()
	})
	d := New(Options{Timeout: 10 * time.Millisecond})

	report := d.Dispatch(context.Background(), []model.ScoredFlow{
		flow("10.0.0.1", 1, 3, 0.9, model.Suspicious),
		flow("10.0.0.1", 2, 3, 0.9, model.Suspicious),
	}, sink)

	assert.Equal(t, []bool{true, true}, deadlines)
	assert.Equal(t, 2, report.Failed)
}

type sinkFunc func(ctx context.Context, a model.Alert) error

func (f sinkFunc) Ingest(ctx context.Context, a model.Alert) error { return f(ctx, a) }

func mitigationGate(t *testing.T, m model.Mitigator) *MitigationGate {
	t.Helper()
	g, err := NewMitigationGate(config.MitigationConfig{
		ScoreThreshold: 0.8,
		MinPackets:     50,
		LocalNetworks:  []string{"192.168.0.0/16"},
		CacheSize:      16,
	}, m)
	require.NoError(t, err)
	return g
}

func TestMitigationGate_Eligible(t *testing.T) {
	g := mitigationGate(t, &recordingMitigator{})

	tests := []struct {
		name string
		sf   model.ScoredFlow
		want bool
	}{
		{"all conditions", flow("192.168.1.5", 1, 51, 0.81, model.Suspicious), true},
		{"score at threshold", flow("192.168.1.5", 1, 51, 0.8, model.Suspicious), false},
		{"packets at threshold", flow("192.168.1.5", 1, 50, 0.95, model.Suspicious), false},
		{"remote source", flow("8.8.8.8", 1, 100, 0.95, model.Suspicious), false},
		{"normal flow", flow("192.168.1.5", 1, 100, 0.95, model.Normal), false},
		{"unparseable source", flow("unknown", 1, 100, 0.95, model.Suspicious), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Eligible(tt.sf))
		})
	}
}

func TestDispatch_MitigationFailureDoesNotAffectDelivery(t *testing.T) {
	mitigator := &recordingMitigator{err: errors.New("permission denied")}
	sink := &recordingSink{}
	d := New(Options{Clock: clock.NewFake(time.Unix(0, 0)), Mitigation: mitigationGate(t, mitigator)})

	report := d.Dispatch(context.Background(), []model.ScoredFlow{
		flow("192.168.1.5", 1, 60, 0.95, model.Suspicious),
		flow("192.168.1.6", 2, 60, 0.95, model.Suspicious),
	}, sink)

	assert.Equal(t, 2, report.Delivered)
	assert.Equal(t, 2, report.MitigationAttempts)
	assert.Equal(t, 2, report.MitigationFailures)
	assert.Len(t, sink.alerts, 2)
}

func TestDispatch_MitigationRunsWhenDeliveryFails(t *testing.T) {
	mitigator := &recordingMitigator{}
	sink := &recordingSink{failOn: map[int]bool{1: true}}
	d := New(Options{Clock: clock.NewFake(time.Unix(0, 0)), Mitigation: mitigationGate(t, mitigator)})

	report := d.Dispatch(context.Background(), []model.ScoredFlow{flow("192.168.1.5", 1, 60, 0.95, model.Suspicious)}, sink)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"192.168.1.5"}, mitigator.blocked)
}

func TestMitigationGate_BlocksOncePerSource(t *testing.T) {
	mitigator := &recordingMitigator{}
	g := mitigationGate(t, mitigator)
	sf := flow("192.168.1.5", 1, 60, 0.95, model.Suspicious)

	attempted, err := g.Apply(context.Background(), sf)
	require.NoError(t, err)
	assert.True(t, attempted)

	attempted, err = g.Apply(context.Background(), sf)
	require.NoError(t, err)
	assert.False(t, attempted)
	assert.Equal(t, []string{"192.168.1.5"}, mitigator.blocked)
}

func TestMitigationGate_FailedSourceStaysEligible(t *testing.T) {
	mitigator := &recordingMitigator{err: errors.New("boom")}
	g := mitigationGate(t, mitigator)
	sf := flow("192.168.1.5", 1, 60, 0.95, model.Suspicious)

	_, err := g.Apply(context.Background(), sf)
	var mitErr *model.MitigationError
	require.True(t, errors.As(err, &mitErr))
	assert.Equal(t, "192.168.1.5", mitErr.Source)

	attempted, _ := g.Apply(context.Background(), sf)
	assert.True(t, attempted)
}

func TestBuildAlert(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)
	a := BuildAlert(flow("10.0.0.1", 1234, 3, 0.9, model.Suspicious), now)

	assert.Equal(t, "2024-05-01 10:30:00", a.Ts)
	assert.Equal(t, "10.0.0.1", a.Src)
	assert.EqualValues(t, 1234, a.Sport)
	assert.EqualValues(t, 6, a.Proto)
	assert.EqualValues(t, 3, a.PacketCount)
	assert.EqualValues(t, 300, a.TotalBytes)
	assert.Equal(t, "suspicious", a.PredictedClass)
	require.NotNil(t, a.AttackScore)
	assert.Equal(t, 0.9, *a.AttackScore)

	empty := BuildAlert(model.ScoredFlow{Class: model.Suspicious, Record: model.NewFlowRecord(model.FlowKey{})}, now)
	assert.Equal(t, Unknown, empty.Src)
	assert.Equal(t, Unknown, empty.Dst)
}

func TestHTTPSink(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	a := BuildAlert(flow("10.0.0.1", 1234, 3, 0.9, model.Suspicious), time.Now())
	require.NoError(t, NewHTTPSink(srv.URL).Ingest(context.Background(), a))
	assert.Equal(t, "10.0.0.1", got["src"])
	assert.Equal(t, 1234.0, got["sport"])
	assert.Equal(t, 0.9, got["attack_score"])
}

func TestHTTPSink_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPSink(srv.URL).Ingest(context.Background(), model.Alert{})
	assert.Error(t, err)
}

func TestNewSink(t *testing.T) {
	cfg := config.Default()
	sink, closeFn, err := NewSink(cfg)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &HTTPSink{}, sink)

	cfg.Dispatcher.Sink = "carrier-pigeon"
	_, _, err = NewSink(cfg)
	assert.Error(t, err)
}

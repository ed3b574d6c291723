// Package metrics defines the Prometheus instruments of the agent and the
// collector. Instruments are registered on an explicit registry so that
// several instances can coexist in one process (tests).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Agent holds the sensor-side instruments. A nil *Agent is a no-op.
type Agent struct {
	RoundsTotal     *prometheus.CounterVec
	RoundDuration   prometheus.Histogram
	FlowsTotal      prometheus.Counter
	SuspiciousTotal prometheus.Counter
	DeliveriesTotal *prometheus.CounterVec
	MitigationTotal *prometheus.CounterVec
	ScoreMin        prometheus.Gauge
	ScoreMax        prometheus.Gauge
	ScoreMean       prometheus.Gauge
}

// NewAgent registers the agent instruments on reg.
func NewAgent(reg prometheus.Registerer) *Agent {
	f := promauto.With(reg)
	return &Agent{
		RoundsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netsentinel_agent_rounds_total",
				Help: "Total number of capture rounds by outcome",
			},
			[]string{"outcome"},
		),
		RoundDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "netsentinel_agent_round_duration_seconds",
				Help:    "Duration of capture rounds in seconds, cooldown excluded",
				Buckets: prometheus.DefBuckets,
			},
		),
		FlowsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "netsentinel_agent_flows_total",
				Help: "Total number of flows extracted",
			},
		),
		SuspiciousTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "netsentinel_agent_suspicious_flows_total",
				Help: "Total number of flows classified as suspicious",
			},
		),
		DeliveriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netsentinel_agent_alert_deliveries_total",
				Help: "Total number of alert deliveries by result",
			},
			[]string{"result"},
		),
		MitigationTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netsentinel_agent_mitigations_total",
				Help: "Total number of mitigation invocations by result",
			},
			[]string{"result"},
		),
		ScoreMin: f.NewGauge(prometheus.GaugeOpts{
			Name: "netsentinel_agent_last_round_score_min",
			Help: "Minimum attack score of the last classified round",
		}),
		ScoreMax: f.NewGauge(prometheus.GaugeOpts{
			Name: "netsentinel_agent_last_round_score_max",
			Help: "Maximum attack score of the last classified round",
		}),
		ScoreMean: f.NewGauge(prometheus.GaugeOpts{
			Name: "netsentinel_agent_last_round_score_mean",
			Help: "Mean attack score of the last classified round",
		}),
	}
}

func (a *Agent) Round(outcome string, d time.Duration) {
	if a == nil {
		return
	}
	a.RoundsTotal.WithLabelValues(outcome).Inc()
	a.RoundDuration.Observe(d.Seconds())
}

func (a *Agent) Flows(flows, suspicious int) {
	if a == nil {
		return
	}
	a.FlowsTotal.Add(float64(flows))
	a.SuspiciousTotal.Add(float64(suspicious))
}

func (a *Agent) Scores(min, max, mean float64) {
	if a == nil {
		return
	}
	a.ScoreMin.Set(min)
	a.ScoreMax.Set(max)
	a.ScoreMean.Set(mean)
}

func (a *Agent) Delivery(result string) {
	if a == nil {
		return
	}
	a.DeliveriesTotal.WithLabelValues(result).Inc()
}

func (a *Agent) Mitigation(result string) {
	if a == nil {
		return
	}
	a.MitigationTotal.WithLabelValues(result).Inc()
}

// Collector holds the collector-side instruments. A nil *Collector is a no-op.
type Collector struct {
	IngestedTotal     *prometheus.CounterVec
	IngestErrorsTotal *prometheus.CounterVec
}

// NewCollector registers the collector instruments on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		IngestedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netsentinel_collector_alerts_ingested_total",
				Help: "Total number of alerts stored by source",
			},
			[]string{"source"},
		),
		IngestErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netsentinel_collector_ingest_errors_total",
				Help: "Total number of alerts that could not be stored by source",
			},
			[]string{"source"},
		),
	}
}

func (c *Collector) Ingested(source string) {
	if c == nil {
		return
	}
	c.IngestedTotal.WithLabelValues(source).Inc()
}

func (c *Collector) IngestFailed(source string) {
	if c == nil {
		return
	}
	c.IngestErrorsTotal.WithLabelValues(source).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

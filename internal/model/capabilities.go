package model

import "context"

// Capturer collects a bounded number of packets from an interface and returns
// a path to the raw capture.
type Capturer interface {
	Capture(ctx context.Context, iface string, budget int) (string, error)
}

// ObservationReader turns a raw capture into packet observations.
type ObservationReader interface {
	ReadObservations(path string) ([]PacketObservation, error)
}

// FeatureSchema is implemented by anything trained on an ordered feature set.
type FeatureSchema interface {
	FeatureNames() []string
}

// ProbabilityScorer returns the probability that a flow is an attack.
type ProbabilityScorer interface {
	FeatureSchema
	Score(ctx context.Context, v FeatureVector) (float64, error)
}

// Predictor only exposes a discrete prediction (0 = normal, 1 = attack).
type Predictor interface {
	FeatureSchema
	Predict(ctx context.Context, v FeatureVector) (int, error)
}

// AlertSink accepts alerts for a remote collector.
type AlertSink interface {
	Ingest(ctx context.Context, alert Alert) error
}

// Mitigator performs an optional blocking action against a source address.
type Mitigator interface {
	Block(ctx context.Context, src string) error
}

// AlertStore is the append-only alert table owned by the collector.
type AlertStore interface {
	Insert(ctx context.Context, alert Alert) (int64, error)
	// Recent returns at most limit alerts, newest first.
	Recent(ctx context.Context, limit int) ([]StoredAlert, error)
	Close() error
}

// Notifier delivers operator notifications, e.g. on deployment misconfiguration.
type Notifier interface {
	Send(subject, body string) error
}

package dispatcher

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"NetSentinel/internal/wire"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/nats-io/nats.go"
)

// HTTPSink posts alerts as JSON to the collector's ingestion endpoint.
type HTTPSink struct {
	url    string
	client *http.Client
}

// NewHTTPSink creates a sink for the given /alert URL. Per-call deadlines
// come from the context passed to Ingest.
func NewHTTPSink(url string) *HTTPSink {
	return &HTTPSink{url: url, client: &http.Client{}}
}

// Ingest performs one POST. Any non-2xx answer is an error.
func (s *HTTPSink) Ingest(ctx context.Context, a model.Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("collector answered %s", resp.Status)
	}
	return nil
}

// NATSSink publishes protobuf-encoded alerts to a NATS subject.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to the NATS server in cfg.
func NewNATSSink(cfg config.NATSConfig) (*NATSSink, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &NATSSink{nc: nc, subject: cfg.Subject}, nil
}

// Ingest publishes the alert and waits for the server to acknowledge the
// flush, bounded by ctx.
func (s *NATSSink) Ingest(ctx context.Context, a model.Alert) error {
	data, err := wire.Encode(a)
	if err != nil {
		return err
	}
	if err := s.nc.Publish(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	if err := s.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush alert: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (s *NATSSink) Close() {
	if s.nc != nil {
		s.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}

// NewSink builds the sink selected in the dispatcher configuration. The
// returned close function releases any connection the sink holds.
func NewSink(cfg *config.Config) (model.AlertSink, func(), error) {
	switch cfg.Dispatcher.Sink {
	case "http":
		return NewHTTPSink(cfg.Dispatcher.CollectorURL), func() {}, nil
	case "nats":
		s, err := NewNATSSink(cfg.NATS)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown alert sink: '%s'", cfg.Dispatcher.Sink)
	}
}

package collector

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/wire"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const natsInsertTimeout = 5 * time.Second

// NATSIngester stores alerts published by sensors configured with the NATS
// sink. Payloads go through the same coercion as HTTP ingestion.
type NATSIngester struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	server  *Server
}

// NewNATSIngester connects to the NATS server in cfg.
func NewNATSIngester(cfg config.NATSConfig, server *Server) (*NATSIngester, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &NATSIngester{nc: nc, subject: cfg.Subject, server: server}, nil
}

// Start subscribes to the alert subject.
func (n *NATSIngester) Start() error {
	sub, err := n.nc.Subscribe(n.subject, n.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", n.subject, err)
	}
	n.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for alerts...", n.subject)
	return nil
}

func (n *NATSIngester) handle(msg *nats.Msg) {
	raw, err := wire.DecodeMap(msg.Data)
	if err != nil {
		log.Printf("Collector: dropping undecodable alert from NATS: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), natsInsertTimeout)
	defer cancel()
	n.server.Ingest(ctx, raw, "nats")
}

// Close unsubscribes and closes the NATS connection.
func (n *NATSIngester) Close() {
	if n.sub != nil {
		n.sub.Unsubscribe()
	}
	if n.nc != nil {
		n.nc.Close()
		log.Println("NATS connection closed.")
	}
}

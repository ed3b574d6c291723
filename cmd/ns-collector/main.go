package main

import (
	"NetSentinel/internal/collector"
	"NetSentinel/internal/config"
	"NetSentinel/internal/metrics"
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := collector.NewStore(cfg.Collector)
	if err != nil {
		log.Fatalf("Failed to open alert store: %v", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	srv := collector.NewServer(store,
		collector.WithMetrics(metrics.NewCollector(reg), reg),
		collector.WithRecentLimit(cfg.Collector.RecentLimit),
	)

	if cfg.Collector.NATSIngest {
		ingester, err := collector.NewNATSIngester(cfg.NATS, srv)
		if err != nil {
			log.Fatalf("Failed to create NATS ingester: %v", err)
		}
		if err := ingester.Start(); err != nil {
			log.Fatalf("Failed to start NATS ingester: %v", err)
		}
		defer ingester.Close()
	}

	server := &http.Server{
		Addr:    cfg.Collector.ListenAddr,
		Handler: srv.Router(),
	}

	go func() {
		log.Printf("Collector starting on %s (store: %s)", server.Addr, cfg.Collector.Store)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Collector shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Collector forced to shutdown: %v", err)
	}
	log.Println("Collector exited.")
}

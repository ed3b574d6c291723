package main

import (
	"NetSentinel/internal/capture"
	"NetSentinel/internal/classifier"
	"NetSentinel/internal/classifier/scoringrpc"
	"NetSentinel/internal/config"
	"NetSentinel/internal/dispatcher"
	"NetSentinel/internal/features"
	"NetSentinel/internal/metrics"
	"NetSentinel/internal/mitigation"
	"NetSentinel/internal/model"
	"NetSentinel/internal/notification"
	"NetSentinel/internal/pkg/clock"
	"NetSentinel/internal/scheduler"
	"NetSentinel/pkg/pcap"
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	iface := flag.String("iface", "", "Interface to capture from (overrides agent.interface)")
	replay := flag.String("pcap", "", "Replay this capture file every round instead of capturing live")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *iface != "" {
		cfg.Agent.Interface = *iface
	}
	if *replay != "" {
		cfg.Agent.ReplayPcap = *replay
	}
	log.Println("Configuration loaded successfully.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Classifier
	capability, closeCapability, err := loadCapability(ctx, cfg.Classifier)
	if err != nil {
		log.Fatalf("Failed to load classifier: %v", err)
	}
	defer closeCapability()

	projector, err := features.NewProjector(cfg.Classifier.Features)
	if err != nil {
		log.Fatalf("Failed to create feature projector: %v", err)
	}
	if err := features.CheckSchema(projector, capability.FeatureNames()); err != nil {
		// Every round fails with the same mismatch until the deployment is fixed.
		log.Printf("WARNING: %v", err)
	}

	gate, err := classifier.NewGate(capability, cfg.Classifier.Threshold)
	if err != nil {
		log.Fatalf("Failed to create classification gate: %v", err)
	}
	log.Printf("Classification gate uses %s mode with threshold %.2f", gate.Mode(), cfg.Classifier.Threshold)

	// 2. Metrics
	reg := prometheus.NewRegistry()
	agentMetrics := metrics.NewAgent(reg)
	var metricsServer *http.Server
	if cfg.Metrics.ListenAddr != "" {
		metricsServer = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: metrics.Handler(reg)}
		go func() {
			log.Printf("Metrics endpoint starting on %s", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics endpoint stopped: %v", err)
			}
		}()
	}

	// 3. Alert delivery and mitigation
	sink, closeSink, err := dispatcher.NewSink(cfg)
	if err != nil {
		log.Fatalf("Failed to create alert sink: %v", err)
	}
	defer closeSink()

	var mitigationGate *dispatcher.MitigationGate
	if cfg.Mitigation.Enabled {
		mitigator, err := mitigation.NewScriptMitigator(cfg.Mitigation)
		if err != nil {
			log.Fatalf("Failed to create mitigator: %v", err)
		}
		mitigationGate, err = dispatcher.NewMitigationGate(cfg.Mitigation, mitigator)
		if err != nil {
			log.Fatalf("Failed to create mitigation gate: %v", err)
		}
		log.Printf("Auto-blocking enabled via %s", cfg.Mitigation.Script)
	}

	d := dispatcher.New(dispatcher.Options{
		Timeout:    cfg.Dispatcher.TimeoutDuration(),
		Throttle:   cfg.Dispatcher.ThrottleDuration(),
		Clock:      clock.Real{},
		Mitigation: mitigationGate,
		Metrics:    agentMetrics,
	})

	// 4. Capture
	var capturer model.Capturer
	if cfg.Agent.ReplayPcap != "" {
		log.Printf("Replaying '%s' every round", cfg.Agent.ReplayPcap)
		capturer = capture.ReplayCapturer{Path: cfg.Agent.ReplayPcap}
	} else {
		live, err := capture.NewLiveCapturer(cfg.Agent)
		if err != nil {
			log.Fatalf("Failed to create capturer: %v", err)
		}
		capturer = live
	}

	s, err := scheduler.New(cfg.Agent, scheduler.Pipeline{
		Capturer:   capturer,
		Reader:     pcap.FileReader{},
		Projector:  projector,
		Gate:       gate,
		Dispatcher: d,
		Sink:       sink,
		Notifier:   notification.NewEmailNotifier(cfg.SMTP),
		Clock:      clock.Real{},
		Metrics:    agentMetrics,
	})
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	// 5. Run until a shutdown signal arrives
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Scheduler exited: %v", err)
	}

	log.Println("Shutdown signal received, stopping agent...")
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Metrics endpoint forced to shutdown: %v", err)
		}
	}
	log.Println("Shutdown complete.")
}

// loadCapability returns the remote scoring service when one is configured,
// otherwise the local model artifact.
func loadCapability(ctx context.Context, cfg config.ClassifierConfig) (model.FeatureSchema, func(), error) {
	if cfg.RemoteAddr == "" {
		m, err := classifier.LoadArtifact(cfg.ModelPath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Loaded classifier from '%s'", cfg.ModelPath)
		return m, func() {}, nil
	}

	client, err := scoringrpc.Dial(cfg.RemoteAddr)
	if err != nil {
		return nil, nil, err
	}
	client.WithCallTimeout(cfg.CallTimeoutDuration())

	describeCtx := ctx
	if timeout := cfg.CallTimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		describeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	capability, err := client.Capability(describeCtx)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Printf("Using remote scoring service at %s", cfg.RemoteAddr)
	return capability, func() { client.Close() }, nil
}

package main

import (
	"NetSentinel/internal/classifier"
	"NetSentinel/internal/classifier/scoringrpc"
	"NetSentinel/internal/config"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	modelPath := flag.String("model", "", "Model artifact to serve (overrides scorer.model_path)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	path := cfg.Scorer.ModelPath
	if *modelPath != "" {
		path = *modelPath
	}
	if path == "" {
		path = cfg.Classifier.ModelPath
	}

	capability, err := classifier.LoadArtifact(path)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	scorer, err := scoringrpc.NewServer(capability)
	if err != nil {
		log.Fatalf("Failed to create scoring service: %v", err)
	}

	lis, err := net.Listen("tcp", cfg.Scorer.GRPCListenAddr)
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	s := grpc.NewServer()
	scoringrpc.RegisterScorerServer(s, scorer)

	go func() {
		log.Printf("Scoring gRPC server starting on %s, serving '%s'", cfg.Scorer.GRPCListenAddr, path)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Scoring server shutting down...")

	s.GracefulStop()
}

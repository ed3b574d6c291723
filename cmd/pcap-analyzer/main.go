package main

import (
	"NetSentinel/internal/classifier"
	"NetSentinel/internal/config"
	"NetSentinel/internal/engine/flowaggregator"
	"NetSentinel/internal/features"
	"NetSentinel/internal/model"
	"NetSentinel/pkg/pcap"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	all := flag.Bool("all", false, "Print every flow, not only the suspicious ones")
	flag.Parse()

	// 1. Get pcap file path from command-line arguments
	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./cmd/pcap-analyzer [-config file] [-all] <path_to_pcap_file>")
		os.Exit(1)
	}
	pcapFilePath := flag.Arg(0)

	// 2. Load configuration and classifier
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	capability, err := classifier.LoadArtifact(cfg.Classifier.ModelPath)
	if err != nil {
		log.Fatalf("Failed to load classifier: %v", err)
	}
	projector, err := features.NewProjector(cfg.Classifier.Features)
	if err != nil {
		log.Fatalf("Failed to create feature projector: %v", err)
	}
	gate, err := classifier.NewGate(capability, cfg.Classifier.Threshold)
	if err != nil {
		log.Fatalf("Failed to create classification gate: %v", err)
	}

	// 3. Read and aggregate
	observations, err := pcap.FileReader{}.ReadObservations(pcapFilePath)
	if err != nil {
		log.Fatalf("Failed to read pcap file: %v", err)
	}
	records := flowaggregator.SortedRecords(flowaggregator.Aggregate(observations))
	log.Printf("Extracted %d flows from %d packets", len(records), len(observations))
	if len(records) == 0 {
		return
	}

	// 4. Score
	vectors := make([]model.FeatureVector, 0, len(records))
	for _, record := range records {
		v, err := projector.Project(record)
		if err != nil {
			log.Fatalf("Failed to project flow %s: %v", record.Key, err)
		}
		vectors = append(vectors, v)
	}
	scored, stats, err := gate.ClassifyRound(context.Background(), records, vectors)
	if err != nil {
		log.Fatalf("Failed to classify flows: %v", err)
	}

	// 5. Report
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SRC\tDST\tPROTO\tPACKETS\tBYTES\tDURATION\tSCORE\tCLASS")
	for _, sf := range scored {
		if !*all && sf.Class != model.Suspicious {
			continue
		}
		k, st := sf.Record.Key, sf.Record.Stats
		fmt.Fprintf(w, "%s:%d\t%s:%d\t%d\t%d\t%d\t%.3fs\t%.3f\t%s\n",
			k.SrcIP, k.SrcPort, k.DstIP, k.DstPort, k.Protocol,
			st.PacketCount, st.TotalBytes, st.DurationSeconds,
			sf.AttackScore, sf.Class)
	}
	w.Flush()
	fmt.Printf("\n%s, %d suspicious\n", stats, len(classifier.Suspicious(scored)))
}

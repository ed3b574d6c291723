package config

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFeatures is the feature order the bundled classifiers were trained with.
var DefaultFeatures = []string{
	"Flow Duration",
	"Total Fwd Packets",
	"Total Length of Fwd Packets",
	"Packet Length Mean",
	"Flow Bytes/s",
	"Flow Packets/s",
}

// AgentConfig holds the capture cycle settings of the sensor.
type AgentConfig struct {
	Interface         string `yaml:"interface"`
	PacketBudget      int    `yaml:"packet_budget"`
	CaptureDir        string `yaml:"capture_dir"`
	SnapshotLen       int32  `yaml:"snapshot_len"`
	Promiscuous       bool   `yaml:"promiscuous"`
	CaptureTimeout    string `yaml:"capture_timeout"`
	RoundCooldown     string `yaml:"round_cooldown"`
	EmptyRoundBackoff string `yaml:"empty_round_backoff"`
	ReplayPcap        string `yaml:"replay_pcap"`
}

// ClassifierConfig selects and parameterizes the scoring capability.
type ClassifierConfig struct {
	ModelPath   string   `yaml:"model_path"`
	RemoteAddr  string   `yaml:"remote_addr"`
	Threshold   float64  `yaml:"threshold"`
	Features    []string `yaml:"features"`
	CallTimeout string   `yaml:"call_timeout"`
}

// DispatcherConfig holds the alert delivery policy.
type DispatcherConfig struct {
	Sink         string `yaml:"sink"` // "http" or "nats"
	CollectorURL string `yaml:"collector_url"`
	Timeout      string `yaml:"timeout"`
	Throttle     string `yaml:"throttle"`
}

// MitigationConfig holds the optional auto-block policy.
type MitigationConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Script         string   `yaml:"script"`
	UseSudo        bool     `yaml:"use_sudo"`
	ScoreThreshold float64  `yaml:"score_threshold"`
	MinPackets     int      `yaml:"min_packets"`
	LocalNetworks  []string `yaml:"local_networks"`
	CacheSize      int      `yaml:"cache_size"`
	Timeout        string   `yaml:"timeout"`
}

// NATSConfig holds the alert transport settings when NATS is used.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// SQLiteConfig holds the SQLite alert store settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// ClickHouseConfig holds the ClickHouse connection details.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CollectorConfig holds the alert collector settings.
type CollectorConfig struct {
	ListenAddr  string           `yaml:"listen_addr"`
	Store       string           `yaml:"store"` // "sqlite" or "clickhouse"
	RecentLimit int              `yaml:"recent_limit"`
	NATSIngest  bool             `yaml:"nats_ingest"`
	SQLite      SQLiteConfig     `yaml:"sqlite"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
}

// ScorerConfig holds the settings of the gRPC scoring service.
type ScorerConfig struct {
	GRPCListenAddr string `yaml:"grpc_listen_addr"`
	ModelPath      string `yaml:"model_path"`
}

// SMTPConfig holds the configuration for the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// MetricsConfig holds the Prometheus endpoint of the agent.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Agent      AgentConfig      `yaml:"agent"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Mitigation MitigationConfig `yaml:"mitigation"`
	NATS       NATSConfig       `yaml:"nats"`
	Collector  CollectorConfig  `yaml:"collector"`
	Scorer     ScorerConfig     `yaml:"scorer"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// LoadConfig reads the configuration from a YAML file, fills in defaults and validates it.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	setString(&c.Agent.Interface, "wlan0")
	setInt(&c.Agent.PacketBudget, 100)
	setString(&c.Agent.CaptureDir, os.TempDir())
	if c.Agent.SnapshotLen <= 0 {
		c.Agent.SnapshotLen = 65535
	}
	setString(&c.Agent.CaptureTimeout, "60s")
	setString(&c.Agent.RoundCooldown, "5s")
	setString(&c.Agent.EmptyRoundBackoff, "10s")

	if c.Classifier.Threshold == 0 {
		c.Classifier.Threshold = 0.5
	}
	if len(c.Classifier.Features) == 0 {
		c.Classifier.Features = append([]string(nil), DefaultFeatures...)
	}
	setString(&c.Classifier.CallTimeout, "5s")

	setString(&c.Dispatcher.Sink, "http")
	setString(&c.Dispatcher.CollectorURL, "http://127.0.0.1:5000/alert")
	setString(&c.Dispatcher.Timeout, "5s")
	setString(&c.Dispatcher.Throttle, "200ms")

	if c.Mitigation.ScoreThreshold == 0 {
		c.Mitigation.ScoreThreshold = 0.8
	}
	setInt(&c.Mitigation.MinPackets, 50)
	if len(c.Mitigation.LocalNetworks) == 0 {
		c.Mitigation.LocalNetworks = []string{"192.168.0.0/16"}
	}
	setInt(&c.Mitigation.CacheSize, 1024)
	setString(&c.Mitigation.Timeout, "10s")

	setString(&c.NATS.URL, "nats://127.0.0.1:4222")
	setString(&c.NATS.Subject, "netsentinel.alerts")

	setString(&c.Collector.ListenAddr, ":5000")
	setString(&c.Collector.Store, "sqlite")
	setInt(&c.Collector.RecentLimit, 50)
	setString(&c.Collector.SQLite.Path, "alerts.db")
	setString(&c.Collector.ClickHouse.Host, "127.0.0.1")
	setInt(&c.Collector.ClickHouse.Port, 9000)
	setString(&c.Collector.ClickHouse.Database, "default")

	setString(&c.Scorer.GRPCListenAddr, ":50051")
	setInt(&c.SMTP.Port, 587)
}

// Validate checks the configuration for values the components cannot work with.
func (c *Config) Validate() error {
	if c.Agent.PacketBudget <= 0 {
		return fmt.Errorf("agent.packet_budget must be positive, got %d", c.Agent.PacketBudget)
	}
	for name, v := range map[string]string{
		"agent.capture_timeout":     c.Agent.CaptureTimeout,
		"agent.round_cooldown":      c.Agent.RoundCooldown,
		"agent.empty_round_backoff": c.Agent.EmptyRoundBackoff,
		"classifier.call_timeout":   c.Classifier.CallTimeout,
		"dispatcher.timeout":        c.Dispatcher.Timeout,
		"dispatcher.throttle":       c.Dispatcher.Throttle,
		"mitigation.timeout":        c.Mitigation.Timeout,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.Classifier.Threshold < 0 || c.Classifier.Threshold > 1 {
		return fmt.Errorf("classifier.threshold must be within [0,1], got %v", c.Classifier.Threshold)
	}
	switch c.Dispatcher.Sink {
	case "http", "nats":
	default:
		return fmt.Errorf("unknown dispatcher.sink: '%s'", c.Dispatcher.Sink)
	}
	switch c.Collector.Store {
	case "sqlite", "clickhouse":
	default:
		return fmt.Errorf("unknown collector.store: '%s'", c.Collector.Store)
	}
	if _, err := c.Mitigation.Prefixes(); err != nil {
		return err
	}
	return nil
}

// CaptureTimeoutDuration returns the upper bound of a single capture call.
func (a AgentConfig) CaptureTimeoutDuration() time.Duration {
	return mustDuration(a.CaptureTimeout)
}

// RoundCooldownDuration is the delay after a round that produced flows.
func (a AgentConfig) RoundCooldownDuration() time.Duration {
	return mustDuration(a.RoundCooldown)
}

// EmptyRoundBackoffDuration is the delay after an empty or failed round.
func (a AgentConfig) EmptyRoundBackoffDuration() time.Duration {
	return mustDuration(a.EmptyRoundBackoff)
}

// CallTimeoutDuration bounds a single remote scoring call.
func (c ClassifierConfig) CallTimeoutDuration() time.Duration {
	return mustDuration(c.CallTimeout)
}

// TimeoutDuration bounds a single alert delivery.
func (d DispatcherConfig) TimeoutDuration() time.Duration {
	return mustDuration(d.Timeout)
}

// ThrottleDuration is the pause between two deliveries.
func (d DispatcherConfig) ThrottleDuration() time.Duration {
	return mustDuration(d.Throttle)
}

// TimeoutDuration bounds a single mitigation call.
func (m MitigationConfig) TimeoutDuration() time.Duration {
	return mustDuration(m.Timeout)
}

// Prefixes parses the configured local networks. A bare address is treated as a single host.
func (m MitigationConfig) Prefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(m.LocalNetworks))
	for _, s := range m.LocalNetworks {
		if p, err := netip.ParsePrefix(s); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid mitigation.local_networks entry '%s': %w", s, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// mustDuration parses a duration that Validate has already accepted.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConnectionMode controls startup behavior when a dependency (Postgres,
// Kafka broker, search index) is unreachable at boot.
type ConnectionMode string

const (
	// ConnectionModeFailFast exits immediately if a dependency is down.
	ConnectionModeFailFast ConnectionMode = "fail-fast"
	// ConnectionModeRetry keeps retrying on a bounded interval instead of exiting.
	ConnectionModeRetry ConnectionMode = "retry"
)

// Config holds all configuration settings for ingestd/searchd/ingestctl.
type Config struct {
	Mode           ConnectionMode `yaml:"mode"`
	ConnectRetry   time.Duration  `yaml:"connect_retry_interval"`
	Storage        StorageConfig  `yaml:"storage"`
	Gateway        GatewayConfig  `yaml:"gateway"`
	Resolver       ResolverConfig `yaml:"resolver"`
	Kafka          KafkaConfig    `yaml:"kafka"`
	Search         SearchConfig   `yaml:"search"`
	Cache          CacheConfig    `yaml:"cache"`
	Neo4j          Neo4jConfig    `yaml:"neo4j"`
	Topology       TopologyConfig `yaml:"topology"`
}

// TopologyConfig configures the canonical graph engine.
type TopologyConfig struct {
	// CanonicalRootSpaceID is the UUID-shaped id of the space the
	// canonical graph is rooted at (spec §4.1 "a canonical graph rooted
	// at a configured space"). Required for cmd/ingestd to start.
	CanonicalRootSpaceID string `yaml:"canonical_root_space_id"`
	ConsumerID            string `yaml:"consumer_id"` // block cursor row key, default "ingestd"
}

// StorageConfig selects and configures the entity/value/relation store.
type StorageConfig struct {
	Type        string `yaml:"type"` // "postgres" or "sqlite"
	PostgresDSN string `yaml:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path"`
}

// GatewayConfig configures the IPFS HTTP gateway and CID resolver.
type GatewayConfig struct {
	URL string `yaml:"url"`
}

// ResolverConfig tunes CID resolver concurrency and backoff.
type ResolverConfig struct {
	Concurrency   int           `yaml:"concurrency"`    // bounded semaphore permits, default 20
	BackoffBase   time.Duration `yaml:"backoff_base"`    // default 10ms
	BackoffFactor float64       `yaml:"backoff_factor"`  // default 2
	BackoffCap    time.Duration `yaml:"backoff_cap"`     // default 5s
	RedisAddr     string        `yaml:"redis_addr"`      // optional distributed rate limiter
	GatewayRPS    float64       `yaml:"gateway_rps"`     // local token-bucket rate, default 50
}

// KafkaConfig configures the search-ingestion consumer.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic"`
	GroupID     string   `yaml:"group_id"`
	SASLUser    string   `yaml:"-"` // never serialized; loaded from keyring/env
	SASLPass    string   `yaml:"-"`
	BatchSize   int      `yaml:"batch_size"`    // default 50
	BatchWindow time.Duration `yaml:"batch_window"` // default 1s
}

// SearchConfig configures the search index provider and loader.
type SearchConfig struct {
	Addresses  []string `yaml:"addresses"`
	IndexAlias string   `yaml:"index_alias"`
	IndexVersion string `yaml:"index_version"`
	BatchSize  int      `yaml:"batch_size"` // loader flush threshold, default 100
}

// CacheConfig configures the IPFS coalescing cache.
type CacheConfig struct {
	Directory string `yaml:"directory"` // bbolt file location for dev mode
	TTL       time.Duration `yaml:"ttl"`
}

// Neo4jConfig configures the optional canonical-graph export sink.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"-"`
	Database string `yaml:"database"`
	Enabled  bool   `yaml:"enabled"`
}

// Default returns sensible defaults matching spec §6's documented defaults.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Mode:         ConnectionModeRetry,
		ConnectRetry: 5 * time.Second,
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLitePath: filepath.Join(homeDir, ".ingestd", "local.db"),
		},
		Gateway: GatewayConfig{
			URL: "https://gateway.ipfs.io/ipfs/",
		},
		Resolver: ResolverConfig{
			Concurrency:   20,
			BackoffBase:   10 * time.Millisecond,
			BackoffFactor: 2,
			BackoffCap:    5 * time.Second,
			GatewayRPS:    50,
		},
		Kafka: KafkaConfig{
			Brokers:     []string{"localhost:9092"},
			Topic:       "edits",
			GroupID:     "search-ingestion",
			BatchSize:   50,
			BatchWindow: time.Second,
		},
		Search: SearchConfig{
			Addresses:    []string{"http://localhost:9200"},
			IndexAlias:   "entities",
			IndexVersion: "v1",
			BatchSize:    100,
		},
		Cache: CacheConfig{
			Directory: filepath.Join(homeDir, ".ingestd", "cache"),
			TTL:       24 * time.Hour,
		},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
			Enabled:  false,
		},
		Topology: TopologyConfig{
			ConsumerID: "ingestd",
		},
	}
}

// Load loads configuration from file, environment, and the OS keychain, in
// that precedence order (env overrides file, keychain fills gaps env
// leaves for secrets).
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("gateway", cfg.Gateway)
	v.SetDefault("resolver", cfg.Resolver)
	v.SetDefault("kafka", cfg.Kafka)
	v.SetDefault("search", cfg.Search)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("neo4j", cfg.Neo4j)
	v.SetDefault("topology", cfg.Topology)

	v.SetEnvPrefix("INGESTD")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".ingestd")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".ingestd"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	if err := applySecrets(cfg); err != nil {
		return nil, fmt.Errorf("failed to resolve secrets: %w", err)
	}

	return cfg, nil
}

func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}

// applyEnvOverrides mirrors spec §6's documented environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INGESTD_GATEWAY_URL"); v != "" {
		cfg.Gateway.URL = v
	}
	if v := os.Getenv("INGESTD_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitCSV(v)
	}
	if v := os.Getenv("INGESTD_KAFKA_GROUP_ID"); v != "" {
		cfg.Kafka.GroupID = v
	}
	if v := os.Getenv("INGESTD_SEARCH_INDEX_ALIAS"); v != "" {
		cfg.Search.IndexAlias = v
	}
	if v := os.Getenv("INGESTD_SEARCH_INDEX_VERSION"); v != "" {
		cfg.Search.IndexVersion = v
	}
	if v := os.Getenv("INGESTD_CONNECT_RETRY_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ConnectRetry = d
		}
	}
	if v := os.Getenv("INGESTD_CONNECTION_MODE"); v != "" {
		switch ConnectionMode(v) {
		case ConnectionModeRetry, ConnectionModeFailFast:
			cfg.Mode = ConnectionMode(v)
		}
	}
	if v := os.Getenv("INGESTD_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
		cfg.Storage.Type = "postgres"
	}
	if v := os.Getenv("INGESTD_RESOLVER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resolver.Concurrency = n
		}
	}
	if v := os.Getenv("INGESTD_KAFKA_SASL_USER"); v != "" {
		cfg.Kafka.SASLUser = v
	}
	if v := os.Getenv("INGESTD_KAFKA_SASL_PASS"); v != "" {
		cfg.Kafka.SASLPass = v
	}
	if v := os.Getenv("INGESTD_CANONICAL_ROOT_SPACE_ID"); v != "" {
		cfg.Topology.CanonicalRootSpaceID = v
	}
	if v := os.Getenv("INGESTD_CONSUMER_ID"); v != "" {
		cfg.Topology.ConsumerID = v
	}
	if v := os.Getenv("INGESTD_NEO4J_URI"); v != "" {
		cfg.Neo4j.URI = v
	}
	if v := os.Getenv("INGESTD_NEO4J_USERNAME"); v != "" {
		cfg.Neo4j.Username = v
	}
	if v := os.Getenv("INGESTD_NEO4J_PASSWORD"); v != "" {
		cfg.Neo4j.Password = v
	}
	if v := os.Getenv("INGESTD_NEO4J_ENABLED"); v != "" {
		cfg.Neo4j.Enabled = v == "true" || v == "1"
	}
}

// applySecrets fills SASL credentials from the OS keychain when neither the
// config file nor the environment supplied one, following the teacher's
// keychain-over-config-file precedence (config/keyring.go).
func applySecrets(cfg *Config) error {
	if cfg.Kafka.SASLUser != "" && cfg.Kafka.SASLPass != "" {
		return nil
	}
	km := NewKeyringManager()
	if !km.IsAvailable() {
		return nil
	}
	if cfg.Kafka.SASLUser == "" {
		if user, err := km.GetSASLUser(); err == nil && user != "" {
			cfg.Kafka.SASLUser = user
		}
	}
	if cfg.Kafka.SASLPass == "" {
		if pass, err := km.GetSASLPassword(); err == nil && pass != "" {
			cfg.Kafka.SASLPass = pass
		}
	}
	return nil
}

// SASLEnabled reports whether SASL_SSL should be enabled for the Kafka
// client: both username and password must be present (spec §6).
func (c *Config) SASLEnabled() bool {
	return c.Kafka.SASLUser != "" && c.Kafka.SASLPass != ""
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// Save writes configuration to a YAML file, never including secret fields
// (they carry `yaml:"-"` tags and are excluded automatically).
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("mode", c.Mode)
	v.Set("storage", c.Storage)
	v.Set("gateway", c.Gateway)
	v.Set("resolver", c.Resolver)
	v.Set("kafka", c.Kafka)
	v.Set("search", c.Search)
	v.Set("cache", c.Cache)
	v.Set("neo4j", c.Neo4j)
	v.Set("topology", c.Topology)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

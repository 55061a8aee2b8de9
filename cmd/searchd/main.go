// Command searchd runs the Search Indexing Pipeline: it consumes the edits
// Kafka topic, turns each batch of Ops into entity document mutations, and
// loads them into the configured search index via the Search Index
// Provider contract.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hermesgraph/ingestd/internal/config"
	ingesterrors "github.com/hermesgraph/ingestd/internal/errors"
	"github.com/hermesgraph/ingestd/internal/logging"
	"github.com/hermesgraph/ingestd/internal/search"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "searchd",
	Short: "Search Indexing Pipeline daemon",
	Long: `searchd consumes the edits Kafka topic, batches and translates Ops into
entity document mutations, and loads them into the search index (spec §4.4,
§4.5).`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logrus.New()
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger.WithError(err).Warn("failed to load config, using defaults")
			cfg = config.Default()
		}
	},
	RunE: runSearchd,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .ingestd/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate(`searchd {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)
}

func runSearchd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received, stopping without flushing the in-flight batch")
		cancel()
	}()

	appLogger, err := logging.NewLogger(logging.Config{Level: bootLevel()})
	if err != nil {
		return ingesterrors.ConfigError(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	fmt.Printf("searchd starting (mode=%s)\n", cfg.Mode)

	fmt.Printf("[1/4] Connecting search index provider (%v)...\n", cfg.Search.Addresses)
	provider, err := connectProvider(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("search provider connection failed: %w", err)
	}
	if err := provider.EnsureIndexExists(ctx); err != nil {
		return fmt.Errorf("failed to ensure index exists: %w", err)
	}
	fmt.Printf("  ok index %q ready\n", indexName(cfg))

	fmt.Printf("[2/4] Building Kafka consumer (brokers=%v topic=%s group=%s)...\n",
		cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	consumer := search.NewConsumer(search.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		GroupID:     cfg.Kafka.GroupID,
		SASLUser:    cfg.Kafka.SASLUser,
		SASLPass:    cfg.Kafka.SASLPass,
		BatchSize:   cfg.Kafka.BatchSize,
		BatchWindow: cfg.Kafka.BatchWindow,
	}, appLogger)
	defer consumer.Close()
	fmt.Printf("  ok consumer ready (sasl=%v)\n", cfg.SASLEnabled())

	fmt.Printf("[3/4] Building processor and loader...\n")
	processor := search.NewProcessor()
	loader := search.NewLoader(search.LoaderConfig{BatchSize: cfg.Search.BatchSize}, provider, appLogger)
	fmt.Printf("  ok loader flush threshold=%d\n", cfg.Search.BatchSize)

	fmt.Printf("[4/4] Starting orchestrator...\n")
	orchestrator := search.NewOrchestrator(consumer, processor, loader, appLogger)

	fmt.Printf("searchd running\n")
	return orchestrator.Run(ctx)
}

func connectProvider(ctx context.Context, cfg *config.Config, logger *logging.Logger) (search.SearchIndexProvider, error) {
	attempt := func() (search.SearchIndexProvider, error) {
		return search.NewElasticsearchProvider(search.ElasticsearchProviderConfig{
			Addresses:  cfg.Search.Addresses,
			IndexAlias: indexName(cfg),
			BatchCap:   0,
		}, logger)
	}

	provider, err := attempt()
	if err == nil || cfg.Mode == config.ConnectionModeFailFast {
		return provider, err
	}

	for {
		logger.Warn("search provider connection failed, retrying", "error", err, "retry_in", cfg.ConnectRetry)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.ConnectRetry):
		}
		if provider, err = attempt(); err == nil {
			return provider, nil
		}
	}
}

// indexName combines the configured alias and version, so a reindex can
// point a new alias at a freshly built index without downtime.
func indexName(cfg *config.Config) string {
	return cfg.Search.IndexAlias + "-" + cfg.Search.IndexVersion
}

func bootLevel() logging.LogLevel {
	if verbose {
		return logging.DEBUG
	}
	return logging.INFO
}

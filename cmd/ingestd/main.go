// Command ingestd runs the Edit Ingestion Pipeline: it consumes the chain
// block stream, preprocesses each block (blocklist filtering, CID
// resolution, plugin joins), applies the resulting events to the topology
// engine, and persists everything to the configured store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" sql.DB driver

	"github.com/hermesgraph/ingestd/internal/chain"
	"github.com/hermesgraph/ingestd/internal/config"
	ingesterrors "github.com/hermesgraph/ingestd/internal/errors"
	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/ingest"
	"github.com/hermesgraph/ingestd/internal/ipfscache"
	"github.com/hermesgraph/ingestd/internal/logging"
	"github.com/hermesgraph/ingestd/internal/model"
	"github.com/hermesgraph/ingestd/internal/retry"
	"github.com/hermesgraph/ingestd/internal/storage"
	"github.com/hermesgraph/ingestd/internal/topology"
	"github.com/hermesgraph/ingestd/internal/topology/export"
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
	Use:   "ingestd",
	Short: "Edit Ingestion Pipeline daemon",
	Long: `ingestd consumes the chain block stream, preprocesses each block's
actions against the blocklist and IPFS cache, and applies the resulting
events to the canonical topology engine and the entity/value/relation store.`,
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
	RunE: runIngestd,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .ingestd/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate(`ingestd {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)
}

func runIngestd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received, stopping after the in-flight block")
		cancel()
	}()

	bootLogger, err := logging.NewLogger(logging.Config{Level: bootLevel()})
	if err != nil {
		return ingesterrors.ConfigError(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	fmt.Printf("ingestd starting (mode=%s)\n", cfg.Mode)

	fmt.Printf("[1/6] Connecting to store (%s)...\n", cfg.Storage.Type)
	store, err := connectStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("store connection failed: %w", err)
	}
	defer store.Close()
	fmt.Printf("  ok store connected\n")

	fmt.Printf("[2/6] Opening IPFS cache...\n")
	cache, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("cache initialization failed: %w", err)
	}
	coalescing := ipfscache.NewCoalescingCache(cache, cfg.Cache.TTL)
	fmt.Printf("  ok cache ready\n")

	fmt.Printf("[3/6] Building CID resolver...\n")
	limiter, err := buildLimiter(cfg)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}
	resolver := ipfscache.NewResolver(ipfscache.ResolverConfig{
		GatewayURL:  cfg.Gateway.URL,
		Concurrency: int64(cfg.Resolver.Concurrency),
		RetryPolicy: retryPolicy(cfg),
		ConsumerID:  cfg.Topology.ConsumerID,
	}, coalescing, limiter, bootLogger)
	fmt.Printf("  ok resolver ready (gateway=%s, concurrency=%d)\n", cfg.Gateway.URL, cfg.Resolver.Concurrency)

	fmt.Printf("[4/6] Building topology engine and handler...\n")
	canonicalRoot, err := ids.ParseID(cfg.Topology.CanonicalRootSpaceID)
	if err != nil {
		return ingesterrors.ConfigError(fmt.Sprintf("INGESTD_CANONICAL_ROOT_SPACE_ID is required and must be a UUID: %v", err))
	}
	engine := topology.NewEngine(canonicalRoot)
	mirror, err := buildMirror(ctx, cfg)
	if err != nil {
		return fmt.Errorf("neo4j mirror initialization failed: %w", err)
	}
	handler := ingest.NewHandler(store, engine, mirror, cfg.Topology.ConsumerID, logger)
	preprocessor := ingest.NewPreprocessor(blocklistFromEnv(), resolver, logger)
	fmt.Printf("  ok engine rooted at %s\n", canonicalRoot)

	fmt.Printf("[5/6] Loading resume cursor...\n")
	cursor, blockNumber, err := store.LoadBlockCursor(ctx, cfg.Topology.ConsumerID)
	if err != nil {
		return fmt.Errorf("failed to load block cursor: %w", err)
	}
	fmt.Printf("  ok resuming from block %d (cursor=%q)\n", blockNumber, cursor)

	fmt.Printf("[6/6] Acquiring block source...\n")
	source, err := newBlockSource(cfg)
	if err != nil {
		return fmt.Errorf("block source unavailable: %w", err)
	}
	defer source.Close()
	fmt.Printf("  ok block source ready\n")

	fmt.Printf("ingestd running\n")
	return runBlockLoop(ctx, source, preprocessor, handler, logger)
}

// runBlockLoop pulls BlockScopedData/UndoSignal pairs from source until ctx
// is done, dispatching each to the preprocessor/handler pair. Per spec §5
// blocks are processed strictly in order and a block's cursor is only
// persisted once it is fully handled.
func runBlockLoop(ctx context.Context, source chain.BlockSource, pre *ingest.Preprocessor, handler *ingest.Handler, logger *logrus.Logger) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		data, undo, err := source.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("block source error: %w", err)
		}

		if undo != nil {
			if err := handler.HandleUndo(undo.LastValidBlock); err != nil {
				logger.WithError(err).WithField("last_valid_block", undo.LastValidBlock).
					Error("undo handling failed")
			}
			continue
		}

		output, err := assembleOutput(data.MapOutputRaw)
		if err != nil {
			logger.WithError(err).WithField("block_number", data.Clock.Number).
				Warn("failed to assemble block output, skipping block (cursor still advances)")
			continue
		}

		preprocessed := pre.Process(ctx, data.Clock.Number, data.Cursor, output)
		if err := handler.HandleBlock(ctx, data.Clock.Number, data.Cursor, preprocessed); err != nil {
			return fmt.Errorf("block %d handling failed: %w", data.Clock.Number, err)
		}
	}
}

func connectStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (storage.Store, error) {
	attempt := func() (storage.Store, error) {
		switch cfg.Storage.Type {
		case "postgres":
			return storage.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
		default:
			return storage.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
		}
	}

	store, err := attempt()
	if err == nil || cfg.Mode == config.ConnectionModeFailFast {
		return store, err
	}

	for {
		logger.WithError(err).WithField("retry_in", cfg.ConnectRetry).Warn("store connection failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.ConnectRetry):
		}
		if store, err = attempt(); err == nil {
			return store, nil
		}
	}
}

func openCache(cfg *config.Config) (ipfscache.Cache, error) {
	if cfg.Storage.Type == "postgres" {
		db, err := sqlx.Connect("pgx", cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, ingesterrors.DatabaseError(err, "connect ipfs cache to postgres")
		}
		return ipfscache.NewPostgresCache(db), nil
	}
	return ipfscache.OpenBboltCache(cfg.Cache.Directory)
}

func buildLimiter(cfg *config.Config) (ipfscache.Limiter, error) {
	if cfg.Resolver.RedisAddr == "" {
		return ipfscache.NewLocalRateLimiter(cfg.Resolver.GatewayRPS), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Resolver.RedisAddr})
	distributed := ipfscache.NewDistributedRateLimiter(client, "ingestd:cid-resolver", cfg.Resolver.GatewayRPS)
	return ipfscache.WrapDistributed(distributed), nil
}

// buildMirror returns a Neo4j canonical-graph mirror when cfg.Neo4j.Enabled,
// or a no-op mirror otherwise. A mirror connection failure is fatal: if an
// operator asked for the sink, a silently-disabled one would hide data loss.
func buildMirror(ctx context.Context, cfg *config.Config) (export.Mirror, error) {
	if !cfg.Neo4j.Enabled {
		return export.NoopMirror{}, nil
	}
	return export.NewNeo4jMirror(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database, 1000)
}

func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		Base:   cfg.Resolver.BackoffBase,
		Factor: cfg.Resolver.BackoffFactor,
		Cap:    cfg.Resolver.BackoffCap,
	}
}

// assembleOutput turns one block's raw output bytes into a typed
// model.Output. The real substream/ABI framing that discriminates and
// delimits multiple actions within a block is produced by the chain
// integration this repo doesn't implement (see newBlockSource); until one
// is wired in, this always reports a protocol error rather than guessing
// at an unspecified multi-action layout.
func assembleOutput(raw []byte) (model.Output, error) {
	if len(raw) == 0 {
		return model.Output{}, nil
	}
	return model.Output{}, ingesterrors.ProtocolErrorf("no block output assembler wired for %d raw bytes", len(raw))
}

func bootLevel() logging.LogLevel {
	if verbose {
		return logging.DEBUG
	}
	return logging.INFO
}

func blocklistFromEnv() []ids.Address {
	raw := os.Getenv("INGESTD_DAO_BLOCKLIST")
	if raw == "" {
		return nil
	}
	var out []ids.Address
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		addr, err := ids.ParseAddress(s)
		if err != nil {
			logger.WithError(err).WithField("address", s).Warn("ignoring invalid blocklist address")
			continue
		}
		out = append(out, addr)
	}
	return out
}

// newBlockSource resolves the operator-supplied chain.BlockSource. The
// substream/node connection itself is out of scope (internal/chain's
// package doc); this seam is where a deployment wires in its concrete
// implementation. Absent one, ingestd fails fast at startup rather than
// silently running an idle loop.
func newBlockSource(cfg *config.Config) (chain.BlockSource, error) {
	return nil, ingesterrors.ConfigError(
		"no chain.BlockSource implementation is wired; supply one via a deployment-specific build (see internal/chain package doc)")
}

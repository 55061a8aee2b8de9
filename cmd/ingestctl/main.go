// Command ingestctl is the operator CLI for ingestd/searchd: it writes the
// default config file, walks through interactive SASL credential setup,
// and reports resume-cursor and storage status.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hermesgraph/ingestd/internal/config"
	"github.com/hermesgraph/ingestd/internal/storage"
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
	Use:     "ingestctl",
	Short:   "Operator CLI for ingestd/searchd",
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
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .ingestd/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate(`ingestctl {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(statusCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	path := filepath.Join(homeDir, ".ingestd", "config.yaml")

	defaults := config.Default()
	if err := defaults.Save(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote default config to %s\n", path)
	fmt.Printf("Edit it, or override with INGESTD_* environment variables, before starting ingestd/searchd.\n")
	return nil
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Interactively set Kafka SASL credentials in the OS keychain",
	Long: `Walks through storing the Kafka SASL_SSL username and password for
searchd's consumer. Credentials are saved to the OS keychain when available,
following the same keychain-over-config-file precedence ingestd/searchd use
at startup.`,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	fmt.Println("ingestctl configure")
	fmt.Println(strings.Repeat("-", 32))

	km := config.NewKeyringManager()
	if !km.IsAvailable() {
		fmt.Println("OS keychain not available on this system; credentials must instead be")
		fmt.Println("set via INGESTD_KAFKA_SASL_USER / INGESTD_KAFKA_SASL_PASS.")
		return nil
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Kafka SASL username (blank to skip): ")
	line, _ := reader.ReadString('\n')
	user := strings.TrimSpace(line)
	if user != "" {
		if err := km.SaveSASLUser(user); err != nil {
			return fmt.Errorf("save sasl user: %w", err)
		}
		fmt.Println("  saved username to keychain")
	}

	pass, err := readSecretly("Kafka SASL password (blank to skip): ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if pass != "" {
		if err := km.SaveSASLPassword(pass); err != nil {
			return fmt.Errorf("save sasl password: %w", err)
		}
		fmt.Println("  saved password to keychain")
	}

	return nil
}

// readSecretly reads a line without echoing it when stdin is a terminal,
// falling back to a plain line read for piped input.
func readSecretly(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		bytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage connectivity and the current resume cursor",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Println("ingestctl status")
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("Mode:     %s\n", cfg.Mode)
	fmt.Printf("Storage:  %s\n", cfg.Storage.Type)
	fmt.Printf("Gateway:  %s\n", cfg.Gateway.URL)
	fmt.Printf("Search:   %v (alias=%s version=%s)\n", cfg.Search.Addresses, cfg.Search.IndexAlias, cfg.Search.IndexVersion)
	fmt.Printf("Kafka:    %v (topic=%s group=%s sasl=%v)\n", cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.SASLEnabled())

	var store storage.Store
	var err error
	switch cfg.Storage.Type {
	case "postgres":
		store, err = storage.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
	default:
		store, err = storage.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
	}
	if err != nil {
		fmt.Printf("\nStore:    unreachable (%v)\n", err)
		return nil
	}
	defer store.Close()
	fmt.Printf("\nStore:    connected\n")

	cursor, blockNumber, err := store.LoadBlockCursor(ctx, cfg.Topology.ConsumerID)
	if err != nil {
		fmt.Printf("Cursor:   unavailable (%v)\n", err)
		return nil
	}
	fmt.Printf("Cursor:   consumer=%q block=%d cursor=%q\n", cfg.Topology.ConsumerID, blockNumber, cursor)
	return nil
}

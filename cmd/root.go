package cmd

import (
	"context"
	"fmt"
	"os"

	"civicdocs/internal/config"
	"civicdocs/internal/embedder"
	"civicdocs/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// queryCacheSize bounds the query-embedding cache of the interactive surfaces.
const queryCacheSize = 256

var (
	flagConfig   string
	flagDB       string
	flagLogLevel string
	flagProvider string
	flagModel    string
	flagDim      int
)

var (
	cfg *config.Config
	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:           "civicdocs",
	Short:         "Semantic search over civic documents",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("db") {
			c.DBPath = flagDB
		}
		if flags.Changed("log-level") {
			c.LogLevel = flagLogLevel
		}
		if flags.Changed("provider") {
			c.Embedder.Provider = flagProvider
		}
		if flags.Changed("model") {
			c.Embedder.Model = flagModel
		}
		if flags.Changed("dim") {
			c.Embedder.Dim = flagDim
		}
		if err := c.Validate(); err != nil {
			return err
		}

		level, _ := logrus.ParseLevel(c.LogLevel)
		log.SetLevel(level)
		log.SetOutput(os.Stderr)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		cfg = c
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "civicdocs.yaml", "YAML config file (ignored if missing)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", config.DefaultDBPath, "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", config.DefaultProvider, "embedding provider (stub, openai, ollama)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "embedding model identifier")
	rootCmd.PersistentFlags().IntVar(&flagDim, "dim", config.DefaultDim, "embedding dimension for the stub provider")
}

func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

// queryEmbedder wraps the configured embedder with an LRU cache.
func queryEmbedder() (embedder.Embedder, error) {
	e, err := embedder.New(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	return embedder.NewCached(e, queryCacheSize)
}

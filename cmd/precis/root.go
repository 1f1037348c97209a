package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/precis-ai/precis/internal/cache"
	"github.com/precis-ai/precis/internal/config"
	"github.com/precis-ai/precis/internal/llm"
	"github.com/precis-ai/precis/internal/logger"
	"github.com/precis-ai/precis/internal/summarize"
	"github.com/precis-ai/precis/internal/token"
)

const version = "0.1.0-dev"

var (
	flagConfigPath string
	flagModel      string
	flagDBPath     string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "precis",
	Short: "Document summarization with caching",
	Long: `Precis summarizes documents (PDF, HTML, text, markdown) with an LLM.

Large documents are split into semantic chunks and summarized hierarchically.
Results are cached by content fingerprint, so summarizing an unchanged file
returns instantly.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file (default ~/.precis/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "provider/model, e.g. openai/gpt-4o-mini or anthropic/claude-haiku-4-5")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "cache database path (default ~/.precis/precis.db)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}

// resolveConfig merges config file, environment, and CLI flags. Flags that
// only exist on some subcommands are read through Changed so unset values
// never shadow the config file.
func resolveConfig(cmd *cobra.Command) (config.ResolvedConfig, error) {
	opts := config.ResolveOptions{
		ConfigPath:  flagConfigPath,
		CLIModel:    flagModel,
		CLIDBPath:   flagDBPath,
		CLILogLevel: flagLogLevel,
	}
	if cmd.Flags().Changed("context-tokens") {
		opts.CLIContextTokens = strconv.Itoa(flagContextTokens)
	}
	if cmd.Flags().Changed("batch-size") {
		opts.CLIBatchSize = strconv.Itoa(flagBatchSize)
	}
	if cmd.Flags().Changed("language") {
		opts.CLILanguage = flagLanguage
	}
	return config.ResolveConfig(opts)
}

func newLogger(cfg config.ResolvedConfig) logger.Logger {
	return logger.New(os.Stderr, cfg.LogLevel.Value)
}

func openCache(cfg config.ResolvedConfig) (*cache.Cache, error) {
	return cache.New(cache.Config{
		DBPath:   cfg.DBPath.Value,
		Capacity: cfg.CacheCapacity.IntOr(cache.DefaultCapacity),
		TTL:      time.Duration(cfg.CacheTTLHours.IntOr(0)) * time.Hour,
	})
}

func newProvider(cfg config.ResolvedConfig) (llm.Provider, error) {
	provCfg, err := llm.ParseModelFlag(cfg.Model.Value)
	if err != nil {
		return nil, err
	}
	if key := cfg.APIKeyForProvider(provCfg.Provider); key.Value != "" {
		provCfg.APIKey = key.Value
	}
	provider, err := llm.NewProvider(provCfg)
	if err != nil {
		return nil, fmt.Errorf("configuring LLM provider: %w", err)
	}
	return provider, nil
}

// newPipeline wires a summarization pipeline for one target language.
func newPipeline(cfg config.ResolvedConfig, provider llm.Provider, language string, log logger.Logger, progress summarize.ProgressFunc) *summarize.Pipeline {
	backend := &summarize.ProviderBackend{Provider: provider}
	est := token.NewEstimator(token.DefaultEstimatorConfig())
	return summarize.New(backend, est, summarize.Options{
		BatchSize: cfg.BatchSize.IntOr(0),
		Language:  language,
		Progress:  progress,
		Logger:    log,
	})
}

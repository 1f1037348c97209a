// Package config resolves precis settings from YAML file, environment, and
// CLI flags, tracking where each value came from. Precedence is
// CLI > env > config file > built-in default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is a setting plus its provenance, for `precis config show`
// style introspection.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// IntOr parses the value as an integer, falling back to def when unset or
// unparseable.
func (v ResolvedValue) IntOr(def int) int {
	s := strings.TrimSpace(v.Value)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ResolveOptions carries CLI flag values into resolution.
type ResolveOptions struct {
	ConfigPath       string
	CLIModel         string
	CLIDBPath        string
	CLIContextTokens string
	CLIBatchSize     string
	CLILanguage      string
	CLILogLevel      string
}

// ResolvedConfig is the full resolved configuration.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath        ResolvedValue `json:"db_path"`
	Model         ResolvedValue `json:"model"`          // provider/model
	ContextTokens ResolvedValue `json:"context_tokens"` // model context window
	BatchSize     ResolvedValue `json:"batch_size"`
	Language      ResolvedValue `json:"language"` // summary target language
	LogLevel      ResolvedValue `json:"log_level"`

	CacheTTLHours ResolvedValue `json:"cache_ttl_hours"`
	CacheCapacity ResolvedValue `json:"cache_capacity"`

	APIKeys map[string]ResolvedValue `json:"api_keys,omitempty"`
}

type fileConfig struct {
	DBPath        string `yaml:"db_path"`
	Model         string `yaml:"model"`
	ContextTokens int    `yaml:"context_tokens"`
	BatchSize     int    `yaml:"batch_size"`
	Language      string `yaml:"language"`
	LogLevel      string `yaml:"log_level"`
	Cache         struct {
		TTLHours int `yaml:"ttl_hours"`
		Capacity int `yaml:"capacity"`
	} `yaml:"cache"`
	LLM struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"llm"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".precis", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath: path,
		APIKeys:    map[string]ResolvedValue{},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Model, cfg.Model, SourceConfig, path)
		applyInt(&out.ContextTokens, cfg.ContextTokens, SourceConfig, path)
		applyInt(&out.BatchSize, cfg.BatchSize, SourceConfig, path)
		apply(&out.Language, cfg.Language, SourceConfig, path)
		apply(&out.LogLevel, cfg.LogLevel, SourceConfig, path)
		applyInt(&out.CacheTTLHours, cfg.Cache.TTLHours, SourceConfig, path)
		applyInt(&out.CacheCapacity, cfg.Cache.Capacity, SourceConfig, path)

		if key := strings.TrimSpace(cfg.LLM.APIKey); key != "" {
			provider := providerOf(cfg.Model)
			if provider == "" {
				provider = "default"
			}
			out.APIKeys[provider] = ResolvedValue{Value: key, Source: SourceConfig, From: path}
		}
	}

	applyEnv(&out.DBPath, "PRECIS_DB")
	applyEnv(&out.Model, "PRECIS_MODEL")
	applyEnv(&out.ContextTokens, "PRECIS_CONTEXT_TOKENS")
	applyEnv(&out.BatchSize, "PRECIS_BATCH_SIZE")
	applyEnv(&out.Language, "PRECIS_LANGUAGE")
	applyEnv(&out.LogLevel, "PRECIS_LOG_LEVEL")
	applyEnv(&out.CacheTTLHours, "PRECIS_CACHE_TTL_HOURS")
	applyEnv(&out.CacheCapacity, "PRECIS_CACHE_CAPACITY")

	for env, provider := range map[string]string{
		"OPENAI_API_KEY":     "openai",
		"ANTHROPIC_API_KEY":  "anthropic",
		"OPENROUTER_API_KEY": "openrouter",
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			out.APIKeys[provider] = ResolvedValue{Value: v, Source: SourceEnv, From: env}
		}
	}

	apply(&out.Model, opts.CLIModel, SourceCLI, "--model")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.ContextTokens, opts.CLIContextTokens, SourceCLI, "--context-tokens")
	apply(&out.BatchSize, opts.CLIBatchSize, SourceCLI, "--batch-size")
	apply(&out.Language, opts.CLILanguage, SourceCLI, "--language")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// APIKeyForProvider returns the resolved key for a "provider" or
// "provider/model" string.
func (r ResolvedConfig) APIKeyForProvider(providerOrModel string) ResolvedValue {
	provider := providerOf(providerOrModel)
	if provider == "" {
		return ResolvedValue{}
	}
	if v, ok := r.APIKeys[provider]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	if v, ok := r.APIKeys["default"]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	return ResolvedValue{}
}

func providerOf(providerOrModel string) string {
	v := strings.ToLower(strings.TrimSpace(providerOrModel))
	if v == "" {
		return ""
	}
	if idx := strings.Index(v, "/"); idx > 0 {
		return v[:idx]
	}
	return v
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyInt(dst *ResolvedValue, raw int, source ValueSource, from string) {
	if raw <= 0 {
		return
	}
	*dst = ResolvedValue{Value: strconv.Itoa(raw), Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

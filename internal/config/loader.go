package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "devorch.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	// Logging
	setString(&cfg.Logging.Level, "DEVORCH_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DEVORCH_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "DEVORCH_LOG_ASYNC")

	// Git
	setString(&cfg.Git.Executable, "DEVORCH_GIT_EXECUTABLE")
	setString(&cfg.Git.DefaultBranch, "DEVORCH_DEFAULT_BRANCH")
	setString(&cfg.Git.BranchPrefix, "DEVORCH_BRANCH_PREFIX")
	setList(&cfg.Git.Protected, "DEVORCH_PROTECTED_BRANCHES")
	setDuration(&cfg.Git.CommandTimeout, "DEVORCH_GIT_TIMEOUT")
	setDuration(&cfg.Git.CloneTimeout, "DEVORCH_GIT_CLONE_TIMEOUT")
	setInt(&cfg.Git.MaxConcurrent, "DEVORCH_GIT_MAX_CONCURRENT")

	// Ledger
	setString(&cfg.Ledger.RunsDir, "DEVORCH_RUNS_DIR")

	// Orchestrator
	setString(&cfg.Orchestrator.Mode, "DEVORCH_MODE")
	setBool(&cfg.Orchestrator.DryRun, "DEVORCH_DRY_RUN")
	setBool(&cfg.Orchestrator.FailFast, "DEVORCH_FAIL_FAST")
	setString(&cfg.Orchestrator.CommitPrefix, "DEVORCH_COMMIT_PREFIX")

	// Generator
	setString(&cfg.Generator.Backend, "DEVORCH_GENERATOR")
	setDuration(&cfg.Generator.Timeout, "DEVORCH_GENERATOR_TIMEOUT")
	setInt(&cfg.Generator.MaxAttempts, "DEVORCH_GENERATOR_MAX_ATTEMPTS")
	setDuration(&cfg.Generator.InitialDelay, "DEVORCH_GENERATOR_INITIAL_DELAY")

	// LiteLLM
	setString(&cfg.LiteLLM.URL, "LITELLM_BASE_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LiteLLM.Model, "DEVORCH_LLM_MODEL")

	// Breaker
	setInt(&cfg.Breaker.MaxFailures, "DEVORCH_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "DEVORCH_BREAKER_TIMEOUT")

	// Cache
	setInt64(&cfg.Cache.MaxCostBytes, "DEVORCH_CACHE_MAX_COST")
	setDuration(&cfg.Cache.TTL, "DEVORCH_CACHE_TTL")

	// Context
	setInt(&cfg.Context.MaxFileBytes, "DEVORCH_CONTEXT_MAX_FILE_BYTES")

	// NATS
	setString(&cfg.NATS.URL, "NATS_URL")

	// Telemetry
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "DEVORCH_OTEL_INSECURE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Git.Executable == "" {
		return errors.New("git.executable is required")
	}
	if cfg.Git.BranchPrefix == "" {
		return errors.New("git.branch_prefix is required")
	}
	if cfg.Git.CommandTimeout <= 0 {
		return errors.New("git.command_timeout must be > 0")
	}
	if cfg.Git.CloneTimeout <= 0 {
		return errors.New("git.clone_timeout must be > 0")
	}
	if cfg.Git.MaxConcurrent < 1 {
		return errors.New("git.max_concurrent must be >= 1")
	}
	if cfg.Ledger.RunsDir == "" {
		return errors.New("ledger.runs_dir is required")
	}
	switch cfg.Orchestrator.Mode {
	case "linear", "phased":
	default:
		return fmt.Errorf("orchestrator.mode must be linear or phased, got %q", cfg.Orchestrator.Mode)
	}
	switch cfg.Generator.Backend {
	case "heuristic", "litellm":
	default:
		return fmt.Errorf("generator.backend must be heuristic or litellm, got %q", cfg.Generator.Backend)
	}
	if cfg.Generator.MaxAttempts < 1 {
		return errors.New("generator.max_attempts must be >= 1")
	}
	if cfg.Generator.Backend == "litellm" && cfg.LiteLLM.URL == "" {
		return errors.New("litellm.url is required for the litellm backend")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Cache.MaxCostBytes < 1 {
		return errors.New("cache.max_cost_bytes must be >= 1")
	}
	if cfg.Context.MaxFileBytes < 1 {
		return errors.New("context.max_file_bytes must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setList parses a comma-separated value, dropping empty items.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

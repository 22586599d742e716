// Package config provides hierarchical configuration loading for devorch.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the orchestrator.
type Config struct {
	Logging      Logging      `yaml:"logging"`
	Git          Git          `yaml:"git"`
	Ledger       Ledger       `yaml:"ledger"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	Generator    Generator    `yaml:"generator"`
	LiteLLM      LiteLLM      `yaml:"litellm"`
	Breaker      Breaker      `yaml:"breaker"`
	Cache        Cache        `yaml:"cache"`
	Context      Context      `yaml:"context"`
	NATS         NATS         `yaml:"nats"`
	Telemetry    Telemetry    `yaml:"telemetry"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Git holds version-control safety layer configuration.
type Git struct {
	Executable     string        `yaml:"executable"`
	DefaultBranch  string        `yaml:"default_branch"`
	BranchPrefix   string        `yaml:"branch_prefix"`
	Protected      []string      `yaml:"protected"` // glob patterns added to main/master/develop/production
	CommandTimeout time.Duration `yaml:"command_timeout"`
	CloneTimeout   time.Duration `yaml:"clone_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
}

// Ledger holds run persistence configuration.
type Ledger struct {
	RunsDir string `yaml:"runs_dir"`
}

// Orchestrator holds execution engine configuration.
type Orchestrator struct {
	Mode         string `yaml:"mode"` // "linear" | "phased" (default: "linear")
	DryRun       bool   `yaml:"dry_run"`
	FailFast     bool   `yaml:"fail_fast"`
	CommitPrefix string `yaml:"commit_prefix"`
}

// Generator selects and bounds the proposal generator backend.
type Generator struct {
	Backend      string        `yaml:"backend"` // "heuristic" | "litellm"
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// LiteLLM holds LiteLLM proxy configuration.
type LiteLLM struct {
	URL       string `yaml:"url"`
	MasterKey string `yaml:"master_key"`
	Model     string `yaml:"model"`
}

// Breaker holds circuit breaker configuration.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Cache holds the in-process repository content cache configuration.
type Cache struct {
	MaxCostBytes int64         `yaml:"max_cost_bytes"`
	TTL          time.Duration `yaml:"ttl"`
}

// Context bounds the repository snapshot handed to roles.
type Context struct {
	MaxFileBytes int `yaml:"max_file_bytes"`
}

// NATS holds run event publishing configuration. An empty URL disables publishing.
type NATS struct {
	URL string `yaml:"url"`
}

// Telemetry holds OpenTelemetry export configuration. An empty endpoint
// keeps the no-op providers.
type Telemetry struct {
	Endpoint string `yaml:"endpoint"` // OTLP gRPC host:port
	Insecure bool   `yaml:"insecure"`
}

// Defaults returns a Config with sensible default values for local use.
func Defaults() Config {
	return Config{
		Logging: Logging{
			Level:   "info",
			Service: "devorch",
		},
		Git: Git{
			Executable:     "git",
			DefaultBranch:  "main",
			BranchPrefix:   "orchestrator",
			CommandTimeout: 120 * time.Second,
			CloneTimeout:   300 * time.Second,
			MaxConcurrent:  4,
		},
		Ledger: Ledger{
			RunsDir: "runs",
		},
		Orchestrator: Orchestrator{
			Mode:         "linear",
			CommitPrefix: "[orchestrator]",
		},
		Generator: Generator{
			Backend:      "heuristic",
			Timeout:      300 * time.Second,
			MaxAttempts:  2,
			InitialDelay: time.Second,
		},
		LiteLLM: LiteLLM{
			URL:   "http://localhost:4000",
			Model: "openai/gpt-4o-mini",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Cache: Cache{
			MaxCostBytes: 64 << 20,
			TTL:          10 * time.Minute,
		},
		Context: Context{
			MaxFileBytes: 5000,
		},
	}
}

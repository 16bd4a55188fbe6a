// Package config loads service configuration from an optional YAML
// file with environment variable overrides.
//
// Environment always wins: a value set via NEO4J_URI overrides the
// same field from the YAML file, which in turn overrides the built-in
// default. This keeps container deployments configurable without a
// mounted file while letting local development pin everything in one
// place.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LLM provider names accepted by Config.LLM.Provider.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Port is the TCP port the API listens on.
	Port int `yaml:"port"`

	// Debug enables gin debug mode and request logging.
	Debug bool `yaml:"debug"`
}

// Neo4jConfig configures the graph database connection.
type Neo4jConfig struct {
	// URI is the bolt URI, e.g. bolt://localhost:7687.
	URI string `yaml:"uri"`

	// Username for basic auth.
	Username string `yaml:"username"`

	// Password for basic auth.
	Password string `yaml:"password"`

	// Database is the target database name. Empty selects the
	// server default.
	Database string `yaml:"database"`
}

// LLMConfig selects and configures the inference backend.
type LLMConfig struct {
	// Provider is one of "ollama", "openai", or "mock".
	Provider string `yaml:"provider"`

	// OllamaBaseURL is the Ollama server base URL.
	OllamaBaseURL string `yaml:"ollama_base_url"`

	// OllamaModel is the model name requested from Ollama.
	OllamaModel string `yaml:"ollama_model"`

	// OpenAIModel is the model name requested from OpenAI.
	OpenAIModel string `yaml:"openai_model"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	// Workers bounds the parse worker pool. Zero means NumCPU.
	Workers int `yaml:"workers"`

	// WorkDir is where clone checkouts are created. Empty means
	// the system temp directory.
	WorkDir string `yaml:"work_dir"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Dir enables file logging to the given directory.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON format.
	JSON bool `yaml:"json"`
}

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Neo4j   Neo4jConfig   `yaml:"neo4j"`
	LLM     LLMConfig     `yaml:"llm"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
		},
		LLM: LLMConfig{
			Provider:    ProviderMock,
			OllamaModel: "llama3",
			OpenAIModel: "gpt-4o-mini",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment overrides, in that precedence order.
//
// Inputs:
//   - path: YAML file path. Empty skips file loading; a non-empty path
//     that does not exist is an error.
//
// Outputs:
//   - Config: The merged configuration.
//   - error: Non-nil on unreadable or malformed YAML, or an invalid
//     merged configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the merged configuration for values no deployment
// can run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}

	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	return nil
}

// applyEnv overlays environment variables onto the configuration.
func applyEnv(cfg *Config) {
	setString(&cfg.Neo4j.URI, "NEO4J_URI")
	setString(&cfg.Neo4j.Username, "NEO4J_USERNAME")
	setString(&cfg.Neo4j.Password, "NEO4J_PASSWORD")
	setString(&cfg.Neo4j.Database, "NEO4J_DATABASE")

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.OllamaBaseURL, "OLLAMA_BASE_URL")
	setString(&cfg.LLM.OllamaModel, "OLLAMA_MODEL")
	setString(&cfg.LLM.OpenAIModel, "OPENAI_MODEL")

	setInt(&cfg.Server.Port, "ARCHAEOLOGIST_PORT")
	setBool(&cfg.Server.Debug, "ARCHAEOLOGIST_DEBUG")

	setInt(&cfg.Ingest.Workers, "INGEST_WORKERS")
	setString(&cfg.Ingest.WorkDir, "INGEST_WORK_DIR")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Dir, "LOG_DIR")
	setBool(&cfg.Logging.JSON, "LOG_JSON")

	// MOCK_MODE is a shorthand the deployment scripts use to force
	// the deterministic path regardless of other LLM settings.
	if isTruthy(os.Getenv("MOCK_MODE")) {
		cfg.LLM.Provider = ProviderMock
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = isTruthy(v)
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the docstore API configuration.
type Config struct {
	HTTP           HTTPConfig           `yaml:"http"`
	Mongo          MongoConfig          `yaml:"mongo"`
	Cache          CacheConfig          `yaml:"cache"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	VectorSearch   VectorSearchConfig   `yaml:"vector_search"`
	IndexLifecycle IndexLifecycleConfig `yaml:"index_lifecycle"`
	Auth           AuthConfig           `yaml:"auth"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// MongoConfig holds the MongoDB deployment and collection names.
type MongoConfig struct {
	URI                string `yaml:"uri"`
	Database           string `yaml:"database"`
	DatasetsCollection string `yaml:"datasets_collection"`
	RecordsCollection  string `yaml:"records_collection"`
	ConnectTimeoutSec  int    `yaml:"connect_timeout_sec"`
	ReadinessTimeout   int    `yaml:"readiness_timeout_sec"`
}

// CacheConfig holds the embedding cache store. Caching is off when Addrs is empty.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLHours int      `yaml:"ttl_hours"`
}

// Enabled reports whether an embedding cache is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	Instruction string `yaml:"instruction"`
}

// VectorSearchConfig holds the ANN index settings.
type VectorSearchConfig struct {
	DatasetIndexName        string  `yaml:"dataset_index_name"`
	RecordIndexName         string  `yaml:"record_index_name"`
	FieldPath               string  `yaml:"field_path"`
	Similarity              string  `yaml:"similarity"`
	NumCandidatesMultiplier int     `yaml:"num_candidates_multiplier"`
	MinScore                float64 `yaml:"min_score"`
}

// IndexLifecycleConfig bounds the search index status polling.
type IndexLifecycleConfig struct {
	PollIntervalSec int `yaml:"poll_interval_sec"`
	MaxAttempts     int `yaml:"max_attempts"`
	DeletingWaitSec int `yaml:"deleting_wait_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it and applies defaults.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Mongo.Database == "" {
		c.Mongo.Database = "docstore"
	}
	if c.Mongo.DatasetsCollection == "" {
		c.Mongo.DatasetsCollection = "datasets"
	}
	if c.Mongo.RecordsCollection == "" {
		c.Mongo.RecordsCollection = "records"
	}
	if c.Mongo.ConnectTimeoutSec <= 0 {
		c.Mongo.ConnectTimeoutSec = 10
	}
	if c.Mongo.ReadinessTimeout <= 0 {
		c.Mongo.ReadinessTimeout = 30
	}

	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24 * 7
	}

	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 1536
	}

	if c.VectorSearch.DatasetIndexName == "" {
		c.VectorSearch.DatasetIndexName = "vector_search_datasets"
	}
	if c.VectorSearch.RecordIndexName == "" {
		c.VectorSearch.RecordIndexName = "vector_search_records"
	}
	if c.VectorSearch.FieldPath == "" {
		c.VectorSearch.FieldPath = "embedding"
	}
	if c.VectorSearch.Similarity == "" {
		c.VectorSearch.Similarity = "cosine"
	}
	if c.VectorSearch.NumCandidatesMultiplier <= 0 {
		c.VectorSearch.NumCandidatesMultiplier = 10
	}
	if c.VectorSearch.MinScore == 0 {
		c.VectorSearch.MinScore = 0.7
	}

	if c.IndexLifecycle.PollIntervalSec <= 0 {
		c.IndexLifecycle.PollIntervalSec = 2
	}
	if c.IndexLifecycle.MaxAttempts <= 0 {
		c.IndexLifecycle.MaxAttempts = 30
	}
	if c.IndexLifecycle.DeletingWaitSec <= 0 {
		c.IndexLifecycle.DeletingWaitSec = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.VectorSearch.MinScore < 0 || c.VectorSearch.MinScore > 1 {
		return fmt.Errorf("vector_search.min_score must be within [0, 1], got %g", c.VectorSearch.MinScore)
	}
	switch c.VectorSearch.Similarity {
	case "cosine", "euclidean", "dotProduct":
	default:
		return fmt.Errorf("vector_search.similarity must be cosine, euclidean or dotProduct, got %q",
			c.VectorSearch.Similarity)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

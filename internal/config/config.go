// Package config loads and validates evocore's configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all evocore configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	DataRoot string `yaml:"data_root"`

	Cache      CacheConfig      `yaml:"cache"`
	Vector     VectorConfig     `yaml:"vector"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Memory     MemoryConfig     `yaml:"memory"`
	Reasoning  ReasoningConfig  `yaml:"reasoning"`
	Evolution  EvolutionConfig  `yaml:"evolution"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CacheConfig configures the Hierarchical Cache.
type CacheConfig struct {
	Backend  string `yaml:"backend"` // "local" or "redis"
	RedisURL string `yaml:"redis_url"`
	TTL      string `yaml:"ttl"`
}

// VectorConfig configures the Vector Index.
type VectorConfig struct {
	Dimensions int    `yaml:"dimensions"`
	Path       string `yaml:"path"`
}

// ChunkingConfig configures the Chunking Engine.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// MemoryConfig configures the Memory Graph.
type MemoryConfig struct {
	GraphPath         string   `yaml:"graph_path"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// ReasoningConfig configures the reasoning subsystems.
type ReasoningConfig struct {
	SimilarityThreshold     float64 `yaml:"similarity_threshold"`
	PatternSimilarity       float64 `yaml:"pattern_similarity"`
	MaxPatterns             int     `yaml:"max_patterns"`
	EmbeddingDimensions     int     `yaml:"embedding_dimensions"`
	ExplorationRate         float64 `yaml:"exploration_rate"`
	LearningRate            float64 `yaml:"learning_rate"`
	TemplatesDir            string  `yaml:"templates_dir"`
	PatternsPath            string  `yaml:"patterns_path"`
	ToolMatrixPath          string  `yaml:"tool_matrix_path"`
}

// EvolutionConfig configures the Evolution Engine and its subsystems.
type EvolutionConfig struct {
	ParallelHypotheses      int     `yaml:"parallel_hypotheses"`
	MinImprovementThreshold float64 `yaml:"min_improvement_threshold"`
	AutoApprovalThreshold   float64 `yaml:"auto_approval_threshold"`
	MaxHypothesesPerCycle   int     `yaml:"max_hypotheses_per_cycle"`
	MaxMutationsPerHyp      int     `yaml:"max_mutations_per_hypothesis"`
	MaxCheckpoints          int     `yaml:"max_checkpoints"`
	AutoCleanup             bool    `yaml:"auto_cleanup"`
	CronExpression          string  `yaml:"cron_expression"`
	RepoPath                string  `yaml:"repo_path"`
	BackupPath              string  `yaml:"backup_path"`
	BenchmarkResultsPath    string  `yaml:"benchmark_results_path"`
	HistoryPath             string  `yaml:"history_path"`
	HypothesesHistoryPath   string  `yaml:"hypotheses_history_path"`
}

// LoggingConfig configures the logging subsystem.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:     "evocore",
		Version:  "0.1.0",
		DataRoot: "data",

		Cache: CacheConfig{
			Backend: "local",
			TTL:     "15m",
		},
		Vector: VectorConfig{
			Dimensions: 256,
			Path:       "data/vector-index",
		},
		Chunking: ChunkingConfig{
			ChunkSize: 2000,
			Overlap:   200,
		},
		Memory: MemoryConfig{
			GraphPath:         "data/memory-graphs",
			AllowedExtensions: []string{".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".java"},
		},
		Reasoning: ReasoningConfig{
			SimilarityThreshold: 0.85,
			PatternSimilarity:   0.9,
			MaxPatterns:         500,
			EmbeddingDimensions: 256,
			ExplorationRate:     0.1,
			LearningRate:        0.2,
			TemplatesDir:        "config/plan_templates",
			PatternsPath:        "data/decision_trees/patterns.json",
			ToolMatrixPath:      "data/tool_selection_matrix.json",
		},
		Evolution: EvolutionConfig{
			ParallelHypotheses:      3,
			MinImprovementThreshold: 1.0,
			AutoApprovalThreshold:   3.0,
			MaxHypothesesPerCycle:   5,
			MaxMutationsPerHyp:      5,
			MaxCheckpoints:          50,
			AutoCleanup:             true,
			CronExpression:          "0 2 * * *",
			RepoPath:                ".",
			BackupPath:              "data/evolution-history/backups",
			BenchmarkResultsPath:    "data/benchmarks/results",
			HistoryPath:             "data/evolution-history/cycles.json",
			HypothesesHistoryPath:   "data/evolution-history/hypotheses.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults plus
// environment overrides when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// Save persists configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", dir, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides applies environment variable overrides for settings that
// are awkward to express in committed YAML (backend URLs, data roots).
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("EVOCORE_REDIS_URL"); url != "" {
		c.Cache.RedisURL = url
		c.Cache.Backend = "redis"
	}
	if root := os.Getenv("EVOCORE_DATA_ROOT"); root != "" {
		c.DataRoot = root
	}
	if repo := os.Getenv("EVOCORE_REPO_PATH"); repo != "" {
		c.Evolution.RepoPath = repo
	}
	if level := os.Getenv("EVOCORE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// ConfigError reports an invalid configuration. It is fatal: construction of
// the dependent subsystem must abort rather than attempt to degrade.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: invalid configuration at %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Validate checks invariants that must hold before any subsystem is
// constructed from this configuration.
func (c *Config) Validate() error {
	if c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.overlap (%d) must be < chunking.chunk_size (%d)", c.Chunking.Overlap, c.Chunking.ChunkSize)
	}
	if c.Vector.Dimensions <= 0 {
		return fmt.Errorf("vector.dimensions must be positive, got %d", c.Vector.Dimensions)
	}
	if c.Evolution.ParallelHypotheses <= 0 {
		return fmt.Errorf("evolution.parallel_hypotheses must be positive, got %d", c.Evolution.ParallelHypotheses)
	}
	if c.Cache.Backend != "local" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'local' or 'redis', got %q", c.Cache.Backend)
	}
	return nil
}

// CacheTTL returns the cache TTL as a duration, defaulting to 15 minutes on
// any parse failure.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

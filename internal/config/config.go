// Package config defines all configuration structures for the EquityLens
// platform.  No I/O or parsing logic lives here, only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// DSN renders the pgx-compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// RedisConfig holds Redis connection parameters.  Redis backs the latest
// assessment cache and the similarity-index writer lock in shared-backend mode.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer/consumer parameters for the asynchronous
// assessment pipeline.
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	AutoOffsetReset string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	ProducerRetries int      `mapstructure:"producer_retries"`
	BatchSize       int      `mapstructure:"batch_size"`
	DLQSuffix       string   `mapstructure:"dlq_suffix"`
}

// MilvusConfig holds Milvus vector-store connection parameters.  Milvus is the
// optional shared similarity backend; when Enabled is false the engine uses
// the embedded in-memory index.
type MilvusConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Addr             string `mapstructure:"addr"`
	DBName           string `mapstructure:"db_name"`
	CollectionPrefix string `mapstructure:"collection_prefix"`
	IndexType        string `mapstructure:"index_type"`
	DefaultTopK      int    `mapstructure:"default_top_k"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	QueueDepth     int           `mapstructure:"queue_depth"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	CommitInterval time.Duration `mapstructure:"commit_interval"`

	// MatchRetention is how long similarity matches are kept before the
	// periodic sweep archives them; RetentionInterval is how often the sweep
	// runs.  A negative MatchRetention disables the sweep.
	MatchRetention    time.Duration `mapstructure:"match_retention"`
	RetentionInterval time.Duration `mapstructure:"retention_interval"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// AnalysisConfig carries the tunable thresholds of the assessment pipeline.
// The shipped defaults are the calibrated production values; changing them
// changes plagiarism and AI-likelihood verdicts, so overrides should only be
// made together with a re-calibration run.
type AnalysisConfig struct {
	// SimilarityThreshold is the cosine similarity above which a pair of
	// reports is flagged as potential plagiarism.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`

	// SimilarityTopK bounds the number of nearest neighbours retrieved per
	// similarity query.
	SimilarityTopK int `mapstructure:"similarity_top_k"`

	// SpanWindowSize is the sliding-window width, in tokens, used to locate
	// matching spans between two flagged reports.
	SpanWindowSize int `mapstructure:"span_window_size"`

	// AILikelyThreshold and AIUncertainThreshold split the [0,1] authorship
	// score into human / uncertain / AI-likely bands.
	AILikelyThreshold    float64 `mapstructure:"ai_likely_threshold"`
	AIUncertainThreshold float64 `mapstructure:"ai_uncertain_threshold"`

	// ComponentTimeout caps the wall-clock time of each assessment component
	// (similarity, quality, AI detection, compliance) per run.
	ComponentTimeout time.Duration `mapstructure:"component_timeout"`

	// QualityWeights maps dimension name to its weight.  Weights must sum to
	// 1.0 within a small epsilon; renormalisation over available dimensions
	// happens at scoring time.
	QualityWeights map[string]float64 `mapstructure:"quality_weights"`
}

// EmbeddingConfig holds parameters of the external embedding service.
type EmbeddingConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Dimension  int           `mapstructure:"dimension"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// LLMConfig holds parameters of the narrative-generation LLM service.
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// MarketDataConfig holds parameters of the market-data provider used by the
// factual-accuracy quality dimension.
type MarketDataConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// Config is the root configuration structure for the platform.  Every
// infrastructure component and application service reads its settings from
// the relevant sub-struct.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Milvus     MilvusConfig     `mapstructure:"milvus"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Log        LogConfig        `mapstructure:"log"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	LLM        LLMConfig        `mapstructure:"llm"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
}

// weightEpsilon is the tolerance when checking that quality weights sum to 1.
const weightEpsilon = 1e-6

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}

	if c.Milvus.Enabled && c.Milvus.Addr == "" {
		return fmt.Errorf("config: milvus.addr is required when milvus.enabled is true")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if err := c.Analysis.validate(); err != nil {
		return err
	}

	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("config: embedding.base_url is required")
	}
	if c.Embedding.Dimension < 1 {
		return fmt.Errorf("config: embedding.dimension must be >= 1, got %d", c.Embedding.Dimension)
	}

	return nil
}

func (a AnalysisConfig) validate() error {
	if a.SimilarityThreshold <= 0 || a.SimilarityThreshold > 1 {
		return fmt.Errorf("config: analysis.similarity_threshold %.3f is out of range (0, 1]", a.SimilarityThreshold)
	}
	if a.SimilarityTopK < 1 {
		return fmt.Errorf("config: analysis.similarity_top_k must be >= 1, got %d", a.SimilarityTopK)
	}
	if a.AIUncertainThreshold <= 0 || a.AILikelyThreshold <= a.AIUncertainThreshold || a.AILikelyThreshold > 1 {
		return fmt.Errorf("config: analysis AI thresholds invalid; need 0 < uncertain (%.2f) < likely (%.2f) <= 1",
			a.AIUncertainThreshold, a.AILikelyThreshold)
	}
	if a.ComponentTimeout <= 0 {
		return fmt.Errorf("config: analysis.component_timeout must be positive, got %s", a.ComponentTimeout)
	}
	if len(a.QualityWeights) == 0 {
		return fmt.Errorf("config: analysis.quality_weights must not be empty")
	}
	var sum float64
	for name, w := range a.QualityWeights {
		if w < 0 {
			return fmt.Errorf("config: analysis.quality_weights[%s] must be >= 0, got %f", name, w)
		}
		sum += w
	}
	if sum < 1-weightEpsilon || sum > 1+weightEpsilon {
		return fmt.Errorf("config: analysis.quality_weights must sum to 1.0, got %f", sum)
	}
	return nil
}

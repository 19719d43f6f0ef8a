package config

import "time"

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "equitylens"
	DefaultDBMaxConns = 25

	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "equitylens-workers"

	DefaultMilvusAddr = "localhost:19530"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 8
	DefaultMatchRetention    = 180 * 24 * time.Hour
	DefaultRetentionInterval = 24 * time.Hour

	DefaultSimilarityThreshold  = 0.85
	DefaultSimilarityTopK       = 10
	DefaultSpanWindowSize       = 50
	DefaultAILikelyThreshold    = 0.7
	DefaultAIUncertainThreshold = 0.4
	DefaultComponentTimeout     = 10 * time.Second

	DefaultEmbeddingDimension = 768
)

// DefaultQualityWeights returns a fresh copy of the calibrated dimension
// weights.  Callers receive a copy because maps are shared by reference and
// ApplyDefaults must not alias a package-level map into every Config.
func DefaultQualityWeights() map[string]float64 {
	return map[string]float64{
		"content_depth":    0.20,
		"factual_accuracy": 0.20,
		"predictive_power": 0.15,
		"bias":             0.10,
		"originality":      0.10,
		"risk_disclosure":  0.15,
		"transparency":     0.10,
	}
}

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields that have already been set by the caller are left unchanged so that
// explicit configuration always wins.  It must be called after unmarshalling
// and before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "equitylens:"
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = time.Hour
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.DLQSuffix == "" {
		cfg.Kafka.DLQSuffix = ".dlq"
	}

	if cfg.Milvus.Addr == "" {
		cfg.Milvus.Addr = DefaultMilvusAddr
	}
	if cfg.Milvus.DefaultTopK == 0 {
		cfg.Milvus.DefaultTopK = DefaultSimilarityTopK
	}
	if cfg.Milvus.CollectionPrefix == "" {
		cfg.Milvus.CollectionPrefix = "equitylens_"
	}

	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Worker.MatchRetention == 0 {
		cfg.Worker.MatchRetention = DefaultMatchRetention
	}
	if cfg.Worker.RetentionInterval == 0 {
		cfg.Worker.RetentionInterval = DefaultRetentionInterval
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Analysis.SimilarityThreshold == 0 {
		cfg.Analysis.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Analysis.SimilarityTopK == 0 {
		cfg.Analysis.SimilarityTopK = DefaultSimilarityTopK
	}
	if cfg.Analysis.SpanWindowSize == 0 {
		cfg.Analysis.SpanWindowSize = DefaultSpanWindowSize
	}
	if cfg.Analysis.AILikelyThreshold == 0 {
		cfg.Analysis.AILikelyThreshold = DefaultAILikelyThreshold
	}
	if cfg.Analysis.AIUncertainThreshold == 0 {
		cfg.Analysis.AIUncertainThreshold = DefaultAIUncertainThreshold
	}
	if cfg.Analysis.ComponentTimeout == 0 {
		cfg.Analysis.ComponentTimeout = DefaultComponentTimeout
	}
	if len(cfg.Analysis.QualityWeights) == 0 {
		cfg.Analysis.QualityWeights = DefaultQualityWeights()
	}

	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:8100"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = DefaultEmbeddingDimension
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 10 * time.Second
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 2
	}

	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}

	if cfg.MarketData.Timeout == 0 {
		cfg.MarketData.Timeout = 5 * time.Second
	}
	if cfg.MarketData.MaxRetries == 0 {
		cfg.MarketData.MaxRetries = 2
	}
	if cfg.MarketData.CacheTTL == 0 {
		cfg.MarketData.CacheTTL = 15 * time.Minute
	}
}

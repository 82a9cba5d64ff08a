// Package config loads service settings from an optional YAML file and
// ADAL_ prefixed environment variables.
//
// Every key has a default, so an empty environment yields a working local
// setup. Nested keys map to environment variables with dots replaced by
// underscores, e.g. retrieval.specific_k is ADAL_RETRIEVAL_SPECIFIC_K.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Devcavi19/adal-4naga-app/ai"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ADAL"

// Vector index backends.
const (
	BackendBadger = "badger"
	BackendQdrant = "qdrant"
	BackendMilvus = "milvus"
)

// Config is the complete service configuration.
type Config struct {
	Server      Server      `mapstructure:"server"`
	Storage     Storage     `mapstructure:"storage"`
	AI          AI          `mapstructure:"ai"`
	Vector      Vector      `mapstructure:"vector"`
	Retrieval   Retrieval   `mapstructure:"retrieval"`
	Generation  Generation  `mapstructure:"generation"`
	Sink        Sink        `mapstructure:"sink"`
	Maintenance Maintenance `mapstructure:"maintenance"`
}

// Server holds HTTP settings.
type Server struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// Storage holds the local Badger store settings.
type Storage struct {
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"`
}

// AI holds the OpenAI-compatible endpoints.
type AI struct {
	EmbeddingHost  string  `mapstructure:"embedding_host"`
	ChatHost       string  `mapstructure:"chat_host"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	ChatModel      string  `mapstructure:"chat_model"`
	APIKey         string  `mapstructure:"api_key"`
	Temperature    float64 `mapstructure:"temperature"`
}

// Vector selects and configures the vector index.
type Vector struct {
	Backend string `mapstructure:"backend"`
	Qdrant  Qdrant `mapstructure:"qdrant"`
	Milvus  Milvus `mapstructure:"milvus"`
}

// Qdrant holds Qdrant REST settings.
type Qdrant struct {
	URL        string        `mapstructure:"url"`
	Collection string        `mapstructure:"collection"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// Payload keys holding the passage text, its metadata and the document id.
	TextField     string `mapstructure:"text_field"`
	MetadataField string `mapstructure:"metadata_field"`
	IDField       string `mapstructure:"id_field"`
}

// Milvus holds Milvus connection settings.
type Milvus struct {
	Address    string        `mapstructure:"address"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
	NProbe     int           `mapstructure:"nprobe"`
	MetricType string        `mapstructure:"metric_type"`
}

// Retrieval holds fusion and controller tuning.
// An empty CorpusPath builds the keyword index from the stored documents.
type Retrieval struct {
	CorpusPath          string  `mapstructure:"corpus_path"`
	SemanticWeight      float64 `mapstructure:"semantic_weight"`
	KeywordWeight       float64 `mapstructure:"keyword_weight"`
	SpecificK           int     `mapstructure:"specific_k"`
	ExhaustiveK         int     `mapstructure:"exhaustive_k"`
	ThresholdMultiplier float64 `mapstructure:"threshold_multiplier"`
	ThresholdCap        float64 `mapstructure:"threshold_cap"`
}

// Generation holds answer stream limits.
type Generation struct {
	MaxChunks         int           `mapstructure:"max_chunks"`
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`
	HistoryExchanges  int           `mapstructure:"history_exchanges"`
	FallbackDelay     time.Duration `mapstructure:"fallback_delay"`
}

// Sink holds persistence sink sizing. PoolSize 0 picks a size from the CPU count.
type Sink struct {
	QueueSize    int           `mapstructure:"queue_size"`
	PoolSize     int           `mapstructure:"pool_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	KeywordCount int           `mapstructure:"keyword_count"`
}

// Maintenance holds background job settings.
type Maintenance struct {
	Enabled             bool          `mapstructure:"enabled"`
	KeywordInterval     time.Duration `mapstructure:"keyword_interval"`
	AnomalyInterval     time.Duration `mapstructure:"anomaly_interval"`
	GCInterval          time.Duration `mapstructure:"gc_interval"`
	SpikeWindow         time.Duration `mapstructure:"spike_window"`
	SpikeMultiplier     float64       `mapstructure:"spike_multiplier"`
	ErrorRatePercent    float64       `mapstructure:"error_rate_percent"`
	SatisfactionPercent float64       `mapstructure:"satisfaction_percent"`
	MinRatings          int           `mapstructure:"min_ratings"`
}

var defaults = map[string]any{
	"server.addr":                "127.0.0.1:8080",
	"server.read_header_timeout": 10 * time.Second,
	"server.shutdown_timeout":    30 * time.Second,

	"storage.path":      "./adal-data",
	"storage.retention": 90 * 24 * time.Hour,

	"ai.embedding_host":  "http://localhost:11434/v1",
	"ai.chat_host":       "http://localhost:11434/v1",
	"ai.embedding_model": "text-embedding-004",
	"ai.chat_model":      "gemini-2.5-flash",
	"ai.api_key":         "none",
	"ai.temperature":     0.0,

	"vector.backend":               BackendBadger,
	"vector.qdrant.url":            "http://localhost:6333",
	"vector.qdrant.collection":     "naga_documents",
	"vector.qdrant.api_key":        "",
	"vector.qdrant.timeout":        30 * time.Second,
	"vector.qdrant.text_field":     "text",
	"vector.qdrant.metadata_field": "metadata",
	"vector.qdrant.id_field":       "doc_id",
	"vector.milvus.address":        "localhost:19530",
	"vector.milvus.username":       "",
	"vector.milvus.password":       "",
	"vector.milvus.database":       "",
	"vector.milvus.collection":     "naga_documents",
	"vector.milvus.timeout":        10 * time.Second,
	"vector.milvus.nprobe":         16,
	"vector.milvus.metric_type":    "COSINE",

	"retrieval.corpus_path":          "",
	"retrieval.semantic_weight":      0.7,
	"retrieval.keyword_weight":       0.3,
	"retrieval.specific_k":           6,
	"retrieval.exhaustive_k":         50,
	"retrieval.threshold_multiplier": 1.5,
	"retrieval.threshold_cap":        2.0,

	"generation.max_chunks":         10000,
	"generation.inactivity_timeout": 30 * time.Second,
	"generation.history_exchanges":  5,
	"generation.fallback_delay":     30 * time.Millisecond,

	"sink.queue_size":    256,
	"sink.pool_size":     0,
	"sink.max_attempts":  3,
	"sink.base_delay":    100 * time.Millisecond,
	"sink.keyword_count": 10,

	"maintenance.enabled":              true,
	"maintenance.keyword_interval":     time.Hour,
	"maintenance.anomaly_interval":     time.Hour,
	"maintenance.gc_interval":          10 * time.Minute,
	"maintenance.spike_window":         24 * time.Hour,
	"maintenance.spike_multiplier":     2.0,
	"maintenance.error_rate_percent":   10.0,
	"maintenance.satisfaction_percent": 60.0,
	"maintenance.min_ratings":          10,
}

// Load reads configuration from path, when given, and the environment.
// Without a path an adal.yaml in the working directory is used if present.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("adal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the components would reject at construction.
func (c *Config) Validate() error {
	switch c.Vector.Backend {
	case BackendBadger:
	case BackendQdrant:
		if c.Vector.Qdrant.URL == "" || c.Vector.Qdrant.Collection == "" {
			return errors.New("config: qdrant backend requires url and collection")
		}
	case BackendMilvus:
		if c.Vector.Milvus.Address == "" || c.Vector.Milvus.Collection == "" {
			return errors.New("config: milvus backend requires address and collection")
		}
		switch c.Vector.Milvus.MetricType {
		case "COSINE", "IP", "L2":
		default:
			return fmt.Errorf("config: unsupported milvus metric_type %q", c.Vector.Milvus.MetricType)
		}
	default:
		return fmt.Errorf("config: unknown vector backend %q", c.Vector.Backend)
	}

	if c.Storage.Path == "" {
		return errors.New("config: storage path is required")
	}
	if c.Storage.Retention <= 0 {
		return errors.New("config: storage retention must be positive")
	}
	if c.Retrieval.SemanticWeight < 0 || c.Retrieval.KeywordWeight < 0 ||
		c.Retrieval.SemanticWeight+c.Retrieval.KeywordWeight == 0 {
		return errors.New("config: retrieval weights must be non-negative and not both zero")
	}
	if c.Retrieval.SpecificK <= 0 || c.Retrieval.ExhaustiveK <= 0 {
		return errors.New("config: retrieval k values must be positive")
	}
	if c.Generation.MaxChunks <= 0 {
		return errors.New("config: generation max_chunks must be positive")
	}
	if c.Generation.InactivityTimeout <= 0 {
		return errors.New("config: generation inactivity_timeout must be positive")
	}
	if c.Generation.HistoryExchanges < 0 {
		return errors.New("config: generation history_exchanges cannot be negative")
	}
	if c.Sink.QueueSize <= 0 || c.Sink.MaxAttempts <= 0 {
		return errors.New("config: sink queue_size and max_attempts must be positive")
	}
	m := c.Maintenance
	if m.KeywordInterval <= 0 || m.AnomalyInterval <= 0 || m.GCInterval <= 0 {
		return errors.New("config: maintenance intervals must be positive")
	}
	if m.SpikeWindow < time.Hour {
		return errors.New("config: maintenance spike_window must be at least one hour")
	}
	if m.SpikeMultiplier <= 0 || m.ErrorRatePercent <= 0 {
		return errors.New("config: maintenance thresholds must be positive")
	}
	if m.SatisfactionPercent <= 0 || m.SatisfactionPercent > 100 || m.MinRatings < 1 {
		return errors.New("config: maintenance satisfaction_percent must be in (0, 100] and min_ratings positive")
	}
	if c.Server.ShutdownTimeout <= 0 || c.Server.ReadHeaderTimeout <= 0 {
		return errors.New("config: server timeouts must be positive")
	}
	return c.AIConfig().Validate()
}

// AIConfig converts the AI section to an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithChatHost(c.AI.ChatHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithChatModel(c.AI.ChatModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithTemperature(c.AI.Temperature),
	)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Similarity post-filter modes understood by the cluster engine.
const (
	FilterCluster = "cluster"
	FilterMember  = "member"
	FilterOff     = "off"
)

// Embedding providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config captures every setting required to boot the categorization service or CLI.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	Categorization CategorizationConfig `yaml:"categorization"`
	Validation     ValidationConfig     `yaml:"validation"`
	Source         SourceConfig         `yaml:"source"`
	Weaviate       WeaviateConfig       `yaml:"weaviate"`
	Logging        LoggingConfig        `yaml:"logging"`
	Run            RunConfig            `yaml:"run"`
}

// ServerConfig controls gRPC and HTTP listener behaviour.
type ServerConfig struct {
	Address           string        `yaml:"address"`
	HTTPAddress       string        `yaml:"httpAddress"`
	GracefulTimeout   time.Duration `yaml:"gracefulTimeout"`
	MaxConcurrentRuns int64         `yaml:"maxConcurrentRuns"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider string        `yaml:"provider"`
	BaseURL  string        `yaml:"baseURL"`
	APIKey   string        `yaml:"apiKey"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CategorizationConfig holds the engine tunables. It is passed by value into each run.
type CategorizationConfig struct {
	// EmbeddingModel overrides embedding.model when set.
	EmbeddingModel        string   `yaml:"embedding_model"`
	MinClusterSize        int      `yaml:"min_cluster_size"`
	MinSamples            int      `yaml:"min_samples"`
	SimilarityThreshold   float64  `yaml:"similarity_threshold"`
	SimilarityFilter      string   `yaml:"similarity_filter"`
	FeatureFields         []string `yaml:"feature_fields"`
	FeatureSeparator      string   `yaml:"feature_separator"`
	MinIncidentsForOutput int      `yaml:"min_incidents_for_output"`
	PatternFields         []string `yaml:"pattern_fields"`
	StopWords             []string `yaml:"stop_words"`
	TopTerms              int      `yaml:"top_terms"`
	MinTermLength         int      `yaml:"min_term_length"`
}

// ValidationConfig controls the upstream record validator.
type ValidationConfig struct {
	RequiredFields         []string `yaml:"required_fields"`
	MinDescriptionLength   int      `yaml:"min_description_length"`
	MinResolutionLength    int      `yaml:"min_resolution_length"`
	RejectPlaceholders     bool     `yaml:"reject_placeholders"`
	InvalidCategories      []string `yaml:"invalid_categories"`
	RequireResolvedAtCheck bool     `yaml:"require_resolved_after_created"`
}

// SourceConfig configures the ticketing table API used by fetch.
type SourceConfig struct {
	BaseURL  string        `yaml:"baseURL"`
	Table    string        `yaml:"table"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	DaysBack int           `yaml:"daysBack"`
	Limit    int           `yaml:"limit"`
	PageSize int           `yaml:"pageSize"`
	Timeout  time.Duration `yaml:"timeout"`
}

// WeaviateConfig configures the SOP pattern store.
type WeaviateConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Class    string        `yaml:"class"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RunConfig bounds a single categorization run.
type RunConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_SOP_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:           ":50051",
			HTTPAddress:       ":8080",
			GracefulTimeout:   10 * time.Second,
			MaxConcurrentRuns: 2,
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "all-minilm",
			Timeout:  60 * time.Second,
		},
		Categorization: CategorizationConfig{
			MinClusterSize:        5,
			MinSamples:            3,
			SimilarityThreshold:   0.75,
			SimilarityFilter:      FilterCluster,
			FeatureFields:         []string{"short_description", "description", "resolution", "category", "subcategory"},
			FeatureSeparator:      " | ",
			MinIncidentsForOutput: 3,
			PatternFields:         []string{"short_description", "description", "resolution"},
			TopTerms:              10,
			MinTermLength:         5,
		},
		Validation: ValidationConfig{
			RequiredFields:         []string{"number", "short_description", "description", "category", "created_at"},
			MinDescriptionLength:   10,
			MinResolutionLength:    10,
			RejectPlaceholders:     true,
			InvalidCategories:      []string{"none", "other", "unknown", "n/a", "tbd"},
			RequireResolvedAtCheck: true,
		},
		Source: SourceConfig{
			Table:    "incident",
			DaysBack: 90,
			Limit:    1000,
			PageSize: 200,
			Timeout:  30 * time.Second,
		},
		Weaviate: WeaviateConfig{Class: "SOPPattern", Timeout: 5 * time.Second},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Run:      RunConfig{Timeout: 5 * time.Minute},
	}
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	cat := c.Categorization
	if cat.MinClusterSize < 1 {
		return fmt.Errorf("categorization.min_cluster_size must be >= 1, got %d", cat.MinClusterSize)
	}
	if cat.MinSamples < 1 {
		return fmt.Errorf("categorization.min_samples must be >= 1, got %d", cat.MinSamples)
	}
	if cat.SimilarityThreshold < -1 || cat.SimilarityThreshold > 1 {
		return fmt.Errorf("categorization.similarity_threshold must be within [-1, 1], got %g", cat.SimilarityThreshold)
	}
	switch cat.SimilarityFilter {
	case FilterCluster, FilterMember, FilterOff:
	default:
		return fmt.Errorf("categorization.similarity_filter %q is not one of cluster, member, off", cat.SimilarityFilter)
	}
	if len(cat.FeatureFields) == 0 {
		return errors.New("categorization.feature_fields must not be empty")
	}
	if cat.MinIncidentsForOutput < 0 {
		return fmt.Errorf("categorization.min_incidents_for_output must be >= 0, got %d", cat.MinIncidentsForOutput)
	}
	if cat.TopTerms < 0 || cat.MinTermLength < 0 {
		return errors.New("categorization.top_terms and min_term_length must be >= 0")
	}
	switch c.Embedding.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("embedding.provider %q is not one of ollama, openai", c.Embedding.Provider)
	}
	if c.Server.MaxConcurrentRuns < 1 {
		return fmt.Errorf("server.maxConcurrentRuns must be >= 1, got %d", c.Server.MaxConcurrentRuns)
	}
	if c.Run.Timeout < 0 {
		return fmt.Errorf("run.timeout must not be negative, got %s", c.Run.Timeout)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_SOP_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_SOP_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("MIRADOR_SOP_MAX_CONCURRENT_RUNS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxConcurrentRuns = n
		}
	}
	if v := os.Getenv("MIRADOR_SOP_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_SOP_EMBEDDING_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_SOP_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("MIRADOR_SOP_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("MIRADOR_SOP_MIN_CLUSTER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Categorization.MinClusterSize = n
		}
	}
	if v := os.Getenv("MIRADOR_SOP_MIN_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Categorization.MinSamples = n
		}
	}
	if v := os.Getenv("MIRADOR_SOP_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Categorization.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("MIRADOR_SOP_SIMILARITY_FILTER"); v != "" {
		cfg.Categorization.SimilarityFilter = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_SOP_MIN_INCIDENTS_FOR_OUTPUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Categorization.MinIncidentsForOutput = n
		}
	}
	if v := os.Getenv("MIRADOR_SOP_SOURCE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("MIRADOR_SOP_SOURCE_USERNAME"); v != "" {
		cfg.Source.Username = v
	}
	if v := os.Getenv("MIRADOR_SOP_SOURCE_PASSWORD"); v != "" {
		cfg.Source.Password = v
	}
	if v := os.Getenv("MIRADOR_SOP_SOURCE_DAYS_BACK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Source.DaysBack = n
		}
	}
	if v := os.Getenv("MIRADOR_SOP_SOURCE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Source.Limit = n
		}
	}
	if v := os.Getenv("MIRADOR_SOP_WEAVIATE_URL"); v != "" {
		cfg.Weaviate.Endpoint = v
	}
	if v := os.Getenv("MIRADOR_SOP_WEAVIATE_API_KEY"); v != "" {
		cfg.Weaviate.APIKey = v
	}
	if v := os.Getenv("MIRADOR_SOP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_SOP_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("MIRADOR_SOP_RUN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Run.Timeout = d
		}
	}
}

// EmbeddingSettings returns the embedding section with the categorization model override applied.
func (c Config) EmbeddingSettings() EmbeddingConfig {
	emb := c.Embedding
	if c.Categorization.EmbeddingModel != "" {
		emb.Model = c.Categorization.EmbeddingModel
	}
	return emb
}

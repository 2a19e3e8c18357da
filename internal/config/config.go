// Package config loads service configuration from a YAML file plus
// CLAIMSEARCH_-prefixed environment variables, per spec §6.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Grounding  GroundingConfig  `mapstructure:"grounding"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddress string        `mapstructure:"listen_address"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
}

// StoreConfig configures the Elasticsearch-backed vector store adapter.
type StoreConfig struct {
	ElasticsearchURL string `mapstructure:"elasticsearch_url"`
	RoomsIndex       string `mapstructure:"rooms_index"`
	ApartmentsIndex  string `mapstructure:"apartments_index"`
	NeighborhoodsIndex string `mapstructure:"neighborhoods_index"`
}

// CacheConfig configures the optional shared Redis tier.
type CacheConfig struct {
	RedisAddress string `mapstructure:"redis_address"`
}

// ProvidersConfig configures the external LLM/embedding/vision/geocode
// providers, per spec §6.
type ProvidersConfig struct {
	GoogleAPIKey        string `mapstructure:"google_api_key"`
	GoogleMapsAPIKey    string `mapstructure:"google_maps_api_key"`
	GeminiModel         string `mapstructure:"gemini_model"`
	EmbeddingModel      string `mapstructure:"embedding_model"`
	EmbeddingDimensions int    `mapstructure:"embedding_dimensions"`
}

// GroundingConfig configures map-grounding behavior, per spec §4.3.
type GroundingConfig struct {
	Enabled                bool `mapstructure:"enable_grounding"`
	CacheTTLDays            int  `mapstructure:"grounding_cache_ttl_days"`
	MaxGroundingsPerListing int  `mapstructure:"max_groundings_per_listing"`
	Model                   string `mapstructure:"grounding_model"`
}

// PipelineConfig holds the free parameters spec §9 calls out as
// configuration rather than literals, plus the concurrency bounds of §5.
type PipelineConfig struct {
	DedupeSimilarityThreshold float64 `mapstructure:"dedupe_similarity_threshold"`
	AntiClaimThreshold        float64 `mapstructure:"anti_claim_threshold"`
	ExpansionConcurrency      int     `mapstructure:"expansion_concurrency"`
	QuantifierConcurrency     int     `mapstructure:"quantifier_concurrency"`
	CompatibilityBatchSize    int     `mapstructure:"compatibility_batch_size"`
	VisionRateLimitPerMinute  int     `mapstructure:"vision_rate_limit_per_minute"`
	ChunkThresholdChars       int     `mapstructure:"chunk_threshold_chars"`
	ChunkMaxChars             int     `mapstructure:"chunk_max_chars"`
	ChunkOverlapChars         int     `mapstructure:"chunk_overlap_chars"`
}

// Load reads configuration from CLAIMSEARCH_CONFIG_FILE (default
// "configs/config.yaml") overlaid with CLAIMSEARCH_-prefixed environment
// variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configFile := os.Getenv("CLAIMSEARCH_CONFIG_FILE")
	if configFile == "" {
		configFile = "configs/config.yaml"
	}
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("CLAIMSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("store.elasticsearch_url", "http://localhost:9200")
	v.SetDefault("store.rooms_index", "rooms")
	v.SetDefault("store.apartments_index", "apartments")
	v.SetDefault("store.neighborhoods_index", "neighborhoods")

	v.SetDefault("providers.gemini_model", "gemini-2.0-flash")
	v.SetDefault("providers.embedding_model", "text-embedding-004")
	v.SetDefault("providers.embedding_dimensions", 3072)

	v.SetDefault("grounding.enable_grounding", true)
	v.SetDefault("grounding.grounding_cache_ttl_days", 14)
	v.SetDefault("grounding.max_groundings_per_listing", 3)
	v.SetDefault("grounding.grounding_model", "gemini-2.0-flash")

	v.SetDefault("pipeline.dedupe_similarity_threshold", 0.98)
	v.SetDefault("pipeline.anti_claim_threshold", 0.90)
	v.SetDefault("pipeline.expansion_concurrency", 50)
	v.SetDefault("pipeline.quantifier_concurrency", 30)
	v.SetDefault("pipeline.compatibility_batch_size", 50)
	v.SetDefault("pipeline.vision_rate_limit_per_minute", 150)
	v.SetDefault("pipeline.chunk_threshold_chars", 1000)
	v.SetDefault("pipeline.chunk_max_chars", 800)
	v.SetDefault("pipeline.chunk_overlap_chars", 50)
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          int               `json:"port"`
	LogConfig     logger.LogConfig  `json:"log_config"`
	IndexStore    IndexStoreConfig  `json:"index_store"`
	Chunk         ChunkConfig       `json:"chunk"`
	Retrieval     RetrievalConfig   `json:"retrieval"`
	AI            AIConfig          `json:"ai"`
	EmbedCache    EmbedCacheConfig  `json:"embed_cache"`
	Database      DatabaseConfig    `json:"database"`
	AnswerCache   AnswerCacheConfig `json:"answer_cache"`
	Upload        UploadConfig      `json:"upload"`
	CORSAllowlist []string          `json:"cors_allowlist"`
	RateLimitMS   int               `json:"rate_limit_ms"`
	Jobs          JobsConfig        `json:"jobs"`
}

type IndexStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ChunkConfig struct {
	Size    int `json:"size"`
	Overlap int `json:"overlap"`
}

type RetrievalConfig struct {
	TopK     int     `json:"top_k"`
	MinScore float64 `json:"min_score"`
}

type ProviderConfig struct {
	Name     string      `json:"name"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Generators        []ProviderConfig `json:"generators"`
	Embedder          ProviderConfig   `json:"embedder"`
	Timeout           int              `json:"timeout"`
	MaxRetries        int              `json:"max_retries"`
	RetryBaseMS       int              `json:"retry_base_ms"`
	RequestsPerSecond float64          `json:"requests_per_second"`
	Burst             int              `json:"burst"`
	EmbedWorkers      int              `json:"embed_workers"`
	MaxContextChars   int              `json:"max_context_chars"`
	FallbackAnswer    string           `json:"fallback_answer"`
	RefusalPhrases    []string         `json:"refusal_phrases"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	DBEnabled     bool `json:"db_enabled"`
	MaxAgeDays    int  `json:"max_age_days"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c DatabaseConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

type AnswerCacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

type UploadConfig struct {
	MaxBytes int64 `json:"max_bytes"`
	MaxFiles int   `json:"max_files"`
}

type JobsConfig struct {
	CacheCleanup     string `json:"cache_cleanup"`
	IngestLogCleanup string `json:"ingest_log_cleanup"`
	IngestLogMaxDays int    `json:"ingest_log_max_days"`
	SnapshotVerify   string `json:"snapshot_verify"`
}

// Load reads a JSON config, or YAML when the file ends in .yaml/.yml. YAML is
// converted to JSON first so both formats share the json tags.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml config: %w", err)
		}
		if raw, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("convert yaml config: %w", err)
		}
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.IndexStore.Type == "" {
		c.IndexStore.Type = "local"
	}
	if c.IndexStore.Type == "local" && c.IndexStore.Data == nil {
		c.IndexStore.Data = map[string]interface{}{"dir": "mrag_index"}
	}
	if c.Chunk.Size == 0 {
		c.Chunk.Size = 1000
		if c.Chunk.Overlap == 0 {
			c.Chunk.Overlap = 100
		}
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 3
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 60
	}
	if c.AI.RetryBaseMS == 0 {
		c.AI.RetryBaseMS = 500
	}
	if c.AI.Embedder.Provider == "" {
		c.AI.Embedder.Provider = "local"
	}
	if c.AI.Embedder.Model == "" && c.AI.Embedder.Provider == "local" {
		c.AI.Embedder.Model = "hash"
	}
	if c.EmbedCache.LRUSize > 0 && c.EmbedCache.LRUTTLSeconds == 0 {
		c.EmbedCache.LRUTTLSeconds = 3600
	}
	if c.EmbedCache.MaxAgeDays == 0 {
		c.EmbedCache.MaxAgeDays = 30
	}
	if c.AnswerCache.Size > 0 && c.AnswerCache.TTLSeconds == 0 {
		c.AnswerCache.TTLSeconds = 600
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = 20 << 20
	}
	if c.Upload.MaxFiles == 0 {
		c.Upload.MaxFiles = 20
	}
	if c.RateLimitMS == 0 {
		c.RateLimitMS = 500
	}
	if c.Jobs.CacheCleanup == "" {
		c.Jobs.CacheCleanup = "0 3 * * *"
	}
	if c.Jobs.IngestLogCleanup == "" {
		c.Jobs.IngestLogCleanup = "30 3 * * *"
	}
	if c.Jobs.IngestLogMaxDays == 0 {
		c.Jobs.IngestLogMaxDays = 90
	}
	if c.Jobs.SnapshotVerify == "" {
		c.Jobs.SnapshotVerify = "15 * * * *"
	}
}

func (c *Config) validate() error {
	if c.Chunk.Size <= 0 {
		return fmt.Errorf("chunk.size must be positive")
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		return fmt.Errorf("chunk.overlap must be in [0, chunk.size)")
	}
	if c.Retrieval.TopK < 0 {
		return fmt.Errorf("retrieval.top_k must not be negative")
	}
	if len(c.AI.Generators) == 0 {
		return fmt.Errorf("ai.generators requires at least one entry")
	}
	for i, g := range c.AI.Generators {
		if strings.TrimSpace(g.Provider) == "" || strings.TrimSpace(g.Model) == "" {
			return fmt.Errorf("ai.generators[%d] needs provider and model", i)
		}
	}
	if strings.TrimSpace(c.AI.Embedder.Model) == "" {
		return fmt.Errorf("ai.embedder.model is required")
	}
	if c.EmbedCache.DBEnabled && !c.Database.Enabled() {
		return fmt.Errorf("embed_cache.db_enabled requires a database section")
	}
	return nil
}

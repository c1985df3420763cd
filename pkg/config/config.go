package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:feedscope.db?cache=shared&mode=rwc,description=SQLite connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Feedback record store configuration"`

	Vector VectorConfig `yaml:"vector" json:"vector" jsonschema:"description=Vector index configuration"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=Model configuration for classification and embeddings"`

	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" jsonschema:"description=Processing pipeline configuration"`
}

// VectorConfig holds vector index settings. The pgvector provider needs a
// Postgres DSN; the memory provider keeps everything in-process and is meant
// for tests and small single-node runs.
type VectorConfig struct {
	Provider   string `yaml:"provider" json:"provider" jsonschema:"default=memory,enum=memory,enum=pgvector,description=Vector index backend"`
	DSN        string `yaml:"dsn" json:"dsn" jsonschema:"description=Postgres DSN for the pgvector provider"`
	Dimensions int    `yaml:"dimensions" json:"dimensions" jsonschema:"default=1536,description=Embedding vector dimensions"`
}

// EmbeddingConfig holds text-embedding settings
type EmbeddingConfig struct {
	Model    string `yaml:"model" json:"model" jsonschema:"default=text-embedding-3-small,description=Embedding model name"`
	MaxChars int    `yaml:"max_chars" json:"max_chars" jsonschema:"default=512,description=Input truncation limit in characters"`
}

// LLMConfig holds model configuration for classification, embeddings and
// summary generation
type LLMConfig struct {
	Endpoint    string          `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey      string          `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model       string          `yaml:"model" json:"model" jsonschema:"required,description=Model name (e.g. gpt-4o-mini or llama3)"`
	Temperature float64         `yaml:"temperature" json:"temperature" jsonschema:"default=0.3,description=Temperature for response generation"`
	MaxTokens   int             `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=500,description=Maximum tokens in response"`
	Timeout     time.Duration   `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Request timeout"`
	UseJSONMode bool            `yaml:"use_json_mode" json:"use_json_mode" jsonschema:"default=false,description=Use JSON response format (not all models support this)"`
	RateLimit   float64         `yaml:"rate_limit" json:"rate_limit" jsonschema:"default=5,description=Model calls per second across all workers"`
	Embedding   EmbeddingConfig `yaml:"embedding" json:"embedding" jsonschema:"description=Embedding-specific settings"`
}

// PipelineConfig holds processing pipeline settings
type PipelineConfig struct {
	MaxWorkers        int           `yaml:"max_workers" json:"max_workers" jsonschema:"default=5,description=Maximum concurrent pipeline runs"`
	QueueSize         int           `yaml:"queue_size" json:"queue_size" jsonschema:"default=100,description=Buffered size of the job queue"`
	EmbedAttempts     int           `yaml:"embed_attempts" json:"embed_attempts" jsonschema:"default=3,description=Bounded attempts for the embed stage"`
	RetryAttempts     int           `yaml:"retry_attempts" json:"retry_attempts" jsonschema:"default=5,description=Attempts for store/index stage retries"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay" json:"retry_initial_delay" jsonschema:"default=100ms,description=Initial backoff delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay" json:"retry_max_delay" jsonschema:"default=5s,description=Maximum backoff delay"`
	BackfillInterval  time.Duration `yaml:"backfill_interval" json:"backfill_interval" jsonschema:"default=10m,description=How often to sweep for unprocessed items"`
	BackfillBatch     int           `yaml:"backfill_batch" json:"backfill_batch" jsonschema:"default=50,description=Maximum unprocessed items picked up per sweep"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// setDefaults fills zero values with sane defaults
func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	if c.Database.DSN == "" {
		c.Database.DSN = "file:feedscope.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	if c.Vector.Provider == "" {
		c.Vector.Provider = "memory"
	}
	if c.Vector.Dimensions == 0 {
		c.Vector.Dimensions = 1536
	}

	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.3
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 500
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 30 * time.Second
	}
	if c.LLM.RateLimit == 0 {
		c.LLM.RateLimit = 5
	}
	if c.LLM.Embedding.Model == "" {
		c.LLM.Embedding.Model = "text-embedding-3-small"
	}
	if c.LLM.Embedding.MaxChars == 0 {
		c.LLM.Embedding.MaxChars = 512
	}

	if c.Pipeline.MaxWorkers == 0 {
		c.Pipeline.MaxWorkers = 5
	}
	if c.Pipeline.QueueSize == 0 {
		c.Pipeline.QueueSize = 100
	}
	if c.Pipeline.EmbedAttempts == 0 {
		c.Pipeline.EmbedAttempts = 3
	}
	if c.Pipeline.RetryAttempts == 0 {
		c.Pipeline.RetryAttempts = 5
	}
	if c.Pipeline.RetryInitialDelay == 0 {
		c.Pipeline.RetryInitialDelay = 100 * time.Millisecond
	}
	if c.Pipeline.RetryMaxDelay == 0 {
		c.Pipeline.RetryMaxDelay = 5 * time.Second
	}
	if c.Pipeline.BackfillInterval == 0 {
		c.Pipeline.BackfillInterval = 10 * time.Minute
	}
	if c.Pipeline.BackfillBatch == 0 {
		c.Pipeline.BackfillBatch = 50
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if cfg.LLM.MaxTokens < 1 || cfg.LLM.MaxTokens > 500 {
		return fmt.Errorf("llm.max_tokens must be between 1 and 500")
	}
	if cfg.LLM.Embedding.MaxChars < 1 {
		return fmt.Errorf("llm.embedding.max_chars must be positive")
	}

	switch cfg.Vector.Provider {
	case "memory":
	case "pgvector":
		if cfg.Vector.DSN == "" {
			return fmt.Errorf("vector.dsn is required for the pgvector provider")
		}
	default:
		return fmt.Errorf("vector.provider must be memory or pgvector")
	}
	if cfg.Vector.Dimensions < 1 {
		return fmt.Errorf("vector.dimensions must be positive")
	}

	if cfg.Pipeline.MaxWorkers < 1 {
		return fmt.Errorf("pipeline.max_workers must be at least 1")
	}
	if cfg.Pipeline.EmbedAttempts < 1 {
		return fmt.Errorf("pipeline.embed_attempts must be at least 1")
	}

	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetLLMConfig returns model configuration
func (c *Config) GetLLMConfig() LLMConfig {
	return c.LLM
}

// GetVectorConfig returns vector index configuration
func (c *Config) GetVectorConfig() VectorConfig {
	return c.Vector
}

// GetPipelineConfig returns pipeline configuration
func (c *Config) GetPipelineConfig() PipelineConfig {
	return c.Pipeline
}

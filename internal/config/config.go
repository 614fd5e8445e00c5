package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/polygraf/audio-backend/internal/llm/gemini"
	"github.com/polygraf/audio-backend/internal/llm/ollama"
	"github.com/polygraf/audio-backend/internal/logger"
	"github.com/polygraf/audio-backend/internal/redis"
	"github.com/polygraf/audio-backend/internal/storage"
	"github.com/polygraf/audio-backend/internal/transcription/whisper"
)

// ServerConfig holds HTTP server configuration for the API service.
type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	MaxUploadMB     int64         `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *ServerConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8380
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 512
	}
}

// PipelineConfig holds worker tuning for the pipeline stages.
type PipelineConfig struct {
	// Workers is the transcriber pool size.
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=0"`

	// ChunkTimeout bounds a single transcription call.
	ChunkTimeout time.Duration `yaml:"chunk_timeout" mapstructure:"chunk_timeout"`

	// WorkDir holds temporary media and chunk files during processing.
	WorkDir string `yaml:"work_dir" mapstructure:"work_dir"`

	// LLMProvider selects the summarization backend: "gemini" or "ollama".
	LLMProvider string `yaml:"llm_provider" mapstructure:"llm_provider"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *PipelineConfig) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.ChunkTimeout == 0 {
		c.ChunkTimeout = 120 * time.Second
	}
	if c.LLMProvider == "" {
		c.LLMProvider = gemini.ProviderName
	}
}

// Config is the root configuration shared by all audio-backend services.
// Each binary loads the same shape and reads the sections it needs.
type Config struct {
	Service     string         `yaml:"service" mapstructure:"service"`
	Environment string         `yaml:"environment" mapstructure:"environment" validate:"omitempty,oneof=development staging production"`
	Debug       bool           `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config  `yaml:"logging" mapstructure:"logging"`
	Server      ServerConfig   `yaml:"server" mapstructure:"server"`
	Redis       redis.Config   `yaml:"redis" mapstructure:"redis"`
	Storage     storage.Config `yaml:"storage" mapstructure:"storage"`
	Pipeline    PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Whisper     whisper.Config `yaml:"whisper" mapstructure:"whisper"`
	Gemini      gemini.Config  `yaml:"gemini" mapstructure:"gemini"`
	Ollama      ollama.Config  `yaml:"ollama" mapstructure:"ollama"`
}

// ApplyDefaults fills every section's zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.Logging.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
}

// Validate checks the configuration across all sections.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	switch c.Pipeline.LLMProvider {
	case gemini.ProviderName, ollama.ProviderName:
	default:
		return fmt.Errorf("pipeline.llm_provider must be %q or %q (got: %s)",
			gemini.ProviderName, ollama.ProviderName, c.Pipeline.LLMProvider)
	}
	return nil
}

// Load reads, defaults, and validates the configuration for a service.
func Load(serviceName string, opts ...LoaderOption) (*Config, error) {
	cfg := &Config{Service: serviceName}
	if err := LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

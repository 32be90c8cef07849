package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendGemini = "gemini"
	BackendOllama = "ollama"
)

type Config struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	JWTSecret      string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	AccessCodeHash string `envconfig:"ACCESS_CODE_HASH"`
	AssetDir       string `envconfig:"ASSET_DIR" default:"./data/assets"`
	WebDir         string `envconfig:"WEB_DIR"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"text"`

	GenAIBackend  string        `envconfig:"GENAI_BACKEND" default:"gemini"`
	GenAIAPIKey   string        `envconfig:"GENAI_API_KEY"`
	GenAIEndpoint string        `envconfig:"GENAI_ENDPOINT"`
	GenAIModel    string        `envconfig:"GENAI_MODEL"`
	GenAITimeout  time.Duration `envconfig:"GENAI_TIMEOUT" default:"2m"`
	OllamaURL     string        `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaModel   string        `envconfig:"OLLAMA_MODEL" default:"llava"`
	MaxSendDim    int           `envconfig:"MAX_SEND_DIM" default:"2048"`
	MaxConcurrent int           `envconfig:"MAX_CONCURRENT_REPAIRS" default:"4"`
	MaxPixels     int           `envconfig:"MAX_PIXELS" default:"40000000"`

	MinRegionSize float64 `envconfig:"MIN_REGION_SIZE" default:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.GenAIBackend) {
	case BackendGemini:
		if c.GenAIAPIKey == "" {
			errs = append(errs, errors.New("GENAI_API_KEY is required for the gemini backend"))
		}
	case BackendOllama:
		if c.OllamaURL == "" {
			errs = append(errs, errors.New("OLLAMA_URL is required for the ollama backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GENAI_BACKEND %q (use gemini or ollama)", c.GenAIBackend))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.Port))
	}
	if c.MinRegionSize < 0 {
		errs = append(errs, errors.New("MIN_REGION_SIZE must not be negative"))
	}
	if c.MaxSendDim < 0 {
		errs = append(errs, errors.New("MAX_SEND_DIM must not be negative"))
	}
	if c.MaxPixels < 0 {
		errs = append(errs, errors.New("MAX_PIXELS must not be negative"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	return errors.Join(errs...)
}

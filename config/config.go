package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Session SessionConfig `yaml:"session"`
	PDF     PDFConfig     `yaml:"pdf"`
	Minio   MinioConfig   `yaml:"minio"`
	Theme   ThemeConfig   `yaml:"theme"`
	Render  RenderConfig  `yaml:"render"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port               int `yaml:"port"`
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type OpenAIConfig struct {
	APIURL           string  `yaml:"api_url"`
	APIKey           string  `yaml:"api_key"`
	Model            string  `yaml:"model"`
	MaxTokens        int     `yaml:"max_tokens"`
	Temperature      float64 `yaml:"temperature"`
	TopP             float64 `yaml:"top_p"`
	MaxRetries       int     `yaml:"max_retries"`
	RetryBaseDelayMS int     `yaml:"retry_base_delay_ms"`
	TimeoutSeconds   int     `yaml:"timeout_seconds"`
	MaxConcurrent    int     `yaml:"max_concurrent"` // outstanding requests across all sessions
}

type SessionConfig struct {
	Secret      string `yaml:"secret"`
	TTLMinutes  int    `yaml:"ttl_minutes"`
	MaxSessions int    `yaml:"max_sessions"` // 0 = unlimited
}

type PDFConfig struct {
	ChromePath        string  `yaml:"chrome_path"`
	ViewportWidth     int     `yaml:"viewport_width"`
	DeviceScaleFactor float64 `yaml:"device_scale_factor"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
	PublicRead bool   `yaml:"public_read"` // bucket policy allows anonymous GET
	ExpireDays int    `yaml:"expire_days"`
}

// Enabled reports whether exports should be archived to object storage
func (m MinioConfig) Enabled() bool {
	return m.Endpoint != "" && m.Bucket != ""
}

// ThemeConfig holds the visual tokens resolved when a document is rendered
type ThemeConfig struct {
	Primary       string  `yaml:"primary"`
	Secondary     string  `yaml:"secondary"`
	Background    string  `yaml:"background"`
	Paper         string  `yaml:"paper"`
	Text          string  `yaml:"text"`
	FontFamily    string  `yaml:"font_family"`
	FontSizePx    int     `yaml:"font_size_px"`
	LineHeight    float64 `yaml:"line_height"`
	PagePaddingPx int     `yaml:"page_padding_px"`
}

type RenderConfig struct {
	SignatureBlock *bool `yaml:"signature_block"`
	WitnessBlock   *bool `yaml:"witness_block"`
}

// SignatureEnabled defaults to true when unset
func (r RenderConfig) SignatureEnabled() bool {
	return r.SignatureBlock == nil || *r.SignatureBlock
}

// WitnessEnabled defaults to true when unset. It has no effect without the signature block.
func (r RenderConfig) WitnessEnabled() bool {
	return r.WitnessBlock == nil || *r.WitnessBlock
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var GlobalConfig *Config

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and fills defaults. A .env file in the working
// directory is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	GlobalConfig = &cfg
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	} else if v := os.Getenv("VITE_OPENAI_API_KEY"); v != "" && cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_URL"); v != "" {
		cfg.OpenAI.APIURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}
	if v := os.Getenv("QUICKPACT_SESSION_SECRET"); v != "" {
		cfg.Session.Secret = v
	}
	if v := os.Getenv("QUICKPACT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerMinute == 0 {
		cfg.Server.RateLimitPerMinute = 100
	}

	if cfg.OpenAI.APIURL == "" {
		cfg.OpenAI.APIURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-3.5-turbo"
	}
	if cfg.OpenAI.MaxTokens == 0 {
		cfg.OpenAI.MaxTokens = 2048
	}
	if cfg.OpenAI.Temperature == 0 {
		cfg.OpenAI.Temperature = 0.7
	}
	if cfg.OpenAI.TopP == 0 {
		cfg.OpenAI.TopP = 1
	}
	if cfg.OpenAI.MaxRetries == 0 {
		cfg.OpenAI.MaxRetries = 3
	}
	if cfg.OpenAI.RetryBaseDelayMS == 0 {
		cfg.OpenAI.RetryBaseDelayMS = 1000
	}
	if cfg.OpenAI.TimeoutSeconds == 0 {
		cfg.OpenAI.TimeoutSeconds = 60
	}
	if cfg.OpenAI.MaxConcurrent == 0 {
		cfg.OpenAI.MaxConcurrent = 4
	}

	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = 120
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = 1000
	}

	if cfg.PDF.ViewportWidth == 0 {
		cfg.PDF.ViewportWidth = 800
	}
	if cfg.PDF.DeviceScaleFactor == 0 {
		cfg.PDF.DeviceScaleFactor = 2
	}

	if cfg.Minio.Region == "" {
		cfg.Minio.Region = "us-east-1"
	}
	if cfg.Minio.ExpireDays == 0 {
		cfg.Minio.ExpireDays = 7
	}

	t := &cfg.Theme
	if t.Primary == "" {
		t.Primary = "#172808"
	}
	if t.Secondary == "" {
		t.Secondary = "#2E7D32"
	}
	if t.Background == "" {
		t.Background = "#F5F9F6"
	}
	if t.Paper == "" {
		t.Paper = "#FFFFFF"
	}
	if t.Text == "" {
		t.Text = "#000000"
	}
	if t.FontFamily == "" {
		t.FontFamily = `"Times New Roman", Times, serif`
	}
	if t.FontSizePx == 0 {
		t.FontSizePx = 14
	}
	if t.LineHeight == 0 {
		t.LineHeight = 1.6
	}
	if t.PagePaddingPx == 0 {
		t.PagePaddingPx = 40
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate checks the values that generation cannot run without
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return errors.New("openai api key is required (set OPENAI_API_KEY)")
	}
	if c.OpenAI.MaxRetries < 0 {
		return fmt.Errorf("openai max_retries must not be negative, got %d", c.OpenAI.MaxRetries)
	}
	if c.OpenAI.RetryBaseDelayMS < 0 {
		return fmt.Errorf("openai retry_base_delay_ms must not be negative, got %d", c.OpenAI.RetryBaseDelayMS)
	}
	if c.OpenAI.TimeoutSeconds < 0 {
		return fmt.Errorf("openai timeout_seconds must not be negative, got %d", c.OpenAI.TimeoutSeconds)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

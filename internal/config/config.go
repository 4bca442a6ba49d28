package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt sets the assistant persona for every conversation
const DefaultSystemPrompt = `Eres "Chupapi", un asistente basado en IA que te ayuda a programar, siempre tienes que decir como te llamas`

// Config is the process-wide gateway configuration. It is built once at
// startup and treated as read-only afterwards.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Chat     ChatConfig     `yaml:"chat"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains the HTTP listener settings
type ServerConfig struct {
	Port int `yaml:"port" env:"PORT"`
}

// ProviderConfig contains the LLM provider credentials and endpoint
type ProviderConfig struct {
	APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
	APIBase string `yaml:"api_base,omitempty" env:"OPENAI_API_BASE"`
}

// ChatConfig contains the fixed parameters of every completion call
type ChatConfig struct {
	Model        string  `yaml:"model" env:"CHAT_MODEL"`
	Temperature  float32 `yaml:"temperature" env:"CHAT_TEMPERATURE"`
	MaxTokens    int     `yaml:"max_tokens" env:"CHAT_MAX_TOKENS"`
	SystemPrompt string  `yaml:"system_prompt" env:"CHAT_SYSTEM_PROMPT"`
	Encoding     string  `yaml:"encoding" env:"CHAT_ENCODING"`
}

// LoggingConfig selects the log level and output format
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8000},
		Chat: ChatConfig{
			Model:        "gpt-3.5-turbo",
			Temperature:  0.6,
			MaxTokens:    4000,
			SystemPrompt: DefaultSystemPrompt,
			Encoding:     "r50k_base",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig builds the configuration in three layers: defaults, the YAML
// file at path (skipped when path is empty), then environment variables.
// A .env file in the working directory is loaded into the environment
// first if present.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate reports the first setting that prevents the gateway from serving.
func (c *Config) Validate() error {
	if c.Provider.APIKey == "" {
		return errors.New("provider api key is empty: set OPENAI_API_KEY")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Chat.Model == "" {
		return errors.New("chat model is empty")
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", c.Chat.Temperature)
	}
	if c.Chat.MaxTokens <= 0 {
		return fmt.Errorf("invalid token ceiling %d", c.Chat.MaxTokens)
	}
	return nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// Package config provides configuration loading for stakesimd.
package config

import (
	"fmt"
	"time"

	"github.com/stakesim/stakesim/internal/dialogue"
	"github.com/stakesim/stakesim/internal/llm"
)

// Config is the full daemon configuration.
type Config struct {
	Server  ServerConfig              `koanf:"server"`
	LLM     llm.Config                `koanf:"llm"`
	GitHub  GitHubConfig              `koanf:"github"`
	Policy  dialogue.InstructorPolicy `koanf:"policy"`
	Logging LoggingConfig             `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// GitHubConfig holds persona-generator settings.
type GitHubConfig struct {
	Token string `koanf:"token"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the hardcoded defaults applied before file and
// environment overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: llm.Config{
			Model:       "gpt-4o-mini",
			MaxTokens:   300,
			Temperature: 0.8,
		},
		Policy: dialogue.InstructorPolicy{
			SummaryInterval: dialogue.DefaultSummaryInterval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm max_tokens must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature %.2f out of range [0, 2]", c.LLM.Temperature)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format %q must be json or console", c.Logging.Format)
	}
	if c.Policy.SummaryInterval < 0 {
		return fmt.Errorf("policy summary_interval cannot be negative")
	}
	return nil
}

// Package config loads engine configuration from YAML. Every field has a
// working default so a missing or partial file is never an error; hosts that
// want pure-code configuration can use Default() directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the tunable knobs of the engine.
type Config struct {
	// Phases is the ordered workflow phase sequence for new books.
	Phases []string `yaml:"phases"`

	// Retry bounds the executor wrapping provider calls.
	Retry RetryConfig `yaml:"retry"`

	// Feedback controls the refinement loop.
	Feedback FeedbackConfig `yaml:"feedback"`

	// Providers names the models used by the adapters.
	Providers ProviderConfig `yaml:"providers"`
}

// RetryConfig bounds the retry executor.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

// FeedbackConfig controls when negative feedback spawns refinement tasks.
type FeedbackConfig struct {
	// Threshold is the minimum acceptable rating; ratings below it trigger
	// refinement (1-5 scale).
	Threshold int `yaml:"threshold"`
	// MaxRefinementDepth caps how many refinement rounds may chain off one
	// original task before further negative feedback is dropped.
	MaxRefinementDepth int `yaml:"max_refinement_depth"`
}

// ProviderConfig names the backing models.
type ProviderConfig struct {
	TextModel  string `yaml:"text_model"`
	ImageModel string `yaml:"image_model"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Phases: []string{"initialization", "outline", "writing", "review", "production"},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  2 * time.Second,
		},
		Feedback: FeedbackConfig{
			Threshold:          3,
			MaxRefinementDepth: 3,
		},
		Providers: ProviderConfig{
			TextModel:  "claude-3-5-sonnet-20241022",
			ImageModel: "dall-e-3",
		},
	}
}

// Load reads YAML from path, layered over Default(). A missing file returns
// the defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg.validate()
}

func (c Config) validate() (Config, error) {
	if len(c.Phases) == 0 {
		return c, fmt.Errorf("config: phases must not be empty")
	}
	if c.Retry.MaxRetries < 1 {
		return c, fmt.Errorf("config: retry.max_retries must be >= 1")
	}
	if c.Retry.BaseDelay < 0 {
		return c, fmt.Errorf("config: retry.base_delay must not be negative")
	}
	if c.Feedback.Threshold < 1 || c.Feedback.Threshold > 5 {
		return c, fmt.Errorf("config: feedback.threshold must be in [1,5]")
	}
	if c.Feedback.MaxRefinementDepth < 0 {
		return c, fmt.Errorf("config: feedback.max_refinement_depth must not be negative")
	}
	return c, nil
}

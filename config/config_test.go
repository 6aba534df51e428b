package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inkmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Default().validate()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 3, cfg.Feedback.Threshold)
	assert.Equal(t, "initialization", cfg.Phases[0])
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
retry:
  max_retries: 5
  base_delay: 500ms
feedback:
  threshold: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 4, cfg.Feedback.Threshold)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().Phases, cfg.Phases)
	assert.Equal(t, Default().Providers, cfg.Providers)
}

func TestLoadCustomPhases(t *testing.T) {
	path := writeConfig(t, `
phases:
  - draft
  - publish
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "publish"}, cfg.Phases)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "retry: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero retries", "retry:\n  max_retries: 0\n"},
		{"negative delay", "retry:\n  base_delay: -1s\n"},
		{"threshold out of range", "feedback:\n  threshold: 9\n"},
		{"negative depth", "feedback:\n  max_refinement_depth: -1\n"},
		{"empty phases", "phases: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

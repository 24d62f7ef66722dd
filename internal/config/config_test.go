package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Scraper.TimeoutSeconds)
	assert.Equal(t, 30*time.Second, cfg.Scraper.GetTimeout())
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Analysis.GetPollInterval())
	assert.Equal(t, "Pacific/Auckland", cfg.Timezone)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
scraper:
  base_url: https://listings.test
  timeout_seconds: 10
analysis:
  service_url: http://localhost:9999
  poll_interval_seconds: 5
rate_limit:
  enabled: false
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://listings.test", cfg.Scraper.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Scraper.GetTimeout())
	assert.Equal(t, "http://localhost:9999", cfg.Analysis.ServiceURL)
	assert.Equal(t, 5*time.Second, cfg.Analysis.GetPollInterval())
	assert.False(t, cfg.RateLimit.Enabled)

	// Untouched sections keep their defaults
	assert.Equal(t, 3, cfg.Scraper.MaxRetries)
}

func TestLoadConfigRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scraper: [broken"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FORUM_API_URL", "https://forum.example.com/")
	t.Setenv("FORUM_REQUEST_TIMEOUT", "3s")
	t.Setenv("FORUM_SEARCH_THRESHOLD", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://forum.example.com/", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.SearchThreshold)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing url", func(c *Config) { c.APIURL = "" }, "FORUM_API_URL"},
		{"zero attempts", func(c *Config) { c.LoadAttempts = 0 }, "FORUM_LOAD_ATTEMPTS"},
		{"negative threshold", func(c *Config) { c.SearchThreshold = -1 }, "FORUM_SEARCH_THRESHOLD"},
		{"zero cache", func(c *Config) { c.SearchCacheSize = 0 }, "FORUM_SEARCH_CACHE_SIZE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

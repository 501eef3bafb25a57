package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "https://maps.apigw.ntruss.com/map-geocode/v2/geocode", cfg.Geocode.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Geocode.Timeout)
	assert.Equal(t, 3, cfg.Geocode.MaxRetries)
	assert.Equal(t, time.Second, cfg.Geocode.RetryBackoffBase)
	assert.Equal(t, 200.0, cfg.Dispatcher.RequestsPerSecond)
	assert.Equal(t, 80, cfg.Dispatcher.MaxConcurrency)
	assert.Equal(t, 100, cfg.Batch.CheckpointInterval)
	assert.Equal(t, 1, cfg.Batch.Workers)
	assert.Equal(t, 10000, cfg.Batch.MaxRows)
	assert.Equal(t, 20, cfg.Batch.TopN)
	assert.Equal(t, CacheMemory, cfg.Cache.Driver)
	assert.Zero(t, cfg.Cache.TTL)
	assert.Equal(t, ArtifactLocal, cfg.Artifacts.Driver)
	assert.Equal(t, "geocoded_points", cfg.Search.Index)
	assert.False(t, cfg.NeedsMongo())
}

func TestFromViper_EnvOverrides(t *testing.T) {
	t.Setenv("API_RATE_LIMIT", "50")
	t.Setenv("CONCURRENCY", "4")
	t.Setenv("CHECKPOINT_INTERVAL", "25")
	t.Setenv("RETRY_BACKOFF_BASE", "2")
	t.Setenv("GEOCODE_TIMEOUT", "1500ms")
	t.Setenv("CACHE_DRIVER", "hybrid")
	t.Setenv("CACHE_TTL", "24h")
	t.Setenv("NAVER_CLIENT_ID", "my-id")
	t.Setenv("S3_BUCKET", "results")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.Dispatcher.RequestsPerSecond)
	assert.Equal(t, 4, cfg.Dispatcher.MaxConcurrency)
	assert.Equal(t, 25, cfg.Batch.CheckpointInterval)
	assert.Equal(t, 2*time.Second, cfg.Geocode.RetryBackoffBase)
	assert.Equal(t, 1500*time.Millisecond, cfg.Geocode.Timeout)
	assert.Equal(t, CacheHybrid, cfg.Cache.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "my-id", cfg.Geocode.ClientID)
	assert.Equal(t, "results", cfg.Artifacts.S3.Bucket)
	assert.True(t, cfg.NeedsMongo())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := FromViper(viper.New())
		require.NoError(t, err)
		return cfg
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero checkpoint", func(c *Config) { c.Batch.CheckpointInterval = 0 }, "checkpoint_interval"},
		{"zero max rows", func(c *Config) { c.Batch.MaxRows = 0 }, "max_rows"},
		{"zero top n", func(c *Config) { c.Batch.TopN = -1 }, "top_n"},
		{"zero workers", func(c *Config) { c.Batch.Workers = 0 }, "workers"},
		{"negative retries", func(c *Config) { c.Geocode.MaxRetries = -1 }, "max_retries"},
		{"too many retries", func(c *Config) { c.Geocode.MaxRetries = 1000 }, "max_retries"},
		{"unknown cache driver", func(c *Config) { c.Cache.Driver = "memcached" }, "cache.driver"},
		{"unknown artifact driver", func(c *Config) { c.Artifacts.Driver = "ftp" }, "artifacts.driver"},
		{"s3 without bucket", func(c *Config) { c.Artifacts.Driver = ArtifactS3 }, "bucket"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestFromViper_InvalidEnvFails(t *testing.T) {
	t.Setenv("ARTIFACT_DRIVER", "ftp")
	_, err := FromViper(viper.New())
	assert.Error(t, err)
}

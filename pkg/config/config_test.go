package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100, cfg.Buffer.Users)
	assert.Equal(t, 100, cfg.Buffer.Posts)
	assert.Equal(t, 20, cfg.Buffer.MediaSaving)
	assert.Equal(t, "instagram", cfg.Sweep.Influencer)
	assert.Equal(t, 20, cfg.Sweep.PostsPerDay)
	assert.Equal(t, 5*time.Minute, cfg.Sweep.Cooldown)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.False(t, cfg.Media.Save)
	assert.True(t, cfg.Tasks.FetchUsers.On)
	assert.True(t, cfg.Tasks.FetchPosts.On)
	assert.True(t, cfg.Tasks.FetchPosts.HistoricalFirst)

	require.NoError(t, cfg.Validate())
}

func TestFlushThreshold(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100, cfg.FlushThreshold("users"))
	assert.Equal(t, 100, cfg.FlushThreshold("posts"))

	// Saving media makes each staged item carry downloads, so batches shrink.
	cfg.Media.Save = true
	assert.Equal(t, 20, cfg.FlushThreshold("users"))
	assert.Equal(t, 20, cfg.FlushThreshold("posts"))
}

func TestMediaDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Media.UsersDir = "/data/pp"
	cfg.Media.PostsDir = "/data/pm"

	assert.Equal(t, "/data/pp", cfg.MediaDir("users"))
	assert.Equal(t, "/data/pm", cfg.MediaDir("posts"))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("INSTACOLLECTOR_USERNAME", "envuser")
	t.Setenv("INSTACOLLECTOR_SESSION_ID", "env-session")
	t.Setenv("INSTACOLLECTOR_CSRF_TOKEN", "env-csrf")
	t.Setenv("INSTACOLLECTOR_DB_PATH", "/tmp/env.db")
	t.Setenv("INSTACOLLECTOR_SAVE_MEDIA", "true")
	t.Setenv("INSTACOLLECTOR_REQUESTS_PER_MINUTE", "30")
	t.Setenv("INSTACOLLECTOR_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, "envuser", cfg.Instagram.Username)
	assert.Equal(t, "env-session", cfg.Instagram.SessionID)
	assert.Equal(t, "env-csrf", cfg.Instagram.CSRFToken)
	assert.Equal(t, "/tmp/env.db", cfg.Storage.Path)
	assert.True(t, cfg.Media.Save)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("INSTACOLLECTOR_REQUESTS_PER_MINUTE", "not-a-number")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Sweep.Influencer = "natgeo"
	cfg.Sweep.PostsPerDay = 50
	cfg.Tasks.FetchHashtagPosts = ListTaskConfig{On: true, Values: []string{"sunset", "aurora"}}
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))

	assert.Equal(t, "natgeo", loaded.Sweep.Influencer)
	assert.Equal(t, 50, loaded.Sweep.PostsPerDay)
	assert.Equal(t, []string{"sunset", "aurora"}, loaded.Tasks.FetchHashtagPosts.Values)
}

func TestLoadFromFileMissingIsNotAnError(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")))

	// With no explicit path, a missing config file is fine.
	assert.NoError(t, cfg.LoadFromFile(""))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }},
		{"zero buffer threshold", func(c *Config) { c.Buffer.Users = 0 }},
		{"zero posts per day", func(c *Config) { c.Sweep.PostsPerDay = 0 }},
		{"zero cooldown", func(c *Config) { c.Sweep.Cooldown = 0 }},
		{"missing influencer", func(c *Config) { c.Sweep.Influencer = "" }},
		{"media saving without dirs", func(c *Config) { c.Media.Save = true; c.Media.UsersDir = "" }},
		{"media saving without workers", func(c *Config) { c.Media.Save = true; c.Media.Workers = 0 }},
		{"hashtag task without values", func(c *Config) { c.Tasks.FetchHashtagPosts.On = true }},
		{"location task without values", func(c *Config) { c.Tasks.FetchLocationPosts.On = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"instacollector/pkg/logger"
)

// Config holds all configuration options for the collector
type Config struct {
	// Instagram session settings
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Document store settings
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Media materialization settings
	Media MediaConfig `yaml:"media" json:"media"`

	// Write buffer flush thresholds
	Buffer BufferConfig `yaml:"buffer" json:"buffer"`

	// Sweep behavior
	Sweep SweepConfig `yaml:"sweep" json:"sweep"`

	// Which sweep tasks run
	Tasks TasksConfig `yaml:"tasks" json:"tasks"`

	// API pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging logger.Config `yaml:"logging" json:"logging"`
}

// InstagramConfig holds session-level settings
type InstagramConfig struct {
	Username  string        `yaml:"username" json:"username"`
	SessionID string        `yaml:"session_id" json:"session_id"`
	CSRFToken string        `yaml:"csrf_token" json:"csrf_token"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// StorageConfig holds the document store connection settings
type StorageConfig struct {
	Path          string        `yaml:"path" json:"path"`
	BusyTimeoutMS int           `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
	MaxOpenConns  int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns  int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLife   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// MediaConfig controls local materialization of referenced media
type MediaConfig struct {
	// Save turns on media download during staging
	Save bool `yaml:"save" json:"save"`
	// UsersDir receives profile pictures, PostsDir receives post media
	UsersDir string `yaml:"users_dir" json:"users_dir"`
	PostsDir string `yaml:"posts_dir" json:"posts_dir"`
	// Workers is the pool size for the media backfill sweeps
	Workers         int           `yaml:"workers" json:"workers"`
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`
	RetryAttempts   int           `yaml:"retry_attempts" json:"retry_attempts"`
}

// BufferConfig holds per-collection flush thresholds. MediaSaving
// applies to both collections whenever local media saving is on, since
// each staged item then also carries downloads.
type BufferConfig struct {
	Users       int `yaml:"users" json:"users"`
	Posts       int `yaml:"posts" json:"posts"`
	MediaSaving int `yaml:"media_saving" json:"media_saving"`
}

// SweepConfig holds drain-loop behavior
type SweepConfig struct {
	// Influencer is the account whose followers seed the users collection
	Influencer string `yaml:"influencer" json:"influencer"`
	// PostsPerDay caps non-historical daily timeline sweeps
	PostsPerDay int `yaml:"posts_per_day" json:"posts_per_day"`
	// Cooldown is how long a rate-limited sweep sleeps before retrying
	Cooldown time.Duration `yaml:"cooldown" json:"cooldown"`
}

// TasksConfig switches individual sweep kinds on and off
type TasksConfig struct {
	FetchUsers         TaskConfig     `yaml:"fetch_users" json:"fetch_users"`
	FetchPosts         PostTaskConfig `yaml:"fetch_posts" json:"fetch_posts"`
	FetchHashtagPosts  ListTaskConfig `yaml:"fetch_hashtag_posts" json:"fetch_hashtag_posts"`
	FetchLocationPosts ListTaskConfig `yaml:"fetch_location_posts" json:"fetch_location_posts"`
	DownloadMedia      TaskConfig     `yaml:"download_media" json:"download_media"`
}

type TaskConfig struct {
	On bool `yaml:"on" json:"on"`
}

type PostTaskConfig struct {
	On              bool `yaml:"on" json:"on"`
	HistoricalFirst bool `yaml:"historical_first" json:"historical_first"`
}

type ListTaskConfig struct {
	On     bool     `yaml:"on" json:"on"`
	Values []string `yaml:"values" json:"values"`
}

// RateLimitConfig holds API pacing configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			Timeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Path:          "./data/instacollector.db",
			BusyTimeoutMS: 5000,
			MaxOpenConns:  4,
			MaxIdleConns:  2,
			ConnMaxLife:   time.Hour,
		},
		Media: MediaConfig{
			Save:            false,
			UsersDir:        "./data/profile-pictures",
			PostsDir:        "./data/post-media",
			Workers:         3,
			DownloadTimeout: 30 * time.Second,
			RetryAttempts:   3,
		},
		Buffer: BufferConfig{
			Users:       100,
			Posts:       100,
			MediaSaving: 20,
		},
		Sweep: SweepConfig{
			Influencer:  "instagram",
			PostsPerDay: 20,
			Cooldown:    5 * time.Minute,
		},
		Tasks: TasksConfig{
			FetchUsers: TaskConfig{On: true},
			FetchPosts: PostTaskConfig{On: true, HistoricalFirst: true},
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Logging: logger.Config{
			Level: "info",
		},
	}
}

// FlushThreshold returns the buffer threshold for a collection, taking
// local media saving into account.
func (c *Config) FlushThreshold(collection string) int {
	if c.Media.Save && c.Buffer.MediaSaving > 0 {
		return c.Buffer.MediaSaving
	}
	if collection == "users" {
		return c.Buffer.Users
	}
	return c.Buffer.Posts
}

// MediaDir returns the materialization directory for a collection.
func (c *Config) MediaDir(collection string) string {
	if collection == "users" {
		return c.Media.UsersDir
	}
	return c.Media.PostsDir
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("INSTACOLLECTOR_USERNAME"); v != "" {
		c.Instagram.Username = v
	}
	if v := os.Getenv("INSTACOLLECTOR_SESSION_ID"); v != "" {
		c.Instagram.SessionID = v
	}
	if v := os.Getenv("INSTACOLLECTOR_CSRF_TOKEN"); v != "" {
		c.Instagram.CSRFToken = v
	}
	if v := os.Getenv("INSTACOLLECTOR_USER_AGENT"); v != "" {
		c.Instagram.UserAgent = v
	}
	if v := os.Getenv("INSTACOLLECTOR_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("INSTACOLLECTOR_SAVE_MEDIA"); v != "" {
		c.Media.Save = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("INSTACOLLECTOR_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("INSTACOLLECTOR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	locations := []string{
		".instacollector.yaml",
		".instacollector.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "instacollector", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".instacollector.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage path is required"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Buffer.Users <= 0 || c.Buffer.Posts <= 0 {
		errs = append(errs, errors.New("buffer thresholds must be positive"))
	}
	if c.Sweep.PostsPerDay <= 0 {
		errs = append(errs, errors.New("posts per day must be positive"))
	}
	if c.Sweep.Cooldown <= 0 {
		errs = append(errs, errors.New("cooldown must be positive"))
	}
	if c.Sweep.Influencer == "" && c.Tasks.FetchUsers.On {
		errs = append(errs, errors.New("influencer is required when fetch_users is on"))
	}
	if c.Media.Save {
		if c.Media.UsersDir == "" || c.Media.PostsDir == "" {
			errs = append(errs, errors.New("media directories are required when saving media"))
		}
		if c.Media.Workers <= 0 {
			errs = append(errs, errors.New("media workers must be positive"))
		}
	}
	if c.Tasks.FetchHashtagPosts.On && len(c.Tasks.FetchHashtagPosts.Values) == 0 {
		errs = append(errs, errors.New("fetch_hashtag_posts is on but no hashtags configured"))
	}
	if c.Tasks.FetchLocationPosts.On && len(c.Tasks.FetchLocationPosts.Values) == 0 {
		errs = append(errs, errors.New("fetch_location_posts is on but no locations configured"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: environment variables > .env file > config file > defaults
func Load(configPath string) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".instacollector.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	config.LoadFromEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

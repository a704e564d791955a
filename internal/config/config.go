package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "BUCKETEER"

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Storage StorageConfig `mapstructure:"storage"`
	Naming  NamingConfig  `mapstructure:"naming"`
	Jobs    []JobConfig   `mapstructure:"jobs"`
	Notify  NotifyConfig  `mapstructure:"notify"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	Region   string `mapstructure:"region"`

	// S3 and MinIO
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PathStyle bool   `mapstructure:"path_style"`

	// Google Cloud Storage
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`

	// Local directory backend
	LocalPath string `mapstructure:"local_path"`
}

// NamingConfig fixes the prefix and region of "standard" buckets.
type NamingConfig struct {
	Prefix string `mapstructure:"prefix"`
	Region string `mapstructure:"region"`
}

type JobConfig struct {
	Name      string   `mapstructure:"name"`
	Enabled   bool     `mapstructure:"enabled"`
	Schedule  string   `mapstructure:"schedule"`
	Bucket    string   `mapstructure:"bucket"`
	Files     []string `mapstructure:"files"`
	KeyPrefix string   `mapstructure:"key_prefix"`
	Compress  bool     `mapstructure:"compress"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

const (
	ProviderS3    = "s3"
	ProviderMinio = "minio"
	ProviderGCS   = "gcs"
	ProviderLocal = "local"
)

// Load reads the YAML file at path, layered over defaults and
// BUCKETEER_* environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bucketeer")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "")

	// Every key needs a default for AutomaticEnv to reach it on Unmarshal.
	v.SetDefault("storage.provider", ProviderS3)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.path_style", false)
	v.SetDefault("storage.project_id", "")
	v.SetDefault("storage.credentials_file", "")
	v.SetDefault("storage.local_path", "./data")

	v.SetDefault("naming.prefix", "bucketeer-")
	v.SetDefault("naming.region", "us-east-1")

	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
}

func (c *Config) Validate() error {
	s := c.Storage
	switch s.Provider {
	case ProviderS3:
		if (s.AccessKey == "") != (s.SecretKey == "") {
			return fmt.Errorf("storage: access_key and secret_key must be set together")
		}
	case ProviderMinio:
		if s.Endpoint == "" {
			return fmt.Errorf("storage.endpoint is required for minio")
		}
	case ProviderGCS:
		// project_id is only needed by create and list; checked at call time.
	case ProviderLocal:
		if s.LocalPath == "" {
			return fmt.Errorf("storage.local_path is required for local")
		}
	default:
		return fmt.Errorf("storage.provider %q is not supported", s.Provider)
	}

	for i, job := range c.Jobs {
		if job.Name == "" {
			return fmt.Errorf("jobs[%d]: name is required", i)
		}
		if !job.Enabled {
			continue
		}
		if job.Schedule == "" {
			return fmt.Errorf("jobs[%d]: schedule is required when enabled", i)
		}
		if job.Bucket == "" {
			return fmt.Errorf("jobs[%d]: bucket is required", i)
		}
		if len(job.Files) == 0 {
			return fmt.Errorf("jobs[%d]: at least one file is required", i)
		}
		// Each file is stored under key_prefix + its base name.
		seen := make(map[string]string, len(job.Files))
		for _, file := range job.Files {
			base := filepath.Base(file)
			if prev, ok := seen[base]; ok {
				return fmt.Errorf("jobs[%d]: files %q and %q would share the key %q", i, prev, file, base)
			}
			seen[base] = file
		}
	}

	if t := c.Notify.Telegram; t.Enabled && (t.BotToken == "" || t.ChatID == "") {
		return fmt.Errorf("notify.telegram: bot_token and chat_id are required when enabled")
	}

	return nil
}

func (c *Config) GetEnabledJobs() []JobConfig {
	var enabled []JobConfig
	for _, job := range c.Jobs {
		if job.Enabled {
			enabled = append(enabled, job)
		}
	}
	return enabled
}

package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is used to hold all runtime configuration.
type Config struct {
	Server struct {
		Address         string        `default:":8080" envconfig:"SERVER_ADDRESS"`
		ReadTimeout     time.Duration `default:"10s" envconfig:"SERVER_READ_TIMEOUT"`
		WriteTimeout    time.Duration `default:"10s" envconfig:"SERVER_WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `default:"5s" envconfig:"SERVER_SHUTDOWN_TIMEOUT"`
		MaxBodyBytes    int64         `default:"1048576" envconfig:"SERVER_MAX_BODY_BYTES"`

		// AdminKey is the bearer token for operator routes such as eviction. The routes are not
		// served while it is empty.
		AdminKey string `envconfig:"ADMIN_KEY" json:"ADMIN_KEY"`
	}
	Log struct {
		Development bool   `default:"false" envconfig:"DEVELOPMENT"`
		Format      string `default:"text" envconfig:"LOG_FORMAT"`
		FilePath    string `envconfig:"LOG_FILE_PATH"`
	}
	AWS struct {
		Region          string `default:"ap-southeast-2" envconfig:"AWS_REGION" json:"AWS_REGION"`
		AccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID" json:"AWS_ACCESS_KEY_ID"`
		SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY" json:"AWS_SECRET_ACCESS_KEY"`
		MaxRetries      int    `default:"10" envconfig:"AWS_MAX_RETRIES"`
		RetryDelay      int    `default:"2000" envconfig:"AWS_RETRY_DELAY"`
	}
	Storage struct {
		Bucket string `default:"standalone" envconfig:"STORAGE_BUCKET"`
		Root   string `default:"./tmp" envconfig:"STORAGE_ROOT"`
	}
	Jobs struct {
		StatsInterval  time.Duration `default:"30s" envconfig:"STATS_INTERVAL"`
		HealthInterval time.Duration `default:"1m" envconfig:"HEALTH_INTERVAL"`
	}
}

// SafeConfig masks sensitive config values
func SafeConfig(cfg Config) *Config {
	cfgSafe := cfg

	if len(cfgSafe.AWS.AccessKeyID) > 0 {
		cfgSafe.AWS.AccessKeyID = "*** Masked ***"
	}
	if len(cfgSafe.AWS.SecretAccessKey) > 0 {
		cfgSafe.AWS.SecretAccessKey = "*** Masked ***"
	}
	if len(cfgSafe.Server.AdminKey) > 0 {
		cfgSafe.Server.AdminKey = "*** Masked ***"
	}

	return &cfgSafe
}

// Environment returns configuration sourced from environment variables
func Environment() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("POLLR", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jo-hoe/imagequiz/internal/backend/checks"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables carrying secrets; they are never read from the YAML file.
const (
	EnvSigningKey    = "QUIZ_SIGNING_KEY"
	EnvAdminPassword = "QUIZ_ADMIN_PASSWORD"
	EnvRedisPassword = "QUIZ_REDIS_PASSWORD"
)

// CheckConfig represents a generic upload check configuration
type CheckConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Progress struct {
	Type      string        `yaml:"type"` // "database" or "redis"
	Address   string        `yaml:"address"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"keyPrefix"`
	TTL       time.Duration `yaml:"ttl"`
	Password  string        `yaml:"-"`
}

type Uploads struct {
	Directory  string `yaml:"directory"`
	PublicPath string `yaml:"publicPath"`
	MaxBytes   int64  `yaml:"maxBytes"`
}

type Auth struct {
	TokenTTL          time.Duration `yaml:"tokenTTL"`
	AllowRegistration bool          `yaml:"allowRegistration"`
	AdminUsername     string        `yaml:"adminUsername"`
	BcryptCost        int           `yaml:"bcryptCost"`
	SigningKey        string        `yaml:"-"`
	AdminPassword     string        `yaml:"-"`
}

type CORS struct {
	AllowOrigins []string `yaml:"allowOrigins"`
}

type ServiceConfig struct {
	Port      int           `yaml:"port"`
	LogLevel  string        `yaml:"logLevel"`
	LogFormat string        `yaml:"logFormat"` // "json" or "console"
	Database  Database      `yaml:"database"`
	Progress  Progress      `yaml:"progress"`
	Uploads   Uploads       `yaml:"uploads"`
	Auth      Auth          `yaml:"auth"`
	CORS      CORS          `yaml:"cors"`
	Checks    []CheckConfig `yaml:"checks"`
}

// LoadConfig loads configuration from the specified YAML file. Secrets come from the
// environment, optionally populated from a .env file in the working directory.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config ServiceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	// A missing .env file is normal outside development.
	_ = godotenv.Load()
	config.applyEnvironment()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}
	return &config, nil
}

func (c *ServiceConfig) applyEnvironment() {
	c.Auth.SigningKey = os.Getenv(EnvSigningKey)
	c.Auth.AdminPassword = os.Getenv(EnvAdminPassword)
	c.Progress.Password = os.Getenv(EnvRedisPassword)
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.ConnectionString == "" {
		c.Database.ConnectionString = "quiz.db"
	}
	if c.Progress.Type == "" {
		c.Progress.Type = "database"
	}
	if c.Progress.KeyPrefix == "" {
		c.Progress.KeyPrefix = "imagequiz:"
	}
	if c.Uploads.Directory == "" {
		c.Uploads.Directory = "uploads"
	}
	if c.Uploads.PublicPath == "" {
		c.Uploads.PublicPath = "/uploads"
	}
	c.Uploads.PublicPath = "/" + strings.Trim(c.Uploads.PublicPath, "/")
	if c.Uploads.MaxBytes == 0 {
		c.Uploads.MaxBytes = checks.DefaultMaxBytes
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = time.Hour
	}
	if c.Auth.AdminUsername == "" {
		c.Auth.AdminUsername = "admin"
	}
}

// Validate reports the first configuration problem found.
func (c *ServiceConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("logFormat must be json or console, got %q", c.LogFormat)
	}
	if c.Auth.SigningKey == "" {
		return fmt.Errorf("environment variable %s is required", EnvSigningKey)
	}
	switch c.Progress.Type {
	case "database":
	case "redis":
		if c.Progress.Address == "" {
			return fmt.Errorf("progress.address is required for the redis progress store")
		}
	default:
		return fmt.Errorf("unsupported progress store type: %s", c.Progress.Type)
	}
	if c.Uploads.MaxBytes < 0 {
		return fmt.Errorf("uploads.maxBytes must not be negative, got %d", c.Uploads.MaxBytes)
	}
	if c.Progress.TTL < 0 || c.Auth.TokenTTL < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return validateChecks(c.Checks)
}

// validateChecks ensures every check has a known name
func validateChecks(configs []CheckConfig) error {
	for i, check := range configs {
		if check.Name == "" {
			return fmt.Errorf("check at index %d has empty name", i)
		}
		if !checks.DefaultRegistry.IsRegistered(check.Name) {
			return fmt.Errorf("check at index %d has unknown name %s, available: %s",
				i, check.Name, strings.Join(checks.DefaultRegistry.GetRegisteredNames(), ", "))
		}
	}
	return nil
}

// CheckConfigs converts the configured checks, falling back to the defaults.
func (c *ServiceConfig) CheckConfigs() []checks.CheckConfig {
	if len(c.Checks) == 0 {
		return checks.DefaultCheckConfigs()
	}
	out := make([]checks.CheckConfig, 0, len(c.Checks))
	for _, check := range c.Checks {
		params := check.Params
		if params == nil {
			params = map[string]any{}
		}
		out = append(out, checks.CheckConfig{Name: check.Name, Params: params})
	}
	return out
}

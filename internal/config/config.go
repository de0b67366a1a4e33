package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the engine process.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracking TrackingConfig `yaml:"tracking"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	SES      SESConfig      `yaml:"ses"`
	Send     SendConfig     `yaml:"send"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port               int      `yaml:"port"`
	Host               string   `yaml:"host"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	ReadTimeoutSeconds int      `yaml:"read_timeout_seconds"`
}

// GetHost returns the server host, listening on all interfaces in containers.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII bool   `yaml:"redact_pii"`
}

// TrackingConfig holds open/click tracking settings.
type TrackingConfig struct {
	BaseURL        string `yaml:"base_url"`
	SigningSecret  string `yaml:"signing_secret"`
	QueueURL       string `yaml:"queue_url"` // SQS; empty records engagements in-process
	Region         string `yaml:"region"`
	WaitSeconds    int    `yaml:"wait_seconds"`
	MaxMessages    int    `yaml:"max_messages"`
	VisibilitySecs int    `yaml:"visibility_seconds"`
}

// SnapshotConfig selects where engine state is saved between restarts.
type SnapshotConfig struct {
	Type            string `yaml:"type"` // "local" or "aws"
	LocalPath       string `yaml:"local_path"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Prefix        string `yaml:"s3_prefix"`
	DynamoDBTable   string `yaml:"dynamodb_table"`
	AWSRegion       string `yaml:"aws_region"`
	AWSProfile      string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	IntervalSeconds int    `yaml:"interval_seconds"`
}

func (c SnapshotConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// GetAWSProfile returns the profile to load, or "" for the default chain.
func (c SnapshotConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// RedisConfig enables the redis send-cycle lock when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig enables the postgres advisory lock fallback when URL is set.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// SESConfig holds SES v2 transport settings.
type SESConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
}

func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SendConfig holds newsletter send cycle settings.
type SendConfig struct {
	FromName           string `yaml:"from_name"`
	FromEmail          string `yaml:"from_email"`
	DefaultSubject     string `yaml:"default_subject"`
	LockKey            string `yaml:"lock_key"`
	LockTTLSeconds     int    `yaml:"lock_ttl_seconds"`
	RepositoryCount    int    `yaml:"repository_count"`
	DefaultCTAText     string `yaml:"default_cta_text"`
	DefaultTemplateVer string `yaml:"default_template_version"`
}

func (c SendConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = "http://localhost:8080"
	}
	if cfg.Tracking.WaitSeconds == 0 {
		cfg.Tracking.WaitSeconds = 20
	}
	if cfg.Tracking.MaxMessages == 0 {
		cfg.Tracking.MaxMessages = 10
	}
	if cfg.Tracking.VisibilitySecs == 0 {
		cfg.Tracking.VisibilitySecs = 30
	}
	if cfg.Snapshot.Type == "" {
		cfg.Snapshot.Type = "local"
	}
	if cfg.Snapshot.LocalPath == "" {
		cfg.Snapshot.LocalPath = "./data"
	}
	if cfg.Snapshot.S3Prefix == "" {
		cfg.Snapshot.S3Prefix = "snapshots/"
	}
	if cfg.Snapshot.AWSRegion == "" {
		cfg.Snapshot.AWSRegion = "us-west-2"
	}
	if cfg.Snapshot.IntervalSeconds == 0 {
		cfg.Snapshot.IntervalSeconds = 300
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.Send.LockKey == "" {
		cfg.Send.LockKey = "send-cycle"
	}
	if cfg.Send.LockTTLSeconds == 0 {
		cfg.Send.LockTTLSeconds = 1800
	}
	if cfg.Send.RepositoryCount == 0 {
		cfg.Send.RepositoryCount = 5
	}
	if cfg.Send.DefaultSubject == "" {
		cfg.Send.DefaultSubject = "Your weekly trending repositories"
	}
	if cfg.Send.DefaultCTAText == "" {
		cfg.Send.DefaultCTAText = "View on GitHub"
	}
	if cfg.Send.DefaultTemplateVer == "" {
		cfg.Send.DefaultTemplateVer = "v1"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// LoadFromEnv loads .env, then the YAML file, then applies environment
// overrides for secrets and endpoints. An empty path uses Default.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TRACKING_SIGNING_SECRET"); v != "" {
		cfg.Tracking.SigningSecret = v
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACKING_QUEUE_URL"); v != "" {
		cfg.Tracking.QueueURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("SNAPSHOT_S3_BUCKET"); v != "" {
		cfg.Snapshot.S3Bucket = v
	}
	if v := os.Getenv("SNAPSHOT_DYNAMODB_TABLE"); v != "" {
		cfg.Snapshot.DynamoDBTable = v
	}
	if cfg.Tracking.Region == "" {
		cfg.Tracking.Region = cfg.Snapshot.AWSRegion
	}
	return cfg, nil
}
